package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/maisonhai3/AI-planning-for-students/internal/domain"
	"github.com/redis/go-redis/v9"
)

const (
	redisPlanPrefix     = "planner:plan:"
	redisFeedbackPrefix = "planner:feedback:"
	redisMaxTxRetries   = 5
)

// ConnectRedis creates a Redis client from a URL and checks it.
func ConnectRedis(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// redisPlan is the stored document under planner:plan:<id>.
type redisPlan struct {
	Plan      json.RawMessage `json:"plan"`
	HTML      string          `json:"html"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type redisFeedback struct {
	ID        string    `json:"id"`
	Action    string    `json:"action"`
	Rating    *int      `json:"rating,omitempty"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// RedisPlanRepo implements PlanRepo on Redis. Each plan is one key written
// with SETNX; milestone updates use WATCH/MULTI.
type RedisPlanRepo struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisPlanRepo creates a RedisPlanRepo. A zero ttl keeps plans forever.
func NewRedisPlanRepo(client redis.UniversalClient, ttl time.Duration) *RedisPlanRepo {
	return &RedisPlanRepo{client: client, ttl: ttl}
}

func planKey(id string) string     { return redisPlanPrefix + id }
func feedbackKey(id string) string { return redisFeedbackPrefix + id }

func marshalRedisPlan(rec *domain.PlanRecord) ([]byte, error) {
	body, err := encodePlan(&rec.Plan)
	if err != nil {
		return nil, err
	}
	return json.Marshal(redisPlan{Plan: body, HTML: rec.HTML, CreatedAt: rec.CreatedAt.UTC(), UpdatedAt: rec.UpdatedAt.UTC()})
}

func unmarshalRedisPlan(id string, data []byte) (*domain.PlanRecord, error) {
	var doc redisPlan
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding plan %s: %w", id, err)
	}
	return decodePlan(id, doc.Plan, doc.HTML, doc.CreatedAt, doc.UpdatedAt)
}

func (r *RedisPlanRepo) Create(ctx context.Context, rec *domain.PlanRecord) error {
	data, err := marshalRedisPlan(rec)
	if err != nil {
		return err
	}
	ok, err := r.client.SetNX(ctx, planKey(rec.Plan.ID), data, r.ttl).Result()
	if err != nil {
		return fmt.Errorf("storing plan: %w", err)
	}
	if !ok {
		return fmt.Errorf("plan %s: %w", rec.Plan.ID, ErrConflict)
	}
	return nil
}

func (r *RedisPlanRepo) GetByID(ctx context.Context, id string) (*domain.PlanRecord, error) {
	return getRedisPlan(ctx, r.client, id)
}

func getRedisPlan(ctx context.Context, c redis.Cmdable, id string) (*domain.PlanRecord, error) {
	data, err := c.Get(ctx, planKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("plan %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading plan: %w", err)
	}
	return unmarshalRedisPlan(id, data)
}

func (r *RedisPlanRepo) SetMilestoneCompleted(ctx context.Context, id string, index int, completed bool, at time.Time) (*domain.PlanRecord, error) {
	key := planKey(id)
	var out *domain.PlanRecord
	txf := func(tx *redis.Tx) error {
		rec, err := getRedisPlan(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := setMilestone(rec, index, completed, at); err != nil {
			return err
		}
		data, err := marshalRedisPlan(rec)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, redis.KeepTTL)
			return nil
		})
		out = rec
		return err
	}

	for range redisMaxTxRetries {
		err := r.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return out, nil
	}
	return nil, fmt.Errorf("updating plan %s: concurrent writers: %w", id, redis.TxFailedErr)
}

// RedisFeedbackRepo implements FeedbackRepo with one list per plan.
type RedisFeedbackRepo struct {
	client redis.UniversalClient
}

// NewRedisFeedbackRepo creates a RedisFeedbackRepo.
func NewRedisFeedbackRepo(client redis.UniversalClient) *RedisFeedbackRepo {
	return &RedisFeedbackRepo{client: client}
}

func (r *RedisFeedbackRepo) Create(ctx context.Context, fb *domain.Feedback) error {
	data, err := json.Marshal(redisFeedback{
		ID:        fb.ID,
		Action:    string(fb.Action),
		Rating:    fb.Rating,
		Comment:   fb.Comment,
		CreatedAt: fb.CreatedAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("encoding feedback: %w", err)
	}

	pk := planKey(fb.PlanID)
	txf := func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, pk).Result()
		if err != nil {
			return fmt.Errorf("checking plan: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("plan %s: %w", fb.PlanID, ErrNotFound)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.RPush(ctx, feedbackKey(fb.PlanID), data)
			return nil
		})
		return err
	}
	for range redisMaxTxRetries {
		err := r.client.Watch(ctx, txf, pk)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("storing feedback: concurrent writers: %w", redis.TxFailedErr)
}

func (r *RedisFeedbackRepo) ListByPlan(ctx context.Context, planID string) ([]*domain.Feedback, error) {
	items, err := r.client.LRange(ctx, feedbackKey(planID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("listing feedback: %w", err)
	}
	out := make([]*domain.Feedback, 0, len(items))
	for _, item := range items {
		var doc redisFeedback
		if err := json.Unmarshal([]byte(item), &doc); err != nil {
			return nil, fmt.Errorf("decoding feedback: %w", err)
		}
		out = append(out, &domain.Feedback{
			ID:        doc.ID,
			PlanID:    planID,
			Action:    domain.FeedbackAction(doc.Action),
			Rating:    doc.Rating,
			Comment:   doc.Comment,
			CreatedAt: doc.CreatedAt,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
