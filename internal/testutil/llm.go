package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/maisonhai3/AI-planning-for-students/internal/llm"
)

// Reply is one scripted model answer. A non-nil Err is returned instead of Text.
type Reply struct {
	Text string
	Err  error
}

// ScriptedLLM replays replies in order and records every request it receives.
// Once the script runs out the last reply repeats.
type ScriptedLLM struct {
	mu       sync.Mutex
	replies  []Reply
	requests []llm.GenerateRequest
	down     bool
}

// NewScriptedLLM returns a client that answers with replies in order.
func NewScriptedLLM(replies ...Reply) *ScriptedLLM {
	return &ScriptedLLM{replies: replies}
}

// Text is shorthand for a successful reply.
func Text(s string) Reply { return Reply{Text: s} }

// Fail is shorthand for a failed call.
func Fail(err error) Reply { return Reply{Err: err} }

// Generate implements llm.LLMClient. It honours ctx cancellation.
func (s *ScriptedLLM) Generate(ctx context.Context, req llm.GenerateRequest) (*llm.GenerateResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	n := len(s.requests)
	s.requests = append(s.requests, req)
	if len(s.replies) == 0 {
		s.mu.Unlock()
		return nil, fmt.Errorf("scripted llm: no reply for call %d: %w", n+1, llm.ErrUnavailable)
	}
	r := s.replies[min(n, len(s.replies)-1)]
	s.mu.Unlock()

	if r.Err != nil {
		return nil, r.Err
	}
	return &llm.GenerateResponse{Text: r.Text, Model: "scripted"}, nil
}

// Available implements llm.LLMClient.
func (s *ScriptedLLM) Available(context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.down
}

// SetDown toggles the reachability reported by Available.
func (s *ScriptedLLM) SetDown(down bool) {
	s.mu.Lock()
	s.down = down
	s.mu.Unlock()
}

// Requests returns a copy of the requests received so far.
func (s *ScriptedLLM) Requests() []llm.GenerateRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]llm.GenerateRequest(nil), s.requests...)
}

// Calls is the number of Generate calls so far.
func (s *ScriptedLLM) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

// BlockingLLM blocks every call until ctx is done.
type BlockingLLM struct{}

func (BlockingLLM) Generate(ctx context.Context, _ llm.GenerateRequest) (*llm.GenerateResponse, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (BlockingLLM) Available(context.Context) bool { return true }
