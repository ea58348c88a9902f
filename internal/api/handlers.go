package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/maisonhai3/AI-planning-for-students/internal/contract"
	"github.com/maisonhai3/AI-planning-for-students/internal/domain"
	"github.com/maisonhai3/AI-planning-for-students/internal/logging"
	"go.uber.org/zap"
)

// PlanHTMLPolicy confines stored HTML to a sandbox that may run scripts and
// read its own origin, but cannot navigate the top frame or submit forms.
const PlanHTMLPolicy = "sandbox allow-scripts allow-same-origin; " +
	"default-src 'self'; " +
	"script-src 'self' 'unsafe-inline' https://cdn.tailwindcss.com; " +
	"style-src 'self' 'unsafe-inline' https://cdn.tailwindcss.com https://fonts.googleapis.com; " +
	"font-src 'self' https://fonts.gstatic.com; " +
	"img-src 'self' data:; " +
	"form-action 'none'; " +
	"frame-ancestors 'self'"

const healthTimeout = 2 * time.Second

func (s *Server) handleGenerate(c echo.Context) error {
	var req contract.GenerateRequest
	if err := c.Bind(&req); err != nil {
		return invalidBody(err)
	}
	if err := req.Validate(); err != nil {
		return err
	}

	start := time.Now()
	out, err := s.pipeline.Generate(c.Request().Context(), req.Input)
	if err != nil {
		return err
	}

	meta := out.Meta(time.Since(start))
	return c.JSON(http.StatusOK, contract.GenerateResponse{
		Success: true,
		Plan:    out.Plan,
		HTML:    out.HTML,
		Meta:    &meta,
	})
}

func (s *Server) handleSavePlan(c echo.Context) error {
	var req contract.SavePlanRequest
	if err := c.Bind(&req); err != nil {
		return invalidBody(err)
	}
	if err := req.Validate(); err != nil {
		return err
	}

	saved, err := s.delivery.Persist(c.Request().Context(), req.Plan, req.HTML)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, contract.SavePlanResponse{
		Success:     true,
		ID:          saved.ID,
		ShareURL:    saved.ShareURL,
		SavedAt:     saved.SavedAt,
		FixedFields: saved.FixedFields,
	})
}

func (s *Server) handleGetPlan(c echo.Context) error {
	rec, err := s.delivery.Retrieve(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, planResponse(rec))
}

// handlePlanHTML serves the stored document for embedding in a sandboxed frame.
func (s *Server) handlePlanHTML(c echo.Context) error {
	rec, err := s.delivery.Retrieve(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	h := c.Response().Header()
	h.Set(echo.HeaderContentSecurityPolicy, PlanHTMLPolicy)
	h.Set(echo.HeaderXContentTypeOptions, "nosniff")
	h.Set(echo.HeaderXFrameOptions, "SAMEORIGIN")
	h.Set("Referrer-Policy", "no-referrer")
	return c.HTMLBlob(http.StatusOK, []byte(rec.HTML))
}

func (s *Server) handleMilestone(c echo.Context) error {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil || index < 0 {
		return contract.NewError(contract.ErrInvalidRequest, "milestone index must be a non-negative integer", err)
	}
	var req contract.MilestoneRequest
	if err := c.Bind(&req); err != nil {
		return invalidBody(err)
	}
	if err := req.Validate(); err != nil {
		return err
	}

	rec, err := s.delivery.SetMilestone(c.Request().Context(), c.Param("id"), index, *req.Completed)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, planResponse(rec))
}

func (s *Server) handleFeedback(c echo.Context) error {
	var req contract.FeedbackRequest
	if err := c.Bind(&req); err != nil {
		return invalidBody(err)
	}

	fb, err := s.delivery.RecordFeedback(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, contract.FeedbackResponse{
		Success: true,
		ID:      fb.ID,
		Message: "Feedback recorded: " + string(fb.Action),
	})
}

func (s *Server) handleListFeedback(c echo.Context) error {
	planID := c.Param("id")
	list, err := s.delivery.ListFeedback(c.Request().Context(), planID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, contract.FeedbackListResponse{
		Success:  true,
		PlanID:   planID,
		Feedback: contract.NewFeedbackItems(list),
	})
}

// handleHealth reports 503 only when the store is unreachable; a missing
// model degrades generation but not retrieval.
func (s *Server) handleHealth(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), healthTimeout)
	defer cancel()

	resp := contract.HealthResponse{
		Status:  "healthy",
		Service: serviceName,
		Version: s.version,
		Store:   s.backend,
	}
	status := http.StatusOK
	if s.store != nil {
		if err := s.store.Ping(ctx); err != nil {
			logging.FromContext(ctx, s.logger).Warn("store ping failed", zap.Error(err))
			resp.Status = "unhealthy"
			status = http.StatusServiceUnavailable
		}
	}
	if s.model != nil {
		resp.ModelAvailable = s.model.Available(ctx)
	}
	return c.JSON(status, resp)
}

func planResponse(rec *domain.PlanRecord) contract.GetPlanResponse {
	plan := rec.Plan
	return contract.GetPlanResponse{
		Success:   true,
		ID:        plan.ID,
		Plan:      &plan,
		HTML:      rec.HTML,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
}

func invalidBody(err error) error {
	return contract.NewError(contract.ErrInvalidRequest, "invalid request body", err)
}

// handleHTTPError renders every failure as a contract.ErrorResponse. Causes
// are logged, never written to the client.
func (s *Server) handleHTTPError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var pe *contract.PipelineError
	var he *echo.HTTPError
	status := 0
	switch {
	case errors.As(err, &pe):
	case errors.As(err, &he):
		pe = fromHTTPError(he)
		if he.Code >= http.StatusBadRequest && he.Code < http.StatusInternalServerError {
			status = he.Code
		}
	default:
		pe = contract.AsPipelineError(err)
	}
	if status == 0 {
		status = contract.HTTPStatus(pe.Code)
	}

	log := logging.FromContext(c.Request().Context(), s.logger).With(
		zap.String("error_code", string(pe.Code)),
		zap.Int("status", status),
	)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", zap.Error(err))
	} else {
		log.Debug("request rejected", zap.Error(err))
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, contract.NewErrorResponse(pe))
	}
	if err != nil {
		log.Warn("write error response", zap.Error(err))
	}
}

func fromHTTPError(he *echo.HTTPError) *contract.PipelineError {
	msg := fmt.Sprint(he.Message)
	switch he.Code {
	case http.StatusNotFound:
		return contract.NewError(contract.ErrNotFound, msg, he)
	case http.StatusTooManyRequests:
		return contract.NewError(contract.ErrRateLimited, "", he)
	case http.StatusInternalServerError:
		return contract.NewError(contract.ErrInternalError, "", he)
	}
	if he.Code >= http.StatusBadRequest && he.Code < http.StatusInternalServerError {
		return contract.NewError(contract.ErrInvalidRequest, msg, he)
	}
	return contract.NewError(contract.ErrInternalError, "", he)
}

// errorJSON writes pe directly; used by middleware that short-circuits.
func errorJSON(c echo.Context, pe *contract.PipelineError) error {
	return c.JSON(contract.HTTPStatus(pe.Code), contract.NewErrorResponse(pe))
}
