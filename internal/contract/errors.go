package contract

import (
	"errors"
	"net/http"
)

// ErrorCode is the stable machine-readable failure code surfaced to clients.
type ErrorCode string

const (
	ErrInputRejected          ErrorCode = "INPUT_REJECTED"
	ErrClassificationDegraded ErrorCode = "CLASSIFICATION_DEGRADED"
	ErrGenerationFailed       ErrorCode = "GENERATION_FAILED"
	ErrOutputUnrepairable     ErrorCode = "OUTPUT_UNREPAIRABLE"
	ErrSafetyBlocked          ErrorCode = "SAFETY_BLOCKED"
	ErrPersistenceFailed      ErrorCode = "PERSISTENCE_FAILED"
	ErrNotFound               ErrorCode = "NOT_FOUND"
	ErrInvalidRequest         ErrorCode = "INVALID_REQUEST"
	ErrInvalidPlan            ErrorCode = "INVALID_PLAN"
	ErrRateLimited            ErrorCode = "RATE_LIMITED"
	ErrInternalError          ErrorCode = "INTERNAL_ERROR"
)

// PipelineError is a terminal failure of a pipeline or delivery operation.
// Message is safe to show to users; Cause is for logs only.
type PipelineError struct {
	Code    ErrorCode
	Message string
	Cause   error
}

func (e *PipelineError) Error() string {
	if e.Cause != nil {
		return string(e.Code) + ": " + e.Message + ": " + e.Cause.Error()
	}
	return string(e.Code) + ": " + e.Message
}

func (e *PipelineError) Unwrap() error { return e.Cause }

// NewError builds a PipelineError. An empty message is replaced with the
// default user-facing text for code.
func NewError(code ErrorCode, message string, cause error) *PipelineError {
	if message == "" {
		message = DefaultMessage(code)
	}
	return &PipelineError{Code: code, Message: message, Cause: cause}
}

// AsPipelineError extracts the PipelineError in err's chain. Any other error
// is reported as INTERNAL_ERROR with the default message.
func AsPipelineError(err error) *PipelineError {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe
	}
	return NewError(ErrInternalError, "", err)
}

var defaultMessages = map[ErrorCode]string{
	ErrInputRejected:      "Nội dung không hợp lệ. Vui lòng chỉnh sửa và thử lại.",
	ErrGenerationFailed:   "Không thể tạo kế hoạch. Vui lòng thử lại.",
	ErrOutputUnrepairable: "Không thể tạo kế hoạch. Vui lòng thử lại.",
	ErrSafetyBlocked:      "Nội dung không phù hợp. Vui lòng thử lại với input khác.",
	ErrPersistenceFailed:  "Không thể lưu dữ liệu. Vui lòng thử lại sau.",
	ErrNotFound:           "Không tìm thấy kế hoạch.",
	ErrInvalidRequest:     "Yêu cầu không hợp lệ.",
	ErrInvalidPlan:        "Kế hoạch không hợp lệ.",
	ErrRateLimited:        "Quá nhiều yêu cầu. Vui lòng thử lại sau.",
	ErrInternalError:      "Đã xảy ra lỗi. Vui lòng thử lại sau.",
}

// DefaultMessage returns the user-facing text for code.
func DefaultMessage(code ErrorCode) string {
	if msg, ok := defaultMessages[code]; ok {
		return msg
	}
	return defaultMessages[ErrInternalError]
}

// HTTPStatus maps a code to its response status.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrInputRejected, ErrInvalidRequest, ErrSafetyBlocked:
		return http.StatusBadRequest
	case ErrNotFound:
		return http.StatusNotFound
	case ErrInvalidPlan:
		return http.StatusUnprocessableEntity
	case ErrRateLimited:
		return http.StatusTooManyRequests
	case ErrPersistenceFailed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Success bool      `json:"success"`
	Error   string    `json:"error"`
	Code    ErrorCode `json:"code"`
	Details []string  `json:"details,omitempty"`
}

// NewErrorResponse renders e without its cause.
func NewErrorResponse(e *PipelineError) ErrorResponse {
	return ErrorResponse{Error: e.Message, Code: e.Code}
}
