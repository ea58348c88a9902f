package generation

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrGenerationFailed means the last attempt produced no decodable payload.
	ErrGenerationFailed = errors.New("generation failed")
	// ErrOutputUnrepairable means the last attempt decoded but did not survive
	// repair and re-validation.
	ErrOutputUnrepairable = errors.New("output unrepairable")
)

// AttemptFailure records why one attempt was discarded.
type AttemptFailure struct {
	Attempt int    `json:"attempt"`
	Code    string `json:"code"`
	Reason  string `json:"reason"`
}

// Failure is returned when every attempt was discarded.
type Failure struct {
	Attempts []AttemptFailure
	// Unrepairable is true when the last decodable payload failed validation.
	Unrepairable bool
	// Trace carries the rule trace of the last decoded payload, for logs.
	Trace []string
	cause error
}

func (f *Failure) Error() string {
	reasons := make([]string, 0, len(f.Attempts))
	for _, a := range f.Attempts {
		reasons = append(reasons, fmt.Sprintf("attempt %d: %s", a.Attempt, a.Reason))
	}
	return fmt.Sprintf("%s after %d attempts: %s", f.kind(), len(f.Attempts), strings.Join(reasons, "; "))
}

func (f *Failure) kind() error {
	if f.Unrepairable {
		return ErrOutputUnrepairable
	}
	return ErrGenerationFailed
}

// Unwrap exposes the failure kind and the last underlying error.
func (f *Failure) Unwrap() []error {
	if f.cause == nil {
		return []error{f.kind()}
	}
	return []error{f.kind(), f.cause}
}
