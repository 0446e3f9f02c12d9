package enrich

import "fmt"

// EnrichErrorCode represents specific enrichment error types.
type EnrichErrorCode string

const (
	ErrModelUnavailable EnrichErrorCode = "MODEL_UNAVAILABLE"
	ErrModelTimeout     EnrichErrorCode = "MODEL_TIMEOUT"
	ErrEmptyCompletion  EnrichErrorCode = "EMPTY_COMPLETION"
	ErrOutputUnparsable EnrichErrorCode = "OUTPUT_UNPARSABLE"
)

// EnrichError is a structured error for enrichment failures. The pipeline
// treats any of these as a soft failure and falls back to the deterministic
// narrative.
type EnrichError struct {
	Code      EnrichErrorCode
	Message   string
	Retryable bool
	Cause     error
}

func (e *EnrichError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *EnrichError) Unwrap() error {
	return e.Cause
}

// IsRetryable returns whether this error is retryable.
func (e *EnrichError) IsRetryable() bool {
	return e.Retryable
}
