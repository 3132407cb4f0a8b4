package domain

import "fmt"

// Sentinel errors for the domain layer.
var (
	ErrToolNotFound    = fmt.Errorf("tool not found")
	ErrToolFailure     = fmt.Errorf("tool execution failed")
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrProviderError   = fmt.Errorf("provider error")
	ErrMaxIterations   = fmt.Errorf("tool loop reached max iterations")
	ErrUserNotFound    = fmt.Errorf("user not found")
	ErrDuplicate       = fmt.Errorf("duplicate")
	ErrRateLimit       = fmt.Errorf("rate limit exceeded")
	ErrCircuitOpen     = fmt.Errorf("llm circuit breaker open")
	ErrSendFailed      = fmt.Errorf("outbound send failed")
	ErrSchemaViolation = fmt.Errorf("arguments do not match tool schema")
)

// DomainError wraps a sentinel error with operation context.
type DomainError struct {
	Op     string // operation name (e.g., "Registry.Get")
	Err    error  // underlying sentinel or wrapped error
	Detail string // human-readable detail
}

func (e *DomainError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *DomainError) Unwrap() error { return e.Err }

// NewDomainError creates a new DomainError.
func NewDomainError(op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail}
}

// WrapOp adds operation context to an error. Returns nil if err is nil,
// enabling idiomatic use: return domain.WrapOp("op", err)
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}
