package usecase

import "fmt"

// ErrorCode is the stable machine-readable failure class carried on every
// error the pipeline is allowed to surface. The handler maps codes to HTTP
// statuses; nothing downstream inspects error message text.
type ErrorCode string

const (
	ErrorInvalidRequest ErrorCode = "invalid_request"
	ErrorNoUserMessage  ErrorCode = "no_user_message"
	ErrorAuthentication ErrorCode = "authentication_error"
	ErrorEmbedding      ErrorCode = "embedding_error"
	ErrorRateLimited    ErrorCode = "rate_limit_error"
	ErrorKnowledgeBase  ErrorCode = "knowledge_base_error"
	ErrorTimeout        ErrorCode = "timeout_error"
	ErrorUnexpected     ErrorCode = "unexpected_error"
)

type Error struct {
	Code   ErrorCode
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("usecase: %s (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("usecase: %s (%s): %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(code ErrorCode, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}
