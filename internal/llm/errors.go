package llm

// Code classifies an LLM client error.
type Code string

const (
	CodeInvalidConfig Code = "INVALID_CONFIG"
	CodeInvalidInput  Code = "INVALID_INPUT"
	CodeAPIError      Code = "API_ERROR"
	CodeTimeout       Code = "TIMEOUT"
)

// Error is returned by every Client call.
type Error struct {
	Code      Code
	Message   string
	Retryable bool
	Err       error
}

func newError(code Code, message string, retryable bool, err error) *Error {
	return &Error{Code: code, Message: message, Retryable: retryable, Err: err}
}

func (e *Error) Error() string {
	return string(e.Code) + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}
