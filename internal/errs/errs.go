// Package errs defines the coded error type shared across the CLI and the
// template engine. Codes are stable identifiers surfaced in the JSON error
// envelope; messages are for humans.
package errs

const (
	CodeConfigMissing     = "config_missing"
	CodeInvalidArgs       = "invalid_args"
	CodeHTTPError         = "http_error"
	CodeHTTPRetry         = "http_retry"
	CodeUnknownCommand    = "unknown_command"
	CodeParentFetchFailed = "parent_fetch_failed"
	CodeIdentityNotFound  = "identity_not_found"
	CodeWhoamiUnavailable = "whoami_unavailable"
)

type AppError struct {
	Code    string
	Message string
	Details interface{}
	Cause   error
}

func (e AppError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e AppError) Unwrap() error {
	return e.Cause
}

func New(code, message string, details interface{}) error {
	return AppError{Code: code, Message: message, Details: details}
}

// Wrap attaches a code and message to an underlying error while keeping it
// reachable through errors.Is/errors.As.
func Wrap(code, message string, cause error) error {
	return AppError{Code: code, Message: message, Cause: cause}
}

// Code extracts the application code from err, or "internal_error" when err
// does not carry one.
func Code(err error) string {
	if appErr, ok := err.(AppError); ok {
		return appErr.Code
	}
	return "internal_error"
}
