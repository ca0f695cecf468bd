package controller

import "fmt"

// Error codes carried by CodedError.
const (
	CodeValidation       = "VALIDATION"
	CodeCaptureNotFound  = "CAPTURE_NOT_FOUND"
	CodeResponseNotFound = "RESPONSE_NOT_FOUND"
	CodeHostUnavailable  = "HOST_UNAVAILABLE"
)

// CodedError is a typed error used for stable API mapping.
type CodedError struct {
	Code    string
	Message string
	Cause   error
}

func (e *CodedError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
}

func (e *CodedError) Unwrap() error { return e.Cause }

func newError(code, msg string, cause error) error {
	return &CodedError{Code: code, Message: msg, Cause: cause}
}
