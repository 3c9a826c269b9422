package domain

import "fmt"

// ValidationError marks malformed caller input. Handlers map it to HTTP 400;
// the message always names the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError builds the conventional "<field> is required" error.
func NewValidationError(field string) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf("%s is required", field)}
}
