package validator

import "strings"

// FieldError is one failed rule on one field.
type FieldError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

// ValidationErrors collects field errors of one validation run.
type ValidationErrors struct {
	Errors []FieldError `json:"errors"`
}

// NewValidationError creates a single field error.
func NewValidationError(field, tag, message string) FieldError {
	return FieldError{Field: field, Tag: tag, Message: message}
}

// NewValidationErrors creates ValidationErrors from field errors.
func NewValidationErrors(errs ...FieldError) *ValidationErrors {
	return &ValidationErrors{Errors: errs}
}

// Error implements error.
func (e *ValidationErrors) Error() string {
	if !e.HasErrors() {
		return ""
	}
	return "validation failed: " + strings.Join(e.Messages(), "; ")
}

// HasErrors reports whether any field failed.
func (e *ValidationErrors) HasErrors() bool {
	return e != nil && len(e.Errors) > 0
}

// Count returns the number of field errors.
func (e *ValidationErrors) Count() int {
	if e == nil {
		return 0
	}
	return len(e.Errors)
}

// First returns the first message, or "".
func (e *ValidationErrors) First() string {
	if !e.HasErrors() {
		return ""
	}
	return e.Errors[0].Message
}

// Messages returns all messages in order.
func (e *ValidationErrors) Messages() []string {
	if e == nil {
		return nil
	}
	msgs := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		msgs = append(msgs, fe.Message)
	}
	return msgs
}

// ToMap groups messages by field.
func (e *ValidationErrors) ToMap() map[string][]string {
	out := make(map[string][]string)
	if e == nil {
		return out
	}
	for _, fe := range e.Errors {
		out[fe.Field] = append(out[fe.Field], fe.Message)
	}
	return out
}
