package common

import (
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"
)

// ValidationError is one failed rule on one request field.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Message)
}

// Validator collects rule failures across the fields of a request.
type Validator struct {
	errors []ValidationError
}

func NewValidator() *Validator {
	return &Validator{}
}

// Field runs every rule against value and records the failures.
func (v *Validator) Field(fieldName string, value interface{}, rules ...ValidationRule) *Validator {
	for _, rule := range rules {
		if err := rule(fieldName, value); err != nil {
			v.errors = append(v.errors, *err)
		}
	}
	return v
}

func (v *Validator) HasErrors() bool {
	return len(v.errors) > 0
}

func (v *Validator) Errors() []ValidationError {
	return v.errors
}

// Error folds the failures into one AppError wrapping ErrValidation, or nil.
func (v *Validator) Error() error {
	if !v.HasErrors() {
		return nil
	}
	messages := make([]string, 0, len(v.errors))
	for _, err := range v.errors {
		messages = append(messages, err.Error())
	}
	return NewAppError("VALIDATION_ERROR", strings.Join(messages, "; "), ErrValidation)
}

// ValidationRule checks one field value.
type ValidationRule func(fieldName string, value interface{}) *ValidationError

func invalid(fieldName string, value interface{}, message string) *ValidationError {
	return &ValidationError{Field: fieldName, Value: value, Message: message}
}

// Required rejects nil, blank strings and empty byte slices.
func Required(fieldName string, value interface{}) *ValidationError {
	switch v := value.(type) {
	case nil:
		return invalid(fieldName, value, "is required")
	case string:
		if strings.TrimSpace(v) == "" {
			return invalid(fieldName, value, "is required")
		}
	case []byte:
		if len(v) == 0 {
			return invalid(fieldName, "<empty>", "is required")
		}
	}
	return nil
}

// MaxLen limits a string to max runes.
func MaxLen(max int) ValidationRule {
	return func(fieldName string, value interface{}) *ValidationError {
		if s, ok := value.(string); ok && utf8.RuneCountInString(s) > max {
			return invalid(fieldName, value, fmt.Sprintf("must be at most %d characters", max))
		}
		return nil
	}
}

// HTTPURL accepts absolute http(s) URLs. Empty values pass; combine with Required.
func HTTPURL(fieldName string, value interface{}) *ValidationError {
	str, ok := value.(string)
	if !ok {
		return invalid(fieldName, value, "must be a string")
	}
	if strings.TrimSpace(str) == "" {
		return nil
	}
	u, err := url.Parse(strings.TrimSpace(str))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return invalid(fieldName, value, "must be a valid http(s) URL")
	}
	return nil
}

// Check turns a precomputed condition into a rule failing with message.
func Check(ok bool, message string) ValidationRule {
	return func(fieldName string, value interface{}) *ValidationError {
		if ok {
			return nil
		}
		return invalid(fieldName, value, message)
	}
}
