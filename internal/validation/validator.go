// ALN Orchestrator
// Copyright 2026 ALN Orchestrator Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/maxepunk/aln-orchestrator

// Package validation validates inbound request bodies against the
// orchestrator's identifier grammar using go-playground/validator v10.
//
// The custom validators registered here are the boundary form of the
// domain's identifiers:
//
//   - token_id:  1-100 chars of [A-Za-z0-9_], the catalog key format
//   - team_id:   exactly three ASCII digits ("001", "042", "999")
//   - device_id: 1-100 chars, any non-empty opaque scanner identity
//
// Handlers tag their request structs with these and call
// ValidateStruct; failures come back as a RequestValidationError ready
// to be serialized as a VALIDATION_ERROR response.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	tokenIDPattern = regexp.MustCompile(`^[A-Za-z0-9_]{1,100}$`)
	teamIDPattern  = regexp.MustCompile(`^[0-9]{3}$`)
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// GetValidator returns the shared validator instance, creating it and
// registering the domain validators on first use. validator.Validate
// caches struct metadata internally, so a single shared instance is
// both safe and the fast path.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())

		// Registration only fails for a blank tag name, so these
		// cannot error at runtime.
		_ = validate.RegisterValidation("token_id", func(fl validator.FieldLevel) bool {
			return tokenIDPattern.MatchString(fl.Field().String())
		})
		_ = validate.RegisterValidation("team_id", func(fl validator.FieldLevel) bool {
			return teamIDPattern.MatchString(fl.Field().String())
		})
		_ = validate.RegisterValidation("device_id", func(fl validator.FieldLevel) bool {
			s := fl.Field().String()
			return len(s) >= 1 && len(s) <= 100
		})
	})

	return validate
}

// ValidationError is one field's failure, carrying enough structure
// for a client to highlight the offending input.
type ValidationError struct {
	field   string
	tag     string
	param   string
	value   interface{}
	message string
}

// Field returns the struct field name that failed validation.
func (e *ValidationError) Field() string { return e.field }

// Tag returns the validation tag that failed.
func (e *ValidationError) Tag() string { return e.tag }

// Param returns the tag's parameter, e.g. "100" for "max=100".
func (e *ValidationError) Param() string { return e.param }

// Value returns the value that failed validation.
func (e *ValidationError) Value() interface{} { return e.value }

// Error returns the human-readable message.
func (e *ValidationError) Error() string { return e.message }

// RequestValidationError aggregates every failed field of one request.
type RequestValidationError struct {
	errors []ValidationError
}

// Errors returns the individual field errors.
func (ve *RequestValidationError) Errors() []ValidationError {
	return ve.errors
}

// Error implements the error interface with a combined message.
func (ve *RequestValidationError) Error() string {
	if len(ve.errors) == 0 {
		return "validation failed"
	}
	var messages []string
	for _, err := range ve.errors {
		messages = append(messages, err.Error())
	}
	return strings.Join(messages, "; ")
}

// APIError is the error half of the HTTP response envelope; declared
// here rather than imported from httpapi to avoid a dependency cycle.
type APIError struct {
	Code    string
	Message string
	Details map[string]interface{}
}

// ToAPIError renders the failure set as a VALIDATION_ERROR body. A
// single failed field keeps its structured detail at the top level; a
// multi-field failure nests per-field detail under "fields".
func (ve *RequestValidationError) ToAPIError() *APIError {
	switch len(ve.errors) {
	case 0:
		return &APIError{Code: "VALIDATION_ERROR", Message: "Validation failed"}
	case 1:
		err := ve.errors[0]
		return &APIError{
			Code:    "VALIDATION_ERROR",
			Message: err.message,
			Details: map[string]interface{}{
				"field": err.field,
				"tag":   err.tag,
				"value": err.value,
			},
		}
	}

	fields := make([]map[string]interface{}, len(ve.errors))
	var messages []string
	for i, err := range ve.errors {
		fields[i] = map[string]interface{}{
			"field":   err.field,
			"tag":     err.tag,
			"message": err.message,
		}
		messages = append(messages, fmt.Sprintf("%s: %s", err.field, err.message))
	}
	return &APIError{
		Code:    "VALIDATION_ERROR",
		Message: strings.Join(messages, "; "),
		Details: map[string]interface{}{"fields": fields},
	}
}

// ValidateStruct validates s against its struct tags. Returns nil on
// success, or a *RequestValidationError listing every failed field.
func ValidateStruct(s interface{}) *RequestValidationError {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return &RequestValidationError{
			errors: []ValidationError{{field: "unknown", tag: "unknown", message: err.Error()}},
		}
	}

	fieldErrors := make([]ValidationError, len(validationErrs))
	for i, fieldErr := range validationErrs {
		fieldErrors[i] = ValidationError{
			field:   fieldErr.Field(),
			tag:     fieldErr.Tag(),
			param:   fieldErr.Param(),
			value:   fieldErr.Value(),
			message: describe(fieldErr),
		}
	}
	return &RequestValidationError{errors: fieldErrors}
}

// describe turns a FieldError into the message a scanner author sees
// in the VALIDATION_ERROR body.
func describe(fe validator.FieldError) string {
	field, param := fe.Field(), fe.Param()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "token_id":
		return fmt.Sprintf("%s must be 1-100 characters of A-Z, a-z, 0-9 or _", field)
	case "team_id":
		return fmt.Sprintf("%s must be exactly three digits", field)
	case "device_id":
		return fmt.Sprintf("%s must be 1-100 characters", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, param)
	case "min":
		if fe.Kind().String() == "string" {
			return fmt.Sprintf("%s must be at least %s characters", field, param)
		}
		return fmt.Sprintf("%s must be at least %s", field, param)
	case "max":
		if fe.Kind().String() == "string" {
			return fmt.Sprintf("%s must be at most %s characters", field, param)
		}
		return fmt.Sprintf("%s must be at most %s", field, param)
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
