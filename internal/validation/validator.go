// VPNShield - VPN and Proxy Detection for Game Server Proxies
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vpnshield

package validation

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// CodeValidation is the API error code for failed validation.
const CodeValidation = "VALIDATION_ERROR"

var (
	validate     *validator.Validate
	validateOnce sync.Once

	customMu sync.Mutex
	custom   = map[string]customTag{}
)

type customTag struct {
	fn      validator.Func
	message string
}

// FieldError is a single failed field.
type FieldError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Param   string `json:"param,omitempty"`
	Message string `json:"message"`
}

// Errors aggregates every failed field of one struct.
type Errors struct {
	Fields []FieldError
}

// Code returns the API error code.
func (e *Errors) Code() string {
	return CodeValidation
}

// Error joins the field messages.
func (e *Errors) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Message
	}
	return strings.Join(msgs, "; ")
}

// Has reports whether field failed validation.
func (e *Errors) Has(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

// Register adds a custom tag. message is a format with one %s for the
// field name. Tags registered after the first GetValidator call are ignored.
func Register(tag string, fn validator.Func, message string) {
	customMu.Lock()
	defer customMu.Unlock()
	custom[tag] = customTag{fn: fn, message: message}
}

// GetValidator returns the shared validator instance.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())

		customMu.Lock()
		defer customMu.Unlock()
		for tag, c := range custom {
			// RegisterValidation only fails on an empty tag or nil func.
			if err := validate.RegisterValidation(tag, c.fn); err != nil {
				panic(fmt.Sprintf("validation: register %q: %v", tag, err))
			}
		}
	})
	return validate
}

// ValidateStruct validates s and returns nil or the aggregated failures.
func ValidateStruct(s any) *Errors {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return &Errors{Fields: []FieldError{{Field: "unknown", Tag: "unknown", Message: err.Error()}}}
	}

	out := &Errors{Fields: make([]FieldError, len(fieldErrs))}
	for i, fe := range fieldErrs {
		out.Fields[i] = FieldError{
			Field:   fieldPath(fe),
			Tag:     fe.Tag(),
			Param:   fe.Param(),
			Message: translate(fe),
		}
	}
	return out
}

// fieldPath drops the root struct name from the namespace so nested
// fields read as "Cache.Capacity".
func fieldPath(fe validator.FieldError) string {
	ns := fe.StructNamespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

var messages = map[string]string{
	"required":      "%s is required",
	"ip":            "%s must be a valid IP address",
	"url":           "%s must be a valid URL",
	"http_url":      "%s must be a valid http(s) URL",
	"hostname_port": "%s must be a host:port address",
}

var messagesWithParam = map[string]string{
	"oneof": "%s must be one of: %s",
	"gte":   "%s must be greater than or equal to %s",
	"lte":   "%s must be less than or equal to %s",
	"gt":    "%s must be greater than %s",
	"lt":    "%s must be less than %s",
}

func translate(fe validator.FieldError) string {
	field := fieldPath(fe)
	tag := fe.Tag()

	if t, ok := messages[tag]; ok {
		return fmt.Sprintf(t, field)
	}
	if t, ok := messagesWithParam[tag]; ok {
		return fmt.Sprintf(t, field, fe.Param())
	}

	customMu.Lock()
	c, ok := custom[tag]
	customMu.Unlock()
	if ok && c.message != "" {
		return fmt.Sprintf(c.message, field)
	}

	isString := fe.Kind().String() == "string"
	switch tag {
	case "min":
		if isString {
			return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		if isString {
			return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", field, tag)
	}
}
