package validation

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/lorrc/helpdesk-analytics/internal/core/errors"
)

// Validator validates request data
type Validator struct {
	errors *apperrors.ValidationErrors
}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{
		errors: apperrors.NewValidationErrors(),
	}
}

// HasErrors returns true if there are validation errors
func (v *Validator) HasErrors() bool {
	return v.errors.HasErrors()
}

// Errors returns the validation errors
func (v *Validator) Errors() *apperrors.ValidationErrors {
	return v.errors
}

// Required validates that a string is not empty
func (v *Validator) Required(field, value string) *Validator {
	if strings.TrimSpace(value) == "" {
		v.errors.Add(field, "This field is required")
	}
	return v
}

// MaxLength validates maximum string length
func (v *Validator) MaxLength(field, value string, max int) *Validator {
	if len(value) > max {
		v.errors.Add(field, "Must be at most "+strconv.Itoa(max)+" characters")
	}
	return v
}

// MaxItems validates the maximum number of entries in a list
func (v *Validator) MaxItems(field string, count, max int) *Validator {
	if count > max {
		v.errors.Add(field, "Must contain at most "+strconv.Itoa(max)+" items")
	}
	return v
}

// Min validates minimum integer value
func (v *Validator) Min(field string, value, min int64) *Validator {
	if value < min {
		v.errors.Add(field, "Must be at least "+strconv.FormatInt(min, 10))
	}
	return v
}

// Custom adds a custom validation
func (v *Validator) Custom(field string, valid bool, message string) *Validator {
	if !valid {
		v.errors.Add(field, message)
	}
	return v
}

// DecodeAndValidate decodes JSON request body and runs basic validation
func DecodeAndValidate[T any](r *http.Request) (*T, error) {
	var req T

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, apperrors.NewBadRequestError(err, "Invalid request body")
	}

	return &req, nil
}

// ParseIntQueryParam safely parses an integer query parameter
func ParseIntQueryParam(r *http.Request, key string, defaultValue int) int {
	valueStr := r.URL.Query().Get(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil || value < 0 {
		return defaultValue
	}

	return value
}

// ParseStringQueryParam returns the raw query parameter, or "" when absent
func ParseStringQueryParam(r *http.Request, key string) string {
	return r.URL.Query().Get(key)
}

// ParseStringSliceQueryParam collects repeated and comma-separated values:
// ?category=a&category=b,c yields [a b c]. Blank entries are dropped.
func ParseStringSliceQueryParam(r *http.Request, key string) []string {
	values := r.URL.Query()[key]
	if len(values) == 0 {
		return nil
	}

	result := make([]string, 0, len(values))
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				result = append(result, trimmed)
			}
		}
	}
	return result
}

// TimeParam is a parsed time query parameter
type TimeParam struct {
	Time     time.Time
	DateOnly bool
}

// ParseTimeQueryParam parses an RFC 3339 timestamp or a YYYY-MM-DD date.
// It returns nil, nil when the parameter is absent.
func ParseTimeQueryParam(r *http.Request, key string) (*TimeParam, error) {
	value := strings.TrimSpace(r.URL.Query().Get(key))
	if value == "" {
		return nil, nil
	}

	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return &TimeParam{Time: t}, nil
	}

	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return nil, err
	}
	return &TimeParam{Time: t, DateOnly: true}, nil
}
