package server

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/humetime/backend/internal/distribution"
)

type appendRequestPayload struct {
	Timestamp                   *string `json:"timestamp"`
	PatientCount                *int    `json:"patient_count" binding:"required,min=0"`
	DistributionDurationMinutes *int    `json:"distribution_duration_minutes" binding:"required,min=0"`
	MealPeriod                  *string `json:"meal_period" binding:"required"`
	PersonCount                 *int    `json:"person_count" binding:"required,min=0"`
	FreeNotes                   *string `json:"free_notes"`
	SourceMessage               *string `json:"source_message"`
}

func (p appendRequestPayload) toAppendRequest() distribution.AppendRequest {
	return distribution.AppendRequest{
		Timestamp:                   valueOrEmpty(p.Timestamp),
		PatientCount:                p.PatientCount,
		DistributionDurationMinutes: p.DistributionDurationMinutes,
		MealPeriod:                  valueOrEmpty(p.MealPeriod),
		PersonCount:                 p.PersonCount,
		FreeNotes:                   valueOrEmpty(p.FreeNotes),
		SourceMessage:               valueOrEmpty(p.SourceMessage),
	}
}

func valueOrEmpty(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

type appendResponsePayload struct {
	Status   string              `json:"status"`
	Appended distribution.Record `json:"appended"`
}

type errorDetail struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

type validationErrorPayload struct {
	Detail []errorDetail `json:"detail"`
}

func validationErrorResponse(err *distribution.ValidationError) validationErrorPayload {
	response := validationErrorPayload{Detail: make([]errorDetail, 0, len(err.Fields))}
	for _, field := range err.Fields {
		response.Detail = append(response.Detail, errorDetail{
			Loc:  []string{"body", field.Field},
			Msg:  field.Message,
			Type: field.Type,
		})
	}
	return response
}

// bindingErrorResponse renders gin binding failures in the same shape as domain validation
// errors. When only field rules failed, the meal period is still resolved so an unknown
// value is reported alongside the count errors.
func bindingErrorResponse(err error, request appendRequestPayload, normalizer *distribution.Normalizer) validationErrorPayload {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		fields := make([]distribution.FieldError, 0, len(validationErrs)+1)
		for _, fieldErr := range validationErrs {
			fields = append(fields, fieldErrorFromTag(fieldErr))
		}
		if request.MealPeriod != nil && normalizer != nil {
			var mealErr *distribution.ValidationError
			if _, normalizeErr := normalizer.Normalize(*request.MealPeriod); errors.As(normalizeErr, &mealErr) {
				fields = append(fields, mealErr.Fields...)
			}
		}
		return validationErrorResponse(distribution.NewValidationError(fields...))
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		kind := "type_error." + typeErr.Type.Kind().String()
		message := "value is not a valid " + typeErr.Type.Kind().String()
		if typeErr.Type.Kind() == reflect.Int {
			kind, message = "type_error.integer", "value is not a valid integer"
		}
		return validationErrorResponse(&distribution.ValidationError{Fields: []distribution.FieldError{{
			Field: typeErr.Field, Message: message, Type: kind,
		}}})
	}

	return validationErrorPayload{Detail: []errorDetail{{
		Loc:  []string{"body"},
		Msg:  "request body must be a JSON object",
		Type: "value_error.jsondecode",
	}}}
}

func fieldErrorFromTag(fieldErr validator.FieldError) distribution.FieldError {
	switch fieldErr.Tag() {
	case "required":
		return distribution.FieldError{Field: fieldErr.Field(), Message: "field required", Type: "value_error.missing"}
	case "min":
		return distribution.FieldError{
			Field:   fieldErr.Field(),
			Message: "ensure this value is greater than or equal to " + fieldErr.Param(),
			Type:    "value_error.number.not_ge",
		}
	default:
		return distribution.FieldError{Field: fieldErr.Field(), Message: fieldErr.Error(), Type: "value_error." + fieldErr.Tag()}
	}
}

var registerFieldNamesOnce sync.Once

// registerJSONFieldNames makes validator report json names instead of Go field names.
func registerJSONFieldNames() {
	registerFieldNamesOnce.Do(func() {
		engine, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		engine.RegisterTagNameFunc(func(field reflect.StructField) string {
			name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
}
