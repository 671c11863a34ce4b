package handlers

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "github.com/charlesng35/internai/pkg/errors"
	"github.com/charlesng35/internai/pkg/response"
	"github.com/charlesng35/internai/pkg/validator"
)

const invalidPayload = "invalid request payload"

// fieldMessages renders a failed rule; %[1]s is the field and %[2]s the rule parameter.
var fieldMessages = map[string]string{
	"required":     "%[1]s is required",
	"email":        "%[1]s must be a valid email address",
	"min":          "%[1]s must be at least %[2]s characters",
	"max":          "%[1]s must be at most %[2]s characters",
	"len":          "%[1]s must be exactly %[2]s characters",
	"numeric_code": "%[1]s must contain only digits",
}

// bindAndValidate decodes the JSON body into dest and applies its validate tags.
// On failure the 400 response is already written.
func bindAndValidate[T any](c *gin.Context, dest *T) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, apperrors.NewBadRequest("invalid JSON payload"))
		return false
	}
	if err := validator.ValidateStruct(dest); err != nil {
		response.Error(c, apperrors.NewBadRequest(describeValidation(err)))
		return false
	}
	return true
}

func describeValidation(err error) string {
	var failures validator.ValidationErrors
	if !errors.As(err, &failures) || len(failures) == 0 {
		return invalidPayload
	}

	messages := make([]string, 0, len(failures))
	for _, failure := range failures {
		field := strings.ToLower(strings.ReplaceAll(failure.Field, "_", " "))
		if field == "" {
			field = "field"
		}
		if format, ok := fieldMessages[failure.Tag]; ok {
			messages = append(messages, fmt.Sprintf(format, field, failure.Param))
			continue
		}
		messages = append(messages, strings.TrimSuffix(fmt.Sprintf("%s failed validation: %s=%s", field, failure.Tag, failure.Param), "="))
	}
	return strings.Join(messages, "; ")
}
