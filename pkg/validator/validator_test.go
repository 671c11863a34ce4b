package validator

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type signupPayload struct {
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name,omitempty" validate:"required"`
	Password string `validate:"min=6"`
}

func TestValidateStructSuccess(t *testing.T) {
	require.NoError(t, ValidateStruct(signupPayload{Email: "a@example.com", Name: "Ann", Password: "secret1"}))
}

func TestValidateStructFailuresUseJSONNames(t *testing.T) {
	err := ValidateStruct(signupPayload{Email: "invalid", Password: "123"})
	require.Error(t, err)

	var failures ValidationErrors
	require.ErrorAs(t, err, &failures)
	require.Equal(t, ValidationErrors{
		{Field: "email", Tag: "email"},
		{Field: "name", Tag: "required"},
		{Field: "Password", Tag: "min", Param: "6"},
	}, failures)
	require.Contains(t, err.Error(), "Password failed on min=6")
}

func TestNumericCodeRule(t *testing.T) {
	type payload struct {
		Code string `json:"code" validate:"numeric_code=6"`
	}

	require.NoError(t, ValidateStruct(payload{Code: "012345"}))

	for _, code := range []string{"", "12345", "1234567", "12a456", "１２３４５６"} {
		err := ValidateStruct(payload{Code: code})
		require.Error(t, err, code)
		failures := err.(ValidationErrors)
		require.Equal(t, ValidationError{Field: "code", Tag: "numeric_code", Param: "6"}, failures[0], code)
	}
}
