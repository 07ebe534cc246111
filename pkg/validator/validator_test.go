package validator

import (
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
)

type sample struct {
	Content string `validate:"required,max=5"`
	Kind    string `validate:"omitempty,oneof=LIKE LOVE"`
}

func TestFormatValidationError(t *testing.T) {
	v := validator.New()

	err := v.Struct(sample{})
	assert.Equal(t, "Content is required", FormatValidationError(err))

	err = v.Struct(sample{Content: "too long", Kind: "MEH"})
	msg := FormatValidationError(err)
	assert.Contains(t, msg, "Content must be at most 5 characters")
	assert.Contains(t, msg, "Reaction must be one of [LIKE LOVE]")
}

func TestFormatValidationErrorPassthrough(t *testing.T) {
	assert.Equal(t, "boom", FormatValidationError(errors.New("boom")))
}
