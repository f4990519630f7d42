package common

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidator(t *testing.T) {
	var nilTags []string
	v := NewValidator().
		Field("title", "  ", Required).
		Field("subject", strings.Repeat("é", 5), MaxLength(4)).
		Field("date", "2026-13-01", ISODate).
		Field("tags", nilTags, NotNil)

	assert.True(t, v.HasErrors())
	assert.Len(t, v.Errors(), 4)
	err := v.Error()
	assert.True(t, errors.Is(err, ErrValidation))
	assert.Contains(t, err.Error(), "title")
	assert.Contains(t, v.ErrorMessage(), "at most 4 characters")
}

func TestValidator_OK(t *testing.T) {
	v := NewValidator().
		Field("title", "Calc I", Required, MaxLength(200)).
		Field("date", "2026-10-14", ISODate).
		Field("tags", []string{}, NotNil)

	assert.False(t, v.HasErrors())
	assert.NoError(t, v.Error())
	assert.Empty(t, v.ErrorMessage())
}

func TestWrapError(t *testing.T) {
	assert.NoError(t, WrapError(nil, "x"))
	base := errors.New("boom")
	err := WrapError(base, "write out.xlsx")
	assert.ErrorIs(t, err, base)
	assert.Equal(t, "write out.xlsx: boom", err.Error())
}
