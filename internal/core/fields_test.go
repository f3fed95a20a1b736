package core

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldSet_Validate(t *testing.T) {
	fs := FieldSet{
		{Name: "caption", Label: "Caption"},
		{Name: "credit", Label: "Credit", Required: true, MaxLength: 5},
		{Name: "notes", Label: "Notes", Type: FieldTextLong},
	}

	t.Run("valid values are trimmed", func(t *testing.T) {
		got, err := fs.Validate(map[string]string{
			"caption": "  hello ",
			"credit":  "me",
			"notes":   "line one\nline two",
		})
		require.NoError(t, err)
		assert.Equal(t, map[string]string{
			"caption": "hello",
			"credit":  "me",
			"notes":   "line one\nline two",
		}, got)
	})

	t.Run("unknown key rejected", func(t *testing.T) {
		_, err := fs.Validate(map[string]string{"credit": "me", "zeta": "x", "bogus": "y"})
		var ve *ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "bogus", ve.Field)
		assert.Equal(t, "bogus is not a field of this file type.", ve.Message)
	})

	t.Run("required field missing", func(t *testing.T) {
		_, err := fs.Validate(map[string]string{"caption": "x", "credit": "  "})
		require.Error(t, err)
		var ve *ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "credit", ve.Field)
		assert.Equal(t, "Credit field is required.", ve.Message)
	})

	t.Run("too long", func(t *testing.T) {
		_, err := fs.Validate(map[string]string{"credit": "abcdef"})
		var ve *ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "Credit cannot be longer than 5 characters.", ve.Message)
	})

	t.Run("default max length applies to text", func(t *testing.T) {
		_, err := fs.Validate(map[string]string{"credit": "x", "caption": strings.Repeat("a", DefaultMaxLength+1)})
		assert.True(t, IsValidation(err))
	})
}

func TestFieldSet_Sorted(t *testing.T) {
	fs := FieldSet{
		{Name: "b", Weight: 1},
		{Name: "a", Weight: 1},
		{Name: "z", Weight: 0},
	}
	sorted := fs.Sorted()
	assert.Equal(t, "z", sorted[0].Name)
	assert.Equal(t, "a", sorted[1].Name)
	assert.Equal(t, "b", sorted[2].Name)
	assert.Equal(t, "b", fs[0].Name, "Sorted must not reorder the receiver")
}
