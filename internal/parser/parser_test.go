package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragdocs/docuqa/internal/apperr"
)

func TestParseTextStripsBOM(t *testing.T) {
	content := append([]byte{0xEF, 0xBB, 0xBF}, []byte("hello world")...)
	result, err := Parse("txt", content)
	require.NoError(t, err)
	assert.Equal(t, "hello world", result.Text)
}

func TestParseTextRejectsInvalidUTF8(t *testing.T) {
	_, err := Parse("txt", []byte{0xff, 0xfe, 0xfd})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestParseRejectsUnsupportedType(t *testing.T) {
	_, err := Parse("docx", []byte("whatever"))
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}
