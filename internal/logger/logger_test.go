package logger

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: WarnLevel, Output: &buf})
	l.Info("should not appear")
	l.Warn("should appear")
	assert.NotContains(t, buf.String(), "should not appear")
	assert.Contains(t, buf.String(), "should appear")
}

func TestNewJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: InfoLevel, Output: &buf, JSON: true})
	l.Info("hello", "key", "value")
	assert.True(t, strings.HasPrefix(strings.TrimSpace(buf.String()), "{"))
}

func TestFromContextReturnsAttached(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: InfoLevel, Output: &buf})
	ctx := WithContext(context.Background(), l)
	assert.Same(t, l, FromContext(ctx))
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	got := FromContext(context.Background())
	assert.NotNil(t, got)
}
