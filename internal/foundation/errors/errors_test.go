package errors

import (
	stdErrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSeverityFollowsCategory(t *testing.T) {
	tests := []struct {
		builder  *ErrorBuilder
		category ErrorCategory
		severity ErrorSeverity
	}{
		{ConfigError("x"), CategoryConfig, SeverityFatal},
		{ValidationError("x"), CategoryValidation, SeverityFatal},
		{NotFoundError("x"), CategoryNotFound, SeverityError},
		{NewError(CategoryContent, "x"), CategoryContent, SeverityFatal},
		{AssetError("x"), CategoryAsset, SeverityWarning},
		{NewError(CategoryTemplate, "x"), CategoryTemplate, SeverityFatal},
		{ToolchainError("x"), CategoryToolchain, SeverityFatal},
		{VerificationWarning("x"), CategoryVerification, SeverityWarning},
		{RuntimeError("x"), CategoryRuntime, SeverityFatal},
		{DaemonError("x"), CategoryDaemon, SeverityFatal},
		{InternalError("x"), CategoryInternal, SeverityFatal},
		{NewError("made_up", "x"), "made_up", SeverityError},
	}
	for _, tt := range tests {
		t.Run(string(tt.category), func(t *testing.T) {
			err := tt.builder.Build()
			assert.Equal(t, tt.category, err.Category())
			assert.Equal(t, tt.severity, err.Severity())
			assert.Equal(t, RetryNever, err.RetryStrategy())
		})
	}
}

func TestBuilderOverrides(t *testing.T) {
	cause := stdErrors.New("connection reset")
	err := WrapError(cause, CategoryNetwork, "fetch categories").
		Warning().
		Retryable().
		WithContext("url", "https://cms.example.com/api/content-categories").
		WithContext("attempt", 2).
		Build()

	assert.Equal(t, SeverityWarning, err.Severity())
	assert.True(t, err.IsTransient())
	assert.False(t, err.IsFatal())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "[network:warning] fetch categories: connection reset", err.Error())

	url, ok := err.Context().GetString("url")
	require.True(t, ok)
	assert.Equal(t, "https://cms.example.com/api/content-categories", url)
	attempt, ok := err.Context().Get("attempt")
	require.True(t, ok)
	assert.Equal(t, 2, attempt)
	_, ok = err.Context().GetString("attempt")
	assert.False(t, ok)
}

func TestBuiltErrorsDoNotShareContext(t *testing.T) {
	b := ToolchainError("build command failed").WithContext("dir", "templates/news")
	first := b.Build()
	second := b.WithContext("exit_code", 1).Build()

	_, ok := first.Context().Get("exit_code")
	assert.False(t, ok)
	code, ok := second.Context().Get("exit_code")
	require.True(t, ok)
	assert.Equal(t, 1, code)
}

func TestHelpersSeeThroughWrapping(t *testing.T) {
	inner := NewError(CategoryTemplate, "template directory missing").Build()
	wrapped := fmt.Errorf("stage resolving_template: %w", inner)

	got, ok := AsClassified(wrapped)
	require.True(t, ok)
	assert.Same(t, inner, got)
	assert.True(t, HasCategory(wrapped, CategoryTemplate))
	assert.False(t, HasCategory(wrapped, CategoryContent))
	assert.True(t, HasSeverity(wrapped, SeverityFatal))
	assert.Equal(t, CategoryTemplate, GetCategory(wrapped))

	plain := stdErrors.New("plain")
	assert.Equal(t, CategoryInternal, GetCategory(plain))
	assert.Equal(t, RetryNever, GetRetryStrategy(plain))
	assert.False(t, HasCategory(plain, CategoryInternal))
	assert.Equal(t, RetryBackoff, GetRetryStrategy(fmt.Errorf("x: %w", RuntimeError("queue full").Retryable().Build())))
}
