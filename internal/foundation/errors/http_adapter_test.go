package errors

import (
	stdErrors "errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPErrorAdapter_StatusCodeFor(t *testing.T) {
	adapter := NewHTTPErrorAdapter(nil)

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"validation", ValidationError("bad body").Build(), http.StatusBadRequest},
		{"config", ConfigError("bad site config").Build(), http.StatusBadRequest},
		{"not found", NotFoundError("unknown site").Build(), http.StatusNotFound},
		{"template", NewError(CategoryTemplate, "missing template").Build(), http.StatusNotFound},
		{"content", NewError(CategoryContent, "cms down").Build(), http.StatusBadGateway},
		{"toolchain", ToolchainError("exit 1").Build(), http.StatusUnprocessableEntity},
		{"queue full", RuntimeError("queue full").Retryable().Build(), http.StatusServiceUnavailable},
		{"event store", NewError(CategoryEventStore, "closed").Build(), http.StatusServiceUnavailable},
		{"unclassified", stdErrors.New("x"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, adapter.StatusCodeFor(tt.err))
		})
	}
}

func TestHTTPErrorAdapter_FormatErrorResponse(t *testing.T) {
	adapter := NewHTTPErrorAdapter(nil)

	resp := adapter.FormatErrorResponse(RuntimeError("build queue is full").Retryable().WithContext("capacity", 8).Build())
	assert.Equal(t, "build queue is full", resp.Error)
	assert.Equal(t, string(CategoryRuntime), resp.Code)
	assert.True(t, resp.Retryable)
	assert.Equal(t, 8, resp.Details["capacity"])

	resp = adapter.FormatErrorResponse(InternalError("nil pointer in stage").WithContext("stage", "building").Build())
	assert.Equal(t, "internal error", resp.Error)
	assert.Nil(t, resp.Details)

	resp = adapter.FormatErrorResponse(stdErrors.New("raw failure"))
	assert.Equal(t, "raw failure", resp.Error)
	assert.Empty(t, resp.Code)
	assert.False(t, resp.Retryable)

	assert.Equal(t, HTTPErrorResponse{}, adapter.FormatErrorResponse(nil))
}
