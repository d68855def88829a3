package content

import (
	"context"
	stdErrors "errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/sitebuilder/internal/config"
	"git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
)

func contentServer(t *testing.T, handlers map[string]http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	for path, h := range handlers {
		mux.HandleFunc(path, h)
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func jsonBody(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}
}

func TestClientFetchAllResources(t *testing.T) {
	var authHeaders atomic.Value
	srv := contentServer(t, map[string]http.HandlerFunc{
		"/api/content-articles": func(w http.ResponseWriter, r *http.Request) {
			authHeaders.Store(r.Header.Get("Authorization"))
			assert.Equal(t, "*", r.URL.Query().Get("populate"))
			jsonBody(`{"data":[{"id":1,"title":"Flat"},{"id":2,"attributes":{"title":"Wrapped"}}]}`)(w, r)
		},
		"/api/content-categories": jsonBody(`{"data":[{"id":10,"name":"Tech"}]}`),
		"/api/content-authors":    jsonBody(`{"data":[]}`),
	})

	c, err := NewClient(config.ContentConfig{BaseURL: srv.URL + "/", Token: "s3cret"})
	require.NoError(t, err)

	b, err := c.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, b.Articles, 2)
	assert.Equal(t, ShapeFlat, b.Articles[0].Shape)
	assert.Equal(t, ShapeWrapped, b.Articles[1].Shape)
	assert.Equal(t, "Wrapped", b.Articles[1].String("title"))
	assert.Equal(t, 2, b.Articles[1].ID)
	assert.Len(t, b.Categories, 1)
	assert.Empty(t, b.Authors)
	assert.Equal(t, "Bearer s3cret", authHeaders.Load())
}

func TestClientNoTokenNoAuthorizationHeader(t *testing.T) {
	srv := contentServer(t, map[string]http.HandlerFunc{
		"/api/content-articles": func(w http.ResponseWriter, r *http.Request) {
			assert.Empty(t, r.Header.Get("Authorization"))
			jsonBody(`{"data":[]}`)(w, r)
		},
	})
	c, err := NewClient(config.ContentConfig{BaseURL: srv.URL})
	require.NoError(t, err)
	_, err = c.List(context.Background(), ResourceArticles)
	require.NoError(t, err)
}

func TestClientFetchFailureIsFatal(t *testing.T) {
	srv := contentServer(t, map[string]http.HandlerFunc{
		"/api/content-articles":   jsonBody(`{"data":[]}`),
		"/api/content-categories": func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusForbidden) },
		"/api/content-authors":    jsonBody(`{"data":[]}`),
	})
	c, err := NewClient(config.ContentConfig{BaseURL: srv.URL})
	require.NoError(t, err)

	b, err := c.Fetch(context.Background())
	require.Error(t, err)
	assert.Nil(t, b)
	assert.ErrorIs(t, err, ErrFetch)
	assert.True(t, errors.HasCategory(err, errors.CategoryContent))

	var fe *FetchError
	require.True(t, stdErrors.As(err, &fe))
	assert.Equal(t, ResourceCategories, fe.Resource)
	assert.Equal(t, http.StatusForbidden, fe.StatusCode)
	assert.False(t, fe.Transient())
}

func TestClientUndecodableBody(t *testing.T) {
	srv := contentServer(t, map[string]http.HandlerFunc{
		"/api/content-articles": jsonBody(`<html>maintenance</html>`),
	})
	c, err := NewClient(config.ContentConfig{BaseURL: srv.URL})
	require.NoError(t, err)
	_, err = c.List(context.Background(), ResourceArticles)
	assert.ErrorIs(t, err, ErrFetch)
}

func TestClientResponseSizeCap(t *testing.T) {
	srv := contentServer(t, map[string]http.HandlerFunc{
		"/api/content-articles": jsonBody(`{"data":[{"id":1,"title":"this body is larger than the cap"}]}`),
	})
	c, err := NewClient(config.ContentConfig{BaseURL: srv.URL, MaxResponseBytes: 16})
	require.NoError(t, err)
	_, err = c.List(context.Background(), ResourceArticles)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds")
}

func TestClientRetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	srv := contentServer(t, map[string]http.HandlerFunc{
		"/api/content-articles": func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) == 1 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			jsonBody(`{"data":[{"id":1}]}`)(w, r)
		},
	})
	c, err := NewClient(config.ContentConfig{
		BaseURL: srv.URL,
		Retry:   config.RetryConfig{MaxRetries: 2, Backoff: config.RetryBackoffFixed, InitialDelay: "1ms", MaxDelay: "1ms"},
	})
	require.NoError(t, err)

	records, err := c.List(context.Background(), ResourceArticles)
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClientDoesNotRetryByDefault(t *testing.T) {
	var calls atomic.Int32
	srv := contentServer(t, map[string]http.HandlerFunc{
		"/api/content-articles": func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusBadGateway)
		},
	})
	c, err := NewClient(config.ContentConfig{BaseURL: srv.URL})
	require.NoError(t, err)
	_, err = c.List(context.Background(), ResourceArticles)
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestNewClientValidatesBaseURL(t *testing.T) {
	_, err := NewClient(config.ContentConfig{})
	assert.True(t, errors.HasCategory(err, errors.CategoryConfig))

	_, err = NewClient(config.ContentConfig{BaseURL: "cms.example.com"})
	assert.True(t, errors.HasCategory(err, errors.CategoryValidation))
}
