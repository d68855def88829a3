package content

import (
	"context"
	"encoding/json"
	stdErrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/sitebuilder/internal/config"
	"git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
	"git.home.luguber.info/inful/sitebuilder/internal/retry"
)

// ErrFetch marks any failure to retrieve content; every FetchError matches it.
var ErrFetch = stdErrors.New("content fetch failed")

// Resource names of the three list endpoints.
const (
	ResourceArticles   = "content-articles"
	ResourceCategories = "content-categories"
	ResourceAuthors    = "content-authors"
)

// FetchError describes a failed list request.
type FetchError struct {
	Resource   string
	URL        string
	StatusCode int // 0 for transport and decode failures
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: HTTP %d", e.Resource, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.Resource, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrFetch) true for every FetchError.
func (e *FetchError) Is(target error) bool { return target == ErrFetch }

// Transient reports whether a retry could plausibly succeed.
func (e *FetchError) Transient() bool {
	switch {
	case e.StatusCode == http.StatusTooManyRequests, e.StatusCode >= 500:
		return true
	case e.StatusCode != 0:
		return false
	}
	var netErr net.Error
	return stdErrors.As(e.Err, &netErr)
}

// Bundle holds the three raw record lists of one fetch.
type Bundle struct {
	Articles   []Record
	Categories []Record
	Authors    []Record
}

type listResponse struct {
	Data []Record `json:"data"`
}

// Client talks to the content store's REST API.
type Client struct {
	baseURL  *url.URL
	token    string
	http     *http.Client
	maxBytes int64
	policy   retry.Policy
	logger   *slog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewHTTPClient creates an HTTP client that only follows same-host redirects.
func NewHTTPClient(cfg config.ContentConfig) *http.Client {
	return &http.Client{
		Timeout: cfg.TimeoutDuration(),
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) == 0 {
				return nil
			}
			if req.URL.Host != via[0].URL.Host {
				return stdErrors.New("redirect to different host blocked")
			}
			if len(via) >= 5 {
				return stdErrors.New("too many redirects")
			}
			return nil
		},
	}
}

// NewClient validates the base URL and builds a client from content config.
func NewClient(cfg config.ContentConfig, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.ConfigError("content base URL is not configured").Build()
	}
	base, err := url.Parse(strings.TrimSuffix(cfg.BaseURL, "/"))
	if err != nil || (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return nil, errors.ValidationError("invalid content base URL").
			WithContext("base_url", cfg.BaseURL).
			Build()
	}
	maxBytes := cfg.MaxResponseBytes
	if maxBytes <= 0 {
		maxBytes = 32 << 20
	}
	c := &Client{
		baseURL:  base,
		token:    cfg.Token,
		http:     NewHTTPClient(cfg),
		maxBytes: maxBytes,
		policy:   retry.FromConfig(cfg.Retry),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the normalized content API base URL.
func (c *Client) BaseURL() *url.URL {
	u := *c.baseURL
	return &u
}

// Fetch issues the articles, categories and authors list requests concurrently.
// The first failure cancels the sibling requests; partial bundles are never returned.
func (c *Client) Fetch(ctx context.Context) (*Bundle, error) {
	var bundle Bundle
	g, gctx := errgroup.WithContext(ctx)
	targets := []struct {
		resource string
		dst      *[]Record
	}{
		{ResourceArticles, &bundle.Articles},
		{ResourceCategories, &bundle.Categories},
		{ResourceAuthors, &bundle.Authors},
	}
	for _, t := range targets {
		g.Go(func() error {
			records, err := c.List(gctx, t.resource)
			if err != nil {
				return err
			}
			*t.dst = records
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		var fe *FetchError
		b := errors.WrapError(err, errors.CategoryContent, "content fetch failed").Fatal()
		if stdErrors.As(err, &fe) {
			b = b.WithContext("resource", fe.Resource).WithContext("url", fe.URL)
			if fe.StatusCode != 0 {
				b = b.WithContext("status", fe.StatusCode)
			}
		}
		return nil, b.Build()
	}
	c.logger.Info("Content fetched",
		slog.Int("articles", len(bundle.Articles)),
		slog.Int("categories", len(bundle.Categories)),
		slog.Int("authors", len(bundle.Authors)))
	return &bundle, nil
}

// List fetches one resource with related entities populated, retrying transient failures.
func (c *Client) List(ctx context.Context, resource string) ([]Record, error) {
	endpoint := c.endpoint(resource)
	var records []Record
	err := c.policy.Do(ctx, IsTransient, func(attempt int) error {
		if attempt > 0 {
			c.logger.Warn("Retrying content request", logfields.URL(endpoint), slog.Int("attempt", attempt))
		}
		var err error
		records, err = c.list(ctx, resource, endpoint)
		return err
	})
	if err != nil {
		var fe *FetchError
		if !stdErrors.As(err, &fe) {
			err = &FetchError{Resource: resource, URL: endpoint, Err: err}
		}
		return nil, err
	}
	return records, nil
}

func (c *Client) endpoint(resource string) string {
	u := c.BaseURL()
	u.Path = strings.TrimSuffix(u.Path, "/") + "/api/" + resource
	u.RawQuery = "populate=*"
	return u.String()
}

func (c *Client) list(ctx context.Context, resource, endpoint string) ([]Record, error) {
	fail := func(status int, err error) error {
		return &FetchError{Resource: resource, URL: endpoint, StatusCode: status, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, fail(0, fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fail(0, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fail(resp.StatusCode, fmt.Errorf("unexpected status %s", resp.Status))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return nil, fail(0, fmt.Errorf("read response: %w", err))
	}
	if int64(len(data)) > c.maxBytes {
		return nil, fail(0, fmt.Errorf("response exceeds %d bytes", c.maxBytes))
	}

	var payload listResponse
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fail(0, fmt.Errorf("decode response: %w", err))
	}
	c.logger.Debug("Content list fetched", logfields.URL(endpoint), logfields.Count(len(payload.Data)))
	return payload.Data, nil
}

// IsTransient reports whether err is a content fetch failure worth retrying.
func IsTransient(err error) bool {
	var fe *FetchError
	if stdErrors.As(err, &fe) {
		return fe.Transient()
	}
	return false
}
