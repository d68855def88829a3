package assets

import (
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"git.home.luguber.info/inful/sitebuilder/internal/config"
	"git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
	"git.home.luguber.info/inful/sitebuilder/internal/metrics"
	"git.home.luguber.info/inful/sitebuilder/internal/site"
)

// ErrAsset marks a single image that could not be materialized.
var ErrAsset = stdErrors.New("asset materialization failed")

// Job tracks one distinct source reference through materialization.
type Job struct {
	SourceRef       string `json:"sourceRef"`
	DestinationPath string `json:"destinationPath,omitempty"`
	PublicPath      string `json:"publicPath,omitempty"`
	Materialized    bool   `json:"materialized"`
	Reused          bool   `json:"reused,omitempty"`
	Err             error  `json:"-"`
}

// Stats is a snapshot of the run counters. Downloaded never exceeds Total.
type Stats struct {
	Downloaded int `json:"imagesDownloaded"`
	Total      int `json:"totalImages"`
}

// Result is the outcome of materializing a set of articles.
type Result struct {
	Articles []site.Article
	Stats    Stats
	Failures []Job
}

// Materializer turns inline and remote images into files under one directory
// and rewrites references to the public path. One instance serves one build run:
// each distinct source is materialized at most once across all Materialize calls.
type Materializer struct {
	dir         string
	urlPrefix   string
	mediaBase   *url.URL
	client      *http.Client
	limiter     *rate.Limiter
	namer       Namer
	concurrency int
	maxBytes    int64
	timeout     time.Duration
	recorder    metrics.Recorder
	logger      *slog.Logger

	mu   sync.Mutex
	jobs map[string]*entry

	total      atomic.Int64
	downloaded atomic.Int64
}

type entry struct {
	once sync.Once
	job  Job
}

// Option customizes a Materializer.
type Option func(*Materializer)

// WithHTTPClient replaces the download client.
func WithHTTPClient(c *http.Client) Option {
	return func(m *Materializer) {
		if c != nil {
			m.client = c
		}
	}
}

// WithMediaBase sets the URL that relative media references resolve against.
func WithMediaBase(u *url.URL) Option {
	return func(m *Materializer) { m.mediaBase = u }
}

// WithNamer overrides the configured naming strategy.
func WithNamer(n Namer) Option {
	return func(m *Materializer) {
		if n != nil {
			m.namer = n
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(m *Materializer) {
		if r != nil {
			m.recorder = r
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Materializer) {
		if l != nil {
			m.logger = l
		}
	}
}

// New creates a materializer writing into dir.
func New(cfg config.AssetsConfig, dir string, opts ...Option) *Materializer {
	m := &Materializer{
		dir:         dir,
		urlPrefix:   "/" + strings.Trim(cfg.URLPrefix, "/"),
		client:      &http.Client{},
		namer:       NamerFor(cfg.Naming),
		concurrency: cfg.Concurrency,
		maxBytes:    cfg.MaxBytes,
		timeout:     cfg.TimeoutDuration(),
		recorder:    metrics.NoopRecorder{},
		logger:      slog.Default(),
		jobs:        map[string]*entry{},
	}
	if m.urlPrefix == "/" {
		m.urlPrefix = ""
	}
	if m.concurrency <= 0 {
		m.concurrency = 4
	}
	if m.maxBytes <= 0 {
		m.maxBytes = 20 << 20
	}
	if cfg.RatePerSecond > 0 {
		burst := int(cfg.RatePerSecond)
		if burst < 1 {
			burst = 1
		}
		m.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Stats returns the current counters.
func (m *Materializer) Stats() Stats {
	return Stats{Downloaded: int(m.downloaded.Load()), Total: int(m.total.Load())}
}

// articleRefs lists the references found in one article.
type articleRefs struct {
	featured string
	html     []string
	markdown []string
}

// Materialize processes featured images and content images of every article.
// Failures never abort the run: content keeps its original reference and a
// failed featured image becomes nil.
func (m *Materializer) Materialize(ctx context.Context, articles []site.Article) (*Result, error) {
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "create asset directory").
			WithContext("path", m.dir).
			Build()
	}

	refs := make([]articleRefs, len(articles))
	kinds := map[string]string{} // ref -> metrics kind, first seen wins
	var order []string
	add := func(ref, kind string) {
		if _, ok := kinds[ref]; ok {
			return
		}
		kinds[ref] = kind
		order = append(order, ref)
	}
	for i, a := range articles {
		if a.FeaturedImage != nil && !a.FeaturedImage.IsLocal() {
			refs[i].featured = a.FeaturedImage.Value
			add(a.FeaturedImage.Value, "featured")
		}
		for _, src := range htmlImageSources(a.Content) {
			if !site.IsLocalPath(src) {
				refs[i].html = append(refs[i].html, src)
				add(src, "content")
			}
		}
		for _, dest := range markdownImageDestinations(a.Content) {
			if !site.IsLocalPath(dest) {
				refs[i].markdown = append(refs[i].markdown, dest)
				add(dest, "content")
			}
		}
	}

	resolved := make(map[string]Job, len(order))
	var resolvedMu sync.Mutex
	var g errgroup.Group
	g.SetLimit(m.concurrency)
	for _, ref := range order {
		g.Go(func() error {
			job := m.materialize(ctx, ref, kinds[ref])
			resolvedMu.Lock()
			resolved[ref] = job
			resolvedMu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	mapping := make(map[string]string, len(resolved))
	var failures []Job
	for _, ref := range order {
		job := resolved[ref]
		if job.Materialized {
			mapping[ref] = job.PublicPath
		} else {
			failures = append(failures, job)
		}
	}

	out := make([]site.Article, len(articles))
	for i, a := range articles {
		r := refs[i]
		if r.featured != "" {
			if p, ok := mapping[r.featured]; ok {
				a.FeaturedImage = &site.ImageRef{Kind: site.ImageLocal, Value: p}
			} else {
				a.FeaturedImage = nil
			}
		}
		if len(r.html) > 0 {
			a.Content = rewriteHTMLImages(a.Content, mapping)
		}
		if len(r.markdown) > 0 {
			a.Content = rewriteMarkdownImages(a.Content, mapping)
		}
		out[i] = a
	}

	stats := m.Stats()
	m.logger.Info("Assets materialized",
		slog.Int("downloaded", stats.Downloaded),
		slog.Int("total", stats.Total),
		slog.Int("failed", len(failures)))
	return &Result{Articles: out, Stats: stats, Failures: failures}, nil
}

// materialize runs at most once per distinct reference; concurrent callers for
// the same reference wait for the first one and share its job.
func (m *Materializer) materialize(ctx context.Context, ref, kind string) Job {
	m.mu.Lock()
	e, ok := m.jobs[ref]
	if !ok {
		e = &entry{}
		m.jobs[ref] = e
	}
	m.mu.Unlock()

	e.once.Do(func() {
		m.total.Add(1)
		start := time.Now()
		e.job = m.process(ctx, ref)
		m.recorder.IncAssetResult(kind, e.job.Materialized)
		if e.job.Materialized {
			m.downloaded.Add(1)
			m.logger.Debug("Image materialized",
				logfields.Asset(ref),
				logfields.Path(e.job.PublicPath),
				logfields.DurationMS(float64(time.Since(start).Milliseconds())))
			return
		}
		m.logger.Warn("Image skipped", logfields.Asset(ref), logfields.Error(e.job.Err))
	})
	return e.job
}

func (m *Materializer) process(ctx context.Context, ref string) Job {
	job := Job{SourceRef: ref}
	fail := func(err error) Job {
		job.Err = errors.WrapError(fmt.Errorf("%w: %w", ErrAsset, err), errors.CategoryAsset, "image materialization failed").
			Warning().
			WithContext("source", truncateRef(ref)).
			Build()
		return job
	}

	src, err := m.source(ref)
	if err != nil {
		return fail(err)
	}

	base := m.namer.Name(src)
	if m.namer.Reusable() {
		if existing, ok := existingFile(m.dir, base); ok {
			job.DestinationPath = existing
			job.PublicPath = m.publicPath(filepath.Base(existing))
			job.Materialized, job.Reused = true, true
			return job
		}
	}

	var p *payload
	if site.ClassifyImage(src) == site.ImageInline {
		p, err = decodeDataURI(src, m.maxBytes)
	} else {
		p, err = m.download(ctx, src)
	}
	if err != nil {
		return fail(err)
	}

	dest, err := p.place(m.dir, base)
	if err != nil {
		return fail(err)
	}
	job.DestinationPath = dest
	job.PublicPath = m.publicPath(filepath.Base(dest))
	job.Materialized = true
	return job
}

// source resolves a reference to a data URI or an absolute http(s) URL.
func (m *Materializer) source(ref string) (string, error) {
	switch site.ClassifyImage(ref) {
	case site.ImageInline:
		return ref, nil
	case site.ImageRemote:
		if strings.HasPrefix(ref, "//") {
			return "https:" + ref, nil
		}
		return ref, nil
	case site.ImageLocal:
		if m.mediaBase == nil {
			return "", fmt.Errorf("local reference %q cannot be downloaded", ref)
		}
	}
	// Media references (and local-looking media object URLs) resolve against the content API.
	if m.mediaBase == nil {
		return "", fmt.Errorf("relative reference %q without a content base URL", ref)
	}
	rel, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("parse reference: %w", err)
	}
	abs := mediaURL(m.mediaBase, rel)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", abs.Scheme)
	}
	return abs.String(), nil
}

// mediaURL places a path-only reference under the content base path, the
// same way the content client builds its endpoints, so a content store
// mounted below a path prefix serves its media from that prefix too.
func mediaURL(base, rel *url.URL) *url.URL {
	if rel.Scheme != "" || rel.Host != "" {
		return base.ResolveReference(rel)
	}
	u := *base
	u.Path = strings.TrimSuffix(base.Path, "/") + "/" + strings.TrimPrefix(rel.Path, "/")
	u.RawPath = ""
	u.RawQuery = rel.RawQuery
	u.Fragment = ""
	return &u
}

func (m *Materializer) publicPath(name string) string {
	return m.urlPrefix + "/" + name
}

func truncateRef(ref string) string {
	if len(ref) > 120 {
		return ref[:120] + "..."
	}
	return ref
}
