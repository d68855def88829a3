package pipeline

import (
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"runtime/debug"

	"git.home.luguber.info/inful/sitebuilder/internal/assets"
	"git.home.luguber.info/inful/sitebuilder/internal/config"
	"git.home.luguber.info/inful/sitebuilder/internal/content"
	"git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
	"git.home.luguber.info/inful/sitebuilder/internal/metrics"
	"git.home.luguber.info/inful/sitebuilder/internal/site"
	"git.home.luguber.info/inful/sitebuilder/internal/templates"
	"git.home.luguber.info/inful/sitebuilder/internal/toolchain"
	"git.home.luguber.info/inful/sitebuilder/internal/verify"
)

// Coordinator drives single-site builds. It is safe for concurrent use:
// builds that resolve to the same template directory are serialized.
type Coordinator struct {
	cfg       *config.Config
	registry  *templates.Registry
	locks     *templates.Locks
	runner    toolchain.Runner
	verifier  *verify.Verifier
	content   *content.Client
	assetHTTP *http.Client
	recorder  metrics.Recorder
	observer  BuildObserver
	logger    *slog.Logger
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithRunner replaces the toolchain runner.
func WithRunner(r toolchain.Runner) Option {
	return func(c *Coordinator) {
		if r != nil {
			c.runner = r
		}
	}
}

// WithContentClient injects a prebuilt content client.
func WithContentClient(cl *content.Client) Option {
	return func(c *Coordinator) { c.content = cl }
}

// WithAssetHTTPClient sets the HTTP client used for image downloads.
func WithAssetHTTPClient(hc *http.Client) Option {
	return func(c *Coordinator) { c.assetHTTP = hc }
}

// WithLocks shares a lock table between coordinators.
func WithLocks(l *templates.Locks) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.locks = l
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(c *Coordinator) {
		if r != nil {
			c.recorder = r
		}
	}
}

// WithObserver adds a build observer.
func WithObserver(o BuildObserver) Option {
	return func(c *Coordinator) {
		if o != nil {
			c.observer = multiObserver{c.observer, o}
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewCoordinator wires a coordinator from configuration.
func NewCoordinator(cfg *config.Config, opts ...Option) *Coordinator {
	c := &Coordinator{
		cfg:      cfg,
		locks:    templates.NewLocks(),
		recorder: metrics.NoopRecorder{},
		observer: NoopObserver{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.observer = multiObserver{recorderObserver{rec: c.recorder}, c.observer}
	c.registry = templates.NewRegistry(cfg.Templates, c.logger)
	c.verifier = verify.New(cfg.Verify, c.logger)
	if c.runner == nil {
		c.runner = toolchain.NewCommandRunner(cfg.Toolchain,
			toolchain.WithRecorder(c.recorder), toolchain.WithLogger(c.logger))
	}
	return c
}

// Registry exposes the template registry.
func (c *Coordinator) Registry() *templates.Registry { return c.registry }

// buildState carries mutable state across stages.
type buildState struct {
	req      Request
	cfg      *config.Config
	report   *BuildReport
	recorder metrics.Recorder
	observer BuildObserver
	logger   *slog.Logger

	template   *templates.Resolution
	release    func()
	client     *content.Client
	bundle     *content.Bundle
	normalized *content.Normalized
	articles   []site.Article
	stats      assets.Stats
	verified   *verify.Result
}

func (bs *buildState) templateDir() string {
	if bs.template == nil {
		return ""
	}
	return bs.template.Dir
}

func (bs *buildState) distPath() string {
	if bs.template == nil {
		return ""
	}
	return filepath.Join(bs.template.Dir, bs.cfg.Toolchain.OutputDir)
}

// Build runs the whole pipeline for one site. It never returns an error and
// never panics: every path resolves to a BuildResult.
func (c *Coordinator) Build(ctx context.Context, req Request) (res *BuildResult) {
	logger := c.logger.With(logfields.Site(req.Site.Domain), logfields.Template(req.Site.Template))
	if req.BuildID != "" {
		logger = logger.With(logfields.JobID(req.BuildID))
	}
	bs := &buildState{
		req:      req,
		cfg:      c.cfg,
		report:   newBuildReport(req.Site.Domain, req.Site.Template),
		recorder: c.recorder,
		observer: c.observer,
		logger:   logger,
		client:   c.content,
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Error("Build panicked", slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
			err := errors.InternalError(fmt.Sprintf("build panicked: %v", r)).Build()
			bs.report.AddIssue(IssueStagePanic, "", SeverityError, err.Error(), false, err)
			res = c.finish(bs)
		}
	}()
	defer func() {
		if bs.release != nil {
			bs.release()
		}
	}()

	logger.Info("Build started")
	_ = runStages(ctx, bs, c.stages())
	return c.finish(bs)
}

func (c *Coordinator) stages() []StageDef {
	return []StageDef{
		{StageResolveTemplate, c.stageResolveTemplate},
		{StageFetching, c.stageFetch},
		{StageNormalizing, c.stageNormalize},
		{StageMaterializingAssets, c.stageMaterialize},
		{StageWritingSiteData, c.stageWriteSiteData},
		{StageBuilding, c.stageBuild},
		{StageVerifying, c.stageVerify},
	}
}

// finish derives the outcome, notifies observers and assembles the result.
func (c *Coordinator) finish(bs *buildState) *BuildResult {
	r := bs.report
	if bs.template != nil {
		r.Template = bs.template.ID
	}
	r.ImagesDownloaded = bs.stats.Downloaded
	r.TotalImages = bs.stats.Total
	r.finish()

	res := &BuildResult{
		Success:          r.Outcome == OutcomeSuccess || r.Outcome == OutcomeWarning,
		DistPath:         bs.distPath(),
		ImagesDownloaded: bs.stats.Downloaded,
		TotalImages:      bs.stats.Total,
		Site:             bs.req.Site.Domain,
		Template:         r.Template,
		DurationMS:       r.Duration().Milliseconds(),
		Report:           r,
	}
	if len(r.Errors) > 0 {
		fatal := r.Errors[0]
		res.Err = fatal
		res.Error = fatal.Error()
		var se *StageError
		if stdErrors.As(fatal, &se) {
			res.Error = se.Err.Error()
			res.FailedStage = string(se.Stage)
		}
	} else if bs.verified != nil {
		res.HasIndex = bs.verified.HasIndex
		res.HasArticles = bs.verified.HasArticles
		res.HasCategories = bs.verified.HasCategories
		res.ArticleCount = bs.verified.ArticleCount
		res.CategoryCount = bs.verified.CategoryCount
	}
	for _, w := range r.Warnings {
		res.Warnings = append(res.Warnings, w.Error())
	}

	if c.cfg.Build.PersistReport && bs.templateDir() != "" {
		if err := r.Persist(bs.templateDir()); err != nil {
			bs.logger.Warn("Failed to persist build report", logfields.Error(err))
		}
	}
	bs.observer.OnBuildComplete(r)

	attrs := []any{slog.String("outcome", string(r.Outcome)), logfields.DurationMS(float64(res.DurationMS))}
	if res.Success {
		bs.logger.Info("Build finished", attrs...)
	} else {
		bs.logger.Error("Build failed", append(attrs, slog.String("failed_stage", res.FailedStage), slog.String("error", res.Error))...)
	}
	return res
}
