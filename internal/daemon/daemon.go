// Package daemon runs sitebuilder as a long-lived build service: an HTTP API
// in front of the build queue, periodic rebuilds, config hot reload and
// result notifications.
package daemon

import (
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"net"
	stdhttp "net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/sitebuilder/internal/api"
	"git.home.luguber.info/inful/sitebuilder/internal/build/queue"
	"git.home.luguber.info/inful/sitebuilder/internal/config"
	"git.home.luguber.info/inful/sitebuilder/internal/eventstore"
	"git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
	"git.home.luguber.info/inful/sitebuilder/internal/metrics"
	"git.home.luguber.info/inful/sitebuilder/internal/notify"
	"git.home.luguber.info/inful/sitebuilder/internal/pipeline"
	"git.home.luguber.info/inful/sitebuilder/internal/version"
)

// Status represents the current state of the daemon.
type Status string

const (
	StatusStopped  Status = "stopped"
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusStopping Status = "stopping"
	StatusError    Status = "error"
)

const shutdownTimeout = 30 * time.Second

// Option customizes a Daemon.
type Option func(*Daemon)

// WithBuilder replaces the pipeline coordinator, mainly for tests.
func WithBuilder(b queue.Builder) Option {
	return func(d *Daemon) { d.builder = b }
}

// WithPublisher replaces the configured result publisher.
func WithPublisher(p notify.Publisher) Option {
	return func(d *Daemon) { d.publisher = p }
}

// WithLogger sets the daemon logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Daemon) {
		if l != nil {
			d.logger = l
		}
	}
}

// Daemon represents the main daemon service.
type Daemon struct {
	config         *config.Config
	configFilePath string
	status         atomic.Value // Status
	startTime      time.Time
	mu             sync.RWMutex
	logger         *slog.Logger

	registry   *prom.Registry
	recorder   metrics.Recorder
	builder    queue.Builder
	buildQueue *queue.BuildQueue
	httpServer *api.Server
	listener   net.Listener
	scheduler  *Scheduler
	watcher    *ConfigWatcher
	publisher  notify.Publisher

	eventStore      eventstore.Store
	buildProjection *eventstore.BuildHistoryProjection
	eventEmitter    *eventstore.Emitter

	serveDone chan error
}

// New wires a daemon from configuration. configFilePath enables hot reload
// when daemon.watch_config is set.
func New(cfg *config.Config, configFilePath string, opts ...Option) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.ConfigError("configuration is required").Build()
	}

	d := &Daemon{
		config:         cfg,
		configFilePath: configFilePath,
		logger:         slog.Default(),
		registry:       metrics.NewRegistry(),
	}
	d.status.Store(StatusStopped)
	for _, opt := range opts {
		opt(d)
	}

	if cfg.Metrics.Enabled {
		d.recorder = metrics.NewPrometheusRecorder(d.registry)
	} else {
		d.recorder = metrics.NoopRecorder{}
	}

	if d.builder == nil {
		d.builder = pipeline.NewCoordinator(cfg,
			pipeline.WithRecorder(d.recorder),
			pipeline.WithLogger(d.logger))
	}

	if err := d.initEventStore(); err != nil {
		return nil, err
	}

	if d.publisher == nil {
		p, err := notify.New(cfg.Notify, d.logger)
		if err != nil {
			// Notifications are optional; the daemon keeps building without them.
			d.logger.Warn("Result notifications disabled", logfields.Error(err))
			p = notify.NoopPublisher{}
		}
		d.publisher = p
	}

	d.buildQueue = queue.New(cfg.Daemon.QueueSize, cfg.Daemon.Workers, d.builder)
	d.buildQueue.ConfigureRetry(cfg.Build.Retry)
	d.buildQueue.SetHistorySize(cfg.Daemon.HistorySize)
	d.buildQueue.SetRecorder(d.recorder)
	d.buildQueue.SetLogger(d.logger)
	d.buildQueue.SetPublisher(d.publisher)
	if d.eventEmitter != nil {
		d.buildQueue.SetEventEmitter(d.eventEmitter)
	}

	d.httpServer = api.NewServer(cfg.Daemon.HTTP.Addr, d.apiOptions())

	scheduler, err := NewScheduler(d.logger)
	if err != nil {
		d.closeStores()
		return nil, err
	}
	d.scheduler = scheduler

	if cfg.Daemon.WatchConfig && configFilePath != "" {
		w, err := NewConfigWatcher(configFilePath, d)
		if err != nil {
			d.closeStores()
			return nil, err
		}
		d.watcher = w
	}

	return d, nil
}

func (d *Daemon) initEventStore() error {
	path := d.config.Daemon.EventStorePath
	if path == "" {
		return nil
	}
	store, err := eventstore.NewSQLiteStore(path)
	if err != nil {
		return err
	}
	d.eventStore = store
	d.buildProjection = eventstore.NewBuildHistoryProjection(store, d.config.Daemon.HistorySize)
	if err := d.buildProjection.Rebuild(context.Background()); err != nil {
		d.logger.Warn("Failed to rebuild build history", logfields.Error(err))
	}
	d.eventEmitter = eventstore.NewEmitter(store, d.buildProjection, d.logger)
	return nil
}

func (d *Daemon) apiOptions() api.Options {
	opts := api.Options{
		Queue:           d.buildQueue,
		Sites:           d.Site,
		BuildsPerMinute: d.config.Daemon.HTTP.BuildsPerMinute,
		Logger:          d.logger,
	}
	if d.eventStore != nil {
		opts.Events = d.eventStore
		opts.History = d.buildProjection
	}
	if d.config.Metrics.Enabled {
		opts.Metrics = metrics.HTTPHandler(d.registry)
		opts.MetricsPath = d.config.Metrics.Path
	}
	return opts
}

// Start brings up every component and returns once the API is listening.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.GetStatus() != StatusStopped {
		return errors.DaemonError(fmt.Sprintf("daemon is not in stopped state: %s", d.GetStatus())).Build()
	}
	d.status.Store(StatusStarting)
	d.startTime = time.Now()
	d.logger.Info("Starting sitebuilder daemon", slog.String("version", version.Version))

	l, err := net.Listen("tcp", d.config.Daemon.HTTP.Addr)
	if err != nil {
		d.status.Store(StatusError)
		return errors.WrapError(err, errors.CategoryDaemon, "failed to start HTTP server").
			WithContext("addr", d.config.Daemon.HTTP.Addr).
			Build()
	}
	d.listener = l
	d.serveDone = make(chan error, 1)
	go func() {
		err := d.httpServer.Serve(l)
		if err != nil && !stdErrors.Is(err, stdhttp.ErrServerClosed) {
			d.logger.Error("HTTP server stopped", logfields.Error(err))
		}
		d.serveDone <- err
	}()

	d.buildQueue.Start(ctx)

	if iv := d.config.Daemon.RebuildIntervalDuration(); iv > 0 {
		if _, err := d.scheduler.SchedulePeriodic(iv, "rebuild-all-sites", func() {
			d.TriggerAll(queue.BuildTypeScheduled)
		}); err != nil {
			d.logger.Error("Failed to schedule periodic rebuilds", logfields.Error(err))
		}
	}
	d.scheduler.Start()

	if d.watcher != nil {
		if err := d.watcher.Start(ctx); err != nil {
			d.logger.Error("Failed to start config watcher", logfields.Error(err))
		}
	}

	d.status.Store(StatusRunning)
	d.logger.Info("Sitebuilder daemon started",
		slog.String("addr", l.Addr().String()),
		slog.Int("sites", len(d.config.Sites)),
		slog.Int("workers", d.config.Daemon.Workers),
		slog.String("rebuild_interval", d.config.Daemon.RebuildInterval))
	return nil
}

// Run starts the daemon, blocks until ctx is canceled, then shuts down.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	return d.Stop(stopCtx)
}

// Stop gracefully shuts down the daemon.
func (d *Daemon) Stop(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch d.GetStatus() {
	case StatusStopped, StatusStopping:
		return nil
	}
	d.status.Store(StatusStopping)
	d.logger.Info("Stopping sitebuilder daemon")

	if d.watcher != nil {
		if err := d.watcher.Stop(); err != nil {
			d.logger.Error("Failed to stop config watcher", logfields.Error(err))
		}
	}
	if err := d.scheduler.Stop(); err != nil {
		d.logger.Error("Failed to stop scheduler", logfields.Error(err))
	}
	if err := d.httpServer.Shutdown(ctx); err != nil {
		d.logger.Error("Failed to stop HTTP server", logfields.Error(err))
	}
	if d.serveDone != nil {
		<-d.serveDone
	}
	d.buildQueue.Stop(ctx)
	d.closeStores()

	d.status.Store(StatusStopped)
	d.logger.Info("Sitebuilder daemon stopped", slog.Duration("uptime", time.Since(d.startTime)))
	return nil
}

func (d *Daemon) closeStores() {
	if d.publisher != nil {
		if err := d.publisher.Close(); err != nil {
			d.logger.Warn("Failed to close result publisher", logfields.Error(err))
		}
	}
	if d.eventStore != nil {
		if err := d.eventStore.Close(); err != nil {
			d.logger.Error("Failed to close event store", logfields.Error(err))
		}
	}
}

// GetStatus returns the current daemon status.
func (d *Daemon) GetStatus() Status {
	status, ok := d.status.Load().(Status)
	if !ok {
		return StatusError
	}
	return status
}

// Addr returns the address the API listens on, once started.
func (d *Daemon) Addr() string {
	if d.listener == nil {
		return ""
	}
	return d.listener.Addr().String()
}

// Queue exposes the build queue.
func (d *Daemon) Queue() *queue.BuildQueue { return d.buildQueue }

// GetConfig returns the active configuration.
func (d *Daemon) GetConfig() *config.Config {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.config
}

// Site looks up a configured site by domain.
func (d *Daemon) Site(domain string) (config.SiteEntry, bool) {
	return d.GetConfig().Site(domain)
}

// TriggerBuild enqueues a build for a configured site and returns the job id.
func (d *Daemon) TriggerBuild(domain string, typ queue.BuildType) (string, error) {
	entry, ok := d.Site(domain)
	if !ok {
		return "", errors.NotFoundError("site is not configured").WithContext("site", domain).Build()
	}
	job := &queue.BuildJob{ID: uuid.NewString(), Type: typ, Site: pipeline.SiteFromEntry(entry)}
	if err := d.buildQueue.Enqueue(job); err != nil {
		return "", err
	}
	return job.ID, nil
}

// TriggerAll enqueues one build per configured site.
func (d *Daemon) TriggerAll(typ queue.BuildType) []string {
	sites := d.GetConfig().Sites
	ids := make([]string, 0, len(sites))
	for _, s := range sites {
		id, err := d.TriggerBuild(s.Domain, typ)
		if err != nil {
			d.logger.Warn("Failed to enqueue build", logfields.Site(s.Domain),
				slog.String("type", string(typ)), logfields.Error(err))
			continue
		}
		ids = append(ids, id)
	}
	d.logger.Info("Triggered builds", slog.String("type", string(typ)), logfields.Count(len(ids)))
	return ids
}

// ReloadConfig swaps in the site table of newConfig and rebuilds every site
// that was added or changed. Other sections only take effect after a restart.
func (d *Daemon) ReloadConfig(newConfig *config.Config) ([]string, error) {
	if newConfig == nil {
		return nil, errors.ConfigError("configuration is required").Build()
	}

	d.mu.Lock()
	old := d.config
	next := *old
	next.Sites = slices.Clone(newConfig.Sites)
	d.config = &next
	d.mu.Unlock()

	changed := changedSites(old.Sites, newConfig.Sites)
	if !sameExceptSites(old, newConfig) {
		d.logger.Warn("Configuration changes outside sites require a restart")
	}
	d.logger.Info("Site table reloaded",
		logfields.Count(len(newConfig.Sites)), slog.Int("changed", len(changed)))

	ids := make([]string, 0, len(changed))
	for _, domain := range changed {
		id, err := d.TriggerBuild(domain, queue.BuildTypeConfigReload)
		if err != nil {
			d.logger.Warn("Failed to enqueue reload build", logfields.Site(domain), logfields.Error(err))
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// changedSites returns domains in next that are new or differ from prev.
func changedSites(prev, next []config.SiteEntry) []string {
	byDomain := make(map[string]config.SiteEntry, len(prev))
	for _, s := range prev {
		byDomain[s.Domain] = s
	}
	var out []string
	for _, s := range next {
		old, ok := byDomain[s.Domain]
		if !ok || !siteEqual(old, s) {
			out = append(out, s.Domain)
		}
	}
	return out
}

func siteEqual(a, b config.SiteEntry) bool {
	return a.Domain == b.Domain && a.SiteName == b.SiteName && a.Description == b.Description &&
		a.Theme == b.Theme && a.Template == b.Template && a.AnalyticsID == b.AnalyticsID &&
		slices.Equal(a.Keywords, b.Keywords)
}

func sameExceptSites(a, b *config.Config) bool {
	return a.Content.BaseURL == b.Content.BaseURL &&
		a.Templates.Root == b.Templates.Root &&
		slices.Equal(a.Toolchain.BuildCommand, b.Toolchain.BuildCommand) &&
		a.Daemon.HTTP.Addr == b.Daemon.HTTP.Addr &&
		a.Daemon.RebuildInterval == b.Daemon.RebuildInterval
}
