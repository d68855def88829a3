package config

import "fmt"

// DefaultApplier applies defaults for a specific configuration domain.
type DefaultApplier interface {
	ApplyDefaults(cfg *Config) error
	Domain() string
}

// ContentDefaultApplier handles content store defaults.
type ContentDefaultApplier struct{}

func (ContentDefaultApplier) Domain() string { return "content" }

func (ContentDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Content.Timeout == "" {
		cfg.Content.Timeout = "30s"
	}
	if cfg.Content.MaxResponseBytes <= 0 {
		cfg.Content.MaxResponseBytes = 32 << 20
	}
	applyRetryDefaults(&cfg.Content.Retry)
	return nil
}

// AssetsDefaultApplier handles image materialization defaults.
type AssetsDefaultApplier struct{}

func (AssetsDefaultApplier) Domain() string { return "assets" }

func (AssetsDefaultApplier) ApplyDefaults(cfg *Config) error {
	a := &cfg.Assets
	if a.Dir == "" {
		a.Dir = "public/images"
	}
	if a.URLPrefix == "" {
		a.URLPrefix = "/images"
	}
	if a.Naming == "" {
		a.Naming = AssetNamingRandom
	} else if n := NormalizeAssetNaming(string(a.Naming)); n != "" {
		a.Naming = n
	}
	if a.Concurrency <= 0 {
		a.Concurrency = 4
	}
	if a.RatePerSecond < 0 {
		a.RatePerSecond = 0
	}
	if a.MaxBytes <= 0 {
		a.MaxBytes = 20 << 20
	}
	if a.Timeout == "" {
		a.Timeout = "30s"
	}
	return nil
}

// TemplatesDefaultApplier handles template registry defaults.
type TemplatesDefaultApplier struct{}

func (TemplatesDefaultApplier) Domain() string { return "templates" }

func (TemplatesDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Templates.Root == "" {
		cfg.Templates.Root = "templates"
	}
	if cfg.Templates.Default == "" {
		cfg.Templates.Default = "default"
	}
	if cfg.Templates.Table == nil {
		cfg.Templates.Table = map[string]string{}
	}
	return nil
}

// ToolchainDefaultApplier handles build toolchain defaults.
type ToolchainDefaultApplier struct{}

func (ToolchainDefaultApplier) Domain() string { return "toolchain" }

func (ToolchainDefaultApplier) ApplyDefaults(cfg *Config) error {
	t := &cfg.Toolchain
	if len(t.InstallCommand) == 0 {
		t.InstallCommand = []string{"npm", "install"}
	}
	if len(t.BuildCommand) == 0 {
		t.BuildCommand = []string{"npm", "run", "build"}
	}
	if t.InstallMarker == "" {
		t.InstallMarker = "node_modules"
	}
	if t.SiteDataPath == "" {
		t.SiteDataPath = "src/data/site.json"
	}
	if t.OutputDir == "" {
		t.OutputDir = "dist"
	}
	if t.Timeout == "" {
		t.Timeout = "10m"
	}
	if cfg.Verify.ArticleMarker == "" {
		cfg.Verify.ArticleMarker = "articles/"
	}
	if cfg.Verify.CategoryMarker == "" {
		cfg.Verify.CategoryMarker = "categories/"
	}
	return nil
}

// DaemonDefaultApplier handles daemon, queue, notify and metrics defaults.
type DaemonDefaultApplier struct{}

func (DaemonDefaultApplier) Domain() string { return "daemon" }

func (DaemonDefaultApplier) ApplyDefaults(cfg *Config) error {
	d := &cfg.Daemon
	if d.HTTP.Addr == "" {
		d.HTTP.Addr = ":8080"
	}
	if d.Workers <= 0 {
		d.Workers = 2
	}
	if d.QueueSize <= 0 {
		d.QueueSize = 32
	}
	if d.HistorySize <= 0 {
		d.HistorySize = 50
	}
	if d.EventStorePath == "" {
		d.EventStorePath = "sitebuilder-events.db"
	}
	applyRetryDefaults(&cfg.Build.Retry)
	if cfg.Notify.Subject == "" {
		cfg.Notify.Subject = "sitebuilder.builds"
	}
	if cfg.Notify.Stream == "" {
		cfg.Notify.Stream = "SITEBUILDER"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
	cfg.Logging.Level = NormalizeLogLevel(string(cfg.Logging.Level))
	cfg.Logging.Format = NormalizeLogFormat(string(cfg.Logging.Format))
	return nil
}

func applyRetryDefaults(r *RetryConfig) {
	if mode := NormalizeRetryBackoff(string(r.Backoff)); mode != "" {
		r.Backoff = mode
	} else {
		r.Backoff = RetryBackoffLinear
	}
	if r.InitialDelay == "" {
		r.InitialDelay = "1s"
	}
	if r.MaxDelay == "" {
		r.MaxDelay = "30s"
	}
}

// defaultAppliers lists the per-domain appliers in application order.
func defaultAppliers() []DefaultApplier {
	return []DefaultApplier{
		ContentDefaultApplier{},
		AssetsDefaultApplier{},
		TemplatesDefaultApplier{},
		ToolchainDefaultApplier{},
		DaemonDefaultApplier{},
	}
}

func applyDefaults(cfg *Config) error {
	for _, applier := range defaultAppliers() {
		if err := applier.ApplyDefaults(cfg); err != nil {
			return fmt.Errorf("%s defaults: %w", applier.Domain(), err)
		}
	}
	return nil
}
