package config

// Config represents the sitebuilder configuration file (sitebuilder.yaml).
type Config struct {
	Version   string          `yaml:"version"`
	Content   ContentConfig   `yaml:"content"`
	Assets    AssetsConfig    `yaml:"assets,omitempty"`
	Templates TemplatesConfig `yaml:"templates"`
	Toolchain ToolchainConfig `yaml:"toolchain,omitempty"`
	Verify    VerifyConfig    `yaml:"verify,omitempty"`
	Sites     []SiteEntry     `yaml:"sites,omitempty"`
	Daemon    DaemonConfig    `yaml:"daemon,omitempty"`
	Build     BuildConfig     `yaml:"build,omitempty"`
	Notify    NotifyConfig    `yaml:"notify,omitempty"`
	Metrics   MetricsConfig   `yaml:"metrics,omitempty"`
	Logging   LoggingConfig   `yaml:"logging,omitempty"`
}

// ContentConfig describes the headless content store.
type ContentConfig struct {
	BaseURL          string      `yaml:"base_url"`
	Token            string      `yaml:"token,omitempty"` // bearer token, usually ${CONTENT_TOKEN}
	Timeout          string      `yaml:"timeout,omitempty"`
	MaxResponseBytes int64       `yaml:"max_response_bytes,omitempty"`
	Retry            RetryConfig `yaml:"retry,omitempty"`
}

// AssetsConfig controls image materialization.
type AssetsConfig struct {
	Dir           string      `yaml:"dir,omitempty"`        // relative to the template directory
	URLPrefix     string      `yaml:"url_prefix,omitempty"` // public path that Dir is served under
	Naming        AssetNaming `yaml:"naming,omitempty"`
	Concurrency   int         `yaml:"concurrency,omitempty"`
	RatePerSecond float64     `yaml:"rate_per_second,omitempty"`
	MaxBytes      int64       `yaml:"max_bytes,omitempty"`
	Timeout       string      `yaml:"timeout,omitempty"`
}

// TemplatesConfig maps logical template identifiers to project directories.
type TemplatesConfig struct {
	Root    string            `yaml:"root,omitempty"`
	Default string            `yaml:"default"`
	Table   map[string]string `yaml:"table"`
}

// ToolchainConfig describes the external static-site toolchain invocation.
type ToolchainConfig struct {
	InstallCommand []string `yaml:"install_command,omitempty"`
	BuildCommand   []string `yaml:"build_command,omitempty"`
	InstallMarker  string   `yaml:"install_marker,omitempty"`
	SiteDataPath   string   `yaml:"site_data_path,omitempty"`
	OutputDir      string   `yaml:"output_dir,omitempty"`
	Timeout        string   `yaml:"timeout,omitempty"`
	Env            []string `yaml:"env,omitempty"` // extra KEY=VALUE entries for subprocesses
}

// VerifyConfig holds the path substrings used to classify build output.
type VerifyConfig struct {
	ArticleMarker  string `yaml:"article_marker,omitempty"`
	CategoryMarker string `yaml:"category_marker,omitempty"`
}

// SiteEntry is one site of the network as configured by the operator.
type SiteEntry struct {
	Domain      string   `yaml:"domain"`
	SiteName    string   `yaml:"site_name"`
	Description string   `yaml:"description,omitempty"`
	Keywords    []string `yaml:"keywords,omitempty"`
	Theme       string   `yaml:"theme,omitempty"`
	Template    string   `yaml:"template"`
	AnalyticsID string   `yaml:"analytics_id,omitempty"`
}

// DaemonConfig represents daemon-specific configuration.
type DaemonConfig struct {
	HTTP            HTTPConfig `yaml:"http,omitempty"`
	Workers         int        `yaml:"workers,omitempty"`
	QueueSize       int        `yaml:"queue_size,omitempty"`
	HistorySize     int        `yaml:"history_size,omitempty"`
	RebuildInterval string     `yaml:"rebuild_interval,omitempty"` // empty disables scheduled rebuilds
	EventStorePath  string     `yaml:"event_store_path,omitempty"`
	WatchConfig     bool       `yaml:"watch_config,omitempty"`
}

// HTTPConfig represents HTTP server configuration.
type HTTPConfig struct {
	Addr string `yaml:"addr,omitempty"`
	// BuildsPerMinute caps POST /builds; 0 disables the limit.
	BuildsPerMinute int `yaml:"builds_per_minute,omitempty"`
}

// BuildConfig holds queue-level build behaviour.
type BuildConfig struct {
	Retry         RetryConfig `yaml:"retry,omitempty"`
	PersistReport bool        `yaml:"persist_report,omitempty"`
}

// NotifyConfig configures build result publication over NATS JetStream.
type NotifyConfig struct {
	NATSURL string `yaml:"nats_url,omitempty"`
	Subject string `yaml:"subject,omitempty"`
	Stream  string `yaml:"stream,omitempty"`
}

// Enabled reports whether a NATS endpoint is configured.
func (n NotifyConfig) Enabled() bool { return n.NATSURL != "" }

// MetricsConfig toggles Prometheus instrumentation.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled,omitempty"`
	Path    string `yaml:"path,omitempty"`
}

// LoggingConfig represents logging configuration.
type LoggingConfig struct {
	Level  LogLevel  `yaml:"level,omitempty"`
	Format LogFormat `yaml:"format,omitempty"`
}

// Site returns the configured site entry for domain.
func (c *Config) Site(domain string) (SiteEntry, bool) {
	for _, s := range c.Sites {
		if s.Domain == domain {
			return s, true
		}
	}
	return SiteEntry{}, false
}
