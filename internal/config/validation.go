package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
)

// ValidateConfig validates the complete configuration structure.
// Errors are classified as config errors so the CLI maps them to a dedicated exit code.
func ValidateConfig(cfg *Config) error {
	validator := &configurationValidator{config: cfg}
	if err := validator.validate(); err != nil {
		return errors.WrapError(err, errors.CategoryConfig, "configuration validation failed").Build()
	}
	return nil
}

// configurationValidator coordinates validation across configuration domains.
type configurationValidator struct {
	config *Config
}

func (cv *configurationValidator) validate() error {
	steps := []func() error{
		cv.validateContent,
		cv.validateAssets,
		cv.validateTemplates,
		cv.validateToolchain,
		cv.validateSites,
		cv.validateDaemon,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

func (cv *configurationValidator) validateContent() error {
	c := cv.config.Content
	if c.BaseURL == "" {
		if len(cv.config.Sites) > 0 {
			return fmt.Errorf("content.base_url is required when sites are configured")
		}
	} else if err := validateHTTPURL("content.base_url", c.BaseURL); err != nil {
		return err
	}
	if err := validateDuration("content.timeout", c.Timeout); err != nil {
		return err
	}
	return validateRetry("content.retry", c.Retry)
}

func (cv *configurationValidator) validateAssets() error {
	a := cv.config.Assets
	if NormalizeAssetNaming(string(a.Naming)) == "" {
		return fmt.Errorf("invalid assets.naming: %q (expected random or content)", a.Naming)
	}
	if err := validateRelativePath("assets.dir", a.Dir); err != nil {
		return err
	}
	if !strings.HasPrefix(a.URLPrefix, "/") {
		return fmt.Errorf("assets.url_prefix must start with '/': %q", a.URLPrefix)
	}
	return validateDuration("assets.timeout", a.Timeout)
}

func (cv *configurationValidator) validateTemplates() error {
	t := cv.config.Templates
	if strings.TrimSpace(t.Default) == "" {
		return fmt.Errorf("templates.default cannot be empty")
	}
	for id, dir := range t.Table {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("templates.table contains an empty identifier")
		}
		if strings.TrimSpace(dir) == "" {
			return fmt.Errorf("templates.table[%s] has an empty directory", id)
		}
	}
	return nil
}

func (cv *configurationValidator) validateToolchain() error {
	t := cv.config.Toolchain
	if len(t.BuildCommand) == 0 || strings.TrimSpace(t.BuildCommand[0]) == "" {
		return fmt.Errorf("toolchain.build_command cannot be empty")
	}
	if len(t.InstallCommand) > 0 && strings.TrimSpace(t.InstallCommand[0]) == "" {
		return fmt.Errorf("toolchain.install_command has an empty program")
	}
	for field, p := range map[string]string{
		"toolchain.site_data_path": t.SiteDataPath,
		"toolchain.output_dir":     t.OutputDir,
		"toolchain.install_marker": t.InstallMarker,
	} {
		if err := validateRelativePath(field, p); err != nil {
			return err
		}
	}
	for _, kv := range t.Env {
		if !strings.Contains(kv, "=") {
			return fmt.Errorf("toolchain.env entry %q must be KEY=VALUE", kv)
		}
	}
	return validateDuration("toolchain.timeout", t.Timeout)
}

func (cv *configurationValidator) validateSites() error {
	seen := make(map[string]bool, len(cv.config.Sites))
	for i, s := range cv.config.Sites {
		if strings.TrimSpace(s.Domain) == "" {
			return fmt.Errorf("sites[%d].domain cannot be empty", i)
		}
		if strings.ContainsAny(s.Domain, `/\ `) {
			return fmt.Errorf("sites[%d].domain is not a host name: %q", i, s.Domain)
		}
		if seen[s.Domain] {
			return fmt.Errorf("duplicate site domain: %s", s.Domain)
		}
		seen[s.Domain] = true
	}
	return nil
}

func (cv *configurationValidator) validateDaemon() error {
	d := cv.config.Daemon
	if err := validateDuration("daemon.rebuild_interval", d.RebuildInterval); err != nil {
		return err
	}
	if iv := d.RebuildIntervalDuration(); iv > 0 && iv < time.Minute {
		return fmt.Errorf("daemon.rebuild_interval must be at least 1m, got %s", iv)
	}
	if d.HTTP.BuildsPerMinute < 0 {
		return fmt.Errorf("daemon.http.builds_per_minute cannot be negative")
	}
	if cv.config.Notify.Enabled() {
		if err := validateURLScheme("notify.nats_url", cv.config.Notify.NATSURL, "nats", "tls"); err != nil {
			return err
		}
	}
	return validateRetry("build.retry", cv.config.Build.Retry)
}

func validateRetry(field string, r RetryConfig) error {
	if r.MaxRetries < 0 {
		return fmt.Errorf("%s.max_retries cannot be negative", field)
	}
	if err := validateDuration(field+".initial_delay", r.InitialDelay); err != nil {
		return err
	}
	if err := validateDuration(field+".max_delay", r.MaxDelay); err != nil {
		return err
	}
	if r.Initial() > 0 && r.Max() > 0 && r.Initial() > r.Max() {
		return fmt.Errorf("%s.initial_delay (%s) cannot exceed max_delay (%s)", field, r.InitialDelay, r.MaxDelay)
	}
	return nil
}

func validateDuration(field, raw string) error {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", field, err)
	}
	if d <= 0 {
		return fmt.Errorf("%s must be positive", field)
	}
	return nil
}

func validateHTTPURL(field, raw string) error {
	return validateURLScheme(field, raw, "http", "https")
}

func validateURLScheme(field, raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", field, err)
	}
	for _, s := range schemes {
		if u.Scheme == s && u.Host != "" {
			return nil
		}
	}
	return fmt.Errorf("invalid %s: %q (expected scheme %s)", field, raw, strings.Join(schemes, "|"))
}

// validateRelativePath rejects absolute paths and paths escaping their base directory.
func validateRelativePath(field, p string) error {
	if p == "" {
		return fmt.Errorf("%s cannot be empty", field)
	}
	if filepath.IsAbs(p) {
		return fmt.Errorf("%s must be relative: %q", field, p)
	}
	clean := filepath.Clean(p)
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return fmt.Errorf("%s escapes its base directory: %q", field, p)
	}
	return nil
}
