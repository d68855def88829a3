package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
)

// Init creates a new configuration file with example content.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return errors.ValidationError(fmt.Sprintf("configuration file already exists: %s (use --force to overwrite)", configPath)).Build()
	}

	example := Config{
		Version: CurrentVersion,
		Content: ContentConfig{
			BaseURL: "https://cms.example.com",
			Token:   "${CONTENT_API_TOKEN}",
			Timeout: "30s",
		},
		Assets: AssetsConfig{
			Dir:         "public/images",
			URLPrefix:   "/images",
			Naming:      AssetNamingRandom,
			Concurrency: 4,
		},
		Templates: TemplatesConfig{
			Root:    "templates",
			Default: "default",
			Table: map[string]string{
				"default":  "default",
				"magazine": "magazine",
				"tech":     "tech-blog",
			},
		},
		Toolchain: ToolchainConfig{
			InstallCommand: []string{"npm", "install"},
			BuildCommand:   []string{"npm", "run", "build"},
			SiteDataPath:   "src/data/site.json",
			OutputDir:      "dist",
			Timeout:        "10m",
		},
		Sites: []SiteEntry{
			{
				Domain:      "news.example.com",
				SiteName:    "Example News",
				Description: "Daily news from the example network",
				Keywords:    []string{"news", "daily"},
				Theme:       "light",
				Template:    "magazine",
			},
		},
		Daemon: DaemonConfig{
			HTTP:            HTTPConfig{Addr: ":8080"},
			Workers:         2,
			RebuildInterval: "6h",
		},
		Metrics: MetricsConfig{Enabled: true, Path: "/metrics"},
	}

	data, err := yaml.Marshal(&example)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to write config file").
			WithContext("path", configPath).
			Build()
	}
	return nil
}
