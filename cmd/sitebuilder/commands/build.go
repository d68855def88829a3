package commands

import (
	"context"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/pipeline"
	"git.home.luguber.info/inful/sitebuilder/internal/site"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	Site        string   `help:"Domain of a configured site" xor:"target"`
	Domain      string   `help:"Domain of an ad-hoc site (requires --template)" xor:"target"`
	Template    string   `help:"Template identifier for an ad-hoc site"`
	SiteName    string   `name:"site-name" help:"Display name for an ad-hoc site"`
	Description string   `help:"Description for an ad-hoc site"`
	Keywords    []string `help:"Keywords for an ad-hoc site"`
	ContentURL  string   `name:"content-url" help:"Override content.base_url" env:"SITEBUILDER_CONTENT_URL"`
}

func (b *BuildCmd) validate() error {
	if b.Site == "" && b.Domain == "" {
		return errors.ValidationError("either --site or --domain is required").Build()
	}
	if b.Domain != "" && b.Template == "" {
		return errors.ValidationError("--template is required with --domain").Build()
	}
	return nil
}

func (b *BuildCmd) Run(g *Global, root *CLI) error {
	if err := b.validate(); err != nil {
		return err
	}
	cfg, err := loadConfig(root.Config, b.Site == "")
	if err != nil {
		return err
	}
	if b.ContentURL != "" {
		cfg.Content.BaseURL = b.ContentURL
	}

	var target site.Config
	if b.Site != "" {
		entry, ok := cfg.Site(b.Site)
		if !ok {
			return errors.NotFoundError("site is not configured").
				WithContext("site", b.Site).
				WithContext("config", root.Config).
				Build()
		}
		target = pipeline.SiteFromEntry(entry)
	} else {
		target = site.Config{
			Domain:      b.Domain,
			SiteName:    b.SiteName,
			Description: b.Description,
			Keywords:    b.Keywords,
			Template:    b.Template,
		}
		if target.SiteName == "" {
			target.SiteName = b.Domain
		}
	}
	if strings.TrimSpace(cfg.Content.BaseURL) == "" {
		return errors.ConfigError("content.base_url is not set (use --content-url or the config file)").Build()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	coordinator := pipeline.NewCoordinator(cfg, pipeline.WithLogger(g.logger()))
	res := coordinator.Build(ctx, pipeline.Request{Site: target, BuildID: uuid.NewString()})

	if err := printJSON(g.out(), res); err != nil {
		return errors.WrapError(err, errors.CategoryInternal, "failed to write build result").Build()
	}
	if res.Success {
		g.logger().Info("Build finished", slog.String("dist", res.DistPath), slog.Int64("duration_ms", res.DurationMS))
		return nil
	}
	if res.Err != nil {
		return res.Err
	}
	return errors.RuntimeError("build did not complete: " + res.Error).Build()
}
