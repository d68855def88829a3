package pipeline

import (
	"context"
	"fmt"
	"path/filepath"

	"git.home.luguber.info/inful/sitebuilder/internal/assets"
	"git.home.luguber.info/inful/sitebuilder/internal/content"
	"git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
	"git.home.luguber.info/inful/sitebuilder/internal/site"
	"git.home.luguber.info/inful/sitebuilder/internal/sitedata"
)

func (c *Coordinator) stageResolveTemplate(ctx context.Context, bs *buildState) error {
	res, err := c.registry.Resolve(bs.req.Site.Template)
	if err != nil {
		return err
	}
	bs.template = res
	release, err := c.locks.Acquire(ctx, res.Dir)
	if err != nil {
		return newCanceledStageError(StageResolveTemplate, err)
	}
	bs.release = release
	bs.logger.Debug("Template resolved", logfields.Path(res.Dir), logfields.Template(res.ID))
	return nil
}

func (c *Coordinator) stageFetch(ctx context.Context, bs *buildState) error {
	if bs.client == nil {
		cl, err := content.NewClient(c.cfg.Content, content.WithLogger(bs.logger))
		if err != nil {
			return err
		}
		bs.client = cl
	}
	bundle, err := bs.client.Fetch(ctx)
	if err != nil {
		return err
	}
	bs.bundle = bundle
	return nil
}

func (c *Coordinator) stageNormalize(_ context.Context, bs *buildState) error {
	bs.normalized = content.Normalize(bs.bundle, bs.logger)
	bs.articles = bs.normalized.Articles
	bs.report.Articles = len(bs.normalized.Articles)
	bs.report.Authors = len(bs.normalized.Authors)
	return nil
}

// stageMaterialize never aborts the build: the stage degrades to a warning and
// articles keep whatever references could not be localized.
func (c *Coordinator) stageMaterialize(ctx context.Context, bs *buildState) error {
	opts := []assets.Option{
		assets.WithRecorder(c.recorder),
		assets.WithLogger(bs.logger),
	}
	if bs.client != nil {
		opts = append(opts, assets.WithMediaBase(bs.client.BaseURL()))
	}
	if c.assetHTTP != nil {
		opts = append(opts, assets.WithHTTPClient(c.assetHTTP))
	}
	m := assets.New(c.cfg.Assets, filepath.Join(bs.templateDir(), c.cfg.Assets.Dir), opts...)

	res, err := m.Materialize(ctx, bs.articles)
	bs.stats = m.Stats()
	if err != nil {
		dropRemoteFeatured(bs.articles)
		if ctx.Err() != nil {
			return newCanceledStageError(StageMaterializingAssets, err)
		}
		return newWarnStageError(StageMaterializingAssets, err)
	}
	bs.articles = res.Articles
	if len(res.Failures) > 0 {
		return newWarnStageError(StageMaterializingAssets,
			errors.AssetError(fmt.Sprintf("%d of %d images could not be materialized", len(res.Failures), res.Stats.Total)).
				WithContext("failed", len(res.Failures)).
				Build())
	}
	return nil
}

// dropRemoteFeatured keeps featured images local-or-null when materialization could not run.
func dropRemoteFeatured(articles []site.Article) {
	for i := range articles {
		if fi := articles[i].FeaturedImage; fi != nil && !fi.IsLocal() {
			articles[i].FeaturedImage = nil
		}
	}
}

func (c *Coordinator) stageWriteSiteData(_ context.Context, bs *buildState) error {
	doc := sitedata.Build(bs.req.Site, bs.articles, bs.normalized.Categories, bs.normalized.Authors, bs.stats)
	bs.report.Categories = len(doc.Categories)
	path := filepath.Join(bs.templateDir(), c.cfg.Toolchain.SiteDataPath)
	if err := sitedata.Write(path, doc); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "write site data").
			Fatal().
			WithContext("path", path).
			Build()
	}
	bs.logger.Info("Site data written", logfields.Path(path),
		logfields.Count(len(doc.Articles)))
	return nil
}

func (c *Coordinator) stageBuild(ctx context.Context, bs *buildState) error {
	return c.runner.Run(ctx, bs.templateDir())
}

func (c *Coordinator) stageVerify(_ context.Context, bs *buildState) error {
	bs.verified = c.verifier.Verify(bs.distPath())
	for _, w := range bs.verified.Warnings {
		bs.report.AddIssue(IssueVerification, StageVerifying, SeverityWarning, w.Error(), false, w)
	}
	return nil
}
