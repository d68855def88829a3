// Package verify inspects a generated site and reports which artifacts exist.
package verify

import (
	stdErrors "errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/sitebuilder/internal/config"
	"git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
)

// Result is the outcome of one verification. Zero value means nothing was found.
type Result struct {
	HasIndex      bool    `json:"hasIndex"`
	HasArticles   bool    `json:"hasArticles"`
	HasCategories bool    `json:"hasCategories"`
	ArticleCount  int     `json:"articleCount"`
	CategoryCount int     `json:"categoryCount"`
	Warnings      []error `json:"-"`
}

// Verifier classifies HTML files by path substring.
type Verifier struct {
	articleMarker  string
	categoryMarker string
	logger         *slog.Logger
}

// New returns a verifier using the markers from cfg.
func New(cfg config.VerifyConfig, logger *slog.Logger) *Verifier {
	if logger == nil {
		logger = slog.Default()
	}
	v := &Verifier{articleMarker: cfg.ArticleMarker, categoryMarker: cfg.CategoryMarker, logger: logger}
	if v.articleMarker == "" {
		v.articleMarker = "articles/"
	}
	if v.categoryMarker == "" {
		v.categoryMarker = "categories/"
	}
	return v
}

// Verify walks outputDir. Missing artifacts produce warnings, never errors.
func (v *Verifier) Verify(outputDir string) *Result {
	res := &Result{}

	info, err := os.Stat(outputDir)
	if err != nil || !info.IsDir() {
		res.warn(errors.VerificationWarning("output directory not found").
			WithContext("dir", outputDir).Build())
		v.log(outputDir, res)
		return res
	}

	walkErr := filepath.WalkDir(outputDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable subtrees are skipped.
			if d != nil && d.IsDir() && p != outputDir {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(outputDir, p)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if rel == "index.html" {
			res.HasIndex = true
		}
		if !isHTML(rel) {
			return nil
		}
		if strings.Contains(rel, v.articleMarker) {
			res.ArticleCount++
		}
		if strings.Contains(rel, v.categoryMarker) {
			res.CategoryCount++
		}
		return nil
	})
	if walkErr != nil && !stdErrors.Is(walkErr, fs.SkipDir) {
		res.warn(errors.WrapError(walkErr, errors.CategoryVerification, "walk output directory").
			Warning().WithContext("dir", outputDir).Build())
	}

	res.HasArticles = res.ArticleCount > 0
	res.HasCategories = res.CategoryCount > 0

	if !res.HasIndex {
		res.warn(errors.VerificationWarning("index.html missing at output root").WithContext("dir", outputDir).Build())
	}
	if !res.HasArticles {
		res.warn(errors.VerificationWarning("no article pages generated").WithContext("marker", v.articleMarker).Build())
	}
	if !res.HasCategories {
		res.warn(errors.VerificationWarning("no category pages generated").WithContext("marker", v.categoryMarker).Build())
	}
	v.log(outputDir, res)
	return res
}

func (v *Verifier) log(dir string, res *Result) {
	v.logger.Info("Verified build output",
		logfields.Path(dir),
		slog.Bool("has_index", res.HasIndex),
		slog.Int("articles", res.ArticleCount),
		slog.Int("categories", res.CategoryCount),
		slog.Int("warnings", len(res.Warnings)))
}

func (r *Result) warn(err error) { r.Warnings = append(r.Warnings, err) }

// CompareExpected warns when the output holds fewer article or category
// pages than the site document that produced it.
func (r *Result) CompareExpected(articles, categories int) {
	if r.ArticleCount < articles {
		r.warn(errors.VerificationWarning("fewer article pages than site data articles").
			WithContext("pages", r.ArticleCount).WithContext("expected", articles).Build())
	}
	if r.CategoryCount < categories {
		r.warn(errors.VerificationWarning("fewer category pages than site data categories").
			WithContext("pages", r.CategoryCount).WithContext("expected", categories).Build())
	}
}

// WarningMessages renders the warnings as strings.
func (r *Result) WarningMessages() []string {
	out := make([]string, 0, len(r.Warnings))
	for _, w := range r.Warnings {
		out = append(out, w.Error())
	}
	return out
}

func isHTML(rel string) bool {
	ext := strings.ToLower(filepath.Ext(rel))
	return ext == ".html" || ext == ".htm"
}
