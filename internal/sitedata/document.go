// Package sitedata assembles the site document consumed by the static-site
// toolchain and writes it into the template's source tree.
package sitedata

import (
	"time"

	"git.home.luguber.info/inful/sitebuilder/internal/assets"
	"git.home.luguber.info/inful/sitebuilder/internal/site"
	"git.home.luguber.info/inful/sitebuilder/internal/version"
)

// Document is the JSON shape written to the toolchain's data path.
type Document struct {
	Site       site.Config    `json:"site"`
	Articles   []site.Article `json:"articles"`
	Categories []string       `json:"categories"`
	Authors    []site.Author  `json:"authors"`
	BuildInfo  BuildInfo      `json:"buildInfo"`
}

// BuildInfo describes when and from what the document was generated.
type BuildInfo struct {
	GeneratedAt      string `json:"generatedAt"`
	Generator        string `json:"generator"`
	ArticleCount     int    `json:"articleCount"`
	CategoryCount    int    `json:"categoryCount"`
	AuthorCount      int    `json:"authorCount"`
	ImagesDownloaded int    `json:"imagesDownloaded"`
	TotalImages      int    `json:"totalImages"`
}

// Build assembles the document. The emitted categories are the distinct names
// referenced by at least one article, in first-seen order; the full category
// table only serves to keep names canonical.
func Build(cfg site.Config, articles []site.Article, categories []site.Category, authors []site.Author, stats assets.Stats) Document {
	return BuildAt(time.Now(), cfg, articles, categories, authors, stats)
}

// BuildAt is Build with an explicit generation time.
func BuildAt(now time.Time, cfg site.Config, articles []site.Article, categories []site.Category, authors []site.Author, stats assets.Stats) Document {
	if articles == nil {
		articles = []site.Article{}
	}
	if authors == nil {
		authors = []site.Author{}
	}
	if cfg.Keywords == nil {
		cfg.Keywords = []string{}
	}
	names := ReferencedCategories(articles, categories)
	return Document{
		Site:       cfg,
		Articles:   articles,
		Categories: names,
		Authors:    authors,
		BuildInfo: BuildInfo{
			GeneratedAt:      now.UTC().Format(time.RFC3339),
			Generator:        version.Generator(),
			ArticleCount:     len(articles),
			CategoryCount:    len(names),
			AuthorCount:      len(authors),
			ImagesDownloaded: stats.Downloaded,
			TotalImages:      stats.Total,
		},
	}
}

// ReferencedCategories prunes the category table down to names articles actually use.
// A reference without a name borrows it from the table entry with the same documentId or slug.
func ReferencedCategories(articles []site.Article, table []site.Category) []string {
	byKey := make(map[string]string, len(table)*2)
	for _, c := range table {
		if c.DocumentID != "" {
			byKey["doc:"+c.DocumentID] = c.Name
		}
		if c.Slug != "" {
			byKey["slug:"+c.Slug] = c.Name
		}
	}

	out := []string{}
	seen := map[string]bool{}
	for _, a := range articles {
		for _, ref := range a.Categories {
			name := ref.Name
			if name == "" && ref.DocumentID != "" {
				name = byKey["doc:"+ref.DocumentID]
			}
			if name == "" && ref.Slug != "" {
				name = byKey["slug:"+ref.Slug]
			}
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}
