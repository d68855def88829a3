package pipeline

import (
	"git.home.luguber.info/inful/sitebuilder/internal/config"
	"git.home.luguber.info/inful/sitebuilder/internal/site"
)

// BuildResult is the value every build resolves to, success or not.
type BuildResult struct {
	Success          bool     `json:"success"`
	DistPath         string   `json:"distPath"`
	HasIndex         bool     `json:"hasIndex"`
	HasArticles      bool     `json:"hasArticles"`
	HasCategories    bool     `json:"hasCategories"`
	ArticleCount     int      `json:"articleCount"`
	CategoryCount    int      `json:"categoryCount"`
	ImagesDownloaded int      `json:"imagesDownloaded"`
	TotalImages      int      `json:"totalImages"`
	Error            string   `json:"error,omitempty"`
	Site             string   `json:"site"`
	Template         string   `json:"template"`
	FailedStage      string   `json:"failedStage,omitempty"`
	Warnings         []string `json:"warnings,omitempty"`
	DurationMS       int64    `json:"durationMs"`

	// Err is the fatal error behind a failed result.
	Err error `json:"-"`
	// Report holds the per-stage detail of the run.
	Report *BuildReport `json:"-"`
}

// Request asks for one site build.
type Request struct {
	Site site.Config
	// BuildID correlates logs and events; optional.
	BuildID string
}

// SiteFromEntry converts a configured site entry into the build-time site config.
func SiteFromEntry(e config.SiteEntry) site.Config {
	keywords := make([]string, len(e.Keywords))
	copy(keywords, e.Keywords)
	return site.Config{
		Domain:      e.Domain,
		SiteName:    e.SiteName,
		Description: e.Description,
		Keywords:    keywords,
		Theme:       e.Theme,
		Template:    e.Template,
		AnalyticsID: e.AnalyticsID,
	}
}
