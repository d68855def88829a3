package verify

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/sitebuilder/internal/config"
	"git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
)

func writeFiles(t *testing.T, root string, files ...string) {
	t.Helper()
	for _, f := range files {
		p := filepath.Join(root, filepath.FromSlash(f))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte("<html></html>"), 0o600))
	}
}

func TestVerifyCountsArtifacts(t *testing.T) {
	dist := t.TempDir()
	writeFiles(t, dist,
		"index.html",
		"articles/hello/index.html",
		"articles/world/index.html",
		"articles/world/cover.png",
		"categories/news/index.html",
		"assets/app.js",
	)

	res := New(config.VerifyConfig{}, nil).Verify(dist)
	assert.True(t, res.HasIndex)
	assert.True(t, res.HasArticles)
	assert.True(t, res.HasCategories)
	assert.Equal(t, 2, res.ArticleCount)
	assert.Equal(t, 1, res.CategoryCount)
	assert.Empty(t, res.Warnings)
}

func TestVerifyNestedIndexIsNotRootIndex(t *testing.T) {
	dist := t.TempDir()
	writeFiles(t, dist, "articles/index.html")

	res := New(config.VerifyConfig{}, nil).Verify(dist)
	assert.False(t, res.HasIndex)
	assert.Equal(t, 1, res.ArticleCount)
	assert.NotEmpty(t, res.Warnings)
}

func TestVerifyMissingDirectory(t *testing.T) {
	res := New(config.VerifyConfig{}, nil).Verify(filepath.Join(t.TempDir(), "dist"))
	assert.False(t, res.HasIndex)
	assert.False(t, res.HasArticles)
	assert.False(t, res.HasCategories)
	assert.Zero(t, res.ArticleCount)
	assert.Zero(t, res.CategoryCount)
	require.Len(t, res.Warnings, 1)
	assert.True(t, errors.HasCategory(res.Warnings[0], errors.CategoryVerification))
	assert.True(t, errors.HasSeverity(res.Warnings[0], errors.SeverityWarning))
}

func TestVerifyCustomMarkers(t *testing.T) {
	dist := t.TempDir()
	writeFiles(t, dist, "index.html", "posts/a.html", "posts/b.htm", "topics/x.html")

	res := New(config.VerifyConfig{ArticleMarker: "posts/", CategoryMarker: "topics/"}, nil).Verify(dist)
	assert.Equal(t, 2, res.ArticleCount)
	assert.Equal(t, 1, res.CategoryCount)
}

func TestVerifyIndexOnlyWarnsAboutMissingPages(t *testing.T) {
	dist := t.TempDir()
	writeFiles(t, dist, "index.html")

	res := New(config.VerifyConfig{}, nil).Verify(dist)
	assert.True(t, res.HasIndex)
	assert.Len(t, res.WarningMessages(), 2)
	assert.Contains(t, res.WarningMessages()[0], "no article pages")
}

func TestCompareExpectedWarnsOnMissingPages(t *testing.T) {
	dist := t.TempDir()
	writeFiles(t, dist, "index.html", "articles/a.html", "categories/news.html")

	res := New(config.VerifyConfig{}, nil).Verify(dist)
	require.Empty(t, res.Warnings)

	res.CompareExpected(1, 1)
	assert.Empty(t, res.Warnings)

	res.CompareExpected(3, 2)
	require.Len(t, res.Warnings, 2)
	assert.Contains(t, res.WarningMessages()[0], "fewer article pages")
	assert.Contains(t, res.WarningMessages()[1], "fewer category pages")
	assert.True(t, errors.HasSeverity(res.Warnings[0], errors.SeverityWarning))
}
