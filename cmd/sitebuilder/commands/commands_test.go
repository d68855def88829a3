package commands

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/site"
	"git.home.luguber.info/inful/sitebuilder/internal/sitedata"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var cli CLI
	parser, err := kong.New(&cli, kong.Vars{"version": "test"})
	require.NoError(t, err)
	kctx, err := parser.Parse(args)
	if err != nil {
		return "", err
	}
	var out bytes.Buffer
	err = kctx.Run(&Global{Logger: slog.New(slog.NewTextHandler(io.Discard, nil)), Out: &out}, &cli)
	return out.String(), err
}

func contentServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/content-articles", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"id":1,"title":"First Post","content":"<p>hi</p>","categories":[{"id":3}]}]}`))
	})
	mux.HandleFunc("/api/content-categories", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"id":3,"name":"News","slug":"news"}]}`))
	})
	mux.HandleFunc("/api/content-authors", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data":[]}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// writeProject creates a template root with one "default" template and a
// config file whose build command is buildScript.
func writeProject(t *testing.T, contentURL, buildScript string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "templates", "default"), 0o755))
	cfg := `version: "1.0"
content:
  base_url: ` + contentURL + `
templates:
  root: ` + filepath.Join(dir, "templates") + `
  default: default
toolchain:
  install_command: ["true"]
  build_command: ["sh", "-c", "` + buildScript + `"]
sites:
  - domain: example.com
    site_name: Example
    keywords: [go, sites]
    template: default
`
	path := filepath.Join(dir, "sitebuilder.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))
	return path
}

func TestBuildConfiguredSite(t *testing.T) {
	srv := contentServer(t)
	cfgPath := writeProject(t, srv.URL, "mkdir -p dist && echo ok > dist/index.html")

	out, err := run(t, "-c", cfgPath, "build", "--site", "example.com")
	require.NoError(t, err)

	var res map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, true, res["success"])
	assert.Equal(t, true, res["hasIndex"])
	assert.Equal(t, "example.com", res["site"])
	assert.Equal(t, "default", res["template"])
	assert.NotContains(t, res, "error")
}

func TestBuildToolchainFailure(t *testing.T) {
	srv := contentServer(t)
	cfgPath := writeProject(t, srv.URL, "echo boom >&2; exit 1")

	out, err := run(t, "-c", cfgPath, "build", "--site", "example.com")
	require.Error(t, err)
	assert.Equal(t, 11, errors.NewCLIErrorAdapter(false, nil).ExitCodeFor(err))

	var res map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, false, res["success"])
	assert.Contains(t, res["error"], "boom")
	assert.Equal(t, "building", res["failedStage"])
	assert.Equal(t, false, res["hasIndex"])
	assert.EqualValues(t, 0, res["articleCount"])
}

func TestBuildUnknownSite(t *testing.T) {
	srv := contentServer(t)
	cfgPath := writeProject(t, srv.URL, "true")

	_, err := run(t, "-c", cfgPath, "build", "--site", "missing.test")
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryNotFound))
}

func TestBuildRequiresTarget(t *testing.T) {
	_, err := run(t, "-c", filepath.Join(t.TempDir(), "none.yaml"), "build")
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryValidation))

	_, err = run(t, "-c", filepath.Join(t.TempDir(), "none.yaml"), "build", "--domain", "adhoc.test")
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryValidation))
}

func TestBuildAdhocWithoutConfigFile(t *testing.T) {
	_, err := run(t, "-c", filepath.Join(t.TempDir(), "none.yaml"),
		"build", "--domain", "adhoc.test", "--template", "default")
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryConfig), err.Error())
}

func TestVerifyCommand(t *testing.T) {
	dist := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dist, "index.html"), []byte("<html>"), 0o600))
	require.NoError(t, os.MkdirAll(filepath.Join(dist, "articles"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dist, "articles", "a.html"), []byte("<html>"), 0o600))
	cfgPath := filepath.Join(t.TempDir(), "none.yaml")

	out, err := run(t, "-c", cfgPath, "verify", dist)
	require.NoError(t, err)
	var res map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, true, res["hasIndex"])
	assert.Equal(t, true, res["hasArticles"])
	assert.Equal(t, false, res["hasCategories"])
	assert.Len(t, res["warnings"], 1)

	_, err = run(t, "-c", cfgPath, "verify", "--strict", dist)
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryVerification))
}

func TestVerifyChecksSiteData(t *testing.T) {
	dist := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dist, "index.html"), []byte("<html>"), 0o600))
	require.NoError(t, os.MkdirAll(filepath.Join(dist, "articles"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dist, "articles", "a.html"), []byte("<html>"), 0o600))
	cfgPath := filepath.Join(t.TempDir(), "none.yaml")
	docPath := filepath.Join(t.TempDir(), "site.json")
	require.NoError(t, sitedata.Write(docPath, sitedata.Document{
		Articles: []site.Article{{Title: "a", Slug: "a"}, {Title: "b", Slug: "b"}},
	}))

	out, err := run(t, "-c", cfgPath, "verify", "--site-data", docPath, dist)
	require.NoError(t, err)
	var res map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	warnings, ok := res["warnings"].([]any)
	require.True(t, ok)
	require.Len(t, warnings, 2)
	assert.Contains(t, warnings[1], "fewer article pages")

	_, err = run(t, "-c", cfgPath, "verify", "--site-data", filepath.Join(t.TempDir(), "missing.json"), dist)
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryFileSystem))
}

func TestInitAndSites(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "sitebuilder.yaml")

	out, err := run(t, "-c", cfgPath, "init")
	require.NoError(t, err)
	assert.Contains(t, out, "initialized successfully")

	_, err = run(t, "-c", cfgPath, "init")
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryValidation))

	_, err = run(t, "-c", cfgPath, "init", "--force")
	require.NoError(t, err)

	out, err = run(t, "-c", cfgPath, "sites")
	require.NoError(t, err)
	assert.Contains(t, out, "DOMAIN")
	assert.Contains(t, out, "news.example.com")
	assert.Contains(t, out, "magazine")

	out, err = run(t, "-c", cfgPath, "sites", "--json")
	require.NoError(t, err)
	var sites []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &sites))
	require.Len(t, sites, 1)
}

func TestSitesMarksUnknownTemplates(t *testing.T) {
	cfgPath := writeProject(t, "http://127.0.0.1:1", "true")

	out, err := run(t, "-c", cfgPath, "sites")
	require.NoError(t, err)
	assert.Contains(t, out, "example.com")
	assert.NotContains(t, out, "unknown")

	data, err := os.ReadFile(cfgPath)
	require.NoError(t, err)
	data = bytes.Replace(data, []byte("template: default"), []byte("template: retro"), 1)
	require.NoError(t, os.WriteFile(cfgPath, data, 0o600))

	out, err = run(t, "-c", cfgPath, "sites")
	require.NoError(t, err)
	assert.Contains(t, out, "retro (unknown, uses default)")
}

func TestLogLevel(t *testing.T) {
	t.Setenv(LogLevelEnv, "warn")
	assert.Equal(t, slog.LevelWarn, logLevel(false))
	assert.Equal(t, slog.LevelDebug, logLevel(true))
	t.Setenv(LogLevelEnv, "")
	assert.Equal(t, slog.LevelInfo, logLevel(false))
}
