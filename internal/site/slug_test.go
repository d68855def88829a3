package site

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Hello World":                 "hello-world",
		"  Leading and trailing  ":    "leading-and-trailing",
		"Go 1.24 -- Released!":        "go-124-released",
		"Ünïcödé Çhars":               "ncd-hars",
		"already-a-slug":              "already-a-slug",
		"---":                         "",
		"":                            "",
		"Tabs\tand\nnewlines":         "tabs-and-newlines",
		"Multiple   spaces - hyphens": "multiple-spaces-hyphens",
		"C++ & Rust: 10 tips":         "c-rust-10-tips",
		"Hello\u00a0World":            "hello-world",
		"Thin\u2009space\u3000wide":   "thin-space-wide",
		"\ufeffBOM\u2028line\vtab":    "bom-line-tab",
	}
	for in, want := range cases {
		assert.Equal(t, want, Slugify(in), "Slugify(%q)", in)
	}
}

func TestSlugifyIdempotentAndWellFormed(t *testing.T) {
	inputs := []string{
		"Hello World", "  x  ", "A--B", "-a-", "日本語のタイトル", "Mixed CASE 123",
		"emoji 🎉 party", "under_score", "dots.and.dots", " nbsp ",
	}
	for _, in := range inputs {
		once := Slugify(in)
		assert.Equal(t, once, Slugify(once), "not idempotent for %q", in)
		if once != "" {
			assert.Regexp(t, SlugPattern, once)
		}
	}
}
