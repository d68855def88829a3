package assets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTMLImageSources(t *testing.T) {
	content := `<div><IMG SRC="https://a/1.png" alt="x"><p>text</p><img src='/local.png'/><img alt="nosrc"><img src="https://a/2.png?x=1&amp;y=2"></div>`
	assert.Equal(t, []string{"https://a/1.png", "/local.png", "https://a/2.png?x=1&y=2"}, htmlImageSources(content))
}

func TestRewriteHTMLImagesPreservesOtherBytes(t *testing.T) {
	content := "<p class=\"lead\">Hello &amp; welcome</p>\n<IMG SRC=\"https://a/1.png\" alt=\"one\">\n<img src=\"https://a/keep.png\">\n<!-- comment -->"
	got := rewriteHTMLImages(content, map[string]string{"https://a/1.png": "/images/1.png"})
	// Only the rewritten tag is re-serialized (lowercased attribute names).
	assert.Equal(t, "<p class=\"lead\">Hello &amp; welcome</p>\n<img src=\"/images/1.png\" alt=\"one\">\n<img src=\"https://a/keep.png\">\n<!-- comment -->", got)
}

func TestRewriteHTMLNoImagesIsIdentity(t *testing.T) {
	content := "# Markdown only\n\nSome *text*."
	assert.Equal(t, content, rewriteHTMLImages(content, map[string]string{"x": "y"}))
}

func TestMarkdownImageDestinations(t *testing.T) {
	content := "# Title\n\n![inline](https://a/1.png \"title\")\n\n![angle](<https://a/2 space.png>)\n\n![ref][logo]\n\n[logo]: https://a/3.png\n\n[link](https://a/not-image.png)\n"
	got := markdownImageDestinations(content)
	require.Len(t, got, 3)
	assert.Equal(t, "https://a/1.png", got[0])
	assert.Equal(t, "https://a/2 space.png", got[1])
	assert.Equal(t, "https://a/3.png", got[2])
}

func TestRewriteMarkdownImages(t *testing.T) {
	content := "![a](https://a/1.png)\n\n![b][ref]\n\n[ref]: https://a/3.png\n\n![c](https://a/failed.png)\n"
	got := rewriteMarkdownImages(content, map[string]string{
		"https://a/1.png": "/images/1.png",
		"https://a/3.png": "/images/3.png",
	})
	assert.Equal(t, "![a](/images/1.png)\n\n![b][ref]\n\n[ref]: /images/3.png\n\n![c](https://a/failed.png)\n", got)
}

func TestRewriteMarkdownImagesMatchesWholeDestinations(t *testing.T) {
	mapping := map[string]string{
		"https://cms/img/a.png":     "/images/a.png",
		"https://cms/img/a.png?v=2": "/images/a-v2.png",
	}
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "link sharing a prefix with an image",
			content: "![a](https://cms/img/a.png)\n[download original](https://cms/img/a.png.zip)",
			want:    "![a](/images/a.png)\n[download original](https://cms/img/a.png.zip)",
		},
		{
			name:    "plain link to the image URL",
			content: "[full size](https://cms/img/a.png) ![a](https://cms/img/a.png)",
			want:    "[full size](https://cms/img/a.png) ![a](/images/a.png)",
		},
		{
			name:    "image whose URL extends another image URL",
			content: "![a](https://cms/img/a.png) ![b](https://cms/img/a.png?v=2)",
			want:    "![a](/images/a.png) ![b](/images/a-v2.png)",
		},
		{
			name:    "title and angle brackets",
			content: "![a](https://cms/img/a.png \"Title\") ![b](<https://cms/img/a.png?v=2>)",
			want:    "![a](/images/a.png \"Title\") ![b](</images/a-v2.png>)",
		},
		{
			name:    "image nested in a link",
			content: "[![a](https://cms/img/a.png)](https://cms/img/a.png)",
			want:    "[![a](/images/a.png)](https://cms/img/a.png)",
		},
		{
			name:    "reference definition with a longer URL",
			content: "![x][r]\n\n[r]: https://cms/img/a.png.zip\n",
			want:    "![x][r]\n\n[r]: https://cms/img/a.png.zip\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, rewriteMarkdownImages(tt.content, mapping))
		})
	}
}
