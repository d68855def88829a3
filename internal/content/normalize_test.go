package content

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/sitebuilder/internal/site"
)

func decodeBundle(t *testing.T, articles, categories, authors string) *Bundle {
	t.Helper()
	var b Bundle
	require.NoError(t, json.Unmarshal([]byte(articles), &b.Articles))
	require.NoError(t, json.Unmarshal([]byte(categories), &b.Categories))
	require.NoError(t, json.Unmarshal([]byte(authors), &b.Authors))
	return &b
}

func TestNormalizeFlatAndWrappedRecords(t *testing.T) {
	b := decodeBundle(t,
		`[
		  {"id":1,"documentId":"a1","title":"Hello World!","content":"<p>x</p>",
		   "featuredImage":"https://cdn.example.com/a.png",
		   "categories":[{"id":10},{"id":99}],"author":{"id":5},
		   "publishedAt":"2025-03-01T10:00:00.000Z"},
		  {"id":2,"attributes":{"title":"Second Post","slug":"Custom Slug!",
		   "featuredImage":{"data":{"id":7,"attributes":{"url":"/uploads/b.jpg"}}},
		   "categories":{"data":[{"id":11,"attributes":{"name":"Science"}}]},
		   "author":{"data":null}}}
		]`,
		`[{"id":10,"name":"Tech","color":"#00f"},{"id":11,"attributes":{"name":"Science","sortOrder":3,"active":false}},{"id":12,"name":"Unused"}]`,
		`[{"id":5,"documentId":"au5","name":"Ada","avatar":{"url":"https://cdn.example.com/ada.png"}}]`,
	)

	n := Normalize(b, nil)
	require.Len(t, n.Articles, 2)
	require.Len(t, n.Categories, 3)
	require.Len(t, n.Authors, 1)

	first := n.Articles[0]
	assert.Equal(t, "hello-world", first.Slug)
	assert.Equal(t, &site.ImageRef{Kind: site.ImageRemote, Value: "https://cdn.example.com/a.png"}, first.FeaturedImage)
	require.Len(t, first.Categories, 1, "unresolvable category 99 must be dropped")
	assert.Equal(t, "Tech", first.Categories[0].Name)
	assert.Equal(t, "tech", first.Categories[0].Slug)
	require.NotNil(t, first.Author)
	assert.Equal(t, "Ada", first.Author.Name)
	require.NotNil(t, first.PublishedAt)
	assert.Equal(t, 2025, first.PublishedAt.Year())

	second := n.Articles[1]
	assert.Equal(t, "custom-slug", second.Slug)
	assert.Equal(t, &site.ImageRef{Kind: site.ImageMedia, Value: "/uploads/b.jpg"}, second.FeaturedImage)
	require.Len(t, second.Categories, 1)
	assert.Equal(t, "Science", second.Categories[0].Name)
	assert.Nil(t, second.Author)
	assert.Equal(t, "", second.Excerpt)

	assert.True(t, n.Categories[0].Active, "active defaults to true")
	assert.False(t, n.Categories[1].Active)
	assert.Equal(t, 3, n.Categories[1].SortOrder)
	assert.Equal(t, 0, n.Categories[0].SortOrder)
	assert.Equal(t, "https://cdn.example.com/ada.png", n.Authors[0].Avatar)
}

func TestNormalizeRelationFallbacks(t *testing.T) {
	b := decodeBundle(t,
		`[{"id":1,"title":"T","categories":["cat-doc", 404, {"name":"Embedded Only"}, {"id":77}],
		   "author":"au-doc"}]`,
		`[{"id":3,"documentId":"cat-doc","name":"By Document"}]`,
		`[{"id":9,"documentId":"au-doc","name":"Grace"}]`,
	)
	n := Normalize(b, nil)
	a := n.Articles[0]
	require.Len(t, a.Categories, 2)
	assert.Equal(t, "By Document", a.Categories[0].Name)
	assert.Equal(t, "Embedded Only", a.Categories[1].Name)
	assert.Equal(t, "embedded-only", a.Categories[1].Slug)
	require.NotNil(t, a.Author)
	assert.Equal(t, "Grace", a.Author.Name)
}

func TestNormalizeNeverFails(t *testing.T) {
	assert.NotNil(t, Normalize(nil, nil))

	b := decodeBundle(t, `[null, {"id":"12","title":42,"featuredImage":{"data":null},"categories":null}]`, `[]`, `[]`)
	n := Normalize(b, nil)
	require.Len(t, n.Articles, 1)
	a := n.Articles[0]
	assert.Equal(t, 12, a.ID)
	assert.Equal(t, "42", a.Title)
	assert.Nil(t, a.FeaturedImage)
	assert.NotNil(t, a.Categories)
	assert.Empty(t, a.Categories)
}

func TestFeaturedImageShapes(t *testing.T) {
	cases := []struct {
		raw  string
		want *site.ImageRef
	}{
		{`"/images/local.png"`, &site.ImageRef{Kind: site.ImageLocal, Value: "/images/local.png"}},
		{`"./img.png"`, &site.ImageRef{Kind: site.ImageLocal, Value: "./img.png"}},
		{`"data:image/png;base64,iVBORw0KGgo="`, &site.ImageRef{Kind: site.ImageInline, Value: "data:image/png;base64,iVBORw0KGgo="}},
		{`{"url":"https://cdn.example.com/x.png"}`, &site.ImageRef{Kind: site.ImageRemote, Value: "https://cdn.example.com/x.png"}},
		{`{"url":"/uploads/x.png"}`, &site.ImageRef{Kind: site.ImageMedia, Value: "/uploads/x.png"}},
		{`[{"url":"/uploads/first.png"},{"url":"/uploads/second.png"}]`, &site.ImageRef{Kind: site.ImageMedia, Value: "/uploads/first.png"}},
		{`""`, nil},
		{`null`, nil},
		{`{"id":3}`, nil},
	}
	for _, tc := range cases {
		var v any
		require.NoError(t, json.Unmarshal([]byte(tc.raw), &v))
		assert.Equal(t, tc.want, imageFromValue(v), tc.raw)
	}
}

func TestContentBlocksRenderToHTML(t *testing.T) {
	var blocks any
	require.NoError(t, json.Unmarshal([]byte(`[
	  {"type":"heading","level":2,"children":[{"type":"text","text":"Intro"}]},
	  {"type":"paragraph","children":[{"type":"text","text":"Hello "},{"type":"text","text":"<world>","bold":true}]},
	  {"type":"image","image":{"url":"https://cdn.example.com/p.png","alternativeText":"pic"}},
	  {"type":"list","format":"ordered","children":[{"type":"list-item","children":[{"type":"text","text":"one"}]}]}
	]`), &blocks))

	got := contentBody(blocks)
	assert.Equal(t,
		`<h2>Intro</h2><p>Hello <strong>&lt;world&gt;</strong></p><img src="https://cdn.example.com/p.png" alt="pic"/><ol><li>one</li></ol>`,
		got)
	assert.Equal(t, "plain", contentBody("plain"))
	assert.Equal(t, "", contentBody(12))
}
