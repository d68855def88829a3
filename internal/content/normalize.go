package content

import (
	"log/slog"
	"strconv"

	"git.home.luguber.info/inful/sitebuilder/internal/site"
)

// Normalized is the canonical model produced from a Bundle.
type Normalized struct {
	Articles   []site.Article
	Categories []site.Category
	Authors    []site.Author
}

// Normalize converts raw records into the canonical model. It never fails:
// unresolvable relations degrade to null and missing fields take defaults.
func Normalize(b *Bundle, logger *slog.Logger) *Normalized {
	if logger == nil {
		logger = slog.Default()
	}
	out := &Normalized{}
	if b == nil {
		return out
	}

	for _, rec := range b.Categories {
		if rec.Attrs == nil {
			continue
		}
		out.Categories = append(out.Categories, NormalizeCategory(rec))
	}
	for _, rec := range b.Authors {
		if rec.Attrs == nil {
			continue
		}
		out.Authors = append(out.Authors, NormalizeAuthor(rec))
	}

	idx := newRelationIndex(out.Categories, out.Authors)
	dropped := 0
	for _, rec := range b.Articles {
		if rec.Attrs == nil {
			continue
		}
		a, misses := idx.article(rec)
		dropped += misses
		out.Articles = append(out.Articles, a)
	}
	if dropped > 0 {
		logger.Warn("Dropped unresolvable article relations", slog.Int("count", dropped))
	}
	return out
}

// NormalizeCategory maps a category record with defaults (sortOrder 0, active true).
func NormalizeCategory(rec Record) site.Category {
	name := rec.String("name")
	slug := site.Slugify(rec.String("slug"))
	if slug == "" {
		slug = site.Slugify(name)
	}
	return site.Category{
		ID:          rec.ID,
		DocumentID:  rec.DocumentID,
		Name:        name,
		Slug:        slug,
		Color:       rec.String("color"),
		Description: rec.String("description"),
		SortOrder:   rec.Int("sortOrder", rec.Int("sort_order", 0)),
		Active:      rec.Bool("active", true),
	}
}

// NormalizeAuthor maps an author record; avatar may be a string or a media object.
func NormalizeAuthor(rec Record) site.Author {
	avatar := ""
	if ref := imageFromValue(rec.Raw("avatar")); ref != nil {
		avatar = ref.Value
	}
	return site.Author{
		ID:         rec.ID,
		DocumentID: rec.DocumentID,
		Name:       rec.String("name"),
		Bio:        rec.String("bio"),
		Avatar:     avatar,
		Email:      rec.String("email"),
		Website:    rec.String("website"),
	}
}

type relationIndex struct {
	categories map[string]site.Category
	authors    map[string]site.Author
}

func newRelationIndex(cats []site.Category, authors []site.Author) *relationIndex {
	idx := &relationIndex{
		categories: make(map[string]site.Category, len(cats)*2),
		authors:    make(map[string]site.Author, len(authors)*2),
	}
	for _, c := range cats {
		for _, k := range keysFor(c.ID, c.DocumentID) {
			idx.categories[k] = c
		}
	}
	for _, a := range authors {
		for _, k := range keysFor(a.ID, a.DocumentID) {
			idx.authors[k] = a
		}
	}
	return idx
}

func keysFor(id int, documentID string) []string {
	var keys []string
	if id != 0 {
		keys = append(keys, "id:"+strconv.Itoa(id))
	}
	if documentID != "" {
		keys = append(keys, "doc:"+documentID)
	}
	return keys
}

// article builds one canonical article and reports how many relations were dropped.
func (idx *relationIndex) article(rec Record) (site.Article, int) {
	title := rec.String("title")
	slug := site.Slugify(rec.String("slug"))
	if slug == "" {
		slug = site.Slugify(title)
	}

	a := site.Article{
		ID:              rec.ID,
		DocumentID:      rec.DocumentID,
		Title:           title,
		Slug:            slug,
		Excerpt:         rec.String("excerpt"),
		Content:         contentBody(rec.Raw("content")),
		FeaturedImage:   imageFromValue(firstPresent(rec, "featuredImage", "featured_image")),
		MetaTitle:       rec.FirstString("metaTitle", "meta_title"),
		MetaDescription: rec.FirstString("metaDescription", "meta_description"),
		CreatedAt:       rec.Time("createdAt"),
		UpdatedAt:       rec.Time("updatedAt"),
		PublishedAt:     rec.Time("publishedAt"),
		Categories:      []site.CategoryRef{},
	}

	misses := 0
	seen := map[string]bool{}
	for _, item := range relationItems(rec.Raw("categories")) {
		ref, ok := idx.category(item)
		if !ok {
			misses++
			continue
		}
		key := ref.Name + "\x00" + ref.Slug
		if seen[key] {
			continue
		}
		seen[key] = true
		a.Categories = append(a.Categories, ref)
	}

	if items := relationItems(rec.Raw("author")); len(items) > 0 {
		if ref, ok := idx.author(items[0]); ok {
			a.Author = &ref
		} else {
			misses++
		}
	}
	return a, misses
}

func (idx *relationIndex) category(item any) (site.CategoryRef, bool) {
	rec, scalarKey := relationTarget(item)
	for _, k := range lookupKeys(rec, scalarKey) {
		if c, ok := idx.categories[k]; ok {
			return c.Ref(), true
		}
	}
	if rec == nil {
		return site.CategoryRef{}, false
	}
	name := rec.String("name")
	if name == "" {
		return site.CategoryRef{}, false
	}
	slug := site.Slugify(rec.String("slug"))
	if slug == "" {
		slug = site.Slugify(name)
	}
	return site.CategoryRef{ID: rec.ID, DocumentID: rec.DocumentID, Name: name, Slug: slug}, true
}

func (idx *relationIndex) author(item any) (site.AuthorRef, bool) {
	rec, scalarKey := relationTarget(item)
	for _, k := range lookupKeys(rec, scalarKey) {
		if a, ok := idx.authors[k]; ok {
			return a.Ref(), true
		}
	}
	if rec == nil || rec.String("name") == "" {
		return site.AuthorRef{}, false
	}
	return NormalizeAuthor(*rec).Ref(), true
}

// relationItems flattens {data: x}, arrays, bare objects and scalar ids into a list.
func relationItems(v any) []any {
	switch t := v.(type) {
	case nil:
		return nil
	case map[string]any:
		if data, ok := t["data"]; ok && len(t) <= 2 {
			return relationItems(data)
		}
		return []any{t}
	case []any:
		var out []any
		for _, e := range t {
			out = append(out, relationItems(e)...)
		}
		return out
	default:
		return []any{t}
	}
}

// relationTarget returns the embedded record for objects, or a lookup key for scalars.
func relationTarget(item any) (*Record, string) {
	if m, ok := item.(map[string]any); ok {
		rec := recordFromMap(m)
		return &rec, ""
	}
	s := toString(item)
	if s == "" {
		return nil, ""
	}
	if _, err := strconv.Atoi(s); err == nil {
		return nil, "id:" + s
	}
	return nil, "doc:" + s
}

func lookupKeys(rec *Record, scalarKey string) []string {
	if rec == nil {
		if scalarKey == "" {
			return nil
		}
		return []string{scalarKey}
	}
	return keysFor(rec.ID, rec.DocumentID)
}

func firstPresent(rec Record, keys ...string) any {
	for _, k := range keys {
		if v, ok := rec.Attrs[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

// imageFromValue classifies a featured image field. Bare strings are classified by
// prefix; structured media objects always resolve against the content API.
func imageFromValue(v any) *site.ImageRef {
	switch t := v.(type) {
	case string:
		return site.NewImageRef(t)
	case map[string]any, []any:
		items := relationItems(t)
		if len(items) == 0 {
			return nil
		}
		m, ok := items[0].(map[string]any)
		if !ok {
			return nil
		}
		rec := recordFromMap(m)
		u := rec.String("url")
		if u == "" {
			return nil
		}
		if kind := site.ClassifyImage(u); kind == site.ImageInline || kind == site.ImageRemote {
			return &site.ImageRef{Kind: kind, Value: u}
		}
		return &site.ImageRef{Kind: site.ImageMedia, Value: u}
	default:
		return nil
	}
}
