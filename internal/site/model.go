package site

import "time"

// Article is the canonical article record after normalization.
type Article struct {
	ID              int           `json:"id"`
	DocumentID      string        `json:"documentId"`
	Title           string        `json:"title"`
	Slug            string        `json:"slug"`
	Excerpt         string        `json:"excerpt"`
	Content         string        `json:"content"`
	FeaturedImage   *ImageRef     `json:"featuredImage"`
	MetaTitle       string        `json:"metaTitle"`
	MetaDescription string        `json:"metaDescription"`
	CreatedAt       *time.Time    `json:"createdAt,omitempty"`
	UpdatedAt       *time.Time    `json:"updatedAt,omitempty"`
	PublishedAt     *time.Time    `json:"publishedAt,omitempty"`
	Categories      []CategoryRef `json:"categories"`
	Author          *AuthorRef    `json:"author"`
}

// CategoryRef is a resolved reference from an article to a category.
type CategoryRef struct {
	ID         int    `json:"id,omitempty"`
	DocumentID string `json:"documentId,omitempty"`
	Name       string `json:"name"`
	Slug       string `json:"slug"`
}

// AuthorRef is a resolved reference from an article to its author.
type AuthorRef struct {
	ID         int    `json:"id,omitempty"`
	DocumentID string `json:"documentId,omitempty"`
	Name       string `json:"name"`
	Avatar     string `json:"avatar,omitempty"`
}

// Category is a content-store category.
type Category struct {
	ID          int    `json:"id"`
	DocumentID  string `json:"documentId"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Color       string `json:"color"`
	Description string `json:"description"`
	SortOrder   int    `json:"sortOrder"`
	Active      bool   `json:"active"`
}

// Ref returns the reference form of the category.
func (c Category) Ref() CategoryRef {
	return CategoryRef{ID: c.ID, DocumentID: c.DocumentID, Name: c.Name, Slug: c.Slug}
}

// Author is a content-store author.
type Author struct {
	ID         int    `json:"id"`
	DocumentID string `json:"documentId"`
	Name       string `json:"name"`
	Bio        string `json:"bio"`
	Avatar     string `json:"avatar"`
	Email      string `json:"email"`
	Website    string `json:"website"`
}

// Ref returns the reference form of the author.
func (a Author) Ref() AuthorRef {
	return AuthorRef{ID: a.ID, DocumentID: a.DocumentID, Name: a.Name, Avatar: a.Avatar}
}

// Config is the per-site configuration supplied by the operator.
type Config struct {
	Domain      string   `json:"domain"`
	SiteName    string   `json:"siteName"`
	Description string   `json:"description"`
	Keywords    []string `json:"keywords"`
	Theme       string   `json:"theme"`
	Template    string   `json:"template"`
	AnalyticsID string   `json:"analyticsId,omitempty"`
}
