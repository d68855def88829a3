// Package site holds the canonical content model shared by every pipeline stage:
// articles, categories, authors, the per-site configuration and image references.
package site
