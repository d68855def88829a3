package site

import (
	"encoding/json"
	"strings"
)

// ImageKind classifies the shape of an image reference.
type ImageKind string

const (
	ImageLocal  ImageKind = "local"  // already served by the site (/ or ./ prefix)
	ImageInline ImageKind = "inline" // data: URI
	ImageRemote ImageKind = "remote" // absolute http(s) URL
	ImageMedia  ImageKind = "media"  // structured media object, URL may be relative to the content API
)

// ImageRef is a featured image reference. A nil *ImageRef encodes as JSON null.
type ImageRef struct {
	Kind  ImageKind
	Value string
}

// IsLocalPath reports whether ref already points at a site-local file.
func IsLocalPath(ref string) bool {
	return strings.HasPrefix(ref, "/") || strings.HasPrefix(ref, "./")
}

// ClassifyImage infers the kind of a bare string reference.
// Anything that is neither local, inline nor absolute http(s) is treated as a
// media path relative to the content API.
func ClassifyImage(ref string) ImageKind {
	lower := strings.ToLower(ref)
	switch {
	case strings.HasPrefix(lower, "data:"):
		return ImageInline
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
		return ImageRemote
	case strings.HasPrefix(ref, "//"):
		return ImageRemote
	case IsLocalPath(ref):
		return ImageLocal
	default:
		return ImageMedia
	}
}

// NewImageRef builds a reference from a bare string, returning nil for blank input.
func NewImageRef(ref string) *ImageRef {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil
	}
	return &ImageRef{Kind: ClassifyImage(ref), Value: ref}
}

// IsLocal reports whether the reference needs no materialization.
func (r *ImageRef) IsLocal() bool {
	return r != nil && r.Kind == ImageLocal
}

// MarshalJSON emits the bare reference string; the site document only carries paths.
func (r *ImageRef) MarshalJSON() ([]byte, error) {
	if r == nil {
		return []byte("null"), nil
	}
	return json.Marshal(r.Value)
}

// UnmarshalJSON accepts the string form written by MarshalJSON.
func (r *ImageRef) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	ref := NewImageRef(s)
	if ref == nil {
		*r = ImageRef{}
		return nil
	}
	*r = *ref
	return nil
}
