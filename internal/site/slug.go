package site

import (
	"regexp"
	"strings"
)

var (
	// \s is ASCII-only in RE2; CMS titles also carry no-break and other Unicode spaces.
	slugStrip    = regexp.MustCompile(`[^a-z0-9\s\v\p{Z}\x{FEFF}-]`)
	slugCollapse = regexp.MustCompile(`[\s\v\p{Z}\x{FEFF}-]+`)

	// SlugPattern is the shape every non-empty slug must have.
	SlugPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)
)

// Slugify lowercases s, strips everything outside [a-z0-9], whitespace
// (Unicode spaces included) and hyphens, collapses whitespace/hyphen runs to
// one hyphen and trims hyphens.
// Slugify(Slugify(s)) == Slugify(s).
func Slugify(s string) string {
	s = strings.ToLower(s)
	s = slugStrip.ReplaceAllString(s, "")
	s = slugCollapse.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}
