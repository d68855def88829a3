package assets

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/sitebuilder/internal/config"
)

// Namer chooses the file name (without extension) for a materialized image.
type Namer interface {
	// Name returns the base name for sourceRef.
	Name(sourceRef string) string
	// Reusable reports whether an existing file with the same base name may be reused.
	Reusable() bool
}

// RandomNamer produces <unix-millis>-<token> names. Reruns always download again.
type RandomNamer struct {
	Now func() time.Time
}

func (n RandomNamer) Name(string) string {
	now := time.Now
	if n.Now != nil {
		now = n.Now
	}
	token := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return fmt.Sprintf("%d-%s", now().UnixMilli(), token)
}

func (RandomNamer) Reusable() bool { return false }

// ContentNamer names files by the sha256 of the source reference so a rerun
// finds the file written by the previous run.
type ContentNamer struct{}

func (ContentNamer) Name(sourceRef string) string {
	sum := sha256.Sum256([]byte(sourceRef))
	return hex.EncodeToString(sum[:16])
}

func (ContentNamer) Reusable() bool { return true }

// NamerFor maps the configured naming mode to a Namer.
func NamerFor(mode config.AssetNaming) Namer {
	if config.NormalizeAssetNaming(string(mode)) == config.AssetNamingContent {
		return ContentNamer{}
	}
	return RandomNamer{}
}

// existingFile returns a previously materialized file with base name in dir.
func existingFile(dir, base string) (string, bool) {
	matches, err := filepath.Glob(filepath.Join(dir, base+".*"))
	if err != nil || len(matches) == 0 {
		return "", false
	}
	return matches[0], true
}
