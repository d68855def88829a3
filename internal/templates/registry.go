// Package templates maps logical template identifiers to static-site project
// directories and serializes builds that share a directory.
package templates

import (
	stdErrors "errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"git.home.luguber.info/inful/sitebuilder/internal/config"
	"git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
)

// ErrTemplateNotFound is matched by every unresolved-template error.
var ErrTemplateNotFound = stdErrors.New("template not found")

// Resolution records how an identifier was mapped to a directory.
type Resolution struct {
	Requested string `json:"requested"`
	ID        string `json:"id"`
	Dir       string `json:"dir"`
	FellBack  bool   `json:"fellBack"`
}

// Registry is the static identifier -> directory table.
type Registry struct {
	root      string
	defaultID string
	table     map[string]string
	logger    *slog.Logger
}

// NewRegistry builds a registry from config. Relative table entries are resolved against the root.
func NewRegistry(cfg config.TemplatesConfig, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	table := make(map[string]string, len(cfg.Table))
	for id, dir := range cfg.Table {
		table[id] = dir
	}
	return &Registry{root: cfg.Root, defaultID: cfg.Default, table: table, logger: logger}
}

// IDs returns the known identifiers in sorted order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.table))
	for id := range r.table {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Lookup maps id to a directory without touching the filesystem. An unknown
// identifier falls back to the default template.
func (r *Registry) Lookup(id string) Resolution {
	res := Resolution{Requested: id, ID: id}
	dir, ok := r.table[id]
	if !ok {
		if id != "" {
			r.logger.Warn("Unknown template, falling back to default",
				logfields.Template(id), slog.String("default", r.defaultID))
		}
		res.ID = r.defaultID
		res.FellBack = id != ""
		dir, ok = r.table[r.defaultID]
		if !ok {
			dir = r.defaultID
		}
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(r.root, dir)
	}
	res.Dir = filepath.Clean(dir)
	return res
}

// Resolve maps id to an existing directory. A missing directory, even after
// falling back to the default, is a fatal template error.
func (r *Registry) Resolve(id string) (*Resolution, error) {
	res := r.Lookup(id)
	info, err := os.Stat(res.Dir)
	if err == nil && info.IsDir() {
		return &res, nil
	}
	cause := fmt.Errorf("%w: %s", ErrTemplateNotFound, res.Dir)
	return nil, errors.WrapError(cause, errors.CategoryTemplate, fmt.Sprintf("template %q could not be resolved", id)).
		Fatal().
		WithContext("requested", id).
		WithContext("resolved", res.ID).
		WithContext("dir", res.Dir).
		Build()
}
