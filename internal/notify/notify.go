// Package notify publishes finished build results for downstream consumers.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/sitebuilder/internal/config"
	"git.home.luguber.info/inful/sitebuilder/internal/pipeline"
	"git.home.luguber.info/inful/sitebuilder/internal/version"
)

// Publisher delivers build results.
type Publisher interface {
	Publish(ctx context.Context, jobID string, result *pipeline.BuildResult) error
	Close() error
}

// Message is the wire envelope of one published result.
type Message struct {
	JobID       string                `json:"jobId"`
	Site        string                `json:"site"`
	Success     bool                  `json:"success"`
	PublishedAt time.Time             `json:"publishedAt"`
	Generator   string                `json:"generator"`
	Result      *pipeline.BuildResult `json:"result"`
}

func encode(jobID string, result *pipeline.BuildResult, now time.Time) ([]byte, error) {
	msg := Message{
		JobID:       jobID,
		PublishedAt: now.UTC(),
		Generator:   version.Generator(),
		Result:      result,
	}
	if result != nil {
		msg.Site = result.Site
		msg.Success = result.Success
	}
	return json.Marshal(msg)
}

// New returns a NATS publisher when cfg names a server, otherwise a no-op.
func New(cfg config.NotifyConfig, logger *slog.Logger) (Publisher, error) {
	if !cfg.Enabled() {
		return NoopPublisher{}, nil
	}
	return NewNATSPublisher(cfg, logger)
}

// NoopPublisher drops every result.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, string, *pipeline.BuildResult) error { return nil }
func (NoopPublisher) Close() error                                                 { return nil }
