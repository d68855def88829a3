package notify

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"git.home.luguber.info/inful/sitebuilder/internal/config"
	"git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
	"git.home.luguber.info/inful/sitebuilder/internal/pipeline"
)

const (
	connectTimeout = 5 * time.Second
	publishTimeout = 5 * time.Second
	// HeaderSite carries the built domain on every message.
	HeaderSite = "Sitebuilder-Site"
)

// NATSPublisher publishes results to a JetStream stream.
type NATSPublisher struct {
	conn    *nats.Conn
	js      jetstream.JetStream
	subject string
	stream  string
	logger  *slog.Logger
}

// NewNATSPublisher connects and ensures the stream exists.
func NewNATSPublisher(cfg config.NotifyConfig, logger *slog.Logger) (*NATSPublisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	conn, err := nats.Connect(cfg.NATSURL,
		nats.Name("sitebuilder"),
		nats.Timeout(connectTimeout),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryNetwork, "connect to NATS").
			Retryable().
			WithContext("url", cfg.NATSURL).
			Build()
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, errors.WrapError(err, errors.CategoryRuntime, "create JetStream context").Build()
	}

	p := &NATSPublisher{conn: conn, js: js, subject: cfg.Subject, stream: cfg.Stream, logger: logger}
	if err := p.ensureStream(); err != nil {
		conn.Close()
		return nil, err
	}
	logger.Info("NATS result publisher initialized",
		logfields.URL(cfg.NATSURL), slog.String("subject", cfg.Subject), slog.String("stream", cfg.Stream))
	return p, nil
}

func (p *NATSPublisher) ensureStream() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := p.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        p.stream,
		Description: "Site build results",
		Subjects:    []string{p.subject},
		MaxAge:      7 * 24 * time.Hour,
		Duplicates:  time.Hour,
	})
	if err != nil {
		return errors.WrapError(err, errors.CategoryRuntime, "ensure JetStream stream").
			WithContext("stream", p.stream).
			Build()
	}
	return nil
}

// Publish sends one result. The job id is the JetStream message id, so a
// retried publish of the same job is deduplicated by the server.
func (p *NATSPublisher) Publish(ctx context.Context, jobID string, result *pipeline.BuildResult) error {
	data, err := encode(jobID, result, time.Now())
	if err != nil {
		return errors.WrapError(err, errors.CategoryInternal, "encode build result").Build()
	}

	msg := nats.NewMsg(p.subject)
	msg.Data = data
	if result != nil {
		msg.Header.Set(HeaderSite, result.Site)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if _, err := p.js.PublishMsg(ctx, msg, jetstream.WithMsgID(msgID(jobID))); err != nil {
		return errors.WrapError(err, errors.CategoryNetwork, "publish build result").
			Retryable().
			WithContext("subject", p.subject).
			WithContext("job_id", jobID).
			Build()
	}
	p.logger.Debug("Published build result", logfields.JobID(jobID), slog.String("subject", p.subject))
	return nil
}

func msgID(jobID string) string {
	return "sitebuilder-" + strings.TrimSpace(jobID)
}

// Close drains the connection.
func (p *NATSPublisher) Close() error {
	if p.conn == nil {
		return nil
	}
	return p.conn.Drain()
}
