// Package events publishes ingestion events on NATS.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// DefaultSubject is used when no subject is configured.
const DefaultSubject = "ipcr.document.ingested"

// DocumentIngested is emitted after a document and its counter increment are committed.
type DocumentIngested struct {
	DocumentID    string    `json:"documentId"`
	OwnerID       string    `json:"ownerId"`
	Category      string    `json:"category"`
	CategoryLabel string    `json:"categoryLabel"`
	AcademicYear  string    `json:"academicYear"`
	Semester      string    `json:"semester"`
	Confidence    float64   `json:"confidence"`
	Archived      bool      `json:"archived"`
	UploadedAt    time.Time `json:"uploadedAt"`
}

type conn interface {
	Publish(subject string, data []byte) error
	Close()
}

// Publisher sends events to one subject. A nil *Publisher drops every event.
type Publisher struct {
	conn    conn
	subject string
	logger  *zap.Logger
}

// Connect dials NATS. An empty url yields a nil publisher and no error.
func Connect(url, subject string, logger *zap.Logger) (*Publisher, error) {
	if url == "" {
		return nil, nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	nc, err := nats.Connect(
		url,
		nats.Name("ipcr-api"),
		nats.Timeout(2*time.Second),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(60),
		nats.RetryOnFailedConnect(true),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return newPublisher(nc, subject, logger), nil
}

func newPublisher(c conn, subject string, logger *zap.Logger) *Publisher {
	if subject == "" {
		subject = DefaultSubject
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{conn: c, subject: subject, logger: logger}
}

// PublishDocumentIngested sends evt. Callers treat failures as best-effort.
func (p *Publisher) PublishDocumentIngested(ctx context.Context, evt DocumentIngested) error {
	if p == nil || p.conn == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := p.conn.Publish(p.subject, payload); err != nil {
		return fmt.Errorf("nats publish: %w", err)
	}
	return nil
}

// Close closes the underlying connection.
func (p *Publisher) Close() {
	if p != nil && p.conn != nil {
		p.conn.Close()
	}
}
