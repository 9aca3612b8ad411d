package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/depowered/culvertvision/internal/core/domain"
)

const (
	// StreamName holds every pipeline event.
	StreamName = "POINTCLOUD_EVENTS"
	// SubjectAll matches tile events and run summaries.
	SubjectAll = "pointcloud.>"

	subjectTile = "pointcloud.tile"
	subjectRun  = "pointcloud.run"
)

// TileSubject is the subject a tile event is published on.
func TileSubject(ev domain.TileEvent) string {
	return fmt.Sprintf("%s.%s.%s", subjectTile, ev.RunID, ev.Status)
}

// RunSubject is the subject a run summary is published on.
func RunSubject(runID string) string {
	return subjectRun + "." + runID
}

// TileFilter matches tile events of one run, or of every run when runID is empty.
func TileFilter(runID string) string {
	if runID == "" {
		return subjectTile + ".>"
	}
	return subjectTile + "." + runID + ".>"
}

// RunFilter matches run summaries of one run, or of every run when runID is empty.
func RunFilter(runID string) string {
	if runID == "" {
		return subjectRun + ".>"
	}
	return RunSubject(runID)
}

// Publisher implements ports.EventPublisher using NATS JetStream.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher connects to NATS and ensures the event stream exists.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	cfg := nats.StreamConfig{
		Name:      StreamName,
		Subjects:  []string{SubjectAll},
		Retention: nats.LimitsPolicy,
		MaxAge:    7 * 24 * time.Hour,
		Storage:   nats.FileStorage,
	}
	if _, err := js.AddStream(&cfg); err != nil {
		// Stream may already exist; try update
		if _, err := js.UpdateStream(&cfg); err != nil {
			return nil, fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
		}
	}

	return &Publisher{conn: conn, js: js}, nil
}

func (p *Publisher) PublishTileEvent(ctx context.Context, ev domain.TileEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(TileSubject(ev), data, nats.Context(ctx))
	return err
}

func (p *Publisher) PublishRunSummary(ctx context.Context, s domain.RunSummary) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(RunSubject(s.RunID), data, nats.Context(ctx))
	return err
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// RawConn creates a plain NATS connection for subscribing (e.g. WebSocket relay).
func RawConn(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}
