// Package control is the command/query surface shared by every front end
// (HTTP today). It owns no state; the worker, queue, registry and log
// buffer do.
package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/patent-collector/internal/patent"
	"github.com/JakeFAU/patent-collector/internal/publisher/memory"
	"github.com/JakeFAU/patent-collector/internal/worker"
)

// ErrEmptyURL rejects an enqueue without a URL.
var ErrEmptyURL = errors.New("empty url")

// Worker is the command side of the worker.
type Worker interface {
	Pause(ctx context.Context) (worker.Status, error)
	Resume(ctx context.Context) (worker.Status, error)
	TogglePause(ctx context.Context) (worker.Status, error)
	SkipCurrent(ctx context.Context) (worker.Status, error)
	Status() worker.Status
}

// Queue accepts new tasks.
type Queue interface {
	Enqueue(ctx context.Context, task patent.Task) error
	Len() int
}

// Catalog lists identifier directories.
type Catalog interface {
	List(isSkipped func(id string) bool) ([]patent.Listing, error)
}

// Registry answers skip-registry membership.
type Registry interface {
	Contains(id string) bool
}

// Logs exposes buffered operator lines.
type Logs interface {
	Lines() []string
}

// EventSource retains recently published completion events.
type EventSource interface {
	Messages() []memory.PublishedMessage
}

// Event is one retained completion event.
type Event struct {
	ID      string          `json:"id"`
	Topic   string          `json:"topic"`
	Payload json.RawMessage `json:"payload"`
}

// LogSnapshot is the result of PollLogs.
type LogSnapshot struct {
	Logs      []string `json:"logs"`
	QueueSize int      `json:"queue_size"`
}

// Service implements the control operations.
type Service struct {
	worker   Worker
	queue    Queue
	catalog  Catalog
	registry Registry
	logs     Logs
	events   EventSource
	clock    patent.Clock
	logger   *zap.Logger
}

// New constructs a Service.
func New(
	w Worker,
	queue Queue,
	catalog Catalog,
	registry Registry,
	logs Logs,
	events EventSource,
	clock patent.Clock,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		worker:   w,
		queue:    queue,
		catalog:  catalog,
		registry: registry,
		logs:     logs,
		events:   events,
		clock:    clock,
		logger:   logger,
	}
}

// Enqueue queues url. Only the empty string is rejected; duplicates are
// processed independently.
func (s *Service) Enqueue(ctx context.Context, url string) error {
	if url == "" {
		return ErrEmptyURL
	}
	if err := s.queue.Enqueue(ctx, patent.Task{URL: url, Submitted: s.clock.Now()}); err != nil {
		return fmt.Errorf("enqueue %s: %w", url, err)
	}
	s.logger.Info("task enqueued", zap.String("url", url), zap.Int("pending", s.queue.Len()))
	return nil
}

// SetPaused opens or closes the dequeue gate.
func (s *Service) SetPaused(ctx context.Context, paused bool) (worker.Status, error) {
	if paused {
		return s.worker.Pause(ctx)
	}
	return s.worker.Resume(ctx)
}

// TogglePause flips the dequeue gate.
func (s *Service) TogglePause(ctx context.Context) (worker.Status, error) {
	return s.worker.TogglePause(ctx)
}

// Start opens the dequeue gate.
func (s *Service) Start(ctx context.Context) (worker.Status, error) {
	return s.worker.Resume(ctx)
}

// RequestSkip abandons the in-flight item at its next checkpoint.
func (s *Service) RequestSkip(ctx context.Context) (worker.Status, error) {
	return s.worker.SkipCurrent(ctx)
}

// IsDownloading reports whether an item is in flight.
func (s *Service) IsDownloading() bool {
	return s.worker.Status().Processing
}

// Status returns the worker snapshot.
func (s *Service) Status() worker.Status {
	return s.worker.Status()
}

// ListRecords lists every identifier directory with its derived status.
func (s *Service) ListRecords() ([]patent.Listing, error) {
	items, err := s.catalog.List(s.registry.Contains)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	return items, nil
}

// PollLogs returns recent operator lines and the pending queue length.
func (s *Service) PollLogs() LogSnapshot {
	return LogSnapshot{
		Logs:      s.logs.Lines(),
		QueueSize: s.queue.Len(),
	}
}

// RecentEvents returns retained completion events, oldest first. It is empty
// when events go to an external broker.
func (s *Service) RecentEvents() []Event {
	if s.events == nil {
		return []Event{}
	}
	msgs := s.events.Messages()
	out := make([]Event, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, Event{ID: m.ID, Topic: m.Topic, Payload: json.RawMessage(m.Data)})
	}
	return out
}
