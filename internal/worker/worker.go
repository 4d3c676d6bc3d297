// Package worker runs the single-consumer patent pipeline.
//
// The worker owns its pause gate and the cancellation of the in-flight item.
// Other goroutines reach it only through commands, which the Run loop
// consumes, and read its state through an atomically published Status.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/patent-collector/internal/artifact"
	"github.com/JakeFAU/patent-collector/internal/extract"
	"github.com/JakeFAU/patent-collector/internal/metrics"
	"github.com/JakeFAU/patent-collector/internal/patent"
)

// Default wait intervals of the Run loop.
const (
	DefaultPausePoll   = time.Second
	DefaultDequeueWait = 2 * time.Second
)

// ErrNotRunning is returned by commands sent after Run has returned.
var ErrNotRunning = errors.New("worker is not running")

// Queue is the task source consumed by the worker.
type Queue interface {
	TryDequeue() (patent.Task, bool)
	Ready() <-chan struct{}
	Len() int
	MarkDone()
}

// Registry records identifiers flagged to be bypassed.
type Registry interface {
	Add(id string) bool
	Remove(id string) bool
}

// Extractor turns a parsed page into a record.
type Extractor interface {
	Extract(doc *goquery.Document, id, sourceURL string) patent.Record
}

// ArtifactStore materializes artifact sets.
type ArtifactStore interface {
	Prepare(id string) (string, error)
	Persist(ctx context.Context, id string, rec patent.Record, doc *goquery.Document) (artifact.Result, error)
}

// Journal receives operator-facing progress lines.
type Journal interface {
	Printf(format string, args ...any)
}

// Deps bundles the collaborators of a Worker. Publisher, Indexer, Hasher and
// IDs are optional.
type Deps struct {
	Queue     Queue
	Fetcher   patent.Fetcher
	Extractor Extractor
	Store     ArtifactStore
	Registry  Registry
	Journal   Journal
	Clock     patent.Clock
	Publisher patent.Publisher
	Indexer   patent.Indexer
	Hasher    patent.Hasher
	IDs       patent.IDGenerator
}

// Config controls Worker behavior.
type Config struct {
	PausePoll   time.Duration
	DequeueWait time.Duration
	// Headers are sent with every page fetch.
	Headers map[string]string
	// Topic receives a completion event per successful task when a
	// Publisher is configured.
	Topic string
	// StartPaused holds the dequeue gate closed until Resume.
	StartPaused bool
}

// Worker consumes queue items and executes the patent pipeline.
type Worker struct {
	deps   Deps
	cfg    Config
	logger *zap.Logger

	commands chan command
	stopped  chan struct{}
	status   atomic.Pointer[Status]

	// Owned by the Run goroutine.
	paused        bool
	processed     int
	skipRequested bool
}

// New constructs a Worker.
func New(deps Deps, cfg Config, logger *zap.Logger) *Worker {
	if cfg.PausePoll <= 0 {
		cfg.PausePoll = DefaultPausePoll
	}
	if cfg.DequeueWait <= 0 {
		cfg.DequeueWait = DefaultDequeueWait
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &Worker{
		deps:     deps,
		cfg:      cfg,
		logger:   logger,
		commands: make(chan command),
		stopped:  make(chan struct{}),
		paused:   cfg.StartPaused,
	}
	w.publishStatus("")
	return w
}

// Status returns the latest published snapshot with a live queue length.
func (w *Worker) Status() Status {
	st := *w.status.Load()
	st.Pending = w.deps.Queue.Len()
	return st
}

// Run blocks, consuming queue items until the context finishes.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.stopped)
	for {
		if ctx.Err() != nil {
			return
		}
		if w.paused {
			w.publishStatus("")
			if !w.wait(ctx, w.cfg.PausePoll, nil) {
				return
			}
			continue
		}
		task, ok := w.deps.Queue.TryDequeue()
		if !ok {
			w.publishStatus("")
			if !w.wait(ctx, w.cfg.DequeueWait, w.deps.Queue.Ready()) {
				return
			}
			continue
		}
		w.process(ctx, task)
	}
}

// wait blocks for up to d, handling commands. It returns false once ctx is done.
func (w *Worker) wait(ctx context.Context, d time.Duration, ready <-chan struct{}) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case cmd := <-w.commands:
		w.apply(cmd, nil)
	case <-ready:
	case <-timer.C:
	}
	return true
}

func (w *Worker) process(ctx context.Context, task patent.Task) {
	itemCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	w.skipRequested = false
	w.publishStatus(task.URL)
	metrics.SetWorkerBusy(true)
	defer metrics.SetWorkerBusy(false)

	done := make(chan outcome, 1)
	go func() {
		done <- w.runPipeline(itemCtx, task)
	}()

	for {
		select {
		case out := <-done:
			w.finish(ctx, task, out)
			return
		case cmd := <-w.commands:
			w.apply(cmd, cancel)
		}
	}
}

type outcome struct {
	id     string
	err    error
	bytes  int
	result artifact.Result
	start  time.Time
}

func (w *Worker) runPipeline(ctx context.Context, task patent.Task) outcome {
	out := outcome{start: w.deps.Clock.Now()}

	id, err := patent.ResolveIdentifier(task.URL)
	if err != nil {
		w.deps.Journal.Printf("[Error] URL parse failed: %s", task.URL)
		out.err = err
		return out
	}
	out.id = id
	w.deps.Journal.Printf("Processing: %s", id)

	if _, err := w.deps.Store.Prepare(id); err != nil {
		w.deps.Journal.Printf("[Fail] Cannot create directory: %v", err)
		out.err = err
		return out
	}
	w.deps.Journal.Printf("Analyzing: %s ...", id)

	resp, err := w.deps.Fetcher.Fetch(ctx, patent.FetchRequest{URL: task.URL, Headers: w.cfg.Headers})
	if err != nil {
		if ctx.Err() != nil {
			out.err = fmt.Errorf("%w: %w", patent.ErrSkipped, ctx.Err())
			return out
		}
		w.deps.Journal.Printf("[Fail] Web request error: %v", err)
		out.err = fmt.Errorf("fetch %s: %w", id, err)
		return out
	}
	out.bytes = len(resp.Body)

	doc, err := extract.Parse(resp.Body)
	if err != nil {
		w.deps.Journal.Printf("[Fail] Web request error: %v", err)
		out.err = fmt.Errorf("%w: %w", patent.ErrFetch, err)
		return out
	}

	rec := w.deps.Extractor.Extract(doc, id, task.URL)
	if len(rec.Gaps) > 0 {
		w.logger.Debug("fields fell back to defaults", zap.String("patent_id", id), zap.Strings("fields", rec.Gaps))
	}

	res, err := w.deps.Store.Persist(ctx, id, rec, doc)
	out.result = res
	if err != nil {
		if !errors.Is(err, patent.ErrSkipped) {
			w.deps.Journal.Printf("[Error] Metadata write failed: %v", err)
		}
		out.err = err
		return out
	}

	w.export(ctx, res.Record, resp.Body, len(res.Written))
	return out
}

// export notifies the optional publisher and index. Failures are logged only.
func (w *Worker) export(ctx context.Context, rec patent.Record, body []byte, written int) {
	var pageHash string
	if w.deps.Hasher != nil {
		h, err := w.deps.Hasher.Hash(body)
		if err != nil {
			w.logger.Warn("page hash failed", zap.String("patent_id", rec.ID), zap.Error(err))
		}
		pageHash = h
	}

	if w.deps.Indexer != nil {
		if err := w.deps.Indexer.UpsertRecord(ctx, rec, pageHash); err != nil {
			w.logger.Warn("index upsert failed", zap.String("patent_id", rec.ID), zap.Error(err))
		}
	}

	if w.deps.Publisher == nil || w.cfg.Topic == "" {
		return
	}
	runID := ""
	if w.deps.IDs != nil {
		id, err := w.deps.IDs.NewID()
		if err != nil {
			w.logger.Warn("run id generation failed", zap.Error(err))
		}
		runID = id
	}
	payload := map[string]any{
		"run_id":        runID,
		"patent_id":     rec.ID,
		"url":           rec.URL,
		"title":         rec.Title,
		"status":        rec.Status,
		"page_hash":     pageHash,
		"files_written": written,
		"last_updated":  rec.LastUpdated.Format(time.RFC3339),
	}
	msgID, err := w.deps.Publisher.Publish(ctx, w.cfg.Topic, payload)
	if err != nil {
		w.logger.Warn("publish completion failed", zap.String("patent_id", rec.ID), zap.Error(err))
		return
	}
	w.logger.Info("completion published",
		zap.String("patent_id", rec.ID),
		zap.String("run_id", runID),
		zap.String("message_id", msgID),
	)
}

// finish applies the registry transition for out and returns to Idle.
func (w *Worker) finish(ctx context.Context, task patent.Task, out outcome) {
	elapsed := w.deps.Clock.Now().Sub(out.start)
	fields := []zap.Field{
		zap.String("url", task.URL),
		zap.String("patent_id", out.id),
		zap.Duration("elapsed", elapsed),
	}

	switch {
	case out.err == nil:
		if w.deps.Registry.Remove(out.id) {
			w.logger.Info("removed from skip registry", zap.String("patent_id", out.id))
		}
		w.deps.Journal.Printf("[Success] %s Updated", out.id)
		metrics.ObservePatent(metrics.OutcomeSuccess, out.bytes, elapsed)
		w.logger.Info("patent processed", append(fields, zap.Int("files_written", len(out.result.Written)))...)
	case errors.Is(out.err, patent.ErrSkipped) && w.skipRequested && ctx.Err() == nil:
		if out.id != "" {
			w.deps.Registry.Add(out.id)
		}
		w.deps.Journal.Printf("[Skip] %s abandoned", displayID(out.id, task.URL))
		metrics.ObservePatent(metrics.OutcomeSkipped, out.bytes, elapsed)
		w.logger.Info("patent skipped", fields...)
	case errors.Is(out.err, patent.ErrSkipped):
		// Shutdown interrupted the item; the registry is left alone.
		w.logger.Info("patent interrupted", fields...)
	case errors.Is(out.err, patent.ErrParse):
		metrics.ObservePatent(metrics.OutcomeParse, 0, elapsed)
		w.logger.Warn("patent url rejected", append(fields, zap.Error(out.err))...)
	case errors.Is(out.err, patent.ErrPersistence):
		metrics.ObservePatent(metrics.OutcomePersist, out.bytes, elapsed)
		w.logger.Error("patent persistence failed", append(fields, zap.Error(out.err))...)
	default:
		metrics.ObservePatent(metrics.OutcomeFetch, out.bytes, elapsed)
		w.logger.Warn("patent fetch failed", append(fields, zap.Error(out.err))...)
	}

	w.deps.Queue.MarkDone()
	w.processed++
	w.skipRequested = false
	w.publishStatus("")
}

func displayID(id, url string) string {
	if id != "" {
		return id
	}
	return url
}

func (w *Worker) publishStatus(current string) {
	st := Status{
		Paused:     w.paused,
		Processing: current != "",
		Current:    current,
		Pending:    w.deps.Queue.Len(),
		Processed:  w.processed,
	}
	switch {
	case st.Processing:
		st.State = StateProcessing
	case st.Paused:
		st.State = StatePaused
	default:
		st.State = StateIdle
	}
	w.status.Store(&st)
	metrics.SetQueuePending(st.Pending)
}
