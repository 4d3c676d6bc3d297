package worker

import (
	"context"
	"fmt"
)

// State is the coarse worker state.
type State string

// Worker states.
const (
	StateIdle       State = "idle"
	StatePaused     State = "paused"
	StateProcessing State = "processing"
)

// Status is an immutable snapshot of the worker.
type Status struct {
	State      State  `json:"state"`
	Paused     bool   `json:"paused"`
	Processing bool   `json:"processing"`
	Current    string `json:"current,omitempty"`
	Pending    int    `json:"pending"`
	Processed  int    `json:"processed"`
}

type commandKind int

const (
	cmdPause commandKind = iota
	cmdResume
	cmdToggle
	cmdSkip
)

type command struct {
	kind  commandKind
	reply chan Status
}

// Pause closes the dequeue gate. An in-flight item runs to completion.
func (w *Worker) Pause(ctx context.Context) (Status, error) {
	return w.send(ctx, cmdPause)
}

// Resume opens the dequeue gate.
func (w *Worker) Resume(ctx context.Context) (Status, error) {
	return w.send(ctx, cmdResume)
}

// TogglePause flips the dequeue gate.
func (w *Worker) TogglePause(ctx context.Context) (Status, error) {
	return w.send(ctx, cmdToggle)
}

// SkipCurrent abandons the in-flight item at its next checkpoint. It is a
// no-op while nothing is processing.
func (w *Worker) SkipCurrent(ctx context.Context) (Status, error) {
	return w.send(ctx, cmdSkip)
}

func (w *Worker) send(ctx context.Context, kind commandKind) (Status, error) {
	cmd := command{kind: kind, reply: make(chan Status, 1)}
	select {
	case w.commands <- cmd:
	case <-w.stopped:
		return Status{}, ErrNotRunning
	case <-ctx.Done():
		return Status{}, fmt.Errorf("send worker command: %w", ctx.Err())
	}
	select {
	case st := <-cmd.reply:
		return st, nil
	case <-ctx.Done():
		return Status{}, fmt.Errorf("await worker reply: %w", ctx.Err())
	}
}

// apply runs on the Run goroutine. cancel is non-nil while an item is in flight.
func (w *Worker) apply(cmd command, cancel func()) {
	switch cmd.kind {
	case cmdPause:
		w.paused = true
	case cmdResume:
		w.paused = false
	case cmdToggle:
		w.paused = !w.paused
	case cmdSkip:
		if cancel != nil {
			w.skipRequested = true
			cancel()
		}
	}
	current := ""
	if cancel != nil {
		current = w.status.Load().Current
	}
	w.publishStatus(current)
	cmd.reply <- w.Status()
}
