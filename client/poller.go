package client

import (
	"context"
	"errors"
	"time"

	"podlight/job"
)

// DefaultPollInterval is used when a Watcher is built without one.
const DefaultPollInterval = 2 * time.Second

// State is the watcher's local lifecycle, driven by (but distinct from)
// the server-side job status.
type State int

const (
	StateUpload State = iota
	StateProcessing
	StateComplete
)

// Watcher triggers processing for a job once and polls its status until
// it reaches a terminal state.
type Watcher struct {
	client   *Client
	interval time.Duration
	state    State
}

func NewWatcher(c *Client, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Watcher{client: c, interval: interval, state: StateUpload}
}

// State returns the watcher's current local state.
func (w *Watcher) State() State { return w.state }

// Watch fires one trigger for the job (failures there are logged only:
// the job may already be running) and then polls on the interval.
// Transient query errors are logged and retried on the next tick. The
// final payload is delivered exactly once: as the return value, after
// onUpdate has seen it. Cancelling ctx tears the loop down.
func (w *Watcher) Watch(ctx context.Context, jobID string, onUpdate func(Status)) (*Status, error) {
	w.state = StateProcessing

	if _, err := w.client.Trigger(ctx, jobID); err != nil {
		w.client.Log.Warnf("Trigger for job %s failed (may already be running): %v", jobID, err)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			st, err := w.client.GetStatus(ctx, jobID)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return nil, err
				}
				w.client.Log.Warnf("Status query for job %s failed, retrying: %v", jobID, err)
				continue
			}

			if onUpdate != nil {
				onUpdate(*st)
			}

			switch st.Status {
			case job.StatusCompleted:
				w.state = StateComplete
				return st, nil
			case job.StatusFailed:
				w.state = StateComplete
				msg := "processing failed"
				if st.Error != nil && *st.Error != "" {
					msg = *st.Error
				}
				return st, errors.New(msg)
			}
		}
	}
}
