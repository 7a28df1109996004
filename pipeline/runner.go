// Package pipeline drives a job through its ordered stages. All job
// state changes happen at stage boundaries, atomically, through the
// store's serialized mutation contract.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"podlight/config"
	"podlight/job"
	"podlight/media"
	"podlight/metrics"
)

// The pipeline's external collaborators. Their internals (models,
// binaries, APIs) are not this package's concern.

type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (media.Transcript, error)
}

type Analyzer interface {
	DetectHighlights(ctx context.Context, segments []media.Segment) ([]job.Highlight, error)
}

type Generator interface {
	Render(ctx context.Context, audioPath string, highlights []job.Highlight, jobID string) ([]string, error)
}

type HookWriter interface {
	WriteHook(ctx context.Context, highlightText string) (string, error)
}

// Runner executes the stage sequence for triggered jobs. Distinct jobs
// run concurrently up to the configured limit; stages for one job run
// strictly in order.
type Runner struct {
	cfg         *config.Config
	store       *job.Store
	transcriber Transcriber
	analyzer    Analyzer
	generator   Generator
	hooks       HookWriter // nil disables the hook enhancement
	log         *logrus.Logger
	metrics     *metrics.Metrics

	concurrencySem chan struct{}
}

func NewRunner(cfg *config.Config, store *job.Store, t Transcriber, a Analyzer, g Generator, hooks HookWriter, log *logrus.Logger, m *metrics.Metrics) *Runner {
	maxConcurrency := cfg.MaxConcurrency
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	return &Runner{
		cfg:            cfg,
		store:          store,
		transcriber:    t,
		analyzer:       a,
		generator:      g,
		hooks:          hooks,
		log:            log,
		metrics:        m,
		concurrencySem: make(chan struct{}, maxConcurrency),
	}
}

// Trigger starts the pipeline for a pending job. Triggering a job that is
// already at or past uploading is a no-op, not an error: the
// pending-to-uploading transition is one-shot per id, which is what makes
// Trigger idempotent. Unknown ids return job.ErrNotFound.
func (r *Runner) Trigger(id string) error {
	triggered := false
	err := r.store.Mutate(id, func(j *job.Job) {
		if j.Status != job.StatusPending {
			return
		}
		j.Status = job.StatusUploading
		j.Message = "Preparing audio for processing"
		triggered = true
	})
	if err != nil {
		return err
	}
	if !triggered {
		r.log.Debugf("Job %s already triggered, ignoring", id)
		return nil
	}

	r.log.Infof("Job %s triggered", id)
	go r.run(id)
	return nil
}

// run executes the stage sequence to a terminal state. In-flight stages
// are not cancellable from outside; each stage gets its own timeout.
func (r *Runner) run(id string) {
	r.concurrencySem <- struct{}{}
	defer func() { <-r.concurrencySem }()

	r.metrics.JobsActive.Inc()
	defer r.metrics.JobsActive.Dec()

	snap, err := r.store.Get(id)
	if err != nil {
		r.log.Errorf("Job %s vanished before processing: %v", id, err)
		return
	}
	audioPath := snap.SourcePath

	// Upload stage: the file arrived at ingestion, so the only work left
	// is making sure it is still there.
	if _, err := os.Stat(audioPath); err != nil {
		r.fail(id, "upload", fmt.Errorf("uploaded audio is missing: %w", err))
		return
	}

	r.advance(id, job.StatusTranscribing, job.ProgressTranscribing, "Transcribing audio...", nil)

	transcript, err := r.runTranscription(audioPath)
	if err != nil {
		r.fail(id, "transcription", err)
		return
	}

	r.advance(id, job.StatusAnalyzing, job.ProgressAnalyzing, "Analyzing transcript for highlights...", func(j *job.Job) {
		j.Transcript = transcript.Text
	})

	highlights, err := r.runAnalysis(transcript.Segments)
	if err != nil {
		r.fail(id, "analysis", err)
		return
	}

	r.advance(id, job.StatusGenerating, job.ProgressGenerating, "Generating highlight clips...", func(j *job.Job) {
		j.Highlights = highlights
	})

	artifacts, err := r.runGeneration(audioPath, highlights, id)
	if err != nil {
		r.fail(id, "generation", err)
		return
	}

	r.advance(id, job.StatusCompleted, job.ProgressCompleted, "Processing completed", func(j *job.Job) {
		j.Artifacts = artifacts
	})
	r.metrics.JobsCompleted.Inc()
	r.log.Infof("Job %s completed with %d highlights", id, len(highlights))
}

func (r *Runner) runTranscription(audioPath string) (media.Transcript, error) {
	ctx, cancel := r.stageContext()
	defer cancel()
	defer r.observeStage("transcription")()
	return r.transcriber.Transcribe(ctx, audioPath)
}

func (r *Runner) runAnalysis(segments []media.Segment) ([]job.Highlight, error) {
	ctx, cancel := r.stageContext()
	defer cancel()
	defer r.observeStage("analysis")()

	highlights, err := r.analyzer.DetectHighlights(ctx, segments)
	if err != nil {
		return nil, err
	}

	// Hook generation is an enhancement, never a reason to fail the job.
	if r.hooks != nil {
		for i := range highlights {
			hook, err := r.hooks.WriteHook(ctx, highlights[i].Text)
			if err != nil {
				r.log.Warnf("Hook generation failed, continuing without: %v", err)
				continue
			}
			highlights[i].AIHook = hook
		}
	}
	return highlights, nil
}

func (r *Runner) runGeneration(audioPath string, highlights []job.Highlight, id string) ([]string, error) {
	ctx, cancel := r.stageContext()
	defer cancel()
	defer r.observeStage("generation")()

	artifacts, err := r.generator.Render(ctx, audioPath, highlights, id)
	if err != nil {
		return nil, err
	}
	return Aggregate(highlights, artifacts)
}

// advance moves the job across a stage boundary. Status, progress,
// message and any newly attached output become visible atomically.
func (r *Runner) advance(id string, st job.Status, progress int, msg string, attach func(*job.Job)) {
	err := r.store.Mutate(id, func(j *job.Job) {
		j.Status = st
		j.Progress = progress
		j.Message = msg
		if attach != nil {
			attach(j)
		}
	})
	if err != nil {
		r.log.Errorf("Job %s: could not advance to %s: %v", id, st, err)
	}
}

// fail moves the job to the failed terminal state. Progress is left at
// the last successful boundary and the error is normalized to a
// stage-prefixed message so collaborator formats stay internal.
func (r *Runner) fail(id, stage string, cause error) {
	msg := fmt.Sprintf("%s failed: %v", stage, cause)
	err := r.store.Mutate(id, func(j *job.Job) {
		j.Status = job.StatusFailed
		j.Error = msg
		j.Message = "Processing failed"
	})
	if err != nil {
		r.log.Errorf("Job %s: could not record failure: %v", id, err)
		return
	}
	r.metrics.JobsFailed.WithLabelValues(stage).Inc()
	r.log.Errorf("Job %s failed during %s: %v", id, stage, cause)
}

func (r *Runner) stageContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), r.cfg.StageTimeout)
}

func (r *Runner) observeStage(stage string) func() {
	start := time.Now()
	return func() {
		r.metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	}
}
