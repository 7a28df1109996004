package pipeline

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"podlight/config"
	"podlight/job"
	"podlight/media"
	"podlight/metrics"
)

// Mock collaborators in the style of the runner interface: a struct with
// an overridable func, defaulting to a minimal success.

type mockTranscriber struct {
	fn    func(ctx context.Context, audioPath string) (media.Transcript, error)
	calls int32
}

func (m *mockTranscriber) Transcribe(ctx context.Context, audioPath string) (media.Transcript, error) {
	atomic.AddInt32(&m.calls, 1)
	if m.fn != nil {
		return m.fn(ctx, audioPath)
	}
	return media.Transcript{
		Text:     "hello world this is amazing",
		Language: "en",
		Segments: []media.Segment{
			{Start: 0, End: 20, Text: "hello world this is amazing", Confidence: -0.2},
		},
	}, nil
}

type mockAnalyzer struct {
	fn func(ctx context.Context, segments []media.Segment) ([]job.Highlight, error)
}

func (m *mockAnalyzer) DetectHighlights(ctx context.Context, segments []media.Segment) ([]job.Highlight, error) {
	if m.fn != nil {
		return m.fn(ctx, segments)
	}
	return []job.Highlight{
		{StartTime: 0, EndTime: 20, Text: "hello world this is amazing", Confidence: 0.9, Reason: "test"},
	}, nil
}

type mockGenerator struct {
	fn func(ctx context.Context, audioPath string, highlights []job.Highlight, jobID string) ([]string, error)
}

func (m *mockGenerator) Render(ctx context.Context, audioPath string, highlights []job.Highlight, jobID string) ([]string, error) {
	if m.fn != nil {
		return m.fn(ctx, audioPath, highlights, jobID)
	}
	out := make([]string, len(highlights))
	for i := range highlights {
		out[i] = "/outputs/" + jobID + "/highlight_1.mp4"
	}
	return out, nil
}

type mockHookWriter struct {
	fn func(ctx context.Context, text string) (string, error)
}

func (m *mockHookWriter) WriteHook(ctx context.Context, text string) (string, error) {
	if m.fn != nil {
		return m.fn(ctx, text)
	}
	return "You Won't Believe This", nil
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func testConfig() *config.Config {
	return &config.Config{
		MaxConcurrency: 1,
		StageTimeout:   5 * time.Second,
	}
}

type testEnv struct {
	store  *job.Store
	runner *Runner
}

func newTestEnv(t *testing.T, tr Transcriber, a Analyzer, g Generator, hooks HookWriter) *testEnv {
	t.Helper()
	store := job.NewStore()
	m := metrics.New(prometheus.NewRegistry())
	runner := NewRunner(testConfig(), store, tr, a, g, hooks, testLogger(), m)
	return &testEnv{store: store, runner: runner}
}

// createJob puts a pending job with a real source file into the store.
func (e *testEnv) createJob(t *testing.T) string {
	t.Helper()
	src := filepath.Join(t.TempDir(), "audio.mp3")
	require.NoError(t, os.WriteFile(src, []byte("fake audio"), 0o644))

	j, err := e.store.Create("audio.mp3", 10)
	require.NoError(t, err)
	require.NoError(t, e.store.Mutate(j.ID, func(jb *job.Job) { jb.SourcePath = src }))
	return j.ID
}

func (e *testEnv) waitTerminal(t *testing.T, id string) job.Job {
	t.Helper()
	var snap job.Job
	require.Eventually(t, func() bool {
		var err error
		snap, err = e.store.Get(id)
		return err == nil && snap.Status.Terminal()
	}, 2*time.Second, 5*time.Millisecond)
	return snap
}

func TestRunnerPipelineSuccess(t *testing.T) {
	var store *job.Store
	var jobID string

	// Each collaborator asserts the stage boundary that must have been
	// crossed, atomically, before it was called.
	tr := &mockTranscriber{fn: func(ctx context.Context, audioPath string) (media.Transcript, error) {
		snap, err := store.Get(jobID)
		require.NoError(t, err)
		assert.Equal(t, job.StatusTranscribing, snap.Status)
		assert.Equal(t, job.ProgressTranscribing, snap.Progress)
		return media.Transcript{
			Text:     "full transcript",
			Segments: []media.Segment{{Start: 0, End: 30, Text: "full transcript", Confidence: -0.1}},
		}, nil
	}}
	a := &mockAnalyzer{fn: func(ctx context.Context, segments []media.Segment) ([]job.Highlight, error) {
		snap, err := store.Get(jobID)
		require.NoError(t, err)
		assert.Equal(t, job.StatusAnalyzing, snap.Status)
		assert.Equal(t, job.ProgressAnalyzing, snap.Progress)
		assert.Equal(t, "full transcript", snap.Transcript)
		return []job.Highlight{
			{StartTime: 0, EndTime: 20, Text: "one"},
			{StartTime: 20, EndTime: 40, Text: "two"},
		}, nil
	}}
	g := &mockGenerator{fn: func(ctx context.Context, audioPath string, highlights []job.Highlight, jobID string) ([]string, error) {
		snap, err := store.Get(jobID)
		require.NoError(t, err)
		assert.Equal(t, job.StatusGenerating, snap.Status)
		assert.Equal(t, job.ProgressGenerating, snap.Progress)
		assert.Len(t, snap.Highlights, 2)
		return []string{"/outputs/" + jobID + "/highlight_1.mp4", "/outputs/" + jobID + "/highlight_2.mp4"}, nil
	}}

	env := newTestEnv(t, tr, a, g, nil)
	store = env.store
	jobID = env.createJob(t)

	require.NoError(t, env.runner.Trigger(jobID))
	snap := env.waitTerminal(t, jobID)

	assert.Equal(t, job.StatusCompleted, snap.Status)
	assert.Equal(t, job.ProgressCompleted, snap.Progress)
	assert.Equal(t, "Processing completed", snap.Message)
	assert.Equal(t, "full transcript", snap.Transcript)
	assert.Len(t, snap.Highlights, 2)
	assert.Len(t, snap.Artifacts, 2)
	assert.Empty(t, snap.Error)
}

func TestRunnerTriggerIdempotent(t *testing.T) {
	release := make(chan struct{})
	tr := &mockTranscriber{fn: func(ctx context.Context, audioPath string) (media.Transcript, error) {
		<-release
		return media.Transcript{Text: "t"}, nil
	}}

	env := newTestEnv(t, tr, &mockAnalyzer{}, &mockGenerator{}, nil)
	id := env.createJob(t)

	require.NoError(t, env.runner.Trigger(id))
	require.NoError(t, env.runner.Trigger(id)) // second trigger is a silent no-op
	require.NoError(t, env.runner.Trigger(id))

	close(release)
	env.waitTerminal(t, id)

	assert.Equal(t, int32(1), atomic.LoadInt32(&tr.calls))
}

func TestRunnerTriggerNotFound(t *testing.T) {
	env := newTestEnv(t, &mockTranscriber{}, &mockAnalyzer{}, &mockGenerator{}, nil)
	assert.ErrorIs(t, env.runner.Trigger("nonexistent"), job.ErrNotFound)
}

func TestRunnerTranscriptionFailure(t *testing.T) {
	tr := &mockTranscriber{fn: func(ctx context.Context, audioPath string) (media.Transcript, error) {
		return media.Transcript{}, errors.New("model exploded")
	}}

	env := newTestEnv(t, tr, &mockAnalyzer{}, &mockGenerator{}, nil)
	id := env.createJob(t)
	require.NoError(t, env.runner.Trigger(id))

	snap := env.waitTerminal(t, id)
	assert.Equal(t, job.StatusFailed, snap.Status)
	assert.Equal(t, job.ProgressTranscribing, snap.Progress)
	assert.Contains(t, snap.Error, "transcription failed")
	assert.Empty(t, snap.Transcript)
}

func TestRunnerAnalysisFailureFreezesProgress(t *testing.T) {
	a := &mockAnalyzer{fn: func(ctx context.Context, segments []media.Segment) ([]job.Highlight, error) {
		return nil, errors.New("detector crashed")
	}}

	env := newTestEnv(t, &mockTranscriber{}, a, &mockGenerator{}, nil)
	id := env.createJob(t)
	require.NoError(t, env.runner.Trigger(id))

	snap := env.waitTerminal(t, id)
	assert.Equal(t, job.StatusFailed, snap.Status)
	assert.Equal(t, job.ProgressAnalyzing, snap.Progress)
	assert.Contains(t, snap.Error, "analysis failed")
	assert.Empty(t, snap.Highlights)
	// Output from the last successful boundary is kept.
	assert.NotEmpty(t, snap.Transcript)

	// A failed job never mutates again; a late trigger is a no-op.
	require.NoError(t, env.runner.Trigger(id))
	time.Sleep(20 * time.Millisecond)
	after, err := env.store.Get(id)
	require.NoError(t, err)
	assert.Equal(t, snap.Status, after.Status)
	assert.Equal(t, snap.Progress, after.Progress)
}

func TestRunnerAggregationMismatchFailsJob(t *testing.T) {
	g := &mockGenerator{fn: func(ctx context.Context, audioPath string, highlights []job.Highlight, jobID string) ([]string, error) {
		// One artifact short: index correlation is broken.
		return []string{}, nil
	}}

	env := newTestEnv(t, &mockTranscriber{}, &mockAnalyzer{}, g, nil)
	id := env.createJob(t)
	require.NoError(t, env.runner.Trigger(id))

	snap := env.waitTerminal(t, id)
	assert.Equal(t, job.StatusFailed, snap.Status)
	assert.Equal(t, job.ProgressGenerating, snap.Progress)
	assert.Contains(t, snap.Error, "generation failed")
	assert.Contains(t, snap.Error, "diverge")
	assert.Empty(t, snap.Artifacts)
}

func TestRunnerNoHighlightsCompletesEmpty(t *testing.T) {
	a := &mockAnalyzer{fn: func(ctx context.Context, segments []media.Segment) ([]job.Highlight, error) {
		return nil, nil
	}}
	g := &mockGenerator{fn: func(ctx context.Context, audioPath string, highlights []job.Highlight, jobID string) ([]string, error) {
		return nil, nil
	}}

	env := newTestEnv(t, &mockTranscriber{}, a, g, nil)
	id := env.createJob(t)
	require.NoError(t, env.runner.Trigger(id))

	snap := env.waitTerminal(t, id)
	assert.Equal(t, job.StatusCompleted, snap.Status)
	assert.Equal(t, job.ProgressCompleted, snap.Progress)
	assert.Empty(t, snap.Highlights)
	assert.Empty(t, snap.Artifacts)
}

func TestRunnerHooksAttached(t *testing.T) {
	hooks := &mockHookWriter{}

	env := newTestEnv(t, &mockTranscriber{}, &mockAnalyzer{}, &mockGenerator{}, hooks)
	id := env.createJob(t)
	require.NoError(t, env.runner.Trigger(id))

	snap := env.waitTerminal(t, id)
	require.Equal(t, job.StatusCompleted, snap.Status)
	require.NotEmpty(t, snap.Highlights)
	assert.Equal(t, "You Won't Believe This", snap.Highlights[0].AIHook)
}

func TestRunnerHookFailureIsNotFatal(t *testing.T) {
	hooks := &mockHookWriter{fn: func(ctx context.Context, text string) (string, error) {
		return "", errors.New("quota exceeded")
	}}

	env := newTestEnv(t, &mockTranscriber{}, &mockAnalyzer{}, &mockGenerator{}, hooks)
	id := env.createJob(t)
	require.NoError(t, env.runner.Trigger(id))

	snap := env.waitTerminal(t, id)
	assert.Equal(t, job.StatusCompleted, snap.Status)
	require.NotEmpty(t, snap.Highlights)
	assert.Empty(t, snap.Highlights[0].AIHook)
}

func TestRunnerMissingSourceFailsUploadStage(t *testing.T) {
	env := newTestEnv(t, &mockTranscriber{}, &mockAnalyzer{}, &mockGenerator{}, nil)

	j, err := env.store.Create("gone.mp3", 10)
	require.NoError(t, err)
	require.NoError(t, env.store.Mutate(j.ID, func(jb *job.Job) {
		jb.SourcePath = filepath.Join(t.TempDir(), "does-not-exist.mp3")
	}))

	require.NoError(t, env.runner.Trigger(j.ID))
	snap := env.waitTerminal(t, j.ID)
	assert.Equal(t, job.StatusFailed, snap.Status)
	assert.Equal(t, job.ProgressPending, snap.Progress)
	assert.Contains(t, snap.Error, "upload failed")
}
