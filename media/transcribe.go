package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// WhisperTranscriber shells out to the whisper CLI and parses its JSON
// output into a Transcript.
type WhisperTranscriber struct {
	bin    string
	model  string
	limits ResourceLimits
	log    *logrus.Logger
}

func NewWhisperTranscriber(bin, model string, limits ResourceLimits, log *logrus.Logger) (*WhisperTranscriber, error) {
	if _, err := exec.LookPath(bin); err != nil {
		return nil, fmt.Errorf("whisper binary not found in PATH: %s", bin)
	}
	return &WhisperTranscriber{bin: bin, model: model, limits: limits, log: log}, nil
}

// Transcribe runs whisper on the audio file. fp16 is disabled because it
// produces NaN output on some GPUs.
func (w *WhisperTranscriber) Transcribe(ctx context.Context, audioPath string) (Transcript, error) {
	if err := checkResources(w.log, w.limits, filepath.Dir(audioPath)); err != nil {
		return Transcript{}, fmt.Errorf("insufficient system resources: %w", err)
	}

	outDir, err := os.MkdirTemp("", "podlight_whisper_")
	if err != nil {
		return Transcript{}, fmt.Errorf("could not create whisper output dir: %w", err)
	}
	defer os.RemoveAll(outDir)

	args := []string{
		audioPath,
		"--model", w.model,
		"--task", "transcribe",
		"--output_format", "json",
		"--output_dir", outDir,
		"--word_timestamps", "True",
		"--fp16", "False",
		"--verbose", "False",
	}

	cmd := exec.CommandContext(ctx, w.bin, args...)
	var outputBuf bytes.Buffer
	cmd.Stdout = &outputBuf
	cmd.Stderr = &outputBuf

	w.log.Infof("Transcribing %s with model %s", audioPath, w.model)
	if err := cmd.Run(); err != nil {
		w.log.Debugf("whisper output: %s", outputBuf.String())
		return Transcript{}, fmt.Errorf("whisper execution failed: %w", err)
	}

	base := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	resultPath := filepath.Join(outDir, base+".json")
	raw, err := os.ReadFile(resultPath)
	if err != nil {
		return Transcript{}, fmt.Errorf("whisper produced no result file: %w", err)
	}

	tr, err := parseWhisperOutput(raw)
	if err != nil {
		return Transcript{}, err
	}
	w.log.Infof("Transcription complete: %d segments", len(tr.Segments))
	return tr, nil
}

// parseWhisperOutput maps whisper's result JSON onto a Transcript. The
// average log probability stands in for per-segment confidence.
func parseWhisperOutput(raw []byte) (Transcript, error) {
	var result struct {
		Text     string `json:"text"`
		Language string `json:"language"`
		Segments []struct {
			Start      float64 `json:"start"`
			End        float64 `json:"end"`
			Text       string  `json:"text"`
			AvgLogprob float64 `json:"avg_logprob"`
		} `json:"segments"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return Transcript{}, fmt.Errorf("could not parse whisper output: %w", err)
	}

	tr := Transcript{
		Text:     strings.TrimSpace(result.Text),
		Language: result.Language,
		Segments: make([]Segment, 0, len(result.Segments)),
	}
	for _, seg := range result.Segments {
		tr.Segments = append(tr.Segments, Segment{
			Start:      seg.Start,
			End:        seg.End,
			Text:       strings.TrimSpace(seg.Text),
			Confidence: seg.AvgLogprob,
		})
	}
	return tr, nil
}
