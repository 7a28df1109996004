package media

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/sirupsen/logrus"

	"podlight/job"
)

// Vertical social-media format.
const (
	clipWidth  = 1080
	clipHeight = 1920
	clipFPS    = 30
)

// Waveform gradient colors, blue to purple.
const waveColors = "0x3B82F6|0x9333EA"

// ClipGenerator renders one waveform video per highlight with ffmpeg.
// Artifact paths are returned relative to the service root so clients
// resolve them against an explicitly configured base URL.
type ClipGenerator struct {
	bin       string
	outputDir string
	extraArgs []string
	limits    ResourceLimits
	log       *logrus.Logger
}

func NewClipGenerator(bin, outputDir, extraArgs string, limits ResourceLimits, log *logrus.Logger) (*ClipGenerator, error) {
	if _, err := exec.LookPath(bin); err != nil {
		return nil, fmt.Errorf("ffmpeg binary not found in PATH: %s", bin)
	}
	extra, err := splitExtraArgs(extraArgs)
	if err != nil {
		return nil, err
	}
	return &ClipGenerator{
		bin:       bin,
		outputDir: outputDir,
		extraArgs: extra,
		limits:    limits,
		log:       log,
	}, nil
}

// Render produces one artifact per highlight, in highlight order. A
// failure on any clip fails the whole batch.
func (g *ClipGenerator) Render(ctx context.Context, audioPath string, highlights []job.Highlight, jobID string) ([]string, error) {
	if len(highlights) == 0 {
		return nil, nil
	}
	if err := checkResources(g.log, g.limits, g.outputDir); err != nil {
		return nil, fmt.Errorf("insufficient system resources: %w", err)
	}

	jobDir := filepath.Join(g.outputDir, jobID)
	if err := os.MkdirAll(jobDir, 0o755); err != nil {
		return nil, fmt.Errorf("could not create output dir: %w", err)
	}

	artifacts := make([]string, 0, len(highlights))
	for i, h := range highlights {
		filename := fmt.Sprintf("highlight_%d.mp4", i+1)
		outPath := filepath.Join(jobDir, filename)
		if err := g.renderClip(ctx, audioPath, h, outPath); err != nil {
			return nil, fmt.Errorf("clip %d: %w", i+1, err)
		}
		artifacts = append(artifacts, "/outputs/"+jobID+"/"+filename)
	}
	return artifacts, nil
}

func (g *ClipGenerator) renderClip(ctx context.Context, audioPath string, h job.Highlight, outPath string) error {
	filter := fmt.Sprintf("[0:a]showwaves=s=%dx%d:mode=cline:colors=%s,format=yuv420p[v]",
		clipWidth, clipHeight, waveColors)

	args := []string{
		"-y",
		"-ss", formatSeconds(h.StartTime),
		"-to", formatSeconds(h.EndTime),
		"-i", audioPath,
		"-filter_complex", filter,
		"-map", "[v]",
		"-map", "0:a",
		"-c:v", "libx264",
		"-r", strconv.Itoa(clipFPS),
		"-c:a", "aac",
	}
	args = append(args, g.extraArgs...)
	args = append(args, outPath)

	cmd := exec.CommandContext(ctx, g.bin, args...)
	var outputBuf bytes.Buffer
	cmd.Stdout = &outputBuf
	cmd.Stderr = &outputBuf

	g.log.Infof("Rendering clip %s [%.1fs - %.1fs]", outPath, h.StartTime, h.EndTime)
	if err := cmd.Run(); err != nil {
		g.log.Debugf("ffmpeg output: %s", outputBuf.String())
		// Remove the partial output so failed jobs leave nothing behind.
		os.Remove(outPath)
		return fmt.Errorf("ffmpeg execution failed: %w", err)
	}
	return nil
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 3, 64)
}
