package api

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"podlight/config"
	"podlight/job"
	"podlight/metrics"
	"podlight/pipeline"
)

type Handler struct {
	store   *job.Store
	runner  *pipeline.Runner
	cfg     *config.Config
	log     *logrus.Logger
	metrics *metrics.Metrics
}

func NewHandler(store *job.Store, runner *pipeline.Runner, cfg *config.Config, log *logrus.Logger, m *metrics.Metrics) *Handler {
	return &Handler{
		store:   store,
		runner:  runner,
		cfg:     cfg,
		log:     log,
		metrics: m,
	}
}

// StatusResponse is the external read model of a job. Optional fields are
// pointers so "not yet available" (absent) stays distinguishable from an
// empty result.
type StatusResponse struct {
	JobID      string           `json:"job_id"`
	Status     job.Status       `json:"status"`
	Progress   int              `json:"progress"`
	Message    string           `json:"message"`
	Highlights *[]job.Highlight `json:"highlights,omitempty"`
	Artifacts  *[]string        `json:"artifacts,omitempty"`
	// Deprecated: compatibility alias for artifacts[0].
	VideoURL   string  `json:"video_url,omitempty"`
	Transcript *string `json:"transcript,omitempty"`
	Error      *string `json:"error,omitempty"`
}

// projectStatus maps a job snapshot onto the wire contract. The progress
// value encodes which stage boundaries a job crossed, which holds for
// failed jobs too since failure freezes progress.
func projectStatus(j job.Job) StatusResponse {
	resp := StatusResponse{
		JobID:    j.ID,
		Status:   j.Status,
		Progress: j.Progress,
		Message:  j.Message,
	}
	if j.Progress >= job.ProgressAnalyzing {
		transcript := j.Transcript
		resp.Transcript = &transcript
	}
	if j.Progress >= job.ProgressGenerating {
		highlights := j.Highlights
		if highlights == nil {
			highlights = []job.Highlight{}
		}
		resp.Highlights = &highlights
	}
	if j.Progress >= job.ProgressCompleted {
		artifacts := j.Artifacts
		if artifacts == nil {
			artifacts = []string{}
		}
		resp.Artifacts = &artifacts
		if len(artifacts) > 0 {
			resp.VideoURL = artifacts[0]
		}
	}
	if j.Status == job.StatusFailed {
		errMsg := j.Error
		resp.Error = &errMsg
	}
	return resp
}

// handleUpload ingests an audio file and creates a pending job.
func (h *Handler) handleUpload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid file field"})
		return
	}

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	if !h.extensionAllowed(ext) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("invalid file type %q, allowed: %s", ext, strings.Join(h.cfg.AllowedExtensions, ", ")),
		})
		return
	}

	if fileHeader.Size > h.cfg.MaxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error": fmt.Sprintf("file too large, maximum size: %d bytes", h.cfg.MaxUploadSize),
		})
		return
	}

	jb, err := h.store.Create(fileHeader.Filename, fileHeader.Size)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create job", "details": err.Error()})
		return
	}

	dstPath := filepath.Join(h.cfg.UploadDir, jb.ID, "audio"+ext)
	if err := c.SaveUploadedFile(fileHeader, dstPath); err != nil {
		h.log.Errorf("Saving upload for job %s failed: %v", jb.ID, err)
		h.store.Mutate(jb.ID, func(j *job.Job) {
			j.Status = job.StatusFailed
			j.Error = "upload failed: could not persist audio file"
			j.Message = "Processing failed"
		})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not persist uploaded file"})
		return
	}
	h.store.Mutate(jb.ID, func(j *job.Job) {
		j.SourcePath = dstPath
	})

	h.metrics.JobsCreated.Inc()
	h.log.Infof("Job %s created for %s (%d bytes)", jb.ID, fileHeader.Filename, fileHeader.Size)
	c.JSON(http.StatusOK, gin.H{
		"job_id":    jb.ID,
		"filename":  jb.Filename,
		"file_size": jb.FileSize,
		"message":   "File uploaded successfully",
	})
}

func (h *Handler) extensionAllowed(ext string) bool {
	for _, allowed := range h.cfg.AllowedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

type ProcessRequest struct {
	JobID string `json:"job_id" binding:"required"`
	// Tuning knobs accepted for compatibility; generation currently uses
	// the service-wide configuration.
	HighlightDuration int    `json:"highlight_duration"`
	Style             string `json:"style"`
}

// handleProcess triggers the pipeline for a job. Re-triggering is a no-op
// and returns the current snapshot either way.
func (h *Handler) handleProcess(c *gin.Context) {
	var req ProcessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.triggerAndRespond(c, req.JobID)
}

// handleStartProcess is the GET form of the trigger, kept for clients of
// the original route shape.
func (h *Handler) handleStartProcess(c *gin.Context) {
	h.triggerAndRespond(c, c.Param("jobId"))
}

func (h *Handler) triggerAndRespond(c *gin.Context, jobID string) {
	if err := h.runner.Trigger(jobID); err != nil {
		if errors.Is(err, job.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	snap, err := h.store.Get(jobID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
		return
	}
	c.JSON(http.StatusOK, projectStatus(snap))
}

// handleStatus returns the current projection of a job. It never blocks
// on the pipeline; it reflects whatever the store holds right now.
func (h *Handler) handleStatus(c *gin.Context) {
	snap, err := h.store.Get(c.Param("jobId"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
		return
	}
	c.JSON(http.StatusOK, projectStatus(snap))
}

// handleListJobs lists projections of all jobs, newest first.
func (h *Handler) handleListJobs(c *gin.Context) {
	jobs := h.store.List()
	out := make([]StatusResponse, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, projectStatus(j))
	}
	c.JSON(http.StatusOK, out)
}

// handleDownload streams a generated artifact.
func (h *Handler) handleDownload(c *gin.Context) {
	jobID := c.Param("jobId")
	filename := c.Param("filename")

	// Prevent path traversal: both segments must be plain names.
	if !isPlainName(jobID) || !isPlainName(filename) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid artifact path"})
		return
	}

	fullPath := filepath.Join(h.cfg.OutputDir, jobID, filename)
	if _, err := os.Stat(fullPath); os.IsNotExist(err) {
		c.JSON(http.StatusNotFound, gin.H{"error": "artifact not found"})
		return
	}
	c.File(fullPath)
}

func isPlainName(s string) bool {
	return s != "" && s != "." && s != ".." && s == filepath.Base(s)
}
