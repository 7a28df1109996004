// Package client is the Go SDK for the highlight service: upload,
// trigger, status queries and the polling observer loop.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"podlight/job"
)

var ErrJobNotFound = errors.New("job not found")

// Client talks to one highlight service. BaseURL is explicit on purpose:
// artifact paths in status payloads are relative and resolve against it.
type Client struct {
	BaseURL    string
	AuthKey    string // optional bearer key
	HTTPClient *http.Client
	Log        *logrus.Logger
}

func New(baseURL string, log *logrus.Logger) *Client {
	return &Client{
		BaseURL:    strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		Log:        log,
	}
}

// UploadResponse mirrors the upload endpoint payload.
type UploadResponse struct {
	JobID    string `json:"job_id"`
	Filename string `json:"filename"`
	FileSize int64  `json:"file_size"`
	Message  string `json:"message"`
}

// Status mirrors the status projection. Optional fields are pointers so
// absent and empty stay distinguishable on the client side too.
type Status struct {
	JobID      string           `json:"job_id"`
	Status     job.Status       `json:"status"`
	Progress   int              `json:"progress"`
	Message    string           `json:"message"`
	Highlights *[]job.Highlight `json:"highlights,omitempty"`
	Artifacts  *[]string        `json:"artifacts,omitempty"`
	VideoURL   string           `json:"video_url,omitempty"`
	Transcript *string          `json:"transcript,omitempty"`
	Error      *string          `json:"error,omitempty"`
}

// Upload sends an audio file and returns the created job.
func (c *Client) Upload(ctx context.Context, path string) (*UploadResponse, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open audio file: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/upload", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var out UploadResponse
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Trigger starts processing for a job. Triggering twice is harmless; the
// server treats it as a no-op.
func (c *Client) Trigger(ctx context.Context, jobID string) (*Status, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.BaseURL+"/api/process/"+jobID+"/start", nil)
	if err != nil {
		return nil, err
	}
	var out Status
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetStatus fetches the current status projection.
func (c *Client) GetStatus(ctx context.Context, jobID string) (*Status, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.BaseURL+"/api/status/"+jobID, nil)
	if err != nil {
		return nil, err
	}
	var out Status
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ResolveArtifact turns a relative artifact path from a status payload
// into an absolute URL.
func (c *Client) ResolveArtifact(rel string) string {
	return c.BaseURL + "/" + strings.TrimPrefix(rel, "/")
}

func (c *Client) do(req *http.Request, out interface{}) error {
	if c.AuthKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.AuthKey)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrJobNotFound
	}
	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
			return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
