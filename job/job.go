package job

import "time"

type Status string

const (
	StatusPending      Status = "pending"
	StatusUploading    Status = "uploading"
	StatusTranscribing Status = "transcribing"
	StatusAnalyzing    Status = "analyzing"
	StatusGenerating   Status = "generating"
	StatusCompleted    Status = "completed"
	StatusFailed       Status = "failed"
)

// Progress values at each stage boundary. These are part of the status
// protocol: clients rely on 40 meaning "transcript attached" and so on.
const (
	ProgressPending      = 0
	ProgressTranscribing = 10
	ProgressAnalyzing    = 40
	ProgressGenerating   = 70
	ProgressCompleted    = 100
)

// rank gives the position of a status on the forward pipeline path.
// StatusFailed is absorbing rather than ordered, so it has no rank.
func (s Status) rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusUploading:
		return 1
	case StatusTranscribing:
		return 2
	case StatusAnalyzing:
		return 3
	case StatusGenerating:
		return 4
	case StatusCompleted:
		return 5
	default:
		return -1
	}
}

// Terminal reports whether no further transitions can occur.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// AtOrPast reports whether s has reached other on the forward path.
// A failed job is considered past every non-terminal stage it reached,
// which callers should determine from Progress instead.
func (s Status) AtOrPast(other Status) bool {
	if s == StatusFailed {
		return false
	}
	return s.rank() >= other.rank()
}

// Highlight is one candidate segment picked from the transcript.
type Highlight struct {
	StartTime  float64 `json:"start_time"`
	EndTime    float64 `json:"end_time"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
	AIHook     string  `json:"ai_hook,omitempty"`
}

// Job is the unit of work tracked by the store. Mutable fields are only
// written through Store.Mutate; everything handed out is a snapshot.
type Job struct {
	ID         string      `json:"job_id"`
	Status     Status      `json:"status"`
	Progress   int         `json:"progress"`
	Message    string      `json:"message"`
	Error      string      `json:"error,omitempty"`
	Transcript string      `json:"transcript,omitempty"`
	Highlights []Highlight `json:"highlights,omitempty"`
	Artifacts  []string    `json:"artifacts,omitempty"`
	Filename   string      `json:"filename"`
	FileSize   int64       `json:"file_size"`
	SourcePath string      `json:"-"` // server-local path to the uploaded audio
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// clone returns a deep copy so readers never share slices with the store.
func (j *Job) clone() Job {
	c := *j
	if j.Highlights != nil {
		c.Highlights = make([]Highlight, len(j.Highlights))
		copy(c.Highlights, j.Highlights)
	}
	if j.Artifacts != nil {
		c.Artifacts = make([]string, len(j.Artifacts))
		copy(c.Artifacts, j.Artifacts)
	}
	return c
}
