// Package media implements the external collaborators the pipeline
// drives: speech-to-text, highlight analysis, clip rendering and the
// optional AI hook enhancement.
package media

// Segment is one timed piece of the transcript.
type Segment struct {
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// Transcript is the full output of the transcription stage.
type Transcript struct {
	Text     string    `json:"text"`
	Language string    `json:"language"`
	Segments []Segment `json:"segments"`
}
