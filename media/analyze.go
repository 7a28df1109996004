package media

import (
	"context"
	"sort"
	"strings"
	"time"

	"podlight/job"
)

// interestKeywords flag segments that tend to make good highlights.
var interestKeywords = []string{
	"amazing", "incredible", "shocking", "unbelievable",
	"discovered", "breakthrough", "revolutionary", "secret",
	"surprising", "wow", "interesting", "fascinating",
	"important", "critical", "essential", "key",
	"problem", "solution", "question", "answer",
}

// KeywordAnalyzer scores transcript segments on lexical interest signals
// and expands the best candidates into highlights of a usable duration.
type KeywordAnalyzer struct {
	minDuration   float64 // seconds
	maxDuration   float64 // seconds
	numHighlights int
}

func NewKeywordAnalyzer(minDuration, maxDuration time.Duration, numHighlights int) *KeywordAnalyzer {
	if numHighlights <= 0 {
		numHighlights = 3
	}
	return &KeywordAnalyzer{
		minDuration:   minDuration.Seconds(),
		maxDuration:   maxDuration.Seconds(),
		numHighlights: numHighlights,
	}
}

type scoredSegment struct {
	index int
	score float64
}

// DetectHighlights returns up to numHighlights highlights ordered by
// descending score. An empty result is valid: it means nothing in the
// transcript met the duration window.
func (a *KeywordAnalyzer) DetectHighlights(ctx context.Context, segments []Segment) ([]job.Highlight, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	scored := make([]scoredSegment, 0, len(segments))
	for i, seg := range segments {
		scored = append(scored, scoredSegment{index: i, score: a.scoreSegment(seg, i)})
	}
	sort.Slice(scored, func(i, k int) bool { return scored[i].score > scored[k].score })

	// Consider more candidates than requested: expansion can push a
	// candidate outside the duration window.
	limit := a.numHighlights * 3
	if limit > len(scored) {
		limit = len(scored)
	}

	highlights := make([]job.Highlight, 0, a.numHighlights)
	for _, cand := range scored[:limit] {
		h := a.expandSegment(cand, segments)
		duration := h.EndTime - h.StartTime
		if duration >= a.minDuration && duration <= a.maxDuration {
			highlights = append(highlights, h)
		}
		if len(highlights) >= a.numHighlights {
			break
		}
	}
	return highlights, nil
}

func (a *KeywordAnalyzer) scoreSegment(seg Segment, index int) float64 {
	score := 0.0
	text := strings.ToLower(seg.Text)

	for _, kw := range interestKeywords {
		if strings.Contains(text, kw) {
			score += 2.0
		}
	}

	score += float64(strings.Count(text, "?")) * 1.5
	score += float64(strings.Count(text, "!")) * 1.0

	// Longer segments tend to be complete thoughts.
	words := len(strings.Fields(text))
	if words >= 20 && words <= 100 {
		score += 1.0
	}

	if seg.Confidence < 0 {
		score += -seg.Confidence * 0.5
	} else {
		score += seg.Confidence * 0.5
	}

	// Openings are usually throat-clearing.
	if index < 3 {
		score *= 0.8
	}
	return score
}

// expandSegment grows a candidate with neighbouring segments until it
// reaches the minimum duration, without exceeding the maximum.
func (a *KeywordAnalyzer) expandSegment(cand scoredSegment, segments []Segment) job.Highlight {
	seg := segments[cand.index]
	start := seg.Start
	end := seg.End
	text := seg.Text

	for idx := cand.index - 1; idx >= 0 && (end-segments[idx].Start) < a.maxDuration; idx-- {
		if end-segments[idx].Start >= a.minDuration {
			break
		}
		start = segments[idx].Start
		text = segments[idx].Text + " " + text
	}

	for idx := cand.index + 1; idx < len(segments) && (segments[idx].End-start) < a.maxDuration; idx++ {
		end = segments[idx].End
		text = text + " " + segments[idx].Text
		if end-start >= a.minDuration {
			break
		}
	}

	confidence := cand.score / 10.0
	if confidence > 1.0 {
		confidence = 1.0
	}
	if confidence < 0 {
		confidence = 0
	}

	return job.Highlight{
		StartTime:  start,
		EndTime:    end,
		Text:       strings.TrimSpace(text),
		Confidence: confidence,
		Reason:     highlightReason(text, cand.score),
	}
}

// highlightReason explains in plain words why a segment was picked.
func highlightReason(text string, score float64) string {
	var reasons []string
	lower := strings.ToLower(text)

	var found []string
	for _, kw := range interestKeywords {
		if strings.Contains(lower, kw) {
			found = append(found, kw)
			if len(found) == 3 {
				break
			}
		}
	}
	if len(found) > 0 {
		reasons = append(reasons, "Contains key phrases: "+strings.Join(found, ", "))
	}
	if strings.Contains(text, "?") {
		reasons = append(reasons, "Engaging question")
	}
	if strings.Contains(text, "!") {
		reasons = append(reasons, "High energy content")
	}
	if score > 5 {
		reasons = append(reasons, "High engagement score")
	}

	if len(reasons) == 0 {
		return "Selected as potential highlight"
	}
	return strings.Join(reasons, "; ")
}
