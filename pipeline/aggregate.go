package pipeline

import (
	"errors"
	"fmt"

	"podlight/job"
)

// ErrAggregationMismatch means generation produced a different number of
// artifacts than there were highlights. The index correlation between the
// two sequences is broken, so the stage must fail rather than attach a
// partial result.
var ErrAggregationMismatch = errors.New("highlight and artifact counts diverge")

// Aggregate validates that artifacts[i] corresponds to highlights[i] and
// returns the artifact sequence to attach at the completion boundary.
// Both empty is valid: no highlight was detected, so nothing was rendered.
func Aggregate(highlights []job.Highlight, artifacts []string) ([]string, error) {
	if len(highlights) != len(artifacts) {
		return nil, fmt.Errorf("%w: %d highlights, %d artifacts",
			ErrAggregationMismatch, len(highlights), len(artifacts))
	}
	return artifacts, nil
}
