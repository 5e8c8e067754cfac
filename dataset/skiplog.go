package dataset

import (
	"fmt"
	"sync"
)

// SkipReason classifies why an image was left out of the tables.
type SkipReason string

// Skip reasons.
const (
	SkipInvalidImage  SkipReason = "invalid_image"
	SkipNotRGB        SkipReason = "not_rgb"
	SkipLowConfidence SkipReason = "low_confidence"
)

// DefaultSkipPreview is how many skips a summary lists before counting the rest.
const DefaultSkipPreview = 10

// Skip records one rejected image.
type Skip struct {
	Path   string
	Reason SkipReason
	// Detail is the decoder error for SkipInvalidImage.
	Detail string
	// Score is the weakest keypoint score for SkipLowConfidence.
	Score float32
}

// String renders the skip as a human readable message.
func (s Skip) String() string {
	switch s.Reason {
	case SkipInvalidImage:
		return fmt.Sprintf("Skipped %s: Invalid image - %s", s.Path, s.Detail)
	case SkipNotRGB:
		return fmt.Sprintf("Skipped %s: Not RGB format", s.Path)
	case SkipLowConfidence:
		return fmt.Sprintf("Skipped %s: Low confidence (%.2f)", s.Path, s.Score)
	default:
		return fmt.Sprintf("Skipped %s: %s", s.Path, s.Reason)
	}
}

// SkipLog accumulates skips across a run. It is safe for concurrent use.
type SkipLog struct {
	mu    sync.Mutex
	skips []Skip
}

// Add appends a skip.
func (l *SkipLog) Add(s Skip) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.skips = append(l.skips, s)
}

// Len returns the number of skips.
func (l *SkipLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.skips)
}

// Skips returns a copy of every skip in insertion order.
func (l *SkipLog) Skips() []Skip {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Skip(nil), l.skips...)
}

// Summary returns the first limit messages followed by "... and N more" when skips were left out.
func (l *SkipLog) Summary(limit int) []string {
	return summarize(l.Skips(), limit)
}

func summarize(skips []Skip, limit int) []string {
	n := min(len(skips), max(limit, 0))
	lines := make([]string, 0, n+1)
	for _, s := range skips[:n] {
		lines = append(lines, s.String())
	}
	if rest := len(skips) - n; rest > 0 {
		lines = append(lines, fmt.Sprintf("... and %d more", rest))
	}
	return lines
}
