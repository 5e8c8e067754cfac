package dataset

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSkipString(t *testing.T) {
	assert.Equal(t, "Skipped a.jpg: Invalid image - bad header",
		Skip{Path: "a.jpg", Reason: SkipInvalidImage, Detail: "bad header"}.String())
	assert.Equal(t, "Skipped b.png: Not RGB format", Skip{Path: "b.png", Reason: SkipNotRGB}.String())
	assert.Equal(t, "Skipped c.jpg: Low confidence (0.05)",
		Skip{Path: "c.jpg", Reason: SkipLowConfidence, Score: 0.05}.String())
}

func TestSkipSummary(t *testing.T) {
	var log SkipLog
	for i := 0; i < 13; i++ {
		log.Add(Skip{Path: fmt.Sprintf("%02d.jpg", i), Reason: SkipNotRGB})
	}

	lines := log.Summary(DefaultSkipPreview)
	require.Len(t, lines, 11)
	assert.Equal(t, "Skipped 00.jpg: Not RGB format", lines[0])
	assert.Equal(t, "Skipped 09.jpg: Not RGB format", lines[9])
	assert.Equal(t, "... and 3 more", lines[10])

	var small SkipLog
	small.Add(Skip{Path: "x.jpg", Reason: SkipNotRGB})
	assert.Equal(t, []string{"Skipped x.jpg: Not RGB format"}, small.Summary(DefaultSkipPreview))

	var empty SkipLog
	assert.Empty(t, empty.Summary(DefaultSkipPreview))
}

func TestSkipLogConcurrent(t *testing.T) {
	var log SkipLog
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Add(Skip{Reason: SkipNotRGB})
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, log.Len())
}
