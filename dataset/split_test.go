package dataset

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplit(t *testing.T) {
	samples := make([]int, 100)
	for i := range samples {
		samples[i] = i
	}

	train, val := Split(samples, 0.15, 42)
	assert.Len(t, val, 15)
	assert.Len(t, train, 85)

	again, againVal := Split(samples, 0.15, 42)
	assert.Equal(t, train, again)
	assert.Equal(t, val, againVal)

	all := append(append([]int(nil), train...), val...)
	sort.Ints(all)
	assert.Equal(t, samples, all)

	_, otherVal := Split(samples, 0.15, 7)
	assert.NotEqual(t, val, otherVal)
}

func TestSplitEdges(t *testing.T) {
	train, val := Split([]int{1, 2}, 0.9, 1)
	assert.Len(t, train, 1)
	assert.Len(t, val, 1)

	train, val = Split([]int{1, 2, 3}, 0, 1)
	assert.Len(t, train, 3)
	assert.Empty(t, val)

	train, val = Split([]int{}, 0.15, 1)
	assert.Empty(t, train)
	assert.Empty(t, val)
}
