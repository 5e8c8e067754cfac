package coach

import (
	"testing"
	"time"

	"github.com/nvr-ai/go-pose/pose"
	"github.com/stretchr/testify/assert"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time {
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.t = c.t.Add(d)
}

var classes = []string{"tree", "warrior"}

func TestGate(t *testing.T) {
	g := DefaultGate()

	var p pose.Pose
	for i := range p {
		p[i].Score = 0.9
	}
	assert.True(t, g.Detected(p))

	for i := 0; i < 4; i++ {
		p[i].Score = 0.4
	}
	assert.True(t, g.Detected(p), "four weak keypoints are tolerated")

	p[4].Score = 0.1
	assert.False(t, g.Detected(p))
}

func TestTrackerHold(t *testing.T) {
	clock := &fakeClock{t: time.Unix(100, 0)}
	tr := NewTracker("tree", DefaultPoseThreshold, WithClock(clock.now))

	s := tr.Observe(classes, []float32{0.98, 0.02})
	assert.True(t, s.Holding)
	assert.Equal(t, time.Duration(0), s.Hold)

	clock.advance(2 * time.Second)
	s = tr.Observe(classes, []float32{0.99, 0.01})
	assert.Equal(t, 2*time.Second, s.Hold)
	assert.Equal(t, 2*time.Second, s.Best)
	assert.InDelta(t, 0.99, s.Probability, 1e-6)

	clock.advance(time.Second)
	s = tr.Observe(classes, []float32{0.97, 0.03})
	assert.False(t, s.Holding, "threshold is exclusive")
	assert.Equal(t, time.Duration(0), s.Hold)
	assert.Equal(t, 2*time.Second, s.Best)

	clock.advance(time.Second)
	tr.Observe(classes, []float32{0.98, 0.02})
	clock.advance(time.Second)
	s = tr.Observe(classes, []float32{0.98, 0.02})
	assert.Equal(t, time.Second, s.Hold)
	assert.Equal(t, 2*time.Second, s.Best)
}

func TestTrackerMissAndTarget(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	tr := NewTracker("tree", DefaultPoseThreshold, WithClock(clock.now))

	tr.Observe(classes, []float32{0.99, 0.01})
	clock.advance(3 * time.Second)
	tr.Observe(classes, []float32{0.99, 0.01})

	s := tr.Miss()
	assert.False(t, s.Holding)
	assert.Equal(t, 3*time.Second, s.Best)

	tr.SetTarget("tree")
	assert.Equal(t, 3*time.Second, tr.Miss().Best, "same target keeps best")

	tr.SetTarget("warrior")
	assert.Equal(t, "warrior", tr.Target())
	s = tr.Observe(classes, []float32{0.99, 0.01})
	assert.False(t, s.Holding)
	assert.Equal(t, time.Duration(0), s.Best)
	assert.InDelta(t, 0.01, s.Probability, 1e-6)
}

func TestTrackerUnknownTarget(t *testing.T) {
	tr := NewTracker("lotus", 0.5)
	s := tr.Observe(classes, []float32{0.6, 0.4})
	assert.False(t, s.Holding)
	assert.Zero(t, s.Probability)
}
