package track

import (
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPoseApply verifies transform application and translation
// extraction.
func TestPoseApply(t *testing.T) {
	t.Parallel()

	id := IdentityPose()
	v := r3.Vector{X: 1, Y: 2, Z: 3}
	assert.Equal(t, v, id.Apply(v))

	tr := TranslationPose(0.5, -1, 2)
	assert.Equal(t, r3.Vector{X: 1.5, Y: 1, Z: 5}, tr.Apply(v))
	assert.Equal(t, r3.Vector{X: 0.5, Y: -1, Z: 2}, tr.Translation())
}

// TestCorners verifies corner generation from pose and extent.
func TestCorners(t *testing.T) {
	t.Parallel()

	corners := Corners(IdentityPose(), Extent{Width: 2, Height: 4})
	assert.Equal(t, [4]r3.Vector{
		{X: -1, Y: 0, Z: -2},
		{X: 1, Y: 0, Z: -2},
		{X: 1, Y: 0, Z: 2},
		{X: -1, Y: 0, Z: 2},
	}, corners)

	shifted := Corners(TranslationPose(10, 0, 0), Extent{Width: 2, Height: 2})
	for _, c := range shifted {
		assert.InDelta(t, 10, c.X, 1.01)
		assert.Equal(t, 0.0, c.Y)
	}
}

// TestSimPlayback verifies scripted frame delivery and reset semantics.
func TestSimPlayback(t *testing.T) {
	t.Parallel()

	frame1 := []AnchorDelta{{ID: "a1", Marker: "m", State: StateTracking}}
	frame2 := []AnchorDelta{{ID: "a1", Marker: "m", State: StateStopped}}
	sim := NewSimSubsystem([][]AnchorDelta{frame1, frame2})

	assert.Nil(t, sim.FrameDeltas(), "nothing before Run")
	_, ok := sim.CameraFrame()
	assert.False(t, ok)

	require.NoError(t, sim.Run(RunConfig{MaxTrackedImages: 4}))
	assert.Equal(t, frame1, sim.FrameDeltas())
	assert.Equal(t, frame2, sim.FrameDeltas())
	assert.Nil(t, sim.FrameDeltas(), "script exhausted")

	_, ok = sim.CameraFrame()
	assert.True(t, ok)

	// Run rewinds the script.
	require.NoError(t, sim.Run(RunConfig{}))
	assert.Equal(t, frame1, sim.FrameDeltas())

	sim.Pause()
	assert.Nil(t, sim.FrameDeltas())
	assert.Equal(t, 2, sim.RunCount())
	assert.Equal(t, 1, sim.PauseCount())
}

// TestSimHandlers verifies callback installation and detachment.
func TestSimHandlers(t *testing.T) {
	t.Parallel()
	sim := NewSimSubsystem(nil)

	var gotTitle string
	interruptions := 0
	sim.SetHandlers(Handlers{
		OnFatalError:        func(title, _ string) { gotTitle = title },
		OnInterruptionEnded: func() { interruptions++ },
	})

	sim.FireFatalError("boom", "details")
	sim.FireInterruptionEnded()
	assert.Equal(t, "boom", gotTitle)
	assert.Equal(t, 1, interruptions)

	sim.SetHandlers(Handlers{})
	sim.FireFatalError("again", "details")
	sim.FireInterruptionEnded()
	assert.Equal(t, "boom", gotTitle, "detached handlers never fire")
	assert.Equal(t, 1, interruptions)
}
