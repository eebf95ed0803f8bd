package anchors

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markerlens/markerlens/internal/assets"
	"github.com/markerlens/markerlens/internal/events"
	"github.com/markerlens/markerlens/internal/monitoring"
	"github.com/markerlens/markerlens/internal/overlay"
	"github.com/markerlens/markerlens/internal/track"
)

// recorder collects emitted events for assertions.
type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Emit(e events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) ofType(t events.Type) []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []events.Event
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type fixture struct {
	manager  *Manager
	renderer *overlay.FakeRenderer
	factory  *overlay.Factory
	players  []*overlay.FakePlayer
	rec      *recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		renderer: overlay.NewFakeRenderer(),
		rec:      &recorder{},
	}
	resolver := assets.NewResolver([]string{t.TempDir()})
	f.factory = overlay.NewFactory(f.renderer, overlay.FakePlayerFactory(&f.players), resolver, nil, monitoring.Nop())
	f.manager = NewManager(f.factory, f.rec, monitoring.Nop())
	return f
}

func delta(id, marker string, state track.TrackingState) track.AnchorDelta {
	return track.AnchorDelta{
		ID:     track.AnchorID(id),
		Marker: marker,
		Pose:   track.IdentityPose(),
		Extent: track.Extent{Width: 0.1, Height: 0.1},
		State:  state,
	}
}

// TestDetectedDedup verifies the detected-event dedup rules across
// tracking flicker and multiple anchors of the same marker.
func TestDetectedDedup(t *testing.T) {
	t.Parallel()

	t.Run("fires once on first sighting", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.manager.ApplyDeltas([]track.AnchorDelta{delta("a1", "poster", track.StateTracking)})
		f.manager.ApplyDeltas([]track.AnchorDelta{delta("a1", "poster", track.StateTracking)})

		detected := f.rec.ofType(events.ImageDetected)
		require.Len(t, detected, 1)
		assert.Equal(t, "poster", detected[0].Marker)
	})

	t.Run("second anchor of same marker does not re-fire", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.manager.ApplyDeltas([]track.AnchorDelta{
			delta("a1", "poster", track.StateTracking),
			delta("a2", "poster", track.StateTracking),
		})
		assert.Len(t, f.rec.ofType(events.ImageDetected), 1)
	})

	t.Run("sole anchor resume re-fires", func(t *testing.T) {
		// The pause made no marker primary; resuming makes this marker
		// primary again, which counts as a fresh detection.
		t.Parallel()
		f := newFixture(t)
		f.manager.ApplyDeltas([]track.AnchorDelta{delta("a1", "poster", track.StateTracking)})
		f.manager.ApplyDeltas([]track.AnchorDelta{delta("a1", "poster", track.StatePaused)})
		f.manager.ApplyDeltas([]track.AnchorDelta{delta("a1", "poster", track.StateTracking)})

		detected := f.rec.ofType(events.ImageDetected)
		require.Len(t, detected, 2)
	})

	t.Run("non-primary flicker does not re-fire", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.manager.ApplyDeltas([]track.AnchorDelta{
			delta("a1", "first", track.StateTracking),
			delta("a2", "second", track.StateTracking),
		})
		for i := 0; i < 3; i++ {
			f.manager.ApplyDeltas([]track.AnchorDelta{delta("a2", "second", track.StatePaused)})
			f.manager.ApplyDeltas([]track.AnchorDelta{delta("a2", "second", track.StateTracking)})
		}

		// One for each marker's first sighting, nothing from the flicker:
		// "first" stayed primary throughout.
		assert.Len(t, f.rec.ofType(events.ImageDetected), 2)
	})
}

// TestFullLifecycleScenario walks one anchor through appear, pause,
// resume and stop, checking overlay visibility at each step.
func TestFullLifecycleScenario(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	f.manager.ApplyDeltas([]track.AnchorDelta{delta("a1", "A", track.StateTracking)})
	require.Len(t, f.rec.ofType(events.ImageDetected), 1)
	require.Equal(t, 1, f.renderer.LiveNodeCount())
	node := f.renderer.Node(1)
	require.NotNil(t, node)
	assert.True(t, node.Visible)

	f.manager.ApplyDeltas([]track.AnchorDelta{delta("a1", "A", track.StatePaused)})
	assert.False(t, f.renderer.Node(1).Visible, "paused overlay should be hidden, not destroyed")
	assert.False(t, f.renderer.Node(1).Destroyed)

	f.manager.ApplyDeltas([]track.AnchorDelta{delta("a1", "A", track.StateTracking)})
	assert.True(t, f.renderer.Node(1).Visible)
	assert.Len(t, f.rec.ofType(events.ImageDetected), 2, "sole-anchor resume re-fires")

	f.manager.ApplyDeltas([]track.AnchorDelta{delta("a1", "A", track.StateStopped)})
	assert.True(t, f.renderer.Node(1).Destroyed)
	assert.Equal(t, 0, f.manager.LiveAnchorCount())
	assert.Len(t, f.rec.ofType(events.ImageDetected), 2, "stop emits nothing")
}

// TestDestroyIsPerAnchor verifies that stopping one anchor never touches
// another anchor's overlay, even when they share a marker name.
func TestDestroyIsPerAnchor(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	f.manager.ApplyDeltas([]track.AnchorDelta{
		delta("a1", "poster", track.StateTracking),
		delta("a2", "poster", track.StateTracking),
	})
	require.Equal(t, 2, f.renderer.LiveNodeCount())

	f.manager.ApplyDeltas([]track.AnchorDelta{delta("a1", "poster", track.StateStopped)})
	assert.Equal(t, 1, f.renderer.LiveNodeCount())
	assert.True(t, f.renderer.Node(1).Destroyed)
	assert.False(t, f.renderer.Node(2).Destroyed)
	assert.Equal(t, 1, f.manager.LiveAnchorCount())
}

// TestStoppedBeforeSeen verifies a Stopped delta for an unknown anchor is
// ignored.
func TestStoppedBeforeSeen(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.manager.ApplyDeltas([]track.AnchorDelta{delta("ghost", "poster", track.StateStopped)})
	assert.Equal(t, 0, f.manager.LiveAnchorCount())
	assert.Empty(t, f.rec.ofType(events.ImageDetected))
}

// TestVideoCandidates verifies candidate order and tracking flags.
func TestVideoCandidates(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.factory.SetVideoMap(map[string]string{
		"vid-a": "https://cdn.example.com/a.mp4",
		"vid-b": "https://cdn.example.com/b.mp4",
	})

	f.manager.ApplyDeltas([]track.AnchorDelta{
		delta("a1", "vid-a", track.StateTracking),
		delta("a2", "plain", track.StateTracking),
		delta("a3", "vid-b", track.StateTracking),
	})
	f.manager.ApplyDeltas([]track.AnchorDelta{delta("a3", "vid-b", track.StatePaused)})

	cands := f.manager.VideoCandidates()
	require.Len(t, cands, 2, "non-video anchors are not candidates")
	assert.Equal(t, track.AnchorID("a1"), cands[0].Node.AnchorID)
	assert.True(t, cands[0].Tracking)
	assert.Equal(t, track.AnchorID("a3"), cands[1].Node.AnchorID)
	assert.False(t, cands[1].Tracking)
}

// TestSnapshotEntries verifies only tracking anchors with visible
// overlays are published for hit-testing, in enumeration order.
func TestSnapshotEntries(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	f.manager.ApplyDeltas([]track.AnchorDelta{
		delta("a1", "one", track.StateTracking),
		delta("a2", "two", track.StateTracking),
		delta("a3", "three", track.StateTracking),
	})
	f.manager.ApplyDeltas([]track.AnchorDelta{delta("a2", "two", track.StatePaused)})

	entries := f.manager.SnapshotEntries()
	require.Len(t, entries, 2)
	assert.Equal(t, "one", entries[0].Marker)
	assert.Equal(t, "three", entries[1].Marker)
}

// TestResetClearsDedup verifies Reset destroys everything and lets
// detected fire again, while DestroyAll preserves the dedup set.
func TestResetClearsDedup(t *testing.T) {
	t.Parallel()

	t.Run("reset", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.manager.ApplyDeltas([]track.AnchorDelta{delta("a1", "poster", track.StateTracking)})
		f.manager.Reset()
		assert.Equal(t, 0, f.renderer.LiveNodeCount())

		f.manager.ApplyDeltas([]track.AnchorDelta{delta("a2", "poster", track.StateTracking)})
		assert.Len(t, f.rec.ofType(events.ImageDetected), 2)
	})

	t.Run("destroy all keeps dedup", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.manager.ApplyDeltas([]track.AnchorDelta{delta("a1", "poster", track.StateTracking)})
		f.manager.DestroyAll()
		assert.Equal(t, 0, f.renderer.LiveNodeCount())

		f.manager.ApplyDeltas([]track.AnchorDelta{delta("a2", "poster", track.StateTracking)})
		assert.Len(t, f.rec.ofType(events.ImageDetected), 1)
	})
}

// TestManyAnchors exercises admission and removal across a larger set.
func TestManyAnchors(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	var frame []track.AnchorDelta
	for i := 0; i < 8; i++ {
		frame = append(frame, delta(fmt.Sprintf("a%d", i), fmt.Sprintf("m%d", i), track.StateTracking))
	}
	f.manager.ApplyDeltas(frame)
	assert.Equal(t, 8, f.manager.LiveAnchorCount())
	assert.Len(t, f.rec.ofType(events.ImageDetected), 8)

	for i := 0; i < 8; i++ {
		f.manager.ApplyDeltas([]track.AnchorDelta{delta(fmt.Sprintf("a%d", i), fmt.Sprintf("m%d", i), track.StateStopped)})
	}
	assert.Equal(t, 0, f.manager.LiveAnchorCount())
	assert.Equal(t, 0, f.renderer.LiveNodeCount())
}
