// Package anchors runs the per-anchor detection/loss state machine and
// owns every overlay node. It consumes the tracking subsystem's per-frame
// delta list on the render tick goroutine; all overlay mutation happens
// there and nowhere else.
package anchors

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/markerlens/markerlens/internal/events"
	"github.com/markerlens/markerlens/internal/hittest"
	"github.com/markerlens/markerlens/internal/overlay"
	"github.com/markerlens/markerlens/internal/playback"
	"github.com/markerlens/markerlens/internal/track"
)

// Manager drives anchor lifecycle transitions and overlay create, hide,
// show and destroy. Not safe for concurrent use; the render tick
// goroutine is its sole caller.
type Manager struct {
	factory *overlay.Factory
	emitter events.Emitter
	logger  zerolog.Logger

	records map[track.AnchorID]*track.AnchorRecord
	nodes   map[track.AnchorID]*overlay.Node

	// order preserves the subsystem's first-sighting enumeration order.
	// Candidate and snapshot iteration follow it; no extra sort applies.
	order []track.AnchorID

	// notified is the set of marker names that already fired a detected
	// event. It survives anchor Stopped and clears only on Reset.
	notified map[string]bool

	now func() time.Time
}

// NewManager creates a Manager emitting events through emitter.
func NewManager(factory *overlay.Factory, emitter events.Emitter, logger zerolog.Logger) *Manager {
	return &Manager{
		factory:  factory,
		emitter:  emitter,
		logger:   logger,
		records:  make(map[track.AnchorID]*track.AnchorRecord),
		nodes:    make(map[track.AnchorID]*overlay.Node),
		notified: make(map[string]bool),
		now:      time.Now,
	}
}

// ApplyDeltas consumes one frame's anchor deltas in delivery order.
// State is mutated first; event emission goes through the emitter, which
// hands off to the UI/command goroutine rather than running inline.
func (m *Manager) ApplyDeltas(deltas []track.AnchorDelta) {
	for _, d := range deltas {
		rec, known := m.records[d.ID]
		if !known {
			if d.State == track.StateStopped {
				// Stopped before we ever saw it. Nothing to tear down.
				continue
			}
			m.admit(d)
			continue
		}
		m.transition(rec, d)
	}
}

// admit handles Unseen -> Tracking (or, rarely, Unseen -> Paused when
// the subsystem's first report for an anchor is already paused).
func (m *Manager) admit(d track.AnchorDelta) {
	nowNanos := m.now().UnixNano()
	rec := &track.AnchorRecord{
		ID:                 d.ID,
		Marker:             d.Marker,
		Pose:               d.Pose,
		Extent:             d.Extent,
		State:              d.State,
		FirstSeenUnixNanos: nowNanos,
		LastSeenUnixNanos:  nowNanos,
	}
	m.records[d.ID] = rec
	m.order = append(m.order, d.ID)

	node, err := m.factory.Create(d.Marker, d.ID, d.Pose, d.Extent)
	if err != nil {
		m.logger.Error().Str("marker", d.Marker).Str("anchor", string(d.ID)).Err(err).Msg("overlay creation failed")
	} else {
		m.nodes[d.ID] = node
		if d.State == track.StatePaused {
			m.factory.Hide(node)
		}
	}

	if d.State == track.StateTracking && !m.notified[d.Marker] {
		m.notified[d.Marker] = true
		m.emitter.Emit(events.Event{Type: events.ImageDetected, Marker: d.Marker, Time: m.now()})
	}
	m.logger.Debug().Str("marker", d.Marker).Str("anchor", string(d.ID)).Msg("anchor admitted")
}

func (m *Manager) transition(rec *track.AnchorRecord, d track.AnchorDelta) {
	rec.Pose = d.Pose
	rec.Extent = d.Extent
	rec.LastSeenUnixNanos = m.now().UnixNano()

	prev := rec.State
	node := m.nodes[rec.ID]

	switch d.State {
	case track.StateTracking:
		if prev == track.StatePaused {
			m.resume(rec, node)
			return
		}
		rec.State = track.StateTracking
		m.factory.UpdateTransform(node, d.Pose)

	case track.StatePaused:
		rec.State = track.StatePaused
		if prev == track.StateTracking {
			// Hide, do not destroy. The arbiter drops it from candidacy
			// next tick; audio is silenced here so it cannot bleed from
			// an off-screen marker in the meantime.
			m.factory.Hide(node)
		}

	case track.StateStopped:
		m.remove(rec)
	}
}

// resume handles Paused -> Tracking. The overlay is re-shown, or
// recreated if it had been torn down. A detected event re-fires only
// when the transition changes which marker is primary, that is, first
// in enumeration order among Tracking anchors.
func (m *Manager) resume(rec *track.AnchorRecord, node *overlay.Node) {
	primaryBefore := m.primaryMarker()
	rec.State = track.StateTracking

	if node == nil {
		created, err := m.factory.Create(rec.Marker, rec.ID, rec.Pose, rec.Extent)
		if err != nil {
			m.logger.Error().Str("marker", rec.Marker).Str("anchor", string(rec.ID)).Err(err).Msg("overlay recreation failed")
		} else {
			m.nodes[rec.ID] = created
		}
	} else {
		m.factory.Show(node)
		m.factory.UpdateTransform(node, rec.Pose)
	}

	if primaryAfter := m.primaryMarker(); primaryAfter != primaryBefore && primaryAfter == rec.Marker {
		m.emitter.Emit(events.Event{Type: events.ImageDetected, Marker: rec.Marker, Time: m.now()})
	}
}

func (m *Manager) remove(rec *track.AnchorRecord) {
	if node, ok := m.nodes[rec.ID]; ok {
		m.factory.Destroy(node)
		delete(m.nodes, rec.ID)
	}
	delete(m.records, rec.ID)
	for i, id := range m.order {
		if id == rec.ID {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	m.logger.Debug().Str("marker", rec.Marker).Str("anchor", string(rec.ID)).Msg("anchor removed")
}

// primaryMarker returns the marker of the first Tracking anchor in
// enumeration order, or "" when none is Tracking.
func (m *Manager) primaryMarker() string {
	for _, id := range m.order {
		if rec := m.records[id]; rec != nil && rec.State == track.StateTracking {
			return rec.Marker
		}
	}
	return ""
}

// VideoCandidates returns the video-holding anchors in enumeration order
// for the playback arbiter.
func (m *Manager) VideoCandidates() []playback.Candidate {
	var out []playback.Candidate
	for _, id := range m.order {
		node := m.nodes[id]
		if node == nil || node.Kind != overlay.KindVideo {
			continue
		}
		rec := m.records[id]
		out = append(out, playback.Candidate{
			Node:     node,
			Tracking: rec != nil && rec.State == track.StateTracking,
		})
	}
	return out
}

// SnapshotEntries returns the hit-test geometry for anchors that are
// Tracking with a visible overlay, in enumeration order.
func (m *Manager) SnapshotEntries() []hittest.Entry {
	var out []hittest.Entry
	for _, id := range m.order {
		rec := m.records[id]
		if rec == nil || rec.State != track.StateTracking {
			continue
		}
		if node := m.nodes[id]; node == nil || !node.Visible() {
			continue
		}
		out = append(out, hittest.Entry{Marker: rec.Marker, Pose: rec.Pose, Extent: rec.Extent})
	}
	return out
}

// LiveAnchorCount reports the number of anchors not yet Stopped.
func (m *Manager) LiveAnchorCount() int { return len(m.records) }

// DestroyAll destroys every overlay and forgets every anchor. The
// NotifiedSet is untouched; use Reset for a full tracking reset.
func (m *Manager) DestroyAll() {
	for _, id := range m.order {
		if node, ok := m.nodes[id]; ok {
			m.factory.Destroy(node)
		}
	}
	m.records = make(map[track.AnchorID]*track.AnchorRecord)
	m.nodes = make(map[track.AnchorID]*overlay.Node)
	m.order = nil
}

// Reset is the tracking-reset teardown: all overlays destroyed, all
// anchors forgotten, and the detected-event dedup set cleared so every
// marker may fire again.
func (m *Manager) Reset() {
	m.DestroyAll()
	m.notified = make(map[string]bool)
}
