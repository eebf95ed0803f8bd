// Package playback arbitrates video playback across simultaneously
// tracked video overlays: at most one is playing and audible at any
// render tick, and paused players release their decoder output promptly.
package playback

import (
	"github.com/rs/zerolog"

	"github.com/markerlens/markerlens/internal/overlay"
)

// Candidate is one video-holding anchor considered by the arbiter, in
// the tracking subsystem's current enumeration order.
type Candidate struct {
	Node     *overlay.Node
	Tracking bool
}

// Arbiter reconciles desired against observed playback state once per
// render tick (never per event).
type Arbiter struct {
	logger zerolog.Logger

	// activeAnchor remembers which anchor held playback last tick, for
	// change logging only; the decision is recomputed from scratch.
	activeAnchor string
}

// NewArbiter creates an Arbiter.
func NewArbiter(logger zerolog.Logger) *Arbiter {
	return &Arbiter{logger: logger}
}

// Arbitrate picks the first Tracking candidate with a ready player as
// should-play and transitions every candidate toward its desired state.
// Transitions are applied only where observed state disagrees, so a
// steady scene is a no-op.
func (a *Arbiter) Arbitrate(candidates []Candidate) {
	winner := ""
	for _, c := range candidates {
		if c.Node == nil || c.Node.Player == nil {
			continue
		}
		if c.Tracking && c.Node.Player.Ready() {
			winner = string(c.Node.AnchorID)
			break
		}
	}

	if winner != a.activeAnchor {
		a.logger.Debug().Str("from", a.activeAnchor).Str("to", winner).Msg("active video changed")
		a.activeAnchor = winner
	}

	for _, c := range candidates {
		if c.Node == nil || c.Node.Player == nil {
			continue
		}
		p := c.Node.Player
		if string(c.Node.AnchorID) == winner {
			if !p.Playing() {
				p.AttachOutput()
				p.SetMuted(false)
				p.SetVolume(1)
				p.Play()
			}
			continue
		}
		if p.Playing() {
			p.Pause()
			p.SetMuted(true)
			p.SetVolume(0)
			// Detach so the hardware decoder is released rather than
			// held idle by an off-screen marker.
			p.DetachOutput()
		}
	}
}

// Reset forgets the remembered active anchor. Called on session reset.
func (a *Arbiter) Reset() {
	a.activeAnchor = ""
}
