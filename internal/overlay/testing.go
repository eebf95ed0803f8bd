package overlay

import (
	"fmt"
	"sync"

	"github.com/markerlens/markerlens/internal/track"
)

// FakeRenderer implements Renderer with configurable behaviour for
// testing. It records node state so tests can assert visibility,
// transforms, and destruction.
type FakeRenderer struct {
	mu sync.Mutex

	nextID NodeID
	nodes  map[NodeID]*FakeNodeState

	// FailImage / FailVideo / FailTint make the corresponding create
	// call return an error.
	FailImage bool
	FailVideo bool
	FailTint  bool
}

// FakeNodeState captures what the renderer knows about one node.
type FakeNodeState struct {
	Kind      Kind
	WidthM    float64
	HeightM   float64
	ImagePath string
	Visible   bool
	Destroyed bool
	Pose      track.Pose
}

// NewFakeRenderer creates an empty FakeRenderer.
func NewFakeRenderer() *FakeRenderer {
	return &FakeRenderer{nodes: make(map[NodeID]*FakeNodeState)}
}

func (r *FakeRenderer) create(kind Kind, w, h float64, imagePath string) NodeID {
	r.nextID++
	r.nodes[r.nextID] = &FakeNodeState{Kind: kind, WidthM: w, HeightM: h, ImagePath: imagePath}
	return r.nextID
}

// CreateImagePlane implements Renderer.
func (r *FakeRenderer) CreateImagePlane(w, h float64, imagePath string) (NodeID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailImage {
		return 0, fmt.Errorf("fake renderer: image plane failure")
	}
	return r.create(KindImage, w, h, imagePath), nil
}

// CreateVideoPlane implements Renderer.
func (r *FakeRenderer) CreateVideoPlane(w, h float64, _ MediaPlayer) (NodeID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailVideo {
		return 0, fmt.Errorf("fake renderer: video plane failure")
	}
	return r.create(KindVideo, w, h, ""), nil
}

// CreateTintPlane implements Renderer.
func (r *FakeRenderer) CreateTintPlane(w, h float64) (NodeID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailTint {
		return 0, fmt.Errorf("fake renderer: tint plane failure")
	}
	return r.create(KindTint, w, h, ""), nil
}

// SetTransform implements Renderer.
func (r *FakeRenderer) SetTransform(id NodeID, pose track.Pose) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n, ok := r.nodes[id]; ok {
		n.Pose = pose
	}
}

// SetVisible implements Renderer.
func (r *FakeRenderer) SetVisible(id NodeID, visible bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n, ok := r.nodes[id]; ok {
		n.Visible = visible
	}
}

// DestroyNode implements Renderer.
func (r *FakeRenderer) DestroyNode(id NodeID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n, ok := r.nodes[id]; ok {
		n.Destroyed = true
		n.Visible = false
	}
}

// Node returns the recorded state for a node id, or nil.
func (r *FakeRenderer) Node(id NodeID) *FakeNodeState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.nodes[id]
}

// LiveNodeCount returns the number of created, not-yet-destroyed nodes.
func (r *FakeRenderer) LiveNodeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, n := range r.nodes {
		if !n.Destroyed {
			count++
		}
	}
	return count
}

// FakePlayer implements MediaPlayer with observable state for testing.
type FakePlayer struct {
	mu sync.Mutex

	Source string

	// NotReady keeps Ready() false, simulating a still-buffering player.
	NotReady bool

	playing  bool
	muted    bool
	volume   float64
	attached bool
	closed   bool
}

// NewFakePlayer returns a ready, attached, unmuted player at full volume.
func NewFakePlayer(source string) *FakePlayer {
	return &FakePlayer{Source: source, volume: 1, attached: true}
}

// Ready implements MediaPlayer.
func (p *FakePlayer) Ready() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.NotReady && !p.closed
}

// Playing implements MediaPlayer.
func (p *FakePlayer) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

// Play implements MediaPlayer.
func (p *FakePlayer) Play() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.playing = true
	}
}

// Pause implements MediaPlayer.
func (p *FakePlayer) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.playing = false
}

// SetMuted implements MediaPlayer.
func (p *FakePlayer) SetMuted(muted bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.muted = muted
}

// SetVolume implements MediaPlayer.
func (p *FakePlayer) SetVolume(v float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.volume = v
}

// AttachOutput implements MediaPlayer.
func (p *FakePlayer) AttachOutput() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.attached = true
}

// DetachOutput implements MediaPlayer.
func (p *FakePlayer) DetachOutput() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.attached = false
}

// Close implements MediaPlayer.
func (p *FakePlayer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.playing = false
	return nil
}

// Muted reports the observed mute state.
func (p *FakePlayer) Muted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.muted
}

// Volume reports the observed volume.
func (p *FakePlayer) Volume() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}

// Attached reports whether the decoded output is connected.
func (p *FakePlayer) Attached() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attached
}

// Closed reports whether Close was called.
func (p *FakePlayer) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// FakePlayerFactory returns a PlayerFactory producing FakePlayers and
// records every player it creates.
func FakePlayerFactory(created *[]*FakePlayer) PlayerFactory {
	var mu sync.Mutex
	return func(source string) (MediaPlayer, error) {
		p := NewFakePlayer(source)
		mu.Lock()
		*created = append(*created, p)
		mu.Unlock()
		return p, nil
	}
}
