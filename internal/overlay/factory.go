package overlay

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/markerlens/markerlens/internal/assets"
	"github.com/markerlens/markerlens/internal/track"
)

// Kind classifies an overlay node's content.
type Kind string

const (
	KindVideo Kind = "video"
	KindImage Kind = "image"
	KindTint  Kind = "tint"
)

// Node is one overlay placed at a tracked anchor. Owned exclusively by
// the lifecycle manager and mutated only on the render tick goroutine.
type Node struct {
	AnchorID track.AnchorID
	Marker   string
	Kind     Kind

	ID     NodeID
	Player MediaPlayer // nil unless Kind == KindVideo

	visible   bool
	destroyed bool
}

// Visible reports whether the node is currently shown.
func (n *Node) Visible() bool { return n.visible }

// Factory creates and destroys overlay nodes. The video-URL mapping table
// is shared with the UI/command goroutine (loadVideos) and therefore
// guarded by a lock held only for the map copy.
type Factory struct {
	renderer Renderer
	players  PlayerFactory
	resolver *assets.Resolver
	logger   zerolog.Logger

	legacyVideo map[string]bool

	mu       sync.Mutex
	videoMap map[string]string // marker name -> video URL
}

// NewFactory creates a Factory. legacyVideoMarkers is the fixed set of
// bundled marker names that classify as video without a mapping command.
func NewFactory(renderer Renderer, players PlayerFactory, resolver *assets.Resolver, legacyVideoMarkers []string, logger zerolog.Logger) *Factory {
	legacy := make(map[string]bool, len(legacyVideoMarkers))
	for _, n := range legacyVideoMarkers {
		legacy[n] = true
	}
	return &Factory{
		renderer:    renderer,
		players:     players,
		resolver:    resolver,
		logger:      logger,
		legacyVideo: legacy,
		videoMap:    make(map[string]string),
	}
}

// SetVideoMap replaces the video-URL mapping table wholesale. Called from
// the UI/command goroutine on a loadVideos command.
func (f *Factory) SetVideoMap(mappings map[string]string) {
	m := make(map[string]string, len(mappings))
	for k, v := range mappings {
		m[k] = v
	}
	f.mu.Lock()
	f.videoMap = m
	f.mu.Unlock()
}

// videoSource returns the video byte source for a marker, consulting the
// mapping table first and the bundled legacy set second.
func (f *Factory) videoSource(marker string) (string, bool) {
	f.mu.Lock()
	url, mapped := f.videoMap[marker]
	f.mu.Unlock()
	if mapped {
		return url, true
	}
	if f.legacyVideo[marker] {
		if src, err := f.resolver.ResolveVideo(marker); err == nil {
			return src.Path, true
		}
		// Legacy name with no bundled file: classification stands, the
		// create path falls through to image/tint.
	}
	return "", false
}

// IsVideoMarker reports whether the marker currently classifies as video.
func (f *Factory) IsVideoMarker(marker string) bool {
	f.mu.Lock()
	_, mapped := f.videoMap[marker]
	f.mu.Unlock()
	return mapped || f.legacyVideo[marker]
}

// Create produces the overlay node for a marker at an anchor. It never
// returns a nil node without error: when video and image content both
// fail to resolve it falls back to a tinted plane, so the user always
// gets visual feedback that a marker was found.
func (f *Factory) Create(marker string, anchorID track.AnchorID, pose track.Pose, extent track.Extent) (*Node, error) {
	node := &Node{AnchorID: anchorID, Marker: marker}

	if source, ok := f.videoSource(marker); ok {
		player, err := f.players(source)
		if err != nil {
			f.logger.Warn().Str("marker", marker).Err(err).Msg("video player creation failed, falling back")
		} else {
			id, err := f.renderer.CreateVideoPlane(extent.Width, extent.Height, player)
			if err != nil {
				player.Close()
				f.logger.Warn().Str("marker", marker).Err(err).Msg("video plane creation failed, falling back")
			} else {
				node.Kind = KindVideo
				node.ID = id
				node.Player = player
			}
		}
	}

	if node.Kind == "" {
		if src, err := f.resolver.ResolveImage(marker); err == nil {
			id, rerr := f.renderer.CreateImagePlane(extent.Width, extent.Height, src.Path)
			if rerr != nil {
				f.logger.Warn().Str("marker", marker).Err(rerr).Msg("image plane creation failed, falling back")
			} else {
				node.Kind = KindImage
				node.ID = id
			}
		}
	}

	if node.Kind == "" {
		id, err := f.renderer.CreateTintPlane(extent.Width, extent.Height)
		if err != nil {
			return nil, fmt.Errorf("create tint plane for %s: %w", marker, err)
		}
		node.Kind = KindTint
		node.ID = id
	}

	f.renderer.SetTransform(node.ID, pose)
	f.renderer.SetVisible(node.ID, true)
	node.visible = true

	f.logger.Debug().Str("marker", marker).Str("anchor", string(anchorID)).Str("kind", string(node.Kind)).Msg("overlay created")
	return node, nil
}

// UpdateTransform moves the node to a fresh anchor pose.
func (f *Factory) UpdateTransform(node *Node, pose track.Pose) {
	if node == nil || node.destroyed {
		return
	}
	f.renderer.SetTransform(node.ID, pose)
}

// Hide conceals the node without destroying it. Video nodes are silenced
// immediately so audio cannot bleed from an off-screen marker.
func (f *Factory) Hide(node *Node) {
	if node == nil || node.destroyed || !node.visible {
		return
	}
	f.renderer.SetVisible(node.ID, false)
	node.visible = false
	if node.Player != nil {
		node.Player.Pause()
		node.Player.SetMuted(true)
		node.Player.SetVolume(0)
		node.Player.DetachOutput()
	}
}

// Show re-reveals a hidden node. Playback is not resumed here; the
// arbiter decides which video plays on the next tick.
func (f *Factory) Show(node *Node) {
	if node == nil || node.destroyed || node.visible {
		return
	}
	f.renderer.SetVisible(node.ID, true)
	node.visible = true
}

// Destroy releases the renderable and, for video, the media player,
// synchronously with respect to the caller. Idempotent.
func (f *Factory) Destroy(node *Node) {
	if node == nil || node.destroyed {
		return
	}
	node.destroyed = true
	node.visible = false
	f.renderer.DestroyNode(node.ID)
	if node.Player != nil {
		if err := node.Player.Close(); err != nil {
			f.logger.Warn().Str("marker", node.Marker).Err(err).Msg("media player close failed")
		}
		node.Player = nil
	}
	f.logger.Debug().Str("marker", node.Marker).Str("anchor", string(node.AnchorID)).Msg("overlay destroyed")
}
