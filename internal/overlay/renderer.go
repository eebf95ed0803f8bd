package overlay

import "github.com/markerlens/markerlens/internal/track"

// NodeID is an opaque renderable handle issued by the Renderer.
type NodeID int64

// Renderer is the boundary to the low-level 3D pipeline. All methods are
// called from the render tick goroutine only. Planes are created flush
// with the detected surface and use unlit/constant shading so scene
// lighting cannot change their appearance between restarts.
type Renderer interface {
	// CreateImagePlane creates a plane textured with a still image file.
	CreateImagePlane(widthM, heightM float64, imagePath string) (NodeID, error)
	// CreateVideoPlane creates a plane whose texture is fed by the
	// player's decoded output.
	CreateVideoPlane(widthM, heightM float64, player MediaPlayer) (NodeID, error)
	// CreateTintPlane creates a translucent tinted plane used as the
	// fallback visual when no content resolves.
	CreateTintPlane(widthM, heightM float64) (NodeID, error)

	SetTransform(id NodeID, pose track.Pose)
	SetVisible(id NodeID, visible bool)
	// DestroyNode releases the renderable synchronously.
	DestroyNode(id NodeID)
}

// MediaPlayer is the boundary to the platform media player backing a
// video overlay. Implementations own the codec/decoder internals.
type MediaPlayer interface {
	// Ready reports whether the player has buffered enough to start.
	Ready() bool
	// Playing reports the observed playback state.
	Playing() bool

	Play()
	Pause()
	SetMuted(muted bool)
	SetVolume(volume float64)

	// AttachOutput (re)connects the decoded-frame output to the overlay
	// texture. DetachOutput disconnects it so the hardware decoder is
	// released promptly while paused.
	AttachOutput()
	DetachOutput()

	// Close releases the player synchronously.
	Close() error
}

// PlayerFactory creates a MediaPlayer for a video byte source (local path
// or remote URL).
type PlayerFactory func(source string) (MediaPlayer, error)
