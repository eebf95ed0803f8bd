package track

import "github.com/golang/geo/r3"

// TrackingState represents the lifecycle state of a tracked anchor as
// reported by the tracking subsystem.
type TrackingState string

const (
	StateTracking TrackingState = "tracking" // Pose actively updated this frame
	StatePaused   TrackingState = "paused"   // Temporarily not visible, may resume
	StateStopped  TrackingState = "stopped"  // Permanently gone (terminal)
)

// AnchorID is the opaque, stable identity of a single physical detection
// instance. It is unique per detection, not per marker name: the same
// marker re-detected later arrives under a fresh AnchorID.
type AnchorID string

// MarkerKind classifies the replacement visual a marker carries.
type MarkerKind string

const (
	KindImage MarkerKind = "image"
	KindVideo MarkerKind = "video"
)

// Pose is a 4x4 rigid transform in row-major order, mapping marker-local
// coordinates to world coordinates.
type Pose [16]float64

// IdentityPose returns the identity transform.
func IdentityPose() Pose {
	return Pose{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// TranslationPose returns a pure translation transform.
func TranslationPose(x, y, z float64) Pose {
	p := IdentityPose()
	p[3] = x
	p[7] = y
	p[11] = z
	return p
}

// Apply transforms a point from marker-local to world coordinates.
// The bottom row is assumed to be [0 0 0 1] (rigid transform).
func (p Pose) Apply(v r3.Vector) r3.Vector {
	return r3.Vector{
		X: p[0]*v.X + p[1]*v.Y + p[2]*v.Z + p[3],
		Y: p[4]*v.X + p[5]*v.Y + p[6]*v.Z + p[7],
		Z: p[8]*v.X + p[9]*v.Y + p[10]*v.Z + p[11],
	}
}

// Translation returns the translation component of the pose.
func (p Pose) Translation() r3.Vector {
	return r3.Vector{X: p[3], Y: p[7], Z: p[11]}
}

// Extent is the detected physical size of a marker in metres. Markers lie
// flat in their local X-Z plane, so extent has no vertical component.
type Extent struct {
	Width  float64
	Height float64
}

// Corners returns the four world-space corners of a marker plane with the
// given pose and extent, in a fixed winding order.
func Corners(pose Pose, extent Extent) [4]r3.Vector {
	hw := extent.Width / 2
	hh := extent.Height / 2
	local := [4]r3.Vector{
		{X: -hw, Y: 0, Z: -hh},
		{X: hw, Y: 0, Z: -hh},
		{X: hw, Y: 0, Z: hh},
		{X: -hw, Y: 0, Z: hh},
	}
	var out [4]r3.Vector
	for i, c := range local {
		out[i] = pose.Apply(c)
	}
	return out
}

// MarkerDescriptor describes one reference image the engine is configured
// to recognise. Immutable once created; a loadVideos command replaces the
// affected descriptors wholesale rather than mutating them.
type MarkerDescriptor struct {
	Name          string
	PhysicalWidth float64
	Kind          MarkerKind
	// ContentSource is a local path or remote URL for the replacement
	// visual. Empty for tint-only markers.
	ContentSource string
}

// AnchorRecord is the engine's view of one tracked anchor. Created on
// first sighting, mutated every frame while tracked, removed at Stopped.
type AnchorRecord struct {
	ID     AnchorID
	Marker string
	Pose   Pose
	Extent Extent
	State  TrackingState

	FirstSeenUnixNanos int64
	LastSeenUnixNanos  int64
}

// AnchorDelta is one per-frame state change delivered by the tracking
// subsystem. Deltas arrive in the subsystem's delivery order; callers must
// not depend on any additional ordering.
type AnchorDelta struct {
	ID     AnchorID
	Marker string
	Pose   Pose
	Extent Extent
	State  TrackingState
}

// CameraFrame carries the camera geometry needed to project tracked
// anchors to screen space for hit-testing.
type CameraFrame struct {
	View         Pose
	Projection   Pose
	ScreenWidth  float64
	ScreenHeight float64
}

// ReferenceImage is one loadable entry of the reference catalog handed to
// the tracking subsystem: decoded pixels plus the marker's physical width.
type ReferenceImage struct {
	Name   string
	WidthM float64
	PixelW int
	PixelH int
	// Pixels holds the decoded RGBA bytes, row-major, 4 bytes per pixel.
	Pixels []byte
}
