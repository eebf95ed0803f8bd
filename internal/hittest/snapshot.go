// Package hittest maintains the thread-safe snapshot of tracked-anchor
// screen geometry used to resolve taps. The render tick publishes a fresh
// snapshot after each draw; the input path reads it without ever touching
// render-thread state.
//
// Locking follows the copy-out pattern: the lock guards only the
// publish/copy, never the projection math.
package hittest

import (
	"math"
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/markerlens/markerlens/internal/track"
)

// Entry is the screen-geometry input for one visible overlay.
type Entry struct {
	Marker string
	Pose   track.Pose
	Extent track.Extent
}

// Snapshot is the render-thread-written, input-thread-read geometry
// snapshot. The zero value is empty and resolves no taps.
type Snapshot struct {
	mu      sync.Mutex
	entries []Entry
	camera  track.CameraFrame
	valid   bool
}

// Publish atomically replaces the snapshot with the entries and camera
// geometry used for the immediately preceding draw.
func (s *Snapshot) Publish(entries []Entry, camera track.CameraFrame) {
	copied := make([]Entry, len(entries))
	copy(copied, entries)
	s.mu.Lock()
	s.entries = copied
	s.camera = camera
	s.valid = true
	s.mu.Unlock()
}

// Clear empties the snapshot (session reset, cleanup).
func (s *Snapshot) Clear() {
	s.mu.Lock()
	s.entries = nil
	s.valid = false
	s.mu.Unlock()
}

// ResolveTap maps a screen coordinate to the marker whose projected,
// margin-expanded bounding box contains it. Entries are tested in their
// published order and the first hit wins. ok is false when nothing
// matches or no snapshot has been published.
func (s *Snapshot) ResolveTap(x, y, marginPx, clipWEpsilon float64) (marker string, ok bool) {
	// Copy out under the lock; all geometry math happens outside it.
	s.mu.Lock()
	if !s.valid {
		s.mu.Unlock()
		return "", false
	}
	entries := s.entries
	camera := s.camera
	s.mu.Unlock()

	vp := viewProjection(camera)
	for _, e := range entries {
		box, valid := projectBounds(vp, camera, e, clipWEpsilon)
		if !valid {
			// Fewer than four usable corners: unreliable, skip.
			continue
		}
		if x >= box.minX-marginPx && x <= box.maxX+marginPx &&
			y >= box.minY-marginPx && y <= box.maxY+marginPx {
			return e.Marker, true
		}
	}
	return "", false
}

type screenBox struct {
	minX, minY, maxX, maxY float64
}

// viewProjection composes projection * view as a 4x4 dense matrix.
func viewProjection(camera track.CameraFrame) *mat.Dense {
	view := mat.NewDense(4, 4, poseToSlice(camera.View))
	proj := mat.NewDense(4, 4, poseToSlice(camera.Projection))
	var vp mat.Dense
	vp.Mul(proj, view)
	return &vp
}

func poseToSlice(p track.Pose) []float64 {
	out := make([]float64, 16)
	copy(out, p[:])
	return out
}

// projectBounds projects the entry's four corners to screen space and
// returns their axis-aligned bounding box. valid is false when any
// corner lands behind the camera (clip w <= epsilon).
func projectBounds(vp *mat.Dense, camera track.CameraFrame, e Entry, clipWEpsilon float64) (screenBox, bool) {
	corners := track.Corners(e.Pose, e.Extent)

	box := screenBox{
		minX: math.Inf(1), minY: math.Inf(1),
		maxX: math.Inf(-1), maxY: math.Inf(-1),
	}
	validCorners := 0
	var clip mat.VecDense
	for _, c := range corners {
		world := mat.NewVecDense(4, []float64{c.X, c.Y, c.Z, 1})
		clip.MulVec(vp, world)

		w := clip.AtVec(3)
		if w <= clipWEpsilon {
			continue
		}
		ndcX := clip.AtVec(0) / w
		ndcY := clip.AtVec(1) / w

		sx := (ndcX + 1) / 2 * camera.ScreenWidth
		sy := (1 - ndcY) / 2 * camera.ScreenHeight

		box.minX = math.Min(box.minX, sx)
		box.minY = math.Min(box.minY, sy)
		box.maxX = math.Max(box.maxX, sx)
		box.maxY = math.Max(box.maxY, sy)
		validCorners++
	}
	return box, validCorners == 4
}
