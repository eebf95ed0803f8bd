// Package track owns the domain model shared by the recognition engine:
// marker descriptors, anchor records, poses, per-frame anchor deltas, and
// the capability interface the underlying AR tracking subsystem must
// implement.
//
// Responsibilities: type definitions and pure pose/extent geometry.
// No rendering, playback, or persistence code is allowed in this package.
package track
