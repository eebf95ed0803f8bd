// Package events implements both sides of the host-application boundary:
// the outbound fire-and-forget event channel (recognition lifecycle,
// detections, taps, recoverable errors) and the inbound command
// dispatcher (flashlight, video-URL mapping).
//
// Emission never blocks the render tick: events are queued onto a
// buffered channel consumed by the UI/command goroutine, and overflow is
// dropped and counted rather than waited on.
package events
