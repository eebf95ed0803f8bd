package track

import (
	"sync"
)

// SimSubsystem is a deterministic, script-driven Subsystem implementation
// with configurable behaviour for testing and the demo binary. Each call
// to FrameDeltas plays back the next scripted frame.
type SimSubsystem struct {
	mu sync.Mutex

	// Script holds the frames to play back, one slice of deltas per tick.
	Script [][]AnchorDelta

	// Camera is returned by CameraFrame once Run has succeeded.
	Camera CameraFrame

	// RunError is returned by the next Run call if set.
	RunError error

	handlers Handlers
	running  bool
	cursor   int

	// Counters for assertions.
	RunCalls   int
	PauseCalls int
	LastRun    RunConfig
}

// NewSimSubsystem returns a simulator with an identity camera over a
// 800x600 viewport.
func NewSimSubsystem(script [][]AnchorDelta) *SimSubsystem {
	return &SimSubsystem{
		Script: script,
		Camera: CameraFrame{
			View:         IdentityPose(),
			Projection:   IdentityPose(),
			ScreenWidth:  800,
			ScreenHeight: 600,
		},
	}
}

// Run records the config and rewinds the script (reset semantics).
func (s *SimSubsystem) Run(cfg RunConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.RunCalls++
	s.LastRun = cfg
	if s.RunError != nil {
		return s.RunError
	}
	s.running = true
	s.cursor = 0
	return nil
}

// Pause stops playback. Safe to call before Run.
func (s *SimSubsystem) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.PauseCalls++
	s.running = false
}

// SetHandlers installs or detaches the asynchronous callbacks.
func (s *SimSubsystem) SetHandlers(h Handlers) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = h
}

// FrameDeltas returns the next scripted frame, or nil when the script is
// exhausted or the subsystem is not running.
func (s *SimSubsystem) FrameDeltas() []AnchorDelta {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running || s.cursor >= len(s.Script) {
		return nil
	}
	frame := s.Script[s.cursor]
	s.cursor++
	return frame
}

// CameraFrame reports the configured camera once running.
func (s *SimSubsystem) CameraFrame() (CameraFrame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return CameraFrame{}, false
	}
	return s.Camera, true
}

// RunCount reports how many times Run was called.
func (s *SimSubsystem) RunCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.RunCalls
}

// PauseCount reports how many times Pause was called.
func (s *SimSubsystem) PauseCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.PauseCalls
}

// LastRunConfig returns the config passed to the most recent Run.
func (s *SimSubsystem) LastRunConfig() RunConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.LastRun
}

// FireFatalError invokes the installed fatal-error handler, if any.
func (s *SimSubsystem) FireFatalError(title, message string) {
	s.mu.Lock()
	h := s.handlers.OnFatalError
	s.mu.Unlock()
	if h != nil {
		h(title, message)
	}
}

// FireInterruptionEnded invokes the installed interruption handler, if any.
func (s *SimSubsystem) FireInterruptionEnded() {
	s.mu.Lock()
	h := s.handlers.OnInterruptionEnded
	s.mu.Unlock()
	if h != nil {
		h()
	}
}
