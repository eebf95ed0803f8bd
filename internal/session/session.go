// Package session owns start, pause and restart of the tracking
// subsystem. Catalog construction runs on a background goroutine so the
// caller is never blocked; concurrent start requests coalesce through an
// in-flight guard instead of queueing.
package session

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/markerlens/markerlens/internal/catalog"
	"github.com/markerlens/markerlens/internal/events"
	"github.com/markerlens/markerlens/internal/track"
)

// Session serializes lifecycle control of one tracking subsystem
// instance. All methods are safe for concurrent use.
type Session struct {
	subsystem track.Subsystem
	builder   *catalog.Builder
	emitter   events.Emitter
	logger    zerolog.Logger

	markers    []string
	maxTracked int
	cooldown   time.Duration

	inFlight    atomic.Bool
	startedOnce atomic.Bool
	ready       atomic.Bool
	closed      atomic.Bool
	generation  atomic.Uint64

	// runMu serializes the subsystem start section of run against Close,
	// so a close can wait out a start already past the closed check.
	runMu sync.Mutex

	mu          sync.Mutex
	lastRestart time.Time
	now         func() time.Time
}

// NewSession creates a Session for the given marker identifier list. The
// list is fixed for the session's lifetime.
func NewSession(subsystem track.Subsystem, builder *catalog.Builder, markers []string, maxTracked int, cooldown time.Duration, emitter events.Emitter, logger zerolog.Logger) *Session {
	return &Session{
		subsystem:  subsystem,
		builder:    builder,
		emitter:    emitter,
		logger:     logger,
		markers:    append([]string(nil), markers...),
		maxTracked: maxTracked,
		cooldown:   cooldown,
		now:        time.Now,
	}
}

// AttachHandlers installs the subsystem's asynchronous callbacks: fatal
// errors become error events, and an interruption end triggers a
// rate-limited restart.
func (s *Session) AttachHandlers() {
	s.subsystem.SetHandlers(track.Handlers{
		OnFatalError: func(title, message string) {
			s.ready.Store(false)
			s.emitter.Emit(events.Event{Type: events.EngineError, Code: title, Message: message, Time: s.now()})
		},
		OnInterruptionEnded: func() {
			s.logger.Info().Msg("tracking interruption ended, restarting")
			s.Restart()
		},
	})
}

// DetachHandlers synchronously detaches all subsystem callbacks. Cleanup
// calls this before any native handle is released.
func (s *Session) DetachHandlers() {
	s.subsystem.SetHandlers(track.Handlers{})
}

// Start begins (or resets) tracking. The catalog build and subsystem run
// happen on a background goroutine; a Start while one is already in
// flight is dropped, not deferred.
func (s *Session) Start() {
	if s.closed.Load() {
		return
	}
	if !s.inFlight.CompareAndSwap(false, true) {
		s.logger.Debug().Msg("start already in flight, coalesced")
		return
	}
	go s.run()
}

func (s *Session) run() {
	defer s.inFlight.Store(false)

	cat, err := s.builder.Build(s.markers)
	if err != nil {
		s.logger.Error().Err(err).Msg("catalog build failed")
		s.emitter.Emit(events.Event{Type: events.EngineError, Code: "catalogBuildFailed", Message: err.Error(), Time: s.now()})
		return
	}

	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.closed.Load() {
		s.logger.Debug().Msg("session closed, start abandoned")
		return
	}

	if err := s.subsystem.Run(track.RunConfig{References: cat.Entries, MaxTrackedImages: s.maxTracked}); err != nil {
		s.logger.Error().Err(err).Msg("tracking subsystem run failed")
		s.emitter.Emit(events.Event{Type: events.EngineError, Code: "trackingStartFailed", Message: err.Error(), Time: s.now()})
		return
	}

	s.ready.Store(true)
	s.generation.Add(1)
	if s.startedOnce.CompareAndSwap(false, true) {
		s.emitter.Emit(events.Event{Type: events.RecognitionStarted, Time: s.now()})
	} else {
		s.emitter.Emit(events.Event{Type: events.RecognitionResumed, Time: s.now()})
	}
	s.logger.Info().Int("references", len(cat.Entries)).Msg("tracking running")
}

// Pause stops the subsystem. Safe to call even if Start never ran or
// already failed.
func (s *Session) Pause() {
	if s.closed.Load() {
		return
	}
	s.ready.Store(false)
	s.subsystem.Pause()
	s.emitter.Emit(events.Event{Type: events.RecognitionPaused, Time: s.now()})
}

// Restart requests a tracking reset under the rate limit: once one is
// accepted, further Restart calls are ignored until the cooldown window
// elapses. Flaky interruption storms collapse to one reset.
func (s *Session) Restart() {
	if s.closed.Load() {
		return
	}
	s.mu.Lock()
	now := s.now()
	if !s.lastRestart.IsZero() && now.Sub(s.lastRestart) < s.cooldown {
		s.mu.Unlock()
		s.logger.Debug().Msg("restart suppressed by cooldown")
		return
	}
	s.lastRestart = now
	s.mu.Unlock()
	s.Start()
}

// Close permanently shuts the session down. A start still in its
// catalog build abandons before reaching the subsystem; a start already
// inside the subsystem Run is waited out, so once Close returns the
// caller can pause the subsystem knowing nothing will run it again.
// Start, Restart and Pause become no-ops afterwards.
func (s *Session) Close() {
	s.closed.Store(true)
	s.runMu.Lock()
	defer s.runMu.Unlock()
	s.ready.Store(false)
}

// Ready reports whether tracking is currently running. The render tick
// checks this flag instead of ever waiting on the background worker.
func (s *Session) Ready() bool {
	return s.ready.Load()
}

// Generation increments on every successful (re)start. The render tick
// compares it against the last value it saw to detect a reset and tear
// down stale per-anchor state.
func (s *Session) Generation() uint64 {
	return s.generation.Load()
}
