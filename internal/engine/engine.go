// Package engine wires the recognition components together and runs the
// render tick loop. One Engine is one recognition instance: it owns the
// lifecycle manager, the playback arbiter, the hit-test snapshot and the
// outbound event pump, and tears them all down in Cleanup.
package engine

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/markerlens/markerlens/internal/anchors"
	"github.com/markerlens/markerlens/internal/assets"
	"github.com/markerlens/markerlens/internal/catalog"
	"github.com/markerlens/markerlens/internal/config"
	"github.com/markerlens/markerlens/internal/events"
	"github.com/markerlens/markerlens/internal/hittest"
	"github.com/markerlens/markerlens/internal/monitoring"
	"github.com/markerlens/markerlens/internal/overlay"
	"github.com/markerlens/markerlens/internal/playback"
	"github.com/markerlens/markerlens/internal/session"
	"github.com/markerlens/markerlens/internal/storage/sqlite"
	"github.com/markerlens/markerlens/internal/track"
)

// Torch is the optional flashlight hardware boundary. Toggling is
// best-effort; an absent torch is not an error.
type Torch interface {
	SetTorch(on bool) error
}

// Options configures a new Engine. Subsystem, Renderer, Players and
// Markers are required; Tuning defaults when nil; Store, Torch and
// EventSink are optional.
type Options struct {
	Markers   []string
	Subsystem track.Subsystem
	Renderer  overlay.Renderer
	Players   overlay.PlayerFactory
	Tuning    *config.Tuning
	Store     *sqlite.Store
	Torch     Torch
	EventSink func(events.Event)
	Logger    zerolog.Logger
}

// Engine is one recognition instance. The marker set is fixed at
// construction; changing it means building a new Engine.
type Engine struct {
	id     string
	logger zerolog.Logger
	tuning *config.Tuning

	subsystem track.Subsystem
	factory   *overlay.Factory
	manager   *anchors.Manager
	arbiter   *playback.Arbiter
	snapshot  *hittest.Snapshot
	session   *session.Session

	bus        *events.Bus
	dispatcher *events.Dispatcher
	store      *sqlite.Store
	torch      Torch
	sink       func(events.Event)

	// lastGeneration is read and written only on the tick goroutine.
	lastGeneration uint64

	startOnce   sync.Once
	cleanupOnce sync.Once
	started     atomic.Bool
	cleaned     atomic.Bool
	stop        chan struct{}
	loopDone    chan struct{}
	pumpDone    chan struct{}
}

// New builds an Engine from Options. No goroutine starts until Start.
func New(opts Options) (*Engine, error) {
	if opts.Subsystem == nil {
		return nil, fmt.Errorf("engine: tracking subsystem is required")
	}
	if opts.Renderer == nil {
		return nil, fmt.Errorf("engine: renderer is required")
	}
	if opts.Players == nil {
		return nil, fmt.Errorf("engine: player factory is required")
	}
	if len(opts.Markers) == 0 {
		return nil, fmt.Errorf("engine: at least one marker identifier is required")
	}
	tuning := opts.Tuning
	if tuning == nil {
		tuning = config.EmptyTuning()
	}

	id := uuid.NewString()
	logger := opts.Logger.With().Str("engine_id", id).Logger()

	bus, err := events.NewBus(tuning.GetEventBuffer(), monitoring.Component(logger, "events"))
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	dispatcher, err := events.NewDispatcher(monitoring.Component(logger, "dispatch"))
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	resolver := assets.NewResolver(tuning.GetAssetDirs())

	var cache catalog.Cache
	if opts.Store != nil && tuning.GetCatalogCacheEnabled() {
		cache = opts.Store
	}
	builder := catalog.NewBuilder(resolver, cache, tuning.GetPhysicalWidthM, monitoring.Component(logger, "catalog"))

	factory := overlay.NewFactory(opts.Renderer, opts.Players, resolver, tuning.GetLegacyVideoMarkers(), monitoring.Component(logger, "overlay"))
	manager := anchors.NewManager(factory, bus, monitoring.Component(logger, "anchors"))
	arbiter := playback.NewArbiter(monitoring.Component(logger, "playback"))
	snap := &hittest.Snapshot{}
	sess := session.NewSession(opts.Subsystem, builder, opts.Markers, tuning.GetMaxTrackedImages(), tuning.GetRestartCooldown(), bus, monitoring.Component(logger, "session"))

	e := &Engine{
		id:         id,
		logger:     logger,
		tuning:     tuning,
		subsystem:  opts.Subsystem,
		factory:    factory,
		manager:    manager,
		arbiter:    arbiter,
		snapshot:   snap,
		session:    sess,
		bus:        bus,
		dispatcher: dispatcher,
		store:      opts.Store,
		torch:      opts.Torch,
		sink:       opts.EventSink,
		stop:       make(chan struct{}),
		loopDone:   make(chan struct{}),
		pumpDone:   make(chan struct{}),
	}
	e.registerCommands()
	return e, nil
}

// ID returns the engine instance id.
func (e *Engine) ID() string { return e.id }

func (e *Engine) registerCommands() {
	e.dispatcher.Register(events.CmdToggleFlashlight, func(cmd events.Command) error {
		var p events.FlashlightPayload
		if err := json.Unmarshal(cmd.Payload, &p); err != nil {
			return fmt.Errorf("toggleFlashlight payload: %w", err)
		}
		if e.torch == nil {
			e.logger.Debug().Msg("no torch-capable camera, flashlight toggle ignored")
			return nil
		}
		if err := e.torch.SetTorch(p.ShouldTurnOn); err != nil {
			e.logger.Warn().Err(err).Msg("torch toggle failed")
		}
		return nil
	})

	e.dispatcher.Register(events.CmdLoadVideos, func(cmd events.Command) error {
		var mappings []events.VideoMapping
		if err := json.Unmarshal(cmd.Payload, &mappings); err != nil {
			return fmt.Errorf("loadVideos payload: %w", err)
		}
		table := make(map[string]string, len(mappings))
		for _, m := range mappings {
			table[m.ImageName] = m.URL
		}
		e.factory.SetVideoMap(table)
		e.logger.Info().Int("mappings", len(table)).Msg("video mapping table replaced")
		return nil
	})
}

// Start attaches subsystem callbacks, begins tracking, and launches the
// render tick loop and the event pump. Calling Start again, or after
// Cleanup, is a no-op.
func (e *Engine) Start() {
	e.startOnce.Do(func() {
		if e.cleaned.Load() {
			return
		}
		e.started.Store(true)
		e.session.AttachHandlers()
		e.session.Start()
		go e.runLoop()
		go e.runPump()
	})
}

func (e *Engine) runLoop() {
	defer close(e.loopDone)
	ticker := time.NewTicker(e.tuning.GetTickInterval())
	defer ticker.Stop()
	for {
		select {
		case <-e.stop:
			return
		case <-ticker.C:
			e.Tick()
		}
	}
}

// Tick runs one render tick: consume the frame's anchor deltas, drive
// the lifecycle manager, arbitrate video playback, and publish the
// hit-test snapshot matching this tick's draw. Called from the tick
// goroutine only.
func (e *Engine) Tick() {
	if gen := e.session.Generation(); gen != e.lastGeneration {
		// Tracking was (re)started with reset semantics. Stale anchors,
		// playback state and the dedup set all go.
		e.manager.Reset()
		e.arbiter.Reset()
		e.snapshot.Clear()
		e.lastGeneration = gen
	}
	if !e.session.Ready() {
		// Paused or not yet running: the last drawn frame is stale, so
		// taps must stop resolving against it.
		e.snapshot.Clear()
		return
	}

	e.manager.ApplyDeltas(e.subsystem.FrameDeltas())
	e.arbiter.Arbitrate(e.manager.VideoCandidates())

	if frame, ok := e.subsystem.CameraFrame(); ok {
		e.snapshot.Publish(e.manager.SnapshotEntries(), frame)
	}
}

// runPump forwards outbound events to the host sink and appends them to
// the session event log. It is the UI/command-side consumer; storage
// writes never touch the tick goroutine.
func (e *Engine) runPump() {
	defer close(e.pumpDone)
	for ev := range e.bus.Events() {
		if e.store != nil {
			rec := sqlite.SessionEvent{
				SessionID:   e.id,
				EventType:   string(ev.Type),
				Marker:      ev.Marker,
				Code:        ev.Code,
				Message:     ev.Message,
				TSUnixNanos: ev.Time.UnixNano(),
			}
			if err := e.store.InsertEvent(rec); err != nil {
				e.logger.Warn().Err(err).Msg("event log append failed")
			}
		}
		if e.sink != nil {
			e.sink(ev)
		}
	}
}

// Tap resolves a screen tap against the latest published snapshot and
// emits a tapped event on a hit. Called from the UI/command goroutine.
// Taps while tracking is paused or stopped never resolve.
func (e *Engine) Tap(x, y float64) {
	if !e.session.Ready() {
		return
	}
	marker, ok := e.snapshot.ResolveTap(x, y, e.tuning.GetTapMarginPx(), e.tuning.GetClipWEpsilon())
	if !ok {
		return
	}
	e.bus.Emit(events.Event{Type: events.ImageTapped, Marker: marker, Time: time.Now()})
}

// HandleCommand routes one inbound host command.
func (e *Engine) HandleCommand(cmd events.Command) error {
	return e.dispatcher.Dispatch(cmd)
}

// Pause suspends tracking, for example on host backgrounding.
func (e *Engine) Pause() {
	e.session.Pause()
}

// Restart requests a rate-limited tracking reset.
func (e *Engine) Restart() {
	e.session.Restart()
}

// Ready reports whether tracking is running.
func (e *Engine) Ready() bool {
	return e.session.Ready()
}

// Cleanup tears the engine down. Idempotent, and safe to call from a
// deinitialization path even if Start never ran. Callbacks are detached
// first so no in-flight async callback can touch freed state, then
// overlays are destroyed, then the event channel closes.
func (e *Engine) Cleanup() {
	e.cleanupOnce.Do(func() {
		e.cleaned.Store(true)
		e.session.DetachHandlers()
		// Closing the session first stops any start still in flight from
		// reaching the subsystem after the pause below.
		e.session.Close()

		if e.started.Load() {
			close(e.stop)
			<-e.loopDone
		}

		e.subsystem.Pause()
		e.manager.DestroyAll()
		e.arbiter.Reset()
		e.snapshot.Clear()

		e.bus.Close()
		if e.started.Load() {
			<-e.pumpDone
		}
		e.logger.Info().Msg("engine cleaned up")
	})
}
