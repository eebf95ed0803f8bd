package track

// RunConfig configures a (re)start of the tracking subsystem. Run always
// carries reset semantics: existing anchors are discarded and detection
// starts from a clean slate.
type RunConfig struct {
	References []ReferenceImage
	// MaxTrackedImages caps how many markers the subsystem tracks
	// simultaneously. Platform ceilings are small (1-4).
	MaxTrackedImages int
}

// Handlers carries the asynchronous callbacks a subsystem adapter invokes
// from its own threads. A zero Handlers detaches all callbacks; cleanup
// paths rely on this to stop in-flight callbacks before native handles are
// released.
type Handlers struct {
	// OnFatalError reports an unrecoverable subsystem failure for this
	// session instance (title plus human-readable message).
	OnFatalError func(title, message string)
	// OnInterruptionEnded signals a transient interruption (for example
	// app backgrounding) has ended and tracking should be restarted.
	OnInterruptionEnded func()
}

// Subsystem is the capability interface over the platform AR tracking
// stack. Adapters for concrete platforms implement it; the engine itself
// is free of platform specifics.
//
// Run and Pause are called from the session goroutine; FrameDeltas and
// CameraFrame are called from the render tick. Implementations must be
// safe for that split.
type Subsystem interface {
	// Run configures and starts (or resets) tracking. It returns once the
	// subsystem is running; detection results then flow through
	// FrameDeltas.
	Run(cfg RunConfig) error

	// Pause stops tracking. Must be safe to call even if Run was never
	// called or already failed.
	Pause()

	// SetHandlers installs (or, with the zero value, detaches) the
	// asynchronous callbacks. Detaching is synchronous: after it returns
	// no further callbacks fire.
	SetHandlers(h Handlers)

	// FrameDeltas drains the anchor state changes accumulated since the
	// previous call, in the subsystem's delivery order.
	FrameDeltas() []AnchorDelta

	// CameraFrame returns the current camera geometry. ok is false until
	// the camera feed is ready.
	CameraFrame() (frame CameraFrame, ok bool)
}
