package events

import "time"

// Type identifies an outbound event.
type Type string

const (
	RecognitionStarted Type = "recognitionStarted"
	RecognitionPaused  Type = "recognitionPaused"
	RecognitionResumed Type = "recognitionResumed"
	ImageDetected      Type = "imageDetected"
	ImageTapped        Type = "detectedImageTapped"
	EngineError        Type = "error"
)

// Event is one outbound notification to the host application.
type Event struct {
	Type    Type
	Marker  string // set for ImageDetected and ImageTapped
	Code    string // set for EngineError
	Message string
	Time    time.Time
}

// Emitter is the narrow interface components use to report events. The
// concrete Bus delivers them to the host on the UI/command goroutine.
type Emitter interface {
	Emit(Event)
}

// EmitterFunc adapts a function to the Emitter interface.
type EmitterFunc func(Event)

// Emit implements Emitter.
func (f EmitterFunc) Emit(e Event) { f(e) }
