package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Command names accepted from the host application.
const (
	CmdToggleFlashlight = "toggleFlashlight"
	CmdLoadVideos       = "loadVideos"
)

// Command is one inbound host command with a JSON payload.
type Command struct {
	Name    string          `json:"name"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// FlashlightPayload is the payload of a toggleFlashlight command.
type FlashlightPayload struct {
	ShouldTurnOn bool `json:"shouldTurnOn"`
}

// VideoMapping is one entry of a loadVideos command payload.
type VideoMapping struct {
	ImageName string `json:"imageName"`
	URL       string `json:"url"`
}

// HandlerFunc processes one command.
type HandlerFunc func(Command) error

// Dispatcher routes inbound commands to registered handlers. Dispatch is
// called on the UI/command goroutine; handlers hand work across domains
// themselves when needed.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
	logger   zerolog.Logger

	processed metric.Int64Counter
	failed    metric.Int64Counter
}

// NewDispatcher creates a Dispatcher.
// Uses the global OTel meter for metrics (no-op if not configured).
func NewDispatcher(logger zerolog.Logger) (*Dispatcher, error) {
	d := &Dispatcher{
		handlers: make(map[string]HandlerFunc),
		logger:   logger,
	}

	m := meter()
	var err error
	d.processed, err = m.Int64Counter(
		"commands.processed",
		metric.WithDescription("Total inbound commands processed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating processed counter: %w", err)
	}
	d.failed, err = m.Int64Counter(
		"commands.failed",
		metric.WithDescription("Total inbound commands that returned an error"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating failed counter: %w", err)
	}
	return d, nil
}

// Register adds a handler for the given command name, replacing any
// previous handler.
func (d *Dispatcher) Register(name string, h HandlerFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[name] = h
}

// HasHandler reports whether a handler is registered for the command.
func (d *Dispatcher) HasHandler(name string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.handlers[name]
	return ok
}

// Dispatch routes a command to its registered handler.
func (d *Dispatcher) Dispatch(cmd Command) error {
	d.mu.RLock()
	h, ok := d.handlers[cmd.Name]
	d.mu.RUnlock()
	if !ok {
		return fmt.Errorf("unknown command: %s", cmd.Name)
	}

	attr := metric.WithAttributes(attribute.String("command", cmd.Name))
	start := time.Now()
	err := h(cmd)
	d.processed.Add(context.Background(), 1, attr)
	if err != nil {
		d.failed.Add(context.Background(), 1, attr)
		d.logger.Error().Err(err).Str("command", cmd.Name).Dur("duration", time.Since(start)).Msg("command failed")
		return err
	}
	d.logger.Debug().Str("command", cmd.Name).Dur("duration", time.Since(start)).Msg("command complete")
	return nil
}
