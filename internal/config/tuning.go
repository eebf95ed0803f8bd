// Package config holds the engine tuning configuration. The schema is a
// flat JSON document with optional fields; Get* accessors supply defaults
// for anything the file omits, so partial configs are safe.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Tuning defaults. Exposed for tests and documentation.
const (
	DefaultMaxTrackedImages    = 4
	DefaultRestartCooldown     = 5 * time.Second
	DefaultTickInterval        = 16 * time.Millisecond
	DefaultTapMarginPx         = 22.0
	DefaultClipWEpsilon        = 1e-4
	DefaultPhysicalWidthM      = 0.1
	DefaultEventBuffer         = 64
	DefaultCatalogCacheEnabled = true

	maxTrackedImagesCeiling = 4
	maxTuningFileSize       = 1 * 1024 * 1024
)

// Tuning is the root tuning configuration for a recognition engine
// instance. Pointer fields distinguish "absent" from zero values.
type Tuning struct {
	// Session params
	MaxTrackedImages *int    `json:"max_tracked_images,omitempty"`
	RestartCooldown  *string `json:"restart_cooldown,omitempty"` // duration string like "5s"

	// Render tick params
	TickInterval *string `json:"tick_interval,omitempty"` // duration string like "16ms"

	// Hit-test params
	TapMarginPx  *float64 `json:"tap_margin_px,omitempty"`
	ClipWEpsilon *float64 `json:"clip_w_epsilon,omitempty"`

	// Catalog params
	DefaultPhysicalWidthM *float64           `json:"default_physical_width_m,omitempty"`
	MarkerWidthsM         map[string]float64 `json:"marker_widths_m,omitempty"`
	CatalogCacheEnabled   *bool              `json:"catalog_cache_enabled,omitempty"`

	// Overlay params
	LegacyVideoMarkers []string `json:"legacy_video_markers,omitempty"`

	// Asset resolution params
	AssetDirs []string `json:"asset_dirs,omitempty"`

	// Event channel params
	EventBuffer *int `json:"event_buffer,omitempty"`
}

// EmptyTuning returns a Tuning with all fields unset; every accessor then
// returns its default.
func EmptyTuning() *Tuning {
	return &Tuning{}
}

// LoadTuning loads a Tuning from a JSON file. The file must have a .json
// extension and stay under the max file size. Fields omitted from the file
// fall back to defaults via the Get* accessors.
func LoadTuning(path string) (*Tuning, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("tuning file must have .json extension, got %q", ext)
	}

	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat tuning file: %w", err)
	}
	if info.Size() > maxTuningFileSize {
		return nil, fmt.Errorf("tuning file too large: %d bytes (max %d)", info.Size(), maxTuningFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read tuning file: %w", err)
	}

	cfg := EmptyTuning()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse tuning JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid tuning: %w", err)
	}
	return cfg, nil
}

// Validate checks the loaded values for out-of-range settings.
func (t *Tuning) Validate() error {
	if t.MaxTrackedImages != nil {
		if *t.MaxTrackedImages < 1 || *t.MaxTrackedImages > maxTrackedImagesCeiling {
			return fmt.Errorf("max_tracked_images must be in [1, %d], got %d", maxTrackedImagesCeiling, *t.MaxTrackedImages)
		}
	}
	if t.RestartCooldown != nil {
		if _, err := time.ParseDuration(*t.RestartCooldown); err != nil {
			return fmt.Errorf("restart_cooldown: %w", err)
		}
	}
	if t.TickInterval != nil {
		d, err := time.ParseDuration(*t.TickInterval)
		if err != nil {
			return fmt.Errorf("tick_interval: %w", err)
		}
		if d <= 0 {
			return fmt.Errorf("tick_interval must be positive, got %v", d)
		}
	}
	if t.TapMarginPx != nil && *t.TapMarginPx < 0 {
		return fmt.Errorf("tap_margin_px must be non-negative, got %f", *t.TapMarginPx)
	}
	if t.ClipWEpsilon != nil && *t.ClipWEpsilon <= 0 {
		return fmt.Errorf("clip_w_epsilon must be positive, got %g", *t.ClipWEpsilon)
	}
	if t.DefaultPhysicalWidthM != nil && *t.DefaultPhysicalWidthM <= 0 {
		return fmt.Errorf("default_physical_width_m must be positive, got %f", *t.DefaultPhysicalWidthM)
	}
	for name, w := range t.MarkerWidthsM {
		if w <= 0 {
			return fmt.Errorf("marker_widths_m[%q] must be positive, got %f", name, w)
		}
	}
	if t.EventBuffer != nil && *t.EventBuffer < 1 {
		return fmt.Errorf("event_buffer must be at least 1, got %d", *t.EventBuffer)
	}
	return nil
}

// GetMaxTrackedImages returns the simultaneous tracked image ceiling.
func (t *Tuning) GetMaxTrackedImages() int {
	if t.MaxTrackedImages != nil {
		return *t.MaxTrackedImages
	}
	return DefaultMaxTrackedImages
}

// GetRestartCooldown returns the minimum interval between session restarts.
func (t *Tuning) GetRestartCooldown() time.Duration {
	if t.RestartCooldown != nil {
		if d, err := time.ParseDuration(*t.RestartCooldown); err == nil {
			return d
		}
	}
	return DefaultRestartCooldown
}

// GetTickInterval returns the render tick period.
func (t *Tuning) GetTickInterval() time.Duration {
	if t.TickInterval != nil {
		if d, err := time.ParseDuration(*t.TickInterval); err == nil {
			return d
		}
	}
	return DefaultTickInterval
}

// GetTapMarginPx returns the pixel margin added around hit-test boxes.
func (t *Tuning) GetTapMarginPx() float64 {
	if t.TapMarginPx != nil {
		return *t.TapMarginPx
	}
	return DefaultTapMarginPx
}

// GetClipWEpsilon returns the clip-space w threshold below which projected
// corners are considered behind the camera.
func (t *Tuning) GetClipWEpsilon() float64 {
	if t.ClipWEpsilon != nil {
		return *t.ClipWEpsilon
	}
	return DefaultClipWEpsilon
}

// GetPhysicalWidthM returns the physical width for a marker, preferring a
// per-marker override over the default width.
func (t *Tuning) GetPhysicalWidthM(name string) float64 {
	if w, ok := t.MarkerWidthsM[name]; ok {
		return w
	}
	if t.DefaultPhysicalWidthM != nil {
		return *t.DefaultPhysicalWidthM
	}
	return DefaultPhysicalWidthM
}

// GetCatalogCacheEnabled reports whether built catalogs are cached.
func (t *Tuning) GetCatalogCacheEnabled() bool {
	if t.CatalogCacheEnabled != nil {
		return *t.CatalogCacheEnabled
	}
	return DefaultCatalogCacheEnabled
}

// GetLegacyVideoMarkers returns the fixed set of bundled video marker
// names that classify as video even without a loadVideos mapping.
func (t *Tuning) GetLegacyVideoMarkers() []string {
	if t.LegacyVideoMarkers != nil {
		return t.LegacyVideoMarkers
	}
	return []string{"hr-6", "st-11"}
}

// GetAssetDirs returns the directories searched for bundled assets.
func (t *Tuning) GetAssetDirs() []string {
	if len(t.AssetDirs) > 0 {
		return t.AssetDirs
	}
	return []string{"assets"}
}

// GetEventBuffer returns the outbound event channel capacity.
func (t *Tuning) GetEventBuffer() int {
	if t.EventBuffer != nil {
		return *t.EventBuffer
	}
	return DefaultEventBuffer
}
