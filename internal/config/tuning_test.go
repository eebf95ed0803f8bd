package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTuning(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

// TestDefaults verifies an empty tuning answers every accessor with its
// default.
func TestDefaults(t *testing.T) {
	t.Parallel()
	cfg := EmptyTuning()

	assert.Equal(t, DefaultMaxTrackedImages, cfg.GetMaxTrackedImages())
	assert.Equal(t, DefaultRestartCooldown, cfg.GetRestartCooldown())
	assert.Equal(t, DefaultTickInterval, cfg.GetTickInterval())
	assert.Equal(t, DefaultTapMarginPx, cfg.GetTapMarginPx())
	assert.Equal(t, DefaultClipWEpsilon, cfg.GetClipWEpsilon())
	assert.Equal(t, DefaultPhysicalWidthM, cfg.GetPhysicalWidthM("anything"))
	assert.True(t, cfg.GetCatalogCacheEnabled())
	assert.Equal(t, []string{"hr-6", "st-11"}, cfg.GetLegacyVideoMarkers())
	assert.Equal(t, []string{"assets"}, cfg.GetAssetDirs())
	assert.Equal(t, DefaultEventBuffer, cfg.GetEventBuffer())
}

// TestLoadTuning verifies file loading and field overrides.
func TestLoadTuning(t *testing.T) {
	t.Parallel()

	t.Run("full document", func(t *testing.T) {
		t.Parallel()
		path := writeTuning(t, "tuning.json", `{
			"max_tracked_images": 2,
			"restart_cooldown": "10s",
			"tick_interval": "33ms",
			"tap_margin_px": 30,
			"default_physical_width_m": 0.2,
			"marker_widths_m": {"poster": 0.5},
			"catalog_cache_enabled": false,
			"legacy_video_markers": ["vid-1"],
			"asset_dirs": ["a", "b"],
			"event_buffer": 16
		}`)

		cfg, err := LoadTuning(path)
		require.NoError(t, err)
		assert.Equal(t, 2, cfg.GetMaxTrackedImages())
		assert.Equal(t, 10*time.Second, cfg.GetRestartCooldown())
		assert.Equal(t, 33*time.Millisecond, cfg.GetTickInterval())
		assert.Equal(t, 30.0, cfg.GetTapMarginPx())
		assert.Equal(t, 0.5, cfg.GetPhysicalWidthM("poster"))
		assert.Equal(t, 0.2, cfg.GetPhysicalWidthM("other"))
		assert.False(t, cfg.GetCatalogCacheEnabled())
		assert.Equal(t, []string{"vid-1"}, cfg.GetLegacyVideoMarkers())
		assert.Equal(t, []string{"a", "b"}, cfg.GetAssetDirs())
		assert.Equal(t, 16, cfg.GetEventBuffer())
	})

	t.Run("partial document keeps defaults", func(t *testing.T) {
		t.Parallel()
		path := writeTuning(t, "tuning.json", `{"tap_margin_px": 10}`)

		cfg, err := LoadTuning(path)
		require.NoError(t, err)
		assert.Equal(t, 10.0, cfg.GetTapMarginPx())
		assert.Equal(t, DefaultMaxTrackedImages, cfg.GetMaxTrackedImages())
	})

	t.Run("rejects non-json extension", func(t *testing.T) {
		t.Parallel()
		path := writeTuning(t, "tuning.yaml", `{}`)
		_, err := LoadTuning(path)
		assert.Error(t, err)
	})

	t.Run("rejects malformed json", func(t *testing.T) {
		t.Parallel()
		path := writeTuning(t, "tuning.json", `{broken`)
		_, err := LoadTuning(path)
		assert.Error(t, err)
	})

	t.Run("missing file errors", func(t *testing.T) {
		t.Parallel()
		_, err := LoadTuning(filepath.Join(t.TempDir(), "absent.json"))
		assert.Error(t, err)
	})
}

// TestValidate covers the range checks.
func TestValidate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		body string
	}{
		{"tracked images above ceiling", `{"max_tracked_images": 9}`},
		{"tracked images below one", `{"max_tracked_images": 0}`},
		{"bad cooldown", `{"restart_cooldown": "soon"}`},
		{"negative tick", `{"tick_interval": "-5ms"}`},
		{"negative margin", `{"tap_margin_px": -1}`},
		{"zero epsilon", `{"clip_w_epsilon": 0}`},
		{"zero default width", `{"default_physical_width_m": 0}`},
		{"negative marker width", `{"marker_widths_m": {"poster": -0.1}}`},
		{"zero event buffer", `{"event_buffer": 0}`},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			path := writeTuning(t, "tuning.json", tc.body)
			_, err := LoadTuning(path)
			assert.Error(t, err)
		})
	}

	t.Run("valid boundary values pass", func(t *testing.T) {
		t.Parallel()
		path := writeTuning(t, "tuning.json", `{"max_tracked_images": 1, "event_buffer": 1, "tap_margin_px": 0}`)
		cfg, err := LoadTuning(path)
		require.NoError(t, err)
		assert.Equal(t, 1, cfg.GetMaxTrackedImages())
	})
}
