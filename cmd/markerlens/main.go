// Command markerlens runs the recognition engine headless against the
// scripted tracking simulator. It generates a small set of demo reference
// images on first run, plays a detection scenario, prints the outbound
// events as JSON lines, and logs everything to the session event log for
// the report tool.
package main

import (
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/viper"

	"github.com/markerlens/markerlens/internal/config"
	"github.com/markerlens/markerlens/internal/engine"
	"github.com/markerlens/markerlens/internal/events"
	"github.com/markerlens/markerlens/internal/monitoring"
	"github.com/markerlens/markerlens/internal/overlay"
	"github.com/markerlens/markerlens/internal/storage/sqlite"
	"github.com/markerlens/markerlens/internal/track"
	"github.com/markerlens/markerlens/internal/version"
)

func loadAppConfig() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("dbPath", "markerlens.db")
	viper.SetDefault("tuningPath", "")
	viper.SetDefault("assetsDir", "assets")
	viper.SetDefault("markers", []string{"hr-6", "poster-1"})
	viper.SetDefault("runFor", "3s")

	viper.SetConfigName("markerlens")
	viper.SetConfigType("json")
	viper.AddConfigPath(".")
	if err := viper.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			fmt.Fprintf(os.Stderr, "config: %v\n", err)
			os.Exit(1)
		}
	}
}

func main() {
	loadAppConfig()

	logger := monitoring.NewRootLogger(nil, viper.GetString("logLevel"), "")
	logger.Info().Str("version", version.Version).Str("git_sha", version.GitSHA).Msg("markerlens starting")

	tuning := config.EmptyTuning()
	if path := viper.GetString("tuningPath"); path != "" {
		loaded, err := config.LoadTuning(path)
		if err != nil {
			logger.Fatal().Err(err).Str("path", path).Msg("tuning load failed")
		}
		tuning = loaded
	}

	markers := viper.GetStringSlice("markers")
	assetsDir := viper.GetString("assetsDir")
	if len(tuning.AssetDirs) == 0 {
		tuning.AssetDirs = []string{assetsDir}
	}
	if err := ensureDemoAssets(assetsDir, markers); err != nil {
		logger.Fatal().Err(err).Msg("demo asset generation failed")
	}

	store, err := sqlite.Open(viper.GetString("dbPath"))
	if err != nil {
		logger.Fatal().Err(err).Msg("open event store failed")
	}
	defer store.Close()

	enc := json.NewEncoder(os.Stdout)
	eng, err := engine.New(engine.Options{
		Markers:   markers,
		Subsystem: track.NewSimSubsystem(demoScript(markers)),
		Renderer:  overlay.NewFakeRenderer(),
		Players:   overlay.FakePlayerFactory(new([]*overlay.FakePlayer)),
		Tuning:    tuning,
		Store:     store,
		EventSink: func(ev events.Event) { enc.Encode(ev) },
		Logger:    logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("engine construction failed")
	}

	eng.Start()
	logger.Info().Str("engine_id", eng.ID()).Strs("markers", markers).Msg("engine running")

	runFor := viper.GetDuration("runFor")
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	select {
	case <-time.After(runFor):
	case s := <-sig:
		logger.Info().Str("signal", s.String()).Msg("shutting down")
	}

	// Resolve a tap in the middle of the viewport before teardown so the
	// demo exercises the whole event surface.
	eng.Tap(400, 300)
	time.Sleep(50 * time.Millisecond)

	eng.Cleanup()
}

// demoScript plays each marker through a full lifecycle: appear, track,
// flicker paused, resume, and stop.
func demoScript(markers []string) [][]track.AnchorDelta {
	var script [][]track.AnchorDelta
	for i, m := range markers {
		id := track.AnchorID(fmt.Sprintf("demo-%d", i))
		pose := track.TranslationPose(float64(i)*0.3, 0, -0.5)
		extent := track.Extent{Width: 0.1, Height: 0.07}
		frame := func(state track.TrackingState) []track.AnchorDelta {
			return []track.AnchorDelta{{ID: id, Marker: m, Pose: pose, Extent: extent, State: state}}
		}
		script = append(script,
			frame(track.StateTracking),
			frame(track.StateTracking),
			frame(track.StatePaused),
			frame(track.StateTracking),
			frame(track.StateStopped),
		)
	}
	return script
}

// ensureDemoAssets writes a flat-colour PNG per marker so the catalog has
// something to decode. Existing files are left alone.
func ensureDemoAssets(dir string, markers []string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	palette := []color.RGBA{
		{R: 0xE5, G: 0x4B, B: 0x4B, A: 0xFF},
		{R: 0x4B, G: 0x8F, B: 0xE5, A: 0xFF},
		{R: 0x4B, G: 0xE5, B: 0x7A, A: 0xFF},
	}
	for i, m := range markers {
		path := filepath.Join(dir, m+".png")
		if _, err := os.Stat(path); err == nil {
			continue
		}
		img := image.NewRGBA(image.Rect(0, 0, 64, 64))
		c := palette[i%len(palette)]
		for y := 0; y < 64; y++ {
			for x := 0; x < 64; x++ {
				img.Set(x, y, c)
			}
		}
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		if err := png.Encode(f, img); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
	}
	return nil
}
