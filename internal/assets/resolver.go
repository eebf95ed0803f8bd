// Package assets resolves logical marker names to byte sources. A marker
// name is the file stem of a bundled asset; resolution scans the
// configured asset directories for a matching extension and memoizes the
// result, including negative results, so the render path never repeats
// filesystem probes.
package assets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// ErrNotFound is returned when no asset matches the logical name.
var ErrNotFound = errors.New("asset not found")

// SourceKind distinguishes local files from remote URLs.
type SourceKind string

const (
	SourceLocal  SourceKind = "local"
	SourceRemote SourceKind = "remote"
)

// Source is a resolved byte source for a marker asset.
type Source struct {
	Kind SourceKind
	// Path is the absolute file path for local sources, or the URL for
	// remote sources.
	Path string
}

var (
	imageExts = []string{".png", ".jpg", ".jpeg"}
	videoExts = []string{".mp4", ".mov"}
)

// Resolver maps logical names to sources with memoization. Safe for
// concurrent use; the catalog builder runs on the background worker while
// the overlay factory resolves on the render tick.
type Resolver struct {
	dirs []string

	mu    sync.Mutex
	cache map[string]cached
}

type cached struct {
	src Source
	err error
}

// NewResolver creates a Resolver searching the given directories in order.
func NewResolver(dirs []string) *Resolver {
	return &Resolver{
		dirs:  dirs,
		cache: make(map[string]cached),
	}
}

// ResolveImage resolves a still-image asset for the marker name.
func (r *Resolver) ResolveImage(name string) (Source, error) {
	return r.resolve("img:"+name, name, imageExts)
}

// ResolveVideo resolves a bundled video asset for the marker name.
func (r *Resolver) ResolveVideo(name string) (Source, error) {
	return r.resolve("vid:"+name, name, videoExts)
}

func (r *Resolver) resolve(key, name string, exts []string) (Source, error) {
	r.mu.Lock()
	if c, ok := r.cache[key]; ok {
		r.mu.Unlock()
		return c.src, c.err
	}
	r.mu.Unlock()

	src, err := r.scan(name, exts)

	r.mu.Lock()
	r.cache[key] = cached{src: src, err: err}
	r.mu.Unlock()
	return src, err
}

func (r *Resolver) scan(name string, exts []string) (Source, error) {
	for _, dir := range r.dirs {
		for _, ext := range exts {
			p := filepath.Join(dir, name+ext)
			info, err := os.Stat(p)
			if err != nil || info.IsDir() {
				continue
			}
			abs, err := filepath.Abs(p)
			if err != nil {
				abs = p
			}
			return Source{Kind: SourceLocal, Path: abs}, nil
		}
	}
	return Source{}, fmt.Errorf("%w: %s", ErrNotFound, name)
}
