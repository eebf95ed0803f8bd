// Package catalog builds the reference-image catalog handed to the
// tracking subsystem: one decoded entry per logical marker name, with its
// physical width. Building runs on the background worker, never on the
// render tick, and the result can be cached keyed by a content hash of
// the ordered identifier list.
package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"sort"

	"github.com/rs/zerolog"

	"github.com/markerlens/markerlens/internal/assets"
	"github.com/markerlens/markerlens/internal/track"
)

// Catalog is a built reference-image set.
type Catalog struct {
	Hash    string                `json:"hash"`
	Entries []track.ReferenceImage `json:"entries"`
}

// Cache stores built catalogs keyed by content hash. Implemented by the
// sqlite store; a nil Cache disables caching.
type Cache interface {
	GetCatalog(hash string) (blob []byte, ok bool, err error)
	PutCatalog(hash string, blob []byte) error
}

// Builder turns an ordered list of marker identifiers into a Catalog.
type Builder struct {
	resolver *assets.Resolver
	cache    Cache
	widthFor func(name string) float64
	logger   zerolog.Logger
}

// NewBuilder creates a Builder. widthFor supplies each marker's physical
// width in metres; cache may be nil.
func NewBuilder(resolver *assets.Resolver, cache Cache, widthFor func(string) float64, logger zerolog.Logger) *Builder {
	return &Builder{
		resolver: resolver,
		cache:    cache,
		widthFor: widthFor,
		logger:   logger,
	}
}

// ContentHash computes the cache key for an identifier list: the SHA-256
// of the ordered names plus their configured physical widths, so a width
// change invalidates the cached catalog.
func ContentHash(names []string, widthFor func(string) float64) string {
	h := sha256.New()
	for _, n := range names {
		fmt.Fprintf(h, "%s:%.6f\n", n, widthFor(n))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Build resolves, decodes, and assembles the catalog for the given
// identifiers. Markers whose asset cannot be resolved or decoded are
// skipped (logged, not surfaced), so one bad asset cannot block the rest.
// Build returns an error only when the resulting catalog would be empty.
func (b *Builder) Build(names []string) (*Catalog, error) {
	hash := ContentHash(names, b.widthFor)

	if b.cache != nil {
		if blob, ok, err := b.cache.GetCatalog(hash); err != nil {
			b.logger.Warn().Err(err).Msg("catalog cache lookup failed")
		} else if ok {
			var c Catalog
			if err := json.Unmarshal(blob, &c); err == nil && c.Hash == hash {
				b.logger.Debug().Str("hash", hash).Int("entries", len(c.Entries)).Msg("catalog cache hit")
				return &c, nil
			}
			b.logger.Warn().Str("hash", hash).Msg("discarding corrupt cached catalog")
		}
	}

	c := &Catalog{Hash: hash}
	for _, name := range names {
		src, err := b.resolver.ResolveImage(name)
		if err != nil {
			b.logger.Warn().Str("marker", name).Err(err).Msg("skipping marker, asset missing")
			continue
		}
		entry, err := decodeReference(name, src.Path, b.widthFor(name))
		if err != nil {
			b.logger.Warn().Str("marker", name).Err(err).Msg("skipping marker, decode failed")
			continue
		}
		c.Entries = append(c.Entries, entry)
	}

	if len(c.Entries) == 0 {
		return nil, fmt.Errorf("no loadable reference images among %d identifiers", len(names))
	}

	if b.cache != nil {
		if blob, err := json.Marshal(c); err == nil {
			if err := b.cache.PutCatalog(hash, blob); err != nil {
				b.logger.Warn().Err(err).Msg("catalog cache store failed")
			}
		}
	}
	return c, nil
}

// Names returns the marker names present in the catalog, sorted.
func (c *Catalog) Names() []string {
	out := make([]string, 0, len(c.Entries))
	for _, e := range c.Entries {
		out = append(out, e.Name)
	}
	sort.Strings(out)
	return out
}

func decodeReference(name, path string, widthM float64) (track.ReferenceImage, error) {
	f, err := os.Open(path)
	if err != nil {
		return track.ReferenceImage{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return track.ReferenceImage{}, fmt.Errorf("decode %s: %w", path, err)
	}

	bounds := img.Bounds()
	rgba := image.NewRGBA(bounds)
	draw.Draw(rgba, bounds, img, bounds.Min, draw.Src)

	return track.ReferenceImage{
		Name:   name,
		WidthM: widthM,
		PixelW: bounds.Dx(),
		PixelH: bounds.Dy(),
		Pixels: rgba.Pix,
	}, nil
}
