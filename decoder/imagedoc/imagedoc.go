// Package imagedoc is a decoder that treats a sequence of raster images as
// a paginated document, one image per page.
//
// PNG, JPEG, GIF, BMP, TIFF and WebP are supported. A document may carry a
// JSONC manifest with metadata, an outline, links and text notes.
package imagedoc

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"  // register GIF
	_ "image/jpeg" // register JPEG
	_ "image/png"  // register PNG
	"path"
	"slices"
	"strings"
	"time"

	xdraw "golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"  // register BMP
	_ "golang.org/x/image/tiff" // register TIFF
	_ "golang.org/x/image/webp" // register WebP

	"github.com/gogpu/docview/decoder"
	"github.com/gogpu/docview/geometry"
	"github.com/gogpu/docview/internal/logging"
	"github.com/gogpu/docview/internal/lru"
	"github.com/gogpu/docview/internal/parallel"
)

// Producer is reported in document metadata.
const Producer = "docview/imagedoc"

var extensions = []string{".png", ".jpg", ".jpeg", ".gif", ".bmp", ".tif", ".tiff", ".webp"}

// Supported reports whether name has an image extension this decoder reads.
func Supported(name string) bool {
	return slices.Contains(extensions, strings.ToLower(path.Ext(name)))
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithInterpolator sets the resampling kernel used when pages are scaled.
// The default is xdraw.ApproxBiLinear.
func WithInterpolator(i xdraw.Interpolator) Option {
	return func(d *Decoder) {
		if i != nil {
			d.interp = i
		}
	}
}

// WithProbeWorkers sets how many page headers Open reads at once. The
// default is DefaultProbeWorkers.
func WithProbeWorkers(n int) Option {
	return func(d *Decoder) {
		if n > 0 {
			d.workers = n
		}
	}
}

// WithDecodedPages sets how many decoded page images a handle keeps. Older
// pages are decoded again when rendered. The default is
// DefaultDecodedPages.
func WithDecodedPages(n int) Option {
	return func(d *Decoder) {
		if n > 0 {
			d.decoded = n
		}
	}
}

// Decoder defaults.
const (
	DefaultProbeWorkers = 4
	DefaultDecodedPages = 8
)

// Decoder opens image documents.
type Decoder struct {
	interp  xdraw.Interpolator
	workers int
	decoded int
}

var _ decoder.Decoder = (*Decoder)(nil)

// New returns a decoder.
func New(opts ...Option) *Decoder {
	d := &Decoder{
		interp:  xdraw.ApproxBiLinear,
		workers: DefaultProbeWorkers,
		decoded: DefaultDecodedPages,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Open reads the size of every page and the manifest. Pixel data is decoded
// lazily by OpenPage. If the manifest sets a password, password must match.
func (d *Decoder) Open(ctx context.Context, src decoder.Source, password string) (decoder.Handle, error) {
	if src == nil {
		return nil, decoder.ErrUnsupportedSource
	}
	parts, err := src.Parts(ctx)
	if err != nil {
		return nil, err
	}
	if len(parts) == 0 {
		return nil, decoder.ErrEmptyDocument
	}

	var m manifest
	if ms, ok := src.(decoder.ManifestSource); ok {
		data, err := ms.ReadManifest()
		if err != nil {
			return nil, fmt.Errorf("imagedoc: read manifest: %w", err)
		}
		if m, err = parseManifest(data); err != nil {
			return nil, err
		}
	}
	if m.Password != "" && m.Password != password {
		return nil, decoder.ErrPassword
	}

	h := &handle{
		parts:   parts,
		sizes:   make([]geometry.Size, len(parts)),
		formats: make([]string, len(parts)),
		pages:   lru.New[int, image.Image](d.decoded),
		interp:  d.interp,
	}
	if err := d.probe(ctx, h); err != nil {
		return nil, err
	}

	if err := m.validate(len(parts)); err != nil {
		return nil, err
	}
	h.meta = buildMeta(m.Meta, parts)
	h.bookmarks = m.Bookmarks
	if len(h.bookmarks) == 0 {
		h.bookmarks = defaultOutline(parts)
	}
	h.links = make(map[int][]decoder.Link)
	for _, l := range m.Links {
		h.links[l.Page] = append(h.links[l.Page], l.Link)
	}
	h.notes = make(map[int][]note)
	for _, n := range m.Notes {
		h.notes[n.Page] = append(h.notes[n.Page], n)
	}

	logging.L().Debug("imagedoc: opened", "source", src.Name(), "pages", len(parts))
	return h, nil
}

// probe reads the header of every part. Parts are independent files, so
// the headers are read in parallel.
func (d *Decoder) probe(ctx context.Context, h *handle) error {
	errs := make([]error, len(h.parts))
	pool := parallel.NewPool(min(d.workers, len(h.parts)))
	defer pool.Close()

	pool.Run(len(h.parts), func(i int) {
		if err := ctx.Err(); err != nil {
			errs[i] = err
			return
		}
		p := h.parts[i]
		cfg, format, err := decodeConfig(p)
		if err != nil {
			errs[i] = fmt.Errorf("imagedoc: %s: %w", p.Name, err)
			return
		}
		h.sizes[i] = geometry.Size{Width: cfg.Width, Height: cfg.Height}
		h.formats[i] = format
	})

	// Report the failure of the lowest page.
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func decodeConfig(p decoder.Part) (image.Config, string, error) {
	rc, err := p.Open()
	if err != nil {
		return image.Config{}, "", err
	}
	defer rc.Close()
	cfg, format, err := image.DecodeConfig(rc)
	if err != nil {
		return image.Config{}, "", err
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return image.Config{}, "", fmt.Errorf("empty %s image", format)
	}
	return cfg, format, nil
}

func buildMeta(m decoder.Meta, parts []decoder.Part) decoder.Meta {
	if m.Title == "" {
		name := parts[0].Name
		m.Title = strings.TrimSuffix(name, path.Ext(name))
	}
	if m.Producer == "" {
		m.Producer = Producer
	}

	var oldest, newest time.Time
	for _, p := range parts {
		if p.ModTime.IsZero() {
			continue
		}
		if oldest.IsZero() || p.ModTime.Before(oldest) {
			oldest = p.ModTime
		}
		if p.ModTime.After(newest) {
			newest = p.ModTime
		}
	}
	if m.Created == "" && !oldest.IsZero() {
		m.Created = oldest.UTC().Format(time.RFC3339)
	}
	if m.Modified == "" && !newest.IsZero() {
		m.Modified = newest.UTC().Format(time.RFC3339)
	}
	return m
}

// defaultOutline has one entry per page, titled by file name.
func defaultOutline(parts []decoder.Part) []decoder.Bookmark {
	out := make([]decoder.Bookmark, len(parts))
	for i, p := range parts {
		out[i] = decoder.Bookmark{Title: p.Name, Page: i}
	}
	return out
}
