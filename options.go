package docview

import (
	"github.com/gogpu/docview/bitmap"
	"github.com/gogpu/docview/cache"
	"github.com/gogpu/docview/geometry"
	"github.com/gogpu/docview/render"
)

// Viewer defaults.
const (
	DefaultPartSize       = 256
	DefaultThumbnailRatio = 0.3
	DefaultPreloadOffset  = 20
	DefaultMinZoom        = 1.0
	DefaultMaxZoom        = 10.0
)

// Option configures Open and NewViewer.
//
// Example:
//
//	s := docview.Open(ctx, imagedoc.New(), src, geometry.Size{Width: 1080, Height: 1920}, done,
//	    docview.WithFitPolicy(geometry.FitBoth),
//	    docview.WithSpacing(10),
//	)
type Option func(*options)

type options struct {
	layout   geometry.Options
	pages    []int
	password string

	cacheSize      int
	thumbCacheSize int
	partSize       int
	thumbRatio     float64
	preloadOffset  float64
	minZoom        float64
	maxZoom        float64
	bestQuality    bool
	annotations    bool

	alloc       bitmap.Allocator
	onRendered  func(cache.Tile)
	onPageError func(*render.PageError)
}

func defaultOptions() options {
	return options{
		layout:         geometry.DefaultOptions(),
		cacheSize:      cache.DefaultCapacity,
		thumbCacheSize: cache.DefaultThumbnailCapacity,
		partSize:       DefaultPartSize,
		thumbRatio:     DefaultThumbnailRatio,
		preloadOffset:  DefaultPreloadOffset,
		minZoom:        DefaultMinZoom,
		maxZoom:        DefaultMaxZoom,
	}
}

func buildOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLayout replaces all layout options at once.
func WithLayout(l geometry.Options) Option {
	return func(o *options) { o.layout = l }
}

// WithFitPolicy sets how pages are scaled to the viewport.
func WithFitPolicy(p geometry.FitPolicy) Option {
	return func(o *options) { o.layout.FitPolicy = p }
}

// WithDualPage shows two pages side by side.
func WithDualPage(on bool) Option {
	return func(o *options) { o.layout.DualPage = on }
}

// WithVertical selects vertical (true) or horizontal scrolling.
func WithVertical(on bool) Option {
	return func(o *options) { o.layout.Vertical = on }
}

// WithSpacing sets the gap between pages in pixels.
func WithSpacing(px float64) Option {
	return func(o *options) { o.layout.Spacing = max(px, 0) }
}

// WithAutoSpacing pads each page so it fills the viewport on the scroll
// axis.
func WithAutoSpacing(on bool) Option {
	return func(o *options) { o.layout.AutoSpacing = on }
}

// WithFitEachPage scales every page on its own instead of by the largest
// page.
func WithFitEachPage(on bool) Option {
	return func(o *options) { o.layout.FitEachPage = on }
}

// WithLandscape marks the viewport as landscape.
func WithLandscape(on bool) Option {
	return func(o *options) { o.layout.Landscape = on }
}

// WithPages sets the user page sequence, for example 0, 2, 2, 3.
func WithPages(pages ...int) Option {
	return func(o *options) { o.pages = append([]int(nil), pages...) }
}

// WithPassword sets the document password.
func WithPassword(pw string) Option {
	return func(o *options) { o.password = pw }
}

// WithCacheSize sets the tile cache capacity.
func WithCacheSize(n int) Option {
	return func(o *options) { o.cacheSize = n }
}

// WithThumbnailCacheSize sets the thumbnail cache capacity.
func WithThumbnailCacheSize(n int) Option {
	return func(o *options) { o.thumbCacheSize = n }
}

// WithPartSize sets the largest tile edge in pixels.
func WithPartSize(px int) Option {
	return func(o *options) {
		if px > 0 {
			o.partSize = px
		}
	}
}

// WithThumbnailRatio sets the thumbnail size relative to the page size.
func WithThumbnailRatio(r float64) Option {
	return func(o *options) {
		if r > 0 && r <= 1 {
			o.thumbRatio = r
		}
	}
}

// WithPreloadOffset extends the rendered area beyond the viewport by px on
// every side.
func WithPreloadOffset(px float64) Option {
	return func(o *options) { o.preloadOffset = max(px, 0) }
}

// WithZoomRange sets the zoom limits. Invalid ranges are ignored.
func WithZoomRange(minZoom, maxZoom float64) Option {
	return func(o *options) {
		if minZoom > 0 && maxZoom >= minZoom {
			o.minZoom, o.maxZoom = minZoom, maxZoom
		}
	}
}

// WithBestQuality renders tiles in ARGB8888 instead of RGB565.
func WithBestQuality(on bool) Option {
	return func(o *options) { o.bestQuality = on }
}

// WithAnnotations renders document annotations into tiles.
func WithAnnotations(on bool) Option {
	return func(o *options) { o.annotations = on }
}

// WithAllocator sets the bitmap allocator used for tiles. The default is a
// bitmap.Pool.
func WithAllocator(a bitmap.Allocator) Option {
	return func(o *options) { o.alloc = a }
}

// WithRenderedHandler is called on the render lane after each tile is
// cached.
func WithRenderedHandler(fn func(cache.Tile)) Option {
	return func(o *options) { o.onRendered = fn }
}

// WithPageErrorHandler is called on the render lane when a page fails to
// open. It is called at most once per document page.
func WithPageErrorHandler(fn func(*render.PageError)) Option {
	return func(o *options) { o.onPageError = fn }
}
