package render

import (
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/gogpu/docview/bitmap"
	"github.com/gogpu/docview/cache"
	"github.com/gogpu/docview/geometry"
)

// Task is a request to render one region of one page.
type Task struct {
	// Page is the document page index.
	Page int

	// Width and Height are the tile size in pixels, rounded half up to get
	// the bitmap size. The page is scaled so that Region fills the tile.
	Width, Height float64

	// Region is the normalized sub-rectangle of the page to render.
	Region geometry.Rect

	Thumbnail   bool
	CacheOrder  int
	BestQuality bool
	Annotations bool
}

// size returns the bitmap dimensions, rounded half up.
func (t Task) size() (w, h int) {
	return roundHalfUp(t.Width), roundHalfUp(t.Height)
}

func roundHalfUp(v float64) int {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return int(math.Floor(v + 0.5))
}

// Document is the page source a Pipeline renders from.
//
// Implementations must serialize their own decoder access; the pipeline
// calls these methods from its worker goroutine only.
type Document interface {
	// OpenPage prepares page for rendering. It is idempotent: a page that
	// opened before returns nil, and a page that failed before returns nil
	// too and reports the failure through PageHasError. Only the first
	// failure is returned.
	OpenPage(page int) error

	// PageHasError reports whether page failed to open.
	PageHasError(page int) bool

	// RenderPageBitmap rasterizes page into dst, placing the page so that it
	// covers bounds in dst's coordinate space.
	RenderPageBitmap(dst *bitmap.Bitmap, page int, bounds image.Rectangle, annotations bool) error
}

// Sink receives finished tiles. *cache.TileCache implements Sink.
type Sink interface {
	InsertTile(t cache.Tile)
	InsertThumbnail(t cache.Tile)
}

var _ Sink = (*cache.TileCache)(nil)

// PageError reports a page that could not be opened.
type PageError struct {
	Page int
	Err  error
}

func (e *PageError) Error() string {
	return fmt.Sprintf("render: page %d: %v", e.Page, e.Err)
}

func (e *PageError) Unwrap() error { return e.Err }

// asPageError wraps err in a PageError for page unless it already is one.
func asPageError(page int, err error) *PageError {
	var pe *PageError
	if errors.As(err, &pe) {
		return pe
	}
	return &PageError{Page: page, Err: err}
}
