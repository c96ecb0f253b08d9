package docview

import (
	"fmt"
	"image"
	"sync"
	"sync/atomic"

	"golang.org/x/text/unicode/norm"

	"github.com/gogpu/docview/bitmap"
	"github.com/gogpu/docview/decoder"
	"github.com/gogpu/docview/geometry"
	"github.com/gogpu/docview/render"
)

// Document is an open document with its page mapping and current layout.
//
// Geometry queries take user page indexes and read an immutable Layout, so
// they never observe a half-recomputed state. Page lifecycle methods
// (OpenPage, PageHasError, RenderPageBitmap) take document page indexes and
// are the render.Document implementation used by the render pipeline.
//
// Every decoder call is serialized by the document; the decoder handle is
// never used concurrently.
//
// Thread safety: Document is safe for concurrent use.
type Document struct {
	name   string
	pages  geometry.PageMap
	layout atomic.Pointer[geometry.Layout]

	// meta and bookmarks are read once at open and never change.
	meta      decoder.Meta
	bookmarks []decoder.Bookmark

	// decMu serializes decoder access and guards closed.
	decMu  sync.Mutex
	handle decoder.Handle
	closed bool

	// stateMu guards opened: true for pages that opened, false for pages
	// that failed. Absent pages were never opened.
	stateMu sync.Mutex
	opened  map[int]bool
}

var _ render.Document = (*Document)(nil)

// newDocument reads page sizes, metadata and outline from h and computes the
// initial layout. It does not close h on error.
func newDocument(name string, h decoder.Handle, viewport geometry.Size, o options) (*Document, error) {
	pages := geometry.NewPageMap(o.pages, h.PageCount())
	if pages.Len() == 0 {
		return nil, ErrNoPages
	}

	sizes := make([]geometry.Size, pages.Len())
	for user := range sizes {
		doc := pages.DocumentPage(user)
		if doc < 0 || doc >= h.PageCount() {
			return nil, fmt.Errorf("docview: user page %d shows missing document page %d", user, doc)
		}
		s, err := h.PageSize(doc)
		if err != nil {
			return nil, err
		}
		sizes[user] = s
	}

	d := &Document{
		name:      name,
		pages:     pages,
		meta:      normalizeMeta(h.Metadata()),
		bookmarks: normalizeBookmarks(h.Bookmarks()),
		handle:    h,
		opened:    make(map[int]bool),
	}
	d.layout.Store(geometry.Compute(sizes, viewport, o.layout))
	return d, nil
}

func normalizeMeta(m decoder.Meta) decoder.Meta {
	for _, f := range []*string{&m.Title, &m.Author, &m.Subject, &m.Keywords, &m.Creator, &m.Producer, &m.Created, &m.Modified} {
		*f = norm.NFC.String(*f)
	}
	return m
}

func normalizeBookmarks(in []decoder.Bookmark) []decoder.Bookmark {
	if len(in) == 0 {
		return nil
	}
	out := make([]decoder.Bookmark, len(in))
	for i, b := range in {
		out[i] = decoder.Bookmark{
			Title:    norm.NFC.String(b.Title),
			Page:     b.Page,
			Children: normalizeBookmarks(b.Children),
		}
	}
	return out
}

// Name returns the name of the document source.
func (d *Document) Name() string { return d.name }

// Layout returns the current layout. Use it to run several queries against
// the same geometry.
func (d *Document) Layout() *geometry.Layout { return d.layout.Load() }

// Recalculate recomputes the layout for a new viewport size and swaps it in
// atomically.
func (d *Document) Recalculate(viewport geometry.Size) {
	d.layout.Store(d.layout.Load().WithViewport(viewport))
}

// PageCount returns the number of user pages.
func (d *Document) PageCount() int { return d.pages.Len() }

// PageMap returns the user page mapping.
func (d *Document) PageMap() geometry.PageMap { return d.pages }

// DocumentPage returns the document page shown at a user page, or -1.
func (d *Document) DocumentPage(user int) int { return d.pages.DocumentPage(user) }

// CacheGroup returns the cache group of a user page.
func (d *Document) CacheGroup(user int) int { return d.pages.CacheGroup(user) }

// ValidPage clamps a user page into range.
func (d *Document) ValidPage(user int) int { return d.pages.ValidPage(user) }

// PageSize returns the scaled size of a user page at zoom 1.
func (d *Document) PageSize(user int) geometry.SizeF { return d.Layout().PageSize(user) }

// ScaledPageSize returns the size of a user page at zoom.
func (d *Document) ScaledPageSize(user int, zoom float64) geometry.SizeF {
	return d.Layout().ScaledPageSize(user, zoom)
}

// MaxPageSize returns the scaled size of the largest page on the secondary
// axis.
func (d *Document) MaxPageSize() geometry.SizeF { return d.Layout().MaxPageSize() }

// MaxPageWidth returns MaxPageSize().Width.
func (d *Document) MaxPageWidth() float64 { return d.Layout().MaxPageWidth() }

// MaxPageHeight returns MaxPageSize().Height.
func (d *Document) MaxPageHeight() float64 { return d.Layout().MaxPageHeight() }

// DocLen returns the document length on the scroll axis at zoom.
func (d *Document) DocLen(zoom float64) float64 { return d.Layout().DocLen(zoom) }

// PageLength returns the extent of a user page on the scroll axis at zoom.
func (d *Document) PageLength(user int, zoom float64) float64 {
	return d.Layout().PageLength(user, zoom)
}

// PageSpacing returns the gap after a user page at zoom.
func (d *Document) PageSpacing(user int, zoom float64) float64 {
	return d.Layout().PageSpacing(user, zoom)
}

// PageOffset returns where a user page starts on the scroll axis at zoom.
func (d *Document) PageOffset(user int, zoom float64) float64 {
	return d.Layout().PageOffset(user, zoom)
}

// SecondaryPageOffset returns the cross-axis offset that centers a user page
// at zoom.
func (d *Document) SecondaryPageOffset(user int, zoom float64) float64 {
	return d.Layout().SecondaryPageOffset(user, zoom)
}

// PageAtOffset returns the user page at a scroll offset.
func (d *Document) PageAtOffset(offset, zoom float64) int {
	return d.Layout().PageAtOffset(offset, zoom)
}

// OpenPage opens a document page in the decoder. The first failure is
// returned as a *render.PageError and remembered; later calls for the same
// page return nil and PageHasError reports true.
func (d *Document) OpenPage(page int) error {
	d.decMu.Lock()
	defer d.decMu.Unlock()

	if d.closed {
		return &render.PageError{Page: page, Err: decoder.ErrClosed}
	}

	d.stateMu.Lock()
	_, seen := d.opened[page]
	d.stateMu.Unlock()
	if seen {
		return nil
	}

	err := d.handle.OpenPage(page)

	d.stateMu.Lock()
	d.opened[page] = err == nil
	d.stateMu.Unlock()

	if err != nil {
		return &render.PageError{Page: page, Err: err}
	}
	return nil
}

// PageHasError reports whether a document page is not successfully opened.
func (d *Document) PageHasError(page int) bool {
	d.stateMu.Lock()
	defer d.stateMu.Unlock()
	return !d.opened[page]
}

// RenderPageBitmap rasterizes a document page into dst so that the whole
// page covers bounds.
func (d *Document) RenderPageBitmap(dst *bitmap.Bitmap, page int, bounds image.Rectangle, annotations bool) error {
	d.decMu.Lock()
	defer d.decMu.Unlock()

	if d.closed {
		return decoder.ErrClosed
	}
	return d.handle.Rasterize(dst, page, bounds, annotations)
}

// Metadata returns the document metadata, NFC-normalized.
func (d *Document) Metadata() decoder.Meta { return d.meta }

// Bookmarks returns a copy of the document outline, NFC-normalized.
func (d *Document) Bookmarks() []decoder.Bookmark {
	return normalizeBookmarks(d.bookmarks)
}

// PageLinks returns the links on a user page in page coordinates.
func (d *Document) PageLinks(user int) []decoder.Link {
	page := d.DocumentPage(user)
	if page < 0 {
		return nil
	}

	d.decMu.Lock()
	defer d.decMu.Unlock()
	if d.closed {
		return nil
	}
	return d.handle.PageLinks(page)
}

// MapRectToDevice maps rect, in the original page coordinates of a user
// page, to device coordinates for a page drawn at (startX, startY) with size
// sizeX x sizeY.
func (d *Document) MapRectToDevice(user, startX, startY, sizeX, sizeY int, rect geometry.Rect) geometry.Rect {
	orig := d.Layout().OriginalPageSize(user)
	if orig.Width <= 0 || orig.Height <= 0 {
		return geometry.Rect{}
	}
	m := geometry.Translate(float64(startX), float64(startY)).
		Multiply(geometry.Scale(float64(sizeX)/float64(orig.Width), float64(sizeY)/float64(orig.Height)))
	return m.MapRect(rect)
}

// Close releases the decoder handle. Later calls return nil.
func (d *Document) Close() error {
	d.decMu.Lock()
	defer d.decMu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true
	if err := d.handle.Close(); err != nil {
		return fmt.Errorf("docview: close %s: %w", d.name, err)
	}
	return nil
}
