package docview

import (
	"context"
	"math"

	"github.com/gogpu/docview/bitmap"
	"github.com/gogpu/docview/cache"
	"github.com/gogpu/docview/geometry"
	"github.com/gogpu/docview/internal/logging"
	"github.com/gogpu/docview/render"
)

// poolBucketSize bounds how many released buffers of one shape the default
// allocator keeps.
const poolBucketSize = 16

// Viewport is the visible window onto the laid out document. OffsetX and
// OffsetY are scroll positions in zoomed document pixels.
type Viewport struct {
	OffsetX, OffsetY float64
	Width, Height    float64
	Zoom             float64
}

// Viewer connects a Document to a tile cache and a render pipeline and
// plans which tiles a viewport needs.
//
// LoadViewport is meant to be called from one goroutine, the one driving
// the view. Tiles and Thumbnails may be called from any goroutine.
type Viewer struct {
	doc      *Document
	cache    *cache.TileCache
	pipeline *render.Pipeline
	opts     options
}

// NewViewer creates a viewer for doc and starts its render pipeline. The
// viewer takes ownership of doc and closes it in Close.
func NewViewer(doc *Document, opts ...Option) *Viewer {
	o := buildOptions(opts)
	if o.alloc == nil {
		o.alloc = bitmap.NewPool(poolBucketSize)
	}

	c := cache.New(cache.WithCapacity(o.cacheSize), cache.WithThumbnailCapacity(o.thumbCacheSize))
	p := render.New(doc, c,
		render.WithAllocator(o.alloc),
		render.WithRenderedHandler(o.onRendered),
		render.WithPageErrorHandler(o.onPageError),
	)
	p.Start()

	return &Viewer{doc: doc, cache: c, pipeline: p, opts: o}
}

// Document returns the viewed document.
func (v *Viewer) Document() *Document { return v.doc }

// Cache returns the tile cache.
func (v *Viewer) Cache() *cache.TileCache { return v.cache }

// Pipeline returns the render pipeline.
func (v *Viewer) Pipeline() *render.Pipeline { return v.pipeline }

// ClampZoom limits zoom to the configured range. Non-finite or
// non-positive values select the minimum.
func (v *Viewer) ClampZoom(zoom float64) float64 {
	if math.IsNaN(zoom) || math.IsInf(zoom, 0) || zoom <= 0 {
		return v.opts.minZoom
	}
	return min(max(zoom, v.opts.minZoom), v.opts.maxZoom)
}

// Resize recomputes the layout for a new view size.
func (v *Viewer) Resize(size geometry.Size) {
	v.doc.Recalculate(size)
}

// LoadViewport starts a new cache generation and requests every tile the
// viewport needs, extended by the preload offset. Cached tiles are promoted
// back into the active generation instead of being rendered again. Each
// visible page also gets a whole-page thumbnail. It returns the number of
// render tasks submitted.
func (v *Viewer) LoadViewport(vp Viewport) int {
	zoom := v.ClampZoom(vp.Zoom)
	layout := v.doc.Layout()

	v.cache.BeginNewGeneration()

	pre := v.opts.preloadOffset
	visible := geometry.Rect{
		Left:   vp.OffsetX - pre,
		Top:    vp.OffsetY - pre,
		Right:  vp.OffsetX + vp.Width + pre,
		Bottom: vp.OffsetY + vp.Height + pre,
	}
	if visible.Empty() {
		return 0
	}

	pl := &planner{
		v:       v,
		layout:  layout,
		zoom:    zoom,
		limit:   v.cache.Capacity(),
		order:   1,
		pending: make(map[cache.Key]bool),
		thumbs:  make(map[int]bool),
	}

	start, end := visible.Top, visible.Bottom
	if !layout.Options().Vertical {
		start, end = visible.Left, visible.Right
	}
	for user := layout.PageAtOffset(max(start, 0), zoom); user < layout.PageCount(); user++ {
		if layout.PageOffset(user, zoom) > end || pl.full() {
			break
		}
		pl.page(user, visible)
	}

	logging.L().Debug("docview: viewport loaded", "zoom", zoom, "submitted", pl.submitted, "promoted", pl.promoted)
	return pl.submitted
}

// planner holds the state of one LoadViewport pass.
type planner struct {
	v      *Viewer
	layout *geometry.Layout
	zoom   float64
	limit  int

	order     int
	submitted int
	promoted  int

	// pending and thumbs hold what was already requested in this pass, so a
	// document page shown at several user pages is rendered once.
	pending map[cache.Key]bool
	thumbs  map[int]bool
}

func (pl *planner) full() bool { return pl.order > pl.limit }

// pageRect returns the bounds of a user page in zoomed document pixels.
func (pl *planner) pageRect(user int) geometry.Rect {
	size := pl.layout.ScaledPageSize(user, pl.zoom)
	primary := pl.layout.PageOffset(user, pl.zoom)
	secondary := pl.layout.SecondaryPageOffset(user, pl.zoom)
	if pl.layout.Options().Vertical {
		return geometry.Rect{Left: secondary, Top: primary, Right: secondary + size.Width, Bottom: primary + size.Height}
	}
	return geometry.Rect{Left: primary, Top: secondary, Right: primary + size.Width, Bottom: secondary + size.Height}
}

func (pl *planner) page(user int, visible geometry.Rect) {
	docPage := pl.v.doc.DocumentPage(user)
	if docPage < 0 {
		return
	}
	pr := pl.pageRect(user)
	if pr.Empty() || !pr.Intersects(visible) {
		return
	}

	pl.thumbnail(user, docPage)

	partSize := float64(pl.v.opts.partSize)
	cols := max(int(math.Ceil(pr.Width()/partSize)), 1)
	rows := max(int(math.Ceil(pr.Height()/partSize)), 1)

	// Visible cell range, clamped to the grid.
	cell := func(x, lo, extent float64, n int) int {
		return min(max(int(math.Floor((x-lo)/extent*float64(n))), 0), n-1)
	}
	c0 := cell(max(visible.Left, pr.Left), pr.Left, pr.Width(), cols)
	c1 := cell(min(visible.Right, pr.Right)-1e-9, pr.Left, pr.Width(), cols)
	r0 := cell(max(visible.Top, pr.Top), pr.Top, pr.Height(), rows)
	r1 := cell(min(visible.Bottom, pr.Bottom)-1e-9, pr.Top, pr.Height(), rows)

	tileW := pr.Width() / float64(cols)
	tileH := pr.Height() / float64(rows)
	for r := r0; r <= r1; r++ {
		for c := c0; c <= c1; c++ {
			if pl.full() {
				return
			}
			region := geometry.Rect{
				Left:   float64(c) / float64(cols),
				Top:    float64(r) / float64(rows),
				Right:  float64(c+1) / float64(cols),
				Bottom: float64(r+1) / float64(rows),
			}
			pl.part(docPage, region, tileW, tileH)
		}
	}
}

func (pl *planner) part(docPage int, region geometry.Rect, w, h float64) {
	key := cache.Key{Page: docPage, Region: region}
	if pl.pending[key] {
		return
	}
	pl.pending[key] = true

	order := pl.order
	pl.order++
	if pl.v.cache.PromoteIfPresent(docPage, region, order) {
		pl.promoted++
		return
	}
	if pl.v.pipeline.Submit(render.Task{
		Page:        docPage,
		Width:       w,
		Height:      h,
		Region:      region,
		CacheOrder:  order,
		BestQuality: pl.v.opts.bestQuality,
		Annotations: pl.v.opts.annotations,
	}) {
		pl.submitted++
	}
}

func (pl *planner) thumbnail(user, docPage int) {
	if pl.thumbs[docPage] || pl.v.cache.ContainsThumbnail(docPage, geometry.Full) {
		return
	}
	size := pl.layout.PageSize(user)
	w := size.Width * pl.v.opts.thumbRatio
	h := size.Height * pl.v.opts.thumbRatio
	if w <= 0 || h <= 0 {
		return
	}
	pl.thumbs[docPage] = true
	if pl.v.pipeline.Submit(render.Task{
		Page:        docPage,
		Width:       w,
		Height:      h,
		Region:      geometry.Full,
		Thumbnail:   true,
		BestQuality: pl.v.opts.bestQuality,
		Annotations: pl.v.opts.annotations,
	}) {
		pl.submitted++
	}
}

// Tiles returns a snapshot of the cached tiles, evict-first first. The
// bitmaps stay readable without any lock until the snapshot is passed to
// cache.ReleaseSnapshot.
func (v *Viewer) Tiles() []cache.Tile { return v.cache.Tiles() }

// Thumbnails returns a snapshot of the cached thumbnails. Release it like
// Tiles.
func (v *Viewer) Thumbnails() []cache.Tile { return v.cache.Thumbnails() }

// Flush waits until every submitted tile has been processed.
func (v *Viewer) Flush(ctx context.Context) error { return v.pipeline.Flush(ctx) }

// Close stops rendering, releases every cached bitmap and closes the
// document.
func (v *Viewer) Close() error {
	v.pipeline.Close()
	v.cache.Clear()
	err := v.doc.Close()
	logging.L().Info("docview: viewer closed", "document", v.doc.Name())
	return err
}
