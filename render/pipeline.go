package render

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/gogpu/docview/bitmap"
	"github.com/gogpu/docview/cache"
	"github.com/gogpu/docview/geometry"
	"github.com/gogpu/docview/internal/logging"
	"github.com/gogpu/docview/internal/parallel"
)

// Option configures a Pipeline.
type Option func(*pipelineOptions)

type pipelineOptions struct {
	alloc       bitmap.Allocator
	lane        *parallel.Lane
	onRendered  func(cache.Tile)
	onPageError func(*PageError)
}

// WithAllocator sets the bitmap allocator. The default allocates from the
// heap.
func WithAllocator(a bitmap.Allocator) Option {
	return func(o *pipelineOptions) {
		if a != nil {
			o.alloc = a
		}
	}
}

// WithLane runs the pipeline on an existing lane instead of a private one.
// The pipeline does not close a lane it was given.
func WithLane(l *parallel.Lane) Option {
	return func(o *pipelineOptions) {
		o.lane = l
	}
}

// WithRenderedHandler installs a callback run after each tile is published.
// The tile's bitmap belongs to the sink; the callback must not release it.
func WithRenderedHandler(fn func(cache.Tile)) Option {
	return func(o *pipelineOptions) {
		o.onRendered = fn
	}
}

// WithPageErrorHandler installs a callback for page open failures. It runs
// at most once per page. Rasterization failures are logged and counted as
// dropped instead.
func WithPageErrorHandler(fn func(*PageError)) Option {
	return func(o *pipelineOptions) {
		o.onPageError = fn
	}
}

// Pipeline renders tasks one at a time on a background lane and publishes
// the results to a Sink.
//
// A new Pipeline is stopped; call Start to begin publishing.
//
// Thread safety: Pipeline is safe for concurrent use.
type Pipeline struct {
	doc  Document
	sink Sink
	opts pipelineOptions

	lane     *parallel.Lane
	ownsLane bool

	running atomic.Bool
	closed  atomic.Bool

	// epoch increases on every Stop. A task remembers the epoch it was
	// submitted in and is published only if it is unchanged.
	epoch atomic.Uint64

	// publishMu makes the publish check and the sink insert atomic with
	// respect to Stop.
	publishMu sync.Mutex

	submitted atomic.Uint64
	published atomic.Uint64
	discarded atomic.Uint64
	dropped   atomic.Uint64
}

// New creates a stopped pipeline rendering from doc into sink.
func New(doc Document, sink Sink, opts ...Option) *Pipeline {
	o := pipelineOptions{alloc: bitmap.HeapAllocator{}}
	for _, opt := range opts {
		opt(&o)
	}

	p := &Pipeline{doc: doc, sink: sink, opts: o, lane: o.lane}
	if p.lane == nil {
		p.lane = parallel.NewLane("render")
		p.ownsLane = true
	}
	return p
}

// Start enables publication for tasks submitted from now on.
func (p *Pipeline) Start() {
	if p.closed.Load() {
		return
	}
	p.running.Store(true)
}

// Stop disables publication. Tasks already queued keep running but their
// bitmaps are released instead of published. After Stop returns no tile is
// published until Start is called and new tasks are submitted.
func (p *Pipeline) Stop() {
	p.publishMu.Lock()
	p.running.Store(false)
	p.epoch.Add(1)
	p.publishMu.Unlock()
}

// IsRunning reports whether the pipeline publishes tiles.
func (p *Pipeline) IsRunning() bool { return p.running.Load() }

// Submit queues t and returns immediately. It reports false if the pipeline
// has been closed.
func (p *Pipeline) Submit(t Task) bool {
	if p.closed.Load() {
		return false
	}
	// Epoch is read before running so that a concurrent Stop either makes
	// the task unaccepted or changes the epoch it compares against.
	epoch := p.epoch.Load()
	accepted := p.running.Load()

	if !p.lane.Submit(func() { p.process(t, accepted, epoch) }) {
		return false
	}
	p.submitted.Add(1)
	return true
}

// Flush blocks until every task submitted before the call has been
// processed, or ctx is done.
func (p *Pipeline) Flush(ctx context.Context) error {
	return p.lane.Barrier(ctx)
}

// Close stops the pipeline and discards queued tasks without rendering
// them. A private lane is shut down; Close waits for its worker to exit.
func (p *Pipeline) Close() {
	if !p.closed.CompareAndSwap(false, true) {
		return
	}
	p.Stop()
	if p.ownsLane {
		p.lane.Close()
	}
}

func (p *Pipeline) process(t Task, accepted bool, epoch uint64) {
	if p.closed.Load() {
		p.dropped.Add(1)
		return
	}

	tile, err := p.render(t)
	if err != nil {
		logging.L().Warn("render: page failed to open", "page", err.Page, "err", err.Err)
		if p.opts.onPageError != nil {
			p.opts.onPageError(err)
		}
		return
	}
	if tile == nil {
		p.dropped.Add(1)
		return
	}
	p.publish(*tile, accepted, epoch)
}

// render produces a tile for t. The only error it returns is the first open
// failure of a page; every other failure drops the task with nil, nil.
func (p *Pipeline) render(t Task) (*cache.Tile, *PageError) {
	if err := p.doc.OpenPage(t.Page); err != nil {
		return nil, asPageError(t.Page, err)
	}

	w, h := t.size()
	if w <= 0 || h <= 0 || p.doc.PageHasError(t.Page) {
		return nil, nil
	}

	bm, err := p.opts.alloc.Allocate(w, h, bitmap.ForQuality(t.BestQuality))
	if err != nil {
		logging.L().Warn("render: cannot allocate tile", "page", t.Page, "width", w, "height", h, "err", err)
		return nil, nil
	}

	bounds := geometry.DeviceBounds(w, h, t.Region)
	if err := p.doc.RenderPageBitmap(bm, t.Page, bounds, t.Annotations); err != nil {
		bm.Release()
		logging.L().Warn("render: cannot rasterize tile", "page", t.Page, "region", t.Region, "err", err)
		return nil, nil
	}

	return &cache.Tile{
		Page:       t.Page,
		Region:     t.Region,
		Bitmap:     bm,
		Thumbnail:  t.Thumbnail,
		CacheOrder: t.CacheOrder,
	}, nil
}

func (p *Pipeline) publish(tile cache.Tile, accepted bool, epoch uint64) {
	p.publishMu.Lock()
	ok := accepted && p.running.Load() && p.epoch.Load() == epoch
	if ok {
		if tile.Thumbnail {
			p.sink.InsertThumbnail(tile)
		} else {
			p.sink.InsertTile(tile)
		}
	}
	p.publishMu.Unlock()

	if !ok {
		tile.Bitmap.Release()
		p.discarded.Add(1)
		logging.L().Debug("render: discarded tile", "page", tile.Page, "thumbnail", tile.Thumbnail)
		return
	}
	p.published.Add(1)
	if p.opts.onRendered != nil {
		p.opts.onRendered(tile)
	}
}

// Stats holds pipeline counters.
type Stats struct {
	Submitted uint64 // tasks accepted by Submit
	Published uint64 // tiles handed to the sink
	Discarded uint64 // tiles rendered while stopped and released
	Dropped   uint64 // tasks skipped before rendering
	Queued    int    // tasks waiting on the lane
}

// Stats returns current pipeline counters.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Submitted: p.submitted.Load(),
		Published: p.published.Load(),
		Discarded: p.discarded.Load(),
		Dropped:   p.dropped.Load(),
		Queued:    p.lane.Len(),
	}
}
