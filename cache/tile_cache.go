package cache

import (
	"container/heap"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/gogpu/docview/geometry"
	"github.com/gogpu/docview/internal/logging"
)

// Default configuration constants.
const (
	// DefaultCapacity is the number of tiles kept across both generations.
	DefaultCapacity = 120

	// DefaultThumbnailCapacity is the number of thumbnails kept.
	DefaultThumbnailCapacity = 8
)

// Option configures a TileCache.
type Option func(*TileCache)

// WithCapacity sets the tile capacity. Values below 1 select
// DefaultCapacity.
func WithCapacity(n int) Option {
	return func(c *TileCache) {
		if n < 1 {
			n = DefaultCapacity
		}
		c.capacity = n
	}
}

// WithThumbnailCapacity sets the thumbnail capacity. Values below 1 select
// DefaultThumbnailCapacity.
func WithThumbnailCapacity(n int) Option {
	return func(c *TileCache) {
		if n < 1 {
			n = DefaultThumbnailCapacity
		}
		c.thumbCapacity = n
	}
}

// TileCache is a two-generation, priority-ordered tile cache with a separate
// bounded thumbnail list.
type TileCache struct {
	mu       sync.Mutex
	active   tileQueue
	passive  tileQueue
	capacity int

	thumbMu       sync.Mutex
	thumbnails    []*Tile
	thumbCapacity int

	// Statistics (atomic for lock-free reads)
	promotions atomic.Uint64
	misses     atomic.Uint64
	evictions  atomic.Uint64
	duplicates atomic.Uint64
}

// New creates an empty cache.
func New(opts ...Option) *TileCache {
	c := &TileCache{
		capacity:      DefaultCapacity,
		thumbCapacity: DefaultThumbnailCapacity,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Capacity returns the tile capacity.
func (c *TileCache) Capacity() int { return c.capacity }

// ThumbnailCapacity returns the thumbnail capacity.
func (c *TileCache) ThumbnailCapacity() int { return c.thumbCapacity }

// InsertTile adds a rendered tile to the active generation, first evicting
// tiles until there is room. Passive tiles are evicted before active ones,
// lowest cache order first. The cache takes ownership of the bitmap.
func (c *TileCache) InsertTile(t Tile) {
	c.mu.Lock()
	evicted := c.makeRoom()
	heap.Push(&c.active, &t)
	c.mu.Unlock()

	c.releaseAll(evicted)
}

// makeRoom pops tiles until active+passive < capacity. The passive
// generation is drained completely before the active one is touched.
// Must be called with c.mu held.
func (c *TileCache) makeRoom() []*Tile {
	var evicted []*Tile
	for c.active.Len()+c.passive.Len() >= c.capacity && c.passive.Len() > 0 {
		evicted = append(evicted, heap.Pop(&c.passive).(*Tile))
	}
	for c.active.Len()+c.passive.Len() >= c.capacity && c.active.Len() > 0 {
		evicted = append(evicted, heap.Pop(&c.active).(*Tile))
	}
	return evicted
}

func (c *TileCache) releaseAll(tiles []*Tile) {
	if len(tiles) == 0 {
		return
	}
	c.evictions.Add(uint64(len(tiles)))
	for _, t := range tiles {
		t.release()
	}
	logging.L().Debug("cache: evicted tiles", "count", len(tiles))
}

// BeginNewGeneration moves every active tile to the passive generation.
// Tile membership is unchanged; only the generation differs.
func (c *TileCache) BeginNewGeneration() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, t := range c.active {
		heap.Push(&c.passive, t)
	}
	clear(c.active)
	c.active = c.active[:0]
}

// PromoteIfPresent looks for a tile covering region of page. A passive tile
// is moved to the active generation with its cache order set to order; an
// active tile is left alone. It reports whether the tile was found.
func (c *TileCache) PromoteIfPresent(page int, region geometry.Rect, order int) bool {
	k := Key{Page: page, Region: region}

	c.mu.Lock()
	defer c.mu.Unlock()

	if i := c.passive.find(k); i >= 0 {
		t := heap.Remove(&c.passive, i).(*Tile)
		t.CacheOrder = order
		heap.Push(&c.active, t)
		c.promotions.Add(1)
		return true
	}
	if c.active.find(k) >= 0 {
		return true
	}
	c.misses.Add(1)
	return false
}

// InsertThumbnail adds a thumbnail, first evicting the oldest inserted
// thumbnails while the list is full. If a thumbnail with the same identity
// is already cached, the new one is dropped and its bitmap released; the
// existing entry keeps its position.
func (c *TileCache) InsertThumbnail(t Tile) {
	var released []*Tile

	c.thumbMu.Lock()
	for len(c.thumbnails) >= c.thumbCapacity {
		released = append(released, c.thumbnails[0])
		c.thumbnails[0] = nil
		c.thumbnails = c.thumbnails[1:]
	}
	evicted := len(released)
	duplicate := slices.ContainsFunc(c.thumbnails, func(e *Tile) bool { return e.Key() == t.Key() })
	if duplicate {
		released = append(released, &t)
	} else {
		c.thumbnails = append(c.thumbnails, &t)
	}
	c.thumbMu.Unlock()

	if evicted > 0 {
		c.evictions.Add(uint64(evicted))
	}
	if duplicate {
		c.duplicates.Add(1)
	}
	for _, r := range released {
		r.release()
	}
}

// ContainsThumbnail reports whether a thumbnail covering region of page is
// cached.
func (c *TileCache) ContainsThumbnail(page int, region geometry.Rect) bool {
	k := Key{Page: page, Region: region}

	c.thumbMu.Lock()
	defer c.thumbMu.Unlock()
	return slices.ContainsFunc(c.thumbnails, func(e *Tile) bool { return e.Key() == k })
}

// Tiles returns a point-in-time copy of the cached tiles: the passive
// generation followed by the active one, each in ascending cache order.
// Every bitmap in the snapshot is retained, so its pixels stay valid after
// eviction until the caller passes the snapshot to ReleaseSnapshot.
func (c *TileCache) Tiles() []Tile {
	c.mu.Lock()
	out := make([]Tile, 0, c.passive.Len()+c.active.Len())
	for _, t := range c.passive {
		out = append(out, t.snapshot())
	}
	split := len(out)
	for _, t := range c.active {
		out = append(out, t.snapshot())
	}
	c.mu.Unlock()

	byOrder := func(a, b Tile) int { return a.CacheOrder - b.CacheOrder }
	slices.SortStableFunc(out[:split], byOrder)
	slices.SortStableFunc(out[split:], byOrder)
	return out
}

// Thumbnails returns a copy of the cached thumbnails in insertion order.
// Bitmaps are retained as in Tiles.
func (c *TileCache) Thumbnails() []Tile {
	c.thumbMu.Lock()
	defer c.thumbMu.Unlock()

	out := make([]Tile, len(c.thumbnails))
	for i, t := range c.thumbnails {
		out[i] = t.snapshot()
	}
	return out
}

// ReleaseSnapshot drops the bitmap references held by a snapshot from Tiles
// or Thumbnails. Each snapshot must be released once, after painting.
func ReleaseSnapshot(tiles []Tile) {
	for i := range tiles {
		tiles[i].Bitmap.Drop()
	}
}

// Len returns the number of tiles in the active and passive generations.
func (c *TileCache) Len() (active, passive int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active.Len(), c.passive.Len()
}

// Clear releases every cached bitmap, tiles and thumbnails, and empties the
// cache.
func (c *TileCache) Clear() {
	c.mu.Lock()
	tiles := make([]*Tile, 0, c.passive.Len()+c.active.Len())
	tiles = append(tiles, c.passive...)
	tiles = append(tiles, c.active...)
	c.passive = nil
	c.active = nil
	c.mu.Unlock()

	c.thumbMu.Lock()
	tiles = append(tiles, c.thumbnails...)
	c.thumbnails = nil
	c.thumbMu.Unlock()

	for _, t := range tiles {
		t.release()
	}
	if len(tiles) > 0 {
		logging.L().Debug("cache: cleared", "released", len(tiles))
	}
}

// Stats holds cache statistics.
type Stats struct {
	Active     int
	Passive    int
	Thumbnails int
	Capacity   int
	Promotions uint64 // passive tiles rescued by PromoteIfPresent
	Misses     uint64 // PromoteIfPresent calls that found nothing
	Evictions  uint64 // tiles and thumbnails evicted for space
	Duplicates uint64 // thumbnails dropped as duplicates
}

// Stats returns current cache statistics.
func (c *TileCache) Stats() Stats {
	active, passive := c.Len()
	c.thumbMu.Lock()
	thumbs := len(c.thumbnails)
	c.thumbMu.Unlock()

	return Stats{
		Active:     active,
		Passive:    passive,
		Thumbnails: thumbs,
		Capacity:   c.capacity,
		Promotions: c.promotions.Load(),
		Misses:     c.misses.Load(),
		Evictions:  c.evictions.Load(),
		Duplicates: c.duplicates.Load(),
	}
}
