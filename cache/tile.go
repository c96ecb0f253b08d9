package cache

import (
	"container/heap"

	"github.com/gogpu/docview/bitmap"
	"github.com/gogpu/docview/geometry"
)

// Key identifies a tile: a page and the normalized region of it that the
// tile covers. Bitmap and cache order are not part of the identity.
type Key struct {
	Page   int
	Region geometry.Rect
}

// Tile is a rendered region of one document page.
type Tile struct {
	// Page is the document page index. User pages that repeat a document
	// page share its tiles.
	Page int

	// Region is the normalized sub-rectangle of the page, bounds in [0, 1].
	Region geometry.Rect

	// Bitmap holds the rendered pixels. Owned by whoever holds the tile;
	// snapshot copies hold a reference instead.
	Bitmap *bitmap.Bitmap

	// Thumbnail marks low-resolution whole-page renders.
	Thumbnail bool

	// CacheOrder is the eviction priority: lower values are evicted first.
	CacheOrder int
}

// Key returns the identity of the tile.
func (t *Tile) Key() Key {
	return Key{Page: t.Page, Region: t.Region}
}

// release frees the tile's bitmap, if any.
func (t *Tile) release() {
	if t.Bitmap != nil {
		t.Bitmap.Release()
	}
}

// snapshot returns a copy of the tile holding its own bitmap reference. The
// caller must hold the lock that guards the tile.
func (t *Tile) snapshot() Tile {
	c := *t
	if c.Bitmap != nil && !c.Bitmap.Retain() {
		c.Bitmap = nil
	}
	return c
}

// tileQueue is a min-heap of tiles ordered by CacheOrder.
type tileQueue []*Tile

var _ heap.Interface = (*tileQueue)(nil)

func (q tileQueue) Len() int           { return len(q) }
func (q tileQueue) Less(i, j int) bool { return q[i].CacheOrder < q[j].CacheOrder }
func (q tileQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }

func (q *tileQueue) Push(x any) { *q = append(*q, x.(*Tile)) }

func (q *tileQueue) Pop() any {
	old := *q
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return t
}

// find returns the heap index of the first tile with the given key, or -1.
func (q tileQueue) find(k Key) int {
	for i, t := range q {
		if t.Key() == k {
			return i
		}
	}
	return -1
}
