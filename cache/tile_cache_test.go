package cache

import (
	"image"
	"image/color"
	"image/draw"
	"sort"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/gogpu/docview/bitmap"
	"github.com/gogpu/docview/geometry"
)

// releaseCounter counts bitmap releases per tile and in total.
type releaseCounter struct {
	total atomic.Int64

	mu    sync.Mutex
	perID map[int]int
}

func newReleaseCounter() *releaseCounter {
	return &releaseCounter{perID: make(map[int]int)}
}

func (rc *releaseCounter) count(id int) int {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.perID[id]
}

// tile creates a tile whose bitmap reports releases to rc under id.
func (rc *releaseCounter) tile(t *testing.T, id, page int, region geometry.Rect, order int) Tile {
	t.Helper()
	bm, err := bitmap.FromRaw(make([]byte, 4), 1, 1, bitmap.ARGB8888, func([]byte) {
		rc.total.Add(1)
		rc.mu.Lock()
		rc.perID[id]++
		rc.mu.Unlock()
	})
	if err != nil {
		t.Fatal(err)
	}
	return Tile{Page: page, Region: region, Bitmap: bm, CacheOrder: order}
}

func region(i int) geometry.Rect {
	f := float64(i%4) / 4
	return geometry.Rect{Left: f, Top: 0, Right: f + 0.25, Bottom: 1}
}

func keys(tiles []Tile) []Key {
	out := make([]Key, len(tiles))
	for i := range tiles {
		out[i] = tiles[i].Key()
	}
	return out
}

func orders(tiles []Tile) []int {
	out := make([]int, len(tiles))
	for i, t := range tiles {
		out[i] = t.CacheOrder
	}
	return out
}

func TestNewDefaults(t *testing.T) {
	c := New()
	if c.Capacity() != DefaultCapacity || c.ThumbnailCapacity() != DefaultThumbnailCapacity {
		t.Errorf("capacities = %d/%d, want %d/%d",
			c.Capacity(), c.ThumbnailCapacity(), DefaultCapacity, DefaultThumbnailCapacity)
	}
	c = New(WithCapacity(0), WithThumbnailCapacity(-3))
	if c.Capacity() != DefaultCapacity || c.ThumbnailCapacity() != DefaultThumbnailCapacity {
		t.Error("invalid capacities should fall back to defaults")
	}
}

func TestInsertTileBoundedByCapacity(t *testing.T) {
	const capacity = 5
	rc := newReleaseCounter()
	c := New(WithCapacity(capacity))

	inserted := 0
	for i := range 40 {
		if i%7 == 0 {
			c.BeginNewGeneration()
		}
		c.InsertTile(rc.tile(t, i, i, region(i), i))
		inserted++

		active, passive := c.Len()
		if active+passive >= capacity+1 {
			t.Fatalf("after insert %d: active+passive = %d, want <= %d", i, active+passive, capacity)
		}
		held := active + passive
		if got := rc.total.Load(); got != int64(inserted-held) {
			t.Fatalf("after insert %d: released %d, want %d", i, got, inserted-held)
		}
	}
	for i := range 40 {
		if n := rc.count(i); n > 1 {
			t.Errorf("tile %d released %d times", i, n)
		}
	}
}

func TestInsertTileCapacityBound(t *testing.T) {
	rc := newReleaseCounter()
	c := New(WithCapacity(3))
	for i := range 10 {
		c.InsertTile(rc.tile(t, i, 0, region(i), i))
		active, passive := c.Len()
		// The new tile is inserted after eviction made active+passive < capacity.
		if active+passive > 3 {
			t.Fatalf("cache holds %d tiles, capacity 3", active+passive)
		}
	}
}

func TestEvictionDrainsPassiveFirst(t *testing.T) {
	rc := newReleaseCounter()
	c := New(WithCapacity(4))

	c.InsertTile(rc.tile(t, 10, 0, region(0), 10))
	c.InsertTile(rc.tile(t, 11, 0, region(1), 11))
	c.InsertTile(rc.tile(t, 12, 0, region(2), 12))
	c.BeginNewGeneration()

	c.InsertTile(rc.tile(t, 1, 1, region(0), 1))
	c.InsertTile(rc.tile(t, 2, 1, region(1), 2))

	if rc.count(10) != 1 {
		t.Error("oldest passive tile was not evicted")
	}
	if rc.count(1) != 0 || rc.count(2) != 0 {
		t.Error("active tiles evicted while passive tiles remained")
	}

	// Fill further: passive must be emptied entirely before active loses a tile.
	c.InsertTile(rc.tile(t, 3, 1, region(2), 3))
	c.InsertTile(rc.tile(t, 4, 1, region(3), 4))
	if rc.count(11) != 1 || rc.count(12) != 1 {
		t.Error("passive generation not fully drained")
	}
	if rc.count(1) != 0 {
		t.Error("active tile evicted before passive was empty")
	}

	c.InsertTile(rc.tile(t, 5, 2, region(0), 5))
	if rc.count(1) != 1 {
		t.Error("lowest order active tile should be evicted once passive is empty")
	}
}

func TestEvictionTiesDoNotPanic(t *testing.T) {
	rc := newReleaseCounter()
	c := New(WithCapacity(3))
	for i := range 10 {
		c.InsertTile(rc.tile(t, i, i, region(i), 7))
	}
	if active, passive := c.Len(); active+passive != 3 {
		t.Errorf("cache holds %d tiles, want 3", active+passive)
	}
}

func TestBeginNewGenerationKeepsMembership(t *testing.T) {
	rc := newReleaseCounter()
	c := New(WithCapacity(20))
	for i := range 4 {
		c.InsertTile(rc.tile(t, i, i, region(i), i))
	}
	c.BeginNewGeneration()
	for i := 4; i < 7; i++ {
		c.InsertTile(rc.tile(t, i, i, region(i), i))
	}

	sorted := func(ks []Key) []Key {
		sort.Slice(ks, func(i, j int) bool { return ks[i].Page < ks[j].Page })
		return ks
	}
	before := sorted(keys(c.Tiles()))
	c.BeginNewGeneration()
	after := sorted(keys(c.Tiles()))

	if diff := cmp.Diff(before, after); diff != "" {
		t.Errorf("membership changed (-before +after):\n%s", diff)
	}
	if active, passive := c.Len(); active != 0 || passive != 7 {
		t.Errorf("Len = %d/%d, want 0/7", active, passive)
	}

	c.BeginNewGeneration()
	if active, passive := c.Len(); active != 0 || passive != 7 {
		t.Errorf("second BeginNewGeneration: Len = %d/%d, want 0/7", active, passive)
	}
	if rc.total.Load() != 0 {
		t.Error("BeginNewGeneration released bitmaps")
	}
}

func TestPromoteIfPresent(t *testing.T) {
	rc := newReleaseCounter()
	c := New()
	r := geometry.Rect{Left: 0, Top: 0, Right: 0.5, Bottom: 0.5}

	c.InsertTile(rc.tile(t, 1, 3, r, 5))
	c.BeginNewGeneration()

	if !c.PromoteIfPresent(3, r, 42) {
		t.Fatal("passive tile not found")
	}
	if active, passive := c.Len(); active != 1 || passive != 0 {
		t.Fatalf("after promote Len = %d/%d, want 1/0", active, passive)
	}
	if got := c.Tiles()[0].CacheOrder; got != 42 {
		t.Errorf("CacheOrder = %d, want 42", got)
	}

	if !c.PromoteIfPresent(3, r, 99) {
		t.Fatal("active tile not found")
	}
	if got := c.Tiles()[0].CacheOrder; got != 42 {
		t.Errorf("promoting an active tile changed its order to %d", got)
	}
	if active, passive := c.Len(); active != 1 || passive != 0 {
		t.Errorf("Len = %d/%d, want 1/0", active, passive)
	}

	if c.PromoteIfPresent(3, geometry.Full, 1) {
		t.Error("tile with another region reported present")
	}
	if c.PromoteIfPresent(4, r, 1) {
		t.Error("tile of another page reported present")
	}

	st := c.Stats()
	if st.Promotions != 1 || st.Misses != 2 {
		t.Errorf("Stats = %+v, want 1 promotion and 2 misses", st)
	}
}

func TestPromotedTileSurvivesEviction(t *testing.T) {
	rc := newReleaseCounter()
	c := New(WithCapacity(2))
	c.InsertTile(rc.tile(t, 0, 0, region(0), 0))
	c.InsertTile(rc.tile(t, 1, 1, region(1), 1))
	c.BeginNewGeneration()

	c.PromoteIfPresent(0, region(0), 100)
	c.InsertTile(rc.tile(t, 2, 2, region(2), 2))

	if rc.count(1) != 1 {
		t.Error("unpromoted passive tile should be evicted")
	}
	if rc.count(0) != 0 {
		t.Error("promoted tile was evicted")
	}
}

func TestTilesSnapshotOrder(t *testing.T) {
	rc := newReleaseCounter()
	c := New()
	c.InsertTile(rc.tile(t, 0, 0, region(0), 9))
	c.InsertTile(rc.tile(t, 1, 1, region(1), 3))
	c.BeginNewGeneration()
	c.InsertTile(rc.tile(t, 2, 2, region(2), 1))
	c.InsertTile(rc.tile(t, 3, 3, region(3), 7))

	if diff := cmp.Diff([]int{3, 9, 1, 7}, orders(c.Tiles())); diff != "" {
		t.Errorf("snapshot order mismatch (-want +got):\n%s", diff)
	}

	snap := c.Tiles()
	snap[0].CacheOrder = 1000
	if c.Tiles()[0].CacheOrder == 1000 {
		t.Error("snapshot aliases cache entries")
	}
}

func TestThumbnailCapacityFIFO(t *testing.T) {
	rc := newReleaseCounter()
	c := New(WithThumbnailCapacity(3))
	for i := range 5 {
		th := rc.tile(t, i, i, geometry.Full, 100-i)
		th.Thumbnail = true
		c.InsertThumbnail(th)
		snap := c.Thumbnails()
		ReleaseSnapshot(snap)
		if n := len(snap); n > 3 {
			t.Fatalf("thumbnail count %d exceeds capacity", n)
		}
	}

	var pages []int
	for _, th := range c.Thumbnails() {
		pages = append(pages, th.Page)
	}
	if diff := cmp.Diff([]int{2, 3, 4}, pages); diff != "" {
		t.Errorf("thumbnails mismatch (-want +got):\n%s", diff)
	}
	if rc.count(0) != 1 || rc.count(1) != 1 || rc.count(2) != 0 {
		t.Error("oldest inserted thumbnails should be released, regardless of order")
	}
}

// Duplicate thumbnails keep the first writer: the new tile is released and
// the cached one keeps its position.
func TestThumbnailDuplicateKeepsFirst(t *testing.T) {
	rc := newReleaseCounter()
	c := New(WithThumbnailCapacity(4))
	c.InsertThumbnail(rc.tile(t, 1, 0, geometry.Full, 0))
	c.InsertThumbnail(rc.tile(t, 2, 1, geometry.Full, 0))
	c.InsertThumbnail(rc.tile(t, 3, 0, geometry.Full, 5))

	if rc.count(3) != 1 {
		t.Error("duplicate thumbnail bitmap was not released")
	}
	if rc.count(1) != 0 {
		t.Error("existing thumbnail was released")
	}
	thumbs := c.Thumbnails()
	if len(thumbs) != 2 || thumbs[0].Page != 0 || thumbs[0].CacheOrder != 0 || thumbs[1].Page != 1 {
		t.Errorf("thumbnails = %+v, want original entries in original order", thumbs)
	}
	if !c.ContainsThumbnail(0, geometry.Full) {
		t.Error("ContainsThumbnail(0) = false")
	}
	if c.ContainsThumbnail(2, geometry.Full) {
		t.Error("ContainsThumbnail(2) = true")
	}
	if c.Stats().Duplicates != 1 {
		t.Errorf("Duplicates = %d, want 1", c.Stats().Duplicates)
	}
}

func TestClearReleasesEverythingOnce(t *testing.T) {
	rc := newReleaseCounter()
	c := New(WithCapacity(10), WithThumbnailCapacity(4))
	for i := range 6 {
		c.InsertTile(rc.tile(t, i, i, region(i), i))
		if i == 2 {
			c.BeginNewGeneration()
		}
	}
	for i := 6; i < 9; i++ {
		c.InsertThumbnail(rc.tile(t, i, i, geometry.Full, 0))
	}

	c.Clear()
	for i := range 9 {
		if n := rc.count(i); n != 1 {
			t.Errorf("bitmap %d released %d times, want 1", i, n)
		}
	}
	if active, passive := c.Len(); active != 0 || passive != 0 || len(c.Thumbnails()) != 0 {
		t.Error("cache not empty after Clear")
	}

	c.Clear()
	if rc.total.Load() != 9 {
		t.Errorf("second Clear released again: total %d", rc.total.Load())
	}

	// The cache is usable after Clear.
	c.InsertTile(rc.tile(t, 20, 0, geometry.Full, 0))
	if active, _ := c.Len(); active != 1 {
		t.Error("insert after Clear failed")
	}
}

func TestConcurrentAccessReleasesExactlyOnce(t *testing.T) {
	rc := newReleaseCounter()
	c := New(WithCapacity(16), WithThumbnailCapacity(4))

	const producers, perProducer = 8, 200
	var wg sync.WaitGroup
	for p := range producers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perProducer {
				id := p*perProducer + i
				if i%10 == 0 {
					th := rc.tile(t, id, id%5, geometry.Full, 0)
					c.InsertThumbnail(th)
					continue
				}
				c.InsertTile(rc.tile(t, id, id%13, region(id), id))
				c.PromoteIfPresent((id+1)%13, region(id+1), id)
			}
		}()
	}
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				c.BeginNewGeneration()
				ReleaseSnapshot(c.Tiles())
				ReleaseSnapshot(c.Thumbnails())
				_ = c.ContainsThumbnail(1, geometry.Full)
			}
		}()
	}
	wg.Wait()

	active, passive := c.Len()
	if active+passive >= 16+1 {
		t.Errorf("cache holds %d tiles, capacity 16", active+passive)
	}

	c.Clear()
	if got := rc.total.Load(); got != producers*perProducer {
		t.Errorf("released %d bitmaps, want %d", got, producers*perProducer)
	}
	for id := range producers * perProducer {
		if n := rc.count(id); n != 1 {
			t.Fatalf("bitmap %d released %d times", id, n)
		}
	}
}

func TestSnapshotSurvivesEvictionAndPoolReuse(t *testing.T) {
	pool := bitmap.NewPool(0)
	c := New(WithCapacity(2))
	blue := color.RGBA{B: 255, A: 255}
	red := color.RGBA{R: 255, A: 255}

	insert := func(page int, fill color.Color) {
		t.Helper()
		bm, err := pool.Allocate(2, 2, bitmap.ARGB8888)
		if err != nil {
			t.Fatal(err)
		}
		draw.Draw(bm, bm.Bounds(), image.NewUniform(fill), image.Point{}, draw.Src)
		c.InsertTile(Tile{Page: page, Region: geometry.Full, Bitmap: bm, CacheOrder: page})
	}

	insert(0, blue)
	snap := c.Tiles()
	if len(snap) != 1 || snap[0].Page != 0 {
		t.Fatalf("snapshot = %+v, want page 0", snap)
	}

	// Evicts page 0 and lets the pool hand out a buffer of the same shape.
	insert(5, red)
	insert(6, red)
	if c.Stats().Evictions == 0 {
		t.Fatal("page 0 was not evicted")
	}

	bm := snap[0].Bitmap
	if pool.Len() != 0 {
		t.Error("pool recycled a buffer a snapshot still reads")
	}
	if !bm.Released() {
		t.Error("evicted bitmap not released by the cache")
	}
	if got := bm.At(0, 0); got != blue {
		t.Errorf("snapshot At = %v after eviction, want %v", got, blue)
	}
	if img := bm.RGBA(); img == nil || img.RGBAAt(1, 1) != blue {
		t.Errorf("snapshot RGBA lost its pixels after eviction")
	}

	ReleaseSnapshot(snap)
	if pool.Len() != 1 {
		t.Errorf("pool Len = %d after snapshot release, want 1", pool.Len())
	}
	if bm.RGBA() != nil {
		t.Error("freed bitmap still exposes pixels")
	}
}
