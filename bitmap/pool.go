package bitmap

import (
	"sync"
	"sync/atomic"
)

// Allocator creates bitmaps for the render pipeline.
type Allocator interface {
	Allocate(width, height int, format Format) (*Bitmap, error)
}

// HeapAllocator allocates a fresh bitmap on every call. Released buffers are
// left to the garbage collector.
type HeapAllocator struct{}

// Allocate implements Allocator.
func (HeapAllocator) Allocate(width, height int, format Format) (*Bitmap, error) {
	return New(width, height, format)
}

// Pool is an Allocator that reuses the pixel buffers of released bitmaps.
//
// Buffers are grouped by dimensions and format. A released bitmap hands its
// buffer back to the pool; the next Allocate with the same shape wraps the
// buffer in a new Bitmap, so stale references to the old Bitmap still report
// Released.
//
// Thread safety: all methods are safe for concurrent use.
type Pool struct {
	mu      sync.Mutex
	buckets map[poolKey][][]byte
	maxSize int // max buffers per bucket, 0 means unlimited

	allocated atomic.Int64
	reused    atomic.Int64
	released  atomic.Int64
}

// poolKey identifies a bucket of identical bitmap specifications.
type poolKey struct {
	width  int
	height int
	format Format
}

// NewPool creates a pool retaining at most maxPerBucket buffers for each
// size and format. A maxPerBucket of 0 means unlimited.
func NewPool(maxPerBucket int) *Pool {
	return &Pool{
		buckets: make(map[poolKey][][]byte),
		maxSize: maxPerBucket,
	}
}

// Allocate returns a zeroed bitmap, reusing a pooled buffer when one of the
// same shape is available.
func (p *Pool) Allocate(width, height int, format Format) (*Bitmap, error) {
	if err := validate(width, height, format); err != nil {
		return nil, err
	}
	key := poolKey{width: width, height: height, format: format}

	p.mu.Lock()
	bucket := p.buckets[key]
	if n := len(bucket); n > 0 {
		pix := bucket[n-1]
		p.buckets[key] = bucket[:n-1]
		p.mu.Unlock()

		clear(pix)
		p.reused.Add(1)
		return FromRaw(pix, width, height, format, p.put(key))
	}
	p.mu.Unlock()

	b, err := alloc(width, height, format, p.put(key))
	if err != nil {
		return nil, err
	}
	p.allocated.Add(1)
	return b, nil
}

// put returns the release hook for bitmaps of the given shape.
func (p *Pool) put(key poolKey) func([]byte) {
	return func(pix []byte) {
		p.released.Add(1)

		p.mu.Lock()
		defer p.mu.Unlock()

		bucket := p.buckets[key]
		if p.maxSize > 0 && len(bucket) >= p.maxSize {
			return
		}
		p.buckets[key] = append(bucket, pix)
	}
}

// Len returns the number of buffers currently held by the pool.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, b := range p.buckets {
		n += len(b)
	}
	return n
}

// PoolStats holds pool counters.
type PoolStats struct {
	Allocated int64 // buffers created
	Reused    int64 // allocations served from the pool
	Released  int64 // bitmaps released back to the pool
}

// Stats returns a snapshot of the pool counters.
func (p *Pool) Stats() PoolStats {
	return PoolStats{
		Allocated: p.allocated.Load(),
		Reused:    p.reused.Load(),
		Released:  p.released.Load(),
	}
}
