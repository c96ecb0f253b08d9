package docview

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/gogpu/docview/decoder"
	"github.com/gogpu/docview/geometry"
)

var errCorrupt = errors.New("corrupt page")

// fakeDecoder opens fakeHandles with fixed page sizes.
type fakeDecoder struct {
	sizes   []geometry.Size
	broken  map[int]bool
	meta    decoder.Meta
	outline []decoder.Bookmark
	links   map[int][]decoder.Link
	openErr error

	// block, when set, delays Open until it is closed.
	block chan struct{}

	mu      sync.Mutex
	handles []*fakeHandle
}

func (d *fakeDecoder) Open(ctx context.Context, src decoder.Source, password string) (decoder.Handle, error) {
	if d.block != nil {
		<-d.block
	}
	if d.openErr != nil {
		return nil, d.openErr
	}
	h := &fakeHandle{d: d}
	d.mu.Lock()
	d.handles = append(d.handles, h)
	d.mu.Unlock()
	return h, nil
}

func (d *fakeDecoder) lastHandle() *fakeHandle {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.handles) == 0 {
		return nil
	}
	return d.handles[len(d.handles)-1]
}

type fakeHandle struct {
	d *fakeDecoder

	// inUse detects concurrent decoder calls.
	inUse   atomic.Int32
	overlap atomic.Bool

	opens  atomic.Int32
	closed atomic.Bool
}

func (h *fakeHandle) enter() func() {
	if h.inUse.Add(1) > 1 {
		h.overlap.Store(true)
	}
	return func() { h.inUse.Add(-1) }
}

func (h *fakeHandle) PageCount() int { return len(h.d.sizes) }

func (h *fakeHandle) PageSize(page int) (geometry.Size, error) {
	if page < 0 || page >= len(h.d.sizes) {
		return geometry.Size{}, decoder.ErrPageRange
	}
	return h.d.sizes[page], nil
}

func (h *fakeHandle) OpenPage(page int) error {
	defer h.enter()()
	h.opens.Add(1)
	if page < 0 || page >= len(h.d.sizes) {
		return fmt.Errorf("%w: %d", decoder.ErrPageRange, page)
	}
	if h.d.broken[page] {
		return errCorrupt
	}
	return nil
}

func (h *fakeHandle) Rasterize(dst draw.Image, page int, bounds image.Rectangle, _ bool) error {
	defer h.enter()()
	if h.closed.Load() {
		return decoder.ErrClosed
	}
	shade := uint8(40 * (page + 1))
	draw.Draw(dst, bounds.Intersect(dst.Bounds()), image.NewUniform(color.RGBA{R: shade, A: 0xff}), image.Point{}, draw.Src)
	return nil
}

func (h *fakeHandle) Metadata() decoder.Meta        { return h.d.meta }
func (h *fakeHandle) Bookmarks() []decoder.Bookmark { return h.d.outline }

func (h *fakeHandle) PageLinks(page int) []decoder.Link {
	defer h.enter()()
	return h.d.links[page]
}

func (h *fakeHandle) Close() error {
	h.closed.Store(true)
	return nil
}

type namedSource string

func (s namedSource) Name() string { return string(s) }

func (namedSource) Parts(context.Context) ([]decoder.Part, error) { return nil, nil }

// openDoc opens a document through a Session and fails the test on error.
func openDoc(t *testing.T, dec decoder.Decoder, viewport geometry.Size, opts ...Option) *Document {
	t.Helper()
	s := Open(context.Background(), dec, namedSource("test.doc"), viewport, nil, opts...)
	doc, err := s.Wait(context.Background())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return doc
}
