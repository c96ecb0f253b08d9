package docview

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/docview/cache"
	"github.com/gogpu/docview/decoder"
	"github.com/gogpu/docview/decoder/imagedoc"
	"github.com/gogpu/docview/geometry"
	"github.com/gogpu/docview/render"
)

func square(n int) *fakeDecoder {
	sizes := make([]geometry.Size, n)
	for i := range sizes {
		sizes[i] = geometry.Size{Width: 512, Height: 512}
	}
	return &fakeDecoder{sizes: sizes}
}

func newTestViewer(t *testing.T, dec *fakeDecoder, viewport geometry.Size, opts ...Option) *Viewer {
	t.Helper()
	v := NewViewer(openDoc(t, dec, viewport, opts...), opts...)
	t.Cleanup(func() { _ = v.Close() })
	return v
}

func flushViewer(t *testing.T, v *Viewer) {
	t.Helper()
	require.NoError(t, v.Flush(context.Background()))
}

func tileKeys(tiles []cache.Tile) []cache.Key {
	keys := make([]cache.Key, len(tiles))
	for i := range tiles {
		keys[i] = tiles[i].Key()
	}
	return keys
}

func TestLoadViewportRendersVisibleGrid(t *testing.T) {
	v := newTestViewer(t, square(1), geometry.Size{Width: 512, Height: 512})

	n := v.LoadViewport(Viewport{Width: 512, Height: 512, Zoom: 1})
	assert.Equal(t, 5, n, "4 parts and 1 thumbnail")
	flushViewer(t, v)

	tiles := v.Tiles()
	require.Len(t, tiles, 4)
	for i, tile := range tiles {
		assert.Equal(t, i+1, tile.CacheOrder)
		assert.Equal(t, 0, tile.Page)
		assert.Equal(t, 256, tile.Bitmap.Width())
		assert.Equal(t, 256, tile.Bitmap.Height())
		assert.InDelta(t, 0.5, tile.Region.Width(), 1e-12)
	}
	assert.Equal(t, geometry.Rect{Left: 0, Top: 0, Right: 0.5, Bottom: 0.5}, tiles[0].Region)
	assert.Equal(t, geometry.Rect{Left: 0.5, Top: 0.5, Right: 1, Bottom: 1}, tiles[3].Region)

	thumbs := v.Thumbnails()
	require.Len(t, thumbs, 1)
	assert.Equal(t, geometry.Full, thumbs[0].Region)
	assert.Equal(t, 154, thumbs[0].Bitmap.Width(), "512 * 0.3 rounded")
}

func TestLoadViewportReusesCachedTiles(t *testing.T) {
	v := newTestViewer(t, square(1), geometry.Size{Width: 512, Height: 512})

	v.LoadViewport(Viewport{Width: 512, Height: 512, Zoom: 1})
	flushViewer(t, v)
	first := tileKeys(v.Tiles())

	n := v.LoadViewport(Viewport{Width: 512, Height: 512, Zoom: 1})
	assert.Zero(t, n, "cached tiles were rendered again")
	flushViewer(t, v)

	assert.Equal(t, first, tileKeys(v.Tiles()))
	active, passive := v.Cache().Len()
	assert.Equal(t, 4, active)
	assert.Zero(t, passive)
	assert.Equal(t, uint64(4), v.Cache().Stats().Promotions)
}

func TestLoadViewportScrollsPastPage(t *testing.T) {
	v := newTestViewer(t, square(3), geometry.Size{Width: 512, Height: 512}, WithPreloadOffset(0))

	v.LoadViewport(Viewport{OffsetY: 1024, Width: 512, Height: 512, Zoom: 1})
	flushViewer(t, v)

	for _, tile := range v.Tiles() {
		assert.Equal(t, 2, tile.Page, "only the third page is visible")
	}
	assert.Len(t, v.Tiles(), 4)
}

func TestLoadViewportZoomedPartial(t *testing.T) {
	v := newTestViewer(t, square(1), geometry.Size{Width: 512, Height: 512}, WithPreloadOffset(0))

	// At zoom 2 the page is 1024 pixels wide, a 4x4 grid; the top-left
	// quarter shows 2x2 cells.
	n := v.LoadViewport(Viewport{Width: 512, Height: 512, Zoom: 2})
	assert.Equal(t, 5, n)
	flushViewer(t, v)

	for _, tile := range v.Tiles() {
		assert.LessOrEqual(t, tile.Region.Right, 0.5)
		assert.LessOrEqual(t, tile.Region.Bottom, 0.5)
		assert.InDelta(t, 0.25, tile.Region.Width(), 1e-12)
	}
}

func TestLoadViewportSharesRepeatedPages(t *testing.T) {
	v := newTestViewer(t, square(2), geometry.Size{Width: 512, Height: 512}, WithPages(1, 1))

	n := v.LoadViewport(Viewport{Width: 512, Height: 1024, Zoom: 1})
	assert.Equal(t, 5, n, "both user pages show document page 1")
	flushViewer(t, v)

	for _, tile := range v.Tiles() {
		assert.Equal(t, 1, tile.Page)
	}
}

func TestLoadViewportRespectsCacheSize(t *testing.T) {
	v := newTestViewer(t, square(1), geometry.Size{Width: 512, Height: 512}, WithCacheSize(3))

	n := v.LoadViewport(Viewport{Width: 512, Height: 512, Zoom: 1})
	assert.Equal(t, 4, n, "3 parts and 1 thumbnail")
	flushViewer(t, v)
	assert.Len(t, v.Tiles(), 3)
}

func TestLoadViewportHorizontal(t *testing.T) {
	v := newTestViewer(t, square(3), geometry.Size{Width: 512, Height: 512},
		WithVertical(false), WithFitPolicy(geometry.FitHeight), WithPreloadOffset(0))

	v.LoadViewport(Viewport{OffsetX: 512, Width: 512, Height: 512, Zoom: 1})
	flushViewer(t, v)

	require.NotEmpty(t, v.Tiles())
	for _, tile := range v.Tiles() {
		assert.Equal(t, 1, tile.Page)
	}
}

func TestLoadViewportReportsBrokenPage(t *testing.T) {
	dec := square(2)
	dec.broken = map[int]bool{0: true}

	var mu sync.Mutex
	var errs []*render.PageError
	v := newTestViewer(t, dec, geometry.Size{Width: 512, Height: 512},
		WithPageErrorHandler(func(err *render.PageError) {
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		}))

	v.LoadViewport(Viewport{Width: 512, Height: 1024, Zoom: 1})
	flushViewer(t, v)

	mu.Lock()
	require.Len(t, errs, 1)
	assert.Equal(t, 0, errs[0].Page)
	mu.Unlock()

	for _, tile := range v.Tiles() {
		assert.Equal(t, 1, tile.Page, "broken page produced a tile")
	}
	assert.Len(t, v.Tiles(), 4)
}

func TestViewerClampZoom(t *testing.T) {
	v := newTestViewer(t, square(1), geometry.Size{Width: 10, Height: 10}, WithZoomRange(1, 4))

	tests := []struct {
		in, want float64
	}{
		{0, 1},
		{-3, 1},
		{0.5, 1},
		{2.5, 2.5},
		{8, 4},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, v.ClampZoom(tt.in), "ClampZoom(%v)", tt.in)
	}
}

func TestViewerCloseReleasesEverything(t *testing.T) {
	dec := square(1)
	v := NewViewer(openDoc(t, dec, geometry.Size{Width: 512, Height: 512}))

	v.LoadViewport(Viewport{Width: 512, Height: 512, Zoom: 1})
	flushViewer(t, v)
	tiles := append(v.Tiles(), v.Thumbnails()...)
	require.Len(t, tiles, 5)

	require.NoError(t, v.Close())
	for _, tile := range tiles {
		assert.True(t, tile.Bitmap.Released())
		assert.NotNil(t, tile.Bitmap.RGBA(), "snapshot lost its pixels before release")
	}
	cache.ReleaseSnapshot(tiles)
	for _, tile := range tiles {
		assert.Nil(t, tile.Bitmap.Pix())
	}
	assert.True(t, dec.lastHandle().closed.Load())
	assert.Zero(t, v.LoadViewport(Viewport{Width: 512, Height: 512, Zoom: 1}))
}

func TestViewerWithImageDocument(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 300, 400))
	for y := range 400 {
		for x := range 300 {
			img.Set(x, y, color.RGBA{G: 0xff, A: 0xff})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	src := decoder.BytesSource{Label: "scan", Files: [][]byte{buf.Bytes(), buf.Bytes()}}
	s := Open(context.Background(), imagedoc.New(), src, geometry.Size{Width: 300, Height: 400}, nil, WithBestQuality(true))
	doc, err := s.Wait(context.Background())
	require.NoError(t, err)

	v := NewViewer(doc, WithBestQuality(true))
	defer v.Close()

	n := v.LoadViewport(Viewport{Width: 300, Height: 400, Zoom: 1})
	assert.Positive(t, n)
	flushViewer(t, v)

	tiles := v.Tiles()
	require.NotEmpty(t, tiles)
	bm := tiles[0].Bitmap
	c := color.RGBAModel.Convert(bm.At(bm.Width()/2, bm.Height()/2)).(color.RGBA)
	assert.Equal(t, color.RGBA{G: 0xff, A: 0xff}, c)
}
