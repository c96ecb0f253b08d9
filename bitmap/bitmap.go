// Package bitmap provides the raster buffers that rendered tiles are drawn
// into.
//
// A Bitmap has exactly one owner at a time. Ownership moves from the
// allocator to the render pipeline, from the pipeline to the tile cache, and
// ends when the owner calls Release. Readers that outlive the owner, such as
// painters working from a cache snapshot, take a reference with Retain and
// give it back with Drop. The pixel buffer returns to its allocator once the
// owner and every reader are done; the free hook runs exactly once.
package bitmap

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"sync/atomic"

	"github.com/gogpu/docview/internal/logging"
)

// Common errors for bitmap operations.
var (
	// ErrInvalidDimensions is returned when width or height is non-positive.
	ErrInvalidDimensions = errors.New("bitmap: invalid dimensions")

	// ErrInvalidFormat is returned when the format is not recognized.
	ErrInvalidFormat = errors.New("bitmap: invalid format")

	// ErrAllocation is returned when the pixel buffer cannot be created.
	ErrAllocation = errors.New("bitmap: allocation failed")

	// ErrDataTooSmall is returned when provided data is smaller than required.
	ErrDataTooSmall = errors.New("bitmap: data buffer too small")
)

// MaxBytes is the largest pixel buffer New will allocate.
const MaxBytes = 512 << 20

// Bitmap is a raster buffer with a fixed size and pixel format.
//
// Bitmap implements draw.Image so decoders can rasterize into it with any
// image drawing library. Pixel access is not synchronized; only the current
// owner may read or write.
type Bitmap struct {
	pix    []byte
	width  int
	height int
	stride int
	format Format

	released atomic.Bool
	refs     atomic.Int32 // owner plus retained readers; 0 once freed
	onFree   func(pix []byte)
}

// New allocates a zeroed bitmap. It returns ErrAllocation (wrapped) when the
// buffer would exceed MaxBytes.
func New(width, height int, format Format) (*Bitmap, error) {
	return alloc(width, height, format, nil)
}

// FromRaw wraps existing pixel data without copying. onFree, if not nil, is
// called with the data when the bitmap is released.
func FromRaw(pix []byte, width, height int, format Format, onFree func(pix []byte)) (*Bitmap, error) {
	if err := validate(width, height, format); err != nil {
		return nil, err
	}
	stride := format.RowBytes(width)
	if len(pix) < stride*height {
		return nil, ErrDataTooSmall
	}
	b := &Bitmap{
		pix:    pix[:stride*height],
		width:  width,
		height: height,
		stride: stride,
		format: format,
		onFree: onFree,
	}
	b.refs.Store(1)
	return b, nil
}

func validate(width, height int, format Format) error {
	if width <= 0 || height <= 0 {
		return ErrInvalidDimensions
	}
	if !format.IsValid() {
		return ErrInvalidFormat
	}
	return nil
}

func byteSize(width, height int, format Format) (int, error) {
	size := uint64(width) * uint64(height) * uint64(format.BytesPerPixel()) //nolint:gosec // validated positive
	if size > MaxBytes || size > math.MaxInt {
		return 0, fmt.Errorf("%w: %dx%d %s needs %d bytes", ErrAllocation, width, height, format, size)
	}
	return int(size), nil
}

func alloc(width, height int, format Format, onFree func([]byte)) (b *Bitmap, err error) {
	if err := validate(width, height, format); err != nil {
		return nil, err
	}
	size, err := byteSize(width, height, format)
	if err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			b, err = nil, fmt.Errorf("%w: %v", ErrAllocation, r)
		}
	}()
	b = &Bitmap{
		pix:    make([]byte, size),
		width:  width,
		height: height,
		stride: format.RowBytes(width),
		format: format,
		onFree: onFree,
	}
	b.refs.Store(1)
	return b, nil
}

// Width returns the width of the bitmap.
func (b *Bitmap) Width() int { return b.width }

// Height returns the height of the bitmap.
func (b *Bitmap) Height() int { return b.height }

// Stride returns the number of bytes per row.
func (b *Bitmap) Stride() int { return b.stride }

// Format returns the pixel format.
func (b *Bitmap) Format() Format { return b.format }

// ByteSize returns the size of the pixel data in bytes.
func (b *Bitmap) ByteSize() int { return b.stride * b.height }

// Pix returns the raw pixel data, or nil once the buffer has been freed.
func (b *Bitmap) Pix() []byte {
	if b.freed() {
		return nil
	}
	return b.pix
}

// Released reports whether the owner has called Release. The pixels stay
// readable while a reference taken with Retain is held.
func (b *Bitmap) Released() bool { return b.released.Load() }

func (b *Bitmap) freed() bool { return b.refs.Load() <= 0 }

// Release ends ownership of the bitmap. It returns true on the first call.
// Any later call is a no-op that logs a warning and returns false. The owner
// must not use the bitmap after Release.
func (b *Bitmap) Release() bool {
	if b == nil {
		return false
	}
	if !b.released.CompareAndSwap(false, true) {
		logging.L().Warn("bitmap: release of already released bitmap",
			"width", b.width, "height", b.height, "format", b.format.String())
		return false
	}
	b.unref()
	return true
}

// Retain takes a read reference that keeps the pixel buffer from being freed
// or reused until Drop. It reports false if the buffer is already freed.
func (b *Bitmap) Retain() bool {
	if b == nil {
		return false
	}
	for {
		n := b.refs.Load()
		if n <= 0 {
			return false
		}
		if b.refs.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// Drop gives back a reference taken with Retain.
func (b *Bitmap) Drop() {
	if b == nil {
		return
	}
	b.unref()
}

func (b *Bitmap) unref() {
	switch n := b.refs.Add(-1); {
	case n == 0:
		if b.onFree != nil {
			b.onFree(b.pix)
		}
	case n < 0:
		b.refs.Store(0)
		logging.L().Warn("bitmap: drop without matching retain",
			"width", b.width, "height", b.height, "format", b.format.String())
	}
}

// Clear zeroes all pixel data.
func (b *Bitmap) Clear() {
	if b.freed() {
		return
	}
	clear(b.pix)
}

// ColorModel implements image.Image.
func (b *Bitmap) ColorModel() color.Model { return b.format.ColorModel() }

// Bounds implements image.Image.
func (b *Bitmap) Bounds() image.Rectangle { return image.Rect(0, 0, b.width, b.height) }

// At implements image.Image. A freed bitmap reads as transparent.
func (b *Bitmap) At(x, y int) color.Color {
	if x < 0 || x >= b.width || y < 0 || y >= b.height || b.freed() {
		if b.format == RGB565 {
			return Color565(0)
		}
		return color.RGBA{}
	}
	i := y*b.stride + x*b.format.BytesPerPixel()
	if b.format == RGB565 {
		return Color565(uint16(b.pix[i]) | uint16(b.pix[i+1])<<8)
	}
	return color.RGBA{R: b.pix[i], G: b.pix[i+1], B: b.pix[i+2], A: b.pix[i+3]}
}

// Set implements draw.Image. Writes to a freed bitmap are ignored.
func (b *Bitmap) Set(x, y int, c color.Color) {
	if x < 0 || x >= b.width || y < 0 || y >= b.height || b.freed() {
		return
	}
	i := y*b.stride + x*b.format.BytesPerPixel()
	if b.format == RGB565 {
		v := RGB565Model.Convert(c).(Color565)
		b.pix[i] = uint8(v)
		b.pix[i+1] = uint8(v >> 8)
		return
	}
	rgba := color.RGBAModel.Convert(c).(color.RGBA)
	b.pix[i+0] = rgba.R
	b.pix[i+1] = rgba.G
	b.pix[i+2] = rgba.B
	b.pix[i+3] = rgba.A
}

// RGBA returns an image.RGBA view of the bitmap, or nil once the buffer has
// been freed. For ARGB8888 the view shares the pixel data; for RGB565 it is
// a converted copy.
func (b *Bitmap) RGBA() *image.RGBA {
	if b.freed() {
		return nil
	}
	if b.format == ARGB8888 {
		return &image.RGBA{Pix: b.pix, Stride: b.stride, Rect: b.Bounds()}
	}
	img := image.NewRGBA(b.Bounds())
	for y := range b.height {
		for x := range b.width {
			img.Set(x, y, b.At(x, y))
		}
	}
	return img
}
