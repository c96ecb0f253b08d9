package bitmap

import "image/color"

// Format represents a pixel storage format.
type Format uint8

const (
	// ARGB8888 stores four 8-bit channels per pixel in R, G, B, A byte
	// order, compatible with image.RGBA. Used for best-quality rendering.
	ARGB8888 Format = iota

	// RGB565 packs a pixel into 16 bits (5 red, 6 green, 5 blue, little
	// endian) with no alpha. Halves the footprint of ARGB8888.
	RGB565

	// formatCount is the number of formats (for internal use).
	formatCount
)

// FormatInfo contains metadata about a pixel format.
type FormatInfo struct {
	// BytesPerPixel is the number of bytes per pixel.
	BytesPerPixel int

	// HasAlpha indicates if the format has an alpha channel.
	HasAlpha bool
}

var formatInfoTable = [formatCount]FormatInfo{
	ARGB8888: {BytesPerPixel: 4, HasAlpha: true},
	RGB565:   {BytesPerPixel: 2, HasAlpha: false},
}

// ForQuality returns ARGB8888 when best quality is requested, RGB565
// otherwise.
func ForQuality(best bool) Format {
	if best {
		return ARGB8888
	}
	return RGB565
}

// Info returns the FormatInfo for this format.
func (f Format) Info() FormatInfo {
	if f >= formatCount {
		return FormatInfo{}
	}
	return formatInfoTable[f]
}

// BytesPerPixel returns the number of bytes per pixel for this format.
func (f Format) BytesPerPixel() int {
	return f.Info().BytesPerPixel
}

// HasAlpha returns true if this format has an alpha channel.
func (f Format) HasAlpha() bool {
	return f.Info().HasAlpha
}

// IsValid returns true if the format is a valid known format.
func (f Format) IsValid() bool {
	return f < formatCount
}

// RowBytes calculates the number of bytes needed for a row of the given width.
func (f Format) RowBytes(width int) int {
	return width * f.BytesPerPixel()
}

// String returns a string representation of the format.
func (f Format) String() string {
	switch f {
	case ARGB8888:
		return "ARGB8888"
	case RGB565:
		return "RGB565"
	default:
		return "Unknown"
	}
}

// ColorModel returns the color model matching the format.
func (f Format) ColorModel() color.Model {
	if f == RGB565 {
		return RGB565Model
	}
	return color.RGBAModel
}

// Color565 is a 16-bit opaque color.
type Color565 uint16

// RGBA implements color.Color.
func (c Color565) RGBA() (r, g, b, a uint32) {
	r5 := uint32(c>>11) & 0x1f
	g6 := uint32(c>>5) & 0x3f
	b5 := uint32(c) & 0x1f
	r = (r5<<3 | r5>>2) * 0x101
	g = (g6<<2 | g6>>4) * 0x101
	b = (b5<<3 | b5>>2) * 0x101
	return r, g, b, 0xffff
}

// RGB565Model converts colors to Color565, compositing onto black.
var RGB565Model = color.ModelFunc(func(c color.Color) color.Color {
	if c, ok := c.(Color565); ok {
		return c
	}
	r, g, b, _ := c.RGBA()
	return Color565((r>>11)<<11 | (g>>10)<<5 | b>>11)
})
