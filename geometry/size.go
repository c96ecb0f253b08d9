package geometry

import "math"

// Size is an integer page size as reported by a decoder.
type Size struct {
	Width  int
	Height int
}

// SizeF is a scaled page size in view pixels.
type SizeF struct {
	Width  float64
	Height float64
}

// Scale returns the size multiplied by zoom.
func (s SizeF) Scale(zoom float64) SizeF {
	return SizeF{Width: s.Width * zoom, Height: s.Height * zoom}
}

// Rect is a rectangle with float64 bounds. Page-relative regions use bounds
// in [0, 1]; Full covers a whole page.
type Rect struct {
	Left, Top, Right, Bottom float64
}

// Full is the normalized region covering an entire page.
var Full = Rect{Left: 0, Top: 0, Right: 1, Bottom: 1}

// Width returns Right - Left.
func (r Rect) Width() float64 { return r.Right - r.Left }

// Height returns Bottom - Top.
func (r Rect) Height() float64 { return r.Bottom - r.Top }

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool { return r.Left >= r.Right || r.Top >= r.Bottom }

// Intersects reports whether r and o overlap with non-zero area.
func (r Rect) Intersects(o Rect) bool {
	return r.Left < o.Right && o.Left < r.Right && r.Top < o.Bottom && o.Top < r.Bottom
}

// Normalized reports whether all bounds lie in [0, 1] and the rectangle is
// not empty.
func (r Rect) Normalized() bool {
	in := func(v float64) bool { return v >= 0 && v <= 1 }
	return in(r.Left) && in(r.Top) && in(r.Right) && in(r.Bottom) && !r.Empty()
}

// finiteScale returns s if it is a usable scale factor, 1 otherwise.
func finiteScale(s float64) float64 {
	if s <= 0 || math.IsNaN(s) || math.IsInf(s, 0) {
		return 1
	}
	return s
}
