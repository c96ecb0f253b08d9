package geometry

import (
	"image"
	"math"
)

// Matrix is a 2D affine transformation in row-major order:
//
//	x' = A*x + B*y + C
//	y' = D*x + E*y + F
type Matrix struct {
	A, B, C float64
	D, E, F float64
}

// Identity returns the identity transformation matrix.
func Identity() Matrix {
	return Matrix{A: 1, E: 1}
}

// Translate creates a translation matrix.
func Translate(x, y float64) Matrix {
	return Matrix{A: 1, C: x, E: 1, F: y}
}

// Scale creates a scaling matrix.
func Scale(x, y float64) Matrix {
	return Matrix{A: x, E: y}
}

// Multiply multiplies two matrices (m * other). The result applies other
// first, then m.
func (m Matrix) Multiply(other Matrix) Matrix {
	return Matrix{
		A: m.A*other.A + m.B*other.D,
		B: m.A*other.B + m.B*other.E,
		C: m.A*other.C + m.B*other.F + m.C,
		D: m.D*other.A + m.E*other.D,
		E: m.D*other.B + m.E*other.E,
		F: m.D*other.C + m.E*other.F + m.F,
	}
}

// TransformPoint applies the transformation to (x, y).
func (m Matrix) TransformPoint(x, y float64) (float64, float64) {
	return m.A*x + m.B*y + m.C, m.D*x + m.E*y + m.F
}

// MapRect returns the bounding box of r after transformation.
func (m Matrix) MapRect(r Rect) Rect {
	x0, y0 := m.TransformPoint(r.Left, r.Top)
	x1, y1 := m.TransformPoint(r.Right, r.Top)
	x2, y2 := m.TransformPoint(r.Left, r.Bottom)
	x3, y3 := m.TransformPoint(r.Right, r.Bottom)
	return Rect{
		Left:   min(x0, x1, x2, x3),
		Top:    min(y0, y1, y2, y3),
		Right:  max(x0, x1, x2, x3),
		Bottom: max(y0, y1, y2, y3),
	}
}

// Round rounds each bound to the nearest integer, halves rounding up.
func (r Rect) Round() image.Rectangle {
	round := func(v float64) int { return int(math.Floor(v + 0.5)) }
	return image.Rect(round(r.Left), round(r.Top), round(r.Right), round(r.Bottom))
}

// DeviceBounds returns the pixel rectangle, relative to a width x height
// buffer, at which a whole page must be rasterized so that the normalized
// region lands exactly on the buffer.
//
// The page is translated by (-region.Left*width, -region.Top*height) and
// then scaled by (1/region.Width, 1/region.Height).
func DeviceBounds(width, height int, region Rect) image.Rectangle {
	w, h := float64(width), float64(height)
	m := Scale(1/region.Width(), 1/region.Height()).
		Multiply(Translate(-region.Left*w, -region.Top*h))
	return m.MapRect(Rect{Right: w, Bottom: h}).Round()
}
