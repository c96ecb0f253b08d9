// Package geometry computes page layout for a paginated document view.
//
// Given the original page sizes reported by a decoder, a fit policy and the
// viewport size, it derives per-page scaled sizes, inter-page spacing,
// cumulative primary-axis offsets and the total document length. All results
// are held in an immutable Layout; recomputing for a new viewport produces a
// new Layout, so readers never observe a mix of stale and fresh geometry.
//
// The primary axis is the scroll axis: Y for vertical layouts and X for
// horizontal ones. Queries take a zoom factor and scale the stored values on
// the fly.
//
// The package also maps user-facing page indexes onto document pages
// (PageMap), including repeated and reordered pages.
package geometry
