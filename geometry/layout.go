package geometry

// Options control how pages are laid out.
type Options struct {
	// FitPolicy selects how pages are scaled to the viewport.
	FitPolicy FitPolicy

	// DualPage shows two pages side by side; the per-page width budget is
	// halved.
	DualPage bool

	// Vertical scrolls along Y. When false, pages are laid out along X.
	Vertical bool

	// Spacing is the fixed gap between consecutive pages, in view pixels.
	Spacing float64

	// AutoSpacing pads every page so that it fills the viewport on the
	// primary axis, centering it in its own slot.
	AutoSpacing bool

	// FitEachPage fits every page to the viewport independently. When false,
	// the largest page is fitted and the others keep their relative size.
	FitEachPage bool

	// Landscape reports the viewport orientation.
	Landscape bool
}

// DefaultOptions returns a vertical, width-fitted layout without spacing.
func DefaultOptions() Options {
	return Options{
		FitPolicy: FitWidth,
		Vertical:  true,
	}
}

// Layout is the computed geometry of a document for one viewport size.
// A Layout is immutable and safe for concurrent use.
type Layout struct {
	opts     Options
	viewport Size
	original []Size

	// maxWidthPage and maxHeightPage are the original sizes of the widest
	// and tallest pages.
	maxWidthPage  Size
	maxHeightPage Size

	sizes   []SizeF
	offsets []float64
	spacing []float64 // per page, only with AutoSpacing

	optimalMaxWidth  SizeF
	optimalMaxHeight SizeF

	length float64
}

// Compute lays out pages with the given original sizes. Original sizes are
// per user page: a page repeated by a PageMap appears once per occurrence.
func Compute(original []Size, viewport Size, opts Options) *Layout {
	l := &Layout{
		opts:     opts,
		original: append([]Size(nil), original...),
	}
	for _, s := range l.original {
		if s.Width > l.maxWidthPage.Width {
			l.maxWidthPage = s
		}
		if s.Height > l.maxHeightPage.Height {
			l.maxHeightPage = s
		}
	}
	l.compute(viewport)
	return l
}

// WithViewport returns a new Layout for the same pages and options recomputed
// for another viewport size. The receiver is left unchanged.
func (l *Layout) WithViewport(viewport Size) *Layout {
	n := &Layout{
		opts:          l.opts,
		original:      l.original,
		maxWidthPage:  l.maxWidthPage,
		maxHeightPage: l.maxHeightPage,
	}
	n.compute(viewport)
	return n
}

func (l *Layout) compute(viewport Size) {
	l.viewport = Size{Width: max(viewport.Width, 0), Height: max(viewport.Height, 0)}

	calc := NewCalculator(l.opts.FitPolicy, l.maxWidthPage, l.maxHeightPage,
		l.viewport, l.opts.FitEachPage, l.opts.DualPage, l.opts.Landscape)
	l.optimalMaxWidth = calc.OptimalMaxWidthPageSize()
	l.optimalMaxHeight = calc.OptimalMaxHeightPageSize()

	l.sizes = make([]SizeF, len(l.original))
	for i, s := range l.original {
		l.sizes[i] = calc.Calculate(s)
	}
	if l.opts.AutoSpacing {
		l.prepareAutoSpacing()
	}
	l.prepareDocLen()
	l.preparePageOffsets()
}

func (l *Layout) primary(s SizeF) float64 {
	if l.opts.Vertical {
		return s.Height
	}
	return s.Width
}

func (l *Layout) prepareAutoSpacing() {
	n := len(l.sizes)
	l.spacing = make([]float64, n)
	view := float64(l.viewport.Width)
	if l.opts.Vertical {
		view = float64(l.viewport.Height)
	}
	for i, s := range l.sizes {
		sp := max(0, view-l.primary(s))
		if i < n-1 {
			sp += l.opts.Spacing
		}
		l.spacing[i] = sp
	}
}

func (l *Layout) prepareDocLen() {
	n := len(l.sizes)
	var length float64
	for i, s := range l.sizes {
		length += l.primary(s)
		if l.opts.AutoSpacing {
			length += l.spacing[i]
		} else if i < n-1 {
			length += l.opts.Spacing
		}
	}
	l.length = length
}

func (l *Layout) preparePageOffsets() {
	n := len(l.sizes)
	l.offsets = make([]float64, n)
	var offset float64
	for i, s := range l.sizes {
		size := l.primary(s)
		if !l.opts.AutoSpacing {
			l.offsets[i] = offset
			offset += size + l.opts.Spacing
			continue
		}
		offset += l.spacing[i] / 2
		if i == 0 {
			offset -= l.opts.Spacing / 2
		} else if i == n-1 {
			offset += l.opts.Spacing / 2
		}
		l.offsets[i] = offset
		offset += size + l.spacing[i]/2
	}
}

// Options returns the options the layout was computed with.
func (l *Layout) Options() Options { return l.opts }

// Viewport returns the viewport size the layout was computed for.
func (l *Layout) Viewport() Size { return l.viewport }

// PageCount returns the number of laid out pages.
func (l *Layout) PageCount() int { return len(l.sizes) }

// OriginalPageSize returns the decoder-reported size of a page, or the zero
// Size when the index is out of range.
func (l *Layout) OriginalPageSize(page int) Size {
	if page < 0 || page >= len(l.original) {
		return Size{}
	}
	return l.original[page]
}

// PageSize returns the scaled size of a page at zoom 1, or the zero SizeF
// when the index is out of range.
func (l *Layout) PageSize(page int) SizeF {
	if page < 0 || page >= len(l.sizes) {
		return SizeF{}
	}
	return l.sizes[page]
}

// ScaledPageSize returns the page size multiplied by zoom.
func (l *Layout) ScaledPageSize(page int, zoom float64) SizeF {
	return l.PageSize(page).Scale(zoom)
}

// MaxPageSize returns the scaled size of the page with the largest
// secondary-axis extent: the widest page when scrolling vertically, the
// tallest otherwise.
func (l *Layout) MaxPageSize() SizeF {
	if l.opts.Vertical {
		return l.optimalMaxWidth
	}
	return l.optimalMaxHeight
}

// MaxPageWidth returns MaxPageSize().Width.
func (l *Layout) MaxPageWidth() float64 { return l.MaxPageSize().Width }

// MaxPageHeight returns MaxPageSize().Height.
func (l *Layout) MaxPageHeight() float64 { return l.MaxPageSize().Height }

// DocLen returns the total primary-axis length of the document.
func (l *Layout) DocLen(zoom float64) float64 { return l.length * zoom }

// PageLength returns the page height when scrolling vertically, its width
// otherwise.
func (l *Layout) PageLength(page int, zoom float64) float64 {
	return l.primary(l.PageSize(page)) * zoom
}

// PageSpacing returns the spacing that follows a page. With auto spacing the
// value is per page; without it every page reports the fixed spacing.
func (l *Layout) PageSpacing(page int, zoom float64) float64 {
	if !l.opts.AutoSpacing {
		return l.opts.Spacing * zoom
	}
	if page < 0 || page >= len(l.spacing) {
		return 0
	}
	return l.spacing[page] * zoom
}

// PageOffset returns the primary-axis offset of a page: Y when scrolling
// vertically, X otherwise.
func (l *Layout) PageOffset(page int, zoom float64) float64 {
	if page < 0 || page >= len(l.offsets) {
		return 0
	}
	return l.offsets[page] * zoom
}

// SecondaryPageOffset returns the offset that centers a page on the
// secondary axis against the largest page on that axis.
func (l *Layout) SecondaryPageOffset(page int, zoom float64) float64 {
	size := l.PageSize(page)
	if l.opts.Vertical {
		return zoom * (l.MaxPageWidth() - size.Width) / 2
	}
	return zoom * (l.MaxPageHeight() - size.Height) / 2
}

// PageAtOffset returns the last page whose slot starts at or before offset.
// A slot starts half a spacing before the page. Offsets before the first
// slot map to page 0, offsets past the end to the last page.
func (l *Layout) PageAtOffset(offset, zoom float64) int {
	page := 0
	for i := range l.offsets {
		start := l.offsets[i]*zoom - l.PageSpacing(i, zoom)/2
		if start > offset {
			break
		}
		page = i
	}
	return page
}
