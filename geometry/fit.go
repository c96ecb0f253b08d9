package geometry

import (
	"fmt"
	"math"
	"strings"
)

// FitPolicy determines how a page's view size is derived from its original
// size and the viewport.
type FitPolicy uint8

const (
	// FitWidth scales pages so their width matches the viewport width.
	FitWidth FitPolicy = iota

	// FitHeight scales pages so their height matches the viewport height.
	FitHeight

	// FitBoth scales pages so they fit inside the viewport on both axes.
	FitBoth
)

// String returns the configuration name of the policy.
func (p FitPolicy) String() string {
	switch p {
	case FitWidth:
		return "width"
	case FitHeight:
		return "height"
	case FitBoth:
		return "both"
	default:
		return fmt.Sprintf("FitPolicy(%d)", uint8(p))
	}
}

// ParseFitPolicy parses "width", "height" or "both" (case-insensitive).
func ParseFitPolicy(s string) (FitPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "width", "":
		return FitWidth, nil
	case "height":
		return FitHeight, nil
	case "both":
		return FitBoth, nil
	default:
		return FitWidth, fmt.Errorf("geometry: unknown fit policy %q", s)
	}
}

// Calculator scales page sizes according to a fit policy.
//
// When fitEachPage is false, the pages with maximum width and maximum height
// are fitted first and every other page is scaled by the same ratio, so pages
// keep their relative sizes. When it is true, each page is fitted to the
// viewport on its own.
type Calculator struct {
	policy      FitPolicy
	view        SizeF
	fitEachPage bool

	maxWidthPage  Size
	maxHeightPage Size

	optimalMaxWidth  SizeF
	optimalMaxHeight SizeF
	widthRatio       float64
	heightRatio      float64
}

// NewCalculator prepares a calculator for the given extreme pages and
// viewport. Dual-page mode halves the per-page width budget; in landscape
// orientation a dual-page FitWidth layout is fitted on both axes so that the
// two pages shown side by side stay within the viewport height.
func NewCalculator(policy FitPolicy, maxWidthPage, maxHeightPage Size, viewport Size, fitEachPage, dualPage, landscape bool) *Calculator {
	view := SizeF{Width: float64(max(viewport.Width, 0)), Height: float64(max(viewport.Height, 0))}
	if dualPage {
		view.Width /= 2
		if landscape && policy == FitWidth {
			policy = FitBoth
		}
	}
	c := &Calculator{
		policy:        policy,
		view:          view,
		fitEachPage:   fitEachPage,
		maxWidthPage:  maxWidthPage,
		maxHeightPage: maxHeightPage,
		widthRatio:    1,
		heightRatio:   1,
	}
	c.calculateMaxPages()
	return c
}

// Policy returns the effective fit policy.
func (c *Calculator) Policy() FitPolicy { return c.policy }

// OptimalMaxWidthPageSize returns the scaled size of the widest page.
func (c *Calculator) OptimalMaxWidthPageSize() SizeF { return c.optimalMaxWidth }

// OptimalMaxHeightPageSize returns the scaled size of the tallest page.
func (c *Calculator) OptimalMaxHeightPageSize() SizeF { return c.optimalMaxHeight }

// Calculate returns the scaled size of a page. Pages with a non-positive
// dimension scale to zero.
func (c *Calculator) Calculate(page Size) SizeF {
	if page.Width <= 0 || page.Height <= 0 {
		return SizeF{}
	}
	maxWidth := float64(page.Width) * c.widthRatio
	maxHeight := float64(page.Height) * c.heightRatio
	if c.fitEachPage {
		maxWidth, maxHeight = c.view.Width, c.view.Height
	}
	switch c.policy {
	case FitHeight:
		return fitHeight(page, maxHeight)
	case FitBoth:
		return fitBoth(page, maxWidth, maxHeight)
	default:
		return fitWidth(page, maxWidth)
	}
}

func (c *Calculator) calculateMaxPages() {
	mw, mh := c.maxWidthPage, c.maxHeightPage
	switch c.policy {
	case FitHeight:
		c.optimalMaxHeight = fitHeight(mh, c.view.Height)
		c.heightRatio = ratio(c.optimalMaxHeight.Height, mh.Height)
		c.optimalMaxWidth = fitHeight(mw, float64(mw.Height)*c.heightRatio)
	case FitBoth:
		local := fitBoth(mw, c.view.Width, c.view.Height)
		localWidthRatio := ratio(local.Width, mw.Width)
		c.optimalMaxHeight = fitBoth(mh, float64(mh.Width)*localWidthRatio, c.view.Height)
		c.heightRatio = ratio(c.optimalMaxHeight.Height, mh.Height)
		c.optimalMaxWidth = fitBoth(mw, c.view.Width, float64(mw.Height)*c.heightRatio)
		c.widthRatio = ratio(c.optimalMaxWidth.Width, mw.Width)
	default:
		c.optimalMaxWidth = fitWidth(mw, c.view.Width)
		c.widthRatio = ratio(c.optimalMaxWidth.Width, mw.Width)
		c.optimalMaxHeight = fitWidth(mh, float64(mh.Width)*c.widthRatio)
	}
}

// ratio returns scaled/original, falling back to 1 for degenerate input.
func ratio(scaled float64, original int) float64 {
	if original <= 0 {
		return 1
	}
	return finiteScale(scaled / float64(original))
}

func fitWidth(page Size, maxWidth float64) SizeF {
	if page.Width <= 0 || page.Height <= 0 {
		return SizeF{}
	}
	s := finiteScale(maxWidth / float64(page.Width))
	return SizeF{
		Width:  float64(page.Width) * s,
		Height: math.Floor(float64(page.Height) * s),
	}
}

func fitHeight(page Size, maxHeight float64) SizeF {
	if page.Width <= 0 || page.Height <= 0 {
		return SizeF{}
	}
	s := finiteScale(maxHeight / float64(page.Height))
	return SizeF{
		Width:  math.Floor(float64(page.Width) * s),
		Height: float64(page.Height) * s,
	}
}

func fitBoth(page Size, maxWidth, maxHeight float64) SizeF {
	size := fitWidth(page, maxWidth)
	if maxHeight > 0 && size.Height > maxHeight {
		size = fitHeight(page, maxHeight)
	}
	return size
}
