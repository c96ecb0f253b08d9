package imagedoc

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"slices"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/gogpu/docview/decoder"
	"github.com/gogpu/docview/geometry"
	"github.com/gogpu/docview/internal/logging"
	"github.com/gogpu/docview/internal/lru"
)

// noteColor is the ink used for text notes.
var noteColor = color.RGBA{R: 0xc0, G: 0x10, B: 0x10, A: 0xff}

// handle is an open image document. Not safe for concurrent use.
type handle struct {
	parts   []decoder.Part
	sizes   []geometry.Size
	formats []string
	pages   *lru.Cache[int, image.Image] // decoded pixels

	meta      decoder.Meta
	bookmarks []decoder.Bookmark
	links     map[int][]decoder.Link
	notes     map[int][]note

	interp xdraw.Interpolator
	closed bool
}

func (h *handle) check(page int) error {
	if h.closed {
		return decoder.ErrClosed
	}
	if page < 0 || page >= len(h.parts) {
		return fmt.Errorf("%w: %d", decoder.ErrPageRange, page)
	}
	return nil
}

func (h *handle) PageCount() int { return len(h.parts) }

func (h *handle) PageSize(page int) (geometry.Size, error) {
	if err := h.check(page); err != nil {
		return geometry.Size{}, err
	}
	return h.sizes[page], nil
}

// OpenPage decodes the page image. A truncated or corrupt file fails here
// even though its header was readable at Open.
func (h *handle) OpenPage(page int) error {
	if err := h.check(page); err != nil {
		return err
	}
	if h.pages.Contains(page) {
		return nil
	}

	p := h.parts[page]
	rc, err := p.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	img, _, err := image.Decode(rc)
	if err != nil {
		return fmt.Errorf("imagedoc: decode %s: %w", p.Name, err)
	}
	h.pages.Set(page, img)
	logging.L().Debug("imagedoc: decoded page", "page", page, "format", h.formats[page])
	return nil
}

// page returns the decoded image, decoding it again if it was evicted.
func (h *handle) page(page int) (image.Image, error) {
	if img, ok := h.pages.Get(page); ok && !h.closed {
		return img, nil
	}
	if err := h.OpenPage(page); err != nil {
		return nil, err
	}
	img, _ := h.pages.Get(page)
	return img, nil
}

func (h *handle) Rasterize(dst draw.Image, page int, bounds image.Rectangle, annotations bool) error {
	img, err := h.page(page)
	if err != nil {
		return err
	}
	if bounds.Empty() {
		return nil
	}

	// Paper first, so transparent images render on white.
	if clip := bounds.Intersect(dst.Bounds()); !clip.Empty() {
		draw.Draw(dst, clip, image.White, image.Point{}, draw.Src)
	}
	h.interp.Scale(dst, bounds, img, img.Bounds(), draw.Over, nil)

	if annotations {
		h.drawNotes(dst, page, bounds)
	}
	return nil
}

// drawNotes renders the page's text notes, mapping page coordinates into
// bounds. The glyphs are not scaled.
func (h *handle) drawNotes(dst draw.Image, page int, bounds image.Rectangle) {
	notes := h.notes[page]
	if len(notes) == 0 {
		return
	}
	size := h.sizes[page]
	sx := float64(bounds.Dx()) / float64(size.Width)
	sy := float64(bounds.Dy()) / float64(size.Height)

	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(noteColor),
		Face: basicfont.Face7x13,
	}
	for _, n := range notes {
		x := float64(bounds.Min.X) + n.X*sx
		y := float64(bounds.Min.Y) + n.Y*sy
		d.Dot = fixed.Point26_6{X: toFixed(x), Y: toFixed(y)}
		d.DrawString(n.Text)
	}
}

func toFixed(v float64) fixed.Int26_6 {
	return fixed.Int26_6(math.Round(v * 64))
}

func (h *handle) Metadata() decoder.Meta { return h.meta }

func (h *handle) Bookmarks() []decoder.Bookmark {
	return cloneBookmarks(h.bookmarks)
}

func cloneBookmarks(in []decoder.Bookmark) []decoder.Bookmark {
	if in == nil {
		return nil
	}
	out := make([]decoder.Bookmark, len(in))
	for i, b := range in {
		out[i] = b
		out[i].Children = cloneBookmarks(b.Children)
	}
	return out
}

func (h *handle) PageLinks(page int) []decoder.Link {
	if h.check(page) != nil {
		return nil
	}
	return slices.Clone(h.links[page])
}

func (h *handle) Close() error {
	if h.closed {
		return nil
	}
	h.closed = true
	h.pages.Clear()
	return nil
}
