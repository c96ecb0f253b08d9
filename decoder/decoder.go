// Package decoder defines the boundary between docview and the libraries
// that parse and rasterize document pages.
//
// A Decoder opens a Source and returns a Handle. Handles are not safe for
// concurrent use; docview serializes every call on a single lane.
package decoder

import (
	"context"
	"errors"
	"image"
	"image/draw"

	"github.com/gogpu/docview/geometry"
)

// Common decoder errors.
var (
	// ErrPassword is returned by Open when the document is locked and the
	// password is missing or wrong.
	ErrPassword = errors.New("decoder: incorrect password")

	// ErrUnsupportedSource is returned when a decoder cannot read the given
	// Source type.
	ErrUnsupportedSource = errors.New("decoder: unsupported source")

	// ErrEmptyDocument is returned when a source has no pages.
	ErrEmptyDocument = errors.New("decoder: document has no pages")

	// ErrPageRange is returned for page indexes outside the document.
	ErrPageRange = errors.New("decoder: page out of range")

	// ErrClosed is returned by any Handle method after Close.
	ErrClosed = errors.New("decoder: handle closed")
)

// Decoder opens documents.
type Decoder interface {
	Open(ctx context.Context, src Source, password string) (Handle, error)
}

// Handle is an open document. Page indexes are document pages, not user
// pages.
type Handle interface {
	// PageCount returns the number of pages in the document.
	PageCount() int

	// PageSize returns the natural size of page in pixels.
	PageSize(page int) (geometry.Size, error)

	// OpenPage loads page so that it can be rasterized. Opening an already
	// opened page is a no-op.
	OpenPage(page int) error

	// Rasterize draws page into dst so that the whole page covers bounds.
	// Parts of bounds outside dst are clipped.
	Rasterize(dst draw.Image, page int, bounds image.Rectangle, annotations bool) error

	Metadata() Meta
	Bookmarks() []Bookmark

	// PageLinks returns the links on page in page coordinates.
	PageLinks(page int) []Link

	Close() error
}

// Meta is document metadata. Empty fields are unknown.
type Meta struct {
	Title    string `json:"title,omitempty"`
	Author   string `json:"author,omitempty"`
	Subject  string `json:"subject,omitempty"`
	Keywords string `json:"keywords,omitempty"`
	Creator  string `json:"creator,omitempty"`
	Producer string `json:"producer,omitempty"`
	Created  string `json:"created,omitempty"`
	Modified string `json:"modified,omitempty"`
}

// Bookmark is an entry of the document outline.
type Bookmark struct {
	Title    string     `json:"title"`
	Page     int        `json:"page"`
	Children []Bookmark `json:"children,omitempty"`
}

// NoDest marks a link without an internal destination.
const NoDest = -1

// Link is a clickable area of a page.
type Link struct {
	// Bounds is the area in page coordinates.
	Bounds geometry.Rect `json:"bounds"`

	// URI is set for external links.
	URI string `json:"uri,omitempty"`

	// DestPage is the target document page, or NoDest.
	DestPage int `json:"dest_page"`
}
