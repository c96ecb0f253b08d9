package main

import (
	"github.com/gogpu/docview"
	"github.com/gogpu/docview/decoder"
	"github.com/gogpu/docview/internal/config"
)

// report is written to layout.json.
type report struct {
	Document  string             `json:"document"`
	Pages     int                `json:"pages"`
	FitPolicy string             `json:"fit_policy"`
	Vertical  bool               `json:"vertical"`
	Zoom      float64            `json:"zoom"`
	DocLen    float64            `json:"doc_len"`
	Meta      decoder.Meta       `json:"meta"`
	Outline   []decoder.Bookmark `json:"outline,omitempty"`
	Layout    []pageEntry        `json:"layout"`

	Tiles      []tileEntry `json:"tiles"`
	Thumbnails []tileEntry `json:"thumbnails"`
}

type pageEntry struct {
	UserPage     int            `json:"user_page"`
	DocumentPage int            `json:"document_page"`
	Offset       float64        `json:"offset"`
	Secondary    float64        `json:"secondary_offset"`
	Width        float64        `json:"width"`
	Height       float64        `json:"height"`
	Spacing      float64        `json:"spacing"`
	Links        []decoder.Link `json:"links,omitempty"`
}

type tileEntry struct {
	File   string     `json:"file"`
	Page   int        `json:"page"`
	Region [4]float64 `json:"region"`
	Width  int        `json:"width"`
	Height int        `json:"height"`
	Order  int        `json:"cache_order"`
	Format string     `json:"format"`
}

func newReport(doc *docview.Document, cfg config.Config, zoom float64) report {
	rep := report{
		Document:  doc.Name(),
		Pages:     doc.PageCount(),
		FitPolicy: cfg.FitPolicy.String(),
		Vertical:  cfg.Vertical,
		Zoom:      zoom,
		DocLen:    doc.DocLen(zoom),
		Meta:      doc.Metadata(),
		Outline:   doc.Bookmarks(),
	}
	for user := range doc.PageCount() {
		size := doc.ScaledPageSize(user, zoom)
		rep.Layout = append(rep.Layout, pageEntry{
			UserPage:     user,
			DocumentPage: doc.DocumentPage(user),
			Offset:       doc.PageOffset(user, zoom),
			Secondary:    doc.SecondaryPageOffset(user, zoom),
			Width:        size.Width,
			Height:       size.Height,
			Spacing:      doc.PageSpacing(user, zoom),
			Links:        doc.PageLinks(user),
		})
	}
	return rep
}
