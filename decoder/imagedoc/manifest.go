package imagedoc

import (
	"encoding/json"
	"fmt"

	"github.com/tailscale/hujson"

	"github.com/gogpu/docview/decoder"
)

// manifest is the optional JSONC sidecar of an image document.
//
//	{
//	  // Locks the document.
//	  "password": "secret",
//	  "meta": {"title": "Scans", "author": "QA"},
//	  "bookmarks": [{"title": "Intro", "page": 0}],
//	  "links": [{"page": 0, "bounds": {"left": 0, "top": 0, "right": 50, "bottom": 20}, "dest_page": 2}],
//	  "notes": [{"page": 1, "x": 10, "y": 30, "text": "check"}],
//	}
type manifest struct {
	Password  string             `json:"password,omitempty"`
	Meta      decoder.Meta       `json:"meta"`
	Bookmarks []decoder.Bookmark `json:"bookmarks,omitempty"`
	Links     []pageLink         `json:"links,omitempty"`
	Notes     []note             `json:"notes,omitempty"`
}

type pageLink struct {
	Page int `json:"page"`
	decoder.Link
}

// note is a text annotation drawn when annotations are enabled. X and Y
// are the baseline origin in page coordinates.
type note struct {
	Page int     `json:"page"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Text string  `json:"text"`
}

func parseManifest(data []byte) (manifest, error) {
	var m manifest
	if len(data) == 0 {
		return m, nil
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		return m, fmt.Errorf("imagedoc: invalid manifest JSONC: %w", err)
	}

	// Links without an explicit destination must not point at page 0.
	var raw struct {
		Links []map[string]json.RawMessage `json:"links"`
	}
	if err := json.Unmarshal(standardized, &raw); err != nil {
		return m, fmt.Errorf("imagedoc: invalid manifest: %w", err)
	}
	if err := json.Unmarshal(standardized, &m); err != nil {
		return m, fmt.Errorf("imagedoc: invalid manifest: %w", err)
	}
	for i := range m.Links {
		if _, ok := raw.Links[i]["dest_page"]; !ok {
			m.Links[i].DestPage = decoder.NoDest
		}
	}
	return m, nil
}

func (m manifest) validate(pages int) error {
	for _, l := range m.Links {
		if l.Page < 0 || l.Page >= pages {
			return fmt.Errorf("imagedoc: manifest link on page %d: %w", l.Page, decoder.ErrPageRange)
		}
		if l.DestPage != decoder.NoDest && (l.DestPage < 0 || l.DestPage >= pages) {
			return fmt.Errorf("imagedoc: manifest link to page %d: %w", l.DestPage, decoder.ErrPageRange)
		}
	}
	for _, n := range m.Notes {
		if n.Page < 0 || n.Page >= pages {
			return fmt.Errorf("imagedoc: manifest note on page %d: %w", n.Page, decoder.ErrPageRange)
		}
	}
	return nil
}
