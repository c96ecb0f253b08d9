// Package docview is the core of a paginated document viewer: page layout,
// a two-generation tile cache and a background render pipeline.
//
// # Overview
//
// A document is opened once on a background lane by Open. The resulting
// Document holds the decoder handle, the optional user page mapping and an
// immutable geometry.Layout that is swapped atomically when the view is
// resized. A Viewer ties a Document to a cache.TileCache and a
// render.Pipeline and plans which tiles a viewport needs.
//
// # Quick Start
//
//	s := docview.Open(ctx, imagedoc.New(), src, geometry.Size{Width: 1080, Height: 1920}, nil)
//	doc, err := s.Wait(ctx)
//	if err != nil {
//	    return err
//	}
//	v := docview.NewViewer(doc)
//	defer v.Close()
//
//	v.LoadViewport(docview.Viewport{Width: 1080, Height: 1920, Zoom: 1})
//	_ = v.Flush(ctx)
//	tiles := v.Tiles()
//	for _, t := range tiles {
//	    // draw t.Bitmap at t.Region of page t.Page
//	}
//	cache.ReleaseSnapshot(tiles)
//
// # Pages
//
// User pages are the pages shown; document pages are the pages of the
// decoder. WithPages maps one onto the other and may repeat pages. Layout
// queries take user pages; tiles, render tasks and Document.OpenPage use
// document pages, so a repeated page shares its tiles.
//
// # Concurrency
//
// Decoder handles are not safe for concurrent use. Document serializes every
// decoder call, and in normal use only the session lane and the render lane
// reach the decoder. Tile cache operations hold short locks that are never
// held across a decoder call or a bitmap allocation.
//
// # Ownership
//
// A tile bitmap has one owner at a time: the pipeline until it publishes,
// then the cache until eviction, duplicate suppression or Clear releases it.
// Snapshots from Viewer.Tiles and Viewer.Thumbnails hold their own reference,
// so a buffer is only recycled after the painter releases the snapshot.
package docview
