// Package cache holds rendered tiles for a document view.
//
// TileCache keeps two generations of tiles. Tiles enter the active
// generation when rendered; BeginNewGeneration moves every active tile to the
// passive generation, which is evicted first. A tile that is still wanted in
// the next viewport pass can be rescued with PromoteIfPresent. Within a
// generation, tiles with the lowest cache order are evicted first.
//
// Thumbnails live in a separate bounded list evicted in insertion order.
//
// The cache owns the bitmap of every tile it holds and releases it exactly
// once: on eviction, on duplicate suppression, or in Clear. Callers must not
// release cached bitmaps themselves. Snapshots from Tiles and Thumbnails
// retain their bitmaps so a painter can read them without holding a lock;
// hand them back with ReleaseSnapshot.
//
//	c := cache.New(cache.WithCapacity(120))
//	c.InsertTile(tile)
//	c.BeginNewGeneration()
//	if !c.PromoteIfPresent(tile.Page, tile.Region, order) {
//	    // render it again
//	}
//
// # Thread Safety
//
// TileCache is safe for concurrent use. One mutex guards both generations,
// another guards the thumbnails. Neither is held while a bitmap is released.
package cache
