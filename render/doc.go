// Package render turns render requests into tiles.
//
// A [Pipeline] owns a single worker lane. Requests are queued with
// [Pipeline.Submit], which never blocks, and processed strictly in
// submission order. For each request the pipeline opens the page,
// allocates a bitmap, asks the [Document] to rasterize the requested region
// into it and hands the finished tile to a [Sink], normally a
// *cache.TileCache.
//
// # Start and stop
//
// A stopped pipeline keeps processing its queue but never publishes. A
// request submitted while the pipeline is stopped is rendered and its bitmap
// released, even if [Pipeline.Start] is called before the request reaches
// the head of the queue. Requests accepted while running are published only
// if the pipeline has not been stopped since.
//
// # Errors
//
// A page that fails to open is reported once, through the handler installed
// with [WithPageErrorHandler], as a *[PageError]. Later requests for that
// page are dropped silently. A page that opens but fails to rasterize is
// logged and the request is dropped; it is never reported to the handler.
package render
