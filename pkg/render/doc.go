// Package render implements the render-object protocol: layout with
// relayout boundaries and an optional dry-layout fast path, paint into
// persistent layers, hit testing with configurable behavior, and layer
// compositing with a cached path.
//
// A render object pairs a protocol-specific Render implementation with the
// bookkeeping in Object. Objects form a tree that the element layer mutates
// during commit; a Pipeline then flushes layout, paint and composite for the
// frame.
//
// Dirty tracking uses atomic flags so that marking never blocks. Layout
// results are guarded by a per-object mutex.
package render
