// Package canvas defines the contract between the runtime and a 2D painting
// backend.
//
// The runtime never inspects pixels. It records paint commands through a
// PaintContext into an opaque Encoding, and composites encodings into each
// other with a Transform. Two backends ship with the module: the display list
// recorder in canvas/recorder and the image backend in canvas/raster.
package canvas

// Encoding is an opaque unit of painted output owned by a Backend.
type Encoding any

// PaintContext records primitive paint commands into one Encoding.
//
// Transforms and clips form a stack; every Push* call must be balanced by a
// Pop.
type PaintContext interface {
	// FillRect fills rect with brush.
	FillRect(rect Rect, brush Brush)

	// StrokeRect outlines rect with brush.
	StrokeRect(rect Rect, brush Brush)

	// FillCircle fills a circle with brush.
	FillCircle(center Point, radius float64, brush Brush)

	// PushTransform concatenates t onto the current transform.
	PushTransform(t Transform)

	// PushClipRect restricts drawing to rect in the current coordinate space.
	PushClipRect(rect Rect)

	// Pop removes the most recent transform or clip.
	Pop()

	// Transform returns the current total transform.
	Transform() Transform
}

// Backend creates encodings and composites them.
type Backend interface {
	// NewEncoding returns an empty encoding.
	NewEncoding() Encoding

	// NewPaintContext returns a context that appends to enc.
	NewPaintContext(enc Encoding) PaintContext

	// CompositeEncoding draws src onto dst under transform.
	CompositeEncoding(dst, src Encoding, transform Transform)

	// Clear removes all content from enc.
	Clear(enc Encoding)
}
