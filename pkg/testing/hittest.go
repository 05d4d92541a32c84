package testing

import (
	"fmt"

	"github.com/go-drift/weave/pkg/canvas"
	"github.com/go-drift/weave/pkg/protocol/box"
	"github.com/go-drift/weave/pkg/render"
	"github.com/go-drift/weave/pkg/widgets"
)

// HitTestAt hit-tests the last laid-out frame at pos, in root coordinates.
func (t *WidgetTester) HitTestAt(pos canvas.Point) *render.HitTestResult {
	return t.engine.HitTest(pos)
}

// TapAt returns the tags of the hit regions under pos, deepest first.
func (t *WidgetTester) TapAt(pos canvas.Point) []string {
	return widgets.HitTags(t.HitTestAt(pos))
}

// Tap hit-tests the center of the first element matched by finder and
// returns the tags of the hit regions there, deepest first.
func (t *WidgetTester) Tap(finder Finder) ([]string, error) {
	result := t.Find(finder)
	if !result.Exists() {
		return nil, fmt.Errorf("Tap: finder matched no elements: %s", finder.Description())
	}
	ro := result.RenderObject()
	if ro == nil {
		return nil, fmt.Errorf("Tap: element has no render object: %s", finder.Description())
	}
	center, ok := renderCenter(ro)
	if !ok {
		return nil, fmt.Errorf("Tap: element is not laid out: %s", finder.Description())
	}
	return t.TapAt(center), nil
}

// GlobalRect returns the root-space bounds of the first element matched by
// finder.
func (t *WidgetTester) GlobalRect(finder Finder) (canvas.Rect, error) {
	ro := t.Find(finder).FirstOrNil()
	if ro == nil || ro.RenderObject() == nil {
		return canvas.Rect{}, fmt.Errorf("GlobalRect: no render object for %s", finder.Description())
	}
	origin, size, ok := globalBox(ro.RenderObject())
	if !ok {
		return canvas.Rect{}, fmt.Errorf("GlobalRect: %s is not laid out", finder.Description())
	}
	return canvas.RectFromLTWH(origin.X, origin.Y, size.Width, size.Height), nil
}

func renderCenter(ro *render.Object) (canvas.Point, bool) {
	origin, size, ok := globalBox(ro)
	if !ok {
		return canvas.Point{}, false
	}
	return canvas.Point{X: origin.X + size.Width/2, Y: origin.Y + size.Height/2}, true
}

// globalBox sums box offsets up to the root.
func globalBox(ro *render.Object) (box.Offset, box.Size, bool) {
	size, ok := ro.Size().(box.Size)
	if !ok {
		return box.Offset{}, box.Size{}, false
	}
	var origin box.Offset
	for o := ro; o != nil; o = o.Parent() {
		if off, ok := o.Offset().(box.Offset); ok {
			origin = origin.Add(off)
		}
	}
	return origin, size, true
}
