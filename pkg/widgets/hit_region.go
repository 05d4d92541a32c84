package widgets

import (
	"github.com/go-drift/weave/pkg/core"
	"github.com/go-drift/weave/pkg/protocol"
	"github.com/go-drift/weave/pkg/protocol/box"
	"github.com/go-drift/weave/pkg/render"
)

// HitRegion takes part in hit testing under Tag.
//
// Behavior decides what happens when the region is hit but none of its
// children is: DeferToChild ignores the hit, Opaque claims it and Transparent
// records it while letting siblings behind be tested too.
type HitRegion struct {
	Tag      string
	Behavior render.HitTestBehavior
	Child    core.Widget
	K        any
}

func (h HitRegion) Key() any { return h.K }
func (h HitRegion) ChildWidgets() []core.Widget { return single(h.Child) }
func (h HitRegion) Protocol() protocol.Protocol { return box.Protocol{} }

func (h HitRegion) CreateRender() render.Render {
	return &renderHitRegion{tag: h.Tag, behavior: h.Behavior}
}

func (h HitRegion) UpdateRender(r render.Render) render.Dirty {
	rh := r.(*renderHitRegion)
	rh.tag, rh.behavior = h.Tag, h.Behavior
	return 0
}

type renderHitRegion struct {
	tag      string
	behavior render.HitTestBehavior
}

func (r *renderHitRegion) HitTestBehavior() render.HitTestBehavior {
	return r.behavior
}

func (r *renderHitRegion) PerformLayout(c protocol.Constraints, children []*render.Object) (protocol.Size, any) {
	return layoutSingle(box.ConstraintsOf(c), children), nil
}

func (r *renderHitRegion) PerformPaint(ctx *render.PaintContext, _ protocol.Size, offset protocol.Offset, _ any, children []*render.Object) {
	paintChildren(ctx, offset, children)
}

// HitTags returns the tags of the HitRegions in a hit result, deepest first.
func HitTags(result *render.HitTestResult) []string {
	var tags []string
	for _, e := range result.Entries {
		if r, ok := e.Target.Render().(*renderHitRegion); ok {
			tags = append(tags, r.tag)
		}
	}
	return tags
}
