package core

import (
	"github.com/go-drift/weave/pkg/lane"
)

// BuildContext is handed to ComponentWidget.Build. It is valid only for the
// duration of that call.
type BuildContext struct {
	tree   *Tree
	node   *ElementNode
	widget Widget
	pass   *pass
	scope  *scope
	hooks  *hookCursor
}

// scope overlays provider values produced earlier in the same pass so
// descendants read the uncommitted value.
type scope struct {
	provider *ElementContextNode
	value    any
	parent   *scope
}

func (c *BuildContext) cursor() *hookCursor {
	if c.hooks == nil {
		panic("core: hooks called outside a component build")
	}
	return c.hooks
}

// providedValue returns the value provider p exposes to this build.
func (c *BuildContext) providedValue(p *ElementContextNode) any {
	for s := c.scope; s != nil; s = s.parent {
		if s.provider == p {
			return s.value
		}
	}
	return p.committedValue()
}

// Widget returns the widget being built.
func (c *BuildContext) Widget() Widget {
	return c.widget
}

// Context returns the element's identity node.
func (c *BuildContext) Context() *ElementContextNode {
	return c.node.ctx
}

// Lane returns the lane the build runs in.
func (c *BuildContext) Lane() lane.Pos {
	return c.pass.run.Lane
}

// IsAsync reports whether the build runs in an async lane.
func (c *BuildContext) IsAsync() bool {
	return c.pass.async
}
