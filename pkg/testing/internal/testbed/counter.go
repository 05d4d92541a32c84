// Package testbed provides internal test widgets for the testing framework.
package testbed

import (
	"sync"

	"github.com/go-drift/weave/pkg/canvas"
	"github.com/go-drift/weave/pkg/core"
	"github.com/go-drift/weave/pkg/render"
	"github.com/go-drift/weave/pkg/widgets"
)

// CounterHandle exposes the state setter of a mounted Counter.
type CounterHandle struct {
	mu     sync.Mutex
	setter core.Setter[int]
	builds int
}

// Increment schedules count+1 as part of job b.
func (h *CounterHandle) Increment(b core.JobBuilder) {
	h.mu.Lock()
	set := h.setter
	h.mu.Unlock()
	set.Update(b, func(n int) int { return n + 1 })
}

// Builds returns how many times the counter has been built.
func (h *CounterHandle) Builds() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.builds
}

// Counter paints a 10x10 swatch whose color is the current count, inside a
// hit region tagged "counter".
type Counter struct {
	Initial int
	Handle  *CounterHandle
}

func (c Counter) Key() any { return nil }

func (c Counter) Build(ctx *core.BuildContext) (core.Widget, error) {
	count, set := core.UseState(ctx, c.Initial)
	if c.Handle != nil {
		c.Handle.mu.Lock()
		c.Handle.setter = set
		c.Handle.builds++
		c.Handle.mu.Unlock()
	}
	return widgets.HitRegion{
		Tag:      "counter",
		Behavior: render.Opaque,
		Child:    widgets.Sized(10, 10, widgets.ColorBox{Color: canvas.Color(count)}),
	}, nil
}

// Loader suspends until Future resolves and then paints the resolved color.
type Loader struct {
	Future *core.Future[canvas.Color]
}

func (l Loader) Key() any { return nil }

func (l Loader) Build(ctx *core.BuildContext) (core.Widget, error) {
	color, err := core.UseFuture(ctx, l.Future)
	if err != nil {
		return nil, err
	}
	return widgets.Sized(10, 10, widgets.ColorBox{Color: color}), nil
}
