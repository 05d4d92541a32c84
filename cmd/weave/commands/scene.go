package commands

import (
	"sync"

	"github.com/go-drift/weave/pkg/canvas"
	"github.com/go-drift/weave/pkg/core"
	"github.com/go-drift/weave/pkg/render"
	"github.com/go-drift/weave/pkg/widgets"
)

// palette is published at the top of the demo scene.
type palette struct {
	Accent canvas.Color
	Muted  canvas.Color
}

var defaultPalette = palette{Accent: canvas.ColorBlue, Muted: 0xFF9E9E9E}

// tickHandle lets the host bump the ticker row from outside the tree.
type tickHandle struct {
	mu  sync.Mutex
	set core.Setter[int]
	ok  bool
}

func (h *tickHandle) bump(b core.JobBuilder) {
	h.mu.Lock()
	set, ok := h.set, h.ok
	h.mu.Unlock()
	if ok {
		set.Update(b, func(n int) int { return n + 1 })
	}
}

// scene is the demo root: a header reading the palette, an avatar that
// suspends until its color arrives and a ticker row.
type scene struct {
	Palette palette
	Avatar  *core.Future[canvas.Color]
	Ticks   *tickHandle
}

func (scene) Key() any { return nil }

func (s scene) Build(*core.BuildContext) (core.Widget, error) {
	return core.Provider[palette]{
		Value: s.Palette,
		Child: widgets.Padded(8, widgets.Column{
			Spacing: 4,
			Children: []core.Widget{
				header{},
				core.Suspense{
					Child:    avatar{Future: s.Avatar},
					Fallback: widgets.Sized(32, 32, widgets.ColorBox{Color: s.Palette.Muted}),
				},
				widgets.RepaintBoundary{K: "ticker", Child: ticker{Handle: s.Ticks}},
			},
		}),
	}, nil
}

type header struct{}

func (header) Key() any { return nil }

func (header) Build(ctx *core.BuildContext) (core.Widget, error) {
	p := core.UseConsumer[palette](ctx)
	return widgets.HitRegion{
		Tag:      "header",
		Behavior: render.Opaque,
		Child:    widgets.Sized(120, 16, widgets.ColorBox{Color: p.Accent}),
	}, nil
}

type avatar struct {
	Future *core.Future[canvas.Color]
}

func (avatar) Key() any { return nil }

func (a avatar) Build(ctx *core.BuildContext) (core.Widget, error) {
	c, err := core.UseFuture(ctx, a.Future)
	if err != nil {
		return nil, err
	}
	return widgets.HitRegion{
		Tag:      "avatar",
		Behavior: render.Opaque,
		Child:    widgets.Sized(32, 32, widgets.ColorBox{Color: c}),
	}, nil
}

// ticker draws one cell per tick, up to eight.
type ticker struct {
	Handle *tickHandle
}

func (ticker) Key() any { return nil }

func (t ticker) Build(ctx *core.BuildContext) (core.Widget, error) {
	n, set := core.UseState(ctx, 1)
	if t.Handle != nil {
		t.Handle.mu.Lock()
		t.Handle.set, t.Handle.ok = set, true
		t.Handle.mu.Unlock()
	}
	p := core.UseConsumer[palette](ctx)
	cells := make([]core.Widget, 0, 8)
	for i := range min(n, 8) {
		c := p.Muted
		if i == (n-1)%8 {
			c = p.Accent
		}
		cells = append(cells, widgets.Sized(48, 4, widgets.ColorBox{Color: c}))
	}
	return widgets.Column{Spacing: 2, Children: cells}, nil
}
