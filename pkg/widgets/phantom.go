package widgets

import "github.com/go-drift/weave/pkg/core"

// Phantom occupies a slot in the widget tree without contributing a render
// object.
type Phantom struct {
	K any
}

func (p Phantom) Key() any { return p.K }

func (Phantom) Build(*core.BuildContext) (core.Widget, error) {
	return nil, nil
}
