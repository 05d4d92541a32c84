package testing

import (
	"fmt"
	"math"

	"github.com/go-drift/weave/pkg/canvas"
	"github.com/go-drift/weave/pkg/canvas/recorder"
)

// DisplayOp represents a serialized canvas drawing operation.
type DisplayOp struct {
	Op     string         `json:"op"`
	Params map[string]any `json:"params,omitempty"`
}

// serializeDisplayList converts recorded ops into DisplayOps. Identity
// transforms and absent clips are omitted.
func serializeDisplayList(dl *recorder.DisplayList) []DisplayOp {
	if dl == nil {
		return nil
	}
	ops := make([]DisplayOp, 0, dl.Len())
	for _, op := range dl.Ops() {
		var params map[string]any
		var transform canvas.Transform
		var clip *canvas.Rect
		switch o := op.(type) {
		case recorder.FillRect:
			params = sortedMap("rect", serializeRect(o.Rect), "color", serializeColor(o.Brush.Color))
			transform, clip = o.Transform, o.Clip
		case recorder.StrokeRect:
			params = sortedMap(
				"rect", serializeRect(o.Rect),
				"color", serializeColor(o.Brush.Color),
				"strokeWidth", round2(o.Brush.StrokeWidth),
			)
			transform, clip = o.Transform, o.Clip
		case recorder.FillCircle:
			params = sortedMap(
				"cx", round2(o.Center.X),
				"cy", round2(o.Center.Y),
				"radius", round2(o.Radius),
				"color", serializeColor(o.Brush.Color),
			)
			transform, clip = o.Transform, o.Clip
		default:
			ops = append(ops, DisplayOp{Op: op.Name()})
			continue
		}
		if transform != canvas.Identity {
			params["transform"] = serializeTransform(transform)
		}
		if clip != nil {
			params["clip"] = serializeRect(*clip)
		}
		ops = append(ops, DisplayOp{Op: op.Name(), Params: params})
	}
	return ops
}

func serializeRect(r canvas.Rect) map[string]any {
	return sortedMap(
		"left", round2(r.Left),
		"top", round2(r.Top),
		"right", round2(r.Right),
		"bottom", round2(r.Bottom),
	)
}

func serializeTransform(t canvas.Transform) []float64 {
	out := make([]float64, len(t))
	for i, v := range t {
		out[i] = round2(v)
	}
	return out
}

func serializeColor(c canvas.Color) string {
	return fmt.Sprintf("0x%08X", uint32(c))
}

// round2 rounds a float64 to 2 decimal places.
func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

// jsonFloat is round2 with infinities spelled out, which JSON cannot carry.
func jsonFloat(f float64) any {
	switch {
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case math.IsNaN(f):
		return "NaN"
	}
	return round2(f)
}

// sortedMap creates a map from alternating key-value pairs. The snapshot
// encoder writes keys in sorted order.
func sortedMap(kvs ...any) map[string]any {
	m := make(map[string]any, len(kvs)/2)
	for i := 0; i+1 < len(kvs); i += 2 {
		m[kvs[i].(string)] = kvs[i+1]
	}
	return m
}
