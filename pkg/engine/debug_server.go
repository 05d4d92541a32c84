package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"reflect"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/go-drift/weave/pkg/core"
	"github.com/go-drift/weave/pkg/protocol/box"
	"github.com/go-drift/weave/pkg/render"
)

// DebugOptions configures a DebugServer.
type DebugOptions struct {
	Logger zerolog.Logger
	// RuntimeSampleInterval and RuntimeSampleWindow size the runtime sample
	// history. Zero values use 5s and 60s.
	RuntimeSampleInterval time.Duration
	RuntimeSampleWindow   time.Duration
}

// DebugServer serves render tree, element tree, frame timeline, lane and
// runtime inspection endpoints for an Engine, plus the scheduler metrics.
type DebugServer struct {
	engine  *Engine
	logger  zerolog.Logger
	runtime *runtimeHistory
	mux     *http.ServeMux

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	sampler  *runtimeSampler
}

// NewDebugServer returns a stopped server inspecting e.
func NewDebugServer(e *Engine, opts DebugOptions) *DebugServer {
	d := &DebugServer{
		engine:  e,
		logger:  opts.Logger.With().Str("component", "debug-server").Logger(),
		runtime: newRuntimeHistory(opts.RuntimeSampleWindow, opts.RuntimeSampleInterval),
		mux:     http.NewServeMux(),
	}
	d.mux.HandleFunc("GET /health", d.handleHealth)
	d.mux.HandleFunc("GET /render-tree", d.handleRenderTree)
	d.mux.HandleFunc("GET /element-tree", d.handleElementTree)
	d.mux.HandleFunc("GET /frames", d.handleFrameTimeline)
	d.mux.HandleFunc("GET /lanes", d.handleLanes)
	d.mux.HandleFunc("GET /runtime", d.handleRuntime)
	d.mux.HandleFunc("GET /jank", d.handleJankSnapshot)
	if m := e.Metrics(); m != nil {
		d.mux.Handle("GET /metrics", m.Handler())
	}
	return d
}

// Handler returns the request router.
func (d *DebugServer) Handler() http.Handler {
	return d.mux
}

// Start listens on addr and serves in the background. It returns the bound
// address, which differs from addr when addr has port 0.
func (d *DebugServer) Start(addr string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.server != nil {
		return d.listener.Addr().String(), nil
	}

	// Bind first to fail fast on port conflicts
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("debug server listen: %w", err)
	}

	server := &http.Server{Handler: d.mux, ReadHeaderTimeout: 5 * time.Second}
	d.server = server
	d.listener = listener
	d.sampler = startRuntimeSampler(d.runtime, func() RuntimeSample { return sampleRuntime(d.engine) })

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			d.mu.Lock()
			if d.server == server {
				d.server = nil
				d.listener = nil
			}
			d.mu.Unlock()
			d.logger.Error().Err(err).Msg("debug server stopped")
		}
	}()

	d.logger.Info().Str("addr", listener.Addr().String()).Msg("debug server listening")
	return listener.Addr().String(), nil
}

// Stop gracefully shuts the server down.
func (d *DebugServer) Stop(ctx context.Context) error {
	d.mu.Lock()
	server, sampler := d.server, d.sampler
	d.server = nil
	d.listener = nil
	d.sampler = nil
	d.mu.Unlock()

	if sampler != nil {
		sampler.Stop()
	}
	if server == nil {
		return nil
	}
	return server.Shutdown(ctx)
}

// RenderTreeNode represents a node in the serialized render tree.
// Uses SafeFloat for dimensions that may contain Inf/NaN from layout issues.
type RenderTreeNode struct {
	Type               string           `json:"type"`
	Protocol           string           `json:"protocol"`
	Size               *SafeSize        `json:"size,omitempty"`
	Constraints        *SafeConstraints `json:"constraints,omitempty"`
	Offset             *SafeOffset      `json:"offset,omitempty"`
	Depth              int              `json:"depth"`
	NeedsLayout        bool             `json:"needsLayout"`
	NeedsPaint         bool             `json:"needsPaint"`
	IsRepaintBoundary  bool             `json:"isRepaintBoundary"`
	IsRelayoutBoundary bool             `json:"isRelayoutBoundary"`
	Children           []RenderTreeNode `json:"children,omitempty"`
}

// SafeFloat wraps a float64 to handle Inf/NaN in JSON encoding.
type SafeFloat float64

func (f SafeFloat) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsInf(v, 1) {
		return []byte(`"Infinity"`), nil
	}
	if math.IsInf(v, -1) {
		return []byte(`"-Infinity"`), nil
	}
	if math.IsNaN(v) {
		return []byte(`"NaN"`), nil
	}
	return json.Marshal(v)
}

// SafeSize is a JSON-safe version of box.Size.
type SafeSize struct {
	Width  SafeFloat `json:"width"`
	Height SafeFloat `json:"height"`
}

// SafeOffset is a JSON-safe version of box.Offset.
type SafeOffset struct {
	X SafeFloat `json:"x"`
	Y SafeFloat `json:"y"`
}

// SafeConstraints is a JSON-safe version of box.Constraints.
type SafeConstraints struct {
	MinWidth  SafeFloat `json:"minWidth"`
	MaxWidth  SafeFloat `json:"maxWidth"`
	MinHeight SafeFloat `json:"minHeight"`
	MaxHeight SafeFloat `json:"maxHeight"`
}

// ElementTreeNode represents a node in the serialized element tree.
type ElementTreeNode struct {
	WidgetType      string            `json:"widgetType"`
	Key             any               `json:"key,omitempty"`
	Depth           int               `json:"depth"`
	Hooks           int               `json:"hooks,omitempty"`
	Suspended       bool              `json:"suspended,omitempty"`
	ShowingFallback bool              `json:"showingFallback,omitempty"`
	HasRender       bool              `json:"hasRender,omitempty"`
	Children        []ElementTreeNode `json:"children,omitempty"`
	Fallback        *ElementTreeNode  `json:"fallback,omitempty"`
}

// LaneStatus is the /lanes response entry.
type LaneStatus struct {
	Lane      string `json:"lane"`
	Batch     uint64 `json:"batch,omitempty"`
	Running   bool   `json:"running"`
	Pending   int64  `json:"pendingTasks"`
	Cancelled bool   `json:"cancelled,omitempty"`
}

// maxTreeDepth limits recursion depth to prevent stack overflow from malformed trees.
const maxTreeDepth = 500

func (d *DebugServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// handleRenderTree serializes the render tree between frames.
func (d *DebugServer) handleRenderTree(w http.ResponseWriter, r *http.Request) {
	defer recoverHandler(w)

	var tree *RenderTreeNode
	d.engine.inspect(func() {
		if root := d.engine.Pipeline().Root(); root != nil {
			node := serializeRenderTree(root, 0)
			tree = &node
		}
	})
	if tree == nil {
		http.Error(w, "no render tree", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, tree)
}

func (d *DebugServer) handleElementTree(w http.ResponseWriter, r *http.Request) {
	defer recoverHandler(w)

	var tree *ElementTreeNode
	d.engine.inspect(func() {
		children := d.engine.Tree().Root().Children()
		if len(children) > 0 {
			node := serializeElementTree(children[0], 0)
			tree = &node
		}
	})
	if tree == nil {
		http.Error(w, "no element tree", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, tree)
}

func (d *DebugServer) handleFrameTimeline(w http.ResponseWriter, r *http.Request) {
	resp := d.engine.Frames().Snapshot()
	applyFrameFilters(r, &resp)
	writeJSON(w, resp)
}

func (d *DebugServer) handleLanes(w http.ResponseWriter, r *http.Request) {
	lanes := d.engine.Scheduler().Lanes()
	resp := make([]LaneStatus, 0, len(lanes))
	for _, l := range lanes {
		resp = append(resp, LaneStatus{
			Lane:      l.Pos.String(),
			Batch:     uint64(l.Batch),
			Running:   l.Running,
			Pending:   l.Pending,
			Cancelled: l.Cancelled,
		})
	}
	writeJSON(w, struct {
		Idle  bool         `json:"idle"`
		Lanes []LaneStatus `json:"lanes"`
	}{Idle: d.engine.Scheduler().Idle(), Lanes: resp})
}

func (d *DebugServer) handleRuntime(w http.ResponseWriter, r *http.Request) {
	samples := applyRuntimeFilters(r, d.runtime.snapshot())
	writeJSON(w, struct {
		Samples []RuntimeSample `json:"samples"`
	}{Samples: samples})
}

// handleJankSnapshot returns a combined frames/runtime snapshot.
func (d *DebugServer) handleJankSnapshot(w http.ResponseWriter, r *http.Request) {
	frames := d.engine.Frames().Snapshot()
	applyFrameFilters(r, &frames)
	writeJSON(w, struct {
		Frames  FrameTimeline   `json:"frames"`
		Runtime []RuntimeSample `json:"runtime"`
	}{
		Frames:  frames,
		Runtime: applyRuntimeFilters(r, d.runtime.snapshot()),
	})
}

func recoverHandler(w http.ResponseWriter) {
	if rec := recover(); rec != nil {
		http.Error(w, fmt.Sprintf("panic: %v", rec), http.StatusInternalServerError)
	}
}

// writeJSON encodes to a buffer first so encode errors still produce a 500.
func writeJSON(w http.ResponseWriter, v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		http.Error(w, fmt.Sprintf("json encode error: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func applyFrameFilters(r *http.Request, resp *FrameTimeline) {
	limit := parseLimit(r)

	var filters []func(FrameSample) bool
	if v := parseFloatQuery(r, "min_ms"); v > 0 {
		filters = append(filters, func(s FrameSample) bool { return s.FrameMs >= v })
	}
	if v := parseFloatQuery(r, "tick_ms"); v > 0 {
		filters = append(filters, func(s FrameSample) bool { return s.Phases.TickMs >= v })
	}
	if v := parseFloatQuery(r, "layout_ms"); v > 0 {
		filters = append(filters, func(s FrameSample) bool { return s.Phases.LayoutMs >= v })
	}
	if v := parseFloatQuery(r, "paint_ms"); v > 0 {
		filters = append(filters, func(s FrameSample) bool { return s.Phases.PaintMs >= v })
	}
	if v := parseFloatQuery(r, "composite_ms"); v > 0 {
		filters = append(filters, func(s FrameSample) bool { return s.Phases.CompositeMs >= v })
	}
	if value := r.URL.Query().Get("sync"); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil && parsed {
			filters = append(filters, func(s FrameSample) bool { return s.Flags.SyncRan })
		}
	}
	if value := r.URL.Query().Get("restarted"); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil && parsed {
			filters = append(filters, func(s FrameSample) bool { return s.Counts.Restarted > 0 })
		}
	}

	if len(filters) > 0 {
		filtered := make([]FrameSample, 0, len(resp.Samples))
	outer:
		for _, sample := range resp.Samples {
			for _, f := range filters {
				if !f(sample) {
					continue outer
				}
			}
			filtered = append(filtered, sample)
		}
		resp.Samples = filtered
	}

	if limit > 0 && len(resp.Samples) > limit {
		resp.Samples = resp.Samples[len(resp.Samples)-limit:]
	}
}

func applyRuntimeFilters(r *http.Request, samples []RuntimeSample) []RuntimeSample {
	if windowSeconds := parseFloatQuery(r, "window"); windowSeconds > 0 {
		cutoff := time.Now().Add(-time.Duration(windowSeconds * float64(time.Second))).UnixMilli()
		filtered := make([]RuntimeSample, 0, len(samples))
		for _, sample := range samples {
			if sample.Timestamp >= cutoff {
				filtered = append(filtered, sample)
			}
		}
		samples = filtered
	}
	if limit := parseLimit(r); limit > 0 && len(samples) > limit {
		samples = samples[len(samples)-limit:]
	}
	return samples
}

func parseLimit(r *http.Request) int {
	if value := r.URL.Query().Get("limit"); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			return parsed
		}
	}
	return 0
}

func parseFloatQuery(r *http.Request, key string) float64 {
	value := r.URL.Query().Get(key)
	if value == "" {
		return 0
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil || parsed < 0 {
		return 0
	}
	return parsed
}

func serializeElementTree(e *core.ElementNode, depth int) ElementTreeNode {
	w := e.Widget()
	node := ElementTreeNode{
		WidgetType:      typeName(w),
		Depth:           depth,
		Hooks:           e.HookCount(),
		Suspended:       e.IsSuspended(),
		ShowingFallback: e.ShowingFallback(),
		HasRender:       e.OwnRenderObject() != nil,
	}
	if w != nil {
		node.Key = safeKey(w.Key())
	}
	if depth >= maxTreeDepth {
		return node
	}
	for _, child := range e.Children() {
		node.Children = append(node.Children, serializeElementTree(child, depth+1))
	}
	if fb := e.Fallback(); fb != nil {
		s := serializeElementTree(fb, depth+1)
		node.Fallback = &s
	}
	return node
}

// safeKey keeps JSON-friendly keys and stringifies the rest.
func safeKey(key any) any {
	switch k := key.(type) {
	case nil:
		return nil
	case string, bool, int, int32, int64, uint, uint32, uint64, float32, float64:
		return k
	case fmt.Stringer:
		return k.String()
	default:
		return fmt.Sprintf("%v", k)
	}
}

func serializeRenderTree(obj *render.Object, depth int) RenderTreeNode {
	node := RenderTreeNode{
		Type:               obj.Name(),
		Protocol:           obj.Protocol().Name(),
		Depth:              depth,
		NeedsLayout:        obj.NeedsLayout(),
		NeedsPaint:         obj.NeedsPaint(),
		IsRepaintBoundary:  obj.IsRepaintBoundary(),
		IsRelayoutBoundary: obj.IsRelayoutBoundary(),
	}
	if size, ok := obj.Size().(box.Size); ok {
		node.Size = &SafeSize{Width: SafeFloat(size.Width), Height: SafeFloat(size.Height)}
	}
	if c, ok := obj.Constraints().(box.Constraints); ok {
		node.Constraints = &SafeConstraints{
			MinWidth:  SafeFloat(c.MinWidth),
			MaxWidth:  SafeFloat(c.MaxWidth),
			MinHeight: SafeFloat(c.MinHeight),
			MaxHeight: SafeFloat(c.MaxHeight),
		}
	}
	if off, ok := obj.Offset().(box.Offset); ok {
		node.Offset = &SafeOffset{X: SafeFloat(off.X), Y: SafeFloat(off.Y)}
	}
	if depth >= maxTreeDepth {
		return node
	}
	for _, child := range obj.Children() {
		node.Children = append(node.Children, serializeRenderTree(child, depth+1))
	}
	return node
}

func typeName(v any) string {
	if v == nil {
		return "<nil>"
	}
	t := reflect.TypeOf(v)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Name()
}
