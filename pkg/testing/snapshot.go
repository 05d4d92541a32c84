package testing

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-drift/weave/pkg/canvas"
	"github.com/go-drift/weave/pkg/protocol/box"
	"github.com/go-drift/weave/pkg/render"
)

// updateEnv names the environment variable that rewrites golden files.
const updateEnv = "WEAVE_UPDATE_SNAPSHOTS"

// TestingT is the subset of *testing.T used by MatchesFile, allowing
// test doubles to intercept failures.
type TestingT interface {
	Helper()
	Fatalf(format string, args ...any)
	Errorf(format string, args ...any)
	Name() string
}

// Snapshot captures the render tree structure and the composited display
// operations of the last frame.
type Snapshot struct {
	RenderTree *RenderNode `json:"renderTree"`
	DisplayOps []DisplayOp `json:"displayOps,omitempty"`
}

// RenderNode represents a node in the serialized render tree.
type RenderNode struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Size       [2]any         `json:"size"`
	Offset     [2]float64     `json:"offset"`
	Boundary   bool           `json:"repaintBoundary,omitempty"`
	Properties map[string]any `json:"props,omitempty"`
	Children   []*RenderNode  `json:"children,omitempty"`
}

// propertyWhitelist defines which properties to serialize per render type.
// Types not listed here are serialized with size/offset only.
var propertyWhitelist = map[string][]string{
	"RenderConstrainedBox": {"constraints"},
	"RenderColorBox":       {"color"},
	"RenderPadding":        {"insets"},
	"RenderColumn":         {"spacing", "stretch"},
	"RenderHitRegion":      {"tag", "behavior"},
}

// CaptureSnapshot captures the current render tree and the ops composited
// by the most recent pump.
func (t *WidgetTester) CaptureSnapshot() *Snapshot {
	snap := &Snapshot{}
	if root := t.RootRenderObject(); root != nil {
		snap.RenderTree = captureRenderNode(root, &typeCounter{})
		snap.DisplayOps = serializeDisplayList(t.list)
	}
	return snap
}

// MatchesFile compares this snapshot against a golden file. On mismatch it
// reports a diff and instructions for updating. When WEAVE_UPDATE_SNAPSHOTS=1
// is set, the file is silently updated instead.
func (s *Snapshot) MatchesFile(t TestingT, path string) {
	t.Helper()

	if os.Getenv(updateEnv) == "1" {
		if err := s.UpdateFile(path); err != nil {
			t.Fatalf("failed to update snapshot: %v", err)
		}
		return
	}

	expected, err := loadSnapshot(path)
	if err != nil {
		if os.IsNotExist(err) {
			t.Fatalf("snapshot file missing: %s\n\nTo create: WEAVE_UPDATE_SNAPSHOTS=1 go test -run %s", path, t.Name())
			return
		}
		t.Fatalf("failed to load snapshot: %v", err)
		return
	}

	if diff := s.Diff(expected); diff != "" {
		t.Errorf("snapshot mismatch: %s\n%s\n\nTo update: WEAVE_UPDATE_SNAPSHOTS=1 go test -run %s", path, diff, t.Name())
	}
}

// UpdateFile writes this snapshot to the given path, creating directories
// as needed.
func (s *Snapshot) UpdateFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := marshalSnapshot(s)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Diff returns a unified diff between this snapshot and other. Returns
// empty string if equal.
func (s *Snapshot) Diff(other *Snapshot) string {
	a, _ := marshalSnapshot(s)
	b, _ := marshalSnapshot(other)
	if bytes.Equal(a, b) {
		return ""
	}
	return unifiedDiff(string(b), string(a))
}

// --- Internal ---

// typeCounter assigns stable IDs like "RenderColumn#0", "RenderColumn#1".
type typeCounter struct {
	counts map[string]int
}

func (c *typeCounter) next(typeName string) string {
	if c.counts == nil {
		c.counts = make(map[string]int)
	}
	n := c.counts[typeName]
	c.counts[typeName] = n + 1
	return fmt.Sprintf("%s#%d", typeName, n)
}

func captureRenderNode(ro *render.Object, counter *typeCounter) *RenderNode {
	typeName := renderTypeName(ro)
	node := &RenderNode{
		ID:       counter.next(typeName),
		Type:     typeName,
		Boundary: ro.IsRepaintBoundary(),
	}
	if size, ok := ro.Size().(box.Size); ok {
		node.Size = [2]any{jsonFloat(size.Width), jsonFloat(size.Height)}
	}
	if offset, ok := ro.Offset().(box.Offset); ok {
		node.Offset = [2]float64{round2(offset.X), round2(offset.Y)}
	}

	if props := captureProperties(ro.Render(), typeName); len(props) > 0 {
		node.Properties = props
	}

	for _, child := range ro.Children() {
		node.Children = append(node.Children, captureRenderNode(child, counter))
	}
	return node
}

// renderTypeName capitalizes the render type so unexported types like
// renderColumn match whitelist entries like RenderColumn.
func renderTypeName(ro *render.Object) string {
	name := ro.Name()
	if len(name) > 0 {
		name = strings.ToUpper(name[:1]) + name[1:]
	}
	return name
}

func captureProperties(ro render.Render, typeName string) map[string]any {
	whitelist, ok := propertyWhitelist[typeName]
	if !ok {
		return nil
	}

	props := make(map[string]any)
	v := reflect.ValueOf(ro)
	if v.Kind() == reflect.Pointer {
		v = v.Elem()
	}

	for _, fieldName := range whitelist {
		field := v.FieldByName(fieldName)
		if !field.IsValid() {
			// Try the exported spelling
			exported := strings.ToUpper(fieldName[:1]) + fieldName[1:]
			field = v.FieldByName(exported)
		}
		if !field.IsValid() {
			continue
		}
		if val := serializeFieldValue(field); val != nil {
			props[fieldName] = val
		}
	}

	if len(props) == 0 {
		return nil
	}
	return props
}

func serializeFieldValue(v reflect.Value) any {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if v.Type() == reflect.TypeFor[canvas.Color]() {
			return serializeColor(canvas.Color(v.Uint()))
		}
		return v.Uint()
	case reflect.Float32, reflect.Float64:
		return jsonFloat(v.Float())
	case reflect.String:
		return v.String()
	case reflect.Bool:
		return v.Bool()
	case reflect.Struct:
		if !v.CanInterface() {
			// Unexported field: serialize its exported fields individually.
			return serializeStruct(v)
		}
		return fmt.Sprintf("%v", v.Interface())
	default:
		return nil
	}
}

// serializeStruct handles unexported struct fields by iterating exported
// sub-fields and collecting their values into a map.
func serializeStruct(v reflect.Value) any {
	t := v.Type()
	m := make(map[string]any)
	for i := range t.NumField() {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		if val := serializeFieldValue(v.Field(i)); val != nil {
			m[f.Name] = val
		}
	}
	if len(m) == 0 {
		return nil
	}
	return m
}

func loadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("invalid snapshot JSON: %w", err)
	}
	return &snap, nil
}

func marshalSnapshot(s *Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// unifiedDiff produces a simple line-oriented diff.
func unifiedDiff(expected, actual string) string {
	expectedLines := strings.Split(expected, "\n")
	actualLines := strings.Split(actual, "\n")

	var buf strings.Builder
	buf.WriteString("--- expected\n+++ actual\n")

	for i := range max(len(expectedLines), len(actualLines)) {
		var e, a string
		if i < len(expectedLines) {
			e = expectedLines[i]
		}
		if i < len(actualLines) {
			a = actualLines[i]
		}
		if e != a {
			if i < len(expectedLines) {
				fmt.Fprintf(&buf, "-%s\n", e)
			}
			if i < len(actualLines) {
				fmt.Fprintf(&buf, "+%s\n", a)
			}
		}
	}

	return buf.String()
}
