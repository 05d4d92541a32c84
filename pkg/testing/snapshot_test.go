package testing

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-drift/weave/pkg/canvas"
	"github.com/go-drift/weave/pkg/widgets"
)

func TestCaptureSnapshot_Empty(t *testing.T) {
	tester := NewWidgetTesterWithT(t)

	snap := tester.CaptureSnapshot()
	if snap == nil {
		t.Fatal("expected non-nil snapshot")
	}
	if snap.RenderTree != nil {
		t.Error("expected no render tree before the first pump")
	}
}

func TestCaptureSnapshot_RenderTreeStructure(t *testing.T) {
	tester := NewWidgetTesterWithT(t)
	tester.PumpWidget(widgets.Sized(200, 100, widgets.ColorBox{Color: canvas.ColorRed}))

	snap := tester.CaptureSnapshot()
	root := snap.RenderTree
	if root == nil {
		t.Fatal("expected render tree root")
	}
	if root.Type != "RenderConstrainedBox" || root.ID != "RenderConstrainedBox#0" {
		t.Errorf("unexpected root %s (%s)", root.ID, root.Type)
	}
	if _, ok := root.Properties["constraints"]; !ok {
		t.Error("expected constraints property on the root")
	}
	if len(root.Children) != 1 {
		t.Fatalf("expected 1 child, got %d", len(root.Children))
	}
	child := root.Children[0]
	if child.Type != "RenderColorBox" {
		t.Errorf("expected RenderColorBox, got %s", child.Type)
	}
	if got := child.Properties["color"]; got != "0xFFFF0000" {
		t.Errorf("expected color 0xFFFF0000, got %v", got)
	}
	if child.Size != [2]any{200.0, 100.0} {
		t.Errorf("expected size 200x100, got %v", child.Size)
	}
}

func TestCaptureSnapshot_DisplayOps(t *testing.T) {
	tester := NewWidgetTesterWithT(t)
	tester.PumpWidget(widgets.ColumnOf(
		widgets.Sized(10, 10, widgets.ColorBox{Color: canvas.ColorRed}),
		widgets.Sized(10, 10, widgets.ColorBox{Color: canvas.ColorBlue}),
	))

	ops := tester.CaptureSnapshot().DisplayOps
	if len(ops) != 2 {
		t.Fatalf("expected 2 ops, got %d", len(ops))
	}
	for i, want := range []string{"0xFFFF0000", "0xFF0000FF"} {
		if ops[i].Op != "fillRect" {
			t.Errorf("op %d: expected fillRect, got %s", i, ops[i].Op)
		}
		if ops[i].Params["color"] != want {
			t.Errorf("op %d: expected color %s, got %v", i, want, ops[i].Params["color"])
		}
	}
}

func TestSnapshot_Diff_Equal(t *testing.T) {
	tester := NewWidgetTesterWithT(t)
	tester.PumpWidget(widgets.Sized(50, 50, widgets.ColorBox{Color: canvas.ColorRed}))

	a := tester.CaptureSnapshot()
	b := tester.CaptureSnapshot()

	if diff := a.Diff(b); diff != "" {
		t.Errorf("expected no diff for identical snapshots, got:\n%s", diff)
	}
}

func TestSnapshot_Diff_Different(t *testing.T) {
	tester := NewWidgetTesterWithT(t)

	tester.PumpWidget(widgets.Sized(50, 50, widgets.ColorBox{Color: canvas.ColorRed}))
	a := tester.CaptureSnapshot()

	tester.PumpWidget(widgets.Sized(100, 50, widgets.ColorBox{Color: canvas.ColorBlue}))
	b := tester.CaptureSnapshot()

	if diff := a.Diff(b); diff == "" {
		t.Error("expected diff for different snapshots")
	}
}

func TestSnapshot_UpdateAndMatch(t *testing.T) {
	t.Setenv(updateEnv, "")
	tester := NewWidgetTesterWithT(t)
	tester.PumpWidget(widgets.Padded(4, widgets.Sized(80, 40, widgets.ColorBox{Color: canvas.ColorBlue})))

	snap := tester.CaptureSnapshot()

	path := filepath.Join(t.TempDir(), "testdata", "box.snapshot.json")
	if err := snap.UpdateFile(path); err != nil {
		t.Fatalf("UpdateFile failed: %v", err)
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Fatal("snapshot file should exist after UpdateFile")
	}

	// MatchesFile should pass now
	snap.MatchesFile(t, path)
}

func TestSnapshot_MatchesFile_MissingFile(t *testing.T) {
	t.Setenv(updateEnv, "")
	tester := NewWidgetTesterWithT(t)
	tester.PumpWidget(widgets.Sized(50, 50, widgets.ColorBox{Color: canvas.ColorRed}))
	snap := tester.CaptureSnapshot()

	failed := false
	sub := &fatalRecorder{name: t.Name(), onFatal: func() { failed = true }}
	snap.MatchesFile(sub, filepath.Join(t.TempDir(), "missing", "snap.json"))

	if !failed {
		t.Error("expected MatchesFile to fail for missing file")
	}
}

func TestSnapshot_MatchesFile_Mismatch(t *testing.T) {
	t.Setenv(updateEnv, "")
	tester := NewWidgetTesterWithT(t)

	tester.PumpWidget(widgets.Sized(50, 50, widgets.ColorBox{Color: canvas.ColorRed}))
	first := tester.CaptureSnapshot()

	path := filepath.Join(t.TempDir(), "snap.json")
	if err := first.UpdateFile(path); err != nil {
		t.Fatal(err)
	}

	tester.PumpWidget(widgets.Sized(999, 999, widgets.ColorBox{Color: canvas.ColorBlue}))
	second := tester.CaptureSnapshot()

	errored := false
	sub := &errorRecorder{name: t.Name(), onError: func() { errored = true }}
	second.MatchesFile(sub, path)

	if !errored {
		t.Error("expected MatchesFile to report error for mismatch")
	}
}

func TestSnapshot_UpdateMode(t *testing.T) {
	tester := NewWidgetTesterWithT(t)
	tester.PumpWidget(widgets.Sized(60, 30, widgets.ColorBox{Color: canvas.ColorRed}))
	snap := tester.CaptureSnapshot()

	path := filepath.Join(t.TempDir(), "update.snapshot.json")

	t.Setenv(updateEnv, "1")
	snap.MatchesFile(t, path)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("snapshot file should be created in update mode")
	}
}

// fatalRecorder intercepts Fatalf calls for testing MatchesFile failures.
type fatalRecorder struct {
	name    string
	onFatal func()
}

func (r *fatalRecorder) Fatalf(format string, args ...any) { r.onFatal() }
func (r *fatalRecorder) Errorf(format string, args ...any) {}
func (r *fatalRecorder) Helper()                           {}
func (r *fatalRecorder) Name() string                      { return r.name }

// errorRecorder intercepts Errorf calls for testing MatchesFile mismatches.
type errorRecorder struct {
	name    string
	onError func()
}

func (r *errorRecorder) Fatalf(format string, args ...any) {}
func (r *errorRecorder) Errorf(format string, args ...any) { r.onError() }
func (r *errorRecorder) Helper()                           {}
func (r *errorRecorder) Name() string                      { return r.name }
