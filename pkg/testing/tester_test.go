package testing

import (
	"testing"
	"time"

	"github.com/go-drift/weave/pkg/canvas"
	"github.com/go-drift/weave/pkg/core"
	"github.com/go-drift/weave/pkg/protocol/box"
	"github.com/go-drift/weave/pkg/testing/internal/testbed"
	"github.com/go-drift/weave/pkg/widgets"
)

func TestNewWidgetTester_Defaults(t *testing.T) {
	tester := NewWidgetTesterWithT(t)

	if tester.size.Width != DefaultTestWidth || tester.size.Height != DefaultTestHeight {
		t.Errorf("expected default size %dx%d, got %vx%v", DefaultTestWidth, DefaultTestHeight, tester.size.Width, tester.size.Height)
	}
	if tester.clock == nil {
		t.Fatal("expected fake clock to be set")
	}
	if tester.RootElement() != nil {
		t.Error("expected no root element before the first pump")
	}
}

func TestPumpWidget_MountsTree(t *testing.T) {
	tester := NewWidgetTesterWithT(t)

	err := tester.PumpWidget(widgets.Sized(20, 20, widgets.ColorBox{Color: canvas.ColorRed}))
	if err != nil {
		t.Fatal(err)
	}
	if tester.RootElement() == nil {
		t.Fatal("expected root element after PumpWidget")
	}
	if tester.RootRenderObject() == nil {
		t.Fatal("expected root render object after PumpWidget")
	}
	if n := tester.DisplayList().Len(); n != 1 {
		t.Errorf("expected 1 display op, got %d", n)
	}
	if frame := tester.LastFrame(); frame.Frame != 1 || !frame.Flags.SyncRan {
		t.Errorf("unexpected first frame sample: %+v", frame)
	}
}

func TestPumpWidget_Remount(t *testing.T) {
	tester := NewWidgetTesterWithT(t)

	tester.PumpWidget(widgets.ColorBox{Color: canvas.ColorRed})
	first := tester.RootElement()

	tester.PumpWidget(widgets.Padded(4, widgets.ColorBox{Color: canvas.ColorRed}))
	second := tester.RootElement()

	if first == second {
		t.Error("expected new root element after remount")
	}
	if !first.Unmounted() {
		t.Error("expected the replaced element to be unmounted")
	}
}

func TestPumpWidget_SameTypeUpdatesInPlace(t *testing.T) {
	tester := NewWidgetTesterWithT(t)

	tester.PumpWidget(widgets.ColorBox{Color: canvas.ColorRed})
	first := tester.RootElement()

	tester.PumpWidget(widgets.ColorBox{Color: canvas.ColorBlue})
	if tester.RootElement() != first {
		t.Error("expected the element to be reused for the same widget type")
	}
	if c, _ := widgets.ColorOf(tester.RootRenderObject()); c != canvas.ColorBlue {
		t.Errorf("expected updated color, got %v", c)
	}
}

func TestSetSize(t *testing.T) {
	tester := NewWidgetTesterWithT(t)
	tester.SetSize(box.Size{Width: 375, Height: 667})

	tester.PumpWidget(widgets.ColorBox{Color: canvas.ColorRed})

	size, ok := tester.RootRenderObject().Size().(box.Size)
	if !ok {
		t.Fatalf("expected a box size, got %T", tester.RootRenderObject().Size())
	}
	if size.Width != 375 || size.Height != 667 {
		t.Errorf("expected 375x667, got %vx%v", size.Width, size.Height)
	}
}

func TestRequestSyncJob_AppliesOnNextPump(t *testing.T) {
	tester := NewWidgetTesterWithT(t)
	h := &testbed.CounterHandle{}
	tester.PumpWidget(testbed.Counter{Handle: h})

	tester.RequestSyncJob(h.Increment)
	if tester.Find(ByColor(1)).Exists() {
		t.Fatal("sync job must not apply before the next pump")
	}

	if err := tester.Pump(); err != nil {
		t.Fatal(err)
	}
	if !tester.Find(ByColor(1)).Exists() {
		t.Error("expected count 1 after pump")
	}
	if h.Builds() != 2 {
		t.Errorf("expected 2 builds, got %d", h.Builds())
	}
}

func TestPumpAndSettle_CommitsAsyncJob(t *testing.T) {
	tester := NewWidgetTesterWithT(t)
	h := &testbed.CounterHandle{}
	tester.PumpWidget(testbed.Counter{Initial: 4, Handle: h})

	tester.CreateAsyncJob(time.Second, h.Increment)
	if err := tester.PumpAndSettle(5 * time.Second); err != nil {
		t.Fatal(err)
	}

	if !tester.Find(ByColor(5)).Exists() {
		t.Error("expected count 5 after settle")
	}
	if !tester.Engine().Scheduler().Idle() {
		t.Error("expected an idle scheduler after settle")
	}
}

func TestPumpAndSettle_SequentialJobsApplyInOrder(t *testing.T) {
	tester := NewWidgetTesterWithT(t)
	h := &testbed.CounterHandle{}
	tester.PumpWidget(testbed.Counter{Handle: h})

	tester.CreateAsyncJob(time.Second, h.Increment)
	tester.RequestSyncJob(func(b core.JobBuilder) {
		h.Increment(b)
		h.Increment(b)
	})
	if err := tester.PumpAndSettle(5 * time.Second); err != nil {
		t.Fatal(err)
	}

	if !tester.Find(ByColor(3)).Exists() {
		t.Error("expected every increment to apply exactly once")
	}
}
