package testing

import (
	"slices"
	"testing"

	"github.com/go-drift/weave/pkg/canvas"
	"github.com/go-drift/weave/pkg/render"
	"github.com/go-drift/weave/pkg/testing/internal/testbed"
	"github.com/go-drift/weave/pkg/widgets"
)

func pumpCounterColumn(t *testing.T, h *testbed.CounterHandle) *WidgetTester {
	t.Helper()
	tester := NewWidgetTesterWithT(t)
	err := tester.PumpWidget(widgets.ColumnOf(
		testbed.Counter{Handle: h},
		widgets.HitRegion{
			Tag:      "other",
			Behavior: render.Opaque,
			Child:    widgets.Sized(10, 10, widgets.ColorBox{Color: canvas.ColorBlue}),
		},
	))
	if err != nil {
		t.Fatal(err)
	}
	return tester
}

func TestTapAt(t *testing.T) {
	tester := pumpCounterColumn(t, nil)

	if tags := tester.TapAt(canvas.Point{X: 5, Y: 5}); !slices.Equal(tags, []string{"counter"}) {
		t.Errorf("expected [counter], got %v", tags)
	}
	if tags := tester.TapAt(canvas.Point{X: 5, Y: 15}); !slices.Equal(tags, []string{"other"}) {
		t.Errorf("expected [other], got %v", tags)
	}
	if tags := tester.TapAt(canvas.Point{X: 100, Y: 100}); len(tags) != 0 {
		t.Errorf("expected no hit, got %v", tags)
	}
}

func TestTap_Finder(t *testing.T) {
	tester := pumpCounterColumn(t, nil)

	tags, err := tester.Tap(ByTag("other"))
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(tags, []string{"other"}) {
		t.Errorf("expected [other], got %v", tags)
	}

	if _, err := tester.Tap(ByTag("missing")); err == nil {
		t.Error("expected error for a finder without matches")
	}
}

func TestTap_DrivesCounter(t *testing.T) {
	h := &testbed.CounterHandle{}
	tester := pumpCounterColumn(t, h)

	for range 3 {
		tags, err := tester.Tap(ByTag("counter"))
		if err != nil {
			t.Fatal(err)
		}
		if slices.Contains(tags, "counter") {
			tester.RequestSyncJob(h.Increment)
		}
		if err := tester.Pump(); err != nil {
			t.Fatal(err)
		}
	}

	if !tester.Find(ByColor(3)).Exists() {
		t.Error("expected count 3 after three taps")
	}
}

func TestGlobalRect(t *testing.T) {
	tester := pumpCounterColumn(t, nil)

	rect, err := tester.GlobalRect(ByTag("other"))
	if err != nil {
		t.Fatal(err)
	}
	if want := canvas.RectFromLTWH(0, 10, 10, 10); rect != want {
		t.Errorf("expected %v, got %v", want, rect)
	}

	if _, err := tester.GlobalRect(ByTag("missing")); err == nil {
		t.Error("expected error for a finder without matches")
	}
}
