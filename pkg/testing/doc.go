// Package testing provides a widget testing framework for weave.
//
// # Quick Start
//
// Create a tester, pump a widget, and make assertions:
//
//	func TestMyWidget(t *testing.T) {
//	    tester := weavetest.NewWidgetTesterWithT(t)
//	    tester.PumpWidget(MyWidget{})
//
//	    // Find elements
//	    swatch := tester.Find(weavetest.ByColor(canvas.ColorRed)).First()
//
//	    // Hit-test what sits under an element
//	    tags, _ := tester.Tap(weavetest.ByTag("submit"))
//
//	    // Drive async work to completion
//	    tester.CreateAsyncJob(0, func(b core.JobBuilder) { set.Set(b, 1) })
//	    tester.PumpAndSettle(time.Second)
//	}
//
// # Snapshot Testing
//
// Capture and compare render tree snapshots:
//
//	snapshot := tester.CaptureSnapshot()
//	snapshot.MatchesFile(t, "testdata/my_widget.snapshot.json")
//
// Update snapshots with:
//
//	WEAVE_UPDATE_SNAPSHOTS=1 go test ./...
//
// # Deadlines
//
// Async job deadlines are taken from a fake clock:
//
//	tester.Clock().Advance(100 * time.Millisecond)
//
// # Import Alias
//
// Since this package has the same name as the standard library testing
// package, import it with an alias:
//
//	import weavetest "github.com/go-drift/weave/pkg/testing"
package testing
