package testing

import (
	"testing"
	"time"
)

func TestFakeClock_FrozenByDefault(t *testing.T) {
	clock := NewFakeClock()

	a := clock.Now()
	b := clock.Now()
	if !a.Equal(b) {
		t.Errorf("expected a frozen clock, got %v then %v", a, b)
	}
}

func TestFakeClock_Advance(t *testing.T) {
	clock := NewFakeClock()
	start := clock.Now()

	clock.Advance(250 * time.Millisecond)

	if got := clock.Now().Sub(start); got != 250*time.Millisecond {
		t.Errorf("expected 250ms elapsed, got %v", got)
	}
}

func TestFakeClock_Step(t *testing.T) {
	clock := NewFakeClock()
	clock.SetStep(10 * time.Millisecond)

	a := clock.Now()
	b := clock.Now()
	c := clock.Now()
	if b.Sub(a) != 10*time.Millisecond || c.Sub(b) != 10*time.Millisecond {
		t.Errorf("expected 10ms steps, got %v and %v", b.Sub(a), c.Sub(b))
	}

	clock.SetStep(0)
	if !clock.Now().Equal(clock.Now()) {
		t.Error("expected a zero step to freeze the clock again")
	}
}

func TestFakeClock_DrivesTesterDeadlines(t *testing.T) {
	tester := NewWidgetTesterWithT(t)
	if tester.Clock() == nil {
		t.Fatal("expected tester clock")
	}

	before := tester.Clock().Now()
	tester.Clock().Advance(time.Hour)
	if got := tester.Clock().Now().Sub(before); got != time.Hour {
		t.Errorf("expected the tester clock to advance by an hour, got %v", got)
	}
}
