package clock

import (
	"testing"
	"time"
)

func TestRealClock(t *testing.T) {
	c := &RealClock{}

	before := time.Now()
	now := c.Now()
	after := time.Now()

	if now.Before(before) || now.After(after) {
		t.Errorf("RealClock.Now() returned time outside expected window")
	}
}

func TestMockClock(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewMockClock(base)

	if !c.Now().Equal(base) {
		t.Errorf("expected %v, got %v", base, c.Now())
	}

	c.Advance(90 * time.Minute)
	want := base.Add(90 * time.Minute)
	if !c.Now().Equal(want) {
		t.Errorf("after Advance: expected %v, got %v", want, c.Now())
	}

	if got := c.Since(base); got != 90*time.Minute {
		t.Errorf("Since: expected 90m, got %v", got)
	}

	later := base.Add(2 * time.Hour)
	if got := c.Until(later); got != 30*time.Minute {
		t.Errorf("Until: expected 30m, got %v", got)
	}

	c.Set(base)
	if !c.Now().Equal(base) {
		t.Errorf("after Set: expected %v, got %v", base, c.Now())
	}
}
