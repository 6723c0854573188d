package logic

import (
	"testing"
	"time"
)

func TestPressDetectorFiresAfterHold(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	d := NewPressDetector(5 * time.Second)

	if d.Process(true, now) {
		t.Error("should not fire on first pressed sample")
	}
	if d.Process(true, now.Add(4900*time.Millisecond)) {
		t.Error("should not fire before hold duration")
	}
	if !d.Process(true, now.Add(5*time.Second)) {
		t.Error("expected fire at hold duration")
	}
}

func TestPressDetectorFiresOncePerPress(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	d := NewPressDetector(time.Second)

	fires := 0
	for i := 0; i < 50; i++ {
		if d.Process(true, now.Add(time.Duration(i)*100*time.Millisecond)) {
			fires++
		}
	}
	if fires != 1 {
		t.Errorf("expected 1 fire for one long press, got %d", fires)
	}

	// Release and press again
	d.Process(false, now.Add(6*time.Second))
	d.Process(true, now.Add(7*time.Second))
	if !d.Process(true, now.Add(8*time.Second)) {
		t.Error("expected second press to fire")
	}
}

func TestPressDetectorShortPressRejected(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	d := NewPressDetector(5 * time.Second)

	d.Process(true, now)
	d.Process(true, now.Add(2*time.Second))
	d.Process(false, now.Add(3*time.Second)) // released early
	if d.Process(true, now.Add(6*time.Second)) {
		t.Error("release must restart the hold timer")
	}
	if d.Held(now.Add(7*time.Second)) != time.Second {
		t.Errorf("Held: got %v, want 1s", d.Held(now.Add(7*time.Second)))
	}
}

func TestPressDetectorHeldWhenReleased(t *testing.T) {
	d := NewPressDetector(time.Second)
	if d.Held(time.Now()) != 0 {
		t.Error("expected zero hold when never pressed")
	}
}
