package globaltime

import (
	"testing"
	"time"
)

func TestSetFixedPinsTheClock(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))
	SetFixed(fixed)
	defer Reset()

	if !Now().Equal(fixed) {
		t.Fatalf("expected pinned clock, got %v", Now())
	}
	if got := UTC(); got.Location() != time.UTC || !got.Equal(fixed) {
		t.Fatalf("expected pinned UTC reading, got %v", got)
	}
}

func TestResetRestoresRealClock(t *testing.T) {
	SetFixed(time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC))
	Reset()

	if time.Since(Now()) > time.Minute {
		t.Fatalf("expected real clock after reset, got %v", Now())
	}
}
