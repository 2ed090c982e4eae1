package ratelimit

import (
	"testing"
	"time"
)

func TestTryRecordRespectsCapacity(t *testing.T) {
	tr := NewActionTracker(2, time.Hour)
	if !tr.TryRecord() {
		t.Fatal("first record should succeed")
	}
	if !tr.TryRecord() {
		t.Fatal("second record should succeed")
	}
	if tr.TryRecord() {
		t.Fatal("third record should fail at capacity")
	}
}

func TestTryRecordUnlimitedWhenZero(t *testing.T) {
	tr := NewActionTracker(0, time.Hour)
	for i := 0; i < 100; i++ {
		if !tr.TryRecord() {
			t.Fatal("max_actions_per_hour = 0 must disable the check")
		}
	}
}

func TestSlidingWindowExpiry(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cur := base
	tr := NewActionTracker(1, time.Hour)
	tr.now = func() time.Time { return cur }

	if !tr.TryRecord() {
		t.Fatal("first record should succeed")
	}
	if tr.TryRecord() {
		t.Fatal("second record within window should fail")
	}

	cur = base.Add(time.Hour + time.Second)
	if !tr.TryRecord() {
		t.Fatal("record after window expiry should succeed")
	}
}

func TestNextSlotIn(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cur := base
	tr := NewActionTracker(1, time.Hour)
	tr.now = func() time.Time { return cur }

	if _, atCap := tr.NextSlotIn(); atCap {
		t.Fatal("empty tracker should not report at capacity")
	}
	tr.TryRecord()
	d, atCap := tr.NextSlotIn()
	if !atCap {
		t.Fatal("tracker at capacity should report atCap")
	}
	if d <= 0 || d > time.Hour {
		t.Fatalf("unexpected next-slot duration: %v", d)
	}
}
