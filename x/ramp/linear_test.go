package ramp

import (
	"testing"
	"time"
)

func TestLinearMonotonicToTarget(t *testing.T) {
	var levels []uint8
	var waited time.Duration
	ok := Linear(0, 200, 100*time.Millisecond, 5,
		func(d time.Duration) bool { waited += d; return true },
		func(l uint8) { levels = append(levels, l) })
	if !ok {
		t.Fatal("ramp reported cancel")
	}
	if len(levels) != 5 || levels[len(levels)-1] != 200 {
		t.Fatalf("levels = %v", levels)
	}
	for i := 1; i < len(levels); i++ {
		if levels[i] < levels[i-1] {
			t.Fatalf("non-monotonic: %v", levels)
		}
	}
	if waited != 100*time.Millisecond {
		t.Fatalf("waited %v", waited)
	}
}

func TestLinearCancel(t *testing.T) {
	calls := 0
	var last uint8
	ok := Linear(0, 255, time.Second, 10,
		func(time.Duration) bool { calls++; return calls < 3 },
		func(l uint8) { last = l })
	if ok {
		t.Fatal("expected cancel")
	}
	if last == 255 {
		t.Fatal("cancelled ramp must not reach target")
	}
}

func TestLinearSnap(t *testing.T) {
	var got uint8
	Linear(10, 90, 0, 8, func(time.Duration) bool { return true }, func(l uint8) { got = l })
	if got != 90 {
		t.Fatalf("snap = %d", got)
	}
}
