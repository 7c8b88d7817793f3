package input

import (
	"testing"
	"time"
)

// drive holds level for d, ticking every 1 ms, and collects gestures.
type driver struct {
	c   *Classifier
	now time.Time
	got []Gesture
}

func newDriver() *driver {
	return &driver{c: NewClassifier(DefaultButtonTiming()), now: time.Unix(1000, 0)}
}

func (d *driver) hold(pressed bool, dur time.Duration) {
	for el := time.Duration(0); el < dur; el += time.Millisecond {
		if g := d.c.Update(pressed, d.now); g != GestureNone {
			d.got = append(d.got, g)
		}
		d.now = d.now.Add(time.Millisecond)
	}
}

func count(gs []Gesture, want Gesture) int {
	n := 0
	for _, g := range gs {
		if g == want {
			n++
		}
	}
	return n
}

func TestClassifier_SingleClick(t *testing.T) {
	d := newDriver()
	d.hold(false, 20*time.Millisecond)
	d.hold(true, 120*time.Millisecond)
	d.hold(false, 400*time.Millisecond)

	if len(d.got) != 1 || d.got[0] != Click {
		t.Fatalf("gestures = %v, want [single_click]", d.got)
	}
}

func TestClassifier_ClickTimedFromFirstPress(t *testing.T) {
	d := newDriver()
	d.hold(true, 100*time.Millisecond)
	// press became stable at 50 ms; the window closes 233 ms later, i.e. 183 ms
	// into this release phase (release debounce is already over by then).
	d.hold(false, 182*time.Millisecond)
	if len(d.got) != 0 {
		t.Fatalf("click fired early: %v", d.got)
	}
	d.hold(false, 2*time.Millisecond)
	if len(d.got) != 1 || d.got[0] != Click {
		t.Fatalf("gestures = %v, want [single_click]", d.got)
	}
}

func TestClassifier_DoubleClick(t *testing.T) {
	d := newDriver()
	d.hold(true, 60*time.Millisecond)
	d.hold(false, 60*time.Millisecond)
	d.hold(true, 60*time.Millisecond)
	d.hold(false, 500*time.Millisecond)

	if count(d.got, DoubleClick) != 1 || count(d.got, Click) != 0 || count(d.got, LongPress) != 0 {
		t.Fatalf("gestures = %v, want exactly one double_click", d.got)
	}
}

func TestClassifier_ThirdPressStartsFreshCycle(t *testing.T) {
	d := newDriver()
	for i := 0; i < 3; i++ {
		d.hold(true, 55*time.Millisecond)
		d.hold(false, 55*time.Millisecond)
	}
	d.hold(false, 400*time.Millisecond)

	if count(d.got, DoubleClick) != 1 || count(d.got, Click) != 1 {
		t.Fatalf("gestures = %v, want one double_click then one single_click", d.got)
	}
	if d.got[0] != DoubleClick {
		t.Fatalf("double click must come first: %v", d.got)
	}
}

func TestClassifier_LongPressSuppressesClick(t *testing.T) {
	d := newDriver()
	d.hold(true, 1500*time.Millisecond)
	d.hold(false, 600*time.Millisecond)

	if len(d.got) != 1 || d.got[0] != LongPress {
		t.Fatalf("gestures = %v, want [long_press]", d.got)
	}
}

func TestClassifier_HeldSecondPressLongPresses(t *testing.T) {
	d := newDriver()
	d.hold(true, 80*time.Millisecond)
	d.hold(false, 80*time.Millisecond)
	d.hold(true, 1500*time.Millisecond)
	d.hold(false, 400*time.Millisecond)

	if len(d.got) != 2 || d.got[0] != DoubleClick || d.got[1] != LongPress {
		t.Fatalf("gestures = %v, want [double_click long_press]", d.got)
	}
}

func TestClassifier_BounceShorterThanDebounceIgnored(t *testing.T) {
	d := newDriver()
	for i := 0; i < 10; i++ {
		d.hold(true, 3*time.Millisecond)
		d.hold(false, 3*time.Millisecond)
	}
	d.hold(false, 500*time.Millisecond)
	if len(d.got) != 0 {
		t.Fatalf("bounce produced %v", d.got)
	}
	if d.c.Pressed() {
		t.Fatal("stable level must remain released")
	}
}

func TestClassifier_ResetDropsPendingClick(t *testing.T) {
	d := newDriver()
	d.hold(true, 60*time.Millisecond)
	d.hold(false, 60*time.Millisecond)
	d.c.Reset()
	d.hold(false, 400*time.Millisecond)
	if len(d.got) != 0 {
		t.Fatalf("reset classifier still emitted %v", d.got)
	}
}
