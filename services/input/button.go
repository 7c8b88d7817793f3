package input

import "time"

// Gesture is a classified button action.
type Gesture uint8

const (
	GestureNone Gesture = iota
	Click
	DoubleClick
	LongPress
)

func (g Gesture) String() string {
	switch g {
	case Click:
		return "single_click"
	case DoubleClick:
		return "double_click"
	case LongPress:
		return "long_press"
	default:
		return "none"
	}
}

// ButtonTiming holds the classifier windows.
type ButtonTiming struct {
	Debounce    time.Duration
	DoubleClick time.Duration // measured from the first press
	LongPress   time.Duration
}

func DefaultButtonTiming() ButtonTiming {
	return ButtonTiming{
		Debounce:    50 * time.Millisecond,
		DoubleClick: 233 * time.Millisecond,
		LongPress:   time.Second,
	}
}

// Classifier debounces one button and classifies presses.
// Not safe for concurrent use; the main loop owns it.
type Classifier struct {
	cfg ButtonTiming

	started    bool
	lastRaw    bool
	stable     bool
	lastChange time.Time

	pressStart time.Time // zero once consumed or released
	pending    bool
	pendingAt  time.Time
}

func NewClassifier(cfg ButtonTiming) *Classifier {
	def := DefaultButtonTiming()
	if cfg.Debounce <= 0 {
		cfg.Debounce = def.Debounce
	}
	if cfg.DoubleClick <= 0 {
		cfg.DoubleClick = def.DoubleClick
	}
	if cfg.LongPress <= 0 {
		cfg.LongPress = def.LongPress
	}
	return &Classifier{cfg: cfg}
}

// Update consumes the current logical level (true = pressed) and returns at
// most one gesture.
func (c *Classifier) Update(pressed bool, now time.Time) Gesture {
	if !c.started {
		c.started = true
		c.lastChange = now
	}

	if pressed != c.lastRaw {
		c.lastRaw = pressed
		c.lastChange = now
	}

	if c.lastRaw != c.stable && now.Sub(c.lastChange) >= c.cfg.Debounce {
		c.stable = c.lastRaw
		if c.stable {
			c.pressStart = now
			if c.pending && now.Sub(c.pendingAt) < c.cfg.DoubleClick {
				c.pending = false
				return DoubleClick
			}
			c.pending = true
			c.pendingAt = now
		} else {
			c.pressStart = time.Time{}
		}
	}

	if c.stable && !c.pressStart.IsZero() && now.Sub(c.pressStart) >= c.cfg.LongPress {
		c.pending = false
		c.pressStart = time.Time{}
		return LongPress
	}

	if c.pending && !c.stable && now.Sub(c.pendingAt) >= c.cfg.DoubleClick {
		c.pending = false
		return Click
	}
	return GestureNone
}

// Pressed reports the debounced level.
func (c *Classifier) Pressed() bool { return c.stable }

// Reset forgets any press in progress and any pending click.
func (c *Classifier) Reset() {
	c.pending = false
	c.pressStart = time.Time{}
}
