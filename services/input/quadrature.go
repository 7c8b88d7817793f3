package input

// Threshold is the number of valid quarter-steps in one mechanical detent.
const Threshold = 4

// transitions maps (prev<<2)|cur to a direction. Invalid or bouncing
// transitions (both channels changing, or no change) map to 0.
var transitions = [16]int8{
	0, -1, 1, 0,
	1, 0, 0, -1,
	-1, 0, 0, 1,
	0, 1, -1, 0,
}

// Decoder turns quadrature pin levels into detent steps.
// It is owned by exactly one goroutine.
type Decoder struct {
	prev      uint8
	acc       int
	threshold int
}

// NewDecoder returns a decoder; threshold <= 0 selects Threshold.
func NewDecoder(threshold int) *Decoder {
	if threshold <= 0 {
		threshold = Threshold
	}
	return &Decoder{threshold: threshold}
}

func code(a, b bool) uint8 {
	var c uint8
	if a {
		c |= 2
	}
	if b {
		c |= 1
	}
	return c
}

// Sample feeds one reading of channels A and B. It returns +1 or -1 when the
// accumulator reaches the threshold, otherwise 0.
func (d *Decoder) Sample(a, b bool) int8 {
	cur := code(a, b)
	dir := transitions[(d.prev<<2)|cur]
	d.prev = cur
	if dir == 0 {
		return 0
	}
	d.acc += int(dir)
	switch {
	case d.acc >= d.threshold:
		d.acc = 0
		return 1
	case d.acc <= -d.threshold:
		d.acc = 0
		return -1
	}
	return 0
}

// Reset re-seeds the previous code and zeroes the accumulator.
func (d *Decoder) Reset(a, b bool) {
	d.prev = code(a, b)
	d.acc = 0
}

func (d *Decoder) Accumulator() int { return d.acc }
