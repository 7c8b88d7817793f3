package timex

import (
	"time"

	"plantcode-go/x/conv"
)

// PeriodFromHz returns the tick period for a frequency.
// freqHz==0 is coerced to 1 to avoid division by zero.
func PeriodFromHz(freqHz uint32) time.Duration {
	if freqHz == 0 {
		freqHz = 1
	}
	return time.Second / time.Duration(freqHz)
}

// Ago renders an elapsed duration the way the dashboard shows it:
// "42s ago", "5m ago", "3h ago". Unknown renders "N/A".
func Ago(d time.Duration, known bool) string {
	if !known {
		return "N/A"
	}
	if d < 0 {
		d = 0
	}
	switch s := int64(d / time.Second); {
	case s < 60:
		return itoa(s) + "s ago"
	case s < 3600:
		return itoa(s/60) + "m ago"
	default:
		return itoa(s/3600) + "h ago"
	}
}

func itoa(v int64) string {
	var buf [20]byte
	return string(conv.Itoa(buf[:], v))
}
