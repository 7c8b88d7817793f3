package conv

import (
	"math"
	"strconv"
	"testing"
)

func TestItoa(t *testing.T) {
	for _, n := range []int64{0, 7, -7, 1234567, -1234567, math.MaxInt64, math.MinInt64} {
		var buf [20]byte
		if got := string(Itoa(buf[:], n)); got != strconv.FormatInt(n, 10) {
			t.Fatalf("Itoa(%d) = %q", n, got)
		}
	}
}

func TestUtoa(t *testing.T) {
	for _, n := range []uint64{0, 9, 10, math.MaxUint64} {
		var buf [20]byte
		if got := string(Utoa(buf[:], n)); got != strconv.FormatUint(n, 10) {
			t.Fatalf("Utoa(%d) = %q", n, got)
		}
	}
}
