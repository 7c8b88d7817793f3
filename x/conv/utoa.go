// Package conv formats integers into caller buffers without fmt or strconv,
// for paths that run on the microcontroller every tick.
package conv

// Utoa writes the base-10 form of n into the tail of buf and returns the
// used slice. A buffer too short for n keeps only the low digits.
func Utoa(buf []byte, n uint64) []byte {
	i := len(buf)
	for i > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
		if n == 0 {
			break
		}
	}
	return buf[i:]
}
