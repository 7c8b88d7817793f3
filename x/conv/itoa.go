package conv

// Itoa writes the base-10 form of n into the tail of buf and returns the
// used slice. buf should hold 20 bytes for any int64.
func Itoa(buf []byte, n int64) []byte {
	if n >= 0 {
		return Utoa(buf, uint64(n))
	}
	out := Utoa(buf, uint64(-n))
	i := len(buf) - len(out)
	if i == 0 {
		return out
	}
	buf[i-1] = '-'
	return buf[i-1:]
}
