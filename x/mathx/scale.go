package mathx

// InversePercent maps raw in [lo, hi] onto 100..0 (lo reads as 100 %).
// Values outside the range clamp. ok is false when hi <= lo.
func InversePercent(raw, lo, hi float32) (pct float32, ok bool) {
	if hi <= lo {
		return 0, false
	}
	pct = 100 - (raw-lo)*100/(hi-lo)
	return Clamp(pct, 0, 100), true
}

// ProgressPercent returns elapsed/total as an integer percent in [0, 100].
func ProgressPercent(elapsed, total int64) int {
	if total <= 0 {
		return 100
	}
	return int(Clamp(elapsed*100/total, 0, 100))
}
