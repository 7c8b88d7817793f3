package types

// SystemMode is the top-level operating mode selected by the panel switch.
type SystemMode uint8

const (
	ModeUnknown SystemMode = iota
	ModeOff
	ModeRun
	ModeInteractive
)

func (m SystemMode) String() string {
	switch m {
	case ModeOff:
		return "OFF"
	case ModeRun:
		return "RUN"
	case ModeInteractive:
		return "INTERACTIVE"
	default:
		return "UNKNOWN"
	}
}

// ModeValue is retained on state/mode after every committed change.
type ModeValue struct {
	Mode     string `json:"mode"`
	Previous string `json:"previous"`
	TS       int64  `json:"ts_ms"`
}
