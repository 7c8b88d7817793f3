package types

// OKReply and ErrorReply are the generic answers to bus requests.
type OKReply struct {
	OK bool `json:"ok"`
}

type ErrorReply struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// PowerStatus is retained on hal/power.
type PowerStatus struct {
	Sensor bool `json:"sensor"`
	Pump   bool `json:"pump"`
	Screen bool `json:"screen"`
}

// PumpStatus is retained on hal/pump.
type PumpStatus struct {
	Running bool  `json:"running"`
	Duty    uint8 `json:"duty"`
	Runs    int   `json:"runs"`
}

// PumpRunReq asks the HAL for a timed pump run.
type PumpRunReq struct {
	Duty uint8  `json:"duty"`
	Ms   uint32 `json:"ms"`
}

// PowerReq switches one power gate.
type PowerReq struct {
	Gate string `json:"gate"`
	On   bool   `json:"on"`
}

// Readings is the reply to a hal/ctl/read request.
type Readings struct {
	Soil    SoilReading    `json:"soil"`
	Battery BatteryReading `json:"battery"`
}
