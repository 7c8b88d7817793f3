package types

// SoilReading is published on telemetry/soil.
type SoilReading struct {
	Raw     float32 `json:"raw"`
	Percent float32 `json:"percent"`
	TS      int64   `json:"ts_ms"`
	Error   string  `json:"error,omitempty"`
}

// BatteryReading is published on telemetry/battery.
type BatteryReading struct {
	Volts float32 `json:"volts"`
	TS    int64   `json:"ts_ms"`
	Error string  `json:"error,omitempty"`
}

// RunValue is retained on state/run while RUN mode is active.
type RunValue struct {
	Waterings   uint32 `json:"waterings"`
	LastWaterTS int64  `json:"last_water_ts_ms,omitempty"`
	Status      string `json:"status"`
}

// NetStatus is retained on net/status.
type NetStatus struct {
	WiFi       bool `json:"wifi"`
	TimeSynced bool `json:"time_synced"`
}

// InputStatus is a non-consuming snapshot of the input pipeline.
type InputStatus struct {
	Mode          string `json:"system_mode"`
	Queued        int    `json:"queued"`
	Dropped       uint32 `json:"dropped"`
	Accumulator   int    `json:"accumulator"`
	Clicked       bool   `json:"button_clicked"`
	DoubleClicked bool   `json:"button_double_clicked"`
	LongPressed   bool   `json:"button_long_pressed"`
}
