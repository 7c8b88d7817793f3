package types

import "time"

// StatusView is what the interactive Status screen shows.
type StatusView struct {
	HumidityRaw float32
	HumidityPct float32
	Battery     float32
	Watering    WateringConfig
	WiFi        bool
	TimeSynced  bool
}

// SettingView describes one editable setting and its preview value.
type SettingView struct {
	Name  string
	Unit  string
	Value int
	Min   int
	Max   int
	Step  int
}

// WateringPlan is shown on the watering confirmation screen.
type WateringPlan struct {
	Power    uint8
	Duration time.Duration
	Before   float32
}

// DashboardView is the RUN mode screen.
type DashboardView struct {
	HumidityPct  float32
	ThresholdPct float32
	Battery      float32
	LastWatering string
	Status       string
	Pumping      bool
}
