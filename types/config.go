package types

import (
	"time"

	"plantcode-go/errcode"
)

// Config is the persisted device configuration, published per group on
// config/<group>.
type Config struct {
	Watering WateringConfig `yaml:"watering" json:"watering"`
	WiFi     WiFiConfig     `yaml:"wifi" json:"wifi"`
	LLM      LLMConfig      `yaml:"llm" json:"llm"`
	System   SystemConfig   `yaml:"system" json:"system"`
}

type WateringConfig struct {
	Threshold    uint16 `yaml:"threshold" json:"threshold"` // raw ADC, higher is drier
	Power        uint8  `yaml:"power" json:"power"`         // pump PWM duty 0..255
	DurationMs   uint32 `yaml:"duration_ms" json:"duration_ms"`
	MinIntervalS uint32 `yaml:"min_interval_s" json:"min_interval_s"`
	HumidityWet  uint16 `yaml:"humidity_wet" json:"humidity_wet"`
	HumidityDry  uint16 `yaml:"humidity_dry" json:"humidity_dry"`
	PlantType    string `yaml:"plant_type" json:"plant_type"`
}

func (w WateringConfig) Duration() time.Duration {
	return time.Duration(w.DurationMs) * time.Millisecond
}

func (w WateringConfig) MinInterval() time.Duration {
	return time.Duration(w.MinIntervalS) * time.Second
}

type WiFiAuth string

const (
	WiFiPSK        WiFiAuth = "psk"
	WiFiEnterprise WiFiAuth = "enterprise"
)

type WiFiConfig struct {
	SSID     string   `yaml:"ssid" json:"ssid"`
	Password string   `yaml:"password" json:"-"`
	AuthMode WiFiAuth `yaml:"auth_mode" json:"auth_mode"`
	Identity string   `yaml:"identity,omitempty" json:"identity,omitempty"`
	Username string   `yaml:"username,omitempty" json:"username,omitempty"`
}

type LLMConfig struct {
	BaseURL  string `yaml:"base_url" json:"base_url"`
	APIKey   string `yaml:"api_key" json:"-"`
	Model    string `yaml:"model" json:"model"`
	TimeoutS uint32 `yaml:"timeout_s" json:"timeout_s"`
}

// Configured reports whether requests can be attempted at all.
func (l LLMConfig) Configured() bool { return l.BaseURL != "" && l.APIKey != "" }

type SystemConfig struct {
	NTPEnabled         bool   `yaml:"ntp_enabled" json:"ntp_enabled"`
	Timezone           string `yaml:"timezone" json:"timezone"`
	NTPServer          string `yaml:"ntp_server" json:"ntp_server"`
	LogLevel           string `yaml:"log_level" json:"log_level"`
	TelemetryIntervalS uint32 `yaml:"telemetry_interval_s" json:"telemetry_interval_s"`
}

func DefaultConfig() Config {
	return Config{
		Watering: WateringConfig{
			Threshold:    2000,
			Power:        200,
			DurationMs:   3000,
			MinIntervalS: 3600,
			HumidityWet:  1000,
			HumidityDry:  2600,
			PlantType:    "UnnamedPlant",
		},
		WiFi: WiFiConfig{AuthMode: WiFiPSK},
		LLM: LLMConfig{
			Model:    "gpt-3.5-turbo",
			TimeoutS: 30,
		},
		System: SystemConfig{
			NTPEnabled:         true,
			Timezone:           "CST-8",
			NTPServer:          "pool.ntp.org",
			LogLevel:           "info",
			TelemetryIntervalS: 60,
		},
	}
}

// Validate checks ranges that the interactive editor also enforces.
func (c Config) Validate() error {
	w := c.Watering
	switch {
	case w.Threshold < 100 || w.Threshold > 4000:
		return &errcode.E{C: errcode.ConfigInvalid, Op: "config.validate", Msg: "watering.threshold out of range"}
	case w.DurationMs < 1000 || w.DurationMs > 60000:
		return &errcode.E{C: errcode.ConfigInvalid, Op: "config.validate", Msg: "watering.duration_ms out of range"}
	case w.MinIntervalS < 60 || w.MinIntervalS > 3600:
		return &errcode.E{C: errcode.ConfigInvalid, Op: "config.validate", Msg: "watering.min_interval_s out of range"}
	case w.HumidityWet < 100 || w.HumidityWet > 3000 || w.HumidityDry < 100 || w.HumidityDry > 3000:
		return &errcode.E{C: errcode.ConfigInvalid, Op: "config.validate", Msg: "watering humidity calibration out of range"}
	}
	switch c.WiFi.AuthMode {
	case "", WiFiPSK, WiFiEnterprise:
	default:
		return &errcode.E{C: errcode.ConfigInvalid, Op: "config.validate", Msg: "wifi.auth_mode must be psk or enterprise"}
	}
	return nil
}
