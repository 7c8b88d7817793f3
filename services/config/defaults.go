package config

// Embedded per-device defaults, used when no persisted file exists yet.
// Keys and shapes match types.Config; anything omitted keeps the value from
// types.DefaultConfig.

const cfgPico = `
watering:
  threshold: 2000
  power: 200
  duration_ms: 3000
  min_interval_s: 3600
  humidity_wet: 1000
  humidity_dry: 2600
system:
  log_level: info
  telemetry_interval_s: 60
`

const cfgHost = `
system:
  log_level: debug
  telemetry_interval_s: 10
`

var embeddedConfigs = map[string][]byte{
	"pico": []byte(cfgPico),
	"host": []byte(cfgHost),
}

// EmbeddedConfigLookup resolves the default YAML for a device. Tests and
// builds with generated configs may replace it.
var EmbeddedConfigLookup = func(device string) ([]byte, bool) {
	b, ok := embeddedConfigs[device]
	return b, ok
}
