// Package config owns the device configuration: loading, validation,
// persistence and publication of each group on config/<group>.
package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"sort"
	"strconv"
	"sync"

	"gopkg.in/yaml.v3"

	"plantcode-go/bus"
	"plantcode-go/errcode"
	"plantcode-go/types"
)

const configPrefix = "config"

var (
	TopicWatering = bus.T(configPrefix, "watering")
	TopicWiFi     = bus.T(configPrefix, "wifi")
	TopicLLM      = bus.T(configPrefix, "llm")
	TopicSystem   = bus.T(configPrefix, "system")
)

type Options struct {
	// Device selects the embedded defaults used when nothing is persisted.
	Device string
	Conn   *bus.Connection
	Logger *slog.Logger
}

// Store is safe for concurrent use.
type Store struct {
	mu  sync.RWMutex
	cfg types.Config
	p   Persister
	opt Options
	log *slog.Logger
}

func NewStore(p Persister, opt Options) *Store {
	if opt.Logger == nil {
		opt.Logger = slog.Default()
	}
	return &Store{
		cfg: types.DefaultConfig(),
		p:   p,
		opt: opt,
		log: opt.Logger.With("svc", "config"),
	}
}

// Load reads the persisted configuration, falling back to the embedded
// defaults for the device. An invalid file is rejected and the defaults kept.
func (s *Store) Load() error {
	raw, err := s.p.Load()
	source := "persisted"
	if errors.Is(err, fs.ErrNotExist) {
		raw, _ = EmbeddedConfigLookup(s.opt.Device)
		source = "embedded"
		err = nil
	}
	if err != nil {
		return errcode.Wrap(errcode.Error, "config.load", err)
	}

	cfg, err := s.defaults()
	if err != nil {
		return err
	}
	if source == "persisted" {
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return &errcode.E{C: errcode.ConfigInvalid, Op: "config.load", Msg: "malformed config file", Err: err}
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
	s.log.Info("config loaded", "source", source, "device", s.opt.Device)
	s.publish(cfg)
	return nil
}

// defaults is types.DefaultConfig overlaid with the device's embedded YAML.
func (s *Store) defaults() (types.Config, error) {
	cfg := types.DefaultConfig()
	if raw, ok := EmbeddedConfigLookup(s.opt.Device); ok && len(raw) > 0 {
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, &errcode.E{C: errcode.ConfigInvalid, Op: "config.defaults", Msg: "malformed embedded config", Err: err}
		}
	}
	return cfg, nil
}

func (s *Store) Get() types.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Update applies fn to a copy, validates it and persists it. The in-memory
// configuration only changes if the save succeeds.
func (s *Store) Update(fn func(*types.Config)) error {
	s.mu.Lock()
	next := s.cfg
	fn(&next)
	if err := next.Validate(); err != nil {
		s.mu.Unlock()
		return err
	}
	if err := s.save(next); err != nil {
		s.mu.Unlock()
		return err
	}
	s.cfg = next
	s.mu.Unlock()
	s.publish(next)
	return nil
}

// Set changes one dotted key in memory. Call Save to persist.
func (s *Store) Set(key, value string) error {
	k, ok := keys[key]
	if !ok {
		return &errcode.E{C: errcode.UnknownKey, Op: "config.set", Msg: "unknown key " + key}
	}
	s.mu.Lock()
	next := s.cfg
	if err := k.set(&next, value); err != nil {
		s.mu.Unlock()
		return &errcode.E{C: errcode.InvalidParams, Op: "config.set", Msg: key + ": " + err.Error(), Err: err}
	}
	if err := next.Validate(); err != nil {
		s.mu.Unlock()
		return err
	}
	s.cfg = next
	s.mu.Unlock()
	s.log.Info("config key set", "key", key)
	s.publish(next)
	return nil
}

// Lookup renders the current value of a dotted key. Secrets read as "***"
// when set.
func (s *Store) Lookup(key string) (string, bool) {
	k, ok := keys[key]
	if !ok {
		return "", false
	}
	cfg := s.Get()
	v := k.get(&cfg)
	if k.secret && v != "" {
		v = "***"
	}
	return v, true
}

func (s *Store) Save() error {
	return s.save(s.Get())
}

// Reset restores the device defaults and persists them.
func (s *Store) Reset() error {
	cfg, err := s.defaults()
	if err != nil {
		return err
	}
	if err := s.save(cfg); err != nil {
		return err
	}
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
	s.log.Info("config reset to defaults")
	s.publish(cfg)
	return nil
}

func (s *Store) save(cfg types.Config) error {
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return errcode.Wrap(errcode.ConfigSaveFailed, "config.save", err)
	}
	if err := s.p.Save(b); err != nil {
		s.log.Error("config save failed", "err", err)
		return &errcode.E{C: errcode.ConfigSaveFailed, Op: "config.save", Msg: "failed to save config", Err: err}
	}
	return nil
}

func (s *Store) publish(cfg types.Config) {
	c := s.opt.Conn
	if c == nil {
		return
	}
	c.Publish(c.NewMessage(TopicWatering, cfg.Watering, true))
	c.Publish(c.NewMessage(TopicWiFi, cfg.WiFi, true))
	c.Publish(c.NewMessage(TopicLLM, cfg.LLM, true))
	c.Publish(c.NewMessage(TopicSystem, cfg.System, true))
}

// Keys lists every dotted key accepted by Set, sorted.
func Keys() []string {
	out := make([]string, 0, len(keys))
	for k := range keys {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

type key struct {
	get    func(c *types.Config) string
	set    func(c *types.Config, v string) error
	secret bool
}

func str(p func(c *types.Config) *string) key {
	return key{
		get: func(c *types.Config) string { return *p(c) },
		set: func(c *types.Config, v string) error {
			*p(c) = v
			return nil
		},
	}
}

func secret(p func(c *types.Config) *string) key {
	k := str(p)
	k.secret = true
	return k
}

func uintKey[T ~uint8 | ~uint16 | ~uint32](bits int, p func(c *types.Config) *T) key {
	return key{
		get: func(c *types.Config) string { return strconv.FormatUint(uint64(*p(c)), 10) },
		set: func(c *types.Config, v string) error {
			n, err := strconv.ParseUint(v, 10, bits)
			if err != nil {
				return err
			}
			*p(c) = T(n)
			return nil
		},
	}
}

func boolKey(p func(c *types.Config) *bool) key {
	return key{
		get: func(c *types.Config) string { return strconv.FormatBool(*p(c)) },
		set: func(c *types.Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return err
			}
			*p(c) = b
			return nil
		},
	}
}

var keys = map[string]key{
	"watering.threshold":      uintKey(16, func(c *types.Config) *uint16 { return &c.Watering.Threshold }),
	"watering.power":          uintKey(8, func(c *types.Config) *uint8 { return &c.Watering.Power }),
	"watering.duration_ms":    uintKey(32, func(c *types.Config) *uint32 { return &c.Watering.DurationMs }),
	"watering.min_interval_s": uintKey(32, func(c *types.Config) *uint32 { return &c.Watering.MinIntervalS }),
	"watering.humidity_wet":   uintKey(16, func(c *types.Config) *uint16 { return &c.Watering.HumidityWet }),
	"watering.humidity_dry":   uintKey(16, func(c *types.Config) *uint16 { return &c.Watering.HumidityDry }),
	"watering.plant_type":     str(func(c *types.Config) *string { return &c.Watering.PlantType }),

	"wifi.ssid":     str(func(c *types.Config) *string { return &c.WiFi.SSID }),
	"wifi.password": secret(func(c *types.Config) *string { return &c.WiFi.Password }),
	"wifi.auth_mode": {
		get: func(c *types.Config) string { return string(c.WiFi.AuthMode) },
		set: func(c *types.Config, v string) error {
			c.WiFi.AuthMode = types.WiFiAuth(v)
			return nil
		},
	},
	"wifi.identity": str(func(c *types.Config) *string { return &c.WiFi.Identity }),
	"wifi.username": str(func(c *types.Config) *string { return &c.WiFi.Username }),

	"llm.base_url":  str(func(c *types.Config) *string { return &c.LLM.BaseURL }),
	"llm.api_key":   secret(func(c *types.Config) *string { return &c.LLM.APIKey }),
	"llm.model":     str(func(c *types.Config) *string { return &c.LLM.Model }),
	"llm.timeout_s": uintKey(32, func(c *types.Config) *uint32 { return &c.LLM.TimeoutS }),

	"system.ntp_enabled":          boolKey(func(c *types.Config) *bool { return &c.System.NTPEnabled }),
	"system.timezone":             str(func(c *types.Config) *string { return &c.System.Timezone }),
	"system.ntp_server":           str(func(c *types.Config) *string { return &c.System.NTPServer }),
	"system.log_level":            str(func(c *types.Config) *string { return &c.System.LogLevel }),
	"system.telemetry_interval_s": uintKey(32, func(c *types.Config) *uint32 { return &c.System.TelemetryIntervalS }),
}
