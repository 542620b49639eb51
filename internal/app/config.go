package app

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"adsb1090/internal/filter"
)

// Default tuning constants.
const (
	DefaultFrequency  = 1090000000 // 1090 MHz
	DefaultSampleRate = 2000000    // 2 MHz
	DefaultGain       = 40
)

// ReceiverReference is the receiver's surveyed position, enabling local
// CPR decode on cold start.
type ReceiverReference struct {
	Lat   float64 `yaml:"lat"`
	Lon   float64 `yaml:"lon"`
	AltFt float64 `yaml:"alt_ft"`
}

// Config is the full application configuration. Flags override the YAML
// file; the zero value plus defaults is a working receiver.
type Config struct {
	Frequency  uint32 `yaml:"frequency"`
	SampleRate uint32 `yaml:"sample_rate"`
	Gain       int    `yaml:"gain"`
	Device     int    `yaml:"device"`

	// Input selection. When IQFile or HexFile is set the dongle is not
	// opened; "-" reads stdin.
	IQFile  string `yaml:"iq_file"`
	HexFile string `yaml:"hex_file"`

	LogDir       string `yaml:"log_dir"`
	LogRotateUTC bool   `yaml:"log_rotate_utc"`
	Verbose      bool   `yaml:"verbose"`

	ReceiverReference *ReceiverReference `yaml:"receiver_reference"`

	StaleTimeoutS        int     `yaml:"stale_timeout_s"`
	PhantomTimeoutS      int     `yaml:"phantom_timeout_s"`
	CprPairWindowS       int     `yaml:"cpr_pair_window_s"`
	LocalCprMaxDistance  float64 `yaml:"local_cpr_max_distance_nm"`
	ProximityHorizontal  float64 `yaml:"proximity_horizontal_nm"`
	ProximityVerticalFt  int     `yaml:"proximity_vertical_ft"`
	EnableCrcCorrection  *bool   `yaml:"enable_crc_correction"`
	EmitDedupeWindowS    map[string]int    `yaml:"emit_dedupe_window_s"`
	Geofences            []filter.Geofence `yaml:"geofences"`

	ShowVersion bool `yaml:"-"`
}

// DefaultConfig returns the stock configuration.
func DefaultConfig() Config {
	return Config{
		Frequency:           DefaultFrequency,
		SampleRate:          DefaultSampleRate,
		Gain:                DefaultGain,
		LogDir:              "./logs",
		LogRotateUTC:        true,
		StaleTimeoutS:       300,
		PhantomTimeoutS:     3600,
		CprPairWindowS:      10,
		LocalCprMaxDistance: 180,
		ProximityHorizontal: 5,
		ProximityVerticalFt: 1000,
	}
}

// LoadConfig reads a YAML config file over the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config parse: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects configurations the pipeline cannot start with. These
// errors surface at construction time; nothing downstream re-checks.
func (c *Config) Validate() error {
	if c.StaleTimeoutS <= 0 {
		return fmt.Errorf("config: stale_timeout_s must be positive")
	}
	if c.PhantomTimeoutS <= 0 {
		return fmt.Errorf("config: phantom_timeout_s must be positive")
	}
	if c.CprPairWindowS <= 0 {
		return fmt.Errorf("config: cpr_pair_window_s must be positive")
	}
	if c.LocalCprMaxDistance <= 0 {
		return fmt.Errorf("config: local_cpr_max_distance_nm must be positive")
	}
	if c.ProximityHorizontal <= 0 || c.ProximityVerticalFt <= 0 {
		return fmt.Errorf("config: proximity thresholds must be positive")
	}
	if ref := c.ReceiverReference; ref != nil {
		if ref.Lat < -90 || ref.Lat > 90 || ref.Lon < -180 || ref.Lon > 180 {
			return fmt.Errorf("config: receiver_reference out of range")
		}
	}
	for _, g := range c.Geofences {
		if g.ID == "" {
			return fmt.Errorf("config: geofence without id")
		}
		if g.RadiusNM <= 0 {
			return fmt.Errorf("config: geofence %q radius must be positive", g.ID)
		}
	}
	for kind, secs := range c.EmitDedupeWindowS {
		if secs < 0 {
			return fmt.Errorf("config: emit_dedupe_window_s[%s] must not be negative", kind)
		}
	}
	return nil
}

// CrcCorrectionEnabled reports the effective CRC correction setting
// (default on).
func (c *Config) CrcCorrectionEnabled() bool {
	if c.EnableCrcCorrection == nil {
		return true
	}
	return *c.EnableCrcCorrection
}

// FilterConfig materializes the filter engine configuration.
func (c *Config) FilterConfig() filter.Config {
	fc := filter.DefaultConfig()
	fc.ProximityNM = c.ProximityHorizontal
	fc.ProximityFt = c.ProximityVerticalFt
	fc.Geofences = c.Geofences
	for kind, secs := range c.EmitDedupeWindowS {
		fc.DedupeWindows[filter.Kind(kind)] = time.Duration(secs) * time.Second
	}
	return fc
}
