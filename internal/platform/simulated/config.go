package simulated

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config describes a simulated machine.
type Config struct {
	Power              PowerConfig     `yaml:"power"`
	AmbientLightSensor bool            `yaml:"ambient_light_sensor"`
	Latency            LatencyConfig   `yaml:"latency"`
	Monitors           []MonitorConfig `yaml:"monitors"`
}

// PowerConfig is the active power scheme.
type PowerConfig struct {
	Brightness int  `yaml:"brightness"`
	Adaptive   bool `yaml:"adaptive"`
}

// LatencyConfig delays individual sources.
type LatencyConfig struct {
	Legacy   time.Duration `yaml:"legacy"`
	Topology time.Duration `yaml:"topology"`
	Desktop  time.Duration `yaml:"desktop"`
	Handles  time.Duration `yaml:"handles"`
	Physical time.Duration `yaml:"physical"`
	Detect   time.Duration `yaml:"detect"`
}

// MonitorConfig is one simulated monitor.
type MonitorConfig struct {
	Identity     string  `yaml:"identity"`
	Description  string  `yaml:"description"`
	FriendlyName string  `yaml:"friendly_name"`
	Connection   string  `yaml:"connection"`
	Adapter      string  `yaml:"adapter"`
	DisplayIndex int     `yaml:"display_index"`
	MonitorIndex int     `yaml:"monitor_index"`
	Internal     bool    `yaml:"internal"`
	RefreshRate  float64 `yaml:"refresh_rate"`
	Rect         Rect    `yaml:"rect"`

	// NoTopology hides the monitor from the connector-topology source.
	NoTopology bool `yaml:"no_topology"`

	DDC *DDCConfig `yaml:"ddc"`
	WMI *WMIConfig `yaml:"wmi"`
	HDR *HDRConfig `yaml:"hdr"`
}

// Rect mirrors platform.Rect for YAML.
type Rect struct {
	Left   int32 `yaml:"left"`
	Top    int32 `yaml:"top"`
	Right  int32 `yaml:"right"`
	Bottom int32 `yaml:"bottom"`
}

// DDCConfig describes a monitor that answers DDC/CI.
type DDCConfig struct {
	Capabilities string `yaml:"capabilities"`

	// HighLevel enables the coarse brightness primitive.
	HighLevel bool `yaml:"high_level"`

	// VCP maps a hex feature code to [current, maximum].
	VCP map[string][2]uint32 `yaml:"vcp"`

	// TransmissionFailures makes the next N VCP calls fail with a bus error.
	TransmissionFailures int `yaml:"transmission_failures"`

	// IgnoreSets acknowledges sets without applying them.
	IgnoreSets bool `yaml:"ignore_sets"`
}

// WMIConfig describes a monitor exposed through the WMI brightness classes.
type WMIConfig struct {
	Levels     []byte `yaml:"levels"`
	Brightness int    `yaml:"brightness"`
	Removable  bool   `yaml:"removable"`
}

// HDRConfig describes an HDR-active target.
type HDRConfig struct {
	Enabled       bool    `yaml:"enabled"`
	WhiteLevel    float64 `yaml:"white_level"`
	MaxWhiteLevel float64 `yaml:"max_white_level"`
}

// LoadConfig reads a simulated platform description from a YAML file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading simulated platform file: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes and validates a YAML description.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing simulated platform: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the description for mistakes.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Monitors))
	for i, m := range c.Monitors {
		if m.Identity == "" {
			return fmt.Errorf("monitors[%d]: identity is required", i)
		}
		if seen[m.Identity] {
			return fmt.Errorf("monitors[%d]: duplicate identity %q", i, m.Identity)
		}
		seen[m.Identity] = true

		if m.DDC != nil {
			for code := range m.DDC.VCP {
				if _, err := ParseVCPCode(code); err != nil {
					return fmt.Errorf("monitors[%d]: %w", i, err)
				}
			}
		}
	}
	return nil
}

// ParseVCPCode parses a hex VCP code such as "10" or "0x10".
func ParseVCPCode(s string) (byte, error) {
	h := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "0x")
	v, err := strconv.ParseUint(h, 16, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid vcp code %q", s)
	}
	return byte(v), nil
}
