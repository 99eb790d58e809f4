package web

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bosporos/pbxd/demo"
	"github.com/bosporos/pbxd/mqttbridge"
	"github.com/bosporos/pbxd/pbx"
	"github.com/bosporos/pbxd/strip"
	"github.com/rkjdid/util"
	"gopkg.in/yaml.v3"
)

var ErrConfigFormat = errors.New("web: unknown config file extension")

// DefaultConfig is written to disk when no config file exists.
var DefaultConfig = Config{
	Serial:  DefaultSerialConfig,
	Log:     DefaultLogConfig,
	Strip:   *strip.NewConfig(),
	Web:     DefaultServerConfig,
	Watcher: strip.DefaultWatcherConfig,
	MQTT:    mqttbridge.DefaultConfig,
	Demo:    demo.DefaultConfig,
}

type Config struct {
	Device   string              `toml:"device" yaml:"device"`       // serial device, autodetected when empty
	HostInit bool                `toml:"host_init" yaml:"host_init"` // run board setup before opening the device
	Serial   SerialConfig        `toml:"serial" yaml:"serial"`
	Log      LogConfig           `toml:"log" yaml:"log"`
	Strip    strip.Config        `toml:"strip" yaml:"strip"`
	Web      ServerConfig        `toml:"web" yaml:"web"`
	Watcher  strip.WatcherConfig `toml:"watcher" yaml:"watcher"`
	MQTT     mqttbridge.Config   `toml:"mqtt" yaml:"mqtt"`
	Demo     demo.Config         `toml:"demo" yaml:"demo"`
}

// SerialConfig tunes the serial line. BaudRate replaces the 2 Mbaud line
// rate only when positive, for adapters that cannot run it.
type SerialConfig struct {
	BaudRate int  `toml:"baud_rate" yaml:"baud_rate"`
	Drain    bool `toml:"drain" yaml:"drain"` // wait for every record to leave the UART
}

var DefaultSerialConfig = SerialConfig{
	BaudRate: pbx.BaudRate,
}

type LogConfig struct {
	Level  string `toml:"level" yaml:"level"`   // debug, info, warn, error
	Format string `toml:"format" yaml:"format"` // console or json
}

var DefaultLogConfig = LogConfig{
	Level:  "info",
	Format: "console",
}

// NewConfig returns a copy of DefaultConfig.
func NewConfig() *Config {
	cfg := DefaultConfig
	cfg.Strip.Channels = append([]strip.ChannelConfig(nil), DefaultConfig.Strip.Channels...)
	return &cfg
}

// LoadConfig reads the config file at path, TOML or YAML depending on its
// extension. Fields missing from the file keep their default value.
func LoadConfig(path string) (*Config, error) {
	cfg := NewConfig()
	// channel lists replace the default instead of merging into it
	cfg.Strip.Channels = nil
	switch ext(path) {
	case ".toml":
		if err := util.ReadTomlFile(cfg, path); err != nil {
			return nil, err
		}
	case ".yaml", ".yml":
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err = yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("web: decoding %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrConfigFormat, path)
	}
	if cfg.Strip.Channels == nil {
		cfg.Strip.Channels = NewConfig().Strip.Channels
	}
	return cfg, nil
}

// WriteConfig encodes cfg to path, TOML or YAML depending on its extension.
func WriteConfig(cfg *Config, path string) error {
	switch ext(path) {
	case ".toml":
		return util.WriteTomlFile(cfg, path)
	case ".yaml", ".yml":
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return err
		}
		if err := enc.Close(); err != nil {
			return err
		}
		return os.WriteFile(path, buf.Bytes(), 0644)
	default:
		return fmt.Errorf("%w: %s", ErrConfigFormat, path)
	}
}

func ext(path string) string {
	return strings.ToLower(filepath.Ext(path))
}
