package internal

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type MinaseConfig struct {
	Client struct {
		Addr        string        `mapstructure:"addr"`
		DialTimeout time.Duration `mapstructure:"dial_timeout"`
		RWTimeout   time.Duration `mapstructure:"rw_timeout"`
		Handshake   bool          `mapstructure:"handshake"`
		StrictRows  bool          `mapstructure:"strict_rows"`
	} `mapstructure:"client"`

	Server struct {
		Addr     string `mapstructure:"addr"`
		SeedRows int    `mapstructure:"seed_rows"`
	} `mapstructure:"server"`

	Wire struct {
		MaxFrameSize uint32 `mapstructure:"max_frame_size"`
	} `mapstructure:"wire"`

	Log struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("client.addr", "127.0.0.1:8080")
	v.SetDefault("client.dial_timeout", 3*time.Second)
	v.SetDefault("client.rw_timeout", time.Duration(0))
	v.SetDefault("client.handshake", true)
	v.SetDefault("client.strict_rows", true)
	v.SetDefault("server.addr", "127.0.0.1:8080")
	v.SetDefault("server.seed_rows", 100)
	v.SetDefault("wire.max_frame_size", 8<<20)
	v.SetDefault("log.level", "info")
}

// LoadConfig reads a yaml config file. An empty path yields the defaults.
// MINASE_* environment variables override both, e.g. MINASE_CLIENT_ADDR.
func LoadConfig(path string) (*MinaseConfig, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("minase")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg MinaseConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if _, err := cfg.SlogLevel(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// SlogLevel parses log.level.
func (c *MinaseConfig) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return lvl, nil
}
