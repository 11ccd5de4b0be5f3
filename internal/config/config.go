package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Mode    string        `mapstructure:"mode"`
	Port    int           `mapstructure:"port"`
	Secret  string        `mapstructure:"secret"`
	WS      WSConfig      `mapstructure:"ws"`
	Rooms   RoomsConfig   `mapstructure:"rooms"`
	Session SessionConfig `mapstructure:"session"`
	Chat    ChatConfig    `mapstructure:"chat"`
	Signal  SignalConfig  `mapstructure:"signal"`
}

type WSConfig struct {
	ReadLimit    int64         `mapstructure:"read_limit"`
	PingPeriod   time.Duration `mapstructure:"ping_period"`
	SendBuffer   int           `mapstructure:"send_buffer"`
	InboundRate  float64       `mapstructure:"inbound_rate"`
	InboundBurst int           `mapstructure:"inbound_burst"`
}

type RoomsConfig struct {
	MaxRollback   int           `mapstructure:"max_rollback"`
	AutoCreate    bool          `mapstructure:"auto_create"`
	IdleTTL       time.Duration `mapstructure:"idle_ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	// Backpressure is "kick" or "drop".
	Backpressure string `mapstructure:"backpressure"`
}

type SessionConfig struct {
	ResumeTTL time.Duration `mapstructure:"resume_ttl"`
}

type ChatConfig struct {
	MaxMsgs int           `mapstructure:"max_msgs"`
	Window  time.Duration `mapstructure:"window"`
	MaxLen  int           `mapstructure:"max_len"`
	Filter  bool          `mapstructure:"filter"`
}

type SignalConfig struct {
	ValidateSDP bool `mapstructure:"validate_sdp"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("secret", "change-me")

	v.SetDefault("ws.read_limit", 65536)
	v.SetDefault("ws.ping_period", "54s")
	v.SetDefault("ws.send_buffer", 32)
	v.SetDefault("ws.inbound_rate", 50)
	v.SetDefault("ws.inbound_burst", 100)

	v.SetDefault("rooms.max_rollback", 20)
	v.SetDefault("rooms.auto_create", false)
	v.SetDefault("rooms.idle_ttl", "30m")
	v.SetDefault("rooms.sweep_interval", "1m")
	v.SetDefault("rooms.backpressure", "kick")

	v.SetDefault("session.resume_ttl", "10m")

	v.SetDefault("chat.max_msgs", 8)
	v.SetDefault("chat.window", "10s")
	v.SetDefault("chat.max_len", 500)
	v.SetDefault("chat.filter", true)

	v.SetDefault("signal.validate_sdp", false)
}

// Load reads config/config.<CONFIG_ENV>.yaml on top of the defaults. Any key
// can be overridden from the environment, e.g. RELAY_ROOMS_AUTO_CREATE=true.
func Load() (*Config, error) {
	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	return LoadFile(fmt.Sprintf("config/config.%s.yaml", env))
}

func LoadFile(fileName string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(fileName)
	v.SetEnvPrefix("RELAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("⚠️ Config file not found (%s), using defaults\n", fileName)
	} else {
		fmt.Printf("✅ Loaded config: %s\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	fmt.Printf("🧩 Mode: %s | Port: %d | AutoCreate: %t\n", cfg.Mode, cfg.Port, cfg.Rooms.AutoCreate)
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch {
	case c.Port <= 0 || c.Port > 65535:
		return fmt.Errorf("invalid port %d", c.Port)
	case c.WS.PingPeriod <= 0:
		return errors.New("ws.ping_period must be positive")
	case c.WS.SendBuffer <= 0:
		return errors.New("ws.send_buffer must be positive")
	case c.Rooms.MaxRollback <= 0:
		return errors.New("rooms.max_rollback must be positive")
	case c.Rooms.SweepInterval <= 0:
		return errors.New("rooms.sweep_interval must be positive")
	case c.Chat.MaxMsgs <= 0 || c.Chat.Window <= 0:
		return errors.New("chat rate limit must be positive")
	}
	return nil
}
