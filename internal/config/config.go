package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Mode       string `mapstructure:"mode"`
	Port       int    `mapstructure:"port"`
	StaticPath string `mapstructure:"static_path"`

	AuthMode   string        `mapstructure:"auth_mode"`
	SessionTTL time.Duration `mapstructure:"session_ttl"`
	Secret     string        `mapstructure:"secret"`

	AdminPassword string `mapstructure:"admin_password"`

	ReadLimit   int64         `mapstructure:"read_limit"`
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`

	TargetHost string `mapstructure:"target_host"`
	TargetPort int    `mapstructure:"target_port"`

	TLSCert string `mapstructure:"tls_cert"`
	TLSKey  string `mapstructure:"tls_key"`
}

func (c *Config) TLSEnabled() bool {
	return c.TLSCert != "" && c.TLSKey != ""
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("auth_mode", "subnet")
	v.SetDefault("session_ttl", "24h")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("idle_timeout", "75s")
	v.SetDefault("target_host", "127.0.0.1")
	v.SetDefault("target_port", 7355)

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("⚠️ Config file not found (%s), using defaults\n", fileName)
	} else {
		fmt.Printf("✅ Loaded config: %s\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	fmt.Printf("🧩 Mode: %s | Port: %d | Auth: %s | Target: %s:%d\n",
		cfg.Mode, cfg.Port, cfg.AuthMode, cfg.TargetHost, cfg.TargetPort)
	return &cfg, nil
}
