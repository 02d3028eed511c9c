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
	Mode      string `mapstructure:"mode"`
	Port      int    `mapstructure:"port"`
	ClientURL string `mapstructure:"client_url"`

	// Shared secrets distinguishing the two connection roles. Both are
	// required; refusing to start beats silently accepting anyone.
	ClientSecret   string `mapstructure:"client_secret"`
	RecorderSecret string `mapstructure:"recorder_secret"`

	// Media engine settings.
	WorkerBin     string `mapstructure:"worker_bin"`
	MediaListenIP string `mapstructure:"media_listen_ip"`

	// Websocket tuning.
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
}

var ErrMissingSecrets = errors.New("client_secret and recorder_secret must be set")

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
	v.SetDefault("port", 4000)
	v.SetDefault("client_url", "http://localhost:3000")
	v.SetDefault("client_secret", "")
	v.SetDefault("recorder_secret", "")
	v.SetDefault("worker_bin", "mediasoup-worker")
	v.SetDefault("media_listen_ip", "127.0.0.1")
	v.SetDefault("read_limit", 65536)
	v.SetDefault("ping_period", "54s")

	// Secrets usually arrive through the environment, not the yaml file.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("⚠️ Config file not found (%s), using defaults\n", fileName)
	} else {
		fmt.Printf("✅ Loaded config: %s\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.ClientSecret == "" || cfg.RecorderSecret == "" {
		return nil, ErrMissingSecrets
	}
	fmt.Printf("🧩 Mode: %s | Port: %d | Client: %s\n", cfg.Mode, cfg.Port, cfg.ClientURL)
	return &cfg, nil
}
