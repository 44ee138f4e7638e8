package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"leannotes/pkg/config"
)

type Config struct {
	LogLevel   string                  `yaml:"log_level"`
	Local      config.LocalConfig      `yaml:"local"`
	DB         config.DBConfig         `yaml:"db"`
	MQ         config.MQConfig         `yaml:"mq"`
	Redis      config.RedisConfig      `yaml:"redis"`
	JWT        config.JWTConfig        `yaml:"jwt"`
	Server     config.ServerConfig     `yaml:"server"`
	LU         config.LUConfig         `yaml:"lu"`
	Sync       config.SyncConfig       `yaml:"sync"`
	Enrichment config.EnrichmentConfig `yaml:"enrichment"`
	Patterns   config.PatternConfig    `yaml:"patterns"`
}

// Load 读取 configDir 下的 base.yaml 与 <env>.yaml，再用环境变量覆盖
func Load(env, configDir string) (*Config, error) {
	var cfg Config
	if err := config.Decode(env, configDir, &cfg); err != nil {
		return nil, err
	}

	config.OverrideLocalFromEnv(&cfg.Local)
	config.OverrideDBFromEnv(&cfg.DB)
	config.OverrideMQFromEnv(&cfg.MQ)
	config.OverrideRedisFromEnv(&cfg.Redis)
	config.OverrideJWTFromEnv(&cfg.JWT)
	config.OverrideServerFromEnv(&cfg.Server)
	config.OverrideLUFromEnv(&cfg.LU)
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}

	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFromEnv 按 CONFIG_ENV / CONFIG_DIR 加载
func LoadFromEnv() (*Config, error) {
	return Load(config.GetConfigEnv(), config.GetEnv("CONFIG_DIR", "config"))
}

func (c *Config) applyDefaults() error {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Server.Port == "" {
		c.Server.Port = ":8080"
	}
	if c.Local.Path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to resolve home directory: %w", err)
		}
		c.Local.Path = filepath.Join(home, ".leannotes", "lean.db")
	}
	if c.Local.DeviceID == "" {
		c.Local.DeviceID = DefaultDeviceID()
	}
	return nil
}

// DefaultDeviceID derives a stable device id from the hostname.
func DefaultDeviceID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "localhost"
	}
	return uuid.NewSHA1(uuid.NameSpaceDNS, []byte(host)).String()
}
