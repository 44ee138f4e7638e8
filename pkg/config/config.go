package config

import (
	"os"
	"strconv"
	"time"
)

// DBConfig 远端 PostgreSQL 配置
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	// 为空时表示未配置远端，仅本地运行
	Enabled bool `yaml:"enabled"`
	// 慢查询阈值
	SlowQuery time.Duration `yaml:"slow_query"`
}

// LocalConfig 本地 SQLite 缓存配置
type LocalConfig struct {
	Path     string `yaml:"path"`
	DeviceID string `yaml:"device_id"`
}

// MQConfig 消息队列配置
type MQConfig struct {
	URL string `yaml:"url"`
}

// RedisConfig Redis配置
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	DedupTTL time.Duration `yaml:"dedup_ttl"`
}

// JWTConfig 会话令牌配置
type JWTConfig struct {
	Secret string `yaml:"secret"`
	// 本地 CLI 使用的会话令牌
	Token string `yaml:"token"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port string `yaml:"port"`
}

// LUConfig 语言理解服务配置（OpenAI 兼容接口）
type LUConfig struct {
	Enabled bool          `yaml:"enabled"`
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

// SyncConfig 同步引擎配置
type SyncConfig struct {
	Interval            time.Duration `yaml:"interval"`
	CycleTimeout        time.Duration `yaml:"cycle_timeout"`
	PullBatchSize       int           `yaml:"pull_batch_size"`
	QuarantineThreshold int64         `yaml:"quarantine_threshold"`
	MaxContentBytes     int           `yaml:"max_content_bytes"`
}

// EnrichmentConfig 富化队列配置
type EnrichmentConfig struct {
	QueueSize       int           `yaml:"queue_size"`
	PollInterval    time.Duration `yaml:"poll_interval"`
	BacklogInterval time.Duration `yaml:"backlog_interval"`
	ContextWords    int           `yaml:"context_words"`
}

// DecayStep 衰减区间：last_seen 距今不超过 MaxAge 时使用 Factor
type DecayStep struct {
	MaxAge time.Duration `yaml:"max_age"`
	Factor float64       `yaml:"factor"`
}

// PatternConfig 模式引擎配置
type PatternConfig struct {
	Interval           time.Duration `yaml:"interval"`
	Window             time.Duration `yaml:"window"`
	DisplayThreshold   float64       `yaml:"display_threshold"`
	PromotionCount     int           `yaml:"promotion_count"`
	PromotionWindow    time.Duration `yaml:"promotion_window"`
	Decay              []DecayStep   `yaml:"decay"`
	DecayFloor         float64       `yaml:"decay_floor"`
	CommitThreshold    float64       `yaml:"commit_threshold"`
	ShadowThreshold    float64       `yaml:"shadow_threshold"`
	InsightMinSamples  int           `yaml:"insight_min_samples"`
	InsightMinFraction float64       `yaml:"insight_min_fraction"`
}

// OverrideDBFromEnv 从环境变量覆盖数据库配置
func OverrideDBFromEnv(cfg *DBConfig) {
	if host := os.Getenv("DB_HOST"); host != "" {
		cfg.Host = host
		cfg.Enabled = true
	}
	if port := os.Getenv("DB_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Port = p
		}
	}
	if user := os.Getenv("DB_USER"); user != "" {
		cfg.User = user
	}
	if password := os.Getenv("DB_PASSWORD"); password != "" {
		cfg.Password = password
	}
	if name := os.Getenv("DB_NAME"); name != "" {
		cfg.Name = name
	}
}

// OverrideLocalFromEnv 从环境变量覆盖本地缓存配置
func OverrideLocalFromEnv(cfg *LocalConfig) {
	if path := os.Getenv("LEAN_DB_PATH"); path != "" {
		cfg.Path = path
	}
	if device := os.Getenv("LEAN_DEVICE_ID"); device != "" {
		cfg.DeviceID = device
	}
}

// OverrideMQFromEnv 从环境变量覆盖MQ配置
func OverrideMQFromEnv(cfg *MQConfig) {
	if url := os.Getenv("MQ_URL"); url != "" {
		cfg.URL = url
	}
}

// OverrideRedisFromEnv 从环境变量覆盖Redis配置
func OverrideRedisFromEnv(cfg *RedisConfig) {
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Addr = addr
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		cfg.Password = password
	}
}

// OverrideJWTFromEnv 从环境变量覆盖JWT配置
func OverrideJWTFromEnv(cfg *JWTConfig) {
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		cfg.Secret = secret
	}
	if token := os.Getenv("LEAN_TOKEN"); token != "" {
		cfg.Token = token
	}
}

// OverrideServerFromEnv 从环境变量覆盖服务器配置
func OverrideServerFromEnv(cfg *ServerConfig) {
	if port := os.Getenv("SERVER_PORT"); port != "" {
		cfg.Port = port
	}
}

// OverrideLUFromEnv 从环境变量覆盖语言理解服务配置
func OverrideLUFromEnv(cfg *LUConfig) {
	if url := os.Getenv("LU_BASE_URL"); url != "" {
		cfg.BaseURL = url
	}
	if key := os.Getenv("LU_API_KEY"); key != "" {
		cfg.APIKey = key
	}
	if model := os.Getenv("LU_MODEL"); model != "" {
		cfg.Model = model
	}
	if enabled := os.Getenv("LU_ENABLED"); enabled != "" {
		if b, err := strconv.ParseBool(enabled); err == nil {
			cfg.Enabled = b
		}
	}
}
