// Package config loads the recognition runtime's YAML configuration,
// applies environment variable overrides, and hot-reloads it on file
// change via fsnotify with a polling fallback.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sentryvms/facecore/internal/domain"
)

// Config is the full runtime configuration tree, loaded from YAML. A
// Watcher replaces the whole value with a freshly loaded one as the
// backing file changes; a loaded Config is never modified.
type Config struct {
	Database      DatabaseConfig      `yaml:"database"`
	Redis         RedisConfig         `yaml:"redis"`
	NATS          NATSConfig          `yaml:"nats"`
	AIService     AIServiceConfig     `yaml:"ai_service"`
	FaceRecognition FaceRecognitionConfig `yaml:"face_recognition"`
	FaceProfileCache FaceProfileCacheConfig `yaml:"face_profile_cache"`
	CameraSupervisor CameraSupervisorConfig `yaml:"camera_supervisor"`
	Topology      TopologyConfig      `yaml:"topology"`
	IncidentSeverity map[string]string `yaml:"incident_severity"`
	Metrics       MetricsConfig       `yaml:"metrics"`
	Logging       LoggingConfig       `yaml:"logging"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
	MaxConns int    `yaml:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type NATSConfig struct {
	URL string `yaml:"url"`
}

type AIServiceConfig struct {
	HTTPBaseURL string `yaml:"http_base_url"`
	WSBaseURL   string `yaml:"ws_base_url"`
}

// FaceRecognitionConfig holds the default threshold and minimum embedding
// length policy knobs.
type FaceRecognitionConfig struct {
	DefaultThreshold        float64       `yaml:"default_threshold"`
	MinEmbeddingLength       int          `yaml:"min_embedding_length"`
	AutoEnrollMinInterval    time.Duration `yaml:"auto_enroll_min_interval"`
	MaxEmbeddingsPerProfile  int          `yaml:"max_embeddings_per_profile"`
	MinVariationDistance     float64      `yaml:"min_variation_distance"`
}

// FaceProfileCacheConfig holds the distributed-cache tunables.
type FaceProfileCacheConfig struct {
	PayloadTTL        time.Duration `yaml:"payload_ttl"`
	LockTTL           time.Duration `yaml:"lock_ttl"`
	RefreshInterval   time.Duration `yaml:"refresh_interval"`
	JitterFraction    float64       `yaml:"jitter_fraction"`
	PreferDistributed bool          `yaml:"prefer_distributed"`
	MaxStaleness      time.Duration `yaml:"max_staleness"`
	EmergencyRefresh  bool          `yaml:"emergency_refresh"`
}

// CameraSupervisorConfig holds the reconnect backoff tunables.
type CameraSupervisorConfig struct {
	MaxRetry    int           `yaml:"max_retry"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
	StopTimeout time.Duration `yaml:"stop_timeout"`
}

type TopologyConfig struct {
	SameZoneIsNeighbor bool `yaml:"same_zone_is_neighbor"`
}

type MetricsConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load reads config from a YAML file, applies environment overrides and
// defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(cfg)
	setDefaults(cfg)

	return cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 20
	}
	if cfg.FaceRecognition.DefaultThreshold == 0 {
		cfg.FaceRecognition.DefaultThreshold = 0.65
	}
	if cfg.FaceRecognition.MinEmbeddingLength == 0 {
		cfg.FaceRecognition.MinEmbeddingLength = 128
	}
	if cfg.FaceRecognition.AutoEnrollMinInterval == 0 {
		cfg.FaceRecognition.AutoEnrollMinInterval = 10 * time.Minute
	}
	if cfg.FaceRecognition.MaxEmbeddingsPerProfile == 0 {
		cfg.FaceRecognition.MaxEmbeddingsPerProfile = domain.MaxEmbeddingsPerProfileDefault
	}
	if cfg.FaceRecognition.MinVariationDistance == 0 {
		cfg.FaceRecognition.MinVariationDistance = 0.08
	}
	if cfg.FaceProfileCache.PayloadTTL == 0 {
		cfg.FaceProfileCache.PayloadTTL = 3 * time.Minute
	}
	if cfg.FaceProfileCache.LockTTL == 0 {
		cfg.FaceProfileCache.LockTTL = 20 * time.Second
	}
	if cfg.FaceProfileCache.RefreshInterval == 0 {
		cfg.FaceProfileCache.RefreshInterval = 60 * time.Second
	}
	if cfg.FaceProfileCache.JitterFraction == 0 {
		cfg.FaceProfileCache.JitterFraction = 0.2
	}
	if cfg.FaceProfileCache.MaxStaleness == 0 {
		cfg.FaceProfileCache.MaxStaleness = 5 * time.Minute
	}
	if cfg.CameraSupervisor.MaxRetry == 0 {
		cfg.CameraSupervisor.MaxRetry = 10
	}
	if cfg.CameraSupervisor.BaseDelay == 0 {
		cfg.CameraSupervisor.BaseDelay = 5 * time.Second
	}
	if cfg.CameraSupervisor.MaxDelay == 0 {
		cfg.CameraSupervisor.MaxDelay = 2 * time.Minute
	}
	if cfg.CameraSupervisor.StopTimeout == 0 {
		cfg.CameraSupervisor.StopTimeout = 15 * time.Second
	}
	if cfg.Metrics.ListenAddr == "" {
		cfg.Metrics.ListenAddr = ":9090"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if len(cfg.IncidentSeverity) == 0 {
		cfg.IncidentSeverity = defaultIncidentSeverity()
	}
}

func defaultIncidentSeverity() map[string]string {
	return map[string]string{
		"unauthorized_access": "critical",
		"tailgating":          "high",
		"loitering":           "medium",
		"unknown_face":        "medium",
		"camera_offline":      "low",
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FACECORE_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("FACECORE_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("FACECORE_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("FACECORE_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("FACECORE_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("FACECORE_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("FACECORE_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("FACECORE_AI_HTTP_URL"); v != "" {
		cfg.AIService.HTTPBaseURL = v
	}
	if v := os.Getenv("FACECORE_AI_WS_URL"); v != "" {
		cfg.AIService.WSBaseURL = v
	}
	if v := os.Getenv("FACECORE_DEFAULT_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.FaceRecognition.DefaultThreshold = f
		}
	}
}
