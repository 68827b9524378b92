package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const envPrefix = "FD_"

type Config struct {
	Server      ServerConfig      `yaml:"server" envPrefix:"SERVER_"`
	Database    DatabaseConfig    `yaml:"database" envPrefix:"DB_"`
	NATS        NATSConfig        `yaml:"nats" envPrefix:"NATS_"`
	MinIO       MinIOConfig       `yaml:"minio" envPrefix:"MINIO_"`
	Recognition RecognitionConfig `yaml:"recognition" envPrefix:"RECOGNITION_"`
	Artifacts   ArtifactsConfig   `yaml:"artifacts" envPrefix:"ARTIFACTS_"`
	Worker      WorkerConfig      `yaml:"worker" envPrefix:"WORKER_"`
	Logging     LoggingConfig     `yaml:"logging" envPrefix:"LOG_"`
}

type ServerConfig struct {
	Port         int      `yaml:"port" env:"PORT"`
	AllowOrigins []string `yaml:"allow_origins" env:"ALLOW_ORIGINS" envSeparator:","`
}

type DatabaseConfig struct {
	Host     string `yaml:"host" env:"HOST"`
	Port     int    `yaml:"port" env:"PORT"`
	Name     string `yaml:"name" env:"NAME"`
	User     string `yaml:"user" env:"USER"`
	Password string `yaml:"password" env:"PASSWORD"`
	MaxConns int    `yaml:"max_conns" env:"MAX_CONNS"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

type NATSConfig struct {
	URL string `yaml:"url" env:"URL"`
}

type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint" env:"ENDPOINT"`
	AccessKey string `yaml:"access_key" env:"ACCESS_KEY"`
	SecretKey string `yaml:"secret_key" env:"SECRET_KEY"`
	Bucket    string `yaml:"bucket" env:"BUCKET"`
	UseSSL    bool   `yaml:"use_ssl" env:"USE_SSL"`
}

// RecognitionConfig controls the remote recognition backend and how its
// results are filtered before they reach callers.
type RecognitionConfig struct {
	URL     string        `yaml:"url" env:"URL"`
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// BackendThreshold is sent to the backend and drives its existing/new classification.
	BackendThreshold float64 `yaml:"backend_threshold" env:"BACKEND_THRESHOLD"`
	TopK             int     `yaml:"top_k" env:"TOP_K"`
	// MinScore is the local confidence floor applied to returned matches.
	MinScore       float64 `yaml:"min_score" env:"MIN_SCORE"`
	MaxMatches     int     `yaml:"max_matches" env:"MAX_MATCHES"`
	MinImageLength int     `yaml:"min_image_length" env:"MIN_IMAGE_LENGTH"`
}

// ArtifactsConfig lists backend-side index artifacts removed on clear.
type ArtifactsConfig struct {
	Paths       []string `yaml:"paths" env:"PATHS" envSeparator:","`
	MinIOPrefix string   `yaml:"minio_prefix" env:"MINIO_PREFIX"`
}

type WorkerConfig struct {
	Concurrency int    `yaml:"concurrency" env:"CONCURRENCY"`
	MetricsAddr string `yaml:"metrics_addr" env:"METRICS_ADDR"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"`
}

// Load reads config from YAML file and applies environment variable overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: envPrefix}); err != nil {
		return nil, fmt.Errorf("apply env overrides: %w", err)
	}
	setDefaults(cfg)

	return cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 20
	}
	if cfg.Recognition.URL == "" {
		cfg.Recognition.URL = "http://127.0.0.1:5001"
	}
	if cfg.Recognition.Timeout == 0 {
		cfg.Recognition.Timeout = 30 * time.Second
	}
	if cfg.Recognition.BackendThreshold == 0 {
		cfg.Recognition.BackendThreshold = 0.35
	}
	if cfg.Recognition.TopK == 0 {
		cfg.Recognition.TopK = 5
	}
	if cfg.Recognition.MinScore == 0 {
		cfg.Recognition.MinScore = 0.5
	}
	if cfg.Recognition.MaxMatches == 0 {
		cfg.Recognition.MaxMatches = 5
	}
	if cfg.Recognition.MinImageLength == 0 {
		cfg.Recognition.MinImageLength = 1000
	}
	if cfg.Artifacts.Paths == nil {
		cfg.Artifacts.Paths = []string{"face_db", "face_index.faiss", "faiss_ids.npy"}
	}
	if cfg.Worker.Concurrency == 0 {
		cfg.Worker.Concurrency = 4
	}
	if cfg.Worker.MetricsAddr == "" {
		cfg.Worker.MetricsAddr = ":8082"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}
