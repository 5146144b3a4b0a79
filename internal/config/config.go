package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	Port          int              `json:"port"`
	Database      DatabaseConfig   `json:"database"`
	Rerank        RerankConfig     `json:"rerank"`
	LogConfig     logger.LogConfig `json:"log_config"`
	CORSAllowlist []string         `json:"cors_allowlist"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	SSLMode  string `json:"sslmode"`
}

type RerankConfig struct {
	Enabled        bool   `json:"enabled"`
	Endpoint       string `json:"endpoint"`
	APIKey         string `json:"api_key"`
	Model          string `json:"model"`
	TimeoutSec     int    `json:"timeout_sec"`
	CandidateLimit int    `json:"candidate_limit"`
	KeepTop        int    `json:"keep_top"`
	DocMaxChars    int    `json:"doc_max_chars"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Port == 0 {
		return nil, fmt.Errorf("port is required")
	}
	if cfg.Database.DSN == "" && (cfg.Database.Host == "" || cfg.Database.DBName == "") {
		return nil, fmt.Errorf("database.dsn or database.host/dbname is required")
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.Rerank.Enabled && cfg.Rerank.Endpoint == "" {
		return nil, fmt.Errorf("rerank.endpoint is required when rerank is enabled")
	}
	if cfg.Rerank.Model == "" {
		cfg.Rerank.Model = "bge-reranker-v2-m3"
	}
	if cfg.Rerank.TimeoutSec == 0 {
		cfg.Rerank.TimeoutSec = 10
	}
	if cfg.Rerank.CandidateLimit == 0 {
		cfg.Rerank.CandidateLimit = 100
	}
	if cfg.Rerank.KeepTop == 0 {
		cfg.Rerank.KeepTop = 10
	}
	if cfg.Rerank.DocMaxChars == 0 {
		cfg.Rerank.DocMaxChars = 4000
	}
	return &cfg, nil
}
