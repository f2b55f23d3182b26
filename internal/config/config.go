package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	Database    DatabaseConfig   `json:"database"`
	JWTSecret   string           `json:"jwt_secret"`
	Port        int              `json:"port"`
	JWTTTLHours int              `json:"jwt_ttl_hours"`
	LogConfig   logger.LogConfig `json:"log_config"`
	FileStore   FileStoreConfig  `json:"file_store"`
	AI          AIConfig         `json:"ai"`
	Upload      UploadConfig     `json:"upload"`
	CORSOrigins []string         `json:"cors_origins"`
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

type FileStoreConfig struct {
	Type string                 `json:"type"`
	Data map[string]interface{} `json:"data"`
}

// ProviderConfig selects one ai backend; Data is passed opaquely to
// the provider factory.
type ProviderConfig struct {
	Provider string                 `json:"provider"`
	Model    string                 `json:"model"`
	Data     map[string]interface{} `json:"data"`
}

type AIConfig struct {
	// Embedding and Completion are fallback chains: entries are tried
	// in order until one succeeds.
	Embedding     []ProviderConfig `json:"embedding"`
	Completion    []ProviderConfig `json:"completion"`
	Timeout       int              `json:"timeout"`
	MaxInputChars int              `json:"max_input_chars"`
	TopK          int              `json:"top_k"`
	ContextChunks int              `json:"context_chunks"`
	CacheSize     int              `json:"cache_size"`
	CacheTTLHours int              `json:"cache_ttl_hours"`
}

type UploadConfig struct {
	MaxFileSize      int64 `json:"max_file_size"`
	ChunkSize        int   `json:"chunk_size"`
	ChunkOverlap     int   `json:"chunk_overlap"`
	RateLimitSeconds int   `json:"rate_limit_seconds"`
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
	if cfg.Database.DSN == "" && cfg.Database.DBName == "" {
		return nil, fmt.Errorf("database.dsn or database.dbname is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("jwt_secret is required")
	}
	if cfg.Port == 0 {
		return nil, fmt.Errorf("port is required")
	}
	if cfg.JWTTTLHours == 0 {
		cfg.JWTTTLHours = 72
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.FileStore.Type == "" {
		cfg.FileStore.Type = "local"
		if cfg.FileStore.Data == nil {
			cfg.FileStore.Data = map[string]interface{}{"dir": "./uploads"}
		}
	}
	if len(cfg.AI.Embedding) == 0 {
		return nil, fmt.Errorf("ai.embedding is required")
	}
	if len(cfg.AI.Completion) == 0 {
		return nil, fmt.Errorf("ai.completion is required")
	}
	if cfg.AI.Timeout == 0 {
		cfg.AI.Timeout = 60
	}
	if cfg.AI.MaxInputChars == 0 {
		cfg.AI.MaxInputChars = 4000
	}
	if cfg.AI.TopK == 0 {
		cfg.AI.TopK = 5
	}
	if cfg.AI.ContextChunks == 0 {
		cfg.AI.ContextChunks = 3
	}
	if cfg.AI.CacheSize == 0 {
		cfg.AI.CacheSize = 10000
	}
	if cfg.AI.CacheTTLHours == 0 {
		cfg.AI.CacheTTLHours = 2
	}
	if cfg.Upload.MaxFileSize == 0 {
		cfg.Upload.MaxFileSize = 10 * 1024 * 1024
	}
	if cfg.Upload.ChunkSize == 0 {
		cfg.Upload.ChunkSize = 500
	}
	if cfg.Upload.ChunkOverlap == 0 {
		cfg.Upload.ChunkOverlap = 50
	}
	if cfg.Upload.ChunkOverlap >= cfg.Upload.ChunkSize {
		return nil, fmt.Errorf("upload.chunk_overlap must be smaller than upload.chunk_size")
	}
	return &cfg, nil
}
