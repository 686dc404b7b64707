// Package config handles advisor configuration loading and management.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if path == "" {
		return path
	}
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(homeDir, path[2:])
	}
	if path == "~" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return homeDir
	}
	return path
}

// Config holds all advisor configuration.
type Config struct {
	DataDir   string `mapstructure:"data_dir"`
	Listen    string `mapstructure:"listen"`
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`

	Classifier ClassifierConfig `mapstructure:"classifier"`
	Retriever  RetrieverConfig  `mapstructure:"retriever"`
	Session    SessionConfig    `mapstructure:"session"`
	ChatModel  ChatModelConfig  `mapstructure:"chatmodel"`
	Embedder   EmbedderConfig   `mapstructure:"embedder"`
	VectorDB   VectorDBConfig   `mapstructure:"vectordb"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Indexer    IndexerConfig    `mapstructure:"indexer"`
	API        APIConfig        `mapstructure:"api"`
}

// ClassifierConfig configures the two-stage query classifier (spec.md §4.1, §6).
type ClassifierConfig struct {
	ConfidenceThreshold float64       `mapstructure:"confidence_threshold"`
	MinScore            int           `mapstructure:"min_score"`
	RemoteTimeout       time.Duration `mapstructure:"remote_timeout"`
	RemoteEndpoint      string        `mapstructure:"remote_endpoint"` // empty = fine-tuned fallback disabled
	RemoteModel         string        `mapstructure:"remote_model"`
}

// RetrieverConfig configures HybridRetriever (spec.md §4.3, §6).
type RetrieverConfig struct {
	MaxDocs              int `mapstructure:"max_docs"`
	MaxDocsHardCap       int `mapstructure:"max_docs_hard_cap"`
	CacheSize            int `mapstructure:"cache_size"`
	SelfQueryTriggerCount int `mapstructure:"self_query_trigger_count"`
	SelfQueryLengthTrigger int `mapstructure:"self_query_length_trigger"`
	DirectFetchMultiplier int `mapstructure:"direct_fetch_multiplier"` // 2*max_docs
	PrecedentCandidateK  int `mapstructure:"precedent_candidate_k"`    // K1=10
	SnippetCharLimit     int `mapstructure:"snippet_char_limit"`       // 200
	PrecedentCharLimit   int `mapstructure:"precedent_char_limit"`     // 500
}

// SessionConfig configures SessionStore (spec.md §4.5, §6).
type SessionConfig struct {
	HistoryWindowPairs int           `mapstructure:"history_window_pairs"`
	IdleTimeout        time.Duration `mapstructure:"idle_timeout"`
	SweepInterval      time.Duration `mapstructure:"sweep_interval"`
	KeyPrefix          string        `mapstructure:"key_prefix"`
}

// ChatModelConfig configures the synthesis ChatModel port (spec.md §6).
type ChatModelConfig struct {
	Provider    string        `mapstructure:"provider"` // "ollama" or "anthropic"
	Model       string        `mapstructure:"model"`
	Endpoint    string        `mapstructure:"endpoint"`
	APIKey      string        `mapstructure:"-"` // from env, never persisted
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Temperature float64       `mapstructure:"temperature"`
}

// EmbedderConfig configures the Embedder port (spec.md §6).
type EmbedderConfig struct {
	Provider  string `mapstructure:"provider"`
	Model     string `mapstructure:"model"`
	Endpoint  string `mapstructure:"endpoint"`
	Dimension int    `mapstructure:"dimension"`
	BatchSize int    `mapstructure:"batch_size"`
}

// VectorDBConfig configures the Qdrant-backed VectorStore port.
type VectorDBConfig struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	Dimension int    `mapstructure:"dimension"`
	BatchSize int    `mapstructure:"batch_size"`
}

// RedisConfig configures the Redis-backed SessionStore.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"-"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// IndexerConfig configures DocumentIndexer (spec.md §4.7, §6).
type IndexerConfig struct {
	MetadataDir    string `mapstructure:"metadata_dir"`
	BatchSize      int    `mapstructure:"batch_size"`
	ForceRebuild   bool   `mapstructure:"force_rebuild"`
}

// APIConfig holds HTTP server configuration.
type APIConfig struct {
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// DefaultConfig returns the default configuration, matching spec.md §6.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".accident-advisor")

	return &Config{
		DataDir:   dataDir,
		Listen:    ":8080",
		LogLevel:  "info",
		LogFormat: "json",

		Classifier: ClassifierConfig{
			ConfidenceThreshold: 0.65,
			MinScore:            4,
			RemoteTimeout:       5 * time.Second,
			RemoteEndpoint:      "",
			RemoteModel:         "",
		},

		Retriever: RetrieverConfig{
			MaxDocs:                2,
			MaxDocsHardCap:         3,
			CacheSize:              100,
			SelfQueryTriggerCount:  2,
			SelfQueryLengthTrigger: 30,
			DirectFetchMultiplier:  2,
			PrecedentCandidateK:    10,
			SnippetCharLimit:       200,
			PrecedentCharLimit:     500,
		},

		Session: SessionConfig{
			HistoryWindowPairs: 8,
			IdleTimeout:        24 * time.Hour,
			SweepInterval:      15 * time.Minute,
			KeyPrefix:          "advisor:session:",
		},

		ChatModel: ChatModelConfig{
			Provider:    "ollama",
			Model:       "qwen2.5:7b-instruct",
			Endpoint:    "http://localhost:11434",
			Timeout:     45 * time.Second,
			MaxTokens:   1024,
			Temperature: 0.2,
		},

		Embedder: EmbedderConfig{
			Provider:  "ollama",
			Model:     "nomic-embed-text",
			Endpoint:  "http://localhost:11434",
			Dimension: 768,
			BatchSize: 50,
		},

		VectorDB: VectorDBConfig{
			Host:      "localhost",
			Port:      6334,
			Dimension: 768,
			BatchSize: 100,
		},

		Redis: RedisConfig{
			Addr:     "localhost:6379",
			DB:       0,
			PoolSize: 10,
		},

		Indexer: IndexerConfig{
			MetadataDir:  filepath.Join(dataDir, "sources"),
			BatchSize:    50,
			ForceRebuild: false,
		},

		API: APIConfig{
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
	}
}

// Load loads configuration from files and environment.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigName("advisor")
	v.SetConfigType("yaml")

	homeDir, _ := os.UserHomeDir()
	v.AddConfigPath(filepath.Join(homeDir, ".accident-advisor"))
	v.AddConfigPath("/etc/accident-advisor")
	v.AddConfigPath(".")

	v.SetEnvPrefix("ADVISOR")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	cfg.DataDir = expandPath(cfg.DataDir)
	cfg.Indexer.MetadataDir = expandPath(cfg.Indexer.MetadataDir)

	// Secrets are read from environment only, never from the config file.
	if key := os.Getenv("ADVISOR_CHATMODEL_API_KEY"); key != "" {
		cfg.ChatModel.APIKey = key
	}
	if pw := os.Getenv("ADVISOR_REDIS_PASSWORD"); pw != "" {
		cfg.Redis.Password = pw
	}

	return cfg, nil
}

// EnsureDirectories creates required directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.DataDir, c.Indexer.MetadataDir}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return err
		}
	}
	return nil
}

// MessageStorePath returns the path to the SQLite message-store database.
func (c *Config) MessageStorePath() string {
	return filepath.Join(c.DataDir, "messages.db")
}
