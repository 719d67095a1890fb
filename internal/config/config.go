package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"

	MetricCosine = "cosine"
	MetricL2     = "l2"

	BackendChromem = "chromem"
	BackendFlat    = "flat"

	DefaultChunkSize    = 500
	DefaultChunkOverlap = 50
	DefaultTopK         = 4
	DefaultTemperature  = 0.3
	DefaultBatchSize    = 64

	defaultLogLevel       = "debug"
	defaultServerAddr     = ":8501"
	defaultUploadDir      = "uploads"
	defaultMaxUploadBytes = 32 << 20 // 32 MB
	defaultSessionTTL     = 2 * time.Hour
)

type Config struct {
	LLM      LLMConfig    `yaml:"llm" envPrefix:"LLM_"`
	EmbedLLM LLMConfig    `yaml:"embed_llm" envPrefix:"EMBED_"`
	RAG      RAGConfig    `yaml:"rag" envPrefix:"RAG_"`
	Server   ServerConfig `yaml:"server" envPrefix:"SERVER_"`
	LogLevel string       `yaml:"log_level" env:"LOG_LEVEL"`
}

// LLMConfig describes one model endpoint. Temperature 0 means "use the default".
type LLMConfig struct {
	Provider    string  `yaml:"provider" env:"PROVIDER"`
	BaseURL     string  `yaml:"base_url" env:"BASE_URL"`
	Key         string  `yaml:"key" env:"API_KEY"`
	Model       string  `yaml:"model" env:"MODEL"`
	Temperature float64 `yaml:"temperature" env:"TEMPERATURE"`
	BatchSize   int     `yaml:"batch_size" env:"BATCH_SIZE"`
}

type RAGConfig struct {
	ChunkSize    int    `yaml:"chunk_size" env:"CHUNK_SIZE"`
	ChunkOverlap int    `yaml:"chunk_overlap" env:"CHUNK_OVERLAP"`
	TopK         int    `yaml:"top_k" env:"TOP_K"`
	Similarity   string `yaml:"similarity" env:"SIMILARITY"`
	Backend      string `yaml:"backend" env:"BACKEND"`
}

type ServerConfig struct {
	Addr           string        `yaml:"addr" env:"ADDR"`
	UploadDir      string        `yaml:"upload_dir" env:"UPLOAD_DIR"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes" env:"MAX_UPLOAD_BYTES"`
	SessionTTL     time.Duration `yaml:"session_ttl" env:"SESSION_TTL"`
}

// LoadConfig reads the yaml file at path, overlays environment variables
// (after loading an optional .env file), fills defaults and validates.
func LoadConfig(path string) (*Config, error) {
	cfg, err := ReadConfig(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ReadConfig is LoadConfig without validation, for callers that only need
// part of the configuration.
func ReadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := presets()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	cfg.ApplyDefaults()
	return cfg, nil
}

// Default returns a config with every default filled, without reading any file.
func Default() *Config {
	cfg := presets()
	cfg.ApplyDefaults()
	return cfg
}

// presets carries the defaults whose zero value is itself a valid setting,
// so they are set before decoding instead of filled afterwards.
func presets() *Config {
	return &Config{RAG: RAGConfig{ChunkOverlap: DefaultChunkOverlap}}
}

func (c *Config) ApplyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}

	if c.LLM.Provider == "" {
		c.LLM.Provider = ProviderOpenAI
	}
	if c.LLM.Temperature == 0 {
		c.LLM.Temperature = DefaultTemperature
	}

	if c.EmbedLLM.Provider == "" {
		c.EmbedLLM.Provider = c.LLM.Provider
	}
	if c.EmbedLLM.BaseURL == "" && c.EmbedLLM.Provider == c.LLM.Provider {
		c.EmbedLLM.BaseURL = c.LLM.BaseURL
	}
	// one credential serves both endpoints unless configured separately
	if c.EmbedLLM.Key == "" {
		c.EmbedLLM.Key = c.LLM.Key
	}
	if c.EmbedLLM.BatchSize == 0 {
		c.EmbedLLM.BatchSize = DefaultBatchSize
	}

	if c.RAG.ChunkSize == 0 {
		c.RAG.ChunkSize = DefaultChunkSize
	}
	if c.RAG.TopK == 0 {
		c.RAG.TopK = DefaultTopK
	}
	if c.RAG.Similarity == "" {
		c.RAG.Similarity = MetricCosine
	}
	if c.RAG.Backend == "" {
		if c.RAG.Similarity == MetricL2 {
			c.RAG.Backend = BackendFlat
		} else {
			c.RAG.Backend = BackendChromem
		}
	}

	if c.Server.Addr == "" {
		c.Server.Addr = defaultServerAddr
	}
	if c.Server.UploadDir == "" {
		c.Server.UploadDir = defaultUploadDir
	}
	if c.Server.MaxUploadBytes == 0 {
		c.Server.MaxUploadBytes = defaultMaxUploadBytes
	}
	if c.Server.SessionTTL == 0 {
		c.Server.SessionTTL = defaultSessionTTL
	}
}

func (c *Config) Validate() error {
	if err := c.LLM.validate("llm"); err != nil {
		return err
	}
	if err := c.EmbedLLM.validate("embed_llm"); err != nil {
		return err
	}
	if c.EmbedLLM.BatchSize <= 0 {
		return fmt.Errorf("embed_llm.batch_size must be positive, got %d", c.EmbedLLM.BatchSize)
	}

	if c.RAG.ChunkSize <= 0 {
		return fmt.Errorf("rag.chunk_size must be positive, got %d", c.RAG.ChunkSize)
	}
	if c.RAG.ChunkOverlap < 0 || c.RAG.ChunkOverlap >= c.RAG.ChunkSize {
		return fmt.Errorf("rag.chunk_overlap must be in [0, %d), got %d", c.RAG.ChunkSize, c.RAG.ChunkOverlap)
	}
	if c.RAG.TopK <= 0 {
		return fmt.Errorf("rag.top_k must be positive, got %d", c.RAG.TopK)
	}

	switch c.RAG.Similarity {
	case MetricCosine, MetricL2:
	default:
		return fmt.Errorf("rag.similarity must be %q or %q, got %q", MetricCosine, MetricL2, c.RAG.Similarity)
	}
	switch c.RAG.Backend {
	case BackendChromem:
		if c.RAG.Similarity != MetricCosine {
			return fmt.Errorf("rag.backend %q only supports %q similarity", BackendChromem, MetricCosine)
		}
	case BackendFlat:
	default:
		return fmt.Errorf("rag.backend must be %q or %q, got %q", BackendChromem, BackendFlat, c.RAG.Backend)
	}

	if c.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("server.max_upload_bytes must be positive, got %d", c.Server.MaxUploadBytes)
	}
	if c.Server.SessionTTL <= 0 {
		return fmt.Errorf("server.session_ttl must be positive, got %v", c.Server.SessionTTL)
	}
	return nil
}

func (l LLMConfig) validate(section string) error {
	switch l.Provider {
	case ProviderOpenAI:
		if strings.TrimSpace(l.Key) == "" {
			return fmt.Errorf("%s.key is required for provider %q (set LLM_API_KEY)", section, l.Provider)
		}
	case ProviderOllama:
		if l.BaseURL == "" {
			return fmt.Errorf("%s.base_url is required for provider %q", section, l.Provider)
		}
	default:
		return fmt.Errorf("%s.provider must be %q or %q, got %q", section, ProviderOpenAI, ProviderOllama, l.Provider)
	}
	if l.Model == "" {
		return fmt.Errorf("%s.model is required", section)
	}
	return nil
}
