// Package config holds the typed run configuration shared by both binaries.
// Values start from built-in defaults, then an optional YAML file, then
// environment variables. A Config is passed explicitly to every constructor.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Providers understood by the model adapters.
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// Conversion engines.
const (
	EngineMarker  = "marker"
	EnginePDFText = "pdftext"
)

// ModelEntry is one line of the model catalog.
type ModelEntry struct {
	Key         string `yaml:"key"`
	Model       string `yaml:"model"`
	Description string `yaml:"description"`
	Size        string `yaml:"size,omitempty"`
}

// AdvancedConfig mirrors the retrieval, memory and server knobs.
type AdvancedConfig struct {
	SimilarityTopK    int    `yaml:"similarity_top_k"`
	UseAdvancedMemory bool   `yaml:"use_advanced_memory"`
	MaxFacts          int    `yaml:"max_facts"`
	LogLevel          string `yaml:"log_level"`
	OllamaBaseURL     string `yaml:"ollama_base_url"`
}

// OpenAIConfig configures the OpenAI-compatible provider.
type OpenAIConfig struct {
	BaseURL   string `yaml:"base_url"`
	APIKeyEnv string `yaml:"api_key_env"`
}

// ConvertConfig configures the PDF conversion pipeline.
type ConvertConfig struct {
	InputDir      string `yaml:"input_dir"`
	OutputDir     string `yaml:"output_dir"`
	Engine        string `yaml:"engine"`
	ServiceURL    string `yaml:"service_url"`
	ServiceScript string `yaml:"service_script,omitempty"`
	TimeoutSecs   int    `yaml:"timeout_secs"`
}

// Config is the root configuration.
type Config struct {
	Provider         string         `yaml:"provider"`
	LLMModel         string         `yaml:"llm_model"`
	EmbeddingModel   string         `yaml:"embedding_model"`
	DataDir          string         `yaml:"data_dir"`
	IndexDir         string         `yaml:"index_dir"`
	ChunkSize        int            `yaml:"chunk_size"`
	ChunkOverlap     int            `yaml:"chunk_overlap"`
	Temperature      float64        `yaml:"temperature"`
	RequestTimeout   float64        `yaml:"request_timeout"` // seconds
	MemoryTokenLimit int            `yaml:"memory_token_limit"`
	SystemPrompt     string         `yaml:"system_prompt"`
	Advanced         AdvancedConfig `yaml:"advanced"`
	OpenAI           OpenAIConfig   `yaml:"openai"`
	Convert          ConvertConfig  `yaml:"convert"`
	LLMModels        []ModelEntry   `yaml:"llm_models"`
	EmbeddingModels  []ModelEntry   `yaml:"embedding_models"`
}

const defaultSystemPrompt = `Du bist ein hilfreicher Assistent, der Fragen zu den Vorlesungsunterlagen beantwortet.
Nutze die bereitgestellten Informationen aus den Dokumenten, um präzise und hilfreiche Antworten zu geben.
Wenn du dir bei einer Antwort nicht sicher bist, sage das ehrlich.
Antworte immer auf Deutsch.`

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Provider:         ProviderOllama,
		LLMModel:         "gemma3:27b",
		EmbeddingModel:   "nomic-embed-text",
		DataDir:          "./llm_ready",
		IndexDir:         "./storage",
		ChunkSize:        512,
		ChunkOverlap:     50,
		Temperature:      0.7,
		RequestTimeout:   120,
		MemoryTokenLimit: 3000,
		SystemPrompt:     defaultSystemPrompt,
		Advanced: AdvancedConfig{
			SimilarityTopK:    3,
			UseAdvancedMemory: false,
			MaxFacts:          50,
			LogLevel:          "INFO",
			OllamaBaseURL:     "http://localhost:11434",
		},
		OpenAI: OpenAIConfig{
			BaseURL:   "http://localhost:11434/v1/",
			APIKeyEnv: "OPENAI_API_KEY",
		},
		Convert: ConvertConfig{
			InputDir:    "./data",
			OutputDir:   "./llm_ready",
			Engine:      EngineMarker,
			ServiceURL:  "http://localhost:8081",
			TimeoutSecs: 600,
		},
		LLMModels: []ModelEntry{
			{Key: "small", Model: "gemma2:2b", Description: "Kleinstes Modell, schnell aber weniger genau (~1.5GB)"},
			{Key: "medium", Model: "gemma2:9b", Description: "Mittleres Modell, gute Balance (~5.5GB)"},
			{Key: "large", Model: "gemma3:27b", Description: "Großes Modell, beste Qualität (~16GB)"},
			{Key: "alternative", Model: "llama3.2:latest", Description: "Alternative: Meta's Llama 3.2"},
			{Key: "mistral", Model: "mistral:latest", Description: "Alternative: Mistral 7B"},
		},
		EmbeddingModels: []ModelEntry{
			{Key: "nomic", Model: "nomic-embed-text", Description: "Standard: Hohe Qualität, optimiert für semantische Suche (768 Dimensionen)", Size: "~274MB"},
			{Key: "mxbai", Model: "mxbai-embed-large", Description: "Alternative: Größeres Modell, sehr genau (1024 Dimensionen)", Size: "~670MB"},
			{Key: "all-minilm", Model: "all-minilm", Description: "Kompakt: Schnell und effizient (384 Dimensionen)", Size: "~46MB"},
		},
	}
}

// Load reads a config from path on top of the defaults.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	applyDefaults(cfg)
	return cfg, nil
}

// Save writes cfg as YAML to path, creating parent directories.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return os.Rename(tmp, path)
}

// LoadDefault looks for $LECTURERAG_CONFIG, then ./rag_config.yaml, then
// ~/.config/lecturerag/config.yaml. It returns the path used, or "" when
// the built-in defaults were used.
func LoadDefault() (*Config, string, error) {
	candidates := []string{}
	if p := strings.TrimSpace(os.Getenv("LECTURERAG_CONFIG")); p != "" {
		candidates = append(candidates, p)
	}
	candidates = append(candidates, "rag_config.yaml")
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "lecturerag", "config.yaml"))
	}

	for _, p := range candidates {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		cfg, err := Load(p)
		if err != nil {
			return nil, p, err
		}
		ApplyEnv(cfg)
		return cfg, p, nil
	}

	cfg := Default()
	ApplyEnv(cfg)
	return cfg, "", nil
}

// ApplyEnv overlays LECTURERAG_* environment variables.
func ApplyEnv(cfg *Config) {
	cfg.LLMModel = getenv("LECTURERAG_LLM_MODEL", cfg.LLMModel)
	cfg.EmbeddingModel = getenv("LECTURERAG_EMBEDDING_MODEL", cfg.EmbeddingModel)
	cfg.Advanced.OllamaBaseURL = getenv("LECTURERAG_BASE_URL", cfg.Advanced.OllamaBaseURL)
	cfg.DataDir = getenv("LECTURERAG_DATA_DIR", cfg.DataDir)
	cfg.IndexDir = getenv("LECTURERAG_INDEX_DIR", cfg.IndexDir)
	cfg.Advanced.LogLevel = getenv("LECTURERAG_LOG_LEVEL", cfg.Advanced.LogLevel)
	cfg.Advanced.SimilarityTopK = getenvInt("LECTURERAG_TOP_K", cfg.Advanced.SimilarityTopK)
}

// Validate rejects configurations no component can run with.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderOllama, ProviderOpenAI:
	default:
		return fmt.Errorf("unknown provider %q", c.Provider)
	}
	switch c.Convert.Engine {
	case EngineMarker, EnginePDFText:
	default:
		return fmt.Errorf("unknown conversion engine %q", c.Convert.Engine)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be positive, got %d", c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("chunk_overlap must be in [0, chunk_size), got %d", c.ChunkOverlap)
	}
	if c.Advanced.SimilarityTopK <= 0 {
		return fmt.Errorf("similarity_top_k must be positive, got %d", c.Advanced.SimilarityTopK)
	}
	if c.MemoryTokenLimit <= 0 {
		return fmt.Errorf("memory_token_limit must be positive, got %d", c.MemoryTokenLimit)
	}
	if c.LLMModel == "" || c.EmbeddingModel == "" {
		return errors.New("llm_model and embedding_model are required")
	}
	return nil
}

// Timeout converts RequestTimeout to a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.RequestTimeout * float64(time.Second))
}

// ConvertTimeout is the per-document conversion timeout.
func (c *Config) ConvertTimeout() time.Duration {
	return time.Duration(c.Convert.TimeoutSecs) * time.Second
}

// BaseURL is the model server address for the configured provider.
func (c *Config) BaseURL() string {
	if c.Provider == ProviderOpenAI {
		return c.OpenAI.BaseURL
	}
	return c.Advanced.OllamaBaseURL
}

func applyDefaults(cfg *Config) {
	def := Default()
	if cfg.Provider == "" {
		cfg.Provider = def.Provider
	}
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = def.ChunkSize
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = def.RequestTimeout
	}
	if cfg.MemoryTokenLimit == 0 {
		cfg.MemoryTokenLimit = def.MemoryTokenLimit
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = def.SystemPrompt
	}
	if cfg.Advanced.SimilarityTopK == 0 {
		cfg.Advanced.SimilarityTopK = def.Advanced.SimilarityTopK
	}
	if cfg.Advanced.MaxFacts == 0 {
		cfg.Advanced.MaxFacts = def.Advanced.MaxFacts
	}
	if cfg.Advanced.OllamaBaseURL == "" {
		cfg.Advanced.OllamaBaseURL = def.Advanced.OllamaBaseURL
	}
	if cfg.Convert.Engine == "" {
		cfg.Convert.Engine = def.Convert.Engine
	}
	if cfg.Convert.TimeoutSecs == 0 {
		cfg.Convert.TimeoutSecs = def.Convert.TimeoutSecs
	}
}

func getenv(k, fallback string) string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return fallback
	}
	return v
}

func getenvInt(k string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
