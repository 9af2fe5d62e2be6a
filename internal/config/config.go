package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"ragtutor/internal/domain"
)

// History placement modes.
const (
	HistoryModeMessages = "messages"
	HistoryModePrompt   = "prompt"
	HistoryModeNone     = "none"
)

// DocumentsConfig points at the corpus directory.
type DocumentsConfig struct {
	Dir string `yaml:"dir"`
}

// ChunkerConfig configures how documents are split into chunks.
type ChunkerConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

// OpenAIConfig holds connection settings for an OpenAI-compatible API.
type OpenAIConfig struct {
	BaseURL           string  `yaml:"base_url"`
	APIKeyEnv         string  `yaml:"api_key_env"`
	Model             string  `yaml:"model"`
	TimeoutSecs       int     `yaml:"timeout_secs"`
	BatchSize         int     `yaml:"batch_size,omitempty"`
	RequestsPerSecond float64 `yaml:"requests_per_second,omitempty"`
}

// APIKey resolves the credential from the configured environment variable.
func (c *OpenAIConfig) APIKey() (string, error) {
	key := strings.TrimSpace(os.Getenv(c.APIKeyEnv))
	if key == "" {
		return "", domain.ConfigurationError("api key", fmt.Errorf("missing API key in env %s", c.APIKeyEnv))
	}
	return key, nil
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type      string        `yaml:"type"`
	CacheSize int           `yaml:"cache_size"`
	OpenAI    *OpenAIConfig `yaml:"openai,omitempty"`
}

// VectorStoreConfig selects and configures the vector store implementation.
type VectorStoreConfig struct {
	Type   string        `yaml:"type"`
	Metric string        `yaml:"metric"`
	Qdrant *QdrantConfig `yaml:"qdrant,omitempty"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKey      string `yaml:"api_key"`
	Collection  string `yaml:"collection"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// RetrieverConfig controls how many chunks feed each answer.
type RetrieverConfig struct {
	K                    int  `yaml:"k"`
	FallbackEmptyContext bool `yaml:"fallback_empty_context"`
}

// HistoryConfig bounds conversation memory and chooses where it goes.
type HistoryConfig struct {
	MaxTurns int    `yaml:"max_turns"`
	Mode     string `yaml:"mode"`
}

// CompleterConfig configures the answer model.
type CompleterConfig struct {
	Type        string        `yaml:"type"`
	Model       string        `yaml:"model"`
	Temperature float64       `yaml:"temperature"`
	OpenAI      *OpenAIConfig `yaml:"openai,omitempty"`
}

// PromptConfig optionally overrides the built-in tutoring template.
type PromptConfig struct {
	Template string `yaml:"template,omitempty"`
}

// ServerConfig configures the web chat shell.
type ServerConfig struct {
	Address     string `yaml:"address"`
	MaxSessions int    `yaml:"max_sessions"`
}

// LogConfig configures logrus.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	// File receives log output instead of stderr when set.
	File string `yaml:"file,omitempty"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Documents   DocumentsConfig   `yaml:"documents"`
	Chunker     ChunkerConfig     `yaml:"chunker"`
	Embedder    EmbedderConfig    `yaml:"embedder"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Retriever   RetrieverConfig   `yaml:"retriever"`
	History     HistoryConfig     `yaml:"history"`
	Completer   CompleterConfig   `yaml:"completer"`
	Prompt      PromptConfig      `yaml:"prompt"`
	Server      ServerConfig      `yaml:"server"`
	Log         LogConfig         `yaml:"log"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
// Environment references like ${HOME} are expanded before decoding; references to
// unset variables and bare dollar signs are kept as written.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaultConfig(), nil
		}
		return nil, err
	}
	data = []byte(expandEnv(string(data)))

	cfg := defaultConfig()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil {
		return nil, domain.ConfigurationError("parse "+path, err)
	}
	applyConfigDefaults(cfg)
	return cfg, nil
}

func expandEnv(s string) string {
	return os.Expand(s, func(name string) string {
		if name == "$" {
			return "$$"
		}
		if v, ok := os.LookupEnv(name); ok && isEnvName(name) {
			return v
		}
		return "$" + name
	})
}

func isEnvName(name string) bool {
	if name == "" || (name[0] >= '0' && name[0] <= '9') {
		return false
	}
	return !strings.ContainsAny(name, "*#@!?-")
}

// LoadDefault tries ./config.yaml first, then ~/.config/ragtutor/config.yaml.
// If neither exists, it writes defaults to ~/.config/ragtutor/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate rejects settings the pipeline cannot run with. All failures are
// configuration errors and must stop the process before any query runs.
func (c *AppConfig) Validate() error {
	var problems []string
	if c.Chunker.Size <= 0 {
		problems = append(problems, "chunker.size must be positive")
	}
	if c.Chunker.Overlap < 0 {
		problems = append(problems, "chunker.overlap must not be negative")
	}
	if c.Chunker.Overlap >= c.Chunker.Size {
		problems = append(problems, fmt.Sprintf("chunker.overlap (%d) must be less than chunker.size (%d)", c.Chunker.Overlap, c.Chunker.Size))
	}
	if c.Retriever.K <= 0 {
		problems = append(problems, "retriever.k must be positive")
	}
	if c.History.MaxTurns <= 0 {
		problems = append(problems, "history.max_turns must be positive")
	}
	switch c.History.Mode {
	case HistoryModeMessages, HistoryModePrompt, HistoryModeNone:
	default:
		problems = append(problems, "unknown history.mode: "+c.History.Mode)
	}
	if c.Completer.Temperature < 0 || c.Completer.Temperature > 2 {
		problems = append(problems, "completer.temperature must be within [0, 2]")
	}
	if c.Completer.Model == "" {
		problems = append(problems, "completer.model is required")
	}
	switch c.Completer.Type {
	case "openai":
	default:
		problems = append(problems, "unknown completer: "+c.Completer.Type)
	}
	switch c.Embedder.Type {
	case "openai", "tfidf":
	default:
		problems = append(problems, "unknown embedder: "+c.Embedder.Type)
	}
	switch c.VectorStore.Type {
	case "memory":
	case "qdrant":
		if c.VectorStore.Qdrant == nil || c.VectorStore.Qdrant.URL == "" {
			problems = append(problems, "vector_store.qdrant.url is required")
		}
	default:
		problems = append(problems, "unknown vector store: "+c.VectorStore.Type)
	}
	switch c.VectorStore.Metric {
	case "cosine", "l2":
	default:
		problems = append(problems, "unknown vector_store.metric: "+c.VectorStore.Metric)
	}
	if c.Documents.Dir == "" {
		problems = append(problems, "documents.dir is required")
	} else if info, err := os.Stat(c.Documents.Dir); err != nil {
		problems = append(problems, "documents.dir: "+err.Error())
	} else if !info.IsDir() {
		problems = append(problems, "documents.dir is not a directory: "+c.Documents.Dir)
	}
	if len(problems) > 0 {
		return domain.ConfigurationError("validate", errors.New(strings.Join(problems, "; ")))
	}
	return nil
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "ragtutor", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		Documents:   DocumentsConfig{Dir: "data"},
		Chunker:     ChunkerConfig{Size: 1000, Overlap: 100},
		Embedder:    EmbedderConfig{Type: "openai", CacheSize: 256, OpenAI: &OpenAIConfig{}},
		VectorStore: VectorStoreConfig{Type: "memory", Metric: "cosine"},
		Retriever:   RetrieverConfig{K: 3},
		History:     HistoryConfig{MaxTurns: 5, Mode: HistoryModeMessages},
		Completer:   CompleterConfig{Type: "openai", Model: "gpt-3.5-turbo-0125", Temperature: 0.1, OpenAI: &OpenAIConfig{}},
		Server:      ServerConfig{Address: ":8080", MaxSessions: 1024},
		Log:         LogConfig{Level: "info", Format: "text"},
	}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Chunker.Size == 0 {
		cfg.Chunker.Size = 1000
	}
	if cfg.Retriever.K == 0 {
		cfg.Retriever.K = 3
	}
	if cfg.History.MaxTurns == 0 {
		cfg.History.MaxTurns = 5
	}
	if cfg.History.Mode == "" {
		cfg.History.Mode = HistoryModeMessages
	}
	if cfg.VectorStore.Type == "" {
		cfg.VectorStore.Type = "memory"
	}
	if cfg.VectorStore.Metric == "" {
		cfg.VectorStore.Metric = "cosine"
	}
	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = "openai"
	}
	if cfg.Completer.Type == "" {
		cfg.Completer.Type = "openai"
	}
	if cfg.Completer.Model == "" {
		cfg.Completer.Model = "gpt-3.5-turbo-0125"
	}
	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}
	if cfg.Server.MaxSessions == 0 {
		cfg.Server.MaxSessions = 1024
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	if cfg.Embedder.Type == "openai" {
		if cfg.Embedder.OpenAI == nil {
			cfg.Embedder.OpenAI = &OpenAIConfig{}
		}
		applyOpenAIDefaults(cfg.Embedder.OpenAI, "text-embedding-3-small")
		if cfg.Embedder.OpenAI.BatchSize == 0 {
			cfg.Embedder.OpenAI.BatchSize = 32
		}
	}
	if cfg.Completer.Type == "openai" {
		if cfg.Completer.OpenAI == nil {
			cfg.Completer.OpenAI = &OpenAIConfig{}
		}
		if cfg.Completer.OpenAI.TimeoutSecs == 0 {
			cfg.Completer.OpenAI.TimeoutSecs = 60
		}
		applyOpenAIDefaults(cfg.Completer.OpenAI, "")
	}
	if cfg.VectorStore.Type == "qdrant" && cfg.VectorStore.Qdrant != nil {
		if cfg.VectorStore.Qdrant.Collection == "" {
			cfg.VectorStore.Qdrant.Collection = "ragtutor"
		}
		if cfg.VectorStore.Qdrant.TimeoutSecs == 0 {
			cfg.VectorStore.Qdrant.TimeoutSecs = 15
		}
	}
}

func applyOpenAIDefaults(c *OpenAIConfig, model string) {
	if c.BaseURL == "" {
		c.BaseURL = "https://api.openai.com/v1"
	}
	if c.APIKeyEnv == "" {
		c.APIKeyEnv = "OPENAI_API_KEY"
	}
	if c.Model == "" {
		c.Model = model
	}
	if c.TimeoutSecs == 0 {
		c.TimeoutSecs = 30
	}
}
