// Package config provides application configuration management using koanf
package config

import (
	"crypto/tls"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	apperrors "medisync-rag/internal/errors"
)

// EnvPrefix is the prefix of environment variables read into the configuration.
// Nested keys are separated by a double underscore:
// MEDISYNC_SERVICES__GENERATOR__MODEL -> services.generator.model
const EnvPrefix = "MEDISYNC_"

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `koanf:"server" yaml:"server"`
	Services  ServicesConfig  `koanf:"services" yaml:"services"`
	Retrieval RetrievalConfig `koanf:"retrieval" yaml:"retrieval"`
	Loader    LoaderConfig    `koanf:"loader" yaml:"loader"`
	Index     IndexConfig     `koanf:"index" yaml:"index"`
	Prompts   PromptsConfig   `koanf:"prompts" yaml:"prompts"`
	Security  SecurityConfig  `koanf:"security" yaml:"security"`
	App       AppConfig       `koanf:"app" yaml:"app"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string    `koanf:"host" yaml:"host"`
	Port         int       `koanf:"port" yaml:"port"`
	ReadTimeout  int       `koanf:"read_timeout" yaml:"read_timeout"`   // seconds
	WriteTimeout int       `koanf:"write_timeout" yaml:"write_timeout"` // seconds
	MaxUploadMB  int       `koanf:"max_upload_mb" yaml:"max_upload_mb"`
	TLS          TLSConfig `koanf:"tls" yaml:"tls"`
}

// TLSConfig holds TLS/HTTPS configuration
type TLSConfig struct {
	Enabled  bool   `koanf:"enabled" yaml:"enabled"`
	CertFile string `koanf:"cert_file" yaml:"cert_file"`
	KeyFile  string `koanf:"key_file" yaml:"key_file"`
	MinTLS   string `koanf:"min_version" yaml:"min_version"` // "1.2" or "1.3"
}

// ServicesConfig holds external model service configuration
type ServicesConfig struct {
	Embedding EmbeddingConfig `koanf:"embedding" yaml:"embedding"`
	Generator GeneratorConfig `koanf:"generator" yaml:"generator"`
}

// EmbeddingConfig selects the embedding model. The model is fixed for the
// lifetime of the process.
type EmbeddingConfig struct {
	Provider string `koanf:"provider" yaml:"provider"` // "ollama" or "openai"
	BaseURL  string `koanf:"base_url" yaml:"base_url"`
	Model    string `koanf:"model" yaml:"model"`
	APIKey   string `koanf:"api_key" yaml:"-"`
	Timeout  int    `koanf:"timeout" yaml:"timeout"` // seconds
}

// GeneratorConfig selects the completion model.
type GeneratorConfig struct {
	Provider string `koanf:"provider" yaml:"provider"` // "groq", "openai", "gemini" or "ollama"
	BaseURL  string `koanf:"base_url" yaml:"base_url"`
	Model    string `koanf:"model" yaml:"model"`
	APIKey   string `koanf:"api_key" yaml:"-"`
	Timeout  int    `koanf:"timeout" yaml:"timeout"` // seconds
}

// RetrievalConfig holds chunking and search settings
type RetrievalConfig struct {
	TopK         int `koanf:"top_k" yaml:"top_k"`
	ChunkSize    int `koanf:"chunk_size" yaml:"chunk_size"`       // runes
	ChunkOverlap int `koanf:"chunk_overlap" yaml:"chunk_overlap"` // runes
}

type LoaderConfig struct {
	MaxFileBytes int64 `koanf:"max_file_bytes" yaml:"max_file_bytes"`
}

type IndexConfig struct {
	Backend string `koanf:"backend" yaml:"backend"` // "memory" or "sqlite"
}

// PromptsConfig selects the built-in template language and optional overrides.
type PromptsConfig struct {
	Language  string `koanf:"language" yaml:"language"` // "en" or "pt-BR"
	Clinician string `koanf:"clinician" yaml:"clinician,omitempty"`
	Patient   string `koanf:"patient" yaml:"patient,omitempty"`
}

// SecurityConfig holds security-related settings
type SecurityConfig struct {
	ErrorMode string `koanf:"error_mode" yaml:"error_mode"` // "detailed" or "secure"
}

// AppConfig holds general application settings
type AppConfig struct {
	Environment string `koanf:"environment" yaml:"environment"` // "development", "staging", "production"
	LogLevel    string `koanf:"log_level" yaml:"log_level"`     // "debug", "info", "warn", "error"
	LogFormat   string `koanf:"log_format" yaml:"log_format"`   // "text" or "json"
}

// Models used when a provider is configured without one.
const (
	DefaultGroqModel            = "llama-3.3-70b-versatile"
	DefaultOpenAIModel          = "gpt-4o-mini"
	DefaultGeminiModel          = "gemini-2.0-flash"
	DefaultOllamaModel          = "llama3.2"
	DefaultOllamaEmbeddingModel = "paraphrase-multilingual"
	DefaultOpenAIEmbeddingModel = "sentence-transformers/paraphrase-multilingual-MiniLM-L12-v2"
	DefaultOllamaURL            = "http://localhost:11434"
)

var generatorModels = map[string]string{
	"groq":   DefaultGroqModel,
	"openai": DefaultOpenAIModel,
	"gemini": DefaultGeminiModel,
	"ollama": DefaultOllamaModel,
}

var embeddingModels = map[string]string{
	"ollama": DefaultOllamaEmbeddingModel,
	"openai": DefaultOpenAIEmbeddingModel,
}

// DefaultGeneratorModel returns the model used for provider when none is set.
func DefaultGeneratorModel(provider string) string {
	return generatorModels[provider]
}

// DefaultEmbeddingModel returns the embedding model used for provider when none is set.
func DefaultEmbeddingModel(provider string) string {
	return embeddingModels[provider]
}

// credentialEnv maps generator providers to the environment variable holding their key.
var credentialEnv = map[string]string{
	"groq":   "GROQ_API_KEY",
	"openai": "OPENAI_API_KEY",
	"gemini": "GEMINI_API_KEY",
}

// Load loads configuration from multiple sources with precedence:
// 1. defaults
// 2. the given file, or config.yaml / config.json in the working directory
// 3. Environment variables (highest precedence)
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	setDefaults(k)

	if path != "" {
		if err := loadConfigFile(k, path); err != nil {
			return nil, err
		}
	} else {
		loadConfigFiles(k)
	}

	if err := k.Load(env.Provider(".", env.Opt{
		Prefix:        EnvPrefix,
		TransformFunc: transformEnv,
	}), nil); err != nil {
		return nil, fmt.Errorf("error loading environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	applyProviderDefaults(&cfg)
	applyCredentials(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// transformEnv turns MEDISYNC_RETRIEVAL__TOP_K into retrieval.top_k.
func transformEnv(k, v string) (string, any) {
	k = strings.TrimPrefix(k, EnvPrefix)
	k = strings.ReplaceAll(strings.ToLower(k), "__", ".")
	return k, v
}

// setDefaults sets default configuration values
func setDefaults(k *koanf.Koanf) {
	defaults := map[string]interface{}{
		"server.host":            "localhost",
		"server.port":            8080,
		"server.read_timeout":    30,
		"server.write_timeout":   120,
		"server.max_upload_mb":   32,
		"server.tls.enabled":     false,
		"server.tls.min_version": "1.3",

		"services.embedding.provider": "ollama",
		"services.embedding.timeout":  30,
		"services.generator.provider": "groq",
		"services.generator.timeout":  60,

		"retrieval.top_k":         5,
		"retrieval.chunk_size":    1024,
		"retrieval.chunk_overlap": 128,

		"loader.max_file_bytes": int64(20 << 20),

		"index.backend": "memory",

		"prompts.language": "en",

		"security.error_mode": "detailed",

		"app.environment": "development",
		"app.log_level":   "info",
		"app.log_format":  "text",
	}

	for key, value := range defaults {
		_ = k.Set(key, value)
	}
}

// loadConfigFiles loads config.yaml and config.json from the working directory when present
func loadConfigFiles(k *koanf.Koanf) {
	for _, name := range []string{"config.yaml", "config.json"} {
		if _, err := os.Stat(name); err != nil {
			continue
		}
		if err := loadConfigFile(k, name); err != nil {
			log.Printf("Warning: %v", err)
		}
	}
}

func loadConfigFile(k *koanf.Koanf, path string) error {
	var parser koanf.Parser
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return fmt.Errorf("unsupported config file format: %s", path)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// applyProviderDefaults fills the model and endpoint keys the chosen
// providers need when they were left empty.
func applyProviderDefaults(cfg *Config) {
	gen := &cfg.Services.Generator
	if gen.Model == "" {
		gen.Model = DefaultGeneratorModel(gen.Provider)
	}
	emb := &cfg.Services.Embedding
	if emb.Model == "" {
		emb.Model = DefaultEmbeddingModel(emb.Provider)
	}
	if emb.BaseURL == "" && emb.Provider == "ollama" {
		emb.BaseURL = DefaultOllamaURL
	}
}

// applyCredentials fills empty API keys from the providers' conventional variables.
func applyCredentials(cfg *Config) {
	if cfg.Services.Generator.APIKey == "" {
		if name, ok := credentialEnv[cfg.Services.Generator.Provider]; ok {
			cfg.Services.Generator.APIKey = os.Getenv(name)
		}
	}
	if cfg.Services.Embedding.APIKey == "" {
		cfg.Services.Embedding.APIKey = os.Getenv("EMBEDDING_API_KEY")
	}
}

// RequiresCredential reports whether the generator provider needs an API key.
func (g GeneratorConfig) RequiresCredential() bool {
	_, ok := credentialEnv[g.Provider]
	return ok
}

// CredentialEnv returns the variable the generator key is read from, if any.
func (g GeneratorConfig) CredentialEnv() string {
	return credentialEnv[g.Provider]
}

// validate validates the configuration
func validate(cfg *Config) error {
	invalid := func(format string, args ...any) error {
		return apperrors.ErrConfiguration.WithCause(fmt.Errorf(format, args...))
	}

	if cfg.Server.TLS.Enabled {
		if cfg.Server.TLS.CertFile == "" {
			return invalid("TLS cert file is required when TLS is enabled")
		}
		if cfg.Server.TLS.KeyFile == "" {
			return invalid("TLS key file is required when TLS is enabled")
		}
		if _, err := os.Stat(cfg.Server.TLS.CertFile); os.IsNotExist(err) {
			return invalid("TLS cert file does not exist: %s", cfg.Server.TLS.CertFile)
		}
		if _, err := os.Stat(cfg.Server.TLS.KeyFile); os.IsNotExist(err) {
			return invalid("TLS key file does not exist: %s", cfg.Server.TLS.KeyFile)
		}
	}

	switch cfg.Services.Embedding.Provider {
	case "ollama", "openai":
	default:
		return invalid("unknown embedding provider %q", cfg.Services.Embedding.Provider)
	}
	if cfg.Services.Embedding.Model == "" {
		return invalid("embedding model is required")
	}

	gen := cfg.Services.Generator
	switch gen.Provider {
	case "groq", "openai", "gemini", "ollama":
	default:
		return invalid("unknown generator provider %q", gen.Provider)
	}
	if gen.Model == "" {
		return invalid("generator model is required")
	}
	if gen.RequiresCredential() && gen.APIKey == "" {
		return invalid("%s is not set; the %s generator cannot be used without a credential", gen.CredentialEnv(), gen.Provider)
	}

	r := cfg.Retrieval
	if r.TopK <= 0 {
		return invalid("retrieval.top_k must be positive")
	}
	if r.ChunkSize <= 0 {
		return invalid("retrieval.chunk_size must be positive")
	}
	if r.ChunkOverlap < 0 || r.ChunkOverlap >= r.ChunkSize/2 {
		return invalid("retrieval.chunk_overlap must be in [0, chunk_size/2)")
	}

	switch cfg.Index.Backend {
	case "memory", "sqlite":
	default:
		return invalid("unknown index backend %q", cfg.Index.Backend)
	}

	switch cfg.Prompts.Language {
	case "en", "pt-BR":
	default:
		return invalid("unsupported prompt language %q", cfg.Prompts.Language)
	}

	return nil
}

// GetTLSConfig returns a TLS configuration based on the config
func (c *Config) GetTLSConfig() *tls.Config {
	if !c.Server.TLS.Enabled {
		return nil
	}

	tlsConfig := &tls.Config{
		MinVersion: tls.VersionTLS12,
		CipherSuites: []uint16{
			tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305,
			tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305,
		},
	}

	switch c.Server.TLS.MinTLS {
	case "1.2":
		tlsConfig.MinVersion = tls.VersionTLS12
	default:
		tlsConfig.MinVersion = tls.VersionTLS13
	}

	return tlsConfig
}

// Addr returns the listen address of the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// DetailedErrors reports whether error responses may include causes.
func (c *Config) DetailedErrors() bool {
	return c.Security.ErrorMode != "secure" && !c.IsProduction()
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}
