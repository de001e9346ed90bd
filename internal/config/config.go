package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/BetterCallFirewall/CertiAudit/internal/limits"
)

// ProjectType selects the target ecosystem and therefore the static analyzer.
type ProjectType string

const (
	ProjectEVM    ProjectType = "EVM"
	ProjectSolana ProjectType = "SOLANA"
	ProjectMove   ProjectType = "MOVE"
)

// ParseProjectType parses a project type case-insensitively.
func ParseProjectType(s string) (ProjectType, error) {
	switch ProjectType(strings.ToUpper(strings.TrimSpace(s))) {
	case ProjectEVM:
		return ProjectEVM, nil
	case ProjectSolana:
		return ProjectSolana, nil
	case ProjectMove:
		return ProjectMove, nil
	default:
		return "", fmt.Errorf("%w: unknown project type %q (supported: EVM, SOLANA, MOVE)", ErrConfiguration, s)
	}
}

type Config struct {
	LLM      LLMConfig             `yaml:"llm"`
	Project  ProjectConfig         `yaml:"project"`
	Analyzer AnalyzerConfig        `yaml:"analyzer"`
	Server   ServerConfig          `yaml:"server"`
	Limits   limits.AnalysisLimits `yaml:"limits"`
}

type LLMConfig struct {
	ModelName   string        `yaml:"modelName"`
	Temperature float64       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`

	OpenAIAPIKey  string `yaml:"openaiApiKey"`
	OpenAIBaseURL string `yaml:"openaiBaseUrl"` // empty means api.openai.com
	GeminiAPIKey  string `yaml:"geminiApiKey"`
	OllamaBaseURL string `yaml:"ollamaBaseUrl"`
}

type ProjectConfig struct {
	Type              ProjectType `yaml:"type"`
	BestPracticesPath string      `yaml:"bestPracticesPath"`
}

type AnalyzerConfig struct {
	Timeout       time.Duration `yaml:"timeout"`
	SlitherBinary string        `yaml:"slitherBinary"`
	SoteriaBinary string        `yaml:"soteriaBinary"`
}

type ServerConfig struct {
	ListenAddr string `yaml:"listenAddr"`
	MaxAudits  int    `yaml:"maxAudits"` // audit history kept in memory
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LLM: LLMConfig{
			ModelName:     "gpt-4o",
			Temperature:   0.1,
			Timeout:       60 * time.Second,
			OllamaBaseURL: "http://localhost:11434/v1",
		},
		Project: ProjectConfig{
			Type:              ProjectEVM,
			BestPracticesPath: "config/best_practices.txt",
		},
		Analyzer: AnalyzerConfig{
			Timeout:       300 * time.Second,
			SlitherBinary: "slither",
			SoteriaBinary: "soteria",
		},
		Server: ServerConfig{
			ListenAddr: ":8090",
			MaxAudits:  100,
		},
		Limits: *limits.DefaultAnalysisLimits(),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// Load builds the configuration once at startup: defaults, then the optional
// YAML file, then .env and process environment. The returned value is not
// mutated afterwards; use WithProjectType to derive a variant.
func Load(yamlPath string) (*Config, error) {
	cfg := Default()

	// .env is optional, a missing file is not an error
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: failed to load .env: %v", ErrConfiguration, err)
	}

	if yamlPath == "" {
		yamlPath = os.Getenv("CERTI_AUDIT_CONFIG")
	}
	if yamlPath != "" {
		if err := loadYAML(yamlPath, &cfg); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	pt, err := ParseProjectType(string(cfg.Project.Type))
	if err != nil {
		return nil, err
	}
	cfg.Project.Type = pt
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadYAML(path string, cfg *Config) error {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("%w: failed to read config file %s: %v", ErrConfiguration, path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("%w: invalid config file %s: %v", ErrConfiguration, path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	cfg.LLM.ModelName = getEnvOrDefault("LLM_MODEL_NAME", cfg.LLM.ModelName)
	cfg.LLM.OpenAIAPIKey = getEnvOrDefault("OPENAI_API_KEY", cfg.LLM.OpenAIAPIKey)
	cfg.LLM.OpenAIBaseURL = getEnvOrDefault("OPENAI_BASE_URL", cfg.LLM.OpenAIBaseURL)
	cfg.LLM.GeminiAPIKey = getEnvOrDefault("GEMINI_API_KEY", cfg.LLM.GeminiAPIKey)
	cfg.LLM.OllamaBaseURL = getEnvOrDefault("OLLAMA_BASE_URL", cfg.LLM.OllamaBaseURL)
	cfg.Project.BestPracticesPath = getEnvOrDefault("SECURITY_BEST_PRACTICES_PATH", cfg.Project.BestPracticesPath)
	cfg.Analyzer.SlitherBinary = getEnvOrDefault("SLITHER_BIN", cfg.Analyzer.SlitherBinary)
	cfg.Analyzer.SoteriaBinary = getEnvOrDefault("SOTERIA_BIN", cfg.Analyzer.SoteriaBinary)
	cfg.Server.ListenAddr = getEnvOrDefault("SERVER_ADDR", cfg.Server.ListenAddr)

	if v := os.Getenv("LLM_TEMPERATURE"); v != "" {
		t, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%w: LLM_TEMPERATURE must be a number, got %q", ErrConfiguration, v)
		}
		cfg.LLM.Temperature = t
	}
	if v := os.Getenv("LLM_TIMEOUT"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return fmt.Errorf("%w: LLM_TIMEOUT: %v", ErrConfiguration, err)
		}
		cfg.LLM.Timeout = d
	}
	if v := os.Getenv("ANALYZER_TIMEOUT"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return fmt.Errorf("%w: ANALYZER_TIMEOUT: %v", ErrConfiguration, err)
		}
		cfg.Analyzer.Timeout = d
	}
	if v := os.Getenv("SERVER_MAX_AUDITS"); v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || n <= 0 {
			return fmt.Errorf("%w: SERVER_MAX_AUDITS must be a positive integer, got %q", ErrConfiguration, v)
		}
		cfg.Server.MaxAudits = n
	}
	if v := os.Getenv("PROJECT_TYPE"); v != "" {
		pt, err := ParseProjectType(v)
		if err != nil {
			return err
		}
		cfg.Project.Type = pt
	}
	return nil
}

func parseSeconds(v string) (time.Duration, error) {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("expected a positive number of seconds, got %q", v)
	}
	return time.Duration(n) * time.Second, nil
}

// Validate checks the values that later constructors rely on.
func (c Config) Validate() error {
	if strings.TrimSpace(c.LLM.ModelName) == "" {
		return fmt.Errorf("%w: LLM model name is required", ErrConfiguration)
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("%w: LLM temperature must be within [0, 2], got %v", ErrConfiguration, c.LLM.Temperature)
	}
	if c.LLM.Timeout <= 0 {
		return fmt.Errorf("%w: LLM timeout must be positive", ErrConfiguration)
	}
	if c.Analyzer.Timeout <= 0 {
		return fmt.Errorf("%w: analyzer timeout must be positive", ErrConfiguration)
	}
	if _, err := ParseProjectType(string(c.Project.Type)); err != nil {
		return err
	}
	return nil
}

// WithProjectType returns a copy of the configuration targeting another ecosystem.
func (c Config) WithProjectType(pt ProjectType) *Config {
	c.Project.Type = pt
	return &c
}

// WithListenAddr returns a copy of the configuration serving on addr.
func (c Config) WithListenAddr(addr string) *Config {
	c.Server.ListenAddr = addr
	return &c
}

// DetectProjectType resolves the ecosystem for a file.
// Priority: explicit override > file extension > configured default.
func DetectProjectType(filePath string, explicit ProjectType, fallback ProjectType) ProjectType {
	if explicit != "" {
		return explicit
	}
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".sol":
		return ProjectEVM
	case ".rs":
		return ProjectSolana
	case ".move":
		return ProjectMove
	}
	if fallback != "" {
		return fallback
	}
	return ProjectEVM
}
