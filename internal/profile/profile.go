package profile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Profile is configuration to start the main server.
type Profile struct {
	// LLM arbitration configuration (OpenAI-compatible protocol).
	// All providers (openai, deepseek, siliconflow, ollama, zai) share the same config.
	LLMProvider    string  // Provider identifier: openai, deepseek, siliconflow, ollama, zai
	LLMAPIKey      string  // LLM API key
	LLMBaseURL     string  // LLM base URL (optional, has default per provider)
	LLMModel       string  // Model name: gpt-4o, deepseek-chat, etc.
	LLMMaxTokens   int     // Completion token budget (default: 1024)
	LLMTemperature float32 // Sampling temperature (default: 0.2)
	LLMTimeout     int     // LLM request timeout in seconds (default: 60)

	// Embedding configuration
	EmbeddingProvider   string
	EmbeddingModel      string
	EmbeddingAPIKey     string
	EmbeddingBaseURL    string
	EmbeddingDimensions int // default: 768

	// Notification configuration
	TelegramBotToken string
	AlertChatID      int64 // emergency alert channel; 0 disables real alerts

	// Routing policy
	MinConfidence float64 // decisions below this confidence go to manual review; 0 disables
	MaxConcurrent int64   // cap on concurrent pipeline runs (default: 8)

	// Server / storage
	Mode    string
	Addr    string
	Port    int
	Data    string
	Driver  string
	DSN     string
	Version string
}

// Provider default configurations for the arbitration LLM.
// Used when MUROJAAT_AI_LLM_BASE_URL is not explicitly set.
var llmProviderDefaults = map[string]struct {
	BaseURL string
	Model   string
}{
	"openai": {
		BaseURL: "https://api.openai.com/v1",
		Model:   "gpt-4o-mini",
	},
	"deepseek": {
		BaseURL: "https://api.deepseek.com",
		Model:   "deepseek-chat",
	},
	"siliconflow": {
		BaseURL: "https://api.siliconflow.cn/v1",
		Model:   "Qwen/Qwen2.5-72B-Instruct",
	},
	"zai": {
		BaseURL: "https://open.bigmodel.cn/api/paas/v4",
		Model:   "glm-4.7",
	},
	"ollama": {
		BaseURL: "http://localhost:11434",
		Model:   "llama3.1",
	},
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// IsAIEnabled returns true if the LLM API key is configured.
func (p *Profile) IsAIEnabled() bool {
	return p.LLMAPIKey != ""
}

// getEnvOrDefault returns environment variable value or default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvOrDefaultInt returns environment variable value as int or default value.
func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvOrDefaultFloat returns environment variable value as float64 or default value.
func getEnvOrDefaultFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

// FromEnv loads configuration from environment variables.
func (p *Profile) FromEnv() {
	p.LLMProvider = getEnvOrDefault("MUROJAAT_AI_LLM_PROVIDER", "openai")
	p.LLMAPIKey = getEnvOrDefault("MUROJAAT_AI_LLM_API_KEY", "")
	p.LLMBaseURL = getEnvOrDefault("MUROJAAT_AI_LLM_BASE_URL", "")
	p.LLMModel = getEnvOrDefault("MUROJAAT_AI_LLM_MODEL", "")
	p.LLMMaxTokens = getEnvOrDefaultInt("MUROJAAT_AI_LLM_MAX_TOKENS", 1024)
	p.LLMTemperature = float32(getEnvOrDefaultFloat("MUROJAAT_AI_LLM_TEMPERATURE", 0.2))
	p.LLMTimeout = getEnvOrDefaultInt("MUROJAAT_AI_LLM_TIMEOUT_SECONDS", 60)

	if p.LLMProvider != "" {
		if _, ok := llmProviderDefaults[p.LLMProvider]; !ok {
			slog.Warn("unknown LLM provider, using default: openai", "provider", p.LLMProvider)
			p.LLMProvider = "openai"
		}
	}
	if p.LLMBaseURL == "" || p.LLMModel == "" {
		if defaults, ok := llmProviderDefaults[p.LLMProvider]; ok {
			if p.LLMBaseURL == "" {
				p.LLMBaseURL = defaults.BaseURL
			}
			if p.LLMModel == "" {
				p.LLMModel = defaults.Model
			}
		}
	}

	p.EmbeddingProvider = getEnvOrDefault("MUROJAAT_AI_EMBEDDING_PROVIDER", "openai")
	p.EmbeddingModel = getEnvOrDefault("MUROJAAT_AI_EMBEDDING_MODEL", "text-embedding-3-small")
	p.EmbeddingAPIKey = getEnvOrDefault("MUROJAAT_AI_EMBEDDING_API_KEY", p.LLMAPIKey)
	p.EmbeddingBaseURL = getEnvOrDefault("MUROJAAT_AI_EMBEDDING_BASE_URL", "")
	p.EmbeddingDimensions = getEnvOrDefaultInt("MUROJAAT_AI_EMBEDDING_DIMENSIONS", 768)

	p.TelegramBotToken = getEnvOrDefault("MUROJAAT_TELEGRAM_BOT_TOKEN", "")
	if v := os.Getenv("MUROJAAT_ALERT_CHAT_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			p.AlertChatID = id
		}
	}

	p.MinConfidence = getEnvOrDefaultFloat("MUROJAAT_AI_MIN_CONFIDENCE", 0)
	p.MaxConcurrent = int64(getEnvOrDefaultInt("MUROJAAT_MAX_CONCURRENT_PIPELINES", 8))
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}

	if p.Driver != "postgres" && p.Driver != "sqlite" {
		return errors.Errorf("unsupported database driver %q", p.Driver)
	}

	if p.MinConfidence < 0 || p.MinConfidence > 1 {
		return errors.Errorf("min confidence must be within [0,1], got %v", p.MinConfidence)
	}
	if p.MaxConcurrent <= 0 {
		p.MaxConcurrent = 8
	}
	if p.EmbeddingDimensions <= 0 {
		p.EmbeddingDimensions = 768
	}

	if p.Driver == "sqlite" {
		if p.Data == "" && p.DSN == "" {
			p.Data = "."
		}
		if p.Data != "" {
			dataDir, err := checkDataDir(p.Data)
			if err != nil {
				slog.Error("failed to check data dir", slog.String("data", p.Data), slog.String("error", err.Error()))
				return err
			}
			p.Data = dataDir
		}
		// The sqlite driver appends its pragma query string, so the DSN
		// stays a bare file path here.
		if p.DSN == "" {
			dbFile := fmt.Sprintf("murojaat_%s.db", p.Mode)
			p.DSN = filepath.Join(p.Data, dbFile)
		}
	}

	if p.Driver == "postgres" && p.DSN == "" {
		return errors.New("postgres driver requires a DSN")
	}

	return nil
}
