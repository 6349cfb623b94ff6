package ai

import (
	"testing"

	"github.com/uzsupport/murojaat/internal/profile"
)

func TestNewConfigFromProfile(t *testing.T) {
	prof := &profile.Profile{
		LLMProvider:         "deepseek",
		LLMAPIKey:           "llm-key",
		LLMBaseURL:          "https://api.deepseek.com",
		LLMModel:            "deepseek-chat",
		EmbeddingProvider:   "siliconflow",
		EmbeddingModel:      "BAAI/bge-m3",
		EmbeddingAPIKey:     "embed-key",
		EmbeddingBaseURL:    "https://api.siliconflow.cn/v1",
		EmbeddingDimensions: 768,
	}

	cfg := NewConfigFromProfile(prof)

	if !cfg.Enabled {
		t.Fatal("expected Enabled=true")
	}
	if cfg.Embedding.Model != "BAAI/bge-m3" {
		t.Errorf("Embedding.Model = %s", cfg.Embedding.Model)
	}
	if cfg.Embedding.Dimensions != 768 {
		t.Errorf("Embedding.Dimensions = %d", cfg.Embedding.Dimensions)
	}
	if cfg.LLM.Model != "deepseek-chat" {
		t.Errorf("LLM.Model = %s", cfg.LLM.Model)
	}
	if cfg.LLM.MaxTokens != 1024 {
		t.Errorf("expected MaxTokens default 1024, got %d", cfg.LLM.MaxTokens)
	}
	if cfg.LLM.Timeout != 60 {
		t.Errorf("expected Timeout default 60, got %d", cfg.LLM.Timeout)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestNewConfigFromProfile_Disabled(t *testing.T) {
	cfg := NewConfigFromProfile(&profile.Profile{})
	if cfg.Enabled {
		t.Error("expected Enabled=false without API key")
	}
	if err := cfg.Validate(); err == nil {
		t.Error("expected Validate to fail when disabled")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"missing embedding model", func(c *Config) { c.Embedding.Model = "" }, true},
		{"zero dimensions", func(c *Config) { c.Embedding.Dimensions = 0 }, true},
		{"missing llm model", func(c *Config) { c.LLM.Model = "" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				Enabled:   true,
				Embedding: EmbeddingConfig{Model: "text-embedding-3-small", Dimensions: 768},
				LLM:       LLMConfig{Model: "gpt-4o-mini"},
			}
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
