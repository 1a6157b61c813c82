package config

import "os"

// APIKeySource represents where an API key comes from.
type APIKeySource string

const (
	KeySourceEnv    APIKeySource = "env"
	KeySourceConfig APIKeySource = "config"
	KeySourceNone   APIKeySource = "none"
)

// KeyStatus represents the status of an API key.
type KeyStatus struct {
	Name    string       `json:"name"`
	Source  APIKeySource `json:"source"`
	IsSet   bool         `json:"is_set"`
	Primary bool         `json:"primary"`
	Masked  string       `json:"masked,omitempty"` // e.g., "AIz...abc"
}

// CheckAPIKeys returns the status of every provider credential.
func CheckAPIKeys(cfg *Config) []KeyStatus {
	keys := []KeyStatus{
		checkKey("Gemini API Key", cfg.LLM.GeminiKey, "STOCKBRIEF_LLM_GEMINI_KEY", "GOOGLE_API_KEY", "GEMINI_API_KEY"),
		checkKey("OpenAI API Key", cfg.LLM.OpenAIKey, "STOCKBRIEF_LLM_OPENAI_KEY", "OPENAI_API_KEY"),
		checkKey("Anthropic API Key", cfg.LLM.AnthropicKey, "STOCKBRIEF_LLM_ANTHROPIC_KEY", "ANTHROPIC_API_KEY"),
	}
	providers := []string{"gemini", "openai", "anthropic"}
	for i := range keys {
		keys[i].Primary = providers[i] == cfg.LLM.Primary
	}
	return keys
}

// checkKey checks if a key is set and where it came from.
func checkKey(name, value string, envVars ...string) KeyStatus {
	status := KeyStatus{
		Name:   name,
		IsSet:  value != "",
		Source: KeySourceNone,
	}
	if value == "" {
		return status
	}

	status.Source = KeySourceConfig
	for _, e := range envVars {
		if os.Getenv(e) == value {
			status.Source = KeySourceEnv
			break
		}
	}
	status.Masked = maskKey(value)
	return status
}

// maskKey masks an API key for display, showing only first 3 and last 3 chars.
func maskKey(key string) string {
	if len(key) <= 8 {
		return "***"
	}
	return key[:3] + "..." + key[len(key)-3:]
}
