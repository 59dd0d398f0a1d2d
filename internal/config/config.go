package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// minSecretBytes is the minimum length the bearer-auth secret must meet;
// shorter values are rejected at startup (§4.2).
const minSecretBytes = 32

// Config holds all application configuration loaded from environment
// variables. It is immutable after Load() returns.
type Config struct {
	Port             int
	Environment      string
	DatabaseURL      string
	DatabaseMaxConns int
	OpenAIAPIKey     string
	APISecretToken   string
	AllowedOrigins   []string
	LLMModel         string
	GCPProject       string
	GCPLocation      string
	EmbeddingModel   string
}

// Load reads configuration from environment variables and validates it.
// Required variables (DATABASE_URL, OPENAI_API_KEY, API_SECRET_TOKEN,
// GCP_PROJECT) cause an error if missing or malformed; optional variables
// fall back to their documented defaults.
//
// OPENAI_API_KEY is validated at startup for compatibility with the
// documented environment table, but the embedder and LLM collaborators
// authenticate against Vertex AI through Application Default Credentials
// (GOOGLE_APPLICATION_CREDENTIALS or workload identity), not this key.
func Load() (*Config, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("config.Load: DATABASE_URL is required")
	}

	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("config.Load: OPENAI_API_KEY is required")
	}

	secret := os.Getenv("API_SECRET_TOKEN")
	if secret == "" {
		return nil, fmt.Errorf("config.Load: API_SECRET_TOKEN is required")
	}
	if len(secret) < minSecretBytes {
		return nil, fmt.Errorf("config.Load: API_SECRET_TOKEN must be at least %d bytes", minSecretBytes)
	}

	project := os.Getenv("GCP_PROJECT")
	if project == "" {
		return nil, fmt.Errorf("config.Load: GCP_PROJECT is required")
	}

	cfg := &Config{
		Port:             envInt("PORT", 8080),
		Environment:      envStr("NODE_ENV", envStr("ENVIRONMENT", "development")),
		DatabaseURL:      dbURL,
		DatabaseMaxConns: envInt("DATABASE_MAX_CONNS", 25),
		OpenAIAPIKey:     apiKey,
		APISecretToken:   secret,
		AllowedOrigins:   envList("ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		LLMModel:         envStr("LLM_MODEL", "gpt-5-mini"),
		GCPProject:       project,
		GCPLocation:      envStr("GCP_LOCATION", "global"),
		EmbeddingModel:   envStr("EMBEDDING_MODEL", "text-embedding-005"),
	}

	if len(cfg.AllowedOrigins) == 0 {
		return nil, fmt.Errorf("config.Load: ALLOWED_ORIGINS must not be empty")
	}

	return cfg, nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
