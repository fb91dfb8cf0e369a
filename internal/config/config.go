package config

import (
	"fmt"
	"os"
	"strconv"
)

// Retrieval failure policies.
const (
	RetrievalModeDegrade = "degrade"
	RetrievalModeStrict  = "strict"
)

// Config is the full runtime configuration, read from the environment once
// at startup. Secrets are not here; those come from Parameter Store under
// ParamPrefix.
type Config struct {
	// ParamPrefix is the Parameter Store path prefix for API keys and the
	// persona prompt.
	ParamPrefix string
	// PineconeHost is the serverless index data-plane URL. Empty selects
	// the in-process index for keyless local runs.
	PineconeHost string

	EmbeddingModel string
	ChatModel      string
	FallbackModel  string
	GeneralModel   string

	TopK     int
	MinScore float64
	// RetrievalMode is degrade (index failures answer from general
	// knowledge) or strict (index failures fail the request).
	RetrievalMode string

	Environment string
	DevMode     bool
}

// Load reads and validates the configuration from the environment.
func Load() (Config, error) {
	cfg := Config{
		ParamPrefix:    os.Getenv("PARAM_PREFIX"),
		PineconeHost:   os.Getenv("PINECONE_HOST"),
		EmbeddingModel: os.Getenv("EMBEDDING_MODEL"),
		ChatModel:      envStr("CHAT_MODEL", "llama3-70b-8192"),
		FallbackModel:  envStr("FALLBACK_MODEL", "llama3-8b-8192"),
		TopK:           envInt("TOP_K", 3),
		MinScore:       envFloat("MIN_SCORE", 0.65),
		RetrievalMode:  envStr("RETRIEVAL_MODE", RetrievalModeDegrade),
		Environment:    envStr("ENVIRONMENT", "production"),
		DevMode:        os.Getenv("DEV_MODE") == "true",
	}
	cfg.GeneralModel = envStr("GENERAL_MODEL", cfg.FallbackModel)

	if cfg.ParamPrefix == "" {
		return Config{}, fmt.Errorf("config: required environment variable PARAM_PREFIX is not set")
	}
	if cfg.RetrievalMode != RetrievalModeDegrade && cfg.RetrievalMode != RetrievalModeStrict {
		return Config{}, fmt.Errorf("config: RETRIEVAL_MODE must be %q or %q, got %q", RetrievalModeDegrade, RetrievalModeStrict, cfg.RetrievalMode)
	}
	if cfg.TopK <= 0 {
		return Config{}, fmt.Errorf("config: TOP_K must be positive, got %d", cfg.TopK)
	}
	if cfg.MinScore < 0 || cfg.MinScore > 1 {
		return Config{}, fmt.Errorf("config: MIN_SCORE must be in [0,1], got %g", cfg.MinScore)
	}
	return cfg, nil
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}
