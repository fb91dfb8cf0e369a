package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PARAM_PREFIX", "/persona-agent")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "/persona-agent", cfg.ParamPrefix)
	require.Equal(t, "llama3-70b-8192", cfg.ChatModel)
	require.Equal(t, "llama3-8b-8192", cfg.FallbackModel)
	require.Equal(t, cfg.FallbackModel, cfg.GeneralModel)
	require.Equal(t, 3, cfg.TopK)
	require.InDelta(t, 0.65, cfg.MinScore, 1e-9)
	require.Equal(t, RetrievalModeDegrade, cfg.RetrievalMode)
	require.Equal(t, "production", cfg.Environment)
	require.False(t, cfg.DevMode)
}

func TestLoad_MissingParamPrefix(t *testing.T) {
	t.Setenv("PARAM_PREFIX", "")

	_, err := Load()
	require.Error(t, err)
	require.Contains(t, err.Error(), "PARAM_PREFIX")
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PARAM_PREFIX", "/persona-agent")
	t.Setenv("CHAT_MODEL", "llama-3.3-70b-versatile")
	t.Setenv("GENERAL_MODEL", "llama3-8b-8192")
	t.Setenv("TOP_K", "5")
	t.Setenv("MIN_SCORE", "0.5")
	t.Setenv("RETRIEVAL_MODE", "strict")
	t.Setenv("DEV_MODE", "true")
	t.Setenv("ENVIRONMENT", "staging")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "llama-3.3-70b-versatile", cfg.ChatModel)
	require.Equal(t, "llama3-8b-8192", cfg.GeneralModel)
	require.Equal(t, 5, cfg.TopK)
	require.InDelta(t, 0.5, cfg.MinScore, 1e-9)
	require.Equal(t, RetrievalModeStrict, cfg.RetrievalMode)
	require.True(t, cfg.DevMode)
	require.Equal(t, "staging", cfg.Environment)
}

func TestLoad_InvalidRetrievalMode(t *testing.T) {
	t.Setenv("PARAM_PREFIX", "/persona-agent")
	t.Setenv("RETRIEVAL_MODE", "optimistic")

	_, err := Load()
	require.Error(t, err)
	require.Contains(t, err.Error(), "RETRIEVAL_MODE")
}

func TestLoad_InvalidNumbersFallBackToDefaults(t *testing.T) {
	t.Setenv("PARAM_PREFIX", "/persona-agent")
	t.Setenv("TOP_K", "not-a-number")
	t.Setenv("MIN_SCORE", "nope")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 3, cfg.TopK)
	require.InDelta(t, 0.65, cfg.MinScore, 1e-9)
}

func TestLoad_MinScoreOutOfRange(t *testing.T) {
	t.Setenv("PARAM_PREFIX", "/persona-agent")
	t.Setenv("MIN_SCORE", "1.5")

	_, err := Load()
	require.Error(t, err)
	require.Contains(t, err.Error(), "MIN_SCORE")
}
