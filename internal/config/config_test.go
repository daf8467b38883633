package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "retrieval.db", cfg.Store.DatabaseURL)

	assert.Equal(t, "https://www.courtlistener.com/api/rest/v4", cfg.CourtListener.BaseURL)
	assert.Equal(t, 10, cfg.CourtListener.RequestsPerSecond)

	assert.Equal(t, "claude-haiku-4-5-20251001", cfg.Gatekeeper.Model)
	assert.InDelta(t, 0.70, cfg.Gatekeeper.ScoreThreshold, 1e-9)
	assert.Equal(t, 150, cfg.Gatekeeper.MaxTokens)

	assert.Equal(t, 6, cfg.Scout.MaxKeywordQueriesPerDeal)
	assert.Equal(t, 30, cfg.Scout.DateGuardDays)
	assert.Equal(t, 10, cfg.Scout.SessionCheckEvery)
	assert.Equal(t, 500, cfg.Scout.InterDealDelayMinMS)
	assert.Equal(t, 2500, cfg.Scout.InterDealDelayMaxMS)
	assert.Len(t, cfg.Scout.AllowedDomainPatterns, 6)

	assert.Equal(t, int64(52_428_800), cfg.Fetcher.MaxDocumentBytes)
	assert.Equal(t, "https://storage.courtlistener.com", cfg.Fetcher.StorageBaseURL)

	assert.Equal(t, 4800, cfg.Budget.MaxCallsPerDay)
	assert.Equal(t, "./logs", cfg.Telemetry.LogDir)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("RETRIEVAL_STORE_DRIVER", "postgres")
	t.Setenv("RETRIEVAL_BUDGET_MAX_CALLS_PER_DAY", "100")
	t.Setenv("RETRIEVAL_GATEKEEPER_SCORE_THRESHOLD", "0.85")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, 100, cfg.Budget.MaxCallsPerDay)
	assert.InDelta(t, 0.85, cfg.Gatekeeper.ScoreThreshold, 1e-9)
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "json"}))
	require.NoError(t, InitLogger(LogConfig{Level: "warn", Format: "console"}))

	err := InitLogger(LogConfig{Level: "shouting", Format: "json"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse log level")
}
