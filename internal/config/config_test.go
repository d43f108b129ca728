package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("BMC_OPENAI_API_KEY", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddress())
	assert.Equal(t, DriverSQLite, cfg.StorageDriver)
	assert.Equal(t, ProviderOpenAI, cfg.AIProvider)
	assert.Equal(t, "gpt-4o-mini", cfg.AIModel)
	assert.Equal(t, 45*time.Second, cfg.AITimeout)
	assert.Equal(t, 30*time.Second, cfg.LeaderboardTTL)
	assert.Equal(t, "Sabah", cfg.RubricRegion)
	assert.Len(t, cfg.RubricPlaces, 5)
	assert.Equal(t, "Sesi Utama", cfg.DefaultSessionName)
	assert.Equal(t, "*", cfg.CORSAllowOrigins)
	assert.False(t, cfg.LiveScoring())
}

func TestLoadReadsPlainOpenAIKey(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.LiveScoring())
	assert.Equal(t, "sk-test", cfg.OpenAIAPIKey)
}

func TestLoadOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("BMC_APP_PORT", ":9090")
	t.Setenv("BMC_STORAGE_DRIVER", "bolt")
	t.Setenv("BMC_RUBRIC_PLACES", "Kuching, Miri ,")
	t.Setenv("BMC_AI_TEMPERATURE", "0.3")
	t.Setenv("BMC_CORS_ALLOW_ORIGINS", "https://trainer.example.my")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.HTTPAddress())
	assert.Equal(t, DriverBolt, cfg.StorageDriver)
	assert.Equal(t, []string{"Kuching", "Miri"}, cfg.RubricPlaces)
	assert.InDelta(t, 0.3, cfg.AITemperature, 0.0001)
	assert.Equal(t, "https://trainer.example.my", cfg.CORSAllowOrigins)
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	t.Chdir(t.TempDir())

	t.Run("unknown driver", func(t *testing.T) {
		t.Setenv("BMC_STORAGE_DRIVER", "mongo")
		_, err := Load()
		require.Error(t, err)
	})

	t.Run("postgres without dsn", func(t *testing.T) {
		t.Setenv("BMC_STORAGE_DRIVER", "postgres")
		t.Setenv("BMC_DATABASE_URL", "")
		_, err := Load()
		require.Error(t, err)
	})

	t.Run("compatible without base url", func(t *testing.T) {
		t.Setenv("BMC_AI_PROVIDER", "compatible")
		t.Setenv("OPENAI_API_KEY", "sk-test")
		_, err := Load()
		require.Error(t, err)
	})

	t.Run("bad duration", func(t *testing.T) {
		t.Setenv("BMC_AI_TIMEOUT", "soon")
		_, err := Load()
		require.Error(t, err)
	})
}
