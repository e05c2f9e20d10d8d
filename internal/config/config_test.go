package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv("PROJTRACK_JWT_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.HTTPAddress())
	require.Equal(t, 25, cfg.UploadMaxMB)
	require.Equal(t, 2*time.Minute, cfg.OverviewCacheTTL)
	require.Equal(t, 5*time.Minute, cfg.SweepStaleAfter)
	require.Empty(t, cfg.KafkaBrokers)
	require.False(t, cfg.CloudinaryEnabled())
}

func TestLoadReadsOverrides(t *testing.T) {
	t.Setenv("PROJTRACK_JWT_SECRET", "secret")
	t.Setenv("PROJTRACK_APP_PORT", ":9090")
	t.Setenv("PROJTRACK_UPLOAD_MAX_MB", "5")
	t.Setenv("PROJTRACK_SWEEP_INTERVAL", "30s")
	t.Setenv("PROJTRACK_KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.HTTPAddress())
	require.Equal(t, 5, cfg.UploadMaxMB)
	require.Equal(t, 30*time.Second, cfg.SweepInterval)
	require.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	require.False(t, cfg.CloudinaryEnabled())

	t.Setenv("PROJTRACK_CLOUDINARY_CLOUD_NAME", "demo")
	t.Setenv("PROJTRACK_CLOUDINARY_API_KEY", "key")
	t.Setenv("PROJTRACK_CLOUDINARY_API_SECRET", "shh")
	cfg, err = Load()
	require.NoError(t, err)
	require.True(t, cfg.CloudinaryEnabled())
	require.Equal(t, "projtrack/documents", cfg.CloudinaryUploadFolder)
}

func TestLoadRejectsInvalidInput(t *testing.T) {
	t.Setenv("PROJTRACK_JWT_SECRET", "")
	_, err := Load()
	require.Error(t, err)

	t.Setenv("PROJTRACK_JWT_SECRET", "secret")
	t.Setenv("PROJTRACK_SWEEP_STALE_AFTER", "soon")
	_, err = Load()
	require.ErrorContains(t, err, "sweep.stale_after")
}
