package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ARTEMIS_BAMBOO_URL", "https://bamboo.example.org")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "Artemis CI API", cfg.AppName)
	require.Equal(t, ":8080", cfg.HTTPAddress())
	require.Equal(t, 10*time.Second, cfg.BambooTimeout)
	require.Equal(t, "assignment", cfg.BambooAssignmentRepo)
	require.Equal(t, 5, cfg.BambooArtifactMaxDepth)
	require.Equal(t, int64(64<<20), cfg.BambooArtifactMaxBytes)
	require.Equal(t, 4, cfg.RebuildConcurrency)
	require.Equal(t, "https://bamboo.example.org", cfg.BambooURL)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ARTEMIS_BAMBOO_TIMEOUT", "3s")
	t.Setenv("ARTEMIS_BAMBOO_ASSIGNMENT_REPO", "student-code")
	t.Setenv("ARTEMIS_REBUILD_CONCURRENCY", "9")
	t.Setenv("ARTEMIS_APP_PORT", ":9090")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 3*time.Second, cfg.BambooTimeout)
	require.Equal(t, "student-code", cfg.BambooAssignmentRepo)
	require.Equal(t, 9, cfg.RebuildConcurrency)
	require.Equal(t, ":9090", cfg.HTTPAddress())
}

func TestLoadRejectsInvalidTimeout(t *testing.T) {
	t.Setenv("ARTEMIS_LTI_TIMEOUT", "soon")

	_, err := Load()
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Config{DatabaseURL: "postgres://", JWTSecret: "secret"}
	require.Error(t, cfg.Validate())

	cfg.BambooURL = "https://bamboo.example.org"
	require.NoError(t, cfg.Validate())
}
