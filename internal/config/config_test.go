package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetEnv_OverrideAndDefault(t *testing.T) {
	t.Setenv("UPGRADOOR_TEST_STR", "custom")
	assert.Equal(t, "custom", getEnv("UPGRADOOR_TEST_STR", "fallback"))
	assert.Equal(t, "fallback", getEnv("UPGRADOOR_TEST_STR_UNSET", "fallback"))
}

func TestGetEnvInt_OverrideDefaultAndMalformed(t *testing.T) {
	t.Setenv("UPGRADOOR_TEST_INT", "42")
	assert.Equal(t, 42, getEnvInt("UPGRADOOR_TEST_INT", 7))
	assert.Equal(t, 7, getEnvInt("UPGRADOOR_TEST_INT_UNSET", 7))

	t.Setenv("UPGRADOOR_TEST_INT_BAD", "not-a-number")
	assert.Equal(t, 7, getEnvInt("UPGRADOOR_TEST_INT_BAD", 7))
}

func TestGetEnvFloat_OverrideDefaultAndMalformed(t *testing.T) {
	t.Setenv("UPGRADOOR_TEST_FLOAT", "2.5")
	assert.Equal(t, 2.5, getEnvFloat("UPGRADOOR_TEST_FLOAT", 1))
	assert.Equal(t, 1.0, getEnvFloat("UPGRADOOR_TEST_FLOAT_UNSET", 1))

	t.Setenv("UPGRADOOR_TEST_FLOAT_BAD", "not-a-float")
	assert.Equal(t, 1.0, getEnvFloat("UPGRADOOR_TEST_FLOAT_BAD", 1))
}

func TestLoad_DefaultsWhenEnvUnset(t *testing.T) {
	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, "forge", cfg.Toolchain.ForgeBinary)
	assert.Equal(t, "upgradoor", cfg.Workflow.Namespace)
}

func TestLoad_HonorsEnvOverride(t *testing.T) {
	t.Setenv("UPGRADOOR_ENV", "production")
	t.Setenv("HTTP_PORT", "9090")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "production", cfg.Env)
	assert.Equal(t, 9090, cfg.Server.HTTPPort)
}
