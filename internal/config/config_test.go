package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPassesValidation(t *testing.T) {
	require.NoError(t, validateConfig(Default()))
}

func TestLoadAppliesEnvOverride(t *testing.T) {
	t.Setenv("CHUNK_SIZE", "500")
	t.Setenv("CHUNK_OVERLAP", "50")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 500, cfg.Chunk.Size)
	assert.Equal(t, 50, cfg.Chunk.Overlap)
}

func TestLoadIgnoresUnmappedEnvVars(t *testing.T) {
	t.Setenv("SOME_UNRELATED_VAR", "whatever")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default().Chunk, cfg.Chunk)
}

func TestGenerateEnvMappingsIncludesKnownKeys(t *testing.T) {
	mappings := envToConfigPath()
	assert.Equal(t, "chunk.size", mappings["CHUNK_SIZE"])
	assert.Equal(t, "database.embed_dim", mappings["EMBED_DIM"])
}
