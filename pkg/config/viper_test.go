package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitConfigReadsExplicitFile(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	path := filepath.Join(t.TempDir(), "pdfchunker.yaml")
	require.NoError(t, os.WriteFile(path, []byte("render:\n  chunk_size: 4\n"), 0o600))

	used, err := InitConfig(path)
	require.NoError(t, err)
	assert.Equal(t, path, used)
	assert.Equal(t, 4, viper.GetInt("render.chunk_size"))
	assert.Equal(t, 3, viper.GetInt("render.concurrency"))
}

func TestInitConfigWithoutFile(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("PDFCHUNKER_RENDER_CHUNK_SIZE", "7")

	used, err := InitConfig("")
	require.NoError(t, err)
	assert.Empty(t, used)
	assert.Equal(t, 7, viper.GetInt("render.chunk_size"))
}

func TestInitConfigMissingExplicitFile(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	_, err := InitConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
