package cli

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/stash/internal/core/domain"
)

func TestConfigCmd_IsSettingsOnly(t *testing.T) {
	assert.True(t, settingsOnly(configSetCmd))
	assert.False(t, settingsOnly(searchCmd))
}

func TestConfigSetAndGet(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	out, err := execute("config", "set", "search.top_k", "7")
	require.NoError(t, err)
	assert.Contains(t, out, "search.top_k = 7")

	out, err = execute("config", "get", "search.top_k")
	require.NoError(t, err)
	assert.Equal(t, "7", strings.TrimSpace(out))
}

func TestConfigSet_RejectsBadValue(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	_, err := execute("config", "set", "search.top_k", "many")

	assert.Error(t, err)
}

func TestConfigSet_ReadsValueFromInput(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()
	rootCmd.SetIn(strings.NewReader("debug\n"))

	_, err := execute("config", "set", "log.level")
	require.NoError(t, err)

	out, err := execute("config", "get", "log.level")
	require.NoError(t, err)
	assert.Equal(t, "debug", strings.TrimSpace(out))
}

func TestConfigGet_UnknownKey(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	_, err := execute("config", "get", "nope")

	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown config key "nope"`)
}

func TestConfigList_MasksAPIKey(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	_, err := execute("config", "set", "embedding.api_key", "sk-verysecretkey1234")
	require.NoError(t, err)

	out, err := execute("config", "list")

	require.NoError(t, err)
	assert.Contains(t, out, "embedding.api_key")
	assert.Contains(t, out, "****1234")
	assert.NotContains(t, out, "verysecret")
}

func TestConfigCheck_LocalEmbeddings(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	out, err := execute("config", "check")

	require.NoError(t, err)
	assert.Contains(t, out, "Embeddings: local")
	assert.Contains(t, out, "Configuration OK")
}

func TestConfigCheck_RejectsInvalidSettings(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	_, err := execute("config", "set", "embedding.provider", "openai")
	require.NoError(t, err)

	_, err = execute("config", "check")

	assert.ErrorIs(t, err, domain.ErrConfiguration)
}
