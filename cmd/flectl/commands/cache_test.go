package commands

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunCacheInvalidateAndStats(t *testing.T) {
	dir := t.TempDir()
	keyURI := localSecretsKeyURI(t)
	logger := slog.New(slog.DiscardHandler)

	appContainer := testAppContainer(t)
	_ = writePolicyFile(t, appContainer, dir, keyURI)

	count, err := RunCacheStats(context.Background(), appContainer, logger, "orders", "key1")
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	require.NoError(t, RunCacheInvalidate(context.Background(), appContainer, logger, "orders", "key1"))

	cache, err := appContainer.SettingsCache("orders")
	require.NoError(t, err)
	assert.NotNil(t, cache)
}
