package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cosmosfle/fle/internal/app"
)

// RunCacheInvalidate evicts the settings-cache entry for
// containerName/keyID, zeroizing its cached key material. The next use
// reinitializes from the metadata source and master-key store.
func RunCacheInvalidate(ctx context.Context, appContainer *app.Container, logger *slog.Logger, containerName, keyID string) error {
	if containerName == "" {
		containerName = appContainer.Config().Container
	}

	cache, err := appContainer.SettingsCache(containerName)
	if err != nil {
		return fmt.Errorf("failed to build settings cache: %w", err)
	}
	cache.Invalidate(keyID)

	logger.Info("settings cache entry invalidated",
		slog.String("container", containerName),
		slog.String("key_id", keyID),
	)
	return nil
}

// RunCacheStats returns how many times containerName/keyID has forced
// a rewrap refresh against the metadata source, surfacing the
// Forbidden-recovery path from the settings cache.
func RunCacheStats(ctx context.Context, appContainer *app.Container, logger *slog.Logger, containerName, keyID string) (int, error) {
	if containerName == "" {
		containerName = appContainer.Config().Container
	}

	count := appContainer.MetadataSource().ForceRefreshCount(containerName, keyID)

	logger.Info("settings cache force-refresh count",
		slog.String("container", containerName),
		slog.String("key_id", keyID),
		slog.Int("count", count),
	)
	return count, nil
}
