package commands

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"

	"github.com/cosmosfle/fle/internal/app"
	"github.com/cosmosfle/fle/internal/fle/domain"
	"github.com/cosmosfle/fle/internal/validation"
)

// RunWrap wraps valueB64 under the customer master key at keyURI and
// returns the base64 result.
func RunWrap(ctx context.Context, appContainer *app.Container, logger *slog.Logger, keyURI, valueB64 string) (string, error) {
	return runWrapUnwrap(ctx, appContainer, logger, keyURI, valueB64, "wrap")
}

// RunUnwrap unwraps valueB64 under the customer master key at keyURI
// and returns the base64 result.
func RunUnwrap(ctx context.Context, appContainer *app.Container, logger *slog.Logger, keyURI, valueB64 string) (string, error) {
	return runWrapUnwrap(ctx, appContainer, logger, keyURI, valueB64, "unwrap")
}

func runWrapUnwrap(ctx context.Context, appContainer *app.Container, logger *slog.Logger, keyURI, valueB64, op string) (string, error) {
	if err := validation.Base64.Validate(valueB64); err != nil {
		return "", validation.WrapValidationError(err)
	}

	store, err := appContainer.MasterKeyStore()
	if err != nil {
		return "", fmt.Errorf("failed to build master key store: %w", err)
	}

	value, err := base64.StdEncoding.DecodeString(valueB64)
	if err != nil {
		return "", fmt.Errorf("failed to decode value: %w", err)
	}

	kekMeta := domain.KeyEncryptionKeyMetadata{URI: keyURI}

	var out []byte
	switch op {
	case "wrap":
		out, err = store.Wrap(ctx, kekMeta, value)
	case "unwrap":
		out, err = store.Unwrap(ctx, kekMeta, value)
	}
	if err != nil {
		return "", fmt.Errorf("%s failed: %w", op, err)
	}

	logger.Info("key material transformed", slog.String("operation", op), slog.String("key_uri", keyURI))
	return base64.StdEncoding.EncodeToString(out), nil
}
