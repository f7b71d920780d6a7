// Package config provides application configuration through environment variables.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/allisson/go-env"
	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	// LogLevel is the logging level (e.g., "debug", "info", "warn", "error").
	LogLevel string

	// MetricsEnabled indicates whether metrics collection is enabled.
	MetricsEnabled bool
	// MetricsNamespace is the namespace for the application metrics.
	MetricsNamespace string
	// MetricsPort is the port number read from METRICS_PORT. No component
	// of this module starts a metrics server on it.
	MetricsPort int

	// Container is the default container name the CLI and DI container
	// operate against when none is given on the command line.
	Container string

	// SettingsTTL is the expiry of settings-cache entries.
	SettingsTTL time.Duration

	// HTTPTimeout is the per-request timeout to the key vault. When zero,
	// the key-vault client keeps its own 60s default.
	HTTPTimeout time.Duration

	// APIVersion is the key-vault REST API version string.
	APIVersion string

	// AADRetryInterval is the base backoff interval for AAD token retries.
	AADRetryInterval time.Duration
	// AADRetryCount is the max retry attempts for AAD token acquisition.
	AADRetryCount int

	// MasterKeyStoreProvider selects the MasterKeyStore backend:
	// "keyvault" (default, internal/keyvault/service.Client) or
	// "cloud_kms" (internal/keyvault/service.CloudKMSStore).
	MasterKeyStoreProvider string

	// KeyVaultClientID is the AAD application (client) id used to build
	// the certificate credential.
	KeyVaultClientID string
	// KeyVaultCertificatePath is the path to the PEM-encoded certificate
	// and private key used for the client-certificate credential grant.
	KeyVaultCertificatePath string
	// KeyVaultTenantID optionally pins the AAD tenant; when empty it is
	// parsed from the authority returned by the vault's challenge probe.
	KeyVaultTenantID string

	// CloudKMSKeyURI is the gocloud.dev/secrets URI read from
	// CLOUD_KMS_KEY_URI. The cloud_kms MasterKeyStoreProvider does not
	// read it: CloudKMSStore opens one keeper per KEK URI carried in the
	// key-encryption-key metadata.
	CloudKMSKeyURI string
}

// Load loads configuration from environment variables and .env file.
func Load() *Config {
	loadDotEnv()

	return &Config{
		LogLevel: env.GetString("LOG_LEVEL", "info"),

		MetricsEnabled:   env.GetBool("METRICS_ENABLED", true),
		MetricsNamespace: env.GetString("METRICS_NAMESPACE", "fle"),
		MetricsPort:      env.GetInt("METRICS_PORT", 8081),

		Container: env.GetString("CONTAINER", "default"),

		SettingsTTL: env.GetDuration("SETTINGS_TTL_MINUTES", 60, time.Minute),
		HTTPTimeout: env.GetDuration("HTTP_TIMEOUT_SECONDS", 60, time.Second),
		APIVersion:  env.GetString("API_VERSION", "7.4"),

		AADRetryInterval: env.GetDuration("AAD_RETRY_INTERVAL_MS", 200, time.Millisecond),
		AADRetryCount:    env.GetInt("AAD_RETRY_COUNT", 3),

		MasterKeyStoreProvider: env.GetString("MASTER_KEY_STORE_PROVIDER", "keyvault"),

		KeyVaultClientID:        env.GetString("KEY_VAULT_CLIENT_ID", ""),
		KeyVaultCertificatePath: env.GetString("KEY_VAULT_CERTIFICATE_PATH", ""),
		KeyVaultTenantID:        env.GetString("KEY_VAULT_TENANT_ID", ""),

		CloudKMSKeyURI: env.GetString("CLOUD_KMS_KEY_URI", ""),
	}
}

// loadDotEnv searches for a .env file recursively from the current directory
// up to the root directory and loads it if found.
func loadDotEnv() {
	cwd, err := os.Getwd()
	if err != nil {
		return
	}

	dir := cwd
	for {
		envPath := filepath.Join(dir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			_ = godotenv.Load(envPath)
			return
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
}
