// Package app provides the dependency injection container for assembling
// the encryption engine's components.
package app

import (
	"context"
	"crypto"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/cosmosfle/fle/internal/config"
	"github.com/cosmosfle/fle/internal/fle/repository"
	"github.com/cosmosfle/fle/internal/fle/usecase"
	keyvaultservice "github.com/cosmosfle/fle/internal/keyvault/service"
	"github.com/cosmosfle/fle/internal/metrics"
)

// Container holds all application dependencies and provides methods to
// access them. It follows the lazy initialization pattern - components
// are created on first access.
type Container struct {
	// Configuration
	config *config.Config

	// Infrastructure
	logger          *slog.Logger
	metricsProvider *metrics.Provider
	businessMetrics metrics.BusinessMetrics

	// Demo/test metadata source, since there is no document-database
	// connection in scope: see internal/fle/repository.
	metadataSource *repository.MemoryMetadataSource

	// Master-key store, and the cloud KMS variant kept separately so
	// Shutdown can close its open keepers.
	masterKeyStore usecase.MasterKeyStore
	cloudKMSStore  *keyvaultservice.CloudKMSStore

	// Per-container settings caches, built lazily on first use.
	settingsCachesMu sync.Mutex
	settingsCaches   map[string]*usecase.SettingsCache

	// Initialization flags and mutex for thread-safety
	loggerInit          sync.Once
	metricsProviderInit sync.Once
	businessMetricsInit sync.Once
	metadataSourceInit  sync.Once
	masterKeyStoreInit  sync.Once
	initErrors          map[string]error
	initErrorsMu        sync.Mutex
}

// NewContainer creates a new dependency injection container with the
// provided configuration.
func NewContainer(cfg *config.Config) *Container {
	return &Container{
		config:         cfg,
		settingsCaches: make(map[string]*usecase.SettingsCache),
		initErrors:     make(map[string]error),
	}
}

// Config returns the application configuration.
func (c *Container) Config() *config.Config {
	return c.config
}

// Logger returns the configured logger instance. It creates a new
// logger on first access based on the log level in configuration.
func (c *Container) Logger() *slog.Logger {
	c.loggerInit.Do(func() {
		c.logger = c.initLogger()
	})
	return c.logger
}

// MetricsProvider returns the OpenTelemetry/Prometheus metrics
// provider. Returns nil, nil when metrics are disabled.
func (c *Container) MetricsProvider() (*metrics.Provider, error) {
	var err error
	c.metricsProviderInit.Do(func() {
		c.metricsProvider, err = c.initMetricsProvider()
		if err != nil {
			c.setInitError("metricsProvider", err)
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr := c.initError("metricsProvider"); storedErr != nil {
		return nil, storedErr
	}
	return c.metricsProvider, nil
}

// BusinessMetrics returns the business-operation metrics recorder. When
// metrics are disabled it returns metrics.NoOpBusinessMetrics.
func (c *Container) BusinessMetrics() (metrics.BusinessMetrics, error) {
	var err error
	c.businessMetricsInit.Do(func() {
		c.businessMetrics, err = c.initBusinessMetrics()
		if err != nil {
			c.setInitError("businessMetrics", err)
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr := c.initError("businessMetrics"); storedErr != nil {
		return nil, storedErr
	}
	return c.businessMetrics, nil
}

// MetadataSource returns the in-memory DatabaseMetadataSource used by
// cmd/flectl in place of a real document-database connection.
func (c *Container) MetadataSource() *repository.MemoryMetadataSource {
	c.metadataSourceInit.Do(func() {
		c.metadataSource = repository.NewMemoryMetadataSource()
	})
	return c.metadataSource
}

// MasterKeyStore returns the configured MasterKeyStore, selecting
// between the hand-rolled key-vault wire client and the
// gocloud.dev/secrets-backed adapter per config.MasterKeyStoreProvider.
func (c *Container) MasterKeyStore() (usecase.MasterKeyStore, error) {
	var err error
	c.masterKeyStoreInit.Do(func() {
		c.masterKeyStore, err = c.initMasterKeyStore()
		if err != nil {
			c.setInitError("masterKeyStore", err)
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr := c.initError("masterKeyStore"); storedErr != nil {
		return nil, storedErr
	}
	return c.masterKeyStore, nil
}

// SettingsCache returns the settings cache for container, building one
// on first access for that container name.
func (c *Container) SettingsCache(containerName string) (*usecase.SettingsCache, error) {
	masterKeyStore, err := c.MasterKeyStore()
	if err != nil {
		return nil, err
	}

	c.settingsCachesMu.Lock()
	defer c.settingsCachesMu.Unlock()
	if cache, ok := c.settingsCaches[containerName]; ok {
		return cache, nil
	}
	cache := usecase.NewSettingsCache(containerName, c.config.SettingsTTL, c.MetadataSource(), masterKeyStore)
	c.settingsCaches[containerName] = cache
	return cache, nil
}

// Processor returns the metrics-decorated encrypt/decrypt use case for
// containerName.
func (c *Container) Processor(containerName string) (usecase.EncryptDecryptor, error) {
	settingsCache, err := c.SettingsCache(containerName)
	if err != nil {
		return nil, err
	}
	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, err
	}
	processor := usecase.NewProcessor(containerName, c.MetadataSource(), settingsCache)
	return usecase.NewProcessorWithMetrics(processor, businessMetrics), nil
}

// Shutdown performs cleanup of all initialized resources. It should be
// called when the application is shutting down.
func (c *Container) Shutdown(ctx context.Context) error {
	var shutdownErrors []error

	c.settingsCachesMu.Lock()
	for _, cache := range c.settingsCaches {
		cache.Close()
	}
	c.settingsCachesMu.Unlock()

	if c.cloudKMSStore != nil {
		if err := c.cloudKMSStore.Close(); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("cloud kms store close: %w", err))
		}
	}

	if c.metricsProvider != nil {
		if err := c.metricsProvider.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics provider shutdown: %w", err))
		}
	}

	if len(shutdownErrors) > 0 {
		return fmt.Errorf("shutdown errors: %v", shutdownErrors)
	}
	return nil
}

func (c *Container) setInitError(key string, err error) {
	c.initErrorsMu.Lock()
	defer c.initErrorsMu.Unlock()
	c.initErrors[key] = err
}

func (c *Container) initError(key string) error {
	c.initErrorsMu.Lock()
	defer c.initErrorsMu.Unlock()
	return c.initErrors[key]
}

// initLogger creates and configures a structured logger based on the
// log level.
func (c *Container) initLogger() *slog.Logger {
	var logLevel slog.Level
	switch c.config.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})
	return slog.New(handler)
}

// initMetricsProvider creates the metrics provider when metrics are
// enabled.
func (c *Container) initMetricsProvider() (*metrics.Provider, error) {
	if !c.config.MetricsEnabled {
		return nil, nil
	}
	provider, err := metrics.NewProvider(c.config.MetricsNamespace)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics provider: %w", err)
	}
	return provider, nil
}

// initBusinessMetrics creates the business metrics recorder, falling
// back to a no-op implementation when metrics are disabled.
func (c *Container) initBusinessMetrics() (metrics.BusinessMetrics, error) {
	if !c.config.MetricsEnabled {
		return metrics.NewNoOpBusinessMetrics(), nil
	}
	provider, err := c.MetricsProvider()
	if err != nil {
		return nil, err
	}
	businessMetrics, err := metrics.NewBusinessMetrics(provider.MeterProvider(), c.config.MetricsNamespace)
	if err != nil {
		return nil, fmt.Errorf("failed to create business metrics: %w", err)
	}
	return businessMetrics, nil
}

// initMasterKeyStore builds the MasterKeyStore backend selected by
// config.MasterKeyStoreProvider.
func (c *Container) initMasterKeyStore() (usecase.MasterKeyStore, error) {
	switch c.config.MasterKeyStoreProvider {
	case "cloud_kms":
		store := keyvaultservice.NewCloudKMSStore()
		c.cloudKMSStore = store
		return store, nil
	case "keyvault", "":
		return c.initKeyVaultClient()
	default:
		return nil, fmt.Errorf("unknown master key store provider: %q", c.config.MasterKeyStoreProvider)
	}
}

// initKeyVaultClient builds the hand-rolled key-vault wire client,
// loading the client-certificate credential from disk.
func (c *Container) initKeyVaultClient() (usecase.MasterKeyStore, error) {
	certCred, err := loadCertificateCredential(c.config.KeyVaultClientID, c.config.KeyVaultTenantID, c.config.KeyVaultCertificatePath)
	if err != nil {
		return nil, fmt.Errorf("failed to load key vault certificate credential: %w", err)
	}
	var httpClient *http.Client
	if c.config.HTTPTimeout > 0 {
		httpClient = &http.Client{Timeout: c.config.HTTPTimeout}
	}
	return keyvaultservice.NewClient(
		certCred,
		httpClient,
		c.config.APIVersion,
		c.config.AADRetryInterval,
		c.config.AADRetryCount,
	), nil
}

// loadCertificateCredential reads a PEM file containing a client
// certificate chain and its private key, as required by the client
// certificate grant used by internal/keyvault/service.NewClient.
func loadCertificateCredential(clientID, tenantID, certPath string) (keyvaultservice.CertificateCredential, error) {
	if certPath == "" {
		return keyvaultservice.CertificateCredential{ClientID: clientID, TenantID: tenantID}, nil
	}

	raw, err := os.ReadFile(certPath)
	if err != nil {
		return keyvaultservice.CertificateCredential{}, fmt.Errorf("read certificate file: %w", err)
	}

	var (
		certs      []*x509.Certificate
		privateKey crypto.PrivateKey
	)
	for {
		var block *pem.Block
		block, raw = pem.Decode(raw)
		if block == nil {
			break
		}
		switch block.Type {
		case "CERTIFICATE":
			cert, err := x509.ParseCertificate(block.Bytes)
			if err != nil {
				return keyvaultservice.CertificateCredential{}, fmt.Errorf("parse certificate: %w", err)
			}
			certs = append(certs, cert)
		case "PRIVATE KEY":
			key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
			if err != nil {
				return keyvaultservice.CertificateCredential{}, fmt.Errorf("parse private key: %w", err)
			}
			privateKey = key
		case "RSA PRIVATE KEY":
			key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
			if err != nil {
				return keyvaultservice.CertificateCredential{}, fmt.Errorf("parse rsa private key: %w", err)
			}
			privateKey = key
		}
	}
	if len(certs) == 0 || privateKey == nil {
		return keyvaultservice.CertificateCredential{}, fmt.Errorf("certificate file %s must contain a certificate and a private key", certPath)
	}

	return keyvaultservice.CertificateCredential{
		TenantID:     tenantID,
		ClientID:     clientID,
		Certificates: certs,
		PrivateKey:   privateKey,
	}, nil
}
