// Package service implements the key-vault access client and AAD
// token provider: the two networked subsystems of the encryption
// engine's master-key path.
package service

import (
	"context"
	"crypto"
	"crypto/x509"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/cenkalti/backoff/v4"

	"github.com/cosmosfle/fle/internal/keyvault/domain"
)

// CertificateCredential is the certificate-based client credential
// the AAD token provider is constructed with.
type CertificateCredential struct {
	TenantID     string
	ClientID     string
	Certificates []*x509.Certificate
	PrivateKey   crypto.PrivateKey
}

// AADTokenProvider acquires and caches OAuth2 bearer tokens via the
// certificate client-credentials flow. It owns its own
// in-memory cache and retry policy rather than relying on the
// underlying azidentity credential's internals.
type AADTokenProvider struct {
	authority     string
	resource      string
	cred          azcore.TokenCredential
	retryInterval time.Duration
	retryCount    int
	now           func() time.Time

	mu          sync.Mutex
	cachedToken string
	expiresAt   time.Time
}

// NewAADTokenProvider constructs a provider for one authority/resource
// pair. The tenant segment is parsed from authority when cred.TenantID
// is empty, matching the AAD-login-URL shape the key-vault client
// discovers via its challenge probe.
func NewAADTokenProvider(
	authority, resource string,
	cred CertificateCredential,
	retryInterval time.Duration,
	retryCount int,
) (*AADTokenProvider, error) {
	tenantID := cred.TenantID
	if tenantID == "" {
		tenantID = parseTenantID(authority)
	}

	credential, err := azidentity.NewClientCertificateCredential(
		tenantID,
		cred.ClientID,
		cred.Certificates,
		cred.PrivateKey,
		nil,
	)
	if err != nil {
		return nil, domain.AadUnavailable
	}

	return newAADTokenProvider(authority, resource, credential, retryInterval, retryCount), nil
}

func newAADTokenProvider(
	authority, resource string,
	cred azcore.TokenCredential,
	retryInterval time.Duration,
	retryCount int,
) *AADTokenProvider {
	return &AADTokenProvider{
		authority:     authority,
		resource:      resource,
		cred:          cred,
		retryInterval: retryInterval,
		retryCount:    retryCount,
		now:           time.Now,
	}
}

func parseTenantID(authority string) string {
	u, err := url.Parse(authority)
	if err != nil {
		return ""
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		return "common"
	}
	return parts[0]
}

// GetAccessToken returns a bearer token, serving from cache when the
// cached token has not expired. On cache miss it performs the
// certificate grant against the authority, retrying transient
// failures with exponential backoff bounded by retryCount. Honors
// cancellation before each attempt.
func (p *AADTokenProvider) GetAccessToken(ctx context.Context) (string, error) {
	if tok, ok := p.cachedIfValid(); ok {
		return tok, nil
	}

	var token azcore.AccessToken
	attempt := func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(domain.Cancelled)
		}
		t, err := p.cred.GetToken(ctx, policy.TokenRequestOptions{Scopes: []string{p.resource + "/.default"}})
		if err != nil {
			return err
		}
		token = t
		return nil
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.retryInterval
	bounded := backoff.WithMaxRetries(eb, uint64(p.retryCount))

	if err := backoff.Retry(attempt, backoff.WithContext(bounded, ctx)); err != nil {
		if domain.Is(err, domain.Cancelled) {
			return "", domain.Cancelled
		}
		return "", domain.AadUnavailable
	}

	p.mu.Lock()
	p.cachedToken = token.Token
	p.expiresAt = token.ExpiresOn
	p.mu.Unlock()

	return token.Token, nil
}

func (p *AADTokenProvider) cachedIfValid() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cachedToken == "" || !p.now().Before(p.expiresAt) {
		return "", false
	}
	return p.cachedToken, true
}
