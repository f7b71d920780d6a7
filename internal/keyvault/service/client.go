package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	fledomain "github.com/cosmosfle/fle/internal/fle/domain"
	"github.com/cosmosfle/fle/internal/keyvault/domain"
)

const wrapAlgorithm = "RSA-OAEP"

var challengePattern = regexp.MustCompile(`(\w+)="([^"]*)"`)

// Client is the authenticated key-vault access client:
// it wraps and unwraps raw key bytes against a remote vault,
// discovers the vault's authority/resource via a challenge probe, and
// retries transient transport failures under a backoff policy. It is
// the default internal/fle/usecase.MasterKeyStore.
type Client struct {
	httpClient       *http.Client
	apiVersion       string
	certCred         CertificateCredential
	aadRetryInterval time.Duration
	aadRetryCount    int
	limiter          *rate.Limiter

	mu        sync.RWMutex
	providers map[string]*AADTokenProvider
	group     singleflight.Group

	// newProvider builds the per-URI token provider once the authority
	// has been discovered. Overridden in tests to avoid constructing a
	// real certificate credential.
	newProvider func(authority, resource string) (*AADTokenProvider, error)
}

// NewClient constructs a key-vault access client. httpClient defaults
// to one with a 60s timeout when nil.
func NewClient(
	certCred CertificateCredential,
	httpClient *http.Client,
	apiVersion string,
	aadRetryInterval time.Duration,
	aadRetryCount int,
) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	c := &Client{
		httpClient:       httpClient,
		apiVersion:       apiVersion,
		certCred:         certCred,
		aadRetryInterval: aadRetryInterval,
		aadRetryCount:    aadRetryCount,
		limiter:          rate.NewLimiter(rate.Limit(20), 40),
		providers:        make(map[string]*AADTokenProvider),
	}
	c.newProvider = func(authority, resource string) (*AADTokenProvider, error) {
		return NewAADTokenProvider(authority, resource, c.certCred, c.aadRetryInterval, c.aadRetryCount)
	}
	return c
}

// WrapBase64 performs the wrap operation at the literal
// base64 boundary.
func (c *Client) WrapBase64(ctx context.Context, keyURI, plaintextB64 string) (wrappedB64, canonicalKeyURI string, err error) {
	return c.doOperation(ctx, "wrapkey", keyURI, plaintextB64)
}

// UnwrapBase64 performs the unwrap operation at the literal
// base64 boundary.
func (c *Client) UnwrapBase64(ctx context.Context, keyURI, ciphertextB64 string) (unwrappedB64, canonicalKeyURI string, err error) {
	return c.doOperation(ctx, "unwrapkey", keyURI, ciphertextB64)
}

// Wrap implements internal/fle/usecase.MasterKeyStore.
func (c *Client) Wrap(ctx context.Context, kekMeta fledomain.KeyEncryptionKeyMetadata, plaintext []byte) ([]byte, error) {
	wrapped, _, err := c.WrapBase64(ctx, kekMeta.URI, base64.StdEncoding.EncodeToString(plaintext))
	if err != nil {
		return nil, translateError(err)
	}
	out, err := base64.StdEncoding.DecodeString(wrapped)
	if err != nil {
		return nil, fledomain.CryptoIntegrity
	}
	return out, nil
}

// Unwrap implements internal/fle/usecase.MasterKeyStore.
func (c *Client) Unwrap(ctx context.Context, kekMeta fledomain.KeyEncryptionKeyMetadata, wrapped []byte) ([]byte, error) {
	unwrapped, _, err := c.UnwrapBase64(ctx, kekMeta.URI, base64.StdEncoding.EncodeToString(wrapped))
	if err != nil {
		return nil, translateError(err)
	}
	out, err := base64.StdEncoding.DecodeString(unwrapped)
	if err != nil {
		return nil, fledomain.CryptoIntegrity
	}
	return out, nil
}

// translateError maps keyvault/domain sentinels onto their
// fle/domain equivalents so the settings cache's errors.Is checks
// (AuthenticationFailure, KeyNotFound, ...) work regardless of which
// MasterKeyStore implementation is wired in.
func translateError(err error) error {
	switch {
	case domain.Is(err, domain.AuthenticationFailure):
		return fledomain.AuthenticationFailure
	case domain.Is(err, domain.KeyNotFound):
		return fledomain.KeyNotFound
	case domain.Is(err, domain.WrapUnwrapFailure):
		return fledomain.WrapUnwrapFailure
	case domain.Is(err, domain.AadUnavailable):
		return fledomain.AadUnavailable
	case domain.Is(err, domain.Cancelled):
		return fledomain.Cancelled
	case domain.Is(err, domain.ServiceUnavailable), domain.Is(err, domain.AuthorityDiscoveryFailed):
		return fledomain.KeyVaultServiceUnavailable
	default:
		return err
	}
}

func (c *Client) doOperation(ctx context.Context, op, keyURI, valueB64 string) (string, string, error) {
	parsed, err := domain.ParseKeyURI(keyURI)
	if err != nil {
		return "", "", err
	}
	if err := validateBase64(valueB64); err != nil {
		return "", "", err
	}

	provider, err := c.providerFor(ctx, keyURI)
	if err != nil {
		return "", "", err
	}

	token, err := provider.GetAccessToken(ctx)
	if err != nil {
		return "", "", err
	}

	reqBody, err := json.Marshal(map[string]string{
		"alg":   wrapAlgorithm,
		"value": base64StdToURL(valueB64),
	})
	if err != nil {
		return "", "", err
	}

	reqURL := fmt.Sprintf("%s/%s?api-version=%s", parsed.String(), op, c.apiVersion)

	resp, err := c.doWithRetry(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(reqBody))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("x-ms-client-request-id", uuid.NewString())
		return req, nil
	})
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	return parseOperationResponse(resp)
}

func parseOperationResponse(resp *http.Response) (string, string, error) {
	switch resp.StatusCode {
	case http.StatusOK:
		var out struct {
			Kid   string `json:"kid"`
			Value string `json:"value"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return "", "", domain.ServiceUnavailable
		}
		return base64URLToStd(out.Value), out.Kid, nil
	case http.StatusBadRequest:
		return "", "", domain.WrapUnwrapFailure
	case http.StatusForbidden:
		return "", "", domain.AuthenticationFailure
	case http.StatusNotFound:
		return "", "", domain.KeyNotFound
	default:
		return "", "", domain.ServiceUnavailable
	}
}

// providerFor returns the per-key-URI token provider, discovering the
// authority on first use. Concurrent first-callers for the same URI
// share one discovery + provider construction via singleflight, per
// an async single-flight cache.
func (c *Client) providerFor(ctx context.Context, keyURI string) (*AADTokenProvider, error) {
	if p := c.lookupProvider(keyURI); p != nil {
		return p, nil
	}

	v, err, _ := c.group.Do(keyURI, func() (interface{}, error) {
		if p := c.lookupProvider(keyURI); p != nil {
			return p, nil
		}

		authority, resource, err := c.discoverAuthority(ctx, keyURI)
		if err != nil {
			return nil, err
		}

		provider, err := c.newProvider(authority, resource)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.providers[keyURI] = provider
		c.mu.Unlock()
		return provider, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*AADTokenProvider), nil
}

func (c *Client) lookupProvider(keyURI string) *AADTokenProvider {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.providers[keyURI]
}

// discoverAuthority performs the unauthenticated challenge probe from
// GET the key URI without a bearer token and parse the
// WWW-Authenticate header of the expected 401 response.
func (c *Client) discoverAuthority(ctx context.Context, keyURI string) (authority, resource string, err error) {
	probeURL := fmt.Sprintf("%s?api-version=%s", keyURI, c.apiVersion)

	resp, err := c.doWithRetry(ctx, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, probeURL, nil)
	})
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		return "", "", domain.AuthorityDiscoveryFailed
	}

	authority, resource, ok := parseChallenge(resp.Header.Get("WWW-Authenticate"))
	if !ok {
		return "", "", domain.AuthorityDiscoveryFailed
	}
	return authority, resource, nil
}

func parseChallenge(header string) (authority, resource string, ok bool) {
	matches := challengePattern.FindAllStringSubmatch(header, -1)
	for _, m := range matches {
		switch m[1] {
		case "authorization", "authorization_uri":
			authority = m[2]
		case "resource":
			resource = m[2]
		}
	}
	return authority, resource, authority != "" && resource != ""
}

// doWithRetry issues the request built by newReq, retrying transient
// network errors under an exponential backoff policy. HTTP responses
// (including 4xx) are never retried — only transport-level failures
// to obtain one.
func (c *Client) doWithRetry(ctx context.Context, newReq func() (*http.Request, error)) (*http.Response, error) {
	var resp *http.Response

	attempt := func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(domain.Cancelled)
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(domain.Cancelled)
		}

		req, err := newReq()
		if err != nil {
			return backoff.Permanent(err)
		}

		r, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		resp = r
		return nil
	}

	eb := backoff.NewExponentialBackOff()
	bounded := backoff.WithMaxRetries(eb, 3)

	if err := backoff.Retry(attempt, backoff.WithContext(bounded, ctx)); err != nil {
		if domain.Is(err, domain.Cancelled) {
			return nil, domain.Cancelled
		}
		return nil, domain.ServiceUnavailable
	}
	return resp, nil
}

func validateBase64(s string) error {
	if len(s)%4 != 0 {
		return domain.InvalidKeyURI
	}
	if _, err := base64.StdEncoding.DecodeString(s); err != nil {
		return domain.InvalidKeyURI
	}
	return nil
}

// base64StdToURL converts standard base64 to unpadded base64url, per
// the wire body encoding.
func base64StdToURL(s string) string {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return s
	}
	return base64.RawURLEncoding.EncodeToString(raw)
}

// base64URLToStd converts base64url (as returned by the vault) back
// to standard, padded base64.
func base64URLToStd(s string) string {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return s
	}
	return base64.StdEncoding.EncodeToString(raw)
}
