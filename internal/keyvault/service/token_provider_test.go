package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cosmosfle/fle/internal/keyvault/domain"
)

type fakeCredential struct {
	calls      int32
	failTimes  int32
	token      string
	expiresIn  time.Duration
	nowFn      func() time.Time
}

func (f *fakeCredential) GetToken(_ context.Context, _ policy.TokenRequestOptions) (azcore.AccessToken, error) {
	n := atomic.AddInt32(&f.calls, 1)
	if n <= f.failTimes {
		return azcore.AccessToken{}, errors.New("transient failure")
	}
	now := time.Now()
	if f.nowFn != nil {
		now = f.nowFn()
	}
	return azcore.AccessToken{Token: f.token, ExpiresOn: now.Add(f.expiresIn)}, nil
}

func TestAADTokenProviderCachesToken(t *testing.T) {
	cred := &fakeCredential{token: "tok-1", expiresIn: time.Hour}
	p := newAADTokenProvider("https://login.microsoftonline.com/tenant-a/oauth2/authorize", "https://vault.azure.net", cred, 0, 3)

	tok1, err := p.GetAccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok1)

	cred.token = "tok-2"
	tok2, err := p.GetAccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok2, "second call should be served from cache")
	assert.Equal(t, int32(1), atomic.LoadInt32(&cred.calls))
}

func TestAADTokenProviderRetriesTransientFailure(t *testing.T) {
	cred := &fakeCredential{failTimes: 2, token: "tok-ok", expiresIn: time.Hour}
	p := newAADTokenProvider("https://login.microsoftonline.com/tenant-a/oauth2/authorize", "https://vault.azure.net", cred, time.Millisecond, 5)

	tok, err := p.GetAccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-ok", tok)
	assert.Equal(t, int32(3), atomic.LoadInt32(&cred.calls))
}

func TestAADTokenProviderExhaustsRetriesAsAadUnavailable(t *testing.T) {
	cred := &fakeCredential{failTimes: 100, token: "tok-ok", expiresIn: time.Hour}
	p := newAADTokenProvider("https://login.microsoftonline.com/tenant-a/oauth2/authorize", "https://vault.azure.net", cred, time.Millisecond, 2)

	_, err := p.GetAccessToken(context.Background())
	assert.ErrorIs(t, err, domain.AadUnavailable)
}

func TestAADTokenProviderHonorsCancellation(t *testing.T) {
	cred := &fakeCredential{failTimes: 100, token: "tok-ok", expiresIn: time.Hour}
	p := newAADTokenProvider("https://login.microsoftonline.com/tenant-a/oauth2/authorize", "https://vault.azure.net", cred, time.Millisecond, 5)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.GetAccessToken(ctx)
	assert.ErrorIs(t, err, domain.Cancelled)
}

func TestParseTenantID(t *testing.T) {
	assert.Equal(t, "tenant-a", parseTenantID("https://login.microsoftonline.com/tenant-a/oauth2/authorize"))
	assert.Equal(t, "common", parseTenantID("https://login.microsoftonline.com/"))
}
