package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/b1ank002/ZappkaApp/internal/config"
	"github.com/b1ank002/ZappkaApp/internal/ledger/memory"
	"github.com/b1ank002/ZappkaApp/internal/payment"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() config.Config {
	return config.Config{
		AppPort:           "0",
		AppEnv:            "development",
		RateNumerator:     1,
		RateDenominator:   100,
		RedeemTimeout:     time.Minute,
		AttestationScheme: "hmac",
		AttestationSecret: "0123456789abcdef0123456789abcdef",
		RateLimitMax:      100,
		RateLimitWindow:   time.Minute,
	}
}

func TestSetupInfraDefaultsToLocalServices(t *testing.T) {
	infra, err := setupInfra(context.Background(), testConfig())
	require.NoError(t, err)
	defer infra.Close()

	assert.IsType(t, &memory.Ledger{}, infra.Ledger)
	assert.Nil(t, infra.DB)
	assert.Nil(t, infra.Redis)
	assert.Nil(t, infra.Events)
	assert.Equal(t, "hmac-sha256", infra.Signer.Scheme())

	d, err := infra.Verifier.Verify(context.Background(), "U1", "ZAPP-1", 5)
	require.NoError(t, err)
	assert.False(t, d.Approved)
}

func TestSetupInfraRejectsShortSecret(t *testing.T) {
	cfg := testConfig()
	cfg.AttestationSecret = "short"

	_, err := setupInfra(context.Background(), cfg)
	assert.Error(t, err)
}

func TestSetupInfraEIP191(t *testing.T) {
	cfg := testConfig()
	cfg.AttestationScheme = "eip191"
	cfg.AttestationKey = "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

	infra, err := setupInfra(context.Background(), cfg)
	require.NoError(t, err)
	defer infra.Close()
	assert.Equal(t, "eip191-secp256k1", infra.Signer.Scheme())
}

func TestRouterRestoresSessionsFromRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig()
	cfg.RedisAddr = mr.Addr()

	ctx := context.Background()

	infra, err := setupInfra(ctx, cfg)
	require.NoError(t, err)
	stop := make(chan struct{})
	router, err := setupHTTP(ctx, cfg, infra, stop)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/generate-zapp-code",
		strings.NewReader(`{"userAddress":"U1"}`)))
	require.Equal(t, http.StatusOK, rec.Code)

	var created map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	id := created["sessionId"].(string)

	close(stop)
	require.NoError(t, infra.Close())

	// A fresh process sees the same session.
	infra, err = setupInfra(ctx, cfg)
	require.NoError(t, err)
	defer infra.Close()
	infra.Verifier = payment.Approve
	stop = make(chan struct{})
	defer close(stop)
	router, err = setupHTTP(ctx, cfg, infra, stop)
	require.NoError(t, err)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sessions/"+id, nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "zapp_session_transitions_total")
}
