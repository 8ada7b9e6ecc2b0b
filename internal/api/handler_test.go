package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/omniwallet/omniwallet/internal/api"
	"github.com/omniwallet/omniwallet/internal/api/middleware"
	"github.com/omniwallet/omniwallet/internal/bridge"
	"github.com/omniwallet/omniwallet/internal/chain"
	"github.com/omniwallet/omniwallet/internal/config"
	"github.com/omniwallet/omniwallet/internal/domain"
	"github.com/omniwallet/omniwallet/internal/ledger"
	"github.com/omniwallet/omniwallet/internal/models"
	"github.com/omniwallet/omniwallet/internal/rates"
	"github.com/omniwallet/omniwallet/internal/service"
	"github.com/omniwallet/omniwallet/internal/snapshot"
	"github.com/omniwallet/omniwallet/internal/wallet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testJWTSecret   = "test-secret-0123456789-test-secret"
	testJWTIssuer   = "omniwallet-test"
	testJWTAudience = "omniwallet-api-test"
)

func TestMain(m *testing.M) {
	middleware.SetJWTSecret(testJWTSecret)
	middleware.SetJWTValidation(testJWTIssuer, testJWTAudience)
	os.Exit(m.Run())
}

type testEnv struct {
	server   *httptest.Server
	wallets  wallet.Store
	coord    *service.Coordinator
	adapters map[string]*chain.SimAdapter
	cancel   context.CancelFunc
}

var apiTestBackends = []models.Backend{
	{ID: "eth-mainnet", Kind: models.BackendKindCrypto, NativeUnit: "ETH", Enabled: true},
	{ID: "bank-usd", Kind: models.BackendKindFiat, NativeUnit: "USD", Enabled: true},
}

func setupAPI(t *testing.T) *testEnv {
	t.Helper()

	oracle := rates.NewStaticOracle()
	signer := chain.NewStaticSigner()
	adapters := make([]chain.Adapter, 0, len(apiTestBackends))
	sims := make(map[string]*chain.SimAdapter)
	for _, b := range apiTestBackends {
		b := b
		sim := chain.NewSimAdapter(b, signer, func(ctx context.Context, native int64) (int64, error) {
			rate, err := oracle.Rate(ctx, b.NativeUnit, service.NormalizedUnit)
			if err != nil {
				return 0, err
			}
			return domain.NewAmount(native, b.NativeUnit).Convert(service.NormalizedUnit, rate).Micros, nil
		})
		sims[b.ID] = sim
		adapters = append(adapters, sim)
	}
	registry, err := chain.NewRegistry(apiTestBackends, adapters)
	require.NoError(t, err)

	wallets := wallet.NewMemoryStore()
	transferLedger := ledger.NewMemoryLedger()
	cache := snapshot.NewMemoryCache()
	agg := service.NewAggregator(wallets, registry, cache, 30*time.Second)
	coord := service.NewCoordinator(wallets, transferLedger, registry, bridge.NewSimBridge(registry), oracle, agg,
		service.WithConfirmBackoff(time.Millisecond, 5*time.Millisecond, time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	coord.Start(ctx, 2)

	cfg := &config.Config{
		HTTPPort:           "0",
		JWTSecret:          testJWTSecret,
		JWTIssuer:          testJWTIssuer,
		JWTAudience:        testJWTAudience,
		PublicRateLimitRPS: 1000,
		WalletRateLimitRPS: 1000,
	}
	router := api.NewRouter(cfg, zap.NewNop(), nil, nil, wallets, registry, coord, agg)
	server := httptest.NewServer(router.Routes())

	env := &testEnv{server: server, wallets: wallets, coord: coord, adapters: sims, cancel: cancel}
	t.Cleanup(func() {
		server.Close()
		cancel()
		coord.Stop()
	})
	return env
}

func generateTestToken(avatarID string) string {
	return generateTokenWithRole(avatarID, "user")
}

func generateTokenWithRole(avatarID, role string) string {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"avatar_id": avatarID,
		"role":      role,
		"iss":       testJWTIssuer,
		"aud":       testJWTAudience,
		"sub":       avatarID,
		"iat":       now.Unix(),
		"nbf":       now.Add(-30 * time.Second).Unix(),
		"exp":       now.Add(time.Hour).Unix(),
	})
	tokenString, _ := token.SignedString(middleware.JWTSecret())
	return tokenString
}

func (env *testEnv) do(t *testing.T, method, path, token string, body interface{}) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, env.server.URL+path, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func (env *testEnv) createWallet(t *testing.T, token, backendID string, fundMicros int64) models.Wallet {
	t.Helper()
	resp := env.do(t, http.MethodPost, "/v1/wallets", token, map[string]string{"backend_id": backendID})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var w models.Wallet
	decode(t, resp, &w)
	if fundMicros > 0 {
		env.adapters[backendID].Fund(w.Address, fundMicros)
	}
	return w
}

func TestHealthEndpoints(t *testing.T) {
	env := setupAPI(t)

	resp := env.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = env.do(t, http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = env.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = env.do(t, http.MethodGet, "/openapi.yaml", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestAuthRequired(t *testing.T) {
	env := setupAPI(t)

	resp := env.do(t, http.MethodGet, "/v1/wallets", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "application/problem+json", resp.Header.Get("Content-Type"))
	resp.Body.Close()

	resp = env.do(t, http.MethodGet, "/v1/wallets", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestWalletLifecycle(t *testing.T) {
	env := setupAPI(t)
	avatarID := uuid.NewString()
	token := generateTestToken(avatarID)

	created := env.createWallet(t, token, "eth-mainnet", 0)
	assert.Equal(t, avatarID, created.OwnerAvatarID.String())
	assert.Equal(t, "eth-mainnet", created.BackendID)
	assert.NotEmpty(t, created.Address)

	resp := env.do(t, http.MethodGet, "/v1/wallets", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var listed struct {
		Wallets []models.Wallet `json:"wallets"`
	}
	decode(t, resp, &listed)
	require.Len(t, listed.Wallets, 1)
	assert.Equal(t, created.ID, listed.Wallets[0].ID)

	// Another avatar cannot read it.
	stranger := generateTestToken(uuid.NewString())
	resp = env.do(t, http.MethodGet, "/v1/wallets/"+created.ID.String(), stranger, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	// Unknown backend is rejected.
	resp = env.do(t, http.MethodPost, "/v1/wallets", token, map[string]string{"backend_id": "near-mainnet"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestListBackends(t *testing.T) {
	env := setupAPI(t)
	token := generateTestToken(uuid.NewString())

	resp := env.do(t, http.MethodGet, "/v1/backends", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		Backends []models.Backend `json:"backends"`
	}
	decode(t, resp, &body)
	require.Len(t, body.Backends, 2)
	assert.Equal(t, "bank-usd", body.Backends[0].ID)
	assert.Equal(t, "eth-mainnet", body.Backends[1].ID)
}

func TestPortfolioEndpoint(t *testing.T) {
	env := setupAPI(t)
	avatarID := uuid.NewString()
	token := generateTestToken(avatarID)

	env.createWallet(t, token, "eth-mainnet", 1_000_000)
	env.createWallet(t, token, "bank-usd", 500_000_000)

	resp := env.do(t, http.MethodGet, "/v1/portfolio/"+avatarID, token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var snap models.PortfolioSnapshot
	decode(t, resp, &snap)
	assert.Equal(t, 2, snap.WalletCount)
	assert.Equal(t, int64(3_200_000_000+500_000_000), snap.TotalValueMicros)
	assert.Equal(t, "USD", snap.ValueUnit)

	// Reading someone else's portfolio is forbidden without the admin role.
	resp = env.do(t, http.MethodGet, "/v1/portfolio/"+avatarID, generateTestToken(uuid.NewString()), nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	admin := generateTokenWithRole(uuid.NewString(), "admin")
	resp = env.do(t, http.MethodGet, "/v1/portfolio/"+avatarID, admin, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestTransferEndToEnd(t *testing.T) {
	env := setupAPI(t)
	avatarID := uuid.NewString()
	token := generateTestToken(avatarID)

	src := env.createWallet(t, token, "eth-mainnet", 5_000_000)
	dst := env.createWallet(t, token, "eth-mainnet", 0)

	requestID := uuid.NewString()
	payload := map[string]interface{}{
		"request_id":            requestID,
		"source_wallet_id":      src.ID.String(),
		"destination_wallet_id": dst.ID.String(),
		"amount_micros":         1_000_000,
	}

	resp := env.do(t, http.MethodPost, "/v1/transfers", token, payload)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	var accepted models.TransferRecord
	decode(t, resp, &accepted)
	assert.Equal(t, domain.StatePending, accepted.State)

	require.Eventually(t, func() bool {
		resp := env.do(t, http.MethodGet, "/v1/transfers/"+requestID, token, nil)
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return false
		}
		var rec models.TransferRecord
		if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
			return false
		}
		return rec.State == domain.StateCompleted
	}, 5*time.Second, 10*time.Millisecond)

	// The replay returns the settled record instead of re-executing.
	resp = env.do(t, http.MethodPost, "/v1/transfers", token, payload)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var replay models.TransferRecord
	decode(t, resp, &replay)
	assert.Equal(t, domain.StateCompleted, replay.State)

	// History lists the transfer for the source wallet.
	resp = env.do(t, http.MethodGet, fmt.Sprintf("/v1/transfers?wallet_id=%s", src.ID), token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var history struct {
		Transfers []models.TransferRecord `json:"transfers"`
	}
	decode(t, resp, &history)
	require.Len(t, history.Transfers, 1)
	assert.Equal(t, requestID, history.Transfers[0].RequestID)
}

func TestTransferValidationErrors(t *testing.T) {
	env := setupAPI(t)
	avatarID := uuid.NewString()
	token := generateTestToken(avatarID)

	src := env.createWallet(t, token, "eth-mainnet", 1_000)
	dst := env.createWallet(t, token, "eth-mainnet", 0)

	// Insufficient funds is rejected synchronously.
	resp := env.do(t, http.MethodPost, "/v1/transfers", token, map[string]interface{}{
		"request_id":            uuid.NewString(),
		"source_wallet_id":      src.ID.String(),
		"destination_wallet_id": dst.ID.String(),
		"amount_micros":         999_999_999,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	// Another avatar cannot spend from the wallet.
	resp = env.do(t, http.MethodPost, "/v1/transfers", generateTestToken(uuid.NewString()), map[string]interface{}{
		"request_id":            uuid.NewString(),
		"source_wallet_id":      src.ID.String(),
		"destination_wallet_id": dst.ID.String(),
		"amount_micros":         100,
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	// Unknown transfer id.
	resp = env.do(t, http.MethodGet, "/v1/transfers/no-such-request", token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestReconciliationRequiresAdmin(t *testing.T) {
	env := setupAPI(t)

	resp := env.do(t, http.MethodGet, "/v1/reconciliation", generateTestToken(uuid.NewString()), nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	admin := generateTokenWithRole(uuid.NewString(), "admin")
	resp = env.do(t, http.MethodGet, "/v1/reconciliation", admin, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		Transfers []models.TransferRecord `json:"transfers"`
	}
	decode(t, resp, &body)
	assert.Empty(t, body.Transfers)
}
