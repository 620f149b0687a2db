package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/approval-sentinel/internal/logging"
	"github.com/approval-sentinel/internal/models"
	"github.com/approval-sentinel/internal/storage"
	"github.com/approval-sentinel/internal/types"
)

// Mock services for handler tests

type mockWalletService struct {
	registered *models.Wallet
	registerEr error
	wallets    []*models.Wallet
	statusErr  error
}

func (m *mockWalletService) Register(ctx context.Context, userID string, chainID types.Chain, address string) (*models.Wallet, error) {
	if m.registerEr != nil {
		return nil, m.registerEr
	}
	return m.registered, nil
}

func (m *mockWalletService) ListByUser(ctx context.Context, userID string) ([]*models.Wallet, error) {
	return m.wallets, nil
}

func (m *mockWalletService) SetStatus(ctx context.Context, userID, walletID string, status types.WalletStatus) error {
	return m.statusErr
}

type mockApprovalService struct {
	lastQuery storage.FeedQuery
	events    []*models.ApprovalEvent
}

func (m *mockApprovalService) Feed(ctx context.Context, q storage.FeedQuery) ([]*models.ApprovalEvent, error) {
	m.lastQuery = q
	return m.events, nil
}

type mockAllowlistService struct {
	entries   []*models.TrustedSpender
	addErr    error
	removed   int64
	lastAdd   *models.TrustedSpender
	remErr    error
	lastChain types.Chain
}

func (m *mockAllowlistService) List(ctx context.Context, userID string, chain *types.Chain) ([]*models.TrustedSpender, error) {
	return m.entries, nil
}

func (m *mockAllowlistService) Add(ctx context.Context, userID string, chain types.Chain, spender, label string) error {
	m.lastAdd = &models.TrustedSpender{UserID: userID, Chain: chain, Spender: spender, Label: label}
	return m.addErr
}

func (m *mockAllowlistService) Remove(ctx context.Context, userID string, chain types.Chain, spender string) (int64, error) {
	m.lastChain = chain
	return m.removed, m.remErr
}

func newTestServer(wallets *mockWalletService, approvals *mockApprovalService, allowlist *mockAllowlistService) *Server {
	s := &Server{
		router:           mux.NewRouter(),
		walletService:    wallets,
		approvalService:  approvals,
		allowlistService: allowlist,
		config: &ServerConfig{
			Host:         "127.0.0.1",
			Port:         "0",
			ReadTimeout:  time.Second,
			WriteTimeout: time.Second,
			IdleTimeout:  time.Second,
		},
		log: logging.New(logging.LevelError, logging.FormatText),
	}
	s.setupRouter()
	return s
}

func doRequest(s *Server, method, path, body, userID string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	return rr
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(&mockWalletService{}, &mockApprovalService{}, &mockAllowlistService{})

	rr := doRequest(s, "GET", "/health", "", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "healthy")
}

func TestRegisterWallet(t *testing.T) {
	wallets := &mockWalletService{registered: &models.Wallet{
		ID:      "w1",
		UserID:  "user-1",
		Chain:   types.ChainEthereum,
		Address: "0xab5801a7d398351b8be11c439e05c5b3259aec9b",
		Status:  types.WalletStatusActive,
	}}
	s := newTestServer(wallets, &mockApprovalService{}, &mockAllowlistService{})

	rr := doRequest(s, "POST", "/api/v1/wallets",
		`{"chain":"ethereum","address":"0xab5801a7d398351b8be11c439e05c5b3259aec9b"}`, "user-1")

	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.Contains(t, rr.Body.String(), `"w1"`)
}

func TestRegisterWalletRequiresAuth(t *testing.T) {
	s := newTestServer(&mockWalletService{}, &mockApprovalService{}, &mockAllowlistService{})

	rr := doRequest(s, "POST", "/api/v1/wallets",
		`{"chain":"ethereum","address":"0xab5801a7d398351b8be11c439e05c5b3259aec9b"}`, "")

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestRegisterWalletUnknownChain(t *testing.T) {
	s := newTestServer(&mockWalletService{}, &mockApprovalService{}, &mockAllowlistService{})

	rr := doRequest(s, "POST", "/api/v1/wallets",
		`{"chain":"dogechain","address":"0xab5801a7d398351b8be11c439e05c5b3259aec9b"}`, "user-1")

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRegisterWalletServiceErrorMapped(t *testing.T) {
	wallets := &mockWalletService{registerEr: &types.ServiceError{
		Code:    "INVALID_ADDRESS_FORMAT",
		Message: "invalid address format",
	}}
	s := newTestServer(wallets, &mockApprovalService{}, &mockAllowlistService{})

	rr := doRequest(s, "POST", "/api/v1/wallets",
		`{"chain":"ethereum","address":"nope"}`, "user-1")

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "INVALID_INPUT")
}

func TestSetWalletStatusValidation(t *testing.T) {
	s := newTestServer(&mockWalletService{}, &mockApprovalService{}, &mockAllowlistService{})

	rr := doRequest(s, "PATCH", "/api/v1/wallets/w1/status", `{"status":"PAUSED"}`, "user-1")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doRequest(s, "PATCH", "/api/v1/wallets/w1/status", `{"status":"DISABLED"}`, "user-1")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestSetWalletStatusNotFound(t *testing.T) {
	wallets := &mockWalletService{statusErr: &types.ServiceError{
		Code:    "WALLET_NOT_FOUND",
		Message: "wallet not found",
	}}
	s := newTestServer(wallets, &mockApprovalService{}, &mockAllowlistService{})

	rr := doRequest(s, "PATCH", "/api/v1/wallets/w1/status", `{"status":"DISABLED"}`, "user-1")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestApprovalsFeedPassesFilters(t *testing.T) {
	approvals := &mockApprovalService{}
	s := newTestServer(&mockWalletService{}, approvals, &mockAllowlistService{})

	rr := doRequest(s, "GET", "/api/v1/approvals?chain=ethereum&kind=ERC20_APPROVAL&minRiskScore=50&skip=10&take=20", "", "user-1")
	require.Equal(t, http.StatusOK, rr.Code)

	q := approvals.lastQuery
	assert.Equal(t, "user-1", q.UserID)
	require.NotNil(t, q.Chain)
	assert.Equal(t, types.ChainEthereum, *q.Chain)
	require.NotNil(t, q.Kind)
	assert.Equal(t, types.KindERC20Approval, *q.Kind)
	require.NotNil(t, q.MinRiskScore)
	assert.Equal(t, 50, *q.MinRiskScore)
	assert.Equal(t, 10, q.Skip)
	assert.Equal(t, 20, q.Take)
}

func TestApprovalsFeedRejectsBadParams(t *testing.T) {
	s := newTestServer(&mockWalletService{}, &mockApprovalService{}, &mockAllowlistService{})

	assert.Equal(t, http.StatusBadRequest, doRequest(s, "GET", "/api/v1/approvals?chain=dogechain", "", "user-1").Code)
	assert.Equal(t, http.StatusBadRequest, doRequest(s, "GET", "/api/v1/approvals?kind=TRANSFER", "", "user-1").Code)
	assert.Equal(t, http.StatusBadRequest, doRequest(s, "GET", "/api/v1/approvals?minRiskScore=abc", "", "user-1").Code)
	assert.Equal(t, http.StatusBadRequest, doRequest(s, "GET", "/api/v1/approvals?take=abc", "", "user-1").Code)
}

func TestAddAllowlistValidatesSpender(t *testing.T) {
	allowlist := &mockAllowlistService{}
	s := newTestServer(&mockWalletService{}, &mockApprovalService{}, allowlist)

	rr := doRequest(s, "POST", "/api/v1/allowlist",
		`{"chain":"ethereum","spender":"not-an-address"}`, "user-1")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Nil(t, allowlist.lastAdd)

	rr = doRequest(s, "POST", "/api/v1/allowlist",
		`{"chain":"ethereum","spender":"0x1111111111111111111111111111111111111111","label":"dex router"}`, "user-1")
	assert.Equal(t, http.StatusCreated, rr.Code)
	require.NotNil(t, allowlist.lastAdd)
	assert.Equal(t, "dex router", allowlist.lastAdd.Label)
}

func TestRemoveAllowlistNotFound(t *testing.T) {
	allowlist := &mockAllowlistService{removed: 0}
	s := newTestServer(&mockWalletService{}, &mockApprovalService{}, allowlist)

	rr := doRequest(s, "DELETE", "/api/v1/allowlist/ethereum/0x1111111111111111111111111111111111111111", "", "user-1")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRemoveAllowlistSuccess(t *testing.T) {
	allowlist := &mockAllowlistService{removed: 1}
	s := newTestServer(&mockWalletService{}, &mockApprovalService{}, allowlist)

	rr := doRequest(s, "DELETE", "/api/v1/allowlist/ethereum/0x1111111111111111111111111111111111111111", "", "user-1")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, types.ChainEthereum, allowlist.lastChain)
}
