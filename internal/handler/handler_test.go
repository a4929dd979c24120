package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/b1ank002/ZappkaApp/internal/attest"
	"github.com/b1ank002/ZappkaApp/internal/ledger"
	"github.com/b1ank002/ZappkaApp/internal/ledger/memory"
	"github.com/b1ank002/ZappkaApp/internal/payment"
	"github.com/b1ank002/ZappkaApp/internal/redemption"
	"github.com/b1ank002/ZappkaApp/internal/session"
	"github.com/b1ank002/ZappkaApp/internal/token"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

const receiver = "PL61109010140000071219812874"

type HandlerTestSuite struct {
	suite.Suite
	router   *gin.Engine
	store    *session.Store
	approve  bool
	verifyFn func() error
}

func TestHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(HandlerTestSuite))
}

func (s *HandlerTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)

	signer, err := attest.NewHMAC([]byte("0123456789abcdef0123456789abcdef"))
	s.Require().NoError(err)

	s.approve = true
	s.verifyFn = nil
	verifier := payment.VerifierFunc(func(context.Context, string, string, int64) (payment.Decision, error) {
		if s.verifyFn != nil {
			if err := s.verifyFn(); err != nil {
				return payment.Decision{}, err
			}
		}
		if !s.approve {
			return payment.Decision{Reason: "transfer not found"}, nil
		}
		return payment.Decision{Approved: true}, nil
	})

	s.store = session.NewStore(verifier, signer)
	l := memory.New(token.DefaultRate)
	coordinator := redemption.New(s.store, l, token.DefaultRate)

	h := NewHandler(s.store, coordinator, l, Options{
		ZappkaAccount: receiver,
		Environment:   "test",
		OperatorGuard: func(c *gin.Context) {
			if c.GetHeader("X-Operator-Key") != "op" {
				abortWithError(c, http.StatusUnauthorized, "invalid operator key", "unauthorized")
			}
		},
	})

	s.router = gin.New()
	h.RegisterRoutes(s.router)
}

func (s *HandlerTestSuite) do(method, path string, body any, headers ...string) (int, map[string]any) {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var out map[string]any
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return rec.Code, out
}

func (s *HandlerTestSuite) create(user string) (string, string) {
	code, body := s.do(http.MethodPost, "/api/generate-zapp-code", gin.H{"userAddress": user})
	s.Require().Equal(http.StatusOK, code)
	return body["sessionId"].(string), body["zappCode"].(string)
}

func (s *HandlerTestSuite) TestRedemptionFlow() {
	id, zappCode := s.create("U1")
	s.Regexp(`^ZAPP-[0-9A-F]{16}$`, zappCode)

	code, body := s.do(http.MethodPost, "/api/verify-zapp", gin.H{"sessionId": id, "zappAmount": 500})
	s.Require().Equal(http.StatusOK, code)
	s.Equal(true, body["success"])
	s.Equal("5", body["tokenAmount"])
	s.Equal(float64(500), body["zappAmount"])
	signature := body["signature"].(string)
	s.Equal(signature, body["contractData"].(map[string]any)["signature"])

	code, body = s.do(http.MethodPost, "/api/redeem-tokens", gin.H{
		"sessionId": id, "signature": signature, "zappCode": zappCode, "zappAmount": 500,
	})
	s.Require().Equal(http.StatusOK, code, body)
	s.Equal("5", body["tokenAmount"])
	s.NotEmpty(body["txHash"])
	s.Equal("completed", body["session"].(map[string]any)["status"])

	code, body = s.do(http.MethodPost, "/api/redeem-tokens", gin.H{"sessionId": id, "signature": signature})
	s.Equal(http.StatusConflict, code)
	s.Equal("invalid_state", body["code"])
	s.Equal(false, body["success"])

	code, body = s.do(http.MethodGet, "/api/sessions/"+id, nil)
	s.Equal(http.StatusOK, code)
	s.Equal("completed", body["session"].(map[string]any)["status"])
}

func (s *HandlerTestSuite) TestGenerateCodeReturnsInstructions() {
	code, body := s.do(http.MethodPost, "/api/generate-zapp-code", gin.H{"userAddress": "U1"})
	s.Require().Equal(http.StatusOK, code)
	s.Equal(receiver, body["zappkaAccount"])

	steps := body["instructions"].(map[string]any)
	s.Contains(steps["step4"], receiver)
	s.Contains(steps["step5"], body["zappCode"])
}

func (s *HandlerTestSuite) TestGenerateCodeRequiresAddress() {
	code, body := s.do(http.MethodPost, "/api/generate-zapp-code", gin.H{})
	s.Equal(http.StatusBadRequest, code)
	s.Equal("invalid_input", body["code"])

	code, body = s.do(http.MethodPost, "/api/generate-zapp-code", gin.H{"userAddress": "   "})
	s.Equal(http.StatusBadRequest, code)
	s.Equal("invalid_input", body["code"])
}

func (s *HandlerTestSuite) TestVerifyDeclinedKeepsSessionPending() {
	id, _ := s.create("U1")
	s.approve = false

	code, body := s.do(http.MethodPost, "/api/verify-zapp", gin.H{"sessionId": id, "zappAmount": 500})
	s.Equal(http.StatusOK, code)
	s.Equal(false, body["success"])
	s.Equal("verification_failed", body["code"])
	s.Equal("pending", body["session"].(map[string]any)["status"])
}

func (s *HandlerTestSuite) TestVerifyErrors() {
	id, _ := s.create("U1")

	code, body := s.do(http.MethodPost, "/api/verify-zapp", gin.H{"sessionId": "S9", "zappAmount": 500})
	s.Equal(http.StatusNotFound, code)
	s.Equal("not_found", body["code"])

	code, body = s.do(http.MethodPost, "/api/verify-zapp", gin.H{"sessionId": id, "zappAmount": -5})
	s.Equal(http.StatusBadRequest, code)
	s.Equal("invalid_input", body["code"])

	code, _ = s.do(http.MethodPost, "/api/verify-zapp", gin.H{"sessionId": id})
	s.Equal(http.StatusBadRequest, code)

	s.verifyFn = func() error { return errors.New("bank down") }
	code, body = s.do(http.MethodPost, "/api/verify-zapp", gin.H{"sessionId": id, "zappAmount": 500})
	s.Equal(http.StatusBadGateway, code)
	s.Equal("verifier_unavailable", body["code"])
}

func (s *HandlerTestSuite) TestRedeemRejectsMismatchedClaim() {
	id, _ := s.create("U1")
	_, body := s.do(http.MethodPost, "/api/verify-zapp", gin.H{"sessionId": id, "zappAmount": 500})
	signature := body["signature"].(string)

	code, body := s.do(http.MethodPost, "/api/redeem-tokens", gin.H{
		"sessionId": id, "signature": signature, "zappAmount": 999,
	})
	s.Equal(http.StatusBadRequest, code)
	s.Equal("invalid_input", body["code"])

	code, body = s.do(http.MethodPost, "/api/redeem-tokens", gin.H{"sessionId": id, "signature": "0xdeadbeef"})
	s.Equal(http.StatusBadRequest, code)
	s.Equal("invalid_attestation", body["code"])
}

func (s *HandlerTestSuite) TestManualVerifyRequiresOperator() {
	s.approve = false
	id, _ := s.create("U1")

	code, _ := s.do(http.MethodPost, "/api/manual-verify", gin.H{"sessionId": id, "zappAmount": 300})
	s.Equal(http.StatusUnauthorized, code)

	code, body := s.do(http.MethodPost, "/api/manual-verify",
		gin.H{"sessionId": id, "zappAmount": 300}, "X-Operator-Key", "op")
	s.Require().Equal(http.StatusOK, code)
	s.Equal("Manually verified", body["message"])
	s.Equal("3", body["tokenAmount"])

	code, body = s.do(http.MethodPost, "/api/manual-verify",
		gin.H{"sessionId": id, "zappAmount": 300}, "X-Operator-Key", "op")
	s.Equal(http.StatusConflict, code)
	s.Equal("invalid_state", body["code"])
}

func (s *HandlerTestSuite) TestUserHistoryAndStats() {
	first, _ := s.create("U1")
	s.create("U2")
	s.create("U1")
	s.do(http.MethodPost, "/api/verify-zapp", gin.H{"sessionId": first, "zappAmount": 150})

	code, body := s.do(http.MethodGet, "/api/user-history/U1", nil)
	s.Require().Equal(http.StatusOK, code)
	history := body["history"].([]any)
	s.Require().Len(history, 2)
	s.Equal(first, history[0].(map[string]any)["id"])
	s.Equal("verified", history[0].(map[string]any)["status"])
	s.Contains(body["balances"], "tokenBalance")

	code, body = s.do(http.MethodGet, "/api/stats", nil)
	s.Require().Equal(http.StatusOK, code)
	sessions := body["sessions"].(map[string]any)
	s.Equal(float64(3), sessions["total"])
	s.Equal(float64(2), sessions["pending"])
	s.Equal(float64(1), sessions["verified"])
	s.NotNil(body["network"])
}

func (s *HandlerTestSuite) TestContractInfo() {
	code, body := s.do(http.MethodGet, "/api/contract-info", nil)
	s.Require().Equal(http.StatusOK, code)
	s.Equal("1/100", body["exchangeRate"])
	s.Equal("0.01", body["tokensPerZapp"])
	s.Equal(receiver, body["zappkaAccount"])
}

func (s *HandlerTestSuite) TestHealthAndUnknownRoute() {
	code, body := s.do(http.MethodGet, "/health", nil)
	s.Equal(http.StatusOK, code)
	s.Equal("test", body["environment"])

	code, body = s.do(http.MethodGet, "/nope", nil)
	s.Equal(http.StatusNotFound, code)
	s.Equal(false, body["success"])
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{session.ErrNotFound, http.StatusNotFound, "not_found"},
		{session.ErrInvalidState, http.StatusConflict, "invalid_state"},
		{session.ErrRedemptionInProgress, http.StatusConflict, "redemption_in_progress"},
		{redemption.ErrCodeAlreadyUsed, http.StatusConflict, "code_already_used"},
		{redemption.ErrTimeout, http.StatusGatewayTimeout, "timeout"},
		{redemption.ErrLedgerUnavailable, http.StatusBadGateway, "ledger_unavailable"},
		{redemption.ErrInvalidAttestation, http.StatusBadRequest, "invalid_attestation"},
		{fmt.Errorf("%w: %w", redemption.ErrLedgerUnavailable, ledger.ErrInvalidAddress), http.StatusBadRequest, "invalid_input"},
		{errors.New("boom"), http.StatusInternalServerError, "internal"},
	}
	for _, tt := range tests {
		status, code := classify(tt.err)
		assert.Equal(t, tt.status, status, tt.err.Error())
		assert.Equal(t, tt.code, code, tt.err.Error())
	}
}

func TestOperatorRoutesRefusedWithoutGuard(t *testing.T) {
	gin.SetMode(gin.TestMode)
	signer, err := attest.NewHMAC([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)

	store := session.NewStore(payment.Reject, signer)
	l := memory.New(token.DefaultRate)
	h := NewHandler(store, redemption.New(store, l, token.DefaultRate), l, Options{})

	r := gin.New()
	h.RegisterRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/manual-verify", bytes.NewBufferString(`{}`)))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
