package server

import (
	contextpkg "context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dochub-labs/dochub/backend/internal/adminsession"
	"github.com/dochub-labs/dochub/backend/internal/auth"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type stubGoogleVerifier struct {
	claims auth.GoogleClaims
	err    error
}

func (s stubGoogleVerifier) Verify(contextpkg.Context, string) (auth.GoogleClaims, error) {
	return s.claims, s.err
}

type stubTokenManager struct {
	issuedToken string
	issueErr    error
	subject     string
	validateErr error
}

func (s stubTokenManager) IssueBackendToken(contextpkg.Context, string) (string, int64, error) {
	return s.issuedToken, 3600, s.issueErr
}

func (s stubTokenManager) ValidateToken(string) (string, error) {
	return s.subject, s.validateErr
}

type stubIdentityResolver struct {
	userID string
	err    error
}

func (s stubIdentityResolver) ResolveCanonicalUserID(auth.GoogleClaims) (string, error) {
	return s.userID, s.err
}

func TestHandleGoogleAuthIssuesBackendToken(testContext *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	context, _ := gin.CreateTestContext(recorder)

	request := httptest.NewRequest(http.MethodPost, "/auth/google", strings.NewReader(`{"id_token":"google-token"}`))
	request.Header.Set("Content-Type", "application/json")
	context.Request = request

	handler := &httpHandler{
		verifier:   stubGoogleVerifier{claims: auth.GoogleClaims{Subject: "12345"}},
		tokens:     stubTokenManager{issuedToken: "backend-token"},
		identities: stubIdentityResolver{userID: "12345"},
		logger:     zap.NewNop(),
	}

	handler.handleGoogleAuth(context)

	if recorder.Code != http.StatusOK {
		testContext.Fatalf("expected ok status, got %d", recorder.Code)
	}
	var payload authResponsePayload
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		testContext.Fatalf("failed to decode response: %v", err)
	}
	if payload.AccessToken != "backend-token" {
		testContext.Fatalf("unexpected access token: %q", payload.AccessToken)
	}
	if payload.TokenType != "Bearer" {
		testContext.Fatalf("unexpected token type: %q", payload.TokenType)
	}
}

func TestHandleGoogleAuthRejectsFailedVerification(testContext *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	context, _ := gin.CreateTestContext(recorder)

	request := httptest.NewRequest(http.MethodPost, "/auth/google", strings.NewReader(`{"id_token":"forged"}`))
	request.Header.Set("Content-Type", "application/json")
	context.Request = request

	handler := &httpHandler{
		verifier:   stubGoogleVerifier{err: errors.New("bad signature")},
		tokens:     stubTokenManager{},
		identities: stubIdentityResolver{},
		logger:     zap.NewNop(),
	}

	handler.handleGoogleAuth(context)

	if recorder.Code != http.StatusUnauthorized {
		testContext.Fatalf("expected unauthorized status, got %d", recorder.Code)
	}
}

func TestHandleGoogleAuthRejectsEmptyToken(testContext *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	context, _ := gin.CreateTestContext(recorder)

	request := httptest.NewRequest(http.MethodPost, "/auth/google", strings.NewReader(`{"id_token":"   "}`))
	request.Header.Set("Content-Type", "application/json")
	context.Request = request

	handler := &httpHandler{
		verifier:   stubGoogleVerifier{},
		tokens:     stubTokenManager{},
		identities: stubIdentityResolver{},
		logger:     zap.NewNop(),
	}

	handler.handleGoogleAuth(context)

	if recorder.Code != http.StatusBadRequest {
		testContext.Fatalf("expected bad request status, got %d", recorder.Code)
	}
}

func TestAuthorizeRequestLogsExpiredTokenAtInfoLevel(testContext *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	context, _ := gin.CreateTestContext(recorder)
	request := httptest.NewRequest(http.MethodGet, "/catalog/sections", http.NoBody)
	request.Header.Set("Authorization", "Bearer expired-token")
	context.Request = request

	core, logs := observer.New(zapcore.DebugLevel)
	handler := &httpHandler{
		tokens: stubTokenManager{validateErr: jwt.ErrTokenExpired},
		logger: zap.New(core),
	}

	handler.authorizeRequest(context)

	if recorder.Code != http.StatusUnauthorized {
		testContext.Fatalf("expected unauthorized status, got %d", recorder.Code)
	}
	entries := logs.All()
	if len(entries) != 1 {
		testContext.Fatalf("expected exactly one log entry, got %d", len(entries))
	}
	if entries[0].Level != zapcore.InfoLevel {
		testContext.Fatalf("expected info level for expired token, got %s", entries[0].Level)
	}
}

func TestAuthorizeRequestAcceptsQueryParameterToken(testContext *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	context, _ := gin.CreateTestContext(recorder)
	request := httptest.NewRequest(http.MethodGet, "/catalog/stream?access_token=stream-token", http.NoBody)
	context.Request = request

	handler := &httpHandler{
		tokens: stubTokenManager{subject: "user-9"},
		logger: zap.NewNop(),
	}

	handler.authorizeRequest(context)

	if recorder.Code == http.StatusUnauthorized {
		testContext.Fatalf("expected query parameter token to be accepted")
	}
	if context.GetString(userIDContextKey) != "user-9" {
		testContext.Fatalf("expected user id in context, got %q", context.GetString(userIDContextKey))
	}
}

func TestAuthorizeRequestRejectsMissingToken(testContext *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	context, _ := gin.CreateTestContext(recorder)
	context.Request = httptest.NewRequest(http.MethodGet, "/catalog/sections", http.NoBody)

	handler := &httpHandler{
		tokens: stubTokenManager{},
		logger: zap.NewNop(),
	}

	handler.authorizeRequest(context)

	if recorder.Code != http.StatusUnauthorized {
		testContext.Fatalf("expected unauthorized status, got %d", recorder.Code)
	}
}

func TestHandleLogoutResetsAdminMode(testContext *testing.T) {
	gin.SetMode(gin.TestMode)
	statePath := filepath.Join(testContext.TempDir(), "admin.json")
	store, err := adminsession.NewStore(statePath)
	if err != nil {
		testContext.Fatalf("failed to create store: %v", err)
	}
	if err := store.SetEnabled(true); err != nil {
		testContext.Fatalf("failed to enable admin mode: %v", err)
	}

	recorder := httptest.NewRecorder()
	context, _ := gin.CreateTestContext(recorder)
	context.Request = httptest.NewRequest(http.MethodPost, "/auth/logout", http.NoBody)

	handler := &httpHandler{
		adminState: store,
		logger:     zap.NewNop(),
	}

	handler.handleLogout(context)

	if recorder.Code != http.StatusNoContent {
		testContext.Fatalf("expected no content status, got %d", recorder.Code)
	}
	if store.Enabled() {
		testContext.Fatalf("expected admin mode to be cleared on logout")
	}
}
