package middlewares

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAuthTokenAcceptsRawToken(t *testing.T) {
	a := NewAuthToken([]string{"token_1", "token_2"}, discardLogger())
	handler := a.Middleware(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/ilp", nil)
	req.Header.Set("Authorization", "token_1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthTokenAcceptsBearerPrefixed(t *testing.T) {
	a := NewAuthToken([]string{"token_1"}, discardLogger())
	handler := a.Middleware(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/ilp", nil)
	req.Header.Set("Authorization", "Bearer token_1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthTokenRejectsMissingToken(t *testing.T) {
	a := NewAuthToken([]string{"token_1"}, discardLogger())
	handler := a.Middleware(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/ilp", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthTokenRejectsWrongToken(t *testing.T) {
	a := NewAuthToken([]string{"token_1"}, discardLogger())
	handler := a.Middleware(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/ilp", nil)
	req.Header.Set("Authorization", "not_a_token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
