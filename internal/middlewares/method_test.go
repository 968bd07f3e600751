package middlewares

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMethodAllowsConfiguredMethod(t *testing.T) {
	m := NewMethod(http.MethodPost, discardLogger())
	handler := m.Middleware(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/ilp", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMethodRejectsOtherMethods(t *testing.T) {
	m := NewMethod(http.MethodPost, discardLogger())
	handler := m.Middleware(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/ilp", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
