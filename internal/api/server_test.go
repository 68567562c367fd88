package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"kingdom/internal/config"
	"kingdom/internal/economy"

	"github.com/stretchr/testify/require"
)

func newTestServer(adminToken string) *Server {
	cfg := config.APIConfig{
		ServiceToken: "svc-token",
		AdminToken:   adminToken,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(cfg, logger, nil)
}

func TestHealthzOpen(t *testing.T) {
	srv := newTestServer("")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"ok":true`)
}

func TestServiceAuthRequired(t *testing.T) {
	srv := newTestServer("")

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/items", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/v1/items", nil)
	req.Header.Set("Authorization", "Bearer wrong-token")
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/v1/items", nil)
	req.Header.Set("Authorization", "svc-token")
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code, "scheme-less header must be rejected")
}

func TestAdminAuthRequired(t *testing.T) {
	srv := newTestServer("admin-token")

	body := strings.NewReader(`{"tax_bp":300}`)
	req := httptest.NewRequest(http.MethodPut, "/v1/countries/1/policy/tax", body)
	req.Header.Set("Authorization", "Bearer svc-token")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodPut, "/v1/countries/1/policy/tax", strings.NewReader(`{}`))
	req.Header.Set("Authorization", "Bearer svc-token")
	req.Header.Set("X-Admin-Token", "wrong")
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAdminDisabledWhenUnconfigured(t *testing.T) {
	// Without a configured admin token the route is always closed, even when
	// the caller sends an empty match.
	srv := newTestServer("")
	req := httptest.NewRequest(http.MethodPut, "/v1/countries/1/policy/tax", strings.NewReader(`{}`))
	req.Header.Set("Authorization", "Bearer svc-token")
	req.Header.Set("X-Admin-Token", "")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestWriteDomainErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{economy.ErrValidation, http.StatusBadRequest},
		{economy.ErrInsufficientFunds, http.StatusBadRequest},
		{economy.ErrCountryNotFound, http.StatusNotFound},
		{economy.ErrNotSeller, http.StatusForbidden},
		{economy.ErrQuoteExpired, http.StatusGone},
		{economy.ErrDuplicateClaim, http.StatusConflict},
		{economy.ErrTxConflict, http.StatusConflict},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		rec := httptest.NewRecorder()
		writeDomainError(rec, tc.err)
		require.Equalf(t, tc.want, rec.Code, "error %v", tc.err)
	}
}

func TestBearerToken(t *testing.T) {
	require.Equal(t, "abc", bearerToken("Bearer abc"))
	require.Equal(t, "abc", bearerToken("bearer abc"))
	require.Equal(t, "", bearerToken("abc"))
	require.Equal(t, "", bearerToken(""))
	require.Equal(t, "", bearerToken("Basic abc"))
}
