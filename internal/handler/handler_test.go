package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfest/registrar/internal/apperr"
	"github.com/openfest/registrar/internal/auth"
	"github.com/openfest/registrar/internal/model"
)

func TestHealthCheck(t *testing.T) {
	rec := httptest.NewRecorder()
	HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestWriteDomainErrorMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{apperr.NotFoundf("event not found"), http.StatusNotFound, "NOT_FOUND"},
		{apperr.Forbiddenf("not yours"), http.StatusForbidden, "FORBIDDEN"},
		{apperr.ErrCapacityExceeded, http.StatusConflict, "CONFLICT"},
		{apperr.ErrAlreadyRegistered, http.StatusConflict, "CONFLICT"},
		{apperr.InvalidStatef("wrong state"), http.StatusConflict, "INVALID_STATE"},
		{apperr.Validationf("bad input"), http.StatusBadRequest, "VALIDATION"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeDomainError(rec, tt.err)

			assert.Equal(t, tt.status, rec.Code)
			var resp model.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.code, resp.Code)
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestWriteDomainErrorHidesInternals(t *testing.T) {
	rec := httptest.NewRecorder()
	writeDomainError(rec, fmt.Errorf("pq: connection refused on 10.0.0.3"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "10.0.0.3")

	var resp model.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "internal error", resp.Error)
}

func TestDecodeJSONRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"reason":"x","extra":true}`))
	var body model.RejectPaymentRequest
	assert.Error(t, decodeJSON(req, &body))

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"reason":"illegible"}`))
	require.NoError(t, decodeJSON(req, &body))
	assert.Equal(t, "illegible", body.Reason)
}

func TestAuthMiddleware(t *testing.T) {
	const secret = "test-secret"

	var seen auth.Actor
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = actorFrom(r)
		w.WriteHeader(http.StatusNoContent)
	})
	protected := Auth(secret)(next)

	t.Run("missing token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("malformed header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Token abc")
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("wrong secret", func(t *testing.T) {
		token, err := auth.NewToken(auth.Actor{ID: "u-1"}, "other-secret", time.Hour)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("valid token", func(t *testing.T) {
		token, err := auth.NewToken(auth.Actor{
			ID: "u-1", Role: auth.RoleOrganizer, Tags: []string{"student"},
		}, secret, time.Hour)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "u-1", seen.ID)
		assert.True(t, seen.IsOrganizer())
		assert.Equal(t, []string{"student"}, seen.Tags)
	})
}
