package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rowens2025/powervisualize/internal/interfaces/http/dto"
)

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

type stubCatalog int

func (c stubCatalog) Len() int { return int(c) }

type healthBody struct {
	Success bool             `json:"success"`
	Data    dto.HealthStatus `json:"data"`
	Error   *dto.ErrorInfo   `json:"error"`
}

func probe(t *testing.T, h *SystemHandler, path string) (*httptest.ResponseRecorder, healthBody) {
	t.Helper()
	r := gin.New()
	h.RegisterRoutes(&r.RouterGroup)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))

	var body healthBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w, body
}

func TestSystemHandler_Health(t *testing.T) {
	t.Run("all up", func(t *testing.T) {
		w, body := probe(t, NewSystemHandler(stubPinger{}, stubCatalog(12), "1.2.0"), "/health")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.True(t, body.Success)
		assert.Equal(t, "ok", body.Data.Status)
		assert.Equal(t, "ok", body.Data.Checks["database"])
		assert.Equal(t, 12, body.Data.Fallback)
		assert.Equal(t, "1.2.0", body.Data.Version)
	})

	t.Run("database down is still live", func(t *testing.T) {
		w, body := probe(t, NewSystemHandler(stubPinger{err: errors.New("refused")}, nil, ""), "/health")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "unavailable", body.Data.Status)
		assert.Equal(t, "down", body.Data.Checks["database"])
	})
}

func TestSystemHandler_Ready(t *testing.T) {
	tests := []struct {
		name       string
		db         Pinger
		fallback   FallbackCatalog
		wantStatus int
		wantState  string
	}{
		{"database and fallback", stubPinger{}, stubCatalog(3), http.StatusOK, "ok"},
		{"fallback only", stubPinger{err: errors.New("down")}, stubCatalog(3), http.StatusOK, "degraded"},
		{"database only", stubPinger{}, stubCatalog(0), http.StatusOK, "degraded"},
		{"neither", stubPinger{err: errors.New("down")}, stubCatalog(0), http.StatusServiceUnavailable, "unavailable"},
		{"no database configured", nil, nil, http.StatusServiceUnavailable, "unavailable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, body := probe(t, NewSystemHandler(tt.db, tt.fallback, ""), "/ready")

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantState, body.Data.Status)
			if tt.wantStatus != http.StatusOK {
				require.NotNil(t, body.Error)
				assert.Equal(t, dto.ErrCodeNotReady, body.Error.Code)
			}
		})
	}
}
