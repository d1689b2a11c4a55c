package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clipbot/bot"
	"clipbot/config"
)

type stubStatus struct {
	stats bot.Stats
	tasks []bot.TaskSnapshot
}

func (s *stubStatus) Stats() bot.Stats                { return s.stats }
func (s *stubStatus) RecentTasks() []bot.TaskSnapshot { return s.tasks }

func TestHandleStats(t *testing.T) {
	status := &stubStatus{stats: bot.Stats{Enqueued: 3, Cut: 2, Uploaded: 1, InputDepth: 1}}
	router := SetupRouter(status, &config.Config{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var got bot.Stats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, uint64(3), got.Enqueued)
	assert.Equal(t, 1, got.InputDepth)
}

func TestHandleListTasks_EmptyIsArray(t *testing.T) {
	router := SetupRouter(&stubStatus{}, &config.Config{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())
}

func TestAuthMiddleware(t *testing.T) {
	cfg := &config.Config{AuthEnable: true, AuthKey: "secret"}
	router := SetupRouter(&stubStatus{}, cfg)

	t.Run("rejects missing header", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil)
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("rejects wrong token", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil)
		req.Header.Set("Authorization", "Bearer wrong")
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("accepts valid token", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil)
		req.Header.Set("Authorization", "Bearer secret")
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("health stays open", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}
