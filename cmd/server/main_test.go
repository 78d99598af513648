package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/herahq/engine/internal/cache"
	"github.com/herahq/engine/internal/store"
)

// pingStore overrides only Ping; healthHandler never touches the rest.
type pingStore struct {
	store.Store
	err error
}

func (p pingStore) Ping(_ context.Context) error { return p.err }

type pingCache struct {
	cache.Cache
	err error
}

func (p pingCache) Ping(_ context.Context) error { return p.err }

func TestHealthHandler_AllHealthy(t *testing.T) {
	h := healthHandler(pingStore{}, pingCache{})

	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, 200, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, true, body["success"])
}

func TestHealthHandler_DatabaseDown(t *testing.T) {
	h := healthHandler(pingStore{err: errors.New("connection refused")}, pingCache{})

	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, 503, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Degraded", body["error"])
}

func TestHealthHandler_CacheDown(t *testing.T) {
	h := healthHandler(pingStore{}, pingCache{err: errors.New("redis down")})

	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, 503, w.Code)
}
