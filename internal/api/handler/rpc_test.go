package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/herahq/engine/internal/api/handler"
	mw "github.com/herahq/engine/internal/api/middleware"
	"github.com/herahq/engine/internal/engine"
	"github.com/herahq/engine/internal/store"
	"github.com/herahq/engine/pkg/models"
)

// rpcStore is a minimal store.Store for envelope-level handler tests. It
// records writes and read filters; everything else returns zero values.
type rpcStore struct {
	createdEntities []*models.Entity
	createdTxns     []*models.Transaction
	relFilters      []store.RelationshipFilter
}

func (s *rpcStore) Ping(_ context.Context) error { return nil }
func (s *rpcStore) WithTx(_ context.Context, fn func(store.Store) error) error {
	return fn(s)
}
func (s *rpcStore) CreateOrganization(_ context.Context, _ *models.Organization) error { return nil }
func (s *rpcStore) GetOrganization(_ context.Context, _ uuid.UUID) (*models.Organization, error) {
	return nil, store.ErrNotFound
}
func (s *rpcStore) GetOrganizationByCode(_ context.Context, _ string) (*models.Organization, error) {
	return nil, store.ErrNotFound
}
func (s *rpcStore) GetAPIKeyByPrefix(_ context.Context, _ string) ([]*models.APIKey, error) {
	return nil, nil
}
func (s *rpcStore) UpdateAPIKeyLastUsed(_ context.Context, _ uuid.UUID) error { return nil }
func (s *rpcStore) CreateAPIKey(_ context.Context, _ *models.APIKey) error    { return nil }
func (s *rpcStore) ListAPIKeys(_ context.Context, _ uuid.UUID) ([]*models.APIKey, error) {
	return nil, nil
}
func (s *rpcStore) RevokeAPIKey(_ context.Context, _ uuid.UUID, _ uuid.UUID) error { return nil }
func (s *rpcStore) CreateEntity(_ context.Context, e *models.Entity) error {
	s.createdEntities = append(s.createdEntities, e)
	return nil
}
func (s *rpcStore) GetEntity(_ context.Context, _, _ uuid.UUID) (*models.Entity, error) {
	return nil, store.ErrNotFound
}
func (s *rpcStore) ListEntities(_ context.Context, _ store.EntityFilter) ([]*models.Entity, int, error) {
	return nil, 0, nil
}
func (s *rpcStore) UpdateEntity(_ context.Context, _, _ uuid.UUID, _ store.EntityPatch) (*models.Entity, error) {
	return nil, store.ErrNotFound
}
func (s *rpcStore) SetEntityStatus(_ context.Context, _, _ uuid.UUID, _ string) error {
	return store.ErrNotFound
}
func (s *rpcStore) DeleteEntity(_ context.Context, _, _ uuid.UUID) error { return store.ErrNotFound }
func (s *rpcStore) ActiveEntityCodeExists(_ context.Context, _ uuid.UUID, _, _ string) (bool, error) {
	return false, nil
}
func (s *rpcStore) CountEntityReferences(_ context.Context, _, _ uuid.UUID) (*models.ReferenceReport, error) {
	return &models.ReferenceReport{}, nil
}
func (s *rpcStore) ForeignEntityIDs(_ context.Context, _ uuid.UUID, _ []uuid.UUID) ([]uuid.UUID, error) {
	return nil, nil
}
func (s *rpcStore) UpsertDynamicField(_ context.Context, f *models.DynamicField) (*models.DynamicField, error) {
	return f, nil
}
func (s *rpcStore) ListDynamicFields(_ context.Context, _, _ uuid.UUID) ([]*models.DynamicField, error) {
	return nil, nil
}
func (s *rpcStore) ListDynamicFieldsByName(_ context.Context, _ uuid.UUID, _ string) ([]*models.DynamicField, error) {
	return nil, nil
}
func (s *rpcStore) InsertRelationship(_ context.Context, _ *models.Relationship) error { return nil }
func (s *rpcStore) GetRelationship(_ context.Context, _, _ uuid.UUID) (*models.Relationship, error) {
	return nil, store.ErrNotFound
}
func (s *rpcStore) QueryRelationships(_ context.Context, filter store.RelationshipFilter) ([]*models.Relationship, error) {
	s.relFilters = append(s.relFilters, filter)
	return nil, nil
}
func (s *rpcStore) DeactivateRelationship(_ context.Context, _, _ uuid.UUID) error {
	return store.ErrNotFound
}
func (s *rpcStore) DeactivateRelationshipsByScope(_ context.Context, _ uuid.UUID, _ []uuid.UUID, _ []string) (int, error) {
	return 0, nil
}
func (s *rpcStore) InsertTransaction(_ context.Context, t *models.Transaction) error {
	s.createdTxns = append(s.createdTxns, t)
	return nil
}
func (s *rpcStore) GetTransaction(_ context.Context, _, _ uuid.UUID, _ bool) (*models.Transaction, error) {
	return nil, store.ErrNotFound
}
func (s *rpcStore) UpdateTransaction(_ context.Context, _, _ uuid.UUID, _ store.TransactionPatch) (*models.Transaction, error) {
	return nil, store.ErrNotFound
}
func (s *rpcStore) LinkReversal(_ context.Context, _, _, _ uuid.UUID) error {
	return store.ErrNotFound
}

type noopCache struct{}

func (noopCache) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (noopCache) Get(context.Context, string) ([]byte, bool, error)        { return nil, false, nil }
func (noopCache) Delete(context.Context, string) error                     { return nil }
func (noopCache) Ping(context.Context) error                               { return nil }
func (noopCache) IncrWithExpiry(context.Context, string, time.Duration) (int64, error) {
	return 1, nil
}

var _ store.Store = (*rpcStore)(nil)

// do posts body to h with claims for org in context and decodes the envelope.
func do(t *testing.T, h http.HandlerFunc, org uuid.UUID, body any) (int, map[string]any) {
	t.Helper()

	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/", bytes.NewReader(raw))
	req = req.WithContext(mw.SetClaims(req.Context(), engine.Claims{
		ActorEntityID:  uuid.New(),
		OrganizationID: org,
	}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var envelope map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	return w.Code, envelope
}

func newRPCService(st *rpcStore) *engine.Service {
	return engine.NewService(st, noopCache{}, time.Minute)
}

func TestEntityRPC_CreateSuccessEnvelope(t *testing.T) {
	st := &rpcStore{}
	h := handler.NewEntityRPCHandler(newRPCService(st))
	org := uuid.New()

	code, envelope := do(t, h, org, map[string]any{
		"action":          "CREATE",
		"organization_id": org,
		"entity": map[string]any{
			"entity_type": "customer",
			"entity_code": "CUST-001",
			"entity_name": "Jane Doe",
			"smart_code":  "HERA.SALON.CUSTOMER.ENTITY.v1",
		},
	})

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, envelope["success"])
	assert.Equal(t, "CREATE", envelope["action"])
	require.NotNil(t, envelope["data"])
	require.Len(t, st.createdEntities, 1)
	assert.Equal(t, org, st.createdEntities[0].OrganizationID)
}

func TestEntityRPC_ActionIsCaseInsensitive(t *testing.T) {
	st := &rpcStore{}
	h := handler.NewEntityRPCHandler(newRPCService(st))
	org := uuid.New()

	code, envelope := do(t, h, org, map[string]any{
		"action":          "create",
		"organization_id": org,
		"entity": map[string]any{
			"entity_type": "customer",
			"entity_code": "CUST-001",
			"entity_name": "Jane Doe",
			"smart_code":  "HERA.SALON.CUSTOMER.ENTITY.v1",
		},
	})
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, envelope["success"])
}

func TestEntityRPC_UnknownAction(t *testing.T) {
	h := handler.NewEntityRPCHandler(newRPCService(&rpcStore{}))
	org := uuid.New()

	code, envelope := do(t, h, org, map[string]any{
		"action":          "EXPLODE",
		"organization_id": org,
	})

	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, false, envelope["success"])
	assert.Equal(t, "ValidationError", envelope["error"])
	assert.Contains(t, envelope["error_hint"], "CREATE")
}

func TestEntityRPC_TenantMismatchEnvelope(t *testing.T) {
	st := &rpcStore{}
	h := handler.NewEntityRPCHandler(newRPCService(st))

	// Claims carry one org, the request names another.
	code, envelope := do(t, h, uuid.New(), map[string]any{
		"action":          "CREATE",
		"organization_id": uuid.New(),
		"entity": map[string]any{
			"entity_type": "customer",
			"entity_code": "CUST-001",
			"entity_name": "Jane Doe",
			"smart_code":  "HERA.SALON.CUSTOMER.ENTITY.v1",
		},
	})

	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "TenantIsolationError", envelope["error"])
	assert.Empty(t, st.createdEntities)
}

func TestEntityRPC_InvalidJSON(t *testing.T) {
	h := handler.NewEntityRPCHandler(newRPCService(&rpcStore{}))

	req := httptest.NewRequest("POST", "/", bytes.NewReader([]byte("{not json")))
	req = req.WithContext(mw.SetClaims(req.Context(), engine.Claims{
		ActorEntityID:  uuid.New(),
		OrganizationID: uuid.New(),
	}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEntityRPC_MissingClaims(t *testing.T) {
	h := handler.NewEntityRPCHandler(newRPCService(&rpcStore{}))

	req := httptest.NewRequest("POST", "/", bytes.NewReader([]byte(`{"action":"READ"}`)))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestTransactionRPC_BalanceViolationEnvelope(t *testing.T) {
	st := &rpcStore{}
	h := handler.NewTransactionRPCHandler(newRPCService(st))
	org := uuid.New()

	code, envelope := do(t, h, org, map[string]any{
		"action":          "CREATE",
		"organization_id": org,
		"transaction": map[string]any{
			"transaction_type": "GL_JOURNAL",
			"smart_code":       "HERA.FIN.GL.TXN.JOURNAL.v1",
			"lines": []map[string]any{
				{"line_amount": "100", "direction": "debit", "smart_code": "HERA.FIN.GL.LINE.POSTING.v1"},
				{"line_amount": "90", "direction": "credit", "smart_code": "HERA.FIN.GL.LINE.POSTING.v1"},
			},
		},
	})

	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, false, envelope["success"])
	assert.Equal(t, "BalanceViolationError", envelope["error"])
	assert.NotEmpty(t, envelope["error_hint"])
	assert.Empty(t, st.createdTxns)
}

func TestRelationshipRPC_QueryDefaultsToActiveOnly(t *testing.T) {
	st := &rpcStore{}
	h := handler.NewRelationshipRPCHandler(newRPCService(st))
	org := uuid.New()

	code, _ := do(t, h, org, map[string]any{
		"action":          "QUERY",
		"organization_id": org,
		"query":           map[string]any{},
	})
	require.Equal(t, http.StatusOK, code)
	require.Len(t, st.relFilters, 1)
	assert.True(t, st.relFilters[0].ActiveOnly)

	code, _ = do(t, h, org, map[string]any{
		"action":          "QUERY",
		"organization_id": org,
		"query":           map[string]any{},
		"options":         map[string]any{"active_only": false},
	})
	require.Equal(t, http.StatusOK, code)
	require.Len(t, st.relFilters, 2)
	assert.False(t, st.relFilters[1].ActiveOnly)
}

func TestDynamicDataRPC_QueryRequiresFieldName(t *testing.T) {
	h := handler.NewDynamicDataRPCHandler(newRPCService(&rpcStore{}))
	org := uuid.New()

	code, envelope := do(t, h, org, map[string]any{
		"action":          "QUERY",
		"organization_id": org,
	})

	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "ValidationError", envelope["error"])
}
