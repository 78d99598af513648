package engine_test

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/herahq/engine/internal/engine"
	"github.com/herahq/engine/internal/store"
	"github.com/herahq/engine/pkg/models"
)

// newTestService wires a Service against the in-memory fakes and returns
// claims scoped to a fresh organization.
func newTestService() (*engine.Service, *fakeStore, *fakeCache, engine.Claims, uuid.UUID) {
	st := newFakeStore()
	ca := newFakeCache()
	org := uuid.New()
	svc := engine.NewService(st, ca, time.Minute)
	claims := engine.Claims{ActorEntityID: uuid.New(), OrganizationID: org}
	return svc, st, ca, claims, org
}

// fakeStore is an in-memory store.Store. WithTx snapshots the maps before
// running fn and restores them on error, so atomic rollback behavior is
// observable in tests.
type fakeStore struct {
	entities      map[uuid.UUID]*models.Entity
	dynamic       map[uuid.UUID]map[string]*models.DynamicField
	relationships map[uuid.UUID]*models.Relationship
	transactions  map[uuid.UUID]*models.Transaction
	apiKeys       map[uuid.UUID]*models.APIKey
	orgs          map[uuid.UUID]*models.Organization

	insertEntityErr error
	insertTxnErr    error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		entities:      make(map[uuid.UUID]*models.Entity),
		dynamic:       make(map[uuid.UUID]map[string]*models.DynamicField),
		relationships: make(map[uuid.UUID]*models.Relationship),
		transactions:  make(map[uuid.UUID]*models.Transaction),
		apiKeys:       make(map[uuid.UUID]*models.APIKey),
		orgs:          make(map[uuid.UUID]*models.Organization),
	}
}

// seedEntity adds an active entity owned by org and returns it.
func (f *fakeStore) seedEntity(org uuid.UUID, entityType, code string) *models.Entity {
	e := &models.Entity{
		ID:             uuid.New(),
		OrganizationID: org,
		EntityType:     entityType,
		EntityCode:     code,
		EntityName:     code,
		SmartCode:      "HERA.TEST." + strings.ToUpper(entityType) + ".ENTITY.v1",
		Status:         models.EntityStatusActive,
		CreatedAt:      time.Now().UTC(),
		UpdatedAt:      time.Now().UTC(),
	}
	f.entities[e.ID] = e
	return e
}

func (f *fakeStore) Ping(context.Context) error { return nil }

func (f *fakeStore) WithTx(ctx context.Context, fn func(store.Store) error) error {
	entities := copyMap(f.entities)
	relationships := copyMap(f.relationships)
	transactions := copyMap(f.transactions)
	dynamic := make(map[uuid.UUID]map[string]*models.DynamicField, len(f.dynamic))
	for k, v := range f.dynamic {
		dynamic[k] = copyMap(v)
	}

	if err := fn(f); err != nil {
		f.entities = entities
		f.relationships = relationships
		f.transactions = transactions
		f.dynamic = dynamic
		return err
	}
	return nil
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (f *fakeStore) CreateOrganization(_ context.Context, org *models.Organization) error {
	f.orgs[org.ID] = org
	return nil
}

func (f *fakeStore) GetOrganization(_ context.Context, id uuid.UUID) (*models.Organization, error) {
	org, ok := f.orgs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return org, nil
}

func (f *fakeStore) GetOrganizationByCode(_ context.Context, code string) (*models.Organization, error) {
	for _, org := range f.orgs {
		if org.OrganizationCode == code {
			return org, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) GetAPIKeyByPrefix(_ context.Context, prefix string) ([]*models.APIKey, error) {
	var keys []*models.APIKey
	for _, k := range f.apiKeys {
		if k.KeyPrefix == prefix && k.DeletedAt == nil {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (f *fakeStore) UpdateAPIKeyLastUsed(context.Context, uuid.UUID) error { return nil }

func (f *fakeStore) CreateAPIKey(_ context.Context, key *models.APIKey) error {
	f.apiKeys[key.ID] = key
	return nil
}

func (f *fakeStore) ListAPIKeys(_ context.Context, org uuid.UUID) ([]*models.APIKey, error) {
	var keys []*models.APIKey
	for _, k := range f.apiKeys {
		if k.OrganizationID == org && k.DeletedAt == nil {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (f *fakeStore) RevokeAPIKey(_ context.Context, id, org uuid.UUID) error {
	k, ok := f.apiKeys[id]
	if !ok || k.OrganizationID != org {
		return store.ErrNotFound
	}
	now := time.Now().UTC()
	k.DeletedAt = &now
	return nil
}

func (f *fakeStore) CreateEntity(_ context.Context, e *models.Entity) error {
	if f.insertEntityErr != nil {
		return f.insertEntityErr
	}
	clone := *e
	clone.DynamicData = nil
	clone.Relationships = nil
	f.entities[e.ID] = &clone
	return nil
}

func (f *fakeStore) GetEntity(_ context.Context, org, id uuid.UUID) (*models.Entity, error) {
	e, ok := f.entities[id]
	if !ok || e.OrganizationID != org {
		return nil, store.ErrNotFound
	}
	clone := *e
	return &clone, nil
}

func (f *fakeStore) ListEntities(_ context.Context, filter store.EntityFilter) ([]*models.Entity, int, error) {
	var out []*models.Entity
	for _, e := range f.entities {
		if e.OrganizationID != filter.OrganizationID {
			continue
		}
		if filter.EntityType != "" && e.EntityType != filter.EntityType {
			continue
		}
		if filter.EntityCode != "" && e.EntityCode != filter.EntityCode {
			continue
		}
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		if filter.NameContains != "" && !strings.Contains(strings.ToLower(e.EntityName), strings.ToLower(filter.NameContains)) {
			continue
		}
		clone := *e
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntityCode < out[j].EntityCode })
	return out, len(out), nil
}

func (f *fakeStore) UpdateEntity(_ context.Context, org, id uuid.UUID, patch store.EntityPatch) (*models.Entity, error) {
	e, ok := f.entities[id]
	if !ok || e.OrganizationID != org {
		return nil, store.ErrNotFound
	}
	clone := *e
	if patch.EntityName != nil {
		clone.EntityName = *patch.EntityName
	}
	if patch.EntityCode != nil {
		clone.EntityCode = *patch.EntityCode
	}
	if patch.SmartCode != nil {
		clone.SmartCode = *patch.SmartCode
	}
	if patch.Status != nil {
		clone.Status = *patch.Status
	}
	if patch.Metadata != nil {
		clone.Metadata = patch.Metadata
	}
	if patch.BusinessRules != nil {
		clone.BusinessRules = patch.BusinessRules
	}
	clone.UpdatedAt = time.Now().UTC()
	f.entities[id] = &clone
	return &clone, nil
}

func (f *fakeStore) SetEntityStatus(_ context.Context, org, id uuid.UUID, status string) error {
	e, ok := f.entities[id]
	if !ok || e.OrganizationID != org {
		return store.ErrNotFound
	}
	clone := *e
	clone.Status = status
	f.entities[id] = &clone
	return nil
}

func (f *fakeStore) DeleteEntity(_ context.Context, org, id uuid.UUID) error {
	e, ok := f.entities[id]
	if !ok || e.OrganizationID != org {
		return store.ErrNotFound
	}
	delete(f.entities, id)
	return nil
}

func (f *fakeStore) ActiveEntityCodeExists(_ context.Context, org uuid.UUID, entityType, entityCode string) (bool, error) {
	for _, e := range f.entities {
		if e.OrganizationID == org && e.EntityType == entityType &&
			e.EntityCode == entityCode && e.Status == models.EntityStatusActive {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) CountEntityReferences(_ context.Context, org, id uuid.UUID) (*models.ReferenceReport, error) {
	var report models.ReferenceReport
	for _, t := range f.transactions {
		if t.OrganizationID != org {
			continue
		}
		if (t.SourceEntityID != nil && *t.SourceEntityID == id) ||
			(t.TargetEntityID != nil && *t.TargetEntityID == id) {
			report.TransactionHeaders++
		}
		for _, line := range t.Lines {
			if line.EntityID != nil && *line.EntityID == id {
				report.TransactionLines++
			}
		}
	}
	for _, r := range f.relationships {
		if r.OrganizationID != org {
			continue
		}
		if r.FromEntityID == id || r.ToEntityID == id {
			report.Relationships++
		}
	}
	return &report, nil
}

func (f *fakeStore) ForeignEntityIDs(_ context.Context, org uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error) {
	var foreign []uuid.UUID
	for _, id := range ids {
		e, ok := f.entities[id]
		if !ok || e.OrganizationID != org {
			foreign = append(foreign, id)
		}
	}
	return foreign, nil
}

func (f *fakeStore) UpsertDynamicField(_ context.Context, field *models.DynamicField) (*models.DynamicField, error) {
	fields, ok := f.dynamic[field.EntityID]
	if !ok {
		fields = make(map[string]*models.DynamicField)
		f.dynamic[field.EntityID] = fields
	}
	clone := *field
	if existing, ok := fields[field.FieldName]; ok {
		clone.ID = existing.ID
		clone.CreatedAt = existing.CreatedAt
	}
	fields[field.FieldName] = &clone
	return &clone, nil
}

func (f *fakeStore) ListDynamicFields(_ context.Context, org, entityID uuid.UUID) ([]*models.DynamicField, error) {
	var out []*models.DynamicField
	for _, field := range f.dynamic[entityID] {
		if field.OrganizationID == org {
			clone := *field
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FieldName < out[j].FieldName })
	return out, nil
}

func (f *fakeStore) ListDynamicFieldsByName(_ context.Context, org uuid.UUID, fieldName string) ([]*models.DynamicField, error) {
	var out []*models.DynamicField
	for _, fields := range f.dynamic {
		if field, ok := fields[fieldName]; ok && field.OrganizationID == org {
			clone := *field
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (f *fakeStore) InsertRelationship(_ context.Context, r *models.Relationship) error {
	clone := *r
	f.relationships[r.ID] = &clone
	return nil
}

func (f *fakeStore) GetRelationship(_ context.Context, org, id uuid.UUID) (*models.Relationship, error) {
	r, ok := f.relationships[id]
	if !ok || r.OrganizationID != org {
		return nil, store.ErrNotFound
	}
	clone := *r
	return &clone, nil
}

func (f *fakeStore) QueryRelationships(_ context.Context, filter store.RelationshipFilter) ([]*models.Relationship, error) {
	var out []*models.Relationship
	for _, r := range f.relationships {
		if r.OrganizationID != filter.OrganizationID {
			continue
		}
		if filter.FromEntityID != nil && r.FromEntityID != *filter.FromEntityID {
			continue
		}
		if filter.ToEntityID != nil && r.ToEntityID != *filter.ToEntityID {
			continue
		}
		if filter.RelationshipType != "" && r.RelationshipType != filter.RelationshipType {
			continue
		}
		if filter.ActiveOnly && !r.IsActive {
			continue
		}
		if filter.EffectiveAt != nil {
			at := *filter.EffectiveAt
			if r.EffectiveDate != nil && r.EffectiveDate.After(at) {
				continue
			}
			if r.ExpirationDate != nil && r.ExpirationDate.Before(at) {
				continue
			}
		}
		clone := *r
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeStore) DeactivateRelationship(_ context.Context, org, id uuid.UUID) error {
	r, ok := f.relationships[id]
	if !ok || r.OrganizationID != org || !r.IsActive {
		return store.ErrNotFound
	}
	clone := *r
	clone.IsActive = false
	f.relationships[id] = &clone
	return nil
}

func (f *fakeStore) DeactivateRelationshipsByScope(_ context.Context, org uuid.UUID, fromIDs []uuid.UUID, types []string) (int, error) {
	fromSet := make(map[uuid.UUID]bool, len(fromIDs))
	for _, id := range fromIDs {
		fromSet[id] = true
	}
	typeSet := make(map[string]bool, len(types))
	for _, t := range types {
		typeSet[t] = true
	}

	count := 0
	for id, r := range f.relationships {
		if r.OrganizationID != org || !r.IsActive {
			continue
		}
		if !fromSet[r.FromEntityID] || !typeSet[r.RelationshipType] {
			continue
		}
		clone := *r
		clone.IsActive = false
		f.relationships[id] = &clone
		count++
	}
	return count, nil
}

func (f *fakeStore) InsertTransaction(_ context.Context, t *models.Transaction) error {
	if f.insertTxnErr != nil {
		return f.insertTxnErr
	}
	clone := *t
	f.transactions[t.ID] = &clone
	return nil
}

func (f *fakeStore) GetTransaction(_ context.Context, org, id uuid.UUID, withLines bool) (*models.Transaction, error) {
	t, ok := f.transactions[id]
	if !ok || t.OrganizationID != org {
		return nil, store.ErrNotFound
	}
	clone := *t
	if !withLines {
		clone.Lines = nil
	}
	return &clone, nil
}

func (f *fakeStore) UpdateTransaction(_ context.Context, org, id uuid.UUID, patch store.TransactionPatch) (*models.Transaction, error) {
	t, ok := f.transactions[id]
	if !ok || t.OrganizationID != org {
		return nil, store.ErrNotFound
	}
	clone := *t
	if patch.Status != nil {
		clone.Status = *patch.Status
	}
	if patch.TotalAmount != nil {
		clone.TotalAmount = *patch.TotalAmount
	}
	if patch.BusinessContext != nil {
		clone.BusinessContext = patch.BusinessContext
	}
	if patch.Metadata != nil {
		clone.Metadata = patch.Metadata
	}
	clone.UpdatedAt = time.Now().UTC()
	f.transactions[id] = &clone
	return &clone, nil
}

func (f *fakeStore) LinkReversal(_ context.Context, org, originalID, reversalID uuid.UUID) error {
	t, ok := f.transactions[originalID]
	if !ok || t.OrganizationID != org || t.ReversedByID != nil {
		return store.ErrNotFound
	}
	clone := *t
	clone.ReversedByID = &reversalID
	clone.Status = models.TxnStatusReversed
	f.transactions[originalID] = &clone
	return nil
}

// fakeCache is an in-memory cache.Cache recording deletes.
type fakeCache struct {
	data    map[string][]byte
	deleted []string
	getErr  error
	setErr  error
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: make(map[string][]byte)}
}

func (c *fakeCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	if c.setErr != nil {
		return c.setErr
	}
	c.data[key] = value
	return nil
}

func (c *fakeCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *fakeCache) Delete(_ context.Context, key string) error {
	delete(c.data, key)
	c.deleted = append(c.deleted, key)
	return nil
}

func (c *fakeCache) Ping(context.Context) error { return nil }

func (c *fakeCache) IncrWithExpiry(context.Context, string, time.Duration) (int64, error) {
	return 1, nil
}
