package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/herahq/engine/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")
var ErrForeignKey = errors.New("foreign key violation")

// Store is the data access interface. All database operations go through
// here. WithTx runs fn against a transaction-scoped Store so the service
// layer can compose multi-statement writes atomically.
type Store interface {
	Ping(ctx context.Context) error
	WithTx(ctx context.Context, fn func(Store) error) error

	CreateOrganization(ctx context.Context, org *models.Organization) error
	GetOrganization(ctx context.Context, id uuid.UUID) (*models.Organization, error)
	GetOrganizationByCode(ctx context.Context, code string) (*models.Organization, error)

	GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error
	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	ListAPIKeys(ctx context.Context, organizationID uuid.UUID) ([]*models.APIKey, error)
	RevokeAPIKey(ctx context.Context, id uuid.UUID, organizationID uuid.UUID) error

	CreateEntity(ctx context.Context, e *models.Entity) error
	GetEntity(ctx context.Context, organizationID, id uuid.UUID) (*models.Entity, error)
	ListEntities(ctx context.Context, filter EntityFilter) ([]*models.Entity, int, error)
	UpdateEntity(ctx context.Context, organizationID, id uuid.UUID, patch EntityPatch) (*models.Entity, error)
	SetEntityStatus(ctx context.Context, organizationID, id uuid.UUID, status string) error
	DeleteEntity(ctx context.Context, organizationID, id uuid.UUID) error
	ActiveEntityCodeExists(ctx context.Context, organizationID uuid.UUID, entityType, entityCode string) (bool, error)
	CountEntityReferences(ctx context.Context, organizationID, id uuid.UUID) (*models.ReferenceReport, error)
	// ForeignEntityIDs returns the subset of ids that do NOT belong to the
	// organization. The isolation guard fails closed on a non-empty result.
	ForeignEntityIDs(ctx context.Context, organizationID uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error)

	UpsertDynamicField(ctx context.Context, f *models.DynamicField) (*models.DynamicField, error)
	ListDynamicFields(ctx context.Context, organizationID, entityID uuid.UUID) ([]*models.DynamicField, error)
	ListDynamicFieldsByName(ctx context.Context, organizationID uuid.UUID, fieldName string) ([]*models.DynamicField, error)

	InsertRelationship(ctx context.Context, r *models.Relationship) error
	GetRelationship(ctx context.Context, organizationID, id uuid.UUID) (*models.Relationship, error)
	QueryRelationships(ctx context.Context, filter RelationshipFilter) ([]*models.Relationship, error)
	DeactivateRelationship(ctx context.Context, organizationID, id uuid.UUID) error
	// DeactivateRelationshipsByScope retires every active edge whose
	// from_entity_id and relationship_type fall within the given sets.
	DeactivateRelationshipsByScope(ctx context.Context, organizationID uuid.UUID, fromEntityIDs []uuid.UUID, types []string) (int, error)

	InsertTransaction(ctx context.Context, t *models.Transaction) error
	GetTransaction(ctx context.Context, organizationID, id uuid.UUID, withLines bool) (*models.Transaction, error)
	UpdateTransaction(ctx context.Context, organizationID, id uuid.UUID, patch TransactionPatch) (*models.Transaction, error)
	LinkReversal(ctx context.Context, organizationID, originalID, reversalID uuid.UUID) error
}

// EntityFilter narrows ListEntities. Zero-valued fields are ignored.
type EntityFilter struct {
	OrganizationID uuid.UUID
	EntityType     string
	EntityCode     string
	Status         string
	NameContains   string
	Limit          int
	Offset         int
}

// EntityPatch is a partial update; nil fields are left untouched.
type EntityPatch struct {
	EntityName    *string
	EntityCode    *string
	SmartCode     *string
	Status        *string
	Metadata      []byte
	BusinessRules []byte
}

// RelationshipFilter narrows QueryRelationships.
type RelationshipFilter struct {
	OrganizationID   uuid.UUID
	FromEntityID     *uuid.UUID
	ToEntityID       *uuid.UUID
	RelationshipType string
	ActiveOnly       bool
	EffectiveAt      *time.Time
	Limit            int
	Offset           int
}

// TransactionPatch is a restricted partial update: only status, total and
// the two metadata payloads may change after creation.
type TransactionPatch struct {
	Status          *string
	TotalAmount     *decimal.Decimal
	BusinessContext []byte
	Metadata        []byte
}
