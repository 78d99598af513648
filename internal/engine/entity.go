package engine

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/herahq/engine/internal/store"
	"github.com/herahq/engine/pkg/models"
	"github.com/herahq/engine/pkg/smartcode"
)

// EntityInput is the payload for creating an entity, optionally with its
// initial dynamic fields in the same atomic write.
type EntityInput struct {
	EntityType    string              `json:"entity_type"    validate:"required"`
	EntityCode    string              `json:"entity_code"    validate:"required"`
	EntityName    string              `json:"entity_name"    validate:"required"`
	SmartCode     string              `json:"smart_code"     validate:"required"`
	Metadata      json.RawMessage     `json:"metadata,omitempty"`
	BusinessRules json.RawMessage     `json:"business_rules,omitempty"`
	Dynamic       []DynamicFieldInput `json:"dynamic,omitempty" validate:"omitempty,dive"`
}

// EntityPatchInput is a partial update; nil fields are left untouched.
type EntityPatchInput struct {
	EntityName    *string         `json:"entity_name,omitempty"`
	EntityCode    *string         `json:"entity_code,omitempty"`
	SmartCode     *string         `json:"smart_code,omitempty"`
	Metadata      json.RawMessage `json:"metadata,omitempty"`
	BusinessRules json.RawMessage `json:"business_rules,omitempty"`
}

// ReadOptions control what a read pulls in alongside the entity row.
type ReadOptions struct {
	IncludeDynamic       bool
	IncludeRelationships bool
}

// EntityQuery narrows QueryEntities.
type EntityQuery struct {
	EntityType   string `json:"entity_type"`
	EntityCode   string `json:"entity_code"`
	Status       string `json:"status"`
	NameContains string `json:"name_contains"`
	Limit        int    `json:"limit"`
	Offset       int    `json:"offset"`
}

// CreateEntity validates and stores one entity, with any initial dynamic
// fields, in a single store transaction.
func (s *Service) CreateEntity(ctx context.Context, claims Claims, organizationID uuid.UUID, input EntityInput) (*models.Entity, error) {
	if err := s.guardOrganization(claims, organizationID); err != nil {
		return nil, err
	}

	var created *models.Entity
	err := s.store.WithTx(ctx, func(st store.Store) error {
		e, err := s.createEntity(ctx, st, organizationID, input)
		if err != nil {
			return err
		}
		created = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// createEntity is the tx-scoped create used by both the single and bulk
// paths.
func (s *Service) createEntity(ctx context.Context, st store.Store, organizationID uuid.UUID, input EntityInput) (*models.Entity, error) {
	if err := s.checkInput(input); err != nil {
		return nil, err
	}

	code, err := smartcode.Parse(input.SmartCode)
	if err != nil {
		return nil, validationf("%s", err.Error())
	}

	exists, err := st.ActiveEntityCodeExists(ctx, organizationID, input.EntityType, input.EntityCode)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, validationf("an active %s entity with code %q already exists", input.EntityType, input.EntityCode)
	}

	now := time.Now().UTC()
	entity := &models.Entity{
		ID:             uuid.New(),
		OrganizationID: organizationID,
		EntityType:     input.EntityType,
		EntityCode:     input.EntityCode,
		EntityName:     input.EntityName,
		SmartCode:      input.SmartCode,
		Status:         models.EntityStatusActive,
		Metadata:       input.Metadata,
		BusinessRules:  input.BusinessRules,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := st.CreateEntity(ctx, entity); err != nil {
		return nil, mapStoreError(err, "entity")
	}

	for _, fieldInput := range input.Dynamic {
		field, err := s.upsertDynamicField(ctx, st, organizationID, entity.ID, code, fieldInput)
		if err != nil {
			return nil, err
		}
		entity.DynamicData = append(entity.DynamicData, field)
	}
	return entity, nil
}

// GetEntity reads one entity by id, optionally with dynamic data and
// relationships.
func (s *Service) GetEntity(ctx context.Context, claims Claims, organizationID, id uuid.UUID, opts ReadOptions) (*models.Entity, error) {
	if err := s.guardOrganization(claims, organizationID); err != nil {
		return nil, err
	}

	entity, err := s.store.GetEntity(ctx, organizationID, id)
	if err != nil {
		return nil, mapStoreError(err, "entity")
	}
	if err := s.loadIncludes(ctx, organizationID, entity, opts); err != nil {
		return nil, err
	}
	return entity, nil
}

// QueryEntities lists entities by type and filters.
func (s *Service) QueryEntities(ctx context.Context, claims Claims, organizationID uuid.UUID, query EntityQuery, opts ReadOptions) ([]*models.Entity, int, error) {
	if err := s.guardOrganization(claims, organizationID); err != nil {
		return nil, 0, err
	}

	entities, total, err := s.store.ListEntities(ctx, store.EntityFilter{
		OrganizationID: organizationID,
		EntityType:     query.EntityType,
		EntityCode:     query.EntityCode,
		Status:         query.Status,
		NameContains:   query.NameContains,
		Limit:          query.Limit,
		Offset:         query.Offset,
	})
	if err != nil {
		return nil, 0, err
	}

	if opts.IncludeDynamic || opts.IncludeRelationships {
		for _, entity := range entities {
			if err := s.loadIncludes(ctx, organizationID, entity, opts); err != nil {
				return nil, 0, err
			}
		}
	}
	return entities, total, nil
}

func (s *Service) loadIncludes(ctx context.Context, organizationID uuid.UUID, entity *models.Entity, opts ReadOptions) error {
	if opts.IncludeDynamic {
		fields, err := s.store.ListDynamicFields(ctx, organizationID, entity.ID)
		if err != nil {
			return err
		}
		entity.DynamicData = fields
	}
	if opts.IncludeRelationships {
		rels, err := s.store.QueryRelationships(ctx, store.RelationshipFilter{
			OrganizationID: organizationID,
			FromEntityID:   &entity.ID,
			ActiveOnly:     true,
		})
		if err != nil {
			return err
		}
		entity.Relationships = rels
	}
	return nil
}

// UpdateEntity applies a partial patch.
func (s *Service) UpdateEntity(ctx context.Context, claims Claims, organizationID, id uuid.UUID, patch EntityPatchInput) (*models.Entity, error) {
	if err := s.guardOrganization(claims, organizationID); err != nil {
		return nil, err
	}
	return s.updateEntity(ctx, s.store, organizationID, id, patch)
}

func (s *Service) updateEntity(ctx context.Context, st store.Store, organizationID, id uuid.UUID, patch EntityPatchInput) (*models.Entity, error) {
	if patch.SmartCode != nil {
		if _, err := smartcode.Parse(*patch.SmartCode); err != nil {
			return nil, validationf("%s", err.Error())
		}
	}

	entity, err := st.UpdateEntity(ctx, organizationID, id, store.EntityPatch{
		EntityName:    patch.EntityName,
		EntityCode:    patch.EntityCode,
		SmartCode:     patch.SmartCode,
		Metadata:      patch.Metadata,
		BusinessRules: patch.BusinessRules,
	})
	if err != nil {
		return nil, mapStoreError(err, "entity")
	}
	return entity, nil
}

// ArchiveEntity soft-deletes: the row stays, status flips to archived.
func (s *Service) ArchiveEntity(ctx context.Context, claims Claims, organizationID, id uuid.UUID) error {
	if err := s.guardOrganization(claims, organizationID); err != nil {
		return err
	}
	if err := s.store.SetEntityStatus(ctx, organizationID, id, models.EntityStatusArchived); err != nil {
		return mapStoreError(err, "entity")
	}
	return nil
}

// DeleteEntity hard-deletes, but only when nothing references the entity.
// Anything with transaction history must be archived instead; audit trails
// are never destroyed.
func (s *Service) DeleteEntity(ctx context.Context, claims Claims, organizationID, id uuid.UUID) error {
	if err := s.guardOrganization(claims, organizationID); err != nil {
		return err
	}
	return s.deleteEntity(ctx, s.store, organizationID, id)
}

func (s *Service) deleteEntity(ctx context.Context, st store.Store, organizationID, id uuid.UUID) error {
	refs, err := st.CountEntityReferences(ctx, organizationID, id)
	if err != nil {
		return err
	}
	if refs.Total() > 0 {
		return referentialf(*refs,
			"entity %s is referenced by %d transaction line(s), %d transaction header(s) and %d relationship(s)",
			id, refs.TransactionLines, refs.TransactionHeaders, refs.Relationships)
	}

	if err := st.DeleteEntity(ctx, organizationID, id); err != nil {
		return mapStoreError(err, "entity")
	}
	return nil
}
