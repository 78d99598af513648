package engine

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/herahq/engine/internal/cache"
	"github.com/herahq/engine/internal/store"
	"github.com/herahq/engine/pkg/models"
	"github.com/herahq/engine/pkg/smartcode"
)

// relationshipAllowsMany lists the types where several active edges of the
// same type may exist between the same ordered pair. Everything else gets
// replace semantics.
var relationshipAllowsMany = map[string]bool{
	models.RelTypeHasApp: true,
}

// RelationshipInput is the payload for one edge.
type RelationshipInput struct {
	FromEntityID     uuid.UUID       `json:"from_entity_id"    validate:"required"`
	ToEntityID       uuid.UUID       `json:"to_entity_id"      validate:"required"`
	RelationshipType string          `json:"relationship_type" validate:"required"`
	SmartCode        string          `json:"smart_code"        validate:"required"`
	RelationshipData json.RawMessage `json:"relationship_data,omitempty"`
	EffectiveDate    *time.Time      `json:"effective_date,omitempty"`
	ExpirationDate   *time.Time      `json:"expiration_date,omitempty"`
}

// RelationshipQuery narrows QueryRelationships. ActiveOnly defaults to
// true at the handler layer.
type RelationshipQuery struct {
	FromEntityID     *uuid.UUID `json:"from_entity_id,omitempty"`
	ToEntityID       *uuid.UUID `json:"to_entity_id,omitempty"`
	RelationshipType string     `json:"relationship_type,omitempty"`
	ActiveOnly       bool       `json:"active_only"`
	EffectiveAt      *time.Time `json:"effective_at,omitempty"`
	Limit            int        `json:"limit"`
	Offset           int        `json:"offset"`
}

// RelationshipWriteResult reports what a batch upsert wrote.
type RelationshipWriteResult struct {
	Count       int         `json:"count"`
	IDs         []uuid.UUID `json:"ids"`
	Deactivated int         `json:"deactivated"`
}

/// UpsertRelationships writes a set of edges with replace semantics: within
// one transaction, every existing active edge whose (from_entity_id,
// relationship_type) falls in the batch's scope is retired first, then the
// new set is inserted. Re-submitting a full edge set therefore never
// accumulates duplicates. Types in relationshipAllowsMany append instead.
func (s *Service) UpsertRelationships(ctx context.Context, claims Claims, organizationID uuid.UUID, inputs []RelationshipInput) (*RelationshipWriteResult, error) {
	if err := s.guardOrganization(claims, organizationID); err != nil {
		return nil, err
	}
	if len(inputs) == 0 {
		return nil, validationf("at least one relationship is required")
	}

	var endpointIDs []uuid.UUID
	for _, input := range inputs {
		if err := s.checkInput(input); err != nil {
			return nil, err
		}
		if _, err := smartcode.Parse(input.SmartCode); err != nil {
			return nil, validationf("%s", err.Error())
		}
		endpointIDs = append(endpointIDs, input.FromEntityID, input.ToEntityID)
	}
	if err := requireOwnedEntities(ctx, s.store, organizationID, endpointIDs...); err != nil {
		return nil, err
	}

	// Replace scope: distinct from-entities and types, minus append-only types.
	fromSet := make(map[uuid.UUID]bool)
	typeSet := make(map[string]bool)
	for _, input := range inputs {
		if relationshipAllowsMany[input.RelationshipType] {
			continue
		}
		fromSet[input.FromEntityID] = true
		typeSet[input.RelationshipType] = true
	}

	result := &RelationshipWriteResult{}
	err := s.store.WithTx(ctx, func(st store.Store) error {
		fromIDs := make([]uuid.UUID, 0, len(fromSet))
		for id := range fromSet {
			fromIDs = append(fromIDs, id)
		}
		types := make([]string, 0, len(typeSet))
		for t := range typeSet {
			types = append(types, t)
		}

		deactivated, err := st.DeactivateRelationshipsByScope(ctx, organizationID, fromIDs, types)
		if err != nil {
			return err
		}
		result.Deactivated = deactivated

		now := time.Now().UTC()
		for _, input := range inputs {
			rel := &models.Relationship{
				ID:               uuid.New(),
				OrganizationID:   organizationID,
				FromEntityID:     input.FromEntityID,
				ToEntityID:       input.ToEntityID,
				RelationshipType: input.RelationshipType,
				SmartCode:        input.SmartCode,
				RelationshipData: input.RelationshipData,
				IsActive:         true,
				EffectiveDate:    input.EffectiveDate,
				ExpirationDate:   input.ExpirationDate,
				CreatedAt:        now,
				UpdatedAt:        now,
			}
			if err := st.InsertRelationship(ctx, rel); err != nil {
				return mapStoreError(err, "relationship")
			}
			result.IDs = append(result.IDs, rel.ID)
		}
		result.Count = len(result.IDs)
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, input := range inputs {
		s.invalidateRoleCache(ctx, organizationID, input.RelationshipType, input.FromEntityID)
	}
	return result, nil
}

// QueryRelationships lists edges by from/to/type.
func (s *Service) QueryRelationships(ctx context.Context, claims Claims, organizationID uuid.UUID, query RelationshipQuery) ([]*models.Relationship, error) {
	if err := s.guardOrganization(claims, organizationID); err != nil {
		return nil, err
	}
	return s.store.QueryRelationships(ctx, store.RelationshipFilter{
		OrganizationID:   organizationID,
		FromEntityID:     query.FromEntityID,
		ToEntityID:       query.ToEntityID,
		RelationshipType: query.RelationshipType,
		ActiveOnly:       query.ActiveOnly,
		EffectiveAt:      query.EffectiveAt,
		Limit:            query.Limit,
		Offset:           query.Offset,
	})
}

// DeactivateRelationship retires one edge without deleting it.
func (s *Service) DeactivateRelationship(ctx context.Context, claims Claims, organizationID, id uuid.UUID) error {
	if err := s.guardOrganization(claims, organizationID); err != nil {
		return err
	}

	rel, err := s.store.GetRelationship(ctx, organizationID, id)
	if err != nil {
		return mapStoreError(err, "relationship")
	}
	if err := s.store.DeactivateRelationship(ctx, organizationID, id); err != nil {
		return mapStoreError(err, "relationship")
	}

	s.invalidateRoleCache(ctx, organizationID, rel.RelationshipType, rel.FromEntityID)
	return nil
}

// invalidateRoleCache drops the cached role resolution for an actor when an
// identity edge changes. Cache errors are logged, never surfaced; the next
// resolve just misses.
func (s *Service) invalidateRoleCache(ctx context.Context, organizationID uuid.UUID, relationshipType string, actorEntityID uuid.UUID) {
	if relationshipType != models.RelTypeHasRole && relationshipType != models.RelTypeMemberOf {
		return
	}
	if err := s.cache.Delete(ctx, cache.RoleKey(organizationID, actorEntityID)); err != nil {
		slog.Warn("role cache invalidation failed",
			"organization_id", organizationID, "actor_entity_id", actorEntityID, "error", err)
	}
}
