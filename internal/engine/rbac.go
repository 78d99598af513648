package engine

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/herahq/engine/internal/cache"
	"github.com/herahq/engine/internal/store"
	"github.com/herahq/engine/pkg/models"
)

// rolePermissions maps a role code to its permission set.
var rolePermissions = map[string][]string{
	models.RoleOwner:    {"entities:*", "dynamic_data:*", "relationships:*", "transactions:*", "admin:*"},
	models.RoleAdmin:    {"entities:*", "dynamic_data:*", "relationships:*", "transactions:*", "admin:keys"},
	models.RoleManager:  {"entities:*", "dynamic_data:*", "relationships:*", "transactions:*"},
	models.RoleUser:     {"entities:read", "entities:write", "dynamic_data:read", "dynamic_data:write", "relationships:read", "transactions:read", "transactions:write"},
	models.RoleReadOnly: {"entities:read", "dynamic_data:read", "relationships:read", "transactions:read"},
}

// hasRoleData is the payload convention on HAS_ROLE edges.
type hasRoleData struct {
	RoleCode  string `json:"role_code"`
	IsPrimary bool   `json:"is_primary"`
}

// memberOfData is the legacy payload convention on MEMBER_OF edges.
type memberOfData struct {
	Role string `json:"role"`
}

// ResolveRole walks the relationship graph to find the actor's effective
// role for one organization. HAS_ROLE edges win over legacy MEMBER_OF
// edges; among HAS_ROLE edges the one marked is_primary wins, then the
// newest. No resolvable role fails closed with AuthorizationError — there
// is no default role.
func (s *Service) ResolveRole(ctx context.Context, claims Claims, organizationID, actorEntityID uuid.UUID) (*models.ResolvedRole, error) {
	if err := s.guardOrganization(claims, organizationID); err != nil {
		return nil, err
	}
	if actorEntityID == uuid.Nil {
		return nil, validationf("actor_user_id is required")
	}

	cacheKey := cache.RoleKey(organizationID, actorEntityID)
	if raw, found, err := s.cache.Get(ctx, cacheKey); err == nil && found {
		var cached models.ResolvedRole
		if json.Unmarshal(raw, &cached) == nil {
			return &cached, nil
		}
	}

	resolved, err := s.resolveRoleFromGraph(ctx, organizationID, actorEntityID)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(resolved); err == nil {
		if err := s.cache.Set(ctx, cacheKey, raw, s.roleTTL); err != nil {
			slog.Warn("role cache write failed", "actor_entity_id", actorEntityID, "error", err)
		}
	}
	return resolved, nil
}

func (s *Service) resolveRoleFromGraph(ctx context.Context, organizationID, actorEntityID uuid.UUID) (*models.ResolvedRole, error) {
	now := time.Now().UTC()

	edges, err := s.store.QueryRelationships(ctx, store.RelationshipFilter{
		OrganizationID:   organizationID,
		FromEntityID:     &actorEntityID,
		RelationshipType: models.RelTypeHasRole,
		ActiveOnly:       true,
		EffectiveAt:      &now,
	})
	if err != nil {
		return nil, err
	}
	if role := pickPrimaryRole(edges); role != "" {
		return newResolvedRole(role, models.RoleSourcePrimary), nil
	}

	legacy, err := s.store.QueryRelationships(ctx, store.RelationshipFilter{
		OrganizationID:   organizationID,
		FromEntityID:     &actorEntityID,
		RelationshipType: models.RelTypeMemberOf,
		ActiveOnly:       true,
		EffectiveAt:      &now,
	})
	if err != nil {
		return nil, err
	}
	for _, edge := range legacy {
		var data memberOfData
		if len(edge.RelationshipData) == 0 {
			continue
		}
		if err := json.Unmarshal(edge.RelationshipData, &data); err != nil {
			continue
		}
		if data.Role != "" {
			return newResolvedRole(data.Role, models.RoleSourceLegacy), nil
		}
	}

	return nil, authorizationf("actor %s has no resolvable role for organization %s", actorEntityID, organizationID)
}

// pickPrimaryRole picks the winning HAS_ROLE edge: is_primary first, then
// newest created.
func pickPrimaryRole(edges []*models.Relationship) string {
	sort.SliceStable(edges, func(i, j int) bool {
		return edges[i].CreatedAt.After(edges[j].CreatedAt)
	})

	fallback := ""
	for _, edge := range edges {
		var data hasRoleData
		if len(edge.RelationshipData) == 0 {
			continue
		}
		if err := json.Unmarshal(edge.RelationshipData, &data); err != nil {
			continue
		}
		if data.RoleCode == "" {
			continue
		}
		if data.IsPrimary {
			return data.RoleCode
		}
		if fallback == "" {
			fallback = data.RoleCode
		}
	}
	return fallback
}

func newResolvedRole(role, source string) *models.ResolvedRole {
	role = strings.ToUpper(role)
	perms := rolePermissions[role]
	if perms == nil {
		perms = []string{}
	}
	return &models.ResolvedRole{Role: role, Source: source, Permissions: perms}
}
