package engine

import (
	"context"

	"github.com/google/uuid"

	"github.com/herahq/engine/internal/store"
)

// Claims identify the authenticated actor. The organization in the claims
// comes from the API key, independently of the organization_id the request
// names; the guard fails closed when the two disagree.
type Claims struct {
	ActorEntityID  uuid.UUID
	OrganizationID uuid.UUID
	Scopes         []string
}

// guardOrganization is the tenant isolation gate every operation passes
// through first. A bug here is a tenant data leak, so it fails closed on
// anything ambiguous.
func (s *Service) guardOrganization(claims Claims, organizationID uuid.UUID) error {
	if organizationID == uuid.Nil {
		return validationf("organization_id is required")
	}
	if claims.OrganizationID == uuid.Nil {
		return isolationf("request carries no authenticated organization")
	}
	if claims.OrganizationID != organizationID {
		return isolationf("request organization %s does not match authenticated organization %s",
			organizationID, claims.OrganizationID)
	}
	return nil
}

// requireOwnedEntities verifies that every referenced entity id belongs to
// the organization in scope. Nil ids are skipped.
func requireOwnedEntities(ctx context.Context, st store.Store, organizationID uuid.UUID, ids ...uuid.UUID) error {
	checked := make([]uuid.UUID, 0, len(ids))
	seen := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		if id == uuid.Nil || seen[id] {
			continue
		}
		seen[id] = true
		checked = append(checked, id)
	}
	if len(checked) == 0 {
		return nil
	}

	foreign, err := st.ForeignEntityIDs(ctx, organizationID, checked)
	if err != nil {
		return err
	}
	if len(foreign) > 0 {
		return isolationf("entity %s does not belong to organization %s", foreign[0], organizationID)
	}
	return nil
}
