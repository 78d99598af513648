package cache

import (
	"fmt"

	"github.com/google/uuid"
)

// RoleKey caches an actor's resolved role for one organization.
func RoleKey(organizationID, actorEntityID uuid.UUID) string {
	return fmt.Sprintf("rbac:role:%s:%s", organizationID, actorEntityID)
}

func RateLimitKey(keyPrefix string) string {
	return fmt.Sprintf("ratelimit:%s", keyPrefix)
}
