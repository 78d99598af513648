package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Identity relationship types used by the role resolver.
const (
	RelTypeHasRole  = "HAS_ROLE"
	RelTypeMemberOf = "MEMBER_OF"
	RelTypeHasApp   = "HAS_APP"
)

// Relationship is a typed, directed edge between two entities. It carries
// both domain links (CAMPAIGN_HAS_CONTENT, STAFF_HAS_SKILL...) and identity
// membership (MEMBER_OF, HAS_ROLE).
type Relationship struct {
	ID               uuid.UUID       `db:"id"                json:"id"`
	OrganizationID   uuid.UUID       `db:"organization_id"   json:"organization_id"`
	FromEntityID     uuid.UUID       `db:"from_entity_id"    json:"from_entity_id"`
	ToEntityID       uuid.UUID       `db:"to_entity_id"      json:"to_entity_id"`
	RelationshipType string          `db:"relationship_type" json:"relationship_type"`
	SmartCode        string          `db:"smart_code"        json:"smart_code"`
	RelationshipData json.RawMessage `db:"relationship_data" json:"relationship_data,omitempty"`
	IsActive         bool            `db:"is_active"         json:"is_active"`
	EffectiveDate    *time.Time      `db:"effective_date"    json:"effective_date,omitempty"`
	ExpirationDate   *time.Time      `db:"expiration_date"   json:"expiration_date,omitempty"`
	CreatedAt        time.Time       `db:"created_at"        json:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at"        json:"updated_at"`
}
