package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Entity statuses.
const (
	EntityStatusActive   = "active"
	EntityStatusArchived = "archived"
)

// Entity is a generic business object row. Its concrete meaning (customer,
// product, staff member, GL account...) comes from EntityType and the smart
// code, not from a dedicated table.
type Entity struct {
	ID             uuid.UUID       `db:"id"              json:"id"`
	OrganizationID uuid.UUID       `db:"organization_id" json:"organization_id"`
	EntityType     string          `db:"entity_type"     json:"entity_type"`
	EntityCode     string          `db:"entity_code"     json:"entity_code"`
	EntityName     string          `db:"entity_name"     json:"entity_name"`
	SmartCode      string          `db:"smart_code"      json:"smart_code"`
	Status         string          `db:"status"          json:"status"`
	Metadata       json.RawMessage `db:"metadata"        json:"metadata,omitempty"`
	BusinessRules  json.RawMessage `db:"business_rules"  json:"business_rules,omitempty"`
	CreatedAt      time.Time       `db:"created_at"      json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at"      json:"updated_at"`

	// Populated on read when the caller asks for them.
	DynamicData   []*DynamicField `db:"-" json:"dynamic_data,omitempty"`
	Relationships []*Relationship `db:"-" json:"relationships,omitempty"`
}
