package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Organization is the tenant root. Every other record in the system is
// scoped to exactly one organization.
type Organization struct {
	ID                     uuid.UUID       `db:"id"                       json:"id"`
	OrganizationCode       string          `db:"organization_code"        json:"organization_code"`
	OrganizationName       string          `db:"organization_name"        json:"organization_name"`
	OrganizationType       string          `db:"organization_type"        json:"organization_type"`
	IndustryClassification string          `db:"industry_classification"  json:"industry_classification,omitempty"`
	ParentOrganizationID   *uuid.UUID      `db:"parent_organization_id"   json:"parent_organization_id,omitempty"`
	Status                 string          `db:"status"                   json:"status"`
	Settings               json.RawMessage `db:"settings"                 json:"settings,omitempty"`
	CreatedAt              time.Time       `db:"created_at"               json:"created_at"`
	UpdatedAt              time.Time       `db:"updated_at"               json:"updated_at"`
}
