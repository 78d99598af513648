package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Dynamic field types. Exactly one value column is populated per row, and
// it must agree with FieldType.
const (
	FieldTypeText    = "text"
	FieldTypeNumber  = "number"
	FieldTypeBoolean = "boolean"
	FieldTypeDate    = "date"
	FieldTypeJSON    = "json"
)

// DynamicField is one typed attribute attached to an entity outside its
// fixed columns. One logical attribute per (entity_id, field_name); sets
// are upserts.
type DynamicField struct {
	ID             uuid.UUID        `db:"id"                  json:"id"`
	EntityID       uuid.UUID        `db:"entity_id"           json:"entity_id"`
	OrganizationID uuid.UUID        `db:"organization_id"     json:"organization_id"`
	FieldName      string           `db:"field_name"          json:"field_name"`
	FieldType      string           `db:"field_type"          json:"field_type"`
	ValueText      *string          `db:"field_value_text"    json:"field_value_text,omitempty"`
	ValueNumber    *decimal.Decimal `db:"field_value_number"  json:"field_value_number,omitempty"`
	ValueBoolean   *bool            `db:"field_value_boolean" json:"field_value_boolean,omitempty"`
	ValueDate      *time.Time       `db:"field_value_date"    json:"field_value_date,omitempty"`
	ValueJSON      json.RawMessage  `db:"field_value_json"    json:"field_value_json,omitempty"`
	SmartCode      string           `db:"smart_code"          json:"smart_code"`
	CreatedAt      time.Time        `db:"created_at"          json:"created_at"`
	UpdatedAt      time.Time        `db:"updated_at"          json:"updated_at"`
}

// ValidTypeValue reports whether the populated value column matches
// FieldType. Exactly one value must be set.
func (f *DynamicField) ValidTypeValue() bool {
	populated := 0
	var matches bool
	if f.ValueText != nil {
		populated++
		matches = f.FieldType == FieldTypeText
	}
	if f.ValueNumber != nil {
		populated++
		matches = f.FieldType == FieldTypeNumber
	}
	if f.ValueBoolean != nil {
		populated++
		matches = f.FieldType == FieldTypeBoolean
	}
	if f.ValueDate != nil {
		populated++
		matches = f.FieldType == FieldTypeDate
	}
	if len(f.ValueJSON) > 0 {
		populated++
		matches = f.FieldType == FieldTypeJSON
	}
	return populated == 1 && matches
}
