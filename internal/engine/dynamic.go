package engine

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/herahq/engine/internal/store"
	"github.com/herahq/engine/pkg/models"
	"github.com/herahq/engine/pkg/smartcode"
)

// DynamicFieldInput is one {field_name, field_type, value, smart_code}
// tuple. Exactly one value must be populated, matching field_type.
type DynamicFieldInput struct {
	FieldName    string           `json:"field_name" validate:"required"`
	FieldType    string           `json:"field_type" validate:"required,oneof=text number boolean date json"`
	ValueText    *string          `json:"field_value_text,omitempty"`
	ValueNumber  *decimal.Decimal `json:"field_value_number,omitempty"`
	ValueBoolean *bool            `json:"field_value_boolean,omitempty"`
	ValueDate    *time.Time       `json:"field_value_date,omitempty"`
	ValueJSON    json.RawMessage  `json:"field_value_json,omitempty"`
	SmartCode    string           `json:"smart_code" validate:"required"`
}

// SetDynamicFields upserts a batch of typed fields for one entity as a
// single logical operation. Re-setting a field_name replaces its prior
// value; rows never duplicate.
func (s *Service) SetDynamicFields(ctx context.Context, claims Claims, organizationID, entityID uuid.UUID, inputs []DynamicFieldInput) ([]*models.DynamicField, error) {
	if err := s.guardOrganization(claims, organizationID); err != nil {
		return nil, err
	}
	if len(inputs) == 0 {
		return nil, validationf("at least one field is required")
	}

	entity, err := s.store.GetEntity(ctx, organizationID, entityID)
	if err != nil {
		return nil, mapStoreError(err, "entity")
	}
	entityCode, err := smartcode.Parse(entity.SmartCode)
	if err != nil {
		return nil, validationf("entity has malformed smart code: %s", err.Error())
	}

	var fields []*models.DynamicField
	err = s.store.WithTx(ctx, func(st store.Store) error {
		for _, input := range inputs {
			field, err := s.upsertDynamicField(ctx, st, organizationID, entityID, entityCode, input)
			if err != nil {
				return err
			}
			fields = append(fields, field)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return fields, nil
}

// upsertDynamicField validates one field against the owning entity's
// taxonomy and writes it. Callers supply the tx-scoped store.
func (s *Service) upsertDynamicField(ctx context.Context, st store.Store, organizationID, entityID uuid.UUID, entityCode smartcode.Code, input DynamicFieldInput) (*models.DynamicField, error) {
	if err := s.checkInput(input); err != nil {
		return nil, err
	}

	fieldCode, err := smartcode.Parse(input.SmartCode)
	if err != nil {
		return nil, validationf("%s", err.Error())
	}
	if !fieldCode.SameDomain(entityCode) {
		return nil, validationf("field %q smart code domain %s does not match entity domain %s",
			input.FieldName, fieldCode.Domain, entityCode.Domain)
	}

	now := time.Now().UTC()
	field := &models.DynamicField{
		ID:             uuid.New(),
		EntityID:       entityID,
		OrganizationID: organizationID,
		FieldName:      input.FieldName,
		FieldType:      input.FieldType,
		ValueText:      input.ValueText,
		ValueNumber:    input.ValueNumber,
		ValueBoolean:   input.ValueBoolean,
		ValueDate:      input.ValueDate,
		ValueJSON:      input.ValueJSON,
		SmartCode:      input.SmartCode,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if !field.ValidTypeValue() {
		return nil, validationf("field %q: exactly one value must be set and it must match field_type %q",
			input.FieldName, input.FieldType)
	}

	stored, err := st.UpsertDynamicField(ctx, field)
	if err != nil {
		return nil, mapStoreError(err, "dynamic field")
	}
	return stored, nil
}

// GetDynamicFields returns all typed fields of one entity.
func (s *Service) GetDynamicFields(ctx context.Context, claims Claims, organizationID, entityID uuid.UUID) ([]*models.DynamicField, error) {
	if err := s.guardOrganization(claims, organizationID); err != nil {
		return nil, err
	}
	if err := requireOwnedEntities(ctx, s.store, organizationID, entityID); err != nil {
		return nil, err
	}
	return s.store.ListDynamicFields(ctx, organizationID, entityID)
}

// GetDynamicFieldsByName returns one named field across all entities of the
// organization.
func (s *Service) GetDynamicFieldsByName(ctx context.Context, claims Claims, organizationID uuid.UUID, fieldName string) ([]*models.DynamicField, error) {
	if err := s.guardOrganization(claims, organizationID); err != nil {
		return nil, err
	}
	if fieldName == "" {
		return nil, validationf("field_name is required")
	}
	return s.store.ListDynamicFieldsByName(ctx, organizationID, fieldName)
}
