package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/herahq/engine/pkg/models"
)

const dynamicFieldColumns = `id, entity_id, organization_id, field_name, field_type,
	field_value_text, field_value_number, field_value_boolean, field_value_date, field_value_json,
	smart_code, created_at, updated_at`

// UpsertDynamicField replaces the value stored for (entity_id, field_name).
// Re-setting the same field updates in place rather than duplicating rows.
func (s *PostgresStore) UpsertDynamicField(ctx context.Context, f *models.DynamicField) (*models.DynamicField, error) {
	row := s.db.QueryRow(ctx,
		`INSERT INTO core_dynamic_data (id, entity_id, organization_id, field_name, field_type,
		   field_value_text, field_value_number, field_value_boolean, field_value_date, field_value_json,
		   smart_code, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 ON CONFLICT (entity_id, field_name) DO UPDATE SET
		   field_type = EXCLUDED.field_type,
		   field_value_text = EXCLUDED.field_value_text,
		   field_value_number = EXCLUDED.field_value_number,
		   field_value_boolean = EXCLUDED.field_value_boolean,
		   field_value_date = EXCLUDED.field_value_date,
		   field_value_json = EXCLUDED.field_value_json,
		   smart_code = EXCLUDED.smart_code,
		   updated_at = NOW()
		 RETURNING `+dynamicFieldColumns,
		f.ID, f.EntityID, f.OrganizationID, f.FieldName, f.FieldType,
		f.ValueText, f.ValueNumber, f.ValueBoolean, f.ValueDate, f.ValueJSON,
		f.SmartCode, f.CreatedAt, f.UpdatedAt)

	result, err := scanDynamicField(row)
	if err != nil {
		return nil, mapPgError("upsert dynamic field", err)
	}
	return result, nil
}

func scanDynamicField(row pgx.Row) (*models.DynamicField, error) {
	var f models.DynamicField
	err := row.Scan(&f.ID, &f.EntityID, &f.OrganizationID, &f.FieldName, &f.FieldType,
		&f.ValueText, &f.ValueNumber, &f.ValueBoolean, &f.ValueDate, &f.ValueJSON,
		&f.SmartCode, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (s *PostgresStore) ListDynamicFields(ctx context.Context, organizationID, entityID uuid.UUID) ([]*models.DynamicField, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+dynamicFieldColumns+` FROM core_dynamic_data
		 WHERE organization_id = $1 AND entity_id = $2 ORDER BY field_name`,
		organizationID, entityID)
	if err != nil {
		return nil, fmt.Errorf("list dynamic fields: %w", err)
	}
	defer rows.Close()
	return collectDynamicFields(rows)
}

func (s *PostgresStore) ListDynamicFieldsByName(ctx context.Context, organizationID uuid.UUID, fieldName string) ([]*models.DynamicField, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+dynamicFieldColumns+` FROM core_dynamic_data
		 WHERE organization_id = $1 AND field_name = $2 ORDER BY entity_id`,
		organizationID, fieldName)
	if err != nil {
		return nil, fmt.Errorf("list dynamic fields by name: %w", err)
	}
	defer rows.Close()
	return collectDynamicFields(rows)
}

func collectDynamicFields(rows pgx.Rows) ([]*models.DynamicField, error) {
	var fields []*models.DynamicField
	for rows.Next() {
		f, err := scanDynamicField(rows)
		if err != nil {
			return nil, fmt.Errorf("scan dynamic field: %w", err)
		}
		fields = append(fields, f)
	}
	return fields, rows.Err()
}
