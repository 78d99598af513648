package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/herahq/engine/pkg/models"
)

const entityColumns = `id, organization_id, entity_type, entity_code, entity_name, smart_code,
	status, metadata, business_rules, created_at, updated_at`

func (s *PostgresStore) CreateEntity(ctx context.Context, e *models.Entity) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO core_entities (id, organization_id, entity_type, entity_code, entity_name,
		   smart_code, status, metadata, business_rules, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		e.ID, e.OrganizationID, e.EntityType, e.EntityCode, e.EntityName,
		e.SmartCode, e.Status, e.Metadata, e.BusinessRules, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return mapPgError("create entity", err)
	}
	return nil
}

func scanEntity(row pgx.Row) (*models.Entity, error) {
	var e models.Entity
	err := row.Scan(&e.ID, &e.OrganizationID, &e.EntityType, &e.EntityCode, &e.EntityName,
		&e.SmartCode, &e.Status, &e.Metadata, &e.BusinessRules, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan entity: %w", err)
	}
	return &e, nil
}

func (s *PostgresStore) GetEntity(ctx context.Context, organizationID, id uuid.UUID) (*models.Entity, error) {
	return scanEntity(s.db.QueryRow(ctx,
		`SELECT `+entityColumns+` FROM core_entities WHERE id = $1 AND organization_id = $2`,
		id, organizationID))
}

func (s *PostgresStore) ListEntities(ctx context.Context, filter EntityFilter) ([]*models.Entity, int, error) {
	conditions := []string{"organization_id = $1"}
	args := []any{filter.OrganizationID}
	argIdx := 2

	if filter.EntityType != "" {
		conditions = append(conditions, fmt.Sprintf("entity_type = $%d", argIdx))
		args = append(args, filter.EntityType)
		argIdx++
	}
	if filter.EntityCode != "" {
		conditions = append(conditions, fmt.Sprintf("entity_code = $%d", argIdx))
		args = append(args, filter.EntityCode)
		argIdx++
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, filter.Status)
		argIdx++
	}
	if filter.NameContains != "" {
		conditions = append(conditions, fmt.Sprintf("entity_name ILIKE $%d", argIdx))
		args = append(args, "%"+filter.NameContains+"%")
		argIdx++
	}

	where := strings.Join(conditions, " AND ")

	var total int
	countQuery := "SELECT COUNT(*) FROM core_entities WHERE " + where
	if err := s.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count entities: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	dataQuery := fmt.Sprintf(
		`SELECT `+entityColumns+` FROM core_entities WHERE %s
		 ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		where, argIdx, argIdx+1)
	args = append(args, limit, offset)

	rows, err := s.db.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list entities: %w", err)
	}
	defer rows.Close()

	var entities []*models.Entity
	for rows.Next() {
		var e models.Entity
		if err := rows.Scan(&e.ID, &e.OrganizationID, &e.EntityType, &e.EntityCode, &e.EntityName,
			&e.SmartCode, &e.Status, &e.Metadata, &e.BusinessRules, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan entity: %w", err)
		}
		entities = append(entities, &e)
	}
	return entities, total, rows.Err()
}

func (s *PostgresStore) UpdateEntity(ctx context.Context, organizationID, id uuid.UUID, patch EntityPatch) (*models.Entity, error) {
	sets := []string{"updated_at = NOW()"}
	args := []any{id, organizationID}
	argIdx := 3

	addSet := func(column string, value any) {
		sets = append(sets, fmt.Sprintf("%s = $%d", column, argIdx))
		args = append(args, value)
		argIdx++
	}

	if patch.EntityName != nil {
		addSet("entity_name", *patch.EntityName)
	}
	if patch.EntityCode != nil {
		addSet("entity_code", *patch.EntityCode)
	}
	if patch.SmartCode != nil {
		addSet("smart_code", *patch.SmartCode)
	}
	if patch.Status != nil {
		addSet("status", *patch.Status)
	}
	if patch.Metadata != nil {
		addSet("metadata", patch.Metadata)
	}
	if patch.BusinessRules != nil {
		addSet("business_rules", patch.BusinessRules)
	}

	query := fmt.Sprintf(
		`UPDATE core_entities SET %s WHERE id = $1 AND organization_id = $2 RETURNING `+entityColumns,
		strings.Join(sets, ", "))

	e, err := scanEntity(s.db.QueryRow(ctx, query, args...))
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, mapPgError("update entity", err)
	}
	return e, nil
}

func (s *PostgresStore) SetEntityStatus(ctx context.Context, organizationID, id uuid.UUID, status string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE core_entities SET status = $3, updated_at = NOW()
		 WHERE id = $1 AND organization_id = $2`, id, organizationID, status)
	if err != nil {
		return fmt.Errorf("set entity status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteEntity(ctx context.Context, organizationID, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM core_entities WHERE id = $1 AND organization_id = $2`, id, organizationID)
	if err != nil {
		return mapPgError("delete entity", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ActiveEntityCodeExists(ctx context.Context, organizationID uuid.UUID, entityType, entityCode string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM core_entities
		   WHERE organization_id = $1 AND entity_type = $2 AND entity_code = $3 AND status = 'active')`,
		organizationID, entityType, entityCode).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check entity code: %w", err)
	}
	return exists, nil
}

// CountEntityReferences scans transaction lines, transaction headers and
// relationships for anything still pointing at the entity. The result is a
// structured report so a blocked delete can say what blocks it.
func (s *PostgresStore) CountEntityReferences(ctx context.Context, organizationID, id uuid.UUID) (*models.ReferenceReport, error) {
	var report models.ReferenceReport
	err := s.db.QueryRow(ctx,
		`SELECT
		   (SELECT COUNT(*) FROM universal_transaction_lines
		      WHERE organization_id = $1 AND entity_id = $2),
		   (SELECT COUNT(*) FROM universal_transactions
		      WHERE organization_id = $1 AND (source_entity_id = $2 OR target_entity_id = $2)),
		   (SELECT COUNT(*) FROM core_relationships
		      WHERE organization_id = $1 AND (from_entity_id = $2 OR to_entity_id = $2))`,
		organizationID, id,
	).Scan(&report.TransactionLines, &report.TransactionHeaders, &report.Relationships)
	if err != nil {
		return nil, fmt.Errorf("count entity references: %w", err)
	}
	return &report, nil
}

func (s *PostgresStore) ForeignEntityIDs(ctx context.Context, organizationID uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := s.db.Query(ctx,
		`SELECT id FROM core_entities WHERE organization_id = $1 AND id = ANY($2)`,
		organizationID, ids)
	if err != nil {
		return nil, fmt.Errorf("check entity ownership: %w", err)
	}
	defer rows.Close()

	owned := make(map[uuid.UUID]bool, len(ids))
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan entity id: %w", err)
		}
		owned[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var foreign []uuid.UUID
	for _, id := range ids {
		if !owned[id] {
			foreign = append(foreign, id)
		}
	}
	return foreign, nil
}
