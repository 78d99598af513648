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

const relationshipColumns = `id, organization_id, from_entity_id, to_entity_id, relationship_type,
	smart_code, relationship_data, is_active, effective_date, expiration_date, created_at, updated_at`

func (s *PostgresStore) InsertRelationship(ctx context.Context, r *models.Relationship) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO core_relationships (id, organization_id, from_entity_id, to_entity_id,
		   relationship_type, smart_code, relationship_data, is_active, effective_date, expiration_date,
		   created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		r.ID, r.OrganizationID, r.FromEntityID, r.ToEntityID,
		r.RelationshipType, r.SmartCode, r.RelationshipData, r.IsActive, r.EffectiveDate, r.ExpirationDate,
		r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return mapPgError("insert relationship", err)
	}
	return nil
}

func (s *PostgresStore) GetRelationship(ctx context.Context, organizationID, id uuid.UUID) (*models.Relationship, error) {
	var r models.Relationship
	err := s.db.QueryRow(ctx,
		`SELECT `+relationshipColumns+` FROM core_relationships WHERE id = $1 AND organization_id = $2`,
		id, organizationID,
	).Scan(&r.ID, &r.OrganizationID, &r.FromEntityID, &r.ToEntityID, &r.RelationshipType,
		&r.SmartCode, &r.RelationshipData, &r.IsActive, &r.EffectiveDate, &r.ExpirationDate,
		&r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get relationship: %w", err)
	}
	return &r, nil
}

func (s *PostgresStore) QueryRelationships(ctx context.Context, filter RelationshipFilter) ([]*models.Relationship, error) {
	conditions := []string{"organization_id = $1"}
	args := []any{filter.OrganizationID}
	argIdx := 2

	if filter.FromEntityID != nil {
		conditions = append(conditions, fmt.Sprintf("from_entity_id = $%d", argIdx))
		args = append(args, *filter.FromEntityID)
		argIdx++
	}
	if filter.ToEntityID != nil {
		conditions = append(conditions, fmt.Sprintf("to_entity_id = $%d", argIdx))
		args = append(args, *filter.ToEntityID)
		argIdx++
	}
	if filter.RelationshipType != "" {
		conditions = append(conditions, fmt.Sprintf("relationship_type = $%d", argIdx))
		args = append(args, filter.RelationshipType)
		argIdx++
	}
	if filter.ActiveOnly {
		conditions = append(conditions, "is_active = TRUE")
	}
	if filter.EffectiveAt != nil {
		conditions = append(conditions,
			fmt.Sprintf("(effective_date IS NULL OR effective_date <= $%d)", argIdx),
			fmt.Sprintf("(expiration_date IS NULL OR expiration_date > $%d)", argIdx+1))
		args = append(args, *filter.EffectiveAt, *filter.EffectiveAt)
		argIdx += 2
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	if limit > 500 {
		limit = 500
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(
		`SELECT `+relationshipColumns+` FROM core_relationships WHERE %s
		 ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		strings.Join(conditions, " AND "), argIdx, argIdx+1)
	args = append(args, limit, offset)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query relationships: %w", err)
	}
	defer rows.Close()

	var rels []*models.Relationship
	for rows.Next() {
		var r models.Relationship
		if err := rows.Scan(&r.ID, &r.OrganizationID, &r.FromEntityID, &r.ToEntityID, &r.RelationshipType,
			&r.SmartCode, &r.RelationshipData, &r.IsActive, &r.EffectiveDate, &r.ExpirationDate,
			&r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan relationship: %w", err)
		}
		rels = append(rels, &r)
	}
	return rels, rows.Err()
}

func (s *PostgresStore) DeactivateRelationship(ctx context.Context, organizationID, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE core_relationships SET is_active = FALSE, updated_at = NOW()
		 WHERE id = $1 AND organization_id = $2 AND is_active = TRUE`, id, organizationID)
	if err != nil {
		return fmt.Errorf("deactivate relationship: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DeactivateRelationshipsByScope(ctx context.Context, organizationID uuid.UUID, fromEntityIDs []uuid.UUID, types []string) (int, error) {
	if len(fromEntityIDs) == 0 || len(types) == 0 {
		return 0, nil
	}
	tag, err := s.db.Exec(ctx,
		`UPDATE core_relationships SET is_active = FALSE, updated_at = NOW()
		 WHERE organization_id = $1 AND from_entity_id = ANY($2) AND relationship_type = ANY($3)
		   AND is_active = TRUE`,
		organizationID, fromEntityIDs, types)
	if err != nil {
		return 0, fmt.Errorf("deactivate relationships by scope: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
