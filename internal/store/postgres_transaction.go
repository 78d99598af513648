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

const transactionColumns = `id, organization_id, transaction_type, transaction_code, smart_code,
	transaction_date, source_entity_id, target_entity_id, total_amount, status,
	business_context, metadata, reversed_by_transaction_id, created_at, updated_at`

const transactionLineColumns = `id, transaction_id, organization_id, line_number, line_type,
	entity_id, description, quantity, unit_amount, line_amount, direction, smart_code, line_data,
	created_at, updated_at`

// InsertTransaction writes the header and all lines. Callers wrap it in
// WithTx so a failing line insert takes the header with it.
func (s *PostgresStore) InsertTransaction(ctx context.Context, t *models.Transaction) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO universal_transactions (id, organization_id, transaction_type, transaction_code,
		   smart_code, transaction_date, source_entity_id, target_entity_id, total_amount, status,
		   business_context, metadata, reversed_by_transaction_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		t.ID, t.OrganizationID, t.TransactionType, t.TransactionCode,
		t.SmartCode, t.TransactionDate, t.SourceEntityID, t.TargetEntityID, t.TotalAmount, t.Status,
		t.BusinessContext, t.Metadata, t.ReversedByID, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return mapPgError("insert transaction", err)
	}

	for _, line := range t.Lines {
		_, err := s.db.Exec(ctx,
			`INSERT INTO universal_transaction_lines (id, transaction_id, organization_id, line_number,
			   line_type, entity_id, description, quantity, unit_amount, line_amount, direction,
			   smart_code, line_data, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
			line.ID, line.TransactionID, line.OrganizationID, line.LineNumber,
			line.LineType, line.EntityID, line.Description, line.Quantity, line.UnitAmount,
			line.LineAmount, line.Direction, line.SmartCode, line.LineData,
			line.CreatedAt, line.UpdatedAt)
		if err != nil {
			return mapPgError(fmt.Sprintf("insert transaction line %d", line.LineNumber), err)
		}
	}
	return nil
}

func scanTransaction(row pgx.Row) (*models.Transaction, error) {
	var t models.Transaction
	err := row.Scan(&t.ID, &t.OrganizationID, &t.TransactionType, &t.TransactionCode, &t.SmartCode,
		&t.TransactionDate, &t.SourceEntityID, &t.TargetEntityID, &t.TotalAmount, &t.Status,
		&t.BusinessContext, &t.Metadata, &t.ReversedByID, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan transaction: %w", err)
	}
	return &t, nil
}

func (s *PostgresStore) GetTransaction(ctx context.Context, organizationID, id uuid.UUID, withLines bool) (*models.Transaction, error) {
	t, err := scanTransaction(s.db.QueryRow(ctx,
		`SELECT `+transactionColumns+` FROM universal_transactions
		 WHERE id = $1 AND organization_id = $2`, id, organizationID))
	if err != nil {
		return nil, err
	}

	if withLines {
		rows, err := s.db.Query(ctx,
			`SELECT `+transactionLineColumns+` FROM universal_transaction_lines
			 WHERE transaction_id = $1 AND organization_id = $2 ORDER BY line_number`,
			id, organizationID)
		if err != nil {
			return nil, fmt.Errorf("get transaction lines: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var l models.TransactionLine
			if err := rows.Scan(&l.ID, &l.TransactionID, &l.OrganizationID, &l.LineNumber, &l.LineType,
				&l.EntityID, &l.Description, &l.Quantity, &l.UnitAmount, &l.LineAmount, &l.Direction,
				&l.SmartCode, &l.LineData, &l.CreatedAt, &l.UpdatedAt); err != nil {
				return nil, fmt.Errorf("scan transaction line: %w", err)
			}
			t.Lines = append(t.Lines, &l)
		}
		if err := rows.Err(); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func (s *PostgresStore) UpdateTransaction(ctx context.Context, organizationID, id uuid.UUID, patch TransactionPatch) (*models.Transaction, error) {
	sets := []string{"updated_at = NOW()"}
	args := []any{id, organizationID}
	argIdx := 3

	addSet := func(column string, value any) {
		sets = append(sets, fmt.Sprintf("%s = $%d", column, argIdx))
		args = append(args, value)
		argIdx++
	}

	if patch.Status != nil {
		addSet("status", *patch.Status)
	}
	if patch.TotalAmount != nil {
		addSet("total_amount", *patch.TotalAmount)
	}
	if patch.BusinessContext != nil {
		addSet("business_context", patch.BusinessContext)
	}
	if patch.Metadata != nil {
		addSet("metadata", patch.Metadata)
	}

	query := fmt.Sprintf(
		`UPDATE universal_transactions SET %s
		 WHERE id = $1 AND organization_id = $2 RETURNING `+transactionColumns,
		strings.Join(sets, ", "))

	return scanTransaction(s.db.QueryRow(ctx, query, args...))
}

func (s *PostgresStore) LinkReversal(ctx context.Context, organizationID, originalID, reversalID uuid.UUID) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE universal_transactions
		 SET reversed_by_transaction_id = $3, status = 'reversed', updated_at = NOW()
		 WHERE id = $1 AND organization_id = $2 AND reversed_by_transaction_id IS NULL`,
		originalID, organizationID, reversalID)
	if err != nil {
		return fmt.Errorf("link reversal: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
