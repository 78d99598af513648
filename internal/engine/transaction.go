package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/herahq/engine/internal/store"
	"github.com/herahq/engine/pkg/models"
	"github.com/herahq/engine/pkg/smartcode"
)

// Transaction types that are always subject to the balance check, whatever
// their smart code says.
var financialTransactionTypes = map[string]bool{
	"GL_JOURNAL":    true,
	"JOURNAL_ENTRY": true,
	"GL_POSTING":    true,
}

// TransactionInput is the payload for creating a header with its lines.
type TransactionInput struct {
	TransactionType string                 `json:"transaction_type" validate:"required"`
	TransactionCode string                 `json:"transaction_code"`
	SmartCode       string                 `json:"smart_code"       validate:"required"`
	TransactionDate *time.Time             `json:"transaction_date,omitempty"`
	SourceEntityID  *uuid.UUID             `json:"source_entity_id,omitempty"`
	TargetEntityID  *uuid.UUID             `json:"target_entity_id,omitempty"`
	TotalAmount     *decimal.Decimal       `json:"total_amount,omitempty"`
	Status          string                 `json:"status,omitempty" validate:"omitempty,oneof=pending posted"`
	BusinessContext json.RawMessage        `json:"business_context,omitempty"`
	Metadata        json.RawMessage        `json:"metadata,omitempty"`
	Lines           []TransactionLineInput `json:"lines" validate:"required,min=1,dive"`
}

// TransactionLineInput is one itemized effect.
type TransactionLineInput struct {
	LineType    string           `json:"line_type,omitempty"`
	EntityID    *uuid.UUID       `json:"entity_id,omitempty"`
	Description string           `json:"description,omitempty"`
	Quantity    *decimal.Decimal `json:"quantity,omitempty"`
	UnitAmount  *decimal.Decimal `json:"unit_amount,omitempty"`
	LineAmount  *decimal.Decimal `json:"line_amount,omitempty"`
	Direction   string           `json:"direction,omitempty" validate:"omitempty,oneof=debit credit"`
	SmartCode   string           `json:"smart_code" validate:"required"`
	LineData    json.RawMessage  `json:"line_data,omitempty"`
}

// TransactionPatchInput is the restricted post-creation update surface.
type TransactionPatchInput struct {
	Status          *string         `json:"status,omitempty" validate:"omitempty,oneof=pending posted cancelled"`
	BusinessContext json.RawMessage `json:"business_context,omitempty"`
	Metadata        json.RawMessage `json:"metadata,omitempty"`
}

// CreateTransaction writes header and lines in one store transaction,
// enforcing the GL balance invariant for financial smart codes before
// anything is persisted.
func (s *Service) CreateTransaction(ctx context.Context, claims Claims, organizationID uuid.UUID, input TransactionInput) (*models.Transaction, error) {
	if err := s.guardOrganization(claims, organizationID); err != nil {
		return nil, err
	}

	var created *models.Transaction
	err := s.store.WithTx(ctx, func(st store.Store) error {
		t, err := s.createTransaction(ctx, st, organizationID, input)
		if err != nil {
			return err
		}
		created = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *Service) createTransaction(ctx context.Context, st store.Store, organizationID uuid.UUID, input TransactionInput) (*models.Transaction, error) {
	if err := s.checkInput(input); err != nil {
		return nil, err
	}

	headerCode, err := smartcode.Parse(input.SmartCode)
	if err != nil {
		return nil, validationf("%s", err.Error())
	}

	var entityRefs []uuid.UUID
	if input.SourceEntityID != nil {
		entityRefs = append(entityRefs, *input.SourceEntityID)
	}
	if input.TargetEntityID != nil {
		entityRefs = append(entityRefs, *input.TargetEntityID)
	}

	now := time.Now().UTC()
	txnID := uuid.New()

	txnDate := now
	if input.TransactionDate != nil {
		txnDate = input.TransactionDate.UTC()
	}
	txnCode := input.TransactionCode
	if txnCode == "" {
		txnCode = fmt.Sprintf("TXN-%s", txnID)
	}
	status := input.Status
	if status == "" {
		status = models.TxnStatusPosted
	}

	lines := make([]*models.TransactionLine, 0, len(input.Lines))
	for i, lineInput := range input.Lines {
		if _, err := smartcode.Parse(lineInput.SmartCode); err != nil {
			return nil, validationf("line %d: %s", i+1, err.Error())
		}
		if lineInput.EntityID != nil {
			entityRefs = append(entityRefs, *lineInput.EntityID)
		}

		quantity := decimal.NewFromInt(1)
		if lineInput.Quantity != nil {
			quantity = *lineInput.Quantity
		}
		unitAmount := decimal.Zero
		if lineInput.UnitAmount != nil {
			unitAmount = *lineInput.UnitAmount
		}
		lineAmount := quantity.Mul(unitAmount)
		if lineInput.LineAmount != nil {
			lineAmount = *lineInput.LineAmount
		}

		lines = append(lines, &models.TransactionLine{
			ID:             uuid.New(),
			TransactionID:  txnID,
			OrganizationID: organizationID,
			LineNumber:     i + 1,
			LineType:       lineInput.LineType,
			EntityID:       lineInput.EntityID,
			Description:    lineInput.Description,
			Quantity:       quantity,
			UnitAmount:     unitAmount,
			LineAmount:     lineAmount,
			Direction:      lineInput.Direction,
			SmartCode:      lineInput.SmartCode,
			LineData:       lineInput.LineData,
			CreatedAt:      now,
			UpdatedAt:      now,
		})
	}

	if err := requireOwnedEntities(ctx, st, organizationID, entityRefs...); err != nil {
		return nil, err
	}

	financial := headerCode.IsFinancial() || financialTransactionTypes[input.TransactionType]
	if financial {
		if err := checkBalance(lines); err != nil {
			return nil, err
		}
	}

	total := sumLineAmounts(lines, financial)
	if input.TotalAmount != nil {
		total = *input.TotalAmount
	}

	txn := &models.Transaction{
		ID:              txnID,
		OrganizationID:  organizationID,
		TransactionType: input.TransactionType,
		TransactionCode: txnCode,
		SmartCode:       input.SmartCode,
		TransactionDate: txnDate,
		SourceEntityID:  input.SourceEntityID,
		TargetEntityID:  input.TargetEntityID,
		TotalAmount:     total,
		Status:          status,
		BusinessContext: input.BusinessContext,
		Metadata:        input.Metadata,
		Lines:           lines,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := st.InsertTransaction(ctx, txn); err != nil {
		return nil, mapStoreError(err, "transaction")
	}
	return txn, nil
}

// checkBalance enforces the GL invariant: debit-direction amounts must
// equal credit-direction amounts, exactly, before anything commits.
func checkBalance(lines []*models.TransactionLine) error {
	debits := decimal.Zero
	credits := decimal.Zero
	for _, line := range lines {
		switch line.Direction {
		case models.DirectionDebit:
			debits = debits.Add(line.LineAmount)
		case models.DirectionCredit:
			credits = credits.Add(line.LineAmount)
		default:
			return validationf("line %d: financial transactions require a debit or credit direction on every line", line.LineNumber)
		}
	}
	if !debits.Equal(credits) {
		return balancef("debits %s do not equal credits %s", debits, credits)
	}
	return nil
}

// sumLineAmounts derives the header total: the debit side for financial
// transactions, the plain line sum otherwise.
func sumLineAmounts(lines []*models.TransactionLine, financial bool) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		if financial && line.Direction != models.DirectionDebit {
			continue
		}
		total = total.Add(line.LineAmount)
	}
	return total
}

// GetTransaction reads a header, optionally with its lines.
func (s *Service) GetTransaction(ctx context.Context, claims Claims, organizationID, id uuid.UUID, withLines bool) (*models.Transaction, error) {
	if err := s.guardOrganization(claims, organizationID); err != nil {
		return nil, err
	}
	txn, err := s.store.GetTransaction(ctx, organizationID, id, withLines)
	if err != nil {
		return nil, mapStoreError(err, "transaction")
	}
	return txn, nil
}

// UpdateTransaction patches status and metadata. Lines are immutable after
// creation; financial corrections go through ReverseTransaction.
func (s *Service) UpdateTransaction(ctx context.Context, claims Claims, organizationID, id uuid.UUID, patch TransactionPatchInput) (*models.Transaction, error) {
	if err := s.guardOrganization(claims, organizationID); err != nil {
		return nil, err
	}
	if err := s.checkInput(patch); err != nil {
		return nil, err
	}

	txn, err := s.store.UpdateTransaction(ctx, organizationID, id, store.TransactionPatch{
		Status:          patch.Status,
		BusinessContext: patch.BusinessContext,
		Metadata:        patch.Metadata,
	})
	if err != nil {
		return nil, mapStoreError(err, "transaction")
	}
	return txn, nil
}

// ReverseTransaction creates a compensating transaction that negates the
// original's financial effect. History is never mutated: the original rows
// stay, linked to the reversal.
func (s *Service) ReverseTransaction(ctx context.Context, claims Claims, organizationID, id uuid.UUID, reason string) (*models.Transaction, error) {
	if err := s.guardOrganization(claims, organizationID); err != nil {
		return nil, err
	}

	original, err := s.store.GetTransaction(ctx, organizationID, id, true)
	if err != nil {
		return nil, mapStoreError(err, "transaction")
	}
	if original.ReversedByID != nil {
		return nil, validationf("transaction %s is already reversed by %s", id, *original.ReversedByID)
	}

	now := time.Now().UTC()
	reversal := &models.Transaction{
		ID:              uuid.New(),
		OrganizationID:  organizationID,
		TransactionType: original.TransactionType,
		TransactionCode: original.TransactionCode + "-REV",
		SmartCode:       original.SmartCode,
		TransactionDate: now,
		SourceEntityID:  original.SourceEntityID,
		TargetEntityID:  original.TargetEntityID,
		TotalAmount:     original.TotalAmount,
		Status:          models.TxnStatusPosted,
		Metadata:        reversalMetadata(original.ID, reason),
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	for _, line := range original.Lines {
		reversed := &models.TransactionLine{
			ID:             uuid.New(),
			TransactionID:  reversal.ID,
			OrganizationID: organizationID,
			LineNumber:     line.LineNumber,
			LineType:       line.LineType,
			EntityID:       line.EntityID,
			Description:    line.Description,
			Quantity:       line.Quantity,
			UnitAmount:     line.UnitAmount,
			LineAmount:     line.LineAmount,
			Direction:      line.Direction,
			SmartCode:      line.SmartCode,
			LineData:       line.LineData,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		switch line.Direction {
		case models.DirectionDebit:
			reversed.Direction = models.DirectionCredit
		case models.DirectionCredit:
			reversed.Direction = models.DirectionDebit
		default:
			// Non-financial lines negate the amount instead.
			reversed.LineAmount = line.LineAmount.Neg()
			reversed.UnitAmount = line.UnitAmount.Neg()
		}
		reversal.Lines = append(reversal.Lines, reversed)
	}

	err = s.store.WithTx(ctx, func(st store.Store) error {
		if err := st.InsertTransaction(ctx, reversal); err != nil {
			return mapStoreError(err, "reversal transaction")
		}
		return st.LinkReversal(ctx, organizationID, original.ID, reversal.ID)
	})
	if err != nil {
		return nil, err
	}
	return reversal, nil
}

func reversalMetadata(originalID uuid.UUID, reason string) json.RawMessage {
	meta, _ := json.Marshal(map[string]string{
		"reversal_of": originalID.String(),
		"reason":      reason,
	})
	return meta
}
