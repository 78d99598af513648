package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transaction statuses.
const (
	TxnStatusPending  = "pending"
	TxnStatusPosted   = "posted"
	TxnStatusReversed = "reversed"
)

// Line directions. Financial transactions must net debit == credit.
const (
	DirectionDebit  = "debit"
	DirectionCredit = "credit"
)

// Transaction is a business event header. Financial effects live in the
// ordered line records; history is append-only (reversal compensates, it
// never mutates).
type Transaction struct {
	ID              uuid.UUID       `db:"id"                         json:"id"`
	OrganizationID  uuid.UUID       `db:"organization_id"            json:"organization_id"`
	TransactionType string          `db:"transaction_type"           json:"transaction_type"`
	TransactionCode string          `db:"transaction_code"           json:"transaction_code"`
	SmartCode       string          `db:"smart_code"                 json:"smart_code"`
	TransactionDate time.Time       `db:"transaction_date"           json:"transaction_date"`
	SourceEntityID  *uuid.UUID      `db:"source_entity_id"           json:"source_entity_id,omitempty"`
	TargetEntityID  *uuid.UUID      `db:"target_entity_id"           json:"target_entity_id,omitempty"`
	TotalAmount     decimal.Decimal `db:"total_amount"               json:"total_amount"`
	Status          string          `db:"status"                     json:"status"`
	BusinessContext json.RawMessage `db:"business_context"           json:"business_context,omitempty"`
	Metadata        json.RawMessage `db:"metadata"                   json:"metadata,omitempty"`
	ReversedByID    *uuid.UUID      `db:"reversed_by_transaction_id" json:"reversed_by_transaction_id,omitempty"`
	CreatedAt       time.Time       `db:"created_at"                 json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at"                 json:"updated_at"`

	Lines []*TransactionLine `db:"-" json:"lines,omitempty"`
}

// TransactionLine is one itemized effect of a transaction.
type TransactionLine struct {
	ID             uuid.UUID       `db:"id"              json:"id"`
	TransactionID  uuid.UUID       `db:"transaction_id"  json:"transaction_id"`
	OrganizationID uuid.UUID       `db:"organization_id" json:"organization_id"`
	LineNumber     int             `db:"line_number"     json:"line_number"`
	LineType       string          `db:"line_type"       json:"line_type"`
	EntityID       *uuid.UUID      `db:"entity_id"       json:"entity_id,omitempty"`
	Description    string          `db:"description"     json:"description,omitempty"`
	Quantity       decimal.Decimal `db:"quantity"        json:"quantity"`
	UnitAmount     decimal.Decimal `db:"unit_amount"     json:"unit_amount"`
	LineAmount     decimal.Decimal `db:"line_amount"     json:"line_amount"`
	Direction      string          `db:"direction"       json:"direction,omitempty"`
	SmartCode      string          `db:"smart_code"      json:"smart_code"`
	LineData       json.RawMessage `db:"line_data"       json:"line_data,omitempty"`
	CreatedAt      time.Time       `db:"created_at"      json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at"      json:"updated_at"`
}
