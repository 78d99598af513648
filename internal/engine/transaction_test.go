package engine_test

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/herahq/engine/internal/engine"
	"github.com/herahq/engine/pkg/models"
)

func decPtr(d decimal.Decimal) *decimal.Decimal { return &d }

func glLine(direction string, amount int64) engine.TransactionLineInput {
	return engine.TransactionLineInput{
		LineType:   "gl_line",
		LineAmount: decPtr(decimal.NewFromInt(amount)),
		Direction:  direction,
		SmartCode:  "HERA.FIN.GL.LINE.POSTING.v1",
	}
}

func TestCreateTransaction_BalancedJournal(t *testing.T) {
	svc, st, _, claims, org := newTestService()

	txn, err := svc.CreateTransaction(context.Background(), claims, org, engine.TransactionInput{
		TransactionType: "GL_JOURNAL",
		SmartCode:       "HERA.FIN.GL.TXN.JOURNAL.v1",
		Lines: []engine.TransactionLineInput{
			glLine(models.DirectionDebit, 100),
			glLine(models.DirectionCredit, 60),
			glLine(models.DirectionCredit, 40),
		},
	})
	require.NoError(t, err)

	assert.Len(t, txn.Lines, 3)
	assert.True(t, txn.TotalAmount.Equal(decimal.NewFromInt(100)), "total should be the debit side, got %s", txn.TotalAmount)
	assert.Equal(t, models.TxnStatusPosted, txn.Status)
	assert.True(t, strings.HasPrefix(txn.TransactionCode, "TXN-"))
	assert.Len(t, st.transactions, 1)
}

func TestCreateTransaction_UnbalancedJournalRejected(t *testing.T) {
	svc, st, _, claims, org := newTestService()

	_, err := svc.CreateTransaction(context.Background(), claims, org, engine.TransactionInput{
		TransactionType: "GL_JOURNAL",
		SmartCode:       "HERA.FIN.GL.TXN.JOURNAL.v1",
		Lines: []engine.TransactionLineInput{
			glLine(models.DirectionDebit, 100),
			glLine(models.DirectionCredit, 99),
		},
	})
	require.Error(t, err)

	engErr, ok := engine.AsEngineError(err)
	require.True(t, ok)
	assert.Equal(t, engine.KindBalanceViolation, engErr.Kind)
	assert.Empty(t, st.transactions)
}

func TestCreateTransaction_FinancialBySmartCode(t *testing.T) {
	svc, _, _, claims, org := newTestService()

	// Not in the financial type list, but the smart code carries GL.
	_, err := svc.CreateTransaction(context.Background(), claims, org, engine.TransactionInput{
		TransactionType: "adjustment",
		SmartCode:       "HERA.SALON.GL.TXN.ADJUST.v1",
		Lines: []engine.TransactionLineInput{
			glLine(models.DirectionDebit, 10),
			glLine(models.DirectionCredit, 5),
		},
	})
	require.Error(t, err)

	engErr, ok := engine.AsEngineError(err)
	require.True(t, ok)
	assert.Equal(t, engine.KindBalanceViolation, engErr.Kind)
}

func TestCreateTransaction_FinancialRequiresDirections(t *testing.T) {
	svc, _, _, claims, org := newTestService()

	_, err := svc.CreateTransaction(context.Background(), claims, org, engine.TransactionInput{
		TransactionType: "GL_JOURNAL",
		SmartCode:       "HERA.FIN.GL.TXN.JOURNAL.v1",
		Lines: []engine.TransactionLineInput{
			glLine(models.DirectionDebit, 100),
			{
				LineType:   "gl_line",
				LineAmount: decPtr(decimal.NewFromInt(100)),
				SmartCode:  "HERA.FIN.GL.LINE.POSTING.v1",
			},
		},
	})
	require.Error(t, err)

	engErr, ok := engine.AsEngineError(err)
	require.True(t, ok)
	assert.Equal(t, engine.KindValidation, engErr.Kind)
}

func TestCreateTransaction_NonFinancialSkipsBalance(t *testing.T) {
	svc, st, _, claims, org := newTestService()
	customer := st.seedEntity(org, "customer", "CUST-001")
	product := st.seedEntity(org, "product", "PROD-001")

	txn, err := svc.CreateTransaction(context.Background(), claims, org, engine.TransactionInput{
		TransactionType: "sale",
		SmartCode:       "HERA.SALON.SALE.TXN.ORDER.v1",
		SourceEntityID:  &customer.ID,
		Lines: []engine.TransactionLineInput{
			{
				LineType:   "item",
				EntityID:   &product.ID,
				Quantity:   decPtr(decimal.NewFromInt(2)),
				UnitAmount: decPtr(decimal.NewFromInt(25)),
				SmartCode:  "HERA.SALON.SALE.LINE.ITEM.v1",
			},
		},
	})
	require.NoError(t, err)
	assert.True(t, txn.TotalAmount.Equal(decimal.NewFromInt(50)))
	assert.True(t, txn.Lines[0].LineAmount.Equal(decimal.NewFromInt(50)))
}

func TestCreateTransaction_DefaultsQuantityToOne(t *testing.T) {
	svc, _, _, claims, org := newTestService()

	txn, err := svc.CreateTransaction(context.Background(), claims, org, engine.TransactionInput{
		TransactionType: "sale",
		SmartCode:       "HERA.SALON.SALE.TXN.ORDER.v1",
		Lines: []engine.TransactionLineInput{
			{
				LineType:   "item",
				UnitAmount: decPtr(decimal.NewFromInt(30)),
				SmartCode:  "HERA.SALON.SALE.LINE.ITEM.v1",
			},
		},
	})
	require.NoError(t, err)
	assert.True(t, txn.Lines[0].Quantity.Equal(decimal.NewFromInt(1)))
	assert.True(t, txn.Lines[0].LineAmount.Equal(decimal.NewFromInt(30)))
}

func TestCreateTransaction_RejectsForeignLineEntity(t *testing.T) {
	svc, st, _, claims, org := newTestService()
	foreign := st.seedEntity(uuid.New(), "product", "PROD-001")

	_, err := svc.CreateTransaction(context.Background(), claims, org, engine.TransactionInput{
		TransactionType: "sale",
		SmartCode:       "HERA.SALON.SALE.TXN.ORDER.v1",
		Lines: []engine.TransactionLineInput{
			{
				LineType:  "item",
				EntityID:  &foreign.ID,
				SmartCode: "HERA.SALON.SALE.LINE.ITEM.v1",
			},
		},
	})
	require.Error(t, err)

	engErr, ok := engine.AsEngineError(err)
	require.True(t, ok)
	assert.Equal(t, engine.KindTenantIsolation, engErr.Kind)
	assert.Empty(t, st.transactions)
}

func TestCreateTransaction_RequiresLines(t *testing.T) {
	svc, _, _, claims, org := newTestService()

	_, err := svc.CreateTransaction(context.Background(), claims, org, engine.TransactionInput{
		TransactionType: "sale",
		SmartCode:       "HERA.SALON.SALE.TXN.ORDER.v1",
	})
	require.Error(t, err)

	engErr, ok := engine.AsEngineError(err)
	require.True(t, ok)
	assert.Equal(t, engine.KindValidation, engErr.Kind)
}

func TestReverseTransaction_SwapsDirections(t *testing.T) {
	svc, st, _, claims, org := newTestService()

	original, err := svc.CreateTransaction(context.Background(), claims, org, engine.TransactionInput{
		TransactionType: "GL_JOURNAL",
		TransactionCode: "JRN-001",
		SmartCode:       "HERA.FIN.GL.TXN.JOURNAL.v1",
		Lines: []engine.TransactionLineInput{
			glLine(models.DirectionDebit, 100),
			glLine(models.DirectionCredit, 100),
		},
	})
	require.NoError(t, err)

	reversal, err := svc.ReverseTransaction(context.Background(), claims, org, original.ID, "posted in error")
	require.NoError(t, err)

	assert.Equal(t, "JRN-001-REV", reversal.TransactionCode)
	require.Len(t, reversal.Lines, 2)
	assert.Equal(t, models.DirectionCredit, reversal.Lines[0].Direction)
	assert.Equal(t, models.DirectionDebit, reversal.Lines[1].Direction)

	stored := st.transactions[original.ID]
	require.NotNil(t, stored.ReversedByID)
	assert.Equal(t, reversal.ID, *stored.ReversedByID)
	assert.Equal(t, models.TxnStatusReversed, stored.Status)
}

func TestReverseTransaction_NegatesDirectionlessLines(t *testing.T) {
	svc, _, _, claims, org := newTestService()

	original, err := svc.CreateTransaction(context.Background(), claims, org, engine.TransactionInput{
		TransactionType: "sale",
		SmartCode:       "HERA.SALON.SALE.TXN.ORDER.v1",
		Lines: []engine.TransactionLineInput{
			{
				LineType:   "item",
				LineAmount: decPtr(decimal.NewFromInt(75)),
				SmartCode:  "HERA.SALON.SALE.LINE.ITEM.v1",
			},
		},
	})
	require.NoError(t, err)

	reversal, err := svc.ReverseTransaction(context.Background(), claims, org, original.ID, "refund")
	require.NoError(t, err)
	assert.True(t, reversal.Lines[0].LineAmount.Equal(decimal.NewFromInt(-75)))
}

func TestReverseTransaction_RejectsDoubleReversal(t *testing.T) {
	svc, _, _, claims, org := newTestService()

	original, err := svc.CreateTransaction(context.Background(), claims, org, engine.TransactionInput{
		TransactionType: "sale",
		SmartCode:       "HERA.SALON.SALE.TXN.ORDER.v1",
		Lines: []engine.TransactionLineInput{
			{LineAmount: decPtr(decimal.NewFromInt(10)), SmartCode: "HERA.SALON.SALE.LINE.ITEM.v1"},
		},
	})
	require.NoError(t, err)

	_, err = svc.ReverseTransaction(context.Background(), claims, org, original.ID, "first")
	require.NoError(t, err)

	_, err = svc.ReverseTransaction(context.Background(), claims, org, original.ID, "second")
	require.Error(t, err)

	engErr, ok := engine.AsEngineError(err)
	require.True(t, ok)
	assert.Equal(t, engine.KindValidation, engErr.Kind)
	assert.Contains(t, engErr.Detail, "already reversed")
}

func TestUpdateTransaction_RestrictedPatch(t *testing.T) {
	svc, _, _, claims, org := newTestService()

	original, err := svc.CreateTransaction(context.Background(), claims, org, engine.TransactionInput{
		TransactionType: "sale",
		SmartCode:       "HERA.SALON.SALE.TXN.ORDER.v1",
		Status:          models.TxnStatusPending,
		Lines: []engine.TransactionLineInput{
			{LineAmount: decPtr(decimal.NewFromInt(10)), SmartCode: "HERA.SALON.SALE.LINE.ITEM.v1"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, models.TxnStatusPending, original.Status)

	posted := models.TxnStatusPosted
	updated, err := svc.UpdateTransaction(context.Background(), claims, org, original.ID, engine.TransactionPatchInput{
		Status: &posted,
	})
	require.NoError(t, err)
	assert.Equal(t, models.TxnStatusPosted, updated.Status)

	bogus := "bogus"
	_, err = svc.UpdateTransaction(context.Background(), claims, org, original.ID, engine.TransactionPatchInput{
		Status: &bogus,
	})
	require.Error(t, err)
	engErr, ok := engine.AsEngineError(err)
	require.True(t, ok)
	assert.Equal(t, engine.KindValidation, engErr.Kind)
}
