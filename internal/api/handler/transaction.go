package handler

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/herahq/engine/internal/api/response"
	"github.com/herahq/engine/internal/engine"
)

type transactionRequest struct {
	Action         string                        `json:"action"`
	OrganizationID uuid.UUID                     `json:"organization_id"`
	TransactionID  uuid.UUID                     `json:"transaction_id,omitempty"`
	Transaction    *engine.TransactionInput      `json:"transaction,omitempty"`
	Transactions   []engine.TransactionInput     `json:"transactions,omitempty"`
	Patch          *engine.TransactionPatchInput `json:"patch,omitempty"`
	Reason         string                        `json:"reason,omitempty"`
	Options        rpcOptions                    `json:"options"`
}

// NewTransactionRPCHandler serves POST /api/v1/rpc/transactions. READ
// includes lines unless options.with_lines is explicitly false. Lines are
// immutable after creation; REVERSE posts a compensating transaction.
func NewTransactionRPCHandler(svc *engine.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := requireClaims(w, r)
		if !ok {
			return
		}
		var req transactionRequest
		if !decodeRPC(w, r, &req, &req.Action) {
			return
		}
		ctx := r.Context()

		switch req.Action {
		case ActionCreate:
			if len(req.Transactions) > 0 {
				result, err := svc.BulkCreateTransactions(ctx, claims, req.OrganizationID, req.Transactions, req.Options.atomic())
				if err != nil {
					response.EngineError(w, req.Action, err)
					return
				}
				response.OK(w, req.Action, result)
				return
			}
			if req.Transaction == nil {
				response.Error(w, http.StatusBadRequest, req.Action,
					string(engine.KindValidation), "transaction or transactions is required", "")
				return
			}
			txn, err := svc.CreateTransaction(ctx, claims, req.OrganizationID, *req.Transaction)
			if err != nil {
				response.EngineError(w, req.Action, err)
				return
			}
			response.OK(w, req.Action, txn)

		case ActionRead:
			withLines := true
			if req.Options.WithLines != nil {
				withLines = *req.Options.WithLines
			}
			txn, err := svc.GetTransaction(ctx, claims, req.OrganizationID, req.TransactionID, withLines)
			if err != nil {
				response.EngineError(w, req.Action, err)
				return
			}
			response.OK(w, req.Action, txn)

		case ActionUpdate:
			if req.Patch == nil {
				response.Error(w, http.StatusBadRequest, req.Action,
					string(engine.KindValidation), "patch is required", "")
				return
			}
			txn, err := svc.UpdateTransaction(ctx, claims, req.OrganizationID, req.TransactionID, *req.Patch)
			if err != nil {
				response.EngineError(w, req.Action, err)
				return
			}
			response.OK(w, req.Action, txn)

		case ActionReverse:
			reversal, err := svc.ReverseTransaction(ctx, claims, req.OrganizationID, req.TransactionID, req.Reason)
			if err != nil {
				response.EngineError(w, req.Action, err)
				return
			}
			response.OK(w, req.Action, reversal)

		default:
			badAction(w, req.Action, "transactions",
				ActionCreate, ActionRead, ActionUpdate, ActionReverse)
		}
	}
}
