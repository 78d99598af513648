package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/herahq/engine/internal/store"
)

// BulkItemResult reports the outcome of one item in a non-atomic batch.
type BulkItemResult struct {
	Index   int    `json:"index"`
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Kind    Kind   `json:"error_kind,omitempty"`
}

// BulkResult is the outcome of a bulk operation.
type BulkResult struct {
	Atomic    bool             `json:"atomic"`
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
	Items     []BulkItemResult `json:"items"`
}

// runBulk executes count items through op. In atomic mode the whole batch
// shares one store transaction: the first failure rolls everything back and
// is returned annotated with the failing index, so the caller sees either a
// full success list or a single failure with no partial effects. In
// non-atomic mode every item gets its own transaction and the result lists
// per-item success/failure so the caller can retry only the failures.
func (s *Service) runBulk(ctx context.Context, atomic bool, count int, op func(st store.Store, i int) (any, error)) (*BulkResult, error) {
	if count == 0 {
		return nil, validationf("bulk request requires at least one item")
	}

	result := &BulkResult{Atomic: atomic, Items: make([]BulkItemResult, 0, count)}

	if atomic {
		err := s.store.WithTx(ctx, func(st store.Store) error {
			for i := 0; i < count; i++ {
				data, err := op(st, i)
				if err != nil {
					return annotateIndex(err, i)
				}
				result.Items = append(result.Items, BulkItemResult{Index: i, Success: true, Data: data})
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		result.Succeeded = count
		return result, nil
	}

	for i := 0; i < count; i++ {
		var data any
		err := s.store.WithTx(ctx, func(st store.Store) error {
			var opErr error
			data, opErr = op(st, i)
			return opErr
		})
		if err != nil {
			item := BulkItemResult{Index: i, Error: err.Error()}
			if engErr, ok := AsEngineError(err); ok {
				item.Kind = engErr.Kind
				item.Error = engErr.Detail
			}
			result.Items = append(result.Items, item)
			result.Failed++
			continue
		}
		result.Items = append(result.Items, BulkItemResult{Index: i, Success: true, Data: data})
		result.Succeeded++
	}
	return result, nil
}

// annotateIndex prefixes an engine error's detail with the failing item
// index, preserving the kind.
func annotateIndex(err error, i int) error {
	if engErr, ok := AsEngineError(err); ok {
		return &Error{
			Kind:   engErr.Kind,
			Detail: fmt.Sprintf("item %d: %s", i, engErr.Detail),
			Hint:   engErr.Hint,
			Refs:   engErr.Refs,
		}
	}
	return fmt.Errorf("item %d: %w", i, err)
}

// BulkCreateEntities creates an ordered list of entities.
func (s *Service) BulkCreateEntities(ctx context.Context, claims Claims, organizationID uuid.UUID, inputs []EntityInput, atomic bool) (*BulkResult, error) {
	if err := s.guardOrganization(claims, organizationID); err != nil {
		return nil, err
	}
	return s.runBulk(ctx, atomic, len(inputs), func(st store.Store, i int) (any, error) {
		return s.createEntity(ctx, st, organizationID, inputs[i])
	})
}

// BulkEntityPatch pairs an entity id with its patch.
type BulkEntityPatch struct {
	ID    uuid.UUID        `json:"id" validate:"required"`
	Patch EntityPatchInput `json:"patch"`
}

// BulkUpdateEntities applies an ordered list of partial patches.
func (s *Service) BulkUpdateEntities(ctx context.Context, claims Claims, organizationID uuid.UUID, patches []BulkEntityPatch, atomic bool) (*BulkResult, error) {
	if err := s.guardOrganization(claims, organizationID); err != nil {
		return nil, err
	}
	return s.runBulk(ctx, atomic, len(patches), func(st store.Store, i int) (any, error) {
		if err := s.checkInput(patches[i]); err != nil {
			return nil, err
		}
		return s.updateEntity(ctx, st, organizationID, patches[i].ID, patches[i].Patch)
	})
}

// BulkDeleteEntities hard-deletes an ordered list of entities, each subject
// to the same reference scan as a single delete.
func (s *Service) BulkDeleteEntities(ctx context.Context, claims Claims, organizationID uuid.UUID, ids []uuid.UUID, atomic bool) (*BulkResult, error) {
	if err := s.guardOrganization(claims, organizationID); err != nil {
		return nil, err
	}
	return s.runBulk(ctx, atomic, len(ids), func(st store.Store, i int) (any, error) {
		if err := s.deleteEntity(ctx, st, organizationID, ids[i]); err != nil {
			return nil, err
		}
		return ids[i], nil
	})
}

// BulkCreateTransactions posts an ordered list of transactions. Atomic mode
// is the usual choice here: multi-transaction postings either all commit or
// none do.
func (s *Service) BulkCreateTransactions(ctx context.Context, claims Claims, organizationID uuid.UUID, inputs []TransactionInput, atomic bool) (*BulkResult, error) {
	if err := s.guardOrganization(claims, organizationID); err != nil {
		return nil, err
	}
	return s.runBulk(ctx, atomic, len(inputs), func(st store.Store, i int) (any, error) {
		return s.createTransaction(ctx, st, organizationID, inputs[i])
	})
}
