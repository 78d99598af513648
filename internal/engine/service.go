// Package engine is the CRUD orchestration layer: it sequences tenant
// isolation checks, smart code validation, storage and cascade operations
// for entities, dynamic data, relationships and transactions.
package engine

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/herahq/engine/internal/cache"
	"github.com/herahq/engine/internal/store"
)

const defaultRoleTTL = 5 * time.Minute

// Service orchestrates all engine operations. It is stateless per request;
// atomicity comes from store-level transactions, not engine locking.
type Service struct {
	store    store.Store
	cache    cache.Cache
	validate *validator.Validate
	roleTTL  time.Duration
}

// NewService creates a new engine Service.
func NewService(st store.Store, ca cache.Cache, roleTTL time.Duration) *Service {
	if roleTTL <= 0 {
		roleTTL = defaultRoleTTL
	}
	return &Service{
		store:    st,
		cache:    ca,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		roleTTL:  roleTTL,
	}
}

// checkInput runs struct-tag validation and converts failures into the
// engine's ValidationError kind.
func (s *Service) checkInput(input any) error {
	if err := s.validate.Struct(input); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			f := verrs[0]
			return validationf("field %s failed %s validation", f.Field(), f.Tag())
		}
		return validationf("%s", err.Error())
	}
	return nil
}

// mapStoreError converts store sentinels into engine errors; anything else
// passes through as an internal failure.
func mapStoreError(err error, what string) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return notFoundf("%s not found", what)
	case errors.Is(err, store.ErrDuplicateKey):
		return validationf("%s already exists", what)
	case errors.Is(err, store.ErrForeignKey):
		return validationf("%s references a record that does not exist", what)
	}
	return err
}
