package engine

import (
	"errors"
	"fmt"

	"github.com/herahq/engine/pkg/models"
)

// Kind classifies an engine error. Kinds are wire-visible: handlers copy
// them into the response envelope and callers branch on them.
type Kind string

const (
	KindValidation           Kind = "ValidationError"
	KindTenantIsolation      Kind = "TenantIsolationError"
	KindReferentialIntegrity Kind = "ReferentialIntegrityError"
	KindBalanceViolation     Kind = "BalanceViolationError"
	KindAuthorization        Kind = "AuthorizationError"
	KindNotFound             Kind = "NotFoundError"
)

// Error is the engine's structured error. None of these are retried
// automatically; they describe caller input or business-rule violations.
type Error struct {
	Kind   Kind
	Detail string
	Hint   string
	Refs   *models.ReferenceReport
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

// Is lets errors.Is match two engine errors by kind.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

// AsEngineError unwraps err into an *Error when it is one.
func AsEngineError(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

func validationf(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Detail: fmt.Sprintf(format, args...)}
}

func isolationf(format string, args ...any) *Error {
	return &Error{
		Kind:   KindTenantIsolation,
		Detail: fmt.Sprintf(format, args...),
		Hint:   "All records referenced by a request must belong to the organization in scope",
	}
}

func notFoundf(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Detail: fmt.Sprintf(format, args...)}
}

func authorizationf(format string, args ...any) *Error {
	return &Error{Kind: KindAuthorization, Detail: fmt.Sprintf(format, args...)}
}

func balancef(format string, args ...any) *Error {
	return &Error{
		Kind:   KindBalanceViolation,
		Detail: fmt.Sprintf(format, args...),
		Hint:   "Debit-direction line amounts must equal credit-direction line amounts for financial transactions",
	}
}

func referentialf(refs models.ReferenceReport, format string, args ...any) *Error {
	return &Error{
		Kind:   KindReferentialIntegrity,
		Detail: fmt.Sprintf(format, args...),
		Hint:   "Archive the entity (status=archived) instead of deleting it",
		Refs:   &refs,
	}
}
