// Package response writes the uniform RPC envelope. Callers branch on the
// success flag rather than on exceptions crossing the wire, so every error
// carries a machine-readable kind plus a human-readable detail and hint.
package response

import (
	"encoding/json"
	"net/http"

	"github.com/herahq/engine/internal/engine"
)

// Envelope is the wire shape of every RPC response.
type Envelope struct {
	Success     bool   `json:"success"`
	Action      string `json:"action,omitempty"`
	Data        any    `json:"data,omitempty"`
	Error       string `json:"error,omitempty"`
	ErrorDetail any    `json:"error_detail,omitempty"`
	ErrorHint   string `json:"error_hint,omitempty"`
}

// OK writes a success envelope.
func OK(w http.ResponseWriter, action string, data any) {
	writeJSON(w, http.StatusOK, Envelope{Success: true, Action: action, Data: data})
}

// Error writes a failure envelope with an explicit status and kind.
func Error(w http.ResponseWriter, status int, action, kind, detail, hint string) {
	writeJSON(w, status, Envelope{
		Action:      action,
		Error:       kind,
		ErrorDetail: detail,
		ErrorHint:   hint,
	})
}

// EngineError maps an engine error to the envelope and an HTTP status.
func EngineError(w http.ResponseWriter, action string, err error) {
	engErr, ok := engine.AsEngineError(err)
	if !ok {
		Error(w, http.StatusInternalServerError, action, "InternalError", "An unexpected error occurred", "")
		return
	}

	env := Envelope{
		Action:      action,
		Error:       string(engErr.Kind),
		ErrorDetail: engErr.Detail,
		ErrorHint:   engErr.Hint,
	}
	if engErr.Refs != nil {
		env.ErrorDetail = map[string]any{
			"message":    engErr.Detail,
			"references": engErr.Refs,
		}
	}
	writeJSON(w, statusFor(engErr.Kind), env)
}

func statusFor(kind engine.Kind) int {
	switch kind {
	case engine.KindValidation:
		return http.StatusBadRequest
	case engine.KindTenantIsolation, engine.KindAuthorization:
		return http.StatusForbidden
	case engine.KindNotFound:
		return http.StatusNotFound
	case engine.KindReferentialIntegrity, engine.KindBalanceViolation:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
