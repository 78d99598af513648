// Package handler exposes the engine over per-store RPC endpoints. Every
// endpoint accepts one action-dispatched JSON body and answers with the
// uniform envelope, so clients hold a single call shape per store.
package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	mw "github.com/herahq/engine/internal/api/middleware"
	"github.com/herahq/engine/internal/api/response"
	"github.com/herahq/engine/internal/engine"
)

// Actions shared across the RPC endpoints. ARCHIVE is entity-only and
// REVERSE is transaction-only.
const (
	ActionCreate  = "CREATE"
	ActionRead    = "READ"
	ActionUpdate  = "UPDATE"
	ActionDelete  = "DELETE"
	ActionQuery   = "QUERY"
	ActionArchive = "ARCHIVE"
	ActionReverse = "REVERSE"
)

// rpcOptions are the per-request behavior switches.
type rpcOptions struct {
	// Atomic controls bulk writes: all-or-nothing when true (the default),
	// per-item commit with a per-item result list when false.
	Atomic               *bool `json:"atomic,omitempty"`
	IncludeDynamic       bool  `json:"include_dynamic,omitempty"`
	IncludeRelationships bool  `json:"include_relationships,omitempty"`
	WithLines            *bool `json:"with_lines,omitempty"`
	ActiveOnly           *bool `json:"active_only,omitempty"`
}

func (o rpcOptions) atomic() bool {
	if o.Atomic == nil {
		return true
	}
	return *o.Atomic
}

// decodeRPC reads the request body and normalizes the action, replying with
// a validation envelope itself when the body is unusable.
func decodeRPC(w http.ResponseWriter, r *http.Request, req any, action *string) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		response.Error(w, http.StatusBadRequest, "",
			string(engine.KindValidation), "Invalid JSON body", "")
		return false
	}
	*action = strings.ToUpper(strings.TrimSpace(*action))
	if *action == "" {
		response.Error(w, http.StatusBadRequest, "",
			string(engine.KindValidation), "action is required", "")
		return false
	}
	return true
}

// requireClaims pulls the authenticated claims or replies 401.
func requireClaims(w http.ResponseWriter, r *http.Request) (engine.Claims, bool) {
	claims, ok := mw.GetClaims(r)
	if !ok {
		response.Error(w, http.StatusUnauthorized, "",
			"InvalidToken", "Missing authentication", "")
	}
	return claims, ok
}

func badAction(w http.ResponseWriter, action, endpoint string, supported ...string) {
	response.Error(w, http.StatusBadRequest, action,
		string(engine.KindValidation),
		"unsupported action for "+endpoint,
		"supported actions: "+strings.Join(supported, ", "))
}
