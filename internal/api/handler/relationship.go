package handler

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/herahq/engine/internal/api/response"
	"github.com/herahq/engine/internal/engine"
)

type relationshipRequest struct {
	Action         string                     `json:"action"`
	OrganizationID uuid.UUID                  `json:"organization_id"`
	RelationshipID uuid.UUID                  `json:"relationship_id,omitempty"`
	Relationships  []engine.RelationshipInput `json:"relationships,omitempty"`
	Query          engine.RelationshipQuery   `json:"query,omitempty"`
	Options        rpcOptions                 `json:"options"`
}

// NewRelationshipRPCHandler serves POST /api/v1/rpc/relationships. CREATE
// and UPDATE share the batch upsert with replace semantics; DELETE retires
// one edge. QUERY defaults to active edges only unless options.active_only
// is explicitly false.
func NewRelationshipRPCHandler(svc *engine.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := requireClaims(w, r)
		if !ok {
			return
		}
		var req relationshipRequest
		if !decodeRPC(w, r, &req, &req.Action) {
			return
		}
		ctx := r.Context()

		switch req.Action {
		case ActionCreate, ActionUpdate:
			result, err := svc.UpsertRelationships(ctx, claims, req.OrganizationID, req.Relationships)
			if err != nil {
				response.EngineError(w, req.Action, err)
				return
			}
			response.OK(w, req.Action, result)

		case ActionQuery:
			query := req.Query
			query.ActiveOnly = true
			if req.Options.ActiveOnly != nil {
				query.ActiveOnly = *req.Options.ActiveOnly
			}
			rels, err := svc.QueryRelationships(ctx, claims, req.OrganizationID, query)
			if err != nil {
				response.EngineError(w, req.Action, err)
				return
			}
			response.OK(w, req.Action, rels)

		case ActionDelete:
			if err := svc.DeactivateRelationship(ctx, claims, req.OrganizationID, req.RelationshipID); err != nil {
				response.EngineError(w, req.Action, err)
				return
			}
			response.OK(w, req.Action, map[string]any{"id": req.RelationshipID, "is_active": false})

		default:
			badAction(w, req.Action, "relationships",
				ActionCreate, ActionUpdate, ActionQuery, ActionDelete)
		}
	}
}
