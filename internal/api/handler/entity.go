package handler

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/herahq/engine/internal/api/response"
	"github.com/herahq/engine/internal/engine"
)

type entityRequest struct {
	Action         string                   `json:"action"`
	OrganizationID uuid.UUID                `json:"organization_id"`
	EntityID       uuid.UUID                `json:"entity_id,omitempty"`
	Entity         *engine.EntityInput      `json:"entity,omitempty"`
	Entities       []engine.EntityInput     `json:"entities,omitempty"`
	Patch          *engine.EntityPatchInput `json:"patch,omitempty"`
	Patches        []engine.BulkEntityPatch `json:"patches,omitempty"`
	EntityIDs      []uuid.UUID              `json:"entity_ids,omitempty"`
	Query          engine.EntityQuery       `json:"query,omitempty"`
	Options        rpcOptions               `json:"options"`
}

type entityQueryResult struct {
	Entities any `json:"entities"`
	Total    int `json:"total"`
	Limit    int `json:"limit"`
	Offset   int `json:"offset"`
}

// NewEntityRPCHandler serves POST /api/v1/rpc/entities. Singular fields
// (entity, patch, entity_id) drive the single-record path; plural fields
// (entities, patches, entity_ids) drive the bulk path.
func NewEntityRPCHandler(svc *engine.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := requireClaims(w, r)
		if !ok {
			return
		}
		var req entityRequest
		if !decodeRPC(w, r, &req, &req.Action) {
			return
		}
		ctx := r.Context()

		switch req.Action {
		case ActionCreate:
			if len(req.Entities) > 0 {
				result, err := svc.BulkCreateEntities(ctx, claims, req.OrganizationID, req.Entities, req.Options.atomic())
				if err != nil {
					response.EngineError(w, req.Action, err)
					return
				}
				response.OK(w, req.Action, result)
				return
			}
			if req.Entity == nil {
				response.Error(w, http.StatusBadRequest, req.Action,
					string(engine.KindValidation), "entity or entities is required", "")
				return
			}
			entity, err := svc.CreateEntity(ctx, claims, req.OrganizationID, *req.Entity)
			if err != nil {
				response.EngineError(w, req.Action, err)
				return
			}
			response.OK(w, req.Action, entity)

		case ActionRead:
			entity, err := svc.GetEntity(ctx, claims, req.OrganizationID, req.EntityID, engine.ReadOptions{
				IncludeDynamic:       req.Options.IncludeDynamic,
				IncludeRelationships: req.Options.IncludeRelationships,
			})
			if err != nil {
				response.EngineError(w, req.Action, err)
				return
			}
			response.OK(w, req.Action, entity)

		case ActionQuery:
			entities, total, err := svc.QueryEntities(ctx, claims, req.OrganizationID, req.Query, engine.ReadOptions{
				IncludeDynamic:       req.Options.IncludeDynamic,
				IncludeRelationships: req.Options.IncludeRelationships,
			})
			if err != nil {
				response.EngineError(w, req.Action, err)
				return
			}
			response.OK(w, req.Action, entityQueryResult{
				Entities: entities,
				Total:    total,
				Limit:    req.Query.Limit,
				Offset:   req.Query.Offset,
			})

		case ActionUpdate:
			if len(req.Patches) > 0 {
				result, err := svc.BulkUpdateEntities(ctx, claims, req.OrganizationID, req.Patches, req.Options.atomic())
				if err != nil {
					response.EngineError(w, req.Action, err)
					return
				}
				response.OK(w, req.Action, result)
				return
			}
			if req.Patch == nil {
				response.Error(w, http.StatusBadRequest, req.Action,
					string(engine.KindValidation), "patch or patches is required", "")
				return
			}
			entity, err := svc.UpdateEntity(ctx, claims, req.OrganizationID, req.EntityID, *req.Patch)
			if err != nil {
				response.EngineError(w, req.Action, err)
				return
			}
			response.OK(w, req.Action, entity)

		case ActionArchive:
			if err := svc.ArchiveEntity(ctx, claims, req.OrganizationID, req.EntityID); err != nil {
				response.EngineError(w, req.Action, err)
				return
			}
			response.OK(w, req.Action, map[string]any{"id": req.EntityID, "status": "archived"})

		case ActionDelete:
			if len(req.EntityIDs) > 0 {
				result, err := svc.BulkDeleteEntities(ctx, claims, req.OrganizationID, req.EntityIDs, req.Options.atomic())
				if err != nil {
					response.EngineError(w, req.Action, err)
					return
				}
				response.OK(w, req.Action, result)
				return
			}
			if err := svc.DeleteEntity(ctx, claims, req.OrganizationID, req.EntityID); err != nil {
				response.EngineError(w, req.Action, err)
				return
			}
			response.OK(w, req.Action, map[string]any{"id": req.EntityID, "deleted": true})

		default:
			badAction(w, req.Action, "entities",
				ActionCreate, ActionRead, ActionQuery, ActionUpdate, ActionArchive, ActionDelete)
		}
	}
}
