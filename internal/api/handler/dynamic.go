package handler

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/herahq/engine/internal/api/response"
	"github.com/herahq/engine/internal/engine"
)

type dynamicRequest struct {
	Action         string                     `json:"action"`
	OrganizationID uuid.UUID                  `json:"organization_id"`
	EntityID       uuid.UUID                  `json:"entity_id,omitempty"`
	Fields         []engine.DynamicFieldInput `json:"fields,omitempty"`
	FieldName      string                     `json:"field_name,omitempty"`
}

// NewDynamicDataRPCHandler serves POST /api/v1/rpc/dynamic-data. CREATE and
// UPDATE are the same upsert: re-setting a field_name replaces its value.
// READ lists one entity's fields; QUERY pivots one field_name across the
// organization's entities.
func NewDynamicDataRPCHandler(svc *engine.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := requireClaims(w, r)
		if !ok {
			return
		}
		var req dynamicRequest
		if !decodeRPC(w, r, &req, &req.Action) {
			return
		}
		ctx := r.Context()

		switch req.Action {
		case ActionCreate, ActionUpdate:
			fields, err := svc.SetDynamicFields(ctx, claims, req.OrganizationID, req.EntityID, req.Fields)
			if err != nil {
				response.EngineError(w, req.Action, err)
				return
			}
			response.OK(w, req.Action, fields)

		case ActionRead:
			fields, err := svc.GetDynamicFields(ctx, claims, req.OrganizationID, req.EntityID)
			if err != nil {
				response.EngineError(w, req.Action, err)
				return
			}
			response.OK(w, req.Action, fields)

		case ActionQuery:
			fields, err := svc.GetDynamicFieldsByName(ctx, claims, req.OrganizationID, req.FieldName)
			if err != nil {
				response.EngineError(w, req.Action, err)
				return
			}
			response.OK(w, req.Action, fields)

		default:
			badAction(w, req.Action, "dynamic-data",
				ActionCreate, ActionRead, ActionUpdate, ActionQuery)
		}
	}
}
