package handler

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/herahq/engine/internal/api/response"
	"github.com/herahq/engine/internal/engine"
)

// NewResolveRoleHandler serves GET /api/v1/rbac/resolve. It answers the one
// question authorization needs: what role does this actor hold in this
// organization right now.
func NewResolveRoleHandler(svc *engine.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := requireClaims(w, r)
		if !ok {
			return
		}

		orgID, err := uuid.Parse(r.URL.Query().Get("organization_id"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "",
				string(engine.KindValidation), "organization_id must be a valid UUID", "")
			return
		}

		actorID := claims.ActorEntityID
		if raw := r.URL.Query().Get("actor_user_id"); raw != "" {
			actorID, err = uuid.Parse(raw)
			if err != nil {
				response.Error(w, http.StatusBadRequest, "",
					string(engine.KindValidation), "actor_user_id must be a valid UUID", "")
				return
			}
		}

		resolved, err := svc.ResolveRole(r.Context(), claims, orgID, actorID)
		if err != nil {
			response.EngineError(w, "", err)
			return
		}
		response.OK(w, "", resolved)
	}
}
