package handler

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/herahq/engine/internal/api/response"
	"github.com/herahq/engine/internal/engine"
	"github.com/herahq/engine/internal/store"
	"github.com/herahq/engine/pkg/models"
)

const rawKeyPrefix = "hera_"

// NewCreateKeyHandler serves POST /api/v1/admin/keys. The raw key appears
// in this response and nowhere else; only its bcrypt hash is stored.
func NewCreateKeyHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := requireClaims(w, r)
		if !ok {
			return
		}

		var req struct {
			Name          string    `json:"name"`
			ActorEntityID uuid.UUID `json:"actor_entity_id"`
			Scopes        []string  `json:"scopes"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "",
				string(engine.KindValidation), "Invalid JSON body", "")
			return
		}
		if req.Name == "" {
			response.Error(w, http.StatusBadRequest, "",
				string(engine.KindValidation), "name is required", "")
			return
		}
		if req.ActorEntityID == uuid.Nil {
			req.ActorEntityID = claims.ActorEntityID
		}
		if len(req.Scopes) == 0 {
			req.Scopes = []string{"rpc"}
		}

		rawKey, err := generateKey()
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "",
				"InternalError", "Failed to generate key", "")
			return
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(rawKey), bcrypt.DefaultCost)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "",
				"InternalError", "Failed to hash key", "")
			return
		}

		now := time.Now().UTC()
		key := &models.APIKey{
			ID:             uuid.New(),
			OrganizationID: claims.OrganizationID,
			ActorEntityID:  req.ActorEntityID,
			Name:           req.Name,
			KeyHash:        string(hash),
			KeyPrefix:      rawKey[:8],
			Scopes:         req.Scopes,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := st.CreateAPIKey(r.Context(), key); err != nil {
			response.Error(w, http.StatusInternalServerError, "",
				"InternalError", "Failed to create key", "")
			return
		}

		response.OK(w, "", map[string]any{
			"id":         key.ID,
			"name":       key.Name,
			"key":        rawKey,
			"key_prefix": key.KeyPrefix,
			"scopes":     key.Scopes,
			"created_at": key.CreatedAt,
		})
	}
}

// NewListKeysHandler serves GET /api/v1/admin/keys.
func NewListKeysHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := requireClaims(w, r)
		if !ok {
			return
		}
		keys, err := st.ListAPIKeys(r.Context(), claims.OrganizationID)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "",
				"InternalError", "Failed to list keys", "")
			return
		}
		response.OK(w, "", keys)
	}
}

// NewRevokeKeyHandler serves DELETE /api/v1/admin/keys/{keyID}.
func NewRevokeKeyHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := requireClaims(w, r)
		if !ok {
			return
		}

		keyID, err := uuid.Parse(chi.URLParam(r, "keyID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "",
				string(engine.KindValidation), "keyID must be a valid UUID", "")
			return
		}
		if err := st.RevokeAPIKey(r.Context(), keyID, claims.OrganizationID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "",
					string(engine.KindNotFound), "API key not found", "")
				return
			}
			response.Error(w, http.StatusInternalServerError, "",
				"InternalError", "Failed to revoke key", "")
			return
		}
		response.OK(w, "", map[string]any{"id": keyID, "revoked": true})
	}
}

func generateKey() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return rawKeyPrefix + hex.EncodeToString(buf), nil
}
