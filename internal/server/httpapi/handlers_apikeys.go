package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/webstack/webstack/internal/common"
)

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		return 0, common.ErrValidation
	}
	return id, nil
}

type createAPIKeyRequest struct {
	Name      string     `json:"name"`
	ExpiresAt *time.Time `json:"expires_at"`
	Scopes    []string   `json:"scopes"`
}

func (s *Server) handleCreateAPIKey(w http.ResponseWriter, r *http.Request) {
	var req createAPIKeyRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	user := UserFrom(r.Context())
	key, plaintext, err := s.apiKeys.CreateForUser(r.Context(), user.ID, req.Name, req.ExpiresAt, req.Scopes)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAPIKeyResponse(key, plaintext))
}

func (s *Server) handleListAPIKeys(w http.ResponseWriter, r *http.Request) {
	user := UserFrom(r.Context())
	keys, err := s.apiKeys.ListForUser(r.Context(), user.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out := make([]apiKeyResponse, 0, len(keys))
	for _, k := range keys {
		out = append(out, toAPIKeyResponse(k, ""))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDeleteAPIKey(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	user := UserFrom(r.Context())
	if err := s.apiKeys.Delete(r.Context(), user.ID, id); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
