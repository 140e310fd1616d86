package api

import (
	"encoding/json"
	"net/http"

	"github.com/aniways/anipush/internal/db"
)

type targetRequest struct {
	Source string `json:"source"`
	Kind   string `json:"kind"` // "group" or "private"
	ID     int64  `json:"id"`
}

func decodeTargetRequest(w http.ResponseWriter, r *http.Request) (*targetRequest, bool) {
	var req targetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return nil, false
	}
	if req.Source != string(db.TableEmby) && req.Source != string(db.TableAniRSS) {
		RespondWithError(w, http.StatusBadRequest, "Unknown source")
		return nil, false
	}
	if req.Kind != "group" && req.Kind != "private" {
		RespondWithError(w, http.StatusBadRequest, "Kind must be 'group' or 'private'")
		return nil, false
	}
	if req.ID == 0 {
		RespondWithError(w, http.StatusBadRequest, "Missing destination id")
		return nil, false
	}
	return &req, true
}

// handleGetTargets returns the current destination document.
func (s *Server) handleGetTargets(w http.ResponseWriter, r *http.Request) {
	RespondWithJSON(w, http.StatusOK, s.app.Targets.Snapshot())
}

func (s *Server) handleRegisterTarget(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeTargetRequest(w, r)
	if !ok {
		return
	}
	var err error
	if req.Kind == "group" {
		err = s.app.Targets.RegisterGroup(req.Source, req.ID)
	} else {
		err = s.app.Targets.RegisterPrivate(req.Source, req.ID)
	}
	if err != nil {
		RespondWithError(w, http.StatusInternalServerError, "Failed to persist targets")
		return
	}
	RespondWithJSON(w, http.StatusOK, map[string]string{"status": "registered"})
}

func (s *Server) handleUnregisterTarget(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeTargetRequest(w, r)
	if !ok {
		return
	}
	var err error
	if req.Kind == "group" {
		err = s.app.Targets.UnregisterGroup(req.Source, req.ID)
	} else {
		err = s.app.Targets.UnregisterPrivate(req.Source, req.ID)
	}
	if err != nil {
		RespondWithError(w, http.StatusInternalServerError, "Failed to persist targets")
		return
	}
	RespondWithJSON(w, http.StatusOK, map[string]string{"status": "unregistered"})
}

// handleBlockTargets saves the destination sets and silences all pushes
// until a restore.
func (s *Server) handleBlockTargets(w http.ResponseWriter, r *http.Request) {
	if err := s.app.Targets.Block(); err != nil {
		RespondWithError(w, http.StatusInternalServerError, "Failed to block targets")
		return
	}
	RespondWithJSON(w, http.StatusOK, map[string]string{"status": "blocked"})
}

func (s *Server) handleRestoreTargets(w http.ResponseWriter, r *http.Request) {
	if err := s.app.Targets.Restore(); err != nil {
		RespondWithError(w, http.StatusInternalServerError, "Failed to restore targets")
		return
	}
	RespondWithJSON(w, http.StatusOK, map[string]string{"status": "restored"})
}
