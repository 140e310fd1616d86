package api

import (
	"encoding/json"
	"net/http"

	"github.com/aniways/anipush/internal/apperr"
)

type subscribeRequest struct {
	TMDBID  string `json:"tmdb_id"`
	GroupID int64  `json:"group_id"` // 0 means a private subscription
	UserID  int64  `json:"user_id"`
}

func decodeSubscribeRequest(w http.ResponseWriter, r *http.Request) (*subscribeRequest, bool) {
	var req subscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return nil, false
	}
	if req.TMDBID == "" {
		RespondWithError(w, http.StatusBadRequest, "Missing tmdb_id")
		return nil, false
	}
	if req.UserID == 0 {
		RespondWithError(w, http.StatusBadRequest, "Missing user_id")
		return nil, false
	}
	return &req, true
}

// handleSubscribe adds a subscriber to a tracked title. With a group_id
// the user is mentioned in that group's pushes; without one the user
// receives a private push.
func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeSubscribeRequest(w, r)
	if !ok {
		return
	}
	var err error
	if req.GroupID != 0 {
		err = s.store.AddGroupSubscriber(req.TMDBID, req.GroupID, req.UserID)
	} else {
		err = s.store.AddPrivateSubscriber(req.TMDBID, req.UserID)
	}
	s.respondSubscribe(w, err, "subscribed")
}

func (s *Server) handleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeSubscribeRequest(w, r)
	if !ok {
		return
	}
	var err error
	if req.GroupID != 0 {
		err = s.store.RemoveGroupSubscriber(req.TMDBID, req.GroupID, req.UserID)
	} else {
		err = s.store.RemovePrivateSubscriber(req.TMDBID, req.UserID)
	}
	s.respondSubscribe(w, err, "unsubscribed")
}

func (s *Server) respondSubscribe(w http.ResponseWriter, err error, status string) {
	switch {
	case err == nil:
		RespondWithJSON(w, http.StatusOK, map[string]string{"status": status})
	case apperr.IsKind(err, apperr.TargetNotFound):
		RespondWithError(w, http.StatusNotFound, "No tracked title with that tmdb_id")
	default:
		RespondWithError(w, http.StatusInternalServerError, "Failed to update subscription")
	}
}
