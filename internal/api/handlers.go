package api

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"

	"github.com/aniways/anipush/internal/db"
)

// maxWebhookBody caps webhook payload reads at 1 MiB.
const maxWebhookBody = 1 << 20

// handleWebhook accepts a raw event from either source, acknowledges it
// immediately and hands it to the pipeline in the background. Senders
// retry or drop on slow responses, so the expensive work never runs on
// the request path.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		RespondWithError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}

	source, ok := sniffSource(raw)
	if !ok {
		log.Printf("Webhook: unrecognized payload shape, ignoring")
		RespondWithJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	RespondWithJSON(w, http.StatusOK, map[string]string{"status": "accepted"})

	go s.pipeline.Run(context.Background(), source, raw)
}

// sniffSource resolves the event source from the body shape: the media
// server wraps everything in an Item object, the release notifier
// carries a top-level action field.
func sniffSource(raw []byte) (db.Table, bool) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return "", false
	}
	if _, ok := probe["Item"]; ok {
		return db.TableEmby, true
	}
	if _, ok := probe["action"]; ok {
		return db.TableAniRSS, true
	}
	if _, ok := probe["meta"]; ok {
		return db.TableAniRSS, true
	}
	return "", false
}
