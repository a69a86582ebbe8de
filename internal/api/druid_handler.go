// File path: internal/api/druid_handler.go
package api

import (
	"errors"
	"net/http"

	chi "github.com/go-chi/chi/v5"

	"github.com/CLARIAH/cattle-druid/internal/common"
	"github.com/CLARIAH/cattle-druid/internal/druid"
)

// handleDruid reacts to a webhook from the remote asset host: convert the
// triggering file (pair or single) and push the graphs back.
func (s *Server) handleDruid(w http.ResponseWriter, r *http.Request) {
	logger := common.Logger()
	logger.Debug("api: starting druid-based conversion")
	if s.poller == nil {
		s.renderError(w, http.StatusServiceUnavailable, errors.New("druid integration not configured"))
		return
	}
	username := chi.URLParam(r, "username")
	dataset := chi.URLParam(r, "dataset")

	ev, err := druid.ParseEvent(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	stems, err := s.poller.HandleEvent(r.Context(), username, dataset, ev)
	if err != nil {
		status := http.StatusInternalServerError
		var remoteErr *druid.RemoteAPIError
		if errors.As(err, &remoteErr) {
			status = http.StatusBadGateway
		}
		logger.Error("api: druid conversion failed",
			"username", username, "dataset", dataset, "error", err)
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}
	if stems == nil {
		stems = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"converted": stems})
}
