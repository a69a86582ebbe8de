// File path: internal/api/ruminator_handler.go
package api

import (
	"errors"
	"net/http"
	"os"

	"github.com/CLARIAH/cattle-druid/internal/common"
	"github.com/CLARIAH/cattle-druid/internal/session"
)

// handleRuminator shows the session's current schema JSON for editing.
func (s *Server) handleRuminator(w http.ResponseWriter, r *http.Request) {
	sid := session.EnsureID(w, r)
	contents := ""
	if schemaPath, ok := s.sessions.Current(sid); ok {
		data, err := os.ReadFile(schemaPath)
		if err != nil {
			s.renderError(w, http.StatusInternalServerError, err)
			return
		}
		contents = string(data)
	}
	s.render(w, http.StatusOK, "ruminator.html", map[string]interface{}{
		"JSONContents": contents,
		"CurrentFile":  s.currentFileName(sid),
	})
}

// handleSaveJSON overwrites the bound schema file with the edited contents.
func (s *Server) handleSaveJSON(w http.ResponseWriter, r *http.Request) {
	sid := session.EnsureID(w, r)
	schemaPath, ok := s.sessions.Current(sid)
	if !ok {
		s.renderError(w, http.StatusBadRequest, errors.New("no current file; build a schema first"))
		return
	}
	data := r.FormValue("javascript_data")
	if data == "" {
		s.renderError(w, http.StatusBadRequest, errors.New("no schema contents submitted"))
		return
	}
	if err := os.WriteFile(schemaPath, []byte(data), 0o644); err != nil {
		s.renderError(w, http.StatusInternalServerError, err)
		return
	}
	common.Logger().Debug("api: schema file altered and saved", "path", schemaPath)
	w.WriteHeader(http.StatusOK)
}
