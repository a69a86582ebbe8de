// File path: internal/api/pages.go
package api

import (
	"net/http"

	"github.com/CLARIAH/cattle-druid/internal/common"
	"github.com/CLARIAH/cattle-druid/internal/session"
)

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	common.Logger().Info("api: received request to render index")
	sid := session.EnsureID(w, r)
	w.Header().Set("X-Powered-By", poweredByHeader)
	s.render(w, http.StatusOK, "index.html", map[string]interface{}{
		"Version":     s.invoker.Version(r.Context()),
		"CurrentFile": s.currentFileName(sid),
	})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	version := s.invoker.Version(r.Context())
	common.Logger().Debug("api: engine version queried", "version", version)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(version))
}

func (s *Server) handleConvertPage(w http.ResponseWriter, r *http.Request) {
	sid := session.EnsureID(w, r)
	s.render(w, http.StatusOK, "convert.html", map[string]interface{}{
		"CurrentFile": s.currentFileName(sid),
	})
}

// Webhook registration against the remote system is an operator action;
// this page only documents where deliveries must point.
func (s *Server) handleWebhookShooter(w http.ResponseWriter, r *http.Request) {
	common.Logger().Debug("api: webhook_shooter was called")
	s.render(w, http.StatusOK, "webhook.html", nil)
}
