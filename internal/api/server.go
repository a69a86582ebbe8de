// File path: internal/api/server.go
package api

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	chi "github.com/go-chi/chi/v5"

	"github.com/CLARIAH/cattle-druid/internal/common"
	"github.com/CLARIAH/cattle-druid/internal/cow"
	"github.com/CLARIAH/cattle-druid/internal/druid"
	"github.com/CLARIAH/cattle-druid/internal/session"
	"github.com/CLARIAH/cattle-druid/internal/storage"
)

//go:embed templates/*.html
var templateFS embed.FS

const poweredByHeader = "https://github.com/CLARIAH/cattle"

type Server struct {
	router   chi.Router
	store    *storage.Store
	invoker  *cow.Invoker
	poller   *druid.Poller
	sessions *session.Manager

	templates      *template.Template
	supportContact string
}

func NewServer(store *storage.Store, invoker *cow.Invoker, poller *druid.Poller, sessions *session.Manager, supportContact string) (*Server, error) {
	if store == nil {
		return nil, fmt.Errorf("workspace store required")
	}
	if invoker == nil {
		return nil, fmt.Errorf("conversion invoker required")
	}
	if sessions == nil {
		sessions = session.NewManager()
	}
	templates, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	srv := &Server{
		router:         chi.NewRouter(),
		store:          store,
		invoker:        invoker,
		poller:         poller,
		sessions:       sessions,
		templates:      templates,
		supportContact: supportContact,
	}
	srv.routes()
	common.Logger().Info("api: server ready", "storage", store.Root())
	return srv, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	logger := common.Logger()
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Debug("request", "method", r.Method, "path", r.URL.Path, "dur", time.Since(start), "remote", r.RemoteAddr)
		})
	})
	s.router.Use(s.recoverer)

	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	s.router.Get("/logs", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, common.LogEntries())
	})

	s.router.Get("/", s.handleIndex)
	s.router.Post("/", s.handleIndex)
	s.router.Get("/version", s.handleVersion)
	s.router.Post("/version", s.handleVersion)

	s.router.Post("/build", s.handleBuild)
	s.router.Get("/convert", s.handleConvertPage)
	s.router.Post("/convert", s.handleConvertPage)
	s.router.Post("/convert_local", s.handleConvertLocal)
	s.router.Post("/build_convert", s.handleBuildConvert)

	s.router.Get("/ruminator", s.handleRuminator)
	s.router.Post("/ruminator", s.handleRuminator)
	s.router.Post("/save_json", s.handleSaveJSON)

	s.router.Post("/druid/{username}/{dataset}", s.handleDruid)
	s.router.Get("/webhook_shooter", s.handleWebhookShooter)
	s.router.Post("/webhook_shooter", s.handleWebhookShooter)

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.renderError(w, http.StatusNotFound, errors.New("Page not found"))
	})
}

// recoverer keeps unexpected panics from leaking a stack trace to the
// client; they surface as the regular error page with a support contact.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				common.Logger().Error("api: panic recovered", "path", r.URL.Path, "panic", rec)
				s.renderError(w, http.StatusInternalServerError, fmt.Errorf("internal server error"))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) render(w http.ResponseWriter, status int, name string, data interface{}) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		common.Logger().Error("api: template render failed", "template", name, "error", err)
	}
}

func (s *Server) renderError(w http.ResponseWriter, status int, err error) {
	logger := common.Logger()
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "status", status, "error", err)
	} else {
		logger.Warn("request failed", "status", status, "error", err)
	}
	s.render(w, status, "error.html", map[string]interface{}{
		"Message": err.Error(),
		"Contact": s.supportContact,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// currentFileName is the display name of the session's working file: the
// source CSV underlying the bound schema.
func (s *Server) currentFileName(sid string) string {
	schemaPath, ok := s.sessions.Current(sid)
	if !ok {
		return ""
	}
	return filepath.Base(sourceCSVFor(schemaPath))
}

// sourceCSVFor maps a bound schema path back to its source CSV. Engine-built
// schemas carry the `<csv>-metadata.json` suffix; user-uploaded schemas are
// plain `<stem>.json` files next to `<stem>.csv`.
func sourceCSVFor(schemaPath string) string {
	dir := filepath.Dir(schemaPath)
	base := filepath.Base(schemaPath)
	if strings.HasSuffix(base, cow.MetadataSuffix) {
		return filepath.Join(dir, strings.TrimSuffix(base, cow.MetadataSuffix))
	}
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, stem+".csv")
}
