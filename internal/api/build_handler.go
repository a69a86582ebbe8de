// File path: internal/api/build_handler.go
package api

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/CLARIAH/cattle-druid/internal/common"
	"github.com/CLARIAH/cattle-druid/internal/pairing"
	"github.com/CLARIAH/cattle-druid/internal/session"
	"github.com/CLARIAH/cattle-druid/internal/storage"
)

const maxUploadMemory = 64 << 20 // 64 MiB of in-memory file parts

// httpError pairs a client-facing error with the status it maps to.
type httpError struct {
	status int
	err    error
}

func (e *httpError) Error() string { return e.err.Error() }

func badRequest(format string, args ...interface{}) *httpError {
	return &httpError{status: http.StatusBadRequest, err: fmt.Errorf(format, args...)}
}

func unsupported(format string, args ...interface{}) *httpError {
	return &httpError{status: http.StatusUnsupportedMediaType, err: fmt.Errorf(format, args...)}
}

func internal(err error) *httpError {
	return &httpError{status: http.StatusInternalServerError, err: err}
}

func (s *Server) handleBuild(w http.ResponseWriter, r *http.Request) {
	logger := common.Logger()
	logger.Info("api: received request to build schema")
	sid := session.EnsureID(w, r)

	if _, herr := s.buildUpload(r, sid); herr != nil {
		s.renderError(w, herr.status, herr.err)
		return
	}
	s.render(w, http.StatusOK, "build.html", map[string]interface{}{
		"CurrentFile": s.currentFileName(sid),
	})
}

// handleBuildConvert is the one-shot flow: store the upload (pair or single
// CSV), build the schema, then hand over to conversion.
func (s *Server) handleBuildConvert(w http.ResponseWriter, r *http.Request) {
	logger := common.Logger()
	logger.Info("api: received request to build and convert")
	sid := session.EnsureID(w, r)

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		s.renderError(w, http.StatusBadRequest, fmt.Errorf("failed to parse upload form: %w", err))
		return
	}
	var herr *httpError
	if hasPart(r, "json") {
		logger.Debug("api: json schema part found, uploading pair")
		_, herr = s.uploadPair(r, sid)
	} else {
		_, herr = s.buildUpload(r, sid)
	}
	if herr != nil {
		s.renderError(w, herr.status, herr.err)
		return
	}
	s.convertCurrent(w, r, sid)
}

// buildUpload stores a lone CSV part into its content-addressed workspace,
// runs the engine's build on it and binds the produced schema to the
// session.
func (s *Server) buildUpload(r *http.Request, sid string) (string, *httpError) {
	file, filename, herr := formFile(r, "csv")
	if herr != nil {
		return "", herr
	}
	defer file.Close()
	if !pairing.IsCSV(filename) {
		return "", unsupported("no file supplied or wrong file type")
	}

	fingerprint, err := storage.Fingerprint(file)
	if err != nil {
		return "", internal(err)
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", internal(err)
	}
	ws, err := s.store.Resolve(sid, fingerprint)
	if err != nil {
		return "", internal(err)
	}
	if _, err := ws.WriteOnce(filename, file); err != nil {
		return "", internal(err)
	}
	common.Logger().Debug("api: file uploaded", "path", ws.Path(filename))

	schemaPath, err := s.invoker.Build(r.Context(), ws.Path(filename), "")
	if err != nil {
		return "", internal(err)
	}
	s.bind(sid, schemaPath)
	return schemaPath, nil
}

// uploadPair stores a CSV together with its user-supplied JSON schema, keyed
// by the fingerprint over both contents, builds and binds.
func (s *Server) uploadPair(r *http.Request, sid string) (string, *httpError) {
	csvFile, csvName, herr := formFile(r, "csv")
	if herr != nil {
		return "", herr
	}
	defer csvFile.Close()
	jsonFile, jsonName, herr := formFile(r, "json")
	if herr != nil {
		return "", herr
	}
	defer jsonFile.Close()
	if !pairing.IsCSV(csvName) || !pairing.IsJSON(jsonName) {
		return "", unsupported("no file supplied or wrong file type")
	}

	fingerprint, err := storage.Fingerprint(csvFile, jsonFile)
	if err != nil {
		return "", internal(err)
	}
	if _, err := csvFile.Seek(0, io.SeekStart); err != nil {
		return "", internal(err)
	}
	if _, err := jsonFile.Seek(0, io.SeekStart); err != nil {
		return "", internal(err)
	}
	ws, err := s.store.Resolve(sid, fingerprint)
	if err != nil {
		return "", internal(err)
	}
	if _, err := ws.WriteOnce(csvName, csvFile); err != nil {
		return "", internal(err)
	}
	if _, err := ws.WriteOnce(jsonName, jsonFile); err != nil {
		return "", internal(err)
	}
	common.Logger().Debug("api: file pair uploaded",
		"csv", ws.Path(csvName), "json", ws.Path(jsonName))

	schemaPath, err := s.invoker.Build(r.Context(), ws.Path(csvName), ws.Path(jsonName))
	if err != nil {
		return "", internal(err)
	}
	s.bind(sid, schemaPath)
	return schemaPath, nil
}

func (s *Server) bind(sid, schemaPath string) {
	if previous, superseded := s.sessions.Bind(sid, schemaPath); superseded {
		common.Logger().Debug("api: discarded previous session binding",
			"session", sid, "previous", previous, "current", schemaPath)
	}
}

// formFile extracts and sanitizes one named upload part. Missing part or
// empty filename map to 400; extension checks are the caller's concern.
func formFile(r *http.Request, part string) (multipart.File, string, *httpError) {
	file, header, err := r.FormFile(part)
	if err != nil {
		return nil, "", badRequest("no %s file part", part)
	}
	filename := storage.SafeName(header.Filename)
	if filename == "" || filename == "_" {
		file.Close()
		return nil, "", badRequest("no selected file")
	}
	return file, filename, nil
}

func hasPart(r *http.Request, part string) bool {
	return r.MultipartForm != nil && len(r.MultipartForm.File[part]) > 0
}
