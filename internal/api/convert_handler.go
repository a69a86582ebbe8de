// File path: internal/api/convert_handler.go
package api

import (
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/CLARIAH/cattle-druid/internal/common"
	"github.com/CLARIAH/cattle-druid/internal/cow"
	"github.com/CLARIAH/cattle-druid/internal/rdfio"
	"github.com/CLARIAH/cattle-druid/internal/session"
)

func (s *Server) handleConvertLocal(w http.ResponseWriter, r *http.Request) {
	common.Logger().Info("api: received request to convert files locally")
	sid := session.EnsureID(w, r)
	s.convertCurrent(w, r, sid)
}

// convertCurrent converts the session's bound CSV and streams the graph in
// the negotiated serialization. The binding is cleared only after a
// successful response.
func (s *Server) convertCurrent(w http.ResponseWriter, r *http.Request, sid string) {
	logger := common.Logger()
	schemaPath, ok := s.sessions.Current(sid)
	if !ok {
		s.renderError(w, http.StatusBadRequest, errors.New("no current file; build a schema first"))
		return
	}
	csvPath := sourceCSVFor(schemaPath)
	if !fileExists(csvPath) || !fileExists(schemaPath) {
		s.renderError(w, http.StatusBadRequest, errors.New("no files supplied, wrong file types, or unexpected file extensions"))
		return
	}

	logger.Debug("api: running engine convert", "csv", csvPath)
	quadsPath, err := s.invoker.Convert(r.Context(), csvPath)
	if err != nil {
		var convErr *cow.ConvertError
		if errors.As(err, &convErr) && convErr.NoOutput {
			s.renderError(w, http.StatusInternalServerError,
				errors.New("COW could not generate any RDF output. Please check the syntax of your CSV and JSON files and try again."))
			return
		}
		s.renderError(w, http.StatusInternalServerError, err)
		return
	}
	graph, err := rdfio.LoadFile(quadsPath)
	if err != nil {
		s.renderError(w, http.StatusInternalServerError, err)
		return
	}

	accept := r.Header.Get("Accept")
	baseName := filepath.Base(csvPath)
	switch {
	case accept == "" || strings.Contains(accept, "*/*"):
		format, ok := rdfio.ByName(r.FormValue("formatSelect"))
		if !ok {
			s.renderError(w, http.StatusUnsupportedMediaType, errors.New("Requested format unavailable"))
			return
		}
		if err := s.sendGraph(w, graph, format, baseName, r.FormValue("zip") != ""); err != nil {
			s.renderError(w, http.StatusInternalServerError, err)
			return
		}
	default:
		format, ok := rdfio.ByMediaType(accept)
		if !ok {
			s.renderError(w, http.StatusUnsupportedMediaType, errors.New("Requested format unavailable"))
			return
		}
		var buf bytes.Buffer
		if err := graph.Serialize(&buf, format); err != nil {
			s.renderError(w, http.StatusInternalServerError, err)
			return
		}
		w.Header().Set("Content-Type", format.MediaType)
		_, _ = w.Write(buf.Bytes())
	}

	s.sessions.Clear(sid)
	logger.Info("api: conversion served", "csv", baseName, "quads", graph.Len())
}

// sendGraph writes the serialized graph as an attachment, optionally inside
// a single-member gzip container.
func (s *Server) sendGraph(w http.ResponseWriter, graph *rdfio.Graph, format rdfio.Format, baseName string, zipped bool) error {
	var buf bytes.Buffer
	if err := graph.Serialize(&buf, format); err != nil {
		return err
	}
	filename := baseName + format.Ext
	if zipped {
		var compressed bytes.Buffer
		gz := gzip.NewWriter(&compressed)
		gz.Name = filename
		if _, err := gz.Write(buf.Bytes()); err != nil {
			return err
		}
		if err := gz.Close(); err != nil {
			return err
		}
		w.Header().Set("Content-Type", "application/gzip")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.gz", filename))
		_, _ = w.Write(compressed.Bytes())
		return nil
	}
	w.Header().Set("Content-Type", format.MediaType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	_, _ = w.Write(buf.Bytes())
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
