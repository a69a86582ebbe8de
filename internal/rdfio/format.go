// File path: internal/rdfio/format.go

// Package rdfio loads the engine's N-Quads output and re-serializes it in
// the formats the download surface offers. Parsing and serialization proper
// are delegated to knakk/rdf and piprate/json-gold.
package rdfio

import "strings"

// Format is one supported output serialization with its canonical file
// extension and media type.
type Format struct {
	Name      string
	Ext       string
	MediaType string
}

var (
	NQuads   = Format{Name: "nquads", Ext: ".nq", MediaType: "application/n-quads"}
	NTriples = Format{Name: "ntriples", Ext: ".nt", MediaType: "application/n-triples"}
	Turtle   = Format{Name: "turtle", Ext: ".ttl", MediaType: "text/turtle"}
	JSONLD   = Format{Name: "jsonld", Ext: ".jsonld", MediaType: "application/ld+json"}
)

var formats = []Format{NQuads, NTriples, Turtle, JSONLD}

var nameAliases = map[string]string{
	"json-ld": "jsonld",
	"nt":      "ntriples",
	"nq":      "nquads",
	"ttl":     "turtle",
}

// Supported lists every offered format.
func Supported() []Format {
	out := make([]Format, len(formats))
	copy(out, formats)
	return out
}

// ByName resolves a form-selected format name, tolerating the common
// aliases the web form historically used.
func ByName(name string) (Format, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	if alias, ok := nameAliases[key]; ok {
		key = alias
	}
	for _, f := range formats {
		if f.Name == key {
			return f, true
		}
	}
	return Format{}, false
}

// ByMediaType resolves an Accept header value against the supported media
// types. Only exact matches count; wildcard negotiation is the caller's
// concern.
func ByMediaType(mediaType string) (Format, bool) {
	key := strings.TrimSpace(mediaType)
	if idx := strings.Index(key, ";"); idx >= 0 {
		key = strings.TrimSpace(key[:idx])
	}
	for _, f := range formats {
		if strings.EqualFold(f.MediaType, key) {
			return f, true
		}
	}
	return Format{}, false
}
