// File path: internal/rdfio/graph.go
package rdfio

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/knakk/rdf"
	"github.com/piprate/json-gold/ld"
)

// Graph holds the quads parsed from one N-Quads file.
type Graph struct {
	quads []rdf.Quad
}

// LoadFile parses the N-Quads file at path.
func LoadFile(path string) (*Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("rdfio: open %s: %w", path, err)
	}
	defer f.Close()
	dec := rdf.NewQuadDecoder(f, rdf.NQuads)
	quads, err := dec.DecodeAll()
	if err != nil {
		return nil, fmt.Errorf("rdfio: parse %s: %w", path, err)
	}
	return &Graph{quads: quads}, nil
}

// Len reports the number of quads in the graph.
func (g *Graph) Len() int {
	if g == nil {
		return 0
	}
	return len(g.quads)
}

// Serialize writes the graph to w in the requested format. Triple-based
// formats drop the named-graph component of each quad.
func (g *Graph) Serialize(w io.Writer, format Format) error {
	switch format.Name {
	case NQuads.Name:
		for _, q := range g.quads {
			if _, err := io.WriteString(w, q.Serialize(rdf.NQuads)); err != nil {
				return fmt.Errorf("rdfio: serialize nquads: %w", err)
			}
		}
		return nil
	case NTriples.Name:
		for _, q := range g.quads {
			if _, err := io.WriteString(w, q.Triple.Serialize(rdf.NTriples)); err != nil {
				return fmt.Errorf("rdfio: serialize ntriples: %w", err)
			}
		}
		return nil
	case Turtle.Name:
		enc := rdf.NewTripleEncoder(w, rdf.Turtle)
		for _, q := range g.quads {
			if err := enc.Encode(q.Triple); err != nil {
				return fmt.Errorf("rdfio: serialize turtle: %w", err)
			}
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("rdfio: serialize turtle: %w", err)
		}
		return nil
	case JSONLD.Name:
		return g.serializeJSONLD(w)
	default:
		return fmt.Errorf("rdfio: unsupported format %q", format.Name)
	}
}

func (g *Graph) serializeJSONLD(w io.Writer) error {
	var nquads strings.Builder
	for _, q := range g.quads {
		nquads.WriteString(q.Serialize(rdf.NQuads))
	}
	proc := ld.NewJsonLdProcessor()
	opts := ld.NewJsonLdOptions("")
	opts.InputFormat = "application/n-quads"
	doc, err := proc.FromRDF(nquads.String(), opts)
	if err != nil {
		return fmt.Errorf("rdfio: serialize jsonld: %w", err)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("rdfio: serialize jsonld: %w", err)
	}
	return nil
}
