// File path: internal/pairing/pairing.go

// Package pairing groups candidate filenames into CSV/JSON pairs and leftover
// CSV singles. Both the upload handlers and the Druid poller feed it their
// file listings; the result decides what the conversion engine runs on.
package pairing

import (
	"path/filepath"
	"strings"

	"github.com/CLARIAH/cattle-druid/internal/common"
)

// FilePair is a CSV data file together with the JSON schema sharing its stem.
type FilePair struct {
	Stem string
	CSV  string
	JSON string
}

// SingleFile is a CSV with no schema counterpart; it must pass through build
// before it can be converted.
type SingleFile struct {
	Stem string
	CSV  string
}

// Stem returns the filename without its final extension.
func Stem(name string) string {
	base := filepath.Base(name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// IsCSV reports whether the filename carries a .csv extension.
func IsCSV(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".csv")
}

// IsJSON reports whether the filename carries a .json extension.
func IsJSON(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".json")
}

// Pair classifies filenames by stem. A stem owning exactly one .csv and one
// .json becomes a pair; exactly one .csv alone becomes a single; every other
// combination (a lone .json, duplicate stems within one extension, foreign
// extensions) is dropped and logged as unpaired. A foreign-extension file
// disqualifies its whole stem even when a valid csv/json pair is present:
// the stem's intent is ambiguous, and skipping it is recoverable while
// converting the wrong grouping is not. The outcome is independent of input
// order.
func Pair(names []string) (map[string]FilePair, map[string]SingleFile) {
	type group struct {
		csv    []string
		json   []string
		others []string
	}
	groups := make(map[string]*group)
	for _, name := range names {
		trimmed := strings.TrimSpace(name)
		if trimmed == "" {
			continue
		}
		stem := Stem(trimmed)
		g := groups[stem]
		if g == nil {
			g = &group{}
			groups[stem] = g
		}
		switch strings.ToLower(filepath.Ext(trimmed)) {
		case ".csv":
			g.csv = append(g.csv, trimmed)
		case ".json":
			g.json = append(g.json, trimmed)
		default:
			g.others = append(g.others, trimmed)
		}
	}

	logger := common.Logger()
	candidates := make(map[string]FilePair)
	singles := make(map[string]SingleFile)
	for stem, g := range groups {
		switch {
		case len(g.csv) == 1 && len(g.json) == 1 && len(g.others) == 0:
			candidates[stem] = FilePair{Stem: stem, CSV: g.csv[0], JSON: g.json[0]}
		case len(g.csv) == 1 && len(g.json) == 0 && len(g.others) == 0:
			singles[stem] = SingleFile{Stem: stem, CSV: g.csv[0]}
		default:
			logger.Debug("pairing: dropping unpaired files",
				"stem", stem, "csv", len(g.csv), "json", len(g.json), "other", len(g.others))
		}
	}
	return candidates, singles
}

// SelectCandidate restricts both mappings to the entry whose stem matches
// the triggering basename, so a webhook only reacts to the file that caused
// it instead of reprocessing every asset ever seen. With no matching stem
// both results are empty.
func SelectCandidate(candidates map[string]FilePair, singles map[string]SingleFile, basename string) (map[string]FilePair, map[string]SingleFile) {
	stem := Stem(basename)
	selected := make(map[string]FilePair)
	remaining := make(map[string]SingleFile)
	if pair, ok := candidates[stem]; ok {
		selected[stem] = pair
	}
	if single, ok := singles[stem]; ok {
		remaining[stem] = single
	}
	return selected, remaining
}
