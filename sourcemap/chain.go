package sourcemap

import (
	"fmt"

	"github.com/tdewolff/jsprivacy/rewrite"
)

// Chain composes two maps: older maps an intermediate file to its sources, newer maps the final
// output to that intermediate file. The result maps the final output to the sources of older.
// Mappings of newer that have no counterpart in older are dropped.
func Chain(older, newer *SourceMap) *SourceMap {
	sm := &SourceMap{
		File:           newer.File,
		SourceRoot:     older.SourceRoot,
		Sources:        older.Sources,
		SourcesContent: older.SourcesContent,
		Names:          older.Names,
		Mappings:       make([]Mapping, 0, len(newer.Mappings)),
		IgnoreList:     older.IgnoreList,
	}
	for _, m := range newer.Mappings {
		orig := older.Find(m.OriginalLine, m.OriginalColumn)
		if orig == nil {
			continue
		}
		sm.Mappings = append(sm.Mappings, Mapping{
			GeneratedLine:   m.GeneratedLine,
			GeneratedColumn: m.GeneratedColumn,
			SourceIndex:     orig.SourceIndex,
			OriginalLine:    orig.OriginalLine,
			OriginalColumn:  orig.OriginalColumn,
			OriginalName:    orig.OriginalName,
		})
	}
	return sm
}

// Reference is a sourceMappingURL comment found in a file.
type Reference struct {
	URL  string
	Data []byte // decoded map of a data URL, nil for external maps
	Span rewrite.Span
}

// Inline returns true if the map is embedded in the comment.
func (r *Reference) Inline() bool {
	return r != nil && r.Data != nil
}

// Compose decides the map of a transformed file. The transform map is chained under the input map
// supplied by the caller, or else under the map embedded in ref. If ref points to an external
// map, there is no safe way to chain and nil is returned.
func Compose(ref *Reference, input []byte, transform *SourceMap, logger rewrite.Logger) (*SourceMap, error) {
	logger = rewrite.OrDiscard(logger)
	if ref != nil && !ref.Inline() {
		logger.Printf("external source map %s detected, not generating a source map", ref.URL)
		return nil, nil
	}

	var data []byte
	if input != nil {
		if ref.Inline() {
			logger.Printf("ignoring inline source map in favor of the input source map")
		}
		data = input
	} else if ref.Inline() {
		data = ref.Data
	} else {
		return transform, nil
	}

	older, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("input source map: %w", err)
	}
	return Chain(older, transform), nil
}
