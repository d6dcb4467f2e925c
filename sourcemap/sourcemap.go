// Package sourcemap reads, writes and chains version 3 source maps.
package sourcemap

import (
	"io"
	"strconv"
	"unicode/utf8"

	"github.com/tdewolff/jsprivacy/rewrite"
)

// Mapping maps a generated position to an original position. Lines are 0-based, columns are
// 0-based counts of UTF-16 code units.
type Mapping struct {
	GeneratedLine   int32
	GeneratedColumn int32

	SourceIndex    int32
	OriginalLine   int32
	OriginalColumn int32
	OriginalName   int32 // -1 if absent
}

// SourceMap is a version 3 source map with decoded mappings sorted by generated position.
type SourceMap struct {
	File           string
	SourceRoot     string
	Sources        []string
	SourcesContent []*string // nil for null entries
	Names          []string
	Mappings       []Mapping
	IgnoreList     []int
}

// FromTokens returns the map of a single source file. Content is embedded when not nil.
func FromTokens(filename string, content *string, tokens []rewrite.Token) *SourceMap {
	sm := &SourceMap{
		Sources:  []string{filename},
		Names:    []string{},
		Mappings: make([]Mapping, 0, len(tokens)),
	}
	if content != nil {
		sm.SourcesContent = []*string{content}
	}
	for _, t := range tokens {
		sm.Mappings = append(sm.Mappings, Mapping{
			GeneratedLine:   int32(t.DstLine),
			GeneratedColumn: int32(t.DstCol),
			OriginalLine:    int32(t.SrcLine),
			OriginalColumn:  int32(t.SrcCol),
			OriginalName:    -1,
		})
	}
	return sm
}

// Find returns the last mapping on the given generated line that starts at or before column, or
// nil if there is none.
func (sm *SourceMap) Find(line, column int32) *Mapping {
	mappings := sm.Mappings

	count := len(mappings)
	index := 0
	for 0 < count {
		step := count / 2
		i := index + step
		m := mappings[i]
		if m.GeneratedLine < line || m.GeneratedLine == line && m.GeneratedColumn <= column {
			index = i + 1
			count -= step + 1
		} else {
			count = step
		}
	}

	if 0 < index {
		m := &mappings[index-1]
		if m.GeneratedLine == line {
			return m
		}
	}
	return nil
}

// AppendMappings appends the encoded mappings field without quotes.
func (sm *SourceMap) AppendMappings(b []byte) []byte {
	var prevSource, prevOrigLine, prevOrigCol, prevName, prevGenLine, prevGenCol int32
	for i, m := range sm.Mappings {
		if prevGenLine != m.GeneratedLine {
			for prevGenLine < m.GeneratedLine {
				b = append(b, ';')
				prevGenLine++
			}
			prevGenCol = 0
		} else if i != 0 {
			b = append(b, ',')
		}
		b = AppendVLQ(b, m.GeneratedColumn-prevGenCol)
		prevGenCol = m.GeneratedColumn
		b = AppendVLQ(b, m.SourceIndex-prevSource)
		prevSource = m.SourceIndex
		b = AppendVLQ(b, m.OriginalLine-prevOrigLine)
		prevOrigLine = m.OriginalLine
		b = AppendVLQ(b, m.OriginalColumn-prevOrigCol)
		prevOrigCol = m.OriginalColumn
		if 0 <= m.OriginalName {
			b = AppendVLQ(b, m.OriginalName-prevName)
			prevName = m.OriginalName
		}
	}
	return b
}

// Bytes returns the JSON encoding of the map.
func (sm *SourceMap) Bytes() []byte {
	b := []byte(`{"version":3`)
	if sm.File != "" {
		b = append(b, `,"file":`...)
		b = appendQuote(b, sm.File)
	}
	if sm.SourceRoot != "" {
		b = append(b, `,"sourceRoot":`...)
		b = appendQuote(b, sm.SourceRoot)
	}
	b = append(b, `,"sources":[`...)
	for i, source := range sm.Sources {
		if i != 0 {
			b = append(b, ',')
		}
		b = appendQuote(b, source)
	}
	b = append(b, ']')
	if sm.SourcesContent != nil {
		b = append(b, `,"sourcesContent":[`...)
		for i, content := range sm.SourcesContent {
			if i != 0 {
				b = append(b, ',')
			}
			if content == nil {
				b = append(b, "null"...)
			} else {
				b = appendQuote(b, *content)
			}
		}
		b = append(b, ']')
	}
	b = append(b, `,"names":[`...)
	for i, name := range sm.Names {
		if i != 0 {
			b = append(b, ',')
		}
		b = appendQuote(b, name)
	}
	b = append(b, `],"mappings":"`...)
	b = sm.AppendMappings(b)
	b = append(b, '"')
	if sm.IgnoreList != nil {
		b = append(b, `,"ignoreList":[`...)
		for i, index := range sm.IgnoreList {
			if i != 0 {
				b = append(b, ',')
			}
			b = strconv.AppendInt(b, int64(index), 10)
		}
		b = append(b, ']')
	}
	return append(b, '}')
}

// Write writes the JSON encoding of the map to w.
func (sm *SourceMap) Write(w io.Writer) error {
	_, err := w.Write(sm.Bytes())
	return err
}

const hex = "0123456789abcdef"

// appendQuote appends s as a JSON string. Invalid UTF-8 is replaced by U+FFFD.
func appendQuote(b []byte, s string) []byte {
	b = append(b, '"')
	start := 0
	for i := 0; i < len(s); {
		c := s[i]
		if c < utf8.RuneSelf {
			if c < 0x20 || c == '"' || c == '\\' {
				b = append(b, s[start:i]...)
				switch c {
				case '"', '\\':
					b = append(b, '\\', c)
				case '\n':
					b = append(b, '\\', 'n')
				case '\r':
					b = append(b, '\\', 'r')
				case '\t':
					b = append(b, '\\', 't')
				default:
					b = append(b, '\\', 'u', '0', '0', hex[c>>4], hex[c&0xF])
				}
				start = i + 1
			}
			i++
			continue
		}
		r, n := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && n == 1 {
			b = append(b, s[start:i]...)
			b = append(b, `\ufffd`...)
			start = i + n
		} else if r == '\u2028' || r == '\u2029' {
			b = append(b, s[start:i]...)
			b = append(b, '\\', 'u', '2', '0', '2', hex[r&0xF])
			start = i + n
		}
		i += n
	}
	b = append(b, s[start:]...)
	return append(b, '"')
}
