// Package dictionary collects string-like literals of a program into an insertion-ordered multiset
// and orders the result so that the most valuable entries receive the shortest references.
package dictionary

import (
	"strings"

	"github.com/tdewolff/jsprivacy/rewrite"
)

// EntryKind is the kind of a dictionary entry, each kind renders differently.
type EntryKind uint8

// EntryKind values.
const (
	StringEntry EntryKind = iota
	TemplateQuasiEntry
	TaggedTemplateEntry
)

func (k EntryKind) String() string {
	switch k {
	case StringEntry:
		return "String"
	case TemplateQuasiEntry:
		return "TemplateQuasi"
	case TaggedTemplateEntry:
		return "TaggedTemplate"
	}
	return "Invalid"
}

// Entry is a normalized dictionary entry together with its statistics.
type Entry struct {
	Kind   EntryKind
	Text   string   // quoted string or raw quasi
	Quasis []string // raw quasis of a tagged template

	Count    int // number of occurrences
	Index    int // insertion index
	FirstPos int // start of the first occurrence
}

func (e Entry) key() string {
	if e.Kind == TaggedTemplateEntry {
		return string('0'+byte(e.Kind)) + strings.Join(e.Quasis, "\x00")
	}
	return string('0'+byte(e.Kind)) + e.Text
}

// Benefit returns the maximum number of bytes saved by replacing all occurrences of the entry with
// a reference into a dictionary named identifier.
func (e Entry) Benefit(identifier string) int {
	switch e.Kind {
	case StringEntry, TemplateQuasiEntry:
		ref := len(identifier) + 3 // brackets and a single digit
		if ref < len(e.Text) {
			return (len(e.Text) - ref) * e.Count
		}
		return 0
	case TaggedTemplateEntry:
		// underestimated, tagged templates are rewritten whatever their slot
		if 1 < e.Count {
			return 2
		}
		return 1
	}
	return 0
}

// Dictionary is an insertion-ordered multiset of entries. Entries are never removed.
type Dictionary struct {
	Entries []Entry
	index   map[string]int
}

// Len returns the number of distinct entries.
func (d *Dictionary) Len() int {
	return len(d.Entries)
}

// add increments the count of an existing entry or appends it, and returns its insertion index.
func (d *Dictionary) add(e Entry, pos int) int {
	if d.index == nil {
		d.index = map[string]int{}
	}
	key := e.key()
	if i, ok := d.index[key]; ok {
		d.Entries[i].Count++
		return i
	}
	e.Count = 1
	e.Index = len(d.Entries)
	e.FirstPos = pos
	d.index[key] = e.Index
	d.Entries = append(d.Entries, e)
	return e.Index
}

// Excluder reports whether a span is excluded by directives.
type Excluder interface {
	Excludes(rewrite.Span) bool
}
