package rewrite

import (
	"fmt"
	"io"
	"log"
)

// Span is a half-open byte range [Lo,Hi) into a source text.
type Span struct {
	Lo, Hi int
}

// Len returns the number of bytes covered by the span.
func (s Span) Len() int {
	return s.Hi - s.Lo
}

// Intersects returns true if both spans share at least one byte.
func (s Span) Intersects(o Span) bool {
	return s.Lo < o.Hi && o.Lo < s.Hi
}

func (s Span) String() string {
	return fmt.Sprintf("[%d,%d)", s.Lo, s.Hi)
}

// Logger receives debug diagnostics, *log.Logger satisfies it.
type Logger interface {
	Printf(format string, v ...interface{})
}

// Discard is a Logger that drops everything.
var Discard Logger = log.New(io.Discard, "", 0)

// OrDiscard returns l, or Discard if l is nil.
func OrDiscard(l Logger) Logger {
	if l == nil {
		return Discard
	}
	return l
}

// Content is the payload of a rewrite. It renders to text with String, is totally ordered by
// Compare and may report an alternate source position that the source map should point to.
type Content[C any] interface {
	fmt.Stringer
	Compare(C) int
	SourcePos() (int, bool)
}

// Kind is the kind of rewrite. Insertions sort before replacements at the same position.
type Kind uint8

// Kind values.
const (
	InsertKind Kind = iota
	ReplaceKind
)

func (k Kind) String() string {
	switch k {
	case InsertKind:
		return "Insert"
	case ReplaceKind:
		return "Replace"
	}
	return fmt.Sprintf("Invalid(%d)", k)
}

// Rewrite is a planned edit against the original source. Insertions have an empty span.
type Rewrite[C Content[C]] struct {
	Kind    Kind
	Content C
	Span    Span
}

// Insert returns a rewrite that inserts content at pos.
func Insert[C Content[C]](content C, pos int) Rewrite[C] {
	return Rewrite[C]{InsertKind, content, Span{pos, pos}}
}

// Replace returns a rewrite that replaces the span by content.
func Replace[C Content[C]](content C, span Span) Rewrite[C] {
	return Rewrite[C]{ReplaceKind, content, span}
}

// Compare orders rewrites by start position, then insertions before replacements, then larger
// end position first, and finally by content.
func (r Rewrite[C]) Compare(o Rewrite[C]) int {
	if r.Span.Lo != o.Span.Lo {
		return cmpInt(r.Span.Lo, o.Span.Lo)
	} else if r.Kind != o.Kind {
		return cmpInt(int(r.Kind), int(o.Kind))
	} else if r.Span.Hi != o.Span.Hi {
		return cmpInt(o.Span.Hi, r.Span.Hi)
	}
	return r.Content.Compare(o.Content)
}

func (r Rewrite[C]) String() string {
	if r.Kind == InsertKind {
		return fmt.Sprintf("Insert(%q at %d)", r.Content.String(), r.Span.Lo)
	}
	return fmt.Sprintf("Replace(%v with %q)", r.Span, r.Content.String())
}

// Map converts the content of a rewrite, keeping its kind and span.
func Map[C Content[C], D Content[D]](r Rewrite[C], f func(C) (D, error)) (Rewrite[D], error) {
	content, err := f(r.Content)
	if err != nil {
		return Rewrite[D]{}, err
	}
	return Rewrite[D]{r.Kind, content, r.Span}, nil
}

func cmpInt(a, b int) int {
	if a < b {
		return -1
	} else if b < a {
		return 1
	}
	return 0
}
