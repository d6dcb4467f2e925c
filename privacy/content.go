// Package privacy renders the rewrites that move string-like literals of a program into a
// dictionary of allowed values.
package privacy

import (
	"fmt"
	"strings"
)

// Kind is the kind of a rewrite content. Header kinds sort before reference kinds so that the
// header is emitted in order at position zero.
type Kind uint8

// Kind values.
const (
	HelperImport Kind = iota
	DictionaryOpener
	DictionaryEntry
	DictionaryCloser
	JSXStringReference
	PropertyKeyReference
	StringReference
	TaggedTemplateOpener
	TaggedTemplateBeforeExpr
	TaggedTemplateAfterExpr
	TaggedTemplateTerminator
	TemplateQuasiReference
	DeleteSourceMapComment
)

var kindNames = [...]string{
	"HelperImport",
	"DictionaryOpener",
	"DictionaryEntry",
	"DictionaryCloser",
	"JSXStringReference",
	"PropertyKeyReference",
	"StringReference",
	"TaggedTemplateOpener",
	"TaggedTemplateBeforeExpr",
	"TaggedTemplateAfterExpr",
	"TaggedTemplateTerminator",
	"TemplateQuasiReference",
	"DeleteSourceMapComment",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Invalid(%d)", k)
}

// Content is the final text of a rewrite.
type Content struct {
	Kind Kind
	Text string
	Slot int // dictionary slot of a DictionaryEntry
	Pos  int // first occurrence of a DictionaryEntry, insertion point of a HelperImport
}

func (c Content) String() string {
	return c.Text
}

// Compare orders by kind, dictionary entries by slot, and then by text.
func (c Content) Compare(o Content) int {
	if c.Kind != o.Kind {
		return cmpInt(int(c.Kind), int(o.Kind))
	} else if c.Kind == DictionaryEntry && c.Slot != o.Slot {
		return cmpInt(c.Slot, o.Slot)
	}
	return strings.Compare(c.Text, o.Text)
}

// SourcePos returns the first occurrence of a dictionary entry, so that the entry in the header
// maps back to where the string was found. The header itself maps to where it is inserted.
func (c Content) SourcePos() (int, bool) {
	return c.Pos, c.Kind == DictionaryEntry || c.Kind == HelperImport
}

// OnlyReplaceIfSmaller returns true for references that are only worth emitting when they are
// shorter than the literal they replace. Tagged template pieces must all be emitted together.
func (c Content) OnlyReplaceIfSmaller() bool {
	switch c.Kind {
	case JSXStringReference, PropertyKeyReference, StringReference, TemplateQuasiReference:
		return true
	}
	return false
}

func cmpInt(a, b int) int {
	if a < b {
		return -1
	} else if b < a {
		return 1
	}
	return 0
}
