package privacy

import (
	"fmt"
	"strings"

	"github.com/tdewolff/jsprivacy/dictionary"
	"github.com/tdewolff/jsprivacy/rewrite"
)

// ModuleKind is the module system of a file, it decides how the helper is imported.
type ModuleKind uint8

// ModuleKind values.
const (
	UnknownModule ModuleKind = iota
	ESM
	CJS
)

func (m ModuleKind) String() string {
	switch m {
	case ESM:
		return "esm"
	case CJS:
		return "cjs"
	}
	return "unknown"
}

// ParseModuleKind parses "esm" or "cjs", the empty string is UnknownModule.
func ParseModuleKind(s string) (ModuleKind, error) {
	switch strings.ToLower(s) {
	case "":
		return UnknownModule, nil
	case "esm":
		return ESM, nil
	case "cjs":
		return CJS, nil
	}
	return UnknownModule, fmt.Errorf("unknown module kind %q", s)
}

// Template is a rewrite recorded during the walk. It refers to dictionary entries by insertion
// index since the final slots are only known after optimization.
type Template struct {
	Kind         Kind
	Index        int
	MaybeKeyword bool // the literal directly follows a letter, as in return"x"
}

func (t Template) String() string {
	switch t.Kind {
	case TaggedTemplateBeforeExpr, TaggedTemplateAfterExpr, TaggedTemplateTerminator, DeleteSourceMapComment:
		return t.Kind.String()
	}
	return fmt.Sprintf("%v(%d)", t.Kind, t.Index)
}

// Compare orders by kind, index and left context.
func (t Template) Compare(o Template) int {
	if t.Kind != o.Kind {
		return cmpInt(int(t.Kind), int(o.Kind))
	} else if t.Index != o.Index {
		return cmpInt(t.Index, o.Index)
	} else if t.MaybeKeyword != o.MaybeKeyword {
		if o.MaybeKeyword {
			return -1
		}
		return 1
	}
	return 0
}

// SourcePos is never set for templates.
func (t Template) SourcePos() (int, bool) {
	return 0, false
}

// Params are the values known after the walk that templates are evaluated against.
type Params struct {
	Dictionary       *dictionary.Optimized
	Helper           Helper
	HelperIdentifier string
	Module           ModuleKind

	// HeaderPos is where the header is inserted, after a hashbang and the directive prologue.
	// HeaderSemicolon terminates a directive that has no semicolon before the header.
	HeaderPos       int
	HeaderSemicolon bool
}

// Evaluate renders t. It returns an error wrapping dictionary.ErrInvalidIndex when t refers to
// an entry that is not in the dictionary.
func (p *Params) Evaluate(t Template) (Content, error) {
	text := ""
	switch t.Kind {
	case JSXStringReference, PropertyKeyReference, StringReference, TaggedTemplateOpener, TemplateQuasiReference:
		ref, err := p.Dictionary.Reference(t.Index)
		if err != nil {
			return Content{}, fmt.Errorf("%v: %w", t, err)
		}
		switch t.Kind {
		case JSXStringReference:
			text = "{" + ref + "}"
		case PropertyKeyReference:
			text = "[" + ref + "]"
		case StringReference:
			text = ref
			if t.MaybeKeyword {
				text = " " + ref
			}
		case TaggedTemplateOpener:
			text = "(" + ref
		case TemplateQuasiReference:
			text = "${" + ref + "}"
		}
	case TaggedTemplateBeforeExpr:
		text = ", "
	case TaggedTemplateTerminator:
		text = ")"
	case TaggedTemplateAfterExpr, DeleteSourceMapComment:
	default:
		return Content{}, fmt.Errorf("%v is not a template", t.Kind)
	}
	return Content{Kind: t.Kind, Text: text}, nil
}

// EvaluateAll evaluates the body rewrites, which must be in walk order. Rewrites that fail to
// evaluate are logged and dropped, leaving the original text in place. When a tagged template
// opener is dropped, the other pieces of that tagged template are dropped with it. References
// that would not shrink the code are dropped too.
func (p *Params) EvaluateAll(templates []rewrite.Rewrite[Template], logger rewrite.Logger) []rewrite.Rewrite[Content] {
	logger = rewrite.OrDiscard(logger)
	rewrites := make([]rewrite.Rewrite[Content], 0, len(templates))
	tagged := []bool{} // validity of the open tagged templates
	for _, t := range templates {
		switch t.Content.Kind {
		case TaggedTemplateBeforeExpr, TaggedTemplateAfterExpr, TaggedTemplateTerminator:
			if len(tagged) == 0 {
				logger.Printf("dropping %v: outside of a tagged template", t)
				continue
			}
			valid := tagged[len(tagged)-1]
			if t.Content.Kind == TaggedTemplateTerminator {
				tagged = tagged[:len(tagged)-1]
			}
			if !valid {
				continue
			}
		}

		r, err := rewrite.Map(t, p.Evaluate)
		if t.Content.Kind == TaggedTemplateOpener {
			tagged = append(tagged, err == nil)
		}
		if err != nil {
			logger.Printf("dropping rewrite at %v: %v", t.Span, err)
			continue
		} else if r.Content.OnlyReplaceIfSmaller() && r.Span.Len() <= len(r.Content.Text) {
			continue
		}
		rewrites = append(rewrites, r)
	}
	return rewrites
}
