package privacy

import (
	"strings"

	"github.com/tdewolff/jsprivacy/dictionary"
	"github.com/tdewolff/jsprivacy/rewrite"
)

// Helper is the function that registers the dictionary. It is either an expression evaluated in
// place, or the export Func imported from the CJS or ESM module.
type Helper struct {
	Code string // takes precedence over the import when set
	Func string
	CJS  string
	ESM  string
}

// DefaultHelper imports $ from the privacy helpers module.
var DefaultHelper = Helper{
	Func: "$",
	CJS:  "datadog:privacy-helpers.cjs",
	ESM:  "datadog:privacy-helpers.mjs",
}

var moduleEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`, "\n", `\n`, "\r", `\r`)

// HelperDeclaration returns the statement that binds the helper to identifier.
func (h Helper) HelperDeclaration(identifier string, module ModuleKind) string {
	if h.Code != "" {
		return "const " + identifier + "=" + h.Code + ";"
	}

	sb := strings.Builder{}
	if module == CJS {
		sb.WriteString("const{")
		sb.WriteString(h.Func)
		if identifier != h.Func {
			sb.WriteString(":")
			sb.WriteString(identifier)
		}
		sb.WriteString("}=require('")
		sb.WriteString(moduleEscaper.Replace(h.CJS))
		sb.WriteString("');")
	} else {
		sb.WriteString("import{")
		sb.WriteString(h.Func)
		if identifier != h.Func {
			sb.WriteString(" as ")
			sb.WriteString(identifier)
		}
		sb.WriteString("}from'")
		sb.WriteString(moduleEscaper.Replace(h.ESM))
		sb.WriteString("';")
	}
	return sb.String()
}

// Header returns the insertions at HeaderPos that import the helper and declare the dictionary.
// It returns nil for an empty dictionary.
func (p *Params) Header() []rewrite.Rewrite[Content] {
	d := p.Dictionary
	if d == nil || d.Len() == 0 {
		return nil
	}

	helper := p.Helper.HelperDeclaration(p.HelperIdentifier, p.Module)
	if p.HeaderSemicolon {
		helper = ";" + helper
	}

	pos := p.HeaderPos
	header := make([]rewrite.Rewrite[Content], 0, d.Len()+3)
	header = append(header,
		rewrite.Insert(Content{Kind: HelperImport, Text: helper, Pos: pos}, pos),
		rewrite.Insert(Content{Kind: DictionaryOpener, Text: "const " + d.Identifier + "=" + p.HelperIdentifier + "(["}, pos),
	)
	for slot, e := range d.Entries {
		text := p.entry(e)
		if slot != 0 {
			text = "," + text
		}
		header = append(header, rewrite.Insert(Content{Kind: DictionaryEntry, Text: text, Slot: slot, Pos: e.FirstPos}, pos))
	}
	header = append(header, rewrite.Insert(Content{Kind: DictionaryCloser, Text: "]);"}, pos))
	return header
}

func (p *Params) entry(e dictionary.Entry) string {
	switch e.Kind {
	case dictionary.TemplateQuasiEntry:
		return "`" + e.Text + "`"
	case dictionary.TaggedTemplateEntry:
		return p.HelperIdentifier + "`" + strings.Join(e.Quasis, "${0}") + "`"
	}
	return e.Text
}
