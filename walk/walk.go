package walk

import (
	"strings"

	sitter "github.com/alexaandru/go-tree-sitter-bare"
	"github.com/tdewolff/jsprivacy/dictionary"
	"github.com/tdewolff/jsprivacy/privacy"
	"github.com/tdewolff/jsprivacy/rewrite"
)

// Collector receives what the walk finds. Candidate returns the dictionary index of a literal,
// or false when the literal is not collected. Rewrites are only recorded for collected literals.
type Collector interface {
	Token(pos int)
	Identifier(name string, span rewrite.Span)
	Candidate(c dictionary.Candidate) (int, bool)
	EnterUncollected() func()
	EnterUnrewritten() func()
	Replace(t privacy.Template, span rewrite.Span)
}

// Features are the module keywords seen during the walk.
type Features struct {
	ESM bool // import or export declarations, import()
	CJS bool // require() or exports
}

var identifierTypes = map[string]bool{
	"identifier":                            true,
	"property_identifier":                   true,
	"shorthand_property_identifier":         true,
	"shorthand_property_identifier_pattern": true,
	"private_property_identifier":           true,
	"statement_identifier":                  true,
	"type_identifier":                       true,
}

// nodes without runtime semantics, all names ending in _type are included as well
var typeOnlyTypes = map[string]bool{
	"type_annotation":           true,
	"opting_type_annotation":    true,
	"omitting_type_annotation":  true,
	"asserts_annotation":        true,
	"type_predicate_annotation": true,
	"type_alias_declaration":    true,
	"interface_declaration":     true,
	"type_arguments":            true,
	"type_parameters":           true,
	"index_signature":           true,
	"ambient_declaration":       true,
}

// fields holding the key of properties, methods and class fields
var keyFields = map[string]string{
	"pair":                    "key",
	"pair_pattern":            "key",
	"method_definition":       "name",
	"field_definition":        "property",
	"public_field_definition": "name",
}

var uncollectedJSXElements = map[string]bool{
	"g":    true,
	"path": true,
}

var uncollectedJSXAttributes = map[string]bool{
	"class":     true,
	"className": true,
	"d":         true,
	"id":        true,
	"src":       true,
	"srcset":    true,
	"style":     true,
}

type walker struct {
	src      []byte
	c        Collector
	features Features
}

// Walk visits every node of the tree in source order.
func Walk(t *Tree, c Collector) Features {
	w := &walker{
		src: t.src,
		c:   c,
	}
	w.node(t.tree.RootNode())
	return w.features
}

func (w *walker) text(n sitter.Node) string {
	return string(w.src[start(n):end(n)])
}

func (w *walker) node(n sitter.Node) {
	w.c.Token(start(n))
	typ := n.Type()
	if typ == "comment" || typ == "html_comment" {
		return
	} else if identifierTypes[typ] {
		w.identifier(n)
		return
	} else if typeOnlyTypes[typ] || strings.HasSuffix(typ, "_type") {
		w.identifiers(n)
		return
	}

	switch typ {
	case "string":
		w.literal(n)
	case "template_string":
		w.template(n)
	case "call_expression":
		w.call(n)
	case "new_expression":
		if ctor := n.ChildByFieldName("constructor"); !ctor.IsNull() && ctor.Type() == "identifier" {
			if name := w.text(ctor); name == "Function" || name == "RegExp" {
				w.uncollected(n)
				return
			}
		}
		w.children(n)
	case "import_statement":
		w.features.ESM = true
		w.uncollected(n)
	case "export_statement":
		w.features.ESM = true
		if n.ChildByFieldName("source").IsNull() {
			w.children(n)
		} else {
			w.uncollected(n)
		}
	case "export_clause":
		w.uncollected(n)
	case "expression_statement":
		w.expressionStatement(n)
	case "pair", "pair_pattern", "method_definition", "field_definition", "public_field_definition":
		w.property(n)
	case "jsx_element", "jsx_self_closing_element":
		w.jsxElement(n)
	case "jsx_attribute":
		w.jsxAttribute(n)
	case "enum_body":
		exit := w.c.EnterUnrewritten()
		w.children(n)
		exit()
	default:
		w.children(n)
	}
}

func (w *walker) children(n sitter.Node) {
	for _, c := range children(n) {
		w.node(c)
	}
}

func (w *walker) uncollected(n sitter.Node) {
	exit := w.c.EnterUncollected()
	w.children(n)
	exit()
}

func (w *walker) identifier(n sitter.Node) {
	name := decodeIdentifier(w.text(n))
	if name == "exports" {
		w.features.CJS = true
	}
	w.c.Identifier(name, span(n))
}

// identifiers reports only the tokens and identifiers below n.
func (w *walker) identifiers(n sitter.Node) {
	for _, c := range children(n) {
		w.c.Token(start(c))
		if identifierTypes[c.Type()] {
			w.c.Identifier(decodeIdentifier(w.text(c)), span(c))
		} else {
			w.identifiers(c)
		}
	}
}

func (w *walker) literal(n sitter.Node) {
	raw := w.text(n)
	index, ok := w.c.Candidate(dictionary.Candidate{
		Kind:  dictionary.Plain,
		Raw:   raw,
		Value: decodeString(raw),
		Span:  span(n),
	})
	if !ok {
		return
	}
	lo := start(n)
	w.c.Replace(privacy.Template{
		Kind:         privacy.StringReference,
		Index:        index,
		MaybeKeyword: 0 < lo && 'a' <= w.src[lo-1] && w.src[lo-1] <= 'z',
	}, span(n))
}

// expressionStatement never collects a statement consisting of a single string, which may be a
// directive such as "use strict".
func (w *walker) expressionStatement(n sitter.Node) {
	var expr sitter.Node
	count := 0
	for _, c := range children(n) {
		if c.IsNamed() && c.Type() != "comment" {
			expr = c
			count++
		}
	}
	if count == 1 && expr.Type() == "string" {
		w.c.Token(start(expr))
		w.c.Token(end(n))
		return
	}
	w.children(n)
}

func (w *walker) property(n sitter.Node) {
	key := n.ChildByFieldName(keyFields[n.Type()])
	for _, c := range children(n) {
		if c.Type() == "string" && same(c, key) {
			w.propertyKey(c, n.Type())
		} else {
			w.node(c)
		}
	}
}

func (w *walker) propertyKey(n sitter.Node, parent string) {
	w.c.Token(start(n))
	raw := w.text(n)
	value := decodeString(raw)
	if value == "__proto__" && parent == "pair" || value == "constructor" && parent == "method_definition" {
		// a computed key has different semantics
		return
	}
	index, ok := w.c.Candidate(dictionary.Candidate{
		Kind:  dictionary.Plain,
		Raw:   raw,
		Value: value,
		Span:  span(n),
	})
	if ok {
		w.c.Replace(privacy.Template{Kind: privacy.PropertyKeyReference, Index: index}, span(n))
	}
}

func (w *walker) template(n sitter.Node) {
	prev := start(n) + 1
	for _, c := range children(n) {
		if c.Type() == "template_substitution" {
			w.quasi(prev, start(c))
			w.node(c)
			prev = end(c)
		}
	}
	w.quasi(prev, end(n)-1)
}

func (w *walker) quasi(lo, hi int) {
	if hi <= lo {
		return
	}
	raw := string(w.src[lo:hi])
	s := rewrite.Span{Lo: lo, Hi: hi}
	index, ok := w.c.Candidate(dictionary.Candidate{
		Kind:  dictionary.TemplateQuasi,
		Raw:   raw,
		Value: raw,
		Span:  s,
	})
	if ok {
		w.c.Replace(privacy.Template{Kind: privacy.TemplateQuasiReference, Index: index}, s)
	}
}

func (w *walker) call(n sitter.Node) {
	fn := n.ChildByFieldName("function")
	if args := n.ChildByFieldName("arguments"); !args.IsNull() && args.Type() == "template_string" {
		w.taggedTemplate(n, args)
		return
	}

	if fn.IsNull() {
		w.children(n)
		return
	}
	switch fn.Type() {
	case "import":
		w.features.ESM = true
		w.uncollected(n)
		return
	case "identifier":
		switch w.text(fn) {
		case "require":
			w.features.CJS = true
			w.uncollected(n)
			return
		case "eval":
			w.uncollected(n)
			return
		}
	}
	w.children(n)
}

// taggedTemplate turns tag`a${x}b` into tag(D[n], x) where D[n] is the template strings array
// created by the helper.
func (w *walker) taggedTemplate(n, tpl sitter.Node) {
	quasis := []string{}
	subs := []sitter.Node{}
	exprs := []sitter.Node{}
	collect := true
	prev := start(tpl) + 1
	for _, c := range children(tpl) {
		if c.Type() != "template_substitution" {
			continue
		}
		quasis = append(quasis, string(w.src[prev:start(c)]))
		subs = append(subs, c)
		expr := substitution(c)
		if expr.IsNull() || expr.Type() == "sequence_expression" {
			// a comma would split the argument
			collect = false
		}
		exprs = append(exprs, expr)
		prev = end(c)
	}
	quasis = append(quasis, string(w.src[prev:end(tpl)-1]))

	index, ok := 0, false
	if collect {
		index, ok = w.c.Candidate(dictionary.Candidate{
			Kind:   dictionary.TaggedTemplate,
			Quasis: quasis,
			Span:   span(tpl),
		})
	}

	for _, c := range children(n) {
		if !same(c, tpl) {
			w.node(c)
		}
	}
	w.c.Token(start(tpl))
	if !ok {
		for _, sub := range subs {
			w.node(sub)
		}
		return
	}

	lo := start(tpl)
	w.c.Replace(privacy.Template{Kind: privacy.TaggedTemplateOpener, Index: index}, rewrite.Span{Lo: lo, Hi: lo + 1})
	prev = lo + 1
	for i, sub := range subs {
		w.c.Replace(privacy.Template{Kind: privacy.TaggedTemplateBeforeExpr}, rewrite.Span{Lo: prev, Hi: start(exprs[i])})
		w.node(exprs[i])
		w.c.Replace(privacy.Template{Kind: privacy.TaggedTemplateAfterExpr}, rewrite.Span{Lo: end(exprs[i]), Hi: end(sub)})
		prev = end(sub)
	}
	w.c.Replace(privacy.Template{Kind: privacy.TaggedTemplateTerminator}, rewrite.Span{Lo: prev, Hi: end(tpl)})
}

// substitution returns the expression of a template substitution.
func substitution(n sitter.Node) sitter.Node {
	for _, c := range children(n) {
		if c.IsNamed() && c.Type() != "comment" {
			return c
		}
	}
	return sitter.Node{}
}

func (w *walker) jsxElement(n sitter.Node) {
	name := n.ChildByFieldName("name")
	if n.Type() == "jsx_element" {
		name = sitter.Node{}
		if open := n.ChildByFieldName("open_tag"); !open.IsNull() {
			name = open.ChildByFieldName("name")
		}
	}
	if !name.IsNull() && uncollectedJSXElements[w.text(name)] {
		exit := w.c.EnterUncollected()
		defer exit()
	}

	// adjacent text and character references form a single text
	lo, hi := -1, -1
	for _, c := range children(n) {
		if typ := c.Type(); typ == "jsx_text" || typ == "html_character_reference" {
			w.c.Token(start(c))
			if lo == -1 {
				lo = start(c)
			}
			hi = end(c)
			continue
		}
		w.jsxText(lo, hi)
		lo = -1
		w.node(c)
	}
	w.jsxText(lo, hi)
}

func (w *walker) jsxText(lo, hi int) {
	if lo == -1 {
		return
	}
	raw := string(w.src[lo:hi])
	s := rewrite.Span{Lo: lo, Hi: hi}
	index, ok := w.c.Candidate(dictionary.Candidate{
		Kind:  dictionary.JSXText,
		Raw:   raw,
		Value: raw,
		Span:  s,
	})
	if ok {
		w.c.Replace(privacy.Template{Kind: privacy.JSXStringReference, Index: index}, s)
	}
}

func (w *walker) jsxAttribute(n sitter.Node) {
	cs := children(n)
	if len(cs) == 0 {
		return
	}
	if uncollectedJSXAttributes[w.text(cs[0])] {
		exit := w.c.EnterUncollected()
		defer exit()
	}
	for _, c := range cs {
		if c.Type() != "string" {
			w.node(c)
			continue
		}
		w.c.Token(start(c))
		raw := w.text(c)
		index, ok := w.c.Candidate(dictionary.Candidate{
			Kind:  dictionary.JSXAttribute,
			Raw:   raw,
			Value: raw[1 : len(raw)-1],
			Span:  span(c),
		})
		if ok {
			w.c.Replace(privacy.Template{Kind: privacy.JSXStringReference, Index: index}, span(c))
		}
	}
}
