// Package walk parses JavaScript, TypeScript and JSX with tree-sitter and reports the literals,
// identifiers and module keywords of the resulting tree.
package walk

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"github.com/alexaandru/go-sitter-forest/javascript"
	"github.com/alexaandru/go-sitter-forest/tsx"
	"github.com/alexaandru/go-sitter-forest/typescript"
	sitter "github.com/alexaandru/go-tree-sitter-bare"
	"github.com/tdewolff/jsprivacy/directive"
	"github.com/tdewolff/jsprivacy/rewrite"
	"github.com/tdewolff/parse/v2"
)

// ErrNoRootNode is returned when tree-sitter produces an empty tree.
var ErrNoRootNode = errors.New("no root node")

// Dialect selects the grammar.
type Dialect uint8

// Dialect values. JavaScript includes JSX.
const (
	JavaScript Dialect = iota
	TypeScript
	TSX
)

func (d Dialect) String() string {
	switch d {
	case JavaScript:
		return "javascript"
	case TypeScript:
		return "typescript"
	case TSX:
		return "tsx"
	}
	return fmt.Sprintf("Invalid(%d)", d)
}

// DialectFor returns the dialect of a file that may contain TypeScript and JSX.
func DialectFor(typescript, jsx bool) Dialect {
	if !typescript {
		return JavaScript
	} else if jsx {
		return TSX
	}
	return TypeScript
}

type grammar struct {
	language *sitter.Language
	parsers  sync.Pool
}

func newGrammar(ptr func() unsafe.Pointer) func() *grammar {
	return sync.OnceValue(func() *grammar {
		g := &grammar{}
		g.language = sitter.NewLanguage(ptr())
		g.parsers.New = func() any {
			p := sitter.NewParser()
			p.SetLanguage(g.language)
			return p
		}
		return g
	})
}

var grammars = [...]func() *grammar{
	JavaScript: newGrammar(javascript.GetLanguage),
	TypeScript: newGrammar(typescript.GetLanguage),
	TSX:        newGrammar(tsx.GetLanguage),
}

// Tree is a parsed source.
type Tree struct {
	Dialect Dialect

	src  []byte
	tree *sitter.Tree
}

// Parse parses src. A source with syntax errors returns a *parse.Error positioned at the first
// erroneous or missing node.
func Parse(ctx context.Context, src []byte, dialect Dialect) (*Tree, error) {
	if int(dialect) >= len(grammars) {
		return nil, fmt.Errorf("unknown dialect %v", dialect)
	}
	g := grammars[dialect]()
	p := g.parsers.Get().(*sitter.Parser)
	defer g.parsers.Put(p)

	tree, err := p.ParseString(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("%v parser: %w", dialect, err)
	}
	root := tree.RootNode()
	if root.IsNull() {
		tree.Close()
		return nil, ErrNoRootNode
	} else if root.HasError() {
		n := firstError(root)
		tree.Close()
		msg := "unexpected " + n.Type()
		if n.Type() == "ERROR" {
			msg = "unexpected token"
		} else if n.IsMissing() {
			msg = "missing " + n.Type()
		}
		return nil, parse.NewError(bytes.NewReader(src), start(n), msg)
	}
	return &Tree{
		Dialect: dialect,
		src:     src,
		tree:    tree,
	}, nil
}

// Close releases the tree.
func (t *Tree) Close() {
	t.tree.Close()
}

// firstError returns the first node in source order that is an error or missing. It returns n
// when no such descendant exists.
func firstError(n sitter.Node) sitter.Node {
	if n.Type() == "ERROR" || n.IsMissing() {
		return n
	}
	for _, c := range children(n) {
		if c.HasError() || c.Type() == "ERROR" || c.IsMissing() {
			return firstError(c)
		}
	}
	return n
}

// Comments returns the comments of the tree in source order.
func (t *Tree) Comments() []directive.Comment {
	comments := []directive.Comment{}
	var visit func(sitter.Node)
	visit = func(n sitter.Node) {
		switch n.Type() {
		case "comment", "html_comment":
			comments = append(comments, directive.Comment{
				Span: span(n),
				Text: string(t.src[start(n):end(n)]),
			})
			return
		}
		for _, c := range children(n) {
			visit(c)
		}
	}
	visit(t.tree.RootNode())
	return comments
}

// Prologue returns the position after the hashbang line and the directive prologue, where
// statements can be inserted. The returned bool is true when the last directive lacks its
// semicolon, which must then be added before any inserted statement.
func (t *Tree) Prologue() (int, bool) {
	pos, semicolon := 0, false
	for _, c := range children(t.tree.RootNode()) {
		switch c.Type() {
		case "hashbang_line":
			pos, semicolon = end(c), false
			if pos < len(t.src) && t.src[pos] == '\r' {
				pos++
			}
			if pos < len(t.src) && t.src[pos] == '\n' {
				pos++
			}
			continue
		case "comment", "html_comment":
			continue
		case "expression_statement":
			if isDirective(c) {
				pos = end(c)
				semicolon = t.src[pos-1] != ';'
				continue
			}
		}
		return pos, semicolon
	}
	return pos, semicolon
}

// isDirective returns true for an expression statement consisting of a single string.
func isDirective(n sitter.Node) bool {
	var expr sitter.Node
	count := 0
	for _, c := range children(n) {
		if c.IsNamed() && c.Type() != "comment" {
			expr = c
			count++
		}
	}
	return count == 1 && expr.Type() == "string"
}

func children(n sitter.Node) []sitter.Node {
	cs := make([]sitter.Node, 0, n.ChildCount())
	for i := range n.ChildCount() {
		cs = append(cs, n.Child(i))
	}
	return cs
}

func start(n sitter.Node) int {
	return int(n.StartByte())
}

func end(n sitter.Node) int {
	return int(n.EndByte())
}

func span(n sitter.Node) rewrite.Span {
	return rewrite.Span{Lo: start(n), Hi: end(n)}
}

// same returns true if both nodes cover the same bytes with the same type.
func same(a, b sitter.Node) bool {
	return !a.IsNull() && !b.IsNull() && a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte() && a.Type() == b.Type()
}
