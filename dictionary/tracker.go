package dictionary

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/dlclark/regexp2"
	"github.com/tdewolff/jsprivacy/rewrite"
)

// MaxStringLength is the maximum length of a collected value.
const MaxStringLength = 4096

// CandidateKind is the syntactic origin of a candidate.
type CandidateKind uint8

// CandidateKind values.
const (
	Plain CandidateKind = iota
	JSXAttribute
	JSXText
	TemplateQuasi
	TaggedTemplate
)

func (k CandidateKind) String() string {
	switch k {
	case Plain:
		return "Plain"
	case JSXAttribute:
		return "JSXAttribute"
	case JSXText:
		return "JSXText"
	case TemplateQuasi:
		return "TemplateQuasi"
	case TaggedTemplate:
		return "TaggedTemplate"
	}
	return "Invalid"
}

// Candidate is a literal reported by the tree walk.
type Candidate struct {
	Kind   CandidateKind
	Raw    string   // source text, including quotes for strings and JSX attributes
	Value  string   // decoded content, used for the skip heuristics
	Quasis []string // raw quasis of a tagged template
	Span   rewrite.Span
}

var (
	urlRegexp      = regexp2.MustCompile(`^(?:http:|https:|data:|url\(|\/\/)`, regexp2.ECMAScript)
	fileNameRegexp = regexp2.MustCompile(`\.(png|jpe?g|gif|svg|webp|js|cjs|mjs|ts|cts|mts)$`, regexp2.ECMAScript)
	numericRegexp  = regexp2.MustCompile(`^(?:\[?[0-9]+\]?(?:\s|-|,|.)*)+$`, regexp2.ECMAScript)
	codeRegexp     = regexp2.MustCompile(`"use strict"`, regexp2.ECMAScript)

	jsxInitialSpaceRegexp  = regexp2.MustCompile(`^\n\s+`, regexp2.ECMAScript)
	jsxInternalSpaceRegexp = regexp2.MustCompile(`\n\s+`, regexp2.ECMAScript)
	jsxTerminalSpaceRegexp = regexp2.MustCompile(`\n\s+$`, regexp2.ECMAScript)

	doubleQuoteEscapeRegexp = regexp2.MustCompile(`[\\"]`, regexp2.ECMAScript)
	singleQuoteEscapeRegexp = regexp2.MustCompile(`[\\']`, regexp2.ECMAScript)
)

var heuristics = []*regexp2.Regexp{urlRegexp, fileNameRegexp, numericRegexp, codeRegexp}

// MatchTimeout bounds every heuristic match.
const MatchTimeout = 100 * time.Millisecond

func init() {
	for _, re := range heuristics {
		re.MatchTimeout = MatchTimeout
	}
}

// CompileSkip compiles additional skip patterns as ECMAScript regular expressions.
func CompileSkip(patterns []string) ([]*regexp2.Regexp, error) {
	res := make([]*regexp2.Regexp, 0, len(patterns))
	for _, pattern := range patterns {
		re, err := regexp2.Compile(pattern, regexp2.ECMAScript)
		if err != nil {
			return nil, fmt.Errorf("skip pattern %q: %w", pattern, err)
		}
		re.MatchTimeout = MatchTimeout
		res = append(res, re)
	}
	return res, nil
}

// Tracker accumulates candidates into a Dictionary during a single walk over the program.
type Tracker struct {
	Dictionary

	excluder Excluder
	skip     []*regexp2.Regexp
	logger   rewrite.Logger
	depth    int
}

// NewTracker returns a Tracker. The excluder and logger may be nil, skip patterns are checked
// after the built-in heuristics.
func NewTracker(excluder Excluder, logger rewrite.Logger, skip ...*regexp2.Regexp) *Tracker {
	return &Tracker{
		excluder: excluder,
		skip:     skip,
		logger:   rewrite.OrDiscard(logger),
	}
}

// EnterUncollected suspends collection until the returned function is called.
func (t *Tracker) EnterUncollected() func() {
	t.depth++
	return t.exitUncollected
}

func (t *Tracker) exitUncollected() {
	if t.depth == 0 {
		t.logger.Printf("exit of uncollected scope outside any uncollected scope")
		return
	}
	t.depth--
}

// Add adds a candidate and returns the insertion index of its entry. It returns false when the
// candidate is not collected.
func (t *Tracker) Add(c Candidate) (int, bool) {
	switch c.Kind {
	case Plain:
		if t.skipString(c.Value, c.Span) || c.Raw == "" {
			return 0, false
		}
		return t.add(Entry{Kind: StringEntry, Text: c.Raw}, c.Span), true
	case JSXAttribute:
		if t.skipString(c.Value, c.Span) || c.Raw == "" {
			return 0, false
		}
		return t.add(Entry{Kind: StringEntry, Text: NormalizeJSXAttribute(c.Raw, c.Value)}, c.Span), true
	case JSXText:
		if t.skipString(c.Value, c.Span) {
			return 0, false
		}
		return t.add(Entry{Kind: StringEntry, Text: NormalizeJSXText(c.Raw)}, c.Span), true
	case TemplateQuasi:
		if t.skipString(c.Raw, c.Span) {
			return 0, false
		}
		return t.add(Entry{Kind: TemplateQuasiEntry, Text: c.Raw}, c.Span), true
	case TaggedTemplate:
		if t.depth != 0 || t.excludes(c.Span) {
			return 0, false
		}
		quasis := append([]string{}, c.Quasis...)
		return t.add(Entry{Kind: TaggedTemplateEntry, Quasis: quasis}, c.Span), true
	}
	return 0, false
}

func (t *Tracker) add(e Entry, span rewrite.Span) int {
	return t.Dictionary.add(e, span.Lo)
}

func (t *Tracker) excludes(span rewrite.Span) bool {
	return t.excluder != nil && t.excluder.Excludes(span)
}

func (t *Tracker) skipString(value string, span rewrite.Span) bool {
	if t.depth != 0 || MaxStringLength < len(value) || strings.TrimSpace(value) == "" {
		return true
	} else if t.excludes(span) {
		return true
	}
	for _, re := range heuristics {
		if t.match(re, value) {
			return true
		}
	}
	for _, re := range t.skip {
		if t.match(re, value) {
			return true
		}
	}
	return false
}

func (t *Tracker) match(re *regexp2.Regexp, value string) bool {
	ok, err := re.MatchString(value)
	if err != nil {
		// a timed out match keeps the string out of the dictionary
		t.logger.Printf("skip pattern %v: %v", re, err)
		return true
	}
	return ok
}

// NormalizeJSXAttribute converts a JSX attribute value into an equivalent JavaScript string
// literal using the quote style of raw. Entities are decoded before quotes are escaped.
func NormalizeJSXAttribute(raw, value string) string {
	s := html.UnescapeString(value)
	if strings.HasPrefix(raw, "'") {
		s = escape(singleQuoteEscapeRegexp, s)
		return "'" + strings.ReplaceAll(s, "\n", `\n`) + "'"
	}
	s = escape(doubleQuoteEscapeRegexp, s)
	return `"` + strings.ReplaceAll(s, "\n", `\n`) + `"`
}

// NormalizeJSXText converts JSX text into an equivalent double-quoted JavaScript string literal,
// collapsing line breaks and their indentation the way JSX does.
func NormalizeJSXText(raw string) string {
	s := replace(jsxInitialSpaceRegexp, raw, "")
	s = replace(jsxTerminalSpaceRegexp, s, "")
	s = replace(jsxInternalSpaceRegexp, s, " ")
	s = strings.ReplaceAll(s, "\n", "")
	s = html.UnescapeString(s)
	return `"` + escape(doubleQuoteEscapeRegexp, s) + `"`
}

func replace(re *regexp2.Regexp, s, repl string) string {
	res, err := re.ReplaceFunc(s, func(regexp2.Match) string {
		return repl
	}, -1, -1)
	if err != nil {
		return s
	}
	return res
}

func escape(re *regexp2.Regexp, s string) string {
	res, err := re.ReplaceFunc(s, func(m regexp2.Match) string {
		return `\` + m.String()
	}, -1, -1)
	if err != nil {
		return s
	}
	return res
}
