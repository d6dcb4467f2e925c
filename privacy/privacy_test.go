package privacy

import (
	"errors"
	"sort"
	"testing"

	"github.com/tdewolff/jsprivacy/dictionary"
	"github.com/tdewolff/jsprivacy/rewrite"
	"github.com/tdewolff/test"
)

// params returns parameters for a dictionary of "hello", a tagged template a${}b and a quasi q,
// whose slots are 0, 1 and 2 respectively.
func params(module ModuleKind) *Params {
	tracker := dictionary.NewTracker(nil, nil)
	tracker.Add(dictionary.Candidate{Kind: dictionary.TemplateQuasi, Raw: "q", Span: rewrite.Span{Lo: 20, Hi: 21}})
	tracker.Add(dictionary.Candidate{Kind: dictionary.TaggedTemplate, Quasis: []string{"a", "b"}, Span: rewrite.Span{Lo: 10, Hi: 18}})
	tracker.Add(dictionary.Candidate{Kind: dictionary.Plain, Raw: `"hello"`, Value: "hello", Span: rewrite.Span{Lo: 2, Hi: 9}})
	return &Params{
		Dictionary:       dictionary.Optimize("D", &tracker.Dictionary),
		Helper:           DefaultHelper,
		HelperIdentifier: "$",
		Module:           module,
	}
}

func TestEvaluate(t *testing.T) {
	var tests = []struct {
		template Template
		expected string
	}{
		{Template{Kind: JSXStringReference, Index: 2}, "{D[0]}"},
		{Template{Kind: PropertyKeyReference, Index: 2}, "[D[0]]"},
		{Template{Kind: StringReference, Index: 2}, "D[0]"},
		{Template{Kind: StringReference, Index: 2, MaybeKeyword: true}, " D[0]"},
		{Template{Kind: TaggedTemplateOpener, Index: 1}, "(D[1]"},
		{Template{Kind: TaggedTemplateBeforeExpr}, ", "},
		{Template{Kind: TaggedTemplateAfterExpr}, ""},
		{Template{Kind: TaggedTemplateTerminator}, ")"},
		{Template{Kind: TemplateQuasiReference, Index: 0}, "${D[2]}"},
		{Template{Kind: DeleteSourceMapComment}, ""},
	}
	p := params(ESM)
	for _, tt := range tests {
		t.Run(tt.template.String(), func(t *testing.T) {
			c, err := p.Evaluate(tt.template)
			test.Error(t, err)
			test.T(t, c.Kind, tt.template.Kind)
			test.String(t, c.Text, tt.expected)
		})
	}
}

func TestEvaluateErrors(t *testing.T) {
	p := params(ESM)
	_, err := p.Evaluate(Template{Kind: StringReference, Index: 3})
	test.That(t, errors.Is(err, dictionary.ErrInvalidIndex), err)
	_, err = p.Evaluate(Template{Kind: StringReference, Index: -1})
	test.That(t, errors.Is(err, dictionary.ErrInvalidIndex), err)
	_, err = p.Evaluate(Template{Kind: DictionaryEntry})
	test.That(t, err != nil, "header kinds are not templates")
}

func TestEvaluateAll(t *testing.T) {
	p := params(ESM)
	templates := []rewrite.Rewrite[Template]{
		rewrite.Replace(Template{Kind: StringReference, Index: 2}, rewrite.Span{Lo: 2, Hi: 9}),
		rewrite.Replace(Template{Kind: StringReference, Index: 2}, rewrite.Span{Lo: 20, Hi: 24}),
		rewrite.Replace(Template{Kind: StringReference, Index: 7}, rewrite.Span{Lo: 30, Hi: 40}),

		// tagged template with an unknown entry, with a nested string
		rewrite.Replace(Template{Kind: TaggedTemplateOpener, Index: 9}, rewrite.Span{Lo: 50, Hi: 51}),
		rewrite.Replace(Template{Kind: TaggedTemplateBeforeExpr}, rewrite.Span{Lo: 52, Hi: 54}),
		rewrite.Replace(Template{Kind: StringReference, Index: 2}, rewrite.Span{Lo: 54, Hi: 64}),
		rewrite.Replace(Template{Kind: TaggedTemplateAfterExpr}, rewrite.Span{Lo: 64, Hi: 65}),
		rewrite.Replace(Template{Kind: TaggedTemplateTerminator}, rewrite.Span{Lo: 66, Hi: 67}),

		rewrite.Replace(Template{Kind: TaggedTemplateOpener, Index: 1}, rewrite.Span{Lo: 70, Hi: 71}),
		rewrite.Replace(Template{Kind: TaggedTemplateBeforeExpr}, rewrite.Span{Lo: 72, Hi: 74}),
		rewrite.Replace(Template{Kind: TaggedTemplateAfterExpr}, rewrite.Span{Lo: 75, Hi: 76}),
		rewrite.Replace(Template{Kind: TaggedTemplateTerminator}, rewrite.Span{Lo: 77, Hi: 78}),
		rewrite.Replace(Template{Kind: TaggedTemplateTerminator}, rewrite.Span{Lo: 80, Hi: 81}),
	}

	logged := 0
	logger := loggerFunc(func(string, ...interface{}) { logged++ })
	rewrites := p.EvaluateAll(templates, logger)

	spans := []rewrite.Span{}
	for _, r := range rewrites {
		spans = append(spans, r.Span)
	}
	test.T(t, spans, []rewrite.Span{
		{Lo: 2, Hi: 9},
		{Lo: 54, Hi: 64},
		{Lo: 70, Hi: 71},
		{Lo: 72, Hi: 74},
		{Lo: 75, Hi: 76},
		{Lo: 77, Hi: 78},
	})
	test.T(t, logged, 3, "two invalid indices and a stray terminator")
}

func TestHelperDeclaration(t *testing.T) {
	var tests = []struct {
		name       string
		helper     Helper
		identifier string
		module     ModuleKind
		expected   string
	}{
		{"esm", DefaultHelper, "$", ESM, "import{$}from'datadog:privacy-helpers.mjs';"},
		{"esm renamed", DefaultHelper, "$1", ESM, "import{$ as $1}from'datadog:privacy-helpers.mjs';"},
		{"unknown", DefaultHelper, "$", UnknownModule, "import{$}from'datadog:privacy-helpers.mjs';"},
		{"cjs", DefaultHelper, "$", CJS, "const{$}=require('datadog:privacy-helpers.cjs');"},
		{"cjs renamed", DefaultHelper, "A", CJS, "const{$:A}=require('datadog:privacy-helpers.cjs');"},
		{"escaped", Helper{Func: "f", ESM: `it's`}, "f", ESM, `import{f}from'it\'s';`},
		{"code", Helper{Code: "globalThis.$", Func: "$"}, "$", CJS, "const $=globalThis.$;"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			test.String(t, tt.helper.HelperDeclaration(tt.identifier, tt.module), tt.expected)
		})
	}
}

func TestHeader(t *testing.T) {
	p := params(CJS)
	header := p.Header()
	texts := []string{}
	for _, r := range header {
		test.T(t, r.Kind, rewrite.InsertKind)
		test.T(t, r.Span, rewrite.Span{Lo: 0, Hi: 0})
		texts = append(texts, r.Content.Text)
	}
	test.T(t, texts, []string{
		"const{$}=require('datadog:privacy-helpers.cjs');",
		"const D=$([",
		`"hello"`,
		",$`a${0}b`",
		",`q`",
		"]);",
	})

	positions := []int{}
	for _, r := range header {
		if pos, ok := r.Content.SourcePos(); ok {
			positions = append(positions, pos)
		}
	}
	test.T(t, positions, []int{0, 2, 10, 20})

	p.Dictionary = dictionary.Optimize("D", &dictionary.Dictionary{})
	test.T(t, len(p.Header()), 0)
}

func TestHeaderPos(t *testing.T) {
	src := "\"use strict\"\nx(\"hello\");"
	p := params(CJS)
	p.HeaderPos, p.HeaderSemicolon = 12, true
	header := p.Header()
	for _, r := range header {
		test.T(t, r.Span, rewrite.Span{Lo: 12, Hi: 12})
	}
	test.String(t, header[0].Content.Text, ";const{$}=require('datadog:privacy-helpers.cjs');")
	pos, ok := header[0].Content.SourcePos()
	test.That(t, ok)
	test.T(t, pos, 12)

	body := p.EvaluateAll([]rewrite.Rewrite[Template]{
		rewrite.Replace(Template{Kind: StringReference, Index: 2}, rewrite.Span{Lo: 15, Hi: 22}),
	}, nil)
	code, _ := rewrite.Apply(src, rewrite.Build(header, body, nil), nil)
	test.String(t, code, "\"use strict\";const{$}=require('datadog:privacy-helpers.cjs');const D=$([\"hello\",$`a${0}b`,`q`]);\nx(D[0]);")
}

func TestHeaderOrder(t *testing.T) {
	header := params(ESM).Header()
	shuffled := []rewrite.Rewrite[Content]{header[5], header[3], header[0], header[4], header[2], header[1]}
	sort.SliceStable(shuffled, func(i, j int) bool {
		return shuffled[i].Compare(shuffled[j]) < 0
	})
	test.T(t, shuffled, header)
}

func TestApply(t *testing.T) {
	src := `x("hello");`
	p := params(ESM)
	body := p.EvaluateAll([]rewrite.Rewrite[Template]{
		rewrite.Replace(Template{Kind: StringReference, Index: 2}, rewrite.Span{Lo: 2, Hi: 9}),
	}, nil)
	plan := rewrite.Build(p.Header(), body, nil)
	code, _ := rewrite.Apply(src, plan, nil)
	test.String(t, code, "import{$}from'datadog:privacy-helpers.mjs';const D=$([\"hello\",$`a${0}b`,`q`]);x(D[0]);")
}

func TestTracker(t *testing.T) {
	logged := 0
	tracker := NewTracker(loggerFunc(func(string, ...interface{}) { logged++ }))
	tracker.Replace(Template{Kind: StringReference}, rewrite.Span{Lo: 0, Hi: 3})

	exit := tracker.EnterUnrewritten()
	tracker.Replace(Template{Kind: StringReference}, rewrite.Span{Lo: 5, Hi: 8})
	exit()

	tracker.Replace(Template{Kind: TaggedTemplateAfterExpr}, rewrite.Span{Lo: 10, Hi: 11})
	test.T(t, len(tracker.Rewrites), 2)
	test.T(t, tracker.Rewrites[1].Span, rewrite.Span{Lo: 10, Hi: 11})

	exit()
	test.T(t, logged, 1, "unbalanced exit")
	tracker.Replace(Template{Kind: StringReference}, rewrite.Span{Lo: 12, Hi: 15})
	test.T(t, len(tracker.Rewrites), 3, "unbalanced exit keeps rewriting")
}

func TestParseModuleKind(t *testing.T) {
	m, err := ParseModuleKind("CJS")
	test.Error(t, err)
	test.T(t, m, CJS)
	m, err = ParseModuleKind("")
	test.Error(t, err)
	test.T(t, m, UnknownModule)
	_, err = ParseModuleKind("amd")
	test.That(t, err != nil)
}

type loggerFunc func(string, ...interface{})

func (f loggerFunc) Printf(format string, v ...interface{}) {
	f(format, v...)
}
