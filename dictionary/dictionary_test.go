package dictionary

import (
	"errors"
	"strings"
	"testing"

	"github.com/tdewolff/jsprivacy/rewrite"
	"github.com/tdewolff/test"
)

type spans []rewrite.Span

func (s spans) Excludes(span rewrite.Span) bool {
	for _, x := range s {
		if x.Intersects(span) {
			return true
		}
	}
	return false
}

func str(raw string, lo int) Candidate {
	return Candidate{
		Kind:  Plain,
		Raw:   raw,
		Value: raw[1 : len(raw)-1],
		Span:  rewrite.Span{Lo: lo, Hi: lo + len(raw)},
	}
}

func TestTrackerIdempotent(t *testing.T) {
	tracker := NewTracker(nil, nil)
	for i := 0; i < 3; i++ {
		index, ok := tracker.Add(str(`"hello"`, 10*i))
		test.That(t, ok)
		test.T(t, index, 0)
	}
	index, ok := tracker.Add(str(`'hello'`, 40))
	test.That(t, ok)
	test.T(t, index, 1, "different raw text is a different entry")

	test.T(t, tracker.Len(), 2)
	test.T(t, tracker.Entries[0].Count, 3)
	test.T(t, tracker.Entries[0].FirstPos, 0)
	test.T(t, tracker.Entries[1].Count, 1)
	test.T(t, tracker.Entries[1].FirstPos, 40)
}

func TestTrackerKinds(t *testing.T) {
	tracker := NewTracker(nil, nil)
	a, _ := tracker.Add(Candidate{Kind: Plain, Raw: "abc", Value: "abc"})
	b, _ := tracker.Add(Candidate{Kind: TemplateQuasi, Raw: "abc"})
	c, _ := tracker.Add(Candidate{Kind: TaggedTemplate, Quasis: []string{"abc"}})
	d, _ := tracker.Add(Candidate{Kind: TaggedTemplate, Quasis: []string{"a", "bc"}})
	e, _ := tracker.Add(Candidate{Kind: TaggedTemplate, Quasis: []string{"a", "bc"}})
	test.T(t, []int{a, b, c, d, e}, []int{0, 1, 2, 3, 3})
	test.T(t, tracker.Entries[3].Kind, TaggedTemplateEntry)
	test.T(t, tracker.Entries[3].Quasis, []string{"a", "bc"})
}

func TestTrackerSkip(t *testing.T) {
	var tests = []struct {
		value string
		skip  bool
	}{
		{"hello", false},
		{"a1", false},
		{"", true},
		{" \t\n", true},
		{"http://example.com", true},
		{"https://example.com", true},
		{"data:text/plain,x", true},
		{"url(a.png)", true},
		{"//cdn.example.com", true},
		{"logo.png", true},
		{"photo.jpeg", true},
		{"module.mjs", true},
		{"logo.png is missing", false},
		{"42", true},
		{"[1] 2-3", true},
		{"3 apples", true},
		{`x="use strict"`, true},
		{"use strict", false},
		{strings.Repeat("a", MaxStringLength), false},
		{strings.Repeat("a", MaxStringLength+1), true},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			tracker := NewTracker(nil, nil)
			_, ok := tracker.Add(Candidate{Kind: Plain, Raw: `"` + tt.value + `"`, Value: tt.value})
			test.T(t, !ok, tt.skip)
		})
	}
}

func TestTrackerSkipPatterns(t *testing.T) {
	skip, err := CompileSkip([]string{`^secret-`, `token$`})
	test.Error(t, err)

	tracker := NewTracker(nil, nil, skip...)
	_, ok := tracker.Add(str(`"secret-key"`, 0))
	test.That(t, !ok)
	_, ok = tracker.Add(str(`"access token"`, 0))
	test.That(t, !ok)
	_, ok = tracker.Add(str(`"public"`, 0))
	test.That(t, ok)

	_, err = CompileSkip([]string{`(`})
	test.That(t, err != nil, "invalid pattern")
}

func TestTrackerExcluded(t *testing.T) {
	tracker := NewTracker(spans{{Lo: 10, Hi: 20}}, nil)
	_, ok := tracker.Add(str(`"inside"`, 12))
	test.That(t, !ok)
	_, ok = tracker.Add(Candidate{Kind: TaggedTemplate, Quasis: []string{"x"}, Span: rewrite.Span{Lo: 5, Hi: 11}})
	test.That(t, !ok)
	_, ok = tracker.Add(str(`"after"`, 20))
	test.That(t, ok, "touching spans are not excluded")
}

func TestTrackerUncollected(t *testing.T) {
	sb := &strings.Builder{}
	tracker := NewTracker(nil, loggerFunc(func(format string, v ...interface{}) {
		sb.WriteString(format)
	}))

	exit := tracker.EnterUncollected()
	exitInner := tracker.EnterUncollected()
	test.T(t, tracker.depth, 2)
	_, ok := tracker.Add(str(`"hello"`, 0))
	test.That(t, !ok)
	_, ok = tracker.Add(Candidate{Kind: TaggedTemplate, Quasis: []string{"x"}})
	test.That(t, !ok)
	_, ok = tracker.Add(Candidate{Kind: JSXText, Raw: "hello", Value: "hello"})
	test.That(t, !ok)

	exitInner()
	test.T(t, tracker.depth, 1)
	exit()
	test.T(t, tracker.depth, 0)
	_, ok = tracker.Add(str(`"hello"`, 0))
	test.That(t, ok)

	test.String(t, sb.String(), "")
	exit()
	test.T(t, tracker.depth, 0, "depth never goes negative")
	test.That(t, sb.Len() != 0, "unbalanced exit is logged")
}

func TestTrackerJSX(t *testing.T) {
	tracker := NewTracker(nil, nil)
	a, ok := tracker.Add(Candidate{Kind: JSXAttribute, Raw: `"a &quot;b&quot;"`, Value: `a &quot;b&quot;`})
	test.That(t, ok)
	b, ok := tracker.Add(Candidate{Kind: Plain, Raw: `"a \"b\""`, Value: `a "b"`})
	test.That(t, ok)
	test.T(t, a, b, "normalized JSX attribute equals the string literal")

	c, ok := tracker.Add(Candidate{Kind: JSXText, Raw: "\n  a \"b\"\n", Value: "\n  a \"b\"\n"})
	test.That(t, ok)
	test.T(t, c, a)
	test.T(t, tracker.Entries[0].Count, 3)
}

func TestNormalizeJSXAttribute(t *testing.T) {
	var tests = []struct {
		raw, value string
		expected   string
	}{
		{`"plain"`, `plain`, `"plain"`},
		{`"a&quot;b"`, `a&quot;b`, `"a\"b"`},
		{`'it&apos;s'`, `it&apos;s`, `'it\'s'`},
		{`'say "hi"'`, `say "hi"`, `'say "hi"'`},
		{`"back\slash"`, `back\slash`, `"back\\slash"`},
		{`"fish &amp; chips"`, `fish &amp; chips`, `"fish & chips"`},
		{"\"a\nb\"", "a\nb", `"a\nb"`},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			test.String(t, NormalizeJSXAttribute(tt.raw, tt.value), tt.expected)
		})
	}
}

func TestNormalizeJSXText(t *testing.T) {
	var tests = []struct {
		raw      string
		expected string
	}{
		{"Hello", `"Hello"`},
		{"\n    Hello\n    world\n  ", `"Hello world"`},
		{"  padded  ", `"  padded  "`},
		{"fish &amp; chips", `"fish & chips"`},
		{`&quot;quoted&quot;`, `"\"quoted\""`},
		{`it's`, `"it's"`},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			test.String(t, NormalizeJSXText(tt.raw), tt.expected)
		})
	}
}

func TestBenefit(t *testing.T) {
	var tests = []struct {
		entry    Entry
		expected int
	}{
		{Entry{Kind: StringEntry, Text: `"hello world this is long"`, Count: 3}, 66},
		{Entry{Kind: StringEntry, Text: `"12345678"`, Count: 1}, 6},
		{Entry{Kind: StringEntry, Text: `"ab"`, Count: 9}, 0},
		{Entry{Kind: StringEntry, Text: `"abc"`, Count: 9}, 9},
		{Entry{Kind: TemplateQuasiEntry, Text: "hello", Count: 2}, 2},
		{Entry{Kind: TaggedTemplateEntry, Quasis: []string{"a very long quasi"}, Count: 1}, 1},
		{Entry{Kind: TaggedTemplateEntry, Quasis: []string{"a"}, Count: 5}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.entry.key(), func(t *testing.T) {
			test.T(t, tt.entry.Benefit("D"), tt.expected)
		})
	}
	test.T(t, Entry{Kind: StringEntry, Text: `"abcdef"`, Count: 1}.Benefit("DD"), 3)
}

func TestOptimize(t *testing.T) {
	tracker := NewTracker(nil, nil)
	// benefits 6, 1, 66 and 6
	tracker.Add(str(`"12345678"`, 0))
	tracker.Add(Candidate{Kind: TaggedTemplate, Quasis: []string{"x"}})
	for i := 0; i < 3; i++ {
		tracker.Add(str(`"hello world this is long"`, 20+30*i))
	}
	tracker.Add(str(`"abcdefgh"`, 200))

	o := Optimize("D", &tracker.Dictionary)
	test.T(t, o.Len(), 4)

	slots := []int{}
	for i := 0; i < o.Len(); i++ {
		slot, err := o.Slot(i)
		test.Error(t, err)
		slots = append(slots, slot)
	}
	test.T(t, slots, []int{1, 3, 0, 2})
	test.String(t, o.Entries[0].Text, `"hello world this is long"`)
	test.T(t, o.Entries[0].Index, 2)

	ref, err := o.Reference(2)
	test.Error(t, err)
	test.String(t, ref, "D[0]")
}

func TestOptimizeBenefitOrdering(t *testing.T) {
	tracker := NewTracker(nil, nil)
	words := []string{"a", "bb", "ccccc", "ddddddddd", "ee", "fffffff", "ccccc", "gggggggggggg", "a", "ccccc"}
	for i, w := range words {
		tracker.Add(str(`"`+w+`"`, i*16))
	}

	o := Optimize("D", &tracker.Dictionary)
	for i := 1; i < o.Len(); i++ {
		a, b := o.Entries[i-1], o.Entries[i]
		test.That(t, a.Benefit("D") >= b.Benefit("D"), "benefit must not increase", a.Text, b.Text)
		if a.Benefit("D") == b.Benefit("D") {
			test.That(t, a.Index < b.Index, "ties keep insertion order", a.Text, b.Text)
		}
	}
}

func TestOptimizeInvalidIndex(t *testing.T) {
	o := Optimize("D", &Dictionary{})
	_, err := o.Slot(0)
	test.That(t, errors.Is(err, ErrInvalidIndex))
	_, err = o.Reference(-1)
	test.That(t, errors.Is(err, ErrInvalidIndex))
	test.That(t, strings.HasSuffix(err.Error(), "-1"))
}

type loggerFunc func(string, ...interface{})

func (f loggerFunc) Printf(format string, v ...interface{}) {
	f(format, v...)
}
