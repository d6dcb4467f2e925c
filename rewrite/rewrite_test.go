package rewrite

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/tdewolff/test"
)

type text struct {
	s   string
	alt int
}

func (t text) String() string {
	return t.s
}

func (t text) Compare(o text) int {
	return strings.Compare(t.s, o.s)
}

func (t text) SourcePos() (int, bool) {
	return t.alt, 0 <= t.alt
}

func txt(s string) text {
	return text{s, -1}
}

func rendered(rewrites []Rewrite[text]) []string {
	s := []string{}
	for _, r := range rewrites {
		s = append(s, r.Content.s)
	}
	return s
}

func TestSpan(t *testing.T) {
	test.T(t, Span{2, 5}.Len(), 3)
	test.That(t, Span{0, 3}.Intersects(Span{2, 4}))
	test.That(t, !Span{0, 3}.Intersects(Span{3, 4}), "touching spans do not intersect")
	test.That(t, !Span{3, 3}.Intersects(Span{0, 6}), "empty spans never intersect")
	test.T(t, Span{1, 2}.String(), "[1,2)")
}

func TestCompare(t *testing.T) {
	var tests = []struct {
		a, b     Rewrite[text]
		expected int
	}{
		{Insert(txt("a"), 1), Insert(txt("a"), 2), -1},
		{Replace(txt("a"), Span{3, 4}), Insert(txt("a"), 2), 1},
		{Insert(txt("z"), 2), Replace(txt("a"), Span{2, 4}), -1},
		{Replace(txt("a"), Span{2, 8}), Replace(txt("a"), Span{2, 4}), -1},
		{Replace(txt("a"), Span{2, 4}), Replace(txt("a"), Span{2, 8}), 1},
		{Insert(txt("a"), 0), Insert(txt("b"), 0), -1},
		{Insert(txt("b"), 0), Insert(txt("a"), 0), 1},
		{Replace(txt("x"), Span{1, 2}), Replace(txt("x"), Span{1, 2}), 0},
	}
	for _, tt := range tests {
		t.Run(tt.a.String()+" "+tt.b.String(), func(t *testing.T) {
			test.T(t, tt.a.Compare(tt.b), tt.expected)
		})
	}
}

func TestBuild(t *testing.T) {
	var tests = []struct {
		name     string
		header   []Rewrite[text]
		body     []Rewrite[text]
		expected []string
	}{
		{"empty", nil, nil, []string{}},
		{"nested replace", nil, []Rewrite[text]{
			Replace(txt("inner"), Span{2, 3}),
			Replace(txt("outer"), Span{0, 5}),
		}, []string{"outer"}},
		{"same start keeps larger", nil, []Rewrite[text]{
			Replace(txt("short"), Span{0, 3}),
			Replace(txt("long"), Span{0, 5}),
		}, []string{"long"}},
		{"insert inside replace", nil, []Rewrite[text]{
			Replace(txt("r"), Span{0, 5}),
			Insert(txt("inside"), 3),
			Insert(txt("after"), 5),
		}, []string{"r", "after"}},
		{"insert before replace at same position", nil, []Rewrite[text]{
			Replace(txt("r"), Span{4, 6}),
			Insert(txt("i"), 4),
		}, []string{"i", "r"}},
		{"adjacent replacements", nil, []Rewrite[text]{
			Replace(txt("b"), Span{3, 6}),
			Replace(txt("a"), Span{0, 3}),
		}, []string{"a", "b"}},
		{"header ordered by content", []Rewrite[text]{
			Insert(txt("2 declaration"), 0),
			Insert(txt("1 import"), 0),
		}, []Rewrite[text]{
			Replace(txt("ref"), Span{0, 4}),
		}, []string{"1 import", "2 declaration", "ref"}},
		{"header conflicts with body", []Rewrite[text]{
			Insert(txt("header"), 2),
		}, []Rewrite[text]{
			Replace(txt("ref"), Span{0, 4}),
		}, []string{"ref"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := Build(tt.header, tt.body, nil)
			test.T(t, rendered(plan.Rewrites), tt.expected)
		})
	}
}

func TestBuildPermutation(t *testing.T) {
	rewrites := []Rewrite[text]{
		Insert(txt("a"), 0),
		Insert(txt("b"), 0),
		Replace(txt("c"), Span{0, 2}),
		Replace(txt("d"), Span{1, 3}),
		Replace(txt("e"), Span{2, 6}),
		Insert(txt("f"), 6),
		Replace(txt("g"), Span{6, 9}),
		Replace(txt("h"), Span{6, 7}),
		Insert(txt("i"), 8),
		Replace(txt("j"), Span{10, 11}),
	}
	expected := rendered(Build(nil, rewrites, nil).Rewrites)

	r := rand.New(rand.NewSource(42))
	for i := 0; i < 50; i++ {
		shuffled := make([]Rewrite[text], len(rewrites))
		for j, k := range r.Perm(len(rewrites)) {
			shuffled[j] = rewrites[k]
		}
		test.T(t, rendered(Build(nil, shuffled, nil).Rewrites), expected)
	}
}

func TestBuildNonOverlapping(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	rewrites := []Rewrite[text]{}
	for i := 0; i < 200; i++ {
		lo := r.Intn(100)
		if r.Intn(3) == 0 {
			rewrites = append(rewrites, Insert(txt("i"), lo))
		} else {
			rewrites = append(rewrites, Replace(txt("r"), Span{lo, lo + 1 + r.Intn(10)}))
		}
	}

	plan := Build(nil, rewrites, nil)
	for i, a := range plan.Rewrites {
		if 0 < i {
			test.That(t, plan.Rewrites[i-1].Span.Hi <= a.Span.Lo, "rewrites must be applicable left to right")
		}
		for _, b := range plan.Rewrites[i+1:] {
			if a.Kind == ReplaceKind && b.Kind == ReplaceKind {
				test.That(t, !a.Span.Intersects(b.Span), "replacements must not overlap", a, b)
			}
		}
	}
}

func TestBuildSourcePositions(t *testing.T) {
	plan := Build([]Rewrite[text]{
		Insert(text{"a", 20}, 0),
		Insert(text{"b", 5}, 0),
		Insert(text{"c", 20}, 0),
	}, []Rewrite[text]{
		Replace(text{"d", 9}, Span{0, 4}),
		Replace(text{"e", 30}, Span{1, 2}), // dropped
	}, nil)
	test.T(t, plan.SourcePositions, []int{5, 9, 20})
}

func TestBuildLogsDropped(t *testing.T) {
	sb := &strings.Builder{}
	logger := loggerFunc(func(format string, v ...interface{}) {
		sb.WriteString(format)
	})
	Build(nil, []Rewrite[text]{
		Replace(txt("a"), Span{0, 4}),
		Replace(txt("b"), Span{1, 2}),
	}, logger)
	test.That(t, strings.Contains(sb.String(), "overlaps"))
}

type loggerFunc func(string, ...interface{})

func (f loggerFunc) Printf(format string, v ...interface{}) {
	f(format, v...)
}

func TestSortUnique(t *testing.T) {
	test.T(t, SortUnique([]int{5, 1, 5, 3, 1}), []int{1, 3, 5})
	test.T(t, SortUnique([]int{}), []int{})
}

func TestMap(t *testing.T) {
	r, err := Map(Replace(txt("a"), Span{1, 2}), func(c text) (text, error) {
		return txt(c.s + c.s), nil
	})
	test.Error(t, err)
	test.T(t, r.Content.s, "aa")
	test.T(t, r.Span, Span{1, 2})
	test.T(t, r.Kind, ReplaceKind)
}
