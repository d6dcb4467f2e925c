// Package directive interprets the comments of a program: privacy allowlist exclusions and the
// sourceMappingURL comment.
package directive

import (
	"sort"
	"strings"

	"github.com/cloudflare/ahocorasick"
	"github.com/tdewolff/jsprivacy/rewrite"
	"github.com/tdewolff/jsprivacy/sourcemap"
	"github.com/tdewolff/parse/v2"
)

// Directive comments.
const (
	ExcludeFile     = "datadog-privacy-allowlist-exclude-file"
	ExcludeLine     = "datadog-privacy-allowlist-exclude-line"
	ExcludeNextLine = "datadog-privacy-allowlist-exclude-next-line"
	ExcludeBegin    = "datadog-privacy-allowlist-exclude-begin"
	ExcludeEnd      = "datadog-privacy-allowlist-exclude-end"

	SourceMappingURL = "# sourceMappingURL="
)

// keywords selecting how a comment is interpreted, indexed by the hits of matcher
const (
	excludeKeyword = iota
	sourceMapKeyword
)

var matcher = ahocorasick.NewStringMatcher([]string{
	excludeKeyword:   "datadog-privacy-allowlist-exclude-",
	sourceMapKeyword: "sourceMappingURL=",
})

// Comment is a comment of the source, Text includes the delimiters.
type Comment struct {
	Span rewrite.Span
	Text string
}

// Set is the set of spans excluded from the privacy allowlist.
type Set struct {
	File  bool
	Spans []rewrite.Span // sorted by start
}

// Excludes returns true if span intersects an excluded span, or if the whole file is excluded.
func (s *Set) Excludes(span rewrite.Span) bool {
	if s == nil {
		return false
	} else if s.File {
		return true
	}
	for _, excluded := range s.Spans {
		if span.Hi <= excluded.Lo {
			break
		} else if excluded.Intersects(span) {
			return true
		}
	}
	return false
}

// Parse interprets the comments of src. It returns the excluded spans and the last
// sourceMappingURL comment, if any.
func Parse(src string, comments []Comment) (*Set, *sourcemap.Reference) {
	lines := newLines(src)
	set := &Set{}
	var ref *sourcemap.Reference
	var begins, ends []int
	for _, c := range comments {
		hits := matcher.Match([]byte(c.Text))
		if len(hits) == 0 {
			continue
		}

		text := strings.TrimSpace(stripDelimiters(c.Text))
		for _, hit := range hits {
			switch hit {
			case excludeKeyword:
				switch text {
				case ExcludeFile:
					set.File = true
				case ExcludeLine:
					lo, _ := lines.bounds(lines.index(c.Span.Lo))
					_, hi := lines.bounds(lines.index(c.Span.Hi))
					set.Spans = append(set.Spans, rewrite.Span{Lo: lo, Hi: hi})
				case ExcludeNextLine:
					if next := lines.index(c.Span.Hi) + 1; next < len(lines.starts) {
						lo, hi := lines.bounds(next)
						set.Spans = append(set.Spans, rewrite.Span{Lo: lo, Hi: hi})
					}
				case ExcludeBegin:
					begins = append(begins, c.Span.Lo)
				case ExcludeEnd:
					ends = append(ends, c.Span.Hi)
				}
			case sourceMapKeyword:
				if url, ok := strings.CutPrefix(text, SourceMappingURL); ok {
					if r, ok := parseReference(url, c.Span); ok {
						ref = r
					}
				}
			}
		}
	}

	set.Spans = append(set.Spans, pairRanges(begins, ends, len(src))...)
	sort.Slice(set.Spans, func(i, j int) bool {
		if set.Spans[i].Lo != set.Spans[j].Lo {
			return set.Spans[i].Lo < set.Spans[j].Lo
		}
		return set.Spans[i].Hi < set.Spans[j].Hi
	})
	return set, ref
}

func stripDelimiters(text string) string {
	if strings.HasPrefix(text, "//") {
		return text[2:]
	} else if strings.HasPrefix(text, "/*") {
		return strings.TrimSuffix(text[2:], "*/")
	}
	return text
}

// parseReference returns an inline reference for data URLs, an external one for other URLs. It
// returns false for malformed data URLs.
func parseReference(url string, span rewrite.Span) (*sourcemap.Reference, bool) {
	if !strings.HasPrefix(url, "data:") {
		return &sourcemap.Reference{URL: url, Span: span}, true
	}
	_, data, err := parse.DataURI([]byte(url))
	if err != nil {
		return nil, false
	}
	if data == nil {
		data = []byte{}
	}
	return &sourcemap.Reference{URL: url, Data: data, Span: span}, true
}

// pairRanges matches every begin position with the first end position after it. Begins inside a
// range are ignored, an unterminated begin extends to the end of the file.
func pairRanges(begins, ends []int, size int) []rewrite.Span {
	sort.Ints(begins)
	sort.Ints(ends)

	spans := []rewrite.Span{}
	last := -1
	j := 0
	for _, begin := range begins {
		if begin < last {
			continue
		}
		for j < len(ends) && ends[j] <= begin {
			j++
		}
		end := size
		if j < len(ends) {
			end = ends[j]
			j++
		}
		spans = append(spans, rewrite.Span{Lo: begin, Hi: end})
		last = end
	}
	return spans
}

// lines indexes the line starts of a source.
type lines struct {
	starts []int
	size   int
}

func newLines(src string) lines {
	starts := []int{0}
	for i := 0; i < len(src); i++ {
		if src[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return lines{starts, len(src)}
}

// index returns the line containing pos.
func (l lines) index(pos int) int {
	return sort.Search(len(l.starts), func(i int) bool {
		return pos < l.starts[i]
	}) - 1
}

// bounds returns the start of the line and the start of the next one.
func (l lines) bounds(line int) (int, int) {
	if line+1 < len(l.starts) {
		return l.starts[line], l.starts[line+1]
	}
	return l.starts[line], l.size
}
