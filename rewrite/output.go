package rewrite

import (
	"strings"
	"unicode/utf8"
)

// Token is a correspondence between a position in the output and a position in the source.
// Lines are 0-based, columns are 0-based counts of UTF-16 code units.
type Token struct {
	DstLine, DstCol int
	SrcLine, SrcCol int
}

type lineCol struct {
	line, col int
}

type outputToken struct {
	Token
	key     int // source position of a placeholder, resolved in Finish
	pending bool
}

// Output streams rewrites against the source text. It keeps the line and column of both the
// output and the source, and records a token for every tracked position it passes.
type Output struct {
	src  string
	pos  int
	dst  strings.Builder
	line lineCol // output
	orig lineCol // source

	tokenPositions []int
	tokenIndex     int

	sourcePositions []int
	sourceIndex     int
	visited         map[int]lineCol

	tokens []outputToken
}

// NewOutput returns an Output over src. Both tokenPositions and sourcePositions must be
// sorted. A token is emitted whenever a token position is passed, and the line and column of
// every passed source position is remembered to resolve placeholders.
func NewOutput(src string, tokenPositions, sourcePositions []int) *Output {
	o := &Output{
		src:             src,
		tokenPositions:  tokenPositions,
		sourcePositions: sourcePositions,
		visited:         make(map[int]lineCol, len(sourcePositions)),
	}
	o.dst.Grow(len(src))
	return o
}

// EmitInputUntil copies the source up to end to the output.
func (o *Output) EmitInputUntil(end int) {
	if len(o.src) < end {
		end = len(o.src)
	}
	start := o.pos
	for o.pos < end {
		o.mark(true)
		o.step(true)
	}
	if start < o.pos {
		o.dst.WriteString(o.src[start:o.pos])
	}
}

// EmitReplacementUntil skips the source up to end and writes text instead. Only the start of
// the skipped source receives a token. If alt is not negative, a placeholder token pointing at
// source position alt is recorded at the start of the replacement.
func (o *Output) EmitReplacementUntil(end int, text string, alt int) {
	if len(o.src) < end {
		end = len(o.src)
	}
	first := true
	for o.pos < end {
		o.mark(first)
		o.step(false)
		first = false
	}
	o.EmitInsertion(text, alt)
}

// EmitInsertion writes text without consuming source. If alt is not negative, a placeholder
// token pointing at source position alt is recorded at the start of the insertion.
func (o *Output) EmitInsertion(text string, alt int) {
	if 0 <= alt {
		o.tokens = append(o.tokens, outputToken{
			Token:   Token{DstLine: o.line.line, DstCol: o.line.col},
			key:     alt,
			pending: true,
		})
	}
	for _, r := range text {
		if r == '\n' {
			o.line.line++
			o.line.col = 0
		} else {
			o.line.col += utf16Len(r)
		}
	}
	o.dst.WriteString(text)
}

// Finish copies the remaining source and resolves all placeholders. Placeholders whose source
// position was never passed are dropped.
func (o *Output) Finish() (string, []Token) {
	o.EmitInputUntil(len(o.src))

	tokens := make([]Token, 0, len(o.tokens))
	for _, t := range o.tokens {
		if t.pending {
			lc, ok := o.visited[t.key]
			if !ok {
				continue
			}
			t.SrcLine, t.SrcCol = lc.line, lc.col
		}
		tokens = append(tokens, t.Token)
	}
	return o.dst.String(), tokens
}

// mark handles the current source position before it is consumed.
func (o *Output) mark(emit bool) {
	for o.sourceIndex < len(o.sourcePositions) && o.sourcePositions[o.sourceIndex] < o.pos {
		o.sourceIndex++
	}
	if o.sourceIndex < len(o.sourcePositions) && o.sourcePositions[o.sourceIndex] == o.pos {
		o.visited[o.pos] = o.orig
		o.sourceIndex++
	}

	for o.tokenIndex < len(o.tokenPositions) && o.tokenPositions[o.tokenIndex] < o.pos {
		o.tokenIndex++
	}
	if o.tokenIndex < len(o.tokenPositions) && o.tokenPositions[o.tokenIndex] == o.pos {
		o.tokenIndex++
		if emit {
			o.addToken()
		}
	} else if emit && o.orig.col == 0 {
		// every source line gets at least one token
		o.addToken()
	}
}

// step consumes one character of the source.
func (o *Output) step(copied bool) {
	r, n := utf8.DecodeRuneInString(o.src[o.pos:])
	o.pos += n
	if r == '\n' {
		o.orig.line++
		o.orig.col = 0
		if copied {
			o.line.line++
			o.line.col = 0
		}
		return
	}
	w := utf16Len(r)
	o.orig.col += w
	if copied {
		o.line.col += w
	}
}

func (o *Output) addToken() {
	o.tokens = append(o.tokens, outputToken{
		Token: Token{
			DstLine: o.line.line,
			DstCol:  o.line.col,
			SrcLine: o.orig.line,
			SrcCol:  o.orig.col,
		},
	})
}

func utf16Len(r rune) int {
	if 0x10000 <= r && r <= utf8.MaxRune {
		return 2
	}
	return 1
}

// Apply emits the plan against src and returns the output text and its tokens.
func Apply[C Content[C]](src string, plan Plan[C], tokenPositions []int) (string, []Token) {
	o := NewOutput(src, tokenPositions, plan.SourcePositions)
	for _, r := range plan.Rewrites {
		o.EmitInputUntil(r.Span.Lo)
		alt, ok := r.Content.SourcePos()
		if !ok {
			alt = -1
		}
		if r.Kind == InsertKind {
			o.EmitInsertion(r.Content.String(), alt)
		} else {
			o.EmitReplacementUntil(r.Span.Hi, r.Content.String(), alt)
		}
	}
	return o.Finish()
}
