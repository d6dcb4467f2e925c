// Package jsprivacy moves the string literals of JavaScript, TypeScript and JSX files into a
// dictionary of allowed values, and maps the result back to the original file.
package jsprivacy

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/tdewolff/jsprivacy/dictionary"
	"github.com/tdewolff/jsprivacy/directive"
	"github.com/tdewolff/jsprivacy/identifier"
	"github.com/tdewolff/jsprivacy/privacy"
	"github.com/tdewolff/jsprivacy/rewrite"
	"github.com/tdewolff/jsprivacy/sourcemap"
	"github.com/tdewolff/jsprivacy/walk"
)

// InlineSourceMapPrefix starts the comment of an inlined source map.
const InlineSourceMapPrefix = "\n//# sourceMappingURL=data:application/json;charset=utf-8;base64,"

// ParseError is returned when the input cannot be parsed. Err is usually a *parse.Error.
type ParseError struct {
	Filename string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Filename, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Output is the result of a transform.
type Output struct {
	Code string
	Map  *sourcemap.SourceMap // nil when the input refers to an external map
}

// Transform rewrites code. The input map, when not nil, maps code to its sources and takes
// precedence over an inline map in code.
func Transform(filename, code string, inputMap *string, opts Options) (*Output, error) {
	return TransformContext(context.Background(), filename, code, inputMap, opts)
}

// TransformReader reads all of r and transforms it.
func TransformReader(filename string, r io.Reader, inputMap *string, opts Options) (*Output, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return Transform(filename, string(b), inputMap, opts)
}

// String transforms code using the default options and discards the map.
func String(filename, code string) (string, error) {
	out, err := Transform(filename, code, nil, DefaultOptions())
	if err != nil {
		return "", err
	}
	return out.Code, nil
}

// TransformContext is Transform with a context that cancels parsing.
func TransformContext(ctx context.Context, filename, code string, inputMap *string, opts Options) (*Output, error) {
	o, err := opts.compile()
	if err != nil {
		return nil, err
	}
	logger := rewrite.OrDiscard(o.Logger)

	typescript, jsx := o.dialect(filename)
	tree, err := walk.Parse(ctx, []byte(code), walk.DialectFor(typescript, jsx))
	if err != nil {
		return nil, &ParseError{filename, err}
	}
	defer tree.Close()

	excluded, ref := directive.Parse(code, tree.Comments())

	c := &collector{
		dictionary:  dictionary.NewTracker(excluded, logger, o.skip...),
		rewrites:    privacy.NewTracker(logger),
		identifiers: identifier.NewAllocator(o.DictionaryIdentifier, o.Helper.Func),
	}
	features := walk.Walk(tree, c)
	headerPos, headerSemicolon := tree.Prologue()

	dictionaryIdentifier := c.identifiers.Unused(o.DictionaryIdentifier)
	helperIdentifier := c.identifiers.Unused(o.Helper.Func)
	params := &privacy.Params{
		Dictionary:       dictionary.Optimize(dictionaryIdentifier, &c.dictionary.Dictionary),
		Helper:           o.Helper,
		HelperIdentifier: helperIdentifier,
		Module:           o.module(filename, features.ESM, features.CJS),
		HeaderPos:        headerPos,
		HeaderSemicolon:  headerSemicolon,
	}

	// an inline map is wrong once the code changes
	if ref.Inline() {
		c.rewrites.Replace(privacy.Template{Kind: privacy.DeleteSourceMapComment}, ref.Span)
	}

	body := params.EvaluateAll(c.rewrites.Rewrites, logger)
	plan := rewrite.Build(params.Header(), body, logger)
	dst, tokens := rewrite.Apply(code, plan, rewrite.SortUnique(c.tokens))

	var content *string
	if o.EmbedSources {
		content = &code
	}
	transformMap := sourcemap.FromTokens(filename, content, tokens)

	var input []byte
	if inputMap != nil {
		input = []byte(*inputMap)
	}
	sm, err := sourcemap.Compose(ref, input, transformMap, logger)
	if err != nil {
		return nil, err
	}

	if sm != nil && o.InlineSourceMap {
		dst += InlineSourceMapPrefix + base64.StdEncoding.EncodeToString(sm.Bytes())
	}
	return &Output{
		Code: dst,
		Map:  sm,
	}, nil
}

// collector feeds the walk into the dictionary, the rewrites and the identifiers of one file.
type collector struct {
	dictionary  *dictionary.Tracker
	rewrites    *privacy.Tracker
	identifiers *identifier.Allocator
	tokens      []int
}

func (c *collector) Token(pos int) {
	c.tokens = append(c.tokens, pos)
}

func (c *collector) Identifier(name string, _ rewrite.Span) {
	c.identifiers.Add(name)
}

func (c *collector) Candidate(candidate dictionary.Candidate) (int, bool) {
	return c.dictionary.Add(candidate)
}

func (c *collector) EnterUncollected() func() {
	return c.dictionary.EnterUncollected()
}

func (c *collector) EnterUnrewritten() func() {
	return c.rewrites.EnterUnrewritten()
}

func (c *collector) Replace(t privacy.Template, span rewrite.Span) {
	c.rewrites.Replace(t, span)
}
