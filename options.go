package jsprivacy

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dlclark/regexp2"
	"github.com/tdewolff/jsprivacy/dictionary"
	"github.com/tdewolff/jsprivacy/identifier"
	"github.com/tdewolff/jsprivacy/privacy"
	"github.com/tdewolff/jsprivacy/rewrite"
)

// DefaultDictionaryIdentifier is the preferred name of the dictionary variable.
const DefaultDictionaryIdentifier = "D"

// Options are the options of a transform. The zero value is not useful, start from DefaultOptions.
type Options struct {
	// Module overrides the module kind inferred from the filename and the module keywords.
	Module privacy.ModuleKind

	// JSX and TypeScript override detection by filename extension when not nil.
	JSX        *bool
	TypeScript *bool

	InlineSourceMap bool // append the map as a data URL comment
	EmbedSources    bool // include the original code in the map

	Helper               privacy.Helper
	DictionaryIdentifier string

	// Skip holds ECMAScript regular expressions of strings that are never collected.
	Skip []string

	Logger rewrite.Logger
}

// DefaultOptions returns the default options.
func DefaultOptions() Options {
	return Options{
		EmbedSources:         true,
		Helper:               privacy.DefaultHelper,
		DictionaryIdentifier: DefaultDictionaryIdentifier,
	}
}

// Bool returns a pointer to b, for the JSX and TypeScript options.
func Bool(b bool) *bool {
	return &b
}

type compiledOptions struct {
	Options
	skip []*regexp2.Regexp
}

func (o Options) compile() (compiledOptions, error) {
	if o.DictionaryIdentifier == "" {
		o.DictionaryIdentifier = DefaultDictionaryIdentifier
	}
	if err := identifier.Validate(o.DictionaryIdentifier); err != nil {
		return compiledOptions{}, fmt.Errorf("dictionary identifier: %w", err)
	}
	if o.Helper.Func == "" {
		o.Helper.Func = privacy.DefaultHelper.Func
	}
	if err := identifier.Validate(o.Helper.Func); err != nil {
		return compiledOptions{}, fmt.Errorf("helper function: %w", err)
	}
	if o.Helper.Code == "" && (o.Helper.CJS == "" || o.Helper.ESM == "") {
		return compiledOptions{}, errors.New("helper needs either code or both CommonJS and ES modules")
	}

	skip, err := dictionary.CompileSkip(o.Skip)
	if err != nil {
		return compiledOptions{}, err
	}
	return compiledOptions{o, skip}, nil
}

// dialect returns whether filename holds TypeScript and JSX, unless overridden by the options.
func (o Options) dialect(filename string) (bool, bool) {
	ext := extension(filename)
	typescript := o.TypeScript != nil && *o.TypeScript || o.TypeScript == nil && isTypeScript(ext)
	jsx := o.JSX != nil && *o.JSX || o.JSX == nil && isJSX(ext)
	return typescript, jsx
}

// module resolves the module kind from the options, the filename and the module keywords.
func (o Options) module(filename string, esm, cjs bool) privacy.ModuleKind {
	if o.Module != privacy.UnknownModule {
		return o.Module
	}
	switch extension(filename) {
	case "cjs", "cjsx", "cts", "ctsx":
		return privacy.CJS
	case "mjs", "mjsx", "mts", "mtsx":
		return privacy.ESM
	}
	if !esm && cjs {
		return privacy.CJS
	}
	return privacy.ESM
}

func extension(filename string) string {
	if i := strings.LastIndexByte(filename, '.'); i != -1 && strings.IndexAny(filename[i:], `/\`) == -1 {
		return filename[i+1:]
	}
	return ""
}

func isTypeScript(ext string) bool {
	switch ext {
	case "ts", "cts", "mts", "tsx", "ctsx", "mtsx":
		return true
	}
	return false
}

func isJSX(ext string) bool {
	switch ext {
	case "jsx", "cjsx", "mjsx", "tsx", "ctsx", "mtsx":
		return true
	}
	return false
}
