package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/tdewolff/jsprivacy"
	"github.com/tdewolff/jsprivacy/privacy"
	"gopkg.in/yaml.v3"
)

// Config is the YAML configuration file.
type Config struct {
	Module       string   `yaml:"module"`
	JSX          *bool    `yaml:"jsx"`
	TypeScript   *bool    `yaml:"typescript"`
	InlineMap    bool     `yaml:"inlineSourceMap"`
	Map          bool     `yaml:"map"`
	InputMap     bool     `yaml:"inputMap"`
	EmbedSources *bool    `yaml:"embedSources"`
	Dictionary   string   `yaml:"dictionary"`
	Skip         []string `yaml:"skip"`
	Helper       struct {
		Func string `yaml:"func"`
		CJS  string `yaml:"cjs"`
		ESM  string `yaml:"esm"`
		Code string `yaml:"code"`
	} `yaml:"helper"`
}

// LoadConfig reads a configuration file. Unknown keys are an error.
func LoadConfig(filename string) (Config, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return Config{}, err
	}
	return ParseConfig(b, filename)
}

// ParseConfig parses the configuration in b, name is used in errors.
func ParseConfig(b []byte, name string) (Config, error) {
	config := Config{}
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&config); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("config %s: %w", name, err)
	}
	return config, nil
}

// Apply sets the options that are present in the configuration.
func (c Config) Apply(o *jsprivacy.Options) error {
	if c.Module != "" {
		module, err := privacy.ParseModuleKind(c.Module)
		if err != nil {
			return err
		}
		o.Module = module
	}
	if c.JSX != nil {
		o.JSX = jsprivacy.Bool(*c.JSX)
	}
	if c.TypeScript != nil {
		o.TypeScript = jsprivacy.Bool(*c.TypeScript)
	}
	o.InlineSourceMap = o.InlineSourceMap || c.InlineMap
	if c.EmbedSources != nil {
		o.EmbedSources = *c.EmbedSources
	}
	if c.Dictionary != "" {
		o.DictionaryIdentifier = c.Dictionary
	}
	o.Skip = append(o.Skip, c.Skip...)
	setHelper(&o.Helper, c.Helper.Func, c.Helper.CJS, c.Helper.ESM, c.Helper.Code)
	return nil
}

// Flags are the transform options given on the command line.
type Flags struct {
	Module     string
	JSX        bool
	TypeScript bool
	InlineMap  bool
	NoEmbed    bool
	HelperFunc string
	HelperCJS  string
	HelperESM  string
	HelperCode string
	Dictionary string
	Skip       []string
}

// Apply sets the options of the flags for which isSet returns true.
func (f Flags) Apply(o *jsprivacy.Options, isSet func(string) bool) error {
	if isSet("module") {
		module, err := privacy.ParseModuleKind(f.Module)
		if err != nil {
			return err
		}
		o.Module = module
	}
	if isSet("jsx") {
		o.JSX = jsprivacy.Bool(f.JSX)
	}
	if isSet("typescript") {
		o.TypeScript = jsprivacy.Bool(f.TypeScript)
	}
	if isSet("inline-map") {
		o.InlineSourceMap = f.InlineMap
	}
	if isSet("no-embed") {
		o.EmbedSources = !f.NoEmbed
	}
	if isSet("dictionary") {
		o.DictionaryIdentifier = f.Dictionary
	}
	o.Skip = append(o.Skip, f.Skip...)
	setHelper(&o.Helper, f.HelperFunc, f.HelperCJS, f.HelperESM, f.HelperCode)
	return nil
}

// setHelper overrides the non-empty fields. An expression replaces the modules and vice versa.
func setHelper(h *privacy.Helper, fn, cjs, esm, code string) {
	if fn != "" {
		h.Func = fn
	}
	if code != "" {
		h.Code, h.CJS, h.ESM = code, "", ""
	}
	if cjs != "" {
		h.CJS, h.Code = cjs, ""
	}
	if esm != "" {
		h.ESM, h.Code = esm, ""
	}
}
