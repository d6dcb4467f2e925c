package sourcemap

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/tdewolff/parse/v2"
	pjson "github.com/tdewolff/parse/v2/json"
)

// Parse errors.
var (
	ErrUnsupported = errors.New("source maps with sections are not supported")
	ErrVersion     = errors.New("unsupported source map version")
	ErrInvalid     = errors.New("invalid source map")
)

// Parse parses a version 3 source map.
func Parse(b []byte) (*SourceMap, error) {
	p := pjson.NewParser(parse.NewInputString(string(b)))
	if gt, _ := p.Next(); gt != pjson.StartObjectGrammar {
		return nil, parseErr(p, "expected object")
	}

	sm := &SourceMap{}
	var mappings []byte
	version := false
	for {
		gt, data := p.Next()
		if gt == pjson.EndObjectGrammar {
			break
		} else if gt != pjson.StringGrammar {
			return nil, parseErr(p, "expected key")
		}
		key, err := unquote(data)
		if err != nil {
			return nil, err
		}

		switch key {
		case "sections":
			return nil, ErrUnsupported
		case "version":
			gt, data = p.Next()
			if gt != pjson.NumberGrammar || string(data) != "3" {
				return nil, fmt.Errorf("%w: %s", ErrVersion, data)
			}
			version = true
		case "file":
			if sm.File, err = readString(p); err != nil {
				return nil, err
			}
		case "sourceRoot":
			if sm.SourceRoot, err = readString(p); err != nil {
				return nil, err
			}
		case "mappings":
			gt, data = p.Next()
			if gt != pjson.StringGrammar {
				return nil, parseErr(p, "expected mappings string")
			}
			mappings = data[1 : len(data)-1]
		case "sources", "names":
			list := []string{}
			err = readArray(p, func(gt pjson.GrammarType, data []byte) error {
				s := ""
				if gt == pjson.StringGrammar {
					var err error
					if s, err = unquote(data); err != nil {
						return err
					}
				}
				list = append(list, s)
				return nil
			})
			if err != nil {
				return nil, err
			} else if key == "sources" {
				sm.Sources = list
			} else {
				sm.Names = list
			}
		case "sourcesContent":
			sm.SourcesContent = []*string{}
			err = readArray(p, func(gt pjson.GrammarType, data []byte) error {
				if gt != pjson.StringGrammar {
					sm.SourcesContent = append(sm.SourcesContent, nil)
					return nil
				}
				s, err := unquote(data)
				if err != nil {
					return err
				}
				sm.SourcesContent = append(sm.SourcesContent, &s)
				return nil
			})
			if err != nil {
				return nil, err
			}
		case "ignoreList", "x_google_ignoreList":
			sm.IgnoreList = []int{}
			err = readArray(p, func(gt pjson.GrammarType, data []byte) error {
				i, err := strconv.Atoi(string(data))
				if gt != pjson.NumberGrammar || err != nil {
					return fmt.Errorf("%w: bad ignore list entry %s", ErrInvalid, data)
				}
				sm.IgnoreList = append(sm.IgnoreList, i)
				return nil
			})
			if err != nil {
				return nil, err
			}
		default:
			if err := skipValue(p); err != nil {
				return nil, err
			}
		}
	}
	if !version {
		return nil, fmt.Errorf("%w: missing version", ErrVersion)
	}
	if sm.Names == nil {
		sm.Names = []string{}
	}

	var err error
	if sm.Mappings, err = decodeMappings(mappings, len(sm.Sources), len(sm.Names)); err != nil {
		return nil, err
	}
	return sm, nil
}

func parseErr(p *pjson.Parser, msg string) error {
	if err := p.Err(); err != nil && err != io.EOF {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return fmt.Errorf("%w: %s", ErrInvalid, msg)
}

func readString(p *pjson.Parser) (string, error) {
	gt, data := p.Next()
	if gt == pjson.LiteralGrammar && string(data) == "null" {
		return "", nil
	} else if gt != pjson.StringGrammar {
		return "", parseErr(p, "expected string")
	}
	return unquote(data)
}

func readArray(p *pjson.Parser, f func(pjson.GrammarType, []byte) error) error {
	if gt, _ := p.Next(); gt != pjson.StartArrayGrammar {
		return parseErr(p, "expected array")
	}
	for {
		gt, data := p.Next()
		switch gt {
		case pjson.EndArrayGrammar:
			return nil
		case pjson.ErrorGrammar:
			return parseErr(p, "unterminated array")
		case pjson.StartObjectGrammar, pjson.StartArrayGrammar:
			if err := skipNested(p); err != nil {
				return err
			}
			gt, data = pjson.LiteralGrammar, nil
		}
		if err := f(gt, data); err != nil {
			return err
		}
	}
}

func skipValue(p *pjson.Parser) error {
	switch gt, _ := p.Next(); gt {
	case pjson.ErrorGrammar:
		return parseErr(p, "expected value")
	case pjson.StartObjectGrammar, pjson.StartArrayGrammar:
		return skipNested(p)
	}
	return nil
}

// skipNested skips until the end of the object or array that was just opened.
func skipNested(p *pjson.Parser) error {
	depth := 1
	for 0 < depth {
		switch gt, _ := p.Next(); gt {
		case pjson.ErrorGrammar:
			return parseErr(p, "unterminated value")
		case pjson.StartObjectGrammar, pjson.StartArrayGrammar:
			depth++
		case pjson.EndObjectGrammar, pjson.EndArrayGrammar:
			depth--
		}
	}
	return nil
}

// unquote decodes a quoted JSON string token.
func unquote(data []byte) (string, error) {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return s, nil
}

func decodeMappings(b []byte, sources, names int) ([]Mapping, error) {
	mappings := []Mapping{}
	var genLine, genCol, source, origLine, origCol, name int32
	sorted := true
	for i := 0; i < len(b); {
		if b[i] == ';' {
			genLine++
			genCol = 0
			i++
			continue
		} else if b[i] == ',' {
			i++
			continue
		}

		var delta int32
		var ok bool
		if delta, i, ok = DecodeVLQ(b, i); !ok {
			return nil, mappingsErr(i, "missing generated column")
		}
		if delta < 0 {
			sorted = false
		}
		if genCol += delta; genCol < 0 {
			return nil, mappingsErr(i, "invalid generated column")
		}
		if i == len(b) || b[i] == ',' || b[i] == ';' {
			// mappings without an original position carry no information
			continue
		}

		if delta, i, ok = DecodeVLQ(b, i); !ok {
			return nil, mappingsErr(i, "missing source index")
		}
		if source += delta; source < 0 || int(source) >= sources {
			return nil, mappingsErr(i, "invalid source index")
		}
		if delta, i, ok = DecodeVLQ(b, i); !ok {
			return nil, mappingsErr(i, "missing original line")
		}
		if origLine += delta; origLine < 0 {
			return nil, mappingsErr(i, "invalid original line")
		}
		if delta, i, ok = DecodeVLQ(b, i); !ok {
			return nil, mappingsErr(i, "missing original column")
		}
		if origCol += delta; origCol < 0 {
			return nil, mappingsErr(i, "invalid original column")
		}

		m := Mapping{
			GeneratedLine:   genLine,
			GeneratedColumn: genCol,
			SourceIndex:     source,
			OriginalLine:    origLine,
			OriginalColumn:  origCol,
			OriginalName:    -1,
		}
		if delta, j, ok := DecodeVLQ(b, i); ok {
			i = j
			if name += delta; name < 0 || int(name) >= names {
				return nil, mappingsErr(i, "invalid name index")
			}
			m.OriginalName = name
		}
		if i < len(b) && b[i] != ',' && b[i] != ';' {
			return nil, mappingsErr(i, fmt.Sprintf("invalid character %q", b[i]))
		}
		mappings = append(mappings, m)
	}

	if !sorted {
		sort.SliceStable(mappings, func(i, j int) bool {
			a, b := mappings[i], mappings[j]
			return a.GeneratedLine < b.GeneratedLine || a.GeneratedLine == b.GeneratedLine && a.GeneratedColumn < b.GeneratedColumn
		})
	}
	return mappings, nil
}

func mappingsErr(pos int, msg string) error {
	return fmt.Errorf("%w: bad mappings at character %d: %s", ErrInvalid, pos, msg)
}
