// Package identifier allocates JavaScript identifiers that are guaranteed not to be used anywhere
// in a program.
package identifier

import (
	"fmt"
	"math"
	"strings"

	"github.com/tdewolff/parse/v2/js"
)

// Filler is the character repeated in front of synthesized identifiers.
const Filler = "D"

const characters = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789$_"

const lowPositions = 16

// usage records at which string positions a character has been seen as the last character of an
// identifier. Positions below lowPositions are tracked exactly, the others by an upper bound.
type usage struct {
	low   uint16
	upper int
}

func (u *usage) add(pos int) {
	if pos < lowPositions {
		u.low |= 1 << pos
	}
	if u.upper <= pos {
		u.upper = pos + 1
	}
}

func (u usage) firstUnused() int {
	if u.low != math.MaxUint16 {
		for pos := 0; pos < lowPositions; pos++ {
			if u.low&(1<<pos) == 0 {
				return pos
			}
		}
	}
	return u.upper
}

func index(c byte) int {
	switch {
	case 'A' <= c && c <= 'Z':
		return int(c - 'A')
	case 'a' <= c && c <= 'z':
		return int(c-'a') + 26
	case '0' <= c && c <= '9':
		return int(c-'0') + 52
	case c == '$':
		return 62
	case c == '_':
		return 63
	}
	return -1
}

// Allocator observes every identifier of a program and synthesizes new ones. A synthesized
// identifier of length p+1 ends in a character c that was never the last character of an observed
// identifier of that length, so it cannot collide with any of them.
type Allocator struct {
	usages   [len(characters)]usage
	reserved map[string]bool // true while still available
}

// NewAllocator returns an Allocator. Reserved names are handed out verbatim by Unused as long as
// they are not observed in the program.
func NewAllocator(reserved ...string) *Allocator {
	a := &Allocator{
		reserved: make(map[string]bool, len(reserved)),
	}
	for _, name := range reserved {
		a.reserved[name] = true
	}

	// identifiers cannot start with a digit, _ and __ are common i18n helpers
	for c := '0'; c <= '9'; c++ {
		a.track(string(c))
	}
	a.track("_")
	a.track("__")
	return a
}

// Add records an identifier used by the program.
func (a *Allocator) Add(name string) {
	if a.reserved[name] {
		a.reserved[name] = false
	}
	a.track(name)
}

func (a *Allocator) track(name string) {
	if name == "" {
		return
	}
	// positions count characters, not bytes
	last, pos := rune(-1), -1
	for _, r := range name {
		last = r
		pos++
	}
	if last < 0x80 {
		if i := index(byte(last)); i != -1 {
			a.usages[i].add(pos)
		}
	}
}

// Unused returns desired if it was reserved and never observed, and otherwise a fresh identifier
// that differs from every observed and every previously returned identifier.
func (a *Allocator) Unused(desired string) string {
	if a.reserved[desired] {
		a.reserved[desired] = false
		a.track(desired)
		return desired
	}

	best, pos := 0, a.usages[0].firstUnused()
	for i := 1; i < len(a.usages); i++ {
		if p := a.usages[i].firstUnused(); p < pos {
			best, pos = i, p
		}
	}
	name := strings.Repeat(Filler, pos) + string(characters[best])
	a.Add(name) // a synthesized name may equal a reserved one
	return name
}

// Validate returns an error if name cannot be used as a variable name.
func Validate(name string) error {
	if !js.AsIdentifierName([]byte(name)) {
		return fmt.Errorf("invalid identifier %q", name)
	} else if tt, ok := js.Keywords[name]; ok && js.IsReservedWord(tt) {
		return fmt.Errorf("reserved word %q", name)
	}
	return nil
}
