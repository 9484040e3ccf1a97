package roc

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
	"unicode"

	"github.com/wippyai/roc-host/errors"
)

var registry = struct {
	types map[string]Descriptor
	mu    sync.RWMutex
}{types: make(map[string]Descriptor)}

func init() {
	for _, d := range []Descriptor{I8, I16, I32, I64, U8, U16, U32, U64, F32, F64, Bool, StrType} {
		registry.types[d.Name()] = d
	}
}

// Register adds a descriptor under its name. Registering a different
// descriptor under a taken name fails.
func Register(d Descriptor) error {
	name := d.Name()
	registry.mu.Lock()
	defer registry.mu.Unlock()
	if prev, ok := registry.types[name]; ok && !sameDescriptor(prev, d) {
		return errors.InvalidInput(errors.PhaseParse, fmt.Sprintf("type %q already registered", name))
	}
	registry.types[name] = d
	return nil
}

// ListOf returns the process-wide List descriptor for elem. An element
// descriptor that shares its name with a registered one but is not the
// same descriptor gets a fresh, uncached List descriptor.
func ListOf(elem Descriptor) Descriptor {
	name := "List " + argName(elem.Name())

	registry.mu.RLock()
	d, ok := registry.types[name]
	registry.mu.RUnlock()
	if ok {
		return listFor(d, elem)
	}

	registry.mu.Lock()
	defer registry.mu.Unlock()
	if d, ok := registry.types[name]; ok {
		return listFor(d, elem)
	}
	d = newListType(elem)
	registry.types[name] = d
	return d
}

func listFor(cached Descriptor, elem Descriptor) Descriptor {
	if t, ok := cached.(*listType); ok && sameDescriptor(t.elem, elem) {
		return t
	}
	return newListType(elem)
}

// sameDescriptor reports whether a and b are the same descriptor value.
// Descriptors of non-comparable types never match.
func sameDescriptor(a, b Descriptor) bool {
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}

// Lookup resolves a Roc type expression such as "I64", "List Str" or
// "List (List U8)".
func Lookup(name string) (Descriptor, error) {
	toks, err := tokenize(name)
	if err != nil {
		return nil, err
	}
	p := &typeParser{toks: toks, src: name}
	d, err := p.parseType()
	if err != nil {
		return nil, err
	}
	if p.pos != len(p.toks) {
		return nil, p.fail("unexpected %q", p.toks[p.pos])
	}
	return d, nil
}

// MustLookup is Lookup for names known to be valid.
func MustLookup(name string) Descriptor {
	d, err := Lookup(name)
	if err != nil {
		panic(err)
	}
	return d
}

func lookupName(name string) (Descriptor, bool) {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	d, ok := registry.types[name]
	return d, ok
}

func tokenize(s string) ([]string, error) {
	var toks []string
	for i := 0; i < len(s); {
		c := rune(s[i])
		switch {
		case unicode.IsSpace(c):
			i++
		case c == '(' || c == ')':
			toks = append(toks, string(c))
			i++
		case unicode.IsLetter(c):
			j := i
			for j < len(s) && (unicode.IsLetter(rune(s[j])) || unicode.IsDigit(rune(s[j]))) {
				j++
			}
			toks = append(toks, s[i:j])
			i = j
		default:
			return nil, errors.ParseFailed("type "+s, fmt.Errorf("unexpected character %q at %d", c, i))
		}
	}
	return toks, nil
}

type typeParser struct {
	src  string
	toks []string
	pos  int
}

func (p *typeParser) fail(format string, args ...any) error {
	return errors.ParseFailed("type "+p.src, fmt.Errorf(format, args...))
}

// parseType: "List" atom | atom
func (p *typeParser) parseType() (Descriptor, error) {
	if p.pos < len(p.toks) && p.toks[p.pos] == "List" {
		p.pos++
		elem, err := p.parseAtom()
		if err != nil {
			return nil, err
		}
		return ListOf(elem), nil
	}
	return p.parseAtom()
}

// parseAtom: name | "(" type ")"
func (p *typeParser) parseAtom() (Descriptor, error) {
	if p.pos >= len(p.toks) {
		return nil, p.fail("unexpected end of input")
	}
	tok := p.toks[p.pos]
	p.pos++
	switch tok {
	case "(":
		d, err := p.parseType()
		if err != nil {
			return nil, err
		}
		if p.pos >= len(p.toks) || p.toks[p.pos] != ")" {
			return nil, p.fail("missing )")
		}
		p.pos++
		return d, nil
	case ")":
		return nil, p.fail("unexpected )")
	case "List":
		return nil, p.fail("List needs an element type")
	}
	if d, ok := lookupName(tok); ok {
		return d, nil
	}
	if strings.EqualFold(tok, "string") {
		return nil, errors.NotFound(errors.PhaseParse, "type", tok+" (did you mean Str?)")
	}
	return nil, errors.NotFound(errors.PhaseParse, "type", tok)
}
