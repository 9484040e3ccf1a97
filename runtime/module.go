package runtime

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/wippyai/roc-host/engine"
	"github.com/wippyai/roc-host/errors"
	"github.com/wippyai/roc-host/roc"
)

// Module is a compiled guest together with its declared signatures.
type Module struct {
	runtime *Runtime
	mod     *engine.Module
	sigs    map[string]*Signature
}

// Param is a named function parameter.
type Param struct {
	Type roc.Descriptor
	Name string
}

// Signature is a guest function's type in Roc terms. Result is nil for a
// function that returns nothing.
type Signature struct {
	Result roc.Descriptor
	Name   string
	Params []Param
}

// String renders the signature in Roc notation, e.g.
// "sum-list : List I64 -> I64".
func (s *Signature) String() string {
	var b strings.Builder
	b.WriteString(s.Name)
	b.WriteString(" :")
	if len(s.Params) == 0 {
		b.WriteString(" {}")
	}
	for i, p := range s.Params {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte(' ')
		b.WriteString(p.Type.Name())
	}
	b.WriteString(" -> ")
	if s.Result == nil {
		b.WriteString("{}")
	} else {
		b.WriteString(s.Result.Name())
	}
	return b.String()
}

// returnsRecord reports whether the result comes back through a
// return-pointer slot.
func (s *Signature) returnsRecord() bool {
	return s.Result != nil && !roc.IsScalar(s.Result)
}

// Instantiate creates an instance with its own memory, heap and value
// table.
func (m *Module) Instantiate(ctx context.Context) (*Instance, error) {
	inst, err := m.mod.Instantiate(ctx)
	if err != nil {
		return nil, err
	}
	return newInstance(m, inst), nil
}

// Exports returns the guest's exported function names, sorted.
func (m *Module) Exports() []string {
	return m.mod.ExportNames()
}

// Signature returns the declared signature of a function.
func (m *Module) Signature(name string) (*Signature, bool) {
	sig, ok := m.sigs[name]
	return sig, ok
}

// Signatures returns every declared signature, sorted by name.
func (m *Module) Signatures() []*Signature {
	out := make([]*Signature, 0, len(m.sigs))
	for _, sig := range m.sigs {
		out = append(out, sig)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

var funcPattern = regexp.MustCompile(`(?:export\s+)?([a-zA-Z_][a-zA-Z0-9_-]*)\s*:\s*func\s*\(([^)]*)\)(?:\s*->\s*([^;]+))?`)

// parseWitFunctions extracts function signatures from WIT text.
// Pattern: [export] name: func(params) -> result;
func parseWitFunctions(witText string) (map[string]*Signature, error) {
	funcs := make(map[string]*Signature)
	if strings.TrimSpace(witText) == "" {
		return funcs, nil
	}

	for _, match := range funcPattern.FindAllStringSubmatch(witText, -1) {
		name := match[1]
		sig := &Signature{Name: name}

		for _, p := range splitParams(strings.TrimSpace(match[2])) {
			pname, typ, ok := strings.Cut(p, ":")
			pname = strings.TrimSpace(pname)
			if !ok || pname == "" {
				return nil, errors.InvalidInput(errors.PhaseParse, "malformed parameter in "+name+": "+p)
			}
			d, err := roc.LookupWIT(typ)
			if err != nil {
				return nil, errors.WithPath(errors.PhaseParse, err, name+"."+pname)
			}
			sig.Params = append(sig.Params, Param{Name: pname, Type: d})
		}

		if result := strings.TrimSpace(match[3]); result != "" && result != "()" {
			d, err := roc.LookupWIT(result)
			if err != nil {
				return nil, errors.WithPath(errors.PhaseParse, err, name+".result")
			}
			sig.Result = d
		}

		if _, dup := funcs[name]; dup {
			return nil, errors.InvalidInput(errors.PhaseParse, "duplicate function "+name)
		}
		funcs[name] = sig
	}

	if len(funcs) == 0 {
		return nil, errors.InvalidInput(errors.PhaseParse, "no functions found in WIT text")
	}
	return funcs, nil
}

// splitParams splits a parameter list on top-level commas.
func splitParams(s string) []string {
	var result []string
	var current strings.Builder
	depth := 0

	for _, ch := range s {
		switch ch {
		case '(', '<':
			depth++
			current.WriteRune(ch)
		case ')', '>':
			depth--
			current.WriteRune(ch)
		case ',':
			if depth == 0 {
				if str := strings.TrimSpace(current.String()); str != "" {
					result = append(result, str)
				}
				current.Reset()
			} else {
				current.WriteRune(ch)
			}
		default:
			current.WriteRune(ch)
		}
	}

	if str := strings.TrimSpace(current.String()); str != "" {
		result = append(result, str)
	}
	return result
}
