package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/wippyai/roc-host/resource"
	"github.com/wippyai/roc-host/roc"
	"github.com/wippyai/roc-host/runtime"
)

// parseArgs decodes a JSON array into call arguments for sig. When values
// is non-nil, a string "@N" in a Str or List position refers to the live
// value with handle N.
func parseArgs(sig *runtime.Signature, raw string, values map[resource.Handle]*runtime.Value) ([]any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		raw = "[]"
	}
	if !gjson.Valid(raw) {
		return nil, fmt.Errorf("arguments are not valid JSON")
	}
	root := gjson.Parse(raw)
	if !root.IsArray() {
		return nil, fmt.Errorf("arguments must be a JSON array")
	}

	items := root.Array()
	if len(items) != len(sig.Params) {
		return nil, fmt.Errorf("%s takes %d arguments, got %d", sig.Name, len(sig.Params), len(items))
	}

	args := make([]any, len(items))
	for i, item := range items {
		p := sig.Params[i]
		if v, ok := valueRef(item, p.Type, values); ok {
			args[i] = v
			continue
		}
		v, err := roc.FromJSON(p.Type, item)
		if err != nil {
			return nil, fmt.Errorf("argument %s: %w", p.Name, err)
		}
		args[i] = v
	}
	return args, nil
}

func valueRef(item gjson.Result, d roc.Descriptor, values map[resource.Handle]*runtime.Value) (*runtime.Value, bool) {
	if values == nil || item.Type != gjson.String || roc.IsScalar(d) {
		return nil, false
	}
	ref, ok := strings.CutPrefix(item.Str, "@")
	if !ok {
		return nil, false
	}
	h, err := strconv.ParseUint(ref, 10, 32)
	if err != nil {
		return nil, false
	}
	v, ok := values[resource.Handle(h)]
	return v, ok
}

// parseField decodes one TUI input field. Str fields take raw text unless
// it is a quoted JSON string.
func parseField(d roc.Descriptor, text string) (any, error) {
	text = strings.TrimSpace(text)
	if d.Kind() == roc.KindStr && !(strings.HasPrefix(text, `"`) && gjson.Valid(text)) {
		return text, nil
	}
	if !gjson.Valid(text) {
		return nil, fmt.Errorf("%q is not valid JSON for %s", text, d.Name())
	}
	return roc.FromJSON(d, gjson.Parse(text))
}
