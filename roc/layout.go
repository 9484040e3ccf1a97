package roc

import (
	"fmt"
	"strings"

	"github.com/wippyai/roc-host/errors"
)

// Layout fixes the word size of the foreign target.
type Layout struct {
	Word uint32
}

var (
	// Wasm32 is the layout of Roc apps compiled to wasm32.
	Wasm32 = Layout{Word: 4}
	// Native64 is the layout of 64-bit native Roc apps.
	Native64 = Layout{Word: 8}
)

// StrSize is the size of a Str record, three words.
func (l Layout) StrSize() uint32 { return 3 * l.Word }

// SmallCap is the longest string stored inline.
func (l Layout) SmallCap() uint32 { return l.StrSize() - 1 }

// ListSize is the size of a List record, three words.
func (l Layout) ListSize() uint32 { return 3 * l.Word }

// RefcountOne is the refcount of a uniquely owned payload: the minimum
// signed word.
func (l Layout) RefcountOne() int64 {
	return -1 << (8*l.Word - 1)
}

// Valid reports whether l is one of the supported layouts.
func (l Layout) Valid() bool {
	return l.Word == 4 || l.Word == 8
}

func (l Layout) String() string {
	switch l.Word {
	case 4:
		return "wasm32"
	case 8:
		return "native64"
	}
	return fmt.Sprintf("word%d", l.Word)
}

// ParseLayout accepts "wasm32", "32", "native64" and "64".
func ParseLayout(s string) (Layout, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "wasm32", "32", "4":
		return Wasm32, nil
	case "native64", "64", "8":
		return Native64, nil
	}
	return Layout{}, errors.InvalidInput(errors.PhaseConfig, fmt.Sprintf("unknown layout %q", s))
}
