package main

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/wippyai/roc-host/runtime"
)

var (
	headingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4")).Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#666666"))
	errStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))
)

// printer writes results, coloring them when the output is a terminal.
type printer struct {
	w         io.Writer
	lexer     chroma.Lexer
	style     *chroma.Style
	formatter chroma.Formatter
	color     bool
}

func newPrinter(f *os.File) *printer {
	p := &printer{w: f, color: term.IsTerminal(int(f.Fd()))}
	if !p.color {
		return p
	}
	p.lexer = lexers.Get("json")
	if p.lexer == nil {
		p.lexer = lexers.Fallback
	}
	p.lexer = chroma.Coalesce(p.lexer)
	p.style = styles.Get("dracula")
	if p.style == nil {
		p.style = styles.Fallback
	}
	p.formatter = formatters.Get("terminal256")
	if p.formatter == nil {
		p.formatter = formatters.Fallback
	}
	return p
}

func (p *printer) line(s string) {
	fmt.Fprintln(p.w, s)
}

func (p *printer) heading(s string) {
	if p.color {
		s = headingStyle.Render(s)
	}
	p.line(s)
}

func (p *printer) dim(s string) {
	if p.color {
		s = dimStyle.Render(s)
	}
	p.line(s)
}

func (p *printer) fail(err error) {
	s := "Error: " + err.Error()
	if p.color {
		s = errStyle.Render(s)
	}
	p.line(s)
}

// value prints a decoded value as JSON.
func (p *printer) value(v any) {
	p.line(p.highlight(formatJSON(v)))
}

func (p *printer) highlight(code string) string {
	if !p.color {
		return code
	}
	it, err := p.lexer.Tokenise(nil, code)
	if err != nil {
		return code
	}
	var buf bytes.Buffer
	if err := p.formatter.Format(&buf, p.style, it); err != nil {
		return code
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

func (p *printer) record(label string, rec []byte) {
	p.dim(fmt.Sprintf("%-10s %s", label, hex.EncodeToString(rec)))
}

func (p *printer) stats(inst *runtime.Instance) {
	st := inst.Stats()
	p.dim(fmt.Sprintf("heap: %d live blocks, %d live bytes, %d allocs, %d frees; values: %d live, %d bytes",
		st.Heap.LiveBlocks, st.Heap.LiveBytes, st.Heap.Allocs, st.Heap.Frees, inst.Len(), inst.Footprint()))
}

// formatJSON renders v as indented JSON, falling back to %v for values
// JSON cannot hold such as NaN.
func formatJSON(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
