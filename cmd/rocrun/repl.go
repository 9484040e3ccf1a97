package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	goruntime "runtime"
	"slices"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/chzyer/readline"
	"github.com/tidwall/gjson"

	"github.com/wippyai/roc-host/resource"
	"github.com/wippyai/roc-host/roc"
	"github.com/wippyai/roc-host/runtime"
)

var (
	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4")).Bold(true)
	cmdStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))
)

// replState holds the values created during a REPL session, keyed by
// their handles so later commands can refer to them as @N.
type replState struct {
	s      *session
	out    *printer
	values map[resource.Handle]*runtime.Value
}

func runREPL(opts options) error {
	ctx := context.Background()
	s, err := openSession(ctx, opts)
	if err != nil {
		return err
	}
	defer s.Close(ctx)

	st := &replState{
		s:      s,
		out:    newPrinter(os.Stdout),
		values: make(map[resource.Handle]*runtime.Value),
	}

	historyFile := ""
	if home, err := os.UserHomeDir(); err == nil {
		historyFile = filepath.Join(home, ".rocrun_history")
	}

	funcs := make([]readline.PrefixCompleterInterface, 0, len(s.mod.Signatures()))
	for _, sig := range s.mod.Signatures() {
		funcs = append(funcs, readline.PcItem(sig.Name))
	}
	completer := readline.NewPrefixCompleter(
		readline.PcItem("call", funcs...),
		readline.PcItem("new", readline.PcItem("Str"), readline.PcItem("List")),
		readline.PcItem("show"),
		readline.PcItem("release"),
		readline.PcItem("list"),
		readline.PcItem("funcs"),
		readline.PcItem("stats"),
		readline.PcItem("gc"),
		readline.PcItem("help"),
		readline.PcItem("exit"),
	)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:            promptStyle.Render("roc") + dimStyle.Render(" > "),
		HistoryFile:       historyFile,
		HistoryLimit:      1000,
		AutoComplete:      completer,
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		return fmt.Errorf("init readline: %w", err)
	}
	defer rl.Close()

	st.out.dim("Type help for commands. Values are referenced as @N.")
	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}
		if err := st.exec(ctx, line); err != nil {
			st.out.fail(err)
		}
	}
	return nil
}

// exec runs one REPL command line.
func (st *replState) exec(ctx context.Context, line string) error {
	cmd, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch cmd {
	case "help":
		st.help()
	case "funcs":
		for _, sig := range st.s.mod.Signatures() {
			st.out.line("  " + sig.String())
		}
	case "call":
		return st.call(ctx, rest)
	case "new":
		return st.newValue(rest)
	case "show":
		return st.show(rest)
	case "release":
		return st.release(rest)
	case "list":
		st.list()
	case "stats":
		st.out.stats(st.s.inst)
	case "gc":
		goruntime.GC()
		if err := st.s.inst.Collect(); err != nil {
			return err
		}
		st.out.stats(st.s.inst)
	default:
		return fmt.Errorf("unknown command %q, try help", cmd)
	}
	return nil
}

func (st *replState) help() {
	rows := [][2]string{
		{"call <func> <json array>", "call a guest function; @N passes value N"},
		{"new <Type> <json>", "build a Str or List value in guest memory"},
		{"show <N>", "decode value N"},
		{"release <N>", "release value N"},
		{"list", "list live values"},
		{"funcs", "list declared functions"},
		{"stats", "heap and value table statistics"},
		{"gc", "run the Go GC and reclaim dropped values"},
		{"exit", "leave the REPL"},
	}
	for _, r := range rows {
		st.out.line("  " + cmdStyle.Render(fmt.Sprintf("%-26s", r[0])) + " " + r[1])
	}
}

func (st *replState) call(ctx context.Context, rest string) error {
	name, raw, _ := strings.Cut(rest, " ")
	if name == "" {
		return fmt.Errorf("usage: call <func> <json array>")
	}
	sig, ok := st.s.mod.Signature(name)
	if !ok {
		return fmt.Errorf("function %q is not declared", name)
	}
	args, err := parseArgs(sig, raw, st.values)
	if err != nil {
		return err
	}

	refs := make(map[resource.Handle]*runtime.Value)
	for _, a := range args {
		if v, ok := a.(*runtime.Value); ok {
			refs[v.Handle()] = v
		}
	}

	result, err := st.s.inst.Call(ctx, name, args...)
	// A value handed to the guest has handle 0 from then on.
	for h, v := range refs {
		if v.Handle() == 0 {
			delete(st.values, h)
		}
	}
	if err != nil {
		return err
	}
	if v, ok := result.(*runtime.Value); ok {
		st.values[v.Handle()] = v
		st.out.line(fmt.Sprintf("@%d : %s", v.Handle(), v.TypeName()))
		return nil
	}
	if sig.Result == nil {
		st.out.line("ok")
		return nil
	}
	st.out.value(result)
	return nil
}

func (st *replState) newValue(rest string) error {
	typeName, raw, err := splitTypeAndJSON(rest)
	if err != nil {
		return err
	}
	d, err := roc.Lookup(typeName)
	if err != nil {
		return err
	}
	host, err := roc.FromJSON(d, gjson.Parse(raw))
	if err != nil {
		return err
	}
	v, err := st.s.inst.New(typeName, host)
	if err != nil {
		return err
	}
	st.values[v.Handle()] = v
	st.out.line(fmt.Sprintf("@%d : %s (%d bytes)", v.Handle(), v.TypeName(), v.Footprint()))
	return nil
}

func (st *replState) show(rest string) error {
	v, err := st.lookup(rest)
	if err != nil {
		return err
	}
	host, err := v.ToHost()
	if err != nil {
		return err
	}
	st.out.value(host)
	return nil
}

func (st *replState) release(rest string) error {
	v, err := st.lookup(rest)
	if err != nil {
		return err
	}
	h := v.Handle()
	delete(st.values, h)
	if err := v.Release(); err != nil {
		return err
	}
	st.out.line("released @" + strconv.FormatUint(uint64(h), 10))
	return nil
}

func (st *replState) list() {
	if len(st.values) == 0 {
		st.out.dim("no live values")
		return
	}
	handles := make([]resource.Handle, 0, len(st.values))
	for h := range st.values {
		handles = append(handles, h)
	}
	slices.Sort(handles)
	for _, h := range handles {
		v := st.values[h]
		st.out.line(fmt.Sprintf("  @%-4d %-20s %d bytes", h, v.TypeName(), v.Footprint()))
	}
}

func (st *replState) lookup(ref string) (*runtime.Value, error) {
	n, err := strconv.ParseUint(strings.TrimPrefix(strings.TrimSpace(ref), "@"), 10, 32)
	if err != nil {
		return nil, fmt.Errorf("expected a value handle, got %q", ref)
	}
	v, ok := st.values[resource.Handle(n)]
	if !ok {
		return nil, fmt.Errorf("no value @%d", n)
	}
	return v, nil
}

// splitTypeAndJSON separates a Roc type name from the JSON that follows it.
// The JSON starts at the first '[', '{' or '"'.
func splitTypeAndJSON(s string) (string, string, error) {
	if i := strings.IndexAny(s, `["{`); i > 0 {
		typeName, raw := strings.TrimSpace(s[:i]), strings.TrimSpace(s[i:])
		if !gjson.Valid(raw) {
			return "", "", fmt.Errorf("%q is not valid JSON", raw)
		}
		return typeName, raw, nil
	}
	return "", "", fmt.Errorf("usage: new <Type> <json>")
}
