package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/wippyai/roc-host/internal/guest"
	"github.com/wippyai/roc-host/roc"
	"github.com/wippyai/roc-host/runtime"
)

type options struct {
	wasmFile   string
	witFile    string
	configFile string
	funcName   string
	args       string
	typeName   string
	value      string
	layout     string
	demo       bool
	list       bool
	verbose    bool
}

func main() {
	var opts options
	flag.StringVar(&opts.wasmFile, "wasm", "", "Path to a wasm32 Roc guest")
	flag.StringVar(&opts.witFile, "wit", "", "Path to WIT text declaring the guest's functions")
	flag.StringVar(&opts.configFile, "config", "", "Path to a JSON runtime config")
	flag.StringVar(&opts.funcName, "func", "", "Function to call")
	flag.StringVar(&opts.args, "args", "", `Arguments as a JSON array, e.g. '["hi", 3]'`)
	flag.StringVar(&opts.typeName, "type", "", `Roc type to inspect, e.g. "List Str"`)
	flag.StringVar(&opts.value, "value", "", "JSON value to encode with -type")
	flag.StringVar(&opts.layout, "layout", "", "Layout for -type: wasm32 or native64")
	flag.BoolVar(&opts.demo, "demo", false, "Use the built-in demo guest")
	flag.BoolVar(&opts.list, "list", false, "List declared functions and exit")
	flag.BoolVar(&opts.verbose, "v", false, "Verbose logging")
	interactive := flag.Bool("i", false, "Interactive mode with TUI")
	repl := flag.Bool("repl", false, "Line REPL")
	flag.Parse()

	if opts.typeName == "" && opts.wasmFile == "" && !opts.demo {
		fmt.Fprintln(os.Stderr, "Usage: rocrun -wasm <guest.wasm> -wit <guest.wit> [-func name] [-args JSON]")
		fmt.Fprintln(os.Stderr, "       rocrun -demo [-list | -func name -args JSON | -i | -repl]")
		fmt.Fprintln(os.Stderr, "       rocrun -type <Roc type> -value <JSON> [-layout native64]")
		os.Exit(1)
	}

	var err error
	switch {
	case opts.typeName != "":
		err = inspect(opts, newPrinter(os.Stdout))
	case *interactive:
		err = runInteractive(opts)
	case *repl:
		err = runREPL(opts)
	default:
		err = run(opts, newPrinter(os.Stdout))
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// config assembles the runtime config from -config, -layout and -v.
func (o options) config() (runtime.Config, error) {
	var cfg runtime.Config
	if o.configFile != "" {
		data, err := os.ReadFile(o.configFile)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if cfg, err = runtime.ParseConfig(data); err != nil {
			return cfg, err
		}
	}
	if o.layout != "" {
		l, err := roc.ParseLayout(o.layout)
		if err != nil {
			return cfg, err
		}
		cfg.Layout = l
	}
	if o.verbose {
		logger, err := zap.NewDevelopment()
		if err != nil {
			return cfg, fmt.Errorf("create logger: %w", err)
		}
		cfg.Logger = logger
		cfg.Dbg = func(_ context.Context, loc, msg, src string) {
			fmt.Fprintf(os.Stderr, "[dbg %s] %s = %s\n", loc, src, msg)
		}
	}
	return cfg, nil
}

// guestSource returns the wasm bytes and WIT text selected by the flags.
func (o options) guestSource() ([]byte, string, error) {
	if o.demo {
		return guest.Demo(), guest.WIT, nil
	}
	wasm, err := os.ReadFile(o.wasmFile)
	if err != nil {
		return nil, "", fmt.Errorf("read wasm: %w", err)
	}
	var witText string
	if o.witFile != "" {
		data, err := os.ReadFile(o.witFile)
		if err != nil {
			return nil, "", fmt.Errorf("read wit: %w", err)
		}
		witText = string(data)
	}
	return wasm, witText, nil
}

// session is a loaded runtime with one instance.
type session struct {
	rt   *runtime.Runtime
	mod  *runtime.Module
	inst *runtime.Instance
}

func openSession(ctx context.Context, opts options) (*session, error) {
	cfg, err := opts.config()
	if err != nil {
		return nil, err
	}
	wasm, witText, err := opts.guestSource()
	if err != nil {
		return nil, err
	}

	rt, err := runtime.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create runtime: %w", err)
	}
	mod, err := rt.LoadModule(ctx, wasm, witText)
	if err != nil {
		rt.Close(ctx)
		return nil, fmt.Errorf("load module: %w", err)
	}
	inst, err := mod.Instantiate(ctx)
	if err != nil {
		rt.Close(ctx)
		return nil, fmt.Errorf("instantiate: %w", err)
	}
	return &session{rt: rt, mod: mod, inst: inst}, nil
}

func (s *session) Close(ctx context.Context) {
	if err := s.inst.Close(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
	s.rt.Close(ctx)
}

func run(opts options, out *printer) error {
	ctx := context.Background()
	s, err := openSession(ctx, opts)
	if err != nil {
		return err
	}
	defer s.Close(ctx)

	if opts.list || opts.funcName == "" {
		out.heading("Functions")
		for _, sig := range s.mod.Signatures() {
			out.line("  " + sig.String())
		}
		if len(s.mod.Signatures()) == 0 {
			out.line("  (none declared; pass -wit)")
		}
		return nil
	}

	sig, ok := s.mod.Signature(opts.funcName)
	if !ok {
		return fmt.Errorf("function %q is not declared", opts.funcName)
	}
	args, err := parseArgs(sig, opts.args, nil)
	if err != nil {
		return err
	}

	result, err := s.inst.CallHost(ctx, opts.funcName, args...)
	if err != nil {
		return err
	}
	if sig.Result == nil {
		out.line("ok")
	} else {
		out.value(result)
	}
	if err := s.inst.Collect(); err != nil {
		return err
	}
	out.stats(s.inst)
	return nil
}
