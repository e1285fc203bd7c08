package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/nikandfor/hacked/hfmt"
	"github.com/pterm/pterm"
	"nikand.dev/go/cli"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/dbdlang/dbd/compiler"
	"github.com/dbdlang/dbd/compiler/config"
	"github.com/dbdlang/dbd/compiler/format"
	"github.com/dbdlang/dbd/compiler/irdoc"
)

const defaultConfig = "dbd.toml"

func main() {
	transpileCmd := &cli.Command{
		Name:        "transpile,t",
		Description: "lower ESTree JSON files to IR",
		Action:      transpileAct,
		Args:        cli.Args{},
		Flags: []*cli.Flag{
			cli.NewFlag("format,f", "", "output format: json or text"),
			cli.NewFlag("out,o", "", "output directory, stdout if empty"),
			cli.NewFlag("jobs,j", 0, "files transpiled in parallel"),
			cli.NewFlag("no-verify", false, "skip IR checks"),
		},
	}

	printCmd := &cli.Command{
		Name:        "print",
		Description: "print IR documents as text",
		Action:      printAct,
		Args:        cli.Args{},
	}

	statsCmd := &cli.Command{
		Name:        "stats",
		Description: "show per function statistics",
		Action:      statsAct,
		Args:        cli.Args{},
	}

	watchCmd := &cli.Command{
		Name:        "watch",
		Description: "transpile files each time they change",
		Action:      watchAct,
		Args:        cli.Args{},
		Flags: []*cli.Flag{
			cli.NewFlag("out,o", "", "output directory, stdout if empty"),
		},
	}

	app := &cli.Command{
		Name:        "dbd",
		Description: "dbd lowers JavaScript syntax trees to a scope-explicit IR",
		Before:      before,
		Flags: []*cli.Flag{
			cli.NewFlag("config,c", defaultConfig, "config file"),
			cli.NewFlag("global,g", "", "comma separated host-defined globals"),
			cli.NewFlag("log", "stderr", "log output file"),
			cli.NewFlag("verbosity,v", "", "logger verbosity topics"),
			cli.FlagfileFlag,
			cli.HelpFlag,
		},
		Commands: []*cli.Command{
			transpileCmd,
			printCmd,
			statsCmd,
			watchCmd,
		},
	}

	cli.RunAndExit(app, os.Args, os.Environ())
}

// logFile is the --log destination if it is not stderr.
var logFile *os.File

func before(c *cli.Command) error {
	w := os.Stderr

	if q := c.String("log"); q != "" && q != "stderr" {
		f, err := os.Create(q)
		if err != nil {
			return errors.Wrap(err, "open log file")
		}

		logFile = f
		w = f
	}

	tlog.DefaultLogger = tlog.New(tlog.NewConsoleWriter(w, tlog.LstdFlags))

	tlog.SetVerbosity(c.String("verbosity"))

	return nil
}

func closeLog() {
	if logFile == nil {
		return
	}

	err := logFile.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "close log file: %v\n", err)
	}

	logFile = nil
}

func setup(c *cli.Command) (context.Context, *config.Config, error) {
	ctx := context.Background()
	ctx = tlog.ContextWithSpan(ctx, tlog.Root())

	name := c.String("config")

	cfg, err := config.Load(name, name == defaultConfig)
	if err != nil {
		return ctx, nil, errors.Wrap(err, "config")
	}

	if g := c.String("global"); g != "" {
		cfg.AddGlobals(strings.Split(g, ",")...)
	}

	if cfg.Verbosity != "" && c.String("verbosity") == "" {
		tlog.SetVerbosity(cfg.Verbosity)
	}

	return ctx, cfg, nil
}

func options(cfg *config.Config) compiler.Options {
	return compiler.Options{
		Globals: cfg.Globals,
		Verify:  cfg.Verify,
	}
}

func transpileAct(c *cli.Command) (err error) {
	defer closeLog()

	ctx, cfg, err := setup(c)
	if err != nil {
		return err
	}

	if q := c.String("format"); q != "" {
		cfg.Output.Format = q
	}

	if q := c.String("out"); q != "" {
		cfg.Output.Dir = q
	}

	if j := c.Int("jobs"); j > 0 {
		cfg.Jobs = j
	}

	if c.Bool("no-verify") {
		cfg.Verify = false
	}

	if err = cfg.Validate(); err != nil {
		return err
	}

	res, err := compiler.TranspileFiles(ctx, c.Args, cfg.Jobs, options(cfg))
	if err != nil {
		return err
	}

	for _, r := range res {
		err = write(ctx, cfg, r)
		if err != nil {
			return errors.Wrap(err, "write %v", r.File)
		}
	}

	return nil
}

func write(ctx context.Context, cfg *config.Config, r *compiler.Result) (err error) {
	var data []byte
	ext := ".ir.json"

	switch cfg.Output.Format {
	case config.FormatText:
		ext = ".ir.txt"

		data, err = format.Format(ctx, nil, r.Functions)
	default:
		data, err = irdoc.Marshal(r.File, r.Functions)
	}
	if err != nil {
		return err
	}

	if cfg.Output.Dir == "" {
		_, err = os.Stdout.Write(data)
		return err
	}

	err = os.MkdirAll(cfg.Output.Dir, 0o755)
	if err != nil {
		return errors.Wrap(err, "create output dir")
	}

	base := strings.TrimSuffix(filepath.Base(r.File), filepath.Ext(r.File))
	name := filepath.Join(cfg.Output.Dir, base+ext)

	tlog.SpanFromContext(ctx).Printw("write output", "name", name, "size", len(data))

	return os.WriteFile(name, data, 0o644)
}

func printAct(c *cli.Command) (err error) {
	defer closeLog()

	ctx := tlog.ContextWithSpan(context.Background(), tlog.Root())

	for _, a := range c.Args {
		data, err := os.ReadFile(a)
		if err != nil {
			return errors.Wrap(err, "read %v", a)
		}

		d, err := irdoc.Load(data)
		if err != nil {
			return errors.Wrap(err, "load %v", a)
		}

		fns, err := d.Decode()
		if err != nil {
			return errors.Wrap(err, "decode %v", a)
		}

		text := hfmt.Appendf(nil, "// %v version %v\n", d.File, d.Version)

		text, err = format.Format(ctx, text, fns)
		if err != nil {
			return errors.Wrap(err, "format %v", a)
		}

		_, err = os.Stdout.Write(text)
		if err != nil {
			return err
		}
	}

	return nil
}

func statsAct(c *cli.Command) (err error) {
	defer closeLog()

	ctx, cfg, err := setup(c)
	if err != nil {
		return err
	}

	res, err := compiler.TranspileFiles(ctx, c.Args, cfg.Jobs, options(cfg))
	if err != nil {
		return err
	}

	data := pterm.TableData{
		{"File", "Function", "Params", "Blocks", "Instructions", "Calls", "Synthetic", "Constants", "Closures"},
	}

	for _, r := range res {
		for _, s := range format.Count(r.Functions) {
			data = append(data, []string{
				r.File,
				s.Name,
				strconv.Itoa(s.Params),
				strconv.Itoa(s.Blocks),
				strconv.Itoa(s.Instructions),
				strconv.Itoa(s.Calls),
				strconv.Itoa(s.Synthetic),
				strconv.Itoa(s.Constants),
				strconv.Itoa(s.Closures),
			})
		}
	}

	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

func watchAct(c *cli.Command) (err error) {
	defer closeLog()

	ctx, cfg, err := setup(c)
	if err != nil {
		return err
	}

	if q := c.String("out"); q != "" {
		cfg.Output.Dir = q
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "new watcher")
	}

	defer func() {
		e := w.Close()
		if err == nil && e != nil {
			err = errors.Wrap(e, "close watcher")
		}
	}()

	for _, a := range c.Args {
		err = w.Add(a)
		if err != nil {
			return errors.Wrap(err, "watch %v", a)
		}

		rebuild(ctx, cfg, a)
	}

	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			rebuild(ctx, cfg, ev.Name)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}

			return errors.Wrap(err, "watcher")
		}
	}
}

func rebuild(ctx context.Context, cfg *config.Config, name string) {
	r, err := compiler.TranspileFile(ctx, name, options(cfg))
	if err == nil {
		err = write(ctx, cfg, r)
	}

	if err != nil {
		pterm.Error.Printfln("%v: %v", name, err)
		return
	}

	pterm.Success.Printfln("%v: %d functions", name, len(r.Functions))
}
