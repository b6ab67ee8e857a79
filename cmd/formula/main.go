// Command formula evaluates spreadsheet formulas from scripts or an
// interactive prompt.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/vogtb/go-spreadsheet/packages/formula"
	"github.com/vogtb/go-spreadsheet/packages/formula/internal/config"
	"github.com/vogtb/go-spreadsheet/packages/formula/internal/logging"
	"github.com/vogtb/go-spreadsheet/packages/formula/internal/script"
	"github.com/vogtb/go-spreadsheet/packages/formula/internal/store"
)

const usage = `usage: formula [flags]

Without -script or -e an interactive prompt is started.

flags:
`

// workbook is the sheet surface the command needs beyond formula.Sheet
type workbook interface {
	formula.Sheet
	formula.FormulaLister
	Cells() iter.Seq2[formula.Address, formula.Cell]
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr, os.Getenv))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer, getenv func(string) string) int {
	fs := flag.NewFlagSet("formula", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}
	configPath := fs.String("config", "", "path to a YAML config file")
	dbPath := fs.String("db", "", "SQLite database to keep the sheet in")
	sheetName := fs.String("sheet", "", "sheet name inside the database")
	scriptPath := fs.String("script", "", "cell assignment script to load")
	watch := fs.Bool("watch", false, "reload -script whenever it changes")
	force := fs.Bool("force", false, "re-evaluate every formula on each pass")
	async := fs.Bool("async", false, "allow async functions during passes")
	locale := fs.String("locale", "", "locale for TEXT, UPPER, LOWER and DATEVALUE")
	expr := fs.String("e", "", "evaluate a formula against the sheet and print it")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	cfg, err := config.Load(*configPath, getenv)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	// flags win over the config file when given
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "db":
			cfg.Store.SQLite = *dbPath
		case "sheet":
			cfg.Store.Sheet = *sheetName
		case "force":
			cfg.Engine.Force = *force
		case "async":
			cfg.Engine.Async = *async
		case "locale":
			cfg.Engine.Locale = *locale
		}
	})
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	if *watch && *scriptPath == "" {
		fmt.Fprintln(stderr, "-watch requires -script")
		return 2
	}

	logger := logging.New(cfg.Logging, stderr)
	registry := formula.NewDefaultRegistry(formula.WithLocale(cfg.Locale()))
	engine := formula.NewEngine(formula.WithRegistry(registry), formula.WithLogger(logger))

	sheet, closeSheet, err := openSheet(ctx, cfg)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	defer closeSheet()

	sh := &shell{
		ctx:    ctx,
		engine: engine,
		sheet:  sheet,
		opts:   formula.Options{Force: cfg.Engine.Force, Async: cfg.Engine.Async},
		out:    stdout,
	}

	if *scriptPath != "" {
		if err := loadScript(sh, *scriptPath); err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
	}

	switch {
	case *expr != "":
		v, err := engine.Evaluate(ctx, sheet, *expr)
		if err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
		fmt.Fprintln(stdout, v)
	case *watch:
		return watchScript(ctx, sh, *scriptPath, cfg.Watch, logger)
	case *scriptPath != "":
		sh.printCells()
	default:
		startREPL(sh)
	}
	return 0
}

func openSheet(ctx context.Context, cfg *config.Config) (workbook, func(), error) {
	if cfg.Store.SQLite == "" {
		return formula.NewMemorySheet(), func() {}, nil
	}
	s, err := store.Open(ctx, cfg.Store.SQLite, cfg.Store.Sheet)
	if err != nil {
		return nil, nil, err
	}
	return s, func() { s.Close() }, nil
}

func loadScript(sh *shell, path string) error {
	as, err := script.Load(path)
	if err != nil {
		return err
	}
	if err := script.Apply(sh.sheet, as); err != nil {
		return err
	}
	return sh.recalculate(nil, sh.opts)
}

func watchScript(ctx context.Context, sh *shell, path string, cfg config.WatchConfig, logger *slog.Logger) int {
	w, err := script.NewWatcher(path, cfg.Debounce)
	if err != nil {
		fmt.Fprintln(sh.out, err)
		return 1
	}
	sh.printCells()
	logger.Info("watching script", "path", path)

	w.Run(ctx, func() {
		logger.Info("script changed", "path", path)
		if err := loadScript(sh, path); err != nil {
			logger.Error("reload failed", "path", path, "error", err)
			return
		}
		sh.printCells()
	}, func(err error) {
		logger.Error("watcher error", "error", err)
	})
	return 0
}
