package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/TimelordUK/mtrace/internal/config"
	"github.com/TimelordUK/mtrace/internal/coordinator"
	"github.com/TimelordUK/mtrace/internal/logging"
	"github.com/TimelordUK/mtrace/internal/notify"
	"github.com/TimelordUK/mtrace/internal/parsers"
	"github.com/TimelordUK/mtrace/internal/pipeline"
	"github.com/TimelordUK/mtrace/internal/settings"
	"github.com/TimelordUK/mtrace/internal/trace"
	"github.com/TimelordUK/mtrace/internal/viewer"
)

var (
	cfgFile  string
	logLevel string
	timezone string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "mtrace",
	Short: "Browse recorded system traces on a shared timeline.",
	Long: `mtrace loads trace files, bug reports and archives, lines their entries up
on a common timeline and lets you step through every trace at once.`,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is "+config.GetConfigPath()+")")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "loglevel", "l", "", "Set log level. Available: debug, info, warn, error, fatal")
	rootCmd.PersistentFlags().StringVar(&timezone, "timezone", "", "Display zone for real timestamps, e.g. Europe/London")

	rootCmd.AddCommand(viewCmd, inspectCmd, exportCmd)
}

// env is what every command needs before loading traces
type env struct {
	cfg     *config.Config
	log     *logrus.Logger
	logFile io.Closer
	store   settings.Store
	closer  io.Closer
}

func loadEnv(quiet bool) (*env, error) {
	var (
		cfg *config.Config
		err error
	)
	if cfgFile != "" {
		cfg, err = config.LoadFrom(cfgFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if timezone != "" {
		cfg.Display.Timezone = timezone
	}
	if _, err := cfg.Display.Location(); err != nil {
		return nil, fmt.Errorf("timezone %q: %w", cfg.Display.Timezone, err)
	}

	level := cfg.Logging.Level
	if logLevel != "" {
		level = logLevel
	}
	e := &env{cfg: cfg}
	var out io.Writer = os.Stderr
	switch {
	case cfg.Logging.File != "":
		f, err := os.OpenFile(cfg.Logging.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		e.logFile = f
		out = f
	case quiet:
		// The terminal belongs to the interface
		out = io.Discard
	}
	if e.log, err = logging.NewWithOutput(level, out); err != nil {
		e.Close()
		return nil, err
	}

	if cfg.Settings.Path == "" {
		e.store = settings.NewMemoryStore()
		return e, nil
	}
	path := cfg.Settings.Path
	if !filepath.IsAbs(path) {
		path = filepath.Join(filepath.Dir(config.DefaultSettingsPath()), path)
	}
	db, err := settings.OpenSQLite(path)
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("opening settings: %w", err)
	}
	e.store, e.closer = db, db
	return e, nil
}

// Close releases the settings store and log file
func (e *env) Close() {
	if e.closer != nil {
		e.closer.Close()
	}
	if e.logFile != nil {
		e.logFile.Close()
	}
}

// mediatorOptions assembles the coordinator collaborators from config
func (e *env) mediatorOptions() coordinator.Options {
	loc, _ := e.cfg.Display.Location()
	return coordinator.Options{
		Pipeline: pipeline.Options{
			Factory: parsers.NewRegistry(parsers.Options{
				Patterns: e.cfg.LogLevels.Patterns(),
				Location: loc,
				Logger:   e.log,
			}),
			Logger:          e.log,
			MaxArchiveDepth: e.cfg.Ingest.MaxArchiveDepth,
			Location:        loc,
		},
		Store:  e.store,
		Logger: e.log,
	}
}

// newMediator wires the default viewers to the mediator's own converter
func (e *env) newMediator(opts coordinator.Options) *coordinator.Mediator {
	var med *coordinator.Mediator
	opts.Viewers = viewer.NewFactory(viewer.FactoryOptions{
		Converter: func() *trace.Converter { return med.Session().Pipeline().Converter() },
		Search:    true,
		Logger:    e.log,
	})
	med = coordinator.New(opts)
	return med
}

// warningPrinter writes warnings to stderr
type warningPrinter struct {
	w     io.Writer
	count int
}

func (p *warningPrinter) Notify(ws []notify.Warning) {
	for _, w := range ws {
		p.count++
		fmt.Fprintf(p.w, "warning: %s\n", w.Message())
	}
}
