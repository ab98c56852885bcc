// Package cli implements the cifstore command-line interface.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/arkilian/cifstore/internal/app"
	"github.com/arkilian/cifstore/internal/config"
)

// options holds the global flags.
type options struct {
	configPath string
	dictPath   string
	strict     bool
	verbose    int

	logOutput io.Writer
	app       *app.App
}

// NewRootCommand builds the cifstore command tree.
func NewRootCommand(version string) *cobra.Command {
	opts := &options{logOutput: os.Stderr}

	root := &cobra.Command{
		Use:   "cifstore",
		Short: "Query and edit mmCIF documents",
		Long: `cifstore reads CIF and mmCIF documents from disk or object storage,
validates them against a DDL dictionary and edits them while keeping the
parent/child links of the dictionary intact.

Documents are named by a path on disk or by a key in the configured storage.
Names ending in .gz or .sz are compressed.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch cmd.Name() {
			case "help", "completion":
				return nil
			}
			return opts.setup(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "configuration file (YAML or JSON)")
	flags.StringVar(&opts.dictPath, "dict", "", "dictionary file (DDL, YAML or JSON)")
	flags.BoolVar(&opts.strict, "strict", false, "treat validation problems as errors")
	flags.CountVarP(&opts.verbose, "verbose", "v", "increase verbosity (repeatable)")

	root.AddCommand(
		newValidateCommand(opts),
		newFindCommand(opts),
		newRenameCommand(opts),
		newEraseCommand(opts),
		newOrphansCommand(opts),
		newFmtCommand(opts),
		newDictCommand(opts),
	)
	return root
}

// Execute runs the command line with the process arguments.
func Execute(ctx context.Context, version string) error {
	root := NewRootCommand(version)
	err := root.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintf(root.ErrOrStderr(), "cifstore: %v\n", err)
	}
	return err
}

// setup loads the configuration, applies the flags and creates the App.
func (o *options) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("dict") {
		cfg.Dictionary.Path = o.dictPath
	}
	if flags.Changed("strict") {
		cfg.Strict = o.strict
	}
	cfg.Verbosity += o.verbose

	logger := newLogger(o.logOutput, cfg.Verbosity)
	a, err := app.New(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	o.app = a
	return nil
}

// newLogger returns a tinted logger on w. Verbosity 0 shows warnings, 1
// adds info and 2 or more debug.
func newLogger(w io.Writer, verbosity int) *slog.Logger {
	level := slog.LevelWarn
	switch {
	case verbosity >= 2:
		level = slog.LevelDebug
	case verbosity == 1:
		level = slog.LevelInfo
	}

	noColor := true
	if f, ok := w.(*os.File); ok {
		noColor = !isatty.IsTerminal(f.Fd())
		w = colorable.NewColorable(f)
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05.000",
		NoColor:    noColor,
	}))
}
