package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/Makepad-fr/tada/internal/config"
	"github.com/Makepad-fr/tada/internal/logging"
	"github.com/Makepad-fr/tada/internal/repository"
	"github.com/Makepad-fr/tada/internal/store"
	"github.com/Makepad-fr/tada/internal/ui"

	// Store drivers.
	_ "github.com/Makepad-fr/tada/internal/store/jsonstore"
	_ "github.com/Makepad-fr/tada/internal/store/memstore"
	_ "github.com/Makepad-fr/tada/internal/store/sqlitestore"
)

// RootOptions holds global flags and the configuration they resolve to.
type RootOptions struct {
	ConfigPath string
	Driver     string
	Path       string
	Theme      string
	LogLevel   string
	NoColor    bool
	Group      bool

	cfg    *config.Config
	logger *log.Logger
}

// NewRootCommand creates the root command for the todo CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "todo",
		Short: "todo - a tiny CLI",
		Long:  "A local to-do list: add, list, search, toggle and remove items.",
		Example: `  todo add "Buy milk"
  todo ls
  todo ls --filter milk
  todo done 2
  todo rm 3`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.resolve(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = cmd.Help()
			return &usageError{}
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{msg: err.Error()}
	})

	f := cmd.PersistentFlags()
	f.StringVar(&opts.ConfigPath, "config", "", "config file (default: user and project tada.toml)")
	f.StringVar(&opts.Driver, "store", "", "store driver ("+strings.Join(store.Drivers(), "|")+")")
	f.StringVar(&opts.Path, "path", "", "store file path")
	f.StringVar(&opts.Theme, "theme", "", "color theme ("+strings.Join(config.Themes, "|")+")")
	f.StringVar(&opts.LogLevel, "log-level", "", "diagnostic log level (debug|info|warn|error)")
	f.BoolVar(&opts.NoColor, "no-color", false, "disable colored output")
	f.BoolVar(&opts.Group, "group", false, "group output by pending/done")

	cmd.AddCommand(NewAddCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewDoneCommand(opts))
	cmd.AddCommand(NewRemoveCommand(opts))
	cmd.AddCommand(NewExportCommand(opts))
	cmd.AddCommand(NewTUICommand(opts))

	return cmd
}

// resolve loads configuration, applies flags on top and sets up output.
func (o *RootOptions) resolve(cmd *cobra.Command) error {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("store") {
		cfg.Store.Driver = o.Driver
	}
	if flags.Changed("path") {
		cfg.Store.Path = o.Path
	}
	if flags.Changed("theme") {
		cfg.UI.Theme = o.Theme
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = o.LogLevel
	}
	if flags.Changed("no-color") {
		cfg.UI.NoColor = o.NoColor
	}
	if flags.Changed("group") {
		cfg.UI.Group = o.Group
	}
	if err := cfg.Validate(); err != nil {
		return &usageError{msg: err.Error()}
	}

	ui.SetColorForcing(false, cfg.UI.NoColor)
	ui.SetTheme(cfg.UI.Theme)
	o.cfg = cfg
	o.logger = logging.New(cmd.ErrOrStderr(), cfg.LogOptions())
	return nil
}

// open connects the configured store. Callers close the repository.
func (o *RootOptions) open() (*repository.Repository, error) {
	backend, err := store.Open(store.Options{Driver: o.cfg.Store.Driver, Path: o.cfg.Store.Path})
	if err != nil {
		return nil, err
	}
	o.logger.Debug("store opened", "driver", o.cfg.Store.Driver, "path", o.cfg.Store.Path)
	return repository.New(backend, repository.WithLogger(o.logger)), nil
}

// withRepo runs fn against an open repository and closes it afterwards.
func (o *RootOptions) withRepo(fn func(*repository.Repository) error) (err error) {
	repo, err := o.open()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := repo.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close store: %w", cerr)
		}
	}()
	return fn(repo)
}

// usageError is a bad invocation: exit code 2. An empty msg means help
// has already been printed.
type usageError struct {
	msg  string
	hint string
}

func (e *usageError) Error() string { return e.msg }

// usageArgs turns a cobra argument check failure into a usage error.
func usageArgs(check cobra.PositionalArgs, usage string) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := check(cmd, args); err != nil {
			return &usageError{msg: "usage: " + usage}
		}
		return nil
	}
}

// Execute runs the CLI and returns an exit code (0 ok, 1 error, 2 usage).
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := NewRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}

	var ue *usageError
	switch {
	case errors.As(err, &ue):
		if ue.msg != "" {
			ui.Fail(stderr, ue.msg)
		}
		if ue.hint != "" {
			ui.Hint(stderr, ue.hint)
		}
		return 2
	case strings.HasPrefix(err.Error(), "unknown command"):
		ui.Fail(stderr, err.Error())
		return 2
	default:
		ui.Fail(stderr, err.Error())
		return 1
	}
}
