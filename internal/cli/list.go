package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Makepad-fr/tada/internal/model"
	"github.com/Makepad-fr/tada/internal/repository"
	"github.com/Makepad-fr/tada/internal/ui"
)

type listOptions struct {
	filter      string
	interactive bool
}

// NewListCommand creates `todo ls`.
func NewListCommand(opts *RootOptions) *cobra.Command {
	lo := &listOptions{}
	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List items, newest first",
		Args:  usageArgs(cobra.NoArgs, "todo ls [--filter text] [--group] [-i]"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withRepo(func(repo *repository.Repository) error {
				if lo.interactive {
					return ui.Run(cmd.Context(), repo, ui.Options{Filter: lo.filter})
				}
				items, err := repo.Fetch(cmd.Context(), lo.filter)
				if err != nil {
					return fmt.Errorf("load: %w", err)
				}
				renderPanel(cmd.OutOrStdout(), items, lo.filter, opts.cfg.UI.Group)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&lo.filter, "filter", "f", "", "only items whose title contains this text")
	cmd.Flags().BoolVarP(&lo.interactive, "interactive", "i", false, "open the interactive list")
	return cmd
}

// NewTUICommand creates `todo tui`, a shortcut for `todo ls -i`.
func NewTUICommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Open the interactive list",
		Args:  usageArgs(cobra.NoArgs, "todo tui"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withRepo(func(repo *repository.Repository) error {
				return ui.Run(cmd.Context(), repo, ui.Options{})
			})
		},
	}
}

func renderPanel(w io.Writer, items []model.Item, filter string, group bool) {
	t := ui.Current()
	d, p := model.Stats(items)

	var lines []string
	lines = append(lines, ui.Header(items))
	lines = append(lines, ui.C(t.Muted, ui.ProgressBar(d, d+p, 28)))
	if filter != "" {
		lines = append(lines, ui.C(t.Accent, "filter: ")+filter)
	}
	lines = append(lines, "")
	lines = append(lines, ui.ListLines(items, group)...)
	lines = append(lines, "")
	lines = append(lines, ui.C(t.Muted, "Tip: add with `todo add \"Buy milk\"`"))
	ui.Panel(w, lines)
}

type exportOptions struct {
	filter string
	format string
}

// NewExportCommand creates `todo export`.
func NewExportCommand(opts *RootOptions) *cobra.Command {
	eo := &exportOptions{}
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write items to stdout as JSON or YAML",
		Args:  usageArgs(cobra.NoArgs, "todo export [--format json|yaml] [--filter text]"),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if eo.format != "json" && eo.format != "yaml" {
				return &usageError{msg: fmt.Sprintf("invalid format %q: must be json or yaml", eo.format)}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withRepo(func(repo *repository.Repository) error {
				items, err := repo.Fetch(cmd.Context(), eo.filter)
				if err != nil {
					return fmt.Errorf("load: %w", err)
				}
				return writeItems(cmd.OutOrStdout(), items, eo.format)
			})
		},
	}
	cmd.Flags().StringVarP(&eo.filter, "filter", "f", "", "only items whose title contains this text")
	cmd.Flags().StringVar(&eo.format, "format", "json", "output format (json|yaml)")
	return cmd
}

func writeItems(w io.Writer, items []model.Item, format string) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(items); err != nil {
			return fmt.Errorf("yaml marshal: %w", err)
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(items); err != nil {
			return fmt.Errorf("json marshal: %w", err)
		}
		return nil
	}
}
