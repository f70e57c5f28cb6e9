package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Makepad-fr/tada/internal/model"
	"github.com/Makepad-fr/tada/internal/repository"
	"github.com/Makepad-fr/tada/internal/ui"
)

const refHint = "run `todo ls` to see valid indexes"

// NewAddCommand creates `todo add <title...>`.
func NewAddCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "add <title...>",
		Short: "Add a new item (title can be multiple words)",
		Args:  usageArgs(cobra.MinimumNArgs(1), "todo add <title...>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			title := strings.TrimSpace(strings.Join(args, " "))
			if title == "" {
				return &usageError{msg: "add: empty title"}
			}
			return opts.withRepo(func(repo *repository.Repository) error {
				if _, err := repo.Create(cmd.Context(), title); err != nil {
					return fmt.Errorf("add: %w", err)
				}
				ui.OK(cmd.OutOrStdout(), "added")
				return nil
			})
		},
	}
}

type refOptions struct {
	filter string
}

// NewDoneCommand creates `todo done <ref>`.
func NewDoneCommand(opts *RootOptions) *cobra.Command {
	ro := &refOptions{}
	cmd := &cobra.Command{
		Use:   "done <index|id>",
		Short: "Toggle done for an item (1-based index from `todo ls`, or its id)",
		Args:  usageArgs(cobra.ExactArgs(1), "todo done <index|id>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withRepo(func(repo *repository.Repository) error {
				it, err := resolveRef(cmd.Context(), repo, args[0], ro.filter)
				if err != nil {
					return err
				}
				updated, err := repo.Toggle(cmd.Context(), it.ID)
				if err != nil {
					return refError("done", err)
				}
				if updated.IsChecked {
					ui.OK(cmd.OutOrStdout(), "done: "+updated.Title)
				} else {
					ui.OK(cmd.OutOrStdout(), "reopened: "+updated.Title)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&ro.filter, "filter", "", "index into the list filtered by this text")
	return cmd
}

// NewRemoveCommand creates `todo rm <ref>`.
func NewRemoveCommand(opts *RootOptions) *cobra.Command {
	ro := &refOptions{}
	cmd := &cobra.Command{
		Use:   "rm <index|id>",
		Short: "Remove an item (1-based index from `todo ls`, or its id)",
		Args:  usageArgs(cobra.ExactArgs(1), "todo rm <index|id>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withRepo(func(repo *repository.Repository) error {
				it, err := resolveRef(cmd.Context(), repo, args[0], ro.filter)
				if err != nil {
					return err
				}
				if err := repo.Delete(cmd.Context(), it.ID); err != nil {
					return refError("rm", err)
				}
				ui.OK(cmd.OutOrStdout(), "removed: "+it.Title)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&ro.filter, "filter", "", "index into the list filtered by this text")
	return cmd
}

// resolveRef maps a 1-based index (into the list as `ls` shows it with the
// same filter) or a full id to an item.
func resolveRef(ctx context.Context, repo *repository.Repository, ref, filter string) (model.Item, error) {
	items, err := repo.Fetch(ctx, filter)
	if err != nil {
		return model.Item{}, err
	}

	if n, err := strconv.Atoi(ref); err == nil {
		if n < 1 || n > len(items) {
			return model.Item{}, &usageError{
				msg:  fmt.Sprintf("index out of range: have %d, got %d", len(items), n),
				hint: refHint,
			}
		}
		return items[n-1], nil
	}

	id, err := uuid.Parse(ref)
	if err != nil {
		return model.Item{}, &usageError{msg: "not an index or id: " + ref, hint: refHint}
	}
	for _, it := range items {
		if it.ID == id {
			return it, nil
		}
	}
	return model.Item{}, &usageError{msg: fmt.Sprintf("no item with id %s", id), hint: refHint}
}

func refError(op string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return &usageError{msg: op + ": " + err.Error(), hint: refHint}
	}
	return fmt.Errorf("%s: %w", op, err)
}
