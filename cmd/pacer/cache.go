package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var errNoPersistentCache = errors.New("no persistent reply cache configured (set cache.path or CACHE_PATH)")

func newCacheCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the language-model reply cache",
		Long: `Manage the language-model reply cache.

The in-memory cache lives only as long as one process; these commands act on
the persistent SQLite tier configured with cache.path. To clear a running
server's memory use DELETE /api/v1/cache.`,
	}
	cmd.AddCommand(newCacheClearCmd(flags), newCachePurgeCmd(flags))
	return cmd
}

func newCacheClearCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached reply",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, flags, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			if a.store == nil {
				return errNoPersistentCache
			}
			removed, err := a.store.Clear(ctx)
			if err != nil {
				return fmt.Errorf("failed to clear reply cache: %w", err)
			}
			return printRemoved(cmd, flags, removed, "cached replies removed")
		},
	}
}

func newCachePurgeCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Remove cached replies older than cache.ttl",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, flags, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			if a.store == nil {
				return errNoPersistentCache
			}
			removed, err := a.store.PurgeExpired(ctx)
			if err != nil {
				return fmt.Errorf("failed to purge reply cache: %w", err)
			}
			return printRemoved(cmd, flags, removed, "expired replies removed")
		},
	}
}

func printRemoved(cmd *cobra.Command, flags *globalFlags, removed int, what string) error {
	if flags.jsonOutput {
		return writeJSON(cmd.OutOrStdout(), struct {
			Removed int `json:"removed"`
		}{removed})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d %s\n", removed, what)
	return nil
}
