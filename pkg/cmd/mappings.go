package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/apoxy-dev/shorty/pkg/log"
	"github.com/apoxy-dev/shorty/pkg/store"
	"github.com/apoxy-dev/shorty/pretty"
)

var (
	outputFormat string
	addKey       string
)

var mappingsCmd = &cobra.Command{
	Use:     "mappings",
	Aliases: []string{"m", "mapping"},
	Short:   "Inspect and create mappings in the configured store",
	Long: `Inspect and create mappings in the configured store.

The commands open the store directly. The embedded badger store can only be
opened by one process, so stop 'shorty serve' first when using it.`,
}

// withStore loads the config, opens the store, runs fn and closes the store.
func withStore(ctx context.Context, fn func(st store.Store) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := store.Open(ctx, cfg.StoreOptions())
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", cfg.Store.Driver, err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Errorf("failed to close store: %v", err)
		}
	}()
	return fn(st)
}

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List all mappings",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		return withStore(cmd.Context(), func(st store.Store) error {
			l, ok := st.(store.Lister)
			if !ok {
				return errors.New("store does not support listing")
			}
			ms, err := l.ListMappings(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list mappings: %w", err)
			}
			return printMappings(cmd.OutOrStdout(), ms)
		})
	},
}

func printMappings(w io.Writer, ms []store.Mapping) error {
	switch outputFormat {
	case "json":
		if ms == nil {
			ms = []store.Mapping{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(ms)
	case "", "table":
		rows := make(pretty.Rows, 0, len(ms))
		for _, m := range ms {
			rows = append(rows, []interface{}{m.Key, m.Value})
		}
		pretty.Table{
			Header: pretty.Header{"KEY", "URL"},
			Rows:   rows,
		}.Print(w)
		return nil
	default:
		return fmt.Errorf("unknown output format %q", outputFormat)
	}
}

var getCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print the URL stored under a key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		return withStore(cmd.Context(), func(st store.Store) error {
			value, err := st.GetURLForKey(cmd.Context(), args[0])
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("no mapping for key %q", args[0])
			} else if err != nil {
				return fmt.Errorf("failed to look up key %q: %w", args[0], err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), value)
			return nil
		})
	},
}

var addCmd = &cobra.Command{
	Use:   "add <url>",
	Short: "Store a URL under a new key",
	Long: `Store a URL under a new key. A random key is generated unless --key is
given. If the URL is already stored its existing key is printed.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return withStore(cmd.Context(), func(st store.Store) error {
			res, err := newShortener(st, cfg).Shorten(cmd.Context(), addKey, args[0])
			if err != nil {
				return err
			}
			if res.Existing {
				fmt.Fprintf(cmd.OutOrStdout(), "%s is already saved as %s\n", res.Value, res.Key)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s saved as %s\n", res.Value, res.Key)
			return nil
		})
	},
}

func init() {
	listCmd.Flags().StringVarP(&outputFormat, "output", "o", "table", "Output format: table or json.")
	addCmd.Flags().StringVarP(&addKey, "key", "k", "", "Key to store the URL under.")

	mappingsCmd.AddCommand(listCmd, getCmd, addCmd)
	rootCmd.AddCommand(mappingsCmd)
}
