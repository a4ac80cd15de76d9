package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"quarklog/internal/config"
	"quarklog/internal/model"
	"quarklog/internal/service"
	"quarklog/internal/tui"
)

type rootOptions struct {
	configFile string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "quarklog",
		Short: "Save short text entries and browse them later",
		Long: `quarklog keeps timestamped text entries in a local SQLite database
(or a JSON-lines file) and lets you browse them.

Run without arguments to start the interactive editor.`,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInteractive(cmd, opts)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.configFile, "config", "", "config file (default: ./quarklog.yaml)")
	pf.String("db", "", "path of the storage file")
	pf.String("backend", "", "storage backend: sqlite or jsonl")
	pf.Bool("read-only", false, "open the storage read-only")
	pf.String("log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(newInitCmd(opts), newAddCmd(opts), newListCmd(opts))
	return root
}

func loadConfig(cmd *cobra.Command, opts *rootOptions) (*config.AppConfig, error) {
	flags := cmd.Flags()
	loadOpts := []config.Option{
		config.WithFlag("store.path", flags.Lookup("db")),
		config.WithFlag("store.backend", flags.Lookup("backend")),
		config.WithFlag("store.read_only", flags.Lookup("read-only")),
		config.WithFlag("log.level", flags.Lookup("log-level")),
	}
	if opts.configFile != "" {
		loadOpts = append(loadOpts, config.WithConfigFile(opts.configFile))
	}
	return config.Load(loadOpts...)
}

// withApp loads configuration, opens and initializes the store, runs fn and releases
// everything afterwards.
func withApp(cmd *cobra.Command, opts *rootOptions, interactive bool, fn func(ctx context.Context, a *app) error) (err error) {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, interactive)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	return fn(ctx, a)
}

func runInteractive(cmd *cobra.Command, opts *rootOptions) error {
	return withApp(cmd, opts, true, func(ctx context.Context, a *app) error {
		p := tea.NewProgram(tui.New(ctx, a.svc), tea.WithAltScreen(), tea.WithContext(ctx))
		final, err := p.Run()
		if err != nil {
			return fmt.Errorf("run interface: %w", err)
		}
		if m, ok := final.(tui.Model); ok && m.Err() != nil {
			return m.Err()
		}
		return nil
	})
}

func newInitCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the storage file and schema if they do not exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, false, func(ctx context.Context, a *app) error {
				fmt.Fprintf(cmd.OutOrStdout(), "storage ready: %s (%s)\n", a.cfg.Store.Path, a.cfg.Store.Backend)
				return nil
			})
		},
	}
}

func newAddCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "add [text...]",
		Short: "Save one entry",
		Long:  "Save the arguments, joined by spaces, as one entry.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, false, func(ctx context.Context, a *app) error {
				id, err := a.svc.Save(ctx, strings.Join(args, " "))
				if err != nil {
					fmt.Fprintln(cmd.ErrOrStderr(), service.FailureMessage(err))
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), service.SavedMessage(id))
				return nil
			})
		},
	}
}

func newListCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print every saved entry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, false, func(ctx context.Context, a *app) error {
				items, err := a.svc.Entries(ctx)
				if err != nil {
					fmt.Fprintln(cmd.ErrOrStderr(), service.FailureMessage(err))
					return err
				}
				return printEntries(cmd.OutOrStdout(), items, asJSON)
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print entries as a JSON array")
	return cmd
}

func printEntries(w io.Writer, items []model.Record, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(items)
	}
	for _, it := range items {
		if _, err := fmt.Fprintf(w, "%d\t%s - %s\n", it.ID, it.CreatedAt.Local().Format(tui.DisplayTimeLayout), it.Text); err != nil {
			return err
		}
	}
	return nil
}
