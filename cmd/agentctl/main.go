package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"agentctl/internal/api"
	"agentctl/internal/config"
	"agentctl/internal/logging"
	"agentctl/internal/metrics"
	"agentctl/internal/state"
	"agentctl/internal/store"

	"github.com/spf13/cobra"
)

var (
	version    = "0.1.0"
	logger     = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	cfg        *config.Config
	configPath string // overridable via --config flag
	logCloser  io.Closer
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if logCloser != nil {
		logCloser.Close()
	}
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	configPath = ""
	root := &cobra.Command{
		Use:           "agentctl",
		Short:         "agentctl: command-line client for the data analysis agent API",
		Long:          "agentctl uploads CSV and PDF files, runs chat, EDA profiling and RAG search against the agent backend, and keeps the session between runs.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if cfg != nil && cfg.Metrics.Enabled {
				return metrics.Default.WriteText(cmd.ErrOrStderr())
			}
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.json (default: ~/.agentctl/config.json)")

	root.AddCommand(initCmd())
	root.AddCommand(chatCmd())
	root.AddCommand(uploadCmd())
	root.AddCommand(edaCmd())
	root.AddCommand(ragCmd())
	root.AddCommand(docsCmd())
	root.AddCommand(resultsCmd())
	root.AddCommand(sessionCmd())
	root.AddCommand(healthCmd())
	root.AddCommand(watchCmd())
	root.AddCommand(configCmd())
	return root
}

// setup loads .env and the config file, then builds the logger.
func setup(cmd *cobra.Command) error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	cfgPath := resolveConfigPath()
	loaded, err := config.LoadOrDefaults(cfgPath)
	if err != nil {
		return err
	}
	cfg = loaded

	l, closer, err := logging.New(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	if logCloser != nil {
		logCloser.Close()
	}
	logger, logCloser = l, closer
	logger.Debug("config loaded", "path", cfgPath, "baseUrl", cfg.API.BaseURL)
	return nil
}

// resolveConfigPath returns the config path from --config flag or default.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}

func newClient() *api.Client {
	timeout := time.Duration(cfg.API.TimeoutSeconds) * time.Second
	if cfg.API.TimeoutSeconds == 0 {
		timeout = -1
	}
	return api.New(api.Config{
		BaseURL:           cfg.API.BaseURL,
		Timeout:           timeout,
		MaxRetries:        cfg.API.MaxRetries,
		CloseOnFirstEvent: cfg.Stream.CloseOnFirstEvent,
		Logger:            logger,
	})
}

// openState restores the session from the journal, or returns an in-memory
// App when sessions are disabled. The returned func closes the journal.
func openState(ctx context.Context) (*state.App, func(), error) {
	if !cfg.Session.Enabled {
		return state.New(nil), func() {}, nil
	}
	st, err := store.NewSQLiteStore(cfg.Session.DBPath, cfg.Session.MaxMessages, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("session store: %w", err)
	}
	app, err := state.Restore(ctx, st)
	if err != nil {
		st.Close()
		return nil, nil, err
	}
	return app, func() { st.Close() }, nil
}

func initCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := config.ExpandPath(resolveConfigPath())
			if _, err := os.Stat(cfgPath); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", cfgPath)
			}
			defaults := config.Defaults()
			if err := config.Save(cfgPath, defaults); err != nil {
				return err
			}
			logger.Info("initialized", "config", cfgPath, "session", config.ExpandPath(defaults.Session.DBPath))
			fmt.Fprintln(cmd.OutOrStdout(), cfgPath)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View and modify configuration",
		Long:  "Get, set, and list configuration values. Changes are saved to the config file.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get [path]",
		Short: "Get a config value (e.g. api.baseUrl)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			val, err := config.GetByPath(config.Sanitize(cfg), args[0])
			if err != nil {
				return err
			}
			data, _ := json.MarshalIndent(val, "", "  ")
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set [path] [value]",
		Short: "Set a config value (e.g. stream.closeOnFirstEvent false)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			fileCfg, err := config.ReadFile(cfgPath)
			if errors.Is(err, fs.ErrNotExist) {
				fileCfg, err = config.Defaults(), nil
			}
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := config.SetByPath(fileCfg, args[0], args[1]); err != nil {
				return fmt.Errorf("set value: %w", err)
			}
			if err := config.Validate(fileCfg); err != nil {
				return err
			}
			if err := config.Save(cfgPath, fileCfg); err != nil {
				return fmt.Errorf("save config: %w", err)
			}
			logger.Info("config updated", "path", args[0], "value", args[1], "file", cfgPath)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all config values",
		RunE: func(cmd *cobra.Command, args []string) error {
			paths := config.ListPaths(config.Sanitize(cfg))
			keys := make([]string, 0, len(paths))
			for k := range paths {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			w := cmd.OutOrStdout()
			for _, k := range keys {
				val, _ := json.Marshal(paths[k])
				fmt.Fprintf(w, "%s = %s\n", k, val)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show config file path",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), resolveConfigPath())
		},
	})

	return cmd
}
