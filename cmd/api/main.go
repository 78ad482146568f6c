package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"smartTodo/internal/app"
	"smartTodo/internal/config"
	"smartTodo/internal/logger"
	"smartTodo/internal/parser"
	"smartTodo/internal/repository/task/postgres"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "smart-todo",
		Short:         "Natural-language to-do API",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), configPath)
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.yml")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Start the HTTP server",
			RunE: func(cmd *cobra.Command, args []string) error {
				return serve(cmd.Context(), configPath)
			},
		},
		newMigrateCmd(&configPath),
		newParseCmd(&configPath),
	)
	return root
}

func serve(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(contextOrBackground(ctx), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application := app.New(cfg)
	if err := application.Init(ctx); err != nil {
		application.Close()
		return err
	}
	return application.Run(ctx)
}

func newMigrateCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the PostgreSQL schema",
	}

	run := func(down bool) func(cmd *cobra.Command, args []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if cfg.Database.URL == "" {
				return errors.New("database.url (DATABASE_URL) is not set")
			}
			if err := logger.Init(cfg.Logging.Development); err != nil {
				return err
			}
			defer logger.Sync()

			ctx := contextOrBackground(cmd.Context())
			storage, err := postgres.New(ctx, cfg.Database.URL, postgres.Options{MaxConns: 2, MinConns: 1})
			if err != nil {
				return err
			}
			defer storage.Close()

			if down {
				return storage.Down(ctx)
			}
			return storage.Migrate(ctx)
		}
	}

	cmd.AddCommand(
		&cobra.Command{Use: "up", Short: "Apply pending migrations", Args: cobra.NoArgs, RunE: run(false)},
		&cobra.Command{Use: "down", Short: "Roll back all migrations", Args: cobra.NoArgs, RunE: run(true)},
	)
	return cmd
}

type parseOutput struct {
	TaskName    string            `json:"task_name"`
	Assignee    *string           `json:"assignee"`
	DueDateTime *string           `json:"due_date_time"`
	Priority    string            `json:"priority"`
	Extraction  parser.Extraction `json:"extraction"`
}

func newParseCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "parse <text>",
		Short: "Parse text into a task without storing it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if err := logger.Init(cfg.Logging.Development); err != nil {
				return err
			}
			defer logger.Sync()

			ctx := contextOrBackground(cmd.Context())
			p := app.NewParser(ctx, cfg)
			if !p.Available() {
				return parser.ErrUnavailable
			}

			result, err := p.Parse(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}

			out := parseOutput{
				TaskName:   result.Name,
				Assignee:   result.Assignee,
				Priority:   string(result.Priority),
				Extraction: result.Extraction,
			}
			if result.DueDateTime != nil {
				due := result.DueDateTime.Format(time.RFC3339Nano)
				out.DueDateTime = &due
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(out); err != nil {
				return fmt.Errorf("writing result: %w", err)
			}
			return nil
		},
	}
}

func contextOrBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
