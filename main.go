package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	api "github.com/km-arc/coreapi/app"
	"github.com/km-arc/coreapi/framework/app"
	"github.com/km-arc/coreapi/framework/config"
	"github.com/km-arc/coreapi/framework/container"
	"github.com/km-arc/coreapi/framework/database"
)

var (
	cfgFile  string
	envFiles []string
	migrate  bool
)

var rootCmd = &cobra.Command{
	Use:   "coreapi",
	Short: "CoreApi HTTP service",
	Long: `CoreApi serves a JSON API for notes and uploaded files, its static
assets and a swagger description of its endpoints.`,
	SilenceUsage: true,
	RunE:         runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the HTTP server on App.Port (default 8000). It shuts down
cleanly on SIGTERM or SIGINT.`,
	RunE: runServe,
}

var routesCmd = &cobra.Command{
	Use:   "routes",
	Short: "List the registered routes",
	RunE:  runRoutes,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "settings file (JSON, YAML or TOML)")
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "dotenv files loaded before configuration (default .env)")

	for _, cmd := range []*cobra.Command{rootCmd, serveCmd} {
		cmd.Flags().BoolVar(&migrate, "migrate", false, "create the entity table before serving")
	}

	rootCmd.AddCommand(serveCmd, routesCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newApplication() (*app.Application, error) {
	application := app.New(app.Options{
		Config:      config.Options{File: cfgFile, EnvFiles: envFiles},
		Embedded:    api.Public,
		EmbeddedDir: api.PublicDir,
	})
	application.Register(&api.ServiceProvider{})
	if err := application.Boot(); err != nil {
		return nil, fmt.Errorf("starting application: %w", err)
	}
	return application, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := newApplication()
	if err != nil {
		return err
	}
	if migrate {
		if err := migrateDatabase(ctx, application); err != nil {
			return err
		}
	}
	return application.Run(ctx)
}

func migrateDatabase(ctx context.Context, application *app.Application) error {
	pool, err := container.Resolve[*database.Pool](application)
	if err != nil {
		return err
	}
	if err := pool.Migrate(ctx); err != nil {
		return fmt.Errorf("migrating: %w", err)
	}
	slog.Info("database migrated")
	return nil
}

func runRoutes(cmd *cobra.Command, _ []string) error {
	application, err := newApplication()
	if err != nil {
		return err
	}
	defer application.Close()

	out := cmd.OutOrStdout()
	for _, r := range application.Router().Routes() {
		fmt.Fprintf(out, "%-7s %s\n", r.Method, r.Pattern)
	}
	return nil
}
