package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/display-support/internal/catalog"
	"github.com/spec-kit/display-support/internal/client"
	"github.com/spec-kit/display-support/internal/config"
	"github.com/spec-kit/display-support/internal/observability"
)

var (
	version = "dev"
	commit  = "none"
)

type rootOptions struct {
	baseURL     string
	token       string
	timeout     time.Duration
	catalogPath string
	logLevel    string

	logger *zap.Logger
}

func (o *rootOptions) client() *client.Client {
	return client.New(o.baseURL, o.token, o.timeout)
}

func (o *rootOptions) catalog() (*catalog.Catalog, error) {
	return catalog.Load(o.catalogPath)
}

func (o *rootOptions) requireToken() error {
	if o.token == "" {
		return fmt.Errorf("a staff token is required: run `supportctl login` and set SUPPORT_API_TOKEN or pass --token")
	}
	return nil
}

func newRootCmd() *cobra.Command {
	cfg := config.LoadClient()
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "supportctl",
		Short: "Display support ticket CLI",
		Long: `supportctl talks to the display support API.

Customers submit tickets through a guided wizard and track them by number.
Staff log in, inspect the board and move tickets between lifecycle stages.`,
		Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := observability.NewCLILogger(opts.logLevel)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			opts.logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.logger != nil {
				_ = opts.logger.Sync()
			}
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.baseURL, "base-url", cfg.BaseURL, "API base URL")
	flags.StringVar(&opts.token, "token", cfg.Token, "staff bearer token")
	flags.DurationVar(&opts.timeout, "timeout", cfg.Timeout(), "per-request timeout")
	flags.StringVar(&opts.catalogPath, "catalog", cfg.CatalogPath, "catalog file (defaults to the built-in catalog)")
	flags.StringVar(&opts.logLevel, "log-level", cfg.LogLevel, "log level for stderr diagnostics")

	cmd.AddCommand(
		newSubmitCmd(opts),
		newTrackCmd(opts),
		newLoginCmd(opts),
		newHashPasswordCmd(),
		newBoardCmd(opts),
		newMoveCmd(opts),
	)
	return cmd
}

func main() {
	cmd := newRootCmd()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "Error:", describeError(err))
		os.Exit(1)
	}
}
