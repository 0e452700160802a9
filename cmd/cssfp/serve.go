package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nao1215/cssfp/internal/beacon"
	"github.com/nao1215/cssfp/internal/config"
	"github.com/nao1215/cssfp/internal/database"
	applog "github.com/nao1215/cssfp/internal/log"
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the beacon server that records fingerprinting requests",
		Long: `Serve starts an HTTP server that logs every request it receives.

Point the url() of a test stylesheet at this server to see which requests a
browser makes, and with which headers. Every hit is logged and, unless
--no-db is given, stored in the database (see "cssfp history --hits").

- any path containing "verify_" answers with a 1x1 PNG
- files under --static are served as is
- everything else gets a JSON 404

Examples:
  # Listen on the default address
  cssfp serve

  # Serve a test page and its stylesheets
  cssfp serve --listen 127.0.0.1:8080 --static ./testsite`,
		Args: cobra.NoArgs,
		RunE: runServeCmd,
	}

	cmd.Flags().StringP("listen", "l", config.DefaultListenAddress,
		"Address to listen on")
	cmd.Flags().StringP("static", "s", "",
		"Directory of static files to serve")
	cmd.Flags().Bool("no-db", false,
		"Do not store hits in the database")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the hit database")

	return cmd
}

// runServeCmd executes the serve command.
func runServeCmd(cmd *cobra.Command, _ []string) error {
	cfg := config.NewConfig()
	cfg.Verbose = getVerboseFlag(cmd)

	var err error
	if cfg.ListenAddress, err = cmd.Flags().GetString("listen"); err != nil {
		return err
	}
	if cfg.StaticDir, err = cmd.Flags().GetString("static"); err != nil {
		return err
	}
	noDB, err := cmd.Flags().GetBool("no-db")
	if err != nil {
		return err
	}
	cfg.SaveToDB = !noDB
	if cfg.DBDir, err = cmd.Flags().GetString("db-dir"); err != nil {
		return err
	}

	if cfg.StaticDir != "" {
		info, err := os.Stat(cfg.StaticDir)
		if err != nil {
			return fmt.Errorf("static directory: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("static directory: %s is not a directory", cfg.StaticDir)
		}
	}

	// Hits are logged at info level, so the server always shows them.
	logger := applog.NewInfoLogger(cmd.ErrOrStderr())
	if cfg.Verbose {
		logger = setupLogger(cmd)
	}

	opts := []beacon.Option{
		beacon.WithLogger(logger),
		beacon.WithStaticDir(cfg.StaticDir),
	}
	if cfg.SaveToDB {
		db, err := database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close() //nolint:errcheck
		opts = append(opts, beacon.WithRecorder(db))
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(cmd.OutOrStdout(), "Beacon server starting on %s (Ctrl+C to stop)\n", cfg.ListenAddress)
	return beacon.NewServer(cfg.ListenAddress, opts...).ListenAndServe(ctx)
}
