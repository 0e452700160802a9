package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	applog "github.com/nao1215/cssfp/internal/log"
)

// NewRootCmd creates the root command for cssfp.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cssfp",
		Short: "Detect CSS-based browser fingerprinting",
		Long: `cssfp audits the stylesheets of a web page for CSS-only fingerprinting.

It walks every readable rule, finds conditions that depend on the visitor
(media features, @supports tests, local() fonts, element states) and rules
that make network requests (url(), image-set(), @import), and links the two.
A request that only fires under a visitor dependent condition discloses that
trait to the server receiving it.

The beacon server (cssfp serve) records the requests such rules make.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(NewScanCmd())
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// setupLogger installs the redacting logger as the default logger and
// returns it.
func setupLogger(cmd *cobra.Command) *slog.Logger {
	logger := applog.NewSecureLogger(cmd.ErrOrStderr(), getVerboseFlag(cmd))
	slog.SetDefault(logger)
	return logger
}
