package main

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nao1215/cssfp/internal/config"
)

//go:embed templates/cssfp.yaml
var configTemplate []byte

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a new cssfp configuration file",
		Long: `Initialize creates a new .cssfp configuration file in the current directory,
or the per-user configuration file with --global.

The generated file holds default settings and commented examples of
per-site cookies, headers and stylesheet access rules.

Examples:
  # Create .cssfp in current directory
  cssfp init

  # Create config file at a specific path
  cssfp init -o myconfig.yaml

  # Create the per-user file ($XDG_CONFIG_HOME/cssfp/config.yaml)
  cssfp init --global

  # Force overwrite existing file
  cssfp init -f`,
		Args: cobra.NoArgs,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", config.DefaultConfigFile,
		"Output file path for the configuration")
	cmd.Flags().BoolP("force", "f", false,
		"Overwrite existing configuration file")
	cmd.Flags().BoolP("global", "g", false,
		"Write the per-user file in the XDG config directory")
	cmd.MarkFlagsMutuallyExclusive("output", "global")

	return cmd
}

// runInitCmd executes the init command.
func runInitCmd(cmd *cobra.Command, _ []string) error {
	outputPath, err := initOutputPath(cmd)
	if err != nil {
		return err
	}
	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	if err := writeConfigTemplate(outputPath, force); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created configuration file: %s\n", outputPath)
	fmt.Fprintln(out, "\nEdit this file to configure site-specific settings such as:")
	fmt.Fprintln(out, "  - Authentication cookies and headers")
	fmt.Fprintln(out, "  - Rule caps per stylesheet")
	fmt.Fprintln(out, "  - Cross-origin stylesheet access")
	return nil
}

// initOutputPath returns the file init writes: the XDG config file with
// --global, otherwise --output.
func initOutputPath(cmd *cobra.Command) (string, error) {
	global, err := cmd.Flags().GetBool("global")
	if err != nil {
		return "", err
	}
	if global {
		return config.XDGConfigFile(), nil
	}
	return cmd.Flags().GetString("output")
}

// writeConfigTemplate writes the template to path with owner-only
// permissions, since the file ends up holding cookies and tokens.
func writeConfigTemplate(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("configuration file already exists: %s (use -f to overwrite)", path)
		}
	}

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, configTemplate, 0o600); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}
	return nil
}
