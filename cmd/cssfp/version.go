package main

import (
	"encoding/json"
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// Set with -ldflags "-X main.version=... -X main.commit=... -X main.date=...".
var (
	version = ""
	commit  = ""
	date    = ""
)

const (
	develVersion = "(devel)"
	unknownValue = "unknown"
	shortHashLen = 7
)

// buildInfo describes the running binary.
type buildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"goVersion"`
}

// currentBuildInfo prefers ldflags values and falls back to the module and
// VCS data embedded by the go command.
func currentBuildInfo() buildInfo {
	info := buildInfo{
		Version:   version,
		Commit:    commit,
		Date:      date,
		GoVersion: runtime.Version(),
	}

	bi, ok := debug.ReadBuildInfo()
	if info.Version == "" {
		info.Version = develVersion
		if ok && bi.Main.Version != "" {
			info.Version = bi.Main.Version
		}
	}
	if info.Commit == "" {
		info.Commit = shortHash(settingOf(bi, ok, "vcs.revision"))
	}
	if info.Date == "" {
		info.Date = settingOf(bi, ok, "vcs.time")
	}
	return info
}

func settingOf(bi *debug.BuildInfo, ok bool, key string) string {
	if !ok {
		return unknownValue
	}
	for _, s := range bi.Settings {
		if s.Key == key {
			return s.Value
		}
	}
	return unknownValue
}

func shortHash(rev string) string {
	if len(rev) > shortHashLen && rev != unknownValue {
		return rev[:shortHashLen]
	}
	return rev
}

// getVersion returns the version reported by --version and JSON reports.
func getVersion() string {
	return currentBuildInfo().Version
}

// NewVersionCmd creates the version command.
func NewVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  `Print the version, commit hash, build date and Go version of cssfp.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := currentBuildInfo()
			out := cmd.OutOrStdout()

			asJSON, err := cmd.Flags().GetBool("json")
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(info)
			}

			fmt.Fprintf(out, "cssfp version %s\n", info.Version)
			fmt.Fprintf(out, "  commit: %s\n", info.Commit)
			fmt.Fprintf(out, "  built:  %s\n", info.Date)
			fmt.Fprintf(out, "  go:     %s\n", info.GoVersion)
			return nil
		},
	}
	cmd.Flags().BoolP("json", "j", false, "Print version information as JSON")
	return cmd
}
