package cmd

import (
	"fmt"
	"runtime/debug"

	"github.com/spf13/cobra"

	"github.com/spigell/ats-scorer/internal/scoring"
)

// Actual version can be specified in build command.
var version = "unknown"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version and the active rubric",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("%s version: %s, rubric: %s\n", app, resolveVersion(), scoring.RubricVersion)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

// resolveVersion prefers the ldflags value and falls back to module build info.
func resolveVersion() string {
	if version != "unknown" {
		return version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return version
}
