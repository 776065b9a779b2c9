// Package cli wires the quickscan commands.
package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	envFile string
)

// NewRootCommand creates the root command
func NewRootCommand(version, buildTime string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "quickscan",
		Short: "Medical quick analysis service",
		Long: `quickscan stages medical image and document uploads, runs a simulated
analysis with rotating waiting messages and presents a localized result card.

It serves the flow over HTTP (JSON, msgpack, SSE and websocket) or drives a
single flow in the terminal.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default: quickscan.config.xml next to the binary)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the config")

	rootCmd.AddCommand(newServeCommand(version, buildTime))
	rootCmd.AddCommand(newDemoCommand())
	rootCmd.AddCommand(newVersionCommand(version, buildTime))

	return rootCmd
}

func newVersionCommand(version, buildTime string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			displayVersion := version
			if version == "dev" || version == "" {
				displayVersion = "development"
			}
			displayTime := buildTime
			if buildTime == "unknown" || buildTime == "" {
				displayTime = "local-build"
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "quickscan %s built %s\n", displayVersion, displayTime)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}
