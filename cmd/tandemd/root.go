// Command tandemd is the Session Engine's daemon and CLI entrypoint: a
// "serve" subcommand runs the HTTP surface (§6); "lease" subcommands are a
// thin client against a running daemon's global lease slot (§4.6).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags "-X main.Version=...".
var Version = "dev"

var (
	apiAddr string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "tandemd",
	Short: "tandemd — the Tandem Session Engine daemon",
	Long:  "tandemd runs the durable, event-driven Session Engine: a local HTTP daemon that executes agent turns, persists session state, and arbitrates the process-global edit lease.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiAddr, "api", "http://localhost:8080", "base URL of a running tandemd, for client subcommands")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(leaseCmd())
	rootCmd.AddCommand(versionCmd())
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("tandemd %s\n", Version)
		},
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
