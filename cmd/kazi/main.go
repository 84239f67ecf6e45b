// Kazi — AI project management assistant.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "kazi",
	Short: "Kazi — AI assistant for project planning, task allocation, and status review.",
	Long: `Kazi runs a local web service that turns project descriptions into plans,
allocates tasks across a team, and reviews progress reports, with every
step carried out by a specialized AI role. Results can be downloaded as
a PDF report, and token usage is tracked per session.`,
	RunE:          runServe, // Default to serve mode.
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(serveCmd, versionCmd)
	_ = godotenv.Load()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}
