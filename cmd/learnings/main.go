package main

import (
	"fmt"
	"os"

	"github.com/cloo-solutions/learnings/internal/cli"
	"github.com/cloo-solutions/learnings/internal/cli/client"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "learnings",
		Short: "Learnings CLI - capture and review team knowledge",
		Long: `Learnings CLI captures topics and reviews the patches distilled from them.

Environment variables:
  LEARNINGS_API_URL    API base URL (default: http://localhost:8080)
  LEARNINGS_USER_ID    User ID sent with every change
  LEARNINGS_ORG_ID     Organization ID
  LEARNINGS_SPACE_ID   Space ID`,
		Version: version,
	}

	rootCmd.PersistentFlags().Bool("output", false, "Output as JSON")
	rootCmd.PersistentFlags().String("api-url", "", "API base URL (overrides env and config)")
	rootCmd.PersistentFlags().String("user", "", "User ID (overrides env and config)")
	rootCmd.PersistentFlags().String("org", "", "Organization ID (overrides env and config)")
	rootCmd.PersistentFlags().String("space", "", "Space ID (overrides env and config)")
	cli.AddHelpJSONFlag(rootCmd)

	rootCmd.AddCommand(client.InitCmd())
	rootCmd.AddCommand(client.TopicCmd())
	rootCmd.AddCommand(client.PatchCmd())
	rootCmd.AddCommand(client.SearchCmd())
	rootCmd.AddCommand(client.JobCmd())

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
