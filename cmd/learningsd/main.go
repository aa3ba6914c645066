package main

import (
	"fmt"
	"os"

	"github.com/cloo-solutions/learnings/internal/cli"
	"github.com/cloo-solutions/learnings/internal/cli/admin"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "learningsd",
		Short: "Learnings daemon and admin CLI",
		Long:  "Learnings daemon for running the API server and batch workers, and for administering spaces, jobs and migrations",
	}

	cli.AddHelpJSONFlag(rootCmd)
	rootCmd.AddCommand(admin.ServeCmd())
	rootCmd.AddCommand(admin.MigrateCmd())
	rootCmd.AddCommand(admin.SpaceCmd())
	rootCmd.AddCommand(admin.JobsCmd())
	rootCmd.AddCommand(admin.DistillCmd())
	rootCmd.AddCommand(admin.ReembedCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
