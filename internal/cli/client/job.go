package client

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"
)

// Job mirrors the batch job payload of the API.
type Job struct {
	ID              string  `json:"id"`
	Type            string  `json:"type"`
	Status          string  `json:"status"`
	TotalItems      int     `json:"totalItems"`
	ProcessedCount  int     `json:"processedCount"`
	FailedCount     int     `json:"failedCount"`
	CancelRequested bool    `json:"cancelRequested"`
	Error           string  `json:"error,omitempty"`
	CreatedAt       string  `json:"createdAt"`
	FinishedAt      *string `json:"finishedAt"`
}

func JobCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "job",
		Short: "Follow batch jobs of the space",
	}

	cmd.AddCommand(jobListCmd())
	cmd.AddCommand(jobSingleCmd("status", "Show a batch job", ""))
	cmd.AddCommand(jobSingleCmd("cancel", "Cancel a batch job", "/cancel"))
	cmd.AddCommand(jobBackfillCmd())

	return cmd
}

func jobListCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent batch jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			api, scope, err := setup(cmd)
			if err != nil {
				return err
			}

			var jobs []Job
			if err := api.GetInto(scope.Path("/jobs"), url.Values{"limit": {strconv.Itoa(limit)}}, &jobs); err != nil {
				return err
			}

			if outputJSON, _ := cmd.Flags().GetBool("output"); outputJSON {
				return printJSON(cmd, jobs)
			}
			if len(jobs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No jobs found")
				return nil
			}
			for _, j := range jobs {
				printJobLine(cmd, j)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of results")

	return cmd
}

func jobSingleCmd(use, short, suffix string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <jobID>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, scope, err := setup(cmd)
			if err != nil {
				return err
			}

			path := scope.Path("/jobs/" + url.PathEscape(args[0]) + suffix)
			var job Job
			if suffix == "" {
				err = api.GetInto(path, nil, &job)
			} else {
				err = api.PostInto(path, nil, &job)
			}
			if err != nil {
				return err
			}

			if outputJSON, _ := cmd.Flags().GetBool("output"); outputJSON {
				return printJSON(cmd, job)
			}
			printJobLine(cmd, job)
			return nil
		},
	}
}

func jobBackfillCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backfill",
		Short: "Queue embedding of versions without a vector",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			api, scope, err := setup(cmd)
			if err != nil {
				return err
			}

			var job Job
			if err := api.PostInto(scope.Path("/embeddings/backfill"), nil, &job); err != nil {
				return err
			}

			if outputJSON, _ := cmd.Flags().GetBool("output"); outputJSON {
				return printJSON(cmd, job)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Queued job %s for %d version(s)\n", job.ID, job.TotalItems)
			return nil
		},
	}
}

func printJobLine(cmd *cobra.Command, j Job) {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%s  %-16s  %-9s  %d/%d done, %d failed", j.ID, j.Type, j.Status, j.ProcessedCount, j.TotalItems, j.FailedCount)
	if j.CancelRequested && j.FinishedAt == nil {
		fmt.Fprint(w, "  (cancelling)")
	}
	if j.Error != "" {
		fmt.Fprintf(w, "  error: %s", j.Error)
	}
	fmt.Fprintln(w)
}
