package admin

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/cloo-solutions/learnings/internal/domain"
	"github.com/cloo-solutions/learnings/internal/service"
	"github.com/spf13/cobra"
)

func JobsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Manage batch jobs",
		Long:  "Enqueue, inspect and cancel distillation and embedding batch jobs",
	}

	cmd.AddCommand(jobsEnqueueCmd("distill-all", "Queue distillation of every pending topic of a space",
		func(ctx context.Context, a *app, input service.EnqueueJobInput) (*domain.BatchJob, error) {
			return a.batchJobs.EnqueueDistillAll(ctx, input)
		}))
	cmd.AddCommand(jobsEnqueueCmd("backfill", "Queue embedding of every latest version without a vector",
		func(ctx context.Context, a *app, input service.EnqueueJobInput) (*domain.BatchJob, error) {
			return a.batchJobs.EnqueueEmbeddingBackfill(ctx, input)
		}))
	cmd.AddCommand(JobsListCmd())
	cmd.AddCommand(jobsSingleCmd("get", "Show one batch job",
		func(ctx context.Context, a *app, orgID, jobID string) (*domain.BatchJob, error) {
			return a.batchJobs.Get(ctx, orgID, jobID)
		}))
	cmd.AddCommand(jobsSingleCmd("cancel", "Cancel a queued or running batch job",
		func(ctx context.Context, a *app, orgID, jobID string) (*domain.BatchJob, error) {
			return a.batchJobs.Cancel(ctx, orgID, jobID)
		}))

	return cmd
}

type enqueueFunc func(ctx context.Context, a *app, input service.EnqueueJobInput) (*domain.BatchJob, error)

func jobsEnqueueCmd(use, short string, enqueue enqueueFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use + " <orgID> <spaceID>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			a, err := loadApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := checkSpace(ctx, a, args[0], args[1]); err != nil {
				return err
			}

			requestedBy, _ := cmd.Flags().GetString("user")
			job, err := enqueue(ctx, a, service.EnqueueJobInput{
				OrganizationID: args[0],
				SpaceID:        args[1],
				RequestedBy:    requestedBy,
			})
			if err != nil {
				return fmt.Errorf("failed to enqueue job: %w", err)
			}

			return printResult(cmd, jobOutput(job), func(w io.Writer) {
				fmt.Fprintf(w, "Job queued: %s (%s, %d items)\n", job.ID, job.Type, len(job.Items))
			})
		},
	}

	cmd.Flags().String("user", "cli", "User recorded as the requester")
	addOutputFlag(cmd)

	return cmd
}

func JobsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list <orgID>",
		Short: "List recent batch jobs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			a, err := loadApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			spaceID, _ := cmd.Flags().GetString("space")
			limit, _ := cmd.Flags().GetInt("limit")
			jobs, err := a.batchJobs.List(ctx, args[0], spaceID, limit)
			if err != nil {
				return fmt.Errorf("failed to list jobs: %w", err)
			}

			data := make([]map[string]interface{}, len(jobs))
			for i, j := range jobs {
				data[i] = jobOutput(j)
			}
			return printResult(cmd, data, func(w io.Writer) {
				if len(jobs) == 0 {
					fmt.Fprintln(w, "No jobs found")
					return
				}
				for _, j := range jobs {
					printJobLine(w, j)
				}
			})
		},
	}

	cmd.Flags().String("space", "", "Only jobs of this space")
	cmd.Flags().IntP("limit", "n", service.DefaultJobListLimit, "Maximum number of results")
	addOutputFlag(cmd)

	return cmd
}

type singleJobFunc func(ctx context.Context, a *app, orgID, jobID string) (*domain.BatchJob, error)

func jobsSingleCmd(use, short string, fn singleJobFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use + " <orgID> <jobID>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			a, err := loadApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			job, err := fn(ctx, a, args[0], args[1])
			if err != nil {
				return err
			}
			return printResult(cmd, jobOutput(job), func(w io.Writer) {
				printJobLine(w, job)
			})
		},
	}

	addOutputFlag(cmd)

	return cmd
}

func printJobLine(w io.Writer, j *domain.BatchJob) {
	fmt.Fprintf(w, "  %s: %s %s %d/%d processed, %d failed (created: %s)",
		j.ID, j.Type, j.Status, j.ProcessedCount, len(j.Items), j.FailedCount, j.CreatedAt.Format("2006-01-02 15:04:05"))
	if j.CancelRequested && !j.IsTerminal() {
		fmt.Fprint(w, " [cancel requested]")
	}
	if j.Error != "" {
		fmt.Fprintf(w, " error: %s", j.Error)
	}
	fmt.Fprintln(w)
}

func jobOutput(j *domain.BatchJob) map[string]interface{} {
	return map[string]interface{}{
		"id":               j.ID,
		"organization_id":  j.OrganizationID,
		"space_id":         j.SpaceID,
		"type":             j.Type,
		"status":           j.Status,
		"total_items":      len(j.Items),
		"processed_count":  j.ProcessedCount,
		"failed_count":     j.FailedCount,
		"cancel_requested": j.CancelRequested,
		"error":            j.Error,
		"created_at":       j.CreatedAt,
		"started_at":       optionalTime(j.StartedAt),
		"finished_at":      optionalTime(j.FinishedAt),
	}
}

func optionalTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}

// checkSpace verifies that the space exists in the organization.
func checkSpace(ctx context.Context, a *app, orgID, spaceID string) error {
	space, err := a.spaces.GetSpaceByID(ctx, spaceID)
	if err != nil {
		return err
	}
	if space.OrganizationID != orgID {
		return domain.NewNotFoundError(domain.ErrSpaceNotFound, spaceID)
	}
	return nil
}
