package client

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// Patch mirrors the knowledge patch payload of the API.
type Patch struct {
	ID           string          `json:"id"`
	TopicID      string          `json:"topicId"`
	PatchType    string          `json:"patchType"`
	Changes      json.RawMessage `json:"proposedChanges"`
	DiffOriginal string          `json:"diffOriginal"`
	DiffModified string          `json:"diffModified"`
	Status       string          `json:"status"`
	ReviewedBy   *string         `json:"reviewedBy"`
	ReviewNotes  *string         `json:"reviewNotes"`
	CreatedAt    string          `json:"createdAt"`
}

type patchList struct {
	Items   []Patch `json:"items"`
	Cursor  string  `json:"cursor,omitempty"`
	HasMore bool    `json:"hasMore"`
}

type reviewResult struct {
	Patch      *Patch `json:"patch"`
	Applied    bool   `json:"applied"`
	ApplyError string `json:"applyError,omitempty"`
}

type batchResult struct {
	Results []struct {
		PatchID string `json:"patchId"`
		Success bool   `json:"success"`
		Error   string `json:"error,omitempty"`
	} `json:"results"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

func PatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "patch",
		Short: "Review knowledge patches",
	}

	cmd.AddCommand(patchListCmd())
	cmd.AddCommand(patchShowCmd())
	cmd.AddCommand(patchReviewCmd("accept", "Accept and apply patches"))
	cmd.AddCommand(patchReviewCmd("reject", "Reject patches"))

	return cmd
}

func patchListCmd() *cobra.Command {
	var (
		status string
		cursor string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List patches of the space",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			api, scope, err := setup(cmd)
			if err != nil {
				return err
			}

			query := url.Values{}
			query.Set("limit", strconv.Itoa(limit))
			if status != "" {
				query.Set("status", strings.ToUpper(status))
			}
			if cursor != "" {
				query.Set("cursor", cursor)
			}

			var list patchList
			if err := api.GetInto(scope.Path("/patches"), query, &list); err != nil {
				return err
			}

			if outputJSON, _ := cmd.Flags().GetBool("output"); outputJSON {
				return printJSON(cmd, list)
			}
			if len(list.Items) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No patches found")
				return nil
			}
			for _, p := range list.Items {
				printPatchLine(cmd, p)
			}
			if list.HasMore {
				fmt.Fprintf(cmd.OutOrStdout(), "\nMore results: --cursor %s\n", list.Cursor)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&status, "status", "s", "PENDING_REVIEW", "Filter by status (empty for all)")
	cmd.Flags().StringVar(&cursor, "cursor", "", "Pagination cursor from previous response")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of results")

	return cmd
}

func patchShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <patchID>",
		Short: "Show a patch with its diff",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, scope, err := setup(cmd)
			if err != nil {
				return err
			}

			var p Patch
			if err := api.GetInto(scope.Path("/patches/"+url.PathEscape(args[0])), nil, &p); err != nil {
				return err
			}

			if outputJSON, _ := cmd.Flags().GetBool("output"); outputJSON {
				return printJSON(cmd, p)
			}
			w := cmd.OutOrStdout()
			printPatchLine(cmd, p)
			fmt.Fprintln(w)
			for _, line := range strings.Split(p.DiffOriginal, "\n") {
				if line != "" {
					fmt.Fprintf(w, "- %s\n", line)
				}
			}
			for _, line := range strings.Split(p.DiffModified, "\n") {
				if line != "" {
					fmt.Fprintf(w, "+ %s\n", line)
				}
			}
			if p.ReviewNotes != nil {
				fmt.Fprintf(w, "\nNotes: %s\n", *p.ReviewNotes)
			}
			return nil
		},
	}
}

// patchReviewCmd builds accept and reject. One ID uses the single patch
// endpoint, several IDs the batch endpoint.
func patchReviewCmd(action, short string) *cobra.Command {
	var notes string

	cmd := &cobra.Command{
		Use:   action + " <patchID>...",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, scope, err := setup(cmd)
			if err != nil {
				return err
			}
			outputJSON, _ := cmd.Flags().GetBool("output")
			w := cmd.OutOrStdout()

			if len(args) == 1 {
				body := map[string]string{"reviewNotes": notes}
				path := scope.Path("/patches/" + url.PathEscape(args[0]) + "/" + action)

				if action == "reject" {
					var p Patch
					if err := api.PostInto(path, body, &p); err != nil {
						return err
					}
					if outputJSON {
						return printJSON(cmd, p)
					}
					fmt.Fprintf(w, "Rejected patch %s\n", p.ID)
					return nil
				}

				var result reviewResult
				if err := api.PostInto(path, body, &result); err != nil {
					return err
				}
				if outputJSON {
					return printJSON(cmd, result)
				}
				switch {
				case result.ApplyError != "":
					fmt.Fprintf(w, "Accepted patch %s but applying it failed: %s\n", args[0], result.ApplyError)
				case result.Applied:
					fmt.Fprintf(w, "Accepted and applied patch %s\n", args[0])
				default:
					fmt.Fprintf(w, "Accepted patch %s (nothing to apply)\n", args[0])
				}
				return nil
			}

			var result batchResult
			if err := api.PostInto(scope.Path("/patches/"+action), map[string]interface{}{
				"patchIds":    args,
				"reviewNotes": notes,
			}, &result); err != nil {
				return err
			}
			if outputJSON {
				return printJSON(cmd, result)
			}
			for _, r := range result.Results {
				if r.Success {
					fmt.Fprintf(w, "  %s: ok\n", r.PatchID)
				} else {
					fmt.Fprintf(w, "  %s: %s\n", r.PatchID, r.Error)
				}
			}
			fmt.Fprintf(w, "%d succeeded, %d failed\n", result.Succeeded, result.Failed)
			return nil
		},
	}

	usage := "Review notes"
	if action == "reject" {
		usage = "Review notes (required)"
	}
	cmd.Flags().StringVarP(&notes, "notes", "m", "", usage)

	return cmd
}

func printPatchLine(cmd *cobra.Command, p Patch) {
	fmt.Fprintf(cmd.OutOrStdout(), "%s  %-16s  %-14s  topic %s\n", p.ID, p.PatchType, p.Status, p.TopicID)
}
