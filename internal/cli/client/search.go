package client

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// SearchRequest represents the search API request.
type SearchRequest struct {
	Query      string   `json:"query"`
	ResultType string   `json:"resultType,omitempty"`
	Threshold  *float64 `json:"threshold,omitempty"`
	MaxResults int      `json:"maxResults,omitempty"`
}

// SearchHit represents a search result.
type SearchHit struct {
	ArtifactID string  `json:"artifactId"`
	Name       string  `json:"name"`
	Slug       string  `json:"slug"`
	Summary    string  `json:"summary"`
	Version    int     `json:"version"`
	Similarity float64 `json:"similarity"`
}

// SearchResponse represents the search API response.
type SearchResponse struct {
	Standards []SearchHit `json:"standards"`
	Recipes   []SearchHit `json:"recipes"`
}

// SearchCmd creates the search command.
func SearchCmd() *cobra.Command {
	var (
		req       SearchRequest
		threshold float64
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search standards and recipes",
		Long:  "Searches the latest standard and recipe versions of the space by meaning.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, scope, err := setup(cmd)
			if err != nil {
				return err
			}

			req.Query = args[0]
			req.ResultType = strings.ToLower(req.ResultType)
			if cmd.Flags().Changed("threshold") {
				req.Threshold = &threshold
			}

			var resp SearchResponse
			if err := api.PostInto(scope.Path("/search"), req, &resp); err != nil {
				return err
			}

			if outputJSON, _ := cmd.Flags().GetBool("output"); outputJSON {
				return printJSON(cmd, resp)
			}

			w := cmd.OutOrStdout()
			if len(resp.Standards) == 0 && len(resp.Recipes) == 0 {
				fmt.Fprintln(w, "No results found")
				return nil
			}
			printHits(cmd, "Standards", resp.Standards)
			printHits(cmd, "Recipes", resp.Recipes)
			return nil
		},
	}

	cmd.Flags().StringVarP(&req.ResultType, "type", "t", "both", "Result type (standard, recipe, both)")
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "Minimum similarity between 0 and 1 (server default when unset)")
	cmd.Flags().IntVarP(&req.MaxResults, "limit", "n", 0, "Maximum number of results (server default when 0)")

	return cmd
}

func printHits(cmd *cobra.Command, title string, hits []SearchHit) {
	if len(hits) == 0 {
		return
	}
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%s:\n", title)
	for _, h := range hits {
		fmt.Fprintf(w, "  [%.2f] %s v%d (%s)\n", h.Similarity, h.Name, h.Version, h.Slug)
		if h.Summary != "" {
			fmt.Fprintf(w, "         %s\n", h.Summary)
		}
	}
}
