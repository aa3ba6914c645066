package client

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

type codeExample struct {
	Code        string `json:"code"`
	Language    string `json:"language,omitempty"`
	Description string `json:"description,omitempty"`
}

type captureRequest struct {
	Title          string        `json:"title"`
	Content        string        `json:"content"`
	CodeExamples   []codeExample `json:"codeExamples,omitempty"`
	CaptureContext string        `json:"captureContext,omitempty"`
}

// Topic mirrors the topic payload of the API.
type Topic struct {
	ID             string        `json:"id"`
	Title          string        `json:"title"`
	Content        string        `json:"content"`
	CodeExamples   []codeExample `json:"codeExamples"`
	CaptureContext string        `json:"captureContext"`
	CreatedBy      string        `json:"createdBy"`
	Status         string        `json:"status"`
	CreatedAt      string        `json:"createdAt"`
}

func TopicCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "topic",
		Short: "Capture and manage topics",
	}

	cmd.AddCommand(topicCaptureCmd())
	cmd.AddCommand(topicListCmd())
	cmd.AddCommand(topicGetCmd())
	cmd.AddCommand(topicDeleteCmd())
	cmd.AddCommand(topicDistillCmd())
	cmd.AddCommand(topicStatsCmd())

	return cmd
}

func topicCaptureCmd() *cobra.Command {
	var (
		content        string
		contentFile    string
		exampleFiles   []string
		captureContext string
	)

	cmd := &cobra.Command{
		Use:   "capture <title>",
		Short: "Capture a new topic",
		Long: `Captures a learning as a pending topic.

The content is read from --content, --file or stdin ("-"). Every --example
file becomes a code example whose language is taken from the extension.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if content == "" && contentFile != "" {
				data, err := readInput(contentFile)
				if err != nil {
					return err
				}
				content = string(data)
			}
			if strings.TrimSpace(content) == "" {
				return fmt.Errorf("content is required (use --content or --file)")
			}

			examples := make([]codeExample, 0, len(exampleFiles))
			for _, path := range exampleFiles {
				data, err := readInput(path)
				if err != nil {
					return err
				}
				examples = append(examples, codeExample{Code: string(data), Language: languageFromPath(path)})
			}

			api, scope, err := setup(cmd)
			if err != nil {
				return err
			}

			var topic Topic
			if err := api.PostInto(scope.Path("/topics"), captureRequest{
				Title:          args[0],
				Content:        content,
				CodeExamples:   examples,
				CaptureContext: captureContext,
			}, &topic); err != nil {
				return err
			}

			if outputJSON, _ := cmd.Flags().GetBool("output"); outputJSON {
				return printJSON(cmd, topic)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Captured topic %s (%s)\n", topic.ID, topic.Status)
			return nil
		},
	}

	cmd.Flags().StringVarP(&content, "content", "c", "", "Topic content")
	cmd.Flags().StringVarP(&contentFile, "file", "f", "", "Read content from file (\"-\" for stdin)")
	cmd.Flags().StringArrayVarP(&exampleFiles, "example", "e", nil, "Attach a file as code example (repeatable)")
	cmd.Flags().StringVar(&captureContext, "context", "CLI", "Capture context (MCP, CLI, MANUAL, IMPORT)")

	return cmd
}

func topicListCmd() *cobra.Command {
	var pending bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List topics of the space",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			api, scope, err := setup(cmd)
			if err != nil {
				return err
			}

			query := url.Values{}
			if pending {
				query.Set("pending", "true")
			}
			var topics []Topic
			if err := api.GetInto(scope.Path("/topics"), query, &topics); err != nil {
				return err
			}

			if outputJSON, _ := cmd.Flags().GetBool("output"); outputJSON {
				return printJSON(cmd, topics)
			}
			w := cmd.OutOrStdout()
			if len(topics) == 0 {
				fmt.Fprintln(w, "No topics found")
				return nil
			}
			for _, t := range topics {
				fmt.Fprintf(w, "%s  %-9s  %s\n", t.ID, t.Status, t.Title)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&pending, "pending", false, "Only topics awaiting distillation")

	return cmd
}

func topicGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <topicID>",
		Short: "Show a topic",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, scope, err := setup(cmd)
			if err != nil {
				return err
			}

			var topic Topic
			if err := api.GetInto(scope.Path("/topics/"+url.PathEscape(args[0])), nil, &topic); err != nil {
				return err
			}

			if outputJSON, _ := cmd.Flags().GetBool("output"); outputJSON {
				return printJSON(cmd, topic)
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%s (%s, captured via %s by %s)\n\n%s\n", topic.Title, topic.Status, topic.CaptureContext, topic.CreatedBy, topic.Content)
			for _, ex := range topic.CodeExamples {
				fmt.Fprintf(w, "\n```%s\n%s\n```\n", ex.Language, strings.TrimRight(ex.Code, "\n"))
			}
			return nil
		},
	}
}

func topicDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <topicID>",
		Short: "Delete a topic",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, scope, err := setup(cmd)
			if err != nil {
				return err
			}
			if _, err := api.Delete(scope.Path("/topics/" + url.PathEscape(args[0]))); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted topic %s\n", args[0])
			return nil
		},
	}
}

func topicDistillCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "distill [topicID]",
		Short: "Distill a topic, or queue every pending topic with --all",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (len(args) == 1) {
				return fmt.Errorf("pass either a topic ID or --all")
			}

			api, scope, err := setup(cmd)
			if err != nil {
				return err
			}
			outputJSON, _ := cmd.Flags().GetBool("output")
			w := cmd.OutOrStdout()

			if all {
				var job Job
				if err := api.PostInto(scope.Path("/distill-all"), nil, &job); err != nil {
					return err
				}
				if outputJSON {
					return printJSON(cmd, job)
				}
				fmt.Fprintf(w, "Queued job %s for %d topic(s)\n", job.ID, job.TotalItems)
				return nil
			}

			var result struct {
				TopicID string  `json:"topicId"`
				Patches []Patch `json:"patches"`
			}
			if err := api.PostInto(scope.Path("/topics/"+url.PathEscape(args[0])+"/distill"), nil, &result); err != nil {
				return err
			}
			if outputJSON {
				return printJSON(cmd, result)
			}
			if len(result.Patches) == 0 {
				fmt.Fprintln(w, "No changes proposed")
				return nil
			}
			for _, p := range result.Patches {
				printPatchLine(cmd, p)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Queue every pending topic of the space")

	return cmd
}

func topicStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Count topics by status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			api, scope, err := setup(cmd)
			if err != nil {
				return err
			}

			var stats map[string]int
			if err := api.GetInto(scope.Path("/topics/stats"), nil, &stats); err != nil {
				return err
			}

			if outputJSON, _ := cmd.Flags().GetBool("output"); outputJSON {
				return printJSON(cmd, stats)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "total: %d  pending: %d  distilled: %d\n", stats["total"], stats["pending"], stats["distilled"])
			return nil
		},
	}
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		data, err := readAllStdin()
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

var extensionLanguages = map[string]string{
	".go":   "go",
	".ts":   "typescript",
	".tsx":  "typescript",
	".js":   "javascript",
	".jsx":  "javascript",
	".py":   "python",
	".rb":   "ruby",
	".java": "java",
	".kt":   "kotlin",
	".rs":   "rust",
	".sql":  "sql",
	".sh":   "bash",
	".yaml": "yaml",
	".yml":  "yaml",
	".json": "json",
}

func languageFromPath(path string) string {
	return extensionLanguages[strings.ToLower(filepath.Ext(path))]
}

var readAllStdin = func() ([]byte, error) {
	return io.ReadAll(os.Stdin)
}
