package admin

import (
	"context"
	"fmt"
	"io"

	"github.com/cloo-solutions/learnings/internal/domain"
	"github.com/spf13/cobra"
)

func DistillCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "distill <orgID> <topicID>",
		Short: "Distill one topic now",
		Long:  "Run distillation for a single topic in the foreground and store the resulting patches for review",
		Args:  cobra.ExactArgs(2),
		RunE:  runDistill,
	}

	addOutputFlag(cmd)

	return cmd
}

func runDistill(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.distiller.DistillTopic(ctx, args[0], args[1])
	if err != nil {
		return fmt.Errorf("failed to distill topic: %w", err)
	}

	data := make([]map[string]interface{}, len(result.Patches))
	for i, p := range result.Patches {
		data[i] = patchOutput(p)
	}

	return printResult(cmd, map[string]interface{}{"topic_id": result.TopicID, "patches": data}, func(w io.Writer) {
		if len(result.Patches) == 0 {
			fmt.Fprintf(w, "No changes proposed for topic %s\n", result.TopicID)
			return
		}
		fmt.Fprintf(w, "%d patch(es) pending review for topic %s:\n", len(result.Patches), result.TopicID)
		for _, p := range result.Patches {
			fmt.Fprintf(w, "  %s: %s\n", p.ID, p.PatchType)
		}
	})
}

func patchOutput(p *domain.KnowledgePatch) map[string]interface{} {
	return map[string]interface{}{
		"id":            p.ID,
		"topic_id":      p.TopicID,
		"patch_type":    p.PatchType,
		"status":        p.Status,
		"diff_original": p.DiffOriginal,
		"diff_modified": p.DiffModified,
	}
}

func ReembedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reembed <orgID>",
		Short: "Queue every latest artifact version of an organization for embedding",
		Long:  "Queue embedding jobs for all latest standard and recipe versions. Run after changing the embedding model or dimensions.",
		Args:  cobra.ExactArgs(1),
		RunE:  runReembed,
	}

	addOutputFlag(cmd)

	return cmd
}

func runReembed(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.embeddings.TriggerFullReembedding(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to trigger re-embedding: %w", err)
	}

	return printResult(cmd, result, func(w io.Writer) {
		fmt.Fprintf(w, "Queued %d standard and %d recipe versions (%d total)\n",
			result.StandardVersionsQueued, result.RecipeVersionsQueued, result.TotalQueued)
	})
}
