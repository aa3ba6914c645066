package admin

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/cloo-solutions/learnings/internal/domain"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func SpaceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "space",
		Short: "Manage spaces",
		Long:  "Create and list the spaces of an organization",
	}

	cmd.AddCommand(SpaceCreateCmd())
	cmd.AddCommand(SpaceListCmd())

	return cmd
}

func SpaceCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create <orgID> <name>",
		Short: "Create a new space",
		Long:  "Create a new space in the given organization",
		Args:  cobra.ExactArgs(2),
		RunE:  runSpaceCreate,
	}

	cmd.Flags().String("slug", "", "Space slug (derived from the name when empty)")
	addOutputFlag(cmd)

	return cmd
}

func runSpaceCreate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	slug, _ := cmd.Flags().GetString("slug")
	if slug == "" {
		slug = slugify(args[1])
	}

	space := &domain.Space{
		ID:             uuid.NewString(),
		OrganizationID: args[0],
		Name:           strings.TrimSpace(args[1]),
		Slug:           slug,
		CreatedAt:      time.Now().UTC(),
	}
	if space.Name == "" || space.Slug == "" {
		return fmt.Errorf("space name must contain letters or digits")
	}

	if err := a.spaces.Create(ctx, space); err != nil {
		return fmt.Errorf("failed to create space: %w", err)
	}

	return printResult(cmd, spaceOutput(space), func(w io.Writer) {
		fmt.Fprintf(w, "Space created: %s (%s)\n", space.Name, space.ID)
	})
}

func SpaceListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list <orgID>",
		Short: "List the spaces of an organization",
		Args:  cobra.ExactArgs(1),
		RunE:  runSpaceList,
	}

	addOutputFlag(cmd)

	return cmd
}

func runSpaceList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	spaces, err := a.spaces.ListSpacesByOrganization(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to list spaces: %w", err)
	}

	data := make([]map[string]interface{}, len(spaces))
	for i, s := range spaces {
		data[i] = spaceOutput(s)
	}

	return printResult(cmd, data, func(w io.Writer) {
		if len(spaces) == 0 {
			fmt.Fprintln(w, "No spaces found")
			return
		}
		fmt.Fprintln(w, "Spaces:")
		for _, s := range spaces {
			fmt.Fprintf(w, "  %s: %s [%s] (created: %s)\n", s.ID, s.Name, s.Slug, s.CreatedAt.Format("2006-01-02 15:04:05"))
		}
	})
}

func spaceOutput(s *domain.Space) map[string]interface{} {
	return map[string]interface{}{
		"id":              s.ID,
		"organization_id": s.OrganizationID,
		"name":            s.Name,
		"slug":            s.Slug,
		"created_at":      s.CreatedAt,
	}
}

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(name string) string {
	return strings.Trim(nonSlugChars.ReplaceAllString(strings.ToLower(name), "-"), "-")
}
