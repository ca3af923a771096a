package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joescharf/issuetracker/internal/client"
	"github.com/joescharf/issuetracker/internal/models"
	"github.com/joescharf/issuetracker/internal/output"
)

var (
	issueTitle    string
	issueText     string
	issueAuthor   string
	issueAssignee string
	issueStatus   string
	issueOpen     bool
	issueClose    bool
	issueFilters  []string
	issueJSON     bool
)

var issueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Manage issues on a running server",
	Long:  "List, add, update and delete issues through the HTTP API of a running server.",
}

var issueListCmd = &cobra.Command{
	Use:     "list <project>",
	Aliases: []string{"ls"},
	Short:   "List issues in a project",
	Long: `List issues in a project. Each --filter key=value keeps only issues
whose field equals value, for example --filter open=false.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueListRun(cmd.Context(), apiClient(), args[0])
	},
}

var issueAddCmd = &cobra.Command{
	Use:   "add <project>",
	Short: "Add an issue to a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueAddRun(cmd.Context(), apiClient(), args[0])
	},
}

var issueUpdateCmd = &cobra.Command{
	Use:   "update <project> <id>",
	Short: "Update fields of an issue",
	Long:  "Update an issue. Only the flags passed are sent; --close and --open set the open flag.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueUpdateRun(cmd.Context(), apiClient(), args[0], args[1], updateFields(cmd))
	},
}

var issueDeleteCmd = &cobra.Command{
	Use:     "delete <project> <id>",
	Aliases: []string{"rm"},
	Short:   "Delete an issue",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueDeleteRun(cmd.Context(), apiClient(), args[0], args[1])
	},
}

var issueProjectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "List projects with issue counts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueProjectsRun(cmd.Context(), apiClient())
	},
}

func init() {
	issueListCmd.Flags().StringArrayVarP(&issueFilters, "filter", "f", nil, "Filter as field=value (repeatable)")
	issueListCmd.Flags().BoolVar(&issueJSON, "json", false, "Print raw JSON")

	issueAddCmd.Flags().StringVar(&issueTitle, "title", "", "Issue title (required)")
	issueAddCmd.Flags().StringVar(&issueText, "text", "", "Issue text (required)")
	issueAddCmd.Flags().StringVar(&issueAuthor, "by", "", "Reporter (required)")
	issueAddCmd.Flags().StringVar(&issueAssignee, "assign", "", "Assignee")
	issueAddCmd.Flags().StringVar(&issueStatus, "status", "", "Status text")
	issueAddCmd.Flags().BoolVar(&issueJSON, "json", false, "Print raw JSON")

	issueUpdateCmd.Flags().StringVar(&issueTitle, "title", "", "New title")
	issueUpdateCmd.Flags().StringVar(&issueText, "text", "", "New text")
	issueUpdateCmd.Flags().StringVar(&issueAuthor, "by", "", "New reporter")
	issueUpdateCmd.Flags().StringVar(&issueAssignee, "assign", "", "New assignee; empty clears it")
	issueUpdateCmd.Flags().StringVar(&issueStatus, "status", "", "New status text; empty clears it")
	issueUpdateCmd.Flags().BoolVar(&issueClose, "close", false, "Close the issue")
	issueUpdateCmd.Flags().BoolVar(&issueOpen, "open", false, "Reopen the issue")
	issueUpdateCmd.MarkFlagsMutuallyExclusive("open", "close")

	issueProjectsCmd.Flags().BoolVar(&issueJSON, "json", false, "Print raw JSON")

	issueCmd.AddCommand(issueListCmd)
	issueCmd.AddCommand(issueAddCmd)
	issueCmd.AddCommand(issueUpdateCmd)
	issueCmd.AddCommand(issueDeleteCmd)
	issueCmd.AddCommand(issueProjectsCmd)
	rootCmd.AddCommand(issueCmd)
}

// parseFilters turns field=value pairs into a filter map.
func parseFilters(pairs []string) (map[string]string, error) {
	filter := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid filter %q: want field=value", pair)
		}
		filter[key] = value
	}
	return filter, nil
}

// updateFields collects the update flags that were set on cmd.
func updateFields(cmd *cobra.Command) map[string]any {
	fields := map[string]any{}
	flags := cmd.Flags()
	if flags.Changed("title") {
		fields[models.FieldIssueTitle] = issueTitle
	}
	if flags.Changed("text") {
		fields[models.FieldIssueText] = issueText
	}
	if flags.Changed("by") {
		fields[models.FieldCreatedBy] = issueAuthor
	}
	if flags.Changed("assign") {
		fields[models.FieldAssignedTo] = issueAssignee
	}
	if flags.Changed("status") {
		fields[models.FieldStatusText] = issueStatus
	}
	switch {
	case flags.Changed("close") && issueClose:
		fields[models.FieldOpen] = false
	case flags.Changed("open") && issueOpen:
		fields[models.FieldOpen] = true
	}
	return fields
}

func issueListRun(ctx context.Context, c *client.Client, project string) error {
	filter, err := parseFilters(issueFilters)
	if err != nil {
		return err
	}

	issues, err := c.ListIssues(ctx, project, filter)
	if err != nil {
		return fmt.Errorf("list issues: %w", err)
	}

	if issueJSON {
		return ui.JSON(issues)
	}
	if len(issues) == 0 {
		ui.Info("No issues found.")
		return nil
	}
	return ui.IssueTable(issues)
}

func issueAddRun(ctx context.Context, c *client.Client, project string) error {
	in := client.NewIssue{
		IssueTitle: issueTitle,
		IssueText:  issueText,
		CreatedBy:  issueAuthor,
		AssignedTo: issueAssignee,
		StatusText: issueStatus,
	}

	if dryRun {
		ui.DryRunMsg("Would add issue %q to %s", issueTitle, project)
		return nil
	}

	issue, err := c.CreateIssue(ctx, project, in)
	if err != nil {
		return fmt.Errorf("create issue: %w", err)
	}

	if issueJSON {
		return ui.JSON(issue)
	}
	ui.Success("Created issue %s: %s", output.Cyan(issue.ID), issue.IssueTitle)
	return nil
}

func issueUpdateRun(ctx context.Context, c *client.Client, project, id string, fields map[string]any) error {
	if dryRun {
		ui.DryRunMsg("Would update %s in %s with %v", id, project, fields)
		return nil
	}

	res, err := c.UpdateIssue(ctx, project, id, fields)
	if err != nil {
		return fmt.Errorf("update issue: %w", err)
	}
	ui.Success("%s %s", res.Result, output.Cyan(res.ID))
	return nil
}

func issueDeleteRun(ctx context.Context, c *client.Client, project, id string) error {
	if dryRun {
		ui.DryRunMsg("Would delete %s from %s", id, project)
		return nil
	}

	res, err := c.DeleteIssue(ctx, project, id)
	if err != nil {
		return fmt.Errorf("delete issue: %w", err)
	}
	ui.Success("%s %s", res.Result, output.Cyan(res.ID))
	return nil
}

func issueProjectsRun(ctx context.Context, c *client.Client) error {
	projects, err := c.ListProjects(ctx)
	if err != nil {
		return fmt.Errorf("list projects: %w", err)
	}

	if issueJSON {
		return ui.JSON(projects)
	}
	if len(projects) == 0 {
		ui.Info("No projects yet.")
		return nil
	}
	return ui.ProjectTable(projects)
}
