package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/joescharf/issuetracker/internal/client"
	"github.com/joescharf/issuetracker/internal/models"
)

// Backend is the issue tracker API the tools call into.
type Backend interface {
	ListIssues(ctx context.Context, project string, filter map[string]string) ([]*models.Issue, error)
	CreateIssue(ctx context.Context, project string, in client.NewIssue) (*models.Issue, error)
	UpdateIssue(ctx context.Context, project, id string, fields map[string]any) (*client.Result, error)
	DeleteIssue(ctx context.Context, project, id string) (*client.Result, error)
	ListProjects(ctx context.Context) ([]models.ProjectSummary, error)
}

// Server exposes a running issue tracker as MCP tools.
type Server struct {
	backend Backend
	version string
}

// NewServer creates the MCP server wrapper around backend.
func NewServer(backend Backend, version string) *Server {
	if version == "" {
		version = "dev"
	}
	return &Server{backend: backend, version: version}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("issuetracker", s.version, server.WithToolCapabilities(true))

	srv.AddTool(s.listProjectsTool())
	srv.AddTool(s.listIssuesTool())
	srv.AddTool(s.createIssueTool())
	srv.AddTool(s.updateIssueTool())
	srv.AddTool(s.deleteIssueTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	stdioServer := server.NewStdioServer(s.MCPServer())
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

// filterKeys are the issue fields accepted as list filters.
var filterKeys = []string{
	models.FieldID,
	models.FieldIssueTitle,
	models.FieldIssueText,
	models.FieldCreatedBy,
	models.FieldAssignedTo,
	models.FieldStatusText,
	models.FieldCreatedOn,
	models.FieldUpdatedOn,
	models.FieldOpen,
}

// updateKeys are the issue fields an update may carry.
var updateKeys = []string{
	models.FieldIssueTitle,
	models.FieldIssueText,
	models.FieldCreatedBy,
	models.FieldAssignedTo,
	models.FieldStatusText,
	models.FieldOpen,
}

// projects_list
func (s *Server) listProjectsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("projects_list",
		mcp.WithDescription("List projects that hold issues, with total and open issue counts."),
	)
	return tool, s.handleListProjects
}

func (s *Server) handleListProjects(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projects, err := s.backend.ListProjects(ctx)
	if err != nil {
		return toolError("failed to list projects", err), nil
	}
	return jsonResult(projects)
}

// issues_list
func (s *Server) listIssuesTool() (mcp.Tool, server.ToolHandlerFunc) {
	opts := []mcp.ToolOption{
		mcp.WithDescription("List issues in a project. Every other argument is an exact-match filter on the issue field of the same name; open takes \"true\" or \"false\"."),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project name")),
	}
	for _, key := range filterKeys {
		opts = append(opts, mcp.WithString(key, mcp.Description("Filter on "+key)))
	}
	return mcp.NewTool("issues_list", opts...), s.handleListIssues
}

func (s *Server) handleListIssues(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	project, err := request.RequireString("project")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: project"), nil
	}

	args := request.GetArguments()
	filter := map[string]string{}
	for _, key := range filterKeys {
		if v, ok := args[key]; ok {
			filter[key] = models.FieldString(v)
		}
	}

	issues, err := s.backend.ListIssues(ctx, project, filter)
	if err != nil {
		return toolError("failed to list issues", err), nil
	}
	return jsonResult(issues)
}

// issues_create
func (s *Server) createIssueTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("issues_create",
		mcp.WithDescription("Create an open issue in a project. Returns the stored issue."),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project name")),
		mcp.WithString(models.FieldIssueTitle, mcp.Required(), mcp.Description("Issue title")),
		mcp.WithString(models.FieldIssueText, mcp.Required(), mcp.Description("Issue description")),
		mcp.WithString(models.FieldCreatedBy, mcp.Required(), mcp.Description("Reporter")),
		mcp.WithString(models.FieldAssignedTo, mcp.Description("Assignee")),
		mcp.WithString(models.FieldStatusText, mcp.Description("Free-form status note")),
	)
	return tool, s.handleCreateIssue
}

func (s *Server) handleCreateIssue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	project, err := request.RequireString("project")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: project"), nil
	}

	issue, err := s.backend.CreateIssue(ctx, project, client.NewIssue{
		IssueTitle: request.GetString(models.FieldIssueTitle, ""),
		IssueText:  request.GetString(models.FieldIssueText, ""),
		CreatedBy:  request.GetString(models.FieldCreatedBy, ""),
		AssignedTo: request.GetString(models.FieldAssignedTo, ""),
		StatusText: request.GetString(models.FieldStatusText, ""),
	})
	if err != nil {
		return toolError("failed to create issue", err), nil
	}
	return jsonResult(issue)
}

// issues_update
func (s *Server) updateIssueTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("issues_update",
		mcp.WithDescription("Update fields of an issue. Only the fields passed are changed."),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project name")),
		mcp.WithString(models.FieldID, mcp.Required(), mcp.Description("Issue _id")),
		mcp.WithString(models.FieldIssueTitle, mcp.Description("New title")),
		mcp.WithString(models.FieldIssueText, mcp.Description("New description")),
		mcp.WithString(models.FieldCreatedBy, mcp.Description("New reporter")),
		mcp.WithString(models.FieldAssignedTo, mcp.Description("New assignee; empty clears it")),
		mcp.WithString(models.FieldStatusText, mcp.Description("New status note; empty clears it")),
		mcp.WithBoolean(models.FieldOpen, mcp.Description("false closes the issue, true reopens it")),
	)
	return tool, s.handleUpdateIssue
}

func (s *Server) handleUpdateIssue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	project, err := request.RequireString("project")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: project"), nil
	}
	id, err := request.RequireString(models.FieldID)
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: _id"), nil
	}

	args := request.GetArguments()
	fields := map[string]any{}
	for _, key := range updateKeys {
		if v, ok := args[key]; ok {
			fields[key] = v
		}
	}

	res, err := s.backend.UpdateIssue(ctx, project, id, fields)
	if err != nil {
		return toolError("failed to update issue", err), nil
	}
	return jsonResult(res)
}

// issues_delete
func (s *Server) deleteIssueTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("issues_delete",
		mcp.WithDescription("Delete an issue permanently."),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project name")),
		mcp.WithString(models.FieldID, mcp.Required(), mcp.Description("Issue _id")),
	)
	return tool, s.handleDeleteIssue
}

func (s *Server) handleDeleteIssue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	project, err := request.RequireString("project")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: project"), nil
	}
	id, err := request.RequireString(models.FieldID)
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: _id"), nil
	}

	res, err := s.backend.DeleteIssue(ctx, project, id)
	if err != nil {
		return toolError("failed to delete issue", err), nil
	}
	return jsonResult(res)
}

// toolError reports an API error by its message and anything else with the
// action that failed.
func toolError(action string, err error) *mcp.CallToolResult {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		return mcp.NewToolResultError(apiErr.Error())
	}
	return mcp.NewToolResultError(fmt.Sprintf("%s: %v", action, err))
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
