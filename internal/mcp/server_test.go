package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/joescharf/issuetracker/internal/api"
	"github.com/joescharf/issuetracker/internal/client"
	"github.com/joescharf/issuetracker/internal/models"
	"github.com/joescharf/issuetracker/internal/store"
)

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

// newTestServer wires the MCP server to a real API over httptest.
func newTestServer(t *testing.T) *Server {
	t.Helper()
	apiSrv, err := api.NewServer(store.NewMemoryStore(), zap.NewNop(), api.Options{})
	require.NoError(t, err)
	ts := httptest.NewServer(apiSrv.Router())
	t.Cleanup(ts.Close)

	srv := NewServer(client.New(ts.URL), "test")
	require.NotNil(t, srv)
	return srv
}

// failingBackend returns err from every call.
type failingBackend struct {
	err error
}

func (f failingBackend) ListIssues(context.Context, string, map[string]string) ([]*models.Issue, error) {
	return nil, f.err
}
func (f failingBackend) CreateIssue(context.Context, string, client.NewIssue) (*models.Issue, error) {
	return nil, f.err
}
func (f failingBackend) UpdateIssue(context.Context, string, string, map[string]any) (*client.Result, error) {
	return nil, f.err
}
func (f failingBackend) DeleteIssue(context.Context, string, string) (*client.Result, error) {
	return nil, f.err
}
func (f failingBackend) ListProjects(context.Context) ([]models.ProjectSummary, error) {
	return nil, f.err
}

// callToolReq builds a mcpgo.CallToolRequest with the given name and arguments.
func callToolReq(name string, args map[string]any) mcpgo.CallToolRequest {
	return mcpgo.CallToolRequest{
		Params: mcpgo.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

// resultText extracts the concatenated text from a CallToolResult.
func resultText(t *testing.T, result *mcpgo.CallToolResult) string {
	t.Helper()
	var b strings.Builder
	for _, c := range result.Content {
		if tc, ok := c.(mcpgo.TextContent); ok {
			b.WriteString(tc.Text)
		}
	}
	return b.String()
}

// resultJSON parses the text result as JSON into target.
func resultJSON(t *testing.T, result *mcpgo.CallToolResult, target any) {
	t.Helper()
	text := resultText(t, result)
	require.NoError(t, json.Unmarshal([]byte(text), target), "failed to parse result JSON: %s", text)
}

func seedIssue(t *testing.T, srv *Server, project, title, author string) models.Issue {
	t.Helper()
	result, err := srv.handleCreateIssue(context.Background(), callToolReq("issues_create", map[string]any{
		"project":     project,
		"issue_title": title,
		"issue_text":  "text of " + title,
		"created_by":  author,
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))

	var issue models.Issue
	resultJSON(t, result, &issue)
	return issue
}

// ---------------------------------------------------------------------------
// Tests: issues_create
// ---------------------------------------------------------------------------

func TestHandleCreateIssue(t *testing.T) {
	srv := newTestServer(t)

	result, err := srv.handleCreateIssue(context.Background(), callToolReq("issues_create", map[string]any{
		"project":     "demo",
		"issue_title": "Crash on start",
		"issue_text":  "It crashes",
		"created_by":  "joe",
		"assigned_to": "ann",
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var issue models.Issue
	resultJSON(t, result, &issue)
	assert.NotEmpty(t, issue.ID)
	assert.Equal(t, "Crash on start", issue.IssueTitle)
	assert.Equal(t, "ann", issue.AssignedTo)
	assert.True(t, issue.Open)
}

func TestHandleCreateIssue_MissingRequired(t *testing.T) {
	srv := newTestServer(t)

	result, err := srv.handleCreateIssue(context.Background(), callToolReq("issues_create", map[string]any{
		"project":     "demo",
		"issue_title": "Only a title",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Equal(t, "required field(s) missing", resultText(t, result))
}

func TestHandleCreateIssue_MissingProject(t *testing.T) {
	srv := newTestServer(t)

	result, err := srv.handleCreateIssue(context.Background(), callToolReq("issues_create", map[string]any{
		"issue_title": "T",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "project")
}

// ---------------------------------------------------------------------------
// Tests: issues_list
// ---------------------------------------------------------------------------

func TestHandleListIssues_Filters(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	a := seedIssue(t, srv, "demo", "A", "joe")
	seedIssue(t, srv, "demo", "B", "sue")
	seedIssue(t, srv, "other", "C", "joe")

	result, err := srv.handleListIssues(ctx, callToolReq("issues_list", map[string]any{
		"project":    "demo",
		"created_by": "joe",
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var issues []models.Issue
	resultJSON(t, result, &issues)
	require.Len(t, issues, 1)
	assert.Equal(t, a.ID, issues[0].ID)

	result, err = srv.handleListIssues(ctx, callToolReq("issues_list", map[string]any{
		"project": "demo",
		"open":    true,
	}))
	require.NoError(t, err)
	resultJSON(t, result, &issues)
	assert.Len(t, issues, 2)
}

func TestHandleListIssues_Empty(t *testing.T) {
	srv := newTestServer(t)

	result, err := srv.handleListIssues(context.Background(), callToolReq("issues_list", map[string]any{
		"project": "nothing",
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Equal(t, "[]", resultText(t, result))
}

func TestHandleListIssues_BackendError(t *testing.T) {
	srv := NewServer(failingBackend{err: errors.New("connection refused")}, "")

	result, err := srv.handleListIssues(context.Background(), callToolReq("issues_list", map[string]any{
		"project": "demo",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Equal(t, "failed to list issues: connection refused", resultText(t, result))
}

// ---------------------------------------------------------------------------
// Tests: issues_update
// ---------------------------------------------------------------------------

func TestHandleUpdateIssue_Close(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	issue := seedIssue(t, srv, "demo", "A", "joe")

	result, err := srv.handleUpdateIssue(ctx, callToolReq("issues_update", map[string]any{
		"project": "demo",
		"_id":     issue.ID,
		"open":    false,
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))

	var res client.Result
	resultJSON(t, result, &res)
	assert.Equal(t, client.Result{Result: "successfully updated", ID: issue.ID}, res)

	result, err = srv.handleListIssues(ctx, callToolReq("issues_list", map[string]any{
		"project": "demo",
		"open":    "false",
	}))
	require.NoError(t, err)
	var issues []models.Issue
	resultJSON(t, result, &issues)
	require.Len(t, issues, 1)
	assert.Equal(t, issue.ID, issues[0].ID)
}

func TestHandleUpdateIssue_NoFields(t *testing.T) {
	srv := newTestServer(t)
	issue := seedIssue(t, srv, "demo", "A", "joe")

	result, err := srv.handleUpdateIssue(context.Background(), callToolReq("issues_update", map[string]any{
		"project": "demo",
		"_id":     issue.ID,
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "no update field(s) sent")
}

func TestHandleUpdateIssue_NotFound(t *testing.T) {
	srv := newTestServer(t)

	result, err := srv.handleUpdateIssue(context.Background(), callToolReq("issues_update", map[string]any{
		"project":     "demo",
		"_id":         "missing",
		"issue_title": "x",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Equal(t, "could not update (_id missing)", resultText(t, result))
}

func TestHandleUpdateIssue_MissingID(t *testing.T) {
	srv := newTestServer(t)

	result, err := srv.handleUpdateIssue(context.Background(), callToolReq("issues_update", map[string]any{
		"project": "demo",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "_id")
}

// ---------------------------------------------------------------------------
// Tests: issues_delete
// ---------------------------------------------------------------------------

func TestHandleDeleteIssue(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	issue := seedIssue(t, srv, "demo", "A", "joe")

	result, err := srv.handleDeleteIssue(ctx, callToolReq("issues_delete", map[string]any{
		"project": "demo",
		"_id":     issue.ID,
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	result, err = srv.handleDeleteIssue(ctx, callToolReq("issues_delete", map[string]any{
		"project": "demo",
		"_id":     issue.ID,
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "could not delete")
}

// ---------------------------------------------------------------------------
// Tests: projects_list
// ---------------------------------------------------------------------------

func TestHandleListProjects(t *testing.T) {
	srv := newTestServer(t)
	seedIssue(t, srv, "beta", "A", "joe")
	seedIssue(t, srv, "alpha", "B", "joe")

	result, err := srv.handleListProjects(context.Background(), callToolReq("projects_list", nil))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var projects []models.ProjectSummary
	resultJSON(t, result, &projects)
	require.Len(t, projects, 2)
	assert.Equal(t, "alpha", projects[0].Project)
	assert.Equal(t, "beta", projects[1].Project)
}

func TestHandleListProjects_BackendError(t *testing.T) {
	srv := NewServer(failingBackend{err: errors.New("boom")}, "")

	result, err := srv.handleListProjects(context.Background(), callToolReq("projects_list", nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Equal(t, "failed to list projects: boom", resultText(t, result))
}

// ---------------------------------------------------------------------------
// Tests: Integration -- verify all tools are registered via HandleMessage
// ---------------------------------------------------------------------------

func TestMCPIntegration_ListTools(t *testing.T) {
	srv := newTestServer(t)
	mcpSrv := srv.MCPServer()
	require.NotNil(t, mcpSrv)

	reqJSON := []byte(`{"jsonrpc":"2.0","id":1,"method":"tools/list","params":{}}`)
	respMsg := mcpSrv.HandleMessage(context.Background(), reqJSON)
	require.NotNil(t, respMsg)

	respBytes, err := json.Marshal(respMsg)
	require.NoError(t, err)

	var rpcResp struct {
		Result struct {
			Tools []struct {
				Name string `json:"name"`
			} `json:"tools"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(respBytes, &rpcResp))

	var names []string
	for _, tool := range rpcResp.Result.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{
		"projects_list",
		"issues_list",
		"issues_create",
		"issues_update",
		"issues_delete",
	}, names)
}

var _ Backend = (*client.Client)(nil)
