package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/joescharf/issuetracker/internal/api"
	"github.com/joescharf/issuetracker/internal/store"
)

func setupClient(t *testing.T) *Client {
	t.Helper()
	srv, err := api.NewServer(store.NewMemoryStore(), zap.NewNop(), api.Options{})
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return New(ts.URL + "/")
}

func TestClient_IssueLifecycle(t *testing.T) {
	c := setupClient(t)
	ctx := context.Background()

	issue, err := c.CreateIssue(ctx, "my project", NewIssue{
		IssueTitle: "T",
		IssueText:  "X",
		CreatedBy:  "A",
		AssignedTo: "B",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, issue.ID)
	assert.True(t, issue.Open)
	assert.Equal(t, "B", issue.AssignedTo)

	res, err := c.UpdateIssue(ctx, "my project", issue.ID, map[string]any{"open": false, "status_text": "done"})
	require.NoError(t, err)
	assert.Equal(t, &Result{Result: "successfully updated", ID: issue.ID}, res)

	closed, err := c.ListIssues(ctx, "my project", map[string]string{"open": "false"})
	require.NoError(t, err)
	require.Len(t, closed, 1)
	assert.Equal(t, "done", closed[0].StatusText)

	projects, err := c.ListProjects(ctx)
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, "my project", projects[0].Project)

	res, err = c.DeleteIssue(ctx, "my project", issue.ID)
	require.NoError(t, err)
	assert.Equal(t, "successfully deleted", res.Result)

	all, err := c.ListIssues(ctx, "my project", nil)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestClient_APIErrors(t *testing.T) {
	c := setupClient(t)
	ctx := context.Background()

	_, err := c.CreateIssue(ctx, "p", NewIssue{IssueTitle: "T"})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "required field(s) missing", apiErr.Message)

	_, err = c.UpdateIssue(ctx, "p", "nope", map[string]any{"issue_text": "x"})
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "could not update", apiErr.Message)
	assert.Equal(t, "nope", apiErr.ID)
	assert.EqualError(t, err, "could not update (_id nope)")

	_, err = c.UpdateIssue(ctx, "p", "nope", nil)
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "no update field(s) sent", apiErr.Message)

	_, err = c.DeleteIssue(ctx, "p", "nope")
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "could not delete", apiErr.Message)

	_, err = c.DeleteIssue(ctx, "p", "")
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "missing _id", apiErr.Message)
}

func TestClient_Health(t *testing.T) {
	c := setupClient(t)
	ctx := context.Background()

	_, err := c.CreateIssue(ctx, "p", NewIssue{IssueTitle: "T", IssueText: "X", CreatedBy: "A"})
	require.NoError(t, err)

	h, err := c.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, &Health{Status: "ok", Projects: 1, Issues: 1}, h)
}

func TestClient_HTTPStatusError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusBadGateway)
	}))
	defer ts.Close()

	_, err := New(ts.URL).ListProjects(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestClient_Unreachable(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	_, err := New(url).Health(context.Background())
	assert.Error(t, err)
}
