// Package client talks to a running issue tracker over HTTP.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/joescharf/issuetracker/internal/models"
)

// APIError is an application error reported by the server in a 200 body.
type APIError struct {
	Message string `json:"error"`
	ID      string `json:"_id,omitempty"`
}

func (e *APIError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s (_id %s)", e.Message, e.ID)
	}
	return e.Message
}

// Result is the body of a successful update or delete.
type Result struct {
	Result string `json:"result"`
	ID     string `json:"_id"`
}

// Health is the body of GET /health.
type Health struct {
	Status   string `json:"status"`
	Projects int    `json:"projects"`
	Issues   int    `json:"issues"`
}

// NewIssue holds the fields accepted when creating an issue.
type NewIssue struct {
	IssueTitle string `json:"issue_title"`
	IssueText  string `json:"issue_text"`
	CreatedBy  string `json:"created_by"`
	AssignedTo string `json:"assigned_to,omitempty"`
	StatusText string `json:"status_text,omitempty"`
}

// Client is an HTTP client for the issue tracker API.
type Client struct {
	baseURL string
	http    *http.Client
}

// New returns a client for the server at baseURL.
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// WithHTTPClient replaces the underlying http.Client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.http = hc
	return c
}

// ListIssues returns the issues of project matching every filter entry.
func (c *Client) ListIssues(ctx context.Context, project string, filter map[string]string) ([]*models.Issue, error) {
	q := url.Values{}
	for k, v := range filter {
		q.Set(k, v)
	}
	target := c.issuesURL(project)
	if len(q) > 0 {
		target += "?" + q.Encode()
	}

	var issues []*models.Issue
	if err := c.do(ctx, http.MethodGet, target, nil, &issues); err != nil {
		return nil, err
	}
	return issues, nil
}

// CreateIssue creates an issue in project.
func (c *Client) CreateIssue(ctx context.Context, project string, in NewIssue) (*models.Issue, error) {
	var issue models.Issue
	if err := c.do(ctx, http.MethodPost, c.issuesURL(project), in, &issue); err != nil {
		return nil, err
	}
	return &issue, nil
}

// UpdateIssue sends fields as an update to the issue id in project. Keys
// are wire field names.
func (c *Client) UpdateIssue(ctx context.Context, project, id string, fields map[string]any) (*Result, error) {
	body := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		body[k] = v
	}
	body[models.FieldID] = id

	var res Result
	if err := c.do(ctx, http.MethodPut, c.issuesURL(project), body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// DeleteIssue removes the issue id from project.
func (c *Client) DeleteIssue(ctx context.Context, project, id string) (*Result, error) {
	var res Result
	body := map[string]string{models.FieldID: id}
	if err := c.do(ctx, http.MethodDelete, c.issuesURL(project), body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// ListProjects returns a summary of every project holding issues.
func (c *Client) ListProjects(ctx context.Context) ([]models.ProjectSummary, error) {
	var projects []models.ProjectSummary
	if err := c.do(ctx, http.MethodGet, c.baseURL+"/api/projects", nil, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

// Health checks the server.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var h Health
	if err := c.do(ctx, http.MethodGet, c.baseURL+"/health", nil, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

func (c *Client) issuesURL(project string) string {
	return c.baseURL + "/api/issues/" + url.PathEscape(project)
}

// do sends a JSON request and decodes the response into out. A body holding
// an "error" key is returned as *APIError.
func (c *Client) do(ctx context.Context, method, target string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, target, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if apiErr := decodeAPIError(data); apiErr != nil {
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("%s %s: %s: %w", method, target, resp.Status, apiErr)
		}
		return apiErr
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s %s: %s", method, target, resp.Status)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeAPIError(data []byte) *APIError {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil
	}
	var e APIError
	if err := json.Unmarshal(trimmed, &e); err != nil || e.Message == "" {
		return nil
	}
	return &e
}
