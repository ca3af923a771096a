package store

import (
	"context"
	"errors"

	"github.com/joescharf/issuetracker/internal/models"
)

var (
	// ErrNotFound is returned when no issue in the project has the given ID.
	ErrNotFound = errors.New("issue not found")
	// ErrDuplicateID is returned when a caller-supplied ID is already taken.
	ErrDuplicateID = errors.New("issue id already exists")
)

// IssueListFilter maps issue field names to the string value they must equal.
type IssueListFilter map[string]string

// Matches reports whether issue satisfies every pair in the filter. A key
// that is not an issue field never matches.
func (f IssueListFilter) Matches(issue *models.Issue) bool {
	for key, want := range f {
		got, ok := issue.Field(key)
		if !ok || got != want {
			return false
		}
	}
	return true
}

// Store defines the issue storage interface, partitioned by project name.
type Store interface {
	// Issues
	CreateIssue(ctx context.Context, project string, issue *models.Issue) error
	GetIssue(ctx context.Context, project, id string) (*models.Issue, error)
	ListIssues(ctx context.Context, project string, filter IssueListFilter) ([]*models.Issue, error)
	UpdateIssue(ctx context.Context, project, id string, patch models.IssuePatch) (*models.Issue, error)
	DeleteIssue(ctx context.Context, project, id string) error

	// Projects
	ListProjects(ctx context.Context) ([]*models.ProjectSummary, error)

	// Lifecycle
	Close() error
}
