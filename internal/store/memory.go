package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/joescharf/issuetracker/internal/models"
)

// MemoryStore implements Store with process-lifetime maps. A single RWMutex
// guards every project; callers only ever receive copies.
type MemoryStore struct {
	mu       sync.RWMutex
	projects map[string][]*models.Issue
	ids      map[string]string // issue ID -> project, for global uniqueness

	now   func() time.Time
	newID func() string
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		projects: make(map[string][]*models.Issue),
		ids:      make(map[string]string),
		now:      time.Now,
		newID:    newULID,
	}
}

// newULID generates a new ULID string.
func newULID() string {
	return ulid.Make().String()
}

func cloneIssue(issue *models.Issue) *models.Issue {
	c := *issue
	return &c
}

// indexOf returns the position of id in the project's slice, or -1.
// Callers must hold mu.
func (m *MemoryStore) indexOf(project, id string) int {
	for i, issue := range m.projects[project] {
		if issue.ID == id {
			return i
		}
	}
	return -1
}

// CreateIssue appends issue to the project, assigning an ID and timestamps
// when they are unset. The caller's struct is updated with the stored values.
func (m *MemoryStore) CreateIssue(_ context.Context, project string, issue *models.Issue) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if issue.ID == "" {
		id := m.newID()
		for _, taken := m.ids[id]; taken; _, taken = m.ids[id] {
			id = m.newID()
		}
		issue.ID = id
	} else if _, taken := m.ids[issue.ID]; taken {
		return fmt.Errorf("create issue %s: %w", issue.ID, ErrDuplicateID)
	}

	if issue.CreatedOn.IsZero() {
		issue.CreatedOn = models.NewTimestamp(m.now())
	}
	if issue.UpdatedOn.Before(issue.CreatedOn.Time) {
		issue.UpdatedOn = issue.CreatedOn
	}

	m.projects[project] = append(m.projects[project], cloneIssue(issue))
	m.ids[issue.ID] = project
	return nil
}

// GetIssue returns a copy of the issue with the given ID in project.
func (m *MemoryStore) GetIssue(_ context.Context, project, id string) (*models.Issue, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	i := m.indexOf(project, id)
	if i < 0 {
		return nil, ErrNotFound
	}
	return cloneIssue(m.projects[project][i]), nil
}

// ListIssues returns copies of the project's issues matching filter, in
// insertion order. Unknown projects yield an empty, non-nil slice.
func (m *MemoryStore) ListIssues(_ context.Context, project string, filter IssueListFilter) ([]*models.Issue, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	issues := make([]*models.Issue, 0, len(m.projects[project]))
	for _, issue := range m.projects[project] {
		if filter.Matches(issue) {
			issues = append(issues, cloneIssue(issue))
		}
	}
	return issues, nil
}

// UpdateIssue applies patch to the issue in place and refreshes UpdatedOn.
// Nothing is written when the issue does not exist.
func (m *MemoryStore) UpdateIssue(_ context.Context, project, id string, patch models.IssuePatch) (*models.Issue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexOf(project, id)
	if i < 0 {
		return nil, ErrNotFound
	}

	issue := m.projects[project][i]
	patch.Apply(issue)

	// UpdatedOn never moves backwards, even if the clock does.
	updated := models.NewTimestamp(m.now())
	if updated.Before(issue.UpdatedOn.Time) {
		updated = issue.UpdatedOn
	}
	issue.UpdatedOn = updated

	return cloneIssue(issue), nil
}

// DeleteIssue removes the issue, preserving the order of the rest.
func (m *MemoryStore) DeleteIssue(_ context.Context, project, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexOf(project, id)
	if i < 0 {
		return ErrNotFound
	}

	issues := m.projects[project]
	copy(issues[i:], issues[i+1:])
	issues[len(issues)-1] = nil
	m.projects[project] = issues[:len(issues)-1]
	delete(m.ids, id)
	return nil
}

// ListProjects summarizes every project that has ever received an issue,
// sorted by name.
func (m *MemoryStore) ListProjects(_ context.Context) ([]*models.ProjectSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*models.ProjectSummary, 0, len(m.projects))
	for name, issues := range m.projects {
		summary := &models.ProjectSummary{Project: name, Issues: len(issues)}
		for _, issue := range issues {
			if issue.Open {
				summary.Open++
			}
		}
		out = append(out, summary)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Project < out[j].Project })
	return out, nil
}

// Close discards all data.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.projects = make(map[string][]*models.Issue)
	m.ids = make(map[string]string)
	return nil
}

var _ Store = (*MemoryStore)(nil)
