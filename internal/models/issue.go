package models

// Issue field names as they appear on the wire and in list filters.
const (
	FieldID         = "_id"
	FieldIssueTitle = "issue_title"
	FieldIssueText  = "issue_text"
	FieldCreatedBy  = "created_by"
	FieldAssignedTo = "assigned_to"
	FieldStatusText = "status_text"
	FieldCreatedOn  = "created_on"
	FieldUpdatedOn  = "updated_on"
	FieldOpen       = "open"
)

// Issue represents a tracked issue within a project.
type Issue struct {
	ID         string    `json:"_id"`
	IssueTitle string    `json:"issue_title"`
	IssueText  string    `json:"issue_text"`
	CreatedBy  string    `json:"created_by"`
	AssignedTo string    `json:"assigned_to"`
	StatusText string    `json:"status_text"`
	CreatedOn  Timestamp `json:"created_on"`
	UpdatedOn  Timestamp `json:"updated_on"`
	Open       bool      `json:"open"`
}

// Field returns the string form of the named field. The second result is
// false when name is not an issue field.
func (i *Issue) Field(name string) (string, bool) {
	var v any
	switch name {
	case FieldID:
		v = i.ID
	case FieldIssueTitle:
		v = i.IssueTitle
	case FieldIssueText:
		v = i.IssueText
	case FieldCreatedBy:
		v = i.CreatedBy
	case FieldAssignedTo:
		v = i.AssignedTo
	case FieldStatusText:
		v = i.StatusText
	case FieldCreatedOn:
		v = i.CreatedOn
	case FieldUpdatedOn:
		v = i.UpdatedOn
	case FieldOpen:
		v = i.Open
	default:
		return "", false
	}
	return FieldString(v), true
}

// IssuePatch holds the mutable fields of an update. Nil means "not sent".
type IssuePatch struct {
	IssueTitle *string
	IssueText  *string
	CreatedBy  *string
	AssignedTo *string
	StatusText *string
	Open       *bool
}

// IsEmpty reports whether the patch carries no field at all.
func (p IssuePatch) IsEmpty() bool {
	return p.IssueTitle == nil && p.IssueText == nil && p.CreatedBy == nil &&
		p.AssignedTo == nil && p.StatusText == nil && p.Open == nil
}

// Apply copies every set field onto issue. Timestamps are left to the caller.
func (p IssuePatch) Apply(issue *Issue) {
	if p.IssueTitle != nil {
		issue.IssueTitle = *p.IssueTitle
	}
	if p.IssueText != nil {
		issue.IssueText = *p.IssueText
	}
	if p.CreatedBy != nil {
		issue.CreatedBy = *p.CreatedBy
	}
	if p.AssignedTo != nil {
		issue.AssignedTo = *p.AssignedTo
	}
	if p.StatusText != nil {
		issue.StatusText = *p.StatusText
	}
	if p.Open != nil {
		issue.Open = *p.Open
	}
}
