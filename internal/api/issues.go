package api

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/joescharf/issuetracker/internal/models"
	"github.com/joescharf/issuetracker/internal/store"
)

// createIssueRequest carries the presence rules for a new issue.
type createIssueRequest struct {
	IssueTitle string `validate:"required"`
	IssueText  string `validate:"required"`
	CreatedBy  string `validate:"required"`
	AssignedTo string
	StatusText string
}

func (s *Server) body(r *http.Request) requestBody {
	body, err := decodeBody(r)
	if err != nil {
		s.log.Debug("unreadable request body",
			zap.String("request_id", requestID(r)),
			zap.Error(err),
		)
	}
	return body
}

func (s *Server) listIssues(w http.ResponseWriter, r *http.Request) {
	project := r.PathValue("project")

	query := r.URL.Query()
	filter := make(store.IssueListFilter, len(query))
	for key := range query {
		filter[key] = query.Get(key)
	}

	issues, err := s.store.ListIssues(r.Context(), project, filter)
	if err != nil {
		recordOperation("list", outcomeFailed)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	recordOperation("list", outcomeOK)
	writeJSON(w, http.StatusOK, issues)
}

func (s *Server) createIssue(w http.ResponseWriter, r *http.Request) {
	project := r.PathValue("project")
	body := s.body(r)

	req := createIssueRequest{
		IssueTitle: body.filled(models.FieldIssueTitle),
		IssueText:  body.filled(models.FieldIssueText),
		CreatedBy:  body.filled(models.FieldCreatedBy),
		AssignedTo: body.filled(models.FieldAssignedTo),
		StatusText: body.filled(models.FieldStatusText),
	}

	if err := s.validate.Struct(req); err != nil {
		s.log.Info("create rejected",
			zap.String("project", project),
			zap.String("request_id", requestID(r)),
			zap.String("reason", err.Error()),
		)
		recordOperation("create", outcomeRejected)
		writeAppError(w, ErrRequiredFieldsMissing, "")
		return
	}

	issue := &models.Issue{
		IssueTitle: req.IssueTitle,
		IssueText:  req.IssueText,
		CreatedBy:  req.CreatedBy,
		AssignedTo: req.AssignedTo,
		StatusText: req.StatusText,
		Open:       true,
	}
	if err := s.store.CreateIssue(r.Context(), project, issue); err != nil {
		s.log.Error("create issue", zap.String("project", project), zap.Error(err))
		recordOperation("create", outcomeFailed)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.log.Debug("issue created", zap.String("project", project), zap.String("id", issue.ID))
	recordOperation("create", outcomeOK)
	writeJSON(w, http.StatusOK, issue)
}

func (s *Server) updateIssue(w http.ResponseWriter, r *http.Request) {
	project := r.PathValue("project")
	body := s.body(r)

	id, _ := body.str(models.FieldID)
	if id == "" {
		recordOperation("update", outcomeRejected)
		writeAppError(w, ErrMissingID, "")
		return
	}

	patch := body.patch()
	if patch.IsEmpty() {
		recordOperation("update", outcomeRejected)
		writeAppError(w, ErrNoUpdateFields, id)
		return
	}

	if _, err := s.store.UpdateIssue(r.Context(), project, id, patch); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.log.Error("update issue", zap.String("project", project), zap.String("id", id), zap.Error(err))
			recordOperation("update", outcomeFailed)
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.log.Info("update rejected", zap.String("project", project), zap.String("id", id))
		recordOperation("update", outcomeRejected)
		writeAppError(w, ErrCouldNotUpdate, id)
		return
	}

	s.log.Debug("issue updated", zap.String("project", project), zap.String("id", id))
	recordOperation("update", outcomeOK)
	writeResult(w, resultUpdated, id)
}

func (s *Server) deleteIssue(w http.ResponseWriter, r *http.Request) {
	project := r.PathValue("project")
	body := s.body(r)

	id, _ := body.str(models.FieldID)
	if id == "" {
		recordOperation("delete", outcomeRejected)
		writeAppError(w, ErrMissingID, "")
		return
	}

	if err := s.store.DeleteIssue(r.Context(), project, id); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.log.Error("delete issue", zap.String("project", project), zap.String("id", id), zap.Error(err))
			recordOperation("delete", outcomeFailed)
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.log.Info("delete rejected", zap.String("project", project), zap.String("id", id))
		recordOperation("delete", outcomeRejected)
		writeAppError(w, ErrCouldNotDelete, id)
		return
	}

	s.log.Debug("issue deleted", zap.String("project", project), zap.String("id", id))
	recordOperation("delete", outcomeOK)
	writeResult(w, resultDeleted, id)
}
