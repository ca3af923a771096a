package api

import (
	"errors"
	"net/http"
)

// Application errors. Each is reported with HTTP 200 and its text as the
// "error" value; clients branch on the presence of that key.
var (
	ErrRequiredFieldsMissing = errors.New("required field(s) missing")
	ErrMissingID             = errors.New("missing _id")
	ErrNoUpdateFields        = errors.New("no update field(s) sent")
	ErrCouldNotUpdate        = errors.New("could not update")
	ErrCouldNotDelete        = errors.New("could not delete")
)

const (
	resultUpdated = "successfully updated"
	resultDeleted = "successfully deleted"
)

type errorResponse struct {
	Error string `json:"error"`
	ID    string `json:"_id,omitempty"`
}

type resultResponse struct {
	Result string `json:"result"`
	ID     string `json:"_id"`
}

func writeAppError(w http.ResponseWriter, err error, id string) {
	writeJSON(w, http.StatusOK, errorResponse{Error: err.Error(), ID: id})
}

func writeResult(w http.ResponseWriter, result, id string) {
	writeJSON(w, http.StatusOK, resultResponse{Result: result, ID: id})
}

// writeError reports a server fault, not an application error.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
