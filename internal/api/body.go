package api

import (
	"bytes"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"net/url"

	"github.com/joescharf/issuetracker/internal/models"
)

// maxBodyBytes caps how much of a request body is read.
const maxBodyBytes = 1 << 20

// requestBody is a decoded request body keyed by field name. JSON values keep
// their decoded type; form values are strings.
type requestBody map[string]any

// decodeBody reads a JSON object or a urlencoded form from r. An unreadable
// or malformed body decodes as empty so that validation reports it.
func decodeBody(r *http.Request) (requestBody, error) {
	body := requestBody{}
	if r.Body == nil {
		return body, nil
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return body, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return body, nil
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/x-www-form-urlencoded" {
		values, err := url.ParseQuery(string(data))
		if err != nil {
			return body, err
		}
		for key := range values {
			body[key] = values.Get(key)
		}
		return body, nil
	}

	if err := json.Unmarshal(data, &body); err != nil {
		return requestBody{}, err
	}
	return body, nil
}

// has reports whether key was sent, whatever its value.
func (b requestBody) has(key string) bool {
	_, ok := b[key]
	return ok
}

// str returns the string form of key and whether it was sent.
func (b requestBody) str(key string) (string, bool) {
	v, ok := b[key]
	if !ok {
		return "", false
	}
	return models.FieldString(v), true
}

// filled returns the string form of key when it holds a truthy value, and ""
// otherwise.
func (b requestBody) filled(key string) string {
	v, ok := b[key]
	if !ok || !truthy(v) {
		return ""
	}
	return models.FieldString(v)
}

// truthy reports whether a decoded value counts as supplied. JSON null,
// false, 0 and "" do not.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != ""
	default:
		return true
	}
}

// nonEmpty returns a pointer to the value of key when it was sent with a
// truthy value.
func (b requestBody) nonEmpty(key string) *string {
	if s := b.filled(key); s != "" {
		return &s
	}
	return nil
}

// present returns a pointer to the value of key whenever it was sent, even
// as an empty string.
func (b requestBody) present(key string) *string {
	if s, ok := b.str(key); ok {
		return &s
	}
	return nil
}

// patch builds the update patch. Title, text and author only count when
// truthy; assignee, status text and open count whenever the key is present.
func (b requestBody) patch() models.IssuePatch {
	p := models.IssuePatch{
		IssueTitle: b.nonEmpty(models.FieldIssueTitle),
		IssueText:  b.nonEmpty(models.FieldIssueText),
		CreatedBy:  b.nonEmpty(models.FieldCreatedBy),
		AssignedTo: b.present(models.FieldAssignedTo),
		StatusText: b.present(models.FieldStatusText),
	}
	if b.has(models.FieldOpen) {
		open := models.ParseOpen(b[models.FieldOpen])
		p.Open = &open
	}
	return p
}
