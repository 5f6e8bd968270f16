package booking

import (
	"errors"
	"fmt"
	"strings"

	"costamar/internal/models"
)

// ErrBackendUnavailable marks persistence failures the caller may retry.
var ErrBackendUnavailable = errors.New("booking backend unavailable")

// ConflictError blocks submission when submit-time re-validation finds
// confirmed items no longer available. The report names each instance and
// the exact dates it conflicts on so the user can change dates or drop the
// item; it is never collapsed into a generic "unavailable".
type ConflictError struct {
	Report models.ConflictReport
}

func (e *ConflictError) Error() string {
	parts := make([]string, 0, len(e.Report.Unavailable))
	for _, u := range e.Report.Unavailable {
		dates := make([]string, len(u.ConflictingDates))
		for i, d := range u.ConflictingDates {
			dates[i] = models.DateKey(d)
		}
		parts = append(parts, fmt.Sprintf("%s on %s", u.InstanceID, strings.Join(dates, ", ")))
	}
	return "no longer available: " + strings.Join(parts, "; ")
}

// FieldIssue is one structural problem with a draft.
type FieldIssue struct {
	Field   string
	Message string
}

// ValidationError collects structural form issues found before conflict
// validation runs. Resolved locally with inline messaging.
type ValidationError struct {
	Issues []FieldIssue
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Issues))
	for i, issue := range e.Issues {
		parts[i] = fmt.Sprintf("%s: %s", issue.Field, issue.Message)
	}
	return "invalid reservation: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, message string) {
	e.Issues = append(e.Issues, FieldIssue{Field: field, Message: message})
}

func (e *ValidationError) orNil() error {
	if len(e.Issues) == 0 {
		return nil
	}
	return e
}
