package audit

import (
	"time"

	"github.com/google/uuid"
)

// Action names what happened to a record.
type Action string

const (
	ActionCreate  Action = "create"
	ActionUpdate  Action = "update"
	ActionDelete  Action = "delete"
	ActionRestore Action = "restore"
	ActionArchive Action = "archive"
	ActionExport  Action = "export"
)

// Entry is one line in the audit trail. Entries are written as JSON
// lines so the trail stays greppable without any tooling.
type Entry struct {
	ID           string    `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	Action       Action    `json:"action"`
	SubmissionID string    `json:"submission_id,omitempty"`
	Actor        string    `json:"actor,omitempty"`
	OldStatus    string    `json:"old_status,omitempty"`
	NewStatus    string    `json:"new_status,omitempty"`
	Detail       string    `json:"detail,omitempty"`
}

// New starts an entry for an action, stamped and uniquely identified.
func New(action Action, submissionID string) Entry {
	return Entry{
		ID:           uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		Action:       action,
		SubmissionID: submissionID,
	}
}
