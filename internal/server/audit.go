package server

import (
	"time"
)

type AuditLogEntry struct {
	Timestamp  time.Time `json:"timestamp"`
	Handler    string    `json:"handler"`
	Method     string    `json:"method"`
	Path       string    `json:"path"`
	StatusCode int       `json:"status_code"`
	SessionID  string    `json:"session_id,omitempty"`
	Tab        string    `json:"tab,omitempty"`
	RowID      string    `json:"row_id,omitempty"`
	Request    string    `json:"request,omitempty"`
	Response   string    `json:"response,omitempty"`
}

// AuditBatch is the message published to the audit topic.
type AuditBatch struct {
	Worker  int             `json:"worker"`
	Entries []AuditLogEntry `json:"entries"`
}
