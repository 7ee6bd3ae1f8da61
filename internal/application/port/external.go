package port

import (
	"context"

	"github.com/garyjia/emission-workflow/internal/domain/workflow"
)

// NotificationKind distinguishes the messages sent to operators
type NotificationKind string

const (
	NotifyEscalation NotificationKind = "escalation"
	NotifySLABreach  NotificationKind = "sla_breach"
)

// Notification is one best-effort message about a case
type Notification struct {
	Kind     NotificationKind
	Folio    string
	State    workflow.State
	Target   workflow.EscalationTarget
	Severity string
	Message  string
}

// Notifier delivers notifications to the team that owns the target.
// Delivery failures never affect case state.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// FileStorage persists generated artifacts (SLA workbooks) under relative paths
type FileStorage interface {
	Save(ctx context.Context, path string, content []byte) error
	Read(ctx context.Context, path string) ([]byte, error)
	Exists(ctx context.Context, path string) bool
	Delete(ctx context.Context, path string) error

	// List returns the file paths under dir, relative to the storage root, in lexical order
	List(ctx context.Context, dir string) ([]string, error)
}
