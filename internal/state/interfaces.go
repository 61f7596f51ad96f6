package state

import "context"

// StateStore defines the interface for state storage operations.
type StateStore interface {
	Close() error
	DataDir() string

	// Session operations
	CreateSession(ctx context.Context, s *Session) error
	GetSession(ctx context.Context, id string) (*Session, error)
	GetActiveSession(ctx context.Context) (*Session, error)
	ListSessions(ctx context.Context, limit int) ([]*Session, error)
	MarkSessionRunning(ctx context.Context, id string, pid int) error
	UpdateSessionStatus(ctx context.Context, id, status string, errorMsg *string) error
	CompleteSession(ctx context.Context, id, patchPath string, patchSize int64) error

	// Sync history operations
	RecordSyncEvent(ctx context.Context, e *SyncEvent) error
	ListSyncEvents(ctx context.Context, limit int) ([]*SyncEvent, error)
}

// Ensure Store implements StateStore
var _ StateStore = (*Store)(nil)
