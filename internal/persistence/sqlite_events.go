package persistence

import (
	"context"
	"database/sql"
	"time"

	"github.com/petrijr/resposta/pkg/api"
)

// SQLiteEventStore stores workflow events in SQLite.
type SQLiteEventStore struct {
	db *sql.DB
}

// Ensure SQLiteEventStore implements the interface.
var _ EventStore = (*SQLiteEventStore)(nil)

func NewSQLiteEventStore(db *sql.DB) (*SQLiteEventStore, error) {
	s := &SQLiteEventStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteEventStore) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS workflow_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			workflow_id TEXT NOT NULL,
			at INTEGER NOT NULL,
			type TEXT NOT NULL,
			pipeline TEXT NOT NULL DEFAULT '',
			state TEXT NOT NULL DEFAULT '',
			detail TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_workflow_events_workflow_id ON workflow_events(workflow_id, id);
	`)
	return err
}

func (s *SQLiteEventStore) AppendEvent(ctx context.Context, ev api.WorkflowEvent) error {
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO workflow_events (workflow_id, at, type, pipeline, state, detail)
		VALUES (?, ?, ?, ?, ?, ?)`,
		ev.WorkflowID,
		at.UnixNano(),
		string(ev.Type),
		ev.Pipeline,
		string(ev.State),
		ev.Detail,
	)
	return err
}

func (s *SQLiteEventStore) ListEvents(ctx context.Context, workflowID string) ([]api.WorkflowEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT workflow_id, at, type, pipeline, state, detail
		FROM workflow_events
		WHERE workflow_id = ?
		ORDER BY id ASC`, workflowID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []api.WorkflowEvent
	for rows.Next() {
		var (
			id       string
			atN      int64
			typ      string
			pipeline string
			state    string
			detail   string
		)
		if err := rows.Scan(&id, &atN, &typ, &pipeline, &state, &detail); err != nil {
			return nil, err
		}
		out = append(out, api.WorkflowEvent{
			WorkflowID: id,
			At:         time.Unix(0, atN),
			Type:       api.EventType(typ),
			Pipeline:   pipeline,
			State:      api.State(state),
			Detail:     detail,
		})
	}
	return out, rows.Err()
}
