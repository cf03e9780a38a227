package persistence

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/petrijr/resposta/pkg/api"
)

// SQLiteWorkflowStore is a WorkflowStore backed by SQLite.
//
// It expects an *sql.DB that uses a SQLite driver (for example,
// "modernc.org/sqlite"). The caller is responsible for importing
// the driver, e.g.:
//
//	import _ "modernc.org/sqlite"
type SQLiteWorkflowStore struct {
	db *sql.DB
}

// Ensure SQLiteWorkflowStore implements WorkflowStore.
var _ WorkflowStore = (*SQLiteWorkflowStore)(nil)

// NewSQLiteWorkflowStore initializes the required schema in the given
// database and returns a new SQLiteWorkflowStore.
func NewSQLiteWorkflowStore(db *sql.DB) (*SQLiteWorkflowStore, error) {
	s := &SQLiteWorkflowStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteWorkflowStore) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS workflows (
			id TEXT PRIMARY KEY,
			pipeline TEXT NOT NULL,
			state TEXT NOT NULL,
			client_name TEXT NOT NULL,
			industry TEXT NOT NULL DEFAULT '',
			source_document TEXT,
			requirements_summary TEXT NOT NULL DEFAULT '',
			payload BLOB,
			artifact_path TEXT NOT NULL DEFAULT '',
			error_detail TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			completed_at INTEGER NOT NULL DEFAULT 0,
			lease_owner TEXT NOT NULL DEFAULT '',
			lease_expires_at INTEGER NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_workflows_state ON workflows(state);`,
	)
	return err
}

const sqliteWorkflowColumns = `id, pipeline, state, client_name, industry, source_document, requirements_summary, payload, artifact_path, error_detail, created_at, updated_at, completed_at`

func (s *SQLiteWorkflowStore) SaveWorkflow(ctx context.Context, wf *api.Workflow) error {
	payload, err := EncodePayload(wf)
	if err != nil {
		return err
	}

	var completedAt int64
	if wf.CompletedAt != nil {
		completedAt = wf.CompletedAt.UnixNano()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO workflows (`+sqliteWorkflowColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		wf.ID,
		wf.Pipeline,
		string(wf.State),
		wf.ClientName,
		wf.Industry,
		wf.SourceDocumentText,
		wf.RequirementsSummary,
		payload,
		wf.OutputArtifactPath,
		wf.ErrorDetail,
		wf.CreatedAt.UnixNano(),
		wf.UpdatedAt.UnixNano(),
		completedAt,
	)
	return err
}

func (s *SQLiteWorkflowStore) UpdateWorkflow(ctx context.Context, wf *api.Workflow) error {
	payload, err := EncodePayload(wf)
	if err != nil {
		return err
	}

	var completedAt int64
	if wf.CompletedAt != nil {
		completedAt = wf.CompletedAt.UnixNano()
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE workflows
		SET pipeline = ?, state = ?, client_name = ?, industry = ?, source_document = ?,
		    requirements_summary = ?, payload = ?, artifact_path = ?, error_detail = ?,
		    updated_at = ?, completed_at = ?
		WHERE id = ?`,
		wf.Pipeline,
		string(wf.State),
		wf.ClientName,
		wf.Industry,
		wf.SourceDocumentText,
		wf.RequirementsSummary,
		payload,
		wf.OutputArtifactPath,
		wf.ErrorDetail,
		wf.UpdatedAt.UnixNano(),
		completedAt,
		wf.ID,
	)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return api.ErrWorkflowNotFound
	}

	return nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorkflowRow(row rowScanner) (*api.Workflow, error) {
	var (
		wf          api.Workflow
		stateStr    string
		sourceDoc   sql.NullString
		payload     []byte
		createdAt   int64
		updatedAt   int64
		completedAt int64
	)

	err := row.Scan(
		&wf.ID,
		&wf.Pipeline,
		&stateStr,
		&wf.ClientName,
		&wf.Industry,
		&sourceDoc,
		&wf.RequirementsSummary,
		&payload,
		&wf.OutputArtifactPath,
		&wf.ErrorDetail,
		&createdAt,
		&updatedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	wf.State = api.State(stateStr)
	if sourceDoc.Valid {
		doc := sourceDoc.String
		wf.SourceDocumentText = &doc
	}
	wf.CreatedAt = time.Unix(0, createdAt)
	wf.UpdatedAt = time.Unix(0, updatedAt)
	if completedAt > 0 {
		t := time.Unix(0, completedAt)
		wf.CompletedAt = &t
	}

	if err := DecodePayload(payload, &wf); err != nil {
		return nil, err
	}

	return &wf, nil
}

func (s *SQLiteWorkflowStore) GetWorkflow(ctx context.Context, id string) (*api.Workflow, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+sqliteWorkflowColumns+`
		FROM workflows
		WHERE id = ?`,
		id,
	)

	wf, err := scanWorkflowRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, api.ErrWorkflowNotFound
		}
		return nil, err
	}
	return wf, nil
}

func (s *SQLiteWorkflowStore) ListWorkflows(ctx context.Context, filter WorkflowFilter) ([]*api.Workflow, error) {
	query := `
		SELECT ` + sqliteWorkflowColumns + `
		FROM workflows`
	var args []any
	var clauses []string

	if filter.State != "" {
		clauses = append(clauses, "state = ?")
		args = append(args, string(filter.State))
	}
	if filter.Pipeline != "" {
		clauses = append(clauses, "pipeline = ?")
		args = append(args, filter.Pipeline)
	}

	if len(clauses) > 0 {
		query = query + " WHERE " + strings.Join(clauses, " AND ")
	}
	query = query + " ORDER BY created_at ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var workflows []*api.Workflow

	for rows.Next() {
		wf, err := scanWorkflowRow(rows)
		if err != nil {
			return nil, err
		}
		workflows = append(workflows, wf)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return workflows, nil
}

func (s *SQLiteWorkflowStore) TryAcquireLease(ctx context.Context, workflowID, owner string, ttl time.Duration) (bool, error) {
	now := time.Now()
	expires := now.Add(ttl).UnixNano()
	nowInt := now.UnixNano()

	res, err := s.db.ExecContext(ctx, `
		UPDATE workflows
		SET lease_owner = ?, lease_expires_at = ?
		WHERE id = ?
		AND (
			lease_owner = ''
			OR lease_expires_at <= ?
			OR lease_owner = ?
		)`,
		owner, expires, workflowID, nowInt, owner,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}
	return true, nil
}

func (s *SQLiteWorkflowStore) RenewLease(ctx context.Context, workflowID, owner string, ttl time.Duration) error {
	expires := time.Now().Add(ttl).UnixNano()
	res, err := s.db.ExecContext(ctx, `
		UPDATE workflows
		SET lease_expires_at = ?
		WHERE id = ? AND lease_owner = ?`,
		expires, workflowID, owner,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return api.ErrWorkflowLeaseHeld
	}
	return nil
}

func (s *SQLiteWorkflowStore) ReleaseLease(ctx context.Context, workflowID, owner string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE workflows
		SET lease_owner = '', lease_expires_at = 0
		WHERE id = ? AND (lease_owner = '' OR lease_owner = ?)`,
		workflowID, owner,
	)
	if err != nil {
		return err
	}
	_, _ = res.RowsAffected()
	return nil
}
