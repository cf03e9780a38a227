package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/petrijr/resposta/pkg/api"
)

// PostgresWorkflowStore is a WorkflowStore backed by PostgreSQL.
//
// It expects an *sql.DB that uses a PostgreSQL driver (for example,
// "github.com/jackc/pgx/v5/stdlib" or "github.com/lib/pq").
//
// The caller is responsible for:
//   - importing the driver for its side effects, e.g.:
//     _ "github.com/jackc/pgx/v5/stdlib"
//   - providing a DSN via sql.Open.
type PostgresWorkflowStore struct {
	db *sql.DB
}

// Ensure PostgresWorkflowStore implements WorkflowStore.
var _ WorkflowStore = (*PostgresWorkflowStore)(nil)

// NewPostgresWorkflowStore initializes the required schema in the given
// database and returns a new PostgresWorkflowStore.
func NewPostgresWorkflowStore(db *sql.DB) (*PostgresWorkflowStore, error) {
	s := &PostgresWorkflowStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (p *PostgresWorkflowStore) initSchema() error {
	_, err := p.db.Exec(`
		CREATE TABLE IF NOT EXISTS workflows (
			id TEXT PRIMARY KEY,
			pipeline TEXT NOT NULL,
			state TEXT NOT NULL,
			client_name TEXT NOT NULL,
			industry TEXT NOT NULL DEFAULT '',
			source_document TEXT,
			requirements_summary TEXT NOT NULL DEFAULT '',
			payload BYTEA,
			artifact_path TEXT NOT NULL DEFAULT '',
			error_detail TEXT NOT NULL DEFAULT '',
			created_at BIGINT NOT NULL,
			updated_at BIGINT NOT NULL,
			completed_at BIGINT NOT NULL DEFAULT 0,
			lease_owner TEXT NOT NULL DEFAULT '',
			lease_expires_at BIGINT NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_workflows_state ON workflows(state);
	`)
	return err
}

const postgresWorkflowColumns = `id, pipeline, state, client_name, industry, source_document, requirements_summary, payload, artifact_path, error_detail, created_at, updated_at, completed_at`

func (p *PostgresWorkflowStore) SaveWorkflow(ctx context.Context, wf *api.Workflow) error {
	payload, err := EncodePayload(wf)
	if err != nil {
		return err
	}

	var completedAt int64
	if wf.CompletedAt != nil {
		completedAt = wf.CompletedAt.UnixNano()
	}

	_, err = p.db.ExecContext(ctx, `
		INSERT INTO workflows (`+postgresWorkflowColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`,
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

func (p *PostgresWorkflowStore) UpdateWorkflow(ctx context.Context, wf *api.Workflow) error {
	payload, err := EncodePayload(wf)
	if err != nil {
		return err
	}

	var completedAt int64
	if wf.CompletedAt != nil {
		completedAt = wf.CompletedAt.UnixNano()
	}

	res, err := p.db.ExecContext(ctx, `
		UPDATE workflows
		SET pipeline             = $1,
		    state                = $2,
		    client_name          = $3,
		    industry             = $4,
		    source_document      = $5,
		    requirements_summary = $6,
		    payload              = $7,
		    artifact_path        = $8,
		    error_detail         = $9,
		    updated_at           = $10,
		    completed_at         = $11
		WHERE id = $12
	`,
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

func (p *PostgresWorkflowStore) GetWorkflow(ctx context.Context, id string) (*api.Workflow, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT `+postgresWorkflowColumns+`
		FROM workflows
		WHERE id = $1
	`,
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

func (p *PostgresWorkflowStore) ListWorkflows(ctx context.Context, filter WorkflowFilter) ([]*api.Workflow, error) {
	query := `
		SELECT ` + postgresWorkflowColumns + `
		FROM workflows`
	var args []any
	var clauses []string

	if filter.State != "" {
		clauses = append(clauses, fmt.Sprintf("state = $%d", len(args)+1))
		args = append(args, string(filter.State))
	}
	if filter.Pipeline != "" {
		clauses = append(clauses, fmt.Sprintf("pipeline = $%d", len(args)+1))
		args = append(args, filter.Pipeline)
	}

	if len(clauses) > 0 {
		query = query + " WHERE " + strings.Join(clauses, " AND ")
	}
	query = query + " ORDER BY created_at ASC"

	rows, err := p.db.QueryContext(ctx, query, args...)
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

func (p *PostgresWorkflowStore) TryAcquireLease(ctx context.Context, workflowID, owner string, ttl time.Duration) (bool, error) {
	now := time.Now()
	expires := now.Add(ttl).UnixNano()
	nowInt := now.UnixNano()

	res, err := p.db.ExecContext(ctx, `
		UPDATE workflows
		SET lease_owner = $1, lease_expires_at = $2
		WHERE id = $3
		AND (
			lease_owner = ''
			OR lease_expires_at <= $4
			OR lease_owner = $5
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

func (p *PostgresWorkflowStore) RenewLease(ctx context.Context, workflowID, owner string, ttl time.Duration) error {
	expires := time.Now().Add(ttl).UnixNano()
	res, err := p.db.ExecContext(ctx, `
		UPDATE workflows
		SET lease_expires_at = $1
		WHERE id = $2 AND lease_owner = $3`,
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

func (p *PostgresWorkflowStore) ReleaseLease(ctx context.Context, workflowID, owner string) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE workflows
		SET lease_owner = '', lease_expires_at = 0
		WHERE id = $1 AND (lease_owner = '' OR lease_owner = $2)`,
		workflowID, owner,
	)
	if err != nil {
		return err
	}
	_, _ = res.RowsAffected()
	return nil
}
