package resposta

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/petrijr/resposta/internal/persistence"
	workerpkg "github.com/petrijr/resposta/pkg/worker"
)

// bundleStoreForTest opens a second store handle on the bundle's
// database for seeding records behind the engine's back.
func bundleStoreForTest(t *testing.T, db *sql.DB) persistence.WorkflowStore {
	t.Helper()
	store, err := persistence.NewSQLiteWorkflowStore(db)
	require.NoError(t, err)
	return store
}

// TestSQLiteBundle_DurableAcrossRestart demonstrates that a workflow
// submitted via the bundle remains durable across a simulated process
// restart: the record and its queued task survive in SQLite, and the
// restarted worker drives it to ready.
func TestSQLiteBundle_DurableAcrossRestart(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tmp := t.TempDir()
	dbPath := filepath.Join(tmp, "resposta_bundle.db")
	dsn := "file:" + dbPath + "?_journal=WAL"
	artifactsDir := filepath.Join(tmp, "artifacts")

	newBundle := func(db *sql.DB) *WorkerBundle {
		b, err := NewBuilder().
			WithSQLite(db).
			WithArtifacts(afero.NewOsFs(), artifactsDir).
			BuildBundle(workerpkg.Config{MaxAttempts: 3})
		require.NoError(t, err)
		return b
	}

	// --- Phase 1: submit a workflow, no processing yet.

	db1, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)

	bundle1 := newBundle(db1)

	doc := "Describe your support coverage and response times.\n"
	created, err := bundle1.Engine.CreateWorkflow(ctx, CreateWorkflowRequest{
		ClientName:         "Initech",
		SourceDocumentText: &doc,
	})
	require.NoError(t, err)

	mid, err := bundle1.Engine.GetWorkflow(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, StateCreated, mid.State, "no worker has run; the workflow should still be queued")

	// Simulate a process crash by closing the DB and discarding bundle1.
	require.NoError(t, db1.Close())

	// --- Phase 2: "restart" with a new DB handle and bundle.

	db2, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)
	defer db2.Close()

	bundle2 := newBundle(db2)

	// On startup, recover anything left mid-processing. Nothing was
	// processing here: created workflows keep their durable task.
	recovered, err := RecoverStuckWorkflows(ctx, bundle2.Engine)
	require.NoError(t, err)
	require.Zero(t, recovered)

	// Process the surviving task from the durable queue.
	processed, err := bundle2.Worker.ProcessOne(ctx)
	require.NoError(t, err)
	require.True(t, processed, "expected one task to be processed")

	after, err := bundle2.Engine.GetWorkflow(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, StateReady, after.State, "detail: %s", after.ErrorDetail)
	require.Len(t, after.Responses, 1)
	require.NotNil(t, after.Review)
	require.NotNil(t, after.CompletedAt)

	artifact, err := bundle2.Engine.GetArtifact(ctx, created.ID)
	require.NoError(t, err)
	require.Contains(t, string(artifact), "Initech")

	// The transition history spans both phases: the enqueued event from
	// phase 1 plus the full run recorded after the restart.
	history, err := bundle2.Engine.ListEvents(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, history, 9)
}

// TestSQLiteBundle_RecoverySweepMarksInterruptedWork seeds a workflow
// that a crashed process left mid-generation and verifies the startup
// sweep parks it in error.
func TestSQLiteBundle_RecoverySweepMarksInterruptedWork(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tmp := t.TempDir()
	dsn := "file:" + filepath.Join(tmp, "resposta_recover.db") + "?_journal=WAL"

	db1, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)

	bundle1, err := NewSQLiteBundle(db1, workerpkg.Config{})
	require.NoError(t, err)

	doc := "What is your uptime guarantee?\n"
	wf, err := bundle1.Engine.CreateWorkflow(ctx, CreateWorkflowRequest{
		ClientName:         "Globex",
		SourceDocumentText: &doc,
	})
	require.NoError(t, err)

	// Fake the crash: rewrite the record as mid-processing, then drop
	// the process state.
	stuck, err := bundle1.Engine.GetWorkflow(ctx, wf.ID)
	require.NoError(t, err)
	stuck.State = StateGenerating
	stuck.UpdatedAt = time.Now().UTC()
	require.NoError(t, bundleStoreForTest(t, db1).UpdateWorkflow(ctx, stuck))
	require.NoError(t, db1.Close())

	db2, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)
	defer db2.Close()

	bundle2, err := NewSQLiteBundle(db2, workerpkg.Config{})
	require.NoError(t, err)

	recovered, err := RecoverStuckWorkflows(ctx, bundle2.Engine)
	require.NoError(t, err)
	require.Equal(t, 1, recovered)

	after, err := bundle2.Engine.GetWorkflow(ctx, wf.ID)
	require.NoError(t, err)
	require.Equal(t, StateError, after.State)
	require.NotEmpty(t, after.ErrorDetail)
}
