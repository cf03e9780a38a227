package resposta

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestBuilderWithObserverAndBasicMetrics verifies that:
//   - a runner with custom collaborators is usable from the public API
//   - BasicMetrics sees the expected workflow/stage/response counts
//   - the builder works end-to-end without any external infra.
func TestBuilderWithObserverAndBasicMetrics(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	metrics := &BasicMetrics{}

	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	observer := NewCompositeObserver(
		NewLoggingObserver(logger),
		metrics,
	)

	runner, err := NewBuilder().
		WithObserver(observer).
		WithTopK(3).
		BuildLocalRunner()
	require.NoError(t, err)

	seedRunnerKnowledge(t, runner)

	require.NoError(t, runner.StartWorkers(ctx, 1), "StartWorkers should succeed")
	defer runner.Stop()

	doc := "What encryption do you apply to customer data at rest?\nDescribe your support coverage and response times.\n"
	wf, err := runner.Engine.CreateWorkflow(ctx, CreateWorkflowRequest{
		ClientName:         "Globex",
		SourceDocumentText: &doc,
	})
	require.NoError(t, err, "CreateWorkflow should succeed")

	done, err := runner.AwaitTerminal(ctx, wf.ID, 0)
	require.NoError(t, err)
	require.Equal(t, StateReady, done.State, "workflow should complete successfully")

	snap := metrics.Snapshot()

	require.Equal(t, int64(1), snap.WorkflowsCreated, "expected exactly 1 workflow created")
	require.Equal(t, int64(1), snap.WorkflowsCompleted, "expected exactly 1 workflow completed")
	require.Equal(t, int64(0), snap.WorkflowsFailed, "expected 0 workflow failures")
	require.Equal(t, int64(0), snap.WorkflowsInFlight, "expected 0 workflows in flight")
	require.Equal(t, int64(2), snap.ResponsesAppended, "expected 2 responses appended")
	require.Equal(t, int64(0), snap.ResponsesDegraded, "expected 0 degraded responses")
	require.Equal(t, int64(5), snap.StagesCompleted, "expected all 5 pipeline stages counted")
}

// TestBuilderWithNilLoggerObserver ensures that NewLoggingObserver(nil)
// is safe to use (it falls back to slog.Default) and that workflows still
// run successfully.
func TestBuilderWithNilLoggerObserver(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	metrics := &BasicMetrics{}

	observer := NewCompositeObserver(
		NewLoggingObserver(nil), // should not panic or misbehave
		metrics,
	)

	runner, err := NewBuilder().
		WithObserver(observer).
		BuildLocalRunner()
	require.NoError(t, err)

	require.NoError(t, runner.StartWorkers(ctx, 1))
	defer runner.Stop()

	wf, err := runner.Engine.CreateWorkflow(ctx, CreateWorkflowRequest{
		ClientName:          "Northwind",
		RequirementsSummary: "a short quick proposal",
	})
	require.NoError(t, err)

	done, err := runner.AwaitTerminal(ctx, wf.ID, 0)
	require.NoError(t, err)
	require.Equal(t, StateReady, done.State)

	snap := metrics.Snapshot()
	require.Equal(t, int64(1), snap.WorkflowsCompleted)
	require.Equal(t, int64(5), snap.ResponsesAppended, "quick proposals carry the 5 standard sections")
}
