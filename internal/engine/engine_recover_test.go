package engine

import (
	"context"
	"testing"
	"time"

	"github.com/petrijr/resposta/pkg/api"
)

func TestRecoverStuckWorkflows_MarksProcessingAsError(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	now := time.Now()
	save := func(id string, state api.State) {
		t.Helper()
		wf := &api.Workflow{
			ID:         id,
			Pipeline:   api.PipelineRFPResponse,
			State:      state,
			ClientName: "Globex",
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := env.store.SaveWorkflow(ctx, wf); err != nil {
			t.Fatalf("SaveWorkflow(%s): %v", id, err)
		}
	}

	// Two workflows abandoned mid-processing by a crash.
	save("wf-stuck-generating", api.StateGenerating)
	save("wf-stuck-formatting", api.StateFormatting)

	// One still waiting for its queued task, and one already done;
	// neither may be touched.
	save("wf-waiting", api.StateCreated)
	save("wf-done", api.StateReady)

	n, err := env.eng.RecoverStuckWorkflows(ctx)
	if err != nil {
		t.Fatalf("RecoverStuckWorkflows failed: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 recovered workflows, got %d", n)
	}

	for _, id := range []string{"wf-stuck-generating", "wf-stuck-formatting"} {
		wf, err := env.eng.GetWorkflow(ctx, id)
		if err != nil {
			t.Fatalf("GetWorkflow(%s): %v", id, err)
		}
		if wf.State != api.StateError {
			t.Fatalf("%s: expected state %q, got %q", id, api.StateError, wf.State)
		}
		if wf.ErrorDetail == "" {
			t.Fatalf("%s: expected a recovery error detail", id)
		}

		events, err := env.eng.ListEvents(ctx, id)
		if err != nil {
			t.Fatalf("ListEvents(%s): %v", id, err)
		}
		if len(events) != 1 || events[0].Type != api.EventWorkflowRecovered {
			t.Fatalf("%s: expected a single recovered event, got %v", id, events)
		}
	}

	waiting, err := env.eng.GetWorkflow(ctx, "wf-waiting")
	if err != nil {
		t.Fatalf("GetWorkflow(wf-waiting): %v", err)
	}
	if waiting.State != api.StateCreated {
		t.Fatalf("created workflow must keep its queued task, got state %q", waiting.State)
	}

	done, err := env.eng.GetWorkflow(ctx, "wf-done")
	if err != nil {
		t.Fatalf("GetWorkflow(wf-done): %v", err)
	}
	if done.State != api.StateReady {
		t.Fatalf("ready workflow must not be recovered, got state %q", done.State)
	}

	// A second sweep finds nothing: recovery is idempotent.
	n, err = env.eng.RecoverStuckWorkflows(ctx)
	if err != nil {
		t.Fatalf("second RecoverStuckWorkflows failed: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected 0 workflows on the second sweep, got %d", n)
	}
}
