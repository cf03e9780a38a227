package engine

import (
	"context"
	"reflect"
	"testing"

	"github.com/petrijr/resposta/pkg/api"
)

func TestListWorkflows_Filters(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first := createRFPWorkflow(t, env, testRFPDocument)
	second := createRFPWorkflow(t, env, testRFPDocument)

	quick, err := env.eng.CreateWorkflow(ctx, api.CreateWorkflowRequest{ClientName: "Initech"})
	if err != nil {
		t.Fatalf("CreateWorkflow (quick) failed: %v", err)
	}

	// Drive one of the document workflows to ready.
	if err := env.eng.ProcessWorkflow(ctx, first.ID); err != nil {
		t.Fatalf("ProcessWorkflow failed: %v", err)
	}

	ids := func(wfs []*api.Workflow) map[string]bool {
		m := make(map[string]bool, len(wfs))
		for _, wf := range wfs {
			m[wf.ID] = true
		}
		return m
	}

	all, err := env.eng.ListWorkflows(ctx, api.WorkflowListOptions{})
	if err != nil {
		t.Fatalf("ListWorkflows (no filter) failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 workflows, got %d", len(all))
	}

	ready, err := env.eng.ListWorkflows(ctx, api.WorkflowListOptions{State: api.StateReady})
	if err != nil {
		t.Fatalf("ListWorkflows (ready) failed: %v", err)
	}
	if len(ready) != 1 || !ids(ready)[first.ID] {
		t.Fatalf("expected exactly the processed workflow in ready, got %v", ids(ready))
	}

	created, err := env.eng.ListWorkflows(ctx, api.WorkflowListOptions{State: api.StateCreated})
	if err != nil {
		t.Fatalf("ListWorkflows (created) failed: %v", err)
	}
	if len(created) != 2 || !ids(created)[second.ID] || !ids(created)[quick.ID] {
		t.Fatalf("expected the two unprocessed workflows in created, got %v", ids(created))
	}

	quicks, err := env.eng.ListWorkflows(ctx, api.WorkflowListOptions{Pipeline: api.PipelineQuickProposal})
	if err != nil {
		t.Fatalf("ListWorkflows (quick pipeline) failed: %v", err)
	}
	if len(quicks) != 1 || !ids(quicks)[quick.ID] {
		t.Fatalf("expected exactly the quick-proposal workflow, got %v", ids(quicks))
	}

	// Combined filters intersect.
	both, err := env.eng.ListWorkflows(ctx, api.WorkflowListOptions{
		State:    api.StateCreated,
		Pipeline: api.PipelineRFPResponse,
	})
	if err != nil {
		t.Fatalf("ListWorkflows (combined) failed: %v", err)
	}
	if len(both) != 1 || !ids(both)[second.ID] {
		t.Fatalf("expected exactly the unprocessed document workflow, got %v", ids(both))
	}
}

func TestGetWorkflow_RepeatedReadsMatch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	wf := createRFPWorkflow(t, env, testRFPDocument)
	if err := env.eng.ProcessWorkflow(ctx, wf.ID); err != nil {
		t.Fatalf("ProcessWorkflow failed: %v", err)
	}

	first, err := env.eng.GetWorkflow(ctx, wf.ID)
	if err != nil {
		t.Fatalf("GetWorkflow failed: %v", err)
	}
	second, err := env.eng.GetWorkflow(ctx, wf.ID)
	if err != nil {
		t.Fatalf("GetWorkflow (repeat) failed: %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("repeated reads differ:\n%+v\n%+v", first, second)
	}

	// Mutating one snapshot must not leak into the next read.
	first.ClientName = "tampered"
	first.Responses[0].AnswerText = "tampered"
	third, err := env.eng.GetWorkflow(ctx, wf.ID)
	if err != nil {
		t.Fatalf("GetWorkflow (after mutation) failed: %v", err)
	}
	if third.ClientName == "tampered" || third.Responses[0].AnswerText == "tampered" {
		t.Fatalf("snapshot mutation leaked into the store: %+v", third)
	}
}
