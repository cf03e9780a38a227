package engine

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/petrijr/resposta/pkg/api"
)

func TestListEvents_FullRunHistory(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created := createRFPWorkflow(t, env, "What encryption do you apply to customer data at rest?\n")
	if err := env.eng.ProcessWorkflow(ctx, created.ID); err != nil {
		t.Fatalf("ProcessWorkflow failed: %v", err)
	}

	events, err := env.eng.ListEvents(ctx, created.ID)
	if err != nil {
		t.Fatalf("ListEvents failed: %v", err)
	}

	wantTypes := []api.EventType{
		api.EventWorkflowEnqueued,
		api.EventWorkflowStarted,
		api.EventStateEntered, // analyzing
		api.EventStateEntered, // routing
		api.EventStateEntered, // generating
		api.EventStateEntered, // reviewing
		api.EventStateEntered, // formatting
		api.EventStateEntered, // ready
		api.EventWorkflowCompleted,
	}
	if len(events) != len(wantTypes) {
		t.Fatalf("expected %d events, got %d: %v", len(wantTypes), len(events), events)
	}

	wantStates := []api.State{
		api.StateAnalyzing,
		api.StateRouting,
		api.StateGenerating,
		api.StateReviewing,
		api.StateFormatting,
		api.StateReady,
	}
	entered := 0
	for i, ev := range events {
		if ev.Type != wantTypes[i] {
			t.Fatalf("event %d: expected type %q, got %q", i, wantTypes[i], ev.Type)
		}
		if ev.WorkflowID != created.ID {
			t.Fatalf("event %d: wrong workflow id %q", i, ev.WorkflowID)
		}
		if ev.At.IsZero() {
			t.Fatalf("event %d: missing timestamp", i)
		}
		if ev.Pipeline != api.PipelineRFPResponse {
			t.Fatalf("event %d: expected pipeline %q, got %q", i, api.PipelineRFPResponse, ev.Pipeline)
		}
		if ev.Type == api.EventStateEntered {
			if ev.State != wantStates[entered] {
				t.Fatalf("state event %d: expected %q, got %q", entered, wantStates[entered], ev.State)
			}
			entered++
		}
	}

	for i := 1; i < len(events); i++ {
		if events[i].At.Before(events[i-1].At) {
			t.Fatalf("event %d at %v precedes event %d at %v", i, events[i].At, i-1, events[i-1].At)
		}
	}
}

func TestListEvents_FailedRunHistory(t *testing.T) {
	env := newTestEnv(t, func(cfg *Config) {
		cfg.Renderer = failingRenderer{err: errors.New("disk full")}
	})
	ctx := context.Background()

	created := createRFPWorkflow(t, env, testRFPDocument)
	if err := env.eng.ProcessWorkflow(ctx, created.ID); err != nil {
		t.Fatalf("ProcessWorkflow failed: %v", err)
	}

	events, err := env.eng.ListEvents(ctx, created.ID)
	if err != nil {
		t.Fatalf("ListEvents failed: %v", err)
	}
	if len(events) == 0 {
		t.Fatalf("expected events for a failed run")
	}

	last := events[len(events)-1]
	if last.Type != api.EventWorkflowFailed {
		t.Fatalf("expected last event %q, got %q", api.EventWorkflowFailed, last.Type)
	}
	if last.State != api.StateError {
		t.Fatalf("expected failed event in state %q, got %q", api.StateError, last.State)
	}
	if !strings.Contains(last.Detail, "disk full") {
		t.Fatalf("expected failure detail on the event, got %q", last.Detail)
	}
}
