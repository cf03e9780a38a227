package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"github.com/petrijr/resposta/internal/testutil"
	"github.com/petrijr/resposta/pkg/api"
)

const prefix = "resposta:test:"

type RedisStoreTestSuite struct {
	suite.Suite
	endpoint string
	store    WorkflowStore
	client   *redis.Client
	ctx      context.Context
}

func TestRedisTestSuite(t *testing.T) {
	testsuite := new(RedisStoreTestSuite)
	testsuite.endpoint = testutil.GetRedisAddress(t)
	initTestRedisStore(t, testsuite)
	suite.Run(t, testsuite)
}

func (r *RedisStoreTestSuite) SetupTest() {
	ctx := context.Background()

	// Clean up all keys with this prefix.
	iter := r.client.Scan(ctx, 0, prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		err := r.client.Del(ctx, iter.Val()).Err()
		r.NoErrorf(err, "redis DEL %q failed: %v", iter.Val(), err)
	}
	r.NoError(iter.Err(), "redis SCAN failed")
}

// initTestRedisStore connects to Redis using the address in the suite
// and fills it with a WorkflowStore using a test-specific prefix.
func initTestRedisStore(t *testing.T, ts *RedisStoreTestSuite) {
	t.Helper()

	if ts == nil {
		t.FailNow()
	}
	client := redis.NewClient(&redis.Options{
		Addr: ts.endpoint,
	})
	t.Cleanup(func() {
		_ = client.Close()
	})
	ts.client = client

	ctx := context.Background()
	ts.ctx = ctx
	if err := client.Ping(ctx).Err(); err != nil {
		t.Fatalf("redis ping failed: %v", err)
	}

	store := NewRedisWorkflowStore(client, prefix)
	ts.store = store
}

func (r *RedisStoreTestSuite) TestRedisWorkflowStore_SaveGetUpdate() {
	wf := sampleWorkflow("redis-test-1")

	err := r.store.SaveWorkflow(r.ctx, wf)
	r.NoError(err, "SaveWorkflow failed")

	got, err := r.store.GetWorkflow(r.ctx, "redis-test-1")
	r.NoError(err, "GetWorkflow failed")

	r.Equal(wf.ID, got.ID)
	r.Equal(wf.ClientName, got.ClientName)
	r.Equal(api.StateCreated, got.State)
	r.NotNil(got.SourceDocumentText)

	// Update: advance state with stage data.
	got.State = api.StateReviewing
	got.Analysis = &api.RFPAnalysis{Questions: []string{"Q?"}, TotalCount: 1}
	got.Responses = []api.ResponseRecord{{Question: "Q?", AnswerText: "A.", Confidence: 0.7}}
	got.Review = &api.ReviewResult{OverallQuality: api.QualityMedium, CompletenessScore: 1.0, MediumConfidenceCount: 1}

	err = r.store.UpdateWorkflow(r.ctx, got)
	r.NoError(err, "UpdateWorkflow failed")

	got2, err := r.store.GetWorkflow(r.ctx, got.ID)
	r.NoError(err, "GetWorkflow after update failed")

	r.Equal(api.StateReviewing, got2.State)
	r.NotNil(got2.Analysis)
	r.Len(got2.Responses, 1)
	r.NotNil(got2.Review)
	r.Equal(api.QualityMedium, got2.Review.OverallQuality)
}

func (r *RedisStoreTestSuite) TestRedisWorkflowStore_NotFound() {
	_, err := r.store.GetWorkflow(r.ctx, "missing")
	r.ErrorIs(err, api.ErrWorkflowNotFound)

	err = r.store.UpdateWorkflow(r.ctx, sampleWorkflow("missing"))
	r.ErrorIs(err, api.ErrWorkflowNotFound)
}

func (r *RedisStoreTestSuite) TestRedisWorkflowStore_ListWorkflowsFilters() {
	workflows := []*api.Workflow{
		sampleWorkflow("redis-list-1"),
		sampleWorkflow("redis-list-2"),
		sampleWorkflow("redis-list-3"),
	}
	workflows[1].State = api.StateReady
	workflows[2].Pipeline = api.PipelineQuickProposal
	workflows[2].SourceDocumentText = nil
	workflows[2].State = api.StateReady

	for _, wf := range workflows {
		err := r.store.SaveWorkflow(r.ctx, wf)
		r.NoErrorf(err, "SaveWorkflow(%s)", wf.ID)
	}

	all, err := r.store.ListWorkflows(r.ctx, WorkflowFilter{})
	r.NoError(err, "ListWorkflows (no filter) failed")
	r.Len(all, 3)

	ready, err := r.store.ListWorkflows(r.ctx, WorkflowFilter{State: api.StateReady})
	r.NoError(err, "ListWorkflows (ready) failed")
	r.Len(ready, 2)

	quick, err := r.store.ListWorkflows(r.ctx, WorkflowFilter{Pipeline: api.PipelineQuickProposal})
	r.NoError(err, "ListWorkflows (quick-proposal) failed")
	r.Len(quick, 1)

	readyRFP, err := r.store.ListWorkflows(r.ctx, WorkflowFilter{
		State:    api.StateReady,
		Pipeline: api.PipelineRFPResponse,
	})
	r.NoError(err, "ListWorkflows (ready + rfp) failed")
	r.Len(readyRFP, 1)
	r.Equal("redis-list-2", readyRFP[0].ID)
}

func (r *RedisStoreTestSuite) TestRedisWorkflowStore_StateIndexFollowsUpdates() {
	wf := sampleWorkflow("redis-idx-1")
	err := r.store.SaveWorkflow(r.ctx, wf)
	r.NoError(err, "SaveWorkflow failed")

	// Walk through a few transitions and check the state filter tracks.
	for _, state := range []api.State{api.StateAnalyzing, api.StateRouting, api.StateGenerating} {
		wf.State = state
		err = r.store.UpdateWorkflow(r.ctx, wf)
		r.NoErrorf(err, "UpdateWorkflow to %s failed", state)

		inState, err := r.store.ListWorkflows(r.ctx, WorkflowFilter{State: state})
		r.NoError(err, "ListWorkflows failed")
		r.Len(inState, 1)

		stale, err := r.store.ListWorkflows(r.ctx, WorkflowFilter{State: api.StateCreated})
		r.NoError(err, "ListWorkflows (created) failed")
		r.Empty(stale)
	}
}

func (r *RedisStoreTestSuite) TestRedisWorkflowStore_Leases() {
	wf := sampleWorkflow("redis-lease-1")
	err := r.store.SaveWorkflow(r.ctx, wf)
	r.NoError(err, "SaveWorkflow failed")

	acq, err := r.store.TryAcquireLease(r.ctx, wf.ID, "owner1", 200*time.Millisecond)
	r.NoError(err, "TryAcquireLease owner1 failed")
	r.True(acq, "expected owner1 to acquire")

	acq2, err := r.store.TryAcquireLease(r.ctx, wf.ID, "owner2", 200*time.Millisecond)
	r.NoError(err, "TryAcquireLease owner2 failed")
	r.False(acq2, "expected owner2 not to acquire while active")

	// Re-entrant for the same owner.
	again, err := r.store.TryAcquireLease(r.ctx, wf.ID, "owner1", 200*time.Millisecond)
	r.NoError(err, "re-entrant TryAcquireLease failed")
	r.True(again, "expected re-entrant acquire")

	err = r.store.RenewLease(r.ctx, wf.ID, "owner1", 200*time.Millisecond)
	r.NoError(err, "RenewLease owner1 failed")

	err = r.store.RenewLease(r.ctx, wf.ID, "owner2", 200*time.Millisecond)
	r.ErrorIs(err, api.ErrWorkflowLeaseHeld)

	err = r.store.ReleaseLease(r.ctx, wf.ID, "owner1")
	r.NoError(err, "ReleaseLease failed")

	// Idempotent release.
	err = r.store.ReleaseLease(r.ctx, wf.ID, "owner1")
	r.NoError(err, "second ReleaseLease failed")

	acq3, err := r.store.TryAcquireLease(r.ctx, wf.ID, "owner2", 200*time.Millisecond)
	r.NoError(err, "TryAcquireLease owner2 after release failed")
	r.True(acq3, "expected owner2 to acquire after release")
}
