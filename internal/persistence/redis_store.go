package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/petrijr/resposta/pkg/api"
)

// RedisWorkflowStore is a WorkflowStore backed by Redis.
// It uses a simple key structure:
//
//	<prefix>wf:<id>                 => JSON-encoded workflow record
//	<prefix>idx:all                 => SET of all workflow IDs
//	<prefix>idx:pipeline:<pipeline> => SET of workflow IDs per pipeline
//	<prefix>idx:state:<state>       => SET of workflow IDs per state
//	<prefix>lease:<id>              => lease owner, expiring key
//
// The state index is kept accurate on updates by moving the id between
// state sets; ListWorkflows still re-checks decoded records against the
// filter so a crash between the payload write and the index move cannot
// surface a wrong result.
type RedisWorkflowStore struct {
	client *redis.Client
	prefix string
}

var _ WorkflowStore = (*RedisWorkflowStore)(nil)

// NewRedisWorkflowStore creates a RedisWorkflowStore.
// prefix is optional but recommended (e.g. "resposta:").
func NewRedisWorkflowStore(client *redis.Client, prefix string) *RedisWorkflowStore {
	if prefix == "" {
		prefix = "resposta:"
	}
	return &RedisWorkflowStore{
		client: client,
		prefix: prefix,
	}
}

func (r *RedisWorkflowStore) keyWorkflow(id string) string {
	return r.prefix + "wf:" + id
}

func (r *RedisWorkflowStore) keyLease(id string) string {
	return r.prefix + "lease:" + id
}

func (r *RedisWorkflowStore) keyAll() string {
	return r.prefix + "idx:all"
}

func (r *RedisWorkflowStore) keyPipeline(pipeline string) string {
	return r.prefix + "idx:pipeline:" + pipeline
}

func (r *RedisWorkflowStore) keyState(state api.State) string {
	return r.prefix + "idx:state:" + string(state)
}

func (r *RedisWorkflowStore) SaveWorkflow(ctx context.Context, wf *api.Workflow) error {
	data, err := json.Marshal(wf)
	if err != nil {
		return err
	}

	if err := r.client.Set(ctx, r.keyWorkflow(wf.ID), data, 0).Err(); err != nil {
		return err
	}

	// Index updates; index failures are not fatal because ListWorkflows
	// re-filters by the decoded record.
	pipe := r.client.TxPipeline()
	pipe.SAdd(ctx, r.keyAll(), wf.ID)
	pipe.SAdd(ctx, r.keyPipeline(wf.Pipeline), wf.ID)
	pipe.SAdd(ctx, r.keyState(wf.State), wf.ID)
	_, _ = pipe.Exec(ctx)

	return nil
}

func (r *RedisWorkflowStore) UpdateWorkflow(ctx context.Context, wf *api.Workflow) error {
	// Read the previous record so the state index move is exact. State
	// transitions are serialized per workflow by the processing lease, so
	// this read-modify-write does not race with itself.
	prevData, err := r.client.Get(ctx, r.keyWorkflow(wf.ID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return api.ErrWorkflowNotFound
		}
		return err
	}
	var prev api.Workflow
	if err := json.Unmarshal(prevData, &prev); err != nil {
		return err
	}

	data, err := json.Marshal(wf)
	if err != nil {
		return err
	}

	if err := r.client.Set(ctx, r.keyWorkflow(wf.ID), data, 0).Err(); err != nil {
		return err
	}

	pipe := r.client.TxPipeline()
	if prev.State != wf.State {
		pipe.SRem(ctx, r.keyState(prev.State), wf.ID)
	}
	pipe.SAdd(ctx, r.keyAll(), wf.ID)
	pipe.SAdd(ctx, r.keyPipeline(wf.Pipeline), wf.ID)
	pipe.SAdd(ctx, r.keyState(wf.State), wf.ID)
	_, _ = pipe.Exec(ctx)

	return nil
}

func (r *RedisWorkflowStore) GetWorkflow(ctx context.Context, id string) (*api.Workflow, error) {
	data, err := r.client.Get(ctx, r.keyWorkflow(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, api.ErrWorkflowNotFound
		}
		return nil, err
	}

	var wf api.Workflow
	if err := json.Unmarshal(data, &wf); err != nil {
		return nil, err
	}
	return &wf, nil
}

func (r *RedisWorkflowStore) ListWorkflows(ctx context.Context, filter WorkflowFilter) ([]*api.Workflow, error) {
	var ids []string
	var err error

	switch {
	case filter.Pipeline != "" && filter.State != "":
		ids, err = r.client.SInter(ctx,
			r.keyPipeline(filter.Pipeline),
			r.keyState(filter.State),
		).Result()
	case filter.Pipeline != "":
		ids, err = r.client.SMembers(ctx, r.keyPipeline(filter.Pipeline)).Result()
	case filter.State != "":
		ids, err = r.client.SMembers(ctx, r.keyState(filter.State)).Result()
	default:
		ids, err = r.client.SMembers(ctx, r.keyAll()).Result()
	}

	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []*api.Workflow{}, nil
		}
		return nil, err
	}
	if len(ids) == 0 {
		return []*api.Workflow{}, nil
	}

	pipe := r.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.Get(ctx, r.keyWorkflow(id))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}

	var workflows []*api.Workflow
	for _, cmd := range cmds {
		data, err := cmd.Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return nil, err
		}
		var wf api.Workflow
		if err := json.Unmarshal(data, &wf); err != nil {
			return nil, err
		}
		if filter.State != "" && wf.State != filter.State {
			continue
		}
		if filter.Pipeline != "" && wf.Pipeline != filter.Pipeline {
			continue
		}
		workflows = append(workflows, &wf)
	}

	return workflows, nil
}

var (
	// Lua script for acquiring a lease with re-entrant behavior for the same owner.
	// Returns 1 if acquired/refreshed, 0 otherwise.
	redisLeaseAcquireLua = `
local key = KEYS[1]
local owner = ARGV[1]
local ttlms = tonumber(ARGV[2])

local cur = redis.call('GET', key)
if not cur then
	redis.call('PSETEX', key, ttlms, owner)
	return 1
end
if cur == owner then
	redis.call('PEXPIRE', key, ttlms)
	return 1
end
return 0
`

	// Lua script for renewing a lease. Returns 1 if renewed, 0 otherwise.
	redisLeaseRenewLua = `
local key = KEYS[1]
local owner = ARGV[1]
local ttlms = tonumber(ARGV[2])

local cur = redis.call('GET', key)
if not cur then
	return 0
end
if cur == owner then
	redis.call('PEXPIRE', key, ttlms)
	return 1
end
return 0
`

	// Lua script for releasing a lease. Returns 1 if released, 0 otherwise.
	redisLeaseReleaseLua = `
local key = KEYS[1]
local owner = ARGV[1]

local cur = redis.call('GET', key)
if not cur then
	return 0
end
if cur == owner then
	redis.call('DEL', key)
	return 1
end
return 0
`
)

func (r *RedisWorkflowStore) TryAcquireLease(ctx context.Context, workflowID, owner string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return false, errors.New("ttl must be > 0")
	}
	res, err := r.client.Eval(ctx, redisLeaseAcquireLua, []string{r.keyLease(workflowID)}, owner, ttl.Milliseconds()).Result()
	if err != nil {
		return false, err
	}
	switch v := res.(type) {
	case int64:
		return v == 1, nil
	case int:
		return v == 1, nil
	case string:
		return v == "1", nil
	default:
		return false, nil
	}
}

func (r *RedisWorkflowStore) RenewLease(ctx context.Context, workflowID, owner string, ttl time.Duration) error {
	if ttl <= 0 {
		return errors.New("ttl must be > 0")
	}
	res, err := r.client.Eval(ctx, redisLeaseRenewLua, []string{r.keyLease(workflowID)}, owner, ttl.Milliseconds()).Result()
	if err != nil {
		return err
	}
	ok := false
	switch v := res.(type) {
	case int64:
		ok = v == 1
	case int:
		ok = v == 1
	case string:
		ok = v == "1"
	}
	if !ok {
		return api.ErrWorkflowLeaseHeld
	}
	return nil
}

func (r *RedisWorkflowStore) ReleaseLease(ctx context.Context, workflowID, owner string) error {
	// Idempotent: if the lease doesn't exist, succeed.
	res, err := r.client.Eval(ctx, redisLeaseReleaseLua, []string{r.keyLease(workflowID)}, owner).Result()
	if err != nil {
		return err
	}
	if v, ok := res.(int64); ok && v == 0 {
		// Either missing or owned by someone else; distinguish by
		// checking the current value.
		cur, gerr := r.client.Get(ctx, r.keyLease(workflowID)).Result()
		if errors.Is(gerr, redis.Nil) {
			return nil
		}
		if gerr != nil {
			return gerr
		}
		if cur != owner && cur != "" {
			return api.ErrWorkflowLeaseHeld
		}
	}
	return nil
}
