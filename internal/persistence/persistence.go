// Package persistence holds the workflow record and event stores: an
// in-memory implementation for embedded use and tests, SQLite and
// PostgreSQL for durable single-node and shared deployments, and Redis
// for setups that already run one. All stores write full snapshots, so
// a concurrent reader always sees state and stage data from the same
// write.
package persistence

// Persistence bundles the store interfaces so the engine can depend on
// a single abstraction.
type Persistence struct {
	Workflows WorkflowStore
	Events    EventStore
}
