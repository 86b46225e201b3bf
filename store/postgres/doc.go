// Package postgres stores graph checkpoints in PostgreSQL through a
// github.com/jackc/pgx/v5 pool. State, metadata and node lists are JSONB
// columns; checkpoints are indexed by (thread_id, version).
//
// Tests and callers that already own a pool use NewPostgresCheckpointStoreWithPool.
package postgres
