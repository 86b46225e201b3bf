// Package store persists graph checkpoints so that research threads survive
// interrupts, process restarts and horizontal scaling.
//
// A Checkpoint is written after every superstep. It carries the merged state,
// the nodes that produced it and the nodes scheduled next, which is all the
// runtime needs to resume a thread.
//
// Backends live in sub-packages:
//   - memory: process-local map, used by tests and the CLI
//   - file: one JSON document per checkpoint under a thread directory
//   - sqlite: single-file database via github.com/mattn/go-sqlite3
//   - postgres: github.com/jackc/pgx/v5 pool
//   - redis: github.com/redis/go-redis/v9 with per-thread index sets
//
// All backends return errors wrapping ErrCheckpointNotFound for unknown IDs and
// implement LatestGetter.
package store
