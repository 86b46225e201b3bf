// Package history persists browser-automation runs per user.
//
// A Record keeps the task, its NDJSON progress events, the final result or
// error and an optional base64 GIF recording. MemoryStore serves tests and
// single-process deployments; PostgresStore keeps records in the run_history
// and run_gifs tables.
package history
