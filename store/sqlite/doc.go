// Package sqlite stores graph checkpoints in a single SQLite file using
// github.com/mattn/go-sqlite3. It is the default durable backend for a single
// digestai instance.
//
//	cps, err := sqlite.NewSqliteCheckpointStore(sqlite.SqliteOptions{Path: "./digestai.db"})
//	if err != nil {
//		return err
//	}
//	defer cps.Close()
package sqlite
