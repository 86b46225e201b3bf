// Package log is the leveled logging facade used by the graph runtime, the
// research workflow and the HTTP service.
//
// The default implementation is backed by github.com/kataras/golog. Callers
// either pass a Logger explicitly or use the package-level helpers:
//
//	log.SetLogLevel(log.LogLevelDebug)
//	log.Info("thread %s resumed", threadID)
//
// Tests that do not care about output use &log.NoOpLogger{}.
package log
