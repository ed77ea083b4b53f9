// Package ledger persists per-call usage records for audit.
//
// The in-request token meter is scoped to one request and discarded with
// it. The ledger is the durable complement: every provider call becomes a
// row carrying request id, endpoint, engine stage, provider, model, token
// counts, cost and latency, queryable later by the usage CLI.
//
// # Recording
//
// Records flow through an asynchronous Recorder so the request path never
// waits on storage:
//
//	store, err := ledger.NewSQLiteStore(&ledger.SQLiteConfig{Path: "data/ledger.db"})
//	if err != nil {
//		return err
//	}
//	recorder := ledger.NewRecorder(store, ledger.DefaultConfig())
//	defer recorder.Close()
//
//	// Per request: bridge the meter's call events into the ledger
//	m.OnRecord(recorder.MeterHook(requestID, "/reasoning/deepthink", "deep-think"))
//
// A full buffer drops records with a warning rather than blocking;
// Close drains the buffer before shutdown.
//
// # Storage and retention
//
// Two backends implement Store: SQLite (WAL mode, indexed by time, provider
// and model) for production and an in-memory map for tests. The Pruner
// deletes records older than the retention window on a cron schedule.
package ledger
