// Package journal keeps an optional audit trail of admission decisions.
//
// A Recorder is plugged into the limits manager as its DecisionRecorder.
// Each decision selected by the recording mode becomes a Record that is
// queued and written to a Storage backend by a background goroutine, so
// a slow or failing backend never delays an admission check:
//
//	store, err := storage.Open(&cfg.Journal, logger)
//	rec := journal.NewRecorder(store, journal.RecorderConfigFrom(&cfg.Journal))
//	defer rec.Close()
//
// The journal holds decisions only. Limiter counters are never persisted.
package journal
