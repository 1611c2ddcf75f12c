// Package trace records what the folding engine does and how long it takes.
//
// Tracing is switched on from the command line:
//
//	foldkit scan --trace=- --trace-level=phase ./src
//
// # Tracers
//
//   - Nop: disabled tracing, zero overhead
//   - StreamTracer: writes every event immediately (file or stderr)
//   - RingTracer: keeps the last N events for a dump on failure
//   - MultiTracer: fans out to several tracers
//
// # Levels and scopes
//
// LevelPhase emits driver and pass events (a whole reconcile, a descriptor
// build). LevelDetail adds per-region events: removals, zombie reuse and
// signature validation. LevelDebug emits everything.
//
// Tracers travel through context:
//
//	ctx = trace.WithTracer(ctx, tracer)
//	ctx, span := trace.Start(ctx, trace.ScopePass, "reconcile", doc.Path())
//	defer span.End("")
package trace
