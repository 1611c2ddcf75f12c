// Package diag is the defect model of the folding engine.
//
// The engine never fails a reconcile because of a misbehaving analyzer or a
// stale element. Instead it reports a Diagnostic and carries on: descriptors
// outside the document are skipped, groups that no longer match are rebuilt,
// signatures that do not restore are logged. Producers talk to a Reporter;
// BagReporter collects into a Bag, DedupReporter drops repeats and
// NopReporter swallows everything.
//
// Package diag does no IO. Rendering for the CLI lives in FormatShort and
// internal/foldfmt.
package diag
