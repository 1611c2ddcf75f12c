package diag

import (
	"foldkit/internal/source"
)

// Reporter: минимальный контракт получения дефектов.
// Реализации: BagReporter, DedupReporter, NopReporter, MultiReporter.
// Reporters may be called from builder goroutines and must be goroutine-safe.
type Reporter interface {
	Report(code Code, sev Severity, path string, primary source.Span, msg string, notes []Note)
}

// ReportBuilder accumulates a diagnostic before emitting it.
type ReportBuilder struct {
	reporter Reporter
	diag     Diagnostic
	emitted  bool
}

func NewReportBuilder(r Reporter, sev Severity, code Code, path string, primary source.Span, msg string) *ReportBuilder {
	return &ReportBuilder{
		reporter: r,
		diag:     New(sev, code, path, primary, msg),
	}
}

// ReportDefect is a shortcut using the code's default severity.
func ReportDefect(r Reporter, code Code, path string, primary source.Span, msg string) *ReportBuilder {
	return NewReportBuilder(r, code.Severity(), code, path, primary, msg)
}

func (b *ReportBuilder) WithNote(sp source.Span, msg string) *ReportBuilder {
	if b == nil {
		return nil
	}
	b.diag = b.diag.WithNote(sp, msg)
	return b
}

// Emit sends the diagnostic exactly once.
func (b *ReportBuilder) Emit() {
	if b == nil || b.emitted {
		return
	}
	if b.reporter != nil {
		d := b.diag
		b.reporter.Report(d.Code, d.Severity, d.Path, d.Primary, d.Message, d.Notes)
	}
	b.emitted = true
}

func (b *ReportBuilder) Diagnostic() Diagnostic {
	if b == nil {
		return Diagnostic{}
	}
	return b.diag
}

// BagReporter: адаптер, который пишет в *Bag.
type BagReporter struct{ Bag *Bag }

func (r BagReporter) Report(code Code, sev Severity, path string, primary source.Span, msg string, notes []Note) {
	if r.Bag == nil {
		return
	}
	r.Bag.Add(Diagnostic{
		Severity: sev, Code: code, Message: msg,
		Path: path, Primary: primary, Notes: notes,
	})
}

// NopReporter drops everything.
type NopReporter struct{}

func (NopReporter) Report(Code, Severity, string, source.Span, string, []Note) {}

// MultiReporter fans out to several reporters.
type MultiReporter []Reporter

func (m MultiReporter) Report(code Code, sev Severity, path string, primary source.Span, msg string, notes []Note) {
	for _, r := range m {
		if r != nil {
			r.Report(code, sev, path, primary, msg, notes)
		}
	}
}

// FuncReporter adapts a function, e.g. a logf sink.
type FuncReporter func(d Diagnostic)

func (f FuncReporter) Report(code Code, sev Severity, path string, primary source.Span, msg string, notes []Note) {
	if f == nil {
		return
	}
	f(Diagnostic{Severity: sev, Code: code, Message: msg, Path: path, Primary: primary, Notes: notes})
}
