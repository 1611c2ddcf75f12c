package observ

import (
	"errors"
	"strings"
	"sync"
	"testing"
)

func TestReportMergesPhases(t *testing.T) {
	tm := NewTimer()
	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = tm.Measure("reconcile", func() error { return nil })
		}()
	}
	wg.Wait()
	_ = tm.Measure("session", func() error { return errors.New("disk") })

	r := tm.Report()
	if len(r.Phases) != 2 || r.Phases[0].Name != "reconcile" || r.Phases[0].Count != 4 {
		t.Fatalf("report %+v", r)
	}
	if r.Phases[1].Note != "failed" {
		t.Fatalf("failed phase note %q", r.Phases[1].Note)
	}
	if s := tm.Summary(); !strings.Contains(s, "session") || !strings.Contains(s, "total") {
		t.Fatalf("summary:\n%s", s)
	}
}

func TestNilTimer(t *testing.T) {
	var tm *Timer
	tm.End(tm.Begin("x"), "")
	if r := tm.Report(); len(r.Phases) != 0 {
		t.Fatalf("nil timer reported %+v", r)
	}
}
