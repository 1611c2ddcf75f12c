package trace

import (
	"strconv"
	"sync"
	"time"
)

// Probe reports engine state for a heartbeat: open views, queued loop
// tasks and the like.
type Probe func() map[string]string

// Heartbeat emits liveness events while a long command runs. A heartbeat
// with no span end in between points at a stuck pass.
type Heartbeat struct {
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// StartHeartbeat emits an event every interval until Stop. probe may be
// nil. It returns nil when tracing is off or interval <= 0.
func StartHeartbeat(t Tracer, interval time.Duration, probe Probe) *Heartbeat {
	if t == nil || !t.Enabled() || interval <= 0 {
		return nil
	}
	h := &Heartbeat{stop: make(chan struct{}), done: make(chan struct{})}
	go h.run(t, interval, probe)
	return h
}

func (h *Heartbeat) run(t Tracer, interval time.Duration, probe Probe) {
	defer close(h.done)
	tick := time.NewTicker(interval)
	defer tick.Stop()
	for n := 1; ; n++ {
		select {
		case <-h.stop:
			return
		case now := <-tick.C:
			ev := &Event{
				Time:   now,
				Seq:    NextSeq(),
				Kind:   KindHeartbeat,
				Scope:  ScopeDriver,
				Name:   "heartbeat",
				Detail: "#" + strconv.Itoa(n),
			}
			if probe != nil {
				ev.Extra = probe()
			}
			t.Emit(ev)
		}
	}
}

// Stop ends the heartbeat and waits for its goroutine. Safe on nil and
// safe to call twice.
func (h *Heartbeat) Stop() {
	if h == nil {
		return
	}
	h.once.Do(func() { close(h.stop) })
	<-h.done
}
