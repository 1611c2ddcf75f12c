package editor

import (
	"context"
	"errors"
	"testing"
	"time"

	"foldkit/internal/lang/curly"
	"foldkit/internal/source"
	"foldkit/internal/tree"
)

func TestLoopRunsInOrder(t *testing.T) {
	l := NewLoop()
	var got []int
	l.Post(func() {
		got = append(got, 1)
		l.Post(func() { got = append(got, 3) })
	})
	l.Post(func() { got = append(got, 2) })
	if n := l.RunPending(); n != 3 {
		t.Fatalf("RunPending = %d, want 3", n)
	}
	if len(got) != 3 || got[0] != 1 || got[1] != 2 || got[2] != 3 {
		t.Fatalf("order = %v", got)
	}
}

func TestLoopDo(t *testing.T) {
	l := NewLoop()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	ran := false
	if err := l.Do(ctx, func() { ran = true }); err != nil || !ran {
		t.Fatalf("Do: %v ran=%v", err, ran)
	}
	l.Close()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
	if err := l.Do(ctx, func() {}); !errors.Is(err, ErrClosed) {
		t.Fatalf("Do after Close = %v, want ErrClosed", err)
	}
}

func newView(t *testing.T, text string) *View {
	t.Helper()
	doc := source.NewDocument("v.cy", []byte(text))
	return NewView(tree.NewFile(doc, curly.Parser{}))
}

func TestCaretFollowsEdits(t *testing.T) {
	tests := []struct {
		name  string
		caret uint32
		edit  source.Span
		text  string
		want  uint32
	}{
		{"insert before", 5, source.NewSpan(0, 0), "ab", 7},
		{"insert at caret", 5, source.NewSpan(5, 5), "ab", 5},
		{"delete after", 5, source.NewSpan(6, 8), "", 5},
		{"delete around", 5, source.NewSpan(3, 8), "x", 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newView(t, "0123456789")
			v.SetCaret(tt.caret)
			if err := v.Document().Replace(tt.edit, tt.text); err != nil {
				t.Fatalf("Replace: %v", err)
			}
			if got := v.Caret(); got != tt.want {
				t.Fatalf("caret = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestDisposeRunsHooksOnce(t *testing.T) {
	v := newView(t, "fn a() {\n}\n")
	calls := 0
	v.OnDispose(func() {
		calls++
		if v.Model().Disposed() {
			t.Error("hook ran after model teardown")
		}
	})
	v.Dispose()
	v.Dispose()
	if calls != 1 || !v.Disposed() || !v.Model().Disposed() {
		t.Fatalf("calls=%d disposed=%v", calls, v.Disposed())
	}
}

func TestSetCaretClamps(t *testing.T) {
	v := newView(t, "abc")
	v.SetCaret(99)
	if v.Caret() != 3 {
		t.Fatalf("caret = %d", v.Caret())
	}
}
