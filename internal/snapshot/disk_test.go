package snapshot

import (
	"os"
	"path/filepath"
	"testing"

	"foldkit/internal/editor"
	"foldkit/internal/fold"
	"foldkit/internal/reconcile"
	"foldkit/internal/signature"
	"foldkit/internal/source"
)

func TestDiskCacheRoundTrip(t *testing.T) {
	cache, err := OpenDiskCache(t.TempDir(), "foldkit")
	if err != nil {
		t.Fatalf("OpenDiskCache: %v", err)
	}
	v := openView(t, program)
	reconciled(t, v, reconcile.ApplyDefaults)
	v.Model().SetExpanded(v.Model().RegionAtLine(3), false)
	rec := NewRecord(v.Document(), Capture(v.Document(), []*editor.View{v}, nil), v, 0)
	if err := cache.Put(rec); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, ok, err := cache.Get(v.Document().Path())
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if len(got.Elements) != 1 || got.Elements[0].Expanded {
		t.Fatalf("elements %+v", got.Elements)
	}
	if len(got.Zombies) != len(v.Model().Live()) {
		t.Fatalf("zombies %d, live %d", len(got.Zombies), len(v.Model().Live()))
	}
	if _, ok, _ := cache.Get("other.cy"); ok {
		t.Fatal("record found for another path")
	}
	if err := cache.Delete(v.Document().Path()); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := cache.Get(v.Document().Path()); ok {
		t.Fatal("record survived Delete")
	}
}

func TestDiskCacheIgnoresGarbage(t *testing.T) {
	cache, err := OpenDiskCache(t.TempDir(), "foldkit")
	if err != nil {
		t.Fatalf("OpenDiskCache: %v", err)
	}
	p := cache.pathFor("a.cy")
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte("not msgpack"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, ok, err := cache.Get("a.cy"); ok || err == nil {
		t.Fatalf("garbage decoded: ok=%v err=%v", ok, err)
	}
}

func TestZombiesAreReusedOnReopen(t *testing.T) {
	v := openView(t, program)
	reconciled(t, v, reconcile.ApplyDefaults)
	m := v.Model()
	m.SetExpanded(m.RegionAtLine(3), false)
	rec := NewRecord(v.Document(), &Snapshot{}, v, 0)
	want := len(m.Live())

	again := openView(t, program)
	if n := SeedZombies(again, rec); n != want {
		t.Fatalf("seeded %d zombies, want %d", n, want)
	}
	if len(again.Model().Live()) != 0 {
		t.Fatal("zombies are visible")
	}
	st := reconciled(t, again, reconcile.ApplyDefaults)
	if st.Reused != want || st.Created != 0 {
		t.Fatalf("stats %+v, want %d reused", st, want)
	}
	fn := again.Model().RegionAtLine(3)
	if fn.Expanded() || !fn.Has(fold.Bitten) {
		t.Fatalf("revived region %v lost its saved state", fn)
	}
	if st, _ := Apply(again, &Snapshot{Entries: []Entry{BySignature{Signature: mustSig(t, fn), Expanded: true}}}, signature.Default(), nil); st.Restored != 0 {
		t.Fatalf("snapshot overrode a revived region: %+v", st)
	}

	edited := openDoc(t, source.NewDocument("s.cy", []byte(program+"\n")))
	if n := SeedZombies(edited, rec); n != 0 {
		t.Fatalf("seeded %d zombies into changed content", n)
	}
}

func mustSig(t *testing.T, r *fold.Region) string {
	t.Helper()
	s, ok := r.Signature().Known()
	if !ok {
		t.Fatalf("%v has no signature", r)
	}
	return s
}

func TestDropAll(t *testing.T) {
	cache, err := OpenDiskCache(t.TempDir(), "foldkit")
	if err != nil {
		t.Fatalf("OpenDiskCache: %v", err)
	}
	for _, p := range []string{"a.cy", "b.cy"} {
		if err := cache.Put(&Record{Path: p}); err != nil {
			t.Fatalf("Put %s: %v", p, err)
		}
	}
	if err := cache.DropAll(); err != nil {
		t.Fatalf("DropAll: %v", err)
	}
	for _, p := range []string{"a.cy", "b.cy"} {
		if _, ok, _ := cache.Get(p); ok {
			t.Fatalf("record %s survived DropAll", p)
		}
	}
	if err := cache.Put(&Record{Path: "a.cy"}); err != nil {
		t.Fatalf("Put after DropAll: %v", err)
	}
	if _, ok, err := cache.Get("a.cy"); !ok || err != nil {
		t.Fatalf("Get after DropAll: ok=%v err=%v", ok, err)
	}
}
