package memory

import (
	"testing"
	"time"
)

func TestStore_PutGet(t *testing.T) {
	s := NewStore(10, time.Hour)
	defer s.Close()

	s.Put(Run{ID: "r1", Stages: []string{"axiomatic"}})

	run, ok := s.Get("r1")
	if !ok {
		t.Fatal("expected run r1")
	}
	if run.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}
	if _, ok := s.Get("missing"); ok {
		t.Error("expected missing run to be absent")
	}

	s.Delete("r1")
	if s.Len() != 0 {
		t.Errorf("expected empty store, got %d runs", s.Len())
	}
}

func TestStore_Expiry(t *testing.T) {
	s := NewStore(10, time.Minute)
	defer s.Close()

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	s.Put(Run{ID: "old"})
	now = now.Add(2 * time.Minute)
	s.Put(Run{ID: "new"})

	if _, ok := s.Get("old"); ok {
		t.Error("expected expired run to be hidden")
	}
	s.cleanup()
	if s.Len() != 1 {
		t.Errorf("expected 1 run after cleanup, got %d", s.Len())
	}
}

func TestStore_EvictsOldest(t *testing.T) {
	s := NewStore(2, 0)
	defer s.Close()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		s.Put(Run{ID: id, CreatedAt: base.Add(time.Duration(i) * time.Second)})
	}

	if _, ok := s.Get("a"); ok {
		t.Error("expected oldest run to be evicted")
	}
	for _, id := range []string{"b", "c"} {
		if _, ok := s.Get(id); !ok {
			t.Errorf("expected run %s", id)
		}
	}
	s.Close()
	s.Close()
}
