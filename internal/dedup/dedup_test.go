package dedup

import (
	"sync"
	"testing"

	"github.com/janekbaraniewski/ccost/internal/core"
)

func TestAdmit_FirstWins(t *testing.T) {
	s := New()
	if !s.Admit(core.SourceClaude, "msg_1:req_1") {
		t.Fatal("first occurrence rejected")
	}
	if s.Admit(core.SourceClaude, "msg_1:req_1") {
		t.Fatal("second occurrence admitted")
	}
	if got := s.Dropped(); got != 1 {
		t.Fatalf("dropped = %d, want 1", got)
	}
}

func TestAdmit_EmptyKeyNeverDeduplicated(t *testing.T) {
	s := New()
	for i := 0; i < 3; i++ {
		if !s.Admit(core.SourceClaude, "") {
			t.Fatalf("empty key rejected on attempt %d", i)
		}
	}
	if s.Len() != 0 || s.Dropped() != 0 {
		t.Fatalf("len = %d dropped = %d, want 0 and 0", s.Len(), s.Dropped())
	}
}

func TestAdmit_KeysScopedBySource(t *testing.T) {
	s := New()
	if !s.Admit(core.SourceClaude, "abc:80") || !s.Admit(core.SourceCodex, "abc:80") {
		t.Fatal("same key in different sources should both be admitted")
	}
}

func TestFilter_PreservesOrder(t *testing.T) {
	s := New()
	in := []core.UsageEvent{
		{Source: core.SourceClaude, DedupKey: "a", Model: "first"},
		{Source: core.SourceClaude, DedupKey: "b"},
		{Source: core.SourceClaude, DedupKey: "a", Model: "second"},
		{Source: core.SourceClaude, DedupKey: ""},
	}
	out := s.Filter(in)
	if len(out) != 3 {
		t.Fatalf("len = %d, want 3", len(out))
	}
	if out[0].Model != "first" || out[1].DedupKey != "b" || out[2].DedupKey != "" {
		t.Fatalf("unexpected result %+v", out)
	}
	if in[2].Model != "second" {
		t.Fatal("input slice was modified")
	}
}

func TestAdmit_Concurrent(t *testing.T) {
	s := New()
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		admitted int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.Admit(core.SourceCodex, "sess:42") {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if admitted != 1 {
		t.Fatalf("admitted = %d, want 1", admitted)
	}
	if s.Dropped() != 15 {
		t.Fatalf("dropped = %d, want 15", s.Dropped())
	}
}
