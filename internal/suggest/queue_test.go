package suggest

import (
	"math/rand"
	"testing"
)

func add3(q *Queue) (Suggestion, Suggestion, Suggestion) {
	s1 := q.Add(Suggestion{Text: "s1", Source: SourceAI})
	s2 := q.Add(Suggestion{Text: "s2", Source: SourceManual})
	s3 := q.Add(Suggestion{Text: "s3", Source: SourcePrebaked})
	return s1, s2, s3
}

func TestAddSetsIDAndTimestamp(t *testing.T) {
	q := NewQueue()
	s := q.Add(Suggestion{Text: "chart", Source: SourceAI})
	if s.ID == "" || s.Timestamp.IsZero() {
		t.Fatalf("add did not fill metadata: %+v", s)
	}
	cur, ok := q.Current()
	if !ok || cur.ID != s.ID {
		t.Fatalf("current = %+v, %v", cur, ok)
	}
}

func TestNextDismissSequence(t *testing.T) {
	q := NewQueue()
	s1, s2, s3 := add3(q)

	if cur, _ := q.Current(); cur.ID != s1.ID {
		t.Fatalf("current after adds = %s, want s1", cur.Text)
	}
	q.Next()
	if cur, ok := q.Next(); !ok || cur.ID != s3.ID {
		t.Fatalf("current after two next = %s, want s3", cur.Text)
	}
	if !q.Dismiss(s3.ID) {
		t.Fatal("dismiss s3 failed")
	}
	if q.Len() != 2 {
		t.Fatalf("len = %d, want 2", q.Len())
	}
	if cur, _ := q.Current(); cur.ID != s2.ID {
		t.Fatalf("current after dismiss = %s, want s2", cur.Text)
	}
}

func TestPointerWrapsBothDirections(t *testing.T) {
	q := NewQueue()
	s1, _, s3 := add3(q)

	if cur, _ := q.Prev(); cur.ID != s3.ID {
		t.Fatalf("prev from head = %s, want s3", cur.Text)
	}
	if cur, _ := q.Next(); cur.ID != s1.ID {
		t.Fatalf("next from tail = %s, want s1", cur.Text)
	}
}

func TestOperationsOnEmptyQueue(t *testing.T) {
	q := NewQueue()
	if _, ok := q.Next(); ok {
		t.Fatal("next on empty returned an item")
	}
	if _, ok := q.Prev(); ok {
		t.Fatal("prev on empty returned an item")
	}
	if _, ok := q.Current(); ok {
		t.Fatal("current on empty returned an item")
	}
	if q.Dismiss("missing") {
		t.Fatal("dismiss of missing id succeeded")
	}
	if !q.valid() {
		t.Fatal("invariant broken on empty queue")
	}
}

func TestAcceptReturnsRemovedItem(t *testing.T) {
	q := NewQueue()
	_, s2, _ := add3(q)
	got, ok := q.Accept(s2.ID)
	if !ok || got.Text != "s2" {
		t.Fatalf("accept = %+v, %v", got, ok)
	}
	if q.Len() != 2 {
		t.Fatalf("len after accept = %d", q.Len())
	}
	if _, ok := q.Accept(s2.ID); ok {
		t.Fatal("accepted the same id twice")
	}
}

func TestClearResetsPointer(t *testing.T) {
	q := NewQueue()
	add3(q)
	q.Next()
	q.Clear()
	if q.Len() != 0 {
		t.Fatalf("len after clear = %d", q.Len())
	}
	if !q.valid() {
		t.Fatal("invariant broken after clear")
	}
	s := q.Add(Suggestion{Text: "fresh"})
	if cur, _ := q.Current(); cur.ID != s.ID {
		t.Fatal("pointer not reset by clear")
	}
}

func TestPointerInvariantUnderRandomOps(t *testing.T) {
	q := NewQueue()
	rng := rand.New(rand.NewSource(1))
	var ids []string

	for i := 0; i < 2000; i++ {
		switch rng.Intn(5) {
		case 0:
			s := q.Add(Suggestion{Text: "x", Source: SourceAI})
			ids = append(ids, s.ID)
		case 1:
			q.Next()
		case 2:
			q.Prev()
		case 3:
			if len(ids) > 0 {
				j := rng.Intn(len(ids))
				q.Dismiss(ids[j])
				ids = append(ids[:j], ids[j+1:]...)
			}
		case 4:
			if len(ids) > 0 {
				j := rng.Intn(len(ids))
				q.Accept(ids[j])
				ids = append(ids[:j], ids[j+1:]...)
			}
		}
		if !q.valid() {
			t.Fatalf("pointer invariant broken at op %d (len=%d)", i, q.Len())
		}
	}
}
