// Package suggest holds the ordered queue of candidate overlay
// suggestions and its current-item pointer.
package suggest

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/davidgeorgehope/hotmike.app/internal/logging"
)

var log = logging.L("suggest")

// Source identifies where a suggestion came from.
type Source string

const (
	SourceAI       Source = "ai"
	SourceManual   Source = "manual"
	SourcePrebaked Source = "prebaked"
)

// Suggestion is one candidate overlay.
type Suggestion struct {
	ID          string
	Text        string
	ImageURL    string
	SearchQuery string
	Source      Source
	Timestamp   time.Time
}

// Queue is an ordered suggestion list with a pointer that always
// satisfies 0 <= current < len, or current == 0 when empty.
type Queue struct {
	mu      sync.Mutex
	items   []Suggestion
	current int
	clock   func() time.Time
}

func NewQueue() *Queue {
	return &Queue{clock: time.Now}
}

// Add appends a suggestion and returns it with its assigned id and
// timestamp filled in.
func (q *Queue) Add(s Suggestion) Suggestion {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.Timestamp.IsZero() {
		s.Timestamp = q.clock()
	}
	q.mu.Lock()
	q.items = append(q.items, s)
	q.mu.Unlock()
	log.Debug("suggestion added", "source", string(s.Source), "text", s.Text)
	return s
}

// Current returns the item under the pointer.
func (q *Queue) Current() (Suggestion, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return Suggestion{}, false
	}
	return q.items[q.current], true
}

// Len returns the queue length.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Accept removes the matching suggestion, returning it for use. The
// pointer clamps backward, never out of bounds.
func (q *Queue) Accept(id string) (Suggestion, bool) {
	return q.remove(id)
}

// Dismiss removes the matching suggestion without using it.
func (q *Queue) Dismiss(id string) bool {
	_, ok := q.remove(id)
	return ok
}

func (q *Queue) remove(id string) (Suggestion, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, s := range q.items {
		if s.ID != id {
			continue
		}
		q.items = append(q.items[:i], q.items[i+1:]...)
		if i < q.current || q.current >= len(q.items) {
			q.current--
		}
		if q.current < 0 {
			q.current = 0
		}
		return s, true
	}
	return Suggestion{}, false
}

// Next advances the pointer, wrapping at the end. No-op when empty.
func (q *Queue) Next() (Suggestion, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return Suggestion{}, false
	}
	q.current = (q.current + 1) % len(q.items)
	return q.items[q.current], true
}

// Prev moves the pointer back, wrapping at the start. No-op when
// empty.
func (q *Queue) Prev() (Suggestion, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return Suggestion{}, false
	}
	q.current = (q.current - 1 + len(q.items)) % len(q.items)
	return q.items[q.current], true
}

// Clear empties the queue and resets the pointer.
func (q *Queue) Clear() {
	q.mu.Lock()
	q.items = nil
	q.current = 0
	q.mu.Unlock()
}

// Items returns a snapshot of the queue in order.
func (q *Queue) Items() []Suggestion {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Suggestion, len(q.items))
	copy(out, q.items)
	return out
}

// valid reports whether the pointer invariant holds. Test hook.
func (q *Queue) valid() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return q.current == 0
	}
	return q.current >= 0 && q.current < len(q.items)
}
