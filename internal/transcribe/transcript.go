package transcribe

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Segment is one recognized span of speech. Segments are append-only
// and ordered by arrival.
type Segment struct {
	ID        string
	Text      string
	Timestamp time.Time
}

// Transcript is the per-session rolling transcript buffer.
type Transcript struct {
	mu       sync.Mutex
	segments []Segment
	clock    func() time.Time
}

func NewTranscript() *Transcript {
	return &Transcript{clock: time.Now}
}

// Append records a recognized text span. Empty or whitespace-only
// text is dropped.
func (t *Transcript) Append(text string) (Segment, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Segment{}, false
	}
	seg := Segment{
		ID:        uuid.NewString(),
		Text:      text,
		Timestamp: t.clock(),
	}
	t.mu.Lock()
	t.segments = append(t.segments, seg)
	t.mu.Unlock()
	return seg, true
}

func (t *Transcript) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.segments)
}

// FullText joins all segments in arrival order.
func (t *Transcript) FullText() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return joinSegments(t.segments)
}

// WindowText joins segments whose timestamp falls within the trailing
// window.
func (t *Transcript) WindowText(window time.Duration) string {
	cutoff := t.clock().Add(-window)
	t.mu.Lock()
	defer t.mu.Unlock()
	i := len(t.segments)
	for i > 0 && !t.segments[i-1].Timestamp.Before(cutoff) {
		i--
	}
	return joinSegments(t.segments[i:])
}

// TextFrom joins segments starting at index from and returns the text
// plus the index one past the last segment included. Callers use the
// returned index to scan incrementally.
func (t *Transcript) TextFrom(from int) (string, int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if from < 0 {
		from = 0
	}
	if from >= len(t.segments) {
		return "", len(t.segments)
	}
	return joinSegments(t.segments[from:]), len(t.segments)
}

// Reset clears all segments for a new session.
func (t *Transcript) Reset() {
	t.mu.Lock()
	t.segments = nil
	t.mu.Unlock()
}

func joinSegments(segs []Segment) string {
	if len(segs) == 0 {
		return ""
	}
	parts := make([]string, len(segs))
	for i, s := range segs {
		parts[i] = s.Text
	}
	return strings.Join(parts, " ")
}
