package record

import (
	"errors"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/davidgeorgehope/hotmike.app/internal/media"
)

type stubMixer struct {
	mu        sync.Mutex
	takeCalls int
	closed    bool
	data      []byte
}

func (m *stubMixer) AddSource(h *media.Handle) int { return 1 }

func (m *stubMixer) TakeSlice() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.takeCalls++
	out := make([]byte, len(m.data))
	copy(out, m.data)
	return out
}

func (m *stubMixer) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
}

func (m *stubMixer) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

type stubSink struct {
	mu       sync.Mutex
	slices   []Slice
	finals   []Recording
	writeErr error
}

func (s *stubSink) WriteSlice(sl Slice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return s.writeErr
	}
	s.slices = append(s.slices, sl)
	return nil
}

func (s *stubSink) Finalize(rec Recording) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finals = append(s.finals, rec)
	return nil
}

func (s *stubSink) sliceCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.slices)
}

type sessionClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *sessionClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *sessionClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestSession(t *testing.T, sink SliceSink, opts Options) (*Session, *sessionClock, *stubMixer) {
	t.Helper()
	clk := &sessionClock{now: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)}
	mixer := &stubMixer{}
	s := NewSession(sink, opts)
	s.clock = clk.Now
	s.newMixer = func() audioMixer { return mixer }
	return s, clk, mixer
}

func TestDurationExcludesPausedTime(t *testing.T) {
	sink := &stubSink{}
	s, clk, _ := newTestSession(t, sink, Options{})

	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	clk.Advance(5 * time.Second)
	s.Pause()
	clk.Advance(3 * time.Second)
	s.Resume()
	clk.Advance(2 * time.Second)

	if got := s.Duration(); got != 7*time.Second {
		t.Fatalf("duration while recording = %v, want 7s", got)
	}

	rec, err := s.Stop()
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if rec.Duration != 7*time.Second {
		t.Fatalf("final duration = %v, want 7s (wall clock was 10s)", rec.Duration)
	}
}

func TestDurationFrozenWhilePaused(t *testing.T) {
	s, clk, _ := newTestSession(t, &stubSink{}, Options{})
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	clk.Advance(4 * time.Second)
	s.Pause()
	before := s.Duration()
	clk.Advance(90 * time.Second)
	if got := s.Duration(); got != before {
		t.Fatalf("duration moved while paused: %v -> %v", before, got)
	}
}

func TestInvalidTransitionsAreNoOps(t *testing.T) {
	s, _, _ := newTestSession(t, &stubSink{}, Options{})

	s.Pause()
	s.Resume()
	if got := s.State(); got != StateIdle {
		t.Fatalf("state after pause/resume on idle = %s", got)
	}
	if _, err := s.Stop(); !errors.Is(err, ErrNotRecording) {
		t.Fatalf("stop on idle err = %v", err)
	}
	if err := s.Clear(); !errors.Is(err, ErrNotStopped) {
		t.Fatalf("clear on idle err = %v", err)
	}

	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.Start(); !errors.Is(err, ErrNotIdle) {
		t.Fatalf("second start err = %v", err)
	}
	s.Resume() // no-op: not paused
	if got := s.State(); got != StateRecording {
		t.Fatalf("state after resume while recording = %s", got)
	}
	if _, err := s.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func TestClearResetsStoppedSessionForReuse(t *testing.T) {
	s, clk, _ := newTestSession(t, &stubSink{}, Options{})
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	firstID := s.ID()
	clk.Advance(time.Second)
	if _, err := s.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := s.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if got := s.State(); got != StateIdle {
		t.Fatalf("state after clear = %s", got)
	}
	if s.ID() == firstID {
		t.Fatal("clear did not issue a fresh session id")
	}
	if err := s.Start(); err != nil {
		t.Fatalf("restart after clear: %v", err)
	}
	if _, err := s.Stop(); err != nil {
		t.Fatalf("stop after restart: %v", err)
	}
}

func TestSlicesAreOrderedAndCarryAudio(t *testing.T) {
	sink := &stubSink{}
	var audioSlices int
	var mu sync.Mutex
	s, clk, mixer := newTestSession(t, sink, Options{
		SliceInterval: time.Second,
		OnAudioSlice: func(pcm []byte) {
			mu.Lock()
			audioSlices++
			mu.Unlock()
		},
	})
	mixer.data = make([]byte, 320)

	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	frame := image.NewRGBA(image.Rect(0, 0, 32, 18))
	s.AddFrame(frame)
	clk.Advance(1100 * time.Millisecond)
	s.tick(clk.Now())
	s.AddFrame(frame)
	s.AddFrame(frame)
	clk.Advance(1100 * time.Millisecond)
	s.tick(clk.Now())
	rec, err := s.Stop()
	if err != nil {
		t.Fatalf("stop: %v", err)
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.slices) < 2 {
		t.Fatalf("got %d slices, want at least 2", len(sink.slices))
	}
	var frameCounts []int
	for i, sl := range sink.slices {
		if sl.Seq != i {
			t.Fatalf("slice %d has seq %d", i, sl.Seq)
		}
		if len(sl.Audio) == 0 {
			t.Fatalf("slice %d has no audio", i)
		}
		if sl.Frames > 0 {
			frameCounts = append(frameCounts, sl.Frames)
		}
	}
	// The loop's own ticker may cut extra audio-only slices; the
	// frame-bearing ones must arrive in submission order.
	if len(frameCounts) != 2 || frameCounts[0] != 1 || frameCounts[1] != 2 {
		t.Fatalf("frame-bearing slice counts = %v, want [1 2]", frameCounts)
	}
	if rec.Slices != len(sink.slices) {
		t.Fatalf("recording reports %d slices, sink saw %d", rec.Slices, len(sink.slices))
	}
	mu.Lock()
	if audioSlices != len(sink.slices) {
		t.Fatalf("audio callback fired %d times, want %d", audioSlices, len(sink.slices))
	}
	mu.Unlock()
	if len(sink.finals) != 1 {
		t.Fatalf("finalize called %d times", len(sink.finals))
	}
}

func TestFramesDroppedWhilePaused(t *testing.T) {
	sink := &stubSink{}
	s, clk, mixer := newTestSession(t, sink, Options{SliceInterval: time.Second})
	mixer.data = nil

	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	s.Pause()
	before := sink.sliceCount()
	frame := image.NewRGBA(image.Rect(0, 0, 32, 18))
	s.AddFrame(frame)
	clk.Advance(2 * time.Second)
	s.tick(clk.Now())
	if got := sink.sliceCount(); got != before {
		t.Fatalf("slices emitted while paused: %d -> %d", before, got)
	}
	s.Resume()
	s.AddFrame(frame)
	clk.Advance(1100 * time.Millisecond)
	s.tick(clk.Now())
	if sink.sliceCount() == before {
		t.Fatal("no slice after resume")
	}
	if _, err := s.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func TestStopClosesMixGraph(t *testing.T) {
	s, clk, mixer := newTestSession(t, &stubSink{}, Options{})
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	clk.Advance(time.Second)
	if _, err := s.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if !mixer.isClosed() {
		t.Fatal("mix graph not closed on stop")
	}
}

func TestEncoderFailureIsFatal(t *testing.T) {
	errCh := make(chan error, 1)
	s, _, mixer := newTestSession(t, &stubSink{}, Options{
		OnError: func(err error) { errCh <- err },
	})
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	s.AddFrame(nil) // encoder rejects nil frames

	select {
	case err := <-errCh:
		if err == nil {
			t.Fatal("nil error from OnError")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("OnError not called for encoder failure")
	}
	if got := s.State(); got != StateStopped {
		t.Fatalf("state after encoder failure = %s", got)
	}
	if !mixer.isClosed() {
		t.Fatal("mix graph leaked after failure")
	}
}

func TestSinkFailureIsFatal(t *testing.T) {
	sink := &stubSink{writeErr: errors.New("disk full")}
	errCh := make(chan error, 1)
	s, clk, mixer := newTestSession(t, sink, Options{
		SliceInterval: time.Second,
		OnError:       func(err error) { errCh <- err },
	})
	mixer.data = make([]byte, 64)

	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	clk.Advance(1100 * time.Millisecond)
	s.tick(clk.Now())

	select {
	case <-errCh:
	case <-time.After(2 * time.Second):
		t.Fatal("OnError not called for sink failure")
	}
	if got := s.State(); got != StateStopped {
		t.Fatalf("state after sink failure = %s", got)
	}
}

func TestStopSurfacesFinalSliceWriteError(t *testing.T) {
	sink := &stubSink{}
	s, clk, mixer := newTestSession(t, sink, Options{SliceInterval: time.Second})
	mixer.data = make([]byte, 64)

	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	clk.Advance(500 * time.Millisecond)

	// The write failure first appears on the final partial slice cut by
	// Stop, after the session has already left the recording state.
	sink.mu.Lock()
	sink.writeErr = errors.New("disk full")
	sink.mu.Unlock()

	rec, err := s.Stop()
	if err == nil {
		t.Fatal("stop swallowed final slice write error")
	}
	if !errors.Is(err, sink.writeErr) {
		t.Fatalf("stop err = %v, want wrapped %v", err, sink.writeErr)
	}
	if rec.ID == "" {
		t.Fatal("recording metadata missing despite write error")
	}
}
