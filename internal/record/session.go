// Package record drives capture of the composited video and mixed
// audio into sliced, encoded output.
package record

import (
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/davidgeorgehope/hotmike.app/internal/logging"
	"github.com/davidgeorgehope/hotmike.app/internal/media"
)

var log = logging.L("record")

// State is the recording session lifecycle state.
type State string

const (
	StateIdle      State = "idle"
	StateRecording State = "recording"
	StatePaused    State = "paused"
	StateStopped   State = "stopped"
)

var (
	ErrNotIdle      = errors.New("session is not idle")
	ErrNotRecording = errors.New("session is not recording")
	ErrNotStopped   = errors.New("session is not stopped")
)

const (
	// DefaultSliceInterval is how much media each emitted slice spans.
	DefaultSliceInterval = 1 * time.Second
	// durationTickInterval is the cadence of elapsed-time callbacks.
	durationTickInterval = 100 * time.Millisecond
)

// Slice is one interval's worth of encoded output, emitted in order.
type Slice struct {
	Seq    int
	Video  []byte // concatenated encoded frames
	Frames int
	Audio  []byte // 16-bit LE PCM, media.MixSampleRate, mono
	Start  time.Time
	End    time.Time
}

// Recording describes a finalized session.
type Recording struct {
	ID        string
	Duration  time.Duration
	Slices    int
	StartedAt time.Time
	EndedAt   time.Time
	Encoder   string
}

// SliceSink receives slices as they are cut and the final recording
// metadata on stop.
type SliceSink interface {
	WriteSlice(s Slice) error
	Finalize(rec Recording) error
}

// audioMixer is the slice of media.MixGraph the session drives. Its
// lifetime is exactly the session's: built on Start, closed on Stop.
type audioMixer interface {
	AddSource(h *media.Handle) int
	TakeSlice() []byte
	Close()
}

// Options configures a Session.
type Options struct {
	SliceInterval time.Duration
	Encoder       EncoderConfig

	// OnDuration is called every 100ms while recording with the
	// elapsed duration, which excludes time spent paused.
	OnDuration func(time.Duration)
	// OnAudioSlice receives each slice's raw PCM for live use
	// (transcription) in parallel with the sink.
	OnAudioSlice func(pcm []byte)
	// OnError is called once if the session dies from an encoder or
	// sink failure. The session is already stopped when it fires.
	OnError func(err error)
}

// Session is the recording orchestrator: idle → recording ⇄ paused →
// stopped, with Clear returning a stopped session to idle.
type Session struct {
	id   string
	opts Options
	sink SliceSink

	clock    func() time.Time
	newMixer func() audioMixer

	mu          sync.Mutex
	state       State
	enc         *VideoEncoder
	audio       audioMixer
	startedAt   time.Time
	resumedAt   time.Time
	accumulated time.Duration
	sliceStart  time.Time
	seq         int
	pending     []byte
	pendingN    int
	failure     error
	done        chan struct{}

	wg sync.WaitGroup
}

func NewSession(sink SliceSink, opts Options) *Session {
	if opts.SliceInterval <= 0 {
		opts.SliceInterval = DefaultSliceInterval
	}
	return &Session{
		id:    uuid.NewString(),
		opts:  opts,
		sink:  sink,
		state: StateIdle,
		clock: time.Now,
		newMixer: func() audioMixer {
			return media.NewMixGraph()
		},
	}
}

func (s *Session) ID() string { return s.id }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start opens the audio mix graph over the given sources, creates the
// encoder, and begins slicing. Valid only from idle.
func (s *Session) Start(sources ...*media.Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateIdle {
		return fmt.Errorf("%w: state %s", ErrNotIdle, s.state)
	}

	enc, err := NewVideoEncoder(s.opts.Encoder)
	if err != nil {
		return fmt.Errorf("create encoder: %w", err)
	}

	audio := s.newMixer()
	tracks := 0
	for _, h := range sources {
		tracks += audio.AddSource(h)
	}

	now := s.clock()
	s.enc = enc
	s.audio = audio
	s.startedAt = now
	s.resumedAt = now
	s.accumulated = 0
	s.sliceStart = now
	s.seq = 0
	s.pending = nil
	s.pendingN = 0
	s.failure = nil
	s.done = make(chan struct{})
	s.state = StateRecording

	s.wg.Add(1)
	go s.run(s.done)

	log.Info("recording started",
		logging.KeySessionID, s.id,
		"audioTracks", tracks,
		"encoder", enc.Name(),
		"sliceInterval", s.opts.SliceInterval,
	)
	return nil
}

// Pause freezes the duration base and flushes the partial slice so no
// paused-time audio or video leaks into the output. No-op unless
// recording.
func (s *Session) Pause() {
	s.mu.Lock()
	if s.state != StateRecording {
		s.mu.Unlock()
		return
	}
	now := s.clock()
	s.accumulated += now.Sub(s.resumedAt)
	slice, deliver := s.cutLocked(now)
	s.state = StatePaused
	s.mu.Unlock()

	if deliver {
		if err := s.deliver(slice); err != nil {
			s.fail(err)
			return
		}
	}
	log.Info("recording paused", logging.KeySessionID, s.id,
		logging.KeyDurationMs, s.Duration().Milliseconds())
}

// Resume restarts the duration base and discards audio mixed while
// paused. No-op unless paused.
func (s *Session) Resume() {
	s.mu.Lock()
	if s.state != StatePaused {
		s.mu.Unlock()
		return
	}
	now := s.clock()
	s.resumedAt = now
	s.sliceStart = now
	// The mix graph runs on wall time; drop what it gathered while
	// the session was paused.
	s.audio.TakeSlice()
	s.state = StateRecording
	s.mu.Unlock()

	log.Info("recording resumed", logging.KeySessionID, s.id)
}

// Stop cuts the final partial slice, closes the audio graph and
// encoder, finalizes the sink, and transitions to stopped. Valid from
// recording or paused. The returned error carries any encoder or sink
// failure that killed the session earlier.
func (s *Session) Stop() (Recording, error) {
	s.mu.Lock()
	if s.state != StateRecording && s.state != StatePaused {
		s.mu.Unlock()
		return Recording{}, fmt.Errorf("%w: state %s", ErrNotRecording, s.state)
	}
	now := s.clock()
	if s.state == StateRecording {
		s.accumulated += now.Sub(s.resumedAt)
	}
	slice, deliver := s.cutLocked(now)
	s.state = StateStopped
	close(s.done)
	rec := Recording{
		ID:        s.id,
		Duration:  s.accumulated,
		Slices:    s.seq,
		StartedAt: s.startedAt,
		EndedAt:   now,
		Encoder:   s.enc.Name(),
	}
	audio := s.audio
	enc := s.enc
	failure := s.failure
	s.mu.Unlock()

	s.wg.Wait()
	if deliver {
		// fail() no-ops once stopped, so the final write error must be
		// carried out through the returned failure.
		if err := s.deliver(slice); err != nil {
			log.Error("write final slice", logging.KeySessionID, s.id, logging.KeyError, err)
			if failure == nil {
				failure = err
			}
		}
	}
	audio.Close()
	if err := enc.Close(); err != nil {
		log.Warn("encoder close", logging.KeyError, err)
	}
	if err := s.sink.Finalize(rec); err != nil {
		log.Error("finalize recording", logging.KeySessionID, s.id, logging.KeyError, err)
		if failure == nil {
			failure = err
		}
	}

	log.Info("recording stopped",
		logging.KeySessionID, s.id,
		logging.KeyDurationMs, rec.Duration.Milliseconds(),
		"slices", rec.Slices,
	)
	return rec, failure
}

// Clear resets a stopped session back to idle for reuse. No-op in any
// other state.
func (s *Session) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateStopped {
		return fmt.Errorf("%w: state %s", ErrNotStopped, s.state)
	}
	s.state = StateIdle
	s.id = uuid.NewString()
	s.enc = nil
	s.audio = nil
	s.seq = 0
	s.pending = nil
	s.pendingN = 0
	s.accumulated = 0
	s.failure = nil
	return nil
}

// Duration returns elapsed recording time, excluding paused spans.
func (s *Session) Duration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.durationLocked(s.clock())
}

func (s *Session) durationLocked(now time.Time) time.Duration {
	if s.state == StateRecording {
		return s.accumulated + now.Sub(s.resumedAt)
	}
	return s.accumulated
}

// AddFrame encodes one composited frame into the current slice.
// Frames arriving while not recording are dropped. Intended as the
// compositor's FrameSink.
func (s *Session) AddFrame(frame *image.RGBA) {
	s.mu.Lock()
	if s.state != StateRecording {
		s.mu.Unlock()
		return
	}
	enc := s.enc
	s.mu.Unlock()

	data, err := enc.Encode(frame)
	if err != nil {
		s.fail(fmt.Errorf("encode frame: %w", err))
		return
	}

	s.mu.Lock()
	if s.state == StateRecording {
		s.pending = append(s.pending, data...)
		s.pendingN++
	}
	s.mu.Unlock()
}

func (s *Session) run(done chan struct{}) {
	defer s.wg.Done()
	ticker := time.NewTicker(durationTickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			s.tick(s.clock())
		}
	}
}

// tick reports elapsed duration and cuts a slice when the interval has
// passed. Split out from run so tests can drive it with a fake clock.
func (s *Session) tick(now time.Time) {
	s.mu.Lock()
	if s.state != StateRecording {
		s.mu.Unlock()
		return
	}
	d := s.durationLocked(now)
	var slice Slice
	deliver := false
	if now.Sub(s.sliceStart) >= s.opts.SliceInterval {
		slice, deliver = s.cutLocked(now)
	}
	onDuration := s.opts.OnDuration
	s.mu.Unlock()

	if onDuration != nil {
		onDuration(d)
	}
	if deliver {
		if err := s.deliver(slice); err != nil {
			s.fail(err)
		}
	}
}

// cutLocked closes the in-progress slice. Callers hold s.mu. Returns
// false when there is nothing to emit.
func (s *Session) cutLocked(now time.Time) (Slice, bool) {
	audio := s.audio.TakeSlice()
	if s.pendingN == 0 && len(audio) == 0 {
		s.sliceStart = now
		return Slice{}, false
	}
	slice := Slice{
		Seq:    s.seq,
		Video:  s.pending,
		Frames: s.pendingN,
		Audio:  audio,
		Start:  s.sliceStart,
		End:    now,
	}
	s.seq++
	s.pending = nil
	s.pendingN = 0
	s.sliceStart = now
	return slice, true
}

func (s *Session) deliver(slice Slice) error {
	if err := s.sink.WriteSlice(slice); err != nil {
		return fmt.Errorf("write slice %d: %w", slice.Seq, err)
	}
	if s.opts.OnAudioSlice != nil && len(slice.Audio) > 0 {
		s.opts.OnAudioSlice(slice.Audio)
	}
	return nil
}

// fail kills an active session: encoder and sink failures are fatal.
func (s *Session) fail(err error) {
	s.mu.Lock()
	if s.state != StateRecording && s.state != StatePaused {
		s.mu.Unlock()
		return
	}
	now := s.clock()
	if s.state == StateRecording {
		s.accumulated += now.Sub(s.resumedAt)
	}
	s.state = StateStopped
	s.failure = err
	close(s.done)
	audio := s.audio
	s.mu.Unlock()

	audio.Close()
	log.Error("recording failed", logging.KeySessionID, s.id, logging.KeyError, err)
	if s.opts.OnError != nil {
		go s.opts.OnError(err)
	}
}
