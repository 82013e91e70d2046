package media

import (
	"encoding/binary"
	"testing"
	"time"
)

// fakeClock advances only when told to, making timeline placement exact.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func pcmOf(sample int16, n int) []byte {
	out := make([]byte, n*2)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(sample))
	}
	return out
}

func sampleAt(pcm []byte, i int) int16 {
	return int16(binary.LittleEndian.Uint16(pcm[i*2:]))
}

func TestMixGraphSkipsSourcesWithoutAudio(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	g := newMixGraph(clock.Now)
	defer g.Close()

	videoOnly := newHandle(KindScreen, &stubVideoTrack{id: "screen"})
	if n := g.AddSource(videoOnly); n != 0 {
		t.Fatalf("video-only source should connect 0 tracks, got %d", n)
	}

	withAudio := newHandle(KindWebcam, &stubVideoTrack{id: "v"}, &stubAudioTrack{id: "a"})
	if n := g.AddSource(withAudio); n != 1 {
		t.Fatalf("expected 1 audio track connected, got %d", n)
	}
}

func TestMixGraphPlacesChunksAtWallClockOffset(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	g := newMixGraph(clock.Now)
	defer g.Close()

	track := &stubAudioTrack{id: "mic"}
	g.AddSource(newHandle(KindWebcam, track))

	// 100ms of audio arriving 100ms in: silence then signal.
	clock.Advance(100 * time.Millisecond)
	track.emit(pcmOf(1000, MixSampleRate/10))

	clock.Advance(900 * time.Millisecond)
	slice := g.TakeSlice()

	if want := durationBytes(time.Second); len(slice) != want {
		t.Fatalf("expected %d bytes for 1s slice, got %d", want, len(slice))
	}
	if got := sampleAt(slice, 0); got != 0 {
		t.Fatalf("expected leading silence, got sample %d", got)
	}
	offsetSamples := MixSampleRate / 10
	if got := sampleAt(slice, offsetSamples); got != 1000 {
		t.Fatalf("expected signal at 100ms offset, got %d", got)
	}
}

func TestMixGraphSumsOverlappingTracksWithSaturation(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	g := newMixGraph(clock.Now)
	defer g.Close()

	mic := &stubAudioTrack{id: "mic"}
	sys := &stubAudioTrack{id: "sys"}
	g.AddSource(newHandle(KindWebcam, mic))
	g.AddSource(newHandle(KindScreen, sys))

	mic.emit(pcmOf(20000, 100))
	sys.emit(pcmOf(20000, 100))

	clock.Advance(time.Second)
	slice := g.TakeSlice()

	if got := sampleAt(slice, 0); got != 32767 {
		t.Fatalf("expected saturated sum 32767, got %d", got)
	}
}

func TestMixGraphBurstChunksStayContiguous(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	g := newMixGraph(clock.Now)
	defer g.Close()

	track := &stubAudioTrack{id: "mic"}
	g.AddSource(newHandle(KindWebcam, track))

	// Two chunks delivered back-to-back with no clock movement: the
	// second must follow the first on the timeline, not overlap it.
	track.emit(pcmOf(100, 50))
	track.emit(pcmOf(200, 50))

	clock.Advance(time.Second)
	slice := g.TakeSlice()

	if got := sampleAt(slice, 0); got != 100 {
		t.Fatalf("expected first burst sample 100, got %d", got)
	}
	if got := sampleAt(slice, 50); got != 200 {
		t.Fatalf("expected second burst to start at cursor, got %d", got)
	}
}

func TestMixGraphTakeSliceConsumesExactlyOnce(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	g := newMixGraph(clock.Now)
	defer g.Close()

	track := &stubAudioTrack{id: "mic"}
	g.AddSource(newHandle(KindWebcam, track))
	track.emit(pcmOf(500, 100))

	clock.Advance(time.Second)
	first := g.TakeSlice()
	if len(first) == 0 {
		t.Fatal("expected a non-empty slice")
	}
	if second := g.TakeSlice(); second != nil {
		t.Fatalf("no time elapsed, expected nil slice, got %d bytes", len(second))
	}

	clock.Advance(time.Second)
	second := g.TakeSlice()
	if want := durationBytes(time.Second); len(second) != want {
		t.Fatalf("expected %d bytes, got %d", want, len(second))
	}
	if got := sampleAt(second, 0); got != 0 {
		t.Fatalf("consumed audio should not repeat, got %d", got)
	}
}

func TestMixGraphCloseDetachesSubscribers(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	g := newMixGraph(clock.Now)

	track := &stubAudioTrack{id: "mic"}
	g.AddSource(newHandle(KindWebcam, track))
	g.Close()

	track.emit(pcmOf(900, 100))
	clock.Advance(time.Second)
	// A closed graph ignores late chunks.
	slice := g.TakeSlice()
	for i := 0; i < len(slice)/2; i++ {
		if sampleAt(slice, i) != 0 {
			t.Fatal("closed graph should not record audio")
		}
	}
}

func TestEncodeWAVHeader(t *testing.T) {
	pcm := pcmOf(1, 16000)
	wav := EncodeWAV(pcm, MixSampleRate, MixChannels)

	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		t.Fatal("missing RIFF/WAVE markers")
	}
	if rate := binary.LittleEndian.Uint32(wav[24:28]); rate != MixSampleRate {
		t.Fatalf("expected sample rate %d, got %d", MixSampleRate, rate)
	}
	if size := binary.LittleEndian.Uint32(wav[40:44]); int(size) != len(pcm) {
		t.Fatalf("expected data size %d, got %d", len(pcm), size)
	}
}
