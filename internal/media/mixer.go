package media

import (
	"sync"
	"time"
)

// Mix output format: LINEAR16 mono 16 kHz, the format the transcription
// service expects.
const (
	MixSampleRate = 16000
	MixChannels   = 1

	mixBytesPerSample = 2
)

func mixBytesPerSecond() int {
	return MixSampleRate * MixChannels * mixBytesPerSample
}

// durationBytes converts a wall-clock duration to a frame-aligned byte count.
func durationBytes(d time.Duration) int {
	raw := int(d.Seconds() * float64(mixBytesPerSecond()))
	frameSize := mixBytesPerSample * MixChannels
	return (raw / frameSize) * frameSize
}

// placedChunk is a recorded audio fragment positioned on the mix timeline.
// ByteOffset is relative to the graph's start.
type placedChunk struct {
	ByteOffset int
	Data       []byte
}

// MixGraph merges the audio tracks of the connected sources into one mixed
// PCM output. Each incoming chunk is placed on a shared timeline at the
// wall-clock offset it arrived, with a per-track cursor so bursty delivery
// stays gapless. The graph's lifetime is exactly the recording session's:
// constructed at start, Close at stop.
type MixGraph struct {
	mu        sync.Mutex
	startTime time.Time
	chunks    []placedChunk
	cursors   map[string]int
	cancels   []func()
	taken     int
	closed    bool

	// clock is injectable for testing; defaults to time.Now.
	clock func() time.Time
}

func NewMixGraph() *MixGraph {
	return newMixGraph(time.Now)
}

func newMixGraph(clock func() time.Time) *MixGraph {
	return &MixGraph{
		startTime: clock(),
		cursors:   make(map[string]int),
		clock:     clock,
	}
}

// AddSource connects every audio track of the handle into the shared mix
// destination. Sources without audio tracks are skipped without error.
// Returns the number of tracks connected.
func (g *MixGraph) AddSource(h *Handle) int {
	if h == nil {
		return 0
	}
	connected := 0
	for _, tr := range h.AudioTracks() {
		trackID := tr.ID()
		cancel := tr.Subscribe(func(pcm []byte) {
			g.push(trackID, pcm)
		})
		g.mu.Lock()
		if g.closed {
			g.mu.Unlock()
			cancel()
			return connected
		}
		g.cancels = append(g.cancels, cancel)
		g.mu.Unlock()
		connected++
	}
	return connected
}

// push places a chunk at max(wall-clock offset, track cursor): wall-clock
// anchors the first chunk after a gap, the cursor keeps burst continuations
// contiguous at the playback rate.
func (g *MixGraph) push(trackID string, pcm []byte) {
	if len(pcm) == 0 {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return
	}

	offset := durationBytes(g.clock().Sub(g.startTime))
	if cur := g.cursors[trackID]; cur > offset {
		offset = cur
	}

	buf := make([]byte, len(pcm))
	copy(buf, pcm)
	g.chunks = append(g.chunks, placedChunk{ByteOffset: offset, Data: buf})
	g.cursors[trackID] = offset + len(buf)
}

// TakeSlice renders and removes all mixed PCM between the previous take and
// now. Gaps are silence; overlapping tracks are summed with saturation.
// Returns nil when no time has elapsed since the last take.
func (g *MixGraph) TakeSlice() []byte {
	g.mu.Lock()
	defer g.mu.Unlock()

	upTo := durationBytes(g.clock().Sub(g.startTime))
	if upTo <= g.taken {
		return nil
	}

	out := make([]byte, upTo-g.taken)
	var remaining []placedChunk
	for _, c := range g.chunks {
		end := c.ByteOffset + len(c.Data)
		if end <= g.taken {
			continue // fully consumed by an earlier take
		}
		if c.ByteOffset >= upTo {
			remaining = append(remaining, c)
			continue
		}
		mixInto(out, g.taken, c)
		if end > upTo {
			remaining = append(remaining, c)
		}
	}
	g.chunks = remaining
	g.taken = upTo
	return out
}

// mixInto sums the overlap of chunk c with the slice window starting at
// sliceOffset, saturating at int16 bounds.
func mixInto(slice []byte, sliceOffset int, c placedChunk) {
	start := c.ByteOffset
	data := c.Data
	if start < sliceOffset {
		data = data[sliceOffset-start:]
		start = sliceOffset
	}
	dst := start - sliceOffset
	n := len(slice) - dst
	if n > len(data) {
		n = len(data)
	}
	// Sample-aligned 16-bit little-endian addition.
	for i := 0; i+1 < n; i += 2 {
		a := int16(uint16(slice[dst+i]) | uint16(slice[dst+i+1])<<8)
		b := int16(uint16(data[i]) | uint16(data[i+1])<<8)
		sum := int32(a) + int32(b)
		if sum > 32767 {
			sum = 32767
		} else if sum < -32768 {
			sum = -32768
		}
		slice[dst+i] = byte(uint16(sum))
		slice[dst+i+1] = byte(uint16(sum) >> 8)
	}
}

// Elapsed returns the wall-clock time since the graph was opened.
func (g *MixGraph) Elapsed() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.clock().Sub(g.startTime)
}

// Close detaches every track subscription. Idempotent.
func (g *MixGraph) Close() {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return
	}
	g.closed = true
	cancels := g.cancels
	g.cancels = nil
	g.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}
