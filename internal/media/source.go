package media

import (
	"errors"
	"image"
	"sync"
)

// Kind identifies a capture source.
type Kind string

const (
	KindWebcam Kind = "webcam"
	KindScreen Kind = "screen"
)

// TrackKind identifies the media type carried by a track.
type TrackKind string

const (
	TrackVideo TrackKind = "video"
	TrackAudio TrackKind = "audio"
)

var (
	// ErrNotSupported is returned when capture is not supported on the platform.
	ErrNotSupported = errors.New("capture not supported on this platform")

	// ErrPermissionDenied is returned when capture permissions are not granted.
	ErrPermissionDenied = errors.New("capture permission denied")

	// ErrDeviceNotFound is returned when the requested device does not exist.
	ErrDeviceNotFound = errors.New("capture device not found")
)

// Track is one live media track owned by a source handle.
type Track interface {
	ID() string
	Kind() TrackKind

	// Stop releases the track's device resources. Idempotent.
	Stop()
	Stopped() bool
}

// VideoTrack delivers frames by polling: the renderer reads the latest
// frame once per composited frame. Frame returns nil when no frame is
// ready yet; callers skip drawing in that case.
type VideoTrack interface {
	Track
	Frame() *image.RGBA
	Bounds() (width, height int)
}

// AudioTrack delivers PCM by push. Subscribers receive LINEAR16 chunks as
// the device produces them; the returned cancel detaches the subscriber.
type AudioTrack interface {
	Track
	Subscribe(fn func(pcm []byte)) (cancel func())
	SampleRate() int
	Channels() int
}

// Device describes an enumerable capture device.
type Device struct {
	ID    string
	Label string
	Kind  TrackKind
}

// Handle is a named source holding zero or more live tracks. A handle is
// owned exclusively by the Acquirer; it is fully released before another
// handle of the same kind is installed.
type Handle struct {
	kind    Kind
	mu      sync.Mutex
	tracks  []Track
	onEnded func()
}

func newHandle(kind Kind, tracks ...Track) *Handle {
	return &Handle{kind: kind, tracks: tracks}
}

func (h *Handle) Kind() Kind { return h.kind }

func (h *Handle) Tracks() []Track {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Track, len(h.tracks))
	copy(out, h.tracks)
	return out
}

// VideoTrack returns the first live video track, or nil.
func (h *Handle) VideoTrack() VideoTrack {
	for _, t := range h.Tracks() {
		if vt, ok := t.(VideoTrack); ok {
			return vt
		}
	}
	return nil
}

// AudioTracks returns all audio tracks on the handle.
func (h *Handle) AudioTracks() []AudioTrack {
	var out []AudioTrack
	for _, t := range h.Tracks() {
		if at, ok := t.(AudioTrack); ok {
			out = append(out, at)
		}
	}
	return out
}

// ReleaseTracks stops every track on the handle.
func (h *Handle) ReleaseTracks() {
	for _, t := range h.Tracks() {
		t.Stop()
	}
}

// notifyEnded fires the platform "track ended" callback, if any. Used by
// screen backends when the user revokes sharing out-of-band.
func (h *Handle) notifyEnded() {
	h.mu.Lock()
	fn := h.onEnded
	h.mu.Unlock()
	if fn != nil {
		fn()
	}
}
