package media

import (
	"image"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// screenFrameInterval paces the platform grab loop.
	screenFrameInterval = 33 * time.Millisecond

	// screenMaxGrabErrors is the number of consecutive failed grabs
	// tolerated before the track is treated as revoked by the platform.
	screenMaxGrabErrors = 10
)

// screenGrabber is one platform screen-capture context. Grab fills dst
// with the current full-screen frame; the track serializes all calls.
type screenGrabber interface {
	Grab(dst *image.RGBA) error
	Close()
}

// screenTrack polls a platform grabber on a fixed interval and
// publishes the latest frame. Sustained grab failures end the track
// and fire onEnded, the same signal a platform revoke produces.
type screenTrack struct {
	id      string
	width   int
	height  int
	onEnded func()
	done    chan struct{}

	mu      sync.Mutex
	frame   *image.RGBA
	stopped bool

	stopOnce sync.Once
}

func newScreenTrack(g screenGrabber, width, height int, onEnded func()) *screenTrack {
	t := &screenTrack{
		id:      uuid.NewString(),
		width:   width,
		height:  height,
		onEnded: onEnded,
		done:    make(chan struct{}),
	}
	go t.captureLoop(g)
	return t
}

func (t *screenTrack) ID() string                  { return t.id }
func (t *screenTrack) Kind() TrackKind             { return TrackVideo }
func (t *screenTrack) Bounds() (width, height int) { return t.width, t.height }

func (t *screenTrack) Frame() *image.RGBA {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.frame
}

func (t *screenTrack) Stop() {
	t.stopOnce.Do(func() {
		t.mu.Lock()
		t.stopped = true
		t.mu.Unlock()
		close(t.done)
	})
}

func (t *screenTrack) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

func (t *screenTrack) captureLoop(g screenGrabber) {
	defer g.Close()

	ticker := time.NewTicker(screenFrameInterval)
	defer ticker.Stop()

	errs := 0
	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
		}

		img := image.NewRGBA(image.Rect(0, 0, t.width, t.height))
		if err := g.Grab(img); err != nil {
			errs++
			if errs >= screenMaxGrabErrors {
				log.Warn("screen capture lost", "error", err, "consecutiveErrors", errs)
				t.Stop()
				if t.onEnded != nil {
					t.onEnded()
				}
				return
			}
			continue
		}
		errs = 0

		t.mu.Lock()
		t.frame = img
		t.mu.Unlock()
	}
}
