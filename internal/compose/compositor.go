// Package compose renders the program output: one of three fixed
// layouts plus an optional name card and overlay, drawn onto a fixed
// size canvas at the configured frame rate.
package compose

import (
	"image"
	"image/color"
	"sync"
	"sync/atomic"
	"time"

	"github.com/davidgeorgehope/hotmike.app/internal/logging"
	"github.com/davidgeorgehope/hotmike.app/internal/media"
)

var log = logging.L("compose")

var canvasBackground = color.RGBA{R: 18, G: 18, B: 22, A: 255}

// FrameSink receives each rendered frame. The frame is pooled and
// reused after the callback returns; sinks must copy anything they
// retain, and must not call back into Stop.
type FrameSink func(frame *image.RGBA)

// Compositor renders composition state and live video tracks to a
// canvas on a fixed tick. Start and Stop may be called repeatedly.
type Compositor struct {
	width     int
	height    int
	frameRate int

	mu         sync.Mutex
	state      State
	webcam     media.VideoTrack
	screen     media.VideoTrack
	overlayImg image.Image
	sink       FrameSink

	overlayGen atomic.Uint64
	fetch      overlayFetcher

	running atomic.Bool
	done    chan struct{}
	wg      sync.WaitGroup

	framePool   imagePool
	scratchPool imagePool
}

func New(width, height, frameRate int) *Compositor {
	return &Compositor{
		width:     width,
		height:    height,
		frameRate: frameRate,
		state:     defaultState(),
		fetch:     fetchOverlay,
	}
}

// SetSink installs the frame consumer. A nil sink drops frames.
func (c *Compositor) SetSink(sink FrameSink) {
	c.mu.Lock()
	c.sink = sink
	c.mu.Unlock()
}

// SetWebcam swaps the webcam video track. Nil detaches it.
func (c *Compositor) SetWebcam(t media.VideoTrack) {
	c.mu.Lock()
	c.webcam = t
	c.mu.Unlock()
}

// SetScreen swaps the screen video track. Nil detaches it.
func (c *Compositor) SetScreen(t media.VideoTrack) {
	c.mu.Lock()
	c.screen = t
	c.mu.Unlock()
}

// Apply merges a partial state update. Unset fields keep their value.
func (c *Compositor) Apply(u StateUpdate) {
	c.mu.Lock()
	c.state.apply(u)
	st := c.state
	c.mu.Unlock()
	log.Debug("composition state updated", "layout", string(st.Layout))
}

// ApplyOverlay merges a partial overlay-placement update.
func (c *Compositor) ApplyOverlay(u OverlayUpdate) {
	c.mu.Lock()
	c.state.applyOverlay(u)
	c.mu.Unlock()
}

// State returns a snapshot of the current composition state.
func (c *Compositor) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SetLayout is a convenience wrapper for the common single-field case.
func (c *Compositor) SetLayout(m LayoutMode) {
	c.Apply(StateUpdate{Layout: &m})
}

// Start begins the render loop. Calling Start on a running compositor
// is a no-op.
func (c *Compositor) Start() {
	if !c.running.CompareAndSwap(false, true) {
		return
	}
	c.done = make(chan struct{})
	c.wg.Add(1)
	go c.renderLoop(c.done)
	log.Info("compositor started",
		"width", c.width, "height", c.height, "fps", c.frameRate)
}

// Stop halts the render loop. No frame callback starts after Stop
// returns. Calling Stop on a stopped compositor is a no-op.
func (c *Compositor) Stop() {
	if !c.running.CompareAndSwap(true, false) {
		return
	}
	close(c.done)
	c.wg.Wait()
	log.Info("compositor stopped")
}

func (c *Compositor) renderLoop(done chan struct{}) {
	defer c.wg.Done()
	interval := time.Second / time.Duration(c.frameRate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if !c.running.Load() {
				return
			}
			c.renderFrame()
		}
	}
}

func (c *Compositor) renderFrame() {
	c.mu.Lock()
	st := c.state
	webcam := c.webcam
	screen := c.screen
	overlay := c.overlayImg
	sink := c.sink
	c.mu.Unlock()

	frame := c.framePool.Get(c.width, c.height)
	c.renderInto(frame, st, trackFrame(webcam), trackFrame(screen), overlay)
	if sink != nil {
		sink(frame)
	}
	c.framePool.Put(frame)
}

func trackFrame(t media.VideoTrack) image.Image {
	if t == nil {
		return nil
	}
	if f := t.Frame(); f != nil {
		return f
	}
	return nil
}

// renderInto draws one complete frame: layout base, then name card,
// then overlay on top.
func (c *Compositor) renderInto(dst *image.RGBA, st State, webcam, screen, overlay image.Image) {
	bounds := dst.Bounds()
	fillRect(dst, bounds, canvasBackground)

	switch st.Layout {
	case LayoutScreenPIP:
		if screen != nil {
			drawAspectFill(dst, bounds, screen)
		}
		if webcam != nil {
			c.drawPIP(dst, pipRect(st.PIPPosition, st.PIPSize, c.width, c.height), webcam, st.PIPShape)
		}
	case LayoutFaceCard:
		if webcam != nil {
			drawAspectFill(dst, bounds, webcam)
		}
		drawNameCard(dst, st.NameCard, c.width, c.height)
	default: // LayoutFaceOnly
		if webcam != nil {
			drawAspectFill(dst, bounds, webcam)
		}
	}

	if overlay != nil && st.Overlay.Opacity > 0 {
		ob := overlay.Bounds()
		w, h := overlaySize(ob.Dx(), ob.Dy(), st.Overlay.Scale, c.width, c.height)
		r := anchorRect(st.Overlay.Anchor, c.width, c.height, w, h)
		drawScaled(dst, r, overlay, st.Overlay.Opacity)
	}
}
