package media

import (
	"context"
	"fmt"
	"sync"

	"github.com/davidgeorgehope/hotmike.app/internal/logging"
)

var log = logging.L("media")

// Acquirer owns the webcam and screen source handles for one studio
// session. Acquisition of the same source kind is serialized: the existing
// handle is stopped and released before a new one is requested, so two live
// handles never point at one physical device.
type Acquirer struct {
	backends Backends

	mu            sync.Mutex
	webcam        *Handle
	screen        *Handle
	devices       []Device
	selectedVideo string
	selectedAudio string
}

func NewAcquirer(backends Backends) *Acquirer {
	return &Acquirer{backends: backends}
}

// EnumerateDevices lists video and audio input devices. A transient
// microphone grant is obtained and immediately released first, which
// unlocks human-readable device labels on platforms that hide them until a
// device has been opened. The first device of each kind is auto-selected
// if none is selected yet.
func (a *Acquirer) EnumerateDevices(ctx context.Context) ([]Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var devices []Device

	if mic, err := a.backends.microphone(); err == nil {
		if probe, err := mic.Open(""); err == nil {
			probe.Stop()
		}
		audio, err := mic.ListAudioDevices()
		if err != nil {
			return nil, fmt.Errorf("list audio devices: %w", err)
		}
		devices = append(devices, audio...)
	}

	if cam, err := a.backends.webcam(); err == nil {
		video, err := cam.ListVideoDevices()
		if err != nil {
			return nil, fmt.Errorf("list video devices: %w", err)
		}
		devices = append(devices, video...)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.devices = devices
	for _, d := range devices {
		if d.Kind == TrackVideo && a.selectedVideo == "" {
			a.selectedVideo = d.ID
		}
		if d.Kind == TrackAudio && a.selectedAudio == "" {
			a.selectedAudio = d.ID
		}
	}

	log.Info("devices enumerated", "count", len(devices))
	return devices, nil
}

// SelectedDevices returns the currently selected video and audio device ids.
func (a *Acquirer) SelectedDevices() (videoID, audioID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.selectedVideo, a.selectedAudio
}

// RequestWebcam acquires a camera + microphone handle. Any existing webcam
// handle is fully released before the new request is made. On error the
// handle set is left without a webcam handle, never with a partial one.
func (a *Acquirer) RequestWebcam(ctx context.Context, videoDeviceID, audioDeviceID string) (*Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.webcam != nil {
		a.webcam.ReleaseTracks()
		a.webcam = nil
	}

	if videoDeviceID == "" {
		videoDeviceID = a.selectedVideo
	}
	if audioDeviceID == "" {
		audioDeviceID = a.selectedAudio
	}

	cam, err := a.backends.webcam()
	if err != nil {
		return nil, fmt.Errorf("webcam unavailable: %w", err)
	}
	video, err := cam.Open(videoDeviceID)
	if err != nil {
		return nil, fmt.Errorf("open camera %q: %w", videoDeviceID, err)
	}

	tracks := []Track{video}
	if mic, err := a.backends.microphone(); err == nil {
		audio, err := mic.Open(audioDeviceID)
		if err != nil {
			video.Stop()
			return nil, fmt.Errorf("open microphone %q: %w", audioDeviceID, err)
		}
		tracks = append(tracks, audio)
	}

	a.webcam = newHandle(KindWebcam, tracks...)
	a.selectedVideo = videoDeviceID
	a.selectedAudio = audioDeviceID
	log.Info("webcam acquired", "videoDevice", videoDeviceID, "audioDevice", audioDeviceID, "tracks", len(tracks))
	return a.webcam, nil
}

// RequestScreen acquires a display-capture handle. Any existing screen
// handle is fully released first. The handle clears itself from the
// acquirer when the platform reports the capture ended out-of-band.
func (a *Acquirer) RequestScreen(ctx context.Context) (*Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.screen != nil {
		a.screen.ReleaseTracks()
		a.screen = nil
	}

	backend, err := a.backends.screen()
	if err != nil {
		return nil, fmt.Errorf("screen capture unavailable: %w", err)
	}

	handle := newHandle(KindScreen)
	video, err := backend.Open(func() {
		log.Info("screen capture ended by platform")
		a.clearScreen(handle)
	})
	if err != nil {
		return nil, fmt.Errorf("open screen capture: %w", err)
	}
	handle.tracks = []Track{video}
	handle.onEnded = func() { a.clearScreen(handle) }

	a.screen = handle
	log.Info("screen acquired")
	return handle, nil
}

// clearScreen drops the screen handle if it is still the current one.
func (a *Acquirer) clearScreen(h *Handle) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.screen == h {
		a.screen.ReleaseTracks()
		a.screen = nil
	}
}

// Webcam returns the live webcam handle, or nil.
func (a *Acquirer) Webcam() *Handle {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.webcam
}

// Screen returns the live screen handle, or nil.
func (a *Acquirer) Screen() *Handle {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.screen
}

// StopWebcam releases the webcam handle.
func (a *Acquirer) StopWebcam() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.webcam != nil {
		a.webcam.ReleaseTracks()
		a.webcam = nil
	}
}

// StopScreen releases the screen handle.
func (a *Acquirer) StopScreen() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.screen != nil {
		a.screen.ReleaseTracks()
		a.screen = nil
	}
}

// StopAll releases every live track. Safe to call on every teardown path.
func (a *Acquirer) StopAll() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.webcam != nil {
		a.webcam.ReleaseTracks()
		a.webcam = nil
	}
	if a.screen != nil {
		a.screen.ReleaseTracks()
		a.screen = nil
	}
}
