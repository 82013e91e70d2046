package media

import "sync"

// WebcamBackend opens camera video tracks.
type WebcamBackend interface {
	ListVideoDevices() ([]Device, error)
	Open(videoDeviceID string) (VideoTrack, error)
	Name() string
}

// ScreenBackend opens display capture tracks. onEnded fires when the
// platform revokes the capture out-of-band.
type ScreenBackend interface {
	Open(onEnded func()) (VideoTrack, error)
	Name() string
}

// MicrophoneBackend opens audio input tracks.
type MicrophoneBackend interface {
	ListAudioDevices() ([]Device, error)
	Open(audioDeviceID string) (AudioTrack, error)
	Name() string
}

type webcamFactory func() (WebcamBackend, error)
type screenFactory func() (ScreenBackend, error)
type micFactory func() (MicrophoneBackend, error)

var (
	backendsMu      sync.Mutex
	webcamFactories []webcamFactory
	screenFactories []screenFactory
	micFactories    []micFactory
)

// RegisterWebcamFactory adds a platform webcam backend. Factories are tried
// in registration order; the first that initializes wins.
func RegisterWebcamFactory(f webcamFactory) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	webcamFactories = append(webcamFactories, f)
}

// RegisterScreenFactory adds a platform screen-capture backend.
func RegisterScreenFactory(f screenFactory) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	screenFactories = append(screenFactories, f)
}

// RegisterMicrophoneFactory adds a platform microphone backend.
func RegisterMicrophoneFactory(f micFactory) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	micFactories = append(micFactories, f)
}

// Backends bundles the capture backends used by an Acquirer. Zero fields
// fall back to the registered platform factories.
type Backends struct {
	Webcam     WebcamBackend
	Screen     ScreenBackend
	Microphone MicrophoneBackend
}

func (b Backends) webcam() (WebcamBackend, error) {
	if b.Webcam != nil {
		return b.Webcam, nil
	}
	backendsMu.Lock()
	factories := append([]webcamFactory(nil), webcamFactories...)
	backendsMu.Unlock()
	for _, f := range factories {
		if backend, err := f(); err == nil && backend != nil {
			return backend, nil
		}
	}
	return nil, ErrNotSupported
}

func (b Backends) screen() (ScreenBackend, error) {
	if b.Screen != nil {
		return b.Screen, nil
	}
	backendsMu.Lock()
	factories := append([]screenFactory(nil), screenFactories...)
	backendsMu.Unlock()
	for _, f := range factories {
		if backend, err := f(); err == nil && backend != nil {
			return backend, nil
		}
	}
	return nil, ErrNotSupported
}

func (b Backends) microphone() (MicrophoneBackend, error) {
	if b.Microphone != nil {
		return b.Microphone, nil
	}
	backendsMu.Lock()
	factories := append([]micFactory(nil), micFactories...)
	backendsMu.Unlock()
	for _, f := range factories {
		if backend, err := f(); err == nil && backend != nil {
			return backend, nil
		}
	}
	return nil, ErrNotSupported
}
