package media

import (
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/google/uuid"
)

// Microphone capture runs at the mix graph's native format so chunks can be
// placed on the timeline without resampling.
const (
	micSampleRate = 16000
	micChannels   = 1
)

func init() {
	RegisterMicrophoneFactory(func() (MicrophoneBackend, error) {
		return &malgoMicBackend{}, nil
	})
}

// malgoMicBackend opens microphone tracks through miniaudio.
type malgoMicBackend struct{}

func (b *malgoMicBackend) Name() string { return "malgo" }

func (b *malgoMicBackend) ListAudioDevices() ([]Device, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("init audio context: %w", err)
	}
	defer func() {
		ctx.Uninit()
		ctx.Free()
	}()

	infos, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("enumerate capture devices: %w", err)
	}

	devices := make([]Device, 0, len(infos))
	for _, info := range infos {
		devices = append(devices, Device{
			ID:    info.ID.String(),
			Label: info.Name(),
			Kind:  TrackAudio,
		})
	}
	return devices, nil
}

func (b *malgoMicBackend) Open(audioDeviceID string) (AudioTrack, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("init audio context: %w", err)
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = micChannels
	deviceConfig.SampleRate = micSampleRate
	deviceConfig.PeriodSizeInMilliseconds = 20

	if audioDeviceID != "" {
		infos, err := ctx.Devices(malgo.Capture)
		if err != nil {
			ctx.Uninit()
			ctx.Free()
			return nil, fmt.Errorf("enumerate capture devices: %w", err)
		}
		found := false
		for i := range infos {
			if infos[i].ID.String() == audioDeviceID {
				deviceConfig.Capture.DeviceID = infos[i].ID.Pointer()
				found = true
				break
			}
		}
		if !found {
			ctx.Uninit()
			ctx.Free()
			return nil, fmt.Errorf("%w: audio device %q", ErrDeviceNotFound, audioDeviceID)
		}
	}

	tr := &micTrack{
		id:   uuid.NewString(),
		ctx:  ctx,
		subs: make(map[int]func([]byte)),
	}

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, pInputSamples []byte, _ uint32) {
			tr.deliver(pInputSamples)
		},
	}

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, callbacks)
	if err != nil {
		ctx.Uninit()
		ctx.Free()
		return nil, fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}
	tr.device = device

	if err := device.Start(); err != nil {
		device.Uninit()
		ctx.Uninit()
		ctx.Free()
		return nil, fmt.Errorf("start microphone: %w", err)
	}

	return tr, nil
}

// micTrack is a live microphone capture delivering LINEAR16 PCM to
// subscribers from the miniaudio device callback.
type micTrack struct {
	id     string
	ctx    *malgo.AllocatedContext
	device *malgo.Device

	mu      sync.Mutex
	subs    map[int]func([]byte)
	nextSub int
	stopped bool

	stopOnce sync.Once
}

func (t *micTrack) ID() string      { return t.id }
func (t *micTrack) Kind() TrackKind { return TrackAudio }
func (t *micTrack) SampleRate() int { return micSampleRate }
func (t *micTrack) Channels() int   { return micChannels }

func (t *micTrack) Subscribe(fn func(pcm []byte)) (cancel func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.nextSub
	t.nextSub++
	t.subs[id] = fn
	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		delete(t.subs, id)
	}
}

func (t *micTrack) deliver(pcm []byte) {
	// Copy once; the callback buffer is reused by miniaudio.
	buf := make([]byte, len(pcm))
	copy(buf, pcm)

	t.mu.Lock()
	fns := make([]func([]byte), 0, len(t.subs))
	for _, fn := range t.subs {
		fns = append(fns, fn)
	}
	t.mu.Unlock()

	for _, fn := range fns {
		fn(buf)
	}
}

func (t *micTrack) Stop() {
	t.stopOnce.Do(func() {
		t.mu.Lock()
		t.stopped = true
		t.subs = map[int]func([]byte){}
		t.mu.Unlock()

		if t.device != nil {
			t.device.Stop()
			t.device.Uninit()
		}
		if t.ctx != nil {
			t.ctx.Uninit()
			t.ctx.Free()
		}
	})
}

func (t *micTrack) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}
