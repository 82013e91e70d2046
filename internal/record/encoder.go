package record

import (
	"errors"
	"fmt"
	"image"
	"sync"
)

type Quality string

const (
	QualityAuto   Quality = "auto"
	QualityLow    Quality = "low"
	QualityMedium Quality = "medium"
	QualityHigh   Quality = "high"
)

var (
	ErrInvalidQuality = errors.New("invalid quality preset")
	ErrInvalidFPS     = errors.New("invalid fps")
	ErrEncoderClosed  = errors.New("encoder closed")
)

type EncoderConfig struct {
	Quality        Quality
	FPS            int
	PreferHardware bool
}

func DefaultEncoderConfig() EncoderConfig {
	return EncoderConfig{
		Quality:        QualityAuto,
		FPS:            30,
		PreferHardware: false,
	}
}

// encoderBackend compresses one composited frame at a time. Backends
// are not required to be goroutine-safe; VideoEncoder serializes.
type encoderBackend interface {
	Encode(frame *image.RGBA) ([]byte, error)
	SetQuality(q Quality) error
	Close() error
	Name() string
	IsHardware() bool
}

type backendFactory func(cfg EncoderConfig) (encoderBackend, error)

var (
	hardwareFactoriesMu sync.Mutex
	hardwareFactories   []backendFactory
)

// registerHardwareFactory lets platform builds contribute hardware
// encoder backends from their init functions.
func registerHardwareFactory(factory backendFactory) {
	hardwareFactoriesMu.Lock()
	defer hardwareFactoriesMu.Unlock()
	hardwareFactories = append(hardwareFactories, factory)
}

func newBackend(cfg EncoderConfig) (encoderBackend, error) {
	if cfg.PreferHardware {
		hardwareFactoriesMu.Lock()
		factories := append([]backendFactory(nil), hardwareFactories...)
		hardwareFactoriesMu.Unlock()
		for _, f := range factories {
			backend, err := f(cfg)
			if err == nil {
				log.Info("using hardware encoder", "backend", backend.Name())
				return backend, nil
			}
			log.Debug("hardware encoder unavailable", "error", err)
		}
	}
	return newMJPEGEncoder(cfg)
}

// VideoEncoder wraps a backend behind a mutex and tracks its config.
type VideoEncoder struct {
	mu      sync.Mutex
	cfg     EncoderConfig
	backend encoderBackend
}

func NewVideoEncoder(cfg EncoderConfig) (*VideoEncoder, error) {
	cfg = applyEncoderDefaults(cfg)
	if err := validateEncoderConfig(cfg); err != nil {
		return nil, err
	}
	backend, err := newBackend(cfg)
	if err != nil {
		return nil, err
	}
	return &VideoEncoder{cfg: cfg, backend: backend}, nil
}

func (v *VideoEncoder) Encode(frame *image.RGBA) ([]byte, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.backend == nil {
		return nil, ErrEncoderClosed
	}
	return v.backend.Encode(frame)
}

func (v *VideoEncoder) SetQuality(q Quality) error {
	if !q.valid() {
		return fmt.Errorf("%w: %s", ErrInvalidQuality, q)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.backend == nil {
		return ErrEncoderClosed
	}
	if err := v.backend.SetQuality(q); err != nil {
		return err
	}
	v.cfg.Quality = q
	return nil
}

func (v *VideoEncoder) Name() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.backend == nil {
		return ""
	}
	return v.backend.Name()
}

func (v *VideoEncoder) Close() error {
	v.mu.Lock()
	backend := v.backend
	v.backend = nil
	v.mu.Unlock()
	if backend == nil {
		return nil
	}
	return backend.Close()
}

func (q Quality) valid() bool {
	switch q {
	case QualityAuto, QualityLow, QualityMedium, QualityHigh:
		return true
	default:
		return false
	}
}

func applyEncoderDefaults(cfg EncoderConfig) EncoderConfig {
	defaults := DefaultEncoderConfig()
	if cfg.Quality == "" {
		cfg.Quality = defaults.Quality
	}
	if cfg.FPS == 0 {
		cfg.FPS = defaults.FPS
	}
	return cfg
}

func validateEncoderConfig(cfg EncoderConfig) error {
	if !cfg.Quality.valid() {
		return fmt.Errorf("%w: %s", ErrInvalidQuality, cfg.Quality)
	}
	if cfg.FPS <= 0 || cfg.FPS > 120 {
		return fmt.Errorf("%w: %d", ErrInvalidFPS, cfg.FPS)
	}
	return nil
}
