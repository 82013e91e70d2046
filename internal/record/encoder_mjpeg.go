package record

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"sync"
)

// bufferPool pools bytes.Buffer instances for JPEG encoding.
var bufferPool = sync.Pool{
	New: func() any {
		return bytes.NewBuffer(make([]byte, 0, 256*1024))
	},
}

func getBuffer() *bytes.Buffer {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

func putBuffer(buf *bytes.Buffer) {
	if buf.Cap() > 2<<20 {
		return // don't pool oversized buffers
	}
	bufferPool.Put(buf)
}

// jpegQuality maps presets to encoder quality settings. Auto follows
// medium; there is no feedback loop adjusting it at runtime.
var jpegQuality = map[Quality]int{
	QualityAuto:   78,
	QualityLow:    60,
	QualityMedium: 78,
	QualityHigh:   90,
}

// mjpegEncoder is the always-available software backend: each frame
// becomes one JPEG, and slices concatenate frames into an MJPEG
// stream.
type mjpegEncoder struct {
	mu  sync.Mutex
	cfg EncoderConfig
}

func newMJPEGEncoder(cfg EncoderConfig) (encoderBackend, error) {
	return &mjpegEncoder{cfg: cfg}, nil
}

func (m *mjpegEncoder) Encode(frame *image.RGBA) ([]byte, error) {
	if frame == nil {
		return nil, errors.New("nil frame")
	}
	m.mu.Lock()
	q := jpegQuality[m.cfg.Quality]
	m.mu.Unlock()

	buf := getBuffer()
	defer putBuffer(buf)
	if err := jpeg.Encode(buf, frame, &jpeg.Options{Quality: q}); err != nil {
		return nil, fmt.Errorf("jpeg encode: %w", err)
	}
	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}

func (m *mjpegEncoder) SetQuality(q Quality) error {
	if !q.valid() {
		return fmt.Errorf("%w: %s", ErrInvalidQuality, q)
	}
	m.mu.Lock()
	m.cfg.Quality = q
	m.mu.Unlock()
	return nil
}

func (m *mjpegEncoder) Close() error { return nil }

func (m *mjpegEncoder) Name() string { return "mjpeg" }

func (m *mjpegEncoder) IsHardware() bool { return false }
