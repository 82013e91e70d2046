package record

import (
	"bytes"
	"encoding/json"
	"errors"
	"image"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestMJPEGEncoderProducesJPEGFrames(t *testing.T) {
	enc, err := NewVideoEncoder(EncoderConfig{Quality: QualityMedium, FPS: 30})
	if err != nil {
		t.Fatalf("new encoder: %v", err)
	}
	defer enc.Close()

	frame := image.NewRGBA(image.Rect(0, 0, 64, 36))
	data, err := enc.Encode(frame)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !bytes.HasPrefix(data, []byte{0xFF, 0xD8}) {
		t.Fatalf("output missing JPEG SOI marker: % x", data[:4])
	}
}

func TestEncoderConfigValidation(t *testing.T) {
	if _, err := NewVideoEncoder(EncoderConfig{Quality: "ultra", FPS: 30}); !errors.Is(err, ErrInvalidQuality) {
		t.Fatalf("bad quality err = %v", err)
	}
	if _, err := NewVideoEncoder(EncoderConfig{Quality: QualityLow, FPS: 500}); !errors.Is(err, ErrInvalidFPS) {
		t.Fatalf("bad fps err = %v", err)
	}
	enc, err := NewVideoEncoder(EncoderConfig{})
	if err != nil {
		t.Fatalf("defaults rejected: %v", err)
	}
	enc.Close()
	if _, err := enc.Encode(image.NewRGBA(image.Rect(0, 0, 8, 8))); !errors.Is(err, ErrEncoderClosed) {
		t.Fatalf("encode after close err = %v", err)
	}
}

func TestFileSinkWritesBlobAndManifest(t *testing.T) {
	sink, err := NewFileSink(t.TempDir())
	if err != nil {
		t.Fatalf("new sink: %v", err)
	}

	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		err := sink.WriteSlice(Slice{
			Seq:    i,
			Video:  []byte{0xFF, 0xD8, byte(i), 0xFF, 0xD9},
			Frames: 1,
			Audio:  make([]byte, 320),
			Start:  now.Add(time.Duration(i) * time.Second),
			End:    now.Add(time.Duration(i+1) * time.Second),
		})
		if err != nil {
			t.Fatalf("write slice %d: %v", i, err)
		}
	}

	rec := Recording{
		ID:        "rec-1",
		Duration:  3 * time.Second,
		Slices:    3,
		StartedAt: now,
		EndedAt:   now.Add(3 * time.Second),
		Encoder:   "mjpeg",
	}
	if err := sink.Finalize(rec); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	video, err := os.ReadFile(filepath.Join(sink.Dir(), "video.mjpeg"))
	if err != nil {
		t.Fatalf("read video: %v", err)
	}
	if len(video) != 15 {
		t.Fatalf("video blob = %d bytes, want 15", len(video))
	}

	data, err := os.ReadFile(filepath.Join(sink.Dir(), "manifest.json"))
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("decode manifest: %v", err)
	}
	if m.ID != "rec-1" || m.DurationMs != 3000 || m.Slices != 3 {
		t.Fatalf("manifest = %+v", m)
	}

	wav, err := os.ReadFile(filepath.Join(sink.Dir(), "audio.wav"))
	if err != nil {
		t.Fatalf("read audio: %v", err)
	}
	if !bytes.HasPrefix(wav, []byte("RIFF")) {
		t.Fatal("audio file is not a RIFF/WAVE container")
	}

	if err := sink.WriteSlice(Slice{Seq: 3}); err == nil {
		t.Fatal("write after finalize succeeded")
	}
}
