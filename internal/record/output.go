package record

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/davidgeorgehope/hotmike.app/internal/logging"
	"github.com/davidgeorgehope/hotmike.app/internal/media"
)

// FileSink appends slices to a growing pair of files and writes a
// manifest on finalize: video.mjpeg (concatenated JPEG frames),
// audio.wav, manifest.json.
type FileSink struct {
	dir string

	mu      sync.Mutex
	video   *os.File
	pcm     []byte
	slices  int
	created time.Time
}

type manifest struct {
	ID         string    `json:"id"`
	DurationMs int64     `json:"duration_ms"`
	Slices     int       `json:"slices"`
	StartedAt  time.Time `json:"started_at"`
	EndedAt    time.Time `json:"ended_at"`
	Encoder    string    `json:"encoder"`
	VideoFile  string    `json:"video_file"`
	AudioFile  string    `json:"audio_file"`
	SampleRate int       `json:"sample_rate"`
	Channels   int       `json:"channels"`
}

// NewFileSink creates the recording directory and opens the video
// stream file.
func NewFileSink(baseDir string) (*FileSink, error) {
	dir := filepath.Join(baseDir, time.Now().Format("2006-01-02-150405")+"-"+uuid.NewString()[:8])
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create recording dir: %w", err)
	}
	f, err := os.Create(filepath.Join(dir, "video.mjpeg"))
	if err != nil {
		return nil, fmt.Errorf("create video file: %w", err)
	}
	return &FileSink{dir: dir, video: f, created: time.Now()}, nil
}

// Dir returns the directory this recording is written into.
func (fs *FileSink) Dir() string { return fs.dir }

// Discard aborts a recording that never produced output: the stream
// file is closed and the directory removed. No-op after Finalize.
func (fs *FileSink) Discard() {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.video == nil {
		return
	}
	fs.video.Close()
	fs.video = nil
	if err := os.RemoveAll(fs.dir); err != nil {
		log.Warn("remove aborted recording dir", "dir", fs.dir, logging.KeyError, err)
	}
}

func (fs *FileSink) WriteSlice(s Slice) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.video == nil {
		return fmt.Errorf("sink already finalized")
	}
	if len(s.Video) > 0 {
		if _, err := fs.video.Write(s.Video); err != nil {
			return fmt.Errorf("write video slice %d: %w", s.Seq, err)
		}
	}
	fs.pcm = append(fs.pcm, s.Audio...)
	fs.slices++
	return nil
}

func (fs *FileSink) Finalize(rec Recording) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.video == nil {
		return fmt.Errorf("sink already finalized")
	}
	if err := fs.video.Close(); err != nil {
		return fmt.Errorf("close video file: %w", err)
	}
	fs.video = nil

	wav := media.EncodeWAV(fs.pcm, media.MixSampleRate, media.MixChannels)
	if err := os.WriteFile(filepath.Join(fs.dir, "audio.wav"), wav, 0o644); err != nil {
		return fmt.Errorf("write audio file: %w", err)
	}

	m := manifest{
		ID:         rec.ID,
		DurationMs: rec.Duration.Milliseconds(),
		Slices:     rec.Slices,
		StartedAt:  rec.StartedAt,
		EndedAt:    rec.EndedAt,
		Encoder:    rec.Encoder,
		VideoFile:  "video.mjpeg",
		AudioFile:  "audio.wav",
		SampleRate: media.MixSampleRate,
		Channels:   media.MixChannels,
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(fs.dir, "manifest.json"), data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	log.Info("recording finalized",
		logging.KeySessionID, rec.ID,
		"dir", fs.dir,
		logging.KeyDurationMs, rec.Duration.Milliseconds(),
	)
	return nil
}
