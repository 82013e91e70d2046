// Package studio wires the pipeline together for one presenter
// session: acquisition feeds the compositor and mix graph, the
// recorder slices their output, and the transcription channel drives
// the suggestion queue and voice commands.
package studio

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/davidgeorgehope/hotmike.app/internal/compose"
	"github.com/davidgeorgehope/hotmike.app/internal/config"
	"github.com/davidgeorgehope/hotmike.app/internal/logging"
	"github.com/davidgeorgehope/hotmike.app/internal/media"
	"github.com/davidgeorgehope/hotmike.app/internal/record"
	"github.com/davidgeorgehope/hotmike.app/internal/suggest"
	"github.com/davidgeorgehope/hotmike.app/internal/transcribe"
	"github.com/davidgeorgehope/hotmike.app/internal/voice"
	"github.com/davidgeorgehope/hotmike.app/internal/workerpool"
	"github.com/davidgeorgehope/hotmike.app/pkg/api"
)

var log = logging.L("studio")

var ErrSessionActive = errors.New("a recording session is already active")

const (
	audioMimeType     = "audio/wav"
	suggestionWindow  = 30 * time.Second
	momentWindow      = 60 * time.Second
	collabTimeout     = 45 * time.Second
	poolWorkers       = 4
	poolQueue         = 64
)

// Callbacks surface session events to the front end.
type Callbacks struct {
	OnDuration       func(d time.Duration)
	OnRecordingError func(err error)
	OnTranscript     func(seg transcribe.Segment)
	OnSuggestion     func(s suggest.Suggestion)
}

// Studio owns the live pipeline. At most one recording session and
// one transcription channel exist at a time.
type Studio struct {
	cfg        *config.Config
	acquirer   *media.Acquirer
	compositor *compose.Compositor
	client     *api.Client
	callbacks  Callbacks

	queue      *suggest.Queue
	transcript *transcribe.Transcript
	matcher    *voice.Matcher
	pool       *workerpool.Pool

	mu            sync.Mutex
	session       *record.Session
	channel       *transcribe.Channel
	suggestStop   chan struct{}
	aiAvailable   bool
	suggestResume time.Time
}

func New(cfg *config.Config, acquirer *media.Acquirer, compositor *compose.Compositor, client *api.Client, callbacks Callbacks) *Studio {
	s := &Studio{
		cfg:        cfg,
		acquirer:   acquirer,
		compositor: compositor,
		client:     client,
		callbacks:  callbacks,
		queue:      suggest.NewQueue(),
		transcript: transcribe.NewTranscript(),
		pool:       workerpool.New(poolWorkers, poolQueue),
	}
	s.matcher = voice.NewMatcher(s.transcript, s.handleVoiceCommand)
	compositor.Apply(compose.StateUpdate{
		Name:  &cfg.PresenterName,
		Title: &cfg.PresenterTitle,
	})
	return s
}

// Queue exposes the suggestion queue for the control surface.
func (s *Studio) Queue() *suggest.Queue { return s.queue }

// Transcript exposes the rolling transcript buffer.
func (s *Studio) Transcript() *transcribe.Transcript { return s.transcript }

// Open acquires the webcam and starts the preview render loop.
func (s *Studio) Open(ctx context.Context) error {
	if _, err := s.acquirer.EnumerateDevices(ctx); err != nil {
		return fmt.Errorf("enumerate devices: %w", err)
	}
	handle, err := s.acquirer.RequestWebcam(ctx, s.cfg.VideoDeviceID, s.cfg.AudioDeviceID)
	if err != nil {
		return fmt.Errorf("acquire webcam: %w", err)
	}
	s.compositor.SetWebcam(handle.VideoTrack())
	s.compositor.Start()
	return nil
}

// ShareScreen acquires the screen and switches to the PIP layout.
func (s *Studio) ShareScreen(ctx context.Context) error {
	handle, err := s.acquirer.RequestScreen(ctx)
	if err != nil {
		return fmt.Errorf("acquire screen: %w", err)
	}
	s.compositor.SetScreen(handle.VideoTrack())
	s.compositor.SetLayout(compose.LayoutScreenPIP)
	return nil
}

// StopScreenShare releases the screen source and returns to the
// face-only layout.
func (s *Studio) StopScreenShare() {
	s.acquirer.StopScreen()
	s.compositor.SetScreen(nil)
	s.compositor.SetLayout(compose.LayoutFaceOnly)
}

// StartRecording opens a fresh recording session and its transcription
// channel. Suggestions and the transcript reset on every start.
func (s *Studio) StartRecording(ctx context.Context) (string, error) {
	s.mu.Lock()
	if s.session != nil {
		s.mu.Unlock()
		return "", ErrSessionActive
	}
	s.mu.Unlock()

	sink, err := record.NewFileSink(s.cfg.OutputDir)
	if err != nil {
		return "", fmt.Errorf("open output: %w", err)
	}

	session := record.NewSession(sink, record.Options{
		SliceInterval: time.Duration(s.cfg.SliceIntervalSeconds) * time.Second,
		Encoder:       record.EncoderConfig{FPS: s.cfg.FrameRate},
		OnDuration:    s.callbacks.OnDuration,
		OnAudioSlice:  s.forwardAudioSlice,
		OnError:       s.handleSessionFailure,
	})

	var channel *transcribe.Channel
	if s.cfg.AIEnabled {
		channel = transcribe.NewChannel(transcribe.Config{
			ServerURL: s.cfg.ServerURL,
			AuthToken: s.cfg.AuthToken,
			SessionID: session.ID(),
		}, s.handleChannelEvent)
	}

	// Session start implicitly clears live-assist state.
	s.queue.Clear()
	s.transcript.Reset()
	s.matcher.Reset()

	var sources []*media.Handle
	if h := s.acquirer.Webcam(); h != nil {
		sources = append(sources, h)
	}
	if h := s.acquirer.Screen(); h != nil {
		sources = append(sources, h)
	}
	if err := session.Start(sources...); err != nil {
		sink.Discard()
		return "", err
	}

	s.mu.Lock()
	s.session = session
	s.channel = channel
	s.suggestStop = make(chan struct{})
	s.suggestResume = time.Time{}
	suggestStop := s.suggestStop
	s.mu.Unlock()

	s.compositor.SetSink(session.AddFrame)
	s.matcher.Start()
	if channel != nil {
		if err := channel.Connect(); err != nil {
			log.Warn("transcription channel connect", logging.KeyError, err)
		}
		go s.suggestionLoop(suggestStop)
	}

	log.Info("session started", logging.KeySessionID, session.ID(),
		"aiEnabled", s.cfg.AIEnabled)
	return session.ID(), nil
}

// PauseRecording pauses the active session, if any.
func (s *Studio) PauseRecording() {
	s.mu.Lock()
	session := s.session
	s.mu.Unlock()
	if session != nil {
		session.Pause()
	}
}

// ResumeRecording resumes a paused session, if any.
func (s *Studio) ResumeRecording() {
	s.mu.Lock()
	session := s.session
	s.mu.Unlock()
	if session != nil {
		session.Resume()
	}
}

// StopRecording finalizes the session and tears down its channel.
func (s *Studio) StopRecording() (record.Recording, error) {
	s.mu.Lock()
	session := s.session
	channel := s.channel
	suggestStop := s.suggestStop
	s.session = nil
	s.channel = nil
	s.suggestStop = nil
	s.mu.Unlock()

	if session == nil {
		return record.Recording{}, record.ErrNotRecording
	}

	s.compositor.SetSink(nil)
	s.matcher.Stop()
	if suggestStop != nil {
		close(suggestStop)
	}
	rec, err := session.Stop()
	if channel != nil {
		channel.Close()
	}
	return rec, err
}

// Duration returns the active session's elapsed time.
func (s *Studio) Duration() time.Duration {
	s.mu.Lock()
	session := s.session
	s.mu.Unlock()
	if session == nil {
		return 0
	}
	return session.Duration()
}

// Close releases every owned resource.
func (s *Studio) Close(ctx context.Context) {
	if s.Recording() {
		if _, err := s.StopRecording(); err != nil {
			log.Warn("stop recording on close", logging.KeyError, err)
		}
	}
	s.compositor.Stop()
	s.acquirer.StopAll()
	s.pool.StopAccepting()
	s.pool.Drain(ctx)
}

// Recording reports whether a session is live.
func (s *Studio) Recording() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session != nil
}

func (s *Studio) forwardAudioSlice(pcm []byte) {
	s.mu.Lock()
	channel := s.channel
	s.mu.Unlock()
	if channel == nil {
		return
	}
	wav := media.EncodeWAV(pcm, media.MixSampleRate, media.MixChannels)
	if _, err := channel.SendAudioChunk(wav, audioMimeType); err != nil {
		log.Debug("audio chunk dropped", logging.KeyError, err)
	}
}

// handleSessionFailure runs when the recorder dies mid-session. The
// session is already stopped; release the channel and surface the
// failure.
func (s *Studio) handleSessionFailure(err error) {
	s.mu.Lock()
	channel := s.channel
	suggestStop := s.suggestStop
	s.session = nil
	s.channel = nil
	s.suggestStop = nil
	s.mu.Unlock()

	s.compositor.SetSink(nil)
	s.matcher.Stop()
	if suggestStop != nil {
		close(suggestStop)
	}
	if channel != nil {
		channel.Close()
	}
	if s.callbacks.OnRecordingError != nil {
		s.callbacks.OnRecordingError(err)
	}
}

func (s *Studio) suggestionLoop(stop chan struct{}) {
	interval := time.Duration(s.cfg.SuggestionIntervalSeconds) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	detectNext := false
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		s.mu.Lock()
		channel := s.channel
		ai := s.aiAvailable
		resume := s.suggestResume
		s.mu.Unlock()
		if channel == nil || channel.State() != transcribe.StateConnected || !ai {
			continue
		}
		if time.Now().Before(resume) {
			continue
		}

		if detectNext {
			if window := s.transcript.WindowText(momentWindow); window != "" {
				if err := channel.DetectMoments(window); err != nil {
					log.Debug("detect moments dropped", logging.KeyError, err)
				}
			}
		} else {
			if window := s.transcript.WindowText(suggestionWindow); window != "" {
				if err := channel.RequestSuggestion(window, ""); err != nil {
					log.Debug("suggestion request dropped", logging.KeyError, err)
				}
			}
		}
		detectNext = !detectNext
	}
}

// handleChannelEvent routes inbound channel events. It runs on the
// channel's read goroutine.
func (s *Studio) handleChannelEvent(ev transcribe.Event) {
	switch e := ev.(type) {
	case transcribe.Connected:
		s.mu.Lock()
		s.aiAvailable = e.AIAvailable
		s.mu.Unlock()
		log.Info("transcription connected", "aiAvailable", e.AIAvailable)

	case transcribe.Transcription:
		seg, ok := s.transcript.Append(e.Text)
		if !ok {
			return
		}
		if s.callbacks.OnTranscript != nil {
			s.callbacks.OnTranscript(seg)
		}
		s.matcher.Scan()

	case transcribe.SuggestionEvent:
		added := s.queue.Add(suggest.Suggestion{
			Text:        e.Suggestion.SuggestionText,
			SearchQuery: e.Suggestion.SearchQuery,
			ImageURL:    e.ImageURL,
			Source:      suggest.SourceAI,
		})
		if s.callbacks.OnSuggestion != nil {
			s.callbacks.OnSuggestion(added)
		}

	case transcribe.VisualMoments:
		for _, m := range e.Moments {
			added := s.queue.Add(suggest.Suggestion{
				Text:        m.Suggestion,
				SearchQuery: m.SearchQuery,
				Source:      suggest.SourceAI,
			})
			if s.callbacks.OnSuggestion != nil {
				s.callbacks.OnSuggestion(added)
			}
		}

	case transcribe.NoSuggestion:
		log.Debug("no suggestion", "message", e.Message)

	case transcribe.RateLimited:
		wait := time.Duration(e.RetryAfterSeconds) * time.Second
		if wait <= 0 {
			wait = time.Duration(s.cfg.SuggestionIntervalSeconds) * time.Second
		}
		s.mu.Lock()
		s.suggestResume = time.Now().Add(wait)
		s.mu.Unlock()
		log.Warn("rate limited, suggestions paused", "reason", e.Reason, "retryAfter", wait)

	case transcribe.RateLimits:
		log.Debug("rate limits", "minuteRemaining", e.MinuteRemaining)

	case transcribe.ServerError:
		log.Warn("transcription service error", "message", e.Message)
	}
}

func (s *Studio) handleVoiceCommand(cmd voice.Command) {
	log.Info("voice command", "command", string(cmd))
	switch cmd {
	case voice.CommandShow:
		s.AcceptCurrentSuggestion()
	case voice.CommandNext:
		s.queue.Next()
	case voice.CommandClear:
		s.compositor.ClearOverlay()
	case voice.CommandDismiss:
		if cur, ok := s.queue.Current(); ok {
			s.queue.Dismiss(cur.ID)
		}
	}
}

// AcceptCurrentSuggestion removes the current suggestion and loads it
// as the overlay. Suggestions without a ready image go through the
// image-generation collaborator; failures there are logged and
// swallowed so a transient AI error never interrupts the recording.
func (s *Studio) AcceptCurrentSuggestion() {
	cur, ok := s.queue.Current()
	if !ok {
		return
	}
	s.queue.Accept(cur.ID)

	s.pool.Submit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), collabTimeout)
		defer cancel()

		imageURL := cur.ImageURL
		if imageURL == "" {
			prompt := cur.Text
			if prompt == "" {
				prompt = cur.SearchQuery
			}
			resp, err := s.client.GenerateImage(ctx, &api.GenerateImageRequest{
				Prompt:  prompt,
				Context: cur.SearchQuery,
			})
			if err != nil {
				log.Warn("image generation failed", logging.KeyError, err)
				return
			}
			imageURL = resp.ImageURL
			s.compositor.ApplyOverlay(placementUpdate(resp.Position, resp.Scale))
		}

		resolved := s.resolveURL(imageURL)
		if err := s.compositor.SetOverlayImage(ctx, resolved); err != nil {
			if !errors.Is(err, compose.ErrOverlaySuperseded) {
				log.Warn("overlay load failed", "url", resolved, logging.KeyError, err)
			}
		}
	})
}

// RefreshNameCard regenerates the name-card image from preferences.
// Failures are logged and swallowed.
func (s *Studio) RefreshNameCard() {
	name := s.cfg.PresenterName
	if name == "" {
		return
	}
	s.pool.Submit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), collabTimeout)
		defer cancel()
		resp, err := s.client.GenerateNameCard(ctx, &api.GenerateNameCardRequest{
			Name:  name,
			Title: s.cfg.PresenterTitle,
		})
		if err != nil {
			log.Warn("name card generation failed", logging.KeyError, err)
			return
		}
		log.Info("name card generated", "url", resp.ImageURL)
	})
}

// placementUpdate maps the collaborator's position vocabulary onto
// overlay anchors. The service's center-left/center-right variants
// collapse to center.
func placementUpdate(position string, scale float64) compose.OverlayUpdate {
	var anchor compose.Anchor
	switch position {
	case "top-left":
		anchor = compose.AnchorTopLeft
	case "top-right":
		anchor = compose.AnchorTopRight
	case "bottom-left":
		anchor = compose.AnchorBottomLeft
	case "bottom-right":
		anchor = compose.AnchorBottomRight
	default:
		anchor = compose.AnchorCenter
	}
	u := compose.OverlayUpdate{Anchor: &anchor}
	if scale > 0 {
		u.Scale = &scale
	}
	return u
}

// resolveURL makes collaborator-relative image paths absolute.
func (s *Studio) resolveURL(ref string) string {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	base, err := url.Parse(s.cfg.ServerURL)
	if err != nil {
		return ref
	}
	rel, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(rel).String()
}
