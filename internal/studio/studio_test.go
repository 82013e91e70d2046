package studio

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/davidgeorgehope/hotmike.app/internal/compose"
	"github.com/davidgeorgehope/hotmike.app/internal/config"
	"github.com/davidgeorgehope/hotmike.app/internal/media"
	"github.com/davidgeorgehope/hotmike.app/internal/suggest"
	"github.com/davidgeorgehope/hotmike.app/internal/transcribe"
	"github.com/davidgeorgehope/hotmike.app/pkg/api"
)

func newTestStudio(t *testing.T, callbacks Callbacks) *Studio {
	t.Helper()
	cfg := config.Default()
	cfg.OutputDir = t.TempDir()
	cfg.AIEnabled = false
	cfg.PresenterName = "Ada Lovelace"
	cfg.PresenterTitle = "Engineer"

	compositor := compose.New(cfg.CanvasWidth, cfg.CanvasHeight, cfg.FrameRate)
	acquirer := media.NewAcquirer(media.Backends{})
	client := api.NewClient(cfg.ServerURL, cfg.AuthToken)
	return New(cfg, acquirer, compositor, client, callbacks)
}

func TestStartRecordingEnforcesSingleSession(t *testing.T) {
	s := newTestStudio(t, Callbacks{})

	id, err := s.StartRecording(context.Background())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if id == "" {
		t.Fatal("empty session id")
	}
	if _, err := s.StartRecording(context.Background()); !errors.Is(err, ErrSessionActive) {
		t.Fatalf("second start err = %v", err)
	}
	if _, err := s.StopRecording(); err != nil {
		t.Fatalf("stop: %v", err)
	}

	id2, err := s.StartRecording(context.Background())
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	if id2 == id {
		t.Fatal("restart reused session id")
	}
	if _, err := s.StopRecording(); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func TestSessionStartClearsLiveAssistState(t *testing.T) {
	s := newTestStudio(t, Callbacks{})
	s.queue.Add(suggest.Suggestion{Text: "leftover", Source: suggest.SourceManual})
	s.transcript.Append("stale words")

	if _, err := s.StartRecording(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.StopRecording()

	if s.queue.Len() != 0 {
		t.Fatalf("queue not cleared: %d items", s.queue.Len())
	}
	if s.transcript.Len() != 0 {
		t.Fatalf("transcript not cleared: %d segments", s.transcript.Len())
	}
}

func TestFailedStartCleansUpOutputDir(t *testing.T) {
	s := newTestStudio(t, Callbacks{})
	s.cfg.FrameRate = -1

	if _, err := s.StartRecording(context.Background()); err == nil {
		t.Fatal("start succeeded with invalid frame rate")
	}
	entries, err := os.ReadDir(s.cfg.OutputDir)
	if err != nil {
		t.Fatalf("read output dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("aborted start left %d entries in output dir", len(entries))
	}
	if s.Recording() {
		t.Fatal("session marked live after failed start")
	}
}

func TestStopRecordingWithoutSession(t *testing.T) {
	s := newTestStudio(t, Callbacks{})
	if _, err := s.StopRecording(); err == nil {
		t.Fatal("stop without session succeeded")
	}
}

func TestLayoutKeys(t *testing.T) {
	s := newTestStudio(t, Callbacks{})

	s.HandleKey(KeyLayoutScreenPIP)
	if got := s.compositor.State().Layout; got != compose.LayoutScreenPIP {
		t.Fatalf("layout after '3' = %s", got)
	}
	s.HandleKey(KeyLayoutFaceCard)
	if got := s.compositor.State().Layout; got != compose.LayoutFaceCard {
		t.Fatalf("layout after '1' = %s", got)
	}
	s.HandleKey(KeyLayoutFaceOnly)
	if got := s.compositor.State().Layout; got != compose.LayoutFaceOnly {
		t.Fatalf("layout after '2' = %s", got)
	}
	s.HandleKey("unmapped")
}

func TestSuggestionKeysCycleAndDismiss(t *testing.T) {
	s := newTestStudio(t, Callbacks{})
	s1 := s.queue.Add(suggest.Suggestion{Text: "s1", Source: suggest.SourceManual})
	s2 := s.queue.Add(suggest.Suggestion{Text: "s2", Source: suggest.SourceManual})

	s.HandleKey(KeyNextSuggestion)
	if cur, _ := s.queue.Current(); cur.ID != s2.ID {
		t.Fatalf("current after tab = %s", cur.Text)
	}
	s.HandleKey(KeyDismissCurrent)
	if s.queue.Len() != 1 {
		t.Fatalf("len after dismiss = %d", s.queue.Len())
	}
	if cur, _ := s.queue.Current(); cur.ID != s1.ID {
		t.Fatalf("current after dismiss = %s", cur.Text)
	}
}

func TestEscapeStopsRecording(t *testing.T) {
	s := newTestStudio(t, Callbacks{})
	if _, err := s.StartRecording(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	s.HandleKey(KeyStopRecording)
	if s.Recording() {
		t.Fatal("escape did not stop the session")
	}
}

func TestChannelEventsFeedQueueAndTranscript(t *testing.T) {
	var gotSuggestions []suggest.Suggestion
	var gotSegments []transcribe.Segment
	s := newTestStudio(t, Callbacks{
		OnSuggestion: func(sg suggest.Suggestion) { gotSuggestions = append(gotSuggestions, sg) },
		OnTranscript: func(seg transcribe.Segment) { gotSegments = append(gotSegments, seg) },
	})

	s.handleChannelEvent(transcribe.Connected{SessionID: "x", AIAvailable: true})
	s.handleChannelEvent(transcribe.Transcription{Text: "welcome to the demo"})
	s.handleChannelEvent(transcribe.SuggestionEvent{
		Suggestion: transcribe.SuggestionPayload{SuggestionText: "a diagram", SearchQuery: "architecture diagram"},
		ImageURL:   "https://img.test/d.png",
	})
	s.handleChannelEvent(transcribe.VisualMoments{Moments: []transcribe.Moment{
		{Suggestion: "revenue chart", SearchQuery: "q3 revenue"},
	}})
	s.handleChannelEvent(transcribe.RateLimited{Reason: "minute_limit", RetryAfterSeconds: 30})

	if s.transcript.Len() != 1 || len(gotSegments) != 1 {
		t.Fatalf("transcript segments = %d, callback saw %d", s.transcript.Len(), len(gotSegments))
	}
	if s.queue.Len() != 2 || len(gotSuggestions) != 2 {
		t.Fatalf("queue = %d, callback saw %d", s.queue.Len(), len(gotSuggestions))
	}
	items := s.queue.Items()
	if items[0].Source != suggest.SourceAI || items[0].ImageURL != "https://img.test/d.png" {
		t.Fatalf("suggestion 0 = %+v", items[0])
	}
}

func TestRateLimitPausesSuggestionRequests(t *testing.T) {
	s := newTestStudio(t, Callbacks{})

	s.handleChannelEvent(transcribe.RateLimited{Reason: "minute_limit", RetryAfterSeconds: 60})
	s.mu.Lock()
	resume := s.suggestResume
	s.mu.Unlock()
	if !time.Now().Before(resume) {
		t.Fatal("rate limit did not push the suggestion resume time forward")
	}

	// Events without a retry hint still back off by one interval.
	s.handleChannelEvent(transcribe.RateLimited{Reason: "minute_limit"})
	s.mu.Lock()
	resume = s.suggestResume
	s.mu.Unlock()
	if resume.IsZero() {
		t.Fatal("rate limit without retry hint left resume time unset")
	}
}

func TestVoiceCommandsControlQueueAndOverlay(t *testing.T) {
	s := newTestStudio(t, Callbacks{})
	s.queue.Add(suggest.Suggestion{Text: "s1", Source: suggest.SourceManual})
	s2 := s.queue.Add(suggest.Suggestion{Text: "s2", Source: suggest.SourceManual})

	s.handleVoiceCommand("next")
	if cur, _ := s.queue.Current(); cur.ID != s2.ID {
		t.Fatalf("current after voice next = %s", cur.Text)
	}
	s.handleVoiceCommand("dismiss")
	if s.queue.Len() != 1 {
		t.Fatalf("len after voice dismiss = %d", s.queue.Len())
	}
	s.handleVoiceCommand("clear")
	if s.compositor.HasOverlay() {
		t.Fatal("overlay still set after voice clear")
	}
}

func TestResolveURL(t *testing.T) {
	s := newTestStudio(t, Callbacks{})
	if got := s.resolveURL("https://cdn.test/a.png"); got != "https://cdn.test/a.png" {
		t.Fatalf("absolute url rewritten: %s", got)
	}
	got := s.resolveURL("/api/generated-images/a.png")
	want := s.cfg.ServerURL + "/api/generated-images/a.png"
	if got != want {
		t.Fatalf("relative url = %s, want %s", got, want)
	}
}
