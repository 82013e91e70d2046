package transcribe

import (
	"encoding/json"
	"fmt"
)

// Outbound message shapes. Every message carries a "type" tag.

type pingMsg struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

type audioChunkMsg struct {
	Type     string `json:"type"`
	Audio    string `json:"audio"` // base64 payload
	MimeType string `json:"mime_type"`
	ChunkID  string `json:"chunk_id"`
}

type requestSuggestionMsg struct {
	Type       string `json:"type"`
	Transcript string `json:"transcript"`
	Context    string `json:"context,omitempty"`
}

type detectMomentsMsg struct {
	Type             string `json:"type"`
	TranscriptWindow string `json:"transcript_window"`
}

type getRateLimitsMsg struct {
	Type string `json:"type"`
}

// Event is an inbound server event. The concrete type is one of the
// structs below.
type Event interface {
	eventType() string
}

// Connected confirms the session after the handshake.
type Connected struct {
	SessionID   string `json:"session_id"`
	AIAvailable bool   `json:"ai_available"`
}

// Pong answers an application-level ping.
type Pong struct{}

// Transcription carries recognized text for one audio chunk.
type Transcription struct {
	Text    string `json:"text"`
	ChunkID string `json:"chunk_id"`
}

// SuggestionPayload is the nested suggestion body.
type SuggestionPayload struct {
	ShouldSuggest  bool   `json:"should_suggest"`
	SuggestionText string `json:"suggestion_text"`
	SearchQuery    string `json:"search_query"`
	ImagePrompt    string `json:"image_prompt"`
	Reasoning      string `json:"reasoning"`
}

// SuggestionEvent proposes a visual for recent speech.
type SuggestionEvent struct {
	Suggestion SuggestionPayload `json:"suggestion"`
	ImageURL   string            `json:"image_url"`
}

// Moment is one transcript span that would benefit from a visual.
type Moment struct {
	TextSnippet string  `json:"text_snippet"`
	Suggestion  string  `json:"suggestion"`
	SearchQuery string  `json:"search_query"`
	ImagePrompt string  `json:"image_prompt"`
	Importance  string  `json:"importance"`
	Position    string  `json:"position"`
	Scale       float64 `json:"scale"`
}

// VisualMoments is the reply to a detect_moments request.
type VisualMoments struct {
	Moments []Moment `json:"moments"`
}

// NoSuggestion reports that the service saw nothing worth suggesting.
type NoSuggestion struct {
	Message string `json:"message"`
}

// RateLimited rejects one request; the connection stays up.
type RateLimited struct {
	Reason            string `json:"reason"`
	Message           string `json:"message"`
	RetryAfterSeconds int    `json:"retry_after_seconds"`
}

// RateLimits reports remaining request budget.
type RateLimits struct {
	MinuteRemaining  int  `json:"minute_remaining"`
	MinuteLimit      int  `json:"minute_limit"`
	SessionRemaining *int `json:"session_remaining"`
	SessionLimit     *int `json:"session_limit"`
}

// ServerError is a non-fatal error report from the service.
type ServerError struct {
	Message string `json:"message"`
}

func (Connected) eventType() string       { return "connected" }
func (Pong) eventType() string            { return "pong" }
func (Transcription) eventType() string   { return "transcription" }
func (SuggestionEvent) eventType() string { return "suggestion" }
func (VisualMoments) eventType() string   { return "visual_moments" }
func (NoSuggestion) eventType() string    { return "no_suggestion" }
func (RateLimited) eventType() string     { return "rate_limited" }
func (RateLimits) eventType() string      { return "rate_limits" }
func (ServerError) eventType() string     { return "error" }

// decodeEvent parses one inbound frame. Unknown types return
// (nil, nil) so the reader can skip them without treating new server
// message kinds as protocol failures.
func decodeEvent(data []byte) (Event, error) {
	var tag struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		return nil, fmt.Errorf("parse event envelope: %w", err)
	}

	switch tag.Type {
	case "connected":
		var ev Connected
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("parse connected: %w", err)
		}
		return ev, nil
	case "pong":
		return Pong{}, nil
	case "transcription":
		var ev Transcription
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("parse transcription: %w", err)
		}
		return ev, nil
	case "suggestion":
		var ev SuggestionEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("parse suggestion: %w", err)
		}
		return ev, nil
	case "visual_moments":
		var ev VisualMoments
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("parse visual_moments: %w", err)
		}
		return ev, nil
	case "no_suggestion":
		var ev NoSuggestion
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("parse no_suggestion: %w", err)
		}
		return ev, nil
	case "rate_limited":
		var ev RateLimited
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("parse rate_limited: %w", err)
		}
		return ev, nil
	case "rate_limits":
		var ev RateLimits
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("parse rate_limits: %w", err)
		}
		return ev, nil
	case "error":
		var ev ServerError
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("parse error event: %w", err)
		}
		return ev, nil
	default:
		return nil, nil
	}
}
