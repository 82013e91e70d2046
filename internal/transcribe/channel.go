// Package transcribe maintains the bidirectional transcription
// channel: audio chunks stream out, transcript and suggestion events
// stream in, with keepalive and reconnection handled internally.
package transcribe

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/davidgeorgehope/hotmike.app/internal/logging"
)

var log = logging.L("transcribe")

const (
	writeWait      = 10 * time.Second
	pingInterval   = 30 * time.Second
	maxMessageSize = 512 * 1024
	initialBackoff = 1 * time.Second
	maxBackoff     = 60 * time.Second
	backoffFactor  = 2.0
	jitterFactor   = 0.3

	// closeAuthRejected is the server's close code for an invalid or
	// expired token. Like a normal closure, it is terminal.
	closeAuthRejected = 4001
)

var ErrChannelClosed = errors.New("channel closed")

// errNotConnected marks a fire-and-forget send dropped because the
// socket was not open.
var errNotConnected = errors.New("not connected, message dropped")

// ConnState is the channel connection state.
type ConnState string

const (
	StateDisconnected ConnState = "disconnected"
	StateConnecting   ConnState = "connecting"
	StateConnected    ConnState = "connected"
	StateReconnecting ConnState = "reconnecting"
	StateClosed       ConnState = "closed"
)

// transitions is the legal state graph. Closed is reachable from
// everywhere and terminal.
var transitions = map[ConnState]map[ConnState]bool{
	StateDisconnected: {StateConnecting: true, StateClosed: true},
	StateConnecting: {
		StateConnected:    true,
		StateReconnecting: true,
		StateDisconnected: true,
		StateClosed:       true,
	},
	StateConnected: {
		StateReconnecting: true,
		StateDisconnected: true,
		StateClosed:       true,
	},
	StateReconnecting: {
		StateConnecting:   true,
		StateDisconnected: true,
		StateClosed:       true,
	},
	StateClosed: {},
}

// Conn is the minimal socket surface the channel needs, split out so
// tests can run the state machine without a live endpoint.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
}

// Dialer opens one connection attempt.
type Dialer func(cfg Config) (Conn, error)

// CloseError reports a websocket-level closure with its close code.
// Stub transports return it to exercise terminal-closure handling.
type CloseError struct {
	Code   int
	Reason string
}

func (e *CloseError) Error() string {
	return fmt.Sprintf("connection closed: code %d %s", e.Code, e.Reason)
}

// closeCode extracts a close code from a read error, from either the
// real transport or a stub. Returns -1 when the error carries none.
func closeCode(err error) int {
	var gc *websocket.CloseError
	if errors.As(err, &gc) {
		return gc.Code
	}
	var cc *CloseError
	if errors.As(err, &cc) {
		return cc.Code
	}
	return -1
}

// Config identifies the session this channel serves.
type Config struct {
	ServerURL string
	AuthToken string
	SessionID string
}

// Handler receives every decoded inbound event, in arrival order, on
// the read goroutine.
type Handler func(ev Event)

// Channel owns at most one live socket for its session and reconnects
// on abnormal closure with capped exponential backoff. Normal closure
// and auth rejection are terminal.
type Channel struct {
	cfg     Config
	dial    Dialer
	handler Handler

	backoffInit time.Duration
	backoffMax  time.Duration

	mu      sync.Mutex
	state   ConnState
	conn    Conn
	started bool

	done      chan struct{}
	sendCh    chan []byte
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func NewChannel(cfg Config, handler Handler) *Channel {
	return &Channel{
		cfg:         cfg,
		dial:        dialGorilla,
		handler:     handler,
		backoffInit: initialBackoff,
		backoffMax:  maxBackoff,
		state:       StateDisconnected,
		done:        make(chan struct{}),
		sendCh:      make(chan []byte, 256),
	}
}

// State returns the current connection state.
func (c *Channel) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect starts the connection loop. Calling Connect while the
// channel is already running is a no-op; calling it after Close
// returns ErrChannelClosed.
func (c *Channel) Connect() error {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return ErrChannelClosed
	}
	if c.started {
		c.mu.Unlock()
		return nil
	}
	c.started = true
	c.mu.Unlock()

	c.wg.Add(1)
	go c.run()
	return nil
}

// Close tears the channel down. No reconnect is attempted afterwards.
func (c *Channel) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.state = StateClosed
		conn := c.conn
		c.conn = nil
		c.mu.Unlock()

		close(c.done)
		if conn != nil {
			conn.Close()
		}
		log.Info("channel closed", logging.KeySessionID, c.cfg.SessionID)
	})
	c.wg.Wait()
}

// setState applies a transition, rejecting moves the table forbids.
func (c *Channel) setState(to ConnState) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == to {
		return true
	}
	if !transitions[c.state][to] {
		log.Warn("rejected state transition",
			"from", string(c.state), "to", string(to))
		return false
	}
	log.Debug("channel state", "from", string(c.state), "to", string(to))
	c.state = to
	return true
}

func (c *Channel) run() {
	defer c.wg.Done()
	backoff := c.backoffInit

	for {
		select {
		case <-c.done:
			return
		default:
		}

		if !c.setState(StateConnecting) {
			return
		}
		conn, err := c.dial(c.cfg)
		if err != nil {
			log.Warn("connection failed", logging.KeyError, err)
			if !c.setState(StateReconnecting) {
				return
			}
			if !c.sleep(backoff) {
				return
			}
			backoff = c.nextBackoff(backoff)
			continue
		}

		backoff = c.backoffInit
		c.mu.Lock()
		if c.state == StateClosed {
			c.mu.Unlock()
			conn.Close()
			return
		}
		c.conn = conn
		c.mu.Unlock()
		if !c.setState(StateConnected) {
			conn.Close()
			return
		}
		log.Info("connected", "server", c.cfg.ServerURL,
			logging.KeySessionID, c.cfg.SessionID)

		pumpDone := make(chan struct{})
		go c.writePump(conn, pumpDone)
		readErr := c.readPump(conn)
		close(pumpDone)

		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		conn.Close()
		c.drainSendQueue()

		select {
		case <-c.done:
			return
		default:
		}

		if code := closeCode(readErr); code == websocket.CloseNormalClosure || code == closeAuthRejected {
			if code == closeAuthRejected {
				log.Error("authentication rejected, not retrying")
			} else {
				log.Info("server closed connection normally")
			}
			c.setState(StateDisconnected)
			return
		}

		log.Warn("connection dropped", logging.KeyError, readErr)
		if !c.setState(StateReconnecting) {
			return
		}
		if !c.sleep(backoff) {
			return
		}
		backoff = c.nextBackoff(backoff)
	}
}

// drainSendQueue discards anything queued against the connection that
// just ended, so a reconnect starts with an empty pipeline.
func (c *Channel) drainSendQueue() {
	for {
		select {
		case <-c.sendCh:
		default:
			return
		}
	}
}

// sleep waits out a backoff delay with ±jitter, returning false if the
// channel closed first.
func (c *Channel) sleep(backoff time.Duration) bool {
	jitter := time.Duration(float64(backoff) * jitterFactor * (rand.Float64()*2 - 1))
	delay := backoff + jitter
	if delay < 0 {
		delay = backoff
	}
	log.Info("reconnecting", "delay", delay)
	select {
	case <-c.done:
		return false
	case <-time.After(delay):
		return true
	}
}

func (c *Channel) nextBackoff(backoff time.Duration) time.Duration {
	backoff = time.Duration(float64(backoff) * backoffFactor)
	if backoff > c.backoffMax {
		backoff = c.backoffMax
	}
	return backoff
}

func (c *Channel) readPump(conn Conn) error {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		ev, err := decodeEvent(data)
		if err != nil {
			log.Warn("bad event", logging.KeyError, err)
			continue
		}
		if ev == nil {
			log.Debug("ignoring unknown event type")
			continue
		}
		if _, isPong := ev.(Pong); isPong {
			continue
		}
		if c.handler != nil {
			c.handler(ev)
		}
	}
}

func (c *Channel) writePump(conn Conn, pumpDone chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-pumpDone:
			return
		case <-c.done:
			return

		case message := <-c.sendCh:
			if err := conn.WriteMessage(message); err != nil {
				log.Warn("write error", logging.KeyError, err)
				return
			}

		case <-ticker.C:
			ping, err := json.Marshal(pingMsg{
				Type:      "ping",
				Timestamp: time.Now().UnixMilli(),
			})
			if err != nil {
				continue
			}
			if err := conn.WriteMessage(ping); err != nil {
				return
			}
		}
	}
}

// send queues a message without blocking; a full queue drops it with
// an error rather than stalling the media pipeline. Messages sent
// while the socket is not open are dropped outright, never queued —
// stale audio chunks must not replay after a reconnect.
func (c *Channel) send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	select {
	case <-c.done:
		return ErrChannelClosed
	default:
	}
	if c.State() != StateConnected {
		return errNotConnected
	}
	select {
	case c.sendCh <- data:
		return nil
	default:
		return errors.New("send queue full")
	}
}

// SendAudioChunk queues one audio slice, base64-encoded, and returns
// the chunk id assigned to it.
func (c *Channel) SendAudioChunk(payload []byte, mimeType string) (string, error) {
	chunkID := uuid.NewString()
	err := c.send(audioChunkMsg{
		Type:     "audio_chunk",
		Audio:    base64.StdEncoding.EncodeToString(payload),
		MimeType: mimeType,
		ChunkID:  chunkID,
	})
	if err != nil {
		return "", err
	}
	return chunkID, nil
}

// RequestSuggestion asks the service for a visual suggestion based on
// recent transcript.
func (c *Channel) RequestSuggestion(transcript, context string) error {
	return c.send(requestSuggestionMsg{
		Type:       "request_suggestion",
		Transcript: transcript,
		Context:    context,
	})
}

// DetectMoments asks the service to scan a transcript window for
// spans that would benefit from visuals.
func (c *Channel) DetectMoments(window string) error {
	return c.send(detectMomentsMsg{
		Type:             "detect_moments",
		TranscriptWindow: window,
	})
}

// RequestRateLimits asks for the remaining request budget.
func (c *Channel) RequestRateLimits() error {
	return c.send(getRateLimitsMsg{Type: "get_rate_limits"})
}

// dialGorilla is the production dialer.
func dialGorilla(cfg Config) (Conn, error) {
	u, err := url.Parse(cfg.ServerURL)
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	}
	u.Path = "/ws/transcription"
	q := u.Query()
	q.Set("token", cfg.AuthToken)
	q.Set("session_id", cfg.SessionID)
	u.RawQuery = q.Encode()

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	conn.SetReadLimit(maxMessageSize)
	return &gorillaConn{conn: conn}, nil
}

type gorillaConn struct {
	conn *websocket.Conn
}

func (g *gorillaConn) ReadMessage() ([]byte, error) {
	_, data, err := g.conn.ReadMessage()
	return data, err
}

func (g *gorillaConn) WriteMessage(data []byte) error {
	g.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return g.conn.WriteMessage(websocket.TextMessage, data)
}

func (g *gorillaConn) Close() error {
	g.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait),
	)
	return g.conn.Close()
}
