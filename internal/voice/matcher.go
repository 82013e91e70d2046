// Package voice matches spoken wake phrases in the rolling transcript
// and fires composition commands hands-free.
package voice

import (
	"regexp"
	"sync"
	"time"

	"github.com/davidgeorgehope/hotmike.app/internal/logging"
	"github.com/davidgeorgehope/hotmike.app/internal/transcribe"
)

var log = logging.L("voice")

// Command is a recognized spoken command.
type Command string

const (
	CommandShow    Command = "show"
	CommandNext    Command = "next"
	CommandClear   Command = "clear"
	CommandDismiss Command = "dismiss"
)

const (
	// cooldown suppresses re-firing after any match.
	cooldown = 2 * time.Second
	// rescanInterval is how often the straddle check runs.
	rescanInterval = 3 * time.Second
	// rescanWindow is the trailing transcript span the straddle check
	// covers, catching phrases split across segment boundaries.
	rescanWindow = 5 * time.Second
)

type commandSpec struct {
	name     Command
	patterns []*regexp.Regexp
}

func compileAll(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(`(?i)` + e)
	}
	return out
}

// commands in priority order: the first matching command fires and
// the rest are skipped for that text.
var commands = []commandSpec{
	{CommandShow, compileAll(
		`\bmike[,.!]?\s+show\b`,
		`\bmike[,.!]?\s+display\b`,
	)},
	{CommandNext, compileAll(
		`\bmike[,.!]?\s+next\b`,
		`\bmike[,.!]?\s+skip\b`,
	)},
	{CommandClear, compileAll(
		`\bmike[,.!]?\s+clear\b`,
		`\bmike[,.!]?\s+hide\b`,
	)},
	{CommandDismiss, compileAll(
		`\bmike[,.!]?\s+dismiss\b`,
		`\bmike[,.!]?\s+no\s+thanks\b`,
	)},
}

func matchCommand(text string) (Command, bool) {
	for _, spec := range commands {
		for _, re := range spec.patterns {
			if re.MatchString(text) {
				return spec.name, true
			}
		}
	}
	return "", false
}

// Action receives each fired command.
type Action func(cmd Command)

// Matcher scans transcript growth incrementally and, on a slower
// tick, re-scans a rolling window for phrases that straddle segment
// boundaries. A single cooldown gates both paths.
type Matcher struct {
	transcript *transcribe.Transcript
	onCommand  Action
	clock      func() time.Time

	mu        sync.Mutex
	lastIndex int
	lastFired time.Time
	hasFired  bool
	running   bool
	done      chan struct{}

	wg sync.WaitGroup
}

func NewMatcher(tr *transcribe.Transcript, onCommand Action) *Matcher {
	return &Matcher{
		transcript: tr,
		onCommand:  onCommand,
		clock:      time.Now,
	}
}

// Start launches the background straddle check. Idempotent.
func (m *Matcher) Start() {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.done = make(chan struct{})
	done := m.done
	m.mu.Unlock()

	m.wg.Add(1)
	go m.rescanLoop(done)
}

// Stop halts the background check. Idempotent.
func (m *Matcher) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	close(m.done)
	m.mu.Unlock()
	m.wg.Wait()
}

// Reset forgets scan progress and the cooldown, for a new session.
func (m *Matcher) Reset() {
	m.mu.Lock()
	m.lastIndex = 0
	m.hasFired = false
	m.mu.Unlock()
}

// Scan tests only the transcript text appended since the previous
// call. Intended to run on every transcription event.
func (m *Matcher) Scan() {
	m.mu.Lock()
	text, idx := m.transcript.TextFrom(m.lastIndex)
	m.lastIndex = idx
	m.mu.Unlock()
	if text == "" {
		return
	}
	m.tryFire(text)
}

func (m *Matcher) rescanLoop(done chan struct{}) {
	defer m.wg.Done()
	ticker := time.NewTicker(rescanInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if text := m.transcript.WindowText(rescanWindow); text != "" {
				m.tryFire(text)
			}
		}
	}
}

func (m *Matcher) tryFire(text string) {
	cmd, ok := matchCommand(text)
	if !ok {
		return
	}

	m.mu.Lock()
	now := m.clock()
	if m.hasFired && now.Sub(m.lastFired) < cooldown {
		m.mu.Unlock()
		log.Debug("command suppressed by cooldown", "command", string(cmd))
		return
	}
	m.lastFired = now
	m.hasFired = true
	m.mu.Unlock()

	log.Info("voice command matched", "command", string(cmd))
	if m.onCommand != nil {
		m.onCommand(cmd)
	}
}
