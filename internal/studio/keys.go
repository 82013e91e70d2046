package studio

import (
	"github.com/davidgeorgehope/hotmike.app/internal/compose"
	"github.com/davidgeorgehope/hotmike.app/internal/logging"
)

// Key names accepted by HandleKey.
const (
	KeyLayoutFaceCard  = "1"
	KeyLayoutFaceOnly  = "2"
	KeyLayoutScreenPIP = "3"
	KeyInsertCurrent   = "4"
	KeyClearOverlay    = "5"
	KeyNextSuggestion  = "tab"
	KeyDismissCurrent  = "`"
	KeyStopRecording   = "escape"
)

// HandleKey dispatches one control-surface key press. Unknown keys
// are ignored.
func (s *Studio) HandleKey(key string) {
	switch key {
	case KeyLayoutFaceCard:
		s.compositor.SetLayout(compose.LayoutFaceCard)
	case KeyLayoutFaceOnly:
		s.compositor.SetLayout(compose.LayoutFaceOnly)
	case KeyLayoutScreenPIP:
		s.compositor.SetLayout(compose.LayoutScreenPIP)
	case KeyInsertCurrent:
		s.AcceptCurrentSuggestion()
	case KeyClearOverlay:
		s.compositor.ClearOverlay()
	case KeyNextSuggestion:
		s.queue.Next()
	case KeyDismissCurrent:
		if cur, ok := s.queue.Current(); ok {
			s.queue.Dismiss(cur.ID)
		}
	case KeyStopRecording:
		if s.Recording() {
			if _, err := s.StopRecording(); err != nil {
				log.Warn("stop recording", logging.KeyError, err)
			}
		}
	}
}
