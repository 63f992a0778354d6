package watch

import (
	"strings"
	"time"
)

// Ticker rotates through frames to show the watcher is alive.
type Ticker struct {
	frames []string
	index  int
}

func NewTicker() Ticker {
	return Ticker{frames: []string{"⟲", "⟳"}}
}

func (t *Ticker) Tick() {
	t.index = (t.index + 1) % len(t.frames)
}

func (t Ticker) Current() string {
	return t.frames[t.index]
}

// Spinner lights up when new queries arrive and fades over time.
type Spinner struct {
	dots         int
	lastActivity time.Time
}

func (s *Spinner) OnActivity(at time.Time) {
	s.dots = 5
	s.lastActivity = at
}

// Decay drops one dot for every two seconds without activity.
func (s *Spinner) Decay(now time.Time) {
	if s.dots == 0 {
		return
	}
	left := 5 - int(now.Sub(s.lastActivity)/(2*time.Second))
	if left < 0 {
		left = 0
	}
	if left < s.dots {
		s.dots = left
	}
}

func (s Spinner) Render(theme Theme) string {
	var result strings.Builder
	for i := range 5 {
		if i < s.dots {
			result.WriteString(theme.TickerActive.Render("●"))
		} else {
			result.WriteString(theme.TickerInactive.Render("○"))
		}
	}
	return result.String()
}

func (s Spinner) LastActivity() time.Time {
	return s.lastActivity
}
