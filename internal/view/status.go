package view

import (
	"sync"
	"time"
)

// StatusSink receives status line updates
type StatusSink interface {
	SetStatus(text string, kind StatusKind)
}

// StatusLine shows transient status messages. Each Show cancels the clear
// scheduled by the previous one, so a message is never blanked early.
type StatusLine struct {
	sink StatusSink
	ttl  time.Duration

	mu    sync.Mutex
	timer *time.Timer
	gen   uint64
}

// NewStatusLine clears messages ttl after they are shown
func NewStatusLine(sink StatusSink, ttl time.Duration) *StatusLine {
	return &StatusLine{sink: sink, ttl: ttl}
}

// Show displays text now and reschedules the single pending clear
func (s *StatusLine) Show(text string, kind StatusKind) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
	}
	s.gen++
	gen := s.gen

	s.sink.SetStatus(text, kind)
	s.timer = time.AfterFunc(s.ttl, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		// a timer that fired while being stopped must not clear a newer message
		if gen != s.gen {
			return
		}
		s.sink.SetStatus("", StatusNone)
		s.timer = nil
	})
}

// Stop cancels any pending clear
func (s *StatusLine) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.gen++
}
