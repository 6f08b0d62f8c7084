package cues

import (
	"sync"
	"time"
)

// Issued is a command recorded by Recorder.
type Issued struct {
	Bot     Bot
	Action  string
	Channel string
	Clip    Clip
}

// Recorder is a Dispatcher that only records commands. Durations are always
// zero. It is meant for tests.
type Recorder struct {
	issued []Issued
	m      sync.Mutex
}

func (r *Recorder) record(i Issued) {
	r.m.Lock()
	defer r.m.Unlock()
	r.issued = append(r.issued, i)
}

// Move records a move.
func (r *Recorder) Move(bot Bot, channel string) {
	r.record(Issued{Bot: bot, Action: "move", Channel: channel})
}

// Enqueue records an enqueue.
func (r *Recorder) Enqueue(bot Bot, clip Clip) {
	r.record(Issued{Bot: bot, Action: "enqueue", Clip: clip})
}

// Play records a play.
func (r *Recorder) Play(bot Bot, clip Clip) {
	r.record(Issued{Bot: bot, Action: "play", Clip: clip})
}

// Duration returns zero.
func (r *Recorder) Duration(_ Clip) time.Duration {
	return 0
}

// Issued returns a copy of all recorded commands.
func (r *Recorder) Issued() []Issued {
	r.m.Lock()
	defer r.m.Unlock()
	issued := make([]Issued, len(r.issued))
	copy(issued, r.issued)
	return issued
}
