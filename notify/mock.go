package notify

import (
	"github.com/google/uuid"
	"sync"
)

// Sent is a notification that was recorded by Recorder.
type Sent struct {
	Handle uuid.UUID
	Edit   bool
	Key    Key
	Target string
	Args   []interface{}
}

// Recorder is a Notifier that only records sent notifications. It is meant for
// tests.
type Recorder struct {
	sent []Sent
	m    sync.Mutex
}

// Send records the notification.
func (r *Recorder) Send(key Key, target string, args ...interface{}) uuid.UUID {
	handle := uuid.New()
	r.m.Lock()
	defer r.m.Unlock()
	r.sent = append(r.sent, Sent{Handle: handle, Key: key, Target: target, Args: args})
	return handle
}

// Edit records the edit.
func (r *Recorder) Edit(handle uuid.UUID, key Key, target string, args ...interface{}) {
	r.m.Lock()
	defer r.m.Unlock()
	r.sent = append(r.sent, Sent{Handle: handle, Edit: true, Key: key, Target: target, Args: args})
}

// Sent returns a copy of all recorded notifications.
func (r *Recorder) Sent() []Sent {
	r.m.Lock()
	defer r.m.Unlock()
	sent := make([]Sent, len(r.sent))
	copy(sent, r.sent)
	return sent
}

// Count returns how often a notification with the given Key was sent. Edits
// are not counted.
func (r *Recorder) Count(key Key) int {
	r.m.Lock()
	defer r.m.Unlock()
	count := 0
	for _, s := range r.sent {
		if s.Key == key && !s.Edit {
			count++
		}
	}
	return count
}

// Edits returns all recorded edits of the message with the given handle.
func (r *Recorder) Edits(handle uuid.UUID) []Sent {
	r.m.Lock()
	defer r.m.Unlock()
	edits := make([]Sent, 0)
	for _, s := range r.sent {
		if s.Edit && s.Handle == handle {
			edits = append(edits, s)
		}
	}
	return edits
}

// Last returns the last recorded notification with the given Key.
func (r *Recorder) Last(key Key) (Sent, bool) {
	r.m.Lock()
	defer r.m.Unlock()
	for i := len(r.sent) - 1; i >= 0; i-- {
		if r.sent[i].Key == key {
			return r.sent[i], true
		}
	}
	return Sent{}, false
}
