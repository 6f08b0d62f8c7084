// Package lobby holds the shared waiting pool of players and the Coordinator
// that feeds full lobbies into free match slots.
package lobby

import (
	"context"
	"github.com/lefinal/pug-server/errors"
	"github.com/lefinal/pug-server/games"
	"github.com/lefinal/pug-server/notify"
	"github.com/lefinal/pug-server/scheduling"
	"go.uber.org/zap"
	"math/rand/v2"
	"sync"
	"time"
)

// Target is the notification target for lobby notifications.
const Target = "lobby"

// Config is the configuration for Queue.
type Config struct {
	// Capacity is the number of players needed for a match. It must be even and
	// at least 2.
	Capacity int `mapstructure:"capacity"`
	// ReminderDelay is the delay after reaching the reminder threshold before
	// the reminder is sent.
	ReminderDelay time.Duration `mapstructure:"reminder_delay"`
	// InactivityGrace is the time a player marked as inactive stays in the lobby
	// before being removed.
	InactivityGrace time.Duration `mapstructure:"inactivity_grace"`
	// VoiceChannel is the lobby voice channel the lobby bot returns to for
	// match announcements.
	VoiceChannel string `mapstructure:"voice_channel"`
	// AnnounceDelay is the delay after a match announcement before the lobby
	// bot moves to the match channel. The duration of the announcement clip is
	// added.
	AnnounceDelay time.Duration `mapstructure:"announce_delay"`
}

// ReminderThreshold returns the lobby size at which a reminder is scheduled.
func (c Config) ReminderThreshold() int {
	return c.Capacity - c.Capacity/3
}

// Snapshot is the state of a Queue at a point in time.
type Snapshot struct {
	Capacity int
	// Players holds the ids of all waiting players in join order.
	Players []string
	Stuck   bool
}

// Queue is the lobby. Once it reaches capacity, the onFull callback is called
// asynchronously.
type Queue struct {
	logger   *zap.Logger
	config   Config
	notifier notify.Notifier
	onFull   func()
	tasks    *scheduling.Group
	// m locks all fields below.
	m sync.Mutex
	// players in join order.
	players []*games.Player
	stuck   bool
	// reminderArmed is set when the reminder threshold was reached since the
	// last reset.
	reminderArmed bool
	reminder      *scheduling.Task
	// inactive holds the removal tasks of players marked as inactive by their
	// id.
	inactive map[string]*scheduling.Task
}

// NewQueue creates a new Queue. Timers are cancelled when the given lifetime
// is done.
func NewQueue(lifetime context.Context, logger *zap.Logger, config Config, notifier notify.Notifier,
	onFull func()) *Queue {
	return &Queue{
		logger:   logger,
		config:   config,
		notifier: notifier,
		onFull:   onFull,
		tasks:    scheduling.NewGroup(lifetime),
		players:  make([]*games.Player, 0, config.Capacity),
		inactive: make(map[string]*scheduling.Task),
	}
}

// Capacity returns the configured capacity.
func (q *Queue) Capacity() int {
	return q.config.Capacity
}

// Len returns the number of waiting players.
func (q *Queue) Len() int {
	q.m.Lock()
	defer q.m.Unlock()
	return len(q.players)
}

// Join adds the given player. The player must be registered and not part of
// the lobby or a match.
func (q *Queue) Join(p *games.Player) error {
	q.m.Lock()
	defer q.m.Unlock()
	switch p.Status() {
	case games.PlayerRegistered:
	case games.PlayerLobbied:
		return errors.NewBadRequestError(errors.KindPlayerAlreadyLobbied, "player already in lobby",
			errors.Details{"player": p.ID})
	default:
		return errors.NewBadRequestError(errors.KindPlayerUnavailable, "player not available",
			errors.Details{"player": p.ID, "status": p.Status().String()})
	}
	if len(q.players) >= q.config.Capacity {
		return errors.NewBadRequestError(errors.KindLobbyFull, "lobby full", errors.Details{
			"capacity": q.config.Capacity,
		})
	}
	q.players = append(q.players, p)
	p.SetStatus(games.PlayerLobbied)
	q.notifier.Send(notify.KeyLobbyAdded, Target, p.Name, len(q.players), q.config.Capacity)
	q.logger.Debug("player joined", zap.String("player", p.ID), zap.Int("size", len(q.players)))
	if len(q.players) == q.config.Capacity {
		if q.onFull != nil {
			go q.onFull()
		}
		return nil
	}
	if len(q.players) >= q.config.ReminderThreshold() && !q.reminderArmed {
		q.reminderArmed = true
		q.reminder = q.tasks.After(q.config.ReminderDelay, q.remind)
	}
	return nil
}

// remind sends the lobby reminder if the lobby is still above the threshold
// but not full.
func (q *Queue) remind(ctx context.Context) {
	q.m.Lock()
	defer q.m.Unlock()
	if ctx.Err() != nil {
		return
	}
	size := len(q.players)
	if size < q.config.ReminderThreshold() || size >= q.config.Capacity {
		return
	}
	q.notifier.Send(notify.KeyLobbyReminder, Target, size, q.config.Capacity-size)
}

// remove the player at the given index. The status is not changed.
func (q *Queue) remove(i int) *games.Player {
	p := q.players[i]
	q.players = append(q.players[:i], q.players[i+1:]...)
	if task, ok := q.inactive[p.ID]; ok {
		task.Cancel()
		delete(q.inactive, p.ID)
	}
	q.stuck = false
	q.resetReminder()
	return p
}

// resetReminder cancels and disarms the reminder if the lobby dropped below
// the threshold.
func (q *Queue) resetReminder() {
	if len(q.players) >= q.config.ReminderThreshold() || !q.reminderArmed {
		return
	}
	q.reminderArmed = false
	if q.reminder != nil {
		q.reminder.Cancel()
		q.reminder = nil
	}
}

func (q *Queue) indexOf(playerID string) (int, error) {
	for i, p := range q.players {
		if p.ID == playerID {
			return i, nil
		}
	}
	return 0, errors.NewBadRequestError(errors.KindPlayerNotLobbied, "player not in lobby",
		errors.Details{"player": playerID})
}

// Leave removes the player with the given id and releases it.
func (q *Queue) Leave(playerID string) error {
	q.m.Lock()
	defer q.m.Unlock()
	i, err := q.indexOf(playerID)
	if err != nil {
		return err
	}
	p := q.remove(i)
	p.SetStatus(games.PlayerRegistered)
	q.notifier.Send(notify.KeyLobbyRemoved, Target, p.Name, len(q.players), q.config.Capacity)
	return nil
}

// Take removes and returns all players if the lobby is full. The status of the
// players is not changed.
func (q *Queue) Take() ([]*games.Player, bool) {
	q.m.Lock()
	defer q.m.Unlock()
	if len(q.players) < q.config.Capacity {
		return nil, false
	}
	roster := q.players
	q.players = make([]*games.Player, 0, q.config.Capacity)
	for id, task := range q.inactive {
		task.Cancel()
		delete(q.inactive, id)
	}
	q.stuck = false
	q.resetReminder()
	return roster, true
}

// putBack re-adds the given players in front of the lobby after a failed match
// start. Players that joined in the meantime and no longer fit are released.
func (q *Queue) putBack(players []*games.Player) {
	q.m.Lock()
	defer q.m.Unlock()
	all := append(append(make([]*games.Player, 0, len(players)+len(q.players)), players...), q.players...)
	if len(all) <= q.config.Capacity {
		q.players = all
		return
	}
	q.players = all[:q.config.Capacity]
	for _, p := range all[q.config.Capacity:] {
		if task, ok := q.inactive[p.ID]; ok {
			task.Cancel()
			delete(q.inactive, p.ID)
		}
		p.SetStatus(games.PlayerRegistered)
		q.notifier.Send(notify.KeyLobbyRemoved, Target, p.Name, len(q.players), q.config.Capacity)
	}
}

// DrawSubstitute removes and returns a random waiting player. If the lobby is
// empty, an errors.KindNoSubstitute error is returned.
func (q *Queue) DrawSubstitute() (*games.Player, error) {
	q.m.Lock()
	defer q.m.Unlock()
	if len(q.players) == 0 {
		return nil, errors.Error{
			Code:    errors.ErrConflict,
			Kind:    errors.KindNoSubstitute,
			Message: "no substitute available",
		}
	}
	p := q.remove(rand.IntN(len(q.players)))
	q.notifier.Send(notify.KeyLobbyRemoved, Target, p.Name, len(q.players), q.config.Capacity)
	return p, nil
}

// SetStuck sets whether the lobby is full but no match slot is free.
func (q *Queue) SetStuck(stuck bool) {
	q.m.Lock()
	defer q.m.Unlock()
	q.stuck = stuck
}

// IsStuck describes whether the lobby is full but no match slot is free.
func (q *Queue) IsStuck() bool {
	q.m.Lock()
	defer q.m.Unlock()
	return q.stuck
}

// MarkInactive starts the grace period for the player with the given id. If
// the player is not marked active again before it elapses, it is removed.
func (q *Queue) MarkInactive(playerID string) error {
	q.m.Lock()
	defer q.m.Unlock()
	if _, err := q.indexOf(playerID); err != nil {
		return err
	}
	if _, ok := q.inactive[playerID]; ok {
		return nil
	}
	q.inactive[playerID] = q.tasks.After(q.config.InactivityGrace, func(ctx context.Context) {
		q.expire(ctx, playerID)
	})
	return nil
}

// MarkActive cancels the grace period for the player with the given id.
func (q *Queue) MarkActive(playerID string) {
	q.m.Lock()
	defer q.m.Unlock()
	if task, ok := q.inactive[playerID]; ok {
		task.Cancel()
		delete(q.inactive, playerID)
	}
}

func (q *Queue) expire(ctx context.Context, playerID string) {
	q.m.Lock()
	defer q.m.Unlock()
	if ctx.Err() != nil {
		return
	}
	delete(q.inactive, playerID)
	i, err := q.indexOf(playerID)
	if err != nil {
		return
	}
	p := q.remove(i)
	p.SetStatus(games.PlayerRegistered)
	q.notifier.Send(notify.KeyLobbyWentInactive, Target, p.Name, len(q.players), q.config.Capacity)
	q.logger.Debug("removed inactive player", zap.String("player", p.ID))
}

// Clear removes all players and releases them. It reports whether anybody was
// removed.
func (q *Queue) Clear() bool {
	q.m.Lock()
	defer q.m.Unlock()
	if len(q.players) == 0 {
		return false
	}
	for len(q.players) > 0 {
		q.remove(0).SetStatus(games.PlayerRegistered)
	}
	q.notifier.Send(notify.KeyLobbyCleared, Target)
	return true
}

// Snapshot returns the current state.
func (q *Queue) Snapshot() Snapshot {
	q.m.Lock()
	defer q.m.Unlock()
	players := make([]string, 0, len(q.players))
	for _, p := range q.players {
		players = append(players, p.ID)
	}
	return Snapshot{
		Capacity: q.config.Capacity,
		Players:  players,
		Stuck:    q.stuck,
	}
}
