package games

import (
	"context"
	"github.com/google/uuid"
	"github.com/lefinal/pug-server/cues"
	"github.com/lefinal/pug-server/maps"
	"github.com/lefinal/pug-server/notify"
	"github.com/lefinal/pug-server/store"
	"time"
)

// SlotConfig is the configuration of a match slot.
type SlotConfig struct {
	// ID identifies the slot. It is also used as notification target.
	ID string `mapstructure:"id"`
	// VoiceChannel is where the lobby bot moves when a match starts in the
	// slot.
	VoiceChannel string `mapstructure:"voice_channel"`
	// AnnouncementClip is enqueued in the lobby when a match starts in the slot.
	AnnouncementClip cues.Clip `mapstructure:"announcement_clip"`
}

// CountdownStep is one step of the countdown before a round starts.
type CountdownStep struct {
	// Delay to wait before the step.
	Delay time.Duration `mapstructure:"delay"`
	// Remaining are the announced seconds until start. Zero skips the
	// notification.
	Remaining int `mapstructure:"remaining"`
	// Clip is played for both teams if set.
	Clip cues.Clip `mapstructure:"clip"`
}

// DefaultCountdown is the countdown used if none is configured.
func DefaultCountdown() []CountdownStep {
	return []CountdownStep{
		{Delay: 0, Remaining: 30, Clip: cues.ClipCountdown30},
		{Delay: 10 * time.Second, Remaining: 20},
		{Delay: 8 * time.Second, Clip: cues.ClipCountdown10},
		{Delay: 2 * time.Second, Remaining: 10},
		{Delay: 3200 * time.Millisecond, Clip: cues.ClipCountdown5},
		{Delay: 6800 * time.Millisecond},
	}
}

// MatchConfig is the configuration for all matches.
type MatchConfig struct {
	// RoundLength is the duration of each of the two rounds.
	RoundLength time.Duration
	Factions    Factions
	// Maps is the map pool. A single map is confirmed automatically.
	Maps      []maps.Map
	Countdown []CountdownStep
	// PickCueDelay is the delay after launch before the pick cue is enqueued.
	PickCueDelay time.Duration
	// MapCueDelay is the delay before the map selection cue is enqueued.
	MapCueDelay time.Duration
	// ReadyCueDelay is the delay after the ready prompt before the ready cue is
	// enqueued.
	ReadyCueDelay time.Duration
	// SwapCueDelay is the delay after round one before the swap cue is
	// enqueued.
	SwapCueDelay time.Duration
	// AccountTimeout is the timeout for operations on the account pool.
	AccountTimeout time.Duration
}

// AccountAllocator grants accounts for one match session.
type AccountAllocator interface {
	// Reserve the given number of accounts. Fails with
	// errors.KindAccountsNotEnough if not enough are available.
	Reserve(ctx context.Context, count int) ([]string, error)
	// Sync records the usage of reserved accounts.
	Sync(ctx context.Context) error
	// Release all reserved accounts.
	Release(ctx context.Context) error
}

// Recorder persists completed matches.
type Recorder interface {
	// InsertMatch inserts the given record. Fails with
	// errors.KindDuplicateRecord if the match number is already recorded.
	InsertMatch(ctx context.Context, record store.MatchRecord) error
	// UpdatePlayerStats updates the statistics of the given players.
	UpdatePlayerStats(ctx context.Context, matchNumber int, playerIDs []string) error
}

// Deps are the collaborators of a Match.
type Deps struct {
	Notifier notify.Notifier
	Cues     cues.Dispatcher
	Recorder Recorder
	// NewAllocator creates an AccountAllocator for a new match session.
	NewAllocator func(sessionID uuid.UUID) AccountAllocator
}
