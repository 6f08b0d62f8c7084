// Package cues issues commands to the voice-channel bots that play audio cues
// at match phase boundaries.
package cues

import (
	"context"
	"github.com/lefinal/pug-server/event"
	"github.com/lefinal/pug-server/portal"
	"go.uber.org/zap"
	"time"
)

// Bot identifies a voice bot.
type Bot string

const (
	// BotLobby is the bot in the lobby channel. It follows matches into their
	// channel and plays cues for team one.
	BotLobby Bot = "lobby"
	// BotTeam2 plays cues for the second team.
	BotTeam2 Bot = "team2"
)

// Clip identifies an audio clip known to the bots.
type Clip string

// Known clips.
const (
	ClipSelectTeams   Clip = "6eb6f5cc-99bd-4df6-9b59-bc85bd88ba7c"
	ClipSelectFaction Clip = "91da596c-2494-4dbc-9c59-71f74f3b68cb"
	ClipSelectMap     Clip = "21bb87b5-5279-45fd-90a7-7c31b5e5199d"
	ClipMapSelected   Clip = "ecf7b363-68dc-45d4-a69d-25553ce1f776"
	ClipTypeReady     Clip = "23ee2e94-8628-4285-aeee-d07e95a2f2ee"
	ClipCountdown30   Clip = "ff4d8310-06cd-449f-8d8e-00dda43dc102"
	ClipCountdown10   Clip = "2b68e6d3-6009-4662-a72e-9d9e2b84d67b"
	ClipCountdown5    Clip = "83693496-a410-4602-80dd-9ed74ec0a2fe"
	ClipSwapSides     Clip = "1ae444aa-12db-40da-b341-9ff98962829e"
	ClipRoundOver     Clip = "a0fbc373-13e7-4f14-81ec-47b40be7ab13"
)

// DefaultDuration is assumed for clips without configured duration.
const DefaultDuration = 5 * time.Second

// outboxSize is the number of cue commands that may be pending.
const outboxSize = 64

// Dispatcher issues commands to voice bots. Commands never block the caller.
type Dispatcher interface {
	// Move the bot to the given channel.
	Move(bot Bot, channel string)
	// Enqueue the clip to play after the current one.
	Enqueue(bot Bot, clip Clip)
	// Play the clip immediately.
	Play(bot Bot, clip Clip)
	// Duration returns the duration of the given clip.
	Duration(clip Clip) time.Duration
}

// command is a queued command for a bot.
type command struct {
	bot     Bot
	payload event.CueCommandEvent
}

// PortalDispatcher is a Dispatcher publishing to the bots' topics while
// PortalDispatcher.Run is running.
type PortalDispatcher struct {
	logger    *zap.Logger
	portal    portal.Portal
	durations map[Clip]time.Duration
	outbox    chan command
}

// NewPortalDispatcher creates a new PortalDispatcher. The given durations are
// returned for Dispatcher.Duration.
func NewPortalDispatcher(logger *zap.Logger, portal portal.Portal, durations map[Clip]time.Duration) *PortalDispatcher {
	if durations == nil {
		durations = make(map[Clip]time.Duration)
	}
	return &PortalDispatcher{
		logger:    logger,
		portal:    portal,
		durations: durations,
		outbox:    make(chan command, outboxSize),
	}
}

// BotTopic returns the topic where commands for the given Bot are published.
func BotTopic(bot Bot) portal.Topic {
	return portal.BaseTopic.Join("cues", string(bot))
}

// Move the bot. See Dispatcher.Move.
func (d *PortalDispatcher) Move(bot Bot, channel string) {
	d.enqueue(bot, event.CueCommandEvent{Action: event.CueActionMove, Channel: channel})
}

// Enqueue the clip. See Dispatcher.Enqueue.
func (d *PortalDispatcher) Enqueue(bot Bot, clip Clip) {
	d.enqueue(bot, event.CueCommandEvent{Action: event.CueActionEnqueue, Clip: string(clip)})
}

// Play the clip. See Dispatcher.Play.
func (d *PortalDispatcher) Play(bot Bot, clip Clip) {
	d.enqueue(bot, event.CueCommandEvent{Action: event.CueActionPlay, Clip: string(clip)})
}

// Duration of the clip. See Dispatcher.Duration.
func (d *PortalDispatcher) Duration(clip Clip) time.Duration {
	if duration, ok := d.durations[clip]; ok {
		return duration
	}
	return DefaultDuration
}

func (d *PortalDispatcher) enqueue(bot Bot, payload event.CueCommandEvent) {
	select {
	case d.outbox <- command{bot: bot, payload: payload}:
	default:
		d.logger.Warn("cue outbox full. dropping command.",
			zap.Any("bot", bot), zap.Any("action", payload.Action))
	}
}

// Run publishes queued commands until the given context.Context is done.
func (d *PortalDispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case c := <-d.outbox:
			d.portal.Publish(ctx, BotTopic(c.bot), c.payload)
		}
	}
}
