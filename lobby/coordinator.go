package lobby

import (
	"context"
	"github.com/lefinal/pug-server/cues"
	"github.com/lefinal/pug-server/errors"
	"github.com/lefinal/pug-server/games"
	"github.com/lefinal/pug-server/notify"
	"github.com/lefinal/pug-server/scheduling"
	"go.uber.org/zap"
	"sync"
)

// Coordinator ties the Queue to the games.Registry. It owns the player
// directory and starts matches whenever the lobby is full and a slot is free.
type Coordinator struct {
	logger   *zap.Logger
	config   Config
	queue    *Queue
	registry *games.Registry
	notifier notify.Notifier
	cues     cues.Dispatcher
	tasks    *scheduling.Group
	// players holds all registered players by their id.
	players map[string]*games.Player
	// playersMutex locks players.
	playersMutex sync.RWMutex
	// startMutex serializes start attempts.
	startMutex sync.Mutex
}

// NewCoordinator creates a new Coordinator for the given registry.
func NewCoordinator(lifetime context.Context, logger *zap.Logger, config Config, registry *games.Registry,
	notifier notify.Notifier, dispatcher cues.Dispatcher) *Coordinator {
	c := &Coordinator{
		logger:   logger,
		config:   config,
		registry: registry,
		notifier: notifier,
		cues:     dispatcher,
		tasks:    scheduling.NewGroup(lifetime),
		players:  make(map[string]*games.Player),
	}
	c.queue = NewQueue(lifetime, logger.Named("queue"), config, notifier, c.tryStart)
	registry.OnFree(func(_ *games.Match) {
		c.tryStart()
	})
	return c
}

// Queue returns the lobby Queue.
func (c *Coordinator) Queue() *Queue {
	return c.queue
}

// Registry returns the games.Registry.
func (c *Coordinator) Registry() *games.Registry {
	return c.registry
}

// Register registers the player with the given id. If already registered,
// the existing player is returned.
func (c *Coordinator) Register(playerID string, name string, hasOwnAccount bool) *games.Player {
	c.playersMutex.Lock()
	defer c.playersMutex.Unlock()
	if p, ok := c.players[playerID]; ok {
		return p
	}
	p := games.NewPlayer(playerID, name, hasOwnAccount)
	c.players[playerID] = p
	c.logger.Debug("player registered", zap.String("player", playerID), zap.String("name", name))
	return p
}

// Player returns the registered player with the given id.
func (c *Coordinator) Player(playerID string) (*games.Player, error) {
	c.playersMutex.RLock()
	defer c.playersMutex.RUnlock()
	p, ok := c.players[playerID]
	if !ok {
		return nil, errors.NewBadRequestError(errors.KindUnknownPlayer, "player not registered",
			errors.Details{"player": playerID})
	}
	return p, nil
}

// Join adds the registered player with the given id to the lobby.
func (c *Coordinator) Join(playerID string) error {
	p, err := c.Player(playerID)
	if err != nil {
		return err
	}
	return c.queue.Join(p)
}

// Leave removes the player with the given id from the lobby.
func (c *Coordinator) Leave(playerID string) error {
	return c.queue.Leave(playerID)
}

// MarkInactive starts the inactivity grace period for a lobbied player.
func (c *Coordinator) MarkInactive(playerID string) error {
	return c.queue.MarkInactive(playerID)
}

// MarkActive cancels the inactivity grace period.
func (c *Coordinator) MarkActive(playerID string) {
	c.queue.MarkActive(playerID)
}

// ClearLobby releases all waiting players.
func (c *Coordinator) ClearLobby() bool {
	return c.queue.Clear()
}

// tryStart hands the lobby to the first free match slot if the lobby is full.
// If no slot is free, the lobby is marked as stuck.
func (c *Coordinator) tryStart() {
	c.startMutex.Lock()
	defer c.startMutex.Unlock()
	if c.queue.Len() < c.queue.Capacity() {
		return
	}
	match, ok := c.registry.FindFree()
	if !ok {
		if !c.queue.IsStuck() {
			c.queue.SetStuck(true)
			c.notifier.Send(notify.KeyLobbyStuck, Target, c.queue.Capacity())
			c.logger.Info("lobby stuck")
		}
		return
	}
	roster, ok := c.queue.Take()
	if !ok {
		return
	}
	number := c.registry.NextNumber()
	err := match.Start(number, roster)
	if err != nil {
		errors.Log(c.logger, errors.Wrap(err, "start match", errors.Details{"slot": match.ID()}))
		c.queue.putBack(roster)
		return
	}
	c.announce(match, number)
}

// announce the started match in the lobby.
func (c *Coordinator) announce(match *games.Match, number int) {
	slot := match.Slot()
	if c.config.VoiceChannel != "" {
		c.cues.Move(cues.BotLobby, c.config.VoiceChannel)
	}
	delay := c.config.AnnounceDelay
	if slot.AnnouncementClip != "" {
		c.cues.Enqueue(cues.BotLobby, slot.AnnouncementClip)
		delay += c.cues.Duration(slot.AnnouncementClip)
	}
	c.notifier.Send(notify.KeyLobbyMatchStarting, Target, slot.ID, number)
	if slot.VoiceChannel == "" {
		return
	}
	c.tasks.After(delay, func(_ context.Context) {
		c.cues.Move(cues.BotLobby, slot.VoiceChannel)
	})
}

func (c *Coordinator) match(slotID string) (*games.Match, error) {
	match, err := c.registry.Match(slotID)
	if err != nil {
		return nil, errors.Wrap(err, "lookup match", nil)
	}
	return match, nil
}

// Pick forwards to games.Match.Pick.
func (c *Coordinator) Pick(slotID string, teamID int, playerID string) error {
	match, err := c.match(slotID)
	if err != nil {
		return err
	}
	return match.Pick(teamID, playerID)
}

// ResignCaptain forwards to games.Match.ResignCaptain.
func (c *Coordinator) ResignCaptain(slotID string, teamID int) error {
	match, err := c.match(slotID)
	if err != nil {
		return err
	}
	return match.ResignCaptain(teamID)
}

// FactionPick forwards to games.Match.FactionPick.
func (c *Coordinator) FactionPick(slotID string, teamID int, faction string) error {
	match, err := c.match(slotID)
	if err != nil {
		return err
	}
	return match.FactionPick(teamID, faction)
}

// SelectMap forwards to games.Match.SelectMap.
func (c *Coordinator) SelectMap(slotID string, teamID int, mapName string) error {
	match, err := c.match(slotID)
	if err != nil {
		return err
	}
	return match.SelectMap(teamID, mapName)
}

// ConfirmMap forwards to games.Match.ConfirmMap.
func (c *Coordinator) ConfirmMap(slotID string, teamID int) error {
	match, err := c.match(slotID)
	if err != nil {
		return err
	}
	return match.ConfirmMap(teamID)
}

// TeamReady forwards to games.Match.OnTeamReady.
func (c *Coordinator) TeamReady(slotID string, teamID int) ([]*games.Player, error) {
	match, err := c.match(slotID)
	if err != nil {
		return nil, err
	}
	return match.OnTeamReady(teamID)
}

// TeamNotReady forwards to games.Match.OnTeamNotReady.
func (c *Coordinator) TeamNotReady(slotID string, teamID int) error {
	match, err := c.match(slotID)
	if err != nil {
		return err
	}
	return match.OnTeamNotReady(teamID)
}

// ValidateAccount forwards to games.Match.ValidateAccount.
func (c *Coordinator) ValidateAccount(slotID string, playerID string) error {
	match, err := c.match(slotID)
	if err != nil {
		return err
	}
	return match.ValidateAccount(playerID)
}

// Substitute replaces the given player in the match with a random player
// drawn from the lobby.
func (c *Coordinator) Substitute(slotID string, playerID string) (*games.Player, error) {
	match, err := c.match(slotID)
	if err != nil {
		return nil, err
	}
	return match.Substitute(playerID, c.queue.DrawSubstitute)
}

// Abort forwards to games.Match.Abort.
func (c *Coordinator) Abort(slotID string) error {
	match, err := c.match(slotID)
	if err != nil {
		return err
	}
	return match.Abort()
}

// Status returns snapshots of the lobby and all match slots.
func (c *Coordinator) Status() (Snapshot, []games.MatchSnapshot) {
	return c.queue.Snapshot(), c.registry.Snapshot()
}
