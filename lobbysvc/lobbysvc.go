// Package lobbysvc accepts player and captain commands from the portal and
// forwards them to the lobby coordinator.
package lobbysvc

import (
	"context"
	"github.com/lefinal/pug-server/errors"
	"github.com/lefinal/pug-server/event"
	"github.com/lefinal/pug-server/games"
	"github.com/lefinal/pug-server/portal"
	"github.com/lefinal/pug-server/services"
	"go.uber.org/zap"
	"sync"
)

var topicCommands = portal.BaseTopic.Join("commands")

// Topics.
var (
	topicRegister        = topicCommands.Join("player", "register")
	topicJoin            = topicCommands.Join("lobby", "join")
	topicLeave           = topicCommands.Join("lobby", "leave")
	topicInactive        = topicCommands.Join("lobby", "inactive")
	topicActive          = topicCommands.Join("lobby", "active")
	topicClearLobby      = topicCommands.Join("lobby", "clear")
	topicPick            = topicCommands.Join("match", "pick")
	topicResign          = topicCommands.Join("match", "resign")
	topicFaction         = topicCommands.Join("match", "faction")
	topicSelectMap       = topicCommands.Join("match", "select-map")
	topicConfirmMap      = topicCommands.Join("match", "confirm-map")
	topicReady           = topicCommands.Join("match", "ready")
	topicNotReady        = topicCommands.Join("match", "not-ready")
	topicValidateAccount = topicCommands.Join("match", "validate-account")
	topicSubstitute      = topicCommands.Join("match", "substitute")
	topicAbort           = topicCommands.Join("match", "abort")
	// topicErrors is where failed commands are reported.
	topicErrors = portal.BaseTopic.Join("errors")
)

// Coordinator is the lobby coordinator commands are forwarded to.
type Coordinator interface {
	Register(playerID string, name string, hasOwnAccount bool) *games.Player
	Join(playerID string) error
	Leave(playerID string) error
	MarkInactive(playerID string) error
	MarkActive(playerID string)
	ClearLobby() bool
	Pick(slotID string, teamID int, playerID string) error
	ResignCaptain(slotID string, teamID int) error
	FactionPick(slotID string, teamID int, faction string) error
	SelectMap(slotID string, teamID int, mapName string) error
	ConfirmMap(slotID string, teamID int) error
	TeamReady(slotID string, teamID int) ([]*games.Player, error)
	TeamNotReady(slotID string, teamID int) error
	ValidateAccount(slotID string, playerID string) error
	Substitute(slotID string, playerID string) (*games.Player, error)
	Abort(slotID string) error
}

// lobbyService subscribes to all command topics and forwards them to the
// Coordinator.
type lobbyService struct {
	logger      *zap.Logger
	portal      portal.Portal
	coordinator Coordinator
}

// NewLobbyService creates a new services.Service ready to run.
func NewLobbyService(logger *zap.Logger, portal portal.Portal, coordinator Coordinator) services.Service {
	return &lobbyService{
		logger:      logger,
		portal:      portal,
		coordinator: coordinator,
	}
}

// handle subscribes to the given topic and calls the handler for each received
// command. Errors are reported to topicErrors.
func handle[T any](ctx context.Context, s *lobbyService, wg *sync.WaitGroup, topic portal.Topic, handler func(payload T) error) {
	newsletter := portal.Subscribe[T](ctx, s.portal, topic)
	wg.Add(1)
	go func() {
		defer wg.Done()
		for e := range newsletter.Receive {
			err := handler(e.Payload)
			if err != nil {
				s.reportError(ctx, topic, err)
			}
		}
	}()
}

// Run the service until the given context.Context is done.
func (s *lobbyService) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	// Player and lobby.
	handle(ctx, s, &wg, topicRegister, func(c event.RegisterPlayerCommand) error {
		s.coordinator.Register(c.PlayerID, c.Name, c.HasOwnAccount)
		return nil
	})
	handle(ctx, s, &wg, topicJoin, func(c event.PlayerCommand) error {
		return s.coordinator.Join(c.PlayerID)
	})
	handle(ctx, s, &wg, topicLeave, func(c event.PlayerCommand) error {
		return s.coordinator.Leave(c.PlayerID)
	})
	handle(ctx, s, &wg, topicInactive, func(c event.PlayerCommand) error {
		return s.coordinator.MarkInactive(c.PlayerID)
	})
	handle(ctx, s, &wg, topicActive, func(c event.PlayerCommand) error {
		s.coordinator.MarkActive(c.PlayerID)
		return nil
	})
	handle(ctx, s, &wg, topicClearLobby, func(_ event.EmptyEvent) error {
		if s.coordinator.ClearLobby() {
			s.logger.Info("lobby cleared")
		}
		return nil
	})
	// Matches.
	handle(ctx, s, &wg, topicPick, func(c event.MatchCommand) error {
		return s.coordinator.Pick(c.SlotID, c.TeamID, c.PlayerID)
	})
	handle(ctx, s, &wg, topicResign, func(c event.MatchCommand) error {
		return s.coordinator.ResignCaptain(c.SlotID, c.TeamID)
	})
	handle(ctx, s, &wg, topicFaction, func(c event.MatchCommand) error {
		return s.coordinator.FactionPick(c.SlotID, c.TeamID, c.Faction)
	})
	handle(ctx, s, &wg, topicSelectMap, func(c event.MatchCommand) error {
		return s.coordinator.SelectMap(c.SlotID, c.TeamID, c.Map)
	})
	handle(ctx, s, &wg, topicConfirmMap, func(c event.MatchCommand) error {
		return s.coordinator.ConfirmMap(c.SlotID, c.TeamID)
	})
	handle(ctx, s, &wg, topicReady, func(c event.MatchCommand) error {
		_, err := s.coordinator.TeamReady(c.SlotID, c.TeamID)
		return err
	})
	handle(ctx, s, &wg, topicNotReady, func(c event.MatchCommand) error {
		return s.coordinator.TeamNotReady(c.SlotID, c.TeamID)
	})
	handle(ctx, s, &wg, topicValidateAccount, func(c event.MatchCommand) error {
		return s.coordinator.ValidateAccount(c.SlotID, c.PlayerID)
	})
	handle(ctx, s, &wg, topicSubstitute, func(c event.MatchCommand) error {
		sub, err := s.coordinator.Substitute(c.SlotID, c.PlayerID)
		if err != nil {
			return err
		}
		s.logger.Debug("player substituted",
			zap.String("slot", c.SlotID),
			zap.String("player", c.PlayerID),
			zap.String("substitute", sub.ID))
		return nil
	})
	handle(ctx, s, &wg, topicAbort, func(c event.MatchCommand) error {
		return s.coordinator.Abort(c.SlotID)
	})
	// Wait until all handlers done.
	wg.Wait()
	return nil
}

// reportError logs the given error and publishes it to topicErrors.
func (s *lobbyService) reportError(ctx context.Context, command portal.Topic, err error) {
	err = errors.Wrap(err, "handle command", errors.Details{"command": command})
	errors.Log(s.logger, err)
	payload := event.ErrorEventPayloadFromError(err)
	payload.Command = string(command)
	s.portal.Publish(ctx, topicErrors, payload)
}
