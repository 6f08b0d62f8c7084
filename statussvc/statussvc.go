// Package statussvc publishes snapshots of the lobby and all match slots.
package statussvc

import (
	"context"
	"github.com/lefinal/pug-server/event"
	"github.com/lefinal/pug-server/games"
	"github.com/lefinal/pug-server/lobby"
	"github.com/lefinal/pug-server/portal"
	"github.com/lefinal/pug-server/services"
	"go.uber.org/zap"
	"time"
)

// topicStatus is where snapshots are published to.
var topicStatus = portal.BaseTopic.Join("status")

// topicStatusRequest allows requesting a snapshot outside the interval.
var topicStatusRequest = portal.BaseTopic.Join("commands", "status", "request")

// DefaultInterval is used if no positive interval is configured.
const DefaultInterval = 10 * time.Second

// Source provides the snapshots to publish.
type Source interface {
	Status() (lobby.Snapshot, []games.MatchSnapshot)
}

type statusService struct {
	logger   *zap.Logger
	portal   portal.Portal
	source   Source
	interval time.Duration
}

// NewStatusService creates a new services.Service that publishes a status
// snapshot every interval and on request.
func NewStatusService(logger *zap.Logger, portal portal.Portal, source Source, interval time.Duration) services.Service {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &statusService{
		logger:   logger,
		portal:   portal,
		source:   source,
		interval: interval,
	}
}

// Run the service until the given context.Context is done.
func (s *statusService) Run(ctx context.Context) error {
	requests := portal.Subscribe[event.EmptyEvent](ctx, s.portal, topicStatusRequest).Receive
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	s.publish(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.publish(ctx)
		case _, more := <-requests:
			if !more {
				// Newsletter closes when the context is done.
				requests = nil
				continue
			}
			s.publish(ctx)
		}
	}
}

func (s *statusService) publish(ctx context.Context) {
	lobbySnapshot, matchSnapshots := s.source.Status()
	s.portal.Publish(ctx, topicStatus, statusEvent(time.Now(), lobbySnapshot, matchSnapshots))
}

// statusEvent converts the given snapshots to an event.StatusEvent.
func statusEvent(now time.Time, lobbySnapshot lobby.Snapshot, matchSnapshots []games.MatchSnapshot) event.StatusEvent {
	e := event.StatusEvent{
		Time: now,
		Lobby: event.LobbyStatus{
			Capacity: lobbySnapshot.Capacity,
			Players:  lobbySnapshot.Players,
			Stuck:    lobbySnapshot.Stuck,
		},
		Matches: make([]event.MatchStatus, 0, len(matchSnapshots)),
	}
	for _, m := range matchSnapshots {
		matchStatus := event.MatchStatus{
			SlotID:       m.SlotID,
			Status:       string(m.Status),
			Number:       m.Number,
			Round:        m.Round,
			Map:          m.Map,
			SidesSwapped: m.SidesSwapped,
			Unassigned:   m.Unassigned,
			Teams:        make([]event.TeamStatus, 0, len(m.Teams)),
		}
		for _, t := range m.Teams {
			matchStatus.Teams = append(matchStatus.Teams, event.TeamStatus{
				ID:      t.ID,
				Name:    t.Name,
				Captain: t.Captain,
				Turn:    t.Turn,
				Faction: t.Faction,
				Players: t.Players,
			})
		}
		e.Matches = append(e.Matches, matchStatus)
	}
	return e
}
