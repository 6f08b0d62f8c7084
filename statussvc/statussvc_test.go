package statussvc

import (
	"context"
	"github.com/lefinal/pug-server/event"
	"github.com/lefinal/pug-server/games"
	"github.com/lefinal/pug-server/lobby"
	"github.com/lefinal/pug-server/portal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"sync"
	"testing"
	"time"
)

const timeout = 3 * time.Second

// sourceStub mocks Source.
type sourceStub struct {
	mock.Mock
}

func (s *sourceStub) Status() (lobby.Snapshot, []games.MatchSnapshot) {
	args := s.Called()
	return args.Get(0).(lobby.Snapshot), args.Get(1).([]games.MatchSnapshot)
}

func TestNewStatusService(t *testing.T) {
	logger := zap.New(zapcore.NewNopCore())
	portalStub := &portal.Stub{}
	source := &sourceStub{}
	s := NewStatusService(logger, portalStub, source, time.Second).(*statusService)
	require.NotNil(t, s, "should not be nil")
	assert.Equal(t, logger, s.logger, "should set correct logger")
	assert.Equal(t, portalStub, s.portal, "should set correct portal")
	assert.Equal(t, source, s.source, "should set correct source")
	assert.Equal(t, time.Second, s.interval, "should set correct interval")
}

func TestNewStatusServiceDefaultInterval(t *testing.T) {
	s := NewStatusService(zap.New(zapcore.NewNopCore()), &portal.Stub{}, &sourceStub{}, 0).(*statusService)
	assert.Equal(t, DefaultInterval, s.interval)
}

func TestStatusEvent(t *testing.T) {
	now := time.Date(2022, 3, 4, 5, 6, 7, 0, time.UTC)
	e := statusEvent(now, lobby.Snapshot{
		Capacity: 6,
		Players:  []string{"p7"},
		Stuck:    true,
	}, []games.MatchSnapshot{
		{
			SlotID: "a",
			Status: games.StatusPlaying,
			Number: 12,
			Round:  2,
			Map:    "Alpha",
			Teams: []games.TeamSnapshot{
				{ID: 0, Name: "Team Player1", Captain: "p1", Faction: "Red", Players: []string{"p1", "p3"}},
				{ID: 1, Name: "Team Player2", Captain: "p2", Turn: true, Faction: "Blue", Players: []string{"p2", "p4"}},
			},
			SidesSwapped: true,
		},
		{SlotID: "b", Status: games.StatusFree},
	})
	assert.Equal(t, event.StatusEvent{
		Time: now,
		Lobby: event.LobbyStatus{
			Capacity: 6,
			Players:  []string{"p7"},
			Stuck:    true,
		},
		Matches: []event.MatchStatus{
			{
				SlotID:       "a",
				Status:       "playing",
				Number:       12,
				Round:        2,
				Map:          "Alpha",
				SidesSwapped: true,
				Teams: []event.TeamStatus{
					{ID: 0, Name: "Team Player1", Captain: "p1", Faction: "Red", Players: []string{"p1", "p3"}},
					{ID: 1, Name: "Team Player2", Captain: "p2", Turn: true, Faction: "Blue", Players: []string{"p2", "p4"}},
				},
			},
			{
				SlotID: "b",
				Status: "free",
				Teams:  []event.TeamStatus{},
			},
		},
	}, e)
}

func TestTopics(t *testing.T) {
	assert.Equal(t, portal.Topic("lefinal/pug/status"), topicStatus)
	assert.Equal(t, portal.Topic("lefinal/pug/commands/status/request"), topicStatusRequest)
}

// statusServiceSuite tests statusService.Run.
type statusServiceSuite struct {
	suite.Suite
	portalStub *portal.Stub
	source     *sourceStub
}

func (suite *statusServiceSuite) SetupTest() {
	suite.portalStub = &portal.Stub{}
	suite.source = &sourceStub{}
	suite.source.On("Status").Return(lobby.Snapshot{Capacity: 6, Players: []string{"p1"}}, []games.MatchSnapshot{})
}

func (suite *statusServiceSuite) isLobbyStatus(e event.StatusEvent) bool {
	return e.Lobby.Capacity == 6 && len(e.Lobby.Players) == 1
}

func (suite *statusServiceSuite) TestPublishesPeriodically() {
	timeout, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	suite.portalStub.On("Subscribe", mock.Anything, topicStatusRequest).
		Return(portal.NewSelfClosingMockNewsletter(timeout))
	published := atomic.NewInt32(0)
	suite.portalStub.On("Publish", mock.Anything, topicStatus, mock.MatchedBy(suite.isLobbyStatus)).
		Run(func(_ mock.Arguments) {
			if published.Inc() == 3 {
				cancel()
			}
		})
	s := NewStatusService(zap.New(zapcore.NewNopCore()), suite.portalStub, suite.source, time.Millisecond)
	suite.NoError(s.Run(timeout), "should not fail")
	suite.Equal(context.Canceled, timeout.Err(), "should not time out")
	suite.GreaterOrEqual(published.Load(), int32(3), "should publish repeatedly")
}

func (suite *statusServiceSuite) TestPublishesOnRequest() {
	timeout, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	requests := make(chan event.Event[any])
	suite.portalStub.On("Subscribe", mock.Anything, topicStatusRequest).
		Return(portal.NewSelfClosingReceivingMockNewsletter(timeout, requests))
	var publishedInitial sync.WaitGroup
	publishedInitial.Add(1)
	published := atomic.NewInt32(0)
	suite.portalStub.On("Publish", mock.Anything, topicStatus, mock.MatchedBy(suite.isLobbyStatus)).
		Run(func(_ mock.Arguments) {
			switch published.Inc() {
			case 1:
				publishedInitial.Done()
			case 2:
				cancel()
			}
		})
	go func() {
		publishedInitial.Wait()
		select {
		case <-timeout.Done():
		case requests <- event.Event[any]{Payload: event.EmptyEvent{}}:
		}
	}()
	s := NewStatusService(zap.New(zapcore.NewNopCore()), suite.portalStub, suite.source, time.Hour)
	suite.NoError(s.Run(timeout), "should not fail")
	suite.Equal(context.Canceled, timeout.Err(), "should not time out")
	suite.Equal(int32(2), published.Load(), "should publish initially and on request")
}

func TestStatusService(t *testing.T) {
	suite.Run(t, new(statusServiceSuite))
}
