package cues

import (
	"context"
	"github.com/lefinal/pug-server/event"
	"github.com/lefinal/pug-server/portal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"testing"
	"time"
)

const timeout = 3 * time.Second

func TestBotTopic(t *testing.T) {
	assert.Equal(t, portal.Topic("lefinal/pug/cues/team2"), BotTopic(BotTeam2))
}

// portalDispatcherSuite tests PortalDispatcher.
type portalDispatcherSuite struct {
	suite.Suite
	portalStub *portal.Stub
	dispatcher *PortalDispatcher
	published  chan event.CueCommandEvent
	cancelRun  context.CancelFunc
}

func (suite *portalDispatcherSuite) SetupTest() {
	suite.portalStub = &portal.Stub{}
	suite.dispatcher = NewPortalDispatcher(zap.New(zapcore.NewNopCore()), suite.portalStub, map[Clip]time.Duration{
		ClipCountdown30: 30 * time.Second,
	})
	suite.published = make(chan event.CueCommandEvent)
	suite.portalStub.On("Publish", mock.Anything, BotTopic(BotLobby), mock.Anything).Run(func(args mock.Arguments) {
		suite.published <- args.Get(2).(event.CueCommandEvent)
	})
	ctx, cancel := context.WithCancel(context.Background())
	suite.cancelRun = cancel
	go func() {
		_ = suite.dispatcher.Run(ctx)
	}()
}

func (suite *portalDispatcherSuite) TearDownTest() {
	suite.cancelRun()
}

func (suite *portalDispatcherSuite) expect(expected event.CueCommandEvent) {
	select {
	case <-time.After(timeout):
		suite.Fail("timeout while waiting for publish")
	case got := <-suite.published:
		suite.Equal(expected, got, "should publish correct command")
	}
}

func (suite *portalDispatcherSuite) TestMove() {
	suite.dispatcher.Move(BotLobby, "281")
	suite.expect(event.CueCommandEvent{Action: event.CueActionMove, Channel: "281"})
}

func (suite *portalDispatcherSuite) TestEnqueue() {
	suite.dispatcher.Enqueue(BotLobby, ClipSelectMap)
	suite.expect(event.CueCommandEvent{Action: event.CueActionEnqueue, Clip: string(ClipSelectMap)})
}

func (suite *portalDispatcherSuite) TestPlayKeepsOrder() {
	suite.dispatcher.Play(BotLobby, ClipCountdown30)
	suite.dispatcher.Play(BotLobby, ClipCountdown10)
	suite.expect(event.CueCommandEvent{Action: event.CueActionPlay, Clip: string(ClipCountdown30)})
	suite.expect(event.CueCommandEvent{Action: event.CueActionPlay, Clip: string(ClipCountdown10)})
}

func (suite *portalDispatcherSuite) TestDuration() {
	suite.Equal(30*time.Second, suite.dispatcher.Duration(ClipCountdown30), "should return configured duration")
	suite.Equal(DefaultDuration, suite.dispatcher.Duration(ClipSwapSides), "should fall back to default")
}

func TestPortalDispatcher(t *testing.T) {
	suite.Run(t, new(portalDispatcherSuite))
}
