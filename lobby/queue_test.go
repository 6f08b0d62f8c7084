package lobby

import (
	"context"
	"fmt"
	"github.com/lefinal/pug-server/errors"
	"github.com/lefinal/pug-server/games"
	"github.com/lefinal/pug-server/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"testing"
	"time"
)

const timeout = 3 * time.Second

const waitTick = time.Millisecond

func testPlayers(count int) []*games.Player {
	players := make([]*games.Player, 0, count)
	for i := 0; i < count; i++ {
		players = append(players, games.NewPlayer(fmt.Sprintf("p%d", i), fmt.Sprintf("Player%d", i), true))
	}
	return players
}

func TestConfig_ReminderThreshold(t *testing.T) {
	tests := []struct {
		capacity  int
		threshold int
	}{
		{capacity: 2, threshold: 2},
		{capacity: 4, threshold: 3},
		{capacity: 6, threshold: 4},
		{capacity: 10, threshold: 7},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("capacity %d", tt.capacity), func(t *testing.T) {
			assert.Equal(t, tt.threshold, Config{Capacity: tt.capacity}.ReminderThreshold())
		})
	}
}

// queueSuite tests Queue.
type queueSuite struct {
	suite.Suite
	ctx      context.Context
	cancel   context.CancelFunc
	config   Config
	notifier *notify.Recorder
	full     *atomic.Int32
	queue    *Queue
	players  []*games.Player
}

func (suite *queueSuite) SetupTest() {
	suite.ctx, suite.cancel = context.WithCancel(context.Background())
	suite.config = Config{
		Capacity:        6,
		ReminderDelay:   10 * time.Millisecond,
		InactivityGrace: 10 * time.Millisecond,
	}
	suite.notifier = &notify.Recorder{}
	suite.full = atomic.NewInt32(0)
	suite.players = testPlayers(8)
	suite.newQueue()
}

func (suite *queueSuite) TearDownTest() {
	suite.cancel()
}

func (suite *queueSuite) newQueue() {
	suite.queue = NewQueue(suite.ctx, zap.New(zapcore.NewNopCore()), suite.config, suite.notifier, func() {
		suite.full.Inc()
	})
}

func (suite *queueSuite) join(count int) {
	for i := 0; i < count; i++ {
		suite.Require().NoError(suite.queue.Join(suite.players[i]), "join should not fail")
	}
}

func (suite *queueSuite) TestJoin() {
	suite.join(1)
	suite.Equal(games.PlayerLobbied, suite.players[0].Status())
	suite.Equal(1, suite.queue.Len())
	last, ok := suite.notifier.Last(notify.KeyLobbyAdded)
	suite.Require().True(ok, "should notify")
	suite.Equal(Target, last.Target)
	suite.Equal([]interface{}{"Player0", 1, 6}, last.Args)
}

func (suite *queueSuite) TestJoinTwice() {
	suite.join(1)
	err := suite.queue.Join(suite.players[0])
	suite.True(errors.Is(err, errors.KindPlayerAlreadyLobbied), "should fail with correct kind")
	suite.Equal(1, suite.queue.Len())
}

func (suite *queueSuite) TestJoinUnavailable() {
	suite.players[0].SetStatus(games.PlayerActive)
	err := suite.queue.Join(suite.players[0])
	suite.True(errors.Is(err, errors.KindPlayerUnavailable), "should fail with correct kind")
	suite.Zero(suite.queue.Len())
}

func (suite *queueSuite) TestFullCallsOnFull() {
	suite.join(6)
	suite.Eventually(func() bool {
		return suite.full.Load() == 1
	}, timeout, waitTick, "should call on full")
	err := suite.queue.Join(suite.players[6])
	suite.True(errors.Is(err, errors.KindLobbyFull), "should reject when full")
	suite.Equal(games.PlayerRegistered, suite.players[6].Status())
}

func (suite *queueSuite) TestReminder() {
	suite.join(4)
	suite.Eventually(func() bool {
		return suite.notifier.Count(notify.KeyLobbyReminder) == 1
	}, timeout, waitTick, "should remind")
	last, _ := suite.notifier.Last(notify.KeyLobbyReminder)
	suite.Equal([]interface{}{4, 2}, last.Args, "should announce size and missing players")
}

func (suite *queueSuite) TestReminderDebounced() {
	suite.config.ReminderDelay = 20 * time.Millisecond
	suite.newQueue()
	suite.join(5)
	suite.Eventually(func() bool {
		return suite.notifier.Count(notify.KeyLobbyReminder) == 1
	}, timeout, waitTick, "should remind")
	suite.Require().NoError(suite.queue.Leave(suite.players[4].ID))
	suite.Require().NoError(suite.queue.Join(suite.players[4]))
	suite.Never(func() bool {
		return suite.notifier.Count(notify.KeyLobbyReminder) > 1
	}, 100*time.Millisecond, waitTick, "should not remind again while above threshold")
}

func (suite *queueSuite) TestReminderRearmedBelowThreshold() {
	suite.join(4)
	suite.Eventually(func() bool {
		return suite.notifier.Count(notify.KeyLobbyReminder) == 1
	}, timeout, waitTick, "should remind")
	suite.Require().NoError(suite.queue.Leave(suite.players[3].ID))
	suite.Require().NoError(suite.queue.Join(suite.players[3]))
	suite.Eventually(func() bool {
		return suite.notifier.Count(notify.KeyLobbyReminder) == 2
	}, timeout, waitTick, "should remind again after dropping below threshold")
}

func (suite *queueSuite) TestReminderCancelled() {
	suite.config.ReminderDelay = 30 * time.Millisecond
	suite.newQueue()
	suite.join(4)
	suite.Require().NoError(suite.queue.Leave(suite.players[0].ID))
	suite.Never(func() bool {
		return suite.notifier.Count(notify.KeyLobbyReminder) > 0
	}, 100*time.Millisecond, waitTick, "should cancel reminder")
}

func (suite *queueSuite) TestLeave() {
	suite.join(2)
	suite.queue.SetStuck(true)
	suite.Require().NoError(suite.queue.Leave(suite.players[0].ID))
	suite.Equal(games.PlayerRegistered, suite.players[0].Status())
	suite.False(suite.queue.IsStuck(), "should reset stuck")
	suite.Equal([]string{"p1"}, suite.queue.Snapshot().Players)
	suite.Equal(1, suite.notifier.Count(notify.KeyLobbyRemoved))
}

func (suite *queueSuite) TestLeaveNotLobbied() {
	err := suite.queue.Leave("p0")
	suite.True(errors.Is(err, errors.KindPlayerNotLobbied), "should fail with correct kind")
}

func (suite *queueSuite) TestTake() {
	suite.join(5)
	_, ok := suite.queue.Take()
	suite.False(ok, "should not take before full")
	suite.Require().NoError(suite.queue.Join(suite.players[5]))
	suite.queue.SetStuck(true)
	roster, ok := suite.queue.Take()
	suite.Require().True(ok, "should take when full")
	suite.Len(roster, 6)
	suite.Zero(suite.queue.Len(), "should be empty afterwards")
	suite.False(suite.queue.IsStuck())
}

func (suite *queueSuite) TestPutBack() {
	suite.join(6)
	roster, ok := suite.queue.Take()
	suite.Require().True(ok)
	suite.queue.putBack(roster)
	suite.Equal(6, suite.queue.Len())
}

func (suite *queueSuite) TestPutBackCapsAtCapacity() {
	suite.join(6)
	roster, ok := suite.queue.Take()
	suite.Require().True(ok)
	suite.Require().NoError(suite.queue.Join(suite.players[6]))
	suite.Require().NoError(suite.queue.Join(suite.players[7]))
	removedBefore := suite.notifier.Count(notify.KeyLobbyRemoved)
	suite.queue.putBack(roster)
	suite.Equal(6, suite.queue.Len(), "should not exceed capacity")
	snapshot := suite.queue.Snapshot()
	for _, p := range roster {
		suite.Contains(snapshot.Players, p.ID, "original roster should be back")
	}
	for _, p := range suite.players[6:] {
		suite.NotContains(snapshot.Players, p.ID, "late player should be released")
		suite.Equal(games.PlayerRegistered, p.Status(), "late player should be registered")
	}
	suite.Equal(removedBefore+2, suite.notifier.Count(notify.KeyLobbyRemoved), "should notify removal")
}

func (suite *queueSuite) TestDrawSubstitute() {
	suite.join(2)
	p, err := suite.queue.DrawSubstitute()
	suite.Require().NoError(err, "should not fail")
	suite.Contains([]*games.Player{suite.players[0], suite.players[1]}, p)
	suite.Equal(1, suite.queue.Len(), "should remove substitute")
}

func (suite *queueSuite) TestDrawSubstituteEmpty() {
	_, err := suite.queue.DrawSubstitute()
	suite.True(errors.Is(err, errors.KindNoSubstitute), "should fail with correct kind")
}

func (suite *queueSuite) TestMarkInactive() {
	suite.join(2)
	suite.Require().NoError(suite.queue.MarkInactive("p1"))
	suite.Eventually(func() bool {
		return suite.queue.Len() == 1
	}, timeout, waitTick, "should remove inactive player")
	suite.Equal(games.PlayerRegistered, suite.players[1].Status())
	suite.Equal(1, suite.notifier.Count(notify.KeyLobbyWentInactive))
}

func (suite *queueSuite) TestMarkInactiveNotLobbied() {
	err := suite.queue.MarkInactive("p0")
	suite.True(errors.Is(err, errors.KindPlayerNotLobbied), "should fail with correct kind")
}

func (suite *queueSuite) TestMarkActive() {
	suite.config.InactivityGrace = 30 * time.Millisecond
	suite.newQueue()
	suite.join(2)
	suite.Require().NoError(suite.queue.MarkInactive("p1"))
	suite.queue.MarkActive("p1")
	suite.Never(func() bool {
		return suite.queue.Len() != 2
	}, 100*time.Millisecond, waitTick, "should keep player")
}

func (suite *queueSuite) TestClear() {
	suite.False(suite.queue.Clear(), "should report nothing cleared")
	suite.join(3)
	suite.True(suite.queue.Clear(), "should report cleared")
	suite.Zero(suite.queue.Len())
	for _, p := range suite.players[:3] {
		suite.Equal(games.PlayerRegistered, p.Status())
	}
	suite.Equal(1, suite.notifier.Count(notify.KeyLobbyCleared))
}

func (suite *queueSuite) TestSnapshot() {
	suite.join(3)
	suite.queue.SetStuck(true)
	suite.Equal(Snapshot{
		Capacity: 6,
		Players:  []string{"p0", "p1", "p2"},
		Stuck:    true,
	}, suite.queue.Snapshot())
}

func TestQueue(t *testing.T) {
	suite.Run(t, new(queueSuite))
}
