package notify

import (
	"context"
	"github.com/google/uuid"
	"github.com/lefinal/pug-server/errors"
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

func TestParseKey(t *testing.T) {
	k, err := ParseKey("MATCH_CLEARED")
	assert.NoError(t, err, "should parse known key")
	assert.Equal(t, KeyMatchCleared, k, "should return correct key")
	_, err = ParseKey("MATCH_EXPLODED")
	assert.True(t, errors.Is(err, errors.KindUnknownNotificationKey), "should fail with unknown key")
}

// portalNotifierSuite tests PortalNotifier.
type portalNotifierSuite struct {
	suite.Suite
	portalStub *portal.Stub
	notifier   *PortalNotifier
}

func (suite *portalNotifierSuite) SetupTest() {
	suite.portalStub = &portal.Stub{}
	suite.notifier = NewPortalNotifier(zap.New(zapcore.NewNopCore()), suite.portalStub)
}

func (suite *portalNotifierSuite) run() context.CancelFunc {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		_ = suite.notifier.Run(ctx)
	}()
	return cancel
}

// TestSendPublishes expects Send to publish the notification.
func (suite *portalNotifierSuite) TestSendPublishes() {
	published := make(chan event.NotificationEvent)
	suite.portalStub.On("Publish", mock.Anything, topicNotifications, mock.Anything).Run(func(args mock.Arguments) {
		published <- args.Get(2).(event.NotificationEvent)
	})
	defer suite.run()()
	handle := suite.notifier.Send(KeyMatchInit, "slot-1", "a", "b")
	suite.NotEqual(uuid.Nil, handle, "should return handle")
	select {
	case <-time.After(timeout):
		suite.Fail("timeout while waiting for publish")
	case e := <-published:
		suite.Equal(event.NotificationEvent{
			Handle: handle.String(),
			Key:    string(KeyMatchInit),
			Target: "slot-1",
			Args:   []interface{}{"a", "b"},
		}, e, "should publish correct event")
	}
}

// TestEditPublishes expects Edit to publish with the same handle.
func (suite *portalNotifierSuite) TestEditPublishes() {
	published := make(chan event.NotificationEvent)
	suite.portalStub.On("Publish", mock.Anything, topicNotifications, mock.Anything).Run(func(args mock.Arguments) {
		published <- args.Get(2).(event.NotificationEvent)
	})
	defer suite.run()()
	handle := uuid.New()
	suite.notifier.Edit(handle, KeyRoundOver, "slot-1")
	select {
	case <-time.After(timeout):
		suite.Fail("timeout while waiting for publish")
	case e := <-published:
		suite.True(e.Edit, "should mark as edit")
		suite.Equal(handle.String(), e.Handle, "should keep handle")
		suite.NotNil(e.Args, "should not publish nil args")
	}
}

// TestSendUnknownKey expects unknown keys to not be published.
func (suite *portalNotifierSuite) TestSendUnknownKey() {
	handle := suite.notifier.Send("UNKNOWN", "slot-1")
	suite.Equal(uuid.Nil, handle, "should return nil handle")
	suite.Len(suite.notifier.outbox, 0, "should not enqueue")
}

// TestSendDoesNotBlockWhenFull expects notifications to be dropped if the
// outbox is full.
func (suite *portalNotifierSuite) TestSendDoesNotBlockWhenFull() {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < outboxSize+8; i++ {
			suite.notifier.Send(KeyLobbyAdded, "lobby")
		}
	}()
	select {
	case <-time.After(timeout):
		suite.Fail("send blocked")
	case <-done:
	}
	suite.Len(suite.notifier.outbox, outboxSize, "should have filled outbox")
}

func TestPortalNotifier(t *testing.T) {
	suite.Run(t, new(portalNotifierSuite))
}

func TestRecorder(t *testing.T) {
	r := &Recorder{}
	r.Send(KeyLobbyAdded, "lobby", "a")
	r.Send(KeyLobbyAdded, "lobby", "b")
	r.Send(KeyLobbyRemoved, "lobby", "a")
	assert.Equal(t, 2, r.Count(KeyLobbyAdded), "should count sent")
	last, ok := r.Last(KeyLobbyAdded)
	assert.True(t, ok, "should find last")
	assert.Equal(t, []interface{}{"b"}, last.Args, "should return last")
	assert.Len(t, r.Sent(), 3, "should return all")
}

func TestRecorder_Edits(t *testing.T) {
	r := &Recorder{}
	handle := r.Send(KeyMatchConfirm, "slot-1", []string{"a", "b"}, 1)
	r.Edit(handle, KeyMatchConfirm, "slot-1", []string{"b"}, 1)
	r.Send(KeyMatchConfirm, "slot-2", []string{"c"}, 1)
	assert.Equal(t, 2, r.Count(KeyMatchConfirm), "should not count edits")
	edits := r.Edits(handle)
	if assert.Len(t, edits, 1, "should return edit") {
		assert.Equal(t, []interface{}{[]string{"b"}, 1}, edits[0].Args)
	}
}
