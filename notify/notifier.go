// Package notify sends user-facing notifications over the portal.
package notify

import (
	"context"
	"github.com/google/uuid"
	"github.com/lefinal/pug-server/errors"
	"github.com/lefinal/pug-server/event"
	"github.com/lefinal/pug-server/portal"
	"go.uber.org/zap"
)

// topicNotifications is where all notifications are published to.
var topicNotifications = portal.BaseTopic.Join("notifications")

// outboxSize is the number of notifications that may be pending.
const outboxSize = 256

// Notifier posts and edits notifications. Sending never blocks and never
// fails for the caller. Failures are only logged.
type Notifier interface {
	// Send a notification with the given Key to the target. The returned handle
	// can be used for editing the notification later. For unknown keys,
	// uuid.Nil is returned.
	Send(key Key, target string, args ...interface{}) uuid.UUID
	// Edit replaces the notification with the given handle.
	Edit(handle uuid.UUID, key Key, target string, args ...interface{})
}

// PortalNotifier is a Notifier that publishes notifications in order when run.
type PortalNotifier struct {
	logger *zap.Logger
	portal portal.Portal
	outbox chan event.NotificationEvent
}

// NewPortalNotifier creates a new PortalNotifier. Notifications are published
// while PortalNotifier.Run is running.
func NewPortalNotifier(logger *zap.Logger, portal portal.Portal) *PortalNotifier {
	return &PortalNotifier{
		logger: logger,
		portal: portal,
		outbox: make(chan event.NotificationEvent, outboxSize),
	}
}

// Send a notification. See Notifier.Send.
func (n *PortalNotifier) Send(key Key, target string, args ...interface{}) uuid.UUID {
	handle := uuid.New()
	if !n.enqueue(handle, false, key, target, args) {
		return uuid.Nil
	}
	return handle
}

// Edit a notification. See Notifier.Edit.
func (n *PortalNotifier) Edit(handle uuid.UUID, key Key, target string, args ...interface{}) {
	n.enqueue(handle, true, key, target, args)
}

func (n *PortalNotifier) enqueue(handle uuid.UUID, edit bool, key Key, target string, args []interface{}) bool {
	if !key.Valid() {
		errors.Log(n.logger, errors.NewInternalError("send notification with unknown key", errors.Details{
			"key":    key,
			"target": target,
		}))
		return false
	}
	if args == nil {
		args = make([]interface{}, 0)
	}
	select {
	case n.outbox <- event.NotificationEvent{
		Handle: handle.String(),
		Edit:   edit,
		Key:    string(key),
		Target: target,
		Args:   args,
	}:
	default:
		n.logger.Warn("notification outbox full. dropping notification.",
			zap.Any("key", key), zap.String("target", target))
	}
	return true
}

// Run publishes queued notifications until the given context.Context is done.
func (n *PortalNotifier) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case e := <-n.outbox:
			n.portal.Publish(ctx, topicNotifications, e)
		}
	}
}
