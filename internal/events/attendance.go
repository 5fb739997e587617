package events

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultAttendanceChannel carries the ids of items whose sales changed
const DefaultAttendanceChannel = "pricing.attendance"

// AttendanceHandler reacts to a sales change of an item
type AttendanceHandler func(ctx context.Context, itemID string)

// AttendanceListener turns Redis pub/sub messages into re-evaluation triggers
type AttendanceListener struct {
	client  redis.UniversalClient
	channel string
	logger  *zap.Logger
}

// NewAttendanceListener creates a listener on channel
func NewAttendanceListener(client redis.UniversalClient, channel string, logger *zap.Logger) *AttendanceListener {
	if channel == "" {
		channel = DefaultAttendanceChannel
	}
	return &AttendanceListener{client: client, channel: channel, logger: logger}
}

// Listen blocks until ctx is done, calling handler for every item id received
func (l *AttendanceListener) Listen(ctx context.Context, handler AttendanceHandler) error {
	sub := l.client.Subscribe(ctx, l.channel)
	defer sub.Close()

	// block until the subscription is confirmed
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", l.channel, err)
	}

	l.logger.Info("Listening for attendance changes", zap.String("channel", l.channel))

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("Attendance listener stopping")
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			itemID := strings.TrimSpace(msg.Payload)
			if itemID == "" {
				l.logger.Warn("Ignoring empty attendance notification")
				continue
			}
			handler(ctx, itemID)
		}
	}
}

// AttendanceNotifier announces sales changes on the attendance channel
type AttendanceNotifier struct {
	client  redis.UniversalClient
	channel string
}

// NewAttendanceNotifier creates a notifier on channel
func NewAttendanceNotifier(client redis.UniversalClient, channel string) *AttendanceNotifier {
	if channel == "" {
		channel = DefaultAttendanceChannel
	}
	return &AttendanceNotifier{client: client, channel: channel}
}

// Notify publishes the item id
func (n *AttendanceNotifier) Notify(ctx context.Context, itemID string) error {
	if err := n.client.Publish(ctx, n.channel, itemID).Err(); err != nil {
		return fmt.Errorf("failed to notify attendance change: %w", err)
	}
	return nil
}
