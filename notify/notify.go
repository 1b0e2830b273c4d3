// Package notify sends desktop notifications through the
// [Desktop Notifications] service on the session bus.
//
// [Desktop Notifications]: https://specifications.freedesktop.org/notification-spec/latest/
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/godbus/dbus/v5"
)

const (
	Interface = "org.freedesktop.Notifications"
	Path      = "/org/freedesktop/Notifications"
)

type Urgency byte

// Urgency levels.
const (
	UrgencyLow Urgency = iota
	UrgencyNormal
	UrgencyCritical
)

func (u Urgency) String() string {
	switch u {
	case UrgencyLow:
		return "low"
	case UrgencyCritical:
		return "critical"
	default:
		return "normal"
	}
}

// Notifier shows a desktop notification.
type Notifier interface {
	Notify(summary, body string, urgency Urgency) error
}

// Client implements [Notifier] over D-Bus.
type Client struct {
	object  dbus.BusObject
	appName string
}

// NewClient returns a new [Client] talking to the notification server on conn.
//
// Parameter appName is shown by notification servers as the sender.
func NewClient(conn *dbus.Conn, appName string) *Client {
	return NewClientWithObject(conn.Object(Interface, Path), appName)
}

// NewClientWithObject returns a new [Client] that calls methods on object.
func NewClientWithObject(object dbus.BusObject, appName string) *Client {
	return &Client{
		object:  object,
		appName: appName,
	}
}

// Notify shows a notification that expires after the server default timeout.
func (c *Client) Notify(summary, body string, urgency Urgency) error {
	call := c.object.Call(
		Interface+".Notify",
		0,
		c.appName,
		uint32(0),
		"",
		summary,
		body,
		[]string{},
		map[string]dbus.Variant{
			"urgency": dbus.MakeVariant(byte(urgency)),
		},
		int32(-1),
	)
	if call.Err != nil {
		return fmt.Errorf("notify: %w", call.Err)
	}

	return nil
}

// Log implements [Notifier] by writing notifications to a logger. It is used
// when no notification server is reachable.
type Log struct {
	Logger *slog.Logger
}

func (l Log) Notify(summary, body string, urgency Urgency) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}

	level := slog.LevelInfo
	if urgency == UrgencyCritical {
		level = slog.LevelWarn
	}

	logger.Log(context.Background(), level, summary, "body", body, "urgency", urgency.String())

	return nil
}
