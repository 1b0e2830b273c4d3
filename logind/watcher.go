// Package logind watches systemd-logind for system sleep and resume.
package logind

import (
	"context"
	"errors"
	"fmt"

	"github.com/godbus/dbus/v5"
)

const (
	ManagerInterface = "org.freedesktop.login1.Manager"
	ManagerPath      = "/org/freedesktop/login1"
)

const memberPrepareForSleep = "PrepareForSleep"

// ErrSignalsClosed is returned by [Watcher.Listen] when the bus stops
// delivering signals.
var ErrSignalsClosed = errors.New("signal channel closed")

// Conn is the subset of [dbus.Conn] used by [Watcher].
type Conn interface {
	AddMatchSignal(options ...dbus.MatchOption) error
	RemoveMatchSignal(options ...dbus.MatchOption) error
	Signal(ch chan<- *dbus.Signal)
	RemoveSignal(ch chan<- *dbus.Signal)
}

// Watcher reports system resume.
type Watcher struct {
	conn     Conn
	signals  chan *dbus.Signal
	onResume func() error
}

func NewWatcher(conn Conn) *Watcher {
	return &Watcher{
		conn:     conn,
		signals:  make(chan *dbus.Signal, 16),
		onResume: func() error { return nil },
	}
}

// OnResume sets callback that runs after the system wakes up. An error
// returned by callback stops [Watcher.Listen].
func (w *Watcher) OnResume(callback func() error) {
	w.onResume = callback
}

// Listen subscribes to org.freedesktop.login1.Manager.PrepareForSleep and
// handles it until ctx is done or an error occurs.
func (w *Watcher) Listen(ctx context.Context) error {
	if err := w.conn.AddMatchSignal(
		dbus.WithMatchInterface(ManagerInterface),
		dbus.WithMatchObjectPath(ManagerPath),
		dbus.WithMatchMember(memberPrepareForSleep),
	); err != nil {
		return fmt.Errorf("listen: failed to subscribe to %s: %w", memberPrepareForSleep, err)
	}

	w.conn.Signal(w.signals)

	defer func() {
		w.conn.RemoveMatchSignal(
			dbus.WithMatchInterface(ManagerInterface),
			dbus.WithMatchObjectPath(ManagerPath),
			dbus.WithMatchMember(memberPrepareForSleep),
		)
		w.conn.RemoveSignal(w.signals)
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case signal, ok := <-w.signals:
			if !ok {
				return fmt.Errorf("listen: %w", ErrSignalsClosed)
			}

			if signal.Name != ManagerInterface+"."+memberPrepareForSleep {
				continue
			}

			if len(signal.Body) < 1 {
				continue
			}

			// PrepareForSleep(true) is emitted before suspend and
			// PrepareForSleep(false) after resume.
			sleeping, ok := signal.Body[0].(bool)
			if !ok || sleeping {
				continue
			}

			if err := w.onResume(); err != nil {
				return err
			}
		}
	}
}
