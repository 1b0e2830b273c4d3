// Package upower tracks battery devices exposed by [UPower] on the system bus.
//
// [Watcher] enumerates present devices, subscribes to property changes of every
// battery, and follows devices as they appear and disappear. It reports two
// streams: device lifecycle events ([DeviceEvent]) and change notifications
// (the callback set with [Watcher.OnChange]).
//
// [UPower]: https://upower.freedesktop.org/docs/
package upower

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/shelepuginivan/statusbar/internal/wait"
)

const (
	Interface = "org.freedesktop.UPower"
	Path      = "/org/freedesktop/UPower"

	// DevicesPathPrefix is the namespace of every UPower device.
	DevicesPathPrefix = "/org/freedesktop/UPower/devices"

	// BatteryPathPrefix is the namespace of battery devices. Object path of a
	// battery is BatteryPathPrefix followed by its kernel name, e.g. BAT0.
	BatteryPathPrefix = DevicesPathPrefix + "/battery_"
)

const (
	propertiesInterface = "org.freedesktop.DBus.Properties"

	memberDeviceAdded       = "DeviceAdded"
	memberPropertiesChanged = "PropertiesChanged"
	methodEnumerateDevices  = Interface + ".EnumerateDevices"
)

const (
	// DefaultSettleDelay is how long to wait after a property change before
	// reporting it. Files under /sys/class/power_supply are updated after the
	// signal is emitted.
	DefaultSettleDelay = 2 * time.Second

	// DefaultEnumerateTimeout bounds the initial EnumerateDevices call.
	DefaultEnumerateTimeout = 2 * time.Second
)

var (
	// ErrSignalsClosed is returned by [Watcher.Listen] when the bus stops
	// delivering signals, e.g. because the connection was closed.
	ErrSignalsClosed = errors.New("signal channel closed")

	// ErrMalformedSignal is returned by [Watcher.Listen] when a UPower signal
	// does not carry a device object path.
	ErrMalformedSignal = errors.New("malformed signal")
)

// Conn is the subset of [dbus.Conn] used by [Watcher].
type Conn interface {
	AddMatchSignal(options ...dbus.MatchOption) error
	RemoveMatchSignal(options ...dbus.MatchOption) error
	Signal(ch chan<- *dbus.Signal)
	RemoveSignal(ch chan<- *dbus.Signal)
	Object(dest string, path dbus.ObjectPath) dbus.BusObject
}

type EventKind uint8

// Device lifecycle event kinds.
const (
	DeviceAdded EventKind = iota
	DeviceRemoved
)

func (k EventKind) String() string {
	if k == DeviceAdded {
		return "added"
	}

	return "removed"
}

// DeviceEvent reports that a battery started or stopped being tracked.
type DeviceEvent struct {
	Kind EventKind

	// Kernel name of the battery, such as BAT0.
	Name string
}

// Watcher implements device tracking for a single owner.
//
// The device set of a watcher is confined to the goroutine calling
// [Watcher.Listen]. Watcher must not be used concurrently.
type Watcher struct {
	conn     Conn
	signals  chan *dbus.Signal
	devices  map[dbus.ObjectPath]string
	events   chan<- DeviceEvent
	onChange func() error

	settle  time.Duration
	timeout time.Duration
}

// NewWatcher returns a new [Watcher].
//
// Device lifecycle events are sent to events. The owner must keep receiving
// from it, since sending blocks once its buffer is full.
func NewWatcher(conn Conn, events chan<- DeviceEvent) *Watcher {
	return &Watcher{
		conn:     conn,
		signals:  make(chan *dbus.Signal, 64),
		devices:  make(map[dbus.ObjectPath]string),
		events:   events,
		onChange: func() error { return nil },
		settle:   DefaultSettleDelay,
		timeout:  DefaultEnumerateTimeout,
	}
}

// OnChange sets callback that runs whenever the set of batteries or a property
// of a battery changes. An error returned by callback stops [Watcher.Listen].
//
// This method should be called before [Watcher.Listen].
func (w *Watcher) OnChange(callback func() error) {
	w.onChange = callback
}

// SetSettleDelay sets the delay between a property change signal and the
// OnChange callback.
func (w *Watcher) SetSettleDelay(delay time.Duration) {
	w.settle = delay
}

// SetEnumerateTimeout sets the timeout of the initial device enumeration.
func (w *Watcher) SetEnumerateTimeout(timeout time.Duration) {
	w.timeout = timeout
}

// deviceNames returns kernel names of currently tracked batteries.
func (w *Watcher) deviceNames() []string {
	names := make([]string, 0, len(w.devices))

	for _, name := range w.devices {
		names = append(names, name)
	}

	return names
}

// Listen subscribes to UPower signals, enumerates present devices, and handles
// signals until ctx is done or an error occurs.
//
// Errors that happen before signal handling starts are of type [*SetupError].
// Listen calls the OnChange callback once right after enumeration, since
// enumeration may take long enough for a real device change to be missed by
// the owner.
func (w *Watcher) Listen(ctx context.Context) error {
	if err := w.subscribe(); err != nil {
		return &SetupError{Err: err}
	}
	defer w.close()

	paths, err := w.enumerate(ctx)
	if err != nil {
		return &SetupError{Err: err}
	}

	for _, path := range paths {
		if err := w.addDevice(ctx, path); err != nil {
			return &SetupError{Err: err}
		}
	}

	if err := w.onChange(); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case signal, ok := <-w.signals:
			if !ok {
				return fmt.Errorf("listen: %w", ErrSignalsClosed)
			}

			if err := w.handleSignal(ctx, signal); err != nil {
				return fmt.Errorf("listen: %w", err)
			}
		}
	}
}

// SetupError is returned by [Watcher.Listen] when it fails before handling any
// signal.
type SetupError struct {
	Err error
}

func (e *SetupError) Error() string {
	return "setup: " + e.Err.Error()
}

func (e *SetupError) Unwrap() error {
	return e.Err
}

// subscribe subscribes to every signal of org.freedesktop.UPower, such as
// DeviceAdded and DeviceRemoved.
func (w *Watcher) subscribe() error {
	if err := w.conn.AddMatchSignal(
		dbus.WithMatchInterface(Interface),
		dbus.WithMatchObjectPath(Path),
	); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", Interface, err)
	}

	w.conn.Signal(w.signals)

	return nil
}

// close removes every match rule of the watcher and stops signal delivery.
func (w *Watcher) close() {
	for path := range w.devices {
		w.conn.RemoveMatchSignal(propertiesMatch(path)...)
	}

	w.conn.RemoveMatchSignal(
		dbus.WithMatchInterface(Interface),
		dbus.WithMatchObjectPath(Path),
	)

	w.conn.RemoveSignal(w.signals)
}

// enumerate retrieves object paths of devices that are already present.
func (w *Watcher) enumerate(ctx context.Context) ([]dbus.ObjectPath, error) {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	call := w.conn.Object(Interface, Path).CallWithContext(ctx, methodEnumerateDevices, 0)
	if call.Err != nil {
		return nil, fmt.Errorf("failed to enumerate devices: %w", call.Err)
	}

	var paths []dbus.ObjectPath
	if err := call.Store(&paths); err != nil {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}

	return paths, nil
}

func (w *Watcher) handleSignal(ctx context.Context, signal *dbus.Signal) error {
	switch {
	case strings.HasPrefix(signal.Name, Interface+"."):
		path, err := devicePathFromSignal(signal)
		if err != nil {
			return err
		}

		if signal.Name == Interface+"."+memberDeviceAdded {
			err = w.addDevice(ctx, path)
		} else {
			err = w.removeDevice(ctx, path)
		}

		if err != nil {
			return err
		}

		return w.onChange()
	case signal.Name == propertiesInterface+"."+memberPropertiesChanged:
		if _, tracked := w.devices[signal.Path]; !tracked {
			return nil
		}

		if err := wait.Sleep(ctx, w.settle); err != nil {
			return err
		}

		return w.onChange()
	}

	return nil
}

// addDevice starts tracking the device at path. Devices that are not batteries
// and devices that are already tracked are ignored.
func (w *Watcher) addDevice(ctx context.Context, path dbus.ObjectPath) error {
	name, ok := DeviceName(path)
	if !ok {
		return nil
	}

	if _, tracked := w.devices[path]; tracked {
		return nil
	}

	if err := w.conn.AddMatchSignal(propertiesMatch(path)...); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", path, err)
	}

	w.devices[path] = name

	return w.send(ctx, DeviceEvent{Kind: DeviceAdded, Name: name})
}

// removeDevice stops tracking the device at path. Untracked devices are
// ignored.
func (w *Watcher) removeDevice(ctx context.Context, path dbus.ObjectPath) error {
	name, tracked := w.devices[path]
	if !tracked {
		return nil
	}

	if err := w.conn.RemoveMatchSignal(propertiesMatch(path)...); err != nil {
		return fmt.Errorf("failed to unsubscribe from %s: %w", path, err)
	}

	delete(w.devices, path)

	return w.send(ctx, DeviceEvent{Kind: DeviceRemoved, Name: name})
}

func (w *Watcher) send(ctx context.Context, event DeviceEvent) error {
	select {
	case w.events <- event:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("failed to send device %s event: %w", event.Kind, ctx.Err())
	}
}

// DeviceName returns kernel name of the battery at path, such as BAT0. If path
// does not belong to a battery, ok is false.
func DeviceName(path dbus.ObjectPath) (name string, ok bool) {
	name, ok = strings.CutPrefix(string(path), BatteryPathPrefix)
	if !ok || name == "" || strings.Contains(name, "/") {
		return "", false
	}

	return name, true
}

// propertiesMatch returns match options of the PropertiesChanged signal of the
// device at path.
func propertiesMatch(path dbus.ObjectPath) []dbus.MatchOption {
	return []dbus.MatchOption{
		dbus.WithMatchInterface(propertiesInterface),
		dbus.WithMatchMember(memberPropertiesChanged),
		dbus.WithMatchObjectPath(path),
	}
}

// devicePathFromSignal retrieves device object path from the body of the
// DeviceAdded and DeviceRemoved signals.
func devicePathFromSignal(signal *dbus.Signal) (dbus.ObjectPath, error) {
	if len(signal.Body) < 1 {
		return "", fmt.Errorf("%w: %s: body is empty", ErrMalformedSignal, signal.Name)
	}

	path, ok := signal.Body[0].(dbus.ObjectPath)
	if !ok {
		return "", fmt.Errorf("%w: %s: expected object path, got %T", ErrMalformedSignal, signal.Name, signal.Body[0])
	}

	return path, nil
}
