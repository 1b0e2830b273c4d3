// Package features implements the status line features: audio, backlight,
// battery, network, and time.
//
// Every feature is a [statusbar.Feature] built from one of three notifier
// strategies ([TimerNotifier], [CommandNotifier], [FileNotifier]) or the
// UPower device watcher, and an updater reading the current state.
package features

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/shelepuginivan/statusbar"
	"github.com/shelepuginivan/statusbar/config"
	"github.com/shelepuginivan/statusbar/notify"
	"github.com/shelepuginivan/statusbar/upower"
)

const (
	// The network notifier checks twice, since addresses are assigned some
	// time after the link comes up.
	networkSettleDelay = 2 * time.Second
	networkRepeat      = 2

	// Device events are rare, the buffer only has to cover enumeration.
	deviceEventsBuffer = 64
)

// DefaultSysRoot is the mount point of sysfs.
const DefaultSysRoot = "/sys"

// Env holds collaborators shared by features.
type Env struct {
	Config *config.Config

	// System bus connection. Required by the battery feature.
	SystemBus upower.Conn

	// Destination of battery warnings. Warnings are not shown if nil.
	Notifier notify.Notifier

	// Mount point of sysfs. [DefaultSysRoot] is used if empty.
	SysRoot string

	Logger *slog.Logger
}

// Factory returns a [statusbar.Factory] creating features with env.
func Factory(env Env) statusbar.Factory {
	return func(index int, name string, sender statusbar.Sender) (*statusbar.Feature, error) {
		return New(index, name, sender, env)
	}
}

// New returns the feature called name.
//
// If name is not a known feature, an error wrapping
// [statusbar.ErrUnknownFeature] is returned.
func New(index int, name string, sender statusbar.Sender, env Env) (*statusbar.Feature, error) {
	cfg := env.Config
	if cfg == nil {
		cfg = config.Default()
	}

	sysRoot := env.SysRoot
	if sysRoot == "" {
		sysRoot = DefaultSysRoot
	}

	logger := env.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("feature", name)

	switch name {
	case config.FeatureAudio:
		return statusbar.NewFeature(
			index,
			name,
			NewCommandNotifier(index, sender, cfg.Audio.Command, 0, 1),
			&audioUpdater{cfg: cfg.Audio, read: readAmixer, logger: logger},
		), nil

	case config.FeatureBacklight:
		dir, err := backlightDir(sysRoot, cfg.Backlight.Device)
		if err != nil {
			return nil, err
		}

		return statusbar.NewFeature(
			index,
			name,
			NewFileNotifier(index, sender, filepath.Join(dir, "brightness"), cfg.Backlight.GetPollInterval(), logger),
			&backlightUpdater{cfg: cfg.Backlight, dir: dir, logger: logger},
		), nil

	case config.FeatureBattery:
		if env.SystemBus == nil {
			return nil, fmt.Errorf("system bus is not available")
		}

		var notifier notify.Notifier
		if cfg.Battery.Notifications {
			notifier = env.Notifier
		}

		events := make(chan upower.DeviceEvent, deviceEventsBuffer)

		return statusbar.NewFeature(
			index,
			name,
			newBatteryNotifier(index, sender, env.SystemBus, events, cfg.Battery.GetEnumerateTimeout()),
			&batteryUpdater{
				cfg:    cfg.Battery,
				dir:    filepath.Join(sysRoot, "class", "power_supply"),
				events: events,
				warner: NewWarner(notifier, logger),
				logger: logger,
			},
		), nil

	case config.FeatureNetwork:
		return statusbar.NewFeature(
			index,
			name,
			NewCommandNotifier(index, sender, cfg.Network.Command, networkSettleDelay, networkRepeat),
			&networkUpdater{cfg: cfg.Network, links: systemLinks, logger: logger},
		), nil

	case config.FeatureTime:
		return statusbar.NewFeature(
			index,
			name,
			NewTimerNotifier(index, sender, cfg.Time.GetInterval()),
			&clockUpdater{format: cfg.Time.Format, now: time.Now},
		), nil

	default:
		return nil, fmt.Errorf("%w: %s", statusbar.ErrUnknownFeature, name)
	}
}
