package features

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/shelepuginivan/statusbar"
	"github.com/shelepuginivan/statusbar/config"
	"github.com/shelepuginivan/statusbar/upower"
)

// batteryNotifier adapts [upower.Watcher] to [statusbar.Notifier].
type batteryNotifier struct {
	watcher *upower.Watcher
}

func newBatteryNotifier(index int, sender statusbar.Sender, conn upower.Conn, events chan<- upower.DeviceEvent, timeout time.Duration) *batteryNotifier {
	watcher := upower.NewWatcher(conn, events)
	watcher.SetEnumerateTimeout(timeout)
	watcher.OnChange(func() error {
		return sender.Send(statusbar.UpdateMessage(index))
	})

	return &batteryNotifier{watcher: watcher}
}

func (n *batteryNotifier) Run(ctx context.Context) error {
	err := n.watcher.Listen(ctx)

	var setupErr *upower.SetupError
	if errors.As(err, &setupErr) {
		return fmt.Errorf("%w: %w", statusbar.ErrNotifierSetup, err)
	}

	return err
}

type chargeStatus uint8

const (
	statusUnknown chargeStatus = iota
	statusDischarging
	statusCharging
	statusFull
)

// batteryState is the aggregate of all tracked batteries.
type batteryState struct {
	status    chargeStatus
	capacity  float64
	remaining time.Duration
}

// batteryUpdater renders aggregate state of tracked batteries. The set of
// batteries follows device events sent by the battery notifier.
type batteryUpdater struct {
	cfg     config.BatteryConfig
	dir     string
	events  <-chan upower.DeviceEvent
	devices []string
	warner  *Warner
	logger  *slog.Logger
}

func (u *batteryUpdater) Update() string {
	u.drainEvents()

	if len(u.devices) == 0 {
		u.warner.Reset()
		return u.cfg.NoBattery
	}

	state, err := readBatteries(u.dir, u.devices)
	if err != nil {
		u.logger.Debug("Failed to read batteries", "devices", u.devices, "error", err)
		return renderTemplate(u.cfg.Template, map[string]string{"ICON": "?", "CAP": "?", "TIME": ""})
	}

	icon := levelIcon(u.cfg.Icons, state.capacity)
	remaining := ""

	switch state.status {
	case statusDischarging:
		u.warner.Update(state.capacity, state.remaining)
		remaining = formatRemaining(state.remaining)
	case statusCharging:
		u.warner.Reset()
		icon = u.cfg.Charging
		remaining = formatRemaining(state.remaining)
	default:
		u.warner.Reset()
	}

	return renderTemplate(u.cfg.Template, map[string]string{
		"ICON": icon,
		"CAP":  strconv.Itoa(percent(state.capacity)),
		"TIME": remaining,
	})
}

// drainEvents applies pending device events without blocking.
func (u *batteryUpdater) drainEvents() {
	for {
		select {
		case event := <-u.events:
			u.applyEvent(event)
		default:
			return
		}
	}
}

func (u *batteryUpdater) applyEvent(event upower.DeviceEvent) {
	idx := slices.Index(u.devices, event.Name)

	switch event.Kind {
	case upower.DeviceAdded:
		if idx < 0 {
			u.devices = append(u.devices, event.Name)
		}
	case upower.DeviceRemoved:
		if idx >= 0 {
			u.devices = slices.Delete(u.devices, idx, idx+1)
		}
	}
}

// readBatteries reads power supply attributes of batteries under dir, usually
// /sys/class/power_supply, and aggregates them.
func readBatteries(dir string, names []string) (batteryState, error) {
	var (
		now, full, rate float64
		charging        bool
		discharging     bool
		allFull         = true
	)

	for _, name := range names {
		base := filepath.Join(dir, name)

		status, err := os.ReadFile(filepath.Join(base, "status"))
		if err != nil {
			return batteryState{}, err
		}

		switch strings.TrimSpace(string(status)) {
		case "Charging":
			charging = true
			allFull = false
		case "Discharging":
			discharging = true
			allFull = false
		case "Full":
		default:
			allFull = false
		}

		n, f, r, err := readSupply(base)
		if err != nil {
			return batteryState{}, err
		}

		now += float64(n)
		full += float64(f)
		rate += float64(r)
	}

	if full <= 0 {
		return batteryState{}, fmt.Errorf("invalid full capacity of %s", strings.Join(names, ", "))
	}

	state := batteryState{capacity: min(now/full, 1)}

	switch {
	case discharging:
		state.status = statusDischarging
		state.remaining = hours(now, rate)
	case charging:
		state.status = statusCharging
		state.remaining = hours(full-now, rate)
	case allFull:
		state.status = statusFull
	}

	return state, nil
}

// readSupply reads current and full capacity of the battery at dir, and the
// rate it is charged or discharged at. Batteries report either energy (µWh,
// rate in µW) or charge (µAh, rate in µA); the rate is read from the same
// family as the capacity.
func readSupply(dir string) (now, full, rate int64, err error) {
	family, rateName := "energy", "power_now"

	now, err = readInt(filepath.Join(dir, "energy_now"))
	if errors.Is(err, fs.ErrNotExist) {
		family, rateName = "charge", "current_now"
		now, err = readInt(filepath.Join(dir, "charge_now"))
	}
	if err != nil {
		return 0, 0, 0, err
	}

	full, err = readInt(filepath.Join(dir, family+"_full"))
	if err != nil {
		return 0, 0, 0, err
	}

	// Rate is missing on some batteries; remaining time is unknown then.
	rate, _ = readInt(filepath.Join(dir, rateName))

	return now, full, rate, nil
}

// hours returns amount/rate hours as a duration, or zero if rate is unknown.
func hours(amount, rate float64) time.Duration {
	if rate <= 0 || amount <= 0 {
		return 0
	}

	return time.Duration(amount / rate * float64(time.Hour))
}
