package features

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/shelepuginivan/statusbar/notify"
)

// Battery capacity levels that trigger a warning, in ascending order.
var warningLevels = []float64{0.02, 0.05, 0.1, 0.15, 0.2}

// Warnings at or below this level are critical.
const criticalLevel = 0.1

// Warner shows desktop warnings as battery capacity falls below each of the
// warning levels.
//
// A warning for a level is shown only once while capacity keeps decreasing.
// Call [Warner.Reset] once capacity is no longer relevant, e.g. when the
// battery is charging or removed.
type Warner struct {
	notifier notify.Notifier
	logger   *slog.Logger

	// Last observed capacity, valid if known is set.
	capacity float64
	known    bool
}

// NewWarner returns a new [Warner]. If notifier is nil, capacity is tracked but
// no warnings are shown.
func NewWarner(notifier notify.Notifier, logger *slog.Logger) *Warner {
	if logger == nil {
		logger = slog.Default()
	}

	return &Warner{
		notifier: notifier,
		logger:   logger,
	}
}

// Reset forgets the last observed capacity.
func (w *Warner) Reset() {
	w.capacity = 0
	w.known = false
}

// Update observes capacity, a fraction in [0, 1], and remaining time until the
// battery is empty.
func (w *Warner) Update(capacity float64, remaining time.Duration) {
	for _, level := range warningLevels {
		if level < capacity {
			continue
		}

		// Only warn if the previous observation was above this level.
		if !w.known || level < w.capacity {
			w.warn(level, remaining)
		}

		break
	}

	w.capacity = capacity
	w.known = true
}

func (w *Warner) warn(level float64, remaining time.Duration) {
	if w.notifier == nil {
		return
	}

	urgency := notify.UrgencyNormal
	if level <= criticalLevel {
		urgency = notify.UrgencyCritical
	}

	summary := fmt.Sprintf("Battery under %.0f%%", level*100)
	body := fmt.Sprintf("%s remaining", formatRemaining(remaining))

	if err := w.notifier.Notify(summary, body, urgency); err != nil {
		w.logger.Warn("Failed to show battery warning", "level", level, "error", err)
	}
}

// formatRemaining formats duration as HH:MM.
func formatRemaining(d time.Duration) string {
	minutes := int(d / time.Minute)
	if minutes < 0 {
		minutes = 0
	}

	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
