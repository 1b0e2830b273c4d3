package features

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelepuginivan/statusbar/notify"
)

type notification struct {
	summary string
	body    string
	urgency notify.Urgency
}

type recordingNotifier struct {
	notifications []notification
	err           error
}

func (n *recordingNotifier) Notify(summary, body string, urgency notify.Urgency) error {
	n.notifications = append(n.notifications, notification{summary, body, urgency})
	return n.err
}

func TestWarner_DecreasingCapacity(t *testing.T) {
	notifier := &recordingNotifier{}
	w := NewWarner(notifier, nil)

	w.Update(0.20, 90*time.Minute)
	w.Update(0.15, 65*time.Minute)
	w.Update(0.10, 25*time.Minute)

	require.Len(t, notifier.notifications, 3)
	assert.Equal(t, notification{"Battery under 20%", "01:30 remaining", notify.UrgencyNormal}, notifier.notifications[0])
	assert.Equal(t, notification{"Battery under 15%", "01:05 remaining", notify.UrgencyNormal}, notifier.notifications[1])
	assert.Equal(t, notification{"Battery under 10%", "00:25 remaining", notify.UrgencyCritical}, notifier.notifications[2])

	// Same level again does not warn.
	w.Update(0.10, 25*time.Minute)
	assert.Len(t, notifier.notifications, 3)
}

func TestWarner_NoRepeatWithinLevel(t *testing.T) {
	notifier := &recordingNotifier{}
	w := NewWarner(notifier, nil)

	w.Update(0.50, time.Hour)
	assert.Empty(t, notifier.notifications)

	w.Update(0.19, time.Hour)
	w.Update(0.18, time.Hour)
	w.Update(0.16, time.Hour)
	require.Len(t, notifier.notifications, 1)
	assert.Equal(t, "Battery under 20%", notifier.notifications[0].summary)

	// Rising capacity within the level does not warn either.
	w.Update(0.19, time.Hour)
	assert.Len(t, notifier.notifications, 1)
}

func TestWarner_Reset(t *testing.T) {
	notifier := &recordingNotifier{}
	w := NewWarner(notifier, nil)

	w.Update(0.19, time.Hour)
	w.Update(0.18, time.Hour)
	require.Len(t, notifier.notifications, 1)

	w.Reset()
	w.Update(0.18, time.Hour)

	require.Len(t, notifier.notifications, 2)
	assert.Equal(t, "Battery under 20%", notifier.notifications[1].summary)
}

func TestWarner_SkippedLevels(t *testing.T) {
	notifier := &recordingNotifier{}
	w := NewWarner(notifier, nil)

	w.Update(0.30, time.Hour)
	w.Update(0.04, 5*time.Minute)

	require.Len(t, notifier.notifications, 1)
	assert.Equal(t, notification{"Battery under 5%", "00:05 remaining", notify.UrgencyCritical}, notifier.notifications[0])

	w.Update(0.02, 2*time.Minute)
	require.Len(t, notifier.notifications, 2)
	assert.Equal(t, "Battery under 2%", notifier.notifications[1].summary)
}

func TestWarner_NotifierErrorIsIgnored(t *testing.T) {
	notifier := &recordingNotifier{err: errors.New("no notification server")}
	w := NewWarner(notifier, nil)

	w.Update(0.15, time.Hour)
	w.Update(0.15, time.Hour)

	assert.Len(t, notifier.notifications, 1)
}

func TestWarner_WithoutNotifier(t *testing.T) {
	w := NewWarner(nil, nil)

	assert.NotPanics(t, func() {
		w.Update(0.05, time.Minute)
	})
	assert.True(t, w.known)
}

func TestWarningLevels(t *testing.T) {
	assert.Equal(t, []float64{0.02, 0.05, 0.1, 0.15, 0.2}, warningLevels)
	assert.Equal(t, 0.1, criticalLevel)
}
