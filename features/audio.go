package features

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shelepuginivan/statusbar/config"
)

const amixerTimeout = time.Second

var errNoVolume = errors.New("no volume in amixer output")

// Matches a playback line of amixer, e.g.
//
//	Front Left: Playback 50 [57%] [-27.75dB] [on]
var amixerPattern = regexp.MustCompile(`\[(\d{1,3})%\](?:.*\[(on|off)\])?`)

type volume struct {
	percent int
	muted   bool
}

// audioUpdater renders volume of a mixer control.
type audioUpdater struct {
	cfg    config.AudioConfig
	read   func(control string) (volume, error)
	logger *slog.Logger
}

func (u *audioUpdater) Update() string {
	vol, err := u.read(u.cfg.Control)
	if err != nil {
		u.logger.Debug("Failed to read volume", "control", u.cfg.Control, "error", err)
		return renderTemplate(u.cfg.Template, map[string]string{"VOL": "?", "ICON": ""})
	}

	if vol.muted {
		return u.cfg.Mute
	}

	return renderTemplate(u.cfg.Template, map[string]string{
		"VOL":  strconv.Itoa(vol.percent),
		"ICON": levelIcon(u.cfg.Icons, float64(vol.percent)/100),
	})
}

// readAmixer queries volume of control with amixer.
func readAmixer(control string) (volume, error) {
	ctx, cancel := context.WithTimeout(context.Background(), amixerTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, "amixer", "get", control).Output()
	if err != nil {
		return volume{}, fmt.Errorf("amixer get %s: %w", control, err)
	}

	return parseAmixer(string(out))
}

// parseAmixer retrieves volume of the first channel from output of amixer get.
func parseAmixer(out string) (volume, error) {
	for _, line := range strings.Split(out, "\n") {
		match := amixerPattern.FindStringSubmatch(line)
		if match == nil {
			continue
		}

		pct, err := strconv.Atoi(match[1])
		if err != nil {
			return volume{}, fmt.Errorf("invalid volume %q: %w", match[1], err)
		}

		return volume{percent: pct, muted: match[2] == "off"}, nil
	}

	return volume{}, errNoVolume
}
