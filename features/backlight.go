package features

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/shelepuginivan/statusbar/config"
)

var errNoBacklight = errors.New("no backlight device")

// backlightUpdater renders brightness of a backlight device.
type backlightUpdater struct {
	cfg    config.BacklightConfig
	dir    string
	logger *slog.Logger
}

func (u *backlightUpdater) Update() string {
	level, err := readBrightness(u.dir)
	if err != nil {
		u.logger.Debug("Failed to read brightness", "device", u.dir, "error", err)
		return renderTemplate(u.cfg.Template, map[string]string{"BL": "?", "ICON": ""})
	}

	return renderTemplate(u.cfg.Template, map[string]string{
		"BL":   strconv.Itoa(percent(level)),
		"ICON": levelIcon(u.cfg.Icons, level),
	})
}

// backlightDir returns directory of the backlight device under
// <sysRoot>/class/backlight. If device is empty, the first device is used.
func backlightDir(sysRoot, device string) (string, error) {
	base := filepath.Join(sysRoot, "class", "backlight")

	if device != "" {
		return filepath.Join(base, device), nil
	}

	entries, err := os.ReadDir(base)
	if err != nil {
		return "", fmt.Errorf("%w: %w", errNoBacklight, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}

	if len(names) == 0 {
		return "", fmt.Errorf("%w in %s", errNoBacklight, base)
	}

	slices.Sort(names)

	return filepath.Join(base, names[0]), nil
}

// readBrightness returns brightness of the device at dir as a fraction of its
// maximum brightness.
func readBrightness(dir string) (float64, error) {
	current, err := readInt(filepath.Join(dir, "brightness"))
	if err != nil {
		return 0, err
	}

	maximum, err := readInt(filepath.Join(dir, "max_brightness"))
	if err != nil {
		return 0, err
	}

	if maximum <= 0 {
		return 0, fmt.Errorf("invalid max_brightness %d", maximum)
	}

	return float64(current) / float64(maximum), nil
}

// readInt reads a pseudo-file holding a single integer.
func readInt(path string) (int64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}

	value, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", path, err)
	}

	return value, nil
}
