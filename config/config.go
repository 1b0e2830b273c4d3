// Package config loads statusbar settings.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Feature names accepted in general.order.
const (
	FeatureAudio     = "audio"
	FeatureBacklight = "backlight"
	FeatureBattery   = "battery"
	FeatureNetwork   = "network"
	FeatureTime      = "time"
)

// Outputs accepted in general.output.
const (
	OutputXSetRoot = "xsetroot"
	OutputStdout   = "stdout"
)

type Config struct {
	General   GeneralConfig   `yaml:"general"`
	Logging   LoggingConfig   `yaml:"logging"`
	Audio     AudioConfig     `yaml:"audio"`
	Backlight BacklightConfig `yaml:"backlight"`
	Battery   BatteryConfig   `yaml:"battery"`
	Network   NetworkConfig   `yaml:"network"`
	Time      TimeConfig      `yaml:"time"`
}

type GeneralConfig struct {
	Order     []string `yaml:"order" validate:"required,min=1,unique,dive,oneof=audio backlight battery network time"`
	Separator string   `yaml:"separator"`
	Output    string   `yaml:"output" validate:"oneof=xsetroot stdout"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

type AudioConfig struct {
	Command  []string `yaml:"command" validate:"required,min=1"`
	Control  string   `yaml:"control" validate:"required"`
	Icons    []string `yaml:"icons"`
	Mute     string   `yaml:"mute"`
	Template string   `yaml:"template" validate:"required"`
}

type BacklightConfig struct {
	// Directory name under /sys/class/backlight. The first device found is
	// used if empty.
	Device         string   `yaml:"device"`
	Icons          []string `yaml:"icons"`
	Template       string   `yaml:"template" validate:"required"`
	PollIntervalMS int      `yaml:"poll_interval_ms" validate:"gte=0"`
}

type BatteryConfig struct {
	Icons         []string `yaml:"icons"`
	Charging      string   `yaml:"charging"`
	NoBattery     string   `yaml:"no_battery"`
	Template      string   `yaml:"template" validate:"required"`
	Notifications bool     `yaml:"notifications"`

	// Bounds the initial UPower device enumeration.
	EnumerateTimeoutMS int `yaml:"enumerate_timeout_ms" validate:"gt=0"`
}

type NetworkConfig struct {
	Command  []string `yaml:"command" validate:"required,min=1"`
	Template string   `yaml:"template" validate:"required"`
	Offline  string   `yaml:"offline"`
}

type TimeConfig struct {
	Format     string `yaml:"format" validate:"required"`
	IntervalMS int    `yaml:"interval_ms" validate:"gt=0"`
}

// Default returns configuration used for settings absent from the file.
func Default() *Config {
	return &Config{
		General: GeneralConfig{
			Order: []string{
				FeatureNetwork,
				FeatureAudio,
				FeatureBacklight,
				FeatureBattery,
				FeatureTime,
			},
			Separator: " | ",
			Output:    OutputXSetRoot,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Audio: AudioConfig{
			Command:  []string{"alsactl", "monitor"},
			Control:  "Master",
			Icons:    []string{},
			Mute:     "MUTE",
			Template: "S {VOL}%",
		},
		Backlight: BacklightConfig{
			Icons:          []string{},
			Template:       "L {BL}%",
			PollIntervalMS: 5000,
		},
		Battery: BatteryConfig{
			Icons:         []string{"B"},
			Charging:      "C",
			NoBattery:     "NO BATTERY",
			Template:      "{ICON} {CAP}% {TIME}",
			Notifications: true,

			EnumerateTimeoutMS: 2000,
		},
		Network: NetworkConfig{
			Command:  []string{"ip", "monitor", "address", "link"},
			Template: "{IFACE} {IP}",
			Offline:  "offline",
		},
		Time: TimeConfig{
			Format:     "2006-01-02 15:04:05",
			IntervalMS: 1000,
		},
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/statusbar/config.yaml.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve config directory: %w", err)
	}

	return filepath.Join(dir, "statusbar", "config.yaml"), nil
}

// Load reads configuration from file over the defaults, applies environment
// variable overrides, and validates the result.
//
// A missing file is not an error, defaults are used instead.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(configPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides checks for environment variables with STATUSBAR_ prefix.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("STATUSBAR_ORDER"); v != "" {
		order := strings.Split(v, ",")
		for i := range order {
			order[i] = strings.TrimSpace(order[i])
		}
		cfg.General.Order = order
	}
	if v := os.Getenv("STATUSBAR_OUTPUT"); v != "" {
		cfg.General.Output = v
	}
	if v := os.Getenv("STATUSBAR_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("STATUSBAR_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
}

// GetPollInterval returns the backlight poll interval as a duration.
func (b *BacklightConfig) GetPollInterval() time.Duration {
	return time.Duration(b.PollIntervalMS) * time.Millisecond
}

// GetEnumerateTimeout returns the UPower enumeration timeout as a duration.
func (b *BatteryConfig) GetEnumerateTimeout() time.Duration {
	return time.Duration(b.EnumerateTimeoutMS) * time.Millisecond
}

// GetInterval returns the clock refresh interval as a duration.
func (t *TimeConfig) GetInterval() time.Duration {
	return time.Duration(t.IntervalMS) * time.Millisecond
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	// Report fields by their YAML names.
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("yaml"), ",")
		if name == "" || name == "-" {
			return field.Name
		}

		return name
	})

	return v
}

// ValidationError represents a field-level validation error.
type ValidationError struct {
	Field   string
	Message string
}

// ValidationErrors holds multiple validation errors.
type ValidationErrors struct {
	Errors []ValidationError
}

func (v *ValidationErrors) Error() string {
	if len(v.Errors) == 0 {
		return "validation failed"
	}

	messages := make([]string, len(v.Errors))
	for i, e := range v.Errors {
		messages[i] = e.Message
	}

	return strings.Join(messages, "; ")
}

// Validate ensures configuration values are usable.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	validationErrs := &ValidationErrors{}
	for _, e := range fieldErrs {
		field := fieldPath(e)
		validationErrs.Errors = append(validationErrs.Errors, ValidationError{
			Field:   field,
			Message: formatValidationMessage(field, e),
		})
	}

	return validationErrs
}

// fieldPath returns dotted YAML path of the field, e.g. general.order[1].
func fieldPath(e validator.FieldError) string {
	_, path, ok := strings.Cut(e.Namespace(), ".")
	if !ok {
		return e.Field()
	}

	return path
}

// formatValidationMessage creates human-readable error messages.
func formatValidationMessage(field string, e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		if e.Kind() == reflect.Slice {
			return fmt.Sprintf("%s must have at least %s entries", field, e.Param())
		}
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "unique":
		return fmt.Sprintf("%s must not have more than one entry of one feature", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, e.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", field, e.Tag())
	}
}
