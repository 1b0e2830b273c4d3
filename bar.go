package statusbar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

var (
	ErrNoFeatures       = errors.New("no features enabled")
	ErrDuplicateFeature = errors.New("order must not have more than one entry of one feature")
	ErrUnknownFeature   = errors.New("unknown feature")

	// ErrNotifierSetup is wrapped by notifiers that fail before they begin
	// listening, e.g. when the initial device enumeration fails. A notifier
	// exiting with such error terminates the whole [Bar].
	ErrNotifierSetup = errors.New("notifier setup failed")
)

// DefaultSeparator separates texts of features in the composed line.
const DefaultSeparator = " | "

// Renderer displays the composed status line.
type Renderer interface {
	Render(text string) error
}

// Factory creates a [Feature] from its position and name in the configured
// order. Factory must not start any goroutines; [Bar.Start] does that.
type Factory func(index int, name string, sender Sender) (*Feature, error)

// Options configure a [Bar].
type Options struct {
	// Separator between feature texts. [DefaultSeparator] is used if empty.
	Separator string

	// Logger used to report notifier exits and render failures.
	// [slog.Default] is used if nil.
	Logger *slog.Logger
}

// Bar is the consumer side of the status line. It owns the features, the
// message queue, and the last known text of every feature.
type Bar struct {
	queue     *Queue
	features  []*Feature
	texts     []string
	renderer  Renderer
	separator string
	logger    *slog.Logger
	started   bool
}

// ValidateOrder reports whether order is non-empty and has no duplicate
// entries.
func ValidateOrder(order []string) error {
	if len(order) == 0 {
		return ErrNoFeatures
	}

	seen := make(map[string]struct{}, len(order))

	for _, name := range order {
		if _, exists := seen[name]; exists {
			return fmt.Errorf("%w: %s", ErrDuplicateFeature, name)
		}

		seen[name] = struct{}{}
	}

	return nil
}

// New returns a new [Bar] with features created by factory in the given
// order.
//
// Order is validated before factory is called for any feature, so an invalid
// order has no side effects.
func New(order []string, factory Factory, renderer Renderer, opts Options) (*Bar, error) {
	if err := ValidateOrder(order); err != nil {
		return nil, fmt.Errorf("settings: %w", err)
	}

	b := &Bar{
		queue:     NewQueue(),
		features:  make([]*Feature, 0, len(order)),
		texts:     make([]string, len(order)),
		renderer:  renderer,
		separator: opts.Separator,
		logger:    opts.Logger,
	}

	if b.separator == "" {
		b.separator = DefaultSeparator
	}

	if b.logger == nil {
		b.logger = slog.Default()
	}

	for index, name := range order {
		feature, err := factory(index, name, b.queue)
		if err != nil {
			return nil, fmt.Errorf("create feature %s: %w", name, err)
		}

		b.features = append(b.features, feature)
	}

	return b, nil
}

// Sender returns the producer side of the message queue of the bar. It is
// used to post [UpdateAll] and [Terminate] from outside of features.
func (b *Bar) Sender() Sender {
	return b.queue
}

// Features returns features of the bar in the configured order.
func (b *Bar) Features() []*Feature {
	features := make([]*Feature, len(b.features))
	copy(features, b.features)

	return features
}

// Start runs notifier of every feature on its own goroutine and posts
// [UpdateAll].
//
// If Start is called more than once, an error is returned.
func (b *Bar) Start(ctx context.Context) error {
	if b.started {
		return fmt.Errorf("start: bar is already started")
	}

	b.started = true

	for _, feature := range b.features {
		feature.Start(ctx, func(err error) {
			b.notifierExited(ctx, feature, err)
		})
	}

	return b.queue.Send(UpdateAll)
}

// Run reads messages until [Terminate] is received, recomputing features and
// redrawing the composed line after every message.
//
// Run returns the error carried by the terminate message, which is nil on a
// clean shutdown. If ctx is done or the queue is closed and drained, the
// respective error is returned.
//
// The queue is closed once Run returns, so notifiers sending afterwards get
// [ErrQueueClosed] and stop.
func (b *Bar) Run(ctx context.Context) error {
	defer b.queue.Close()

	for {
		msg, err := b.queue.Receive(ctx)
		if err != nil {
			return err
		}

		switch msg.Kind {
		case MessageTerminate:
			return msg.Err
		case MessageUpdateAll:
			for idx, feature := range b.features {
				b.texts[idx] = feature.Update()
			}
		case MessageUpdate:
			if msg.Index < 0 || msg.Index >= len(b.features) {
				b.logger.Warn("Message for unknown feature", "index", msg.Index)
				continue
			}

			b.texts[msg.Index] = b.features[msg.Index].Update()
		default:
			b.logger.Warn("Unknown message", "message", msg.String())
			continue
		}

		b.redraw()
	}
}

// Line returns the composed status line: last known texts of features joined
// in the configured order. Features with empty text are skipped.
func (b *Bar) Line() string {
	segments := make([]string, 0, len(b.texts))

	for _, text := range b.texts {
		if text == "" {
			continue
		}

		segments = append(segments, text)
	}

	return strings.Join(segments, b.separator)
}

func (b *Bar) redraw() {
	if err := b.renderer.Render(b.Line()); err != nil {
		b.logger.Warn("Failed to render status line", "error", err)
	}
}

// notifierExited runs on the goroutine of the exited notifier.
func (b *Bar) notifierExited(ctx context.Context, feature *Feature, err error) {
	switch {
	case err == nil, ctx.Err() != nil:
		b.logger.Debug("Notifier stopped", "feature", feature.Name())
	case errors.Is(err, ErrNotifierSetup):
		b.logger.Error("Notifier failed to start", "feature", feature.Name(), "error", err)

		// The consumer may already be gone, in which case there is no one left
		// to terminate.
		_ = b.queue.Send(TerminateWithError(fmt.Errorf("feature %s: %w", feature.Name(), err)))
	default:
		b.logger.Error("Notifier stopped", "feature", feature.Name(), "error", err)
	}
}
