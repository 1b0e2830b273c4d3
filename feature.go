package statusbar

import "context"

// Notifier watches one external event source and posts messages whenever the
// feature it belongs to may have changed.
//
// Run blocks for the lifetime of the notifier. It returns when its event source
// fails, when posting a message fails, or when ctx is done. Notifiers never
// read or compute render state themselves.
type Notifier interface {
	Run(ctx context.Context) error
}

// Updater recomputes the text of a single feature.
//
// Update is only ever called from the goroutine running [Bar.Run], never
// concurrently with itself. Failures to read the underlying data must be
// rendered as degraded text rather than propagated.
type Updater interface {
	Update() string
}

// Feature pairs a [Notifier] and an [Updater] under a stable index and name.
type Feature struct {
	index    int
	name     string
	notifier Notifier
	updater  Updater
}

// NewFeature returns a new [Feature].
//
// Parameter index is the position of the feature in the configured order.
func NewFeature(index int, name string, notifier Notifier, updater Updater) *Feature {
	return &Feature{
		index:    index,
		name:     name,
		notifier: notifier,
		updater:  updater,
	}
}

// Index returns position of the feature in the configured order.
func (f *Feature) Index() int {
	return f.index
}

// Name returns name of the feature.
func (f *Feature) Name() string {
	return f.name
}

// Notifier returns the notifier of the feature.
func (f *Feature) Notifier() Notifier {
	return f.notifier
}

// Start runs the notifier of the feature on its own goroutine. Callback onExit
// is called with the result of [Notifier.Run] once it returns.
func (f *Feature) Start(ctx context.Context, onExit func(err error)) {
	go func() {
		onExit(f.notifier.Run(ctx))
	}()
}

// Update asks the updater of the feature to recompute its text.
func (f *Feature) Update() string {
	return f.updater.Update()
}
