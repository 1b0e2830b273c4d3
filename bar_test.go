package statusbar

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingUpdater struct {
	text  string
	calls int
}

func (u *countingUpdater) Update() string {
	u.calls++
	return u.text
}

// scriptedUpdater returns texts in order, repeating the last one.
type scriptedUpdater struct {
	texts []string
	calls int
}

func (u *scriptedUpdater) Update() string {
	text := u.texts[min(u.calls, len(u.texts)-1)]
	u.calls++

	return text
}

type blockingNotifier struct {
	running *atomic.Int32
}

func (n blockingNotifier) Run(ctx context.Context) error {
	n.running.Add(1)
	<-ctx.Done()
	return ctx.Err()
}

type funcNotifier func(ctx context.Context) error

func (f funcNotifier) Run(ctx context.Context) error {
	return f(ctx)
}

type recordingRenderer struct {
	mu    sync.Mutex
	lines []string
	err   error
}

func (r *recordingRenderer) Render(text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.lines = append(r.lines, text)
	return r.err
}

func (r *recordingRenderer) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]string(nil), r.lines...)
}

// testFactory creates features with blocking notifiers and counting updaters
// whose text is the upper-cased feature name.
type testFactory struct {
	calls    int
	running  atomic.Int32
	updaters map[string]*countingUpdater
}

func newTestFactory() *testFactory {
	return &testFactory{updaters: make(map[string]*countingUpdater)}
}

func (f *testFactory) create(index int, name string, _ Sender) (*Feature, error) {
	f.calls++

	updater := &countingUpdater{text: "<" + name + ">"}
	f.updaters[name] = updater

	return NewFeature(index, name, blockingNotifier{running: &f.running}, updater), nil
}

func TestValidateOrder(t *testing.T) {
	assert.NoError(t, ValidateOrder([]string{"battery"}))
	assert.NoError(t, ValidateOrder([]string{"battery", "time", "audio"}))
	assert.ErrorIs(t, ValidateOrder(nil), ErrNoFeatures)
	assert.ErrorIs(t, ValidateOrder([]string{}), ErrNoFeatures)
	assert.ErrorIs(t, ValidateOrder([]string{"time", "audio", "time"}), ErrDuplicateFeature)
}

func TestNew_StartsOneNotifierPerFeature(t *testing.T) {
	orders := [][]string{
		{"time"},
		{"battery", "time"},
		{"battery", "time", "audio"},
		{"audio", "backlight", "battery", "network", "time"},
	}

	for _, order := range orders {
		factory := newTestFactory()

		bar, err := New(order, factory.create, &recordingRenderer{}, Options{})
		require.NoError(t, err)
		assert.Equal(t, len(order), factory.calls)

		ctx, cancel := context.WithCancel(context.Background())
		require.NoError(t, bar.Start(ctx))

		require.Eventually(t, func() bool {
			return factory.running.Load() == int32(len(order))
		}, time.Second, 5*time.Millisecond)

		// Give any extra goroutine a chance to show up.
		time.Sleep(10 * time.Millisecond)
		assert.Equal(t, int32(len(order)), factory.running.Load())

		features := bar.Features()
		require.Len(t, features, len(order))
		for idx, feature := range features {
			assert.Equal(t, idx, feature.Index())
			assert.Equal(t, order[idx], feature.Name())
		}

		cancel()
	}
}

func TestNew_DuplicateOrderHasNoSideEffects(t *testing.T) {
	factory := newTestFactory()

	bar, err := New([]string{"battery", "time", "battery"}, factory.create, &recordingRenderer{}, Options{})
	assert.Nil(t, bar)
	assert.ErrorIs(t, err, ErrDuplicateFeature)
	assert.Zero(t, factory.calls)
	assert.Zero(t, factory.running.Load())
}

func TestNew_FactoryError(t *testing.T) {
	factory := func(int, string, Sender) (*Feature, error) {
		return nil, ErrUnknownFeature
	}

	_, err := New([]string{"weather"}, factory, &recordingRenderer{}, Options{})
	assert.ErrorIs(t, err, ErrUnknownFeature)
	assert.ErrorContains(t, err, "weather")
}

func TestBar_StartTwice(t *testing.T) {
	factory := newTestFactory()
	bar, err := New([]string{"time"}, factory.create, &recordingRenderer{}, Options{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, bar.Start(ctx))
	assert.Error(t, bar.Start(ctx))
}

func TestBar_UpdateAllRendersEveryFeatureInOrder(t *testing.T) {
	factory := newTestFactory()
	renderer := &recordingRenderer{}

	bar, err := New([]string{"battery", "time", "audio"}, factory.create, renderer, Options{})
	require.NoError(t, err)

	sender := bar.Sender()
	require.NoError(t, sender.Send(UpdateAll))
	require.NoError(t, sender.Send(Terminate))

	require.NoError(t, bar.Run(context.Background()))

	for _, name := range []string{"battery", "time", "audio"} {
		assert.Equal(t, 1, factory.updaters[name].calls, name)
	}

	assert.Equal(t, []string{"<battery> | <time> | <audio>"}, renderer.Lines())
}

func TestBar_SingleUpdateKeepsOtherTexts(t *testing.T) {
	battery := &countingUpdater{text: "<battery>"}
	clock := &scriptedUpdater{texts: []string{"<time>", "12:00"}}

	factory := func(index int, name string, _ Sender) (*Feature, error) {
		if name == "battery" {
			return NewFeature(index, name, funcNotifier(nil), battery), nil
		}

		return NewFeature(index, name, funcNotifier(nil), clock), nil
	}

	renderer := &recordingRenderer{}

	bar, err := New([]string{"battery", "time"}, factory, renderer, Options{Separator: " "})
	require.NoError(t, err)

	sender := bar.Sender()
	require.NoError(t, sender.Send(UpdateAll))
	require.NoError(t, sender.Send(UpdateMessage(1)))
	require.NoError(t, sender.Send(Terminate))

	require.NoError(t, bar.Run(context.Background()))

	assert.Equal(t, 1, battery.calls)
	assert.Equal(t, 2, clock.calls)
	assert.Equal(t, []string{"<battery> <time>", "<battery> 12:00"}, renderer.Lines())
}

func TestBar_TerminateStopsAfterQueuedMessages(t *testing.T) {
	factory := newTestFactory()
	renderer := &recordingRenderer{}

	bar, err := New([]string{"battery", "time", "audio"}, factory.create, renderer, Options{})
	require.NoError(t, err)

	sender := bar.Sender()
	require.NoError(t, sender.Send(UpdateMessage(0)))
	require.NoError(t, sender.Send(UpdateMessage(1)))
	require.NoError(t, sender.Send(Terminate))
	require.NoError(t, sender.Send(UpdateMessage(2)))
	require.NoError(t, sender.Send(UpdateAll))

	require.NoError(t, bar.Run(context.Background()))

	assert.Equal(t, 1, factory.updaters["battery"].calls)
	assert.Equal(t, 1, factory.updaters["time"].calls)
	assert.Equal(t, 0, factory.updaters["audio"].calls)
	assert.Len(t, renderer.Lines(), 2)
}

func TestBar_SkipsEmptyTextsAndUnknownIndexes(t *testing.T) {
	factory := newTestFactory()
	renderer := &recordingRenderer{}

	bar, err := New([]string{"battery", "time"}, factory.create, renderer, Options{})
	require.NoError(t, err)

	factory.updaters["battery"].text = ""

	sender := bar.Sender()
	require.NoError(t, sender.Send(UpdateMessage(5)))
	require.NoError(t, sender.Send(UpdateMessage(-1)))
	require.NoError(t, sender.Send(UpdateAll))
	require.NoError(t, sender.Send(Terminate))

	require.NoError(t, bar.Run(context.Background()))

	assert.Equal(t, []string{"<time>"}, renderer.Lines())
	assert.Equal(t, "<time>", bar.Line())
}

func TestBar_RenderErrorDoesNotStopLoop(t *testing.T) {
	factory := newTestFactory()
	renderer := &recordingRenderer{err: errors.New("cannot open display")}

	bar, err := New([]string{"time"}, factory.create, renderer, Options{})
	require.NoError(t, err)

	sender := bar.Sender()
	require.NoError(t, sender.Send(UpdateAll))
	require.NoError(t, sender.Send(UpdateMessage(0)))
	require.NoError(t, sender.Send(Terminate))

	require.NoError(t, bar.Run(context.Background()))
	assert.Len(t, renderer.Lines(), 2)
}

func TestBar_NotifierSetupFailureTerminates(t *testing.T) {
	setupErr := errors.New("enumerate devices: timeout")

	factory := func(index int, name string, _ Sender) (*Feature, error) {
		notifier := funcNotifier(func(context.Context) error {
			return errors.Join(ErrNotifierSetup, setupErr)
		})

		return NewFeature(index, name, notifier, &countingUpdater{text: name}), nil
	}

	bar, err := New([]string{"battery"}, factory, &recordingRenderer{}, Options{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, bar.Start(ctx))

	err = bar.Run(ctx)
	assert.ErrorIs(t, err, ErrNotifierSetup)
	assert.ErrorIs(t, err, setupErr)
	assert.ErrorContains(t, err, "feature battery")
}

func TestBar_NotifierRuntimeFailureKeepsRunning(t *testing.T) {
	exited := make(chan struct{})

	factory := func(index int, name string, sender Sender) (*Feature, error) {
		notifier := funcNotifier(func(context.Context) error {
			defer close(exited)

			if err := sender.Send(UpdateMessage(index)); err != nil {
				return err
			}

			return errors.New("ip monitor exited")
		})

		return NewFeature(index, name, notifier, &countingUpdater{text: name}), nil
	}

	renderer := &recordingRenderer{}
	bar, err := New([]string{"network"}, factory, renderer, Options{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, bar.Start(ctx))
	<-exited

	require.NoError(t, bar.Sender().Send(Terminate))
	require.NoError(t, bar.Run(ctx))

	// UpdateAll from Start, the notifier update, nothing else.
	assert.Len(t, renderer.Lines(), 2)
	assert.Equal(t, "network", bar.Line())
}

func TestBar_RunHonoursContext(t *testing.T) {
	factory := newTestFactory()
	bar, err := New([]string{"time"}, factory.create, &recordingRenderer{}, Options{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	assert.ErrorIs(t, bar.Run(ctx), context.DeadlineExceeded)
}

func TestBar_SendFailsAfterRunReturns(t *testing.T) {
	terminated := make(chan struct{})
	sent := make(chan error, 1)

	factory := func(index int, name string, sender Sender) (*Feature, error) {
		notifier := funcNotifier(func(context.Context) error {
			<-terminated

			err := sender.Send(UpdateMessage(index))
			sent <- err

			return err
		})

		return NewFeature(index, name, notifier, &countingUpdater{text: name}), nil
	}

	bar, err := New([]string{"network"}, factory, &recordingRenderer{}, Options{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, bar.Start(ctx))
	require.NoError(t, bar.Sender().Send(Terminate))
	require.NoError(t, bar.Run(ctx))

	close(terminated)

	select {
	case err := <-sent:
		assert.ErrorIs(t, err, ErrQueueClosed)
	case <-ctx.Done():
		t.Fatal("notifier did not send")
	}

	assert.ErrorIs(t, bar.Sender().Send(UpdateAll), ErrQueueClosed)
}
