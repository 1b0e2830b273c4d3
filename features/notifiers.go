package features

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/shelepuginivan/statusbar"
	"github.com/shelepuginivan/statusbar/internal/wait"
)

var (
	// ErrCommandExited is returned by [CommandNotifier.Run] when the watched
	// command exits on its own.
	ErrCommandExited = errors.New("command exited")

	// ErrWatchClosed is returned by [FileNotifier.Run] when the file watcher
	// stops delivering events.
	ErrWatchClosed = errors.New("file watch closed")
)

// TimerNotifier posts an update of its feature every interval.
type TimerNotifier struct {
	index    int
	sender   statusbar.Sender
	interval time.Duration
}

func NewTimerNotifier(index int, sender statusbar.Sender, interval time.Duration) *TimerNotifier {
	return &TimerNotifier{
		index:    index,
		sender:   sender,
		interval: interval,
	}
}

func (n *TimerNotifier) Run(ctx context.Context) error {
	for {
		if err := wait.Sleep(ctx, n.interval); err != nil {
			return err
		}

		if err := n.sender.Send(statusbar.UpdateMessage(n.index)); err != nil {
			return err
		}
	}
}

// CommandNotifier runs a long-lived command and posts updates of its feature
// for every line the command prints. Content of lines is ignored.
//
// After each line the notifier waits settle, posts an update, and repeats that
// the given number of times, so that files changed after the event are picked
// up as well.
type CommandNotifier struct {
	index   int
	sender  statusbar.Sender
	command []string
	settle  time.Duration
	repeat  int
}

// NewCommandNotifier returns a new [CommandNotifier]. Parameter command holds
// the executable followed by its arguments.
func NewCommandNotifier(index int, sender statusbar.Sender, command []string, settle time.Duration, repeat int) *CommandNotifier {
	if repeat < 1 {
		repeat = 1
	}

	return &CommandNotifier{
		index:   index,
		sender:  sender,
		command: command,
		settle:  settle,
		repeat:  repeat,
	}
}

// Run starts the command and handles its output until it exits.
//
// Failure to start the command wraps [statusbar.ErrNotifierSetup].
func (n *CommandNotifier) Run(ctx context.Context) error {
	if len(n.command) == 0 {
		return fmt.Errorf("%w: empty command", statusbar.ErrNotifierSetup)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	cmd := exec.CommandContext(runCtx, n.command[0], n.command[1:]...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("%w: %s: %w", statusbar.ErrNotifierSetup, n.command[0], err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: failed to start %s: %w", statusbar.ErrNotifierSetup, n.command[0], err)
	}

	err = n.listen(runCtx, stdout)

	// Stop the command if listening stopped first, then reap it.
	cancel()
	waitErr := cmd.Wait()

	switch {
	case ctx.Err() != nil:
		return ctx.Err()
	case err != nil:
		return err
	case waitErr != nil:
		return fmt.Errorf("%s: %w: %w", n.command[0], ErrCommandExited, waitErr)
	default:
		return fmt.Errorf("%s: %w", n.command[0], ErrCommandExited)
	}
}

func (n *CommandNotifier) listen(ctx context.Context, stdout io.Reader) error {
	scanner := bufio.NewScanner(stdout)

	for scanner.Scan() {
		for range n.repeat {
			if err := wait.Sleep(ctx, n.settle); err != nil {
				return err
			}

			if err := n.sender.Send(statusbar.UpdateMessage(n.index)); err != nil {
				return err
			}
		}
	}

	return scanner.Err()
}

// FileNotifier posts updates of its feature whenever content of a file
// changes. Changes are detected with inotify and, since some pseudo-files never
// emit inotify events, by polling every interval.
type FileNotifier struct {
	index    int
	sender   statusbar.Sender
	path     string
	interval time.Duration
	logger   *slog.Logger
}

// NewFileNotifier returns a new [FileNotifier]. Polling is disabled if
// interval is not positive.
func NewFileNotifier(index int, sender statusbar.Sender, path string, interval time.Duration, logger *slog.Logger) *FileNotifier {
	return &FileNotifier{
		index:    index,
		sender:   sender,
		path:     path,
		interval: interval,
		logger:   logger,
	}
}

// Run watches the file until ctx is done or an error occurs.
//
// Failure to set up the watch wraps [statusbar.ErrNotifierSetup].
func (n *FileNotifier) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("%w: %w", statusbar.ErrNotifierSetup, err)
	}
	defer watcher.Close()

	if err := watcher.Add(n.path); err != nil {
		return fmt.Errorf("%w: failed to watch %s: %w", statusbar.ErrNotifierSetup, n.path, err)
	}

	last, _ := os.ReadFile(n.path)

	var poll <-chan time.Time
	if n.interval > 0 {
		ticker := time.NewTicker(n.interval)
		defer ticker.Stop()
		poll = ticker.C
	}

	changed := func() bool {
		data, err := os.ReadFile(n.path)
		if err != nil {
			n.logger.Debug("Failed to read watched file", "path", n.path, "error", err)
			return false
		}

		// An empty read happens between truncation and write.
		if len(data) == 0 || bytes.Equal(data, last) {
			return false
		}

		last = data
		return true
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("%s: %w", n.path, ErrWatchClosed)
			}

			if !event.Has(fsnotify.Write) || !changed() {
				continue
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("%s: %w", n.path, ErrWatchClosed)
			}

			return fmt.Errorf("watch %s: %w", n.path, err)
		case <-poll:
			if !changed() {
				continue
			}
		}

		if err := n.sender.Send(statusbar.UpdateMessage(n.index)); err != nil {
			return err
		}
	}
}
