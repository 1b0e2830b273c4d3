// Package statusbar aggregates independent status features (audio volume,
// battery, backlight, network link, clock) into a single status line.
//
// # Usage
//
// A status line consists of a [Bar] and multiple [Feature] instances:
//   - [Feature] pairs a [Notifier], which watches one external event source on
//     its own goroutine, with an [Updater], which recomputes the feature text.
//   - [Bar] starts every Notifier, reads their messages from a single [Queue],
//     and redraws the composed line through a [Renderer] after every message.
//
// Notifiers never compute render state. They only post a [Message] saying that
// something may have changed. The Bar is the only reader and writer of render
// state, so features do not need any locking of their own.
//
// Shutdown is cooperative: posting [Terminate] makes [Bar.Run] return once
// every message queued before it has been processed. Notifier goroutines are
// not joined.
package statusbar
