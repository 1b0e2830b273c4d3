package statusbar

import "fmt"

type MessageKind uint8

// Message kinds.
const (
	// Recompute a single feature identified by [Message.Index].
	MessageUpdate MessageKind = iota

	// Recompute every feature.
	MessageUpdateAll

	// Stop the consumer loop. Nothing queued after it is processed.
	MessageTerminate
)

func (k MessageKind) String() string {
	switch k {
	case MessageUpdate:
		return "update"
	case MessageUpdateAll:
		return "update-all"
	case MessageTerminate:
		return "terminate"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// Message is a change notification posted by a [Notifier] or by the process
// itself. Messages are plain values and are safe to copy between goroutines.
type Message struct {
	Kind MessageKind

	// Index of the feature in the configured order. Only meaningful for
	// [MessageUpdate].
	Index int

	// Cause of termination. Only meaningful for [MessageTerminate]; nil means
	// a clean shutdown.
	Err error
}

var (
	// UpdateAll asks the consumer to recompute every feature.
	UpdateAll = Message{Kind: MessageUpdateAll}

	// Terminate asks the consumer to stop.
	Terminate = Message{Kind: MessageTerminate}
)

// UpdateMessage returns a message asking the consumer to recompute the feature
// with the given index.
func UpdateMessage(index int) Message {
	return Message{Kind: MessageUpdate, Index: index}
}

// TerminateWithError returns a [MessageTerminate] message that makes
// [Bar.Run] return err.
func TerminateWithError(err error) Message {
	return Message{Kind: MessageTerminate, Err: err}
}

func (m Message) String() string {
	if m.Kind == MessageUpdate {
		return fmt.Sprintf("update(%d)", m.Index)
	}

	return m.Kind.String()
}
