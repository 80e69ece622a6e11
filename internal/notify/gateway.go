package notify

import "context"

// Action is an optional deep-link or callback attached to a message.
type Action struct {
	Label  string
	Target string // URL or opaque callback token
}

// ChatGateway is the outbound delivery abstraction (§6 external
// interfaces): send(user_channel_id, message, optional_actions). Real
// chat-platform adapters live outside this repo; LoggingGateway is the
// only implementation provided here.
type ChatGateway interface {
	Send(ctx context.Context, channelID, message string, actions []Action) error
}

// PermanentDeliveryError wraps a ChatGateway.Send error that should mark
// the channel unreachable rather than be retried.
type PermanentDeliveryError struct{ Err error }

func (e *PermanentDeliveryError) Error() string { return e.Err.Error() }
func (e *PermanentDeliveryError) Unwrap() error { return e.Err }
