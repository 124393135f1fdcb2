package notification

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

const (
	// KindTransferConfirmed is emitted when a ledger transfer commits.
	KindTransferConfirmed = "transfer_confirmed"
	// KindTransferRejected is emitted when a transfer fails validation.
	KindTransferRejected = "transfer_rejected"
	// KindStatusChanged tracks account activity status transitions.
	KindStatusChanged = "status_changed"
	// KindNFTMinted records the synthetic creation event of a mint intent.
	KindNFTMinted = "nft_minted"
	// KindBatchCompleted is emitted once an executor batch has run every step.
	KindBatchCompleted = "batch_completed"
)

// Message describes a notification payload.
type Message struct {
	Kind        string            `json:"kind"`
	Destination string            `json:"destination"`
	Body        string            `json:"body"`
	Attributes  map[string]string `json:"attributes,omitempty"`
	At          time.Time         `json:"at"`
}

// Notifier delivers notifications to downstream systems.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier writes notifications to the structured logger.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Debug("notification",
		slog.String("kind", message.Kind),
		slog.String("destination", message.Destination),
		slog.String("body", message.Body),
	)
	return nil
}

// Fanout delivers each message to every configured notifier.
type Fanout []Notifier

// Send forwards the message to all notifiers and joins their errors.
func (f Fanout) Send(ctx context.Context, message Message) error {
	var errs []error
	for _, n := range f {
		if n == nil {
			continue
		}
		if err := n.Send(ctx, message); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop discards notifications.
type Nop struct{}

// Send implements Notifier.
func (Nop) Send(context.Context, Message) error { return nil }
