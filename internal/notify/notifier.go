// Package notify delivers auction alerts to operator channels. Notifications
// are dispatched to all registered senders (Telegram, Discord) and can be
// filtered by event type so operators receive only the alerts they care
// about.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"github.com/openmint/auctionhouse/internal/domain"
)

// Sender is the interface that each notification channel must implement.
type Sender interface {
	// Send delivers a notification with the given title and message body.
	Send(ctx context.Context, title, message string) error
	// Name returns a human-readable identifier for the sender.
	Name() string
}

// Notifier dispatches notifications to one or more Senders. It maintains a
// set of allowed event types; NotifyEvent only forwards events whose type is
// in the allowed set, while NotifyAll bypasses the filter.
type Notifier struct {
	senders []Sender
	events  map[string]bool // allowed event types
	logger  *slog.Logger
}

// NewNotifier creates a Notifier that will deliver to the given senders.
// Only events whose type appears in the events slice will be forwarded by
// NotifyEvent. If events is empty, all event types are allowed.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		allowed[strings.TrimSpace(e)] = true
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// NotifyEvent formats and sends a domain event to all senders, subject to
// the event-type filter.
func (n *Notifier) NotifyEvent(ctx context.Context, e domain.Event) error {
	if len(n.events) > 0 && !n.events[string(e.Type)] {
		n.logger.DebugContext(ctx, "event filtered out",
			slog.String("event", string(e.Type)),
		)
		return nil
	}
	title, message := EventText(e)
	return n.dispatch(ctx, title, message)
}

// NotifyAll sends a notification to all senders regardless of event type.
func (n *Notifier) NotifyAll(ctx context.Context, title, message string) error {
	return n.dispatch(ctx, title, message)
}

// dispatch iterates over all senders and sends the notification. Errors from
// individual senders are collected and returned as a combined error; a
// single sender failure does not prevent delivery to the remaining senders.
func (n *Notifier) dispatch(ctx context.Context, title, message string) error {
	if len(n.senders) == 0 {
		return nil
	}

	var errs []string
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
		} else {
			n.logger.DebugContext(ctx, "notification sent",
				slog.String("sender", s.Name()),
				slog.String("title", title),
			)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}

// EventText renders a domain event as a notification title and body.
func EventText(e domain.Event) (title, message string) {
	var parts []string
	if e.TokenID != nil {
		parts = append(parts, fmt.Sprintf("token %d", *e.TokenID))
	}
	if e.Account != nil {
		parts = append(parts, e.Account.Hex())
	}
	if e.Amount != nil {
		parts = append(parts, formatEther(e.Amount)+" ETH")
	}
	if e.Remaining != nil {
		parts = append(parts, fmt.Sprintf("%s remaining", e.Remaining))
	}

	switch e.Type {
	case domain.EventMinted:
		title = "Auction opened"
	case domain.EventBidPlaced:
		title = "New highest bid"
	case domain.EventPendingCredited:
		title = "Bidder outbid"
	case domain.EventTimeUpdated:
		title = "Deadline extended"
	case domain.EventBidAccepted:
		title = "Auction settled"
	case domain.EventWithdrawal:
		title = "Pending funds withdrawn"
	case domain.EventWithdrawCompleted:
		title = "Settlement paid out"
	case domain.EventTransferred:
		title = "Token transferred"
	default:
		title = string(e.Type)
	}
	return title, strings.Join(parts, " | ")
}

// formatEther renders a wei amount as a decimal ether string with trailing
// zeros trimmed.
func formatEther(wei *big.Int) string {
	r := new(big.Rat).SetFrac(wei, big.NewInt(1_000_000_000_000_000_000))
	s := r.FloatString(18)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
