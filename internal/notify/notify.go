// Package notify delivers formatted messages to the user's channel.
//
// Delivery is fire-and-forget: Notify hands the message to a background
// worker and returns. Failures are logged, never retried, and never
// propagate back into the caller's work.
package notify

import (
	"context"
	"errors"
)

var (
	ErrQueueFull = errors.New("notify: queue full")
	ErrStopped   = errors.New("notify: stopped")
)

// Notifier accepts a message for asynchronous delivery.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// Nop returns a Notifier that silently discards every message. Used when
// no delivery channel is configured.
func Nop() Notifier { return nopNotifier{} }

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, string) error { return nil }
