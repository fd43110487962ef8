package quorum

import (
	"context"

	"github.com/viant/quorum/service/approval"
)

// Ledger charges and refunds credits. Amounts are always positive.
type Ledger interface {
	Debit(ctx context.Context, accountID string, amount int64) error
	Refund(ctx context.Context, accountID string, amount int64) error
}

// Surface presents polls to users, e.g. a chat message with vote buttons.
type Surface interface {
	// Render shows the poll in its current status.
	Render(ctx context.Context, poll *approval.Poll, status approval.Status) error
	// Cancel marks the poll as canceled and removes its controls.
	Cancel(ctx context.Context, poll *approval.Poll) error
	// Replace publishes a fresh surface for a poll whose surface is about to expire and returns its id.
	Replace(ctx context.Context, poll *approval.Poll) (string, error)
}

type nopLedger struct{}

func (nopLedger) Debit(context.Context, string, int64) error  { return nil }
func (nopLedger) Refund(context.Context, string, int64) error { return nil }

type nopSurface struct{}

func (nopSurface) Render(context.Context, *approval.Poll, approval.Status) error { return nil }
func (nopSurface) Cancel(context.Context, *approval.Poll) error                  { return nil }
func (nopSurface) Replace(_ context.Context, poll *approval.Poll) (string, error) {
	return poll.ID, nil
}
