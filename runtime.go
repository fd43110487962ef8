package quorum

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/viant/afs"
	"github.com/viant/quorum/policy"
	"github.com/viant/quorum/service/approval"
	"github.com/viant/quorum/service/token"
	"github.com/viant/quorum/tracing"
	"go.uber.org/zap"
)

// PollRequest describes a poll to start.
type PollRequest struct {
	// SurfaceID identifies the display surface presenting the poll.
	SurfaceID string
	Content   string
	// Duration of zero uses the configured default.
	Duration time.Duration
	Options  approval.Options
}

// Runtime coordinates the approval engine and token manager with the
// ledger and surface collaborators.
type Runtime struct {
	config    *Config
	approvals approval.Service
	tokens    token.Service
	ledger    Ledger
	surface   Surface
	policy    *policy.Policy
	logger    *zap.Logger
	fs        afs.Service
}

// Approvals returns the approval engine.
func (r *Runtime) Approvals() approval.Service { return r.approvals }

// Tokens returns the token manager.
func (r *Runtime) Tokens() token.Service { return r.tokens }

// StartPoll charges the initiator, registers the poll and renders it.
func (r *Runtime) StartPoll(ctx context.Context, request *PollRequest) (poll *approval.Poll, err error) {
	ctx, span := tracing.StartSpan(ctx, "quorum.startPoll")
	defer func() { tracing.EndSpan(span, err) }()
	if request == nil || request.SurfaceID == "" {
		return nil, fmt.Errorf("%w: surface id was empty", ErrInvalidRequest)
	}
	span.WithAttributes(map[string]string{"poll.id": request.SurfaceID, "poll.initiator": request.Options.InitiatorID})

	if cost := request.Options.StartCost; cost > 0 {
		if err = r.ledger.Debit(ctx, request.Options.InitiatorID, cost); err != nil {
			return nil, fmt.Errorf("failed to charge start cost for poll %v: %w", request.SurfaceID, err)
		}
	}
	poll = r.approvals.Create(&approval.Spec{
		ID:       request.SurfaceID,
		Content:  request.Content,
		Duration: request.Duration,
		Options:  request.Options,
	}, r.onTimeout, r.onRefresh)
	r.render(ctx, poll, approval.StatusPending)
	return poll, nil
}

// Poll returns a snapshot of a pending poll. A poll found past its
// deadline is timed out on the spot.
func (r *Runtime) Poll(id string) *approval.Poll {
	poll, _ := r.lookup(context.Background(), id)
	return poll
}

// Vote casts an ordinary vote. A repeated vote in the same direction is
// rejected; a vote in the opposite direction replaces the earlier one.
func (r *Runtime) Vote(ctx context.Context, id, voterID string, direction approval.Direction) (status approval.Status, err error) {
	ctx, span := tracing.StartSpan(ctx, "quorum.vote")
	defer func() { tracing.EndSpan(span, err) }()
	span.WithAttributes(map[string]string{"poll.id": id, "vote.voter": voterID, "vote.direction": string(direction)})

	poll, err := r.lookup(ctx, id)
	if err != nil {
		return "", err
	}
	prior, voted := approval.HasVoted(poll, voterID)
	if voted && prior == direction {
		return "", ErrAlreadyVoted
	}
	return r.cast(ctx, poll, voterID, direction, false, voted)
}

// Retract withdraws every vote voterID cast on the poll and refunds the credit.
func (r *Runtime) Retract(ctx context.Context, id, voterID string) (err error) {
	ctx, span := tracing.StartSpan(ctx, "quorum.retract")
	defer func() { tracing.EndSpan(span, err) }()

	poll, err := r.lookup(ctx, id)
	if err != nil {
		return err
	}
	if _, ok := approval.HasVoted(poll, voterID); !ok {
		return ErrNotVoted
	}
	if err = r.withdraw(ctx, poll, voterID); err != nil {
		return err
	}
	if current := r.approvals.Get(id, false); current != nil {
		r.render(ctx, current, approval.StatusPending)
	}
	return nil
}

// Force resolves the poll in direction regardless of counts. The policy
// attached to ctx wins over the configured one.
func (r *Runtime) Force(ctx context.Context, id, voterID string, direction approval.Direction) (status approval.Status, err error) {
	ctx, span := tracing.StartSpan(ctx, "quorum.force")
	defer func() { tracing.EndSpan(span, err) }()
	span.WithAttributes(map[string]string{"poll.id": id, "vote.voter": voterID, "vote.direction": string(direction)})

	p := policy.FromContext(ctx)
	if p == nil {
		p = r.policy
	}
	if !p.CanForce(voterID) {
		return "", fmt.Errorf("%w: %v", ErrForbidden, voterID)
	}
	poll, err := r.lookup(ctx, id)
	if err != nil {
		return "", err
	}
	_, voted := approval.HasVoted(poll, voterID)
	return r.cast(ctx, poll, voterID, direction, true, voted)
}

// Cancel removes a pending poll, clears its surface and refunds the start
// cost and every vote credit. Only Options.OnCancel runs.
func (r *Runtime) Cancel(ctx context.Context, id string) (err error) {
	ctx, span := tracing.StartSpan(ctx, "quorum.cancel")
	defer func() { tracing.EndSpan(span, err) }()

	poll := r.approvals.Remove(id)
	if poll == nil {
		return ErrPollNotFound
	}
	return r.release(ctx, poll)
}

// Shutdown cancels every live poll and stops the token manager timers.
func (r *Runtime) Shutdown(ctx context.Context) (err error) {
	ctx, span := tracing.StartSpan(ctx, "quorum.shutdown")
	defer func() { tracing.EndSpan(span, err) }()

	var errs []error
	for _, poll := range r.approvals.Polls() {
		removed := r.approvals.Remove(poll.ID)
		if removed == nil {
			continue
		}
		errs = append(errs, r.release(ctx, removed))
	}
	r.tokens.Close()
	return errors.Join(errs...)
}

// lookup returns the pending poll under id. The deadline timer of a poll
// past ValidUntil may not have fired yet, so such a poll is timed out here.
func (r *Runtime) lookup(ctx context.Context, id string) (*approval.Poll, error) {
	if poll := r.approvals.Get(id, false); poll != nil {
		return poll, nil
	}
	for _, poll := range r.approvals.Polls() {
		if poll.ID == id && r.approvals.Status(poll) == approval.StatusTimedOut {
			r.settle(ctx, id, approval.StatusTimedOut)
			break
		}
	}
	return nil, ErrPollNotFound
}

// cast charges the vote credit, replaces voterID's earlier votes when
// switching and records the vote. The charge comes first so a failed debit
// leaves the poll untouched.
func (r *Runtime) cast(ctx context.Context, poll *approval.Poll, voterID string, direction approval.Direction, force, switching bool) (approval.Status, error) {
	credit := poll.Options.ApprovalCredit
	if credit > 0 {
		if err := r.ledger.Debit(ctx, voterID, credit); err != nil {
			return "", fmt.Errorf("failed to charge vote credit on poll %v: %w", poll.ID, err)
		}
	}
	if switching {
		if err := r.withdraw(ctx, poll, voterID); err != nil {
			r.refund(ctx, poll.ID, voterID, credit)
			return "", err
		}
	}
	status, ok := r.approvals.CastVote(poll.ID, voterID, direction, force)
	if !ok {
		r.refund(ctx, poll.ID, voterID, credit)
		return "", ErrPollNotFound
	}
	if !status.Resolved() {
		if current := r.approvals.Get(poll.ID, false); current != nil {
			r.render(ctx, current, status)
		}
		return status, nil
	}
	r.settle(ctx, poll.ID, status)
	return status, nil
}

// withdraw removes voterID's votes from the live poll and refunds them.
func (r *Runtime) withdraw(ctx context.Context, poll *approval.Poll, voterID string) error {
	removed := 0
	if _, ok := r.approvals.Update(poll.ID, func(p *approval.Poll) {
		removed = approval.RemoveVoter(p, voterID)
	}); !ok {
		return ErrPollNotFound
	}
	r.refund(ctx, poll.ID, voterID, poll.Options.ApprovalCredit*int64(removed))
	return nil
}

// settle runs the completion path for a resolved poll. Only the caller that
// removes the poll proceeds, so continuations run exactly once.
func (r *Runtime) settle(ctx context.Context, id string, status approval.Status) {
	poll := r.approvals.Remove(id)
	if poll == nil {
		return
	}
	r.logger.Info("poll resolved", zap.String("poll", poll.ID), zap.String("status", string(status)))
	switch status {
	case approval.StatusApproved:
		r.render(ctx, poll, status)
		if poll.Options.OnSuccess != nil {
			poll.Options.OnSuccess(poll)
		}
	case approval.StatusDisapproved:
		r.render(ctx, poll, status)
		if poll.Options.OnFailure != nil {
			poll.Options.OnFailure(poll)
		}
	case approval.StatusTimedOut:
		r.timeout(ctx, poll)
	}
}

func (r *Runtime) onTimeout(poll *approval.Poll) {
	r.timeout(context.Background(), poll)
}

func (r *Runtime) timeout(ctx context.Context, poll *approval.Poll) {
	r.logger.Info("poll timed out", zap.String("poll", poll.ID))
	r.refund(ctx, poll.ID, poll.Options.InitiatorID, poll.Options.StartCost)
	r.render(ctx, poll, approval.StatusTimedOut)
	if poll.Options.OnTimeout != nil {
		poll.Options.OnTimeout(poll)
	}
}

func (r *Runtime) onRefresh(poll *approval.Poll) {
	ctx := context.Background()
	newID, err := r.surface.Replace(ctx, poll)
	if err != nil {
		r.logger.Warn("failed to replace poll surface", zap.String("poll", poll.ID), zap.Error(err))
		return
	}
	if newID == "" || newID == poll.ID {
		return
	}
	if !r.approvals.Migrate(poll.ID, newID) {
		r.logger.Debug("poll gone before migration", zap.String("poll", poll.ID), zap.String("surface", newID))
	}
}

// release clears the surface of a removed poll and refunds every charge.
func (r *Runtime) release(ctx context.Context, poll *approval.Poll) error {
	var errs []error
	if err := r.surface.Cancel(ctx, poll); err != nil {
		r.logger.Warn("failed to cancel poll surface", zap.String("poll", poll.ID), zap.Error(err))
		errs = append(errs, err)
	}
	errs = append(errs, r.refund(ctx, poll.ID, poll.Options.InitiatorID, poll.Options.StartCost))
	for _, voterID := range append(append([]string{}, poll.ApproverIDs...), poll.DisapproverIDs...) {
		errs = append(errs, r.refund(ctx, poll.ID, voterID, poll.Options.ApprovalCredit))
	}
	if poll.Options.OnCancel != nil {
		poll.Options.OnCancel(poll)
	}
	return errors.Join(errs...)
}

func (r *Runtime) refund(ctx context.Context, pollID, accountID string, amount int64) error {
	if amount <= 0 {
		return nil
	}
	err := r.ledger.Refund(ctx, accountID, amount)
	if err != nil {
		r.logger.Warn("refund failed",
			zap.String("poll", pollID),
			zap.String("account", accountID),
			zap.Int64("amount", amount),
			zap.Error(err))
	}
	return err
}

func (r *Runtime) render(ctx context.Context, poll *approval.Poll, status approval.Status) {
	if err := r.surface.Render(ctx, poll, status); err != nil {
		r.logger.Warn("failed to render poll", zap.String("poll", poll.ID), zap.String("status", string(status)), zap.Error(err))
	}
}

// Tally renders the vote progress of a pending poll, e.g. "1/2 approve, 0/1 disapprove".
func (r *Runtime) Tally(id string) (string, error) {
	poll := r.approvals.Get(id, false)
	if poll == nil {
		return "", ErrPollNotFound
	}
	return approval.Tally(poll, r.config.Approval.Defaults()), nil
}
