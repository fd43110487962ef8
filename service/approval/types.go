package approval

import (
	"slices"
	"time"
)

// Direction is the side a vote is cast for.
type Direction string

const (
	DirectionApprove    Direction = "approve"
	DirectionDisapprove Direction = "disapprove"
)

// Opposite returns the other direction.
func (d Direction) Opposite() Direction {
	if d == DirectionApprove {
		return DirectionDisapprove
	}
	return DirectionApprove
}

// Resolution maps a direction onto the status it forces.
func (d Direction) Resolution() Status {
	if d == DirectionApprove {
		return StatusApproved
	}
	return StatusDisapproved
}

// Status is the evaluated state of a poll.
type Status string

const (
	StatusPending     Status = "pending"
	StatusApproved    Status = "approved"
	StatusDisapproved Status = "disapproved"
	StatusTimedOut    Status = "timedOut"
)

// Resolved reports whether the status is terminal.
func (s Status) Resolved() bool {
	return s == StatusApproved || s == StatusDisapproved || s == StatusTimedOut
}

// Continuation is invoked with the final poll snapshot once a poll resolves.
type Continuation func(p *Poll)

// Options carries the per-poll settings and continuations.
type Options struct {
	Description      string `json:"description,omitempty" yaml:"description,omitempty"`
	ApprovalCount    int    `json:"approvalCount,omitempty" yaml:"approvalCount,omitempty"`       // 0 => engine default
	DisapprovalCount int    `json:"disapprovalCount,omitempty" yaml:"disapprovalCount,omitempty"` // 0 => engine default
	ApprovalCredit   int64  `json:"approvalCredit,omitempty" yaml:"approvalCredit,omitempty"`     // charged per vote
	StartCost        int64  `json:"startCost,omitempty" yaml:"startCost,omitempty"`               // refunded on cancel/timeout
	InitiatorID      string `json:"initiatorId,omitempty" yaml:"initiatorId,omitempty"`

	OnSuccess Continuation `json:"-" yaml:"-"`
	OnFailure Continuation `json:"-" yaml:"-"`
	OnTimeout Continuation `json:"-" yaml:"-"`
	// OnCancel runs when the poll is cancelled or swept on shutdown.
	OnCancel Continuation `json:"-" yaml:"-"`
}

// Poll is a single approval round. ID is the identifier of the display
// surface currently presenting the poll and may change via Migrate.
type Poll struct {
	ID             string    `json:"id"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"createdAt"`
	ValidUntil     time.Time `json:"validUntil"`
	ApproverIDs    []string  `json:"approverIds"`
	DisapproverIDs []string  `json:"disapproverIds"`
	// SuperStatus is set only by a force override; empty means unset.
	SuperStatus Status  `json:"superStatus,omitempty"`
	Options     Options `json:"options"`
}

// Duration returns the configured lifetime of the poll.
func (p *Poll) Duration() time.Duration {
	return p.ValidUntil.Sub(p.CreatedAt)
}

// Votes returns the vote list for direction.
func (p *Poll) Votes(d Direction) []string {
	if d == DirectionApprove {
		return p.ApproverIDs
	}
	return p.DisapproverIDs
}

// Clone returns a copy that shares nothing mutable with p.
func (p *Poll) Clone() *Poll {
	if p == nil {
		return nil
	}
	ret := *p
	ret.ApproverIDs = slices.Clone(p.ApproverIDs)
	ret.DisapproverIDs = slices.Clone(p.DisapproverIDs)
	return &ret
}

// Spec describes a poll to create.
type Spec struct {
	ID       string
	Content  string
	Duration time.Duration // 0 => engine default
	Options  Options
}

// Defaults holds the process-wide quorum fallbacks.
type Defaults struct {
	ApprovalCount    int
	DisapprovalCount int
}

// ComputeStatus evaluates p at now. Deadline wins over everything, then a
// force override, then the approve quorum, then the disapprove quorum.
func ComputeStatus(p *Poll, now time.Time, defaults Defaults) Status {
	if !now.Before(p.ValidUntil) {
		return StatusTimedOut
	}
	if p.SuperStatus != "" {
		return p.SuperStatus
	}
	approvalCount, disapprovalCount := Quorum(p, defaults)
	if len(p.ApproverIDs) >= approvalCount {
		return StatusApproved
	}
	if len(p.DisapproverIDs) >= disapprovalCount {
		return StatusDisapproved
	}
	return StatusPending
}

// Quorum returns the effective approval and disapproval thresholds of p.
func Quorum(p *Poll, defaults Defaults) (approvalCount, disapprovalCount int) {
	approvalCount = p.Options.ApprovalCount
	if approvalCount <= 0 {
		approvalCount = defaults.ApprovalCount
	}
	disapprovalCount = p.Options.DisapprovalCount
	if disapprovalCount <= 0 {
		disapprovalCount = defaults.DisapprovalCount
	}
	return approvalCount, disapprovalCount
}

// Event is published on the optional engine event queue.
type Event struct {
	Topic      string    `json:"topic"`
	PollID     string    `json:"pollId"`
	PreviousID string    `json:"previousId,omitempty"` // set for TopicPollMigrated
	VoterID    string    `json:"voterId,omitempty"`
	Direction  Direction `json:"direction,omitempty"`
	Status     Status    `json:"status,omitempty"`
	Poll       *Poll     `json:"poll,omitempty"`
}

// Engine event topics.
const (
	TopicPollCreated  = "poll.created"
	TopicPollVoted    = "poll.voted"
	TopicPollMigrated = "poll.migrated"
	TopicPollRemoved  = "poll.removed"
	TopicPollExpired  = "poll.expired"
)
