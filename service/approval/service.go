package approval

// Service is the approval engine: a registry of live polls keyed by display
// surface id. All methods are synchronous and safe for concurrent use.
type Service interface {
	// Create registers a poll, silently superseding any live poll with the
	// same id. onTimeout runs after the poll is removed by its deadline;
	// onRefresh runs periodically when the poll outlives a display surface.
	Create(spec *Spec, onTimeout, onRefresh Continuation) *Poll

	// Migrate moves a live poll to a new id. It reports false when oldID has no live poll.
	Migrate(oldID, newID string) bool

	// CastVote records a vote and returns the recomputed status. ok is false
	// when no live poll exists under id: nothing happened.
	CastVote(id, voterID string, direction Direction, force bool) (status Status, ok bool)

	// Update applies a pure vote-list edit under the engine lock and
	// re-derives the status.
	Update(id string, edit func(p *Poll)) (status Status, ok bool)

	// Status evaluates p against the engine clock and defaults.
	Status(p *Poll) Status

	// Get returns a snapshot of the pending poll under id or nil. With
	// autoRemove, a poll found resolved is removed without continuations.
	Get(id string, autoRemove bool) *Poll

	// Remove stops the poll's timers, deletes it and returns its final
	// snapshot. Only the call that actually removed the poll gets non-nil,
	// which makes it the one allowed to run a continuation.
	Remove(id string) *Poll

	// Polls returns snapshots of every live poll.
	Polls() []*Poll
}
