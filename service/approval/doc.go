// Package approval defines the approval poll model: a voting round that
// accumulates approve/disapprove votes from distinct voters until a quorum is
// reached, a privileged voter forces the outcome, or a deadline passes.
//
// The package is payload-agnostic. Continuations stored in Options are
// invoked by the orchestrating layer, never by the engine itself, and the
// engine neither logs nor notifies users.
package approval
