// Package event provides typed events and a keyed, synchronous bus used to
// notify waiters about entity state changes (for example a token being used
// or deleted).
package event
