// Package memory implements token.Service in process memory. Token ids are
// 16 random bytes; waiters are notified through a keyed event bus and are
// always detached once notified or timed out.
package memory
