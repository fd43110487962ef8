package token

import (
	"context"
	"time"
)

// Service issues, tracks and retires tokens. Use/dispose operations are
// idempotent: a token in the wrong state yields false, never an error.
type Service interface {
	CreateFileToken() (string, error)

	// CreateEditToken returns nil when the target path escapes its folder
	// or, unless bypassed, does not exist.
	CreateEditToken(ctx context.Context, request *EditRequest) (*EditGrant, error)

	// HasActiveToken reports whether id is active and, when types are
	// given, of one of them.
	HasActiveToken(id string, types ...Type) bool

	// TokenType returns the type of an active token.
	TokenType(id string) (Type, bool)

	// UseFileToken consumes a FileToken, storing file for validTime (default when <= 0).
	UseFileToken(id string, file *File, validTime time.Duration) bool

	// UseEditToken consumes an edit-family token and returns its target.
	UseEditToken(id string) (*EditFile, bool)

	// File returns the payload of a used file token until it expires.
	File(id string) (*File, bool)

	// EditFile returns the target of an active edit or view token.
	EditFile(id string) (*EditFile, bool)

	// Await waits until id is used, cancelled or timeout passes.
	Await(ctx context.Context, id string, timeout time.Duration) *Outcome

	// AwaitFileToken returns the uploaded file, ErrTokenCancelled or ErrAwaitTimeout.
	AwaitFileToken(ctx context.Context, id string, timeout time.Duration) (*File, error)

	// AwaitEditToken returns the edit target, nil on cancellation, or ErrAwaitTimeout.
	AwaitEditToken(ctx context.Context, id string, timeout time.Duration) (*EditFile, error)

	// DeactivateToken stops further consumption but keeps payloads and diffs.
	DeactivateToken(id string) bool

	// DisposeToken removes every trace of id, including its session diff.
	DisposeToken(id string)

	NewDiff(sessionID, content string) (string, error)
	GetDiff(sessionID string) *Diff
	DeleteDiff(sessionID string)

	// Close stops all expiry timers.
	Close()
}
