package token

import (
	"errors"
	"path/filepath"
	"time"
)

// Type is fixed at token creation and constrains which operations may target it.
type Type string

const (
	FileToken      Type = "FileToken"
	EditToken      Type = "EditToken"
	EditForceToken Type = "EditForceToken"
	EditDiffToken  Type = "EditDiffToken"
	ViewToken      Type = "ViewToken"
)

// EditTypes lists the token types UseEditToken accepts.
var EditTypes = []Type{EditToken, EditForceToken, EditDiffToken}

// Kind selects the token type minted by CreateEditToken.
type Kind string

const (
	KindEdit      Kind = "edit"
	KindForceEdit Kind = "forceEdit"
	KindDiff      Kind = "diff"
	KindView      Kind = "view"
)

// Type maps a request kind onto its token type.
func (k Kind) Type() (Type, bool) {
	switch k {
	case KindEdit:
		return EditToken, true
	case KindForceEdit:
		return EditForceToken, true
	case KindDiff:
		return EditDiffToken, true
	case KindView:
		return ViewToken, true
	}
	return "", false
}

// EditFile identifies the resource an edit or view token targets.
type EditFile struct {
	Filename             string `json:"filename"`
	ContainingFolderPath string `json:"containingFolderPath"`
	SessionID            string `json:"sessionId,omitempty"`
}

// Path returns the joined location of the file.
func (f *EditFile) Path() string {
	return filepath.Join(f.ContainingFolderPath, f.Filename)
}

// EditRequest describes an edit token to mint.
type EditRequest struct {
	File EditFile
	Kind Kind
	// SessionID links a diff-review token to the edit that spawned it; a new one is generated when empty.
	SessionID            string
	BypassFileExistCheck bool
}

// EditGrant is the result of a successful CreateEditToken.
type EditGrant struct {
	TokenID   string `json:"tokenId"`
	SessionID string `json:"sessionId"`
}

// Diff is a staged, unapproved edit body keyed by session.
type Diff struct {
	SessionID string `json:"sessionId"`
	Content   string `json:"content"`
	Token     string `json:"token"`
}

// File is the payload delivered through a file token (an upload).
type File struct {
	Name        string `json:"name"`
	URL         string `json:"url,omitempty"`
	Size        int64  `json:"size,omitempty"`
	ContentType string `json:"contentType,omitempty"`
}

// OutcomeStatus tells how an await ended.
type OutcomeStatus string

const (
	OutcomeUsed      OutcomeStatus = "used"
	OutcomeCancelled OutcomeStatus = "cancelled"
	OutcomeTimedOut  OutcomeStatus = "timedOut"
)

// Outcome is the result of awaiting a token: used with its payload,
// cancelled by deactivation or disposal, or timed out.
type Outcome struct {
	Status OutcomeStatus
	Type   Type
	File   *File     // set when a FileToken was used
	Edit   *EditFile // set when an edit-family token was used
	Err    error     // context error when the wait was aborted by ctx
}

// Notice is the payload of token bus events.
type Notice struct {
	TokenID string
	Type    Type
	File    *File
	Edit    *EditFile
}

// Token bus topics.
const (
	TopicUsed    = "used"
	TopicDeleted = "deleted"
)

// Config holds token manager defaults.
type Config struct {
	// FileTTL is how long a used file or edit token keeps its payload.
	FileTTL time.Duration `json:"fileTTL" yaml:"fileTTL"`
	// AwaitTimeout is used when an await is called with a non-positive timeout.
	AwaitTimeout time.Duration `json:"awaitTimeout" yaml:"awaitTimeout"`
}

// DefaultConfig returns the token defaults.
func DefaultConfig() Config {
	return Config{FileTTL: time.Hour, AwaitTimeout: 10 * time.Minute}
}

var (
	// ErrAwaitTimeout is returned when nothing happened to an awaited token in time.
	ErrAwaitTimeout = errors.New("token: await timed out")
	// ErrTokenCancelled is returned by AwaitFileToken when the token was disposed or deactivated.
	ErrTokenCancelled = errors.New("token: cancelled")
	// ErrDiffExists is returned by NewDiff when the session already has a staged diff.
	ErrDiffExists = errors.New("token: diff already exists for session")
	// ErrTokenCollision is returned when a freshly generated token id is already in use.
	ErrTokenCollision = errors.New("token: id collision")
)
