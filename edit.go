package quorum

import (
	"context"
	"fmt"
	"strings"
	"time"

	afsfile "github.com/viant/afs/file"
	"github.com/viant/quorum/service/approval"
	"github.com/viant/quorum/service/token"
	"github.com/viant/quorum/tracing"
	"go.uber.org/zap"
)

// EditSubmission reports what happened to submitted edit content.
type EditSubmission struct {
	SessionID string
	// Committed is true when the content was written without review.
	Committed bool
	// DiffToken, Patch, Stats and Poll are set when the edit awaits review.
	DiffToken string
	Patch     string
	Stats     token.DiffStats
	Poll      *approval.Poll
}

// BeginEdit mints an edit token of kind for file.
func (r *Runtime) BeginEdit(ctx context.Context, file token.EditFile, kind token.Kind) (*token.EditGrant, error) {
	grant, err := r.tokens.CreateEditToken(ctx, &token.EditRequest{File: file, Kind: kind})
	if err != nil {
		return nil, err
	}
	if grant == nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTarget, file.Path())
	}
	return grant, nil
}

// AwaitEdit blocks until the edit token is used. A cancelled token yields nil, nil.
func (r *Runtime) AwaitEdit(ctx context.Context, tokenID string, timeout time.Duration) (*token.EditFile, error) {
	return r.tokens.AwaitEditToken(ctx, tokenID, timeout)
}

// BeginView mints a view token for file.
func (r *Runtime) BeginView(ctx context.Context, file token.EditFile) (*token.EditGrant, error) {
	return r.BeginEdit(ctx, file, token.KindView)
}

// ViewFile reads the target of a view token and retires the token.
func (r *Runtime) ViewFile(ctx context.Context, tokenID string) ([]byte, error) {
	if !r.tokens.HasActiveToken(tokenID, token.ViewToken) {
		return nil, ErrTokenNotActive
	}
	file, ok := r.tokens.EditFile(tokenID)
	if !ok {
		return nil, ErrTokenNotActive
	}
	data, err := r.fs.DownloadWithURL(ctx, file.Path())
	if err != nil {
		return nil, fmt.Errorf("failed to read %v: %w", file.Path(), err)
	}
	r.tokens.DisposeToken(tokenID)
	return data, nil
}

// SubmitEdit fulfils an edit token with content. Force tokens and requests
// without review commit straight away; otherwise the content is staged as a
// diff and put to an approval poll that commits it on success.
func (r *Runtime) SubmitEdit(ctx context.Context, tokenID, content string, review *PollRequest) (submission *EditSubmission, err error) {
	ctx, span := tracing.StartSpan(ctx, "quorum.submitEdit")
	defer func() { tracing.EndSpan(span, err) }()

	kind, ok := r.tokens.TokenType(tokenID)
	if !ok || (kind != token.EditToken && kind != token.EditForceToken) {
		return nil, ErrTokenNotActive
	}
	file, ok := r.tokens.UseEditToken(tokenID)
	if !ok || file == nil {
		return nil, ErrTokenNotActive
	}
	span.WithAttributes(map[string]string{"edit.session": file.SessionID, "edit.path": file.Path()})
	submission = &EditSubmission{SessionID: file.SessionID}

	if kind == token.EditForceToken || review == nil {
		if err = r.commit(ctx, file, content); err != nil {
			return nil, err
		}
		submission.Committed = true
		return submission, nil
	}

	original, err := r.load(ctx, file)
	if err != nil {
		return nil, err
	}
	diffToken, err := r.tokens.NewDiff(file.SessionID, content)
	if err != nil {
		return nil, err
	}
	submission.DiffToken = diffToken
	if submission.Patch, err = token.Unified(original, r.tokens.GetDiff(file.SessionID), file.Filename, 0); err != nil {
		r.tokens.DisposeToken(diffToken)
		return nil, err
	}
	if submission.Stats, err = token.Stats(submission.Patch); err != nil {
		r.tokens.DisposeToken(diffToken)
		return nil, err
	}

	request := *review
	if request.Content == "" {
		request.Content = submission.Patch
	}
	request.Options.OnSuccess = r.applyDiff(file, diffToken, review.Options.OnSuccess)
	request.Options.OnFailure = r.dropDiff(diffToken, review.Options.OnFailure)
	request.Options.OnTimeout = r.dropDiff(diffToken, review.Options.OnTimeout)
	request.Options.OnCancel = r.dropDiff(diffToken, review.Options.OnCancel)
	if submission.Poll, err = r.StartPoll(ctx, &request); err != nil {
		r.tokens.DisposeToken(diffToken)
		return nil, err
	}
	return submission, nil
}

func (r *Runtime) applyDiff(file *token.EditFile, diffToken string, next approval.Continuation) approval.Continuation {
	return func(poll *approval.Poll) {
		if diff := r.tokens.GetDiff(file.SessionID); diff != nil && diff.Token == diffToken {
			if err := r.commit(context.Background(), file, diff.Content); err != nil {
				r.logger.Error("failed to commit approved edit",
					zap.String("poll", poll.ID),
					zap.String("session", file.SessionID),
					zap.Error(err))
			}
		}
		r.tokens.DisposeToken(diffToken)
		if next != nil {
			next(poll)
		}
	}
}

func (r *Runtime) dropDiff(diffToken string, next approval.Continuation) approval.Continuation {
	return func(poll *approval.Poll) {
		r.tokens.DisposeToken(diffToken)
		if next != nil {
			next(poll)
		}
	}
}

func (r *Runtime) load(ctx context.Context, file *token.EditFile) ([]byte, error) {
	exists, err := r.fs.Exists(ctx, file.Path())
	if err != nil {
		return nil, fmt.Errorf("failed to check %v: %w", file.Path(), err)
	}
	if !exists {
		return nil, nil
	}
	data, err := r.fs.DownloadWithURL(ctx, file.Path())
	if err != nil {
		return nil, fmt.Errorf("failed to read %v: %w", file.Path(), err)
	}
	return data, nil
}

func (r *Runtime) commit(ctx context.Context, file *token.EditFile, content string) error {
	if err := r.fs.Upload(ctx, file.Path(), afsfile.DefaultFileOsMode, strings.NewReader(content)); err != nil {
		return fmt.Errorf("failed to write %v: %w", file.Path(), err)
	}
	return nil
}

// BeginUpload mints a file token for an upload.
func (r *Runtime) BeginUpload() (string, error) {
	return r.tokens.CreateFileToken()
}

// CompleteUpload delivers the uploaded file through its token.
func (r *Runtime) CompleteUpload(tokenID string, file *token.File) error {
	if file == nil {
		return fmt.Errorf("%w: file was nil", ErrInvalidRequest)
	}
	if !r.tokens.UseFileToken(tokenID, file, r.config.Token.FileTTL) {
		return ErrTokenNotActive
	}
	return nil
}

// AwaitUpload blocks until the file token is used, cancelled or the wait times out.
func (r *Runtime) AwaitUpload(ctx context.Context, tokenID string, timeout time.Duration) (*token.File, error) {
	return r.tokens.AwaitFileToken(ctx, tokenID, timeout)
}
