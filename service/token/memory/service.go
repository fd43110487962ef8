package memory

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/viant/afs"
	"github.com/viant/quorum/internal/clock"
	"github.com/viant/quorum/internal/idgen"
	"github.com/viant/quorum/service/dao/store"
	"github.com/viant/quorum/service/event"
	"github.com/viant/quorum/service/token"
)

type record struct {
	id        string
	kind      token.Type
	createdAt time.Time
}

type editRecord struct {
	TokenID string
	File    token.EditFile
}

// usedEditRecord remembers a consumed edit-family token so a late await
// still observes the use.
type usedEditRecord struct {
	TokenID string
	Type    token.Type
	File    *token.EditFile
	expiry  clock.Timer
}

type fileRecord struct {
	TokenID string
	File    *token.File
	expiry  clock.Timer
}

type service struct {
	mu         sync.Mutex
	config     token.Config
	fs         afs.Service
	bus        *event.Bus[token.Notice]
	active     map[string]*record
	edits      *store.MemoryStore[string, editRecord]
	usedEdits  *store.MemoryStore[string, usedEditRecord]
	files      *store.MemoryStore[string, fileRecord]
	diffs      *store.MemoryStore[string, token.Diff]
	diffTokens map[string]string // diff token id -> session id
}

// New creates an in-memory token manager.
func New(options ...Option) token.Service {
	ret := &service{
		config:     token.DefaultConfig(),
		active:     make(map[string]*record),
		edits:      store.NewMemoryStore[string, editRecord](func(r *editRecord) string { return r.TokenID }),
		usedEdits:  store.NewMemoryStore[string, usedEditRecord](func(r *usedEditRecord) string { return r.TokenID }),
		files:      store.NewMemoryStore[string, fileRecord](func(r *fileRecord) string { return r.TokenID }),
		diffs:      store.NewMemoryStore[string, token.Diff](func(d *token.Diff) string { return d.SessionID }),
		diffTokens: make(map[string]string),
	}
	for _, option := range options {
		option(ret)
	}
	if ret.fs == nil {
		ret.fs = afs.New()
	}
	if ret.bus == nil {
		ret.bus = event.NewBus[token.Notice]()
	}
	return ret
}

func (s *service) CreateFileToken() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mint(token.FileToken)
}

// mint registers a new active token. Caller holds s.mu.
func (s *service) mint(kind token.Type) (string, error) {
	id, err := idgen.Token()
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	if s.known(id) {
		return "", token.ErrTokenCollision
	}
	s.active[id] = &record{id: id, kind: kind, createdAt: clock.Now()}
	return id, nil
}

func (s *service) known(id string) bool {
	if _, ok := s.active[id]; ok {
		return true
	}
	if _, ok := s.diffTokens[id]; ok {
		return true
	}
	return s.edits.Has(id) || s.files.Has(id) || s.usedEdits.Has(id)
}

func (s *service) CreateEditToken(ctx context.Context, request *token.EditRequest) (*token.EditGrant, error) {
	kind, ok := request.Kind.Type()
	if !ok {
		return nil, fmt.Errorf("unsupported edit token kind: %q", request.Kind)
	}
	location, ok := resolve(request.File.ContainingFolderPath, request.File.Filename)
	if !ok {
		return nil, nil
	}
	if !request.BypassFileExistCheck {
		exists, err := s.fs.Exists(ctx, location)
		if err != nil {
			return nil, fmt.Errorf("failed to check %v: %w", location, err)
		}
		if !exists {
			return nil, nil
		}
	}
	sessionID := request.SessionID
	if sessionID == "" {
		sessionID = idgen.New()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	id, err := s.mint(kind)
	if err != nil {
		return nil, err
	}
	file := request.File
	file.SessionID = sessionID
	_ = s.edits.Save(ctx, &editRecord{TokenID: id, File: file})
	return &token.EditGrant{TokenID: id, SessionID: sessionID}, nil
}

// resolve joins folder and name, rejecting anything that does not land
// strictly inside folder.
func resolve(folder, name string) (string, bool) {
	if folder == "" || name == "" {
		return "", false
	}
	base := filepath.Clean(folder)
	location := filepath.Join(base, name)
	rel, err := filepath.Rel(base, location)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return location, true
}

func (s *service) HasActiveToken(id string, types ...token.Type) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.active[id]
	if !ok {
		return false
	}
	return len(types) == 0 || slices.Contains(types, r.kind)
}

func (s *service) TokenType(id string) (token.Type, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.active[id]; ok {
		return r.kind, true
	}
	return "", false
}

func (s *service) UseFileToken(id string, file *token.File, validTime time.Duration) bool {
	if validTime <= 0 {
		validTime = s.config.FileTTL
	}
	s.mu.Lock()
	r, ok := s.active[id]
	if !ok || r.kind != token.FileToken {
		s.mu.Unlock()
		return false
	}
	delete(s.active, id)
	rec := &fileRecord{TokenID: id, File: file}
	rec.expiry = clock.AfterFunc(validTime, func() { s.evict(rec) })
	_ = s.files.Save(context.Background(), rec)
	s.mu.Unlock()

	s.bus.Publish(event.NewEvent(token.TopicUsed, id, token.Notice{TokenID: id, Type: token.FileToken, File: file}))
	return true
}

func (s *service) evict(rec *fileRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if current, _ := s.files.Load(context.Background(), rec.TokenID); current == rec {
		_ = s.files.Delete(context.Background(), rec.TokenID)
	}
}

func (s *service) UseEditToken(id string) (*token.EditFile, bool) {
	s.mu.Lock()
	r, ok := s.active[id]
	if !ok || !slices.Contains(token.EditTypes, r.kind) {
		s.mu.Unlock()
		return nil, false
	}
	delete(s.active, id)
	var file *token.EditFile
	if rec := s.edits.Take(context.Background(), id); rec != nil {
		file = &rec.File
	} else if sessionID, ok := s.diffTokens[id]; ok {
		file = &token.EditFile{SessionID: sessionID}
	}
	used := &usedEditRecord{TokenID: id, Type: r.kind, File: file}
	used.expiry = clock.AfterFunc(s.config.FileTTL, func() { s.forget(used) })
	_ = s.usedEdits.Save(context.Background(), used)
	s.mu.Unlock()

	s.bus.Publish(event.NewEvent(token.TopicUsed, id, token.Notice{TokenID: id, Type: r.kind, Edit: file}))
	return file, true
}

func (s *service) forget(rec *usedEditRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if current, _ := s.usedEdits.Load(context.Background(), rec.TokenID); current == rec {
		_ = s.usedEdits.Delete(context.Background(), rec.TokenID)
	}
}

func (s *service) File(id string) (*token.File, bool) {
	rec, _ := s.files.Load(context.Background(), id)
	if rec == nil {
		return nil, false
	}
	return rec.File, true
}

func (s *service) EditFile(id string) (*token.EditFile, bool) {
	rec, _ := s.edits.Load(context.Background(), id)
	if rec == nil {
		return nil, false
	}
	file := rec.File
	return &file, true
}

func (s *service) Await(ctx context.Context, id string, timeout time.Duration) *token.Outcome {
	if timeout <= 0 {
		timeout = s.config.AwaitTimeout
	}
	done := make(chan *token.Outcome, 1)

	s.mu.Lock()
	r, ok := s.active[id]
	if !ok {
		s.mu.Unlock()
		if file, used := s.File(id); used {
			return &token.Outcome{Status: token.OutcomeUsed, Type: token.FileToken, File: file}
		}
		if rec, _ := s.usedEdits.Load(context.Background(), id); rec != nil {
			return &token.Outcome{Status: token.OutcomeUsed, Type: rec.Type, Edit: rec.File}
		}
		return &token.Outcome{Status: token.OutcomeCancelled}
	}
	kind := r.kind
	unsubscribe := s.bus.Once(id, func(e *event.Event[token.Notice]) {
		outcome := &token.Outcome{Status: token.OutcomeCancelled, Type: kind}
		if e.Topic == token.TopicUsed {
			outcome.Status = token.OutcomeUsed
			outcome.File = e.Data.File
			outcome.Edit = e.Data.Edit
		}
		select {
		case done <- outcome:
		default:
		}
	})
	s.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case outcome := <-done:
		return outcome
	case <-timer.C:
		unsubscribe()
		return &token.Outcome{Status: token.OutcomeTimedOut, Type: kind}
	case <-ctx.Done():
		unsubscribe()
		return &token.Outcome{Status: token.OutcomeTimedOut, Type: kind, Err: ctx.Err()}
	}
}

func (s *service) AwaitFileToken(ctx context.Context, id string, timeout time.Duration) (*token.File, error) {
	outcome := s.Await(ctx, id, timeout)
	switch outcome.Status {
	case token.OutcomeUsed:
		return outcome.File, nil
	case token.OutcomeCancelled:
		return nil, token.ErrTokenCancelled
	}
	if outcome.Err != nil {
		return nil, outcome.Err
	}
	return nil, token.ErrAwaitTimeout
}

func (s *service) AwaitEditToken(ctx context.Context, id string, timeout time.Duration) (*token.EditFile, error) {
	outcome := s.Await(ctx, id, timeout)
	switch outcome.Status {
	case token.OutcomeUsed:
		return outcome.Edit, nil
	case token.OutcomeCancelled:
		return nil, nil
	}
	if outcome.Err != nil {
		return nil, outcome.Err
	}
	return nil, token.ErrAwaitTimeout
}

func (s *service) DeactivateToken(id string) bool {
	s.mu.Lock()
	r, ok := s.active[id]
	if !ok {
		s.mu.Unlock()
		return false
	}
	delete(s.active, id)
	s.mu.Unlock()

	s.bus.Publish(event.NewEvent(token.TopicDeleted, id, token.Notice{TokenID: id, Type: r.kind}))
	return true
}

func (s *service) DisposeToken(id string) {
	ctx := context.Background()
	s.mu.Lock()
	var kind token.Type
	if r, ok := s.active[id]; ok {
		kind = r.kind
		delete(s.active, id)
	}
	if rec := s.files.Take(ctx, id); rec != nil {
		clock.Stop(rec.expiry)
	}
	sessionID := ""
	if rec := s.edits.Take(ctx, id); rec != nil {
		sessionID = rec.File.SessionID
	}
	if rec := s.usedEdits.Take(ctx, id); rec != nil {
		clock.Stop(rec.expiry)
		if rec.File != nil && rec.Type != token.EditDiffToken {
			sessionID = rec.File.SessionID
		}
	}
	var cascaded []string
	if sessionID != "" {
		if diff := s.diffs.Take(ctx, sessionID); diff != nil {
			delete(s.diffTokens, diff.Token)
			if _, ok := s.active[diff.Token]; ok {
				delete(s.active, diff.Token)
				cascaded = append(cascaded, diff.Token)
			}
		}
	}
	if sessionID, ok := s.diffTokens[id]; ok {
		delete(s.diffTokens, id)
		if diff, _ := s.diffs.Load(ctx, sessionID); diff != nil && diff.Token == id {
			_ = s.diffs.Delete(ctx, sessionID)
		}
	}
	s.mu.Unlock()

	s.bus.Publish(event.NewEvent(token.TopicDeleted, id, token.Notice{TokenID: id, Type: kind}))
	for _, diffToken := range cascaded {
		s.bus.Publish(event.NewEvent(token.TopicDeleted, diffToken, token.Notice{TokenID: diffToken, Type: token.EditDiffToken}))
	}
}

func (s *service) NewDiff(sessionID, content string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.diffs.Has(sessionID) {
		return "", fmt.Errorf("%w: %v", token.ErrDiffExists, sessionID)
	}
	id, err := s.mint(token.EditDiffToken)
	if err != nil {
		return "", err
	}
	_ = s.diffs.Insert(context.Background(), &token.Diff{SessionID: sessionID, Content: content, Token: id})
	s.diffTokens[id] = sessionID
	return id, nil
}

func (s *service) GetDiff(sessionID string) *token.Diff {
	diff, _ := s.diffs.Load(context.Background(), sessionID)
	if diff == nil {
		return nil
	}
	ret := *diff
	return &ret
}

func (s *service) DeleteDiff(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if diff := s.diffs.Take(context.Background(), sessionID); diff != nil {
		delete(s.diffTokens, diff.Token)
	}
}

func (s *service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	files, _ := s.files.List(context.Background())
	for _, rec := range files {
		clock.Stop(rec.expiry)
	}
	usedEdits, _ := s.usedEdits.List(context.Background())
	for _, rec := range usedEdits {
		clock.Stop(rec.expiry)
	}
}

var _ token.Service = (*service)(nil)
