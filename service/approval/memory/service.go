package memory

import (
	"context"
	"sync"

	"github.com/viant/quorum/internal/clock"
	approval "github.com/viant/quorum/service/approval"
	"github.com/viant/quorum/service/dao/store"
	"github.com/viant/quorum/service/messaging"
)

// entry is a live poll together with the timers guarding it. Timer
// callbacks compare entry pointers so a stale timer never acts on a poll
// that reused the same id.
type entry struct {
	poll      *approval.Poll
	deadline  clock.Timer
	refresh   clock.Timer
	onTimeout approval.Continuation
	onRefresh approval.Continuation
}

func (e *entry) stop() {
	clock.Stop(e.deadline)
	clock.Stop(e.refresh)
	e.deadline, e.refresh = nil, nil
}

type service struct {
	mu     sync.Mutex
	polls  *store.MemoryStore[string, entry]
	config approval.Config
	events messaging.Queue[approval.Event]
}

func entryKey(e *entry) string { return e.poll.ID }

// New creates an in-memory approval engine.
func New(options ...Option) approval.Service {
	ret := &service{
		polls:  store.NewMemoryStore[string, entry](entryKey),
		config: approval.DefaultConfig(),
	}
	for _, option := range options {
		option(ret)
	}
	return ret
}

func (s *service) Create(spec *approval.Spec, onTimeout, onRefresh approval.Continuation) *approval.Poll {
	duration := spec.Duration
	if duration <= 0 {
		duration = s.config.Duration
	}
	now := clock.Now()
	poll := &approval.Poll{
		ID:             spec.ID,
		Content:        spec.Content,
		CreatedAt:      now,
		ValidUntil:     now.Add(duration),
		ApproverIDs:    []string{},
		DisapproverIDs: []string{},
		Options:        spec.Options,
	}
	e := &entry{poll: poll, onTimeout: onTimeout, onRefresh: onRefresh}

	s.mu.Lock()
	s.supersede(poll.ID)
	_ = s.polls.Save(context.Background(), e)
	e.deadline = clock.AfterFunc(duration, func() { s.expire(e) })
	if duration > s.config.SurfaceValidity {
		e.refresh = clock.AfterFunc(s.config.SurfaceValidity, func() { s.refresh(e) })
	}
	snapshot := poll.Clone()
	s.mu.Unlock()

	s.publish(&approval.Event{Topic: approval.TopicPollCreated, PollID: poll.ID, Status: approval.StatusPending, Poll: snapshot})
	return snapshot
}

// supersede drops a live poll without running any continuation. Caller holds s.mu.
func (s *service) supersede(id string) {
	if old := s.polls.Take(context.Background(), id); old != nil {
		old.stop()
	}
}

func (s *service) Migrate(oldID, newID string) bool {
	s.mu.Lock()
	e := s.polls.Take(context.Background(), oldID)
	if e == nil {
		s.mu.Unlock()
		return false
	}
	if oldID != newID {
		s.supersede(newID)
	}
	e.poll.ID = newID
	_ = s.polls.Save(context.Background(), e)
	snapshot := e.poll.Clone()
	s.mu.Unlock()

	s.publish(&approval.Event{Topic: approval.TopicPollMigrated, PollID: newID, PreviousID: oldID, Poll: snapshot})
	return true
}

func (s *service) CastVote(id, voterID string, direction approval.Direction, force bool) (approval.Status, bool) {
	s.mu.Lock()
	e, _ := s.polls.Load(context.Background(), id)
	if e == nil {
		s.mu.Unlock()
		return "", false
	}
	switch direction {
	case approval.DirectionApprove:
		e.poll.ApproverIDs = append(e.poll.ApproverIDs, voterID)
	case approval.DirectionDisapprove:
		e.poll.DisapproverIDs = append(e.poll.DisapproverIDs, voterID)
	default:
		s.mu.Unlock()
		return "", false
	}
	if force {
		e.poll.SuperStatus = direction.Resolution()
	}
	status := s.Status(e.poll)
	snapshot := e.poll.Clone()
	s.mu.Unlock()

	s.publish(&approval.Event{Topic: approval.TopicPollVoted, PollID: id, VoterID: voterID, Direction: direction, Status: status, Poll: snapshot})
	return status, true
}

func (s *service) Update(id string, edit func(p *approval.Poll)) (approval.Status, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, _ := s.polls.Load(context.Background(), id)
	if e == nil {
		return "", false
	}
	edit(e.poll)
	e.poll.ID = id
	return s.Status(e.poll), true
}

func (s *service) Status(p *approval.Poll) approval.Status {
	return approval.ComputeStatus(p, clock.Now(), s.config.Defaults())
}

func (s *service) Get(id string, autoRemove bool) *approval.Poll {
	s.mu.Lock()
	e, _ := s.polls.Load(context.Background(), id)
	if e == nil {
		s.mu.Unlock()
		return nil
	}
	if status := s.Status(e.poll); status != approval.StatusPending {
		var snapshot *approval.Poll
		if autoRemove {
			s.drop(e)
			snapshot = e.poll.Clone()
		}
		s.mu.Unlock()
		if snapshot != nil {
			s.publish(&approval.Event{Topic: approval.TopicPollRemoved, PollID: id, Status: status, Poll: snapshot})
		}
		return nil
	}
	snapshot := e.poll.Clone()
	s.mu.Unlock()
	return snapshot
}

func (s *service) Remove(id string) *approval.Poll {
	s.mu.Lock()
	e, _ := s.polls.Load(context.Background(), id)
	if e == nil {
		s.mu.Unlock()
		return nil
	}
	s.drop(e)
	snapshot := e.poll.Clone()
	status := s.Status(e.poll)
	s.mu.Unlock()

	s.publish(&approval.Event{Topic: approval.TopicPollRemoved, PollID: id, Status: status, Poll: snapshot})
	return snapshot.Clone()
}

func (s *service) Polls() []*approval.Poll {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, _ := s.polls.List(context.Background())
	ret := make([]*approval.Poll, 0, len(entries))
	for _, e := range entries {
		ret = append(ret, e.poll.Clone())
	}
	return ret
}

// drop removes e from the registry and stops its timers. Caller holds s.mu.
func (s *service) drop(e *entry) {
	e.stop()
	_ = s.polls.Delete(context.Background(), e.poll.ID)
}

// current reports whether e is still the registered poll under its id. Caller holds s.mu.
func (s *service) current(e *entry) bool {
	registered, _ := s.polls.Load(context.Background(), e.poll.ID)
	return registered == e
}

// expire is the deadline path: the poll is removed before onTimeout runs so
// the continuation may register a new poll under the same id.
func (s *service) expire(e *entry) {
	s.mu.Lock()
	if !s.current(e) {
		s.mu.Unlock()
		return
	}
	s.drop(e)
	snapshot := e.poll.Clone()
	s.mu.Unlock()

	s.publish(&approval.Event{Topic: approval.TopicPollExpired, PollID: snapshot.ID, Status: approval.StatusTimedOut, Poll: snapshot})
	if e.onTimeout != nil {
		e.onTimeout(snapshot)
	}
}

func (s *service) refresh(e *entry) {
	s.mu.Lock()
	if !s.current(e) {
		s.mu.Unlock()
		return
	}
	now := clock.Now()
	if !now.Before(e.poll.ValidUntil) {
		s.mu.Unlock()
		s.expire(e)
		return
	}
	e.refresh = nil
	if e.poll.ValidUntil.Sub(now) > s.config.SurfaceValidity {
		e.refresh = clock.AfterFunc(s.config.SurfaceValidity, func() { s.refresh(e) })
	}
	snapshot := e.poll.Clone()
	s.mu.Unlock()

	if e.onRefresh != nil {
		e.onRefresh(snapshot)
	}
}

func (s *service) publish(event *approval.Event) {
	if s.events == nil {
		return
	}
	_ = s.events.Publish(context.Background(), event)
}

var _ approval.Service = (*service)(nil)
