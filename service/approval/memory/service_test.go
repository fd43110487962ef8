package memory_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/quorum/internal/clock"
	approval "github.com/viant/quorum/service/approval"
	"github.com/viant/quorum/service/approval/memory"
	qmem "github.com/viant/quorum/service/messaging/memory"
)

func newEngine(options ...memory.Option) approval.Service {
	return memory.New(append([]memory.Option{memory.WithConfig(approval.Config{
		ApprovalCount:    1,
		DisapprovalCount: 1,
		Duration:         time.Hour,
		SurfaceValidity:  time.Hour,
	})}, options...)...)
}

func TestService_EndToEnd(t *testing.T) {
	engine := newEngine()
	engine.Create(&approval.Spec{
		ID:       "msg-1",
		Content:  "deploy",
		Duration: time.Second,
		Options:  approval.Options{ApprovalCount: 2, DisapprovalCount: 2},
	}, nil, nil)

	status, ok := engine.CastVote("msg-1", "A", approval.DirectionApprove, false)
	require.True(t, ok)
	assert.Equal(t, approval.StatusPending, status)
	poll := engine.Get("msg-1", true)
	require.NotNil(t, poll)
	assert.Equal(t, []string{"A"}, poll.ApproverIDs)

	status, ok = engine.CastVote("msg-1", "B", approval.DirectionApprove, false)
	require.True(t, ok)
	assert.Equal(t, approval.StatusApproved, status)
	assert.NotNil(t, engine.Remove("msg-1"))
	assert.Nil(t, engine.Get("msg-1", true))
	assert.Nil(t, engine.Remove("msg-1"))
}

func TestService_QuorumMonotonicity(t *testing.T) {
	type testCase struct {
		name     string
		votes    []approval.Direction
		expected []approval.Status
	}
	tests := []testCase{
		{
			name:     "approvals reach quorum",
			votes:    []approval.Direction{approval.DirectionApprove, approval.DirectionApprove, approval.DirectionApprove},
			expected: []approval.Status{approval.StatusPending, approval.StatusPending, approval.StatusApproved},
		},
		{
			name:     "disapprovals first",
			votes:    []approval.Direction{approval.DirectionDisapprove, approval.DirectionDisapprove, approval.DirectionApprove},
			expected: []approval.Status{approval.StatusPending, approval.StatusDisapproved, approval.StatusDisapproved},
		},
		{
			name:     "mixed",
			votes:    []approval.Direction{approval.DirectionApprove, approval.DirectionDisapprove, approval.DirectionApprove, approval.DirectionApprove},
			expected: []approval.Status{approval.StatusPending, approval.StatusPending, approval.StatusPending, approval.StatusApproved},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			engine := newEngine()
			engine.Create(&approval.Spec{ID: "p", Options: approval.Options{ApprovalCount: 3, DisapprovalCount: 2}}, nil, nil)
			for i, vote := range tc.votes {
				status, ok := engine.CastVote("p", "voter", vote, false)
				assert.True(t, ok)
				assert.Equal(t, tc.expected[i], status, "vote %d", i)
			}
		})
	}
}

func TestService_Force(t *testing.T) {
	engine := newEngine()
	engine.Create(&approval.Spec{ID: "p", Options: approval.Options{ApprovalCount: 10}}, nil, nil)
	status, ok := engine.CastVote("p", "admin", approval.DirectionApprove, true)
	assert.True(t, ok)
	assert.Equal(t, approval.StatusApproved, status)

	engine.Create(&approval.Spec{ID: "q", Options: approval.Options{ApprovalCount: 10}}, nil, nil)
	_, _ = engine.CastVote("q", "a", approval.DirectionApprove, false)
	status, _ = engine.CastVote("q", "admin", approval.DirectionDisapprove, true)
	assert.Equal(t, approval.StatusDisapproved, status)
}

func TestService_ForceDoesNotResurrectExpiredPoll(t *testing.T) {
	engine := newEngine()
	engine.Create(&approval.Spec{ID: "p"}, nil, nil)

	now := time.Now()
	clock.NowFunc = func() time.Time { return now.Add(2 * time.Hour) }
	defer func() { clock.NowFunc = time.Now }()

	status, ok := engine.CastVote("p", "admin", approval.DirectionApprove, true)
	assert.True(t, ok)
	assert.Equal(t, approval.StatusTimedOut, status)
	assert.Nil(t, engine.Get("p", true))
	assert.Empty(t, engine.Polls())
}

func TestService_UnknownPoll(t *testing.T) {
	engine := newEngine()
	status, ok := engine.CastVote("missing", "a", approval.DirectionApprove, false)
	assert.False(t, ok)
	assert.Equal(t, approval.Status(""), status)
	_, ok = engine.Update("missing", func(*approval.Poll) {})
	assert.False(t, ok)
	assert.False(t, engine.Migrate("missing", "other"))
	assert.Nil(t, engine.Remove("missing"))
}

func TestService_SupersedeIsSilent(t *testing.T) {
	engine := newEngine()
	var fired atomic.Int32
	onTimeout := func(*approval.Poll) { fired.Add(1) }
	engine.Create(&approval.Spec{ID: "p", Duration: 30 * time.Millisecond, Content: "first"}, onTimeout, onTimeout)
	engine.Create(&approval.Spec{ID: "p", Duration: time.Hour, Content: "second"}, nil, nil)

	time.Sleep(80 * time.Millisecond)
	assert.EqualValues(t, 0, fired.Load())
	poll := engine.Get("p", true)
	require.NotNil(t, poll)
	assert.Equal(t, "second", poll.Content)
}

func TestService_DeadlineRemovesBeforeTimeout(t *testing.T) {
	engine := newEngine()
	done := make(chan *approval.Poll, 1)
	engine.Create(&approval.Spec{ID: "p", Duration: 20 * time.Millisecond}, func(p *approval.Poll) {
		assert.Nil(t, engine.Get(p.ID, false))
		engine.Create(&approval.Spec{ID: p.ID, Content: "again"}, nil, nil)
		done <- p
	}, nil)
	_, _ = engine.CastVote("p", "a", approval.DirectionDisapprove, false)

	select {
	case p := <-done:
		assert.Equal(t, "p", p.ID)
		assert.Equal(t, approval.StatusTimedOut, engine.Status(p))
	case <-time.After(time.Second):
		t.Fatal("deadline did not fire")
	}
	again := engine.Get("p", true)
	require.NotNil(t, again)
	assert.Equal(t, "again", again.Content)
}

func TestService_RemoveStopsTimers(t *testing.T) {
	engine := newEngine()
	var fired atomic.Int32
	engine.Create(&approval.Spec{ID: "p", Duration: 20 * time.Millisecond}, func(*approval.Poll) { fired.Add(1) }, nil)
	assert.NotNil(t, engine.Remove("p"))
	time.Sleep(60 * time.Millisecond)
	assert.EqualValues(t, 0, fired.Load())
}

func TestService_MigrateAndRefresh(t *testing.T) {
	engine := memory.New(memory.WithConfig(approval.Config{SurfaceValidity: 20 * time.Millisecond}))
	var mu sync.Mutex
	surface := 0
	var refreshed []string
	onRefresh := func(p *approval.Poll) {
		mu.Lock()
		surface++
		newID := fmt.Sprintf("surface-%d", surface)
		refreshed = append(refreshed, p.ID)
		mu.Unlock()
		engine.Migrate(p.ID, newID)
	}
	timedOut := make(chan *approval.Poll, 1)
	engine.Create(&approval.Spec{ID: "surface-0", Duration: 70 * time.Millisecond}, func(p *approval.Poll) { timedOut <- p }, onRefresh)
	_, ok := engine.CastVote("surface-0", "a", approval.DirectionApprove, false)
	require.True(t, ok)

	select {
	case p := <-timedOut:
		mu.Lock()
		defer mu.Unlock()
		assert.GreaterOrEqual(t, len(refreshed), 2)
		assert.Equal(t, "surface-0", refreshed[0])
		assert.NotEqual(t, "surface-0", p.ID)
		assert.Equal(t, []string{"a"}, p.ApproverIDs)
	case <-time.After(time.Second):
		t.Fatal("poll did not time out")
	}
	assert.Empty(t, engine.Polls())
}

func TestService_MigrateKeepsVotes(t *testing.T) {
	engine := newEngine()
	engine.Create(&approval.Spec{ID: "old", Options: approval.Options{ApprovalCount: 3}}, nil, nil)
	_, _ = engine.CastVote("old", "a", approval.DirectionApprove, false)
	assert.True(t, engine.Migrate("old", "new"))

	assert.Nil(t, engine.Get("old", true))
	_, ok := engine.CastVote("old", "b", approval.DirectionApprove, false)
	assert.False(t, ok)

	status, ok := engine.CastVote("new", "b", approval.DirectionApprove, false)
	assert.True(t, ok)
	assert.Equal(t, approval.StatusPending, status)
	poll := engine.Get("new", true)
	require.NotNil(t, poll)
	assert.Equal(t, "new", poll.ID)
	assert.Equal(t, []string{"a", "b"}, poll.ApproverIDs)
}

func TestService_UpdateSwitchesVote(t *testing.T) {
	engine := newEngine()
	engine.Create(&approval.Spec{ID: "p", Options: approval.Options{ApprovalCount: 2, DisapprovalCount: 2}}, nil, nil)
	_, _ = engine.CastVote("p", "a", approval.DirectionApprove, false)
	_, _ = engine.CastVote("p", "b", approval.DirectionDisapprove, false)

	status, ok := engine.Update("p", func(p *approval.Poll) {
		approval.RemoveVoter(p, "b")
		p.ApproverIDs = append(p.ApproverIDs, "b")
	})
	assert.True(t, ok)
	assert.Equal(t, approval.StatusApproved, status)
}

func TestService_GetAutoRemove(t *testing.T) {
	engine := newEngine()
	engine.Create(&approval.Spec{ID: "p"}, nil, nil)
	_, _ = engine.CastVote("p", "a", approval.DirectionApprove, false)

	assert.Nil(t, engine.Get("p", false))
	assert.Len(t, engine.Polls(), 1)
	assert.Nil(t, engine.Get("p", true))
	assert.Empty(t, engine.Polls())
}

func TestService_GetReturnsSnapshot(t *testing.T) {
	engine := newEngine()
	engine.Create(&approval.Spec{ID: "p", Options: approval.Options{ApprovalCount: 5}}, nil, nil)
	poll := engine.Get("p", true)
	require.NotNil(t, poll)
	poll.ApproverIDs = append(poll.ApproverIDs, "ghost")
	assert.Empty(t, engine.Get("p", true).ApproverIDs)
}

func TestService_ConcurrentVotes(t *testing.T) {
	engine := newEngine()
	engine.Create(&approval.Spec{ID: "p", Options: approval.Options{ApprovalCount: 1000}}, nil, nil)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = engine.CastVote("p", "v", approval.DirectionApprove, false)
		}()
	}
	wg.Wait()
	assert.Len(t, engine.Get("p", true).ApproverIDs, 50)
}

func TestService_EventQueue(t *testing.T) {
	queue := qmem.NewQueue[approval.Event](qmem.DefaultConfig())
	engine := newEngine(memory.WithEventQueue(queue))
	engine.Create(&approval.Spec{ID: "p"}, nil, nil)
	_, _ = engine.CastVote("p", "a", approval.DirectionApprove, false)
	engine.Migrate("p", "q")
	engine.Remove("q")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	var topics []string
	for i := 0; i < 4; i++ {
		msg, err := queue.Consume(ctx)
		require.NoError(t, err)
		topics = append(topics, msg.T().Topic)
		assert.NoError(t, msg.Ack())
	}
	assert.Equal(t, []string{
		approval.TopicPollCreated,
		approval.TopicPollVoted,
		approval.TopicPollMigrated,
		approval.TopicPollRemoved,
	}, topics)
}
