package memory_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/quorum/internal/idgen"
	"github.com/viant/quorum/service/event"
	"github.com/viant/quorum/service/token"
	"github.com/viant/quorum/service/token/memory"
)

func newFolder(t *testing.T, names ...string) string {
	dir := t.TempDir()
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("content of "+name), 0o644))
	}
	return dir
}

func TestService_TokenTypeFencing(t *testing.T) {
	srv := memory.New()
	id, err := srv.CreateFileToken()
	require.NoError(t, err)

	assert.False(t, srv.HasActiveToken(id, token.EditToken))
	assert.True(t, srv.HasActiveToken(id, token.FileToken))
	assert.True(t, srv.HasActiveToken(id))
	assert.False(t, srv.HasActiveToken(id, token.EditTypes...))
	assert.True(t, srv.HasActiveToken(id, token.ViewToken, token.FileToken))
	assert.False(t, srv.HasActiveToken("unknown"))

	_, ok := srv.UseEditToken(id)
	assert.False(t, ok)
	assert.True(t, srv.HasActiveToken(id, token.FileToken))
}

func TestService_CreateEditToken(t *testing.T) {
	dir := newFolder(t, "a.txt")
	ctx := context.Background()

	type testCase struct {
		name     string
		request  *token.EditRequest
		expected token.Type
		granted  bool
	}
	tests := []testCase{
		{
			name:     "edit existing file",
			request:  &token.EditRequest{File: token.EditFile{Filename: "a.txt", ContainingFolderPath: dir}, Kind: token.KindEdit},
			expected: token.EditToken,
			granted:  true,
		},
		{
			name:     "force edit",
			request:  &token.EditRequest{File: token.EditFile{Filename: "a.txt", ContainingFolderPath: dir}, Kind: token.KindForceEdit},
			expected: token.EditForceToken,
			granted:  true,
		},
		{
			name:     "view",
			request:  &token.EditRequest{File: token.EditFile{Filename: "a.txt", ContainingFolderPath: dir}, Kind: token.KindView},
			expected: token.ViewToken,
			granted:  true,
		},
		{
			name:    "missing file",
			request: &token.EditRequest{File: token.EditFile{Filename: "missing.txt", ContainingFolderPath: dir}, Kind: token.KindEdit},
		},
		{
			name:     "missing file bypassed",
			request:  &token.EditRequest{File: token.EditFile{Filename: "new.txt", ContainingFolderPath: dir}, Kind: token.KindEdit, BypassFileExistCheck: true},
			expected: token.EditToken,
			granted:  true,
		},
		{
			name:    "path traversal",
			request: &token.EditRequest{File: token.EditFile{Filename: "../../etc/passwd", ContainingFolderPath: "/srv"}, Kind: token.KindEdit, BypassFileExistCheck: true},
		},
		{
			name:    "folder itself",
			request: &token.EditRequest{File: token.EditFile{Filename: ".", ContainingFolderPath: dir}, Kind: token.KindEdit, BypassFileExistCheck: true},
		},
		{
			name:    "sibling escape",
			request: &token.EditRequest{File: token.EditFile{Filename: "../" + filepath.Base(dir) + "x/a.txt", ContainingFolderPath: dir}, Kind: token.KindEdit, BypassFileExistCheck: true},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := memory.New()
			grant, err := srv.CreateEditToken(ctx, tc.request)
			require.NoError(t, err)
			if !tc.granted {
				assert.Nil(t, grant)
				return
			}
			require.NotNil(t, grant)
			assert.NotEmpty(t, grant.SessionID)
			assert.True(t, srv.HasActiveToken(grant.TokenID, tc.expected))
			file, ok := srv.EditFile(grant.TokenID)
			require.True(t, ok)
			assert.Equal(t, grant.SessionID, file.SessionID)
			assert.Equal(t, tc.request.File.Filename, file.Filename)
		})
	}
}

func TestService_CreateEditToken_ReusesSession(t *testing.T) {
	srv := memory.New()
	grant, err := srv.CreateEditToken(context.Background(), &token.EditRequest{
		File:                 token.EditFile{Filename: "a.txt", ContainingFolderPath: "/srv"},
		Kind:                 token.KindDiff,
		SessionID:            "session-1",
		BypassFileExistCheck: true,
	})
	require.NoError(t, err)
	require.NotNil(t, grant)
	assert.Equal(t, "session-1", grant.SessionID)
	assert.True(t, srv.HasActiveToken(grant.TokenID, token.EditDiffToken))

	_, err = srv.CreateEditToken(context.Background(), &token.EditRequest{Kind: "rename"})
	assert.Error(t, err)
}

func TestService_UseFileToken(t *testing.T) {
	srv := memory.New()
	id, err := srv.CreateFileToken()
	require.NoError(t, err)

	upload := &token.File{Name: "report.pdf", Size: 42}
	assert.True(t, srv.UseFileToken(id, upload, 30*time.Millisecond))
	assert.False(t, srv.UseFileToken(id, upload, time.Minute))
	assert.False(t, srv.HasActiveToken(id))

	file, ok := srv.File(id)
	assert.True(t, ok)
	assert.Equal(t, upload, file)

	assert.Eventually(t, func() bool {
		_, ok := srv.File(id)
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestService_AwaitEditToken(t *testing.T) {
	dir := newFolder(t, "a.txt")
	ctx := context.Background()
	request := &token.EditRequest{File: token.EditFile{Filename: "a.txt", ContainingFolderPath: dir}, Kind: token.KindEdit}

	t.Run("resolves with file on use", func(t *testing.T) {
		srv := memory.New()
		grant, err := srv.CreateEditToken(ctx, request)
		require.NoError(t, err)
		go func() {
			time.Sleep(10 * time.Millisecond)
			srv.UseEditToken(grant.TokenID)
		}()
		file, err := srv.AwaitEditToken(ctx, grant.TokenID, time.Second)
		require.NoError(t, err)
		require.NotNil(t, file)
		assert.Equal(t, "a.txt", file.Filename)
		assert.Equal(t, grant.SessionID, file.SessionID)
		_, ok := srv.EditFile(grant.TokenID)
		assert.False(t, ok)
	})

	t.Run("resolves nil on dispose", func(t *testing.T) {
		srv := memory.New()
		grant, err := srv.CreateEditToken(ctx, request)
		require.NoError(t, err)
		go func() {
			time.Sleep(10 * time.Millisecond)
			srv.DisposeToken(grant.TokenID)
		}()
		file, err := srv.AwaitEditToken(ctx, grant.TokenID, time.Second)
		assert.NoError(t, err)
		assert.Nil(t, file)
	})

	t.Run("resolves with file when used before await", func(t *testing.T) {
		srv := memory.New()
		grant, err := srv.CreateEditToken(ctx, request)
		require.NoError(t, err)
		_, ok := srv.UseEditToken(grant.TokenID)
		require.True(t, ok)

		outcome := srv.Await(ctx, grant.TokenID, time.Second)
		assert.Equal(t, token.OutcomeUsed, outcome.Status)
		assert.Equal(t, token.EditToken, outcome.Type)
		file, err := srv.AwaitEditToken(ctx, grant.TokenID, time.Second)
		require.NoError(t, err)
		require.NotNil(t, file)
		assert.Equal(t, "a.txt", file.Filename)

		srv.DisposeToken(grant.TokenID)
		file, err = srv.AwaitEditToken(ctx, grant.TokenID, time.Second)
		assert.NoError(t, err)
		assert.Nil(t, file)
	})

	t.Run("used record expires", func(t *testing.T) {
		srv := memory.New(memory.WithConfig(token.Config{FileTTL: 20 * time.Millisecond}))
		grant, err := srv.CreateEditToken(ctx, request)
		require.NoError(t, err)
		_, ok := srv.UseEditToken(grant.TokenID)
		require.True(t, ok)
		assert.Eventually(t, func() bool {
			return srv.Await(ctx, grant.TokenID, time.Second).Status == token.OutcomeCancelled
		}, time.Second, 5*time.Millisecond)
	})

	t.Run("rejects on timeout", func(t *testing.T) {
		bus := event.NewBus[token.Notice]()
		srv := memory.New(memory.WithBus(bus))
		grant, err := srv.CreateEditToken(ctx, request)
		require.NoError(t, err)
		started := time.Now()
		file, err := srv.AwaitEditToken(ctx, grant.TokenID, 50*time.Millisecond)
		assert.ErrorIs(t, err, token.ErrAwaitTimeout)
		assert.Nil(t, file)
		assert.GreaterOrEqual(t, time.Since(started), 50*time.Millisecond)
		assert.Equal(t, 0, bus.Len(grant.TokenID))
	})

	t.Run("context cancellation", func(t *testing.T) {
		srv := memory.New()
		grant, err := srv.CreateEditToken(ctx, request)
		require.NoError(t, err)
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		_, err = srv.AwaitEditToken(cancelled, grant.TokenID, time.Second)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestService_AwaitFileToken(t *testing.T) {
	ctx := context.Background()

	t.Run("used", func(t *testing.T) {
		srv := memory.New()
		id, _ := srv.CreateFileToken()
		go func() {
			time.Sleep(10 * time.Millisecond)
			srv.UseFileToken(id, &token.File{Name: "x.bin"}, time.Minute)
		}()
		file, err := srv.AwaitFileToken(ctx, id, time.Second)
		require.NoError(t, err)
		assert.Equal(t, "x.bin", file.Name)

		file, err = srv.AwaitFileToken(ctx, id, time.Second)
		require.NoError(t, err)
		assert.Equal(t, "x.bin", file.Name)
	})

	t.Run("disposed", func(t *testing.T) {
		srv := memory.New()
		id, _ := srv.CreateFileToken()
		go func() {
			time.Sleep(10 * time.Millisecond)
			srv.DisposeToken(id)
		}()
		_, err := srv.AwaitFileToken(ctx, id, time.Second)
		assert.ErrorIs(t, err, token.ErrTokenCancelled)
	})

	t.Run("timeout", func(t *testing.T) {
		srv := memory.New()
		id, _ := srv.CreateFileToken()
		outcome := srv.Await(ctx, id, 20*time.Millisecond)
		assert.Equal(t, token.OutcomeTimedOut, outcome.Status)
		assert.Equal(t, token.FileToken, outcome.Type)
		_, err := srv.AwaitFileToken(ctx, id, 20*time.Millisecond)
		assert.ErrorIs(t, err, token.ErrAwaitTimeout)
	})

	t.Run("unknown token", func(t *testing.T) {
		srv := memory.New()
		outcome := srv.Await(ctx, "unknown", time.Second)
		assert.Equal(t, token.OutcomeCancelled, outcome.Status)
	})
}

func TestService_AwaitManyWaiters(t *testing.T) {
	srv := memory.New()
	id, _ := srv.CreateFileToken()
	ctx := context.Background()
	var wg sync.WaitGroup
	results := make([]*token.Outcome, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = srv.Await(ctx, id, time.Second)
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	srv.UseFileToken(id, &token.File{Name: "f"}, time.Minute)
	wg.Wait()
	for _, outcome := range results {
		assert.Equal(t, token.OutcomeUsed, outcome.Status)
		assert.Equal(t, "f", outcome.File.Name)
	}
}

func TestService_DeactivateToken(t *testing.T) {
	srv := memory.New()
	grant, err := srv.CreateEditToken(context.Background(), &token.EditRequest{
		File:                 token.EditFile{Filename: "a.txt", ContainingFolderPath: "/srv"},
		Kind:                 token.KindEdit,
		BypassFileExistCheck: true,
	})
	require.NoError(t, err)
	_, err = srv.NewDiff(grant.SessionID, "draft")
	require.NoError(t, err)

	done := make(chan *token.Outcome, 1)
	go func() { done <- srv.Await(context.Background(), grant.TokenID, time.Second) }()
	time.Sleep(10 * time.Millisecond)

	assert.True(t, srv.DeactivateToken(grant.TokenID))
	assert.False(t, srv.DeactivateToken(grant.TokenID))
	assert.Equal(t, token.OutcomeCancelled, (<-done).Status)

	assert.False(t, srv.HasActiveToken(grant.TokenID))
	_, ok := srv.UseEditToken(grant.TokenID)
	assert.False(t, ok)
	_, ok = srv.EditFile(grant.TokenID)
	assert.True(t, ok)
	assert.NotNil(t, srv.GetDiff(grant.SessionID))
}

func TestService_Diffs(t *testing.T) {
	srv := memory.New()

	first, err := srv.NewDiff("s", "a")
	require.NoError(t, err)
	assert.True(t, srv.HasActiveToken(first, token.EditDiffToken))

	_, err = srv.NewDiff("s", "b")
	assert.ErrorIs(t, err, token.ErrDiffExists)
	assert.Equal(t, "a", srv.GetDiff("s").Content)

	srv.DeleteDiff("s")
	assert.Nil(t, srv.GetDiff("s"))
	third, err := srv.NewDiff("s", "c")
	require.NoError(t, err)
	assert.NotEqual(t, first, third)
	diff := srv.GetDiff("s")
	assert.Equal(t, &token.Diff{SessionID: "s", Content: "c", Token: third}, diff)

	file, ok := srv.UseEditToken(third)
	assert.True(t, ok)
	assert.Equal(t, "s", file.SessionID)
}

func TestService_DisposeCascades(t *testing.T) {
	srv := memory.New()
	ctx := context.Background()
	grant, err := srv.CreateEditToken(ctx, &token.EditRequest{
		File:                 token.EditFile{Filename: "a.txt", ContainingFolderPath: "/srv"},
		Kind:                 token.KindEdit,
		BypassFileExistCheck: true,
	})
	require.NoError(t, err)
	diffToken, err := srv.NewDiff(grant.SessionID, "draft")
	require.NoError(t, err)

	srv.DisposeToken(grant.TokenID)
	assert.Nil(t, srv.GetDiff(grant.SessionID))
	assert.False(t, srv.HasActiveToken(grant.TokenID))
	assert.False(t, srv.HasActiveToken(diffToken))
	_, ok := srv.EditFile(grant.TokenID)
	assert.False(t, ok)

	srv.DisposeToken(grant.TokenID)
	_, err = srv.NewDiff(grant.SessionID, "again")
	assert.NoError(t, err)
}

func TestService_DisposeUsedEditTokenCascades(t *testing.T) {
	srv := memory.New()
	grant, err := srv.CreateEditToken(context.Background(), &token.EditRequest{
		File:                 token.EditFile{Filename: "a.txt", ContainingFolderPath: "/srv"},
		Kind:                 token.KindEdit,
		BypassFileExistCheck: true,
	})
	require.NoError(t, err)
	_, ok := srv.UseEditToken(grant.TokenID)
	require.True(t, ok)
	diffToken, err := srv.NewDiff(grant.SessionID, "draft")
	require.NoError(t, err)

	srv.DisposeToken(grant.TokenID)
	assert.Nil(t, srv.GetDiff(grant.SessionID))
	assert.False(t, srv.HasActiveToken(diffToken))
}

func TestService_DisposeDiffToken(t *testing.T) {
	srv := memory.New()
	diffToken, err := srv.NewDiff("s", "draft")
	require.NoError(t, err)
	srv.DisposeToken(diffToken)
	assert.Nil(t, srv.GetDiff("s"))
}

func TestService_DisposeUsedFileToken(t *testing.T) {
	srv := memory.New()
	id, _ := srv.CreateFileToken()
	srv.UseFileToken(id, &token.File{Name: "f"}, time.Hour)
	srv.DisposeToken(id)
	_, ok := srv.File(id)
	assert.False(t, ok)
	srv.Close()
}

func TestService_TokenCollision(t *testing.T) {
	srv := memory.New()
	defer func(prev func() (string, error)) { idgen.TokenFunc = prev }(idgen.TokenFunc)
	idgen.TokenFunc = func() (string, error) { return "fixed", nil }

	id, err := srv.CreateFileToken()
	require.NoError(t, err)
	assert.Equal(t, "fixed", id)
	_, err = srv.CreateFileToken()
	assert.ErrorIs(t, err, token.ErrTokenCollision)
	_, err = srv.NewDiff("s", "x")
	assert.ErrorIs(t, err, token.ErrTokenCollision)
	assert.Nil(t, srv.GetDiff("s"))
}
