package authz

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type stubSource struct {
	grants map[int64][]string
	err    error
	calls  int
}

func (s *stubSource) Grants(ctx context.Context, userID int64) ([]string, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.grants[userID], nil
}

func newTestIndex(t *testing.T, source Source) (*Index, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewIndex(source, client, 30*time.Second, slog.New(slog.DiscardHandler)), mr
}

func TestIndexCachesGrants(t *testing.T) {
	source := &stubSource{grants: map[int64][]string{7: {"client:read", "task:*"}}}
	index, _ := newTestIndex(t, source)

	first, err := index.Grants(context.Background(), 7)
	require.NoError(t, err)
	require.True(t, first.Has("client:read"))

	second, err := index.Grants(context.Background(), 7)
	require.NoError(t, err)
	require.True(t, second.Has("task:write"))

	require.Equal(t, 1, source.calls, "second lookup must be served from cache")
}

func TestIndexEmptyGrantsAreNotAnError(t *testing.T) {
	source := &stubSource{grants: map[int64][]string{}}
	index, _ := newTestIndex(t, source)

	set, err := index.Grants(context.Background(), 99)
	require.NoError(t, err)
	require.False(t, set.Has("client:read"))
}

func TestIndexInvalidateForcesRefetch(t *testing.T) {
	source := &stubSource{grants: map[int64][]string{7: {"client:read"}}}
	index, _ := newTestIndex(t, source)

	_, err := index.Grants(context.Background(), 7)
	require.NoError(t, err)

	source.grants[7] = []string{"client:read", "client:write"}
	require.NoError(t, index.Invalidate(context.Background(), 7))

	set, err := index.Grants(context.Background(), 7)
	require.NoError(t, err)
	require.True(t, set.Has("client:write"))
	require.Equal(t, 2, source.calls)
}

func TestIndexInvalidateAll(t *testing.T) {
	source := &stubSource{grants: map[int64][]string{1: {"a:b"}, 2: {"c:d"}}}
	index, _ := newTestIndex(t, source)

	_, _ = index.Grants(context.Background(), 1)
	_, _ = index.Grants(context.Background(), 2)
	require.Equal(t, 2, source.calls)

	require.NoError(t, index.InvalidateAll(context.Background()))

	_, _ = index.Grants(context.Background(), 1)
	_, _ = index.Grants(context.Background(), 2)
	require.Equal(t, 4, source.calls)
}

func TestIndexTTLExpiry(t *testing.T) {
	source := &stubSource{grants: map[int64][]string{7: {"client:read"}}}
	index, mr := newTestIndex(t, source)

	_, err := index.Grants(context.Background(), 7)
	require.NoError(t, err)

	mr.FastForward(time.Minute)

	_, err = index.Grants(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, 2, source.calls)
}

func TestIndexSourceErrorPropagates(t *testing.T) {
	source := &stubSource{err: errors.New("storage down")}
	index, _ := newTestIndex(t, source)

	_, err := index.Grants(context.Background(), 7)
	require.Error(t, err)
}

func TestIndexCacheOutageFallsBackToSource(t *testing.T) {
	source := &stubSource{grants: map[int64][]string{7: {"client:read"}}}
	index, mr := newTestIndex(t, source)
	mr.Close()

	set, err := index.Grants(context.Background(), 7)
	require.NoError(t, err)
	require.True(t, set.Has("client:read"))
}

func TestIndexWithoutCache(t *testing.T) {
	source := &stubSource{grants: map[int64][]string{7: {"client:read"}}}
	index := NewIndex(source, nil, 0, slog.New(slog.DiscardHandler))

	for range 2 {
		set, err := index.Grants(context.Background(), 7)
		require.NoError(t, err)
		require.True(t, set.Has("client:read"))
	}
	require.Equal(t, 2, source.calls)
}
