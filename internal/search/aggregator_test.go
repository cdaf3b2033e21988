package search

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tuannvm/devhub/internal/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func results(ids ...string) []models.SearchResult {
	out := make([]models.SearchResult, 0, len(ids))
	for _, id := range ids {
		out = append(out, models.SearchResult{ID: id, Title: id})
	}
	return out
}

func fixed(rs []models.SearchResult, err error) Searcher {
	return SearcherFunc(func(context.Context, string) ([]models.SearchResult, error) {
		return rs, err
	})
}

func TestSearchPartialFailure(t *testing.T) {
	agg := NewAggregator([]Source{
		{Name: "internal", Searcher: fixed(nil, errors.New("Confluence search: boom"))},
		{Name: "web", Searcher: fixed(results("w1", "w2"), nil)},
		{Name: "ai", Searcher: fixed(results("a1"), nil)},
	})

	final := agg.Search(context.Background(), "deploy")

	assert.True(t, final.Done())
	assert.Equal(t, models.StatusError, final.Source("internal").Status)
	assert.Equal(t, "Confluence search: boom", final.Source("internal").Error)
	assert.Empty(t, final.Source("internal").Results)
	assert.Equal(t, models.StatusSuccess, final.Source("web").Status)
	assert.Len(t, final.Source("web").Results, 2)
	assert.Empty(t, final.Source("web").Error)
	assert.Equal(t, models.StatusSuccess, final.Source("ai").Status)
	assert.Equal(t, map[string]string{"internal": "Confluence search: boom"}, final.Errors())
	assert.Equal(t, []string{"w1", "w2", "a1"}, ids(final.Results()))
}

func TestSearchAllEmpty(t *testing.T) {
	agg := NewAggregator([]Source{
		{Name: "internal", Searcher: fixed([]models.SearchResult{}, nil)},
		{Name: "web", Searcher: fixed(nil, nil)},
		{Name: "ai", Searcher: fixed([]models.SearchResult{}, nil)},
	})

	final := agg.Search(context.Background(), "nothing")
	for _, name := range []string{"internal", "web", "ai"} {
		assert.Equal(t, models.StatusNoResults, final.Source(name).Status, name)
	}
	assert.Empty(t, final.Errors())
}

func TestSearchBlankQueryIsNoop(t *testing.T) {
	called := false
	agg := NewAggregator([]Source{{Name: "web", Searcher: fixed(results("w1"), nil)}},
		WithObserver(func(State) { called = true }))

	st := agg.Search(context.Background(), "   \t")
	assert.False(t, called)
	assert.Equal(t, models.StatusIdle, st.Source("web").Status)
	assert.Zero(t, st.Generation)
}

func TestSearchPublishesLoadingFirst(t *testing.T) {
	var snapshots []State
	agg := NewAggregator([]Source{
		{Name: "internal", Searcher: fixed(results("i1"), nil)},
		{Name: "web", Searcher: fixed(nil, errors.New("down"))},
	}, WithObserver(func(s State) { snapshots = append(snapshots, s) }))

	agg.Search(context.Background(), "  deploy  ")

	require.Len(t, snapshots, 3)
	first := snapshots[0]
	assert.Equal(t, "deploy", first.Query)
	assert.NotEmpty(t, first.RunID)
	for _, name := range []string{"internal", "web"} {
		assert.Equal(t, models.StatusLoading, first.Source(name).Status)
	}
	// Earlier snapshots are not mutated by later updates.
	assert.False(t, first.Done())
	assert.True(t, snapshots[2].Done())
	for _, s := range snapshots {
		assert.Equal(t, first.RunID, s.RunID)
	}
}

func TestSearchFallbackMessage(t *testing.T) {
	agg := NewAggregator([]Source{
		{Name: "web", Searcher: fixed(nil, errors.New("")), Fallback: "Web search failed"},
		{Name: "chat", Searcher: fixed(nil, errors.New(""))},
	})
	final := agg.Search(context.Background(), "q")
	assert.Equal(t, "Web search failed", final.Source("web").Error)
	assert.Equal(t, "chat search failed", final.Source("chat").Error)
}

func TestSearchRecoversPanickingSource(t *testing.T) {
	agg := NewAggregator([]Source{
		{Name: "ai", Fallback: "AI search failed", Searcher: SearcherFunc(func(context.Context, string) ([]models.SearchResult, error) {
			panic("nil map")
		})},
		{Name: "web", Searcher: fixed(results("w1"), nil)},
	})
	final := agg.Search(context.Background(), "q")
	assert.Equal(t, models.StatusError, final.Source("ai").Status)
	assert.Contains(t, final.Source("ai").Error, "AI search failed: panic: nil map")
	assert.Equal(t, models.StatusSuccess, final.Source("web").Status)
}

func TestSearchDropsSupersededResults(t *testing.T) {
	started := make(chan struct{})
	var oldCtxErr error
	src := SearcherFunc(func(ctx context.Context, q string) ([]models.SearchResult, error) {
		if q == "old" {
			close(started)
			<-ctx.Done()
			oldCtxErr = ctx.Err()
			return results("stale"), nil
		}
		return results("fresh"), nil
	})

	var mu sync.Mutex
	var queries []string
	agg := NewAggregator([]Source{{Name: "internal", Searcher: src}}, WithObserver(func(s State) {
		mu.Lock()
		defer mu.Unlock()
		queries = append(queries, s.Query)
	}))

	done := make(chan State)
	go func() { done <- agg.Search(context.Background(), "old") }()
	<-started

	current := agg.Search(context.Background(), "new")
	assert.Equal(t, "new", current.Query)
	assert.Equal(t, []string{"fresh"}, ids(current.Source("internal").Results))

	<-done
	assert.ErrorIs(t, oldCtxErr, context.Canceled)

	st := agg.State()
	assert.Equal(t, uint64(2), st.Generation)
	assert.Equal(t, "new", st.Query)
	assert.Equal(t, []string{"fresh"}, ids(st.Source("internal").Results))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"old", "new", "new"}, queries)
}

func TestStateUnknownSourceIsIdle(t *testing.T) {
	agg := NewAggregator(nil)
	st := agg.State()
	assert.Equal(t, models.StatusIdle, st.Source("web").Status)
	assert.True(t, st.Done())
	assert.Empty(t, st.Results())
}

func ids(rs []models.SearchResult) []string {
	out := make([]string, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.ID)
	}
	return out
}
