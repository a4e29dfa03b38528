package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TD-AI-Lab/FAQ-Analyzer/internal/api"
	"github.com/TD-AI-Lab/FAQ-Analyzer/internal/logs"
)

type fakeSource struct {
	url         string
	healthCalls int
	faqCalls    map[string]int
	err         error
}

func (f *fakeSource) BaseURL() string { return f.url }

func (f *fakeSource) Health(context.Context) (*api.Health, error) {
	f.healthCalls++
	if f.err != nil {
		return nil, f.err
	}
	return &api.Health{Status: "ok", Counts: map[string]int{"raw": 3, "clean": 2, "scored": 1}}, nil
}

func (f *fakeSource) FAQ(_ context.Context, sort string) (*api.FAQList, error) {
	if f.faqCalls == nil {
		f.faqCalls = map[string]int{}
	}
	f.faqCalls[sort]++
	if f.err != nil {
		return nil, f.err
	}
	return &api.FAQList{
		Items: []api.FAQItem{{ID: "a", Title: "A", Analysis: &api.Analysis{Score: api.NewScore(77)}}},
		Count: 1,
	}, nil
}

func newCache(ttl time.Duration) *Cache {
	return New(NewLRUStore(16, ttl), logs.Discard())
}

func TestCache_HealthIsCachedPerBackend(t *testing.T) {
	ctx := context.Background()
	c := newCache(time.Minute)
	src := &fakeSource{url: "http://one"}

	h, err := c.Health(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, 1, h.Count("scored"))
	h, err = c.Health(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, 3, h.Count("raw"))
	assert.Equal(t, 1, src.healthCalls)

	other := &fakeSource{url: "http://two"}
	_, err = c.Health(ctx, other)
	require.NoError(t, err)
	assert.Equal(t, 1, other.healthCalls)
}

func TestCache_FAQKeyedBySort(t *testing.T) {
	ctx := context.Background()
	c := newCache(time.Minute)
	src := &fakeSource{url: "http://one"}

	list, err := c.FAQ(ctx, src, "score")
	require.NoError(t, err)
	_, err = c.FAQ(ctx, src, "score")
	require.NoError(t, err)
	_, err = c.FAQ(ctx, src, "")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"score": 1, "": 1}, src.faqCalls)

	cached, err := c.FAQ(ctx, src, "score")
	require.NoError(t, err)
	require.Len(t, cached.Items, 1)
	score, ok := cached.Items[0].Score()
	assert.True(t, ok)
	assert.Equal(t, 77, score)
	assert.Equal(t, list.Items[0].ID, cached.Items[0].ID)
}

func TestCache_ClearAndErrors(t *testing.T) {
	ctx := context.Background()
	c := newCache(time.Minute)
	src := &fakeSource{url: "http://one"}

	_, err := c.Health(ctx, src)
	require.NoError(t, err)
	c.Clear(ctx)
	_, err = c.Health(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, 2, src.healthCalls)

	failing := &fakeSource{url: "http://down", err: errors.New("refused")}
	_, err = c.Health(ctx, failing)
	assert.Error(t, err)
	_, err = c.Health(ctx, failing)
	assert.Error(t, err)
	assert.Equal(t, 2, failing.healthCalls, "errors are not cached")
}

func TestCache_Expiry(t *testing.T) {
	ctx := context.Background()
	c := newCache(20 * time.Millisecond)
	src := &fakeSource{url: "http://one"}

	_, err := c.Health(ctx, src)
	require.NoError(t, err)
	time.Sleep(60 * time.Millisecond)
	_, err = c.Health(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, 2, src.healthCalls)
}

func TestOpen_DefaultsToLRU(t *testing.T) {
	c, closeFn, err := Open(context.Background(), Options{TTL: time.Minute, Size: 4}, logs.Discard())
	require.NoError(t, err)
	defer closeFn()
	_, ok := c.store.(*LRUStore)
	assert.True(t, ok)
}
