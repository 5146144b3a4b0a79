package search

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/kbsearch/internal/model"
	appErr "github.com/xxxsen/kbsearch/internal/pkg/errors"
)

type fakeStore struct {
	tagResults    map[string][]model.SearchResult
	vectorResults map[string][]model.SearchResult
	candidateIDs  []string
	failKB        string

	mu             sync.Mutex
	tagCalls       int
	vectorCalls    int
	candidateCalls int
	lastVectorQ    VectorQuery
}

func (f *fakeStore) QueryByTags(ctx context.Context, kbIDs []string, clauses []Clause, limit int) ([]model.SearchResult, error) {
	f.mu.Lock()
	f.tagCalls++
	f.mu.Unlock()
	out := make([]model.SearchResult, 0)
	for _, kb := range kbIDs {
		if kb == f.failKB {
			return nil, errors.New("partition down")
		}
		out = append(out, f.tagResults[kb]...)
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) QueryCandidateIDs(ctx context.Context, kbIDs []string, clauses []Clause) ([]string, error) {
	f.mu.Lock()
	f.candidateCalls++
	f.mu.Unlock()
	return f.candidateIDs, nil
}

func (f *fakeStore) QueryByVector(ctx context.Context, q VectorQuery) ([]model.SearchResult, error) {
	f.mu.Lock()
	f.vectorCalls++
	f.lastVectorQ = q
	f.mu.Unlock()
	out := make([]model.SearchResult, 0)
	for _, kb := range q.KBIDs {
		if kb == f.failKB {
			return nil, errors.New("partition down")
		}
		for _, item := range f.vectorResults[kb] {
			if item.Distance < q.Threshold {
				out = append(out, item)
			}
		}
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func res(id string, distance float64) model.SearchResult {
	return model.SearchResult{ChunkID: id, Distance: distance}
}

func TestTagOnlySearch_RequiresFilters(t *testing.T) {
	engine := NewEngine(&fakeStore{})
	_, err := engine.TagOnlySearch(context.Background(), &Request{KBIDs: []string{"kb1"}})
	require.ErrorIs(t, err, appErr.ErrInvalid)
	require.Contains(t, err.Error(), "tag filters required")
}

func TestTagOnlySearch_SingleQuery(t *testing.T) {
	store := &fakeStore{tagResults: map[string][]model.SearchResult{
		"kb1": {res("a", 0), res("b", 0)},
	}}
	engine := NewEngine(store)
	items, err := engine.TagOnlySearch(context.Background(), &Request{
		KBIDs:   []string{"kb1"},
		TopK:    10,
		Filters: []Filter{{Slot: "tag1", Operator: OpEq, Value: "x"}},
	})
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, 1, store.tagCalls)
	require.Zero(t, items[0].Distance)
}

func TestTagOnlySearch_ParallelFanOutTruncates(t *testing.T) {
	store := &fakeStore{tagResults: map[string][]model.SearchResult{
		"kb1": {res("a", 0)}, "kb2": {res("b", 0)}, "kb3": {res("c", 0)},
		"kb4": {res("d", 0)}, "kb5": {res("e", 0)},
	}}
	engine := NewEngine(store)
	items, err := engine.TagOnlySearch(context.Background(), &Request{
		KBIDs:   []string{"kb1", "kb2", "kb3", "kb4", "kb5"},
		TopK:    3,
		Filters: []Filter{{Slot: "tag1", Operator: OpEq, Value: "x"}},
	})
	require.NoError(t, err)
	require.Len(t, items, 3)
	require.Equal(t, 5, store.tagCalls)
}

func TestTagOnlySearch_PartitionFailurePropagates(t *testing.T) {
	store := &fakeStore{
		tagResults: map[string][]model.SearchResult{"kb1": {res("a", 0)}},
		failKB:     "kb3",
	}
	engine := NewEngine(store)
	_, err := engine.TagOnlySearch(context.Background(), &Request{
		KBIDs:   []string{"kb1", "kb2", "kb3", "kb4", "kb5"},
		TopK:    10,
		Filters: []Filter{{Slot: "tag1", Operator: OpEq, Value: "x"}},
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "partition down")
}

func TestVectorOnlySearch_RequiresVector(t *testing.T) {
	engine := NewEngine(&fakeStore{})
	_, err := engine.VectorOnlySearch(context.Background(), &Request{KBIDs: []string{"kb1"}})
	require.ErrorIs(t, err, appErr.ErrInvalid)
	require.Contains(t, err.Error(), "query vector required")
}

func TestVectorOnlySearch_SingleQueryUsesStrategyThreshold(t *testing.T) {
	store := &fakeStore{vectorResults: map[string][]model.SearchResult{
		"kb1": {res("a", 0.2), res("b", 0.5)},
	}}
	engine := NewEngine(store)
	items, err := engine.VectorOnlySearch(context.Background(), &Request{
		KBIDs:       []string{"kb1"},
		TopK:        10,
		QueryVector: []float32{0.1, 0.2},
	})
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, 1.0, store.lastVectorQ.Threshold)
	require.Equal(t, 10, store.lastVectorQ.Limit)
}

func TestVectorOnlySearch_ParallelResortsGlobally(t *testing.T) {
	store := &fakeStore{vectorResults: map[string][]model.SearchResult{
		"kb1": {res("a", 0.5)},
		"kb2": {res("b", 0.1)},
		"kb3": {res("c", 0.3)},
		"kb4": {res("d", 0.2)},
		"kb5": {res("e", 0.4)},
	}}
	engine := NewEngine(store)
	items, err := engine.VectorOnlySearch(context.Background(), &Request{
		KBIDs:       []string{"kb1", "kb2", "kb3", "kb4", "kb5"},
		TopK:        4,
		QueryVector: []float32{0.1, 0.2},
	})
	require.NoError(t, err)
	require.Len(t, items, 4)
	ids := []string{items[0].ChunkID, items[1].ChunkID, items[2].ChunkID, items[3].ChunkID}
	require.Equal(t, []string{"b", "d", "c", "e"}, ids)
	// 5 partitions tightens the cutoff
	require.Equal(t, 0.8, store.lastVectorQ.Threshold)
}

func TestVectorOnlySearch_ThresholdOverride(t *testing.T) {
	store := &fakeStore{vectorResults: map[string][]model.SearchResult{
		"kb1": {res("a", 0.2), res("b", 0.5)},
	}}
	engine := NewEngine(store)
	items, err := engine.VectorOnlySearch(context.Background(), &Request{
		KBIDs:             []string{"kb1"},
		TopK:              10,
		QueryVector:       []float32{0.1},
		DistanceThreshold: 0.3,
	})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "a", items[0].ChunkID)
}

func TestTagAndVectorSearch_EmptyCandidatesShortCircuits(t *testing.T) {
	store := &fakeStore{candidateIDs: []string{}}
	engine := NewEngine(store)
	items, err := engine.TagAndVectorSearch(context.Background(), &Request{
		KBIDs:       []string{"kb1"},
		TopK:        10,
		Filters:     []Filter{{Slot: "tag1", Operator: OpEq, Value: "x"}},
		QueryVector: []float32{0.1},
	})
	require.NoError(t, err)
	require.NotNil(t, items)
	require.Empty(t, items)
	require.Equal(t, 1, store.candidateCalls)
	require.Zero(t, store.vectorCalls)
}

func TestTagAndVectorSearch_RestrictsVectorStage(t *testing.T) {
	store := &fakeStore{
		candidateIDs: []string{"a", "c"},
		vectorResults: map[string][]model.SearchResult{
			"kb1": {res("a", 0.2)},
			"kb2": {res("c", 0.1)},
			"kb3": {res("e", 0.3)},
		},
	}
	engine := NewEngine(store)
	items, err := engine.TagAndVectorSearch(context.Background(), &Request{
		KBIDs:       []string{"kb1", "kb2", "kb3"},
		TopK:        10,
		Filters:     []Filter{{Slot: "tag1", Operator: OpEq, Value: "invoice"}},
		QueryVector: []float32{0.1},
	})
	require.NoError(t, err)
	// 3 partitions with topK 10 stays on the single-query path
	require.Equal(t, 1, store.vectorCalls)
	require.Equal(t, []string{"a", "c"}, store.lastVectorQ.RestrictIDs)
	require.Equal(t, 1.0, store.lastVectorQ.Threshold)
	require.Len(t, items, 3)
}

func TestTagAndVectorSearch_RequiresBothInputs(t *testing.T) {
	engine := NewEngine(&fakeStore{})
	_, err := engine.TagAndVectorSearch(context.Background(), &Request{
		KBIDs:       []string{"kb1"},
		QueryVector: []float32{0.1},
	})
	require.ErrorIs(t, err, appErr.ErrInvalid)

	_, err = engine.TagAndVectorSearch(context.Background(), &Request{
		KBIDs:   []string{"kb1"},
		Filters: []Filter{{Slot: "tag1", Operator: OpEq, Value: "x"}},
	})
	require.ErrorIs(t, err, appErr.ErrInvalid)
}
