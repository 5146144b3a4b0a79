package search

import (
	"context"
	"fmt"
	"sort"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xxxsen/kbsearch/internal/model"
	appErr "github.com/xxxsen/kbsearch/internal/pkg/errors"
)

const defaultTopK = 10

// VectorQuery bundles the parameters of one similarity query. RestrictIDs,
// when non-empty, limits the scan to that candidate chunk set (hybrid
// stage 2).
type VectorQuery struct {
	KBIDs       []string
	Vector      []float32
	Threshold   float64
	Limit       int
	RestrictIDs []string
}

// ChunkStore is the read-only chunk query capability the engine runs on.
// Every implementation must exclude disabled chunks and chunks whose parent
// document is soft-deleted.
type ChunkStore interface {
	QueryByTags(ctx context.Context, kbIDs []string, clauses []Clause, limit int) ([]model.SearchResult, error)
	QueryCandidateIDs(ctx context.Context, kbIDs []string, clauses []Clause) ([]string, error)
	QueryByVector(ctx context.Context, q VectorQuery) ([]model.SearchResult, error)
}

// Request is one retrieval call. It is built per call and never persisted.
type Request struct {
	KBIDs   []string
	TopK    int
	Filters []Filter
	// QueryVector is a pre-computed embedding; generating it is the
	// caller's concern.
	QueryVector []float32
	// DistanceThreshold overrides the strategy default when > 0.
	DistanceThreshold float64
}

type Engine struct {
	store ChunkStore
}

func NewEngine(store ChunkStore) *Engine {
	return &Engine{store: store}
}

// TagOnlySearch retrieves chunks by structured filters alone. Results carry
// the 0 distance sentinel and no cross-partition ordering guarantee.
func (e *Engine) TagOnlySearch(ctx context.Context, req *Request) ([]model.SearchResult, error) {
	if len(req.KBIDs) == 0 {
		return nil, fmt.Errorf("%w: knowledge base ids required", appErr.ErrInvalid)
	}
	if len(req.Filters) == 0 {
		return nil, fmt.Errorf("%w: tag filters required", appErr.ErrInvalid)
	}
	topK := req.TopK
	if topK <= 0 {
		topK = defaultTopK
	}
	clauses := CompileFilters(ctx, req.Filters)
	strategy := SelectStrategy(len(req.KBIDs), topK)
	if !strategy.UseParallel {
		return e.store.QueryByTags(ctx, req.KBIDs, clauses, topK)
	}
	merged, err := e.fanOut(ctx, req.KBIDs, func(ctx context.Context, kbID string) ([]model.SearchResult, error) {
		return e.store.QueryByTags(ctx, []string{kbID}, clauses, strategy.ParallelLimit)
	})
	if err != nil {
		return nil, err
	}
	if len(merged) > topK {
		merged = merged[:topK]
	}
	return merged, nil
}

// VectorOnlySearch retrieves chunks by embedding similarity, ordered by
// ascending distance. Only distances strictly below the threshold qualify.
func (e *Engine) VectorOnlySearch(ctx context.Context, req *Request) ([]model.SearchResult, error) {
	if len(req.KBIDs) == 0 {
		return nil, fmt.Errorf("%w: knowledge base ids required", appErr.ErrInvalid)
	}
	if len(req.QueryVector) == 0 {
		return nil, fmt.Errorf("%w: query vector required", appErr.ErrInvalid)
	}
	topK := req.TopK
	if topK <= 0 {
		topK = defaultTopK
	}
	strategy := SelectStrategy(len(req.KBIDs), topK)
	threshold, err := resolveThreshold(req, strategy)
	if err != nil {
		return nil, err
	}
	return e.vectorSearch(ctx, req.KBIDs, req.QueryVector, threshold, topK, strategy, nil)
}

// TagAndVectorSearch narrows by structured filters first, then runs the
// similarity query restricted to the surviving candidate set. Filters are
// expected to be highly selective, so filtering first minimizes distance
// computations.
func (e *Engine) TagAndVectorSearch(ctx context.Context, req *Request) ([]model.SearchResult, error) {
	if len(req.KBIDs) == 0 {
		return nil, fmt.Errorf("%w: knowledge base ids required", appErr.ErrInvalid)
	}
	if len(req.Filters) == 0 {
		return nil, fmt.Errorf("%w: tag filters required", appErr.ErrInvalid)
	}
	if len(req.QueryVector) == 0 {
		return nil, fmt.Errorf("%w: query vector required", appErr.ErrInvalid)
	}
	topK := req.TopK
	if topK <= 0 {
		topK = defaultTopK
	}
	clauses := CompileFilters(ctx, req.Filters)
	candidates, err := e.store.QueryCandidateIDs(ctx, req.KBIDs, clauses)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		logutil.GetLogger(ctx).Debug("no tag candidates, skipping vector stage")
		return []model.SearchResult{}, nil
	}
	strategy := SelectStrategy(len(req.KBIDs), topK)
	threshold, err := resolveThreshold(req, strategy)
	if err != nil {
		return nil, err
	}
	return e.vectorSearch(ctx, req.KBIDs, req.QueryVector, threshold, topK, strategy, candidates)
}

func (e *Engine) vectorSearch(ctx context.Context, kbIDs []string, vec []float32, threshold float64, topK int, strategy Strategy, restrict []string) ([]model.SearchResult, error) {
	if !strategy.UseParallel {
		return e.store.QueryByVector(ctx, VectorQuery{
			KBIDs:       kbIDs,
			Vector:      vec,
			Threshold:   threshold,
			Limit:       topK,
			RestrictIDs: restrict,
		})
	}
	merged, err := e.fanOut(ctx, kbIDs, func(ctx context.Context, kbID string) ([]model.SearchResult, error) {
		return e.store.QueryByVector(ctx, VectorQuery{
			KBIDs:       []string{kbID},
			Vector:      vec,
			Threshold:   threshold,
			Limit:       strategy.ParallelLimit,
			RestrictIDs: restrict,
		})
	})
	if err != nil {
		return nil, err
	}
	// Local per-partition ordering does not imply global ordering.
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Distance < merged[j].Distance
	})
	if len(merged) > topK {
		merged = merged[:topK]
	}
	return merged, nil
}

// fanOut runs one query per knowledge base concurrently and concatenates
// the partial lists once every query finished. Any partition failure fails
// the whole call: partial results would understate relevance coverage.
func (e *Engine) fanOut(ctx context.Context, kbIDs []string, query func(ctx context.Context, kbID string) ([]model.SearchResult, error)) ([]model.SearchResult, error) {
	partials := make([][]model.SearchResult, len(kbIDs))
	g, gctx := errgroup.WithContext(ctx)
	for i, kbID := range kbIDs {
		g.Go(func() error {
			items, err := query(gctx, kbID)
			if err != nil {
				logutil.GetLogger(gctx).Error("partition query failed", zap.String("kb_id", kbID), zap.Error(err))
				return err
			}
			partials[i] = items
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	merged := make([]model.SearchResult, 0)
	for _, items := range partials {
		merged = append(merged, items...)
	}
	return merged, nil
}

func resolveThreshold(req *Request, strategy Strategy) (float64, error) {
	threshold := req.DistanceThreshold
	if threshold == 0 {
		threshold = strategy.DistanceThreshold
	}
	if threshold <= 0 {
		return 0, fmt.Errorf("%w: distance threshold required", appErr.ErrInvalid)
	}
	return threshold, nil
}
