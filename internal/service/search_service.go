package service

import (
	"context"
	"fmt"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/kbsearch/internal/model"
	appErr "github.com/xxxsen/kbsearch/internal/pkg/errors"
	"github.com/xxxsen/kbsearch/internal/search"
)

// SearchRequest is the service-level search input. Which retrieval mode
// runs is decided by which of Filters / QueryVector are present.
type SearchRequest struct {
	KBIDs             []string
	TopK              int
	Query             string
	Filters           []search.Filter
	QueryVector       []float32
	DistanceThreshold float64
	Rerank            *search.RerankConfig
}

type SearchService struct {
	engine   *search.Engine
	reranker *search.Reranker
}

func NewSearchService(engine *search.Engine, reranker *search.Reranker) *SearchService {
	return &SearchService{engine: engine, reranker: reranker}
}

func (s *SearchService) Search(ctx context.Context, req *SearchRequest) ([]model.SearchResult, error) {
	logger := logutil.GetLogger(ctx).With(
		zap.Int("kb_count", len(req.KBIDs)),
		zap.Int("top_k", req.TopK),
		zap.Int("filter_count", len(req.Filters)),
		zap.Bool("has_vector", len(req.QueryVector) > 0),
	)
	start := time.Now()

	engineReq := &search.Request{
		KBIDs:             req.KBIDs,
		TopK:              req.TopK,
		Filters:           req.Filters,
		QueryVector:       req.QueryVector,
		DistanceThreshold: req.DistanceThreshold,
	}
	var results []model.SearchResult
	var err error
	switch {
	case len(req.Filters) > 0 && len(req.QueryVector) > 0:
		results, err = s.engine.TagAndVectorSearch(ctx, engineReq)
	case len(req.QueryVector) > 0:
		results, err = s.engine.VectorOnlySearch(ctx, engineReq)
	case len(req.Filters) > 0:
		results, err = s.engine.TagOnlySearch(ctx, engineReq)
	default:
		return nil, fmt.Errorf("%w: filters or query vector required", appErr.ErrInvalid)
	}
	if err != nil {
		logger.Error("search failed", zap.Error(err))
		return nil, err
	}

	if req.Query != "" {
		results = s.reranker.Rerank(ctx, req.Query, results, req.Rerank)
	}
	logger.Debug("search done",
		zap.Int("result_count", len(results)),
		zap.Duration("cost", time.Since(start)))
	return results, nil
}
