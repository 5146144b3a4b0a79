package search

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/kbsearch/internal/model"
)

const (
	defaultRerankCandidates = 100
	defaultRerankKeepTop    = 10
	defaultRerankDocChars   = 4000
	defaultRerankTimeout    = 10 * time.Second
)

// RerankConfig carries per-call overrides. A nil config means rerank with
// defaults.
type RerankConfig struct {
	Enabled bool
	Model   string
	// TopN caps how many scored items the scoring service should return.
	// Zero means the full candidate set.
	TopN      int
	RequestID string
}

func DefaultRerankConfig() *RerankConfig {
	return &RerankConfig{Enabled: true}
}

// RerankerOptions configures the external scoring client.
type RerankerOptions struct {
	Endpoint       string
	APIKey         string
	Model          string
	Timeout        time.Duration
	CandidateLimit int
	KeepTop        int
	DocMaxChars    int
}

// Reranker reorders an already-ranked result list via an external relevance
// scoring service. It fails open: any transport or protocol failure returns
// the input untouched, so reranking can never fail a search.
type Reranker struct {
	opts   RerankerOptions
	client *http.Client
	cache  *expirable.LRU[string, []int]
}

func NewReranker(opts RerankerOptions) *Reranker {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultRerankTimeout
	}
	if opts.CandidateLimit <= 0 {
		opts.CandidateLimit = defaultRerankCandidates
	}
	if opts.KeepTop <= 0 {
		opts.KeepTop = defaultRerankKeepTop
	}
	if opts.DocMaxChars <= 0 {
		opts.DocMaxChars = defaultRerankDocChars
	}
	return &Reranker{
		opts:   opts,
		client: &http.Client{Timeout: opts.Timeout},
		cache:  expirable.NewLRU[string, []int](1024, nil, 10*time.Minute),
	}
}

type rerankRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n"`
}

type rerankResponse struct {
	Results []rerankItem `json:"results"`
}

type rerankItem struct {
	Index          int      `json:"index"`
	RelevanceScore *float64 `json:"relevance_score"`
}

// Rerank returns results reordered by descending relevance. Disabled
// reranking, a blank query or an empty input list pass through unchanged.
// A successful response with no usable scored item returns an empty list:
// the scorer explicitly ranked everything to nothing, which is different
// from a failed call.
func (r *Reranker) Rerank(ctx context.Context, query string, results []model.SearchResult, cfg *RerankConfig) []model.SearchResult {
	if r == nil || r.opts.Endpoint == "" {
		return results
	}
	if cfg == nil {
		cfg = DefaultRerankConfig()
	}
	if !cfg.Enabled || query == "" || len(results) == 0 {
		return results
	}
	logger := logutil.GetLogger(ctx).With(zap.String("request_id", cfg.RequestID))

	candidates := results
	if len(candidates) > r.opts.CandidateLimit {
		candidates = candidates[:r.opts.CandidateLimit]
	}
	modelName := cfg.Model
	if modelName == "" {
		modelName = r.opts.Model
	}
	topN := cfg.TopN
	if topN <= 0 || topN > len(candidates) {
		topN = len(candidates)
	}
	docs := make([]string, 0, len(candidates))
	for _, item := range candidates {
		docs = append(docs, truncateChars(item.Content, r.opts.DocMaxChars))
	}

	key := rerankCacheKey(modelName, query, docs)
	if order, ok := r.cache.Get(key); ok {
		return pickByOrder(candidates, order)
	}

	items, err := r.score(ctx, rerankRequest{
		Model:     modelName,
		Query:     query,
		Documents: docs,
		TopN:      topN,
	})
	if err != nil {
		logger.Warn("rerank failed, falling back to original order", zap.Error(err))
		return results
	}

	order := usableOrder(items, len(candidates), r.opts.KeepTop)
	r.cache.Add(key, order)
	return pickByOrder(candidates, order)
}

func (r *Reranker) score(ctx context.Context, payload rerankRequest) ([]rerankItem, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode rerank request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.opts.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.opts.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.opts.APIKey)
	}
	rsp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call rerank service: %w", err)
	}
	defer rsp.Body.Close()
	if rsp.StatusCode < 200 || rsp.StatusCode >= 300 {
		return nil, fmt.Errorf("rerank service status %d", rsp.StatusCode)
	}
	var decoded rerankResponse
	if err := json.NewDecoder(rsp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode rerank response: %w", err)
	}
	return decoded.Results, nil
}

// usableOrder sorts scored items by descending score, keeps the top keepTop
// and maps them back to candidate indices. Items without a numeric score or
// with an out-of-range index are discarded.
func usableOrder(items []rerankItem, candidateCount, keepTop int) []int {
	usable := make([]rerankItem, 0, len(items))
	for _, item := range items {
		if item.RelevanceScore == nil {
			continue
		}
		if item.Index < 0 || item.Index >= candidateCount {
			continue
		}
		usable = append(usable, item)
	}
	sort.SliceStable(usable, func(i, j int) bool {
		return *usable[i].RelevanceScore > *usable[j].RelevanceScore
	})
	if len(usable) > keepTop {
		usable = usable[:keepTop]
	}
	order := make([]int, 0, len(usable))
	for _, item := range usable {
		order = append(order, item.Index)
	}
	return order
}

func pickByOrder(candidates []model.SearchResult, order []int) []model.SearchResult {
	out := make([]model.SearchResult, 0, len(order))
	for _, idx := range order {
		if idx < 0 || idx >= len(candidates) {
			continue
		}
		out = append(out, candidates[idx])
	}
	return out
}

func rerankCacheKey(model, query string, docs []string) string {
	h := sha256.New()
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write([]byte(query))
	for _, doc := range docs {
		h.Write([]byte{0})
		h.Write([]byte(doc))
	}
	return hex.EncodeToString(h.Sum(nil))
}

func truncateChars(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
