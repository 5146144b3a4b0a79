package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/kbsearch/internal/pkg/errcode"
	"github.com/xxxsen/kbsearch/internal/pkg/response"
	"github.com/xxxsen/kbsearch/internal/search"
	"github.com/xxxsen/kbsearch/internal/service"
)

type SearchHandler struct {
	searches *service.SearchService
}

func NewSearchHandler(searches *service.SearchService) *SearchHandler {
	return &SearchHandler{searches: searches}
}

type searchRequest struct {
	KBIDs             []string        `json:"kb_ids"`
	TopK              int             `json:"top_k"`
	Query             string          `json:"query"`
	Filters           []search.Filter `json:"filters"`
	QueryVector       []float32       `json:"query_vector"`
	DistanceThreshold float64         `json:"distance_threshold"`
	Rerank            *rerankOptions  `json:"rerank"`
}

type rerankOptions struct {
	Enabled *bool  `json:"enabled"`
	Model   string `json:"model"`
	TopN    int    `json:"top_n"`
}

func (h *SearchHandler) Search(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	if len(req.KBIDs) == 0 {
		response.Error(c, errcode.ErrInvalid, "kb_ids required")
		return
	}
	rerankCfg := search.DefaultRerankConfig()
	if req.Rerank != nil {
		if req.Rerank.Enabled != nil {
			rerankCfg.Enabled = *req.Rerank.Enabled
		}
		rerankCfg.Model = req.Rerank.Model
		rerankCfg.TopN = req.Rerank.TopN
	}
	rerankCfg.RequestID = getRequestID(c)

	results, err := h.searches.Search(c.Request.Context(), &service.SearchRequest{
		KBIDs:             req.KBIDs,
		TopK:              req.TopK,
		Query:             req.Query,
		Filters:           req.Filters,
		QueryVector:       req.QueryVector,
		DistanceThreshold: req.DistanceThreshold,
		Rerank:            rerankCfg,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"items": results, "count": len(results)})
}
