package repo

import (
	"context"
	"fmt"
	"strings"

	"github.com/didi/gendry/builder"
	"github.com/jmoiron/sqlx"
	"github.com/pgvector/pgvector-go"

	"github.com/xxxsen/kbsearch/internal/model"
	"github.com/xxxsen/kbsearch/internal/search"
)

// aliveDocsExpr excludes chunks whose parent document is soft-deleted.
const aliveDocsExpr = "document_id IN (SELECT id FROM documents WHERE deleted_at IS NULL)"

var chunkColumns = []string{
	"id", "kb_id", "document_id", "chunk_index", "content",
	"tag_text1", "tag_text2", "tag_text3", "tag_text4", "tag_text5", "tag_text6", "tag_text7",
	"tag_num1", "tag_num2", "tag_num3", "tag_num4", "tag_num5",
	"tag_date1", "tag_date2",
	"tag_bool1", "tag_bool2", "tag_bool3",
}

type ChunkRepo struct {
	db *sqlx.DB
}

func NewChunkRepo(db *sqlx.DB) *ChunkRepo {
	return &ChunkRepo{db: db}
}

var _ search.ChunkStore = (*ChunkRepo)(nil)

func (r *ChunkRepo) QueryByTags(ctx context.Context, kbIDs []string, clauses []search.Clause, limit int) ([]model.SearchResult, error) {
	where := r.baseWhere(kbIDs, clauses)
	if limit > 0 {
		where["_limit"] = []uint{0, uint(limit)}
	}
	fields := append(append([]string{}, chunkColumns...), "0::float8 AS distance")
	sqlStr, args, err := builder.BuildSelect("chunks", where, fields)
	if err != nil {
		return nil, err
	}
	results := make([]model.SearchResult, 0)
	if err := r.db.SelectContext(ctx, &results, r.db.Rebind(sqlStr), args...); err != nil {
		return nil, err
	}
	return results, nil
}

func (r *ChunkRepo) QueryCandidateIDs(ctx context.Context, kbIDs []string, clauses []search.Clause) ([]string, error) {
	where := r.baseWhere(kbIDs, clauses)
	sqlStr, args, err := builder.BuildSelect("chunks", where, []string{"id"})
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0)
	if err := r.db.SelectContext(ctx, &ids, r.db.Rebind(sqlStr), args...); err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *ChunkRepo) QueryByVector(ctx context.Context, q search.VectorQuery) ([]model.SearchResult, error) {
	sqlStr, args, err := buildVectorSelect(q)
	if err != nil {
		return nil, err
	}
	results := make([]model.SearchResult, 0)
	if err := r.db.SelectContext(ctx, &results, r.db.Rebind(sqlStr), args...); err != nil {
		return nil, err
	}
	return results, nil
}

// buildVectorSelect produces the similarity query with ? placeholders;
// the caller rebinds to the postgres dollar style. The cosine distance
// cutoff is strictly below the threshold.
func buildVectorSelect(q search.VectorQuery) (string, []interface{}, error) {
	vec := pgvector.NewVector(q.Vector)
	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(chunkColumns, ", "))
	sb.WriteString(", (embedding <=> ?) AS distance FROM chunks")
	sb.WriteString(" WHERE enabled = TRUE AND ")
	sb.WriteString(aliveDocsExpr)
	args := []interface{}{vec}
	if len(q.KBIDs) > 0 {
		sb.WriteString(" AND kb_id IN (?)")
		args = append(args, q.KBIDs)
	}
	sb.WriteString(" AND (embedding <=> ?) < ?")
	args = append(args, vec, q.Threshold)
	if len(q.RestrictIDs) > 0 {
		sb.WriteString(" AND id IN (?)")
		args = append(args, q.RestrictIDs)
	}
	sb.WriteString(" ORDER BY distance ASC")
	if q.Limit > 0 {
		sb.WriteString(" LIMIT ?")
		args = append(args, q.Limit)
	}
	sqlStr, expanded, err := sqlx.In(sb.String(), args...)
	if err != nil {
		return "", nil, fmt.Errorf("expand vector query: %w", err)
	}
	return sqlStr, expanded, nil
}

func (r *ChunkRepo) baseWhere(kbIDs []string, clauses []search.Clause) map[string]interface{} {
	where := map[string]interface{}{
		"enabled":       true,
		"_custom_alive": builder.Custom(aliveDocsExpr),
	}
	if len(kbIDs) == 1 {
		where["kb_id"] = kbIDs[0]
	} else if len(kbIDs) > 1 {
		ids := make([]interface{}, 0, len(kbIDs))
		for _, id := range kbIDs {
			ids = append(ids, id)
		}
		where["_custom_kb"] = builder.In{"kb_id": ids}
	}
	for i, cl := range clauses {
		where[fmt.Sprintf("_custom_filter_%d", i)] = builder.Custom(cl.Expr, cl.Args...)
	}
	return where
}
