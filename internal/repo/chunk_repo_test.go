package repo

import (
	"strings"
	"testing"

	"github.com/didi/gendry/builder"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/kbsearch/internal/search"
)

func TestBaseWhere_BuildsSelectWithExclusions(t *testing.T) {
	r := &ChunkRepo{}
	where := r.baseWhere([]string{"kb1", "kb2"}, []search.Clause{
		{Expr: "LOWER(tag_text1) = ?", Args: []interface{}{"invoice"}},
	})
	sqlStr, args, err := builder.BuildSelect("chunks", where, []string{"id"})
	require.NoError(t, err)
	compact := strings.ReplaceAll(sqlStr, " ", "")
	require.Contains(t, compact, "enabled=?")
	require.Contains(t, compact, "deleted_atISNULL")
	require.Contains(t, compact, "kb_idIN(?,?)")
	require.Contains(t, compact, "LOWER(tag_text1)=?")
	require.Contains(t, args, "invoice")
	require.Contains(t, args, "kb1")
	require.Contains(t, args, "kb2")
}

func TestBaseWhere_SingleKBUsesEquality(t *testing.T) {
	r := &ChunkRepo{}
	where := r.baseWhere([]string{"kb1"}, nil)
	sqlStr, args, err := builder.BuildSelect("chunks", where, []string{"id"})
	require.NoError(t, err)
	require.Contains(t, strings.ReplaceAll(sqlStr, " ", ""), "kb_id=?")
	require.Contains(t, args, "kb1")
}

func TestBuildVectorSelect(t *testing.T) {
	sqlStr, args, err := buildVectorSelect(search.VectorQuery{
		KBIDs:       []string{"kb1", "kb2"},
		Vector:      []float32{0.1, 0.2},
		Threshold:   0.8,
		Limit:       10,
		RestrictIDs: []string{"c1", "c2", "c3"},
	})
	require.NoError(t, err)
	require.Contains(t, sqlStr, "(embedding <=> ?) AS distance")
	require.Contains(t, sqlStr, "enabled = TRUE")
	require.Contains(t, sqlStr, "deleted_at IS NULL")
	require.Contains(t, sqlStr, "kb_id IN (?, ?)")
	require.Contains(t, sqlStr, "(embedding <=> ?) < ?")
	require.Contains(t, sqlStr, "id IN (?, ?, ?)")
	require.True(t, strings.HasSuffix(sqlStr, "ORDER BY distance ASC LIMIT ?"))
	// vector twice, two kb ids, threshold, three restrict ids, limit
	require.Len(t, args, 9)

	rebound := sqlx.Rebind(sqlx.DOLLAR, sqlStr)
	require.NotContains(t, rebound, "?")
	require.Contains(t, rebound, "$9")
}

func TestBuildVectorSelect_NoRestriction(t *testing.T) {
	sqlStr, args, err := buildVectorSelect(search.VectorQuery{
		KBIDs:     []string{"kb1"},
		Vector:    []float32{0.1},
		Threshold: 1.0,
		Limit:     5,
	})
	require.NoError(t, err)
	require.NotContains(t, sqlStr, "id IN")
	require.Len(t, args, 5)
}
