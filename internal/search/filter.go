package search

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

const (
	OpEq          = "eq"
	OpNeq         = "neq"
	OpContains    = "contains"
	OpNotContains = "not_contains"
	OpStartsWith  = "starts_with"
	OpEndsWith    = "ends_with"
	OpGt          = "gt"
	OpGte         = "gte"
	OpLt          = "lt"
	OpLte         = "lte"
	OpBetween     = "between"
)

const dateLayout = "2006-01-02"

// Filter is one structured constraint supplied by the caller. ValueTo is
// only meaningful for the between operator.
type Filter struct {
	Slot     string `json:"slot"`
	Operator string `json:"operator"`
	Value    string `json:"value"`
	ValueTo  string `json:"value_to,omitempty"`
}

// Clause is a compiled storage predicate: a SQL fragment with ? placeholders
// and its bound args. The store combines clauses with AND.
type Clause struct {
	Expr string
	Args []interface{}
}

// CompileFilters turns structured filters into storage clauses. Filters on
// the same slot are merged into a single OR group; distinct slots AND.
// Malformed filters (unknown slot, illegal operator for the slot type,
// unparseable value) are dropped, never an error: one bad filter must not
// abort the whole request.
func CompileFilters(ctx context.Context, filters []Filter) []Clause {
	logger := logutil.GetLogger(ctx)
	type group struct {
		exprs []string
		args  []interface{}
	}
	groups := make(map[string]*group)
	order := make([]string, 0, len(filters))

	for _, f := range filters {
		info, ok := slotTable[f.Slot]
		if !ok {
			logger.Debug("drop filter on unknown slot", zap.String("slot", f.Slot))
			continue
		}
		expr, args, ok := compileOne(info, f)
		if !ok {
			logger.Debug("drop malformed filter",
				zap.String("slot", f.Slot),
				zap.String("operator", f.Operator),
				zap.String("value", f.Value))
			continue
		}
		g, exists := groups[f.Slot]
		if !exists {
			g = &group{}
			groups[f.Slot] = g
			order = append(order, f.Slot)
		}
		g.exprs = append(g.exprs, expr)
		g.args = append(g.args, args...)
	}

	clauses := make([]Clause, 0, len(order))
	for _, slot := range order {
		g := groups[slot]
		expr := g.exprs[0]
		if len(g.exprs) > 1 {
			expr = "(" + strings.Join(g.exprs, " OR ") + ")"
		}
		clauses = append(clauses, Clause{Expr: expr, Args: g.args})
	}
	return clauses
}

func compileOne(info slotInfo, f Filter) (string, []interface{}, bool) {
	switch info.Type {
	case FieldText:
		return compileText(info.Column, f)
	case FieldNumber:
		return compileNumber(info.Column, f)
	case FieldDate:
		return compileDate(info.Column, f)
	case FieldBool:
		return compileBool(info.Column, f)
	}
	return "", nil, false
}

// Text comparisons are case-insensitive.
func compileText(col string, f Filter) (string, []interface{}, bool) {
	v := strings.ToLower(f.Value)
	lowered := "LOWER(" + col + ")"
	switch f.Operator {
	case OpEq:
		return lowered + " = ?", []interface{}{v}, true
	case OpNeq:
		return lowered + " <> ?", []interface{}{v}, true
	case OpContains:
		return lowered + " LIKE ?", []interface{}{"%" + v + "%"}, true
	case OpNotContains:
		return lowered + " NOT LIKE ?", []interface{}{"%" + v + "%"}, true
	case OpStartsWith:
		return lowered + " LIKE ?", []interface{}{v + "%"}, true
	case OpEndsWith:
		return lowered + " LIKE ?", []interface{}{"%" + v}, true
	}
	return "", nil, false
}

func compileNumber(col string, f Filter) (string, []interface{}, bool) {
	lo, err := strconv.ParseFloat(strings.TrimSpace(f.Value), 64)
	if err != nil {
		return "", nil, false
	}
	switch f.Operator {
	case OpEq:
		return col + " = ?", []interface{}{lo}, true
	case OpNeq:
		return col + " <> ?", []interface{}{lo}, true
	case OpGt:
		return col + " > ?", []interface{}{lo}, true
	case OpGte:
		return col + " >= ?", []interface{}{lo}, true
	case OpLt:
		return col + " < ?", []interface{}{lo}, true
	case OpLte:
		return col + " <= ?", []interface{}{lo}, true
	case OpBetween:
		hi, err := strconv.ParseFloat(strings.TrimSpace(f.ValueTo), 64)
		if err != nil {
			// Missing or bad upper bound degrades to equality on the
			// lower bound instead of failing the filter set.
			return col + " = ?", []interface{}{lo}, true
		}
		return col + " BETWEEN ? AND ?", []interface{}{lo, hi}, true
	}
	return "", nil, false
}

func compileDate(col string, f Filter) (string, []interface{}, bool) {
	v := strings.TrimSpace(f.Value)
	if _, err := time.Parse(dateLayout, v); err != nil {
		return "", nil, false
	}
	switch f.Operator {
	case OpEq:
		return col + " = ?", []interface{}{v}, true
	case OpNeq:
		return col + " <> ?", []interface{}{v}, true
	case OpGt:
		return col + " > ?", []interface{}{v}, true
	case OpGte:
		return col + " >= ?", []interface{}{v}, true
	case OpLt:
		return col + " < ?", []interface{}{v}, true
	case OpLte:
		return col + " <= ?", []interface{}{v}, true
	case OpBetween:
		hi := strings.TrimSpace(f.ValueTo)
		if _, err := time.Parse(dateLayout, hi); err != nil {
			return "", nil, false
		}
		return col + " BETWEEN ? AND ?", []interface{}{v, hi}, true
	}
	return "", nil, false
}

func compileBool(col string, f Filter) (string, []interface{}, bool) {
	v, err := strconv.ParseBool(strings.TrimSpace(f.Value))
	if err != nil {
		return "", nil, false
	}
	switch f.Operator {
	case OpEq:
		return col + " = ?", []interface{}{v}, true
	case OpNeq:
		return col + " <> ?", []interface{}{v}, true
	}
	return "", nil, false
}
