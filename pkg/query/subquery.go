// SPDX-License-Identifier: Apache-2.0

package query

// rewriteSubqueries is the compile-time check for the two-phase subquery
// rewrite (spec §4.4). It returns q unchanged when the backend supports
// subqueries or the filter holds no Subquery/SubqueryJoin node, and
// otherwise returns errSubqueryNeedsPrepass; it does not rewrite anything
// itself.
//
// The rewrite to an IN list needs a live connection to evaluate the inner
// query, so it lives in RewriteSubqueries, driven by a SubqueryResolver
// the caller supplies. No package in this module implements
// SubqueryResolver or calls RewriteSubqueries, and compileBool does not
// compile Subquery/SubqueryJoin nodes to nested SELECTs on any backend:
// a filter that still holds such a node fails to compile.
func (c *Compiler) rewriteSubqueries(q *Query) (*Query, error) {
	if q.FilterExpr == nil {
		return q, nil
	}
	if c.be.SupportsSubqueries() {
		return q, nil
	}
	if containsSubquery(*q.FilterExpr) {
		return nil, errSubqueryNeedsPrepass
	}
	return q, nil
}

func containsSubquery(b BoolExpr) bool {
	switch b.Kind {
	case ExprSubquery, ExprSubqueryJoin:
		return true
	case ExprAnd, ExprOr:
		return containsSubquery(*b.Left) || containsSubquery(*b.Right)
	case ExprNot:
		return containsSubquery(*b.Operand)
	case ExprAllOf:
		for _, e := range b.All {
			if containsSubquery(e) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// errSubqueryNeedsPrepass is returned by CompileSelect/CompileDelete when a
// filter contains a Subquery/SubqueryJoin node and the backend cannot
// compile it directly; callers must use RewriteSubqueries first.
var errSubqueryNeedsPrepass = subqueryPrepassError{}

type subqueryPrepassError struct{}

func (subqueryPrepassError) Error() string {
	return "query: filter contains a subquery node that requires a two-phase rewrite on this backend; call RewriteSubqueries first"
}

// IsSubqueryPrepassError reports whether err is the sentinel returned when a
// filter needs RewriteSubqueries applied before compilation.
func IsSubqueryPrepassError(err error) bool {
	_, ok := err.(subqueryPrepassError)
	return ok
}

// SubqueryResolver evaluates the inner BoolExpr of a Subquery/SubqueryJoin
// node against live data and returns the set of values the outer column
// must match. Implemented by pkg/conn, which has a live connection.
type SubqueryResolver interface {
	ResolveSubqueryValues(outerCol string, node BoolExpr) (BoolExpr, error)
}

// RewriteSubqueries walks q's filter and replaces every Subquery/
// SubqueryJoin node with the In() expression resolver produces, for
// backends that can't compile nested SELECTs directly (spec §4.4 two-phase
// subquery rewrite). Safe to call unconditionally; it's a no-op when the
// filter has no such node.
func RewriteSubqueries(q *Query, resolver SubqueryResolver) (*Query, error) {
	if q.FilterExpr == nil {
		return q, nil
	}
	rewritten, err := rewriteNode(*q.FilterExpr, resolver)
	if err != nil {
		return nil, err
	}
	out := *q
	out.FilterExpr = &rewritten
	return &out, nil
}

func rewriteNode(b BoolExpr, resolver SubqueryResolver) (BoolExpr, error) {
	switch b.Kind {
	case ExprSubquery, ExprSubqueryJoin:
		return resolver.ResolveSubqueryValues(b.Col, b)
	case ExprAnd:
		l, err := rewriteNode(*b.Left, resolver)
		if err != nil {
			return BoolExpr{}, err
		}
		r, err := rewriteNode(*b.Right, resolver)
		if err != nil {
			return BoolExpr{}, err
		}
		return And(l, r), nil
	case ExprOr:
		l, err := rewriteNode(*b.Left, resolver)
		if err != nil {
			return BoolExpr{}, err
		}
		r, err := rewriteNode(*b.Right, resolver)
		if err != nil {
			return BoolExpr{}, err
		}
		return Or(l, r), nil
	case ExprNot:
		inner, err := rewriteNode(*b.Operand, resolver)
		if err != nil {
			return BoolExpr{}, err
		}
		return Not(inner), nil
	case ExprAllOf:
		out := make([]BoolExpr, len(b.All))
		for i, e := range b.All {
			r, err := rewriteNode(e, resolver)
			if err != nil {
				return BoolExpr{}, err
			}
			out[i] = r
		}
		return AllOf(out), nil
	default:
		return b, nil
	}
}
