// SPDX-License-Identifier: Apache-2.0

// Package query implements Butane's Query Composition Engine (spec §4.4):
// a typed algebra of boolean expressions and SELECT/UPDATE/DELETE plans
// that compile to parametrized SQL per backend, including subquery
// emulation for backends that lack subquery support.
package query

import "github.com/butaneorm/butane/pkg/value"

// ExprKind discriminates the Expr variants.
type ExprKind int

const (
	ExprColumn ExprKind = iota
	ExprVal
	ExprPlaceholder
	ExprCondition
)

// Expr is a scalar expression appearing on the right-hand side of a
// BoolExpr comparison.
type Expr struct {
	Kind      ExprKind
	Column    string
	Val       value.SqlVal
	Condition *BoolExpr
}

func Column(name string) Expr       { return Expr{Kind: ExprColumn, Column: name} }
func Val(v value.SqlVal) Expr       { return Expr{Kind: ExprVal, Val: v} }
func Placeholder() Expr             { return Expr{Kind: ExprPlaceholder} }
func Condition(b BoolExpr) Expr     { return Expr{Kind: ExprCondition, Condition: &b} }

// BoolExprKind discriminates the BoolExpr variants (spec §3).
type BoolExprKind int

const (
	ExprTrue BoolExprKind = iota
	ExprEq
	ExprNe
	ExprLt
	ExprLe
	ExprGt
	ExprGe
	ExprLike
	ExprIn
	ExprAnd
	ExprOr
	ExprNot
	ExprAllOf
	ExprSubquery
	ExprSubqueryJoin
)

// JoinKind is the kind of join used by SubqueryJoin.joins (spec §4.4
// "Many-to-many containment").
type JoinKind int

const (
	JoinInner JoinKind = iota
)

// Join is one join step in a SubqueryJoin's join chain.
type Join struct {
	Kind      JoinKind
	JoinTable string
	Col1      string
	Col2      string
}

// BoolExpr is the algebraic boolean expression tree (spec §3).
type BoolExpr struct {
	Kind BoolExprKind

	// Eq, Ne, Lt, Le, Gt, Ge, Like
	Col  string
	Expr Expr

	// In
	InVals []value.SqlVal

	// And, Or
	Left, Right *BoolExpr

	// Not
	Operand *BoolExpr

	// AllOf
	All []BoolExpr

	// Subquery / SubqueryJoin
	Tbl2    string
	Tbl2Col string
	Col2    string
	Joins   []Join
	Inner   *BoolExpr
}

func True() BoolExpr { return BoolExpr{Kind: ExprTrue} }

func Eq(col string, e Expr) BoolExpr   { return BoolExpr{Kind: ExprEq, Col: col, Expr: e} }
func Ne(col string, e Expr) BoolExpr   { return BoolExpr{Kind: ExprNe, Col: col, Expr: e} }
func Lt(col string, e Expr) BoolExpr   { return BoolExpr{Kind: ExprLt, Col: col, Expr: e} }
func Le(col string, e Expr) BoolExpr   { return BoolExpr{Kind: ExprLe, Col: col, Expr: e} }
func Gt(col string, e Expr) BoolExpr   { return BoolExpr{Kind: ExprGt, Col: col, Expr: e} }
func Ge(col string, e Expr) BoolExpr   { return BoolExpr{Kind: ExprGe, Col: col, Expr: e} }
func Like(col string, e Expr) BoolExpr { return BoolExpr{Kind: ExprLike, Col: col, Expr: e} }

func In(col string, vals []value.SqlVal) BoolExpr {
	return BoolExpr{Kind: ExprIn, Col: col, InVals: vals}
}

func And(a, b BoolExpr) BoolExpr { return BoolExpr{Kind: ExprAnd, Left: &a, Right: &b} }
func Or(a, b BoolExpr) BoolExpr  { return BoolExpr{Kind: ExprOr, Left: &a, Right: &b} }
func Not(a BoolExpr) BoolExpr    { return BoolExpr{Kind: ExprNot, Operand: &a} }
func AllOf(exprs []BoolExpr) BoolExpr { return BoolExpr{Kind: ExprAllOf, All: exprs} }

// Subquery compiles col.matches(inner) (foreign-key traversal, spec §4.4):
// col is an FK column on the outer table, tbl2/tbl2Col is the referenced
// table and its PK.
func Subquery(col, tbl2, tbl2Col string, inner BoolExpr) BoolExpr {
	return BoolExpr{Kind: ExprSubquery, Col: col, Tbl2: tbl2, Tbl2Col: tbl2Col, Inner: &inner}
}

// SubqueryJoin compiles many-to-many containment (spec §4.4):
// tags.contains(x).
func SubqueryJoin(col, tbl2, col2 string, joins []Join, inner BoolExpr) BoolExpr {
	return BoolExpr{Kind: ExprSubqueryJoin, Col: col, Tbl2: tbl2, Col2: col2, Joins: joins, Inner: &inner}
}

// Direction is an ORDER BY direction.
type Direction int

const (
	Asc Direction = iota
	Desc
)

// OrderClause is one (column, direction) pair in a Query's ORDER BY list.
type OrderClause struct {
	Column    string
	Direction Direction
}

// Query is a SELECT/UPDATE/DELETE plan over a single table (spec §3/§4.4).
type Query struct {
	Table      string
	FilterExpr *BoolExpr
	Limit      *int64
	Offset     *int64
	Order      []OrderClause
	Cols       []string
}

func New(table string, cols []string) *Query {
	return &Query{Table: table, Cols: cols}
}

func (q *Query) Filter(expr BoolExpr) *Query {
	q.FilterExpr = &expr
	return q
}

func (q *Query) OrderAsc(col string) *Query {
	q.Order = append(q.Order, OrderClause{Column: col, Direction: Asc})
	return q
}

func (q *Query) OrderDesc(col string) *Query {
	q.Order = append(q.Order, OrderClause{Column: col, Direction: Desc})
	return q
}

func (q *Query) WithLimit(n int64) *Query {
	q.Limit = &n
	return q
}

func (q *Query) WithOffset(n int64) *Query {
	q.Offset = &n
	return q
}
