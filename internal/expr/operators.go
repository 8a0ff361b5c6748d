package expr

import "context"

// ConstExpr is a literal true/false leaf node.
type ConstExpr bool

func (c ConstExpr) Eval(_ context.Context, _ *Env) (bool, error) { return bool(c), nil }

// NotExpr negates its single operand.
type NotExpr struct{ X Expr }

func (n NotExpr) Eval(ctx context.Context, env *Env) (bool, error) {
	v, err := n.X.Eval(ctx, env)
	if err != nil {
		return false, err
	}

	return !v, nil
}

// AndExpr is short-circuit conjunction: the right operand is never
// evaluated once the left is false.
type AndExpr struct{ L, R Expr }

func (a AndExpr) Eval(ctx context.Context, env *Env) (bool, error) {
	lv, err := a.L.Eval(ctx, env)
	if err != nil || !lv {
		return false, err
	}

	return a.R.Eval(ctx, env)
}

// OrExpr is short-circuit disjunction: the right operand is never
// evaluated once the left is true.
type OrExpr struct{ L, R Expr }

func (o OrExpr) Eval(ctx context.Context, env *Env) (bool, error) {
	lv, err := o.L.Eval(ctx, env)
	if err != nil || lv {
		return lv, err
	}

	return o.R.Eval(ctx, env)
}

// CommaExpr evaluates the left operand for its side effects and
// discards the result, returning the right operand's result: left first,
// result of right.
type CommaExpr struct{ L, R Expr }

func (c CommaExpr) Eval(ctx context.Context, env *Env) (bool, error) {
	if _, err := c.L.Eval(ctx, env); err != nil {
		return false, err
	}

	return c.R.Eval(ctx, env)
}
