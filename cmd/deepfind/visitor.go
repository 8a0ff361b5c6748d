package main

import (
	"context"
	"io"

	"github.com/deepwalk/deepwalk/internal/expr"
	"github.com/deepwalk/deepwalk/internal/node"
)

// exprVisitor adapts a parsed expression tree into a [traverse.Visitor]:
// one Eval call per visited node, the tree's own And/Or/Comma operators
// already implementing find(1)'s short-circuit and side-effect-ordering
// rules.
type exprVisitor struct {
	root expr.Expr

	stdout      io.Writer
	stderr      io.Writer
	exec        expr.ExecFunc
	disassemble func(ctx context.Context, r io.Reader, w io.Writer) error
	fs          expr.FileOps
}

func (v *exprVisitor) Visit(ctx context.Context, n *node.Node) error {
	env := &expr.Env{
		Node:        n,
		Stdout:      v.stdout,
		Stderr:      v.stderr,
		Exec:        v.exec,
		Disassemble: v.disassemble,
		FS:          v.fs,
	}

	_, err := v.root.Eval(ctx, env)

	return err
}
