// Package expr implements the expression tree of typed boolean
// predicates and side-effecting actions evaluated over a
// [node.PropertyMap]. The tree is immutable after construction;
// evaluation is referentially transparent except for action nodes,
// which perform I/O.
package expr

import (
	"context"
	"io"

	"github.com/deepwalk/deepwalk/internal/node"
)

// Expr is one node of the expression tree. And/Or/Comma are responsible
// for their own short-circuiting: a leaf Expr can assume
// Eval is only ever called when its result is actually needed.
type Expr interface {
	Eval(ctx context.Context, env *Env) (bool, error)
}

// Env is everything an Eval call needs beyond the current node: the
// node itself, the output streams actions write to, and the few
// ambient collaborators (exec, disassemble, filesystem) the action table
// delegates to.
// One Env is built per visited node and discarded with it.
type Env struct {
	Node *node.Node

	Stdout io.Writer
	Stderr io.Writer

	// Exec runs an external command with argv already template-substituted,
	// piping stdin from r when non-nil ("pipe" vs "exec"). The actual
	// subprocess mechanics are left to the caller's ExecFunc implementation.
	Exec ExecFunc

	// Disassemble runs an external class-file disassembler over r, writing
	// its output to Stdout. No implementation ships in this module; a
	// caller that needs it supplies its own.
	Disassemble func(ctx context.Context, r io.Reader, w io.Writer) error

	// FS abstracts the filesystem mutations "copy" and "delete" perform,
	// swapped out in tests.
	FS FileOps
}

// ExecFunc spawns argv[0] with argv[1:], optionally piping stdin from r
// (nil for "exec", non-nil for "pipe"), and reports whether it exited
// zero.
type ExecFunc func(ctx context.Context, argv []string, stdin io.Reader) (exitZero bool, err error)

// FileOps is the filesystem surface "copy"/"delete" need, kept narrow
// and mockable. It is not the only route to the filesystem: "copy"
// with a rename-into-place target calls os.Rename directly.
type FileOps interface {
	MkdirAll(path string) error
	WriteFile(path string, r io.Reader) error
	Remove(path string, recursive bool) error
}
