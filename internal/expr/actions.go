package expr

import (
	"context"
	"crypto/md5" //nolint:gosec
	"crypto/sha1" //nolint:gosec
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"hash/adler32"
	"hash/crc32"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"al.essio.dev/pkg/shellescape"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
)

// Describer is implemented by action nodes that can render a
// human-readable trace line. No CLI code path calls it; "--debug"
// prints only each root's resolved path.
type Describer interface {
	Describe(env *Env) string
}

// PrintExpr implements "-print": emits the node's path, always true.
type PrintExpr struct{}

func (PrintExpr) Eval(_ context.Context, env *Env) (bool, error) {
	fmt.Fprintln(env.Stdout, env.Node.Props.GetString("path"))

	return true, nil
}

// EchoExpr implements "echo <template>": substitutes and emits, always
// true.
type EchoExpr struct{ Template string }

func (e EchoExpr) Eval(_ context.Context, env *Env) (bool, error) {
	fmt.Fprintln(env.Stdout, Substitute(e.Template, env))

	return true, nil
}

// PrintfExpr implements "printf <fmt> <exprs>": each sub-expression's
// textual rendering (via its property name) fills one %-verb of a
// C-style format string, always true.
type PrintfExpr struct {
	Format string
	Props  []string // property names substituted in order, one per %-verb
}

func (p PrintfExpr) Eval(_ context.Context, env *Env) (bool, error) {
	args := make([]any, len(p.Props))
	for i, name := range p.Props {
		args[i] = env.Node.Props.GetString(name)
	}

	fmt.Fprintf(env.Stdout, p.Format, args...)

	return true, nil
}

// LsExpr implements "-ls": a line with type glyph, rwx flags, size,
// mtime, path, with humanize-formatted sizes.
type LsExpr struct{}

func (LsExpr) Eval(_ context.Context, env *Env) (bool, error) {
	mode, _, _ := env.Node.Props.Get("mode")
	size, _, _ := env.Node.Props.Get("size")
	mtime, hasTime, _ := env.Node.Props.Get("lastModifiedDate")

	glyph := typeGlyph(env.Node.Props.GetString("type"))
	flags := rwxString(uint32(mode.Long)) //nolint:gosec

	when := "-"
	if hasTime && !mtime.Date.IsZero() {
		when = mtime.Date.Format(time.Stamp)
	}

	fmt.Fprintf(env.Stdout, "%s%s %10s %s %s\n",
		glyph, flags, humanize.Comma(size.Long), when, env.Node.Props.GetString("path"))

	return true, nil
}

func typeGlyph(t string) string {
	switch {
	case strings.HasSuffix(t, "directory"):
		return "d"
	case strings.Contains(t, "archive"):
		return "a"
	case strings.Contains(t, "compressed"):
		return "c"
	default:
		return "-"
	}
}

func rwxString(mode uint32) string {
	const bits = "rwx"

	var b strings.Builder

	for i := 0; i < 9; i++ { //nolint:mnd
		if mode&(1<<uint(8-i)) != 0 {
			b.WriteByte(bits[i%3]) //nolint:mnd
		} else {
			b.WriteByte('-')
		}
	}

	return b.String()
}

// ExecExpr implements "exec <words> ;": substitutes each templated word
// and runs it as a subprocess, result is exit-code-zero.
type ExecExpr struct{ Words []string }

func (e ExecExpr) Eval(ctx context.Context, env *Env) (bool, error) {
	argv := substituteWords(e.Words, env)

	ok, err := env.Exec(ctx, argv, nil)
	if err != nil {
		return false, fmt.Errorf("exec: %w", err)
	}

	return ok, nil
}

// PipeExpr implements "pipe <words> ;": like exec, but pipes
// env.Node's inputStream to the subprocess's stdin.
type PipeExpr struct{ Words []string }

func (p PipeExpr) Eval(ctx context.Context, env *Env) (bool, error) {
	argv := substituteWords(p.Words, env)

	stream, err := attachStream(env)
	if err != nil {
		return false, err
	}

	ok, err := env.Exec(ctx, argv, stream)
	if err != nil {
		return false, fmt.Errorf("pipe: %w", err)
	}

	return ok, nil
}

// Describe renders the substituted argv, shell-quoted for readability
// with shellescape.Quote.
func (e ExecExpr) Describe(env *Env) string { return describeArgv(e.Words, env) }

// Describe renders the substituted argv for the piped variant.
func (p PipeExpr) Describe(env *Env) string { return describeArgv(p.Words, env) }

func describeArgv(words []string, env *Env) string {
	argv := substituteWords(words, env)
	quoted := make([]string, len(argv))

	for i, a := range argv {
		quoted[i] = shellescape.Quote(a)
	}

	return strings.Join(quoted, " ")
}

func substituteWords(words []string, env *Env) []string {
	argv := make([]string, len(words))
	for i, w := range words {
		argv[i] = Substitute(w, env)
	}

	return argv
}

// CatExpr implements "cat": copies inputStream to env.Stdout, always
// true on success.
type CatExpr struct{}

func (CatExpr) Eval(_ context.Context, env *Env) (bool, error) {
	stream, err := attachStream(env)
	if err != nil {
		return false, err
	}

	if _, err := io.Copy(env.Stdout, stream); err != nil {
		return false, fmt.Errorf("cat: %w", err)
	}

	return true, nil
}

// CopyExpr implements "copy [--mkdirs] <template>": writes inputStream
// to the templated destination path, optionally creating missing
// parents. The write goes to a uuid-named sibling first and is renamed
// into place, avoiding a half-written file at the final name.
type CopyExpr struct {
	Template string
	Mkdirs   bool
}

func (c CopyExpr) Eval(_ context.Context, env *Env) (bool, error) {
	dest := Substitute(c.Template, env)

	stream, err := attachStream(env)
	if err != nil {
		return false, err
	}

	if c.Mkdirs {
		if err := env.FS.MkdirAll(parentDir(dest)); err != nil {
			return false, fmt.Errorf("copy --mkdirs: %w", err)
		}
	}

	tmp := dest + "." + uuid.NewString() + ".tmp"
	if err := env.FS.WriteFile(tmp, stream); err != nil {
		return false, fmt.Errorf("copy: %w", err)
	}

	if err := os.Rename(tmp, dest); err != nil {
		return false, fmt.Errorf("copy: rename into place: %w", err)
	}

	return true, nil
}

func parentDir(p string) string {
	i := strings.LastIndexByte(p, '/')
	if i < 0 {
		return "."
	}

	return p[:i]
}

// DigestExpr implements "digest <algo>": consumes inputStream, emits a
// hex digest. Algorithm names are part of this design's public vocabulary,
// so this is stdlib crypto/*, not a third-party hash library.
type DigestExpr struct{ Algo string }

func (d DigestExpr) Eval(_ context.Context, env *Env) (bool, error) {
	h, err := hashFor(d.Algo)
	if err != nil {
		return false, err
	}

	stream, err := attachStream(env)
	if err != nil {
		return false, err
	}

	if _, err := io.Copy(h, stream); err != nil {
		return false, fmt.Errorf("digest: %w", err)
	}

	fmt.Fprintln(env.Stdout, hex.EncodeToString(h.Sum(nil)))

	return true, nil
}

func hashFor(algo string) (hash.Hash, error) {
	switch strings.ToLower(algo) {
	case "md5":
		return md5.New(), nil //nolint:gosec
	case "sha1":
		return sha1.New(), nil //nolint:gosec
	case "sha256":
		return sha256.New(), nil
	default:
		return nil, fmt.Errorf("%w: %s", errUnknownDigest, algo)
	}
}

var errUnknownDigest = errors.New("unknown digest algorithm")

// ChecksumExpr implements "checksum {CRC32,ADLER32}": consumes
// inputStream, emits a hex checksum.
type ChecksumExpr struct{ Algo string }

func (c ChecksumExpr) Eval(_ context.Context, env *Env) (bool, error) {
	var h hash.Hash32

	switch strings.ToUpper(c.Algo) {
	case "CRC32":
		h = crc32.NewIEEE()
	case "ADLER32":
		h = adler32.New()
	default:
		return false, fmt.Errorf("%w: %s", errUnknownChecksum, c.Algo)
	}

	stream, err := attachStream(env)
	if err != nil {
		return false, err
	}

	if _, err := io.Copy(h, stream); err != nil {
		return false, fmt.Errorf("checksum: %w", err)
	}

	fmt.Fprintln(env.Stdout, strconv.FormatUint(uint64(h.Sum32()), 16))

	return true, nil
}

var errUnknownChecksum = errors.New("unknown checksum algorithm")

// DisassembleExpr implements "disassemble": runs an external disassembler
// over inputStream; this just wires the call, the implementation is
// supplied by env.Disassemble.
type DisassembleExpr struct{}

func (DisassembleExpr) Eval(ctx context.Context, env *Env) (bool, error) {
	stream, err := attachStream(env)
	if err != nil {
		return false, err
	}

	if err := env.Disassemble(ctx, stream, env.Stdout); err != nil {
		return false, fmt.Errorf("disassemble: %w", err)
	}

	return true, nil
}

// PruneExpr implements "-prune": sets $PRUNE if the current node carries
// one (directories/archives only), always true.
type PruneExpr struct{}

func (PruneExpr) Eval(_ context.Context, env *Env) (bool, error) {
	env.Node.SetPrune()

	return true, nil
}

// DeleteExpr implements "-delete": removes the node from the
// filesystem (recursive for directories), erroring on archive entries.
type DeleteExpr struct{}

func (DeleteExpr) Eval(_ context.Context, env *Env) (bool, error) {
	t := env.Node.Props.GetString("type")
	onDisk := t == "archive-file" || t == "compressed-file"
	if !onDisk && (strings.Contains(t, "archive-") || strings.Contains(t, "compressed-") || t == "directory-entry") {
		return false, fmt.Errorf("%w: %s", errDeleteInsideContainer, env.Node.Props.GetString("path"))
	}

	recursive := t == "directory"

	if err := env.FS.Remove(env.Node.Props.GetString("path"), recursive); err != nil {
		return false, fmt.Errorf("delete: %w", err)
	}

	return true, nil
}

var errDeleteInsideContainer = errors.New("delete: cannot remove an archive entry")

// attachStream fetches env.Node's "inputStream" property, the single
// point every stream-consuming action goes through, so the rule that at
// most one stream consumer may run per visit is enforced by the
// property map's single-producer-run-once semantics rather than
// duplicated in every action.
func attachStream(env *Env) (io.Reader, error) {
	v, found, err := env.Node.Props.Get("inputStream")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errNoStream, err)
	}
	if !found || v.Stream == nil {
		return nil, errNoStream
	}

	return v.Stream, nil
}

var errNoStream = errors.New("expression-runtime: no inputStream available for this action")
