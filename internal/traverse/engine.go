// Package traverse implements the recursive nested-container traversal
// engine. It classifies each visited resource via internal/format,
// maintains per-node [node.PropertyMap]s via internal/node, and
// dispatches to a caller-supplied [Visitor] — either the expression
// evaluator or the pattern scanner.
package traverse

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/deepwalk/deepwalk/internal/format"
	"github.com/deepwalk/deepwalk/internal/node"
	"github.com/deepwalk/deepwalk/internal/resource"
	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/sync/semaphore"
)

// Visitor is implemented by both the expression evaluator and the
// pattern scanner. Visit may set n's prune flag to skip expanding this
// node's children (directories/archives only), and/or return a fatal
// error that unwinds the whole walk.
type Visitor interface {
	Visit(ctx context.Context, n *node.Node) error
}

// ErrorPolicy decides what happens to a recoverable, per-child failure.
// The default policy re-throws, terminating traversal; CLI callers
// install a policy that prints and continues.
type ErrorPolicy func(path string, err error) error

// DefaultErrorPolicy re-raises every recoverable error, terminating
// traversal.
func DefaultErrorPolicy(_ string, err error) error { return err }

// ContinueErrorPolicy logs via report and swallows the error, matching
// the CLI handlers' "print and continue" policy.
func ContinueErrorPolicy(report func(path string, err error)) ErrorPolicy {
	return func(path string, err error) error {
		report(path, err)

		return nil
	}
}

// Metrics are the engine's counters, surfaced to the diagnostics
// dashboard.
type Metrics struct {
	OpenArchives      atomic.Int64
	TotalOpened       atomic.Int64
	TotalClosed       atomic.Int64
	ArchiveCacheHits  atomic.Int64
	ArchiveCacheMiss  atomic.Int64
	TotalExtractBytes atomic.Int64
	TotalExtractTime  atomic.Int64
}

// Engine is the stateless (across calls) traversal driver. A single
// Engine may be shared by concurrent callers provided they do not share
// a PropertyMap, Visitor, or archive writer.
type Engine struct {
	MinDepth         int
	MaxDepth         int // negative => do nothing,
	DescendantsFirst bool
	LookInto         func(formatName, path string) bool
	ErrorPolicy      ErrorPolicy
	Escape           map[rune]rune
	Comparator       resource.Comparator

	StreamingThreshold int64 // not consulted: zip archives are always buffered whole, tar entries always streamed

	archiveCache *ttlcache.Cache[string, *cachedArchive]
	fdLimiter    *semaphore.Weighted
	seen         *seenSet

	Metrics Metrics
}

// NewEngine returns an [Engine] with sane defaults: unlimited depth, a
// 64-entry/5-minute archive reader cache, and an fd budget of 256
// concurrently open archives.
func NewEngine() *Engine {
	e := &Engine{
		MaxDepth:    -2, // sentinel meaning "unset"; resolved to unlimited below
		LookInto:    func(_, _ string) bool { return true },
		ErrorPolicy: DefaultErrorPolicy,
		seen:        newSeenSet(),
	}
	e.MaxDepth = unlimitedDepth
	e.archiveCache = newArchiveCache(e, 64, 5*time.Minute) //nolint:mnd
	e.fdLimiter = semaphore.NewWeighted(256)               //nolint:mnd

	return e
}

// SetFDBudget replaces the engine's concurrently-open-archive budget.
// Callers derive n from the process's actual file descriptor rlimit
// rather than trusting the NewEngine default on resource-constrained
// hosts.
func (e *Engine) SetFDBudget(n int64) {
	e.fdLimiter = semaphore.NewWeighted(n)
}

// unlimitedDepth is the MaxDepth sentinel meaning "no limit".
const unlimitedDepth = 1<<31 - 1

// seenSet guards against re-descending a physical path the engine
// itself already expanded: each physical path component is visited at
// most once, and symlinks are not followed. Keyed by a fast non-crypto
// hash (xxhash) of the realpath, since this is a membership guard, not a
// security boundary.
type seenSet struct {
	mu sync.Mutex
	m  map[uint64]struct{}
}

func newSeenSet() *seenSet { return &seenSet{m: make(map[uint64]struct{})} }

func (s *seenSet) tryMark(path string) bool {
	h := xxhash.Sum64String(path)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.m[h]; dup {
		return false
	}
	s.m[h] = struct{}{}

	return true
}

// Scan is the root entry point for a filesystem path. It classifies
// res, builds the root PropertyMap, and recurses.
func (e *Engine) Scan(ctx context.Context, path string, res resource.Resource, visitor Visitor) error {
	if e.MaxDepth < 0 {
		return nil // negative MaxDepth means do nothing
	}

	parent := node.Root()

	return e.visitResource(ctx, path, path, 0, parent, res, visitor)
}

// ScanStream is the entry point for an already-open byte stream with
// inherited properties, used for archive entries and decompressed
// payloads.
func (e *Engine) ScanStream(ctx context.Context, name string, r io.Reader, depth int, parent *node.PropertyMap, visitor Visitor) error {
	return e.visitStream(ctx, name, r, depth, parent, visitor)
}

// reportRecoverable routes a per-child failure through the configured
// ErrorPolicy, wrapping it with path context first: every boundary that
// adds context wraps the error it passes up.
func (e *Engine) reportRecoverable(path string, err error) error {
	wrapped := fmt.Errorf("%s: %w", path, err)

	return e.ErrorPolicy(path, wrapped)
}

// errStop is not recognised anywhere in the engine: a Visitor that
// returns it gets it back from Scan like any other error. Subtree
// expansion is skipped through the node's prune flag instead.
var errStop = errors.New("traverse: stop requested")
