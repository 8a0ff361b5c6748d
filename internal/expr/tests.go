package expr

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

// PropBoolExpr is a property-boolean test: true iff the named property
// is truthy. Missing properties are false, not an error.
type PropBoolExpr struct{ Name string }

func (p PropBoolExpr) Eval(_ context.Context, env *Env) (bool, error) {
	return env.Node.Props.GetBool(p.Name), nil
}

// Coerce converts a property's textual rendering into the value a
// [PredicateExpr] actually tests, e.g. "-readable"/"-writable"/
// "-executable" coerce the numeric permission bits into a bool.
type Coerce func(env *Env) (bool, error)

// PredicateExpr wraps a predicate-against-property test parameterised by
// a predicate and a type coercion. Concrete instances (-readable,
// -writable, -executable) are built via the constructors below.
type PredicateExpr struct {
	Name string
	Fn   Coerce
}

func (p PredicateExpr) Eval(_ context.Context, env *Env) (bool, error) {
	return p.Fn(env)
}

// Readable returns a [PredicateExpr] true iff the node's "mode" property
// (numeric permission bits, read as a long) carries the given bit.
func Readable() PredicateExpr  { return permPredicate("readable", 0o444) }
func Writable() PredicateExpr  { return permPredicate("writable", 0o222) }
func Executable() PredicateExpr { return permPredicate("executable", 0o111) }

func permPredicate(name string, mask uint32) PredicateExpr {
	return PredicateExpr{
		Name: name,
		Fn: func(env *Env) (bool, error) {
			raw, found, err := env.Node.Props.Get("mode")
			if err != nil {
				return false, fmt.Errorf("%s: %w", name, err)
			}
			if !found {
				return false, nil
			}

			mode := uint32(raw.Long) //nolint:gosec

			return mode&mask != 0, nil
		},
	}
}

// GlobExpr is a glob test over a string property (`-name`, `-path`,
// `-type`), built on github.com/bmatcuk/doublestar/v4 for `**`/alternation
// glob semantics.
type GlobExpr struct {
	Property string
	Pattern  string
}

func (g GlobExpr) Eval(_ context.Context, env *Env) (bool, error) {
	subject := env.Node.Props.GetString(g.Property)

	ok, err := doublestar.Match(g.Pattern, subject)
	if err != nil {
		return false, fmt.Errorf("glob %q: %w", g.Pattern, err)
	}

	return ok, nil
}

// SizeUnit scales a "-size" literal's numeric part.
type SizeUnit int64

const (
	SizeBytes SizeUnit = 1
	SizeKilo  SizeUnit = 1 << 10
	SizeMega  SizeUnit = 1 << 20
	SizeGiga  SizeUnit = 1 << 30
)

// Cmp is the three comparator modes "-size [+-]N" and "-mtime"/"-mmin
// ±N" share.
type Cmp int

const (
	CmpExact Cmp = iota
	CmpGreater
	CmpLess
)

// SizeExpr implements "-size [+-]N[KMG]?": Cmp against env.Node's "size"
// property, scaled by Unit.
type SizeExpr struct {
	Cmp   Cmp
	N     int64
	Unit  SizeUnit
}

func (s SizeExpr) Eval(_ context.Context, env *Env) (bool, error) {
	raw, found, err := env.Node.Props.Get("size")
	if err != nil {
		return false, fmt.Errorf("size: %w", err)
	}
	if !found {
		return false, nil
	}

	threshold := s.N * int64(s.Unit)

	return compare(s.Cmp, raw.Long, threshold), nil
}

// AgeUnit is the granularity a "-mtime"/"-mmin" literal counts in.
type AgeUnit int

const (
	AgeDays    AgeUnit = 1
	AgeMinutes AgeUnit = 2
)

// AgeExpr implements "-mtime ±N" / "-mmin ±N": compares the age of the
// node's "lastModifiedDate" property (now - mtime) against N units.
type AgeExpr struct {
	Cmp  Cmp
	N    int64
	Unit AgeUnit
	Now  func() time.Time // nil => time.Now
}

func (a AgeExpr) Eval(_ context.Context, env *Env) (bool, error) {
	raw, found, err := env.Node.Props.Get("lastModifiedDate")
	if err != nil {
		return false, fmt.Errorf("mtime: %w", err)
	}
	if !found || raw.Date.IsZero() {
		return false, nil
	}

	now := time.Now
	if a.Now != nil {
		now = a.Now
	}

	age := now().Sub(raw.Date)

	var ageUnits int64

	switch a.Unit {
	case AgeMinutes:
		ageUnits = int64(age / time.Minute)
	default:
		ageUnits = int64(age / (24 * time.Hour)) //nolint:mnd
	}

	return compare(a.Cmp, ageUnits, a.N), nil
}

func compare(c Cmp, actual, threshold int64) bool {
	switch c {
	case CmpGreater:
		return actual > threshold
	case CmpLess:
		return actual < threshold
	default:
		return actual == threshold
	}
}

// ParseSizeLiteral parses a "-size" argument of the form "[+-]N[KMG]?",
// returning the Cmp, the unscaled N and the [SizeUnit] separately so
// callers (the CLI's expression parser, or a test) can build a
// [SizeExpr] directly.
func ParseSizeLiteral(lit string) (Cmp, int64, SizeUnit, error) {
	cmp, rest := splitSign(lit)

	unit := SizeBytes

	if rest != "" {
		switch last := rest[len(rest)-1]; last {
		case 'K', 'k':
			unit, rest = SizeKilo, rest[:len(rest)-1]
		case 'M', 'm':
			unit, rest = SizeMega, rest[:len(rest)-1]
		case 'G', 'g':
			unit, rest = SizeGiga, rest[:len(rest)-1]
		}
	}

	n, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("parse size literal %q: %w", lit, err)
	}

	return cmp, n, unit, nil
}

// ParseAgeLiteral parses a "-mtime"/"-mmin" argument of the form "±N".
func ParseAgeLiteral(lit string) (Cmp, int64, error) {
	cmp, rest := splitSign(lit)

	n, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("parse age literal %q: %w", lit, err)
	}

	return cmp, n, nil
}

func splitSign(lit string) (Cmp, string) {
	switch {
	case strings.HasPrefix(lit, "+"):
		return CmpGreater, lit[1:]
	case strings.HasPrefix(lit, "-"):
		return CmpLess, lit[1:]
	default:
		return CmpExact, lit
	}
}
