// Package filter defines the query engine's filter-expression boundary.
// Per spec.md section "Non-goals", the actual expression algebra is an
// external collaborator — this package only fixes the shape the rest of
// the system programs against: a map of raw query-string key/value pairs
// compiles to a Predicate, and core code never inspects the compiled form.
package filter

import "github.com/skyblock-archive/auctions/internal/auction"

// Predicate reports whether a is selected by a compiled filter expression.
type Predicate func(a auction.Auction) bool

// Always matches every auction; the zero value of Predicate via None() is
// used wherever a caller has no filter to apply.
func Always(auction.Auction) bool { return true }

// Compiler turns the raw, free-form query-string filter map into a
// Predicate. EndBefore/EndAfter are reserved window keys the caller strips
// before compiling (see summary.FilterKey); everything else is
// collaborator-specific syntax this package does not interpret.
type Compiler interface {
	Compile(raw map[string]string) (Predicate, error)
}

// None returns a Compiler whose Predicate always matches, for callers that
// have no filter (e.g. an unfiltered recent-overview request).
func None() Compiler { return noneCompiler{} }

type noneCompiler struct{}

func (noneCompiler) Compile(map[string]string) (Predicate, error) { return Always, nil }
