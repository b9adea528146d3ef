package filter

import (
	"strconv"

	"github.com/skyblock-archive/auctions/internal/auction"
)

// BasicCompiler is a minimal built-in Compiler: every key/value pair must
// match exactly, either against a known Auction field (Tier, Category,
// BIN) or, failing that, against the flattened attribute map. It exists so
// the server has a working default without depending on the real external
// filter-expression collaborator; production deployments inject their own
// Compiler (see spec.md's "Filter engine" non-goal).
type BasicCompiler struct{}

func (BasicCompiler) Compile(raw map[string]string) (Predicate, error) {
	clauses := make(map[string]string, len(raw))
	for k, v := range raw {
		clauses[k] = v
	}

	return func(a auction.Auction) bool {
		for k, v := range clauses {
			if !matchesClause(a, k, v) {
				return false
			}
		}
		return true
	}, nil
}

func matchesClause(a auction.Auction, key, value string) bool {
	switch key {
	case "Tier", "tier":
		return a.Tier == value
	case "Category", "category":
		return a.Category == value
	case "BIN", "bin":
		want, err := strconv.ParseBool(value)
		return err == nil && a.BIN == want
	default:
		return a.Attributes[key] == value
	}
}
