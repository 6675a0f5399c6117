package app

import (
	"context"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ProviderLimit caps how many candidates a list provider hands back to a
// controller before the controller applies its own, smaller, display cap.
const ProviderLimit = 200

// Provider answers a non-empty query with candidate suggestions.
type Provider func(ctx context.Context, query string) ([]string, error)

// normalizer folds strings for matching. The chain holds state, so one
// normalizer must not be shared between goroutines.
type normalizer struct {
	t transform.Transformer
}

func newNormalizer() *normalizer {
	return &normalizer{
		t: transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), cases.Fold()),
	}
}

func (n *normalizer) normalize(s string) string {
	out, _, err := transform.String(n.t, s)
	if err != nil {
		return strings.ToLower(s)
	}
	return out
}

// Normalize decomposes s, drops combining marks and case folds it, so
// "São Paulo" and "SAO PAULO" normalize to the same string.
func Normalize(s string) string {
	return newNormalizer().normalize(s)
}

// Search returns the entries of list whose normalized form contains the
// normalized query, in list order, skipping entries that normalize to an
// already returned entry. A limit of zero or less means no limit. An empty
// query matches nothing.
func Search(list []string, query string, limit int) []string {
	n := newNormalizer()
	nq := strings.TrimSpace(n.normalize(query))
	if nq == "" {
		return nil
	}

	out := []string{}
	seen := make(map[string]struct{})
	for _, s := range list {
		if limit > 0 && len(out) >= limit {
			break
		}
		ns := n.normalize(s)
		if !strings.Contains(ns, nq) {
			continue
		}
		key := strings.TrimSpace(ns)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}
	return out
}

// Dedupe trims items, drops blanks and normalized duplicates (first one
// wins) and caps the result at max entries when max is positive.
func Dedupe(items []string, max int) []string {
	n := newNormalizer()
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, s := range items {
		if max > 0 && len(out) >= max {
			break
		}
		k := strings.TrimSpace(s)
		if k == "" {
			continue
		}
		key := n.normalize(k)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, k)
	}
	return out
}

// ListProvider searches one reference list, loading it through refData on
// first use.
func ListProvider(refData *RefData, id ListID, limit int) Provider {
	return func(ctx context.Context, query string) ([]string, error) {
		list, err := refData.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return Search(list, query, limit), nil
	}
}
