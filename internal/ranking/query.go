package ranking

import (
	"fmt"
	"math"
	"strings"
)

// Group is one expanded query term: its base form, any synonym variants,
// and the weight it contributes to scoring. Synonym variants score at half
// the base term's weight.
type Group struct {
	Base     string
	Variants []string
	Weight   float64
}

// VariantWeight is the scoring weight for any of Group's synonym variants.
func (g Group) VariantWeight() float64 {
	return g.Weight / 2
}

// Terms returns the base term followed by its variants.
func (g Group) Terms() []string {
	return append([]string{g.Base}, g.Variants...)
}

// Expand builds one Group per tokenised query term, attaching its
// synonym-table variants and computing its weight: 1 + min(1.5, len/6).
func Expand(terms []string) []Group {
	groups := make([]Group, 0, len(terms))
	for _, t := range terms {
		groups = append(groups, Group{
			Base:     t,
			Variants: SynonymsOf(t),
			Weight:   1 + math.Min(1.5, float64(len(t))/6),
		})
	}
	return groups
}

// BuildFTSQuery joins each group's term-or-prefix alternatives with OR,
// then joins the groups with operator ("AND" for the primary pass, "OR"
// for the fallback pass).
func BuildFTSQuery(groups []Group, operator string) string {
	parts := make([]string, 0, len(groups))
	for _, g := range groups {
		alternatives := make([]string, 0, len(g.Terms()))
		for _, term := range g.Terms() {
			alternatives = append(alternatives, fmt.Sprintf(`"%s" OR "%s"*`, term, term))
		}
		parts = append(parts, "("+strings.Join(alternatives, " OR ")+")")
	}
	return strings.Join(parts, " "+operator+" ")
}
