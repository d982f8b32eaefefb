// Package simhash computes the 64-bit locality-sensitive fingerprint used
// to detect near-duplicate pages during parsing. Two pages whose cleaned
// text fingerprints to the same hash are treated as duplicates: the writer
// skips the second Storage insert but still records its visited row.
package simhash

import (
	"fmt"

	"github.com/mfonda/simhash"
)

// Prefix distinguishes a stored fingerprint from a URL in the visited
// table's content_hash column.
const Prefix = "h:"

// Fingerprint computes the token-level SimHash of cleaned page text and
// renders it as the stored "h:"-prefixed hex string.
func Fingerprint(cleanedText string) string {
	features := simhash.NewWordFeatureSet([]byte(cleanedText))
	hash := simhash.Simhash(features)
	return Prefix + fmt.Sprintf("%016x", hash)
}

// Equal reports whether two stored fingerprints (as produced by
// Fingerprint) refer to byte-identical SimHash values, i.e. exact
// duplicates rather than merely near-duplicates.
func Equal(a, b string) bool {
	return a == b
}

// Distance returns the Hamming distance between two raw (un-prefixed) 64-bit
// fingerprints, for callers that want a near-duplicate threshold rather than
// exact-match dedup.
func Distance(a, b uint64) uint8 {
	return simhash.Compare(a, b)
}
