package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"
)

// HashKV computes the lowercase hex SHA-256 of the given fields rendered as
// "k=v" pairs, sorted by key and joined with "|". Every content hash in this
// module (features, valuations, correlation contexts) uses this construction;
// it must stay byte-stable across runs because the persistence layer
// deduplicates on the digests.
func HashKV(fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+fields[k])
	}

	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

// ComputeValuationHash content-addresses a valuation by the inputs that
// determine its price.
func ComputeValuationHash(propID int64, modelVersionID string, offeredLine float64, schema PayoutSchema) string {
	return HashKV(map[string]string{
		"prop_id":          fmt.Sprintf("%d", propID),
		"model_version_id": modelVersionID,
		"offered_line":     fmt.Sprintf("%.4f", offeredLine),
		"payout_schema":    string(schema),
	})
}

// ComputeContextHash hashes a correlation context. The empty context maps to
// the literal "global" rather than a digest.
func ComputeContextHash(context map[string]string) string {
	if len(context) == 0 {
		return "global"
	}
	return HashKV(context)
}

// ComputeClusterKey derives the stable key for a correlation cluster from its
// context, sorted membership and an hourly time bucket.
func ComputeClusterKey(contextHash string, memberPropIDs []int64, at time.Time) string {
	sorted := make([]int64, len(memberPropIDs))
	copy(sorted, memberPropIDs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	parts := make([]string, 0, len(sorted))
	for _, id := range sorted {
		parts = append(parts, fmt.Sprintf("%d", id))
	}
	bucket := at.UTC().Format("20060102_15")

	sum := sha256.Sum256([]byte(contextHash + "_" + strings.Join(parts, "_") + "_" + bucket))
	return hex.EncodeToString(sum[:])[:16]
}
