package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// entryStatusPath is the sjson path of a catch entry's status inside a
// certificate document.
func entryStatusPath(product, entry int) string {
	return fmt.Sprintf("products.%d.caughtBy.%d.status", product, entry)
}

// EntryStatusPatch builds the patch that sets one catch entry's status.
func EntryStatusPatch(product, entry int, status string) map[string]interface{} {
	return map[string]interface{}{entryStatusPath(product, entry): status}
}

// itemsHash identifies a landing's item multiset regardless of order.
func itemsHash(items []LandingItem) string {
	sorted := append([]LandingItem(nil), items...)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		switch {
		case a.Species != b.Species:
			return a.Species < b.Species
		case a.State != b.State:
			return a.State < b.State
		case a.Presentation != b.Presentation:
			return a.Presentation < b.Presentation
		case a.Weight != b.Weight:
			return a.Weight < b.Weight
		}
		return a.Factor < b.Factor
	})
	b, _ := json.Marshal(sorted)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
