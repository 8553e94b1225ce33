package storage

import (
	"slices"
	"strings"
)

// LockOrder returns the distinct, non-empty owner IDs in the order every
// backend must lock them. A single global order keeps opposing transfers
// between the same pair from deadlocking.
func LockOrder(ownerIDs []string) []string {
	out := make([]string, 0, len(ownerIDs))
	for _, ownerID := range ownerIDs {
		ownerID = strings.TrimSpace(ownerID)
		if ownerID == "" {
			continue
		}
		out = append(out, ownerID)
	}
	slices.Sort(out)
	return slices.Compact(out)
}
