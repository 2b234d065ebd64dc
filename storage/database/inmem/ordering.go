package inmemdb

import (
	"sort"
	"strings"
	"time"

	"github.com/acadamier/backend/core"
)

type compareFunc[T any] func(a, b T) int

func compareStrings(a, b string) int { return strings.Compare(strings.ToLower(a), strings.ToLower(b)) }

func compareTimes(a, b time.Time) int { return a.Compare(b) }

func compareFloats(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// orderBy sorts items by ordering, falling back on def when no ordering applies.
func orderBy[T any](items []T, ordering []core.DBOrdering, fields map[string]compareFunc[T], def core.DBOrdering) {
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{def}
	}
	sort.SliceStable(items, func(i, j int) bool {
		for _, ord := range ordering {
			cmp, ok := fields[ord.Field]
			if !ok {
				continue
			}
			if c := cmp(items[i], items[j]); c != 0 {
				if ord.Ascending {
					return c < 0
				}
				return c > 0
			}
		}
		return false
	})
}
