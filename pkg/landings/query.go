package landings

import (
	"reflect"

	"github.com/fes-tools/landrecon/pkg/storage"
)

// Query is the identity of a landing event that may need fetching.
// DateLanded is a YYYY-MM-DD calendar day.
type Query struct {
	RssNumber  string `json:"rssNumber"`
	DateLanded string `json:"dateLanded"`
}

// DedupeQueries concatenates the lists and drops repeated (vessel, day)
// pairs. The first occurrence keeps its position.
func DedupeQueries(lists ...[]Query) []Query {
	seen := make(map[Query]bool)
	out := []Query{}
	for _, list := range lists {
		for _, q := range list {
			if seen[q] {
				continue
			}
			seen[q] = true
			out = append(out, q)
		}
	}
	return out
}

// UniquifyLandings drops landings equal to an earlier one.
func UniquifyLandings(ls []storage.Landing) []storage.Landing {
	out := make([]storage.Landing, 0, len(ls))
	for _, l := range ls {
		dup := false
		for _, kept := range out {
			if sameLanding(kept, l) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, l)
		}
	}
	return out
}

// sameLanding is field-wise equality with instants compared by Equal so
// the same time in two locations still matches.
func sameLanding(a, b storage.Landing) bool {
	return a.RssNumber == b.RssNumber &&
		a.DateTimeLanded.Equal(b.DateTimeLanded) &&
		a.Source == b.Source &&
		a.Ignore == b.Ignore &&
		reflect.DeepEqual(a.Items, b.Items)
}
