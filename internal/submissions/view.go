package submissions

import (
	"fmt"
	"sort"
)

type Filter string

const (
	FilterAll     Filter = "all"
	FilterPassed  Filter = "passed"
	FilterFailed  Filter = "failed"
	FilterPending Filter = "pending"
)

type SortKey string

const (
	SortByDate  SortKey = "date"
	SortByScore SortKey = "score"
)

type Order string

const (
	Asc  Order = "asc"
	Desc Order = "desc"
)

func ParseFilter(s string) (Filter, error) {
	switch f := Filter(s); f {
	case FilterAll, FilterPassed, FilterFailed, FilterPending:
		return f, nil
	case "":
		return FilterAll, nil
	}
	return "", fmt.Errorf("unknown filter %q", s)
}

// Project returns the filtered and sorted view of list. list is never
// modified; the result is a new slice.
func Project(list []Submission, filter Filter, key SortKey, order Order) []Submission {
	out := make([]Submission, 0, len(list))
	for _, s := range list {
		if matches(s, filter) {
			out = append(out, s)
		}
	}

	less := func(a, b Submission) bool {
		if key == SortByScore {
			return scoreOf(a) < scoreOf(b)
		}
		return a.CreatedAt.Before(b.CreatedAt)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if order == Desc {
			return less(out[j], out[i])
		}
		return less(out[i], out[j])
	})
	return out
}

func matches(s Submission, filter Filter) bool {
	switch filter {
	case FilterPassed:
		return s.Passed()
	case FilterFailed:
		return s.Failed()
	case FilterPending:
		return s.Pending()
	default:
		return true
	}
}

// scoreOf treats a missing score as zero.
func scoreOf(s Submission) float64 {
	if s.Score == nil {
		return 0
	}
	return *s.Score
}
