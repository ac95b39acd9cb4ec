package reporting

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Granularity selects the calendar bucket used for trend output.
type Granularity string

const (
	GranularityDay     Granularity = "day"
	GranularityWeek    Granularity = "week"
	GranularityMonth   Granularity = "month"
	GranularityQuarter Granularity = "quarter"
	GranularityYear    Granularity = "year"
)

// ParseGranularity maps a request string onto a Granularity. Unknown values
// fall back to GranularityMonth.
func ParseGranularity(value string) Granularity {
	switch g := Granularity(strings.ToLower(strings.TrimSpace(value))); g {
	case GranularityDay, GranularityWeek, GranularityMonth, GranularityQuarter, GranularityYear:
		return g
	default:
		return GranularityMonth
	}
}

// BucketStart aligns t onto the start of its bucket in t's location.
func (g Granularity) BucketStart(t time.Time) time.Time {
	y, m, d := t.Date()
	loc := t.Location()
	switch g {
	case GranularityDay:
		return time.Date(y, m, d, 0, 0, 0, 0, loc)
	case GranularityWeek:
		diff := (7 + int(t.Weekday()-time.Monday)) % 7
		return time.Date(y, m, d-diff, 0, 0, 0, 0, loc)
	case GranularityQuarter:
		qm := time.Month((int(m)-1)/3*3 + 1)
		return time.Date(y, qm, 1, 0, 0, 0, 0, loc)
	case GranularityYear:
		return time.Date(y, time.January, 1, 0, 0, 0, 0, loc)
	default:
		return time.Date(y, m, 1, 0, 0, 0, 0, loc)
	}
}

// Label renders a display label for a bucket start.
func (g Granularity) Label(start time.Time) string {
	switch g {
	case GranularityDay:
		return start.Format("Jan 02")
	case GranularityWeek:
		return "Week of " + start.Format("Jan 02")
	case GranularityQuarter:
		return fmt.Sprintf("Q%d %d", (int(start.Month())-1)/3+1, start.Year())
	case GranularityYear:
		return start.Format("2006")
	default:
		return start.Format("Jan 2006")
	}
}

// Bucket groups the items whose key falls into one calendar interval.
type Bucket[T any] struct {
	Start time.Time
	Items []T
}

// Bucketize groups items by the bucket of key(item). Buckets are ordered by
// start ascending and only non-empty buckets are returned. Items keep their
// input order inside a bucket.
func Bucketize[T any](items []T, g Granularity, key func(T) time.Time) []Bucket[T] {
	index := make(map[int64]int)
	buckets := make([]Bucket[T], 0)
	for _, item := range items {
		start := g.BucketStart(key(item))
		k := start.UnixNano()
		pos, ok := index[k]
		if !ok {
			pos = len(buckets)
			index[k] = pos
			buckets = append(buckets, Bucket[T]{Start: start})
		}
		buckets[pos].Items = append(buckets[pos].Items, item)
	}
	sort.SliceStable(buckets, func(i, j int) bool {
		return buckets[i].Start.Before(buckets[j].Start)
	})
	return buckets
}
