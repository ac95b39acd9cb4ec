package reporting

import (
	"testing"
	"time"
)

var allGranularities = []Granularity{GranularityDay, GranularityWeek, GranularityMonth, GranularityQuarter, GranularityYear}

func periodAfter(g Granularity, start time.Time) time.Time {
	switch g {
	case GranularityDay:
		return start.AddDate(0, 0, 1)
	case GranularityWeek:
		return start.AddDate(0, 0, 7)
	case GranularityQuarter:
		return start.AddDate(0, 3, 0)
	case GranularityYear:
		return start.AddDate(1, 0, 0)
	default:
		return start.AddDate(0, 1, 0)
	}
}

func TestBucketStartBounds(t *testing.T) {
	base := time.Date(2023, 12, 20, 17, 45, 12, 0, time.UTC)
	for i := 0; i < 500; i++ {
		ts := base.Add(time.Duration(i) * 37 * time.Hour)
		for _, g := range allGranularities {
			start := g.BucketStart(ts)
			if again := g.BucketStart(ts); !again.Equal(start) {
				t.Fatalf("%s: bucket start not deterministic for %s", g, ts)
			}
			if start.After(ts) {
				t.Fatalf("%s: bucket start %s after timestamp %s", g, start, ts)
			}
			if !periodAfter(g, start).After(ts) {
				t.Fatalf("%s: timestamp %s beyond one period from %s", g, ts, start)
			}
		}
	}
}

func TestWeekBucketStartsOnMonday(t *testing.T) {
	for d := 0; d < 60; d++ {
		ts := day(2024, time.February, 1).AddDate(0, 0, d).Add(13 * time.Hour)
		start := GranularityWeek.BucketStart(ts)
		if start.Weekday() != time.Monday {
			t.Fatalf("expected monday for %s got %s", ts.Format(time.DateOnly), start.Weekday())
		}
	}
	if got := GranularityWeek.BucketStart(day(2024, time.March, 10)); !got.Equal(day(2024, time.March, 4)) {
		t.Fatalf("sunday should align to previous monday, got %s", got)
	}
}

func TestQuarterAndYearStarts(t *testing.T) {
	cases := map[time.Time]time.Time{
		day(2024, time.January, 31):   day(2024, time.January, 1),
		day(2024, time.May, 2):        day(2024, time.April, 1),
		day(2024, time.September, 30): day(2024, time.July, 1),
		day(2024, time.November, 15):  day(2024, time.October, 1),
	}
	for in, want := range cases {
		if got := GranularityQuarter.BucketStart(in); !got.Equal(want) {
			t.Fatalf("quarter start of %s: expected %s got %s", in, want, got)
		}
	}
	if got := GranularityYear.BucketStart(day(2024, time.August, 9)); !got.Equal(day(2024, time.January, 1)) {
		t.Fatalf("unexpected year start %s", got)
	}
}

func TestLabels(t *testing.T) {
	start := day(2024, time.April, 1)
	cases := map[Granularity]string{
		GranularityDay:     "Apr 01",
		GranularityWeek:    "Week of Apr 01",
		GranularityMonth:   "Apr 2024",
		GranularityQuarter: "Q2 2024",
		GranularityYear:    "2024",
	}
	for g, want := range cases {
		if got := g.Label(start); got != want {
			t.Fatalf("%s label: expected %q got %q", g, want, got)
		}
	}
}

func TestParseGranularityFallsBackToMonth(t *testing.T) {
	if got := ParseGranularity("WEEK"); got != GranularityWeek {
		t.Fatalf("expected week got %s", got)
	}
	for _, in := range []string{"", "hourly", "fortnight"} {
		if got := ParseGranularity(in); got != GranularityMonth {
			t.Fatalf("expected month fallback for %q got %s", in, got)
		}
	}
}

func TestBucketizeMonth(t *testing.T) {
	records := []SalesRecord{
		sale(day(2024, time.February, 3), "5"),
		sale(day(2024, time.January, 15), "10"),
		sale(day(2024, time.January, 31), "20"),
	}
	buckets := Bucketize(records, GranularityMonth, func(r SalesRecord) time.Time { return r.CreatedDate })
	if len(buckets) != 2 {
		t.Fatalf("expected 2 buckets got %d", len(buckets))
	}
	if !buckets[0].Start.Equal(day(2024, time.January, 1)) {
		t.Fatalf("expected first bucket 2024-01-01 got %s", buckets[0].Start)
	}
	if len(buckets[0].Items) != 2 {
		t.Fatalf("expected both january records in first bucket got %d", len(buckets[0].Items))
	}
	if buckets[0].Items[0].ID != records[1].ID || buckets[0].Items[1].ID != records[2].ID {
		t.Fatalf("expected bucket items to keep input order")
	}
	if !buckets[1].Start.Equal(day(2024, time.February, 1)) {
		t.Fatalf("expected second bucket 2024-02-01 got %s", buckets[1].Start)
	}
}

func TestBucketizeSkipsEmptyBuckets(t *testing.T) {
	records := []SalesRecord{
		sale(day(2024, time.January, 1), "1"),
		sale(day(2024, time.January, 20), "1"),
	}
	buckets := Bucketize(records, GranularityDay, func(r SalesRecord) time.Time { return r.CreatedDate })
	if len(buckets) != 2 {
		t.Fatalf("expected only populated buckets, got %d", len(buckets))
	}
}
