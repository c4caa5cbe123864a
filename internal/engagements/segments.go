package engagements

import (
	"github.com/angelmondragon/engagement-dashboard/pkg/enums"
	"github.com/shopspring/decimal"
)

// SegmentQuery selects which sources to report on. Segments are engagement sources.
type SegmentQuery struct {
	Segment enums.EngagementSource
	Compare []enums.EngagementSource
}

// SegmentMetrics summarizes one source within the working set.
type SegmentMetrics struct {
	Segment          string                       `json:"segment"`
	TotalEngagements int                          `json:"totalEngagements"`
	AverageScore     float64                      `json:"averageScore"`
	Share            float64                      `json:"share"`
	TypeBreakdown    map[enums.EngagementType]int `json:"typeBreakdown"`
}

// SegmentReport carries either the requested segment and comparisons, or the overall
// view with one entry per source present when nothing was requested.
type SegmentReport struct {
	Segment    *SegmentMetrics  `json:"segment,omitempty"`
	Comparison []SegmentMetrics `json:"comparison,omitempty"`
	Overall    *SegmentMetrics  `json:"overall,omitempty"`
	Segments   []SegmentMetrics `json:"segments,omitempty"`
}

const overallSegment = "all"

// BuildSegmentReport computes segment metrics over records.
func BuildSegmentReport(records []Record, q SegmentQuery) SegmentReport {
	bySource := map[enums.EngagementSource][]Record{}
	for _, r := range records {
		bySource[r.Source] = append(bySource[r.Source], r)
	}
	total := len(records)

	var report SegmentReport
	if q.Segment != "" {
		m := segmentMetrics(string(q.Segment), bySource[q.Segment], total)
		report.Segment = &m
	}
	for _, src := range q.Compare {
		report.Comparison = append(report.Comparison, segmentMetrics(string(src), bySource[src], total))
	}
	if q.Segment != "" || len(q.Compare) > 0 {
		return report
	}

	overall := segmentMetrics(overallSegment, records, total)
	report.Overall = &overall
	report.Segments = []SegmentMetrics{}
	for _, src := range enums.EngagementSources() {
		if group, ok := bySource[src]; ok {
			report.Segments = append(report.Segments, segmentMetrics(string(src), group, total))
		}
	}
	return report
}

func segmentMetrics(name string, group []Record, total int) SegmentMetrics {
	summary := Summarize(group)
	m := SegmentMetrics{
		Segment:          name,
		TotalEngagements: summary.TotalEngagements,
		AverageScore:     summary.AverageScore,
		TypeBreakdown:    summary.TypeBreakdown,
	}
	if total > 0 {
		m.Share = decimal.NewFromInt(int64(len(group))).
			Mul(decimal.NewFromInt(100)).
			Div(decimal.NewFromInt(int64(total))).
			Round(2).
			InexactFloat64()
	}
	return m
}
