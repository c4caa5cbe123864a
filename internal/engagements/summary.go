package engagements

import (
	"sort"

	"github.com/angelmondragon/engagement-dashboard/pkg/enums"
	"github.com/shopspring/decimal"
)

const topEngagementsSize = 5

// Summary is the analytics block returned alongside every engagement listing.
type Summary struct {
	TotalEngagements  int                            `json:"totalEngagements"`
	AverageScore      float64                        `json:"averageScore"`
	TypeBreakdown     map[enums.EngagementType]int   `json:"typeBreakdown"`
	SourceBreakdown   map[enums.EngagementSource]int `json:"sourceBreakdown"`
	TopEngagements    []Record                       `json:"topEngagements"`
	ScoreDistribution ScoreDistribution              `json:"scoreDistribution"`
	TrendData         []TrendPoint                   `json:"trendData"`
}

// ScoreDistribution buckets scores by upper bound. Out-of-range scores land in the outer buckets.
type ScoreDistribution struct {
	UpTo20  int `json:"0-20"`
	UpTo40  int `json:"21-40"`
	UpTo60  int `json:"41-60"`
	UpTo80  int `json:"61-80"`
	UpTo100 int `json:"81-100"`
}

func (d *ScoreDistribution) add(score float64) {
	switch {
	case score <= 20:
		d.UpTo20++
	case score <= 40:
		d.UpTo40++
	case score <= 60:
		d.UpTo60++
	case score <= 80:
		d.UpTo80++
	default:
		d.UpTo100++
	}
}

// TrendPoint aggregates one UTC calendar day.
type TrendPoint struct {
	Date         string  `json:"date"`
	Count        int     `json:"count"`
	AverageScore float64 `json:"averageScore"`
}

// Summarize derives analytics from an already filtered set without reordering it.
func Summarize(records []Record) Summary {
	s := Summary{
		TotalEngagements: len(records),
		TypeBreakdown:    map[enums.EngagementType]int{},
		SourceBreakdown:  map[enums.EngagementSource]int{},
		TopEngagements:   topByScore(records, topEngagementsSize),
		TrendData:        []TrendPoint{},
	}

	scores := make([]float64, 0, len(records))
	byDay := map[string][]float64{}
	for _, r := range records {
		s.TypeBreakdown[r.Type]++
		s.SourceBreakdown[r.Source]++
		s.ScoreDistribution.add(r.Score)
		scores = append(scores, r.Score)

		day := r.Timestamp.UTC().Format(dateOnlyLayout)
		byDay[day] = append(byDay[day], r.Score)
	}
	s.AverageScore = averageScore(scores)

	for day, dayScores := range byDay {
		s.TrendData = append(s.TrendData, TrendPoint{
			Date:         day,
			Count:        len(dayScores),
			AverageScore: averageScore(dayScores),
		})
	}
	sort.Slice(s.TrendData, func(i, j int) bool {
		return s.TrendData[i].Date < s.TrendData[j].Date
	})
	return s
}

// averageScore is the mean rounded half away from zero to 2 places; 0 for no scores.
func averageScore(scores []float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	sum := decimal.Zero
	for _, v := range scores {
		sum = sum.Add(decimal.NewFromFloat(v))
	}
	return sum.Div(decimal.NewFromInt(int64(len(scores)))).Round(2).InexactFloat64()
}

// topByScore sorts a copy so the caller's ordering survives; ties keep input order.
func topByScore(records []Record, n int) []Record {
	sorted := make([]Record, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}
