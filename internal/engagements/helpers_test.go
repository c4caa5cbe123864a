package engagements

import (
	"fmt"
	"time"

	"github.com/angelmondragon/engagement-dashboard/pkg/enums"
)

var baseTime = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func makeRecords(n int) []Record {
	types := enums.EngagementTypes()
	sources := enums.EngagementSources()
	out := make([]Record, n)
	for i := range out {
		out[i] = Record{
			ID:        int64(i + 1),
			Type:      types[i%len(types)],
			Source:    sources[i%len(sources)],
			UserID:    fmt.Sprintf("user_%d", i%3),
			Score:     float64((i * 7) % 100),
			Timestamp: baseTime.Add(time.Duration(i) * time.Hour),
		}
	}
	return out
}

func withScores(scores ...float64) []Record {
	out := make([]Record, len(scores))
	for i, s := range scores {
		out[i] = Record{ID: int64(i + 1), Type: enums.EngagementClick, Source: enums.SourceWeb, Score: s, Timestamp: baseTime}
	}
	return out
}

func ptr[T any](v T) *T {
	return &v
}
