package engagements

import (
	"time"

	"github.com/angelmondragon/engagement-dashboard/pkg/enums"
)

// Record is one engagement event as served to the dashboard.
type Record struct {
	ID        int64                  `json:"id"`
	Type      enums.EngagementType   `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	UserID    string                 `json:"user_id"`
	Score     float64                `json:"engagement_score"`
	Source    enums.EngagementSource `json:"source"`
	Metadata  map[string]any         `json:"metadata,omitempty"`
}

// Normalize coerces type and source onto their enums. Scores pass through untouched.
func Normalize(r Record) Record {
	r.Type = enums.NormalizeEngagementType(string(r.Type))
	r.Source = enums.NormalizeEngagementSource(string(r.Source))
	r.Timestamp = r.Timestamp.UTC()
	return r
}

// NormalizeAll returns a normalized copy of records.
func NormalizeAll(records []Record) []Record {
	out := make([]Record, len(records))
	for i, r := range records {
		out[i] = Normalize(r)
	}
	return out
}
