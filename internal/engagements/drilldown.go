package engagements

import (
	"fmt"
	"sort"
	"time"

	"github.com/angelmondragon/engagement-dashboard/pkg/enums"
	pkgerrors "github.com/angelmondragon/engagement-dashboard/pkg/errors"
)

const (
	relatedItemsSize = 10
	historySize      = 20
)

// DrillDown expands one engagement with the activity of the user behind it.
type DrillDown struct {
	Item         Record          `json:"item"`
	RelatedItems []Record        `json:"relatedItems"`
	UserProfile  UserProfile     `json:"userProfile"`
	TimelineData []TimelineEvent `json:"timelineData"`
}

type UserProfile struct {
	UserID            string                 `json:"userId"`
	TotalEngagements  int                    `json:"totalEngagements"`
	AverageScore      float64                `json:"averageScore"`
	PreferredSource   enums.EngagementSource `json:"preferredSource"`
	EngagementHistory []Record               `json:"engagementHistory"`
	LastActive        time.Time              `json:"lastActive"`
}

type TimelineEvent struct {
	Timestamp time.Time            `json:"timestamp"`
	Event     string               `json:"event"`
	Score     float64              `json:"score"`
	Type      enums.EngagementType `json:"type"`
}

// BuildDrillDown locates id in records. Related items are the same user's other
// engagements, newest first; the timeline runs oldest first.
func BuildDrillDown(records []Record, id int64) (*DrillDown, error) {
	idx := -1
	for i := range records {
		if records[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("engagement %d not found", id))
	}
	item := records[idx]

	var userRecords []Record
	for _, r := range records {
		if r.UserID == item.UserID {
			userRecords = append(userRecords, r)
		}
	}
	sort.SliceStable(userRecords, func(i, j int) bool {
		return userRecords[i].Timestamp.After(userRecords[j].Timestamp)
	})

	related := make([]Record, 0, relatedItemsSize)
	for _, r := range userRecords {
		if r.ID == item.ID {
			continue
		}
		if len(related) == relatedItemsSize {
			break
		}
		related = append(related, r)
	}

	history := userRecords
	if len(history) > historySize {
		history = history[:historySize]
	}
	history = append([]Record(nil), history...)

	scores := make([]float64, len(userRecords))
	for i, r := range userRecords {
		scores[i] = r.Score
	}

	timeline := make([]TimelineEvent, 0, len(userRecords))
	for i := len(userRecords) - 1; i >= 0; i-- {
		r := userRecords[i]
		timeline = append(timeline, TimelineEvent{
			Timestamp: r.Timestamp,
			Event:     fmt.Sprintf("%s via %s", r.Type, r.Source),
			Score:     r.Score,
			Type:      r.Type,
		})
	}

	return &DrillDown{
		Item:         item,
		RelatedItems: related,
		UserProfile: UserProfile{
			UserID:            item.UserID,
			TotalEngagements:  len(userRecords),
			AverageScore:      averageScore(scores),
			PreferredSource:   preferredSource(userRecords),
			EngagementHistory: history,
			LastActive:        userRecords[0].Timestamp,
		},
		TimelineData: timeline,
	}, nil
}

// preferredSource is the most frequent source; ties resolve in enum order.
func preferredSource(records []Record) enums.EngagementSource {
	counts := map[enums.EngagementSource]int{}
	for _, r := range records {
		counts[r.Source]++
	}
	best := enums.DefaultEngagementSource
	bestCount := 0
	for _, s := range enums.EngagementSources() {
		if counts[s] > bestCount {
			best, bestCount = s, counts[s]
		}
	}
	return best
}
