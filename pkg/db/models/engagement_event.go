package models

import (
	"time"

	dbtypes "github.com/angelmondragon/engagement-dashboard/pkg/db/types"
)

// EngagementEvent is a row of the live engagement source. Type and Source stay
// plain text so unknown values from upstream writers survive until normalization.
type EngagementEvent struct {
	ID              int64           `gorm:"primaryKey;autoIncrement"`
	Type            string          `gorm:"type:text;not null"`
	Source          string          `gorm:"type:text;not null"`
	UserID          string          `gorm:"column:user_id;type:text;not null"`
	EngagementScore float64         `gorm:"column:engagement_score;not null"`
	OccurredAt      time.Time       `gorm:"column:occurred_at;not null"`
	Metadata        dbtypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt       time.Time       `gorm:"autoCreateTime"`
}

func (EngagementEvent) TableName() string {
	return "engagement_events"
}
