package engagements

import (
	"context"

	"github.com/angelmondragon/engagement-dashboard/pkg/db/models"
	"github.com/angelmondragon/engagement-dashboard/pkg/enums"
	"gorm.io/gorm"
)

const insertBatchSize = 200

// Repository reads and seeds the live engagement_events source.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a repository bound to the provided gorm DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository that runs on tx.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Recent returns up to limit events, newest first, normalized to the dashboard enums.
func (r *Repository) Recent(ctx context.Context, limit int) ([]Record, error) {
	query := r.db.WithContext(ctx).Model(&models.EngagementEvent{}).Order("occurred_at DESC, id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []models.EngagementEvent
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]Record, len(rows))
	for i, row := range rows {
		out[i] = recordFromModel(row)
	}
	return out, nil
}

// InsertBatch stores records as new events and returns how many rows were written.
// Record ids are not reused; the table assigns its own.
func (r *Repository) InsertBatch(ctx context.Context, records []Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	rows := make([]models.EngagementEvent, len(records))
	for i, rec := range records {
		rows[i] = modelFromRecord(Normalize(rec))
	}
	if err := r.db.WithContext(ctx).CreateInBatches(&rows, insertBatchSize).Error; err != nil {
		return 0, err
	}
	return len(rows), nil
}

// Count returns the number of stored events.
func (r *Repository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.EngagementEvent{}).Count(&n).Error
	return n, err
}

func recordFromModel(m models.EngagementEvent) Record {
	rec := Record{
		ID:        m.ID,
		Type:      enums.EngagementType(m.Type),
		Source:    enums.EngagementSource(m.Source),
		UserID:    m.UserID,
		Score:     m.EngagementScore,
		Timestamp: m.OccurredAt,
	}
	if len(m.Metadata) > 0 {
		rec.Metadata = map[string]any(m.Metadata)
	}
	return Normalize(rec)
}

func modelFromRecord(rec Record) models.EngagementEvent {
	return models.EngagementEvent{
		Type:            string(rec.Type),
		Source:          string(rec.Source),
		UserID:          rec.UserID,
		EngagementScore: rec.Score,
		OccurredAt:      rec.Timestamp.UTC(),
		Metadata:        rec.Metadata,
	}
}
