package engagements

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/angelmondragon/engagement-dashboard/pkg/enums"
	pkgerrors "github.com/angelmondragon/engagement-dashboard/pkg/errors"
	"github.com/angelmondragon/engagement-dashboard/pkg/logger"
	"github.com/angelmondragon/engagement-dashboard/pkg/metrics"
)

const uploadSampleSize = 5

type liveSource interface {
	Recent(ctx context.Context, limit int) ([]Record, error)
}

// Service resolves the active working set and runs filtering, aggregation, ingest and export over it.
type Service struct {
	store     *WorkingSet
	live      liveSource
	generator *Generator
	parser    *CSVParser
	logg      *logger.Logger
	ingest    *metrics.IngestMetrics
	now       func() time.Time

	batchSize     int
	liveFetchSize int
}

// ServiceParams wires the service. Live and Metrics are optional.
type ServiceParams struct {
	Store         *WorkingSet
	Live          liveSource
	Generator     *Generator
	Logger        *logger.Logger
	Metrics       *metrics.IngestMetrics
	Now           func() time.Time
	BatchSize     int
	LiveFetchSize int
}

// ListResult is the body of GET /api/engagement.
type ListResult struct {
	Data      []Record `json:"data"`
	Analytics Summary  `json:"analytics"`
	Metadata  Metadata `json:"metadata"`
}

// Metadata describes where a listing came from. Total is the size of the working set before filtering.
type Metadata struct {
	Total       int              `json:"total"`
	Returned    int              `json:"returned"`
	Filtered    bool             `json:"filtered"`
	DataSource  enums.DataSource `json:"dataSource"`
	Filename    string           `json:"filename,omitempty"`
	DateRange   *DateRange       `json:"dateRange"`
	GeneratedAt time.Time        `json:"generatedAt"`
}

type DateRange struct {
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
}

// UploadResult is the body of POST /api/engagement/upload.
type UploadResult struct {
	Message   string     `json:"message"`
	Processed int        `json:"processed"`
	Errors    []RowIssue `json:"errors"`
	Sample    []Record   `json:"sample"`
}

// ClearResult is the body of POST /api/engagement/clear-uploaded.
type ClearResult struct {
	Message    string           `json:"message"`
	DataSource enums.DataSource `json:"dataSource"`
}

// OverviewSummary is the fixed headline block served by /api/analytics/summary.
type OverviewSummary struct {
	TotalEngagements   int      `json:"totalEngagements"`
	WeeklyGrowth       float64  `json:"weeklyGrowth"`
	TopCategories      []string `json:"topCategories"`
	AverageSessionTime string   `json:"averageSessionTime"`
	ConversionRate     float64  `json:"conversionRate"`
}

func NewService(p ServiceParams) (*Service, error) {
	if p.Store == nil {
		return nil, fmt.Errorf("working set required")
	}
	if p.Generator == nil {
		return nil, fmt.Errorf("generator required")
	}
	if p.BatchSize <= 0 {
		return nil, fmt.Errorf("mock batch size must be positive")
	}
	if p.Logger == nil {
		p.Logger = logger.Nop()
	}
	if p.Now == nil {
		p.Now = time.Now
	}
	return &Service{
		store:         p.Store,
		live:          p.Live,
		generator:     p.Generator,
		parser:        NewCSVParser(p.Now, p.Generator.RandomID),
		logg:          p.Logger,
		ingest:        p.Metrics,
		now:           p.Now,
		batchSize:     p.BatchSize,
		liveFetchSize: p.LiveFetchSize,
	}, nil
}

// List filters the active working set and summarizes the result.
func (s *Service) List(ctx context.Context, c Criteria) (*ListResult, error) {
	records, source, filename, err := s.workingSet(ctx)
	if err != nil {
		return nil, err
	}

	filtered := Apply(records, c)
	meta := Metadata{
		Total:       len(records),
		Returned:    len(filtered),
		Filtered:    c.IsFiltered(),
		DataSource:  source,
		Filename:    filename,
		GeneratedAt: s.now().UTC(),
	}
	if c.HasDateRange() {
		meta.DateRange = &DateRange{StartDate: *c.Start, EndDate: *c.End}
	}

	return &ListResult{
		Data:      filtered,
		Analytics: Summarize(filtered),
		Metadata:  meta,
	}, nil
}

// Upload cleans the CSV and replaces the uploaded working set.
func (s *Service) Upload(ctx context.Context, filename string, r io.Reader) (*UploadResult, error) {
	parsed, err := s.parser.Parse(r)
	if err != nil {
		return nil, err
	}

	s.store.Replace(parsed.Records, filename, s.now().UTC())
	s.ingest.AddRows(len(parsed.Records))
	for _, issue := range parsed.Issues {
		s.ingest.IncIssue(issue.Column)
	}

	ctx = s.logg.WithFields(ctx, map[string]any{
		"filename":   filename,
		"processed":  len(parsed.Records),
		"row_issues": len(parsed.Issues),
	})
	s.logg.Info(ctx, "engagements.upload.stored")

	sample := parsed.Records
	if len(sample) > uploadSampleSize {
		sample = sample[:uploadSampleSize]
	}
	return &UploadResult{
		Message:   fmt.Sprintf("Successfully processed %d records", len(parsed.Records)),
		Processed: len(parsed.Records),
		Errors:    parsed.Issues,
		Sample:    sample,
	}, nil
}

// ClearUploaded drops the uploaded set and reports which source serves next.
func (s *Service) ClearUploaded(ctx context.Context) ClearResult {
	had := s.store.Clear()
	next := enums.DataSourceGenerated
	if s.live != nil {
		next = enums.DataSourceLive
	}
	s.logg.Info(s.logg.WithField(ctx, "had_upload", had), "engagements.upload.cleared")

	msg := fmt.Sprintf("Uploaded data cleared. Now serving %s data.", next)
	if !had {
		msg = fmt.Sprintf("No uploaded data to clear. Serving %s data.", next)
	}
	return ClearResult{Message: msg, DataSource: next}
}

// Overview returns the fixed headline metrics.
func (s *Service) Overview() OverviewSummary {
	return OverviewSummary{
		TotalEngagements:   15420,
		WeeklyGrowth:       12.5,
		TopCategories:      []string{"click", "view", "share"},
		AverageSessionTime: "4m 32s",
		ConversionRate:     3.2,
	}
}

// Segments reports per-source metrics over the whole working set.
func (s *Service) Segments(ctx context.Context, q SegmentQuery) (*SegmentReport, error) {
	records, _, _, err := s.workingSet(ctx)
	if err != nil {
		return nil, err
	}
	report := BuildSegmentReport(records, q)
	return &report, nil
}

// Export renders the filtered working set as CSV.
func (s *Service) Export(ctx context.Context, c Criteria) ([]byte, error) {
	records, _, _, err := s.workingSet(ctx)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := WriteCSV(&buf, Apply(records, c)); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "rendering csv export")
	}
	return buf.Bytes(), nil
}

// DrillDown expands a single engagement from the active working set.
func (s *Service) DrillDown(ctx context.Context, id int64) (*DrillDown, error) {
	records, _, _, err := s.workingSet(ctx)
	if err != nil {
		return nil, err
	}
	return BuildDrillDown(records, id)
}

// workingSet resolves uploaded, then live, then generated records. An empty live source falls through.
func (s *Service) workingSet(ctx context.Context) ([]Record, enums.DataSource, string, error) {
	if snap, ok := s.store.Read(); ok {
		return snap.Records, enums.DataSourceUploaded, snap.Filename, nil
	}

	if s.live != nil {
		records, err := s.live.Recent(ctx, s.liveFetchSize)
		if err != nil {
			return nil, "", "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "live engagement source unavailable")
		}
		if len(records) > 0 {
			return records, enums.DataSourceLive, "", nil
		}
		s.logg.Debug(ctx, "engagements.live.empty")
	}

	return s.generator.Generate(s.batchSize), enums.DataSourceGenerated, "", nil
}
