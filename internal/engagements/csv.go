package engagements

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/angelmondragon/engagement-dashboard/pkg/enums"
	pkgerrors "github.com/angelmondragon/engagement-dashboard/pkg/errors"
)

const (
	colID              = "id"
	colType            = "type"
	colEngagementType  = "engagement_type"
	colUserID          = "user_id"
	colUserIDCamel     = "userid"
	colScore           = "score"
	colEngagementScore = "engagement_score"
	colSource          = "source"
	colTimestamp       = "timestamp"
	colDate            = "date"
)

var knownColumns = map[string]struct{}{
	colID: {}, colType: {}, colEngagementType: {}, colUserID: {}, colUserIDCamel: {},
	colScore: {}, colEngagementScore: {}, colSource: {}, colTimestamp: {}, colDate: {},
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	dateOnlyLayout,
}

// RowIssue reports a value that was replaced by a default while cleaning an upload.
type RowIssue struct {
	Row    int    `json:"row"`
	Column string `json:"column"`
	Error  string `json:"error"`
	Value  string `json:"value"`
}

// ParsedUpload holds cleaned records and the issues recovered along the way.
type ParsedUpload struct {
	Records []Record
	Issues  []RowIssue
}

// CSVParser cleans uploaded engagement CSVs. A bad cell never aborts the upload.
type CSVParser struct {
	now    func() time.Time
	randID func() int64
}

func NewCSVParser(now func() time.Time, randID func() int64) *CSVParser {
	if now == nil {
		now = time.Now
	}
	return &CSVParser{now: now, randID: randID}
}

// Parse reads a header row plus data rows. Headers match case-insensitively; unknown
// columns are kept as string metadata. Row numbers count the header as row 1.
func (p *CSVParser) Parse(r io.Reader) (ParsedUpload, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.LazyQuotes = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return ParsedUpload{}, pkgerrors.New(pkgerrors.CodeValidation, "CSV file is empty")
	}
	if err != nil {
		return ParsedUpload{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "CSV header could not be read")
	}
	columns := normalizeHeader(header)

	ingestedAt := p.now().UTC()
	out := ParsedUpload{Records: []Record{}, Issues: []RowIssue{}}
	for row := 2; ; row++ {
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			// the reader resumes at the next record; the malformed one is reported and skipped
			out.Issues = append(out.Issues, RowIssue{Row: row, Error: parseErr.Err.Error()})
			continue
		}
		if err != nil {
			return ParsedUpload{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, fmt.Sprintf("CSV row %d could not be read", row)).
				WithDetails(map[string]any{"row": row})
		}
		if blankRow(fields) {
			continue
		}
		cells := make(map[string]string, len(columns))
		for i, name := range columns {
			if i < len(fields) {
				cells[name] = strings.TrimSpace(fields[i])
			}
		}
		rec, issues := p.cleanRow(row, cells, ingestedAt)
		out.Records = append(out.Records, rec)
		out.Issues = append(out.Issues, issues...)
	}

	if len(out.Records) == 0 {
		return ParsedUpload{}, pkgerrors.New(pkgerrors.CodeValidation, "CSV file contains no data rows")
	}
	return out, nil
}

func (p *CSVParser) cleanRow(row int, cells map[string]string, ingestedAt time.Time) (Record, []RowIssue) {
	var issues []RowIssue
	issue := func(column, msg, value string) {
		issues = append(issues, RowIssue{Row: row, Column: column, Error: msg, Value: value})
	}

	rec := Record{}

	rec.ID = p.cleanID(cells)

	rawType, typeCol := firstCell(cells, colType, colEngagementType)
	rec.Type = enums.NormalizeEngagementType(rawType)
	if rawType != "" && string(rec.Type) != strings.ToLower(rawType) {
		issue(typeCol, fmt.Sprintf("unknown engagement type, defaulted to %s", rec.Type), rawType)
	}

	rawSource := cells[colSource]
	rec.Source = enums.NormalizeEngagementSource(rawSource)
	if rawSource != "" && string(rec.Source) != strings.ToLower(rawSource) {
		issue(colSource, fmt.Sprintf("unknown source, defaulted to %s", rec.Source), rawSource)
	}

	if userID, _ := firstCell(cells, colUserID, colUserIDCamel); userID != "" {
		rec.UserID = userID
	} else {
		rec.UserID = fmt.Sprintf("user_%d", row-1)
	}

	if rawScore, scoreCol := firstCell(cells, colScore, colEngagementScore); rawScore != "" {
		score, err := strconv.ParseFloat(rawScore, 64)
		if err != nil {
			issue(scoreCol, "score is not a number, defaulted to 0", rawScore)
		} else {
			rec.Score = score
		}
	}

	rec.Timestamp = ingestedAt
	if rawTS, tsCol := firstCell(cells, colTimestamp, colDate); rawTS != "" {
		if ts, ok := parseTimestamp(rawTS); ok {
			rec.Timestamp = ts
		} else {
			issue(tsCol, "timestamp could not be parsed, defaulted to upload time", rawTS)
		}
	}

	for name, value := range cells {
		if _, known := knownColumns[name]; known || value == "" {
			continue
		}
		if rec.Metadata == nil {
			rec.Metadata = map[string]any{}
		}
		rec.Metadata[name] = value
	}

	return rec, issues
}

// cleanID prefers id, then a numeric user_id, then a random id.
func (p *CSVParser) cleanID(cells map[string]string) int64 {
	for _, col := range []string{colID, colUserID} {
		if id, err := strconv.ParseInt(cells[col], 10, 64); err == nil && id > 0 {
			return id
		}
	}
	if p.randID != nil {
		return p.randID()
	}
	return 0
}

func firstCell(cells map[string]string, columns ...string) (string, string) {
	for _, col := range columns {
		if v := cells[col]; v != "" {
			return v, col
		}
	}
	return "", columns[0]
}

func parseTimestamp(raw string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if ts, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}

func normalizeHeader(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		h = strings.TrimPrefix(h, "\ufeff")
		out[i] = strings.ToLower(strings.TrimSpace(h))
	}
	return out
}

func blankRow(fields []string) bool {
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
