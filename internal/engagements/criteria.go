package engagements

import (
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/angelmondragon/engagement-dashboard/pkg/enums"
)

const (
	DefaultLimit = 10
	MaxLimit     = 1000

	dateOnlyLayout = "2006-01-02"
)

// Criteria narrows a working set. Zero values mean "no constraint"; a Limit of 0 disables truncation.
type Criteria struct {
	Type     enums.EngagementType
	Source   enums.EngagementSource
	UserID   string
	Start    *time.Time
	End      *time.Time
	MinScore *float64
	MaxScore *float64
	Limit    int
}

// HasDateRange reports whether both bounds are present. A single bound is ignored.
func (c Criteria) HasDateRange() bool {
	return c.Start != nil && c.End != nil
}

// IsFiltered reports whether any constraint other than the limit is active.
func (c Criteria) IsFiltered() bool {
	return c.Type != "" || c.Source != "" || c.UserID != "" || c.HasDateRange() || c.MinScore != nil || c.MaxScore != nil
}

// Values encodes c as query parameters understood by ParseCriteria.
func (c Criteria) Values() url.Values {
	v := url.Values{}
	if c.Type != "" {
		v.Set("type", string(c.Type))
	}
	if c.Source != "" {
		v.Set("source", string(c.Source))
	}
	if c.UserID != "" {
		v.Set("userId", c.UserID)
	}
	if c.Start != nil {
		v.Set("startDate", c.Start.UTC().Format(time.RFC3339Nano))
	}
	if c.End != nil {
		v.Set("endDate", c.End.UTC().Format(time.RFC3339Nano))
	}
	if c.MinScore != nil {
		v.Set("minScore", strconv.FormatFloat(*c.MinScore, 'f', -1, 64))
	}
	if c.MaxScore != nil {
		v.Set("maxScore", strconv.FormatFloat(*c.MaxScore, 'f', -1, 64))
	}
	if c.Limit > 0 {
		v.Set("limit", strconv.Itoa(c.Limit))
	}
	return v
}

// ParseCriteria reads filter query parameters with the dashboard's default limit.
func ParseCriteria(values url.Values) Criteria {
	return ParseCriteriaWithDefault(values, DefaultLimit)
}

// ParseCriteriaWithDefault never fails: malformed or unknown values are dropped and
// the dimension stays unconstrained. defaultLimit applies when limit is absent or invalid.
func ParseCriteriaWithDefault(values url.Values, defaultLimit int) Criteria {
	c := Criteria{Limit: defaultLimit}

	if t, err := enums.ParseEngagementType(values.Get("type")); err == nil {
		c.Type = t
	}
	if s, err := enums.ParseEngagementSource(values.Get("source")); err == nil {
		c.Source = s
	}
	c.UserID = strings.TrimSpace(values.Get("userId"))

	if start, ok := ParseDateBound(values.Get("startDate"), false); ok {
		c.Start = &start
	}
	if end, ok := ParseDateBound(values.Get("endDate"), true); ok {
		c.End = &end
	}

	c.MinScore = parseScore(values.Get("minScore"))
	c.MaxScore = parseScore(values.Get("maxScore"))

	if raw := strings.TrimSpace(values.Get("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			c.Limit = n
		}
	}
	if c.Limit > MaxLimit {
		c.Limit = MaxLimit
	}
	return c
}

// ParseDateBound accepts a calendar date or an RFC3339 instant. Calendar dates cover the
// whole UTC day: the start bound is midnight, the end bound is the last nanosecond.
func ParseDateBound(raw string, endOfDay bool) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	if day, err := time.ParseInLocation(dateOnlyLayout, raw, time.UTC); err == nil {
		if endOfDay {
			return day.Add(24*time.Hour - time.Nanosecond), true
		}
		return day, true
	}
	if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return ts.UTC(), true
	}
	return time.Time{}, false
}

func parseScore(raw string) *float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}
