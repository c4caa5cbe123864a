package validators

import (
	"net/url"
	"strings"

	"github.com/angelmondragon/engagement-dashboard/internal/engagements"
	"github.com/angelmondragon/engagement-dashboard/pkg/enums"
)

type segmentQuery struct {
	Segment         string   `json:"segment" validate:"omitempty,oneof=web mobile email social direct"`
	CompareSegments []string `json:"compareSegments" validate:"max=5,dive,oneof=web mobile email social direct"`
}

// ParseSegmentQuery reads segment and the comma separated compareSegments list. Unlike
// listing filters, unknown segment names are rejected.
func ParseSegmentQuery(values url.Values) (engagements.SegmentQuery, error) {
	q := segmentQuery{
		Segment: normalizeToken(values.Get("segment")),
	}
	for _, raw := range values["compareSegments"] {
		for _, part := range strings.Split(raw, ",") {
			if token := normalizeToken(part); token != "" {
				q.CompareSegments = append(q.CompareSegments, token)
			}
		}
	}
	if err := Struct(q); err != nil {
		return engagements.SegmentQuery{}, err
	}

	out := engagements.SegmentQuery{Segment: enums.EngagementSource(q.Segment)}
	seen := map[string]bool{}
	for _, s := range q.CompareSegments {
		if seen[s] {
			continue
		}
		seen[s] = true
		out.Compare = append(out.Compare, enums.EngagementSource(s))
	}
	return out, nil
}

func normalizeToken(raw string) string {
	return strings.ToLower(SanitizeString(raw, 32))
}
