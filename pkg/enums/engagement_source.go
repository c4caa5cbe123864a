package enums

import (
	"fmt"
	"strings"
)

// EngagementSource is the channel an interaction arrived through.
type EngagementSource string

const (
	SourceWeb    EngagementSource = "web"
	SourceMobile EngagementSource = "mobile"
	SourceEmail  EngagementSource = "email"
	SourceSocial EngagementSource = "social"
	SourceDirect EngagementSource = "direct"

	DefaultEngagementSource = SourceWeb
)

var validEngagementSources = []EngagementSource{
	SourceWeb,
	SourceMobile,
	SourceEmail,
	SourceSocial,
	SourceDirect,
}

// EngagementSources returns the enumerated values in canonical order.
func EngagementSources() []EngagementSource {
	out := make([]EngagementSource, len(validEngagementSources))
	copy(out, validEngagementSources)
	return out
}

// IsValid reports whether the value matches the canonical engagement source enum.
func (s EngagementSource) IsValid() bool {
	for _, candidate := range validEngagementSources {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseEngagementSource converts the raw string to EngagementSource, ignoring case and padding.
func ParseEngagementSource(value string) (EngagementSource, error) {
	normalized := EngagementSource(strings.ToLower(strings.TrimSpace(value)))
	if normalized.IsValid() {
		return normalized, nil
	}
	return "", fmt.Errorf("invalid engagement source %q", value)
}

// NormalizeEngagementSource coerces raw input, falling back to DefaultEngagementSource.
func NormalizeEngagementSource(value string) EngagementSource {
	if parsed, err := ParseEngagementSource(value); err == nil {
		return parsed
	}
	return DefaultEngagementSource
}
