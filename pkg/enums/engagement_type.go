package enums

import (
	"fmt"
	"strings"
)

// EngagementType classifies a single user interaction.
type EngagementType string

const (
	EngagementClick    EngagementType = "click"
	EngagementView     EngagementType = "view"
	EngagementShare    EngagementType = "share"
	EngagementComment  EngagementType = "comment"
	EngagementLike     EngagementType = "like"
	EngagementDownload EngagementType = "download"

	// DefaultEngagementType replaces unrecognized input during cleaning.
	DefaultEngagementType = EngagementView
)

var validEngagementTypes = []EngagementType{
	EngagementClick,
	EngagementView,
	EngagementShare,
	EngagementComment,
	EngagementLike,
	EngagementDownload,
}

// EngagementTypes returns the enumerated values in canonical order.
func EngagementTypes() []EngagementType {
	out := make([]EngagementType, len(validEngagementTypes))
	copy(out, validEngagementTypes)
	return out
}

// IsValid reports whether the value matches the canonical engagement type enum.
func (e EngagementType) IsValid() bool {
	for _, candidate := range validEngagementTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseEngagementType converts the raw string to EngagementType, ignoring case and padding.
func ParseEngagementType(value string) (EngagementType, error) {
	normalized := EngagementType(strings.ToLower(strings.TrimSpace(value)))
	if normalized.IsValid() {
		return normalized, nil
	}
	return "", fmt.Errorf("invalid engagement type %q", value)
}

// NormalizeEngagementType coerces raw input, falling back to DefaultEngagementType.
func NormalizeEngagementType(value string) EngagementType {
	if parsed, err := ParseEngagementType(value); err == nil {
		return parsed
	}
	return DefaultEngagementType
}
