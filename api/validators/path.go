package validators

import (
	"strconv"
	"strings"

	pkgerrors "github.com/angelmondragon/engagement-dashboard/pkg/errors"
)

// ParseID reads a positive integer identifier from a path segment.
func ParseID(raw, field string) (int64, error) {
	value, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, field+" must be numeric").WithDetails(map[string]any{"field": field})
	}
	if value <= 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, field+" must be positive").WithDetails(map[string]any{"field": field})
	}
	return value, nil
}
