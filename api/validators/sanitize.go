package validators

import (
	"path/filepath"
	"strings"
)

func SanitizeString(input string, maxLen int) string {
	trimmed := strings.TrimSpace(input)
	if maxLen > 0 && len(trimmed) > maxLen {
		return trimmed[:maxLen]
	}
	return trimmed
}

// SanitizeFilename strips directories from a client supplied upload name.
func SanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(SanitizeString(name, 255), `\`, "/"))
	if name == "." || name == "/" || name == "" {
		return "upload.csv"
	}
	return name
}
