package util

import "strings"

// SanitizePostgresText strips null bytes and invalid UTF-8 so the value
// can be stored in a Postgres text column.
func SanitizePostgresText(value string) string {
	if value == "" {
		return value
	}

	sanitized := strings.ToValidUTF8(value, "")
	return strings.ReplaceAll(sanitized, "\x00", "")
}

// NormalizeDocumentText canonicalizes line endings and trims outer
// whitespace. Loaders apply this before handing text to the chunker.
func NormalizeDocumentText(value string) string {
	value = strings.ReplaceAll(value, "\r\n", "\n")
	value = strings.ReplaceAll(value, "\r", "\n")
	return strings.TrimSpace(value)
}

// CollapseWhitespace squeezes runs of whitespace into single spaces.
func CollapseWhitespace(value string) string {
	return strings.Join(strings.Fields(value), " ")
}
