package chunker

import (
	"strconv"
	"strings"
)

// isCSVHeader guesses whether the first row is a header by comparing how
// numeric it looks against a sample of the data rows, and by matching
// common header field names.
func isCSVHeader(rows []string) bool {
	if len(rows) < 2 {
		return false
	}

	firstFields := strings.Split(rows[0], ",")

	firstRowNumericCount := 0
	for _, field := range firstFields {
		field = strings.Trim(strings.TrimSpace(field), "\"")
		if _, err := strconv.ParseFloat(field, 64); err == nil {
			firstRowNumericCount++
		}
	}

	sampleSize := min(5, len(rows)-1)
	dataNumericTotal := 0
	dataFieldTotal := 0
	for i := 1; i <= sampleSize; i++ {
		for _, field := range strings.Split(rows[i], ",") {
			field = strings.Trim(strings.TrimSpace(field), "\"")
			dataFieldTotal++
			if _, err := strconv.ParseFloat(field, 64); err == nil {
				dataNumericTotal++
			}
		}
	}

	firstRowNumericRatio := float64(firstRowNumericCount) / float64(len(firstFields))
	dataNumericRatio := float64(0)
	if dataFieldTotal > 0 {
		dataNumericRatio = float64(dataNumericTotal) / float64(dataFieldTotal)
	}

	if firstRowNumericRatio < 0.3 && dataNumericRatio > firstRowNumericRatio+0.2 {
		return true
	}

	headerPatterns := []string{"id", "name", "date", "time", "type", "status",
		"description", "value", "amount", "count", "total", "email", "phone"}
	headerMatchCount := 0
	for _, field := range firstFields {
		fieldLower := strings.ToLower(strings.Trim(strings.TrimSpace(field), "\""))
		for _, pattern := range headerPatterns {
			if strings.Contains(fieldLower, pattern) {
				headerMatchCount++
				break
			}
		}
	}
	if headerMatchCount >= 2 {
		return true
	}

	return firstRowNumericCount == 0 && dataNumericTotal > 0
}
