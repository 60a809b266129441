package enrich

import (
	"strconv"
	"strings"

	"epatra/pkg/types"
)

// snake_case spellings models sometimes return instead of the requested keys.
var fieldAliases = map[string]string{
	"recipient_name": "recipientName",
	"serial_number":  "serialNumber",
	"letter_date":    "letterDate",
	"received_date":  "receivedDate",
	"letter_type":    "letterType",
	"document_count": "documentCount",
}

// NormalizeFields maps a loosely typed provider object onto the fixed letter
// keys. Blank strings become nil and numbers are kept in their decimal form.
func NormalizeFields(raw map[string]any) types.ExtractedFields {
	var fields types.LetterFields

	for key, value := range raw {
		if alias, ok := fieldAliases[key]; ok {
			if _, exists := raw[alias]; exists {
				continue
			}
			key = alias
		}
		fields.Set(key, fieldValue(value))
	}

	return types.ExtractedFields(fields)
}

func fieldValue(v any) *string {
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case float64:
		s = strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		s = strconv.Itoa(t)
	default:
		return nil
	}

	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "null") {
		return nil
	}
	return &s
}
