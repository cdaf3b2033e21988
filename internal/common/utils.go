package common

import (
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// StringPtr returns a pointer to the given string
func StringPtr(s string) *string {
	return &s
}

// Float64Ptr returns a pointer to the given float64
func Float64Ptr(f float64) *float64 {
	return &f
}

// objRegex spans from the first { to the last } in the text.
var objRegex = regexp.MustCompile(`(?s)\{.*\}`)

// ExtractJSON returns the candidate JSON object embedded in text, from the
// first opening brace through the last closing brace.
func ExtractJSON(text string) (string, bool) {
	match := objRegex.FindString(text)
	return match, match != ""
}

// DecodeJSONObject extracts and parses the JSON object embedded in LLM
// output. Missing braces and malformed JSON both report false.
func DecodeJSONObject(text string) (map[string]interface{}, bool) {
	match, ok := ExtractJSON(text)
	if !ok {
		return nil, false
	}
	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(match), &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

// GetStringValue retrieves a string value from a map using multiple possible keys
// It tries each key in order and returns the first non-empty value found
func GetStringValue(data map[string]interface{}, keys ...string) (string, bool) {
	for _, key := range keys {
		if val, ok := data[key]; ok {
			if strVal, ok := val.(string); ok && strVal != "" {
				return strVal, true
			}
		}
	}
	return "", false
}

// ToString coerces a decoded JSON value to a string. Absent and null values
// become "", scalars are formatted and composites are re-encoded.
func ToString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case json.Number:
		return t.String()
	default:
		raw, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(raw)
	}
}

// ToFloat reports the numeric value of a decoded JSON number.
func ToFloat(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// ToArray reports the elements of a decoded JSON array.
func ToArray(v interface{}) ([]interface{}, bool) {
	arr, ok := v.([]interface{})
	return arr, ok
}

// ToObject reports the fields of a decoded JSON object.
func ToObject(v interface{}) (map[string]interface{}, bool) {
	obj, ok := v.(map[string]interface{})
	return obj, ok
}

// ToStringSlice coerces every element of a decoded JSON array to a string.
// Non-arrays yield an empty slice.
func ToStringSlice(v interface{}) []string {
	arr, ok := ToArray(v)
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(arr))
	for _, item := range arr {
		out = append(out, ToString(item))
	}
	return out
}

// Truncate shortens s to at most n runes.
func Truncate(s string, n int) string {
	if n < 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

// TruncateForLogging truncates a string to a reasonable length for logging
func TruncateForLogging(s string) string {
	const maxLength = 500
	if len(s) <= maxLength {
		return s
	}
	return Truncate(s, maxLength) + "... [truncated]"
}

// ReturnJSONError writes a JSON error response with the given status code and message
func ReturnJSONError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	errorResponse := map[string]interface{}{
		"error": map[string]interface{}{
			"code":    statusCode,
			"message": message,
		},
	}

	if err := json.NewEncoder(w).Encode(errorResponse); err != nil {
		// If JSON encoding fails, fall back to plain text
		fmt.Fprintf(w, "Error: %s", message)
	}
}

// FirstLine returns the first line of s.
func FirstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
