package extractor

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/utrscan/utrscan/internal/model"
)

var errNoJSONObject = errors.New("no JSON object in reply")

// modelReply mirrors the object the structure prompt asks for. Models are
// loose about types, so amount and is_edited are decoded by hand.
type modelReply struct {
	Date     any `json:"date"`
	UTR      any `json:"utr"`
	Amount   any `json:"amount"`
	IsEdited any `json:"is_edited"`
}

// parseModelReply extracts the first JSON object from reply.
func parseModelReply(reply string) (*model.ExtractedData, error) {
	obj, ok := firstJSONObject(reply)
	if !ok {
		return nil, errNoJSONObject
	}

	var r modelReply
	if err := json.Unmarshal([]byte(obj), &r); err != nil {
		return nil, fmt.Errorf("decode reply: %w", err)
	}

	return &model.ExtractedData{
		Date:     scalarString(r.Date),
		UTR:      strings.ReplaceAll(scalarString(r.UTR), " ", ""),
		Amount:   scalarString(r.Amount),
		IsEdited: truthy(r.IsEdited),
	}, nil
}

// firstJSONObject returns the first balanced {...} in s, ignoring braces
// inside string literals. Code fences and prose around it are skipped.
func firstJSONObject(s string) (string, bool) {
	for start := strings.IndexByte(s, '{'); start >= 0; {
		if end, ok := matchBrace(s, start); ok {
			return s[start : end+1], true
		}
		next := strings.IndexByte(s[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", false
}

func matchBrace(s string, start int) (int, bool) {
	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

func scalarString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		b, _ := strconv.ParseBool(strings.TrimSpace(t))
		return b
	default:
		return false
	}
}

// parseAmount reads a numeric amount, tolerating currency markers and
// thousands separators.
func parseAmount(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, model.UnknownValue) {
		return 0, false
	}

	lower := strings.ToLower(s)
	for _, marker := range []string{"₹", "inr", "rs.", "rs"} {
		lower = strings.ReplaceAll(lower, marker, "")
	}
	lower = strings.ReplaceAll(lower, ",", "")
	lower = strings.ReplaceAll(lower, " ", "")

	f, err := strconv.ParseFloat(lower, 64)
	if err != nil || f < 0 {
		return 0, false
	}
	return f, true
}

// interpretVerification maps the model's verification reply onto the final
// amount. Unrecognized replies keep the original.
func interpretVerification(original, reply string) string {
	r := strings.ToLower(strings.TrimSpace(reply))
	r = strings.Trim(r, " .!\"'`")

	switch {
	case r == "correct":
		return original
	case strings.Contains(r, "not found"):
		return model.UnknownValue
	}

	if f, ok := parseAmount(r); ok {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return original
}
