package feed

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/wonny/putscan/internal/realtime"
)

// IBKR market data field codes
const (
	FieldCodeLast  = "31"
	FieldCodeBid   = "84"
	FieldCodeAsk   = "86"
	FieldCodeClose = "7296"
)

// QuoteFieldCodes is the field list requested for every quote
var QuoteFieldCodes = []string{FieldCodeLast, FieldCodeBid, FieldCodeAsk, FieldCodeClose}

// ParseFields converts a gateway field map into tick values.
// Values arrive as numbers, strings, or {"v": ...} objects. A last price
// prefixed with "C" is the previous close; "H" marks a halted last.
// Empty and unparseable values are skipped (they stay missing).
func ParseFields(raw map[string]interface{}) map[realtime.Field]float64 {
	values := make(map[realtime.Field]float64)

	if s, ok := fieldString(raw[FieldCodeLast]); ok {
		switch {
		case strings.HasPrefix(s, "C"):
			if v, err := parseNumber(s[1:]); err == nil {
				values[realtime.FieldClose] = v
			}
		case strings.HasPrefix(s, "H"):
			if v, err := parseNumber(s[1:]); err == nil {
				values[realtime.FieldLast] = v
			}
		default:
			if v, err := parseNumber(s); err == nil {
				values[realtime.FieldLast] = v
			}
		}
	}

	if s, ok := fieldString(raw[FieldCodeBid]); ok {
		if v, err := parseNumber(s); err == nil {
			values[realtime.FieldBid] = v
		}
	}
	if s, ok := fieldString(raw[FieldCodeAsk]); ok {
		if v, err := parseNumber(s); err == nil {
			values[realtime.FieldAsk] = v
		}
	}
	// an explicit close field wins over a C-prefixed last
	if s, ok := fieldString(raw[FieldCodeClose]); ok {
		if v, err := parseNumber(s); err == nil {
			values[realtime.FieldClose] = v
		}
	}

	return values
}

func fieldString(val interface{}) (string, bool) {
	switch v := val.(type) {
	case nil:
		return "", false
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case string:
		s := strings.TrimSpace(v)
		return s, s != ""
	case map[string]interface{}:
		return fieldString(v["v"])
	default:
		return "", false
	}
}

func parseNumber(s string) (float64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %q: %w", s, err)
	}
	return v, nil
}

// ParseConID reads a conid that may be encoded as number or string
func ParseConID(val interface{}) (int64, bool) {
	switch v := val.(type) {
	case float64:
		return int64(v), v > 0
	case string:
		id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		return id, err == nil && id > 0
	default:
		return 0, false
	}
}
