package services

import (
	"math"
	"strconv"
	"strings"

	"melhor-casa/utils"
)

// Parser converts locale-formatted display strings ("R$ 1.200.000",
// "85 m²", "3 quartos") into whole numbers.
type Parser struct {
	logger *utils.Logger
}

// NewParser creates a Parser that reports conversions at debug level.
func NewParser(logger *utils.Logger) *Parser {
	return &Parser{logger: logger}
}

// Parse is ParseNumeric with a debug line for every non-trivial conversion.
func (p *Parser) Parse(v any) int64 {
	s, ok := v.(string)
	if !ok {
		return ParseNumeric(v)
	}
	result, cleaned, normalized := parseNumericString(s)
	if p.logger != nil && result > 0 && strings.TrimSpace(s) != cleaned {
		p.logger.Debug("[parser] Converted %q -> %q -> %q -> %d", s, cleaned, normalized, result)
	}
	return result
}

// ParseNumeric returns a best-effort non-negative integer for v, or 0 when
// nothing numeric can be recovered. It accepts nil, strings and Go numbers.
//
// Separator rules for strings, after dropping everything but digits, dots
// and commas:
//
//	two or more dots, or one dot and one comma  dots are thousands, comma is decimal
//	one dot, no comma                           decimal if 1-2 digits follow, else thousands
//	no dot, one comma                           comma is decimal
//	anything else                               all separators dropped
//
// The result is floored.
func ParseNumeric(v any) int64 {
	switch n := v.(type) {
	case nil:
		return 0
	case string:
		result, _, _ := parseNumericString(n)
		return result
	case *string:
		if n == nil {
			return 0
		}
		result, _, _ := parseNumericString(*n)
		return result
	case int:
		return clampInt(int64(n))
	case int32:
		return clampInt(int64(n))
	case int64:
		return clampInt(n)
	case uint:
		return floorToInt(float64(n))
	case uint32:
		return int64(n)
	case uint64:
		return floorToInt(float64(n))
	case float32:
		return floorToInt(float64(n))
	case float64:
		return floorToInt(n)
	default:
		return 0
	}
}

func parseNumericString(raw string) (result int64, cleaned, normalized string) {
	str := strings.TrimSpace(raw)
	if str == "" || str == "-" || str == "N/A" {
		return 0, "", ""
	}

	var b strings.Builder
	for _, r := range str {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' {
			b.WriteRune(r)
		}
	}
	cleaned = b.String()
	if cleaned == "" {
		return 0, "", ""
	}

	dots := strings.Count(cleaned, ".")
	commas := strings.Count(cleaned, ",")

	switch {
	case dots > 1 || (dots == 1 && commas == 1):
		normalized = strings.Replace(strings.ReplaceAll(cleaned, ".", ""), ",", ".", 1)
	case dots == 1 && commas == 0:
		_, frac, _ := strings.Cut(cleaned, ".")
		if len(frac) <= 2 {
			normalized = cleaned
		} else {
			normalized = strings.ReplaceAll(cleaned, ".", "")
		}
	case dots == 0 && commas == 1:
		normalized = strings.Replace(cleaned, ",", ".", 1)
	default:
		normalized = strings.NewReplacer(".", "", ",", "").Replace(cleaned)
	}

	f, err := strconv.ParseFloat(leadingNumber(normalized), 64)
	if err != nil {
		return 0, cleaned, normalized
	}
	return floorToInt(f), cleaned, normalized
}

// leadingNumber keeps the longest "digits[.digits]" prefix, so leftovers of
// odd separator mixes ("153.2,1") are ignored instead of failing the parse.
func leadingNumber(s string) string {
	end := 0
	seenDot := false
	for end < len(s) {
		c := s[end]
		if c == '.' && !seenDot {
			seenDot = true
		} else if c < '0' || c > '9' {
			break
		}
		end++
	}
	return strings.TrimSuffix(s[:end], ".")
}

func floorToInt(f float64) int64 {
	if math.IsNaN(f) || f <= 0 {
		return 0
	}
	if f >= math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(math.Floor(f))
}

func clampInt(n int64) int64 {
	if n < 0 {
		return 0
	}
	return n
}
