package search

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/localnerve/casedocs/internal/types"
)

// rangeBound marks which end of a range a value belongs to, so a bare
// calendar date can expand to the correct edge of its day window.
type rangeBound int

const (
	boundNone rangeBound = iota
	boundFrom
	boundTo
)

const (
	layoutDate      = "2006-01-02"
	layoutLocalTime = "15:04:05"
	layoutLocalDT   = "2006-01-02T15:04:05"
)

// coerce normalizes a caller-supplied filter value into the comparable
// representation used against stored (UTC) content. offsetMinutes is the
// caller's UTC offset.
func coerce(dt DataType, v any, offsetMinutes int, bound rangeBound) (any, error) {
	if v == nil {
		return nil, types.NewValidationError("nil filter value")
	}
	switch dt {
	case "", DataTypeText:
		return stringify(v), nil
	case DataTypeNumber:
		return coerceNumber(v)
	case DataTypeBoolean:
		return coerceBool(v)
	case DataTypeTime:
		return coerceTime(v)
	case DataTypeDate:
		return coerceDate(v)
	case DataTypeDateTime:
		return coerceDateTime(v, offsetMinutes, bound)
	}
	return nil, types.NewValidationError("unknown data type %q", dt)
}

func stringify(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case time.Time:
		return s.UTC().Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func coerceNumber(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, types.NewValidationError("not a number: %q", n)
		}
		return f, nil
	}
	return 0, types.NewValidationError("not a number: %v", v)
}

func coerceBool(v any) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		parsed, err := strconv.ParseBool(b)
		if err != nil {
			return false, types.NewValidationError("not a boolean: %q", b)
		}
		return parsed, nil
	}
	return false, types.NewValidationError("not a boolean: %v", v)
}

func coerceTime(v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		if t, isTime := v.(time.Time); isTime {
			return t.UTC().Format(layoutLocalTime), nil
		}
		return "", types.NewValidationError("not a time of day: %v", v)
	}
	for _, layout := range []string{layoutLocalTime, "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(layoutLocalTime), nil
		}
	}
	return "", types.NewValidationError("not a time of day: %q", s)
}

// coerceDate yields a plain "YYYY-MM-DD" value. Fields that store full
// timestamps should be filtered as datetime instead.
func coerceDate(v any) (string, error) {
	switch d := v.(type) {
	case time.Time:
		return d.UTC().Format(layoutDate), nil
	case string:
		if t, err := time.Parse(layoutDate, d); err == nil {
			return t.Format(layoutDate), nil
		}
		if t, err := time.Parse(time.RFC3339, d); err == nil {
			return t.UTC().Format(layoutDate), nil
		}
		return "", types.NewValidationError("not a date: %q", d)
	}
	return "", types.NewValidationError("not a date: %v", v)
}

// coerceDateTime yields an RFC3339 UTC instant. Values without a zone are
// interpreted at the caller's UTC offset; a bare calendar date expands to
// the start or end of that day depending on the range bound it sits on.
func coerceDateTime(v any, offsetMinutes int, bound rangeBound) (string, error) {
	loc := time.FixedZone("caller", offsetMinutes*60)
	switch d := v.(type) {
	case time.Time:
		return d.UTC().Format(time.RFC3339), nil
	case string:
		if t, err := time.Parse(time.RFC3339, d); err == nil {
			return t.UTC().Format(time.RFC3339), nil
		}
		if t, err := time.ParseInLocation(layoutLocalDT, d, loc); err == nil {
			return t.UTC().Format(time.RFC3339), nil
		}
		if t, err := time.ParseInLocation(layoutDate, d, loc); err == nil {
			if bound == boundTo {
				t = t.Add(24*time.Hour - time.Second)
			}
			return t.UTC().Format(time.RFC3339), nil
		}
		return "", types.NewValidationError("not a timestamp: %q", d)
	}
	return "", types.NewValidationError("not a timestamp: %v", v)
}

// contentPointer splits the remainder of a "doc:" path into JSON pointer
// segments. Dots separate properties; a bracketed index becomes its own
// numeric segment.
func contentPointer(rest string) ([]string, error) {
	rest = strings.TrimPrefix(rest, "$.")
	if rest == "" {
		return nil, types.NewValidationError("empty document path")
	}
	var segments []string
	for _, part := range strings.Split(rest, ".") {
		if part == "" {
			return nil, types.NewValidationError("empty segment in document path %q", rest)
		}
		for {
			open := strings.IndexByte(part, '[')
			if open < 0 {
				segments = append(segments, part)
				break
			}
			closing := strings.IndexByte(part, ']')
			if closing < open {
				return nil, types.NewValidationError("unbalanced brackets in document path %q", rest)
			}
			if open > 0 {
				segments = append(segments, part[:open])
			}
			index := part[open+1 : closing]
			if _, err := strconv.Atoi(index); err != nil {
				return nil, types.NewValidationError("non-numeric index %q in document path %q", index, rest)
			}
			segments = append(segments, index)
			part = part[closing+1:]
			if part == "" {
				break
			}
		}
	}
	return segments, nil
}
