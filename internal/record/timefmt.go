package record

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// minTime is January, year 1, 00:00 in YYYYMMDDHHMM form. Anything smaller
// comes from a mangled field and is treated as absent.
const minTime = 101010000

const maxTime = 999912312359

// ParseTime accepts a 12-digit integer, a "YYYY/MM/DD|HH:MM" string or an
// RFC3339 timestamp and returns the YYYYMMDDHHMM form, or 0 when the value is
// missing or malformed.
func ParseTime(v any) int64 {
	switch t := v.(type) {
	case int64:
		return checkTime(t)
	case int:
		return checkTime(int64(t))
	case float64:
		if t != float64(int64(t)) {
			return 0
		}
		return checkTime(int64(t))
	case string:
		return parseTimeString(t)
	}
	return 0
}

func parseTimeString(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return checkTime(n)
	}
	var year, month, day, hour, minute int
	if _, err := fmt.Sscanf(s, "%d/%d/%d|%d:%d", &year, &month, &day, &hour, &minute); err == nil {
		return checkTime(compose(year, month, day, hour, minute))
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return checkTime(compose(t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute()))
	}
	return 0
}

func compose(year, month, day, hour, minute int) int64 {
	return int64(year)*100000000 + int64(month)*1000000 + int64(day)*10000 + int64(hour)*100 + int64(minute)
}

func checkTime(n int64) int64 {
	if n < minTime || n > maxTime {
		return 0
	}
	month := (n / 1000000) % 100
	day := (n / 10000) % 100
	hour := (n / 100) % 100
	minute := n % 100
	if month < 1 || month > 12 || day < 1 || day > 31 || hour > 23 || minute > 59 {
		return 0
	}
	return n
}

// FormatTime renders t as "YYYY/MM/DD|HH:MM", or "" for an unknown time.
func FormatTime(t int64) string {
	if checkTime(t) == 0 {
		return ""
	}
	return fmt.Sprintf("%04d/%02d/%02d|%02d:%02d",
		t/100000000, (t/1000000)%100, (t/10000)%100, (t/100)%100, t%100)
}
