package parser

import (
	"fmt"
	"time"
)

// TimestampLayout is the fixed VRChat client log timestamp format.
const TimestampLayout = "2006.01.02 15:04:05"

// FastTimestamp parses "YYYY.MM.DD HH:MM:SS" using manual digit parsing.
// This avoids time.Parse on the hot per-line path; malformed input falls
// back to time.Parse so edge cases keep its exact semantics.
func FastTimestamp(ts string) (time.Time, error) {
	// Example: "2025.08.31 04:47:35" = 19 chars
	if len(ts) < 19 {
		return time.Time{}, fmt.Errorf("timestamp too short: %q", ts)
	}

	year := parseInt4(ts[0:4])
	month := parseInt2(ts[5:7])
	day := parseInt2(ts[8:10])
	hour := parseInt2(ts[11:13])
	min := parseInt2(ts[14:16])
	sec := parseInt2(ts[17:19])

	if year < 0 || month < 1 || month > 12 || day < 1 || day > 31 ||
		hour < 0 || hour > 23 || min < 0 || min > 59 || sec < 0 || sec > 59 {
		return time.Parse(TimestampLayout, ts)
	}

	return time.Date(year, time.Month(month), day, hour, min, sec, 0, time.UTC), nil
}

// parseInt2 parses a 2-digit decimal string. Returns -1 on error.
func parseInt2(s string) int {
	if len(s) != 2 {
		return -1
	}
	d1, d2 := s[0]-'0', s[1]-'0'
	if d1 > 9 || d2 > 9 {
		return -1
	}
	return int(d1)*10 + int(d2)
}

// parseInt4 parses a 4-digit decimal string. Returns -1 on error.
func parseInt4(s string) int {
	if len(s) != 4 {
		return -1
	}
	d1, d2, d3, d4 := s[0]-'0', s[1]-'0', s[2]-'0', s[3]-'0'
	if d1 > 9 || d2 > 9 || d3 > 9 || d4 > 9 {
		return -1
	}
	return int(d1)*1000 + int(d2)*100 + int(d3)*10 + int(d4)
}
