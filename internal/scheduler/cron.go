// Nuntius - Tautulli Recently Added Digests for Discord
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/nuntius

// Package scheduler runs digest generation on a cron schedule.
package scheduler

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Schedule is a parsed 5-field cron expression:
// minute hour day-of-month month day-of-week.
type Schedule struct {
	expr string

	minutes     []int // 0-59
	hours       []int // 0-23
	daysOfMonth []int // 1-31
	months      []int // 1-12
	daysOfWeek  []int // 0-6 (0 = Sunday)

	// Wildcard flags drive the day-of-month/day-of-week OR semantics:
	// when both fields are restricted, a time matching either fires.
	domStar bool
	dowStar bool
}

// monthAliases maps three-letter month names to their cron values.
var monthAliases = map[string]int{
	"jan": 1, "feb": 2, "mar": 3, "apr": 4, "may": 5, "jun": 6,
	"jul": 7, "aug": 8, "sep": 9, "oct": 10, "nov": 11, "dec": 12,
}

// dayAliases maps three-letter day names to their cron values.
var dayAliases = map[string]int{
	"sun": 0, "mon": 1, "tue": 2, "wed": 3, "thu": 4, "fri": 5, "sat": 6,
}

// Parse parses a standard 5-field cron expression.
// Format: minute hour day-of-month month day-of-week
//
// Supported syntax:
//   - * (any value)
//   - n (specific value)
//   - n-m (range)
//   - n,m,o (list)
//   - */s and n-m/s (steps)
//   - three-letter names for months and weekdays (JAN-DEC, SUN-SAT)
//
// Examples:
//   - "0 9 * * *" - Daily at 9:00 AM
//   - "0 9 * * MON" - Every Monday at 9:00 AM
//   - "*/15 * * * *" - Every 15 minutes
//   - "0 0 1 * *" - First day of every month at midnight
func Parse(expr string) (*Schedule, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return nil, fmt.Errorf("cron expression must have 5 fields (minute hour day month weekday), got %d", len(fields))
	}

	minutes, err := parseField(fields[0], 0, 59, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid minute field %q: %w", fields[0], err)
	}

	hours, err := parseField(fields[1], 0, 23, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid hour field %q: %w", fields[1], err)
	}

	daysOfMonth, err := parseField(fields[2], 1, 31, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid day-of-month field %q: %w", fields[2], err)
	}

	months, err := parseField(fields[3], 1, 12, monthAliases)
	if err != nil {
		return nil, fmt.Errorf("invalid month field %q: %w", fields[3], err)
	}

	daysOfWeek, err := parseField(fields[4], 0, 7, dayAliases)
	if err != nil {
		return nil, fmt.Errorf("invalid day-of-week field %q: %w", fields[4], err)
	}

	// Normalize day 7 (Sunday) to day 0
	normalized := make([]int, 0, len(daysOfWeek))
	for _, d := range daysOfWeek {
		if d == 7 {
			d = 0
		}
		normalized = append(normalized, d)
	}

	return &Schedule{
		expr:        expr,
		minutes:     minutes,
		hours:       hours,
		daysOfMonth: daysOfMonth,
		months:      months,
		daysOfWeek:  uniqueInts(normalized),
		domStar:     fields[2] == "*",
		dowStar:     fields[4] == "*",
	}, nil
}

// String returns the original cron expression.
func (s *Schedule) String() string {
	return s.expr
}

// Next returns the first time after the given one that matches the schedule,
// evaluated in the location of the given time. The search steps minute by
// minute and gives up after four years, returning the zero time; any
// expression Parse accepts matches well within that bound.
func (s *Schedule) Next(after time.Time) time.Time {
	loc := after.Location()

	// Start from the next whole minute
	t := after.Add(time.Minute)
	t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), 0, 0, loc)

	maxIterations := 4 * 365 * 24 * 60
	for i := 0; i < maxIterations; i++ {
		if s.matches(t) {
			return t
		}
		t = t.Add(time.Minute)
	}

	return time.Time{}
}

// matches reports whether the given time satisfies every field of the
// schedule.
func (s *Schedule) matches(t time.Time) bool {
	if !containsInt(s.minutes, t.Minute()) {
		return false
	}
	if !containsInt(s.hours, t.Hour()) {
		return false
	}
	if !containsInt(s.months, int(t.Month())) {
		return false
	}

	domMatch := containsInt(s.daysOfMonth, t.Day())
	dowMatch := containsInt(s.daysOfWeek, int(t.Weekday()))

	// Standard cron semantics: when both day fields are restricted,
	// either one matching is sufficient.
	switch {
	case s.domStar && s.dowStar:
		return true
	case s.domStar:
		return dowMatch
	case s.dowStar:
		return domMatch
	default:
		return domMatch || dowMatch
	}
}

// parseField parses a single cron field into the sorted set of values it
// covers. The aliases map translates named values (JAN, MON) for the fields
// that allow them.
func parseField(field string, minVal, maxVal int, aliases map[string]int) ([]int, error) {
	if field == "*" {
		return rangeInts(minVal, maxVal), nil
	}

	if strings.Contains(field, ",") {
		var result []int
		for _, part := range strings.Split(field, ",") {
			values, err := parseFieldPart(part, minVal, maxVal, aliases)
			if err != nil {
				return nil, err
			}
			result = append(result, values...)
		}
		return uniqueInts(result), nil
	}

	return parseFieldPart(field, minVal, maxVal, aliases)
}

// parseFieldPart parses a single non-list part of a cron field.
func parseFieldPart(part string, minVal, maxVal int, aliases map[string]int) ([]int, error) {
	// Step: */s, n/s, or n-m/s
	if strings.Contains(part, "/") {
		parts := strings.SplitN(part, "/", 2)
		step, err := strconv.Atoi(parts[1])
		if err != nil || step <= 0 {
			return nil, fmt.Errorf("invalid step value: %s", parts[1])
		}

		var rangeStart, rangeEnd int
		switch {
		case parts[0] == "*":
			rangeStart = minVal
			rangeEnd = maxVal
		case strings.Contains(parts[0], "-"):
			rangeStart, rangeEnd, err = parseRange(parts[0], aliases)
			if err != nil {
				return nil, err
			}
		default:
			rangeStart, err = parseValue(parts[0], aliases)
			if err != nil {
				return nil, err
			}
			rangeEnd = maxVal
		}

		var result []int
		for i := rangeStart; i <= rangeEnd; i += step {
			if i >= minVal && i <= maxVal {
				result = append(result, i)
			}
		}
		if len(result) == 0 {
			return nil, fmt.Errorf("step produces no values: %s", part)
		}
		return result, nil
	}

	// Range: n-m
	if strings.Contains(part, "-") {
		start, end, err := parseRange(part, aliases)
		if err != nil {
			return nil, err
		}
		if start > end || start < minVal || end > maxVal {
			return nil, fmt.Errorf("range out of bounds: %d-%d (allowed %d-%d)", start, end, minVal, maxVal)
		}
		return rangeInts(start, end), nil
	}

	// Single value
	val, err := parseValue(part, aliases)
	if err != nil {
		return nil, err
	}
	if val < minVal || val > maxVal {
		return nil, fmt.Errorf("value out of range: %d (allowed %d-%d)", val, minVal, maxVal)
	}
	return []int{val}, nil
}

// parseRange parses "n-m", resolving named values on both sides.
func parseRange(s string, aliases map[string]int) (int, int, error) {
	parts := strings.SplitN(s, "-", 2)
	start, err := parseValue(parts[0], aliases)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid range start: %s", parts[0])
	}
	end, err := parseValue(parts[1], aliases)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid range end: %s", parts[1])
	}
	return start, end, nil
}

// parseValue resolves a single token to an integer, consulting the alias
// map first so that "MON" or "dec" work wherever a number does.
func parseValue(s string, aliases map[string]int) (int, error) {
	if aliases != nil {
		if v, ok := aliases[strings.ToLower(s)]; ok {
			return v, nil
		}
	}
	val, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid value: %s", s)
	}
	return val, nil
}

// rangeInts returns the integers from start to end inclusive.
func rangeInts(start, end int) []int {
	result := make([]int, end-start+1)
	for i := range result {
		result[i] = start + i
	}
	return result
}

// containsInt reports whether the sorted slice contains the value.
func containsInt(values []int, val int) bool {
	for _, v := range values {
		if v == val {
			return true
		}
	}
	return false
}

// uniqueInts removes duplicates and sorts ascending.
func uniqueInts(values []int) []int {
	seen := make(map[int]bool, len(values))
	result := make([]int, 0, len(values))
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			result = append(result, v)
		}
	}
	sort.Ints(result)
	return result
}
