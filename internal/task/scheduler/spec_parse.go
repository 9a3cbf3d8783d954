package scheduler

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Schedule is a normalized schedule string.
//
// Supported forms:
//   - Cron: "*/5 * * * *", "0 9 * * *", "@daily", "@every 6h"
//   - Interval duration: "55m", "24h"
//   - Interval HH:MM: "00:50" (50 minutes), "24:00" (a day)
//
// The prefixes "cron:" and "every:" force one interpretation.
type Schedule struct {
	// Expr is always a robfig/cron spec; intervals become "@every <d>".
	Expr   string
	Every  time.Duration // 0 for cron schedules
	Source string        // "cron" | "duration" | "hhmm"
}

func (s Schedule) IsInterval() bool { return s.Every > 0 }

var reHHMM = regexp.MustCompile(`^(\d{1,3}):(\d{2})$`)

// ParseSchedule parses a cron expression or an interval.
func ParseSchedule(raw string) (Schedule, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Schedule{}, fmt.Errorf("schedule required")
	}

	low := strings.ToLower(s)
	switch {
	case strings.HasPrefix(low, "cron:"):
		expr := strings.TrimSpace(s[len("cron:"):])
		if expr == "" {
			return Schedule{}, fmt.Errorf("cron expression required after 'cron:'")
		}
		return Schedule{Expr: expr, Source: "cron"}, nil
	case strings.HasPrefix(low, "every:"):
		return parseInterval(strings.TrimSpace(s[len("every:"):]))
	case strings.ContainsAny(s, " \t") || strings.HasPrefix(s, "@"):
		return Schedule{Expr: s, Source: "cron"}, nil
	}

	sch, err := parseInterval(s)
	if err != nil {
		return Schedule{}, fmt.Errorf(
			"invalid schedule %q (use cron like '0 9 * * *', HH:MM like '24:00', or a duration like '6h')", raw)
	}
	return sch, nil
}

func parseInterval(v string) (Schedule, error) {
	if v == "" {
		return Schedule{}, fmt.Errorf("interval required")
	}
	var (
		d   time.Duration
		src string
	)
	if m := reHHMM.FindStringSubmatch(v); m != nil {
		hh, _ := strconv.Atoi(m[1])
		mm, _ := strconv.Atoi(m[2])
		if mm > 59 {
			return Schedule{}, fmt.Errorf("invalid minutes in %q", v)
		}
		d, src = time.Duration(hh)*time.Hour+time.Duration(mm)*time.Minute, "hhmm"
	} else {
		var err error
		if d, err = time.ParseDuration(v); err != nil {
			return Schedule{}, fmt.Errorf("invalid interval %q: %w", v, err)
		}
		src = "duration"
	}
	if d <= 0 {
		return Schedule{}, fmt.Errorf("interval must be > 0")
	}
	return Schedule{Expr: "@every " + d.String(), Every: d, Source: src}, nil
}
