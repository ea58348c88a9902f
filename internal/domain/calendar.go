package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the wire format of every calendar date in a plan.
const DateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD calendar date. Out-of-range days such as
// 2025-02-30 are rejected.
func ParseDate(s string) (time.Time, error) {
	if len(s) != len(DateLayout) {
		return time.Time{}, fmt.Errorf("invalid date %q (expected YYYY-MM-DD)", s)
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (expected YYYY-MM-DD)", s)
	}
	return t, nil
}

// ParseClock parses an "HH:MM" time of day into minutes after midnight.
func ParseClock(s string) (int, error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, fmt.Errorf("invalid time %q (expected HH:MM)", s)
	}
	h, errH := strconv.Atoi(s[:2])
	m, errM := strconv.Atoi(s[3:])
	if errH != nil || errM != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid time %q (expected HH:MM)", s)
	}
	return h*60 + m, nil
}

// FormatClock renders minutes after midnight as "HH:MM".
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// WeekdayLocale selects the language of generated weekday labels.
type WeekdayLocale string

const (
	LocaleVietnamese WeekdayLocale = "vi"
	LocaleEnglish    WeekdayLocale = "en"
)

var weekdayLabels = map[WeekdayLocale][7]string{
	LocaleVietnamese: {"Chủ Nhật", "Thứ Hai", "Thứ Ba", "Thứ Tư", "Thứ Năm", "Thứ Sáu", "Thứ Bảy"},
	LocaleEnglish:    {"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"},
}

// WeekdayLabel returns the label of d's weekday in the given locale.
// Unknown locales fall back to Vietnamese.
func WeekdayLabel(d time.Time, locale WeekdayLocale) string {
	labels, ok := weekdayLabels[locale]
	if !ok {
		labels = weekdayLabels[LocaleVietnamese]
	}
	return labels[d.Weekday()]
}

// WeekdayMatches reports whether label names d's weekday in any supported
// locale. Comparison ignores case and surrounding whitespace.
func WeekdayMatches(d time.Time, label string) bool {
	label = strings.TrimSpace(label)
	for _, labels := range weekdayLabels {
		if strings.EqualFold(labels[d.Weekday()], label) {
			return true
		}
	}
	return false
}
