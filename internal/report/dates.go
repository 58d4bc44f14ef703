package report

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the canonical date form used throughout the pipeline.
const DateLayout = "2006-01-02"

var weekdayNames = map[string]time.Weekday{
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday, "tues": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday, "thur": time.Thursday, "thurs": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
	"sunday": time.Sunday, "sun": time.Sunday,
}

var monthNames = map[string]time.Month{
	"jan": time.January, "january": time.January,
	"feb": time.February, "february": time.February,
	"mar": time.March, "march": time.March,
	"apr": time.April, "april": time.April,
	"may": time.May,
	"jun": time.June, "june": time.June,
	"jul": time.July, "july": time.July,
	"aug": time.August, "august": time.August,
	"sep": time.September, "sept": time.September, "september": time.September,
	"oct": time.October, "october": time.October,
	"nov": time.November, "november": time.November,
	"dec": time.December, "december": time.December,
}

var (
	monthDayRe = regexp.MustCompile(`^([a-z]+)\s+(\d{1,2})$`)
	isoDateRe  = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})$`)
	shortDayRe = regexp.MustCompile(`^(\d{1,2})[/-](\d{1,2})$`)
)

// ResolveDayArgument converts a user-supplied day token into a canonical
// YYYY-MM-DD date, relative to now. Accepted forms, tried in order: "today"
// and "yesterday"; a weekday name or abbreviation (most recent strictly
// before today); "<month> <day>" (nearest past occurrence, rolling back a
// year when the date would be in the future); an ISO YYYY-MM-DD date; and
// MM/DD or MM-DD with the same year-rollback rule. Anything else, or an
// impossible calendar date, is an error.
func ResolveDayArgument(arg string, now time.Time) (string, error) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	lowered := strings.ToLower(strings.TrimSpace(arg))

	switch lowered {
	case "today":
		return today.Format(DateLayout), nil
	case "yesterday":
		return today.AddDate(0, 0, -1).Format(DateLayout), nil
	}

	if target, ok := weekdayNames[lowered]; ok {
		daysAgo := (int(today.Weekday()) - int(target) + 7) % 7
		if daysAgo == 0 {
			// Today matches the requested weekday; use last week's occurrence.
			daysAgo = 7
		}
		return today.AddDate(0, 0, -daysAgo).Format(DateLayout), nil
	}

	if m := monthDayRe.FindStringSubmatch(lowered); m != nil {
		month, ok := monthNames[m[1]]
		if !ok {
			return "", fmt.Errorf("unknown month %q", m[1])
		}
		day, _ := strconv.Atoi(m[2])
		return resolvePastDate(today, today.Year(), month, day)
	}

	if m := isoDateRe.FindStringSubmatch(lowered); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		if !validDate(year, time.Month(month), day) {
			return "", fmt.Errorf("invalid date %q", arg)
		}
		return time.Date(year, time.Month(month), day, 0, 0, 0, 0, today.Location()).Format(DateLayout), nil
	}

	if m := shortDayRe.FindStringSubmatch(lowered); m != nil {
		month, _ := strconv.Atoi(m[1])
		day, _ := strconv.Atoi(m[2])
		return resolvePastDate(today, today.Year(), time.Month(month), day)
	}

	return "", fmt.Errorf("unrecognized day argument %q", arg)
}

// resolvePastDate builds the date in the given year, stepping back one year
// when that date lands after today.
func resolvePastDate(today time.Time, year int, month time.Month, day int) (string, error) {
	if !validDate(year, month, day) {
		return "", fmt.Errorf("invalid calendar date %04d-%02d-%02d", year, month, day)
	}
	date := time.Date(year, month, day, 0, 0, 0, 0, today.Location())
	if date.After(today) {
		if !validDate(year-1, month, day) {
			return "", fmt.Errorf("invalid calendar date %04d-%02d-%02d", year-1, month, day)
		}
		date = time.Date(year-1, month, day, 0, 0, 0, 0, today.Location())
	}
	return date.Format(DateLayout), nil
}

// validDate reports whether year/month/day is a real calendar date;
// time.Date normalizes overflow (Feb 30 becomes Mar 2), so round-trip it.
func validDate(year int, month time.Month, day int) bool {
	if month < time.January || month > time.December || day < 1 {
		return false
	}
	d := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return d.Year() == year && d.Month() == month && d.Day() == day
}
