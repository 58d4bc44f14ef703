package report

import (
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	finalUpdateMarkerRe = regexp.MustCompile(`(?i)task\s+final\s+update`)
	taskNameRe          = regexp.MustCompile(`(?i)task:\s*(.+?)(\n|$)`)
	scheduleDeviceRe    = regexp.MustCompile(`(?i)(?:weekly plan scheduled|task):\s*(.+?)(\n|$|\s{2,}|\s*📅)`)
	dayHeaderRe         = regexp.MustCompile(`(?i)(?:📅\s*\n?\s*)?(\w{3}\s+\w{3}\s+\d{1,2})\s+[\d:]+\s*:`)
	accountsSectionRe   = regexp.MustCompile(`(?is)accounts:\s*(.*)`)
	scheduleAccountRe   = regexp.MustCompile(`(?i)(\w+(?:\.\w+)?)\s*:\s*(method\s*\d+|off)(?:,\s*(\d+)\s*follows)?`)
	digitsRe            = regexp.MustCompile(`\d+`)
)

// scheduleStoplist rejects header tokens the loose account-line pattern would
// otherwise pick up as usernames.
var scheduleStoplist = map[string]bool{
	"type": true, "method": true, "automation": true,
	"stats": true, "device": true, "notification": true,
}

// Extract locates the schedule and final-update texts in a channel's
// newest-first history. The final update is located (optionally for the
// target date) and stitched first; the schedule search then prefers a
// single-day daily reminder over the multi-day schedule, splits a combined
// schedule+final message at the final-update marker, and appends a trailing
// "(Part 2)" continuation. Either result may be empty.
func (p *Pipeline) Extract(msgs []MessageRecord, targetDate string) (scheduleText, finalUpdateText string) {
	finalUpdateText, finalIdx := p.LocateFinalUpdate(msgs, targetDate)
	if finalUpdateText != "" {
		finalUpdateText = p.StitchFinalUpdate(msgs, finalIdx, finalUpdateText)
	}

	var reminderText string
	for _, msg := range msgs {
		text := msg.Text
		if strings.TrimSpace(text) == "" {
			continue
		}
		lower := strings.ToLower(text)

		isDailyReminder := strings.Contains(lower, "daily schedule reminder") ||
			(strings.Contains(lower, "start time:") && strings.Contains(lower, "accounts:") && strings.Contains(lower, "task:"))
		if isDailyReminder && reminderText == "" {
			reminderText = text
			p.logger.Debug("captured daily reminder message", slog.Int("length", len(reminderText)))
		}

		hasScheduleMarkers := (strings.Contains(lower, "schedule") &&
			(strings.Contains(text, "📅") || strings.Contains(lower, "accounts:"))) ||
			strings.Contains(lower, "weekly plan scheduled")
		if !hasScheduleMarkers {
			continue
		}

		if finalUpdateText != "" && text == finalUpdateText {
			// Schedule and final update arrived as one message; keep the part
			// before the final-update marker as the schedule.
			if loc := finalUpdateMarkerRe.FindStringIndex(text); loc != nil {
				scheduleText = strings.TrimSpace(text[:loc[0]])
				p.logger.Debug("split combined schedule/final message",
					slog.Int("schedule", len(scheduleText)), slog.Int("final", len(finalUpdateText)))
				break
			}
		} else {
			scheduleText = text
			p.logger.Debug("found separate schedule message", slog.Int("length", len(scheduleText)))
			break
		}
	}

	if scheduleText != "" {
		for _, msg := range msgs {
			lower := strings.ToLower(msg.Text)
			if strings.TrimSpace(msg.Text) == "" {
				continue
			}
			if strings.Contains(lower, "(part 2)") && !strings.Contains(lower, "task final update") {
				scheduleText = scheduleText + "\n" + msg.Text
				p.logger.Debug("appended schedule continuation", slog.Int("length", len(scheduleText)))
				break
			}
		}
	}

	// The single-day reminder always wins over the multi-day schedule.
	if reminderText != "" {
		scheduleText = reminderText
		p.logger.Debug("using daily reminder as schedule source")
	}

	return scheduleText, finalUpdateText
}

// ParseSchedule parses schedule text into the planned state for the section
// matching runDate. Precedence: a daily reminder block covers the whole text;
// otherwise the day section matching one of four renderings of runDate;
// otherwise an "Accounts:" section; otherwise the first day section, flagged
// as a low-confidence match.
func (p *Pipeline) ParseSchedule(scheduleText, runDate string) ScheduleResult {
	result := ScheduleResult{DeviceName: "Unknown", Method: "Method 1"}
	lower := strings.ToLower(scheduleText)

	reminderDate := startTimeRe.FindStringSubmatch(scheduleText)
	if m := taskNameRe.FindStringSubmatch(scheduleText); m != nil {
		result.DeviceName = NormalizeDeviceName(strings.TrimSpace(m[1]))
	}

	var sectionToParse, matchedDay string

	if strings.Contains(lower, "daily schedule reminder") || reminderDate != nil {
		if reminderDate != nil {
			matchedDay = reminderDate[1]
			if runDate != "" && matchedDay != runDate {
				p.logger.Debug("reminder date differs from run date; still using reminder",
					slog.String("reminder", matchedDay), slog.String("run_date", runDate))
			}
		}
		sectionToParse = scheduleText
	}

	if m := scheduleDeviceRe.FindStringSubmatch(scheduleText); m != nil {
		result.DeviceName = strings.TrimSpace(m[1])
	}

	targetPatterns := targetDayPatterns(runDate)
	if runDate != "" && targetPatterns == nil {
		p.logger.Warn("could not parse run date for schedule matching", slog.String("run_date", runDate))
	}

	headers, sections := splitDaySections(scheduleText)

	if sectionToParse == "" {
		p.logger.Debug("found day sections in schedule", slog.Int("count", len(headers)))
		if len(sections) > 0 && len(targetPatterns) > 0 {
			for i, header := range headers {
				cleaned := strings.Join(strings.Fields(header), " ")
				for _, pattern := range targetPatterns {
					if strings.Contains(strings.ToLower(cleaned), strings.ToLower(pattern)) {
						sectionToParse = sections[i]
						matchedDay = cleaned
						p.logger.Debug("matched schedule day",
							slog.String("day", cleaned), slog.String("pattern", pattern))
						break
					}
				}
				if sectionToParse != "" {
					break
				}
			}
			if sectionToParse == "" {
				p.logger.Warn("no schedule day matched run date",
					slog.String("run_date", runDate), slog.Any("patterns", targetPatterns))
			}
		}
	}

	if sectionToParse == "" {
		if m := accountsSectionRe.FindStringSubmatch(scheduleText); m != nil {
			sectionToParse = m[1]
			p.logger.Debug("using accounts section fallback")
		}
	}

	if sectionToParse == "" && len(sections) > 0 {
		sectionToParse = sections[0]
		matchedDay = headers[0]
		p.logger.Warn("using first schedule day as fallback", slog.String("day", matchedDay))
	}

	index := map[string]int{}
	for _, m := range scheduleAccountRe.FindAllStringSubmatch(sectionToParse, -1) {
		username := m[1]
		if scheduleStoplist[strings.ToLower(username)] {
			continue
		}
		status := canonicalStatus(m[2])
		follows := 0
		if m[3] != "" {
			follows, _ = strconv.Atoi(m[3])
		}
		entry := ScheduledAccount{Username: username, Status: status, Follows: follows}
		if at, seen := index[username]; seen {
			result.Accounts[at] = entry
		} else {
			index[username] = len(result.Accounts)
			result.Accounts = append(result.Accounts, entry)
		}
		if strings.Contains(strings.ToLower(status), "method") {
			result.Method = status
		}
	}

	usernames := make([]string, 0, len(result.Accounts))
	for _, a := range result.Accounts {
		usernames = append(usernames, a.Username)
	}
	p.logger.Debug("parsed schedule",
		slog.String("device", result.DeviceName),
		slog.String("matched_day", matchedDay),
		slog.Any("accounts", usernames))

	return result
}

// targetDayPatterns renders runDate the four ways a schedule day header may
// spell it: with/without weekday, zero-padded and bare day number.
func targetDayPatterns(runDate string) []string {
	if runDate == "" {
		return nil
	}
	dt, err := time.Parse(DateLayout, runDate)
	if err != nil {
		return nil
	}
	day := strconv.Itoa(dt.Day())
	return []string{
		dt.Format("Mon Jan 02"),
		dt.Format("Mon Jan") + " " + day,
		dt.Format("Jan 02"),
		dt.Format("Jan") + " " + day,
	}
}

// splitDaySections partitions schedule text on day headers like
// "Tue Dec 02 18:22:". Content runs from each header to the next or the end.
func splitDaySections(text string) (headers, sections []string) {
	matches := dayHeaderRe.FindAllStringSubmatchIndex(text, -1)
	for i, m := range matches {
		headers = append(headers, text[m[2]:m[3]])
		end := len(text)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		sections = append(sections, text[m[1]:end])
	}
	return headers, sections
}

// canonicalStatus maps a matched status token to the "Method N" / "Off" enum
// forms regardless of source casing and spacing.
func canonicalStatus(raw string) string {
	lower := strings.ToLower(strings.TrimSpace(raw))
	if lower == "off" {
		return "Off"
	}
	if digits := digitsRe.FindString(lower); digits != "" {
		return "Method " + digits
	}
	return "Unknown"
}
