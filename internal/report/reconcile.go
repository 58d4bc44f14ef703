package report

import (
	"log/slog"
	"regexp"
	"strings"
)

var (
	channelPhoneRe   = regexp.MustCompile(`(?i)phone-?(\d+)`)
	automationTypeRe = regexp.MustCompile(`(?i)automation type:\s*(method\s*\d+)`)
)

// BuildChannelReport merges a channel's schedule and final-update texts into
// one report. The final update is parsed first so its run date can select the
// matching schedule day. Device-name resolution, in order: the final-update
// name when its number agrees with the channel's expected phone number, the
// channel-derived name on disagreement (logged), the normalized final-update
// name, and "Unknown" last. The final-update method is authoritative over the
// schedule's.
func (p *Pipeline) BuildChannelReport(channelName, scheduleText, finalUpdateText string) ChannelReport {
	deviceName := "Unknown"
	method := "Method 1"

	expectedPhoneNum := ""
	if m := channelPhoneRe.FindStringSubmatch(channelName); m != nil {
		expectedPhoneNum = m[1]
	}

	var (
		runDate         string
		errorMessage    string
		methodFromFinal string
		actual          FinalUpdateResult
	)
	if finalUpdateText != "" {
		actual = p.ParseFinalUpdate(finalUpdateText)
		runDate = actual.RunDate
		errorMessage = actual.ErrorMessage
		if actual.DeviceName != "Unknown" {
			deviceName = NormalizeDeviceName(actual.DeviceName)
		}
		if m := automationTypeRe.FindStringSubmatch(finalUpdateText); m != nil {
			methodFromFinal = canonicalStatus(m[1])
		} else if strings.Contains(strings.ToLower(finalUpdateText), "method 9") {
			methodFromFinal = "Method 9"
		}
		p.logger.Debug("parsed final update",
			slog.String("channel", channelName),
			slog.String("run_date", runDate),
			slog.Int("accounts", len(actual.Accounts)))
	}

	var scheduled ScheduleResult
	if scheduleText != "" {
		scheduled = p.ParseSchedule(scheduleText, runDate)
		method = scheduled.Method
		if deviceName == "Unknown" && scheduled.DeviceName != "Unknown" {
			deviceName = NormalizeDeviceName(scheduled.DeviceName)
		}
	}

	if methodFromFinal != "" {
		method = methodFromFinal
	}

	scheduledIndex := map[string]ScheduledAccount{}
	for _, sa := range scheduled.Accounts {
		scheduledIndex[sa.Username] = sa
	}
	actualIndex := map[string]ActualAccount{}
	for _, aa := range actual.Accounts {
		actualIndex[aa.Username] = aa
	}

	// A schedule that says "Off" while the account reports activity usually
	// means the day matching picked the wrong section upstream.
	for _, aa := range actual.Accounts {
		sa, ok := scheduledIndex[aa.Username]
		if !ok {
			continue
		}
		if strings.EqualFold(sa.Status, "off") && aa.Follows+aa.Requests > 0 {
			p.logger.Error("schedule says off but account reported activity",
				slog.String("channel", channelName),
				slog.String("username", aa.Username),
				slog.Int("actual", aa.Follows+aa.Requests),
				slog.String("run_date", runDate))
		}
	}

	if expectedPhoneNum != "" && deviceName != "Unknown" {
		if digits := digitsRe.FindString(deviceName); digits != "" && digits != expectedPhoneNum {
			p.logger.Warn("device mismatch, using channel-based name",
				slog.String("channel", channelName),
				slog.String("reported", deviceName))
			deviceName = "Phone " + expectedPhoneNum
		} else {
			deviceName = NormalizeDeviceName(deviceName)
		}
	}
	if deviceName == "Unknown" {
		if expectedPhoneNum != "" {
			deviceName = "Phone " + expectedPhoneNum
		} else {
			deviceName = NormalizeDeviceName(deviceName)
		}
	}

	// Union of both sides, in a deterministic order: scheduled accounts as the
	// schedule listed them, then actual-only accounts as they were parsed.
	accounts := make([]Account, 0, len(scheduled.Accounts)+len(actual.Accounts))
	for _, sa := range scheduled.Accounts {
		aa := actualIndex[sa.Username]
		accounts = append(accounts, Account{
			Username:         sa.Username,
			ScheduledStatus:  sa.Status,
			ScheduledFollows: sa.Follows,
			ActualFollows:    aa.Follows,
			ActualRequests:   aa.Requests,
			Blocked:          aa.Blocked,
			UnfollowRun:      aa.UnfollowRun,
		})
	}
	for _, aa := range actual.Accounts {
		if _, ok := scheduledIndex[aa.Username]; ok {
			continue
		}
		accounts = append(accounts, Account{
			Username:        aa.Username,
			ScheduledStatus: "Unknown",
			ActualFollows:   aa.Follows,
			ActualRequests:  aa.Requests,
			Blocked:         aa.Blocked,
			UnfollowRun:     aa.UnfollowRun,
		})
	}

	return ChannelReport{
		ChannelName:    channelName,
		DeviceName:     deviceName,
		Method:         method,
		Accounts:       accounts,
		HasSchedule:    scheduleText != "" && len(scheduled.Accounts) > 0,
		HasFinalUpdate: finalUpdateText != "",
		ErrorMessage:   errorMessage,
	}
}
