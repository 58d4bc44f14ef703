package report

import (
	"log/slog"
	"regexp"
	"strconv"
	"strings"
)

var (
	deviceNameRe       = regexp.MustCompile(`(?i)device name:\s*(.+?)(\n|$)`)
	sectionSeparatorRe = regexp.MustCompile(`-{5,}`)
	accountUsernameRe  = regexp.MustCompile(`(?i)account username:\s*(\w+(?:\.\w+)?)`)
	accountBareRe      = regexp.MustCompile(`(?i)account:\s*(\w+(?:\.\w+)?)`)
	followsMadeRe      = regexp.MustCompile(`(?i)no\.\s*of\s*follow\s*made:\s*(\d+)`)
	unfollowedRe       = regexp.MustCompile(`(?i)no\.\s*of\s*unfollowed\s*accounts:\s*(\d+)`)
	requestsMadeRe     = regexp.MustCompile(`(?i)no\.\s*of\s*follow\s*requests\s*made:\s*(\d+)`)
	requestsLooseRe    = regexp.MustCompile(`(?i)no\.\s*of\s*follow\s*requests[^0-9]*(\d+)`)
	actionsBlockedRe   = regexp.MustCompile(`(?i)account actions blocked:\s*(true|false)`)
	phoneNameRe        = regexp.MustCompile(`(?i)phone\s*(\d+)`)
)

// finalUpdateStoplist extends the schedule stoplist with "name", which the
// bare "account:" fallback would capture out of "Device Name:" lines.
var finalUpdateStoplist = map[string]bool{
	"type": true, "method": true, "automation": true,
	"stats": true, "device": true, "name": true, "notification": true,
}

// ParseFinalUpdate parses stitched final-update text into per-account actual
// state. Force-stop and disconnect markers are hard errors: they short-circuit
// with the error message and no account data. A pending-popup marker is a soft
// error: it is recorded but parsing continues, and when no account was
// captured at all a zeroed placeholder is synthesized from any bare
// "account: X" mention. Account sections are split on runs of five or more
// dashes; a username repeated in a later section fully replaces the earlier
// values (the platform posts a provisional update before the authoritative
// final one).
func (p *Pipeline) ParseFinalUpdate(text string) FinalUpdateResult {
	result := FinalUpdateResult{DeviceName: "Unknown"}
	lower := strings.ToLower(text)

	if strings.Contains(lower, "force stopped") {
		result.ErrorMessage = "Automation force stopped"
		return result
	}
	if strings.Contains(lower, "disconnected") {
		result.ErrorMessage = "Devices disconnected"
		return result
	}

	popupDetected := ""
	if hasPopupMarker(lower) {
		popupDetected = "Request pending popup detected"
	}

	if m := deviceNameRe.FindStringSubmatch(text); m != nil {
		result.DeviceName = strings.TrimSpace(m[1])
	}
	result.RunDate = extractRunDate(text)

	index := map[string]int{}
	for _, section := range sectionSeparatorRe.Split(text, -1) {
		userMatch := accountUsernameRe.FindStringSubmatch(section)
		if userMatch == nil {
			// Popup and error sections label the account "Account:" instead
			// of "Account Username:".
			userMatch = accountBareRe.FindStringSubmatch(section)
		}
		if userMatch == nil {
			continue
		}
		username := userMatch[1]
		if finalUpdateStoplist[strings.ToLower(username)] {
			p.logger.Debug("skipping header token matched as username", slog.String("token", username))
			continue
		}

		follows := 0
		unfollowRun := false
		if m := unfollowedRe.FindStringSubmatch(section); m != nil {
			follows, _ = strconv.Atoi(m[1])
			unfollowRun = true
		} else if m := followsMadeRe.FindStringSubmatch(section); m != nil {
			follows, _ = strconv.Atoi(m[1])
		}

		requests := 0
		if !unfollowRun {
			// Unfollow runs never carry request counts.
			if m := requestsMadeRe.FindStringSubmatch(section); m != nil {
				requests, _ = strconv.Atoi(m[1])
			} else if m := requestsLooseRe.FindStringSubmatch(section); m != nil {
				requests, _ = strconv.Atoi(m[1])
			}
		}

		blocked := false
		if m := actionsBlockedRe.FindStringSubmatch(section); m != nil {
			blocked = strings.EqualFold(m[1], "true")
		}

		entry := ActualAccount{
			Username:    username,
			Follows:     follows,
			Requests:    requests,
			Blocked:     blocked,
			UnfollowRun: unfollowRun,
		}
		if at, seen := index[username]; seen {
			prev := result.Accounts[at]
			p.logger.Info("overwriting account with later section",
				slog.String("username", username),
				slog.Int("old_follows", prev.Follows), slog.Int("old_requests", prev.Requests),
				slog.Int("follows", follows), slog.Int("requests", requests))
			result.Accounts[at] = entry
		} else {
			index[username] = len(result.Accounts)
			result.Accounts = append(result.Accounts, entry)
		}
	}

	if popupDetected != "" {
		result.ErrorMessage = popupDetected
		if len(result.Accounts) == 0 {
			username := "unknown"
			if m := accountBareRe.FindStringSubmatch(text); m != nil {
				username = m[1]
			}
			result.Accounts = append(result.Accounts, ActualAccount{Username: username})
		}
	}

	return result
}

// NormalizeDeviceName collapses any "phone N" spelling to the canonical
// "Phone N"; unrecognized names pass through unchanged.
func NormalizeDeviceName(name string) string {
	if name == "" || name == "Unknown" {
		return name
	}
	if m := phoneNameRe.FindStringSubmatch(name); m != nil {
		return "Phone " + m[1]
	}
	return name
}
