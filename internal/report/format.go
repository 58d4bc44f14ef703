package report

import (
	"fmt"
	"strings"
)

// bulletPrefix is part of the output contract: consumers parse account lines
// by the literal three-spaces-asterisk-space prefix.
const bulletPrefix = "   * "

// FormatDirect renders reports in the human-readable line grammar: one header
// line per channel followed by one bullet per account. The literal strings,
// including the bullet prefix and the "didn't met" phrasing, are a
// compatibility surface and must not be reworded.
func FormatDirect(reports []ChannelReport) string {
	var lines []string

	for _, ch := range reports {
		switch {
		case ch.ErrorMessage != "":
			lines = append(lines, fmt.Sprintf("%s – Error: %s", ch.DeviceName, ch.ErrorMessage))
		case !ch.HasFinalUpdate:
			if ch.Method == "Method 9" && len(ch.Accounts) > 0 {
				lines = append(lines, fmt.Sprintf("%s – completed daily task (%s)", ch.DeviceName, ch.Method))
			} else {
				lines = append(lines, fmt.Sprintf("%s – no daily task made", ch.DeviceName))
			}
		default:
			lines = append(lines, fmt.Sprintf("%s – completed daily task (%s)", ch.DeviceName, ch.Method))
		}

		for _, acc := range ch.Accounts {
			if strings.TrimSpace(acc.Username) == "" {
				continue
			}

			// Method 9 channels never show stats, only the username and the
			// blocked marker.
			if ch.Method == "Method 9" {
				if acc.Blocked {
					lines = append(lines, bulletPrefix+acc.Username+" – blocked")
				} else {
					lines = append(lines, bulletPrefix+acc.Username)
				}
				continue
			}

			total := acc.Total()
			actionWord := "follows"
			if acc.UnfollowRun {
				actionWord = "unfollows"
			}

			switch {
			case total > 0 || acc.Blocked:
				// The account actually ran; report results regardless of the
				// schedule.
				switch {
				case acc.Blocked:
					lines = append(lines, bulletPrefix+acc.Username+" – blocked")
				case acc.ScheduledFollows == 0:
					lines = append(lines, fmt.Sprintf("%s%s - total # of %s made: %d",
						bulletPrefix, acc.Username, actionWord, total))
				case total >= acc.ScheduledFollows:
					lines = append(lines, fmt.Sprintf("%s%s - total # of %s made: %d (met the daily max which is %d)",
						bulletPrefix, acc.Username, actionWord, total, acc.ScheduledFollows))
				default:
					lines = append(lines, fmt.Sprintf("%s%s - total # of %s made: %d (didn't met the daily max which is %d)",
						bulletPrefix, acc.Username, actionWord, total, acc.ScheduledFollows))
				}
			case acc.ScheduledStatus == "Off":
				lines = append(lines, bulletPrefix+acc.Username+" – off")
			case acc.ScheduledStatus == "Method 9":
				lines = append(lines, bulletPrefix+acc.Username)
			default:
				// Scheduled to run but produced nothing.
				if acc.ScheduledFollows > 0 {
					lines = append(lines, fmt.Sprintf("%s%s - total # of follows made: 0 (didn't met the daily max which is %d)",
						bulletPrefix, acc.Username, acc.ScheduledFollows))
				} else {
					lines = append(lines, bulletPrefix+acc.Username+" - total # of follows made: 0")
				}
			}
		}
	}

	filtered := lines[:0]
	for _, line := range lines {
		if strings.TrimSpace(line) != "" {
			filtered = append(filtered, line)
		}
	}
	return strings.Join(filtered, "\n")
}

// FormatCompact renders one machine-compact line per channel:
// device|status|acc:schedStatus:schedFollows:actualFollows+actualRequests:blocked,...
// Status is ok:<method>, no_task, or error:<first 30 chars of the message>.
func FormatCompact(reports []ChannelReport) string {
	var lines []string

	for _, ch := range reports {
		var status string
		switch {
		case ch.ErrorMessage != "":
			status = "error:" + truncate(ch.ErrorMessage, 30)
		case !ch.HasFinalUpdate:
			if ch.Method == "Method 9" && len(ch.Accounts) > 0 {
				status = "ok:" + ch.Method
			} else {
				status = "no_task"
			}
		default:
			status = "ok:" + ch.Method
		}

		accParts := make([]string, 0, len(ch.Accounts))
		for _, acc := range ch.Accounts {
			blockedFlag := "n"
			if acc.Blocked {
				blockedFlag = "y"
			}
			accParts = append(accParts, fmt.Sprintf("%s:%s:%d:%d+%d:%s",
				acc.Username, acc.ScheduledStatus, acc.ScheduledFollows,
				acc.ActualFollows, acc.ActualRequests, blockedFlag))
		}

		lines = append(lines, fmt.Sprintf("%s|%s|%s", ch.DeviceName, status, strings.Join(accParts, ",")))
	}

	return strings.Join(lines, "\n")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
