// Package report reconciles the schedule and final-update messages posted into a
// device channel into one structured report, and renders report sets as text.
package report

import "time"

// MessageRecord is one channel message as the pipeline sees it: flattened text
// plus the platform timestamp. Message sequences are ordered newest-first.
type MessageRecord struct {
	Text      string
	Timestamp time.Time
}

// ScheduledAccount is one account's planned state for a matched schedule day.
type ScheduledAccount struct {
	Username string
	// Status is "Method N", "Off", or "Unknown".
	Status  string
	Follows int
}

// ActualAccount is one account's reported state from a final update.
type ActualAccount struct {
	Username string
	Follows  int
	Requests int
	Blocked  bool
	// UnfollowRun marks a run that unfollowed instead of followed; Follows then
	// holds the unfollow count and Requests is always zero.
	UnfollowRun bool
}

// Account merges scheduled and actual state for one username.
type Account struct {
	Username         string
	ScheduledStatus  string
	ScheduledFollows int
	ActualFollows    int
	ActualRequests   int
	Blocked          bool
	UnfollowRun      bool
}

// Total returns follows plus requests, or the unfollow count alone for
// unfollow runs (those never carry request counts).
func (a Account) Total() int {
	if a.UnfollowRun {
		return a.ActualFollows
	}
	return a.ActualFollows + a.ActualRequests
}

// ChannelReport is the reconciled result for one device channel.
type ChannelReport struct {
	ChannelName    string
	DeviceName     string
	Method         string
	Accounts       []Account
	HasSchedule    bool
	HasFinalUpdate bool
	ErrorMessage   string
}

// ScheduleResult is the parsed planned state for the matched schedule day.
// Accounts keep the order the schedule listed them in.
type ScheduleResult struct {
	DeviceName string
	Method     string
	Accounts   []ScheduledAccount
}

// FinalUpdateResult is the parsed actual state from a stitched final update.
// Accounts keep first-seen order; a username repeated in a later section
// replaces the earlier values in place.
type FinalUpdateResult struct {
	DeviceName string
	RunDate    string
	Accounts   []ActualAccount
	// ErrorMessage is set for force-stop/disconnect hard errors (no account
	// data) and for the pending-popup soft error (partial data kept).
	ErrorMessage string
}
