// Package cron periodically scans enabled jobs and, when a job's schedule
// fires, injects a synthetic inbound message into the bus so the agent loop
// picks it up exactly like a message from a real channel.
package cron

import "time"

// CronSchedule is either a cron expression or a fixed interval, never
// both — a non-empty Expression selects the cron-expression path,
// otherwise the fixed Interval is used.
type CronSchedule struct {
	Expression string        `json:"expression,omitempty"`
	Interval   time.Duration `json:"interval,omitempty"`
}

// CronJob is one scheduled prompt injection: id, schedule, the prompt text
// to inject, which session it targets, and whether it's active.
type CronJob struct {
	ID               string       `json:"id"`
	Schedule         CronSchedule `json:"schedule"`
	Prompt           string       `json:"prompt"`
	TargetSessionKey string       `json:"target_session_key"`
	Enabled          bool         `json:"enabled"`
	LastFired        time.Time    `json:"last_fired,omitempty"`
}
