package cron

import (
	"context"
	"testing"
	"time"

	"github.com/vikingbot/vikingbot/pkg/bus"
)

func TestAddJobRejectsBothScheduleKinds(t *testing.T) {
	s, err := NewScheduler(t.TempDir(), bus.NewMessageBus(4), time.Second)
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	err = s.AddJob(CronJob{
		ID:               "both",
		Schedule:         CronSchedule{Expression: "* * * * *", Interval: time.Minute},
		Prompt:           "hi",
		TargetSessionKey: "slack:team",
		Enabled:          true,
	})
	if err == nil {
		t.Fatal("expected error for job with both expression and interval")
	}
}

func TestAddJobPersistsAcrossRestart(t *testing.T) {
	dir := t.TempDir()
	b := bus.NewMessageBus(4)
	s, err := NewScheduler(dir, b, time.Second)
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	job := CronJob{
		ID:               "daily-report",
		Schedule:         CronSchedule{Interval: time.Hour},
		Prompt:           "daily report",
		TargetSessionKey: "slack:team",
		Enabled:          true,
	}
	if err := s.AddJob(job); err != nil {
		t.Fatalf("AddJob: %v", err)
	}

	s2, err := NewScheduler(dir, b, time.Second)
	if err != nil {
		t.Fatalf("NewScheduler (reload): %v", err)
	}
	jobs := s2.ListJobs()
	if len(jobs) != 1 || jobs[0].ID != "daily-report" {
		t.Fatalf("expected reloaded job, got %+v", jobs)
	}
}

func TestIntervalJobFiresOnceLastFiredZero(t *testing.T) {
	job := &CronJob{
		ID:       "interval",
		Schedule: CronSchedule{Interval: time.Minute},
	}
	if !isDue(job, time.Now()) {
		t.Fatal("a job that has never fired should be due immediately")
	}
}

func TestIntervalJobNotDueBeforeDelayElapsed(t *testing.T) {
	now := time.Now()
	job := &CronJob{
		ID:        "interval",
		Schedule:  CronSchedule{Interval: time.Hour},
		LastFired: now,
	}
	if isDue(job, now.Add(time.Minute)) {
		t.Fatal("job should not be due one minute into a one-hour interval")
	}
	if !isDue(job, now.Add(time.Hour+time.Second)) {
		t.Fatal("job should be due once the interval has elapsed")
	}
}

func TestFireSynthesizesSessionKeyNotChannelDerived(t *testing.T) {
	b := bus.NewMessageBus(4)
	s, err := NewScheduler(t.TempDir(), b, time.Second)
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	job := &CronJob{ID: "report", Prompt: "daily report", TargetSessionKey: "slack:team"}
	s.fire(job, time.Now())

	msg, err := b.ConsumeInbound(context.Background())
	if err != nil {
		t.Fatalf("ConsumeInbound: %v", err)
	}
	if msg.Channel != "cron:report" {
		t.Fatalf("expected synthetic channel cron:report, got %q", msg.Channel)
	}
	if msg.SessionKey != "slack:team" {
		t.Fatalf("expected session key to be the job's target, got %q", msg.SessionKey)
	}
	if msg.ChatID != "team" {
		t.Fatalf("expected chat id split from target session key, got %q", msg.ChatID)
	}
}

func TestSplitSessionKeyKeepsColonsInChatID(t *testing.T) {
	channel, chatID := splitSessionKey("slack:team:thread-1")
	if channel != "slack" || chatID != "team:thread-1" {
		t.Fatalf("unexpected split: channel=%q chatID=%q", channel, chatID)
	}
}
