package cron

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/adhocore/gronx"
	"github.com/robfig/cron/v3"

	"github.com/vikingbot/vikingbot/pkg/bus"
	"github.com/vikingbot/vikingbot/pkg/logger"
)

const defaultPollInterval = 30 * time.Second

// Scheduler holds every cron job, checks each against its schedule on a
// fixed poll tick, and injects a synthetic InboundMessage onto the bus when
// a job fires. Jobs persist as one JSON document, written atomically
// (write-to-temp, then rename) the same way pkg/state saves runtime.json.
type Scheduler struct {
	mu           sync.Mutex
	jobs         map[string]*CronJob
	filePath     string
	bus          *bus.MessageBus
	pollInterval time.Duration
}

// NewScheduler builds a Scheduler persisting jobs under
// filepath.Join(jobsDir, "jobs.json"), loading any jobs already there.
func NewScheduler(jobsDir string, b *bus.MessageBus, pollInterval time.Duration) (*Scheduler, error) {
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	if err := os.MkdirAll(jobsDir, 0o755); err != nil {
		return nil, fmt.Errorf("cron: create jobs dir: %w", err)
	}
	s := &Scheduler{
		jobs:         make(map[string]*CronJob),
		filePath:     filepath.Join(jobsDir, "jobs.json"),
		bus:          b,
		pollInterval: pollInterval,
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Scheduler) load() error {
	data, err := os.ReadFile(s.filePath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("cron: read jobs file: %w", err)
	}
	var jobs []*CronJob
	if err := json.Unmarshal(data, &jobs); err != nil {
		return fmt.Errorf("cron: parse jobs file: %w", err)
	}
	for _, j := range jobs {
		s.jobs[j.ID] = j
	}
	return nil
}

// saveAtomic writes every job to a temp file then renames it over the
// target, so a crash mid-write never corrupts the jobs file.
func (s *Scheduler) saveAtomic() error {
	jobs := make([]*CronJob, 0, len(s.jobs))
	for _, j := range s.jobs {
		jobs = append(jobs, j)
	}
	data, err := json.MarshalIndent(jobs, "", "  ")
	if err != nil {
		return fmt.Errorf("cron: marshal jobs: %w", err)
	}
	tmp := s.filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("cron: write temp file: %w", err)
	}
	if err := os.Rename(tmp, s.filePath); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("cron: rename temp file: %w", err)
	}
	return nil
}

// validate checks that job has an id, a target session, and exactly one
// valid schedule (an interval or a cron expression).
func (j *CronJob) validate() error {
	if j.ID == "" {
		return fmt.Errorf("cron: job id required")
	}
	if j.TargetSessionKey == "" {
		return fmt.Errorf("cron: target_session_key required")
	}
	if j.Schedule.Interval <= 0 && j.Schedule.Expression == "" {
		return fmt.Errorf("cron: job %q has neither interval nor expression", j.ID)
	}
	if j.Schedule.Interval > 0 && j.Schedule.Expression != "" {
		return fmt.Errorf("cron: job %q sets both interval and expression", j.ID)
	}
	if j.Schedule.Expression != "" && !gronx.IsValid(j.Schedule.Expression) {
		return fmt.Errorf("cron: job %q has invalid cron expression %q", j.ID, j.Schedule.Expression)
	}
	return nil
}

// AddJob validates job's schedule, stores it, and persists the job list.
func (s *Scheduler) AddJob(job CronJob) error {
	if err := job.validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = &job
	return s.saveAtomic()
}

// RemoveJob deletes a job by id, returning an error if it doesn't exist.
func (s *Scheduler) RemoveJob(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[id]; !ok {
		return fmt.Errorf("cron: job %q not found", id)
	}
	delete(s.jobs, id)
	return s.saveAtomic()
}

// SetEnabled flips a job's enabled flag.
func (s *Scheduler) SetEnabled(id string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("cron: job %q not found", id)
	}
	job.Enabled = enabled
	return s.saveAtomic()
}

// ListJobs returns a snapshot of every known job.
func (s *Scheduler) ListJobs() []CronJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]CronJob, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, *j)
	}
	return out
}

// Run polls every job on pollInterval until ctx is cancelled. Missed ticks
// during downtime are never backfilled — a fixed-interval job that should
// have fired while the process was down fires on the next tick after
// startup, once; a cron-expression job only fires when the current minute
// matches its expression, so a fire time missed during downtime is skipped.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			s.tick(now)
		}
	}
}

func (s *Scheduler) tick(now time.Time) {
	s.mu.Lock()
	due := make([]*CronJob, 0)
	for _, job := range s.jobs {
		if !job.Enabled {
			continue
		}
		if isDue(job, now) {
			job.LastFired = now
			due = append(due, job)
		}
	}
	if len(due) > 0 {
		if err := s.saveAtomic(); err != nil {
			logger.ErrorCF("cron", "persist fired jobs failed", map[string]interface{}{"error": err.Error()})
		}
	}
	s.mu.Unlock()

	for _, job := range due {
		s.fire(job, now)
	}
}

// isDue reports whether job's schedule fires at now. Cron-expression jobs
// are due when gronx says the expression matches the current minute;
// fixed-interval jobs are due when ConstantDelaySchedule's computed next
// fire time, measured from LastFired, has arrived.
func isDue(job *CronJob, now time.Time) bool {
	if job.Schedule.Expression != "" {
		due, err := gronx.IsDue(job.Schedule.Expression, now)
		if err != nil {
			logger.WarnCF("cron", "expression evaluation failed", map[string]interface{}{
				"job": job.ID, "expression": job.Schedule.Expression, "error": err.Error(),
			})
			return false
		}
		return due
	}

	sched := cron.ConstantDelaySchedule{Delay: job.Schedule.Interval}
	if job.LastFired.IsZero() {
		return true
	}
	return !sched.Next(job.LastFired).After(now)
}

// fire synthesizes an InboundMessage for job and publishes it. Channel is
// "cron:{job_id}" for provenance; SessionKey is the job's real target so
// the agent loop replays it into that session and any reply goes out over
// the session's actual channel, not back into "cron:{job_id}".
func (s *Scheduler) fire(job *CronJob, now time.Time) {
	channel, chatID := splitSessionKey(job.TargetSessionKey)
	msg := bus.InboundMessage{
		Channel:    "cron:" + job.ID,
		SenderID:   "cron",
		SenderName: "cron",
		ChatID:     chatID,
		Content:    job.Prompt,
		ReceivedAt: now,
		SessionKey: job.TargetSessionKey,
		Metadata:   map[string]string{"cron_job_id": job.ID, "reply_channel": channel},
	}
	logger.InfoCF("cron", "job fired", map[string]interface{}{
		"job": job.ID, "target_session": job.TargetSessionKey,
	})
	if err := s.bus.PublishInbound(msg); err != nil {
		logger.ErrorCF("cron", "publish inbound failed", map[string]interface{}{
			"job": job.ID, "error": err.Error(),
		})
	}
}

// splitSessionKey splits a "{channel}:{chat_id}" session key into its two
// halves. ChatID may itself contain colons (e.g. Slack thread keys), so
// only the first colon is significant.
func splitSessionKey(key string) (channel, chatID string) {
	for i := 0; i < len(key); i++ {
		if key[i] == ':' {
			return key[:i], key[i+1:]
		}
	}
	return key, ""
}
