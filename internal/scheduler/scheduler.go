package scheduler

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/agentflow/agentflow/internal/db"
	"github.com/agentflow/agentflow/internal/logging"
)

// Runner executes a turn against an agent outside any channel binding.
// Scheduled runs carry full wallet authority and start from empty history.
type Runner interface {
	ExecuteForAgent(ctx context.Context, agent *db.Agent, message string, canUseWallet bool) (string, error)
}

// TickResult summarizes one scheduler pass.
type TickResult struct {
	Evaluated int `json:"evaluated"`
	Ran       int `json:"ran"`
	Failed    int `json:"failed"`
	Pruned    int `json:"pruned"`
}

// Scheduler evaluates stored jobs against their schedules on every tick.
// Ticks are driven externally (the cron endpoint); the scheduler itself
// keeps no timers, so a missed tick only delays jobs, never drops them.
type Scheduler struct {
	store         *db.Store
	runner        Runner
	retentionDays int

	now func() time.Time
}

func New(store *db.Store, runner Runner, retentionDays int) *Scheduler {
	return &Scheduler{
		store:         store,
		runner:        runner,
		retentionDays: retentionDays,
		now:           time.Now,
	}
}

// Tick evaluates every enabled job once. A failing job is recorded on the
// job row and never blocks the rest of the pass.
func (s *Scheduler) Tick(ctx context.Context) (*TickResult, error) {
	jobs, err := s.store.ListEnabledCronJobs(ctx)
	if err != nil {
		return nil, fmt.Errorf("scheduler: list jobs: %w", err)
	}

	now := s.now()
	result := &TickResult{Evaluated: len(jobs)}
	for _, job := range jobs {
		due, err := s.due(job, now)
		if err != nil {
			result.Failed++
			s.markRun(ctx, job.ID, now, err)
			continue
		}
		if !due {
			continue
		}
		ran, err := s.run(ctx, job, now)
		if err != nil {
			result.Failed++
			logging.Warnf("scheduler: job %s (%s): %v", job.Name, job.ID, err)
		} else if ran {
			result.Ran++
		}
	}

	if s.retentionDays > 0 {
		cutoff := now.AddDate(0, 0, -s.retentionDays).Unix()
		pruned, err := s.store.PruneSessionMessages(ctx, cutoff)
		if err != nil {
			logging.Warnf("scheduler: prune sessions: %v", err)
		} else {
			result.Pruned = int(pruned)
		}
	}
	return result, nil
}

// due reports whether the job should fire at now, per its schedule kind.
func (s *Scheduler) due(job db.CronJob, now time.Time) (bool, error) {
	switch job.ScheduleKind {
	case db.ScheduleKindCron:
		if !job.CronExpr.Valid {
			return false, fmt.Errorf("cron job without expression")
		}
		sched, err := cron.ParseStandard(job.CronExpr.String)
		if err != nil {
			return false, fmt.Errorf("parse cron expression %q: %w", job.CronExpr.String, err)
		}
		last := time.Unix(job.CreatedAt, 0)
		if job.LastRunAt.Valid {
			last = time.Unix(job.LastRunAt.Int64, 0)
		}
		return !sched.Next(last).After(now), nil

	case db.ScheduleKindInterval:
		if !job.IntervalSeconds.Valid || job.IntervalSeconds.Int64 <= 0 {
			return false, fmt.Errorf("interval job without positive interval")
		}
		if !job.LastRunAt.Valid {
			return true, nil
		}
		return now.Unix()-job.LastRunAt.Int64 >= job.IntervalSeconds.Int64, nil

	case db.ScheduleKindOnce:
		if !job.RunAt.Valid {
			return false, fmt.Errorf("one-shot job without run time")
		}
		return job.RunCount == 0 && job.RunAt.Int64 <= now.Unix(), nil

	default:
		return false, fmt.Errorf("unknown schedule kind %q", job.ScheduleKind)
	}
}

func (s *Scheduler) run(ctx context.Context, job db.CronJob, now time.Time) (bool, error) {
	agent, err := s.store.GetAgent(ctx, job.AgentID)
	if err != nil {
		s.markRun(ctx, job.ID, now, fmt.Errorf("load agent: %w", err))
		return false, err
	}
	if agent.Status != db.AgentStatusActive {
		// Paused agents keep their jobs; the jobs just wait.
		return false, nil
	}

	message := fmt.Sprintf("[SCHEDULED TASK: %s] %s", job.ID, job.Message)
	reply, runErr := s.runner.ExecuteForAgent(ctx, &agent, message, true)
	s.markRun(ctx, job.ID, now, runErr)

	if job.ScheduleKind == db.ScheduleKindOnce {
		if err := s.store.SetCronJobEnabled(ctx, db.SetCronJobEnabledParams{ID: job.ID, Enabled: false}); err != nil {
			logging.Warnf("scheduler: disable one-shot job %s: %v", job.ID, err)
		}
	}

	if runErr != nil {
		s.logActivity(ctx, job.AgentID, "cron_error", fmt.Sprintf("job=%s error=%v", job.Name, runErr))
		return false, runErr
	}
	s.logActivity(ctx, job.AgentID, "cron_run", fmt.Sprintf("job=%s reply_len=%d", job.Name, len(reply)))
	return true, nil
}

func (s *Scheduler) markRun(ctx context.Context, jobID string, now time.Time, runErr error) {
	var lastErr sql.NullString
	if runErr != nil {
		lastErr = sql.NullString{String: runErr.Error(), Valid: true}
	}
	if err := s.store.MarkCronJobRun(ctx, db.MarkCronJobRunParams{
		ID: jobID, RunAt: now.Unix(), LastError: lastErr,
	}); err != nil {
		logging.Warnf("scheduler: mark job %s run: %v", jobID, err)
	}
}

func (s *Scheduler) logActivity(ctx context.Context, agentID, kind, detail string) {
	if err := s.store.AppendActivity(ctx, db.AppendActivityParams{
		AgentID: agentID, Kind: kind, Detail: detail,
	}); err != nil {
		logging.Warnf("scheduler: append activity: %v", err)
	}
}
