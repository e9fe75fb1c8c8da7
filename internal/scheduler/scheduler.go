// Package scheduler implements the job queue (C14): three priority
// lanes, four selection strategies, a running-job timeout sweep driven
// by github.com/robfig/cron/v3, and the requeue-then-fail retry state
// machine.
package scheduler

import (
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/threatcore/analysis-core/internal/model"
	"github.com/threatcore/analysis-core/internal/obslog"
)

// MaxRetries is the spec §4.14 retry ceiling before a timed-out job is
// marked Failed outright.
const MaxRetries = 3

// sweepInterval is how often the timeout monitor scans the running map
// (spec §4.14: "a monitor sweeps the map every 30 s").
const sweepInterval = 30 * time.Second

// Strategy is one of the four spec §4.14 job-selection strategies.
type Strategy string

const (
	StrategyFIFO             Strategy = "fifo"
	StrategyWeightedPriority Strategy = "weighted_priority"
	StrategyShortestJobFirst Strategy = "shortest_job_first"
	StrategyFairShare        Strategy = "fair_share"
)

// Config controls the scheduler.
type Config struct {
	Strategy    Strategy
	JobTimeout  time.Duration
	RetryDelay  time.Duration
}

// DefaultConfig matches spec §6 defaults.
func DefaultConfig() Config {
	return Config{Strategy: StrategyWeightedPriority, JobTimeout: 120 * time.Second, RetryDelay: 5 * time.Second}
}

// Scheduler tracks three priority lanes plus the set of currently
// running jobs.
type Scheduler struct {
	mu       sync.Mutex
	lanes    map[model.Priority][]*model.Job
	running  map[string]*model.Job
	cfg      Config
	log      *obslog.Logger
	cronRunner *cron.Cron
	userRunningCount map[string]int
}

// New constructs a Scheduler and starts its timeout-sweep cron entry.
func New(cfg Config, log *obslog.Logger) *Scheduler {
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 120 * time.Second
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 5 * time.Second
	}
	s := &Scheduler{
		lanes: map[model.Priority][]*model.Job{
			model.PriorityHigh:   {},
			model.PriorityMedium: {},
			model.PriorityLow:    {},
		},
		running:          make(map[string]*model.Job),
		cfg:              cfg,
		log:              log,
		userRunningCount: make(map[string]int),
	}
	s.cronRunner = cron.New(cron.WithSeconds())
	_, _ = s.cronRunner.AddFunc("@every 30s", s.sweepTimeouts)
	s.cronRunner.Start()
	return s
}

// Stop halts the timeout-sweep cron entry.
func (s *Scheduler) Stop() {
	s.cronRunner.Stop()
}

// Enqueue places job in its priority lane, preserving submission order
// within the lane (spec §5).
func (s *Scheduler) Enqueue(job *model.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job.Status = model.JobQueued
	s.lanes[job.Priority] = append(s.lanes[job.Priority], job)
}

// Dispatch selects the next batch of up to n jobs according to the
// configured strategy, marks them Running, and records them in the
// running map.
func (s *Scheduler) Dispatch(n int) []*model.Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	var selected []*model.Job
	switch s.cfg.Strategy {
	case StrategyFIFO:
		selected = s.selectFIFO(n)
	case StrategyShortestJobFirst:
		selected = s.selectShortestJobFirst(n)
	case StrategyFairShare:
		selected = s.selectFairShare(n)
	default:
		selected = s.selectWeightedPriority(n)
	}

	now := time.Now()
	for _, j := range selected {
		j.Status = model.JobRunning
		j.StartedAt = &now
		s.running[j.ID] = j
		s.userRunningCount[j.Submitter]++
	}
	return selected
}

func (s *Scheduler) selectFIFO(n int) []*model.Job {
	var out []*model.Job
	for _, p := range []model.Priority{model.PriorityHigh, model.PriorityMedium, model.PriorityLow} {
		for len(s.lanes[p]) > 0 && len(out) < n {
			out = append(out, s.popFront(p))
		}
		if len(out) >= n {
			break
		}
	}
	return out
}

// selectWeightedPriority allocates floor(N*100/160) High, floor(N*50/160)
// Medium, remainder Low, refilling any lane's unused slots from lower
// lanes (spec §4.14).
func (s *Scheduler) selectWeightedPriority(n int) []*model.Job {
	highQuota := n * 100 / 160
	medQuota := n * 50 / 160
	lowQuota := n - highQuota - medQuota

	var out []*model.Job
	takeUpTo := func(p model.Priority, quota int) int {
		taken := 0
		for taken < quota && len(s.lanes[p]) > 0 {
			out = append(out, s.popFront(p))
			taken++
		}
		return taken
	}

	takenHigh := takeUpTo(model.PriorityHigh, highQuota)
	takenMed := takeUpTo(model.PriorityMedium, medQuota)
	takenLow := takeUpTo(model.PriorityLow, lowQuota)

	remaining := n - takenHigh - takenMed - takenLow
	for _, p := range []model.Priority{model.PriorityHigh, model.PriorityMedium, model.PriorityLow} {
		for remaining > 0 && len(s.lanes[p]) > 0 {
			out = append(out, s.popFront(p))
			remaining--
		}
	}
	return out
}

func (s *Scheduler) selectShortestJobFirst(n int) []*model.Job {
	var all []*model.Job
	for _, p := range []model.Priority{model.PriorityHigh, model.PriorityMedium, model.PriorityLow} {
		all = append(all, s.lanes[p]...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		return estimatedDuration(all[i]) < estimatedDuration(all[j])
	})
	if len(all) > n {
		all = all[:n]
	}
	s.removeFromLanes(all)
	return all
}

func (s *Scheduler) selectFairShare(n int) []*model.Job {
	var all []*model.Job
	for _, p := range []model.Priority{model.PriorityHigh, model.PriorityMedium, model.PriorityLow} {
		all = append(all, s.lanes[p]...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		ci, cj := s.userRunningCount[all[i].Submitter], s.userRunningCount[all[j].Submitter]
		if ci != cj {
			return ci < cj
		}
		return all[i].CreatedAt.Before(all[j].CreatedAt)
	})
	if len(all) > n {
		all = all[:n]
	}
	s.removeFromLanes(all)
	return all
}

func estimatedDuration(j *model.Job) int64 {
	if j.EstimatedDurationMS == nil {
		return 1 << 62
	}
	return *j.EstimatedDurationMS
}

func (s *Scheduler) popFront(p model.Priority) *model.Job {
	lane := s.lanes[p]
	job := lane[0]
	s.lanes[p] = lane[1:]
	return job
}

func (s *Scheduler) removeFromLanes(selected []*model.Job) {
	ids := make(map[string]bool, len(selected))
	for _, j := range selected {
		ids[j.ID] = true
	}
	for p, lane := range s.lanes {
		kept := lane[:0]
		for _, j := range lane {
			if !ids[j.ID] {
				kept = append(kept, j)
			}
		}
		s.lanes[p] = kept
	}
}

// Complete marks a running job finished and removes it from the running
// map.
func (s *Scheduler) Complete(jobID string, success bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.running[jobID]
	if !ok {
		return
	}
	delete(s.running, jobID)
	s.userRunningCount[job.Submitter]--
	if success {
		job.Status = model.JobCompleted
	} else {
		job.Status = model.JobFailed
	}
}

// sweepTimeouts implements the spec §4.14 monitor: any running job whose
// elapsed time exceeds JobTimeout is requeued with RetryCount++ if below
// MaxRetries, else marked Failed.
func (s *Scheduler) sweepTimeouts() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for id, job := range s.running {
		if job.StartedAt == nil {
			continue
		}
		if now.Sub(*job.StartedAt) <= s.cfg.JobTimeout {
			continue
		}
		delete(s.running, id)
		s.userRunningCount[job.Submitter]--

		if job.RetryCount < MaxRetries {
			job.RetryCount++
			job.Status = model.JobQueued
			job.StartedAt = nil
			s.lanes[job.Priority] = append(s.lanes[job.Priority], job)
			if s.log != nil {
				s.log.WithFields(map[string]interface{}{"job_id": id, "retry_count": job.RetryCount}).Info("job timed out, requeued")
			}
		} else {
			job.Status = model.JobFailed
			if s.log != nil {
				s.log.WithFields(map[string]interface{}{"job_id": id}).Info("job exhausted retries, marked failed")
			}
		}
	}
}

// QueueDepth reports the number of jobs currently queued in a lane.
func (s *Scheduler) QueueDepth(p model.Priority) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lanes[p])
}
