package jobs

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is one unit of background work. It should return promptly once ctx is done.
type Job func(ctx context.Context) error

// Scheduler runs named jobs on cron specs. Overlapping runs of the same job
// are skipped and panics are recovered.
type Scheduler struct {
	cron    *cron.Cron
	ctx     context.Context
	cancel  context.CancelFunc
	timeout time.Duration

	mu   sync.Mutex
	jobs map[string]Job
}

func NewScheduler() *Scheduler {
	logger := cron.PrintfLogger(log.Default())
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.Recover(logger),
			cron.SkipIfStillRunning(logger),
		)),
		ctx:     ctx,
		cancel:  cancel,
		timeout: 5 * time.Minute,
		jobs:    make(map[string]Job),
	}
}

// Add registers job under name. spec uses the standard five-field syntax or
// descriptors such as "@hourly" and "@every 2m".
func (s *Scheduler) Add(name, spec string, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %q already registered", name)
	}
	if _, err := s.cron.AddFunc(spec, func() { s.run(name, job) }); err != nil {
		return fmt.Errorf("job %q: invalid schedule %q: %w", name, spec, err)
	}
	s.jobs[name] = job
	log.Printf("🗓️ Job %s scheduled (%s)", name, spec)
	return nil
}

// RunNow executes a registered job synchronously, outside its schedule.
func (s *Scheduler) RunNow(name string) error {
	s.mu.Lock()
	job, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("job %q not registered", name)
	}
	return s.run(name, job)
}

func (s *Scheduler) run(name string, job Job) error {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	start := time.Now()
	if err := job(ctx); err != nil {
		log.Printf("❌ Job %s failed after %v: %v", name, time.Since(start), err)
		return err
	}
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	log.Println("🚀 Job scheduler started")
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	log.Println("🛑 Job scheduler stopped")
}

func (s *Scheduler) JobCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}
