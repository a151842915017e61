package janitor

import (
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// Scheduler runs named jobs on cron schedules
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger
}

func NewScheduler(logger *slog.Logger) *Scheduler {
	c := cron.New(
		cron.WithChain(
			cron.SkipIfStillRunning(cron.DiscardLogger),
			NewLoggingWrapper(logger),
			NewPanicRecoveryWrapper(logger),
		),
	)

	return &Scheduler{cron: c, logger: logger}
}

// Register adds job under spec, e.g. "@every 48h" or "0 3 * * *"
func (s *Scheduler) Register(spec string, job cron.Job) error {
	if _, err := s.cron.AddJob(spec, job); err != nil {
		return err
	}
	s.logger.Info("Registered job", slog.String("job_name", jobName(job)), slog.String("schedule", spec))
	return nil
}

func (s *Scheduler) Start() {
	s.logger.Info("Cron scheduler started")
	s.cron.Start()
}

// Stop waits for running jobs to finish
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping cron scheduler")
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Cron scheduler stopped")
}

// NewLoggingWrapper logs the start and end of every run under a fresh
// execution id.
func NewLoggingWrapper(logger *slog.Logger) cron.JobWrapper {
	return func(j cron.Job) cron.Job {
		return namedJob{name: jobName(j), run: func() {
			jobLogger := logger.With(
				slog.String("job_name", jobName(j)),
				slog.String("execution_id", uuid.NewString()),
			)

			startTime := time.Now()
			jobLogger.Info("Job execution started")

			j.Run()

			jobLogger.Info("Job execution finished", slog.Duration("duration", time.Since(startTime)))
		}}
	}
}

// NewPanicRecoveryWrapper keeps one failing run from taking the worker down
func NewPanicRecoveryWrapper(logger *slog.Logger) cron.JobWrapper {
	return func(j cron.Job) cron.Job {
		return namedJob{name: jobName(j), run: func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("Job panicked",
						slog.String("job_name", jobName(j)),
						slog.Any("panic", r),
						slog.String("stack_trace", string(debug.Stack())))
				}
			}()

			j.Run()
		}}
	}
}

// namedJob keeps the job name visible through wrappers
type namedJob struct {
	name string
	run  func()
}

func (n namedJob) Run() { n.run() }
func (n namedJob) Name() string { return n.name }

func jobName(j cron.Job) string {
	if named, ok := j.(interface{ Name() string }); ok {
		return named.Name()
	}
	return "job"
}
