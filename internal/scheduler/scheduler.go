// Package scheduler runs named tasks on cron schedules. Runs of the same task
// never overlap: a tick that arrives while the previous run is still going is
// skipped, and an on-demand run is refused with ErrTaskRunning.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/robfig/cron/v3"

	"github.com/okian/fightlens/pkg/logger"
	"github.com/okian/fightlens/pkg/metrics"
)

// Task is a unit of scheduled work.
type Task interface {
	Name() string
	// Schedule is a cron expression.
	Schedule() string
	// Delay is waited after each tick before Execute runs.
	Delay() time.Duration
	Execute(ctx context.Context) error
}

// Scheduler owns a cron runner and the registered tasks.
type Scheduler struct {
	mu      sync.Mutex
	cron    *cron.Cron
	entries map[string]cron.EntryID
	tasks   map[string]Task
	// guards serialize scheduled and on-demand runs per task name.
	guards map[string]*sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc

	location  *time.Location
	seconds   bool
	onFailure func(task string, err error)
	logger    logger.Logger
}

// New creates a stopped scheduler.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		entries:   make(map[string]cron.EntryID),
		tasks:     make(map[string]Task),
		guards:    make(map[string]*sync.Mutex),
		location:  time.Local,
		onFailure: captureSentry,
		logger:    logger.Get().Named("scheduler"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	cl := cronLogger{l: s.logger}
	cronOpts := []cron.Option{
		cron.WithLocation(s.location),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	}
	if s.seconds {
		cronOpts = append(cronOpts, cron.WithSeconds())
	}
	s.cron = cron.New(cronOpts...)
	return s
}

// Register schedules a task. Names must be unique.
func (s *Scheduler) Register(task Task) error {
	name := task.Name()
	if name == "" {
		return ErrInvalidTask
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[name]; ok {
		return fmt.Errorf("%s: %w", name, ErrDuplicateTask)
	}
	guard, ok := s.guards[name]
	if !ok {
		guard = &sync.Mutex{}
	}
	id, err := s.cron.AddFunc(task.Schedule(), func() { s.tick(task, guard) })
	if err != nil {
		return fmt.Errorf("schedule %s (%q): %w", name, task.Schedule(), err)
	}
	s.entries[name] = id
	s.tasks[name] = task
	s.guards[name] = guard
	s.logger.Info(s.ctx, "task scheduled",
		logger.String("task", name),
		logger.String("schedule", task.Schedule()),
		logger.Duration("delay", task.Delay()))
	return nil
}

// Unregister removes a task. A run in progress is not interrupted.
func (s *Scheduler) Unregister(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.entries[name]
	if !ok {
		return fmt.Errorf("%s: %w", name, ErrUnknownTask)
	}
	s.cron.Remove(id)
	delete(s.entries, name)
	delete(s.tasks, name)
	s.logger.Info(s.ctx, "task unregistered", logger.String("task", name))
	return nil
}

// Tasks returns the registered task names, sorted.
func (s *Scheduler) Tasks() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.tasks))
	for name := range s.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Next returns the next activation time of a task.
func (s *Scheduler) Next(name string) (time.Time, error) {
	s.mu.Lock()
	id, ok := s.entries[name]
	s.mu.Unlock()
	if !ok {
		return time.Time{}, fmt.Errorf("%s: %w", name, ErrUnknownTask)
	}
	return s.cron.Entry(id).Next, nil
}

// Start begins firing schedules in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info(s.ctx, "scheduler started", logger.Strings("tasks", s.Tasks()))
}

// RunNow executes a registered task once in the caller's goroutine, skipping
// its delay. It returns ErrTaskRunning while a run of the same task is in
// progress, including a scheduled run waiting out its delay.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	task, ok := s.tasks[name]
	guard := s.guards[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%s: %w", name, ErrUnknownTask)
	}
	if !guard.TryLock() {
		return fmt.Errorf("%s: %w", name, ErrTaskRunning)
	}
	defer guard.Unlock()
	return s.run(ctx, task, false)
}

// tick is the cron callback. It skips the tick when an on-demand run holds the guard.
func (s *Scheduler) tick(task Task, guard *sync.Mutex) {
	if !guard.TryLock() {
		s.logger.Info(s.ctx, "task already running, skipping tick", logger.String("task", task.Name()))
		return
	}
	defer guard.Unlock()
	_ = s.run(s.ctx, task, true)
}

// Stop cancels running tasks and waits for them to return or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancel()
	done := s.cron.Stop()

	s.mu.Lock()
	for name, id := range s.entries {
		s.cron.Remove(id)
		s.logger.Info(ctx, "stopped task", logger.String("task", name))
	}
	s.entries = make(map[string]cron.EntryID)
	s.tasks = make(map[string]Task)
	s.mu.Unlock()

	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		s.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (s *Scheduler) run(ctx context.Context, task Task, delayed bool) error {
	name := task.Name()
	if d := task.Delay(); delayed && d > 0 {
		s.logger.Debug(ctx, "delaying task", logger.String("task", name), logger.Duration("delay", d))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d):
		}
	}

	s.logger.Info(ctx, "executing scheduled task", logger.String("task", name))
	start := time.Now()
	err := task.Execute(ctx)
	took := time.Since(start)
	metrics.RecordPass(name, took, err)
	if err != nil {
		s.logger.Error(ctx, "task failed",
			logger.String("task", name),
			logger.Duration("took", took),
			logger.Error(err))
		s.onFailure(name, err)
		return err
	}
	s.logger.Info(ctx, "task completed", logger.String("task", name), logger.Duration("took", took))
	return nil
}

func captureSentry(task string, err error) {
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("task", task)
		sentry.CaptureException(err)
	})
}

// cronLogger routes cron's own messages into our logger.
type cronLogger struct {
	l logger.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug(context.Background(), "cron: "+msg, pairs(keysAndValues)...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error(context.Background(), "cron: "+msg, append(pairs(keysAndValues), logger.Error(err))...)
}

func pairs(kv []interface{}) []logger.Field {
	fields := make([]logger.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields = append(fields, logger.Any(fmt.Sprint(kv[i]), kv[i+1]))
	}
	return fields
}
