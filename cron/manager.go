package cron

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dailyyoga/studysync/logger"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// specParser accepts six-field specs with seconds and descriptors such as "@every 30s"
var specParser = cron.NewParser(
	cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ParseSpec validates a spec the way the scheduler will read it
func ParseSpec(spec string) error {
	if _, err := specParser.Parse(spec); err != nil {
		return ErrSpec(spec, err)
	}
	return nil
}

// chainJob runs the tasks of one chain in order and aborts at the first failure
type chainJob struct {
	name   string
	tasks  []Task
	ctx    context.Context
	logger logger.Logger
}

// Run is called by the cron scheduler
func (j *chainJob) Run() {
	_, _ = j.run(j.ctx)
}

func (j *chainJob) run(ctx context.Context) (*Report, error) {
	report := newReport()
	ctx = withReport(ctx, report)

	j.logger.Debug("chain started", zap.String("chain_name", j.name))
	for _, task := range j.tasks {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if err := task.Run(ctx); err != nil {
			j.logger.Error("chain aborted due to task failure",
				zap.String("chain_name", j.name),
				zap.String("task_name", task.Name()),
				zap.Error(err),
			)
			return report, ErrTaskFailed(j.name, task.Name(), err)
		}
	}

	j.logger.Debug("chain completed", append([]zap.Field{zap.String("chain_name", j.name)}, report.Fields()...)...)
	return report, nil
}

type scheduler struct {
	cron        *cron.Cron
	middlewares []Middleware
	logger      logger.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	chains map[string]*chainJob
	closed bool
}

func newScheduler(log logger.Logger, mws ...Middleware) *scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	cl := cronLogger{log: log}
	return &scheduler{
		cron: cron.New(
			cron.WithParser(specParser),
			cron.WithLogger(cl),
			// a chain still running when its next tick arrives skips that tick
			cron.WithChain(cron.SkipIfStillRunning(cl)),
		),
		middlewares: mws,
		logger:      log,
		ctx:         ctx,
		cancel:      cancel,
		chains:      make(map[string]*chainJob),
	}
}

func (s *scheduler) Start() {
	s.cron.Start()
}

func (s *scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler closed")
}

func (s *scheduler) AddTasks(name, spec string, tasks ...Task) error {
	if len(tasks) == 0 {
		return ErrNoTasks
	}
	if err := ParseSpec(spec); err != nil {
		return err
	}

	wrapped := make([]Task, len(tasks))
	for i, task := range tasks {
		// chain name prefix for logging and metrics
		named := &wrappedTask{
			name: fmt.Sprintf("%s:%s", name, task.Name()),
			exec: task.Run,
		}
		wrapped[i] = applyMiddlewares(named, s.middlewares...)
	}

	job := &chainJob{
		name:   name,
		tasks:  wrapped,
		ctx:    s.ctx,
		logger: s.logger,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSchedulerClosed
	}
	if _, ok := s.chains[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateChain, name)
	}
	if _, err := s.cron.AddJob(spec, job); err != nil {
		return ErrSpec(spec, err)
	}
	s.chains[name] = job

	s.logger.Info("chain added",
		zap.String("chain_name", name),
		zap.String("spec", spec),
		zap.Int("task_count", len(tasks)),
	)
	return nil
}

func (s *scheduler) AddChain(chain Chain) error {
	return s.AddTasks(chain.Name, chain.Spec, chain.Tasks...)
}

func (s *scheduler) Run(ctx context.Context, name string) (*Report, error) {
	s.mu.Lock()
	job, ok := s.chains[name]
	closed := s.closed
	s.mu.Unlock()

	if closed {
		return nil, ErrSchedulerClosed
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownChain, name)
	}
	return job.run(ctx)
}

func (s *scheduler) Chains() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.chains))
	for name := range s.chains {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// cronLogger routes robfig/cron's own messages to zap
type cronLogger struct {
	log logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(msg, kvFields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(msg, append(kvFields(keysAndValues), zap.Error(err))...)
}

func kvFields(kv []any) []zap.Field {
	fields := make([]zap.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields = append(fields, zap.Any(fmt.Sprint(kv[i]), kv[i+1]))
	}
	return fields
}
