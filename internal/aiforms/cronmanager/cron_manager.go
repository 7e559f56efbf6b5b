// Периодические задачи сервиса (сверка статусов оплаты со Stripe).
//
// Задача получает контекст, который отменяется при остановке менеджера.
// Запуск задачи пропускается, пока не завершился предыдущий. Паника внутри задачи не останавливает диспетчер.
package cronmanager

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/robfig/cron/v3"
)

type JobFunc func(ctx context.Context)

type Job struct {
	Func     JobFunc
	Schedule string
}

type JobRegistry map[string]Job

type CronManager struct {
	dispatcher  *cron.Cron
	jobs        map[string]cron.EntryID
	mu          sync.Mutex
	jobRegistry JobRegistry

	ctx    context.Context
	cancel context.CancelFunc
}

// slogAdapter логгер cron поверх slog
type slogAdapter struct{}

func (slogAdapter) Info(msg string, keysAndValues ...interface{}) {
	slog.Debug("cron: "+msg, keysAndValues...)
}

func (slogAdapter) Error(err error, msg string, keysAndValues ...interface{}) {
	slog.Error("cron: "+msg, append(keysAndValues, "err", err)...)
}

func NewCronManager(jobRegistry JobRegistry) *CronManager {
	logger := slogAdapter{}
	ctx, cancel := context.WithCancel(context.Background())
	return &CronManager{
		dispatcher: cron.New(
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		jobs:        make(map[string]cron.EntryID),
		jobRegistry: jobRegistry,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// LoadJobs заново регистрирует все задачи из реестра. Задачи с некорректным расписанием пропускаются, ошибки возвращаются списком.
func (cm *CronManager) LoadJobs() []error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	for name, entryID := range cm.jobs {
		cm.dispatcher.Remove(entryID)
		delete(cm.jobs, name)
	}

	var errs []error
	for name, job := range cm.jobRegistry {
		id, err := cm.dispatcher.AddFunc(job.Schedule, cm.wrap(name, job.Func))
		if err != nil {
			errs = append(errs, fmt.Errorf("add job '%s': %w", name, err))
			continue
		}
		cm.jobs[name] = id
		slog.Info("Cron job registered", "name", name, "schedule", job.Schedule)
	}
	return errs
}

func (cm *CronManager) wrap(name string, f JobFunc) func() {
	return func() {
		if cm.ctx.Err() != nil {
			return
		}
		slog.Debug("Cron job started", "name", name)
		f(cm.ctx)
	}
}

func (cm *CronManager) RemoveJob(name string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if entryID, exists := cm.jobs[name]; exists {
		cm.dispatcher.Remove(entryID)
		delete(cm.jobs, name)
	}
}

// Jobs имена зарегистрированных задач по алфавиту
func (cm *CronManager) Jobs() []string {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	res := make([]string, 0, len(cm.jobs))
	for name := range cm.jobs {
		res = append(res, name)
	}
	sort.Strings(res)
	return res
}

func (cm *CronManager) Start() {
	cm.dispatcher.Start()
}

// Stop отменяет контекст задач, останавливает диспетчер и ждет завершения запущенных задач
func (cm *CronManager) Stop() {
	cm.cancel()
	<-cm.dispatcher.Stop().Done()
}
