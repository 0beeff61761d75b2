// Package jobs управляет фоновыми задачами (cron).
// scheduler.go настраивает расписание: сверку долгов по выигрышам
// и ежедневный аудит неначисленных выплат.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"github.com/Sharedvaluevending/RevQR-sub006/internal/features/casino"
)

// Options — расписания задач в формате cron (5 полей).
type Options struct {
	ReconcileSchedule string
	AuditSchedule     string
	ReconcileBatch    int
	Location          *time.Location
}

// Scheduler управляет фоновыми задачами.
type Scheduler struct {
	cron       *cron.Cron
	reconciler *casino.Reconciler
	opts       Options
}

// NewScheduler создаёт планировщик и регистрирует задачи.
func NewScheduler(ctx context.Context, reconciler *casino.Reconciler, opts Options) (*Scheduler, error) {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	if opts.ReconcileBatch <= 0 {
		opts.ReconcileBatch = 100
	}

	s := &Scheduler{
		// Задача не запускается повторно, пока не закончился предыдущий проход.
		cron:       cron.New(cron.WithLocation(loc), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		reconciler: reconciler,
		opts:       opts,
	}

	if _, err := s.cron.AddFunc(opts.ReconcileSchedule, func() { s.Reconcile(ctx) }); err != nil {
		return nil, fmt.Errorf("RECONCILE_SCHEDULE %q: %w", opts.ReconcileSchedule, err)
	}
	if _, err := s.cron.AddFunc(opts.AuditSchedule, func() { s.Audit(ctx) }); err != nil {
		return nil, fmt.Errorf("AUDIT_SCHEDULE %q: %w", opts.AuditSchedule, err)
	}
	return s, nil
}

// Reconcile — один проход сверки.
func (s *Scheduler) Reconcile(ctx context.Context) {
	res, err := s.reconciler.Run(ctx, s.opts.ReconcileBatch)
	entry := log.WithFields(log.Fields{
		"component": "reconcile",
		"resolved":  res.Resolved,
		"failed":    res.Failed,
	})
	if err != nil {
		entry.WithError(err).Error("[CRON] Ошибка сверки")
		return
	}
	if res.Resolved+res.Failed > 0 {
		entry.Info("[CRON] Сверка выполнена")
		return
	}
	entry.Debug("[CRON] Долгов нет")
}

// Audit логирует число неначисленных выплат.
func (s *Scheduler) Audit(ctx context.Context) {
	pending, err := s.reconciler.Pending(ctx)
	if err != nil {
		log.WithError(err).WithField("component", "reconcile").Error("[CRON] Ошибка аудита")
		return
	}
	entry := log.WithFields(log.Fields{"component": "reconcile", "pending": pending})
	if pending > 0 {
		entry.Warn("[CRON] Есть неначисленные выплаты")
		return
	}
	entry.Info("[CRON] Неначисленных выплат нет")
}

// Start запускает все фоновые задачи.
func (s *Scheduler) Start() {
	s.cron.Start()
	log.WithFields(log.Fields{
		"reconcile": s.opts.ReconcileSchedule,
		"audit":     s.opts.AuditSchedule,
	}).Info("Планировщик задач запущен")
}

// Stop останавливает планировщик и ждёт завершения запущенных задач.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("Планировщик задач остановлен")
}
