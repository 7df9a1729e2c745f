package stock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"pos-backend/internal/db"
)

// Scheduler walks every registered tenant once per minute and runs due
// snapshot schedules. An in-process lock keyed by (tenant, hour) suppresses
// double execution when ticks overlap a slow run.
type Scheduler struct {
	gateway *db.Gateway
	stocks  *Service
	cron    *cron.Cron
	log     *logrus.Entry

	mu      sync.Mutex
	running map[string]bool
}

func NewScheduler(gateway *db.Gateway, stocks *Service, log *logrus.Entry) *Scheduler {
	return &Scheduler{
		gateway: gateway,
		stocks:  stocks,
		cron:    cron.New(),
		log:     log,
		running: map[string]bool{},
	}
}

// Start registers the minute tick and launches the cron runner.
func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc("* * * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		s.Tick(ctx, time.Now())
	})
	if err != nil {
		return fmt.Errorf("failed to register snapshot tick: %w", err)
	}
	s.cron.Start()
	return nil
}

// Stop halts the cron runner and waits for in-flight jobs.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// Tick evaluates every tenant's schedule against now.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) {
	tenants, err := s.tenantIDs(ctx)
	if err != nil {
		s.log.WithError(err).Warn("failed to list tenants for snapshot tick")
		return
	}
	for _, tenantID := range tenants {
		s.runTenant(ctx, tenantID, now)
	}
}

func (s *Scheduler) tenantIDs(ctx context.Context) ([]string, error) {
	rows, err := s.gateway.Pool().Query(ctx, fmt.Sprintf(
		"SELECT tenant_id FROM %s.tenants ORDER BY tenant_id", s.gateway.CommonsSchema()))
	if err != nil {
		return nil, fmt.Errorf("failed to query tenant registry: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan tenant id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *Scheduler) runTenant(ctx context.Context, tenantID string, now time.Time) {
	schedule, err := s.stocks.GetSchedule(ctx, tenantID)
	if err != nil {
		s.log.WithError(err).WithField("tenant", tenantID).Warn("failed to load snapshot schedule")
		return
	}
	if !schedule.Due(now) {
		return
	}

	lockKey := fmt.Sprintf("%s:%s", tenantID, now.Format("2006010215"))
	s.mu.Lock()
	if s.running[lockKey] {
		s.mu.Unlock()
		return
	}
	s.running[lockKey] = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.running, lockKey)
		s.mu.Unlock()
	}()

	if err := s.Execute(ctx, tenantID, schedule); err != nil {
		s.log.WithError(err).WithField("tenant", tenantID).Error("snapshot run failed")
	}
}

// Execute takes snapshots for every target store, sweeps expired snapshots
// per the retention setting and stamps the schedule.
func (s *Scheduler) Execute(ctx context.Context, tenantID string, schedule *Schedule) error {
	stores := schedule.TargetStores
	if len(stores) == 0 || (len(stores) == 1 && stores[0] == "all") {
		var err error
		stores, err = s.stocks.StoreCodes(ctx, tenantID)
		if err != nil {
			return err
		}
	}

	for _, storeCode := range stores {
		snap, err := s.stocks.TakeSnapshot(ctx, tenantID, storeCode)
		if err != nil {
			return err
		}
		s.log.WithFields(logrus.Fields{
			"tenant": tenantID,
			"store":  storeCode,
			"items":  snap.TotalItems,
		}).Info("stock snapshot taken")
	}

	if removed, err := s.stocks.SweepSnapshots(ctx, tenantID, schedule.RetentionDays); err != nil {
		s.log.WithError(err).WithField("tenant", tenantID).Warn("snapshot sweep failed")
	} else if removed > 0 {
		s.log.WithFields(logrus.Fields{"tenant": tenantID, "removed": removed}).Info("expired snapshots removed")
	}

	return s.stocks.MarkExecuted(ctx, tenantID, time.Now())
}
