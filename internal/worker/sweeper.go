package worker

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/Eursukkul/booking-microservice/allocation-service/internal/service"
	"github.com/go-co-op/gocron/v2"
)

type ExpirySweeper interface {
	SweepExpired(ctx context.Context) (*service.SweepReport, error)
}

// Sweeper runs the hold-expiry sweep on a fixed interval. A run that
// overlaps the next tick is never doubled up.
type Sweeper struct {
	svc       ExpirySweeper
	interval  time.Duration
	scheduler gocron.Scheduler
}

func NewSweeper(svc ExpirySweeper, interval time.Duration) (*Sweeper, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	sw := &Sweeper{svc: svc, interval: interval, scheduler: s}
	_, err = s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(sw.RunOnce),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithName("hold-expiry-sweep"),
	)
	if err != nil {
		_ = s.Shutdown()
		return nil, fmt.Errorf("schedule sweep: %w", err)
	}
	return sw, nil
}

func (s *Sweeper) Start() {
	s.scheduler.Start()
	log.Printf("[Sweeper] started, interval %s", s.interval)
}

func (s *Sweeper) Stop() error {
	return s.scheduler.Shutdown()
}

// RunOnce performs a single sweep bounded by the sweep interval.
func (s *Sweeper) RunOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), s.interval)
	defer cancel()

	report, err := s.svc.SweepExpired(ctx)
	if err != nil {
		log.Printf("[Sweeper] sweep failed: %v", err)
		return
	}
	if report.Reservations > 0 || report.Holds > 0 {
		log.Printf("[Sweeper] expired %d reservations, %d holds", report.Reservations, report.Holds)
	}
}
