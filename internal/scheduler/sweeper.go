package scheduler

import (
	"context"
	"fmt"
	"time"

	"smartsales_backend/platform/logger"

	cronlib "github.com/robfig/cron/v3"
)

var sweepParser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow | cronlib.Descriptor,
)

// Sweeper periodically fires overdue actions whose timer or task was lost.
type Sweeper struct {
	cron *cronlib.Cron
	svc  *Service
	log  *logger.Logger
}

// NewSweeper validates spec ("@every 1m", "*/5 * * * *") and prepares the job.
func NewSweeper(spec string, svc *Service, log *logger.Logger) (*Sweeper, error) {
	c := cronlib.New(cronlib.WithParser(sweepParser))
	s := &Sweeper{cron: c, svc: svc, log: log}
	if _, err := c.AddFunc(spec, s.sweep); err != nil {
		return nil, fmt.Errorf("invalid follow-up sweep spec %q: %w", spec, err)
	}
	return s, nil
}

func (s *Sweeper) sweep() {
	if n := s.svc.FireOverdue(context.Background(), time.Now().UTC()); n > 0 {
		s.log.Info("fired overdue follow-ups", "count", n)
	}
}

// Run blocks until ctx is done, then waits for a running sweep to finish.
func (s *Sweeper) Run(ctx context.Context) {
	s.cron.Start()
	<-ctx.Done()
	<-s.cron.Stop().Done()
}
