package statistics

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Scheduler periodically recomputes yesterday and today so rows missed by
// a failed post-sale recompute converge.
type Scheduler struct {
	cron    *cron.Cron
	svc     *Service
	logger  zerolog.Logger
	timeout time.Duration
}

func NewScheduler(svc *Service, spec string, logger zerolog.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:    cron.New(cron.WithLocation(svc.loc), cron.WithParser(cronParser)),
		svc:     svc,
		logger:  logger.With().Str("component", "statistics.cron").Logger(),
		timeout: 2 * time.Minute,
	}
	if _, err := s.cron.AddFunc(spec, s.repair); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Scheduler) Start() { s.cron.Start() }

// Stop halts scheduling and waits for a running repair, up to ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.logger.Warn().Msg("statistics repair still running at shutdown")
	}
}

func (s *Scheduler) repair() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	now := s.svc.now()
	for _, day := range []time.Time{now.AddDate(0, 0, -1), now} {
		if err := s.svc.RecomputeDay(ctx, day); err != nil {
			s.logger.Error().Err(err).Str("day", s.svc.civil(day).Format(dayLayout)).Msg("statistics repair failed")
			continue
		}
	}
	s.logger.Debug().Msg("statistics repaired")
}
