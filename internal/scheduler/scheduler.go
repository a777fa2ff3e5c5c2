// Package scheduler fires the daily invoicing sweep. Billings whose due
// date matches the current day of month are invoiced once per day at
// the configured wall time.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	billingdomain "github.com/nextlevelcode/meterbill/internal/billing/domain"
	"github.com/nextlevelcode/meterbill/internal/clock"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrInvalidConfig = errors.New("scheduler: invalid configuration")

type Params struct {
	fx.In

	Log        *zap.Logger
	Clock      clock.Clock
	BillingSvc billingdomain.Service
	Config     Config `optional:"true"`
}

type Scheduler struct {
	log        *zap.Logger
	clock      clock.Clock
	billingSvc billingdomain.Service
	cfg        Config

	fireHour   int
	fireMinute int

	// lastRun is the date (YYYY-MM-DD) of the most recent sweep,
	// guarding against firing twice in one day.
	lastRun string
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.Clock == nil || p.BillingSvc == nil {
		return nil, ErrInvalidConfig
	}
	cfg := p.Config.withDefaults()

	var hour, minute int
	if _, err := fmt.Sscanf(cfg.InvoiceAt, "%d:%d", &hour, &minute); err != nil {
		return nil, fmt.Errorf("%w: invoice time %q", ErrInvalidConfig, cfg.InvoiceAt)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return nil, fmt.Errorf("%w: invoice time %q", ErrInvalidConfig, cfg.InvoiceAt)
	}

	return &Scheduler{
		log:        p.Log.Named("scheduler"),
		clock:      p.Clock,
		billingSvc: p.BillingSvc,
		cfg:        cfg,
		fireHour:   hour,
		fireMinute: minute,
	}, nil
}

// RunForever polls until the context is cancelled. Each poll is cheap;
// the sweep itself runs at most once per day.
func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	s.log.Info("scheduler started",
		zap.String("invoice_at", s.cfg.InvoiceAt),
		zap.Duration("poll_interval", s.cfg.PollInterval),
	)

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs the sweep if the fire time has passed and today's run has
// not happened yet. Exposed so tests can drive it with a fake clock.
func (s *Scheduler) Tick(ctx context.Context) {
	now := s.clock.Now()
	if now.Hour() < s.fireHour || (now.Hour() == s.fireHour && now.Minute() < s.fireMinute) {
		return
	}

	day := now.Format("2006-01-02")
	if s.lastRun == day {
		return
	}
	s.lastRun = day

	runCtx, cancel := context.WithTimeout(ctx, s.cfg.JobTimeout)
	defer cancel()

	start := now
	if err := s.billingSvc.InvoiceDueToday(runCtx); err != nil {
		s.log.Error("daily invoicing finished with errors",
			zap.String("day", day),
			zap.Error(err),
		)
		return
	}
	s.log.Info("daily invoicing finished",
		zap.String("day", day),
		zap.Duration("elapsed", s.clock.Now().Sub(start)),
	)
}
